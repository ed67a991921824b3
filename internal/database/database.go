package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record conflict")
	// ErrOwnerNotAlone is returned when an owner tries to leave a room that
	// still has other members.
	ErrOwnerNotAlone = errors.New("owner cannot leave a room with other members")
)

const uniqueViolation = pq.ErrorCode("23505")

// MemoryDSN selects the in-process repository instead of PostgreSQL.
const MemoryDSN = "memory://"

// Open returns the repository for the given DSN.
func Open(dsn string) (ChatRepository, func() error, error) {
	if strings.HasPrefix(dsn, MemoryDSN) {
		return NewMemoryChatRepository(), func() error { return nil }, nil
	}

	repo, err := NewPgChatRepository(dsn)
	if err != nil {
		return nil, nil, err
	}

	return repo, repo.Close, nil
}

// mapError translates driver errors into the package sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrConflict, pqErr.Constraint)
	}

	return err
}
