package database

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	tcases := []struct {
		name     string
		err      error
		expected error
	}{
		{
			name:     "nil stays nil",
			err:      nil,
			expected: nil,
		},
		{
			name:     "no rows maps to not found",
			err:      sql.ErrNoRows,
			expected: ErrNotFound,
		},
		{
			name:     "wrapped no rows maps to not found",
			err:      fmt.Errorf("scan: %w", sql.ErrNoRows),
			expected: ErrNotFound,
		},
		{
			name:     "unique violation maps to conflict",
			err:      &pq.Error{Code: "23505", Constraint: "rooms_group_name_key"},
			expected: ErrConflict,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			err := mapError(tc.err)
			if tc.expected == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.expected)
		})
	}

	t.Run("other driver errors pass through", func(t *testing.T) {
		fkErr := &pq.Error{Code: "23503"}
		err := mapError(fkErr)
		assert.Equal(t, fkErr, err)
		assert.False(t, errors.Is(err, ErrConflict))
	})
}

func TestRoleCanModerate(t *testing.T) {
	assert.True(t, RoleOwner.CanModerate())
	assert.True(t, RoleModerator.CanModerate())
	assert.False(t, RoleMember.CanModerate())
}

func TestOpenMemory(t *testing.T) {
	repo, closeFn, err := Open(MemoryDSN)
	assert.NoError(t, err)
	assert.IsType(t, &MemoryChatRepository{}, repo)
	assert.NoError(t, closeFn())
}
