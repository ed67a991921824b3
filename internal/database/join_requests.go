package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

func (db *PgChatRepository) GetJoinRequest(ctx context.Context, roomId, userId int) (JoinRequest, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT room_id, account_id, status, requested_at FROM join_requests "+
			"WHERE room_id = $1 AND account_id = $2",
		roomId,
		userId,
	)

	var jr JoinRequest
	err := row.Scan(&jr.RoomId, &jr.UserId, &jr.Status, &jr.RequestedAt)

	return jr, mapError(err)
}

func (db *PgChatRepository) ListJoinRequestsForUser(ctx context.Context, userId int) ([]JoinRequest, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT room_id, account_id, status, requested_at FROM join_requests WHERE account_id = $1",
		userId,
	)
	if err != nil {
		return nil, fmt.Errorf("list join requests: %w", err)
	}
	defer rows.Close()

	requests := make([]JoinRequest, 0)
	for rows.Next() {
		var jr JoinRequest
		if err := rows.Scan(&jr.RoomId, &jr.UserId, &jr.Status, &jr.RequestedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		requests = append(requests, jr)
	}

	return requests, rows.Err()
}

func (db *PgChatRepository) ListPendingJoinRequests(ctx context.Context, roomId int) ([]JoinRequest, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT j.room_id, j.account_id, j.status, j.requested_at, a.username, a.email, COALESCE(a.profile_image, '') "+
			"FROM join_requests j JOIN accounts a ON a.id = j.account_id "+
			"WHERE j.room_id = $1 AND j.status = $2 ORDER BY j.requested_at ASC",
		roomId,
		JoinRequestPending,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending join requests: %w", err)
	}
	defer rows.Close()

	requests := make([]JoinRequest, 0)
	for rows.Next() {
		var jr JoinRequest
		err := rows.Scan(&jr.RoomId, &jr.UserId, &jr.Status, &jr.RequestedAt,
			&jr.User.Username, &jr.User.EmailAddress, &jr.User.ProfileImage)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		jr.User.Id = jr.UserId

		requests = append(requests, jr)
	}

	return requests, rows.Err()
}

func (db *PgChatRepository) CreateJoinRequest(ctx context.Context, roomId, userId int) (JoinRequest, error) {
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO join_requests (room_id, account_id, status) VALUES ($1, $2, $3) "+
			"RETURNING room_id, account_id, status, requested_at",
		roomId,
		userId,
		JoinRequestPending,
	)

	var jr JoinRequest
	err := row.Scan(&jr.RoomId, &jr.UserId, &jr.Status, &jr.RequestedAt)

	return jr, mapError(err)
}

// resolveJoinRequest moves a pending request to status. The update is
// conditional on the row still being pending.
func resolveJoinRequest(ctx context.Context, tx *sql.Tx, roomId, userId int, status JoinRequestStatus) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE join_requests SET status = $3 WHERE room_id = $1 AND account_id = $2 AND status = $4",
		roomId,
		userId,
		status,
		JoinRequestPending,
	)
	if err != nil {
		return err
	}

	if err := expectAffected(res); errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: join request is not pending", ErrConflict)
	} else if err != nil {
		return err
	}

	return nil
}

func (db *PgChatRepository) ApproveJoinRequest(ctx context.Context, roomId, userId int) (Membership, error) {
	var m Membership
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockRoom(ctx, tx, roomId); err != nil {
			return err
		}
		if err := resolveJoinRequest(ctx, tx, roomId, userId, JoinRequestApproved); err != nil {
			return err
		}

		var err error
		m, err = insertMembership(ctx, tx, roomId, userId, RoleMember)
		return err
	})

	return m, err
}

func (db *PgChatRepository) DenyJoinRequest(ctx context.Context, roomId, userId int) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		return resolveJoinRequest(ctx, tx, roomId, userId, JoinRequestDenied)
	})
}
