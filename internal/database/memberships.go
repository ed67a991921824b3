package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

func (db *PgChatRepository) GetMembership(ctx context.Context, roomId, userId int) (Membership, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT m.room_id, m.account_id, m.role, m.last_read_at, m.joined_at, a.username, COALESCE(a.profile_image, '') "+
			"FROM memberships m JOIN accounts a ON a.id = m.account_id "+
			"WHERE m.room_id = $1 AND m.account_id = $2",
		roomId,
		userId,
	)

	var m Membership
	err := row.Scan(&m.RoomId, &m.UserId, &m.Role, &m.LastReadAt, &m.JoinedAt, &m.User.Username, &m.User.ProfileImage)
	m.User.Id = m.UserId

	return m, mapError(err)
}

func (db *PgChatRepository) ListMembers(ctx context.Context, roomId int) ([]Membership, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT m.room_id, m.account_id, m.role, m.last_read_at, m.joined_at, a.username, COALESCE(a.profile_image, '') "+
			"FROM memberships m JOIN accounts a ON a.id = m.account_id "+
			"WHERE m.room_id = $1 ORDER BY m.joined_at ASC, m.account_id ASC",
		roomId,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := make([]Membership, 0)
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.RoomId, &m.UserId, &m.Role, &m.LastReadAt, &m.JoinedAt, &m.User.Username, &m.User.ProfileImage); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		m.User.Id = m.UserId

		members = append(members, m)
	}

	return members, rows.Err()
}

func (db *PgChatRepository) ListMembershipsForUser(ctx context.Context, userId int) ([]Membership, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT m.room_id, m.account_id, m.role, m.last_read_at, m.joined_at, "+roomColumns+" "+
			"FROM memberships m JOIN rooms r ON r.id = m.room_id "+
			"WHERE m.account_id = $1 ORDER BY r.id ASC",
		userId,
	)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	memberships := make([]Membership, 0)
	for rows.Next() {
		var m Membership
		err := rows.Scan(
			&m.RoomId, &m.UserId, &m.Role, &m.LastReadAt, &m.JoinedAt,
			&m.Room.Id, &m.Room.Name, &m.Room.Description, &m.Room.State, &m.Room.City,
			&m.Room.IsGroup, &m.Room.IsInviteOnly, &m.Room.Image, &m.Room.CreatedAt, &m.Room.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		memberships = append(memberships, m)
	}

	return memberships, rows.Err()
}

// lockRoom takes the room row lock that serializes membership writes.
func lockRoom(ctx context.Context, tx *sql.Tx, roomId int) error {
	var id int
	err := tx.QueryRowContext(ctx, "SELECT id FROM rooms WHERE id = $1 FOR UPDATE", roomId).Scan(&id)

	return mapError(err)
}

func memberRole(ctx context.Context, tx *sql.Tx, roomId, userId int) (Role, error) {
	var role Role
	err := tx.QueryRowContext(ctx,
		"SELECT role FROM memberships WHERE room_id = $1 AND account_id = $2",
		roomId,
		userId,
	).Scan(&role)

	return role, mapError(err)
}

func insertMembership(ctx context.Context, tx *sql.Tx, roomId, userId int, role Role) (Membership, error) {
	row := tx.QueryRowContext(ctx,
		"INSERT INTO memberships (room_id, account_id, role) VALUES ($1, $2, $3) "+
			"RETURNING room_id, account_id, role, last_read_at, joined_at",
		roomId,
		userId,
		role,
	)

	var m Membership
	err := row.Scan(&m.RoomId, &m.UserId, &m.Role, &m.LastReadAt, &m.JoinedAt)

	return m, mapError(err)
}

func (db *PgChatRepository) CreateMembership(ctx context.Context, roomId, userId int, role Role) (Membership, error) {
	var m Membership
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockRoom(ctx, tx, roomId); err != nil {
			return err
		}

		var err error
		m, err = insertMembership(ctx, tx, roomId, userId, role)
		return err
	})

	return m, err
}

func (db *PgChatRepository) LeaveRoom(ctx context.Context, roomId, userId int) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockRoom(ctx, tx, roomId); err != nil {
			return err
		}

		role, err := memberRole(ctx, tx, roomId, userId)
		if err != nil {
			return err
		}

		if role == RoleOwner {
			var count int
			err := tx.QueryRowContext(ctx,
				"SELECT COUNT(*) FROM memberships WHERE room_id = $1",
				roomId,
			).Scan(&count)
			if err != nil {
				return fmt.Errorf("count members: %w", err)
			}
			if count > 1 {
				return ErrOwnerNotAlone
			}
		}

		res, err := tx.ExecContext(ctx,
			"DELETE FROM memberships WHERE room_id = $1 AND account_id = $2",
			roomId,
			userId,
		)
		if err != nil {
			return err
		}

		return expectAffected(res)
	})
}

func (db *PgChatRepository) RemoveMember(ctx context.Context, params RemoveMemberParams) error {
	roles := make([]string, len(params.TargetRoles))
	for i, r := range params.TargetRoles {
		roles[i] = string(r)
	}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockRoom(ctx, tx, params.RoomId); err != nil {
			return err
		}

		actorRole, err := memberRole(ctx, tx, params.RoomId, params.ActorId)
		if errors.Is(err, ErrNotFound) || (err == nil && actorRole != params.ActorRole) {
			return fmt.Errorf("%w: actor role changed", ErrConflict)
		}
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			"DELETE FROM memberships WHERE room_id = $1 AND account_id = $2 AND role = ANY($3)",
			params.RoomId,
			params.UserId,
			pq.Array(roles),
		)
		if err != nil {
			return err
		}
		if err := expectAffected(res); !errors.Is(err, ErrNotFound) {
			return err
		}

		if _, err := memberRole(ctx, tx, params.RoomId, params.UserId); err != nil {
			return err
		}

		return fmt.Errorf("%w: member role changed", ErrConflict)
	})
}

func (db *PgChatRepository) TransferOwnership(ctx context.Context, roomId, fromUserId, toUserId int) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockRoom(ctx, tx, roomId); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			"UPDATE memberships SET role = $3 WHERE room_id = $1 AND account_id = $2 AND role = $4",
			roomId,
			fromUserId,
			RoleMember,
			RoleOwner,
		)
		if err != nil {
			return err
		}
		if err := expectAffected(res); err != nil {
			return fmt.Errorf("%w: current owner changed", ErrConflict)
		}

		res, err = tx.ExecContext(ctx,
			"UPDATE memberships SET role = $3 WHERE room_id = $1 AND account_id = $2",
			roomId,
			toUserId,
			RoleOwner,
		)
		if err != nil {
			return err
		}

		return expectAffected(res)
	})
}

func (db *PgChatRepository) MarkRead(ctx context.Context, roomId, userId int) (time.Time, error) {
	var readAt time.Time
	err := db.conn.QueryRowContext(ctx,
		"UPDATE memberships SET last_read_at = NOW() WHERE room_id = $1 AND account_id = $2 RETURNING last_read_at",
		roomId,
		userId,
	).Scan(&readAt)

	return readAt, mapError(err)
}

// expectAffected reports ErrNotFound when a statement touched no rows.
func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}
