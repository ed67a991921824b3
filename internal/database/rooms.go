package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const roomColumns = "r.id, r.name, r.description, r.state, r.city, r.is_group, r.is_invite_only, " +
	"COALESCE(r.image, ''), r.created_at, r.updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner, room *Room, extra ...any) error {
	dest := []any{
		&room.Id,
		&room.Name,
		&room.Description,
		&room.State,
		&room.City,
		&room.IsGroup,
		&room.IsInviteOnly,
		&room.Image,
		&room.CreatedAt,
		&room.UpdatedAt,
	}

	return row.Scan(append(dest, extra...)...)
}

func (db *PgChatRepository) CreateRoom(ctx context.Context, params CreateRoomParams) (Room, error) {
	var room Room
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			"INSERT INTO rooms AS r (name, description, state, city, is_group, is_invite_only, image) "+
				"VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, '')) RETURNING "+roomColumns,
			params.Name,
			params.Description,
			params.State,
			params.City,
			params.IsGroup,
			params.IsInviteOnly,
			params.Image,
		)
		if err := scanRoom(row, &room); err != nil {
			return mapError(err)
		}

		_, err := tx.ExecContext(ctx,
			"INSERT INTO memberships (room_id, account_id, role) VALUES ($1, $2, $3)",
			room.Id,
			params.OwnerId,
			RoleOwner,
		)

		return mapError(err)
	})
	if err != nil {
		return Room{}, err
	}

	return room, nil
}

func (db *PgChatRepository) GetRoom(ctx context.Context, id int) (Room, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+roomColumns+" FROM rooms r WHERE r.id = $1",
		id,
	)

	var room Room
	err := scanRoom(row, &room)

	return room, mapError(err)
}

func (db *PgChatRepository) GroupRoomNameExists(ctx context.Context, name string, excludeRoomId int) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM rooms WHERE is_group AND name = $1 AND id <> $2)",
		name,
		excludeRoomId,
	).Scan(&exists)

	return exists, err
}

func (db *PgChatRepository) UpdateRoom(ctx context.Context, id int, params UpdateRoomParams) (Room, error) {
	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.Name != nil {
		add("name", *params.Name)
	}
	if params.Description != nil {
		add("description", *params.Description)
	}
	if params.State != nil {
		add("state", *params.State)
	}
	if params.City != nil {
		add("city", *params.City)
	}
	if params.IsGroup != nil {
		add("is_group", *params.IsGroup)
	}
	if params.IsInviteOnly != nil {
		add("is_invite_only", *params.IsInviteOnly)
	}
	if params.Image != nil {
		args = append(args, *params.Image)
		sets = append(sets, fmt.Sprintf("image = NULLIF($%d, '')", len(args)))
	}
	sets = append(sets, "updated_at = NOW()")

	args = append(args, id)
	query := fmt.Sprintf(
		"UPDATE rooms AS r SET %s WHERE r.id = $%d RETURNING %s",
		strings.Join(sets, ", "),
		len(args),
		roomColumns,
	)

	var room Room
	err := scanRoom(db.conn.QueryRowContext(ctx, query, args...), &room)

	return room, mapError(err)
}

func (db *PgChatRepository) ListRoomStats(ctx context.Context) ([]RoomStats, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+roomColumns+", COUNT(m.account_id) FROM rooms r "+
			"LEFT JOIN memberships m ON m.room_id = r.id "+
			"GROUP BY r.id ORDER BY COUNT(m.account_id) DESC, r.id ASC",
	)
	if err != nil {
		return nil, fmt.Errorf("list room stats: %w", err)
	}
	defer rows.Close()

	var rooms []RoomStats
	for rows.Next() {
		var rs RoomStats
		if err := scanRoom(rows, &rs.Room, &rs.MemberCount); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		rooms = append(rooms, rs)
	}

	return rooms, rows.Err()
}
