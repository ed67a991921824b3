package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const messageColumns = "msg.id, msg.room_id, msg.sender_id, COALESCE(msg.content, ''), msg.parent_message_id, " +
	"msg.is_edited, msg.created_at, msg.updated_at, a.username, COALESCE(a.profile_image, '')"

const messageFrom = " FROM messages msg JOIN accounts a ON a.id = msg.sender_id"

func scanMessage(row rowScanner, msg *Message) error {
	err := row.Scan(
		&msg.Id,
		&msg.RoomId,
		&msg.SenderId,
		&msg.Content,
		&msg.ParentMessageId,
		&msg.IsEdited,
		&msg.CreatedAt,
		&msg.UpdatedAt,
		&msg.Sender.Username,
		&msg.Sender.ProfileImage,
	)
	msg.Sender.Id = msg.SenderId
	msg.Attachments = make([]Attachment, 0)

	return err
}

func (db *PgChatRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	var id int
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			"INSERT INTO messages (room_id, sender_id, content, parent_message_id) "+
				"VALUES ($1, $2, NULLIF($3, ''), $4) RETURNING id",
			params.RoomId,
			params.SenderId,
			params.Content,
			params.ParentMessageId,
		).Scan(&id)
		if err != nil {
			return mapError(err)
		}

		for _, att := range params.Attachments {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO attachments (message_id, file_key, file_type) VALUES ($1, $2, $3)",
				id,
				att.Key,
				att.FileType,
			)
			if err != nil {
				return fmt.Errorf("insert attachment: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return Message{}, err
	}

	return db.GetMessage(ctx, id)
}

func (db *PgChatRepository) GetMessage(ctx context.Context, id int) (Message, error) {
	msgs, err := db.queryMessages(ctx, "SELECT "+messageColumns+messageFrom+" WHERE msg.id = $1", id)
	if err != nil {
		return Message{}, err
	}
	if len(msgs) == 0 {
		return Message{}, fmt.Errorf("message %d: %w", id, ErrNotFound)
	}

	return msgs[0], nil
}

func (db *PgChatRepository) UpdateMessageContent(ctx context.Context, id int, content string) (Message, error) {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE messages SET content = $2, is_edited = TRUE, updated_at = NOW() WHERE id = $1",
		id,
		content,
	)
	if err != nil {
		return Message{}, err
	}
	if err := expectAffected(res); err != nil {
		return Message{}, err
	}

	return db.GetMessage(ctx, id)
}

func (db *PgChatRepository) DeleteMessage(ctx context.Context, id int) error {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM messages WHERE id = $1", id)
	if err != nil {
		return err
	}

	return expectAffected(res)
}

func (db *PgChatRepository) ListMessages(ctx context.Context, roomId, beforeId, limit int) ([]Message, error) {
	if beforeId <= 0 {
		beforeId = 1<<31 - 1
	}

	return db.queryMessages(ctx,
		"SELECT "+messageColumns+messageFrom+
			" WHERE msg.room_id = $1 AND msg.id < $2 ORDER BY msg.id DESC LIMIT $3",
		roomId,
		beforeId,
		limit,
	)
}

func (db *PgChatRepository) CountMessages(ctx context.Context, roomId int) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE room_id = $1",
		roomId,
	).Scan(&count)

	return count, err
}

func (db *PgChatRepository) CountUnread(ctx context.Context, roomId, userId int, since *time.Time) (int, error) {
	after := time.Unix(0, 0).UTC()
	if since != nil {
		after = *since
	}

	var count int
	err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE room_id = $1 AND sender_id <> $2 AND created_at > $3",
		roomId,
		userId,
		after,
	).Scan(&count)

	return count, err
}

func (db *PgChatRepository) GetLastMessage(ctx context.Context, roomId int) (Message, error) {
	msgs, err := db.ListMessages(ctx, roomId, 0, 1)
	if err != nil {
		return Message{}, err
	}
	if len(msgs) == 0 {
		return Message{}, fmt.Errorf("room %d has no messages: %w", roomId, ErrNotFound)
	}

	return msgs[0], nil
}

// queryMessages loads messages and resolves their attachments and one level
// of parent messages.
func (db *PgChatRepository) queryMessages(ctx context.Context, query string, args ...any) ([]Message, error) {
	msgs, err := db.scanMessages(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var parentIds []int64
	for _, msg := range msgs {
		if msg.ParentMessageId != nil {
			parentIds = append(parentIds, int64(*msg.ParentMessageId))
		}
	}

	parents := make(map[int]*Message)
	if len(parentIds) > 0 {
		found, err := db.scanMessages(ctx,
			"SELECT "+messageColumns+messageFrom+" WHERE msg.id = ANY($1)",
			pq.Array(parentIds),
		)
		if err != nil {
			return nil, fmt.Errorf("load parents: %w", err)
		}
		if err := db.attachFiles(ctx, found); err != nil {
			return nil, err
		}
		for i := range found {
			parents[found[i].Id] = &found[i]
		}
	}

	if err := db.attachFiles(ctx, msgs); err != nil {
		return nil, err
	}
	for i := range msgs {
		if msgs[i].ParentMessageId != nil {
			msgs[i].Parent = parents[*msgs[i].ParentMessageId]
		}
	}

	return msgs, nil
}

func (db *PgChatRepository) scanMessages(ctx context.Context, query string, args ...any) ([]Message, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]Message, 0)
	for rows.Next() {
		var msg Message
		if err := scanMessage(rows, &msg); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		msgs = append(msgs, msg)
	}

	return msgs, rows.Err()
}

func (db *PgChatRepository) attachFiles(ctx context.Context, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}

	ids := make([]int64, len(msgs))
	index := make(map[int]int, len(msgs))
	for i, msg := range msgs {
		ids[i] = int64(msg.Id)
		index[msg.Id] = i
	}

	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, message_id, file_key, file_type FROM attachments WHERE message_id = ANY($1) ORDER BY id ASC",
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("load attachments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var att Attachment
		if err := rows.Scan(&att.Id, &att.MessageId, &att.Key, &att.FileType); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}

		i := index[att.MessageId]
		msgs[i].Attachments = append(msgs[i].Attachments, att)
	}

	return rows.Err()
}
