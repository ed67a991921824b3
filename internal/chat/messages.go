package chat

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/npezzotti/roamchat/internal/database"
	"github.com/npezzotti/roamchat/internal/fanout"
	"github.com/npezzotti/roamchat/internal/types"
)

type AttachmentInput struct {
	Key      string
	FileType string
}

func toAttachmentParams(in []AttachmentInput) ([]database.AttachmentParams, error) {
	params := make([]database.AttachmentParams, 0, len(in))
	for _, a := range in {
		key := strings.TrimSpace(a.Key)
		if key == "" {
			return nil, validationError("attachment key is required")
		}
		params = append(params, database.AttachmentParams{Key: key, FileType: strings.TrimSpace(a.FileType)})
	}

	return params, nil
}

// SendMessage posts a message to a room the sender belongs to. A message must
// carry text, attachments, or both.
func (s *Service) SendMessage(ctx context.Context, senderId, roomId int, content string, attachments []AttachmentInput) (types.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" && len(attachments) == 0 {
		return types.Message{}, validationError("message must have content or attachments")
	}

	atts, err := toAttachmentParams(attachments)
	if err != nil {
		return types.Message{}, err
	}

	if _, err := s.requireMembership(ctx, "send_message", roomId, senderId,
		forbiddenError("you are not a member of this chat room")); err != nil {
		return types.Message{}, err
	}

	return s.createMessage(ctx, "send_message", database.CreateMessageParams{
		RoomId:      roomId,
		SenderId:    senderId,
		Content:     content,
		Attachments: atts,
	})
}

// Reply posts a text message threaded under parentId, in the parent's room.
// Replies carry no attachments.
func (s *Service) Reply(ctx context.Context, senderId, parentId int, content string) (types.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return types.Message{}, validationError("reply content is required")
	}

	parent, err := s.db.GetMessage(ctx, parentId)
	if errors.Is(err, database.ErrNotFound) {
		return types.Message{}, notFoundError("parent message not found")
	}
	if err != nil {
		return types.Message{}, s.internalError("reply", err, "message_id", parentId)
	}

	if _, err := s.requireMembership(ctx, "reply", parent.RoomId, senderId,
		forbiddenError("you are not a member of this chat room")); err != nil {
		return types.Message{}, err
	}

	return s.createMessage(ctx, "reply", database.CreateMessageParams{
		RoomId:          parent.RoomId,
		SenderId:        senderId,
		Content:         content,
		ParentMessageId: &parent.Id,
	})
}

func (s *Service) createMessage(ctx context.Context, op string, params database.CreateMessageParams) (types.Message, error) {
	msg, err := s.db.CreateMessage(ctx, params)
	if errors.Is(err, database.ErrNotFound) {
		return types.Message{}, notFoundError("chat room not found")
	}
	if err != nil {
		return types.Message{}, s.internalError(op, err, "room_id", params.RoomId, "user_id", params.SenderId)
	}

	s.stats.Incr(metricMessagesSent)

	out := toMessage(msg)
	topic := fanout.RoomTopic(msg.RoomId)
	s.publish(ctx, topic, fanout.EventNewMessage, out)
	s.publish(ctx, topic, fanout.EventConversationUpdated, types.ConversationUpdate{
		RoomId:             msg.RoomId,
		LastMessageSnippet: snippet(msg, emptyMessageSnippet),
		LastMessageTime:    timePtr(msg.CreatedAt),
	})

	return out, nil
}

// EditMessage replaces the text of a message. Only its sender may edit it.
func (s *Service) EditMessage(ctx context.Context, editorId, messageId int, content string) (types.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return types.Message{}, validationError("message content is required")
	}

	msg, err := s.db.GetMessage(ctx, messageId)
	if errors.Is(err, database.ErrNotFound) {
		return types.Message{}, notFoundError("message not found")
	}
	if err != nil {
		return types.Message{}, s.internalError("edit_message", err, "message_id", messageId)
	}
	if msg.SenderId != editorId {
		return types.Message{}, forbiddenError("you can only edit your own messages")
	}

	updated, err := s.db.UpdateMessageContent(ctx, messageId, content)
	if errors.Is(err, database.ErrNotFound) {
		return types.Message{}, notFoundError("message not found")
	}
	if err != nil {
		return types.Message{}, s.internalError("edit_message", err, "message_id", messageId)
	}

	out := toMessage(updated)
	s.publish(ctx, fanout.RoomTopic(updated.RoomId), fanout.EventMessageEdited, out)

	return out, nil
}

// DeleteMessage removes a message and its attachments. The sender and the
// room's owners and moderators may delete it. Stored files are removed on a
// best-effort basis before the row is deleted.
func (s *Service) DeleteMessage(ctx context.Context, actorId, messageId int) error {
	msg, err := s.db.GetMessage(ctx, messageId)
	if errors.Is(err, database.ErrNotFound) {
		return notFoundError("message not found")
	}
	if err != nil {
		return s.internalError("delete_message", err, "message_id", messageId)
	}

	if msg.SenderId != actorId {
		m, err := s.requireMembership(ctx, "delete_message", msg.RoomId, actorId,
			forbiddenError("you can only delete your own messages"))
		if err != nil {
			return err
		}
		if !m.Role.CanModerate() {
			return forbiddenError("you can only delete your own messages")
		}
	}

	for _, a := range msg.Attachments {
		s.deleteFile(ctx, a.Key)
	}

	err = s.db.DeleteMessage(ctx, messageId)
	if errors.Is(err, database.ErrNotFound) {
		return notFoundError("message not found")
	}
	if err != nil {
		return s.internalError("delete_message", err, "message_id", messageId)
	}

	s.publish(ctx, fanout.RoomTopic(msg.RoomId), fanout.EventMessageDeleted, types.MessageDeleted{
		RoomId:    msg.RoomId,
		MessageId: messageId,
	})

	return nil
}

// ListMessages returns one page of a room's history in display order, oldest
// first. Pass the previous page's next cursor to walk further back.
func (s *Service) ListMessages(ctx context.Context, roomId, requesterId, pageSize int, cursor *int) (types.MessagePage, error) {
	if _, err := s.requireMembership(ctx, "list_messages", roomId, requesterId,
		forbiddenError("you are not a member of this chat room")); err != nil {
		return types.MessagePage{}, err
	}

	room, err := s.db.GetRoom(ctx, roomId)
	if errors.Is(err, database.ErrNotFound) {
		return types.MessagePage{}, notFoundError("chat room not found")
	}
	if err != nil {
		return types.MessagePage{}, s.internalError("list_messages", err, "room_id", roomId)
	}

	page, err := s.messagePage(ctx, "list_messages", roomId, pageSize, cursor)
	if err != nil {
		return types.MessagePage{}, err
	}

	r := toRoom(room)
	page.Room = &r

	return page, nil
}

func clampPageSize(n int) int {
	switch {
	case n <= 0:
		return DefaultMessagePageSize
	case n > MaxMessagePageSize:
		return MaxMessagePageSize
	default:
		return n
	}
}

// messagePage fetches the limit messages preceding cursor, newest first, and
// returns them reversed for display.
func (s *Service) messagePage(ctx context.Context, op string, roomId, limit int, cursor *int) (types.MessagePage, error) {
	limit = clampPageSize(limit)

	before := 0
	if cursor != nil {
		c, err := s.db.GetMessage(ctx, *cursor)
		if errors.Is(err, database.ErrNotFound) || (err == nil && c.RoomId != roomId) {
			return types.MessagePage{}, validationError("invalid cursor")
		}
		if err != nil {
			return types.MessagePage{}, s.internalError(op, err, "room_id", roomId, "cursor", *cursor)
		}
		before = c.Id
	}

	batch, err := s.db.ListMessages(ctx, roomId, before, limit)
	if err != nil {
		return types.MessagePage{}, s.internalError(op, err, "room_id", roomId)
	}

	total, err := s.db.CountMessages(ctx, roomId)
	if err != nil {
		return types.MessagePage{}, s.internalError(op, err, "room_id", roomId)
	}

	pagination := types.MessagePagination{
		PageSize:      limit,
		TotalMessages: total,
		HasMore:       len(batch) == limit,
	}
	if len(batch) > 0 {
		oldest := batch[len(batch)-1].Id
		pagination.NextCursor = &oldest
	}

	slices.Reverse(batch)
	messages := make([]types.Message, len(batch))
	for i, m := range batch {
		messages[i] = toMessage(m)
	}

	return types.MessagePage{Messages: messages, Pagination: pagination}, nil
}
