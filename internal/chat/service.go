// Package chat implements room membership, the join-request workflow,
// messaging and unread tracking on top of a ChatRepository. Every mutation
// that changes what other members see is published to the fan-out channel
// after it commits.
package chat

import (
	"context"
	"errors"
	"mime"
	"strings"
	"time"

	"github.com/npezzotti/roamchat/internal/database"
	"github.com/npezzotti/roamchat/internal/fanout"
	"github.com/npezzotti/roamchat/internal/filestore"
	"github.com/npezzotti/roamchat/internal/stats"
	"github.com/npezzotti/roamchat/internal/types"
	"github.com/rs/zerolog"
)

const (
	DefaultMessagePageSize = 20
	MaxMessagePageSize     = 100
)

const (
	metricRoomsCreated  = "NumRoomsCreated"
	metricMessagesSent  = "NumMessagesSent"
	metricJoinRequests  = "NumJoinRequests"
	metricFileDeleteErr = "NumFileDeleteFailures"
)

type FileStore interface {
	Put(ctx context.Context, folder, fileName, contentType string) (filestore.Upload, error)
	Delete(ctx context.Context, key string) error
}

type Service struct {
	log   zerolog.Logger
	db    database.ChatRepository
	files FileStore
	pub   fanout.Publisher
	stats stats.StatsProvider
}

// NewService wires the chat service. files may be nil, in which case
// uploads are unavailable and file deletions are skipped.
func NewService(logger zerolog.Logger, db database.ChatRepository, files FileStore, pub fanout.Publisher, su stats.StatsProvider) *Service {
	for _, m := range []string{metricRoomsCreated, metricMessagesSent, metricJoinRequests, metricFileDeleteErr} {
		su.RegisterMetric(m)
	}

	return &Service{
		log:   logger.With().Str("component", "chat").Logger(),
		db:    db,
		files: files,
		pub:   pub,
		stats: su,
	}
}

// internalError logs err with the operation and entity ids and hides it from
// the caller.
func (s *Service) internalError(op string, err error, fields ...any) *Error {
	s.log.Error().Err(err).Str("op", op).Fields(fields).Msg("chat operation failed")

	return &Error{Kind: KindInternal, Message: "internal server error", Err: err}
}

// publish emits an event once the triggering write has committed. Failures
// are logged and never reach the caller.
func (s *Service) publish(ctx context.Context, topic, eventType string, data any) {
	ev, err := fanout.NewEvent(topic, eventType, data)
	if err != nil {
		s.log.Error().Err(err).Str("event", eventType).Msg("build event")
		return
	}

	if err := s.pub.Publish(context.WithoutCancel(ctx), ev); err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Str("topic", topic).Msg("publish event")
	}
}

// deleteFile removes key from the file store. Failures are logged only.
func (s *Service) deleteFile(ctx context.Context, key string) {
	if s.files == nil || key == "" {
		return
	}

	if err := s.files.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.stats.Incr(metricFileDeleteErr)
		s.log.Warn().Err(err).Str("key", key).Msg("delete file")
	}
}

// requireMembership loads the caller's membership, reporting absence with
// the given kind.
func (s *Service) requireMembership(ctx context.Context, op string, roomId, userId int, missing *Error) (database.Membership, error) {
	m, err := s.db.GetMembership(ctx, roomId, userId)
	if errors.Is(err, database.ErrNotFound) {
		return database.Membership{}, missing
	}
	if err != nil {
		return database.Membership{}, s.internalError(op, err, "room_id", roomId, "user_id", userId)
	}

	return m, nil
}

// UploadURL reserves a file-store key in one of the known upload folders and
// returns a presigned URL bound to contentType.
func (s *Service) UploadURL(ctx context.Context, userId int, folder, fileName, contentType string) (types.UploadURL, error) {
	if _, _, err := mime.ParseMediaType(contentType); err != nil {
		return types.UploadURL{}, validationError("file_type must be a valid MIME type")
	}
	if !filestore.ValidFolder(folder) {
		return types.UploadURL{}, validationError("folder must be one of " + strings.Join(filestore.Folders, ", "))
	}
	if s.files == nil {
		return types.UploadURL{}, &Error{Kind: KindInternal, Message: "file uploads are not configured"}
	}

	up, err := s.files.Put(ctx, folder, fileName, contentType)
	if err != nil {
		return types.UploadURL{}, s.internalError("upload_url", err, "user_id", userId)
	}

	return types.UploadURL{UploadUrl: up.UploadURL, FileKey: up.Key}, nil
}

// Members answers membership lookups straight from the store. The websocket
// hub uses it to authorize subscriptions.
type Members struct {
	db database.ChatRepository
}

func NewMembers(db database.ChatRepository) Members {
	return Members{db: db}
}

// IsMember reports whether userId belongs to roomId.
func (m Members) IsMember(ctx context.Context, roomId, userId int) (bool, error) {
	_, err := m.db.GetMembership(ctx, roomId, userId)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}

	return err == nil, err
}

func toUser(u database.User) types.User {
	return types.User{
		Id:           u.Id,
		Username:     u.Username,
		ProfileImage: u.ProfileImage,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

func toRoom(r database.Room) types.Room {
	return types.Room{
		Id:           r.Id,
		Name:         r.Name,
		Description:  r.Description,
		State:        r.State,
		City:         r.City,
		IsGroup:      r.IsGroup,
		IsInviteOnly: r.IsInviteOnly,
		Image:        optional(r.Image),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func toMember(m database.Membership) types.Member {
	return types.Member{
		User:       toUser(m.User),
		Role:       string(m.Role),
		JoinedAt:   m.JoinedAt,
		LastReadAt: m.LastReadAt,
	}
}

func toMembers(ms []database.Membership) []types.Member {
	members := make([]types.Member, len(ms))
	for i, m := range ms {
		members[i] = toMember(m)
	}

	return members
}

func toMessage(m database.Message) types.Message {
	msg := types.Message{
		Id:              m.Id,
		RoomId:          m.RoomId,
		Content:         optional(m.Content),
		Sender:          toUser(m.Sender),
		Attachments:     make([]types.Attachment, len(m.Attachments)),
		ParentMessageId: m.ParentMessageId,
		IsEdited:        m.IsEdited,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	for i, a := range m.Attachments {
		msg.Attachments[i] = types.Attachment{Id: a.Id, Key: a.Key, FileType: a.FileType}
	}
	if m.Parent != nil {
		parent := toMessage(*m.Parent)
		parent.Parent = nil
		msg.Parent = &parent
	}

	return msg
}

func toJoinRequest(jr database.JoinRequest) types.JoinRequest {
	return types.JoinRequest{
		RoomId: jr.RoomId,
		User: types.User{
			Id:           jr.UserId,
			Username:     jr.User.Username,
			EmailAddress: jr.User.EmailAddress,
			ProfileImage: jr.User.ProfileImage,
		},
		Status:      string(jr.Status),
		RequestedAt: jr.RequestedAt,
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
