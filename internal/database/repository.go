package database

import (
	"context"
	"time"
)

type ChatRepository interface {
	Ping(ctx context.Context) error

	CreateAccount(ctx context.Context, params CreateAccountParams) (User, error)
	GetAccountById(ctx context.Context, id int) (User, error)
	GetAccountByEmail(ctx context.Context, email string) (User, error)

	// CreateRoom inserts the room and the owner's membership in one transaction.
	CreateRoom(ctx context.Context, params CreateRoomParams) (Room, error)
	GetRoom(ctx context.Context, id int) (Room, error)
	GroupRoomNameExists(ctx context.Context, name string, excludeRoomId int) (bool, error)
	UpdateRoom(ctx context.Context, id int, params UpdateRoomParams) (Room, error)
	ListRoomStats(ctx context.Context) ([]RoomStats, error)

	GetMembership(ctx context.Context, roomId, userId int) (Membership, error)
	ListMembers(ctx context.Context, roomId int) ([]Membership, error)
	ListMembershipsForUser(ctx context.Context, userId int) ([]Membership, error)
	// Membership writes lock the room row, so they apply one at a time per
	// room and each decides from the current roles.
	CreateMembership(ctx context.Context, roomId, userId int, role Role) (Membership, error)
	// LeaveRoom deletes the user's membership. An OWNER may only leave a room
	// it is the last member of, otherwise ErrOwnerNotAlone.
	LeaveRoom(ctx context.Context, roomId, userId int) error
	// RemoveMember deletes the target's membership when the actor still holds
	// ActorRole and the target still holds one of TargetRoles. A changed role
	// is reported as ErrConflict.
	RemoveMember(ctx context.Context, params RemoveMemberParams) error
	TransferOwnership(ctx context.Context, roomId, fromUserId, toUserId int) error
	MarkRead(ctx context.Context, roomId, userId int) (time.Time, error)

	GetJoinRequest(ctx context.Context, roomId, userId int) (JoinRequest, error)
	ListJoinRequestsForUser(ctx context.Context, userId int) ([]JoinRequest, error)
	ListPendingJoinRequests(ctx context.Context, roomId int) ([]JoinRequest, error)
	CreateJoinRequest(ctx context.Context, roomId, userId int) (JoinRequest, error)
	// ApproveJoinRequest resolves a PENDING request and inserts the MEMBER
	// membership in one transaction. It returns ErrConflict when the request
	// is no longer pending.
	ApproveJoinRequest(ctx context.Context, roomId, userId int) (Membership, error)
	DenyJoinRequest(ctx context.Context, roomId, userId int) error

	CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error)
	GetMessage(ctx context.Context, id int) (Message, error)
	UpdateMessageContent(ctx context.Context, id int, content string) (Message, error)
	DeleteMessage(ctx context.Context, id int) error
	// ListMessages returns up to limit messages with an id lower than
	// beforeId, newest first. A beforeId of zero starts at the newest message.
	ListMessages(ctx context.Context, roomId, beforeId, limit int) ([]Message, error)
	CountMessages(ctx context.Context, roomId int) (int, error)
	// CountUnread counts messages authored by others after since. A nil since
	// counts every message from others.
	CountUnread(ctx context.Context, roomId, userId int, since *time.Time) (int, error)
	GetLastMessage(ctx context.Context, roomId int) (Message, error)
}
