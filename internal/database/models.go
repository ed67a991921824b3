package database

import "time"

type Role string

const (
	RoleOwner     Role = "OWNER"
	RoleModerator Role = "MODERATOR"
	RoleMember    Role = "MEMBER"
)

// CanModerate reports whether the role may manage other members.
func (r Role) CanModerate() bool {
	return r == RoleOwner || r == RoleModerator
}

type JoinRequestStatus string

const (
	JoinRequestPending  JoinRequestStatus = "PENDING"
	JoinRequestApproved JoinRequestStatus = "APPROVED"
	JoinRequestDenied   JoinRequestStatus = "DENIED"
)

type User struct {
	Id           int
	Username     string
	EmailAddress string
	PasswordHash string
	ProfileImage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Room struct {
	Id           int
	Name         string
	Description  string
	State        string
	City         string
	IsGroup      bool
	IsInviteOnly bool
	Image        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RoomStats is a room together with its current member count.
type RoomStats struct {
	Room
	MemberCount int
}

type Membership struct {
	RoomId     int
	UserId     int
	Role       Role
	LastReadAt *time.Time
	JoinedAt   time.Time
	User       User
	Room       Room
}

type JoinRequest struct {
	RoomId      int
	UserId      int
	Status      JoinRequestStatus
	RequestedAt time.Time
	User        User
}

type Message struct {
	Id              int
	RoomId          int
	SenderId        int
	Content         string
	ParentMessageId *int
	IsEdited        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Sender          User
	Attachments     []Attachment
	// Parent is resolved one level deep and is nil when the parent is gone.
	Parent *Message
}

type Attachment struct {
	Id        int
	MessageId int
	Key       string
	FileType  string
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}

type CreateRoomParams struct {
	Name         string
	Description  string
	State        string
	City         string
	IsGroup      bool
	IsInviteOnly bool
	Image        string
	OwnerId      int
}

// UpdateRoomParams holds a partial update; nil fields are left unchanged.
type UpdateRoomParams struct {
	Name         *string
	Description  *string
	State        *string
	City         *string
	IsGroup      *bool
	IsInviteOnly *bool
	Image        *string
}

type RemoveMemberParams struct {
	RoomId      int
	ActorId     int
	ActorRole   Role
	UserId      int
	TargetRoles []Role
}

type CreateMessageParams struct {
	RoomId          int
	SenderId        int
	Content         string
	ParentMessageId *int
	Attachments     []AttachmentParams
}

type AttachmentParams struct {
	Key      string
	FileType string
}
