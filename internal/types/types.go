package types

import (
	"time"
)

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	ProfileImage string    `json:"profile_image,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

type Room struct {
	Id           int       `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	State        string    `json:"state"`
	City         string    `json:"city"`
	IsGroup      bool      `json:"is_group"`
	IsInviteOnly bool      `json:"is_invite_only"`
	Image        *string   `json:"image"`
	Members      []Member  `json:"members,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Member struct {
	User       User       `json:"user"`
	Role       string     `json:"role"`
	JoinedAt   time.Time  `json:"joined_at"`
	LastReadAt *time.Time `json:"last_read_at"`
}

// UserRoom is a room the user belongs to, as shown in the conversation list.
type UserRoom struct {
	Room
	UnreadCount        int       `json:"unread_count"`
	LastMessageSnippet string    `json:"last_message_snippet"`
	LastMessageTime    time.Time `json:"last_message_time"`
}

type Pagination struct {
	CurrentPage  int `json:"current_page"`
	TotalPages   int `json:"total_pages"`
	TotalItems   int `json:"total_items"`
	ItemsPerPage int `json:"items_per_page"`
}

type UserRoomList struct {
	Rooms      []UserRoom `json:"rooms"`
	Pagination Pagination `json:"pagination"`
}

// DirectoryRoom is a room in the public directory annotated for the viewer.
type DirectoryRoom struct {
	Room
	MemberCount              int     `json:"member_count"`
	IsMember                 bool    `json:"is_member"`
	JoinRequestStatus        *string `json:"join_request_status"`
	IsRequestedByCurrentUser bool    `json:"is_requested_by_current_user"`
}

type RoomDirectory struct {
	Rooms      []DirectoryRoom `json:"rooms"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalRooms int             `json:"total_rooms"`
	HasMore    bool            `json:"has_more"`
}

type Attachment struct {
	Id       int    `json:"id"`
	Key      string `json:"key"`
	FileType string `json:"file_type"`
}

type Message struct {
	Id              int          `json:"id"`
	RoomId          int          `json:"room_id"`
	Content         *string      `json:"content"`
	Sender          User         `json:"sender"`
	Attachments     []Attachment `json:"attachments"`
	ParentMessageId *int         `json:"parent_message_id"`
	Parent          *Message     `json:"parent_message,omitempty"`
	IsEdited        bool         `json:"is_edited"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

type MessagePagination struct {
	CurrentPage   int  `json:"current_page,omitempty"`
	PageSize      int  `json:"page_size"`
	TotalMessages int  `json:"total_messages"`
	HasMore       bool `json:"has_more"`
	NextCursor    *int `json:"next_cursor"`
}

type MessagePage struct {
	Room       *Room             `json:"room,omitempty"`
	Messages   []Message         `json:"messages"`
	Pagination MessagePagination `json:"pagination"`
}

type RoomDetails struct {
	Room            Room              `json:"room"`
	CurrentUserRole string            `json:"current_user_role"`
	Messages        []Message         `json:"messages"`
	Pagination      MessagePagination `json:"pagination"`
	UnreadCount     int               `json:"unread_count"`
}

type JoinRequest struct {
	RoomId      int       `json:"room_id"`
	User        User      `json:"user"`
	Status      string    `json:"status"`
	RequestedAt time.Time `json:"requested_at"`
}

// JoinResult reports whether a join produced a membership or a pending request.
type JoinResult struct {
	Status      string       `json:"status"`
	Member      *Member      `json:"member,omitempty"`
	JoinRequest *JoinRequest `json:"join_request,omitempty"`
}

type UnreadCount struct {
	RoomId      int    `json:"room_id"`
	RoomName    string `json:"room_name"`
	UnreadCount int    `json:"unread_count"`
}

type UploadURL struct {
	UploadUrl string `json:"upload_url"`
	FileKey   string `json:"file_key"`
}

type ConversationUpdate struct {
	RoomId             int        `json:"room_id"`
	LastMessageSnippet string     `json:"last_message_snippet,omitempty"`
	LastMessageTime    *time.Time `json:"last_message_time,omitempty"`
	ReadBy             *int       `json:"read_by,omitempty"`
	ReadAt             *time.Time `json:"read_at,omitempty"`
}

type MessageDeleted struct {
	RoomId    int `json:"room_id"`
	MessageId int `json:"message_id"`
}

type MembershipChange struct {
	RoomId  int    `json:"room_id"`
	UserId  int    `json:"user_id"`
	ActorId int    `json:"actor_id,omitempty"`
	Role    string `json:"role,omitempty"`
	Status  string `json:"status,omitempty"`
}
