package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/npezzotti/roamchat/internal/database"
	"github.com/npezzotti/roamchat/internal/types"
)

const minRoomNameLen = 3

type CreateRoomInput struct {
	Name         string
	Description  string
	State        string
	City         string
	IsGroup      *bool
	IsInviteOnly bool
	Image        string
}

// UpdateRoomInput is a partial update; nil fields are left unchanged.
type UpdateRoomInput struct {
	Name         *string
	Description  *string
	State        *string
	City         *string
	IsGroup      *bool
	IsInviteOnly *bool
	Image        *string
}

func validRoomName(name string) bool {
	return utf8.RuneCountInString(name) >= minRoomNameLen
}

func (s *Service) CreateRoom(ctx context.Context, creatorId int, in CreateRoomInput) (types.Room, error) {
	name := strings.TrimSpace(in.Name)
	if !validRoomName(name) {
		return types.Room{}, validationError("room name must be at least 3 characters")
	}

	isGroup := true
	if in.IsGroup != nil {
		isGroup = *in.IsGroup
	}

	if isGroup {
		exists, err := s.db.GroupRoomNameExists(ctx, name, 0)
		if err != nil {
			return types.Room{}, s.internalError("create_room", err, "user_id", creatorId)
		}
		if exists {
			return types.Room{}, conflictError("a group with this name already exists", nil)
		}
	}

	room, err := s.db.CreateRoom(ctx, database.CreateRoomParams{
		Name:         name,
		Description:  strings.TrimSpace(in.Description),
		State:        strings.TrimSpace(in.State),
		City:         strings.TrimSpace(in.City),
		IsGroup:      isGroup,
		IsInviteOnly: in.IsInviteOnly,
		Image:        in.Image,
		OwnerId:      creatorId,
	})
	if errors.Is(err, database.ErrConflict) {
		return types.Room{}, conflictError("a group with this name already exists", err)
	}
	if err != nil {
		return types.Room{}, s.internalError("create_room", err, "user_id", creatorId)
	}

	s.stats.Incr(metricRoomsCreated)
	s.log.Info().Int("room_id", room.Id).Int("user_id", creatorId).Msg("room created")

	return s.roomWithMembers(ctx, "create_room", room)
}

func (s *Service) roomWithMembers(ctx context.Context, op string, room database.Room) (types.Room, error) {
	members, err := s.db.ListMembers(ctx, room.Id)
	if err != nil {
		return types.Room{}, s.internalError(op, err, "room_id", room.Id)
	}

	r := toRoom(room)
	r.Members = toMembers(members)

	return r, nil
}

func (s *Service) UpdateRoom(ctx context.Context, roomId, requesterId int, in UpdateRoomInput) (types.Room, error) {
	room, err := s.db.GetRoom(ctx, roomId)
	if errors.Is(err, database.ErrNotFound) {
		return types.Room{}, notFoundError("chat room not found")
	}
	if err != nil {
		return types.Room{}, s.internalError("update_room", err, "room_id", roomId)
	}

	m, err := s.requireMembership(ctx, "update_room", roomId, requesterId,
		forbiddenError("only owners and moderators can update this room"))
	if err != nil {
		return types.Room{}, err
	}
	if !m.Role.CanModerate() {
		return types.Room{}, forbiddenError("only owners and moderators can update this room")
	}

	params := database.UpdateRoomParams{
		Description:  trimmed(in.Description),
		State:        trimmed(in.State),
		City:         trimmed(in.City),
		IsGroup:      in.IsGroup,
		IsInviteOnly: in.IsInviteOnly,
		Image:        in.Image,
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if !validRoomName(name) {
			return types.Room{}, validationError("room name must be at least 3 characters")
		}
		params.Name = &name

		isGroup := room.IsGroup
		if in.IsGroup != nil {
			isGroup = *in.IsGroup
		}
		if isGroup {
			exists, err := s.db.GroupRoomNameExists(ctx, name, roomId)
			if err != nil {
				return types.Room{}, s.internalError("update_room", err, "room_id", roomId)
			}
			if exists {
				return types.Room{}, conflictError("a group with this name already exists", nil)
			}
		}
	}

	updated, err := s.db.UpdateRoom(ctx, roomId, params)
	switch {
	case errors.Is(err, database.ErrConflict):
		return types.Room{}, conflictError("a group with this name already exists", err)
	case errors.Is(err, database.ErrNotFound):
		return types.Room{}, notFoundError("chat room not found")
	case err != nil:
		return types.Room{}, s.internalError("update_room", err, "room_id", roomId)
	}

	if in.Image != nil && room.Image != "" && *in.Image != room.Image {
		s.deleteFile(ctx, room.Image)
	}

	return s.roomWithMembers(ctx, "update_room", updated)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}

	t := strings.TrimSpace(*s)
	return &t
}

func validatePage(page, pageSize int) error {
	if page < 1 || pageSize < 1 {
		return validationError("page and page size must be positive integers")
	}

	return nil
}

func totalPages(total, pageSize int) int {
	return (total + pageSize - 1) / pageSize
}

// pageBounds returns the slice bounds of page within total items.
func pageBounds(page, pageSize, total int) (int, int) {
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}

	end := start + pageSize
	if end > total {
		end = total
	}

	return start, end
}

// ListRoomsForUser returns the user's rooms, most recently active first,
// each with its unread count and a preview of the last message.
func (s *Service) ListRoomsForUser(ctx context.Context, userId, page, pageSize int) (types.UserRoomList, error) {
	if err := validatePage(page, pageSize); err != nil {
		return types.UserRoomList{}, err
	}

	memberships, err := s.db.ListMembershipsForUser(ctx, userId)
	if err != nil {
		return types.UserRoomList{}, s.internalError("list_rooms_for_user", err, "user_id", userId)
	}

	rooms := make([]types.UserRoom, 0, len(memberships))
	for _, m := range memberships {
		unread, err := s.db.CountUnread(ctx, m.RoomId, userId, m.LastReadAt)
		if err != nil {
			return types.UserRoomList{}, s.internalError("list_rooms_for_user", err, "room_id", m.RoomId)
		}

		item := types.UserRoom{
			Room:               toRoom(m.Room),
			UnreadCount:        unread,
			LastMessageSnippet: noMessagesSnippet,
			LastMessageTime:    m.Room.CreatedAt,
		}

		last, err := s.db.GetLastMessage(ctx, m.RoomId)
		switch {
		case err == nil:
			item.LastMessageSnippet = snippet(last, noMessagesSnippet)
			item.LastMessageTime = last.CreatedAt
		case !errors.Is(err, database.ErrNotFound):
			return types.UserRoomList{}, s.internalError("list_rooms_for_user", err, "room_id", m.RoomId)
		}

		rooms = append(rooms, item)
	}

	sort.SliceStable(rooms, func(i, j int) bool {
		return rooms[i].LastMessageTime.After(rooms[j].LastMessageTime)
	})

	start, end := pageBounds(page, pageSize, len(rooms))

	return types.UserRoomList{
		Rooms: rooms[start:end],
		Pagination: types.Pagination{
			CurrentPage:  page,
			TotalPages:   totalPages(len(rooms), pageSize),
			TotalItems:   len(rooms),
			ItemsPerPage: pageSize,
		},
	}, nil
}

// ListRooms returns the room directory ordered by member count. The full
// ordered set is built before the page is cut from it.
func (s *Service) ListRooms(ctx context.Context, userId, page, pageSize int) (types.RoomDirectory, error) {
	if err := validatePage(page, pageSize); err != nil {
		return types.RoomDirectory{}, err
	}

	all, err := s.db.ListRoomStats(ctx)
	if err != nil {
		return types.RoomDirectory{}, s.internalError("list_rooms", err, "user_id", userId)
	}

	memberships, err := s.db.ListMembershipsForUser(ctx, userId)
	if err != nil {
		return types.RoomDirectory{}, s.internalError("list_rooms", err, "user_id", userId)
	}
	member := make(map[int]bool, len(memberships))
	for _, m := range memberships {
		member[m.RoomId] = true
	}

	requests, err := s.db.ListJoinRequestsForUser(ctx, userId)
	if err != nil {
		return types.RoomDirectory{}, s.internalError("list_rooms", err, "user_id", userId)
	}
	status := make(map[int]database.JoinRequestStatus, len(requests))
	for _, jr := range requests {
		status[jr.RoomId] = jr.Status
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].MemberCount > all[j].MemberCount
	})

	start, end := pageBounds(page, pageSize, len(all))
	rooms := make([]types.DirectoryRoom, 0, end-start)
	for _, rs := range all[start:end] {
		entry := types.DirectoryRoom{
			Room:        toRoom(rs.Room),
			MemberCount: rs.MemberCount,
			IsMember:    member[rs.Id],
		}
		if st, ok := status[rs.Id]; ok {
			entry.JoinRequestStatus = optional(string(st))
			entry.IsRequestedByCurrentUser = st == database.JoinRequestPending
		}

		rooms = append(rooms, entry)
	}

	return types.RoomDirectory{
		Rooms:      rooms,
		Page:       page,
		PageSize:   pageSize,
		TotalRooms: len(all),
		HasMore:    page*pageSize < len(all),
	}, nil
}

type RoomDetailsQuery struct {
	Page   int
	Limit  int
	Cursor *int
}

func (s *Service) GetRoomDetails(ctx context.Context, roomId, requesterId int, q RoomDetailsQuery) (types.RoomDetails, error) {
	m, err := s.requireMembership(ctx, "room_details", roomId, requesterId,
		forbiddenError("you are not a member of this chat room"))
	if err != nil {
		return types.RoomDetails{}, err
	}

	room, err := s.db.GetRoom(ctx, roomId)
	if errors.Is(err, database.ErrNotFound) {
		return types.RoomDetails{}, notFoundError("chat room not found")
	}
	if err != nil {
		return types.RoomDetails{}, s.internalError("room_details", err, "room_id", roomId)
	}

	r, err := s.roomWithMembers(ctx, "room_details", room)
	if err != nil {
		return types.RoomDetails{}, err
	}

	page, err := s.messagePage(ctx, "room_details", roomId, q.Limit, q.Cursor)
	if err != nil {
		return types.RoomDetails{}, err
	}
	if q.Page < 1 {
		q.Page = 1
	}
	page.Pagination.CurrentPage = q.Page

	unread, err := s.db.CountUnread(ctx, roomId, requesterId, m.LastReadAt)
	if err != nil {
		return types.RoomDetails{}, s.internalError("room_details", err, "room_id", roomId)
	}

	return types.RoomDetails{
		Room:            r,
		CurrentUserRole: string(m.Role),
		Messages:        page.Messages,
		Pagination:      page.Pagination,
		UnreadCount:     unread,
	}, nil
}
