package database

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
)

type memberKey struct {
	roomId int
	userId int
}

// MemoryChatRepository is an in-process ChatRepository. It enforces the same
// unique constraints as the PostgreSQL schema and serializes every call, so
// each method behaves as a single transaction.
type MemoryChatRepository struct {
	mu          sync.Mutex
	lastTick    time.Time
	nextId      map[string]int
	accounts    map[int]User
	rooms       map[int]Room
	memberships map[memberKey]Membership
	requests    map[memberKey]JoinRequest
	messages    map[int]Message
	attachments map[int][]Attachment
}

func NewMemoryChatRepository() *MemoryChatRepository {
	return &MemoryChatRepository{
		nextId:      make(map[string]int),
		accounts:    make(map[int]User),
		rooms:       make(map[int]Room),
		memberships: make(map[memberKey]Membership),
		requests:    make(map[memberKey]JoinRequest),
		messages:    make(map[int]Message),
		attachments: make(map[int][]Attachment),
	}
}

// now returns a strictly increasing timestamp.
func (m *MemoryChatRepository) now() time.Time {
	t := time.Now().UTC()
	if !t.After(m.lastTick) {
		t = m.lastTick.Add(time.Microsecond)
	}
	m.lastTick = t

	return t
}

func (m *MemoryChatRepository) id(table string) int {
	m.nextId[table]++
	return m.nextId[table]
}

func (m *MemoryChatRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryChatRepository) CreateAccount(_ context.Context, params CreateAccountParams) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.accounts {
		if strings.EqualFold(u.EmailAddress, params.EmailAddress) {
			return User{}, fmt.Errorf("%w: accounts_email_key", ErrConflict)
		}
	}

	now := m.now()
	u := User{
		Id:           m.id("accounts"),
		Username:     params.Username,
		EmailAddress: params.EmailAddress,
		PasswordHash: params.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.accounts[u.Id] = u

	return u, nil
}

func (m *MemoryChatRepository) GetAccountById(_ context.Context, id int) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.accounts[id]
	if !ok {
		return User{}, fmt.Errorf("account %d: %w", id, ErrNotFound)
	}

	return u, nil
}

func (m *MemoryChatRepository) GetAccountByEmail(_ context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.accounts {
		if strings.EqualFold(u.EmailAddress, email) {
			return u, nil
		}
	}

	return User{}, fmt.Errorf("account %q: %w", email, ErrNotFound)
}

func (m *MemoryChatRepository) groupNameTaken(name string, excludeRoomId int) bool {
	for _, r := range m.rooms {
		if r.IsGroup && r.Name == name && r.Id != excludeRoomId {
			return true
		}
	}

	return false
}

func (m *MemoryChatRepository) CreateRoom(_ context.Context, params CreateRoomParams) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if params.IsGroup && m.groupNameTaken(params.Name, 0) {
		return Room{}, fmt.Errorf("%w: rooms_group_name_key", ErrConflict)
	}
	if _, ok := m.accounts[params.OwnerId]; !ok {
		return Room{}, fmt.Errorf("owner %d: %w", params.OwnerId, ErrNotFound)
	}

	now := m.now()
	room := Room{
		Id:           m.id("rooms"),
		Name:         params.Name,
		Description:  params.Description,
		State:        params.State,
		City:         params.City,
		IsGroup:      params.IsGroup,
		IsInviteOnly: params.IsInviteOnly,
		Image:        params.Image,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.rooms[room.Id] = room
	m.memberships[memberKey{room.Id, params.OwnerId}] = Membership{
		RoomId:   room.Id,
		UserId:   params.OwnerId,
		Role:     RoleOwner,
		JoinedAt: now,
	}

	return room, nil
}

func (m *MemoryChatRepository) GetRoom(_ context.Context, id int) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[id]
	if !ok {
		return Room{}, fmt.Errorf("room %d: %w", id, ErrNotFound)
	}

	return room, nil
}

func (m *MemoryChatRepository) GroupRoomNameExists(_ context.Context, name string, excludeRoomId int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.groupNameTaken(name, excludeRoomId), nil
}

func (m *MemoryChatRepository) UpdateRoom(_ context.Context, id int, params UpdateRoomParams) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[id]
	if !ok {
		return Room{}, fmt.Errorf("room %d: %w", id, ErrNotFound)
	}

	if params.Name != nil {
		room.Name = *params.Name
	}
	if params.Description != nil {
		room.Description = *params.Description
	}
	if params.State != nil {
		room.State = *params.State
	}
	if params.City != nil {
		room.City = *params.City
	}
	if params.IsGroup != nil {
		room.IsGroup = *params.IsGroup
	}
	if params.IsInviteOnly != nil {
		room.IsInviteOnly = *params.IsInviteOnly
	}
	if params.Image != nil {
		room.Image = *params.Image
	}

	if room.IsGroup && m.groupNameTaken(room.Name, room.Id) {
		return Room{}, fmt.Errorf("%w: rooms_group_name_key", ErrConflict)
	}

	room.UpdatedAt = m.now()
	m.rooms[id] = room

	return room, nil
}

func (m *MemoryChatRepository) ListRoomStats(_ context.Context) ([]RoomStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[int]int)
	for key := range m.memberships {
		counts[key.roomId]++
	}

	stats := make([]RoomStats, 0, len(m.rooms))
	for _, room := range m.rooms {
		stats = append(stats, RoomStats{Room: room, MemberCount: counts[room.Id]})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].MemberCount != stats[j].MemberCount {
			return stats[i].MemberCount > stats[j].MemberCount
		}
		return stats[i].Id < stats[j].Id
	})

	return stats, nil
}

func (m *MemoryChatRepository) withUser(ms Membership) Membership {
	u := m.accounts[ms.UserId]
	ms.User = User{Id: u.Id, Username: u.Username, ProfileImage: u.ProfileImage}

	return ms
}

func (m *MemoryChatRepository) GetMembership(_ context.Context, roomId, userId int) (Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms, ok := m.memberships[memberKey{roomId, userId}]
	if !ok {
		return Membership{}, fmt.Errorf("membership %d/%d: %w", roomId, userId, ErrNotFound)
	}

	return m.withUser(ms), nil
}

func (m *MemoryChatRepository) ListMembers(_ context.Context, roomId int) ([]Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	members := make([]Membership, 0)
	for key, ms := range m.memberships {
		if key.roomId == roomId {
			members = append(members, m.withUser(ms))
		}
	}
	sort.Slice(members, func(i, j int) bool {
		if !members[i].JoinedAt.Equal(members[j].JoinedAt) {
			return members[i].JoinedAt.Before(members[j].JoinedAt)
		}
		return members[i].UserId < members[j].UserId
	})

	return members, nil
}

func (m *MemoryChatRepository) ListMembershipsForUser(_ context.Context, userId int) ([]Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	memberships := make([]Membership, 0)
	for key, ms := range m.memberships {
		if key.userId == userId {
			ms.Room = m.rooms[key.roomId]
			memberships = append(memberships, ms)
		}
	}
	sort.Slice(memberships, func(i, j int) bool {
		return memberships[i].RoomId < memberships[j].RoomId
	})

	return memberships, nil
}

func (m *MemoryChatRepository) insertMembership(roomId, userId int, role Role) (Membership, error) {
	key := memberKey{roomId, userId}
	if _, ok := m.memberships[key]; ok {
		return Membership{}, fmt.Errorf("%w: memberships_pkey", ErrConflict)
	}
	if _, ok := m.rooms[roomId]; !ok {
		return Membership{}, fmt.Errorf("room %d: %w", roomId, ErrNotFound)
	}

	ms := Membership{
		RoomId:   roomId,
		UserId:   userId,
		Role:     role,
		JoinedAt: m.now(),
	}
	m.memberships[key] = ms

	return ms, nil
}

func (m *MemoryChatRepository) CreateMembership(_ context.Context, roomId, userId int, role Role) (Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.insertMembership(roomId, userId, role)
}

func (m *MemoryChatRepository) LeaveRoom(_ context.Context, roomId, userId int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memberKey{roomId, userId}
	ms, ok := m.memberships[key]
	if !ok {
		return fmt.Errorf("membership %d/%d: %w", roomId, userId, ErrNotFound)
	}
	if ms.Role == RoleOwner && m.countMembers(roomId) > 1 {
		return ErrOwnerNotAlone
	}
	delete(m.memberships, key)

	return nil
}

func (m *MemoryChatRepository) RemoveMember(_ context.Context, params RemoveMemberParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	actor, ok := m.memberships[memberKey{params.RoomId, params.ActorId}]
	if !ok || actor.Role != params.ActorRole {
		return fmt.Errorf("%w: actor role changed", ErrConflict)
	}

	key := memberKey{params.RoomId, params.UserId}
	target, ok := m.memberships[key]
	if !ok {
		return fmt.Errorf("membership %d/%d: %w", params.RoomId, params.UserId, ErrNotFound)
	}
	if !slices.Contains(params.TargetRoles, target.Role) {
		return fmt.Errorf("%w: member role changed", ErrConflict)
	}
	delete(m.memberships, key)

	return nil
}

func (m *MemoryChatRepository) countMembers(roomId int) int {
	count := 0
	for key := range m.memberships {
		if key.roomId == roomId {
			count++
		}
	}

	return count
}

func (m *MemoryChatRepository) TransferOwnership(_ context.Context, roomId, fromUserId, toUserId int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from, ok := m.memberships[memberKey{roomId, fromUserId}]
	if !ok || from.Role != RoleOwner {
		return fmt.Errorf("%w: current owner changed", ErrConflict)
	}
	to, ok := m.memberships[memberKey{roomId, toUserId}]
	if !ok {
		return fmt.Errorf("membership %d/%d: %w", roomId, toUserId, ErrNotFound)
	}

	from.Role = RoleMember
	to.Role = RoleOwner
	m.memberships[memberKey{roomId, fromUserId}] = from
	m.memberships[memberKey{roomId, toUserId}] = to

	return nil
}

func (m *MemoryChatRepository) MarkRead(_ context.Context, roomId, userId int) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memberKey{roomId, userId}
	ms, ok := m.memberships[key]
	if !ok {
		return time.Time{}, fmt.Errorf("membership %d/%d: %w", roomId, userId, ErrNotFound)
	}

	readAt := m.now()
	ms.LastReadAt = &readAt
	m.memberships[key] = ms

	return readAt, nil
}

func (m *MemoryChatRepository) GetJoinRequest(_ context.Context, roomId, userId int) (JoinRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	jr, ok := m.requests[memberKey{roomId, userId}]
	if !ok {
		return JoinRequest{}, fmt.Errorf("join request %d/%d: %w", roomId, userId, ErrNotFound)
	}

	return jr, nil
}

func (m *MemoryChatRepository) ListJoinRequestsForUser(_ context.Context, userId int) ([]JoinRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	requests := make([]JoinRequest, 0)
	for key, jr := range m.requests {
		if key.userId == userId {
			requests = append(requests, jr)
		}
	}

	return requests, nil
}

func (m *MemoryChatRepository) ListPendingJoinRequests(_ context.Context, roomId int) ([]JoinRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	requests := make([]JoinRequest, 0)
	for key, jr := range m.requests {
		if key.roomId == roomId && jr.Status == JoinRequestPending {
			u := m.accounts[key.userId]
			jr.User = User{Id: u.Id, Username: u.Username, EmailAddress: u.EmailAddress, ProfileImage: u.ProfileImage}
			requests = append(requests, jr)
		}
	}
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].RequestedAt.Before(requests[j].RequestedAt)
	})

	return requests, nil
}

func (m *MemoryChatRepository) CreateJoinRequest(_ context.Context, roomId, userId int) (JoinRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memberKey{roomId, userId}
	if _, ok := m.requests[key]; ok {
		return JoinRequest{}, fmt.Errorf("%w: join_requests_pkey", ErrConflict)
	}

	jr := JoinRequest{
		RoomId:      roomId,
		UserId:      userId,
		Status:      JoinRequestPending,
		RequestedAt: m.now(),
	}
	m.requests[key] = jr

	return jr, nil
}

func (m *MemoryChatRepository) resolve(roomId, userId int, status JoinRequestStatus) error {
	key := memberKey{roomId, userId}
	jr, ok := m.requests[key]
	if !ok {
		return fmt.Errorf("join request %d/%d: %w", roomId, userId, ErrNotFound)
	}
	if jr.Status != JoinRequestPending {
		return fmt.Errorf("%w: join request is not pending", ErrConflict)
	}

	jr.Status = status
	m.requests[key] = jr

	return nil
}

func (m *MemoryChatRepository) ApproveJoinRequest(_ context.Context, roomId, userId int) (Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memberKey{roomId, userId}
	if _, ok := m.memberships[key]; ok {
		return Membership{}, fmt.Errorf("%w: memberships_pkey", ErrConflict)
	}
	if err := m.resolve(roomId, userId, JoinRequestApproved); err != nil {
		return Membership{}, err
	}

	return m.insertMembership(roomId, userId, RoleMember)
}

func (m *MemoryChatRepository) DenyJoinRequest(_ context.Context, roomId, userId int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.resolve(roomId, userId, JoinRequestDenied)
}

// load returns a copy of the stored message with sender and attachments.
func (m *MemoryChatRepository) load(id int, withParent bool) (Message, bool) {
	msg, ok := m.messages[id]
	if !ok {
		return Message{}, false
	}

	u := m.accounts[msg.SenderId]
	msg.Sender = User{Id: u.Id, Username: u.Username, ProfileImage: u.ProfileImage}
	msg.Attachments = append(make([]Attachment, 0), m.attachments[id]...)
	msg.Parent = nil
	if withParent && msg.ParentMessageId != nil {
		if parent, ok := m.load(*msg.ParentMessageId, false); ok {
			msg.Parent = &parent
		}
	}

	return msg, true
}

func (m *MemoryChatRepository) CreateMessage(_ context.Context, params CreateMessageParams) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[params.RoomId]; !ok {
		return Message{}, fmt.Errorf("room %d: %w", params.RoomId, ErrNotFound)
	}

	now := m.now()
	msg := Message{
		Id:              m.id("messages"),
		RoomId:          params.RoomId,
		SenderId:        params.SenderId,
		Content:         params.Content,
		ParentMessageId: params.ParentMessageId,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	m.messages[msg.Id] = msg

	for _, att := range params.Attachments {
		m.attachments[msg.Id] = append(m.attachments[msg.Id], Attachment{
			Id:        m.id("attachments"),
			MessageId: msg.Id,
			Key:       att.Key,
			FileType:  att.FileType,
		})
	}

	created, _ := m.load(msg.Id, true)

	return created, nil
}

func (m *MemoryChatRepository) GetMessage(_ context.Context, id int) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.load(id, true)
	if !ok {
		return Message{}, fmt.Errorf("message %d: %w", id, ErrNotFound)
	}

	return msg, nil
}

func (m *MemoryChatRepository) UpdateMessageContent(_ context.Context, id int, content string) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.messages[id]
	if !ok {
		return Message{}, fmt.Errorf("message %d: %w", id, ErrNotFound)
	}

	msg.Content = content
	msg.IsEdited = true
	msg.UpdatedAt = m.now()
	m.messages[id] = msg

	updated, _ := m.load(id, true)

	return updated, nil
}

func (m *MemoryChatRepository) DeleteMessage(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.messages[id]; !ok {
		return fmt.Errorf("message %d: %w", id, ErrNotFound)
	}
	delete(m.messages, id)
	delete(m.attachments, id)

	return nil
}

func (m *MemoryChatRepository) ListMessages(_ context.Context, roomId, beforeId, limit int) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]int, 0)
	for id, msg := range m.messages {
		if msg.RoomId == roomId && (beforeId <= 0 || id < beforeId) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	slices.Reverse(ids)
	if limit >= 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	msgs := make([]Message, 0, len(ids))
	for _, id := range ids {
		msg, _ := m.load(id, true)
		msgs = append(msgs, msg)
	}

	return msgs, nil
}

func (m *MemoryChatRepository) CountMessages(_ context.Context, roomId int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, msg := range m.messages {
		if msg.RoomId == roomId {
			count++
		}
	}

	return count, nil
}

func (m *MemoryChatRepository) CountUnread(_ context.Context, roomId, userId int, since *time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, msg := range m.messages {
		if msg.RoomId != roomId || msg.SenderId == userId {
			continue
		}
		if since == nil || msg.CreatedAt.After(*since) {
			count++
		}
	}

	return count, nil
}

func (m *MemoryChatRepository) GetLastMessage(ctx context.Context, roomId int) (Message, error) {
	msgs, err := m.ListMessages(ctx, roomId, 0, 1)
	if err != nil {
		return Message{}, err
	}
	if len(msgs) == 0 {
		return Message{}, fmt.Errorf("room %d has no messages: %w", roomId, ErrNotFound)
	}

	return msgs[0], nil
}
