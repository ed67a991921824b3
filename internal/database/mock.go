package database

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Ping(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockChatRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}

func (m *MockChatRepository) GetAccountById(ctx context.Context, id int) (User, error) {
	args := m.Called(id)
	return args.Get(0).(User), args.Error(1)
}

func (m *MockChatRepository) GetAccountByEmail(ctx context.Context, email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}

func (m *MockChatRepository) CreateRoom(ctx context.Context, params CreateRoomParams) (Room, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Error(1)
}

func (m *MockChatRepository) GetRoom(ctx context.Context, id int) (Room, error) {
	args := m.Called(id)
	return args.Get(0).(Room), args.Error(1)
}

func (m *MockChatRepository) GroupRoomNameExists(ctx context.Context, name string, excludeRoomId int) (bool, error) {
	args := m.Called(name, excludeRoomId)
	return args.Bool(0), args.Error(1)
}

func (m *MockChatRepository) UpdateRoom(ctx context.Context, id int, params UpdateRoomParams) (Room, error) {
	args := m.Called(id, params)
	return args.Get(0).(Room), args.Error(1)
}

func (m *MockChatRepository) ListRoomStats(ctx context.Context) ([]RoomStats, error) {
	args := m.Called()
	if v, ok := args.Get(0).([]RoomStats); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockChatRepository) GetMembership(ctx context.Context, roomId int, userId int) (Membership, error) {
	args := m.Called(roomId, userId)
	return args.Get(0).(Membership), args.Error(1)
}

func (m *MockChatRepository) ListMembers(ctx context.Context, roomId int) ([]Membership, error) {
	args := m.Called(roomId)
	if v, ok := args.Get(0).([]Membership); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockChatRepository) ListMembershipsForUser(ctx context.Context, userId int) ([]Membership, error) {
	args := m.Called(userId)
	if v, ok := args.Get(0).([]Membership); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockChatRepository) CreateMembership(ctx context.Context, roomId int, userId int, role Role) (Membership, error) {
	args := m.Called(roomId, userId, role)
	return args.Get(0).(Membership), args.Error(1)
}

func (m *MockChatRepository) LeaveRoom(ctx context.Context, roomId int, userId int) error {
	args := m.Called(roomId, userId)
	return args.Error(0)
}

func (m *MockChatRepository) RemoveMember(ctx context.Context, params RemoveMemberParams) error {
	args := m.Called(params)
	return args.Error(0)
}

func (m *MockChatRepository) TransferOwnership(ctx context.Context, roomId int, fromUserId int, toUserId int) error {
	args := m.Called(roomId, fromUserId, toUserId)
	return args.Error(0)
}

func (m *MockChatRepository) MarkRead(ctx context.Context, roomId int, userId int) (time.Time, error) {
	args := m.Called(roomId, userId)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockChatRepository) GetJoinRequest(ctx context.Context, roomId int, userId int) (JoinRequest, error) {
	args := m.Called(roomId, userId)
	return args.Get(0).(JoinRequest), args.Error(1)
}

func (m *MockChatRepository) ListJoinRequestsForUser(ctx context.Context, userId int) ([]JoinRequest, error) {
	args := m.Called(userId)
	if v, ok := args.Get(0).([]JoinRequest); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockChatRepository) ListPendingJoinRequests(ctx context.Context, roomId int) ([]JoinRequest, error) {
	args := m.Called(roomId)
	if v, ok := args.Get(0).([]JoinRequest); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockChatRepository) CreateJoinRequest(ctx context.Context, roomId int, userId int) (JoinRequest, error) {
	args := m.Called(roomId, userId)
	return args.Get(0).(JoinRequest), args.Error(1)
}

func (m *MockChatRepository) ApproveJoinRequest(ctx context.Context, roomId int, userId int) (Membership, error) {
	args := m.Called(roomId, userId)
	return args.Get(0).(Membership), args.Error(1)
}

func (m *MockChatRepository) DenyJoinRequest(ctx context.Context, roomId int, userId int) error {
	args := m.Called(roomId, userId)
	return args.Error(0)
}

func (m *MockChatRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}

func (m *MockChatRepository) GetMessage(ctx context.Context, id int) (Message, error) {
	args := m.Called(id)
	return args.Get(0).(Message), args.Error(1)
}

func (m *MockChatRepository) UpdateMessageContent(ctx context.Context, id int, content string) (Message, error) {
	args := m.Called(id, content)
	return args.Get(0).(Message), args.Error(1)
}

func (m *MockChatRepository) DeleteMessage(ctx context.Context, id int) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockChatRepository) ListMessages(ctx context.Context, roomId int, beforeId int, limit int) ([]Message, error) {
	args := m.Called(roomId, beforeId, limit)
	if v, ok := args.Get(0).([]Message); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockChatRepository) CountMessages(ctx context.Context, roomId int) (int, error) {
	args := m.Called(roomId)
	return args.Int(0), args.Error(1)
}

func (m *MockChatRepository) CountUnread(ctx context.Context, roomId int, userId int, since *time.Time) (int, error) {
	args := m.Called(roomId, userId, since)
	return args.Int(0), args.Error(1)
}

func (m *MockChatRepository) GetLastMessage(ctx context.Context, roomId int) (Message, error) {
	args := m.Called(roomId)
	return args.Get(0).(Message), args.Error(1)
}
