package chat

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/npezzotti/roamchat/internal/database"
	"github.com/npezzotti/roamchat/internal/fanout"
	"github.com/npezzotti/roamchat/internal/types"
)

const (
	JoinStatusJoined    = "joined"
	JoinStatusRequested = "requested"

	ActionApprove = "approve"
	ActionDeny    = "deny"
)

// Join adds the user to an open room, or files a pending join request for an
// invite-only room.
func (s *Service) Join(ctx context.Context, userId, roomId int) (types.JoinResult, error) {
	room, err := s.db.GetRoom(ctx, roomId)
	if errors.Is(err, database.ErrNotFound) {
		return types.JoinResult{}, notFoundError("chat room not found")
	}
	if err != nil {
		return types.JoinResult{}, s.internalError("join", err, "room_id", roomId)
	}

	if _, err := s.db.GetMembership(ctx, roomId, userId); err == nil {
		return types.JoinResult{}, conflictError("you are already a member of this chat room", nil)
	} else if !errors.Is(err, database.ErrNotFound) {
		return types.JoinResult{}, s.internalError("join", err, "room_id", roomId, "user_id", userId)
	}

	if room.IsInviteOnly {
		return s.requestToJoin(ctx, userId, roomId)
	}

	m, err := s.db.CreateMembership(ctx, roomId, userId, database.RoleMember)
	if errors.Is(err, database.ErrConflict) {
		return types.JoinResult{}, conflictError("you are already a member of this chat room", err)
	}
	if err != nil {
		return types.JoinResult{}, s.internalError("join", err, "room_id", roomId, "user_id", userId)
	}

	s.publish(ctx, fanout.RoomTopic(roomId), fanout.EventMemberJoined, types.MembershipChange{
		RoomId: roomId,
		UserId: userId,
		Role:   string(m.Role),
	})

	if full, err := s.db.GetMembership(ctx, roomId, userId); err == nil {
		m = full
	}
	member := toMember(m)

	return types.JoinResult{Status: JoinStatusJoined, Member: &member}, nil
}

func (s *Service) requestToJoin(ctx context.Context, userId, roomId int) (types.JoinResult, error) {
	if _, err := s.db.GetJoinRequest(ctx, roomId, userId); err == nil {
		return types.JoinResult{}, conflictError("a join request for this chat room already exists", nil)
	} else if !errors.Is(err, database.ErrNotFound) {
		return types.JoinResult{}, s.internalError("join", err, "room_id", roomId, "user_id", userId)
	}

	jr, err := s.db.CreateJoinRequest(ctx, roomId, userId)
	if errors.Is(err, database.ErrConflict) {
		return types.JoinResult{}, conflictError("a join request for this chat room already exists", err)
	}
	if err != nil {
		return types.JoinResult{}, s.internalError("join", err, "room_id", roomId, "user_id", userId)
	}

	s.stats.Incr(metricJoinRequests)
	s.publish(ctx, fanout.RoomTopic(roomId), fanout.EventJoinRequestCreated, types.MembershipChange{
		RoomId: roomId,
		UserId: userId,
		Status: string(jr.Status),
	})

	req := toJoinRequest(jr)

	return types.JoinResult{Status: JoinStatusRequested, JoinRequest: &req}, nil
}

func (s *Service) requireModerator(ctx context.Context, op string, roomId, actorId int) (database.Membership, error) {
	m, err := s.requireMembership(ctx, op, roomId, actorId,
		forbiddenError("you are not a member of this chat room"))
	if err != nil {
		return database.Membership{}, err
	}
	if !m.Role.CanModerate() {
		return database.Membership{}, forbiddenError("only owners and moderators can perform this action")
	}

	return m, nil
}

// HandleJoinRequest approves or denies a pending join request.
func (s *Service) HandleJoinRequest(ctx context.Context, actorId, roomId, targetUserId int, action string) (types.JoinRequest, error) {
	if action != ActionApprove && action != ActionDeny {
		return types.JoinRequest{}, validationError("action must be approve or deny")
	}

	if _, err := s.requireModerator(ctx, "handle_join_request", roomId, actorId); err != nil {
		return types.JoinRequest{}, err
	}

	jr, err := s.db.GetJoinRequest(ctx, roomId, targetUserId)
	if errors.Is(err, database.ErrNotFound) {
		return types.JoinRequest{}, notFoundError("join request not found")
	}
	if err != nil {
		return types.JoinRequest{}, s.internalError("handle_join_request", err, "room_id", roomId, "user_id", targetUserId)
	}
	if jr.Status != database.JoinRequestPending {
		return types.JoinRequest{}, conflictError("join request has already been resolved", nil)
	}

	if action == ActionApprove {
		_, err = s.db.ApproveJoinRequest(ctx, roomId, targetUserId)
		jr.Status = database.JoinRequestApproved
	} else {
		err = s.db.DenyJoinRequest(ctx, roomId, targetUserId)
		jr.Status = database.JoinRequestDenied
	}
	switch {
	case errors.Is(err, database.ErrConflict):
		return types.JoinRequest{}, conflictError("join request has already been resolved", err)
	case errors.Is(err, database.ErrNotFound):
		return types.JoinRequest{}, notFoundError("join request not found")
	case err != nil:
		return types.JoinRequest{}, s.internalError("handle_join_request", err, "room_id", roomId, "user_id", targetUserId)
	}

	s.publish(ctx, fanout.RoomTopic(roomId), fanout.EventJoinRequestResolved, types.MembershipChange{
		RoomId:  roomId,
		UserId:  targetUserId,
		ActorId: actorId,
		Status:  string(jr.Status),
	})
	if jr.Status == database.JoinRequestApproved {
		s.publish(ctx, fanout.RoomTopic(roomId), fanout.EventMemberJoined, types.MembershipChange{
			RoomId:  roomId,
			UserId:  targetUserId,
			ActorId: actorId,
			Role:    string(database.RoleMember),
		})
	}

	return toJoinRequest(jr), nil
}

// ListJoinRequests returns the room's pending requests, oldest first.
func (s *Service) ListJoinRequests(ctx context.Context, actorId, roomId int) ([]types.JoinRequest, error) {
	if _, err := s.requireModerator(ctx, "list_join_requests", roomId, actorId); err != nil {
		return nil, err
	}

	pending, err := s.db.ListPendingJoinRequests(ctx, roomId)
	if err != nil {
		return nil, s.internalError("list_join_requests", err, "room_id", roomId)
	}

	requests := make([]types.JoinRequest, len(pending))
	for i, jr := range pending {
		requests[i] = toJoinRequest(jr)
	}

	return requests, nil
}

// RemoveMember deletes another user's membership. Owners may remove anyone;
// moderators may only remove plain members. The store re-checks both roles
// when it deletes, so a concurrent role change fails with a conflict.
func (s *Service) RemoveMember(ctx context.Context, actorId, roomId, targetUserId int) error {
	if actorId == targetUserId {
		return validationError("use leave to remove yourself from a chat room")
	}

	actor, err := s.requireModerator(ctx, "remove_member", roomId, actorId)
	if err != nil {
		return err
	}

	target, err := s.requireMembership(ctx, "remove_member", roomId, targetUserId,
		notFoundError("user is not a member of this chat room"))
	if err != nil {
		return err
	}

	removable := []database.Role{database.RoleMember, database.RoleModerator}
	if actor.Role == database.RoleModerator {
		removable = []database.Role{database.RoleMember}
	}
	if !slices.Contains(removable, target.Role) {
		return forbiddenError("moderators can only remove members")
	}

	err = s.db.RemoveMember(ctx, database.RemoveMemberParams{
		RoomId:      roomId,
		ActorId:     actorId,
		ActorRole:   actor.Role,
		UserId:      targetUserId,
		TargetRoles: removable,
	})
	switch {
	case errors.Is(err, database.ErrConflict):
		return conflictError("membership roles changed concurrently", err)
	case errors.Is(err, database.ErrNotFound):
		return notFoundError("user is not a member of this chat room")
	case err != nil:
		return s.internalError("remove_member", err, "room_id", roomId, "user_id", targetUserId)
	}

	s.publish(ctx, fanout.RoomTopic(roomId), fanout.EventMemberRemoved, types.MembershipChange{
		RoomId:  roomId,
		UserId:  targetUserId,
		ActorId: actorId,
	})

	return nil
}

// Leave removes the caller from the room. An owner may only leave when no
// other members remain.
func (s *Service) Leave(ctx context.Context, userId, roomId int) error {
	err := s.db.LeaveRoom(ctx, roomId, userId)
	switch {
	case errors.Is(err, database.ErrOwnerNotAlone):
		return forbiddenError("transfer ownership before leaving this chat room")
	case errors.Is(err, database.ErrNotFound):
		return notFoundError("you are not a member of this chat room")
	case err != nil:
		return s.internalError("leave", err, "room_id", roomId, "user_id", userId)
	}

	s.publish(ctx, fanout.RoomTopic(roomId), fanout.EventMemberLeft, types.MembershipChange{
		RoomId: roomId,
		UserId: userId,
	})

	return nil
}

// TransferOwnership promotes newOwnerId to OWNER and demotes the caller to
// MEMBER atomically.
func (s *Service) TransferOwnership(ctx context.Context, currentOwnerId, roomId, newOwnerId int) error {
	m, err := s.requireMembership(ctx, "transfer_ownership", roomId, currentOwnerId,
		forbiddenError("only the owner can transfer ownership"))
	if err != nil {
		return err
	}
	if m.Role != database.RoleOwner {
		return forbiddenError("only the owner can transfer ownership")
	}

	if currentOwnerId == newOwnerId {
		return validationError("you already own this chat room")
	}

	if _, err := s.requireMembership(ctx, "transfer_ownership", roomId, newOwnerId,
		notFoundError("new owner must be a member of this chat room")); err != nil {
		return err
	}

	err = s.db.TransferOwnership(ctx, roomId, currentOwnerId, newOwnerId)
	switch {
	case errors.Is(err, database.ErrConflict):
		return conflictError("ownership changed concurrently", err)
	case errors.Is(err, database.ErrNotFound):
		return notFoundError("new owner must be a member of this chat room")
	case err != nil:
		return s.internalError("transfer_ownership", err, "room_id", roomId)
	}

	s.publish(ctx, fanout.RoomTopic(roomId), fanout.EventOwnershipTransferred, types.MembershipChange{
		RoomId:  roomId,
		UserId:  newOwnerId,
		ActorId: currentOwnerId,
		Role:    string(database.RoleOwner),
	})

	return nil
}

// MarkRead records that the user has read the room up to now.
func (s *Service) MarkRead(ctx context.Context, userId, roomId int) (time.Time, error) {
	readAt, err := s.db.MarkRead(ctx, roomId, userId)
	if errors.Is(err, database.ErrNotFound) {
		return time.Time{}, notFoundError("you are not a member of this chat room")
	}
	if err != nil {
		return time.Time{}, s.internalError("mark_read", err, "room_id", roomId, "user_id", userId)
	}

	s.publish(ctx, fanout.RoomTopic(roomId), fanout.EventConversationUpdated, types.ConversationUpdate{
		RoomId: roomId,
		ReadBy: &userId,
		ReadAt: timePtr(readAt),
	})

	return readAt, nil
}

func (s *Service) UnreadCounts(ctx context.Context, userId int) ([]types.UnreadCount, error) {
	memberships, err := s.db.ListMembershipsForUser(ctx, userId)
	if err != nil {
		return nil, s.internalError("unread_counts", err, "user_id", userId)
	}

	counts := make([]types.UnreadCount, 0, len(memberships))
	for _, m := range memberships {
		n, err := s.db.CountUnread(ctx, m.RoomId, userId, m.LastReadAt)
		if err != nil {
			return nil, s.internalError("unread_counts", err, "room_id", m.RoomId)
		}

		counts = append(counts, types.UnreadCount{
			RoomId:      m.RoomId,
			RoomName:    m.Room.Name,
			UnreadCount: n,
		})
	}

	return counts, nil
}
