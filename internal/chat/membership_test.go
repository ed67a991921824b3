package chat

import (
	"context"
	"testing"

	"github.com/npezzotti/roamchat/internal/database"
	"github.com/npezzotti/roamchat/internal/fanout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinOpenRoom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.account(t, "owner")
	hiker := env.account(t, "hiker")
	roomId := env.room(t, owner, "trailhead", false)
	env.pub.reset()

	res, err := env.svc.Join(ctx, hiker, roomId)
	require.NoError(t, err)
	assert.Equal(t, JoinStatusJoined, res.Status)
	require.NotNil(t, res.Member)
	assert.Equal(t, "hiker", res.Member.User.Username)
	assert.Equal(t, string(database.RoleMember), res.Member.Role)
	assert.Equal(t, []string{fanout.EventMemberJoined}, env.pub.eventTypes())
	assert.Equal(t, fanout.RoomTopic(roomId), env.pub.events[0].Topic)
	env.assertSingleOwner(t, roomId)

	_, err = env.svc.Join(ctx, hiker, roomId)
	assertKind(t, KindConflict, err)

	_, err = env.svc.Join(ctx, hiker, 999)
	assertKind(t, KindNotFound, err)
}

func TestJoinInviteOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.account(t, "owner")
	member := env.account(t, "member")
	alice := env.account(t, "alice")
	bob := env.account(t, "bob")
	roomId := env.room(t, owner, "hideout", true)
	env.addMember(t, roomId, member, database.RoleMember)

	res, err := env.svc.Join(ctx, alice, roomId)
	require.NoError(t, err)
	assert.Equal(t, JoinStatusRequested, res.Status)
	require.NotNil(t, res.JoinRequest)
	assert.Equal(t, string(database.JoinRequestPending), res.JoinRequest.Status)
	env.su.AssertCalled(t, "Incr", metricJoinRequests)

	assert.False(t, env.isMember(t, roomId, alice), "a request does not grant membership")

	_, err = env.svc.Join(ctx, alice, roomId)
	assertKind(t, KindConflict, err)

	_, err = env.svc.Join(ctx, bob, roomId)
	require.NoError(t, err)

	pending, err := env.svc.ListJoinRequests(ctx, owner, roomId)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "alice", pending[0].User.Username)
	assert.Equal(t, "bob", pending[1].User.Username)

	_, err = env.svc.ListJoinRequests(ctx, member, roomId)
	assertKind(t, KindForbidden, err)

	tcases := []struct {
		name   string
		actor  int
		target int
		action string
		kind   Kind
	}{
		{"bad action", owner, alice, "maybe", KindValidation},
		{"plain member", member, alice, ActionApprove, KindForbidden},
		{"outsider", bob, alice, ActionApprove, KindForbidden},
		{"no request", owner, member, ActionApprove, KindNotFound},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.HandleJoinRequest(ctx, tc.actor, roomId, tc.target, tc.action)
			assertKind(t, tc.kind, err)
		})
	}

	env.pub.reset()
	jr, err := env.svc.HandleJoinRequest(ctx, owner, roomId, alice, ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, string(database.JoinRequestApproved), jr.Status)
	assert.Equal(t, []string{fanout.EventJoinRequestResolved, fanout.EventMemberJoined}, env.pub.eventTypes())

	assert.True(t, env.isMember(t, roomId, alice))
	env.assertSingleOwner(t, roomId)

	_, err = env.svc.HandleJoinRequest(ctx, owner, roomId, alice, ActionDeny)
	assertKind(t, KindConflict, err)

	jr, err = env.svc.HandleJoinRequest(ctx, owner, roomId, bob, ActionDeny)
	require.NoError(t, err)
	assert.Equal(t, string(database.JoinRequestDenied), jr.Status)

	assert.False(t, env.isMember(t, roomId, bob))

	_, err = env.svc.Join(ctx, bob, roomId)
	assertKind(t, KindConflict, err)

	pending, err = env.svc.ListJoinRequests(ctx, owner, roomId)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRemoveMember(t *testing.T) {
	tcases := []struct {
		name       string
		actorRole  database.Role
		targetRole database.Role
		self       bool
		kind       Kind
	}{
		{"owner removes member", database.RoleOwner, database.RoleMember, false, 0},
		{"owner removes moderator", database.RoleOwner, database.RoleModerator, false, 0},
		{"moderator removes member", database.RoleModerator, database.RoleMember, false, 0},
		{"moderator removes moderator", database.RoleModerator, database.RoleModerator, false, KindForbidden},
		{"moderator removes owner", database.RoleModerator, database.RoleOwner, false, KindForbidden},
		{"member removes member", database.RoleMember, database.RoleMember, false, KindForbidden},
		{"self removal", database.RoleOwner, database.RoleOwner, true, KindValidation},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			owner := env.account(t, "owner")
			roomId := env.room(t, owner, "basecamp", false)

			actor, target := owner, owner
			if tc.actorRole != database.RoleOwner {
				actor = env.account(t, "actor")
				env.addMember(t, roomId, actor, tc.actorRole)
			}
			if !tc.self && tc.targetRole != database.RoleOwner {
				target = env.account(t, "target")
				env.addMember(t, roomId, target, tc.targetRole)
			}
			env.pub.reset()

			err := env.svc.RemoveMember(ctx, actor, roomId, target)
			if tc.kind != 0 {
				assertKind(t, tc.kind, err)
				assert.Empty(t, env.pub.events, "failed operations publish nothing")
				return
			}

			require.NoError(t, err)
			assert.False(t, env.isMember(t, roomId, target))
			assert.Equal(t, []string{fanout.EventMemberRemoved}, env.pub.eventTypes())
			env.assertSingleOwner(t, roomId)
		})
	}
}

func TestRemoveMemberMissingTarget(t *testing.T) {
	env := newTestEnv(t)
	owner := env.account(t, "owner")
	stranger := env.account(t, "stranger")
	roomId := env.room(t, owner, "basecamp", false)

	err := env.svc.RemoveMember(context.Background(), owner, roomId, stranger)
	assertKind(t, KindNotFound, err)

	err = env.svc.RemoveMember(context.Background(), stranger, roomId, owner)
	assertKind(t, KindForbidden, err)
}

func TestLeave(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.account(t, "owner")
	member := env.account(t, "member")
	roomId := env.room(t, owner, "basecamp", false)
	env.addMember(t, roomId, member, database.RoleMember)

	err := env.svc.Leave(ctx, owner, roomId)
	assertKind(t, KindForbidden, err)
	env.assertSingleOwner(t, roomId)

	env.pub.reset()
	require.NoError(t, env.svc.Leave(ctx, member, roomId))
	assert.Equal(t, []string{fanout.EventMemberLeft}, env.pub.eventTypes())
	env.assertSingleOwner(t, roomId)

	err = env.svc.Leave(ctx, member, roomId)
	assertKind(t, KindNotFound, err)

	err = env.svc.Leave(ctx, member, 999)
	assertKind(t, KindNotFound, err)

	require.NoError(t, env.svc.Leave(ctx, owner, roomId), "a sole owner may leave")

	members, err := env.repo.ListMembers(ctx, roomId)
	require.NoError(t, err)
	assert.Empty(t, members)
	env.assertSingleOwner(t, roomId)
}

func TestTransferOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.account(t, "owner")
	mod := env.account(t, "mod")
	outsider := env.account(t, "outsider")
	roomId := env.room(t, owner, "basecamp", false)
	env.addMember(t, roomId, mod, database.RoleModerator)

	assertKind(t, KindForbidden, env.svc.TransferOwnership(ctx, mod, roomId, owner))
	assertKind(t, KindValidation, env.svc.TransferOwnership(ctx, owner, roomId, owner))
	assertKind(t, KindNotFound, env.svc.TransferOwnership(ctx, owner, roomId, outsider))

	env.pub.reset()
	require.NoError(t, env.svc.TransferOwnership(ctx, owner, roomId, mod))
	assert.Equal(t, []string{fanout.EventOwnershipTransferred}, env.pub.eventTypes())

	env.assertSingleOwner(t, roomId)
	newOwner, err := env.repo.GetMembership(ctx, roomId, mod)
	require.NoError(t, err)
	assert.Equal(t, database.RoleOwner, newOwner.Role)
	former, err := env.repo.GetMembership(ctx, roomId, owner)
	require.NoError(t, err)
	assert.Equal(t, database.RoleMember, former.Role)

	require.NoError(t, env.svc.Leave(ctx, owner, roomId), "the former owner may leave")
	env.assertSingleOwner(t, roomId)
}

func TestUnreadCountsAndMarkRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.account(t, "alice")
	bob := env.account(t, "bob")
	roomId := env.room(t, alice, "chatter", false)
	otherId := env.room(t, alice, "elsewhere", false)
	env.addMember(t, roomId, bob, database.RoleMember)

	for _, text := range []string{"a", "b", "c"} {
		_, err := env.svc.SendMessage(ctx, alice, roomId, text, nil)
		require.NoError(t, err)
	}
	_, err := env.svc.SendMessage(ctx, bob, roomId, "mine", nil)
	require.NoError(t, err)

	counts, err := env.svc.UnreadCounts(ctx, bob)
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, roomId, counts[0].RoomId)
	assert.Equal(t, "chatter", counts[0].RoomName)
	assert.Equal(t, 3, counts[0].UnreadCount, "own messages are never unread")

	env.pub.reset()
	readAt, err := env.svc.MarkRead(ctx, bob, roomId)
	require.NoError(t, err)
	assert.False(t, readAt.IsZero())
	require.Equal(t, []string{fanout.EventConversationUpdated}, env.pub.eventTypes())
	assert.Equal(t, fanout.RoomTopic(roomId), env.pub.events[0].Topic)

	counts, err = env.svc.UnreadCounts(ctx, bob)
	require.NoError(t, err)
	assert.Zero(t, counts[0].UnreadCount)

	_, err = env.svc.SendMessage(ctx, alice, roomId, "d", nil)
	require.NoError(t, err)

	counts, err = env.svc.UnreadCounts(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[0].UnreadCount)

	_, err = env.svc.MarkRead(ctx, bob, otherId)
	assertKind(t, KindNotFound, err)
}
