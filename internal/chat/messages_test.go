package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"

	"github.com/npezzotti/roamchat/internal/database"
	"github.com/npezzotti/roamchat/internal/fanout"
	"github.com/npezzotti/roamchat/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.account(t, "owner")
	outsider := env.account(t, "outsider")
	roomId := env.room(t, owner, "campfire", false)
	env.pub.reset()

	msg, err := env.svc.SendMessage(ctx, owner, roomId, "  hello there  ", []AttachmentInput{{Key: "rooms/a.png", FileType: "image/png"}})
	require.NoError(t, err)
	require.NotNil(t, msg.Content)
	assert.Equal(t, "hello there", *msg.Content)
	assert.Equal(t, "owner", msg.Sender.Username)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "rooms/a.png", msg.Attachments[0].Key)
	assert.False(t, msg.IsEdited)
	env.su.AssertCalled(t, "Incr", metricMessagesSent)

	assert.Equal(t, []string{fanout.EventNewMessage, fanout.EventConversationUpdated}, env.pub.eventTypes())

	var update types.ConversationUpdate
	require.NoError(t, json.Unmarshal(env.pub.events[1].Data, &update))
	assert.Equal(t, "hello there", update.LastMessageSnippet)
	assert.Equal(t, roomId, update.RoomId)

	page, err := env.svc.ListMessages(ctx, roomId, owner, 0, nil)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, msg.Id, page.Messages[0].Id)
	assert.Equal(t, msg.Attachments, page.Messages[0].Attachments)

	tcases := []struct {
		name        string
		sender      int
		room        int
		content     string
		attachments []AttachmentInput
		kind        Kind
	}{
		{"empty", owner, roomId, "   ", nil, KindValidation},
		{"blank attachment key", owner, roomId, "", []AttachmentInput{{Key: " "}}, KindValidation},
		{"not a member", outsider, roomId, "hi", nil, KindForbidden},
		{"missing room", owner, 999, "hi", nil, KindForbidden},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			env.pub.reset()
			_, err := env.svc.SendMessage(ctx, tc.sender, tc.room, tc.content, tc.attachments)
			assertKind(t, tc.kind, err)
			assert.Empty(t, env.pub.events)
		})
	}
}

func TestSendAttachmentOnly(t *testing.T) {
	env := newTestEnv(t)
	owner := env.account(t, "owner")
	roomId := env.room(t, owner, "campfire", false)
	env.pub.reset()

	msg, err := env.svc.SendMessage(context.Background(), owner, roomId, "", []AttachmentInput{{Key: "rooms/b.jpg", FileType: "image/jpeg"}})
	require.NoError(t, err)
	assert.Nil(t, msg.Content)

	var update types.ConversationUpdate
	require.NoError(t, json.Unmarshal(env.pub.events[1].Data, &update))
	assert.Equal(t, attachmentPlaceholder, update.LastMessageSnippet)
}

func TestReply(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.account(t, "owner")
	member := env.account(t, "member")
	outsider := env.account(t, "outsider")
	roomId := env.room(t, owner, "campfire", false)
	env.addMember(t, roomId, member, database.RoleMember)

	parent, err := env.svc.SendMessage(ctx, owner, roomId, "who's hiking saturday?", nil)
	require.NoError(t, err)

	env.pub.reset()
	reply, err := env.svc.Reply(ctx, member, parent.Id, "me!")
	require.NoError(t, err)
	assert.Equal(t, roomId, reply.RoomId)
	require.NotNil(t, reply.ParentMessageId)
	assert.Equal(t, parent.Id, *reply.ParentMessageId)
	assert.Empty(t, reply.Attachments, "replies are text only")
	require.NotNil(t, reply.Parent)
	assert.Equal(t, "who's hiking saturday?", *reply.Parent.Content)
	assert.Equal(t, []string{fanout.EventNewMessage, fanout.EventConversationUpdated}, env.pub.eventTypes())

	_, err = env.svc.Reply(ctx, member, parent.Id, "  ")
	assertKind(t, KindValidation, err)

	_, err = env.svc.Reply(ctx, member, 999, "hello")
	assertKind(t, KindNotFound, err)

	_, err = env.svc.Reply(ctx, outsider, parent.Id, "let me in")
	assertKind(t, KindForbidden, err)

	require.NoError(t, env.svc.DeleteMessage(ctx, owner, parent.Id))

	page, err := env.svc.ListMessages(ctx, roomId, member, 0, nil)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	require.NotNil(t, page.Messages[0].ParentMessageId, "replies keep the parent id")
	assert.Nil(t, page.Messages[0].Parent, "a deleted parent resolves to nothing")
}

func TestEditMessage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.account(t, "owner")
	member := env.account(t, "member")
	roomId := env.room(t, owner, "campfire", false)
	env.addMember(t, roomId, member, database.RoleMember)

	msg, err := env.svc.SendMessage(ctx, member, roomId, "typo", nil)
	require.NoError(t, err)

	_, err = env.svc.EditMessage(ctx, owner, msg.Id, "not yours")
	assertKind(t, KindForbidden, err)

	_, err = env.svc.EditMessage(ctx, member, msg.Id, "   ")
	assertKind(t, KindValidation, err)

	_, err = env.svc.EditMessage(ctx, member, 999, "fixed")
	assertKind(t, KindNotFound, err)

	env.pub.reset()
	edited, err := env.svc.EditMessage(ctx, member, msg.Id, " fixed ")
	require.NoError(t, err)
	assert.Equal(t, "fixed", *edited.Content)
	assert.True(t, edited.IsEdited)
	assert.Equal(t, []string{fanout.EventMessageEdited}, env.pub.eventTypes())
}

func TestDeleteMessage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.account(t, "owner")
	mod := env.account(t, "mod")
	alice := env.account(t, "alice")
	bob := env.account(t, "bob")
	roomId := env.room(t, owner, "campfire", false)
	env.addMember(t, roomId, mod, database.RoleModerator)
	env.addMember(t, roomId, alice, database.RoleMember)
	env.addMember(t, roomId, bob, database.RoleMember)

	send := func(sender int, atts ...AttachmentInput) int {
		msg, err := env.svc.SendMessage(ctx, sender, roomId, "hey", atts)
		require.NoError(t, err)
		return msg.Id
	}

	own := send(alice)
	require.NoError(t, env.svc.DeleteMessage(ctx, alice, own))

	other := send(alice)
	assertKind(t, KindForbidden, env.svc.DeleteMessage(ctx, bob, other))

	env.pub.reset()
	require.NoError(t, env.svc.DeleteMessage(ctx, mod, other), "moderators may delete any message")
	require.Equal(t, []string{fanout.EventMessageDeleted}, env.pub.eventTypes())

	var deleted types.MessageDeleted
	require.NoError(t, json.Unmarshal(env.pub.events[0].Data, &deleted))
	assert.Equal(t, types.MessageDeleted{RoomId: roomId, MessageId: other}, deleted)

	assertKind(t, KindNotFound, env.svc.DeleteMessage(ctx, alice, other))

	env.files.deleteErr = errors.New("bucket unavailable")
	withFile := send(bob, AttachmentInput{Key: "rooms/c.png", FileType: "image/png"})
	require.NoError(t, env.svc.DeleteMessage(ctx, bob, withFile), "file cleanup failures are not fatal")
	assert.Contains(t, env.files.deleted, "rooms/c.png")
	env.su.AssertCalled(t, "Incr", metricFileDeleteErr)

	_, err := env.repo.GetMessage(ctx, withFile)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestListMessagesPagination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.account(t, "owner")
	outsider := env.account(t, "outsider")
	roomId := env.room(t, owner, "archive", false)
	otherRoom := env.room(t, owner, "other", false)

	const total = 45
	for i := 1; i <= total; i++ {
		_, err := env.svc.SendMessage(ctx, owner, roomId, "message "+strconv.Itoa(i), nil)
		require.NoError(t, err)
	}
	stray, err := env.svc.SendMessage(ctx, owner, otherRoom, "elsewhere", nil)
	require.NoError(t, err)

	var (
		seen    []int
		cursor  *int
		pages   int
		hasMore = true
	)
	for hasMore {
		page, err := env.svc.ListMessages(ctx, roomId, owner, DefaultMessagePageSize, cursor)
		require.NoError(t, err)
		pages++

		require.NotNil(t, page.Room)
		assert.Equal(t, total, page.Pagination.TotalMessages)
		for i := 1; i < len(page.Messages); i++ {
			assert.Less(t, page.Messages[i-1].Id, page.Messages[i].Id, "pages are in display order")
		}
		if len(seen) > 0 && len(page.Messages) > 0 {
			assert.Less(t, page.Messages[len(page.Messages)-1].Id, seen[0], "each page is older than the last")
		}

		ids := make([]int, len(page.Messages))
		for i, m := range page.Messages {
			ids[i] = m.Id
		}
		seen = append(ids, seen...)

		hasMore = page.Pagination.HasMore
		cursor = page.Pagination.NextCursor
		require.LessOrEqual(t, pages, 5)
	}

	assert.Equal(t, 3, pages)
	assert.Len(t, seen, total)
	assert.Equal(t, "message 1", mustContent(t, env, roomId, seen[0]))

	tcases := []struct {
		name   string
		cursor int
	}{
		{"unknown cursor", 9999},
		{"cursor from another room", stray.Id},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.ListMessages(ctx, roomId, owner, 10, &tc.cursor)
			assertKind(t, KindValidation, err)
		})
	}

	_, err = env.svc.ListMessages(ctx, roomId, outsider, 10, nil)
	assertKind(t, KindForbidden, err)
}

func mustContent(t *testing.T, env *testEnv, roomId, messageId int) string {
	t.Helper()

	msg, err := env.repo.GetMessage(context.Background(), messageId)
	require.NoError(t, err)
	require.Equal(t, roomId, msg.RoomId)

	return msg.Content
}

func TestListMessagesEmptyRoom(t *testing.T) {
	env := newTestEnv(t)
	owner := env.account(t, "owner")
	roomId := env.room(t, owner, "silent", false)

	page, err := env.svc.ListMessages(context.Background(), roomId, owner, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, page.Messages)
	assert.False(t, page.Pagination.HasMore)
	assert.Nil(t, page.Pagination.NextCursor)
	assert.Equal(t, DefaultMessagePageSize, page.Pagination.PageSize)
}

func TestClampPageSize(t *testing.T) {
	tcases := []struct {
		in   int
		want int
	}{
		{0, DefaultMessagePageSize},
		{-3, DefaultMessagePageSize},
		{1, 1},
		{MaxMessagePageSize, MaxMessagePageSize},
		{MaxMessagePageSize + 1, MaxMessagePageSize},
	}

	for _, tc := range tcases {
		assert.Equal(t, tc.want, clampPageSize(tc.in), "clampPageSize(%d)", tc.in)
	}
}
