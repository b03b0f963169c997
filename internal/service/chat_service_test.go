package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yaso2000/dinebuddies-sub000/internal/model"
)

func textMessage(content string) model.SendMessageRequest {
	return model.SendMessageRequest{Type: model.MessageTypeText, Content: content}
}

func TestSendDirectFirstContact(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	resp, err := env.chat.SendDirect(context.Background(), alice.ID, model.DirectMessageRequest{
		ReceiverID: bob.ID,
		Message:    textMessage("hey, tapas on friday?"),
	})
	require.NoError(t, err)
	assert.True(t, resp.IsNew)
	assert.Equal(t, model.ConversationKindDirect, resp.Conversation.Kind)
	require.NotNil(t, resp.Message)
	assert.Equal(t, "hey, tapas on friday?", resp.Message.Content)
	assert.Equal(t, int64(1), resp.Message.Seq)

	convID := resp.Conversation.ID
	assert.Equal(t, 1, env.memberUnread(t, convID, bob.ID))
	assert.Equal(t, 0, env.memberUnread(t, convID, alice.ID))

	conv, err := env.convRepo.FindByID(convID)
	require.NoError(t, err)
	assert.Equal(t, "hey, tapas on friday?", conv.LastMessageSummary)

	// a second send reuses the same conversation
	resp2, err := env.chat.SendDirect(context.Background(), alice.ID, model.DirectMessageRequest{
		ReceiverID: bob.ID,
		Message:    textMessage("I found a great place"),
	})
	require.NoError(t, err)
	assert.False(t, resp2.IsNew)
	assert.Equal(t, convID, resp2.Conversation.ID)
	assert.Equal(t, 2, env.memberUnread(t, convID, bob.ID))
}

func TestSendDirectToSelf(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")

	_, err := env.chat.SendDirect(context.Background(), alice.ID, model.DirectMessageRequest{
		ReceiverID: alice.ID,
		Message:    textMessage("note to self"),
	})
	assert.Equal(t, model.CodeValidationError, model.ErrCode(err))
}

func TestResolveDirect(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	// nothing exists until the first message is sent
	_, err := env.chat.ResolveDirect(alice.ID, bob.ID)
	assert.Equal(t, model.CodeNotFound, model.ErrCode(err))

	sent, err := env.chat.SendDirect(context.Background(), alice.ID, model.DirectMessageRequest{
		ReceiverID: bob.ID,
		Message:    textMessage("hello"),
	})
	require.NoError(t, err)

	// resolvable from either side, same conversation
	fromBob, err := env.chat.ResolveDirect(bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, sent.Conversation.ID, fromBob.ID)
	assert.Equal(t, 1, fromBob.UnreadCount)

	fromAlice, err := env.chat.ResolveDirect(alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, fromAlice.UnreadCount)
}

func TestCreateGroup(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	carol := env.createUser(t, "carol")

	eventStart := time.Date(2026, 1, 1, 18, 0, 0, 0, time.UTC)
	conv, err := env.chat.CreateGroup(context.Background(), alice.ID, model.CreateGroupRequest{
		Name:         "Friday Tapas Night",
		MemberIDs:    []uuid.UUID{bob.ID, carol.ID, alice.ID}, // creator in list is deduped
		EventStartAt: eventStart,
	})
	require.NoError(t, err)

	assert.Equal(t, model.ConversationKindGroup, conv.Kind)
	assert.Equal(t, model.ConversationStatusActive, conv.Status)
	require.NotNil(t, conv.ExpiresAt)
	assert.True(t, conv.ExpiresAt.Equal(eventStart.Add(model.GroupLifetime)))

	memberIDs, err := env.chat.GetConversationMemberIDs(conv.ID)
	require.NoError(t, err)
	assert.Len(t, memberIDs, 3)

	// creation posts a system message
	msgs, err := env.msgRepo.ListAscending(conv.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.MessageTypeSystem, msgs[0].Type)
	assert.Contains(t, msgs[0].Content, "created the group")

	// invitations go to everyone except the creator
	assert.Len(t, env.mailer.invitations, 2)
}

func TestCreateGroupTooSmall(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")

	_, err := env.chat.CreateGroup(context.Background(), alice.ID, model.CreateGroupRequest{
		Name:         "Solo Dinner",
		MemberIDs:    []uuid.UUID{alice.ID},
		EventStartAt: time.Now().Add(time.Hour),
	})
	assert.Equal(t, model.CodeValidationError, model.ErrCode(err))
}

func TestSendMessageNotAMember(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	mallory := env.createUser(t, "mallory")

	conv, err := env.chat.CreateGroup(context.Background(), alice.ID, model.CreateGroupRequest{
		Name:         "Private Dinner",
		MemberIDs:    []uuid.UUID{bob.ID},
		EventStartAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	_, err = env.chat.SendMessage(context.Background(), mallory.ID, conv.ID, textMessage("let me in"))
	assert.Equal(t, model.CodePermissionDenied, model.ErrCode(err))
}

func TestSendMessageExpiredGroup(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	conv, err := env.chat.CreateGroup(context.Background(), alice.ID, model.CreateGroupRequest{
		Name:         "Last Week's Dinner",
		MemberIDs:    []uuid.UUID{bob.ID},
		EventStartAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	expired, err := env.convRepo.MarkExpired(conv.ID)
	require.NoError(t, err)
	require.True(t, expired)

	_, err = env.chat.SendMessage(context.Background(), alice.ID, conv.ID, textMessage("anyone still here?"))
	assert.Equal(t, model.CodeConversationOver, model.ErrCode(err))
}

func TestSendMessageSystemTypeRejected(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	conv, err := env.chat.CreateGroup(context.Background(), alice.ID, model.CreateGroupRequest{
		Name:         "Dinner",
		MemberIDs:    []uuid.UUID{bob.ID},
		EventStartAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	_, err = env.chat.SendMessage(context.Background(), alice.ID, conv.ID, model.SendMessageRequest{
		Type:    model.MessageTypeSystem,
		Content: "forged announcement",
	})
	assert.Equal(t, model.CodeValidationError, model.ErrCode(err))
}

func TestMarkReadIdempotent(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	conv, err := env.chat.CreateGroup(context.Background(), alice.ID, model.CreateGroupRequest{
		Name:         "Dinner",
		MemberIDs:    []uuid.UUID{bob.ID},
		EventStartAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := env.chat.SendMessage(context.Background(), alice.ID, conv.ID, textMessage("msg"))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, env.memberUnread(t, conv.ID, bob.ID))
	assert.Equal(t, 0, env.memberUnread(t, conv.ID, alice.ID))

	require.NoError(t, env.chat.MarkRead(context.Background(), bob.ID, conv.ID))
	assert.Equal(t, 0, env.memberUnread(t, conv.ID, bob.ID))

	// marking read again is a no-op, not an error
	require.NoError(t, env.chat.MarkRead(context.Background(), bob.ID, conv.ID))
	assert.Equal(t, 0, env.memberUnread(t, conv.ID, bob.ID))
}

func TestReactionToggle(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	sent, err := env.chat.SendDirect(context.Background(), alice.ID, model.DirectMessageRequest{
		ReceiverID: bob.ID,
		Message:    textMessage("found the place!"),
	})
	require.NoError(t, err)
	convID := sent.Conversation.ID
	msgID := sent.Message.ID

	// first reaction sticks
	kept, err := env.chat.React(context.Background(), bob.ID, convID, msgID, "👍")
	require.NoError(t, err)
	assert.True(t, kept)

	// a different emoji replaces it, never stacks
	kept, err = env.chat.React(context.Background(), bob.ID, convID, msgID, "❤️")
	require.NoError(t, err)
	assert.True(t, kept)

	var reactions []model.MessageReaction
	require.NoError(t, env.db.Where("message_id = ?", msgID).Find(&reactions).Error)
	require.Len(t, reactions, 1)
	assert.Equal(t, "❤️", reactions[0].Emoji)

	// repeating the same emoji removes it
	kept, err = env.chat.React(context.Background(), bob.ID, convID, msgID, "❤️")
	require.NoError(t, err)
	assert.False(t, kept)

	require.NoError(t, env.db.Where("message_id = ?", msgID).Find(&reactions).Error)
	assert.Empty(t, reactions)
}

func TestReactionPerUserSlots(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	carol := env.createUser(t, "carol")

	conv, err := env.chat.CreateGroup(context.Background(), alice.ID, model.CreateGroupRequest{
		Name:         "Dinner",
		MemberIDs:    []uuid.UUID{bob.ID, carol.ID},
		EventStartAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	msg, err := env.chat.SendMessage(context.Background(), alice.ID, conv.ID, textMessage("menu looks great"))
	require.NoError(t, err)

	_, err = env.chat.React(context.Background(), bob.ID, conv.ID, msg.ID, "👍")
	require.NoError(t, err)
	_, err = env.chat.React(context.Background(), carol.ID, conv.ID, msg.ID, "👍")
	require.NoError(t, err)

	var reactions []model.MessageReaction
	require.NoError(t, env.db.Where("message_id = ?", msg.ID).Find(&reactions).Error)
	assert.Len(t, reactions, 2)
}

func TestCommunityUnreadUsesWatermark(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	conv := env.createCommunity(t, alice, bob)

	// bob joined just now, so alice's new messages land after his watermark
	time.Sleep(5 * time.Millisecond)
	_, err := env.chat.SendMessage(context.Background(), alice.ID, conv.ID, textMessage("tonight: ramen"))
	require.NoError(t, err)
	_, err = env.chat.SendMessage(context.Background(), alice.ID, conv.ID, textMessage("who's in?"))
	require.NoError(t, err)

	// the stored counter is never touched for communities
	assert.Equal(t, 0, env.memberUnread(t, conv.ID, bob.ID))

	convs, err := env.chat.GetConversations(bob.ID)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, 2, convs[0].UnreadCount)

	// reading advances the watermark
	require.NoError(t, env.chat.MarkRead(context.Background(), bob.ID, conv.ID))
	convs, err = env.chat.GetConversations(bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, convs[0].UnreadCount)
}

func TestJoinCommunityIdempotent(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	conv := env.createCommunity(t, alice)

	require.NoError(t, env.chat.JoinCommunity(conv.ID, bob.ID))
	require.NoError(t, env.chat.JoinCommunity(conv.ID, bob.ID))

	memberIDs, err := env.chat.GetConversationMemberIDs(conv.ID)
	require.NoError(t, err)
	assert.Len(t, memberIDs, 2)
}

func TestGetMessagesOrderingAndPermission(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	mallory := env.createUser(t, "mallory")

	sent, err := env.chat.SendDirect(context.Background(), alice.ID, model.DirectMessageRequest{
		ReceiverID: bob.ID,
		Message:    textMessage("first"),
	})
	require.NoError(t, err)
	convID := sent.Conversation.ID

	_, err = env.chat.SendMessage(context.Background(), bob.ID, convID, textMessage("second"))
	require.NoError(t, err)
	_, err = env.chat.SendMessage(context.Background(), alice.ID, convID, textMessage("third"))
	require.NoError(t, err)

	// newest first, seq breaks created_at ties
	msgs, err := env.chat.GetMessages(convID, bob.ID, nil, 50)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "third", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)
	assert.Equal(t, "first", msgs[2].Content)

	_, err = env.chat.GetMessages(convID, mallory.ID, nil, 50)
	assert.Equal(t, model.CodePermissionDenied, model.ErrCode(err))
}
