package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yaso2000/dinebuddies-sub000/internal/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Conversation{},
		&model.ConversationMember{},
		&model.Message{},
		&model.MessageReaction{},
	))
	return db
}

func seedConversation(t *testing.T, db *gorm.DB, userIDs ...uuid.UUID) *model.Conversation {
	t.Helper()
	conv := &model.Conversation{
		Kind:   model.ConversationKindGroup,
		Name:   "test",
		Status: model.ConversationStatusActive,
	}
	for _, id := range userIDs {
		conv.Members = append(conv.Members, model.ConversationMember{
			UserID: id, Role: model.MemberRoleMember, JoinedAt: time.Now(),
		})
	}
	require.NoError(t, NewConversationRepository(db).Create(conv))
	return conv
}

func TestMessageSeqPerConversation(t *testing.T) {
	db := newTestDB(t)
	repo := NewMessageRepository(db)
	sender := uuid.New()
	convA := seedConversation(t, db, sender)
	convB := seedConversation(t, db, sender)

	for i := 0; i < 3; i++ {
		msg := &model.Message{ConversationID: convA.ID, SenderID: sender, Type: model.MessageTypeText, Content: "a"}
		require.NoError(t, repo.Create(msg))
		assert.Equal(t, int64(i+1), msg.Seq)
	}

	// an unrelated conversation starts its own sequence at 1
	msg := &model.Message{ConversationID: convB.ID, SenderID: sender, Type: model.MessageTypeText, Content: "b"}
	require.NoError(t, repo.Create(msg))
	assert.Equal(t, int64(1), msg.Seq)
}

func TestListAscendingSeqTiebreak(t *testing.T) {
	db := newTestDB(t)
	repo := NewMessageRepository(db)
	sender := uuid.New()
	conv := seedConversation(t, db, sender)

	// two messages landing on the identical timestamp still have a stable order
	at := time.Date(2026, 2, 1, 20, 0, 0, 0, time.UTC)
	first := &model.Message{ConversationID: conv.ID, SenderID: sender, Type: model.MessageTypeText, Content: "first", CreatedAt: at}
	second := &model.Message{ConversationID: conv.ID, SenderID: sender, Type: model.MessageTypeText, Content: "second", CreatedAt: at}
	require.NoError(t, repo.Create(first))
	require.NoError(t, repo.Create(second))

	msgs, err := repo.ListAscending(conv.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)
	assert.Less(t, msgs[0].Seq, msgs[1].Seq)
}

func TestGetConversationMessagesCursor(t *testing.T) {
	db := newTestDB(t)
	repo := NewMessageRepository(db)
	sender := uuid.New()
	conv := seedConversation(t, db, sender)

	base := time.Date(2026, 2, 1, 20, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		msg := &model.Message{
			ConversationID: conv.ID,
			SenderID:       sender,
			Type:           model.MessageTypeText,
			Content:        string(rune('a' + i)),
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Create(msg))
	}

	// first page, newest first
	page, err := repo.GetConversationMessages(conv.ID, nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "e", page[0].Content)
	assert.Equal(t, "d", page[1].Content)

	// scroll back from the oldest message of the first page
	cursor := page[1].ID
	page, err = repo.GetConversationMessages(conv.ID, &cursor, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].Content)
	assert.Equal(t, "b", page[1].Content)
}

func TestCountUnreadSinceWatermark(t *testing.T) {
	db := newTestDB(t)
	repo := NewMessageRepository(db)
	convRepo := NewConversationRepository(db)
	sender := uuid.New()
	reader := uuid.New()
	conv := seedConversation(t, db, sender, reader)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		msg := &model.Message{
			ConversationID: conv.ID,
			SenderID:       sender,
			Type:           model.MessageTypeText,
			Content:        "hello",
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Create(msg))
	}

	// no watermark yet: everything from others is unread
	count, err := repo.CountUnreadSince(conv.ID, reader, repo.WatermarkSubquery(conv.ID, reader))
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	// advance the watermark past the second message
	require.NoError(t, convRepo.SetWatermark(conv.ID, reader, base.Add(90*time.Second)))
	count, err = repo.CountUnreadSince(conv.ID, reader, repo.WatermarkSubquery(conv.ID, reader))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// the sender's own messages never count
	count, err = repo.CountUnreadSince(conv.ID, sender, repo.WatermarkSubquery(conv.ID, sender))
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSetReactionReplacesSlot(t *testing.T) {
	db := newTestDB(t)
	repo := NewMessageRepository(db)
	sender := uuid.New()
	reactor := uuid.New()
	conv := seedConversation(t, db, sender, reactor)

	msg := &model.Message{ConversationID: conv.ID, SenderID: sender, Type: model.MessageTypeText, Content: "yum"}
	require.NoError(t, repo.Create(msg))

	require.NoError(t, repo.SetReaction(msg.ID, reactor, "👍"))
	require.NoError(t, repo.SetReaction(msg.ID, reactor, "🔥"))

	reaction, err := repo.GetReaction(msg.ID, reactor)
	require.NoError(t, err)
	assert.Equal(t, "🔥", reaction.Emoji)

	var count int64
	require.NoError(t, db.Model(&model.MessageReaction{}).Where("message_id = ?", msg.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	require.NoError(t, repo.RemoveReaction(msg.ID, reactor))
	_, err = repo.GetReaction(msg.ID, reactor)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
