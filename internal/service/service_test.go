package service

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/yaso2000/dinebuddies-sub000/internal/model"
	"github.com/yaso2000/dinebuddies-sub000/internal/repository"
	"github.com/yaso2000/dinebuddies-sub000/internal/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testEnv bundles everything a service test needs against an in-memory
// database and redis
type testEnv struct {
	db       *gorm.DB
	rdb      *redis.Client
	convRepo *repository.ConversationRepository
	msgRepo  *repository.MessageRepository
	userRepo *repository.UserRepository
	store    *store.DBStore
	chat     *ChatService
	mailer   *stubMailer
}

type stubMailer struct {
	invitations []string // recipient emails
}

func (m *stubMailer) SendGroupInvitation(toEmail, toName, inviterName, groupName string, eventStart time.Time) error {
	m.invitations = append(m.invitations, toEmail)
	return nil
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.UserDevice{},
		&model.Conversation{},
		&model.ConversationMember{},
		&model.Message{},
		&model.MessageReaction{},
	))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	userRepo := repository.NewUserRepository(db)
	st := store.NewDBStore(convRepo, msgRepo, rdb)
	mailer := &stubMailer{}

	return &testEnv{
		db:       db,
		rdb:      rdb,
		convRepo: convRepo,
		msgRepo:  msgRepo,
		userRepo: userRepo,
		store:    st,
		chat:     NewChatService(convRepo, msgRepo, userRepo, st, nil, mailer),
		mailer:   mailer,
	}
}

func (e *testEnv) createUser(t *testing.T, name string) *model.User {
	t.Helper()
	user := &model.User{
		Name:        name,
		Email:       name + "@dinebuddies.local",
		Password:    "hashed",
		PushEnabled: true,
	}
	require.NoError(t, e.userRepo.Create(user))
	return user
}

func (e *testEnv) createCommunity(t *testing.T, creator *model.User, members ...*model.User) *model.Conversation {
	t.Helper()
	conv, err := e.chat.CreateCommunity(creator.ID, "Test Community", "")
	require.NoError(t, err)
	for _, m := range members {
		require.NoError(t, e.chat.JoinCommunity(conv.ID, m.ID))
	}
	return conv
}

func (e *testEnv) memberUnread(t *testing.T, convID, userID interface{}) int {
	t.Helper()
	var member model.ConversationMember
	require.NoError(t, e.db.Where("conversation_id = ? AND user_id = ?", convID, userID).First(&member).Error)
	return member.UnreadCount
}
