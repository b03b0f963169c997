package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yaso2000/dinebuddies-sub000/internal/model"
	"github.com/yaso2000/dinebuddies-sub000/internal/repository"
	"github.com/yaso2000/dinebuddies-sub000/internal/service"
	"github.com/yaso2000/dinebuddies-sub000/internal/store"
	"github.com/yaso2000/dinebuddies-sub000/internal/ws"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newChatHandlerEnv(t *testing.T) (*ChatHandler, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{}, &model.UserDevice{},
		&model.Conversation{}, &model.ConversationMember{},
		&model.Message{}, &model.MessageReaction{},
	))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	userRepo := repository.NewUserRepository(db)
	st := store.NewDBStore(convRepo, msgRepo, rdb)
	chatService := service.NewChatService(convRepo, msgRepo, userRepo, st, nil, nil)

	return NewChatHandler(chatService, ws.NewHub(rdb, nil)), db
}

// routerFor mounts the conversation routes with the given user injected the
// way the auth middleware would
func routerFor(h *ChatHandler, userID uuid.UUID) *gin.Engine {
	router := gin.New()
	router.Use(func(c *gin.Context) { c.Set("user_id", userID) })
	router.POST("/conversations/community", h.CreateCommunity)
	router.POST("/conversations/:id/join", h.JoinCommunity)
	return router
}

func createTestUser(t *testing.T, db *gorm.DB, name string) *model.User {
	t.Helper()
	user := &model.User{
		Name:        name,
		Email:       name + "@dinebuddies.local",
		Password:    "hashed",
		PushEnabled: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestCreateAndJoinCommunityEndpoints(t *testing.T) {
	h, db := newChatHandlerEnv(t)
	creator := createTestUser(t, db, "creator")
	joiner := createTestUser(t, db, "joiner")

	body, _ := json.Marshal(model.CreateCommunityRequest{Name: "Ramen Lovers"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/conversations/community", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	routerFor(h, creator.ID).ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var conv model.Conversation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conv))
	assert.Equal(t, model.ConversationKindCommunity, conv.Kind)
	assert.Equal(t, "Ramen Lovers", conv.Name)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/conversations/"+conv.ID.String()+"/join", nil)
	routerFor(h, joiner.ID).ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var count int64
	require.NoError(t, db.Model(&model.ConversationMember{}).
		Where("conversation_id = ?", conv.ID).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestCreateCommunityEndpointRequiresName(t *testing.T) {
	h, db := newChatHandlerEnv(t)
	user := createTestUser(t, db, "someone")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/conversations/community", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	routerFor(h, user.ID).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJoinCommunityEndpointRejectsBadID(t *testing.T) {
	h, db := newChatHandlerEnv(t)
	user := createTestUser(t, db, "someone")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/conversations/not-a-uuid/join", nil)
	routerFor(h, user.ID).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJoinCommunityEndpointUnknownConversation(t *testing.T) {
	h, db := newChatHandlerEnv(t)
	user := createTestUser(t, db, "someone")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/conversations/"+uuid.NewString()+"/join", nil)
	routerFor(h, user.ID).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
