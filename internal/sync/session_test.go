package sync

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yaso2000/dinebuddies-sub000/internal/model"
)

func TestSessionLifecycle(t *testing.T) {
	env := newSyncEnv(t)
	userID := uuid.New()
	conv := env.seedConversation(t, userID)
	env.appendMessage(t, conv.ID, userID, "hello")

	updates := make(chan []model.Conversation, 8)
	session, err := NewSession(context.Background(), env.store, userID, func(snapshot []model.Conversation) {
		updates <- snapshot
	})
	require.NoError(t, err)

	require.Len(t, session.Registry.List(), 1)

	stream, err := session.Streams.Open(context.Background(), conv.ID)
	require.NoError(t, err)
	require.Len(t, stream.Messages(), 1)

	// an inbox signal reaches the session's update hook
	require.Eventually(t, func() bool {
		env.store.NotifyConversationChanged(context.Background(), conv.ID, []uuid.UUID{userID})
		select {
		case <-updates:
			return true
		default:
			return false
		}
	}, 3*time.Second, 20*time.Millisecond)

	// teardown closes every stream's update channel
	session.Close()
	select {
	case _, open := <-stream.Updates():
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("expected the stream update channel to close")
	}
}
