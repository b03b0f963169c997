package ws

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yaso2000/dinebuddies-sub000/internal/model"
)

func newTestHub(t *testing.T, onStatusChange func(userID uuid.UUID, online bool)) *Hub {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return NewHub(rdb, onStatusChange)
}

func TestHubAddRemoveClient(t *testing.T) {
	statusCh := make(chan bool, 2)
	hub := newTestHub(t, func(_ uuid.UUID, online bool) { statusCh <- online })

	userID := uuid.New()
	client := NewClient(hub, nil, userID, "alice")

	hub.addClient(client)
	assert.True(t, hub.IsUserOnline(userID))
	require.Eventually(t, func() bool { return len(statusCh) == 1 }, time.Second, 10*time.Millisecond)
	assert.True(t, <-statusCh)

	hub.removeClient(client)
	assert.False(t, hub.IsUserOnline(userID))
	require.Eventually(t, func() bool { return len(statusCh) == 1 }, time.Second, 10*time.Millisecond)
	assert.False(t, <-statusCh)
}

func TestHubSecondConnectionKeepsUserOnline(t *testing.T) {
	hub := newTestHub(t, nil)

	userID := uuid.New()
	first := NewClient(hub, nil, userID, "alice")
	second := NewClient(hub, nil, userID, "alice")

	hub.addClient(first)
	hub.addClient(second)

	hub.removeClient(first)
	assert.True(t, hub.IsUserOnline(userID))

	hub.removeClient(second)
	assert.False(t, hub.IsUserOnline(userID))
}

// A slow consumer gets dropped by the local send path before the read pump
// unregisters it. The later unregister must still clean up the user's entry
// so presence does not report a ghost connection.
func TestHubUnregisterAfterSlowConsumerDrop(t *testing.T) {
	statusCh := make(chan bool, 2)
	hub := newTestHub(t, func(_ uuid.UUID, online bool) { statusCh <- online })

	userID := uuid.New()
	client := NewClient(hub, nil, userID, "alice")
	hub.addClient(client)
	require.Eventually(t, func() bool { return len(statusCh) == 1 }, time.Second, 10*time.Millisecond)
	<-statusCh

	// Fill the send buffer so the next delivery takes the drop branch
	for i := 0; i < cap(client.send); i++ {
		client.send <- []byte("{}")
	}
	hub.sendToLocalUser(userID, model.WSEvent{Type: model.WSEventOnline})

	// The read pump unregisters the already-dropped connection
	hub.removeClient(client)

	assert.False(t, hub.IsUserOnline(userID))
	require.Eventually(t, func() bool { return len(statusCh) == 1 }, time.Second, 10*time.Millisecond)
	assert.False(t, <-statusCh)

	// A reconnect is a fresh first connection again
	reconnect := NewClient(hub, nil, userID, "alice")
	hub.addClient(reconnect)
	assert.True(t, hub.IsUserOnline(userID))
	require.Eventually(t, func() bool { return len(statusCh) == 1 }, time.Second, 10*time.Millisecond)
	assert.True(t, <-statusCh)
}
