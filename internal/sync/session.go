package sync

import (
	"context"

	"github.com/google/uuid"
	"github.com/yaso2000/dinebuddies-sub000/internal/model"
	"github.com/yaso2000/dinebuddies-sub000/internal/store"
)

// Session bundles the per-user engine pieces. It is constructed once at
// session start, passed by reference to whatever consumes it, and torn down
// at sign-out.
type Session struct {
	UserID   uuid.UUID
	Registry *Registry
	Streams  *StreamManager

	cancel context.CancelFunc
}

// NewSession starts a synchronization session for a user: a live
// conversation registry plus a stream manager for opening conversations.
// onUpdate, when non-nil, receives each fresh inbox snapshot.
func NewSession(ctx context.Context, st store.Store, userID uuid.UUID, onUpdate func([]model.Conversation)) (*Session, error) {
	sessionCtx, cancel := context.WithCancel(ctx)

	registry := NewRegistry(st, userID)
	registry.OnUpdate = onUpdate
	if err := registry.Start(sessionCtx); err != nil {
		cancel()
		return nil, err
	}

	return &Session{
		UserID:   userID,
		Registry: registry,
		Streams:  NewStreamManager(st),
		cancel:   cancel,
	}, nil
}

// Close tears the session down: every stream and the registry subscription
// are released
func (s *Session) Close() {
	s.Streams.CloseAll()
	s.Registry.Close()
	s.cancel()
}
