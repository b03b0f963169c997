// Package sync is the client-side conversation synchronization engine: it
// keeps per-user conversation lists and per-conversation message buffers in
// step with the store's snapshot-replace subscriptions.
package sync

import (
	"context"
	stdsync "sync"

	"github.com/google/uuid"
	"github.com/yaso2000/dinebuddies-sub000/internal/model"
	"github.com/yaso2000/dinebuddies-sub000/internal/store"
)

// Registry maintains the live set of conversations containing one user,
// fed by a standing inbox subscription. List order is latest activity first,
// recomputed from each snapshot.
type Registry struct {
	store  store.Store
	userID uuid.UUID

	mu            stdsync.RWMutex
	conversations []model.Conversation

	sub    *store.InboxSubscription
	closed chan struct{}

	// OnUpdate, when set before Start, is invoked with each fresh snapshot
	OnUpdate func([]model.Conversation)
}

func NewRegistry(st store.Store, userID uuid.UUID) *Registry {
	return &Registry{
		store:  st,
		userID: userID,
		closed: make(chan struct{}),
	}
}

// Start opens the inbox subscription and begins consuming snapshots. The
// first snapshot is applied before Start returns, so List is immediately
// usable.
func (r *Registry) Start(ctx context.Context) error {
	sub, err := r.store.SubscribeInbox(ctx, r.userID)
	if err != nil {
		return err
	}

	select {
	case snapshot, ok := <-sub.C:
		if ok {
			r.apply(snapshot)
		}
	case <-ctx.Done():
		sub.Close()
		return ctx.Err()
	}

	r.sub = sub
	go func() {
		defer close(r.closed)
		for snapshot := range sub.C {
			r.apply(snapshot)
			if r.OnUpdate != nil {
				r.OnUpdate(snapshot)
			}
		}
	}()
	return nil
}

func (r *Registry) apply(snapshot []model.Conversation) {
	r.mu.Lock()
	r.conversations = snapshot
	r.mu.Unlock()
}

// List returns the current conversations, latest activity first
func (r *Registry) List() []model.Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Conversation, len(r.conversations))
	copy(out, r.conversations)
	return out
}

// Get returns the registry's view of one conversation
func (r *Registry) Get(conversationID uuid.UUID) (model.Conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, conv := range r.conversations {
		if conv.ID == conversationID {
			return conv, true
		}
	}
	return model.Conversation{}, false
}

// Close releases the inbox subscription
func (r *Registry) Close() {
	if r.sub != nil {
		r.sub.Close()
		<-r.closed
	}
}
