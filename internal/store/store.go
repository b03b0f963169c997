// Package store adapts the persistence layer to the synchronization engine.
//
// Subscriptions follow a snapshot-replace delivery model: every push carries
// the complete ordered result set for the query, not a diff. Delivery is
// at-least-once; consumers must treat each snapshot as an authoritative
// replacement of their local buffer.
package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/yaso2000/dinebuddies-sub000/internal/model"
)

// Store is the engine's view of the remote store: ordered-query
// subscriptions, appends, and partial merge updates. All failures surface as
// typed model.AppError values; nothing is silently logged away.
type Store interface {
	// CreateMessage appends a message. The store assigns the sequence number.
	CreateMessage(ctx context.Context, msg *model.Message) error

	// UpdateConversation merges partial fields into a conversation record,
	// never touching fields not named.
	UpdateConversation(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error

	// SubscribeMessages opens a long-lived subscription to a conversation's
	// ordered message list. Close the subscription on every exit path.
	SubscribeMessages(ctx context.Context, conversationID uuid.UUID) (*MessageSubscription, error)

	// SubscribeInbox opens a subscription to the set of conversations
	// containing the user, ordered by latest activity.
	SubscribeInbox(ctx context.Context, userID uuid.UUID) (*InboxSubscription, error)

	// NotifyConversationChanged signals subscribers that the conversation's
	// message list or metadata changed. Best-effort.
	NotifyConversationChanged(ctx context.Context, conversationID uuid.UUID, memberIDs []uuid.UUID)
}

// MessageSubscription delivers full ordered message snapshots for one
// conversation, oldest first
type MessageSubscription struct {
	C      <-chan []model.Message
	cancel context.CancelFunc
}

// Close releases the subscription. Safe to call more than once.
func (s *MessageSubscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// InboxSubscription delivers full snapshots of a user's conversation list,
// latest activity first
type InboxSubscription struct {
	C      <-chan []model.Conversation
	cancel context.CancelFunc
}

// Close releases the subscription. Safe to call more than once.
func (s *InboxSubscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}
