package store

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/yaso2000/dinebuddies-sub000/internal/model"
	"github.com/yaso2000/dinebuddies-sub000/internal/repository"
	"gorm.io/gorm"
)

const (
	conversationChannelPrefix = "dinebuddies:changed:conversation:"
	inboxChannelPrefix        = "dinebuddies:changed:inbox:"
)

// DBStore implements Store over GORM with Redis pub/sub as the change feed.
// Each change signal triggers a re-query, and the fresh full result set is
// pushed to subscribers — the relational realization of a snapshot-replace
// subscription.
type DBStore struct {
	convRepo *repository.ConversationRepository
	msgRepo  *repository.MessageRepository
	rdb      *redis.Client
}

func NewDBStore(convRepo *repository.ConversationRepository, msgRepo *repository.MessageRepository, rdb *redis.Client) *DBStore {
	return &DBStore{
		convRepo: convRepo,
		msgRepo:  msgRepo,
		rdb:      rdb,
	}
}

// CreateMessage appends a message record
func (s *DBStore) CreateMessage(ctx context.Context, msg *model.Message) error {
	if err := s.msgRepo.Create(msg); err != nil {
		return mapStoreError(err)
	}
	return nil
}

// UpdateConversation merges partial fields into a conversation record
func (s *DBStore) UpdateConversation(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	res := s.convRepo.DB().WithContext(ctx).
		Model(&model.Conversation{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return mapStoreError(res.Error)
	}
	if res.RowsAffected == 0 {
		return model.NewNotFoundError("conversation", id)
	}
	return nil
}

// SubscribeMessages opens a snapshot subscription on a conversation
func (s *DBStore) SubscribeMessages(ctx context.Context, conversationID uuid.UUID) (*MessageSubscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	out := make(chan []model.Message, 1)

	query := func() ([]model.Message, error) {
		return s.msgRepo.ListAscending(conversationID, 0)
	}

	initial, err := query()
	if err != nil {
		cancel()
		return nil, mapStoreError(err)
	}
	out <- initial

	go s.pump(subCtx, conversationChannelPrefix+conversationID.String(), func() {
		snapshot, err := query()
		if err != nil {
			log.Printf("⚠️  message snapshot re-query failed for %s: %v", conversationID, err)
			return
		}
		replace(out, snapshot)
	}, func() { close(out) })

	return &MessageSubscription{C: out, cancel: cancel}, nil
}

// SubscribeInbox opens a snapshot subscription on a user's conversation list
func (s *DBStore) SubscribeInbox(ctx context.Context, userID uuid.UUID) (*InboxSubscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	out := make(chan []model.Conversation, 1)

	initial, err := s.convRepo.GetUserConversations(userID)
	if err != nil {
		cancel()
		return nil, mapStoreError(err)
	}
	out <- initial

	go s.pump(subCtx, inboxChannelPrefix+userID.String(), func() {
		snapshot, err := s.convRepo.GetUserConversations(userID)
		if err != nil {
			log.Printf("⚠️  inbox snapshot re-query failed for %s: %v", userID, err)
			return
		}
		replaceConversations(out, snapshot)
	}, func() { close(out) })

	return &InboxSubscription{C: out, cancel: cancel}, nil
}

// NotifyConversationChanged publishes change signals for the conversation and
// every member's inbox. Failures are logged, never propagated: the write that
// triggered the signal already succeeded.
func (s *DBStore) NotifyConversationChanged(ctx context.Context, conversationID uuid.UUID, memberIDs []uuid.UUID) {
	if err := s.rdb.Publish(ctx, conversationChannelPrefix+conversationID.String(), "changed").Err(); err != nil {
		log.Printf("⚠️  change signal publish failed for conversation %s: %v", conversationID, err)
	}
	for _, memberID := range memberIDs {
		if err := s.rdb.Publish(ctx, inboxChannelPrefix+memberID.String(), "changed").Err(); err != nil {
			log.Printf("⚠️  change signal publish failed for inbox %s: %v", memberID, err)
		}
	}
}

// pump re-runs onSignal for every change notification until the context is
// cancelled
func (s *DBStore) pump(ctx context.Context, channel string, onSignal func(), onDone func()) {
	pubsub := s.rdb.Subscribe(ctx, channel)
	defer pubsub.Close()
	defer onDone()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			onSignal()
		}
	}
}

// replace swaps the pending snapshot for the latest one. A slow consumer only
// ever sees the freshest state, which is safe because every snapshot is a
// full authoritative replacement.
func replace(out chan []model.Message, snapshot []model.Message) {
	for {
		select {
		case out <- snapshot:
			return
		default:
			select {
			case <-out:
			default:
			}
		}
	}
}

func replaceConversations(out chan []model.Conversation, snapshot []model.Conversation) {
	for {
		select {
		case out <- snapshot:
			return
		default:
			select {
			case <-out:
			default:
			}
		}
	}
}

// mapStoreError translates persistence errors into the typed taxonomy
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *model.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.AppError{Code: model.CodeNotFound, Message: "record not found", Err: err}
	}
	return model.NewStoreUnavailableError(err)
}
