package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/yaso2000/dinebuddies-sub000/internal/model"
	"github.com/yaso2000/dinebuddies-sub000/internal/repository"
	"github.com/yaso2000/dinebuddies-sub000/internal/store"
)

// ExpiryNotifier pushes an event to a set of connected users
type ExpiryNotifier interface {
	SendToUsers(userIDs []uuid.UUID, event model.WSEvent)
}

// LifecycleService expires group conversations whose window has passed.
// Expiry is one-way: an expired group never becomes active again.
type LifecycleService struct {
	convRepo *repository.ConversationRepository
	store    store.Store
	notifier ExpiryNotifier
	interval time.Duration
}

func NewLifecycleService(convRepo *repository.ConversationRepository, st store.Store, notifier ExpiryNotifier, interval time.Duration) *LifecycleService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &LifecycleService{
		convRepo: convRepo,
		store:    st,
		notifier: notifier,
		interval: interval,
	}
}

// Run sweeps on a fixed interval until the context is cancelled. One sweep
// runs immediately at startup to catch groups that expired while the server
// was down.
func (s *LifecycleService) Run(ctx context.Context) {
	log.Printf("⏰ Group expiry sweeper running every %s", s.interval)
	s.sweepAndLog(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("⏰ Group expiry sweeper stopped")
			return
		case <-ticker.C:
			s.sweepAndLog(ctx)
		}
	}
}

func (s *LifecycleService) sweepAndLog(ctx context.Context) {
	expired, err := s.Sweep(ctx, time.Now())
	if err != nil {
		log.Printf("⚠️  expiry sweep failed: %v", err)
		return
	}
	if expired > 0 {
		log.Printf("⏰ Expired %d group conversation(s)", expired)
	}
}

// Sweep marks every active group past its deadline as expired, appends a
// closing system message, and notifies members. The status guard in the
// update makes a racing double sweep harmless: only the winner posts the
// closing message.
func (s *LifecycleService) Sweep(ctx context.Context, now time.Time) (int, error) {
	groups, err := s.convRepo.FindExpirableGroups(now)
	if err != nil {
		return 0, model.NewStoreUnavailableError(err)
	}

	expired := 0
	for i := range groups {
		conv := &groups[i]
		won, err := s.convRepo.MarkExpired(conv.ID)
		if err != nil {
			log.Printf("⚠️  failed to expire group %s: %v", conv.ID, err)
			continue
		}
		if !won {
			continue
		}
		expired++
		s.closeOut(ctx, conv, now)
	}
	return expired, nil
}

func (s *LifecycleService) closeOut(ctx context.Context, conv *model.Conversation, now time.Time) {
	msg := &model.Message{
		ConversationID: conv.ID,
		SenderID:       uuid.Nil,
		SenderName:     "DineBuddies",
		Type:           model.MessageTypeSystem,
		Content:        "This group has ended. Thanks for dining together!",
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		log.Printf("⚠️  closing message for %s failed: %v", conv.ID, err)
	} else if err := s.convRepo.SetLastMessage(conv.ID, msg.CreatedAt, msg.Summary(), msg.SenderID); err != nil {
		log.Printf("⚠️  last-message cache update failed for %s: %v", conv.ID, err)
	}

	memberIDs, err := s.convRepo.GetMemberIDs(conv.ID)
	if err != nil {
		log.Printf("⚠️  member lookup failed for %s: %v", conv.ID, err)
		return
	}
	s.store.NotifyConversationChanged(ctx, conv.ID, memberIDs)

	if s.notifier != nil {
		s.notifier.SendToUsers(memberIDs, model.WSEvent{
			Type: model.WSEventConversationExpired,
			Payload: model.ConversationExpiredEvent{
				ConversationID: conv.ID,
				ExpiredAt:      now,
			},
		})
	}
}
