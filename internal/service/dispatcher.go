package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/yaso2000/dinebuddies-sub000/internal/model"
	"github.com/yaso2000/dinebuddies-sub000/internal/repository"
)

// Pusher delivers a notification intent to a set of device tokens
type Pusher interface {
	Push(ctx context.Context, tokens []string, intent model.NotificationIntent) error
}

// NotificationDispatcher applies per-user suppression rules before handing an
// intent to the push transport. Rules are checked in order: global toggle,
// per-type toggle, then the do-not-disturb window.
type NotificationDispatcher struct {
	userRepo *repository.UserRepository
	pusher   Pusher
	now      func() time.Time
}

func NewNotificationDispatcher(userRepo *repository.UserRepository, pusher Pusher) *NotificationDispatcher {
	return &NotificationDispatcher{
		userRepo: userRepo,
		pusher:   pusher,
		now:      time.Now,
	}
}

// Dispatch sends the intent unless the recipient's preferences suppress it.
// A suppressed intent is not an error.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, intent model.NotificationIntent) error {
	user, err := d.userRepo.FindByID(intent.UserID)
	if err != nil {
		return fmt.Errorf("load recipient: %w", err)
	}

	if suppressed, reason := d.Suppressed(user, intent.Type); suppressed {
		log.Printf("🔕 Push to %s suppressed (%s)", user.ID, reason)
		return nil
	}

	if d.pusher == nil {
		return nil
	}

	devices, err := d.userRepo.GetUserDevices(intent.UserID)
	if err != nil {
		return fmt.Errorf("load devices: %w", err)
	}
	if len(devices) == 0 {
		return nil
	}
	tokens := make([]string, 0, len(devices))
	for _, dev := range devices {
		tokens = append(tokens, dev.FCMToken)
	}
	return d.pusher.Push(ctx, tokens, intent)
}

// Suppressed reports whether a notification of the given type should be
// withheld from the user, and why.
func (d *NotificationDispatcher) Suppressed(user *model.User, notificationType string) (bool, string) {
	if !user.PushEnabled {
		return true, "push disabled"
	}
	if !user.PushTypes.Wants(notificationType) {
		return true, "type disabled: " + notificationType
	}
	if user.DNDEnabled && inDNDWindow(user.DNDStart, user.DNDEnd, d.now()) {
		return true, "do not disturb"
	}
	return false, ""
}

// inDNDWindow reports whether t falls inside the [start, end) window given as
// "HH:MM" strings. A window whose end precedes its start wraps past midnight,
// so 22:00–08:00 covers late evening and early morning. An equal start and
// end, or an unparseable bound, disables the window.
func inDNDWindow(start, end string, t time.Time) bool {
	startMin, okStart := parseClock(start)
	endMin, okEnd := parseClock(end)
	if !okStart || !okEnd || startMin == endMin {
		return false
	}
	nowMin := t.Hour()*60 + t.Minute()
	if startMin < endMin {
		return nowMin >= startMin && nowMin < endMin
	}
	return nowMin >= startMin || nowMin < endMin
}

func parseClock(s string) (int, bool) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, false
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
