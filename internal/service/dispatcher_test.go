package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yaso2000/dinebuddies-sub000/internal/model"
)

type stubPusher struct {
	calls  int
	tokens []string
	intent model.NotificationIntent
}

func (p *stubPusher) Push(_ context.Context, tokens []string, intent model.NotificationIntent) error {
	p.calls++
	p.tokens = tokens
	p.intent = intent
	return nil
}

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 10, hour, minute, 0, 0, time.UTC)
}

func TestSuppressedRules(t *testing.T) {
	tests := []struct {
		name       string
		user       model.User
		notifType  string
		now        time.Time
		suppressed bool
	}{
		{
			name:       "push globally disabled",
			user:       model.User{PushEnabled: false},
			notifType:  model.NotificationTypeMessage,
			suppressed: true,
		},
		{
			name: "type disabled",
			user: model.User{
				PushEnabled: true,
				PushTypes:   model.PushTypes{model.NotificationTypeReaction: false},
			},
			notifType:  model.NotificationTypeReaction,
			suppressed: true,
		},
		{
			name: "other types unaffected",
			user: model.User{
				PushEnabled: true,
				PushTypes:   model.PushTypes{model.NotificationTypeReaction: false},
			},
			notifType:  model.NotificationTypeMessage,
			now:        at(12, 0),
			suppressed: false,
		},
		{
			name: "inside overnight dnd window",
			user: model.User{
				PushEnabled: true, DNDEnabled: true,
				DNDStart: "22:00", DNDEnd: "08:00",
			},
			notifType:  model.NotificationTypeMessage,
			now:        at(23, 30),
			suppressed: true,
		},
		{
			name: "overnight window covers early morning",
			user: model.User{
				PushEnabled: true, DNDEnabled: true,
				DNDStart: "22:00", DNDEnd: "08:00",
			},
			notifType:  model.NotificationTypeMessage,
			now:        at(2, 0),
			suppressed: true,
		},
		{
			name: "outside overnight window",
			user: model.User{
				PushEnabled: true, DNDEnabled: true,
				DNDStart: "22:00", DNDEnd: "08:00",
			},
			notifType:  model.NotificationTypeMessage,
			now:        at(9, 0),
			suppressed: false,
		},
		{
			name: "dnd configured but not enabled",
			user: model.User{
				PushEnabled: true, DNDEnabled: false,
				DNDStart: "22:00", DNDEnd: "08:00",
			},
			notifType:  model.NotificationTypeMessage,
			now:        at(23, 30),
			suppressed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &NotificationDispatcher{now: func() time.Time { return tt.now }}
			suppressed, _ := d.Suppressed(&tt.user, tt.notifType)
			assert.Equal(t, tt.suppressed, suppressed)
		})
	}
}

func TestInDNDWindow(t *testing.T) {
	tests := []struct {
		name   string
		start  string
		end    string
		now    time.Time
		inside bool
	}{
		{"same-day window inside", "12:00", "14:00", at(13, 0), true},
		{"same-day window before", "12:00", "14:00", at(11, 59), false},
		{"end is exclusive", "12:00", "14:00", at(14, 0), false},
		{"start is inclusive", "12:00", "14:00", at(12, 0), true},
		{"overnight late evening", "22:00", "08:00", at(23, 30), true},
		{"overnight early morning", "22:00", "08:00", at(7, 59), true},
		{"overnight daytime gap", "22:00", "08:00", at(12, 0), false},
		{"equal bounds disable the window", "10:00", "10:00", at(10, 0), false},
		{"unparseable start disables", "ten", "14:00", at(13, 0), false},
		{"out-of-range hour disables", "25:00", "14:00", at(13, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.inside, inDNDWindow(tt.start, tt.end, tt.now))
		})
	}
}

func TestDispatchDeliversToDevices(t *testing.T) {
	env := newTestEnv(t)
	bob := env.createUser(t, "bob")
	require.NoError(t, env.userRepo.RegisterDevice(&model.UserDevice{
		UserID:     bob.ID,
		FCMToken:   "token-1",
		DeviceType: "android",
	}))

	pusher := &stubPusher{}
	d := NewNotificationDispatcher(env.userRepo, pusher)

	intent := model.NotificationIntent{
		UserID: bob.ID,
		Type:   model.NotificationTypeMessage,
		Title:  "alice",
		Body:   "see you at 8",
	}
	require.NoError(t, d.Dispatch(context.Background(), intent))
	require.Equal(t, 1, pusher.calls)
	assert.Equal(t, []string{"token-1"}, pusher.tokens)
	assert.Equal(t, "see you at 8", pusher.intent.Body)
}

func TestDispatchSuppressedSkipsPush(t *testing.T) {
	env := newTestEnv(t)
	bob := env.createUser(t, "bob")
	require.NoError(t, env.db.Model(&model.User{}).Where("id = ?", bob.ID).
		Update("push_enabled", false).Error)

	pusher := &stubPusher{}
	d := NewNotificationDispatcher(env.userRepo, pusher)

	require.NoError(t, d.Dispatch(context.Background(), model.NotificationIntent{
		UserID: bob.ID,
		Type:   model.NotificationTypeMessage,
	}))
	assert.Zero(t, pusher.calls)
}
