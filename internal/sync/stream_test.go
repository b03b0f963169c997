package sync

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/yaso2000/dinebuddies-sub000/internal/model"
)

func msgAt(seq int64, at time.Time) model.Message {
	return model.Message{
		ID:        uuid.New(),
		Seq:       seq,
		Type:      model.MessageTypeText,
		Content:   "m",
		CreatedAt: at,
	}
}

func TestReconcileAppend(t *testing.T) {
	now := time.Now()
	a := msgAt(1, now)
	b := msgAt(2, now.Add(time.Second))

	s := &Stream{}
	delta := s.reconcile([]model.Message{a})
	assert.Len(t, delta.Appended, 1)
	assert.False(t, delta.Reset)

	delta = s.reconcile([]model.Message{a, b})
	assert.Len(t, delta.Appended, 1)
	assert.Equal(t, b.ID, delta.Appended[0].ID)
	assert.Empty(t, delta.Changed)
	assert.False(t, delta.Reset)
	assert.Len(t, s.Messages(), 2)
}

func TestReconcileNoChange(t *testing.T) {
	now := time.Now()
	a := msgAt(1, now)
	b := msgAt(2, now)

	s := &Stream{}
	s.reconcile([]model.Message{a, b})
	delta := s.reconcile([]model.Message{a, b})
	assert.Empty(t, delta.Appended)
	assert.Empty(t, delta.Changed)
	assert.False(t, delta.Reset)
}

func TestReconcileReadFlagChange(t *testing.T) {
	now := time.Now()
	a := msgAt(1, now)

	s := &Stream{}
	s.reconcile([]model.Message{a})

	read := a
	read.Read = true
	delta := s.reconcile([]model.Message{read})
	assert.Empty(t, delta.Appended)
	assert.Len(t, delta.Changed, 1)
	assert.False(t, delta.Reset)
}

func TestReconcileReactionChange(t *testing.T) {
	now := time.Now()
	a := msgAt(1, now)

	s := &Stream{}
	s.reconcile([]model.Message{a})

	reacted := a
	reacted.Reactions = []model.MessageReaction{{UserID: uuid.New(), Emoji: "👍"}}
	delta := s.reconcile([]model.Message{reacted})
	assert.Len(t, delta.Changed, 1)
	assert.False(t, delta.Reset)

	// toggling the same user's emoji is still a change, not an append
	replaced := a
	replaced.Reactions = []model.MessageReaction{{UserID: reacted.Reactions[0].UserID, Emoji: "🔥"}}
	delta = s.reconcile([]model.Message{replaced})
	assert.Len(t, delta.Changed, 1)
}

func TestReconcileResetOnRemoval(t *testing.T) {
	now := time.Now()
	a := msgAt(1, now)
	b := msgAt(2, now.Add(time.Second))

	s := &Stream{}
	s.reconcile([]model.Message{a, b})

	delta := s.reconcile([]model.Message{b})
	assert.True(t, delta.Reset)
	assert.Len(t, s.Messages(), 1)
}

func TestReconcileResetOnReorder(t *testing.T) {
	now := time.Now()
	a := msgAt(1, now)
	b := msgAt(2, now.Add(time.Second))

	s := &Stream{}
	s.reconcile([]model.Message{a, b})

	delta := s.reconcile([]model.Message{b, a})
	assert.True(t, delta.Reset)
}

func TestReconcileInsertBeforeTailResets(t *testing.T) {
	now := time.Now()
	a := msgAt(1, now)
	c := msgAt(3, now.Add(2*time.Second))

	s := &Stream{}
	s.reconcile([]model.Message{a, c})

	// a message materializing between existing ones is not a tail append
	b := msgAt(2, now.Add(time.Second))
	delta := s.reconcile([]model.Message{a, b, c})
	assert.Len(t, delta.Appended, 1)
	assert.True(t, delta.Reset)
}
