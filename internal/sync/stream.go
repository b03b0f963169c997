package sync

import (
	"context"
	stdsync "sync"

	"github.com/google/uuid"
	"github.com/yaso2000/dinebuddies-sub000/internal/model"
	"github.com/yaso2000/dinebuddies-sub000/internal/store"
)

// Delta is the minimal update computed by reconciling a fresh snapshot
// against the prior buffer
type Delta struct {
	// Appended holds messages not present in the prior buffer, in stream order
	Appended []model.Message
	// Changed holds messages whose read flag or reactions changed in place
	Changed []model.Message
	// Reset marks a snapshot that removed or reordered messages; consumers
	// should re-render from Messages() instead of patching
	Reset bool
}

// Stream is a per-conversation ordered message buffer backed by a snapshot
// subscription. Every open stream must be closed on every exit path,
// including teardown, or the underlying subscription leaks.
type Stream struct {
	ConversationID uuid.UUID

	sub     *store.MessageSubscription
	manager *StreamManager

	mu     stdsync.RWMutex
	buffer []model.Message

	updates chan Delta
	closed  chan struct{}
}

// Messages returns a copy of the current ordered buffer
// (createdAt ascending, arrival order on ties)
func (s *Stream) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Message, len(s.buffer))
	copy(out, s.buffer)
	return out
}

// Updates delivers one Delta per reconciled snapshot. The channel closes when
// the stream is closed.
func (s *Stream) Updates() <-chan Delta {
	return s.updates
}

// Close releases the subscription and unregisters the stream
func (s *Stream) Close() {
	s.manager.release(s)
}

// reconcile diffs a fresh authoritative snapshot against the prior buffer.
// The snapshot wholly replaces the buffer; the diff only exists to let the
// consumer patch instead of re-rendering.
func (s *Stream) reconcile(snapshot []model.Message) Delta {
	s.mu.Lock()
	defer s.mu.Unlock()

	prior := make(map[uuid.UUID]*model.Message, len(s.buffer))
	for i := range s.buffer {
		prior[s.buffer[i].ID] = &s.buffer[i]
	}

	var delta Delta
	seen := 0
	for i := range snapshot {
		msg := &snapshot[i]
		old, ok := prior[msg.ID]
		if !ok {
			delta.Appended = append(delta.Appended, *msg)
			continue
		}
		seen++
		if old.Read != msg.Read || !sameReactions(old.Reactions, msg.Reactions) {
			delta.Changed = append(delta.Changed, *msg)
		}
	}
	// Anything from the prior buffer missing in the snapshot means the
	// snapshot is not a pure append; so does an append landing before the end.
	if seen != len(s.buffer) || !appendedAtTail(s.buffer, snapshot) {
		delta.Reset = true
	}

	s.buffer = snapshot
	return delta
}

// appendedAtTail reports whether prior is a prefix of next (by ID)
func appendedAtTail(prior, next []model.Message) bool {
	if len(next) < len(prior) {
		return false
	}
	for i := range prior {
		if prior[i].ID != next[i].ID {
			return false
		}
	}
	return true
}

func sameReactions(a, b []model.MessageReaction) bool {
	if len(a) != len(b) {
		return false
	}
	byUser := make(map[uuid.UUID]string, len(a))
	for _, r := range a {
		byUser[r.UserID] = r.Emoji
	}
	for _, r := range b {
		if byUser[r.UserID] != r.Emoji {
			return false
		}
	}
	return true
}

// StreamManager opens and tracks per-conversation streams. One stream per
// conversation per manager; opening an already-open conversation returns the
// existing handle.
type StreamManager struct {
	store store.Store

	mu      stdsync.Mutex
	streams map[uuid.UUID]*Stream
}

func NewStreamManager(st store.Store) *StreamManager {
	return &StreamManager{
		store:   st,
		streams: make(map[uuid.UUID]*Stream),
	}
}

// Open subscribes to a conversation's messages and starts reconciling
// snapshots into an ordered buffer
func (m *StreamManager) Open(ctx context.Context, conversationID uuid.UUID) (*Stream, error) {
	m.mu.Lock()
	if existing, ok := m.streams[conversationID]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	m.mu.Unlock()

	sub, err := m.store.SubscribeMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	stream := &Stream{
		ConversationID: conversationID,
		sub:            sub,
		manager:        m,
		updates:        make(chan Delta, 8),
		closed:         make(chan struct{}),
	}

	// Apply the initial snapshot before returning so Messages() is populated
	select {
	case snapshot, ok := <-sub.C:
		if ok {
			stream.reconcile(snapshot)
		}
	case <-ctx.Done():
		sub.Close()
		return nil, ctx.Err()
	}

	m.mu.Lock()
	if existing, ok := m.streams[conversationID]; ok {
		// Lost a race with a concurrent Open; keep the first stream
		m.mu.Unlock()
		sub.Close()
		return existing, nil
	}
	m.streams[conversationID] = stream
	m.mu.Unlock()

	go func() {
		defer close(stream.closed)
		defer close(stream.updates)
		for snapshot := range sub.C {
			delta := stream.reconcile(snapshot)
			if len(delta.Appended) == 0 && len(delta.Changed) == 0 && !delta.Reset {
				continue
			}
			select {
			case stream.updates <- delta:
			default:
				// Consumer is behind; drop the patch. The buffer already
				// holds the authoritative state.
			}
		}
	}()

	return stream, nil
}

// CloseAll releases every open stream (session teardown)
func (m *StreamManager) CloseAll() {
	m.mu.Lock()
	streams := make([]*Stream, 0, len(m.streams))
	for _, s := range m.streams {
		streams = append(streams, s)
	}
	m.mu.Unlock()

	for _, s := range streams {
		m.release(s)
	}
}

func (m *StreamManager) release(stream *Stream) {
	m.mu.Lock()
	current, ok := m.streams[stream.ConversationID]
	if ok && current == stream {
		delete(m.streams, stream.ConversationID)
	}
	m.mu.Unlock()

	stream.sub.Close()
	<-stream.closed
}
