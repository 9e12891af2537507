package session

import (
	"sync"

	"github.com/converse-ai/converse/internal/event"
	"github.com/converse-ai/converse/pkg/types"
)

// Transcript holds the ordered message sequence for one session. It is
// the engine's only piece of shared mutable state; every mutation goes
// through Update as a pure transform of the previous slice, so no update
// can silently clobber a concurrent one.
type Transcript struct {
	mu        sync.RWMutex
	sessionID string
	messages  []types.Message
}

// NewTranscript creates an empty transcript bound to a session id.
func NewTranscript(sessionID string) *Transcript {
	return &Transcript{sessionID: sessionID}
}

// SessionID returns the owning session id.
func (t *Transcript) SessionID() string {
	return t.sessionID
}

// Update applies transform to the current messages under the lock and
// publishes the resulting state as a single transcript.updated event, so
// observers never see an inconsistent intermediate.
func (t *Transcript) Update(transform func([]types.Message) []types.Message) {
	t.mu.Lock()
	t.messages = transform(t.messages)
	snapshot := t.snapshotLocked()
	t.mu.Unlock()

	event.Publish(event.Event{
		Type: event.TranscriptUpdated,
		Data: event.TranscriptUpdatedData{SessionID: t.sessionID, Messages: snapshot},
	})
}

// Append adds messages to the end of the transcript in one update.
func (t *Transcript) Append(msgs ...types.Message) {
	t.Update(func(prev []types.Message) []types.Message {
		return append(prev, msgs...)
	})
}

// ReplaceLast rewrites the final message in place. A no-op on an empty
// transcript.
func (t *Transcript) ReplaceLast(transform func(types.Message) types.Message) {
	t.Update(func(prev []types.Message) []types.Message {
		if len(prev) == 0 {
			return prev
		}
		next := make([]types.Message, len(prev))
		copy(next, prev)
		next[len(next)-1] = transform(next[len(next)-1])
		return next
	})
}

// Replace swaps the whole transcript, used when hydrating from storage.
func (t *Transcript) Replace(msgs []types.Message) {
	t.Update(func([]types.Message) []types.Message {
		return append([]types.Message(nil), msgs...)
	})
}

// Messages returns a copy of the current transcript.
func (t *Transcript) Messages() []types.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshotLocked()
}

// Last returns the final message and true, or a zero message and false.
func (t *Transcript) Last() (types.Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.messages) == 0 {
		return types.Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

func (t *Transcript) snapshotLocked() []types.Message {
	return append([]types.Message(nil), t.messages...)
}

// Outbound returns the messages to send to the backend: the thinking
// placeholder, synthetic system/welcome entries, and blank messages are
// all filtered out.
func (t *Transcript) Outbound() []types.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]types.Message, 0, len(t.messages))
	for i := range t.messages {
		m := &t.messages[i]
		if m.IsSynthetic() || m.Role == types.RoleSystem || m.IsBlank() {
			continue
		}
		out = append(out, *m)
	}
	return out
}
