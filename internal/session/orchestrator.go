package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/converse-ai/converse/internal/event"
	"github.com/converse-ai/converse/pkg/types"
)

// DefaultThinkingDwell is how long the "thinking" placeholder stays
// visible even when the first token arrives sooner, to avoid flicker.
const DefaultThinkingDwell = 800 * time.Millisecond

// SendMessage runs one send attempt through the per-send state machine:
// Idle → Locked → AwaitingFirstToken → Streaming → (Complete|Error) → Idle.
//
// A send with neither content nor attachments fails fast with
// ErrEmptyMessage; a send while another is streaming is rejected with
// ErrSendInProgress, mutating nothing and issuing no network call. The
// call blocks until the stream terminates; the deferred save, title
// regeneration, and preference/artifact extraction are scheduled
// independently afterwards and may each fail without affecting the others.
func (e *Engine) SendMessage(ctx context.Context, content string, attachments ...types.Attachment) error {
	if strings.TrimSpace(content) == "" && len(attachments) == 0 {
		return ErrEmptyMessage
	}

	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		return ErrNoSession
	}
	sess := e.session
	transcript := e.transcript
	syncer := e.sync
	e.mu.Unlock()

	if !e.guard.Lock() {
		return ErrSendInProgress
	}
	// The guard must release exactly once on every exit path; Unlock
	// tolerates the redundant call when an error handler already ran.
	defer e.guard.Unlock()

	syncer.Touch(inactivityTimeout(e.cfg))

	now := time.Now().UnixMilli()
	userMsg := types.Message{
		ID:          generateID(),
		Role:        types.RoleUser,
		Content:     content,
		Timestamp:   now,
		Attachments: attachments,
	}
	placeholder := types.Message{
		ID:        generateID(),
		Role:      types.RoleAssistant,
		Timestamp: now,
		Metadata:  types.MessageMetadata{Model: sess.Model, IsThinking: true},
	}

	// One atomic update: observers never see the user message without
	// its placeholder.
	transcript.Append(userMsg, placeholder)

	firstExchange := countUserMessages(transcript) == 1

	req := &types.ChatRequest{
		Messages:      transcript.Outbound(),
		Model:         sess.Model,
		Stream:        true,
		Tone:          e.cfg.Tone,
		UseMemory:     e.cfg.UseMemory,
		MemoryContext: e.memoryContext(ctx, transcript),
	}

	st := newStreamState(transcript, placeholder.ID, dwellDuration(e.cfg))
	err := e.backend.Chat(ctx, req, st.onToken)
	st.finish()

	if err != nil {
		e.recoverSendError(sess.ID, transcript, placeholder.ID, st.partial(), err)
		e.guard.Unlock()
		return fmt.Errorf("send message: %w", err)
	}

	e.mu.Lock()
	sess.UpdatedAt = time.Now().UnixMilli()
	e.mu.Unlock()

	e.guard.Unlock()

	e.scheduleSideEffects(sess, transcript, syncer, firstExchange)
	return nil
}

// scheduleSideEffects kicks off the three independent post-stream tasks.
func (e *Engine) scheduleSideEffects(sess *types.Session, transcript *Transcript, syncer *Synchronizer, firstExchange bool) {
	messages := transcript.Messages()

	// (a) one deferred full-transcript save, superseding earlier ones.
	syncer.ScheduleSave(messages, sess.Model, sess.Title)

	// (b) conditional title (re)generation.
	go e.updateTitle(context.Background(), sess, transcript, firstExchange)

	// (c) artifact + preference extraction from the finished exchange.
	go e.extractor.Extract(context.Background(), sess.ID, transcript, e.summaries, e.prefs)
}

// recoverSendError replaces the placeholder with a synthesized error
// message that preserves any partial content already streamed, and
// surfaces a transient notice.
func (e *Engine) recoverSendError(sessionID string, transcript *Transcript, placeholderID, partial string, cause error) {
	e.log.Warn().Err(cause).Str("session", sessionID).Msg("send failed")

	transcript.ReplaceLast(func(m types.Message) types.Message {
		if m.ID != placeholderID {
			return m
		}
		content := "Something went wrong while generating the response. Please try again."
		if partial != "" {
			content = partial + "\n\n[The response was interrupted.]"
		}
		m.Content = content
		m.Metadata.IsThinking = false
		m.Metadata.IsError = true
		return m
	})

	event.Publish(event.Event{
		Type: event.Notice,
		Data: event.NoticeData{
			SessionID: sessionID,
			Severity:  "error",
			Message:   "The response could not be completed.",
		},
	})
}

// streamState applies tokens to the placeholder in arrival order. Tokens
// arriving inside the dwell window accumulate and flush atomically when
// the window closes; afterwards each token appends directly.
type streamState struct {
	transcript *Transcript
	messageID  string

	mu        sync.Mutex
	buffering bool
	buf       strings.Builder
	received  strings.Builder

	dwell *Timer
}

func newStreamState(transcript *Transcript, messageID string, dwell time.Duration) *streamState {
	st := &streamState{
		transcript: transcript,
		messageID:  messageID,
		buffering:  true,
	}
	st.dwell = After(dwell, st.flush)
	return st
}

// onToken handles one token payload. Buffering and appending both happen
// under the lock so a token can never overtake the buffered prefix when
// the dwell timer fires concurrently.
func (st *streamState) onToken(token string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.received.WriteString(token)
	if st.buffering {
		st.buf.WriteString(token)
		return
	}
	st.append(token)
}

// flush closes the dwell window and commits everything buffered as one
// transcript update. The buffered prefix is appended before the lock is
// released, keeping arrival order intact.
func (st *streamState) flush() {
	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.buffering {
		return
	}
	st.buffering = false
	if st.buf.Len() > 0 {
		st.append(st.buf.String())
	}
	st.buf.Reset()
}

// append extends the placeholder content and clears its thinking state.
func (st *streamState) append(delta string) {
	st.transcript.ReplaceLast(func(m types.Message) types.Message {
		m.Content += delta
		m.Metadata.IsThinking = false
		return m
	})
	event.Publish(event.Event{
		Type: event.StreamDelta,
		Data: event.StreamDeltaData{
			SessionID: st.transcript.SessionID(),
			MessageID: st.messageID,
			Delta:     delta,
		},
	})
}

// finish stops the dwell timer and commits any remaining buffered tokens.
// Correctness beats the dwell nicety once the stream has terminated.
func (st *streamState) finish() {
	st.dwell.Stop()
	st.flush()

	// A stream that produced no tokens still ends the thinking state.
	st.transcript.ReplaceLast(func(m types.Message) types.Message {
		m.Metadata.IsThinking = false
		return m
	})
}

// partial returns everything received so far, for error synthesis.
func (st *streamState) partial() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.received.String()
}

// countUserMessages counts non-synthetic user entries.
func countUserMessages(t *Transcript) int {
	n := 0
	for _, m := range t.Messages() {
		if m.Role == types.RoleUser && !m.IsSynthetic() {
			n++
		}
	}
	return n
}
