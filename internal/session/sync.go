package session

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/converse-ai/converse/internal/api"
	"github.com/converse-ai/converse/internal/logging"
	"github.com/converse-ai/converse/pkg/types"
)

const (
	// MaxSaveAttempts bounds persistence retries: 1 initial + 2 retries.
	MaxSaveAttempts = 3
	// DefaultSaveDelay defers the post-stream full-transcript save so a
	// burst of completion triggers collapses into one write.
	DefaultSaveDelay = 100 * time.Millisecond
	// DefaultInactivityTimeout marks the session inactive after idle.
	DefaultInactivityTimeout = 30 * time.Minute

	retryInitialInterval = 250 * time.Millisecond
	retryMaxInterval     = 5 * time.Second
)

// Persister is the narrow contract the synchronizer needs from the
// persistence endpoint client.
type Persister interface {
	SaveChatSession(ctx context.Context, req *types.SaveSessionRequest) error
	LoadChatSession(ctx context.Context, id string) (*types.PersistedSession, error)
	DeleteChatSession(ctx context.Context, id string) error
}

// Synchronizer is the persistence handle bound to one session id. It owns
// the deferred-save debounce and the inactivity timer; Teardown must run
// before a handle for a different id is constructed.
type Synchronizer struct {
	client    Persister
	identity  api.Identity
	sessionID string

	saveDelay     time.Duration
	retryInterval time.Duration

	pendingSave Debounce
	inactivity  *Timer
	onIdle      func()

	log zerolog.Logger
}

// NewSynchronizer binds a persistence handle to a session id.
func NewSynchronizer(client Persister, identity api.Identity, sessionID string, saveDelay, inactivityTimeout time.Duration, onIdle func()) *Synchronizer {
	if saveDelay <= 0 {
		saveDelay = DefaultSaveDelay
	}
	s := &Synchronizer{
		client:        client,
		identity:      identity,
		sessionID:     sessionID,
		saveDelay:     saveDelay,
		retryInterval: retryInitialInterval,
		onIdle:        onIdle,
		log:           logging.Component("sync").With().Str("session", sessionID).Logger(),
	}
	if inactivityTimeout > 0 && onIdle != nil {
		s.inactivity = After(inactivityTimeout, onIdle)
	}
	return s
}

// newRetryBackoff creates an exponential backoff with jitter, capped at
// MaxSaveAttempts total attempts and cancelled with the context.
func (s *Synchronizer) newRetryBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryInterval
	b.MaxInterval = retryMaxInterval
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, MaxSaveAttempts-1), ctx)
}

// SaveSession performs an idempotent upsert of the full transcript keyed
// by the session id. Without an authenticated identity it is a silent
// no-op. Transient failures are retried up to MaxSaveAttempts total
// attempts; exhaustion propagates the last error to the caller.
func (s *Synchronizer) SaveSession(ctx context.Context, messages []types.Message, model, title string) error {
	if _, ok := s.identity.UserID(); !ok {
		s.log.Debug().Msg("no identity, skipping save")
		return nil
	}

	req := &types.SaveSessionRequest{
		ID:       s.sessionID,
		Title:    title,
		Messages: messages,
		Model:    model,
	}

	operation := func() error {
		err := s.client.SaveChatSession(ctx, req)
		if err != nil && !api.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	if err := backoff.Retry(operation, s.newRetryBackoff(ctx)); err != nil {
		s.log.Error().Err(err).Msg("save exhausted retries")
		return err
	}
	return nil
}

// LoadSession fetches the persisted transcript for id. Transient failures
// are retried; a "not found" that persists through the retries is a
// legitimate empty result, not an error.
func (s *Synchronizer) LoadSession(ctx context.Context, id string) ([]types.Message, string, error) {
	var sess *types.PersistedSession

	operation := func() error {
		var err error
		sess, err = s.client.LoadChatSession(ctx, id)
		if err != nil && !errors.Is(err, api.ErrNotFound) && !api.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(operation, s.newRetryBackoff(ctx))
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return nil, "", nil
		}
		return nil, "", err
	}
	return sess.Messages, sess.Title, nil
}

// ScheduleSave defers a single full-transcript save, superseding any
// earlier pending one so exactly one write happens per completed
// exchange. Failures after retries surface only as log output; the
// conversation is never interrupted by a failed background save.
func (s *Synchronizer) ScheduleSave(messages []types.Message, model, title string) {
	s.pendingSave.Schedule(s.saveDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.SaveSession(ctx, messages, model, title); err != nil {
			s.log.Warn().Err(err).Msg("deferred save failed")
		}
	})
}

// Delete removes the persisted session and its derived summary.
func (s *Synchronizer) Delete(ctx context.Context, id string) error {
	return s.client.DeleteChatSession(ctx, id)
}

// Touch restarts the inactivity timer after user activity.
func (s *Synchronizer) Touch(timeout time.Duration) {
	if s.onIdle == nil || timeout <= 0 {
		return
	}
	if s.inactivity != nil {
		s.inactivity.Stop()
	}
	s.inactivity = After(timeout, s.onIdle)
}

// Teardown stops all timers owned by this handle. It must be called
// before a synchronizer for a different session id is constructed.
func (s *Synchronizer) Teardown() {
	s.pendingSave.Stop()
	if s.inactivity != nil {
		s.inactivity.Stop()
	}
}
