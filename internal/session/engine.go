package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/converse-ai/converse/internal/api"
	"github.com/converse-ai/converse/internal/cache"
	"github.com/converse-ai/converse/internal/event"
	"github.com/converse-ai/converse/internal/logging"
	"github.com/converse-ai/converse/pkg/types"
)

// Engine errors.
var (
	// ErrEmptyMessage rejects a send with neither content nor attachments.
	ErrEmptyMessage = errors.New("message has no content or attachments")
	// ErrSendInProgress rejects a send while another holds the guard.
	ErrSendInProgress = errors.New("a send is already in progress")
	// ErrNoSession reports an operation before any session is bound.
	ErrNoSession = errors.New("no active session")
)

// Streamer is the contract the orchestrator needs from the streaming
// chat endpoint.
type Streamer interface {
	Chat(ctx context.Context, req *types.ChatRequest, onToken api.TokenFunc) error
}

// Extracting is the contract the extractor needs from the title and
// summarization endpoints.
type Extracting interface {
	GenerateTitle(ctx context.Context, req *types.TitleRequest) (string, error)
	Summarize(ctx context.Context, req *types.SummarizeRequest) (*types.SummarizeResponse, error)
}

// Backend bundles every remote contract the engine consumes. The api
// package's Client and StreamClient jointly satisfy it.
type Backend interface {
	Streamer
	Persister
	Extracting
}

// backend joins the two api clients into one Backend.
type backend struct {
	*api.StreamClient
	*api.Client
}

// NewBackend bundles the production API clients.
func NewBackend(stream *api.StreamClient, client *api.Client) Backend {
	return backend{StreamClient: stream, Client: client}
}

// loadPhase is the explicit three-state load tracker. Reifying it (rather
// than tracking "which id is loading" with string sentinels) makes the
// illegal states unrepresentable.
type loadPhase int

const (
	notLoaded loadPhase = iota
	loadingPhase
	loadedPhase
)

type loadTracker struct {
	mu    sync.Mutex
	phase loadPhase
	id    string
}

// begin transitions to Loading(id). It returns false while any load is
// in flight, and for an id that is already loaded, making duplicate and
// overlapping calls no-ops.
func (l *loadTracker) begin(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.phase == loadingPhase {
		return false
	}
	if l.phase == loadedPhase && l.id == id {
		return false
	}
	l.phase = loadingPhase
	l.id = id
	return true
}

// complete transitions Loading(id) to Loaded(id).
func (l *loadTracker) complete(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.phase == loadingPhase && l.id == id {
		l.phase = loadedPhase
	}
}

// reset returns to NotLoaded, permitting a retry after failure.
func (l *loadTracker) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.phase = notLoaded
	l.id = ""
}

// Engine coordinates one active conversation: identity, transcript,
// streaming sends, persistence, and derived metadata.
type Engine struct {
	cfg      *types.Config
	backend  Backend
	identity api.Identity

	summaries *cache.Cache
	prefs     *cache.PrefsCache

	mu         sync.Mutex
	session    *types.Session
	transcript *Transcript
	sync       *Synchronizer

	guard     Guard
	loads     loadTracker
	extractor *Extractor

	log zerolog.Logger
}

// NewEngine creates an engine against the given backend and identity.
func NewEngine(cfg *types.Config, be Backend, identity api.Identity) *Engine {
	if identity == nil {
		identity = api.Anonymous
	}
	e := &Engine{
		cfg:       cfg,
		backend:   be,
		identity:  identity,
		summaries: cache.New(),
		prefs:     cache.NewPrefsCache(cacheTTL(cfg)),
		log:       logging.Component("engine"),
	}
	if id, ok := identity.UserID(); ok {
		e.summaries.SetUser(id)
	}
	e.extractor = NewExtractor(be, identity, prefsThrottle(cfg))
	return e
}

// NewSession mints a fresh session id and binds a new persistence handle.
// The previous handle's timers are cancelled strictly before the new one
// is constructed.
func (e *Engine) NewSession() *types.Session {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.teardownLocked()

	now := time.Now().UnixMilli()
	sess := &types.Session{
		ID:        generateID(),
		Model:     e.cfg.Model,
		CreatedAt: now,
		UpdatedAt: now,
		IsActive:  true,
	}
	e.bindLocked(sess)
	e.loads.reset()
	e.injectWelcome()

	event.Publish(event.Event{
		Type: event.SessionCreated,
		Data: event.SessionCreatedData{Info: sess},
	})
	return sess
}

// LoadSessionMessages hydrates the transcript for an existing id. A
// duplicate call for the same id, or an overlapping call while a load is
// in flight, is a no-op. On an empty result the configured welcome
// message is injected; on failure the tracker resets (permitting retry),
// a non-fatal notice is published, and the welcome message stands in.
func (e *Engine) LoadSessionMessages(ctx context.Context, id string) error {
	if !e.loads.begin(id) {
		return nil
	}

	e.mu.Lock()
	if e.session == nil || e.session.ID != id {
		e.teardownLocked()
		now := time.Now().UnixMilli()
		e.bindLocked(&types.Session{
			ID:        id,
			Model:     e.cfg.Model,
			CreatedAt: now,
			UpdatedAt: now,
			IsActive:  true,
		})
	}
	sync := e.sync
	e.mu.Unlock()

	messages, title, err := sync.LoadSession(ctx, id)

	// The engine may have been rebound while the fetch was in flight. A
	// result for a session that is no longer current is discarded.
	e.mu.Lock()
	if e.session == nil || e.session.ID != id {
		e.mu.Unlock()
		return nil
	}
	if err == nil && title != "" {
		e.session.Title = title
	}
	transcript := e.transcript
	e.mu.Unlock()

	if err != nil {
		e.loads.reset()
		e.injectWelcome()
		event.Publish(event.Event{
			Type: event.Notice,
			Data: event.NoticeData{
				SessionID: id,
				Severity:  "warning",
				Message:   "Could not load the conversation history.",
			},
		})
		return fmt.Errorf("load session %s: %w", id, err)
	}

	if len(messages) == 0 {
		e.injectWelcome()
	} else {
		transcript.Replace(messages)
	}
	e.loads.complete(id)

	event.Publish(event.Event{
		Type: event.SessionLoaded,
		Data: event.SessionLoadedData{SessionID: id, Messages: len(messages)},
	})
	return nil
}

// DeleteSession removes the persisted session and purges its derived
// summaries. Deleting the active session tears the engine down to an
// unbound state.
func (e *Engine) DeleteSession(ctx context.Context, id string) error {
	e.mu.Lock()
	sync := e.sync
	current := e.session != nil && e.session.ID == id
	e.mu.Unlock()

	if sync == nil {
		sync = NewSynchronizer(e.backend, e.identity, id, saveDelay(e.cfg), 0, nil)
	}
	if err := sync.Delete(ctx, id); err != nil {
		return err
	}

	e.summaries.Invalidate(summaryKey(id))

	if current {
		e.mu.Lock()
		e.teardownLocked()
		e.session = nil
		e.transcript = nil
		e.sync = nil
		e.loads.reset()
		e.mu.Unlock()
	}

	event.Publish(event.Event{
		Type: event.SessionDeleted,
		Data: event.SessionDeletedData{SessionID: id},
	})
	return nil
}

// SetIdentity swaps the identity provider. Caches are cleared on any
// owner change to prevent cross-user leakage.
func (e *Engine) SetIdentity(identity api.Identity) {
	if identity == nil {
		identity = api.Anonymous
	}
	e.mu.Lock()
	e.identity = identity
	if e.sync != nil {
		e.sync.identity = identity
	}
	e.extractor.identity = identity
	e.mu.Unlock()

	id, _ := identity.UserID()
	e.summaries.SetUser(id)
	e.prefs.Invalidate()
}

// Session returns a copy of the active session, or false when unbound.
func (e *Engine) Session() (types.Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return types.Session{}, false
	}
	return *e.session, true
}

// Messages returns a copy of the active transcript.
func (e *Engine) Messages() []types.Message {
	e.mu.Lock()
	t := e.transcript
	e.mu.Unlock()
	if t == nil {
		return nil
	}
	return t.Messages()
}

// IsLoading reports whether a send is streaming. Advisory, derived from
// the guard; presentation only.
func (e *Engine) IsLoading() bool {
	return e.guard.Held()
}

// Summary returns the session's derived summary through the read-through
// cache, fetching from the summarization endpoint on miss.
func (e *Engine) Summary(ctx context.Context) (*types.SummarizeResponse, error) {
	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		return nil, ErrNoSession
	}
	id := e.session.ID
	transcript := e.transcript
	e.mu.Unlock()

	return cache.Get(ctx, e.summaries, summaryKey(id), cacheTTL(e.cfg),
		func(ctx context.Context) (*types.SummarizeResponse, error) {
			return e.backend.Summarize(ctx, &types.SummarizeRequest{
				Messages:  transcript.Outbound(),
				SessionID: id,
			})
		})
}

// Close tears down timers. The engine is not usable afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.teardownLocked()
}

// bindLocked installs a session, its transcript, and a fresh persistence
// handle. Caller holds e.mu; the previous handle must already be torn
// down.
func (e *Engine) bindLocked(sess *types.Session) {
	e.session = sess
	e.transcript = NewTranscript(sess.ID)
	e.sync = NewSynchronizer(e.backend, e.identity, sess.ID,
		saveDelay(e.cfg), inactivityTimeout(e.cfg), func() {
			e.markInactive(sess.ID)
		})
	// The extraction throttle is scoped to the bound session; a rebind
	// starts a fresh window.
	e.extractor.throttle.Reset()
}

// teardownLocked cancels the previous persistence handle's timers.
// Caller holds e.mu.
func (e *Engine) teardownLocked() {
	if e.sync != nil {
		e.sync.Teardown()
	}
}

// markInactive flips IsActive after the inactivity timeout.
func (e *Engine) markInactive(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil || e.session.ID != id {
		return
	}
	e.session.IsActive = false
	event.Publish(event.Event{
		Type: event.SessionUpdated,
		Data: event.SessionUpdatedData{Info: e.session},
	})
}

// injectWelcome places the configured welcome message into an empty
// transcript. The emptiness check runs inside the transform, so rapid
// repeated triggers can never produce a duplicate.
func (e *Engine) injectWelcome() {
	e.mu.Lock()
	t := e.transcript
	e.mu.Unlock()
	if t == nil {
		return
	}

	t.Update(func(prev []types.Message) []types.Message {
		if len(prev) > 0 {
			return prev
		}
		return []types.Message{{
			ID:        generateID(),
			Role:      types.RoleAssistant,
			Content:   e.cfg.WelcomeMessage,
			Timestamp: time.Now().UnixMilli(),
			Metadata:  types.MessageMetadata{IsWelcome: true},
		}}
	})
}

// memoryContext resolves the learned-preference context forwarded with
// outbound requests when memory is enabled. It reads through the
// user-scoped preferences cache; on any failure the request simply goes
// out without memory context.
func (e *Engine) memoryContext(ctx context.Context, transcript *Transcript) string {
	if !e.cfg.UseMemory {
		return ""
	}
	userID, ok := e.identity.UserID()
	if !ok {
		return ""
	}

	v, err := e.prefs.Get(ctx, userID, func(ctx context.Context) (any, error) {
		resp, err := e.backend.Summarize(ctx, &types.SummarizeRequest{
			Messages:  transcript.Outbound(),
			SessionID: transcript.SessionID(),
		})
		if err != nil {
			return nil, err
		}
		return formatMemoryContext(resp), nil
	})
	if err != nil {
		e.log.Debug().Err(err).Msg("memory context unavailable")
		return ""
	}
	s, _ := v.(string)
	return s
}

func formatMemoryContext(resp *types.SummarizeResponse) string {
	parts := make([]string, 0, 1+len(resp.LearningPreferences))
	if resp.UserPreferences != "" {
		parts = append(parts, resp.UserPreferences)
	}
	parts = append(parts, resp.LearningPreferences...)
	return strings.Join(parts, "; ")
}

func summaryKey(sessionID string) string {
	return "summary:" + sessionID
}

// generateID generates a new ULID.
func generateID() string {
	return ulid.Make().String()
}

// Config-derived timings with engine defaults.

func saveDelay(cfg *types.Config) time.Duration {
	if cfg.SaveDebounceMs > 0 {
		return time.Duration(cfg.SaveDebounceMs) * time.Millisecond
	}
	return DefaultSaveDelay
}

func dwellDuration(cfg *types.Config) time.Duration {
	if cfg.ThinkingDwellMs > 0 {
		return time.Duration(cfg.ThinkingDwellMs) * time.Millisecond
	}
	return DefaultThinkingDwell
}

func prefsThrottle(cfg *types.Config) time.Duration {
	if cfg.PrefsThrottleSec > 0 {
		return time.Duration(cfg.PrefsThrottleSec) * time.Second
	}
	return DefaultPrefsThrottle
}

func cacheTTL(cfg *types.Config) time.Duration {
	if cfg.CacheTTLSec > 0 {
		return time.Duration(cfg.CacheTTLSec) * time.Second
	}
	return 5 * time.Minute
}

func inactivityTimeout(cfg *types.Config) time.Duration {
	if cfg.InactivityTimeout > 0 {
		return time.Duration(cfg.InactivityTimeout) * time.Second
	}
	return DefaultInactivityTimeout
}
