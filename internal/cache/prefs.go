package cache

import (
	"context"
	"sync"
	"time"
)

// PrefsSchemaVersion is bumped whenever the shape of cached preference
// data changes; stale schema entries are reloaded cold.
const PrefsSchemaVersion = 2

// PrefsCache caches settings/preferences scoped to a single user. Beyond
// TTL expiry, an entry is valid only while both the owning user id and
// the schema version match the current context; any mismatch forces a
// cold reload regardless of TTL.
type PrefsCache struct {
	mu sync.Mutex

	data          any
	timestamp     time.Time
	ttl           time.Duration
	userID        string
	schemaVersion int

	group flightGate
}

// flightGate serializes concurrent cold loads so only one fetch runs.
type flightGate struct {
	mu      sync.Mutex
	pending chan struct{}
}

// NewPrefsCache creates a preferences cache with the given TTL.
func NewPrefsCache(ttl time.Duration) *PrefsCache {
	return &PrefsCache{ttl: ttl, schemaVersion: PrefsSchemaVersion}
}

// Get returns the cached preferences for userID, fetching cold when the
// entry is missing, expired, owned by another user, or written under an
// older schema version.
func (p *PrefsCache) Get(ctx context.Context, userID string, fetch Fetcher) (any, error) {
	p.mu.Lock()
	valid := p.data != nil &&
		p.userID == userID &&
		p.schemaVersion == PrefsSchemaVersion &&
		time.Since(p.timestamp) < p.ttl
	if valid {
		data := p.data
		p.mu.Unlock()
		return data, nil
	}
	p.mu.Unlock()

	// Collapse concurrent cold loads into one fetch.
	if wait := p.group.enter(); wait != nil {
		select {
		case <-wait:
			return p.Get(ctx, userID, fetch)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	defer p.group.leave()

	data, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.data = data
	p.timestamp = time.Now()
	p.userID = userID
	p.schemaVersion = PrefsSchemaVersion
	p.mu.Unlock()

	return data, nil
}

// Invalidate drops the cached entry.
func (p *PrefsCache) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = nil
}

// enter returns nil when the caller becomes the fetcher, or a channel to
// wait on when a fetch is already in flight.
func (g *flightGate) enter() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending != nil {
		return g.pending
	}
	g.pending = make(chan struct{})
	return nil
}

// leave settles the in-flight marker, waking waiters. Always runs, on
// success and failure alike.
func (g *flightGate) leave() {
	g.mu.Lock()
	defer g.mu.Unlock()
	close(g.pending)
	g.pending = nil
}
