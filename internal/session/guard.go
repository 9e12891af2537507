package session

import "sync"

// Guard is the mutual-exclusion contract over sends. It is deliberately
// not a sync.Mutex: Lock is an admission check that fails fast instead of
// blocking, and Unlock tolerates double release so that a completion
// handler and an error handler firing for the same send cannot corrupt
// guard state.
//
// The guard is the correctness-critical primitive; the advisory
// "isLoading" presentation flag is derived from Held.
type Guard struct {
	mu   sync.Mutex
	held bool
}

// Lock attempts to acquire the guard. It returns false when a send is
// already in progress; the caller must reject the new send.
func (g *Guard) Lock() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.held {
		return false
	}
	g.held = true
	return true
}

// Unlock releases the guard. Releasing an unheld guard is a no-op.
func (g *Guard) Unlock() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.held = false
}

// Held reports whether a send currently holds the guard.
func (g *Guard) Held() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held
}
