package session

import (
	"sync"
	"time"
)

// Timer is a cancellable one-shot timer handle. All dwell/debounce/
// throttle scheduling in the engine goes through these handles so stale
// callbacks cannot fire after a session identity has changed.
type Timer struct {
	mu      sync.Mutex
	t       *time.Timer
	stopped bool
}

// After schedules fn to run once after d.
func After(d time.Duration, fn func()) *Timer {
	timer := &Timer{}
	timer.t = time.AfterFunc(d, func() {
		timer.mu.Lock()
		if timer.stopped {
			timer.mu.Unlock()
			return
		}
		timer.mu.Unlock()
		fn()
	})
	return timer
}

// Stop cancels the timer if it has not fired. Idempotent.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.t != nil {
		t.t.Stop()
	}
}

// Debounce coalesces repeated schedule calls: each Schedule supersedes
// any pending one, so only the last scheduled fn runs.
type Debounce struct {
	mu sync.Mutex
	t  *Timer
}

// Schedule runs fn after d, cancelling any previously scheduled call.
func (d *Debounce) Schedule(dur time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.t != nil {
		d.t.Stop()
	}
	d.t = After(dur, fn)
}

// Stop cancels any pending call.
func (d *Debounce) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.t != nil {
		d.t.Stop()
		d.t = nil
	}
}

// Throttle bounds how often a side-effecting action may run within a
// window. Allow returns true at most once per window.
type Throttle struct {
	mu     sync.Mutex
	window time.Duration
	last   time.Time
}

// NewThrottle creates a throttle with the given window.
func NewThrottle(window time.Duration) *Throttle {
	return &Throttle{window: window}
}

// Allow reports whether the action may run now, and if so records the run.
func (t *Throttle) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if !t.last.IsZero() && now.Sub(t.last) < t.window {
		return false
	}
	t.last = now
	return true
}

// Reset clears the throttle history.
func (t *Throttle) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = time.Time{}
}
