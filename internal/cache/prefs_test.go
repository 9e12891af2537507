package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPrefsCache_HitWithinTTL(t *testing.T) {
	p := NewPrefsCache(time.Minute)
	ctx := context.Background()

	var calls int32
	fetch := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return map[string]string{"tone": "casual"}, nil
	}

	if _, err := p.Get(ctx, "alice", fetch); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if _, err := p.Get(ctx, "alice", fetch); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
}

func TestPrefsCache_UserMismatchForcesColdReload(t *testing.T) {
	p := NewPrefsCache(time.Minute)
	ctx := context.Background()

	var calls int32
	fetch := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return "prefs", nil
	}

	if _, err := p.Get(ctx, "alice", fetch); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Get(ctx, "bob", fetch); err != nil {
		t.Fatal(err)
	}

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("fetch calls = %d, want 2 (cold reload on user change)", got)
	}
}

func TestPrefsCache_ExpiryForcesReload(t *testing.T) {
	p := NewPrefsCache(30 * time.Millisecond)
	ctx := context.Background()

	var calls int32
	fetch := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return "prefs", nil
	}

	if _, err := p.Get(ctx, "alice", fetch); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if _, err := p.Get(ctx, "alice", fetch); err != nil {
		t.Fatal(err)
	}

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("fetch calls = %d, want 2", got)
	}
}

func TestPrefsCache_FailedFetchDoesNotStick(t *testing.T) {
	p := NewPrefsCache(time.Minute)
	ctx := context.Background()

	if _, err := p.Get(ctx, "alice", func(ctx context.Context) (any, error) {
		return nil, context.DeadlineExceeded
	}); err == nil {
		t.Fatal("expected fetch error")
	}

	v, err := p.Get(ctx, "alice", func(ctx context.Context) (any, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Get after failure: %v", err)
	}
	if v != "ok" {
		t.Errorf("value = %v, want ok", v)
	}
}

func TestPrefsCache_ConcurrentColdLoadsCollapse(t *testing.T) {
	p := NewPrefsCache(time.Minute)
	ctx := context.Background()

	var calls int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "shared", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Get(ctx, "alice", fetch); err != nil {
				t.Errorf("Get failed: %v", err)
			}
		}()
	}

	// Give the goroutines a moment to pile up behind the gate.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
}
