package event

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBus_Subscribe(t *testing.T) {
	bus := NewBus()

	var received Event
	var wg sync.WaitGroup
	wg.Add(1)

	unsub := bus.Subscribe(SessionCreated, func(e Event) {
		received = e
		wg.Done()
	})
	defer unsub()

	bus.Publish(Event{Type: SessionCreated, Data: "test-session"})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if received.Type != SessionCreated {
			t.Errorf("Expected SessionCreated, got %v", received.Type)
		}
		if received.Data != "test-session" {
			t.Errorf("Expected 'test-session', got %v", received.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for event")
	}
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus()

	var count int32
	var wg sync.WaitGroup
	wg.Add(3)

	unsub := bus.SubscribeAll(func(e Event) {
		atomic.AddInt32(&count, 1)
		wg.Done()
	})
	defer unsub()

	bus.Publish(Event{Type: SessionCreated, Data: nil})
	bus.Publish(Event{Type: TranscriptUpdated, Data: nil})
	bus.Publish(Event{Type: TitleUpdated, Data: nil})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if atomic.LoadInt32(&count) != 3 {
			t.Errorf("Expected 3 events, got %d", count)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for events")
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	var count int32
	unsub := bus.Subscribe(StreamDelta, func(e Event) {
		atomic.AddInt32(&count, 1)
	})

	bus.PublishSync(Event{Type: StreamDelta, Data: nil})
	if atomic.LoadInt32(&count) != 1 {
		t.Errorf("Expected 1 event before unsub, got %d", count)
	}

	unsub()

	bus.PublishSync(Event{Type: StreamDelta, Data: nil})
	if atomic.LoadInt32(&count) != 1 {
		t.Errorf("Expected still 1 event after unsub, got %d", count)
	}
}

func TestBus_PublishSyncOrder(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.Subscribe(Notice, func(e Event) {
		order = append(order, e.Data.(string))
	})

	bus.PublishSync(Event{Type: Notice, Data: "first"})
	bus.PublishSync(Event{Type: Notice, Data: "second"})

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("Sync delivery out of order: %v", order)
	}
}

func TestBus_TypeFiltering(t *testing.T) {
	bus := NewBus()

	var count int32
	bus.Subscribe(TitleUpdated, func(e Event) {
		atomic.AddInt32(&count, 1)
	})

	bus.PublishSync(Event{Type: SessionDeleted, Data: nil})
	bus.PublishSync(Event{Type: TitleUpdated, Data: nil})

	if atomic.LoadInt32(&count) != 1 {
		t.Errorf("Expected exactly 1 filtered event, got %d", count)
	}
}

func TestBus_Close(t *testing.T) {
	bus := NewBus()

	var count int32
	bus.Subscribe(SessionCreated, func(e Event) {
		atomic.AddInt32(&count, 1)
	})

	if err := bus.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	bus.PublishSync(Event{Type: SessionCreated, Data: nil})
	if atomic.LoadInt32(&count) != 0 {
		t.Errorf("Subscriber called after Close: %d", count)
	}

	// Closing twice is safe.
	if err := bus.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}
}
