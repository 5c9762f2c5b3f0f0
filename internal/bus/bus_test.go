package bus

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	b := New()
	if b == nil {
		t.Fatal("New returned nil")
	}

	if b.historySize != DefaultHistorySize {
		t.Errorf("Expected history size %d, got %d", DefaultHistorySize, b.historySize)
	}

	b.Close()
}

func TestNewWithHistory(t *testing.T) {
	b := NewWithHistory(500)
	if b.historySize != 500 {
		t.Errorf("Expected history size 500, got %d", b.historySize)
	}
	b.Close()
}

func TestSubscribeAndPublish(t *testing.T) {
	b := New()
	defer b.Close()

	var received atomic.Bool
	done := make(chan bool, 1)

	handler := func(e Event) {
		if e.Type == EventControlTouched {
			received.Store(true)
			done <- true
		}
	}

	id := b.Subscribe(EventControlTouched, handler)
	if id == "" {
		t.Fatal("Subscribe returned empty ID")
	}

	event := NewEvent(EventControlTouched)
	event.Track = 3

	if err := b.Publish(event); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case <-done:
		if !received.Load() {
			t.Error("Handler was not called with correct event")
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for event delivery")
	}
}

func TestTypedSubscriptionFiltering(t *testing.T) {
	b := New()
	defer b.Close()

	var touched, clicked atomic.Int32
	touchedDone := make(chan struct{}, 10)

	b.Subscribe(EventControlTouched, func(e Event) {
		touched.Add(1)
		touchedDone <- struct{}{}
	})
	b.Subscribe(EventControlClicked, func(e Event) {
		clicked.Add(1)
	})

	b.Publish(NewEvent(EventControlTouched))
	b.Publish(NewEvent(EventControlTouched))

	for i := 0; i < 2; i++ {
		select {
		case <-touchedDone:
		case <-time.After(time.Second):
			t.Fatal("Timed out waiting for touched events")
		}
	}

	if touched.Load() != 2 {
		t.Errorf("Expected 2 touched events, got %d", touched.Load())
	}
	if clicked.Load() != 0 {
		t.Errorf("Expected 0 clicked events, got %d", clicked.Load())
	}
}

func TestWildcardSubscription(t *testing.T) {
	b := New()
	defer b.Close()

	seen := make(chan EventType, 10)
	b.Subscribe(EventType(""), func(e Event) {
		seen <- e.Type
	})

	b.Publish(NewEvent(EventControlTouched))
	b.Publish(NewEvent(EventPatternLearned))

	got := map[EventType]bool{}
	for i := 0; i < 2; i++ {
		select {
		case et := <-seen:
			got[et] = true
		case <-time.After(time.Second):
			t.Fatal("Timed out waiting for wildcard delivery")
		}
	}

	if !got[EventControlTouched] || !got[EventPatternLearned] {
		t.Errorf("Wildcard subscriber missed events: %v", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	defer b.Close()

	id := b.Subscribe(EventContextChanged, func(e Event) {})

	if b.TypedSubscriptionsCount(EventContextChanged) != 1 {
		t.Fatal("Expected 1 typed subscription")
	}

	if err := b.Unsubscribe(id); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}

	if b.TypedSubscriptionsCount(EventContextChanged) != 0 {
		t.Error("Expected 0 typed subscriptions after unsubscribe")
	}

	if err := b.Unsubscribe(id); err == nil {
		t.Error("Expected error unsubscribing twice")
	}
}

func TestHistoryRetention(t *testing.T) {
	b := NewWithHistory(5)
	defer b.Close()

	for i := 0; i < 8; i++ {
		b.Publish(NewEvent(EventHeartbeat))
	}

	history := b.History()
	if len(history) != 5 {
		t.Errorf("Expected history capped at 5, got %d", len(history))
	}

	slice := b.HistorySlice(3)
	if len(slice) != 3 {
		t.Errorf("Expected slice of 3, got %d", len(slice))
	}
}

func TestPublishAfterClose(t *testing.T) {
	b := New()
	b.Close()

	if err := b.Publish(NewEvent(EventHeartbeat)); err == nil {
		t.Error("Expected error publishing to closed bus")
	}
	if err := b.Close(); err == nil {
		t.Error("Expected error closing twice")
	}
}

func TestConcurrentSubscribeUniqueIDs(t *testing.T) {
	b := New()
	defer b.Close()

	const n = 50
	ids := make(chan SubscriptionID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- b.Subscribe(EventHeartbeat, func(Event) {})
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[SubscriptionID]bool, n)
	for id := range ids {
		if id == "" {
			t.Fatal("Subscribe returned empty ID")
		}
		if seen[id] {
			t.Fatalf("duplicate subscription ID %s", id)
		}
		seen[id] = true
	}
}

func TestEventIDsUnique(t *testing.T) {
	a := NewEvent(EventHeartbeat)
	b := NewEvent(EventHeartbeat)
	if a.ID == b.ID {
		t.Error("Expected distinct event IDs")
	}
	if a.ID == "" {
		t.Error("Expected non-empty event ID")
	}
}
