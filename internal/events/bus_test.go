package events

import (
	"sync"
	"testing"
	"time"
)

func TestNilBusPublish(t *testing.T) {
	var b *Bus
	// Must not panic.
	b.Publish(Event{Source: SourceAgent, Kind: KindInteraction})
	if got := b.SubscriberCount(); got != 0 {
		t.Errorf("SubscriberCount() on nil bus = %d, want 0", got)
	}
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := New()
	subs := []*Subscription{b.Subscribe(8), b.Subscribe(8), b.Subscribe(8)}
	defer func() {
		for _, s := range subs {
			s.Close()
		}
	}()

	b.Emit(SourceAgent, KindSuggestion, map[string]any{"suggestion_id": "s1"})

	for i, s := range subs {
		select {
		case got := <-s.C:
			if got.Kind != KindSuggestion {
				t.Errorf("subscriber %d: kind = %q, want suggestion", i, got.Kind)
			}
			if got.Timestamp.IsZero() {
				t.Errorf("subscriber %d: timestamp not stamped", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: timed out", i)
		}
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	s := b.Subscribe(1)
	defer s.Close()

	b.Emit(SourceSim, KindTick, nil)
	b.Emit(SourceSim, KindTick, nil)

	<-s.C
	select {
	case e := <-s.C:
		t.Errorf("expected drop, got %v", e)
	default:
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	b := New()
	s := b.Subscribe(4)

	s.Close()
	s.Close()

	if _, ok := <-s.C; ok {
		t.Error("channel should be closed")
	}
	if got := b.SubscriberCount(); got != 0 {
		t.Errorf("count = %d, want 0", got)
	}

	// Publishing with no subscribers must not panic.
	b.Emit(SourceDevices, KindDeviceUpdated, nil)
}

func TestConcurrentPublish(t *testing.T) {
	b := New()
	s := b.Subscribe(64)

	var drained sync.WaitGroup
	drained.Add(1)
	go func() {
		defer drained.Done()
		for range s.C {
			// Drops are fine; we only care about not racing.
		}
	}()

	var pubs sync.WaitGroup
	for i := 0; i < 10; i++ {
		pubs.Add(1)
		go func() {
			defer pubs.Done()
			for j := 0; j < 100; j++ {
				b.Emit(SourceAgent, KindLLMCall, map[string]any{"seq": j})
			}
		}()
	}

	pubs.Wait()
	s.Close()
	drained.Wait()
}
