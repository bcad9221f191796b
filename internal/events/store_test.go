package events

import (
	"context"
	"fmt"
	"testing"

	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/events"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/logger"
)

func TestStoreSinceReturnsWindow(t *testing.T) {
	store := NewStore(100)
	store.Init("s1")

	for i := 0; i < 5; i++ {
		store.Add("s1", events.New(events.RunTurn).With("turn", i))
	}

	all, last, ok := store.Since("s1", -1)
	if !ok {
		t.Fatal("session not found")
	}
	if len(all) != 5 || last != 4 {
		t.Fatalf("Since(-1) = %d events, last %d; want 5 and 4", len(all), last)
	}

	newer, last, ok := store.Since("s1", 2)
	if !ok || len(newer) != 2 || last != 4 {
		t.Errorf("Since(2) = %d events, last %d, ok %v; want 2, 4, true", len(newer), last, ok)
	}

	none, last, ok := store.Since("s1", 4)
	if !ok || len(none) != 0 || last != 4 {
		t.Errorf("Since(4) = %d events, last %d, ok %v; want 0, 4, true", len(none), last, ok)
	}
}

func TestStoreUnknownSession(t *testing.T) {
	store := NewStore(10)
	if _, _, ok := store.Since("missing", -1); ok {
		t.Error("Since(missing) reported an existing session")
	}
}

func TestStoreInitMakesSessionVisible(t *testing.T) {
	store := NewStore(10)
	store.Init("fresh")

	evs, last, ok := store.Since("fresh", -1)
	if !ok {
		t.Fatal("initialized session not visible")
	}
	if len(evs) != 0 || last != -1 {
		t.Errorf("fresh session = %d events, last %d; want 0 and -1", len(evs), last)
	}
}

func TestStoreCapsPerSession(t *testing.T) {
	store := NewStore(3)
	store.Init("s1")

	for i := 0; i < 10; i++ {
		store.Add("s1", events.New(events.RunTurn).With("turn", i))
	}

	evs, _, ok := store.Since("s1", -1)
	if !ok {
		t.Fatal("session not found")
	}
	if len(evs) != 3 {
		t.Fatalf("len(events) = %d, want cap of 3", len(evs))
	}
	if got := evs[0].Payload["turn"]; got != 7 {
		t.Errorf("oldest kept event turn = %v, want 7 (front trimmed)", got)
	}
}

func TestStoreRemove(t *testing.T) {
	store := NewStore(10)
	store.Init("gone")
	store.Add("gone", events.New(events.RunStart))
	store.Remove("gone")

	if _, _, ok := store.Since("gone", -1); ok {
		t.Error("removed session still visible")
	}
	if ids := store.Sessions(); len(ids) != 0 {
		t.Errorf("Sessions() = %v, want empty", ids)
	}
}

func TestManagerSessionLifecycle(t *testing.T) {
	store := NewStore(10)
	mgr := NewManager(store, logger.CreateTestLogger())

	id := mgr.StartSession()
	if id == "" {
		t.Fatal("StartSession returned empty ID")
	}

	listener := mgr.ListenerFor(id)
	if err := listener.HandleEvent(context.Background(), events.New(events.RunStart)); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}

	evs, _, ok := mgr.Events(id, -1)
	if !ok || len(evs) != 1 {
		t.Fatalf("Events() = %d events, ok %v; want 1, true", len(evs), ok)
	}
	if evs[0].SessionID != id {
		t.Errorf("event session = %q, want listener to stamp %q", evs[0].SessionID, id)
	}

	mgr.EndSession(id)
	if _, _, ok := mgr.Events(id, -1); ok {
		t.Error("ended session still pollable")
	}
}

func TestManagerStats(t *testing.T) {
	store := NewStore(10)
	mgr := NewManager(store, logger.CreateTestLogger())

	ids := make([]string, 3)
	for i := range ids {
		ids[i] = mgr.StartSession()
		listener := mgr.ListenerFor(ids[i])
		for j := 0; j <= i; j++ {
			listener.HandleEvent(context.Background(), events.New(events.RunTurn))
		}
	}

	stats := mgr.Stats()
	if stats["sessions"] != 3 {
		t.Errorf("sessions = %v, want 3", stats["sessions"])
	}
	if stats["total_events"] != 6 {
		t.Errorf("total_events = %v, want 6", stats["total_events"])
	}
}

func TestStoreConcurrentAdds(t *testing.T) {
	store := NewStore(1000)
	store.Init("s1")

	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 50; i++ {
				store.Add("s1", events.New(events.RunTurn).With("writer", fmt.Sprintf("g%d", g)))
			}
		}(g)
	}
	for g := 0; g < 8; g++ {
		<-done
	}

	evs, _, ok := store.Since("s1", -1)
	if !ok || len(evs) != 400 {
		t.Errorf("len(events) = %d, want 400", len(evs))
	}
}
