package events

import (
	"sync"

	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/events"
)

// Store keeps recent run events per session in memory for the polling API.
// Each session holds at most maxEvents entries; older ones are dropped.
type Store struct {
	mu        sync.RWMutex
	sessions  map[string][]*events.Event
	maxEvents int
}

// NewStore creates a store capped at maxEvents events per session.
func NewStore(maxEvents int) *Store {
	if maxEvents <= 0 {
		maxEvents = 1000
	}
	return &Store{
		sessions:  make(map[string][]*events.Event),
		maxEvents: maxEvents,
	}
}

// Add appends an event to a session's stream, trimming from the front when
// the cap is exceeded.
func (s *Store) Add(sessionID string, event *events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream := append(s.sessions[sessionID], event)
	if len(stream) > s.maxEvents {
		stream = stream[len(stream)-s.maxEvents:]
	}
	s.sessions[sessionID] = stream
}

// Init registers a session so pollers see it before its first event.
func (s *Store) Init(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		s.sessions[sessionID] = []*events.Event{}
	}
}

// Since returns the events recorded after the given index, the index of the
// last stored event, and whether the session exists. Pollers pass the last
// index they saw; -1 returns everything.
func (s *Store) Since(sessionID string, afterIndex int) ([]*events.Event, int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stream, ok := s.sessions[sessionID]
	if !ok {
		return nil, -1, false
	}

	last := len(stream) - 1
	next := afterIndex + 1
	if next < 0 {
		next = 0
	}
	if next > len(stream) {
		next = len(stream)
	}

	out := make([]*events.Event, len(stream)-next)
	copy(out, stream[next:])
	return out, last, true
}

// Remove drops a session and its events.
func (s *Store) Remove(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// Sessions lists the currently tracked session IDs.
func (s *Store) Sessions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Stats reports store-wide counters for the health endpoint.
func (s *Store) Stats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, stream := range s.sessions {
		total += len(stream)
	}
	return map[string]any{
		"sessions":     len(s.sessions),
		"total_events": total,
		"max_events":   s.maxEvents,
	}
}
