// Package events hosts the server-side event plumbing: an in-memory store
// for the polling API and listeners that fan run events out to the store
// and to persistent history.
package events

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/internal/utils"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/events"
)

// Manager owns the event store and hands out per-session listeners.
type Manager struct {
	store *Store
	log   utils.ExtendedLogger
}

// NewManager wires a manager around the given store.
func NewManager(store *Store, log utils.ExtendedLogger) *Manager {
	return &Manager{store: store, log: log}
}

// StartSession allocates a session ID and registers it with the store so
// clients can begin polling immediately.
func (m *Manager) StartSession() string {
	id := uuid.NewString()
	m.store.Init(id)
	m.log.WithField("session_id", id).Debug("event session started")
	return id
}

// ListenerFor returns a listener that records a session's events.
func (m *Manager) ListenerFor(sessionID string) events.Listener {
	return &storeListener{store: m.store, sessionID: sessionID}
}

// Events returns a session's events after the given index plus the index of
// the newest event, mirroring Store.Since for the HTTP layer.
func (m *Manager) Events(sessionID string, afterIndex int) ([]*events.Event, int, bool) {
	return m.store.Since(sessionID, afterIndex)
}

// EndSession removes a finished session from the store.
func (m *Manager) EndSession(sessionID string) {
	m.store.Remove(sessionID)
	m.log.WithField("session_id", sessionID).Debug("event session removed")
}

// Stats exposes store counters for the health endpoint.
func (m *Manager) Stats() map[string]any {
	return m.store.Stats()
}

// storeListener records each event into the in-memory store under its
// session, stamping the session ID when the emitter left it empty.
type storeListener struct {
	store     *Store
	sessionID string
}

func (l *storeListener) HandleEvent(_ context.Context, event *events.Event) error {
	if event == nil {
		return nil
	}
	if event.SessionID == "" {
		event.SessionID = l.sessionID
	}
	l.store.Add(l.sessionID, event)
	return nil
}

func (l *storeListener) Name() string {
	return fmt.Sprintf("store_listener_%s", l.sessionID)
}
