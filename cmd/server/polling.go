package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/events"
)

// eventsResponse is one polling window. Clients pass last_event_index back
// as ?since= on the next poll; done flips when a terminal run event was in
// the window.
type eventsResponse struct {
	SessionID      string          `json:"session_id"`
	Events         []*events.Event `json:"events"`
	LastEventIndex int             `json:"last_event_index"`
	Done           bool            `json:"done"`
}

func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, errors.New("session_id is required"))
		return
	}

	since := -1
	if raw := r.URL.Query().Get("since"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("since must be an integer"))
			return
		}
		since = n
	}

	window, lastIndex, ok := s.manager.Events(sessionID, since)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("session not found"))
		return
	}

	done := false
	for _, ev := range window {
		if events.IsTerminal(ev.Type) {
			done = true
			break
		}
	}

	writeJSON(w, http.StatusOK, eventsResponse{
		SessionID:      sessionID,
		Events:         window,
		LastEventIndex: lastIndex,
		Done:           done,
	})
}

func (s *apiServer) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, errors.New("session_id is required"))
		return
	}

	s.manager.EndSession(sessionID)
	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": sessionID,
		"status":     "deleted",
	})
}

func (s *apiServer) handleObserverStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Stats())
}
