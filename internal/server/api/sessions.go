package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/ayusman/jointtrack/internal/export"
	"github.com/ayusman/jointtrack/internal/store"
	"github.com/ayusman/jointtrack/internal/tracker"
)

// SessionHandler serves recorded sessions from the store.
type SessionHandler struct {
	store *store.Store
	ctrl  Controller
}

// NewSessionHandler creates a SessionHandler. ctrl may be nil, in which case
// sessions cannot be created over HTTP.
func NewSessionHandler(s *store.Store, ctrl Controller) *SessionHandler {
	return &SessionHandler{store: s, ctrl: ctrl}
}

// ServeHTTP routes the session endpoints:
//
//	GET    /api/sessions
//	POST   /api/sessions
//	GET    /api/sessions/{id}
//	DELETE /api/sessions/{id}
//	GET    /api/sessions/{id}/samples
//	GET    /api/sessions/{id}/export
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	parts := strings.Split(path, "/")
	id := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, id)
		case http.MethodDelete:
			h.delete(w, r, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch parts[1] {
	case "samples":
		h.samples(w, r, id)
	case "export":
		h.export(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

type listSessionsResponse struct {
	Sessions []*store.Session `json:"sessions"`
}

type samplesResponse struct {
	SessionID  string           `json:"session_id"`
	Calibrated bool             `json:"calibrated"`
	Unit       string           `json:"unit,omitempty"`
	Samples    []tracker.Sample `json:"samples"`
}

// list handles GET /api/sessions.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.Sessions().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*store.Session{}
	}
	writeJSON(w, http.StatusOK, listSessionsResponse{Sessions: sessions})
}

// create handles POST /api/sessions by starting a fresh live session.
func (h *SessionHandler) create(w http.ResponseWriter, r *http.Request) {
	if h.ctrl == nil {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	st, err := h.ctrl.NewSession()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

// get handles GET /api/sessions/{id}.
func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	s, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// delete handles DELETE /api/sessions/{id}. The live session cannot be deleted.
func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if h.ctrl != nil && h.ctrl.Status().ID == id {
		writeError(w, http.StatusConflict, "Session is active")
		return
	}
	if err := h.store.Sessions().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) load(w http.ResponseWriter, id string) (*store.Session, []tracker.Sample, bool) {
	s, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return nil, nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return nil, nil, false
	}
	samples, err := h.store.Samples().GetBySessionID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load samples")
		return nil, nil, false
	}
	return s, samples, true
}

// samples handles GET /api/sessions/{id}/samples.
func (h *SessionHandler) samples(w http.ResponseWriter, r *http.Request, id string) {
	s, samples, ok := h.load(w, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, samplesResponse{
		SessionID:  s.ID,
		Calibrated: s.Calibrated,
		Unit:       s.Unit,
		Samples:    samples,
	})
}

// export handles GET /api/sessions/{id}/export as a CSV download.
func (h *SessionHandler) export(w http.ResponseWriter, r *http.Request, id string) {
	s, samples, ok := h.load(w, id)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.WithExtension(s.ID)))
	w.WriteHeader(http.StatusOK)
	if err := export.WriteCSV(w, samples, s.Calibrated); err != nil {
		log.Printf("Error writing CSV for session %s: %v", s.ID, err)
	}
}
