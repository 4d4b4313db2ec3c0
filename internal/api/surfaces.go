package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"diagview/internal/auth"
	"diagview/internal/board"
	"diagview/internal/events"
)

// SurfaceSelector mirrors the active surface to another display, such as MQTT
type SurfaceSelector interface {
	SelectActiveSurface(id string) error
}

// SurfaceHandler serves the board surfaces
type SurfaceHandler struct {
	board      *board.Board
	mirror     SurfaceSelector
	eventStore *events.Store
}

// NewSurfaceHandler creates new surface handler. mirror may be nil.
func NewSurfaceHandler(b *board.Board, mirror SurfaceSelector, eventStore *events.Store) *SurfaceHandler {
	return &SurfaceHandler{board: b, mirror: mirror, eventStore: eventStore}
}

// List handles GET /api/surfaces
func (h *SurfaceHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"surfaces": h.board.Snapshot(),
		"active":   h.board.Active(),
	})
}

// Get handles GET /api/surfaces/{id}
func (h *SurfaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.board.Surface(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Surface not found")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Active handles GET /api/surfaces/active
func (h *SurfaceHandler) Active(w http.ResponseWriter, r *http.Request) {
	active := h.board.Active()
	if active == "" {
		writeError(w, http.StatusNotFound, "No surface selected")
		return
	}
	s, err := h.board.Surface(active)
	if err != nil {
		writeError(w, http.StatusNotFound, "Surface not found")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Select handles POST /api/surfaces/{id}/select
func (h *SurfaceHandler) Select(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.board.SelectActiveSurface(id); err != nil {
		if errors.Is(err, board.ErrUnknownSurface) {
			writeError(w, http.StatusNotFound, "Surface not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if h.mirror != nil {
		if err := h.mirror.SelectActiveSurface(id); err != nil {
			log.Printf("[api] Failed to mirror active surface %s: %v", id, err)
		}
	}

	username := ""
	if user := auth.GetUserFromContext(r.Context()); user != nil {
		username = user.Username
	}
	h.eventStore.Add(events.EventSurfaceSelected, username, "", id)

	writeJSON(w, http.StatusOK, map[string]string{"active": id})
}
