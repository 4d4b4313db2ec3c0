package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"diagview/internal/auth"
	"diagview/internal/events"
	"diagview/internal/plugins"
)

// PluginHandler lists registered plugins and toggles their enabled flag
type PluginHandler struct {
	registry   *plugins.Registry
	eventStore *events.Store
}

// NewPluginHandler creates new plugin handler
func NewPluginHandler(registry *plugins.Registry, eventStore *events.Store) *PluginHandler {
	return &PluginHandler{registry: registry, eventStore: eventStore}
}

// EnabledRequest is the body of PUT /api/plugins/{name}/enabled
type EnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

// List handles GET /api/plugins
func (h *PluginHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"plugins": h.registry.ListInfo()})
}

// Get handles GET /api/plugins/{name}
func (h *PluginHandler) Get(w http.ResponseWriter, r *http.Request) {
	if info := h.find(chi.URLParam(r, "name")); info != nil {
		writeJSON(w, http.StatusOK, info)
		return
	}
	writeError(w, http.StatusNotFound, "Plugin not found")
}

// SetEnabled handles PUT /api/plugins/{name}/enabled.
// The change applies on the next start.
func (h *PluginHandler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req EnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.registry.SetEnabled(name, *req.Enabled)
	switch {
	case errors.Is(err, plugins.ErrPluginNotFound):
		writeError(w, http.StatusNotFound, "Plugin not found")
		return
	case errors.Is(err, plugins.ErrNoStorage):
		writeError(w, http.StatusServiceUnavailable, "Plugin storage not available")
		return
	case err != nil:
		log.Printf("[api] Failed to toggle plugin %s: %v", name, err)
		writeError(w, http.StatusInternalServerError, "Failed to update plugin")
		return
	}

	username := ""
	if user := auth.GetUserFromContext(r.Context()); user != nil {
		username = user.Username
	}
	h.eventStore.Add(events.EventSettingsChanged, username, "plugin/"+name, fmt.Sprintf("enabled=%t", *req.Enabled))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"plugin":          h.find(name),
		"restartRequired": true,
	})
}

func (h *PluginHandler) find(name string) *plugins.PluginInfo {
	for _, info := range h.registry.ListInfo() {
		if info.Name == name {
			return info
		}
	}
	return nil
}
