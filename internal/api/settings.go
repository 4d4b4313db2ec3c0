package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"diagview/internal/auth"
	"diagview/internal/catalog"
	"diagview/internal/config"
	"diagview/internal/events"
	"diagview/internal/layout"
	"diagview/internal/storage"
)

// SettingsHandler reads and writes the layout settings applied on next start
type SettingsHandler struct {
	store      storage.Storage
	config     *config.Config
	eventStore *events.Store
}

// NewSettingsHandler creates new settings handler
func NewSettingsHandler(store storage.Storage, cfg *config.Config, eventStore *events.Store) *SettingsHandler {
	return &SettingsHandler{store: store, config: cfg, eventStore: eventStore}
}

// SettingsResponse is the stored settings merged over the config file values
type SettingsResponse struct {
	storage.Settings
	Strategies []string `json:"strategies"`
	Stored     bool     `json:"stored"`
}

// Get handles GET /api/settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp := SettingsResponse{
		Settings: storage.Settings{
			Layout:      h.config.Layout(),
			RowsPerPage: h.config.RowsPerPage(),
			Attributes:  kindNames(h.config.Attributes()),
		},
		Strategies: layout.Names(),
	}

	stored, err := h.store.GetSettings()
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		log.Printf("[api] Failed to load settings: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	default:
		resp.Stored = true
		resp.UpdatedAt, resp.UpdatedBy = stored.UpdatedAt, stored.UpdatedBy
		if stored.Layout != "" {
			resp.Layout = stored.Layout
		}
		if stored.RowsPerPage > 0 {
			resp.RowsPerPage = stored.RowsPerPage
		}
		if len(stored.Attributes) > 0 {
			resp.Attributes = stored.Attributes
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Put handles PUT /api/settings
func (h *SettingsHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req storage.Settings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	settings, err := h.normalize(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if user := auth.GetUserFromContext(r.Context()); user != nil {
		settings.UpdatedBy = user.Username
	}
	settings.UpdatedAt = time.Now()

	if err := h.store.SaveSettings(settings); err != nil {
		log.Printf("[api] Failed to save settings: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}

	h.eventStore.Add(events.EventSettingsChanged, settings.UpdatedBy, "",
		fmt.Sprintf("layout=%s rows=%d attributes=%s", settings.Layout, settings.RowsPerPage, strings.Join(settings.Attributes, ",")))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"settings":        settings,
		"restartRequired": true,
	})
}

// normalize validates req and fills unset fields from the config file
func (h *SettingsHandler) normalize(req storage.Settings) (*storage.Settings, error) {
	out := &storage.Settings{
		Layout:      strings.ToLower(strings.TrimSpace(req.Layout)),
		RowsPerPage: req.RowsPerPage,
	}
	if out.Layout == "" {
		out.Layout = h.config.Layout()
	}
	if out.RowsPerPage == 0 {
		out.RowsPerPage = h.config.RowsPerPage()
	}
	if out.RowsPerPage < 1 {
		return nil, layout.ErrInvalidRowsPerPage
	}
	if _, err := layout.ByName(out.Layout, out.RowsPerPage); err != nil {
		return nil, err
	}

	for _, name := range req.Attributes {
		k, err := catalog.ParseKind(name)
		if err != nil {
			return nil, err
		}
		out.Attributes = append(out.Attributes, k.String())
	}
	return out, nil
}

func kindNames(kinds []catalog.AttributeKind) []string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return names
}
