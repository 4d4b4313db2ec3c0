package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"diagview/internal/auth"
	"diagview/internal/catalog"
	"diagview/internal/events"
	"diagview/internal/faults"
	"diagview/internal/sim"
	"diagview/internal/telemetry"
)

// Monitor exposes the most recent telemetry tick
type Monitor interface {
	LastReport() telemetry.Report
}

// DiagnosticsHandler serves health, the attribute catalog and fault injection
type DiagnosticsHandler struct {
	monitor    Monitor
	robot      *sim.Robot
	eventStore *events.Store
}

// NewDiagnosticsHandler creates new diagnostics handler
func NewDiagnosticsHandler(monitor Monitor, robot *sim.Robot, eventStore *events.Store) *DiagnosticsHandler {
	return &DiagnosticsHandler{monitor: monitor, robot: robot, eventStore: eventStore}
}

// HealthResponse is the aggregate health with the decoded fault flags
type HealthResponse struct {
	telemetry.Report
	Faults []string `json:"faults"`
}

// Health handles GET /api/health
func (h *DiagnosticsHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.monitor == nil {
		writeError(w, http.StatusServiceUnavailable, "Telemetry not running")
		return
	}
	report := h.monitor.LastReport()
	flags := faults.Active(report.FaultMask, faults.SparkMaxFlags)
	if flags == nil {
		flags = []string{}
	}
	writeJSON(w, http.StatusOK, HealthResponse{Report: report, Faults: flags})
}

// CatalogEntry is one attribute kind with its display metadata
type CatalogEntry struct {
	catalog.Descriptor
	ValueKind string      `json:"valueKind"`
	Default   interface{} `json:"default"`
}

// Catalog handles GET /api/catalog
func (h *DiagnosticsHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	descs := make([]catalog.Descriptor, 0, len(catalog.All())+1)
	for _, k := range catalog.All() {
		descs = append(descs, catalog.MustDescribe(k))
	}
	descs = append(descs, catalog.HealthDescriptor())

	entries := make([]CatalogEntry, len(descs))
	for i, d := range descs {
		entries[i] = CatalogEntry{Descriptor: d, ValueKind: d.ValueKind.String(), Default: d.Default.Any()}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"attributes": entries})
}

// FaultRequest injects faults into a simulated motor. Unset fields are left alone.
type FaultRequest struct {
	Mask     *uint32                 `json:"mask,omitempty"`
	Flags    []string                `json:"flags,omitempty"`
	Sticky   *uint32                 `json:"sticky,omitempty"`
	FailNext []catalog.AttributeKind `json:"failNext,omitempty"`
}

// InjectFaults handles POST /api/devices/{name}/faults
func (h *DiagnosticsHandler) InjectFaults(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	motor, ok := h.robot.Motor(name)
	if !ok {
		writeError(w, http.StatusNotFound, "Device not found")
		return
	}

	var req FaultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Mask != nil && req.Flags != nil {
		writeError(w, http.StatusBadRequest, "Use either mask or flags")
		return
	}

	for _, kind := range req.FailNext {
		if !kind.Valid() {
			writeError(w, http.StatusBadRequest, "Unknown attribute kind")
			return
		}
	}

	var applied []string
	if req.Flags != nil {
		mask, err := faults.Mask(req.Flags, faults.SparkMaxFlags)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Mask = &mask
	}
	if req.Mask != nil {
		motor.SetFaults(*req.Mask)
		applied = append(applied, "faults="+faults.Decode(*req.Mask, faults.SparkMaxFlags))
	}
	if req.Sticky != nil {
		motor.SetStickyFaults(*req.Sticky)
		applied = append(applied, "sticky="+faults.Decode(*req.Sticky, faults.SparkMaxFlags))
	}
	for _, kind := range req.FailNext {
		motor.FailNextRead(kind)
		applied = append(applied, fmt.Sprintf("fail=%s", kind))
	}
	if len(applied) == 0 {
		writeError(w, http.StatusBadRequest, "Nothing to inject")
		return
	}

	username := ""
	if user := auth.GetUserFromContext(r.Context()); user != nil {
		username = user.Username
	}
	details := strings.Join(applied, " ")
	h.eventStore.Add(events.EventFaultInjected, name, "", username+": "+details)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"device":  name,
		"applied": applied,
	})
}
