// Package diagnostics drives the telemetry engine: it lays out the display
// surfaces once at start and then ticks the simulated robot and the engine.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"diagview/internal/catalog"
	"diagview/internal/layout"
	"diagview/internal/plugins"
	"diagview/internal/power"
	"diagview/internal/storage"
	"diagview/internal/telemetry"
)

const (
	// SnapshotName is the storage name of the board value snapshot
	SnapshotName = "board"

	// SnapshotInterval is how often board values are persisted while running
	SnapshotInterval = 10 * time.Second

	discoveryDelay = 2 * time.Second
)

// Status is the plugin's runtime state as served by its status route
type Status struct {
	Layout       string           `json:"layout"`
	RowsPerPage  int              `json:"rowsPerPage"`
	Attributes   []string         `json:"attributes"`
	Devices      []string         `json:"devices"`
	TickInterval string           `json:"tickInterval"`
	Ticks        int64            `json:"ticks"`
	LastSnapshot time.Time        `json:"lastSnapshot"`
	Report       telemetry.Report `json:"report"`
}

// Plugin owns the telemetry engine and its tick loop
type Plugin struct {
	*plugins.BasePlugin

	layoutName  string
	rowsPerPage int
	attrs       []catalog.AttributeKind
	interval    time.Duration

	devices []telemetry.Device
	engine  *telemetry.Engine

	mu           sync.RWMutex
	ticks        int64
	lastSnapshot time.Time

	bgMutex  sync.Mutex
	bgCancel context.CancelFunc
	bgDone   chan struct{}
}

// New creates a new diagnostics plugin
func New() *Plugin {
	return &Plugin{
		BasePlugin: plugins.NewBasePlugin(
			"diagnostics",
			"Motor diagnostics telemetry",
			"1.0.0",
		),
	}
}

// Init resolves the effective layout: stored settings override the config file
func (p *Plugin) Init(ctx context.Context, deps *plugins.PluginDependencies) error {
	p.SetDependencies(deps)
	if deps.Config == nil || deps.Board == nil || deps.Robot == nil {
		return errors.New("diagnostics requires config, board and robot")
	}

	p.layoutName = deps.Config.Layout()
	p.rowsPerPage = deps.Config.RowsPerPage()
	p.attrs = deps.Config.Attributes()
	p.interval = deps.Config.TickInterval()

	if deps.Storage != nil {
		if err := p.applySettings(deps.Storage); err != nil {
			return err
		}
	}

	p.Logf("Layout %s (%d rows per page), %d attributes, tick %v",
		p.layoutName, p.rowsPerPage, len(p.attrs), p.interval)
	return nil
}

func (p *Plugin) applySettings(store storage.Storage) error {
	settings, err := store.GetSettings()
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	if settings.Layout != "" {
		p.layoutName = settings.Layout
	}
	if settings.RowsPerPage > 0 {
		p.rowsPerPage = settings.RowsPerPage
	}
	if len(settings.Attributes) > 0 {
		attrs := make([]catalog.AttributeKind, 0, len(settings.Attributes))
		for _, name := range settings.Attributes {
			k, err := catalog.ParseKind(name)
			if err != nil {
				return fmt.Errorf("stored settings: %w", err)
			}
			attrs = append(attrs, k)
		}
		p.attrs = attrs
	}
	return nil
}

// Start lays out the surfaces and restores the last saved values
func (p *Plugin) Start(ctx context.Context) error {
	deps := p.Deps()

	strategy, err := layout.ByName(p.layoutName, p.rowsPerPage)
	if err != nil {
		return err
	}

	var prov layout.Provisioner = deps.Board
	if deps.MQTTSurface != nil {
		prov = layout.Fanout(deps.Board, deps.MQTTSurface)
	}

	p.devices = deps.Robot.Devices()
	reg, err := telemetry.Setup(p.devices, p.attrs, strategy, prov)
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}

	engine := telemetry.NewEngine(reg, p.Logger())
	if deps.EventStore != nil {
		engine.SetRecorder(deps.EventStore)
	}

	if n := deps.Config.PowerChannels(); n > 0 {
		panel, err := power.Provision(prov, n)
		if err != nil {
			return fmt.Errorf("failed to provision power panel: %w", err)
		}
		engine.AttachPower(panel, deps.Robot.Power)
	}
	p.engine = engine

	if deps.Storage != nil {
		p.restoreSnapshot(deps.Storage)
	}

	p.Logf("Started: %d sinks on %d devices, strategy %s", reg.Len(), len(p.devices), strategy.Name())
	return nil
}

func (p *Plugin) restoreSnapshot(store storage.Storage) {
	snap, err := store.LoadSnapshot(SnapshotName)
	if errors.Is(err, storage.ErrNoSnapshot) {
		return
	}
	if err != nil {
		p.Logf("Failed to load snapshot: %v", err)
		return
	}
	n := p.Deps().Board.Restore(snap.Values)
	p.Logf("Restored %d of %d values saved at %s", n, len(snap.Values), snap.SavedAt.Format(time.RFC3339))
}

// Stop cancels the tick loop and persists the board values
func (p *Plugin) Stop(ctx context.Context) error {
	p.bgMutex.Lock()
	cancel, done := p.bgCancel, p.bgDone
	p.bgCancel, p.bgDone = nil, nil
	p.bgMutex.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if p.engine != nil && p.Deps().Storage != nil {
		if err := p.SaveSnapshot(); err != nil {
			return err
		}
	}

	p.Logf("Plugin stopped")
	return nil
}

// StartBackgroundTasks starts the tick loop and the delayed discovery publish
func (p *Plugin) StartBackgroundTasks(ctx context.Context) error {
	if p.engine == nil {
		return errors.New("diagnostics not started")
	}

	p.bgMutex.Lock()
	defer p.bgMutex.Unlock()

	bgCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.bgCancel, p.bgDone = cancel, done

	go func() {
		defer close(done)
		plugins.RunPeriodic(bgCtx, p.interval, p.Logger(), p.Name(), func(ctx context.Context) error {
			p.Tick()
			return nil
		})
	}()

	if deps := p.Deps(); deps.MQTTSurface != nil {
		go plugins.RunOnce(bgCtx, discoveryDelay, p.Logger(), p.Name(), func(ctx context.Context) error {
			return deps.MQTTSurface.PublishDiscovery()
		})
	}

	p.Logf("Tick loop started (interval %v)", p.interval)
	return nil
}

// Tick advances the simulation by one interval and syncs every sink.
// Board values are persisted every SnapshotInterval.
func (p *Plugin) Tick() telemetry.Report {
	deps := p.Deps()
	deps.Robot.Step(p.interval.Seconds())
	report := p.engine.Tick(p.devices, p.attrs)

	p.mu.Lock()
	p.ticks++
	ticks := p.ticks
	p.mu.Unlock()

	if deps.Storage != nil && ticks%p.snapshotEvery() == 0 {
		if err := p.SaveSnapshot(); err != nil {
			p.Logf("%v", err)
		}
	}
	return report
}

func (p *Plugin) snapshotEvery() int64 {
	n := int64(SnapshotInterval / p.interval)
	if n < 1 {
		return 1
	}
	return n
}

// SaveSnapshot persists the current board values
func (p *Plugin) SaveSnapshot() error {
	now := time.Now()
	snap := &storage.Snapshot{SavedAt: now, Values: p.Deps().Board.Values()}
	if err := p.Deps().Storage.SaveSnapshot(SnapshotName, snap); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	p.mu.Lock()
	p.lastSnapshot = now
	p.mu.Unlock()
	return nil
}

// LastReport returns the report of the most recent tick
func (p *Plugin) LastReport() telemetry.Report {
	if p.engine == nil {
		return telemetry.Report{}
	}
	return p.engine.LastReport()
}

// Status returns the current runtime state
func (p *Plugin) Status() Status {
	p.mu.RLock()
	ticks, last := p.ticks, p.lastSnapshot
	p.mu.RUnlock()

	attrs := make([]string, len(p.attrs))
	for i, k := range p.attrs {
		attrs[i] = k.String()
	}

	return Status{
		Layout:       p.layoutName,
		RowsPerPage:  p.rowsPerPage,
		Attributes:   attrs,
		Devices:      telemetry.Names(p.devices),
		TickInterval: p.interval.String(),
		Ticks:        ticks,
		LastSnapshot: last,
		Report:       p.LastReport(),
	}
}

// Routes returns the plugin's HTTP routes
func (p *Plugin) Routes() []plugins.Route {
	return []plugins.Route{
		{
			Method:  http.MethodGet,
			Path:    "/api/plugins/diagnostics/status",
			Handler: p.handleStatus,
		},
		{
			Method:       http.MethodPost,
			Path:         "/api/plugins/diagnostics/snapshot",
			Handler:      p.handleSnapshot,
			RequireAdmin: true,
		},
	}
}

func (p *Plugin) handleStatus(w http.ResponseWriter, r *http.Request) {
	plugins.WriteJSON(w, http.StatusOK, p.Status())
}

func (p *Plugin) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if p.Deps().Storage == nil || p.engine == nil {
		plugins.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Storage not available"})
		return
	}
	if err := p.SaveSnapshot(); err != nil {
		p.Logf("%v", err)
		plugins.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to save snapshot"})
		return
	}
	plugins.WriteJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}
