package diagnostics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diagview/internal/board"
	"diagview/internal/catalog"
	"diagview/internal/config"
	"diagview/internal/events"
	"diagview/internal/faults"
	"diagview/internal/layout"
	"diagview/internal/plugins"
	"diagview/internal/power"
	"diagview/internal/sim"
	"diagview/internal/storage"
)

type harness struct {
	dir    string
	cfg    *config.Config
	store  *storage.BoltStorage
	events *events.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, ".env"))
	require.NoError(t, err)
	store, err := storage.NewBoltStorage(filepath.Join(dir, "diag.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return &harness{dir: dir, cfg: cfg, store: store, events: events.NewStore(100)}
}

// start runs Init and Start against a fresh board and robot
func (h *harness) start(t *testing.T) (*Plugin, *plugins.PluginDependencies) {
	t.Helper()
	robot, err := sim.NewRobot(&sim.File{Motors: sim.DefaultMotors})
	require.NoError(t, err)

	deps := &plugins.PluginDependencies{
		Config:     h.cfg,
		EventStore: h.events,
		Storage:    h.store,
		Board:      board.New(nil),
		Robot:      robot,
	}
	p := New()
	ctx := context.Background()
	require.NoError(t, p.Init(ctx, deps))
	require.NoError(t, p.Start(ctx))
	return p, deps
}

func TestStartLaysOutSurfaces(t *testing.T) {
	h := newHarness(t)
	_, deps := h.start(t)

	assert.Equal(t, layout.GridSurface, deps.Board.Active())

	var ids []string
	for _, s := range deps.Board.Snapshot() {
		ids = append(ids, s.ID)
	}
	assert.ElementsMatch(t, []string{layout.GridSurface, layout.SummarySurface, power.Surface}, ids)

	grid, err := deps.Board.Surface(layout.GridSurface)
	require.NoError(t, err)
	assert.Len(t, grid.Cells, len(sim.DefaultMotors)*len(catalog.All()))
}

func TestTickReportsFaults(t *testing.T) {
	h := newHarness(t)
	p, deps := h.start(t)

	report := p.Tick()
	assert.True(t, report.Healthy)
	assert.Zero(t, report.Failed)
	assert.Equal(t, len(sim.DefaultMotors)*len(catalog.All())+1, report.Written, "every cell plus health")

	fl, ok := deps.Robot.Motor("FL")
	require.True(t, ok)
	fl.SetFaults(1)

	report = p.Tick()
	assert.False(t, report.Healthy)
	assert.Equal(t, report, p.LastReport())

	var types []events.EventType
	for _, e := range h.events.GetAll() {
		types = append(types, e.Type)
	}
	assert.Contains(t, types, events.EventFaultRaised)

	faultCell := deps.Board.Values()[board.CellID(layout.GridSurface, "FL", "Faults")]
	assert.NotEqual(t, catalog.TextValue(faults.NoFault), faultCell)
}

func TestStoredSettingsOverrideConfig(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.SaveSettings(&storage.Settings{
		Layout:      "flow",
		RowsPerPage: 2,
		Attributes:  []string{"FAULTS", "VELOCITY"},
	}))

	p, deps := h.start(t)
	st := p.Status()
	assert.Equal(t, "flow", st.Layout)
	assert.Equal(t, 2, st.RowsPerPage)
	assert.Equal(t, []string{"FAULTS", "VELOCITY"}, st.Attributes)
	assert.Equal(t, layout.PageName(1), deps.Board.Active())
}

func TestStopPersistsSnapshot(t *testing.T) {
	h := newHarness(t)
	p, deps := h.start(t)
	p.Tick()
	saved := deps.Board.Values()

	require.NoError(t, p.Stop(context.Background()))
	assert.False(t, p.Status().LastSnapshot.IsZero())

	_, restarted := h.start(t)
	id := board.CellID(layout.GridSurface, "SH", "Temp")
	assert.Equal(t, saved[id], restarted.Board.Values()[id])
}

func TestBackgroundTicks(t *testing.T) {
	h := newHarness(t)
	p, _ := h.start(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, p.StartBackgroundTasks(ctx))

	assert.Eventually(t, func() bool { return p.Status().Ticks >= 2 }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, p.Stop(context.Background()))
}

func TestStatusRoute(t *testing.T) {
	h := newHarness(t)
	p, _ := h.start(t)
	p.Tick()

	routes := p.Routes()
	require.Len(t, routes, 2)
	assert.True(t, routes[1].RequireAdmin)

	rec := httptest.NewRecorder()
	routes[0].Handler(rec, httptest.NewRequest(http.MethodGet, routes[0].Path, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var st Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, int64(1), st.Ticks)
	assert.Equal(t, "grid", st.Layout)
	assert.Len(t, st.Devices, len(sim.DefaultMotors))

	rec = httptest.NewRecorder()
	routes[1].Handler(rec, httptest.NewRequest(http.MethodPost, routes[1].Path, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInitRequiresDependencies(t *testing.T) {
	err := New().Init(context.Background(), &plugins.PluginDependencies{})
	assert.Error(t, err)
}
