package layout

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diagview/internal/catalog"
	"diagview/internal/sink"
)

// recordingProvisioner records every cell it is asked to create
type recordingProvisioner struct {
	cells    []Cell
	selected []string
	failOn   string
}

func (p *recordingProvisioner) CreateSink(cell Cell) (sink.Handle, error) {
	if p.failOn != "" && cell.Title == p.failOn {
		return nil, errors.New("surface full")
	}
	p.cells = append(p.cells, cell)
	return sink.HandleFunc(func(catalog.Value) error { return nil }), nil
}

func (p *recordingProvisioner) SelectActiveSurface(id string) error {
	p.selected = append(p.selected, id)
	return nil
}

func (p *recordingProvisioner) surfaces() []string {
	var out []string
	seen := map[string]bool{}
	for _, c := range p.cells {
		if c.Surface == SummarySurface || seen[c.Surface] {
			continue
		}
		seen[c.Surface] = true
		out = append(out, c.Surface)
	}
	return out
}

func names(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("motor-%d", i)
	}
	return out
}

func TestLayoutRegistersEveryPair(t *testing.T) {
	attrs := catalog.All()
	devices := names(5)

	for _, s := range []Strategy{Grid{}, List{}, Flow{RowsPerPage: 2}} {
		t.Run(s.Name(), func(t *testing.T) {
			p := &recordingProvisioner{}
			reg, err := Layout(s, devices, attrs, p)
			require.NoError(t, err)

			assert.Equal(t, len(devices)*len(attrs), reg.Len())
			for _, d := range devices {
				for _, k := range attrs {
					h1, err := reg.Lookup(d, k)
					require.NoError(t, err)
					h2, err := reg.Lookup(d, k)
					require.NoError(t, err)
					assert.Same(t, h1, h2)
				}
			}
			require.NotNil(t, reg.Health())

			var health int
			for _, c := range p.cells {
				if c.Surface == SummarySurface {
					health++
					assert.Equal(t, catalog.ValueBool, c.Descriptor.ValueKind)
				}
			}
			assert.Equal(t, 1, health, "exactly one health sink")
		})
	}
}

func TestGridLayout(t *testing.T) {
	attrs := []catalog.AttributeKind{catalog.Faults, catalog.Temperature, catalog.Velocity}
	devices := names(4)

	plan, err := Grid{}.Plan(devices, attrs)
	require.NoError(t, err)

	assert.Equal(t, []string{GridSurface}, plan.Surfaces)
	assert.Equal(t, GridSurface, plan.Active)
	assert.Equal(t, "Grid Fault Indicator", plan.Health.Title)

	byDevice := map[string][]Cell{}
	for _, c := range plan.Cells {
		byDevice[c.Device] = append(byDevice[c.Device], c)
	}
	for row, d := range devices {
		cells := byDevice[d]
		require.Len(t, cells, len(attrs))
		for col, c := range cells {
			require.NotNil(t, c.Region)
			assert.Equal(t, d, c.Region.Name)
			assert.Equal(t, row, c.Region.Row)
			assert.Equal(t, len(attrs), c.Region.Width)
			assert.Equal(t, col, c.Column)
			assert.Equal(t, attrs[col], c.Descriptor.Kind)
		}
	}
}

func TestListLayout(t *testing.T) {
	devices := names(3)
	plan, err := List{}.Plan(devices, catalog.All())
	require.NoError(t, err)

	assert.Equal(t, ListSurface, plan.Active)

	unreachable := 0
	for _, c := range plan.Cells {
		require.NotNil(t, c.Region)
		idx := indexOf(devices, c.Device)
		assert.Equal(t, idx*listColumnSpan, c.Region.Column)
		assert.Equal(t, listVisibleRows, c.Region.Height)
		if !c.Reachable() {
			unreachable++
			assert.GreaterOrEqual(t, c.Row, listVisibleRows)
		}
	}
	// six attributes, four visible rows: two hidden per device
	assert.Equal(t, 2*len(devices), unreachable)
}

func TestFlowLayoutPagination(t *testing.T) {
	const rows = 3
	devices := names(rows*2 + 1)
	attrs := []catalog.AttributeKind{catalog.Faults, catalog.Temperature, catalog.Position}

	p := &recordingProvisioner{}
	_, err := Layout(Flow{RowsPerPage: rows}, devices, attrs, p)
	require.NoError(t, err)

	assert.Equal(t, []string{"Motors 1", "Motors 2", "Motors 3"}, p.surfaces())
	assert.Equal(t, []string{"Motors 1"}, p.selected, "first page is active")

	pageOf := map[string]string{}
	rowOf := map[string]int{}
	for _, c := range p.cells {
		if c.Surface == SummarySurface {
			continue
		}
		pageOf[c.Device] = c.Surface
		rowOf[c.Device] = c.Row
	}
	for i, d := range devices {
		assert.Equal(t, PageName(i/rows+1), pageOf[d], d)
		assert.Equal(t, i%rows, rowOf[d], d)
	}
}

func TestFlowLayoutColumnsAccumulateWidth(t *testing.T) {
	attrs := []catalog.AttributeKind{catalog.Faults, catalog.Temperature, catalog.StickyFaults, catalog.Velocity}
	plan, err := Flow{RowsPerPage: 4}.Plan([]string{"Climber"}, attrs)
	require.NoError(t, err)

	var cols, widths []int
	for _, c := range plan.Cells {
		cols = append(cols, c.Column)
		widths = append(widths, c.Width)
		assert.Equal(t, "Climber "+c.Descriptor.Label, c.Title)
	}
	assert.Equal(t, []int{0, 2, 3, 5}, cols)
	assert.Equal(t, []int{2, 1, 2, 1}, widths)
}

func TestLayoutEmptyDevices(t *testing.T) {
	for _, s := range []Strategy{Grid{}, List{}, Flow{RowsPerPage: 4}} {
		t.Run(s.Name(), func(t *testing.T) {
			p := &recordingProvisioner{}
			reg, err := Layout(s, nil, catalog.All(), p)
			require.NoError(t, err)

			assert.Zero(t, reg.Len())
			assert.Nil(t, reg.Health())
			assert.Empty(t, p.cells)
			assert.Empty(t, p.selected, "no page may be selected")
		})
	}
}

func TestLayoutEmptyAttributes(t *testing.T) {
	for _, s := range []Strategy{Grid{}, List{}, Flow{RowsPerPage: 4}} {
		t.Run(s.Name(), func(t *testing.T) {
			plan, err := s.Plan(names(3), nil)
			require.NoError(t, err)
			assert.Empty(t, plan.Surfaces)
			assert.Empty(t, plan.Active)
			assert.Nil(t, plan.Health)

			p := &recordingProvisioner{}
			reg, err := Layout(s, names(3), []catalog.AttributeKind{}, p)
			require.NoError(t, err)
			assert.Zero(t, reg.Len())
			assert.Empty(t, p.cells, "no health cell is left behind")
			assert.Empty(t, p.selected)
		})
	}
}

func TestLayoutUnknownAttribute(t *testing.T) {
	for _, s := range []Strategy{Grid{}, List{}, Flow{RowsPerPage: 4}} {
		_, err := Layout(s, names(2), []catalog.AttributeKind{catalog.Faults, catalog.AttributeKind(99)}, &recordingProvisioner{})
		assert.ErrorIs(t, err, catalog.ErrUnknownKind, s.Name())
	}
}

func TestLayoutProvisionerFailure(t *testing.T) {
	p := &recordingProvisioner{failOn: "Temp"}
	_, err := Layout(Grid{}, names(1), []catalog.AttributeKind{catalog.Faults, catalog.Temperature}, p)
	assert.Error(t, err)
	assert.Empty(t, p.selected)
}

func TestLayoutDuplicateDevice(t *testing.T) {
	_, err := Layout(Grid{}, []string{"A", "A"}, []catalog.AttributeKind{catalog.Faults}, &recordingProvisioner{})
	assert.ErrorIs(t, err, sink.ErrDuplicate)
}

func TestByName(t *testing.T) {
	for _, name := range Names() {
		s, err := ByName(name, DefaultRowsPerPage)
		require.NoError(t, err)
		assert.Equal(t, name, s.Name())
	}

	_, err := ByName("spiral", 4)
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	_, err = ByName("flow", 0)
	assert.ErrorIs(t, err, ErrInvalidRowsPerPage)

	_, err = Flow{}.Plan(names(1), catalog.All())
	assert.ErrorIs(t, err, ErrInvalidRowsPerPage)
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
