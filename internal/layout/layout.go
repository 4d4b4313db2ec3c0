// Package layout places per-device attribute sinks on paged display surfaces
package layout

import (
	"errors"
	"fmt"

	"diagview/internal/catalog"
	"diagview/internal/sink"
)

// SummarySurface hosts the aggregate health indicator
const SummarySurface = "Summary"

var (
	// ErrUnknownStrategy is returned by ByName for an unsupported strategy name
	ErrUnknownStrategy = errors.New("unknown layout strategy")

	// ErrInvalidRowsPerPage is returned when a flow layout is configured with fewer than one row per page
	ErrInvalidRowsPerPage = errors.New("rows per page must be at least 1")
)

// Region is a named sub-region of a surface grouping one device's cells
type Region struct {
	Name   string `json:"name"`
	Row    int    `json:"row"`
	Column int    `json:"column"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Cell is the placement of one sink.
// Row and Column are relative to the region when Region is set, otherwise to the surface.
type Cell struct {
	Surface    string
	Region     *Region
	Device     string
	Title      string
	Row        int
	Column     int
	Width      int
	Height     int
	Descriptor catalog.Descriptor
}

// Reachable reports whether the cell falls inside its region's visible rows
func (c Cell) Reachable() bool {
	return c.Region == nil || c.Row < c.Region.Height
}

// Plan is the allocation decision of a strategy. It is consumed by Layout and not retained.
type Plan struct {
	Surfaces []string // per-device surfaces in creation order
	Cells    []Cell
	Health   *Cell
	Active   string // surface to select after placement; empty selects nothing
}

// Provisioner creates sinks on concrete display surfaces
type Provisioner interface {
	CreateSink(cell Cell) (sink.Handle, error)
	SelectActiveSurface(id string) error
}

// Strategy computes the layout plan for an ordered device list and attribute set
type Strategy interface {
	Name() string
	Plan(devices []string, attrs []catalog.AttributeKind) (*Plan, error)
}

// Layout plans the surfaces for devices x attrs, creates one sink per cell and
// returns the populated registry. An empty device list or attribute set creates nothing.
func Layout(s Strategy, devices []string, attrs []catalog.AttributeKind, p Provisioner) (*sink.Registry, error) {
	plan, err := s.Plan(devices, attrs)
	if err != nil {
		return nil, fmt.Errorf("%s layout: %w", s.Name(), err)
	}

	reg := sink.NewRegistry()

	for _, cell := range plan.Cells {
		h, err := p.CreateSink(cell)
		if err != nil {
			return nil, fmt.Errorf("failed to create sink %s/%s: %w", cell.Device, cell.Descriptor.Label, err)
		}
		if err := reg.Register(cell.Device, cell.Descriptor.Kind, sink.Bind(h, cell.Descriptor)); err != nil {
			return nil, err
		}
	}

	if plan.Health != nil {
		h, err := p.CreateSink(*plan.Health)
		if err != nil {
			return nil, fmt.Errorf("failed to create health sink: %w", err)
		}
		reg.SetHealth(sink.Bind(h, plan.Health.Descriptor))
	}

	if plan.Active != "" {
		if err := p.SelectActiveSurface(plan.Active); err != nil {
			return nil, fmt.Errorf("failed to select surface %s: %w", plan.Active, err)
		}
	}

	return reg, nil
}

// ByName returns the strategy registered under name ("grid", "list" or "flow")
func ByName(name string, rowsPerPage int) (Strategy, error) {
	switch name {
	case "grid":
		return Grid{}, nil
	case "list":
		return List{}, nil
	case "flow":
		return NewFlow(rowsPerPage)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// Names lists the supported strategy names
func Names() []string {
	return []string{"grid", "list", "flow"}
}

// describeAll resolves the descriptors of attrs in order
func describeAll(attrs []catalog.AttributeKind) ([]catalog.Descriptor, error) {
	descs := make([]catalog.Descriptor, 0, len(attrs))
	for _, k := range attrs {
		d, err := catalog.Describe(k)
		if err != nil {
			return nil, err
		}
		descs = append(descs, d)
	}
	return descs, nil
}

func healthCell(title string) *Cell {
	return &Cell{
		Surface:    SummarySurface,
		Title:      title,
		Width:      1,
		Height:     1,
		Descriptor: catalog.HealthDescriptor(),
	}
}
