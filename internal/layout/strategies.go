package layout

import (
	"strconv"

	"diagview/internal/catalog"
)

// Surface names used by the built-in strategies
const (
	GridSurface = "Motors Grid"
	ListSurface = "Motors List"
	FlowPrefix  = "Motors "
)

const (
	// listVisibleRows is how many stacked attributes a list region can show
	listVisibleRows = 4
	// listColumnSpan is the column offset between adjacent device regions
	listColumnSpan = 2
	// DefaultRowsPerPage is the flow layout page height
	DefaultRowsPerPage = 4
)

// Grid places each device on its own row of a single surface, one column per attribute
type Grid struct{}

// Name implements Strategy
func (Grid) Name() string { return "grid" }

// Plan implements Strategy
func (Grid) Plan(devices []string, attrs []catalog.AttributeKind) (*Plan, error) {
	descs, err := describeAll(attrs)
	if err != nil {
		return nil, err
	}
	plan := &Plan{}
	if len(devices) == 0 || len(descs) == 0 {
		return plan, nil
	}

	for row, device := range devices {
		region := &Region{Name: device, Row: row, Column: 0, Width: len(descs), Height: 1}
		for col, d := range descs {
			plan.Cells = append(plan.Cells, Cell{
				Surface:    GridSurface,
				Region:     region,
				Device:     device,
				Title:      d.Label,
				Row:        0,
				Column:     col,
				Width:      1,
				Height:     1,
				Descriptor: d,
			})
		}
	}

	plan.Surfaces = []string{GridSurface}
	plan.Health = healthCell("Grid Fault Indicator")
	plan.Active = GridSurface
	return plan, nil
}

// List stacks each device's attributes vertically in a fixed-height region;
// regions advance column-wise across a single surface. Attributes beyond the
// visible-row budget are still provisioned but cannot be seen.
type List struct{}

// Name implements Strategy
func (List) Name() string { return "list" }

// Plan implements Strategy
func (List) Plan(devices []string, attrs []catalog.AttributeKind) (*Plan, error) {
	descs, err := describeAll(attrs)
	if err != nil {
		return nil, err
	}
	plan := &Plan{}
	if len(devices) == 0 || len(descs) == 0 {
		return plan, nil
	}

	col := 0
	for _, device := range devices {
		region := &Region{Name: device, Row: 0, Column: col, Width: listColumnSpan, Height: listVisibleRows}
		for row, d := range descs {
			plan.Cells = append(plan.Cells, Cell{
				Surface:    ListSurface,
				Region:     region,
				Device:     device,
				Title:      d.Label,
				Row:        row,
				Column:     0,
				Width:      listColumnSpan,
				Height:     1,
				Descriptor: d,
			})
		}
		col += listColumnSpan
	}

	plan.Surfaces = []string{ListSurface}
	plan.Health = healthCell("List Fault Indicator")
	plan.Active = ListSurface
	return plan, nil
}

// Flow lays devices out row by row, starting a new page every RowsPerPage rows.
// Columns advance by each attribute's preferred width.
type Flow struct {
	RowsPerPage int
}

// NewFlow creates a flow strategy with the given page height
func NewFlow(rowsPerPage int) (Flow, error) {
	if rowsPerPage < 1 {
		return Flow{}, ErrInvalidRowsPerPage
	}
	return Flow{RowsPerPage: rowsPerPage}, nil
}

// Name implements Strategy
func (Flow) Name() string { return "flow" }

// Plan implements Strategy
func (f Flow) Plan(devices []string, attrs []catalog.AttributeKind) (*Plan, error) {
	if f.RowsPerPage < 1 {
		return nil, ErrInvalidRowsPerPage
	}
	descs, err := describeAll(attrs)
	if err != nil {
		return nil, err
	}
	plan := &Plan{}
	if len(devices) == 0 || len(descs) == 0 {
		return plan, nil
	}

	var page string
	row := 0
	for i, device := range devices {
		if i%f.RowsPerPage == 0 {
			page = PageName(i/f.RowsPerPage + 1)
			plan.Surfaces = append(plan.Surfaces, page)
			row = 0
		}

		col := 0
		for _, d := range descs {
			plan.Cells = append(plan.Cells, Cell{
				Surface:    page,
				Device:     device,
				Title:      device + " " + d.Label,
				Row:        row,
				Column:     col,
				Width:      d.Width,
				Height:     1,
				Descriptor: d,
			})
			col += d.Width
		}
		row++
	}

	plan.Health = healthCell("Fault Indicator")
	// the first page is always selected, however many pages exist
	plan.Active = plan.Surfaces[0]
	return plan, nil
}

// PageName returns the surface id of the n-th (1-based) flow page
func PageName(n int) string {
	return FlowPrefix + strconv.Itoa(n)
}
