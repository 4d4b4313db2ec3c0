// Package board is an in-memory display surface set that implements layout.Provisioner
package board

import (
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"diagview/internal/catalog"
	"diagview/internal/layout"
	"diagview/internal/sink"
)

// ErrUnknownSurface is returned when selecting or reading a surface that has no cells
var ErrUnknownSurface = errors.New("unknown surface")

// Cell is the snapshot of one sink on a surface
type Cell struct {
	ID        string         `json:"id"`
	Device    string         `json:"device,omitempty"`
	Attribute string         `json:"attribute,omitempty"`
	Title     string         `json:"title"`
	Widget    string         `json:"widget"`
	Hints     map[string]any `json:"hints,omitempty"`
	Region    *layout.Region `json:"region,omitempty"`
	Row       int            `json:"row"`
	Column    int            `json:"column"`
	Width     int            `json:"width"`
	Height    int            `json:"height"`
	Reachable bool           `json:"reachable"`
	Value     any            `json:"value"`

	value   catalog.Value
	surface string
}

// Current returns the typed value last written to the cell
func (c Cell) Current() catalog.Value {
	return c.value
}

// Surface is the snapshot of one display page
type Surface struct {
	ID      string   `json:"id"`
	Regions []string `json:"regions,omitempty"`
	Cells   []Cell   `json:"cells"`
}

// Update is delivered to subscribers for every sink write
type Update struct {
	Surface string    `json:"surface"`
	Cell    string    `json:"cell"`
	Value   any       `json:"value"`
	Time    time.Time `json:"time"`
}

type surface struct {
	id      string
	regions []string
	cells   []*Cell
}

// Board holds every surface created through CreateSink.
// All methods are safe for concurrent use.
type Board struct {
	mu       sync.RWMutex
	surfaces []*surface
	byID     map[string]*surface
	cells    map[string]*Cell
	active   string

	subMu       sync.Mutex
	subscribers map[chan Update]struct{}
	bufferSize  int

	logger *log.Logger
}

// New creates an empty board
func New(logger *log.Logger) *Board {
	return &Board{
		byID:        make(map[string]*surface),
		cells:       make(map[string]*Cell),
		subscribers: make(map[chan Update]struct{}),
		bufferSize:  64,
		logger:      logger,
	}
}

// CellID returns the stable identifier of a cell: surface, region (if any) and title
func CellID(surfaceID, region, title string) string {
	if region == "" {
		return surfaceID + "/" + title
	}
	return surfaceID + "/" + region + "/" + title
}

// CreateSink implements layout.Provisioner. The surface is created on first use.
func (b *Board) CreateSink(c layout.Cell) (sink.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.byID[c.Surface]
	if !ok {
		s = &surface{id: c.Surface}
		b.byID[c.Surface] = s
		b.surfaces = append(b.surfaces, s)
	}

	var regionName string
	if c.Region != nil {
		regionName = c.Region.Name
	}
	id := CellID(c.Surface, regionName, c.Title)
	if _, exists := b.cells[id]; exists {
		return nil, fmt.Errorf("cell %s already exists", id)
	}

	var region *layout.Region
	if c.Region != nil {
		r := *c.Region
		region = &r
		if !slices.Contains(s.regions, r.Name) {
			s.regions = append(s.regions, r.Name)
		}
	}

	cell := &Cell{
		ID:        id,
		Device:    c.Device,
		Title:     c.Title,
		Widget:    c.Descriptor.Widget,
		Hints:     c.Descriptor.Hints,
		Region:    region,
		Row:       c.Row,
		Column:    c.Column,
		Width:     c.Width,
		Height:    c.Height,
		Reachable: c.Reachable(),
		Value:     c.Descriptor.Default.Any(),
		value:     c.Descriptor.Default,
		surface:   c.Surface,
	}
	if c.Device != "" {
		cell.Attribute = c.Descriptor.Name
	}

	s.cells = append(s.cells, cell)
	b.cells[id] = cell

	return sink.HandleFunc(func(v catalog.Value) error {
		return b.write(id, v)
	}), nil
}

// SelectActiveSurface implements layout.Provisioner
func (b *Board) SelectActiveSurface(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.byID[id]
	if !ok || len(s.cells) == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSurface, id)
	}
	b.active = id

	if b.logger != nil {
		b.logger.Printf("[board] Active surface: %s", id)
	}
	return nil
}

// Active returns the selected surface id, or "" if none was selected
func (b *Board) Active() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.active
}

func (b *Board) write(id string, v catalog.Value) error {
	b.mu.Lock()
	cell, ok := b.cells[id]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("cell %s not found", id)
	}
	cell.value = v
	cell.Value = v.Any()
	surfaceID := cell.surface
	b.mu.Unlock()

	b.publish(Update{Surface: surfaceID, Cell: id, Value: v.Any(), Time: time.Now()})
	return nil
}

// Snapshot returns copies of all surfaces in creation order
func (b *Board) Snapshot() []Surface {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Surface, 0, len(b.surfaces))
	for _, s := range b.surfaces {
		out = append(out, copySurface(s))
	}
	return out
}

// Surface returns a copy of the surface with the given id
func (b *Board) Surface(id string) (Surface, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s, ok := b.byID[id]
	if !ok {
		return Surface{}, fmt.Errorf("%w: %s", ErrUnknownSurface, id)
	}
	return copySurface(s), nil
}

// Values returns the current value of every cell keyed by cell id
func (b *Board) Values() map[string]catalog.Value {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]catalog.Value, len(b.cells))
	for id, c := range b.cells {
		out[id] = c.value
	}
	return out
}

// Restore writes previously saved values back to the cells that still exist.
// Values whose kind no longer matches the cell are ignored. Returns the number restored.
func (b *Board) Restore(values map[string]catalog.Value) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	restored := 0
	for id, v := range values {
		c, ok := b.cells[id]
		if !ok || c.value.Kind != v.Kind {
			continue
		}
		c.value = v
		c.Value = v.Any()
		restored++
	}
	return restored
}

// Subscribe returns a channel receiving every update.
// Updates are dropped for subscribers whose buffer is full.
func (b *Board) Subscribe() chan Update {
	b.subMu.Lock()
	defer b.subMu.Unlock()

	ch := make(chan Update, b.bufferSize)
	b.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes a subscription
func (b *Board) Unsubscribe(ch chan Update) {
	b.subMu.Lock()
	defer b.subMu.Unlock()

	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
}

func (b *Board) publish(u Update) {
	b.subMu.Lock()
	defer b.subMu.Unlock()

	for ch := range b.subscribers {
		select {
		case ch <- u:
		default:
		}
	}
}

func copySurface(s *surface) Surface {
	out := Surface{
		ID:      s.id,
		Regions: append([]string(nil), s.regions...),
		Cells:   make([]Cell, 0, len(s.cells)),
	}
	for _, c := range s.cells {
		cc := *c
		if c.Region != nil {
			r := *c.Region
			cc.Region = &r
		}
		out.Cells = append(out.Cells, cc)
	}
	return out
}
