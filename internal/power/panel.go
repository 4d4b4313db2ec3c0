// Package power surfaces power distribution panel readings
package power

import (
	"errors"
	"fmt"
	"strconv"

	"diagview/internal/catalog"
	"diagview/internal/layout"
	"diagview/internal/sink"
)

// Surface hosts the power panel sinks
const Surface = "Power"

var (
	// ErrChannelOutOfRange is returned for a channel index outside [0, N)
	ErrChannelOutOfRange = errors.New("power channel out of range")

	// ErrInvalidChannels is returned when a panel is provisioned with fewer than one channel
	ErrInvalidChannels = errors.New("power panel needs at least one channel")
)

// Metric is a scalar power panel reading
type Metric int

const (
	Voltage Metric = iota
	Temperature
	TotalCurrent
	TotalEnergy
)

// Metrics returns all scalar metrics in display order
func Metrics() []Metric {
	return []Metric{Voltage, Temperature, TotalCurrent, TotalEnergy}
}

// String returns the display label of the metric
func (m Metric) String() string {
	switch m {
	case Voltage:
		return "Voltage"
	case Temperature:
		return "Temp"
	case TotalCurrent:
		return "Total Current"
	case TotalEnergy:
		return "Total Energy"
	default:
		return "Metric(" + strconv.Itoa(int(m)) + ")"
	}
}

// Source reads a power distribution panel
type Source interface {
	ReadScalar(m Metric) (float64, error)
	ReadChannel(index int) (float64, error)
}

// Panel holds one sink per scalar metric and a fixed number of channel sinks
type Panel struct {
	scalars  map[Metric]sink.Handle
	channels []sink.Handle
}

// Provision creates the panel's sinks on the power surface
func Provision(p layout.Provisioner, channels int) (*Panel, error) {
	if channels < 1 {
		return nil, ErrInvalidChannels
	}

	panel := &Panel{
		scalars:  make(map[Metric]sink.Handle, len(Metrics())),
		channels: make([]sink.Handle, 0, channels),
	}

	for i, m := range Metrics() {
		h, err := createNumber(p, m.String(), 0, i)
		if err != nil {
			return nil, fmt.Errorf("failed to provision %s: %w", m, err)
		}
		panel.scalars[m] = h
	}

	for i := 0; i < channels; i++ {
		h, err := createNumber(p, "Current "+strconv.Itoa(i), 1+i/len(Metrics()), i%len(Metrics()))
		if err != nil {
			return nil, fmt.Errorf("failed to provision channel %d: %w", i, err)
		}
		panel.channels = append(panel.channels, h)
	}

	return panel, nil
}

func createNumber(p layout.Provisioner, title string, row, col int) (sink.Handle, error) {
	desc := catalog.Descriptor{
		Name:      title,
		Label:     title,
		ValueKind: catalog.ValueNumber,
		Default:   catalog.NumberValue(0),
		Width:     1,
		Widget:    catalog.WidgetTextView,
	}
	h, err := p.CreateSink(layout.Cell{
		Surface:    Surface,
		Title:      title,
		Row:        row,
		Column:     col,
		Width:      1,
		Height:     1,
		Descriptor: desc,
	})
	if err != nil {
		return nil, err
	}
	return sink.Bind(h, desc), nil
}

// Channels returns the fixed channel count N
func (p *Panel) Channels() int {
	return len(p.channels)
}

// WriteChannel writes v to channel index
func (p *Panel) WriteChannel(index int, v float64) error {
	if index < 0 || index >= len(p.channels) {
		return fmt.Errorf("%w: %d (channels: %d)", ErrChannelOutOfRange, index, len(p.channels))
	}
	return p.channels[index].Write(catalog.NumberValue(v))
}

// SyncChannel reads channel index from src and writes it
func (p *Panel) SyncChannel(src Source, index int) error {
	if index < 0 || index >= len(p.channels) {
		return fmt.Errorf("%w: %d (channels: %d)", ErrChannelOutOfRange, index, len(p.channels))
	}
	v, err := src.ReadChannel(index)
	if err != nil {
		return fmt.Errorf("read channel %d: %w", index, err)
	}
	return p.WriteChannel(index, v)
}

// Sync writes every scalar metric and every channel from src.
// A failed reading skips that one sink; all failures are returned.
func (p *Panel) Sync(src Source) []error {
	var errs []error

	for _, m := range Metrics() {
		v, err := src.ReadScalar(m)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", m, err))
			continue
		}
		if err := p.scalars[m].Write(catalog.NumberValue(v)); err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", m, err))
		}
	}

	for i := range p.channels {
		if err := p.SyncChannel(src, i); err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}
