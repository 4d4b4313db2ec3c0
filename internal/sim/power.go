package sim

import (
	"fmt"
	"math"
	"sync"

	"diagview/internal/power"
)

// DefaultPowerChannels is the channel count of the simulated distribution panel
const DefaultPowerChannels = 16

// PowerPanel is a simulated power distribution panel. It implements power.Source.
type PowerPanel struct {
	mu       sync.Mutex
	voltage  float64
	temp     float64
	energy   float64
	channels []float64
	motors   map[int]*Motor // channel index -> motor drawing from it
}

// NewPowerPanel creates a panel with n channels at a nominal 12.5 V
func NewPowerPanel(n int) *PowerPanel {
	if n <= 0 {
		n = DefaultPowerChannels
	}
	return &PowerPanel{
		voltage:  12.5,
		temp:     defaultAmbient,
		channels: make([]float64, n),
		motors:   make(map[int]*Motor),
	}
}

// Wire connects m to a channel so that its current draw follows its load
func (p *PowerPanel) Wire(channel int, m *Motor) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if channel < 0 || channel >= len(p.channels) {
		return fmt.Errorf("channel %d out of range (channels: %d)", channel, len(p.channels))
	}
	p.motors[channel] = m
	return nil
}

// Step advances channel currents, bus voltage sag and accumulated energy by dt seconds
func (p *PowerPanel) Step(dt float64) {
	if dt <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	total := 0.0
	for ch, m := range p.motors {
		m.mu.Lock()
		load := 0.0
		if m.def.MaxVelocity > 0 {
			load = math.Abs(m.velocity) / m.def.MaxVelocity
		}
		m.mu.Unlock()
		p.channels[ch] = 2 + 38*load
	}
	for _, c := range p.channels {
		total += c
	}
	p.voltage = 12.5 - total*0.01
	p.energy += p.voltage * total * dt
	p.temp += (defaultAmbient + total*0.1 - p.temp) * min(1, dt/thermalTau)
}

// ReadScalar implements power.Source
func (p *PowerPanel) ReadScalar(m power.Metric) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch m {
	case power.Voltage:
		return p.voltage, nil
	case power.Temperature:
		return p.temp, nil
	case power.TotalCurrent:
		total := 0.0
		for _, c := range p.channels {
			total += c
		}
		return total, nil
	case power.TotalEnergy:
		return p.energy, nil
	default:
		return 0, fmt.Errorf("unknown metric %s", m)
	}
}

// ReadChannel implements power.Source
func (p *PowerPanel) ReadChannel(index int) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if index < 0 || index >= len(p.channels) {
		return 0, fmt.Errorf("channel %d out of range (channels: %d)", index, len(p.channels))
	}
	return p.channels[index], nil
}

// Channels returns the panel's channel count
func (p *PowerPanel) Channels() int {
	return len(p.channels)
}
