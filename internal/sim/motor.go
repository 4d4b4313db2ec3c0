package sim

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"diagview/internal/catalog"
)

// ErrInjected is returned by a read that was set up to fail with FailNextRead
var ErrInjected = errors.New("injected read failure")

const (
	defaultMaxVelocity = 5600
	defaultAmbient     = 25

	// thermal time constant and degrees gained at full speed
	thermalTau  = 30.0
	thermalGain = 45.0
	// velocity time constant
	velocityTau = 0.5
)

// Motor is a simulated motor controller. It implements telemetry.Device.
type Motor struct {
	mu sync.Mutex

	def         MotorDef
	faults      uint32
	sticky      uint32
	command     float64 // duty cycle in [-1, 1]
	velocity    float64
	position    float64 // rotations
	temperature float64
	failNext    map[catalog.AttributeKind]bool
}

// NewMotor creates a motor at rest at ambient temperature
func NewMotor(def MotorDef) *Motor {
	if def.MaxVelocity == 0 {
		def.MaxVelocity = defaultMaxVelocity
	}
	if def.Ambient == 0 {
		def.Ambient = defaultAmbient
	}
	return &Motor{
		def:         def,
		faults:      def.Faults,
		sticky:      def.StickyFaults | def.Faults,
		temperature: def.Ambient,
		failNext:    make(map[catalog.AttributeKind]bool),
	}
}

// Name returns the motor's short name
func (m *Motor) Name() string {
	return m.def.Label()
}

// Def returns the motor definition
func (m *Motor) Def() MotorDef {
	return m.def
}

// SetCommand sets the duty cycle, clamped to [-1, 1]
func (m *Motor) SetCommand(duty float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.command = max(-1, min(1, duty))
}

// SetFaults replaces the active fault bitmask. Raised bits latch into the sticky faults.
func (m *Motor) SetFaults(mask uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults = mask
	m.sticky |= mask
}

// SetStickyFaults replaces the sticky fault bitmask
func (m *Motor) SetStickyFaults(mask uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sticky = mask
}

// FailNextRead makes the next read of kind return ErrInjected
func (m *Motor) FailNextRead(kind catalog.AttributeKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext[kind] = true
}

// Step advances the model by dt seconds
func (m *Motor) Step(dt float64) {
	if dt <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	target := m.command * m.def.MaxVelocity
	if m.def.Inverted {
		target = -target
	}
	m.velocity += (target - m.velocity) * min(1, dt/velocityTau)
	m.position += m.velocity / 60 * dt

	load := 0.0
	if m.def.MaxVelocity > 0 {
		load = math.Abs(m.velocity) / m.def.MaxVelocity
	}
	targetTemp := m.def.Ambient + thermalGain*load
	m.temperature += (targetTemp - m.temperature) * min(1, dt/thermalTau)
}

func (m *Motor) consumeFailure(kind catalog.AttributeKind) error {
	if m.failNext[kind] {
		delete(m.failNext, kind)
		return fmt.Errorf("%s %s: %w", m.def.Label(), kind, ErrInjected)
	}
	return nil
}

// ReadBitmask implements telemetry.Device
func (m *Motor) ReadBitmask(kind catalog.AttributeKind) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.consumeFailure(kind); err != nil {
		return 0, err
	}
	switch kind {
	case catalog.Faults:
		return m.faults, nil
	case catalog.StickyFaults:
		return m.sticky, nil
	default:
		return 0, fmt.Errorf("%s is not a bitmask attribute", kind)
	}
}

// ReadNumeric implements telemetry.Device
func (m *Motor) ReadNumeric(kind catalog.AttributeKind) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.consumeFailure(kind); err != nil {
		return 0, err
	}
	switch kind {
	case catalog.Temperature:
		return m.temperature, nil
	case catalog.Velocity:
		return m.velocity, nil
	case catalog.Position:
		return m.position, nil
	default:
		return 0, fmt.Errorf("%s is not a numeric attribute", kind)
	}
}

// ReadBool implements telemetry.Device
func (m *Motor) ReadBool(kind catalog.AttributeKind) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.consumeFailure(kind); err != nil {
		return false, err
	}
	if kind != catalog.Inverted {
		return false, fmt.Errorf("%s is not a boolean attribute", kind)
	}
	return m.def.Inverted, nil
}
