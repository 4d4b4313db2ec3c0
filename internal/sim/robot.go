package sim

import (
	"fmt"
	"math"
	"sync"

	"diagview/internal/telemetry"
)

// Robot groups the simulated motors and power panel
type Robot struct {
	mu      sync.Mutex
	motors  []*Motor
	byName  map[string]*Motor
	Power   *PowerPanel
	elapsed float64
}

// NewRobot builds motors from f and wires motor i to power channel i
func NewRobot(f *File) (*Robot, error) {
	r := &Robot{
		byName: make(map[string]*Motor, len(f.Motors)),
		Power:  NewPowerPanel(f.PowerChannels),
	}
	for i, def := range f.Motors {
		m := NewMotor(def)
		if _, exists := r.byName[m.Name()]; exists {
			return nil, fmt.Errorf("duplicate motor %s", m.Name())
		}
		r.motors = append(r.motors, m)
		r.byName[m.Name()] = m
		if i < r.Power.Channels() {
			if err := r.Power.Wire(i, m); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

// Devices returns the motors as telemetry devices in definition order
func (r *Robot) Devices() []telemetry.Device {
	out := make([]telemetry.Device, len(r.motors))
	for i, m := range r.motors {
		out[i] = m
	}
	return out
}

// Motor returns the motor with the given name
func (r *Robot) Motor(name string) (*Motor, bool) {
	m, ok := r.byName[name]
	return m, ok
}

// Step advances every motor and the power panel by dt seconds.
// Motors follow a slow sine duty cycle, phase shifted per motor.
func (r *Robot) Step(dt float64) {
	r.mu.Lock()
	r.elapsed += dt
	t := r.elapsed
	r.mu.Unlock()

	for i, m := range r.motors {
		m.SetCommand(0.6 * math.Sin(t/4+float64(i)))
		m.Step(dt)
	}
	r.Power.Step(dt)
}
