// Package sim simulates the robot's motor controllers and power distribution panel
package sim

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MotorDef describes one simulated motor controller
type MotorDef struct {
	Name         string  `yaml:"name"`
	ShortName    string  `yaml:"short_name"`
	CANID        int     `yaml:"can_id"`
	Inverted     bool    `yaml:"inverted"`
	IdleMode     string  `yaml:"idle_mode"`
	Faults       uint32  `yaml:"faults"`
	StickyFaults uint32  `yaml:"sticky_faults"`
	MaxVelocity  float64 `yaml:"max_velocity"`
	Ambient      float64 `yaml:"ambient"`
}

// Label returns the name devices are surfaced under
func (d MotorDef) Label() string {
	if d.ShortName != "" {
		return d.ShortName
	}
	return d.Name
}

// File is the YAML device file layout
type File struct {
	Motors        []MotorDef `yaml:"motors"`
	PowerChannels int        `yaml:"power_channels"`
}

// DefaultMotors is the drivetrain, climber and shooter set of the competition robot
var DefaultMotors = []MotorDef{
	{Name: "Forward Left Wheel", ShortName: "FL", CANID: 2, Inverted: true, IdleMode: "brake"},
	{Name: "Forward Right Wheel", ShortName: "FR", CANID: 5, IdleMode: "brake"},
	{Name: "Back Left Wheel", ShortName: "BL", CANID: 3, Inverted: true, IdleMode: "brake"},
	{Name: "Back Right Wheel", ShortName: "BR", CANID: 6, IdleMode: "brake"},
	{Name: "Climber", ShortName: "CL", CANID: 4, IdleMode: "brake"},
	{Name: "Shooter", ShortName: "SH", CANID: 1, IdleMode: "coast"},
	{Name: "Shooter2", ShortName: "SH2", CANID: 7, Inverted: true, IdleMode: "coast"},
}

// ParseFile parses a YAML device file
func ParseFile(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse device file: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadFile reads a YAML device file. An empty path yields the default motor set.
func LoadFile(path string) (*File, error) {
	if path == "" {
		return &File{Motors: append([]MotorDef(nil), DefaultMotors...)}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read device file %s: %w", path, err)
	}
	f, err := ParseFile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

func (f *File) validate() error {
	seen := make(map[string]bool, len(f.Motors))
	for i, m := range f.Motors {
		if m.Label() == "" {
			return fmt.Errorf("motor %d: name is required", i)
		}
		if seen[m.Label()] {
			return fmt.Errorf("motor %d: duplicate name %q", i, m.Label())
		}
		seen[m.Label()] = true
		if m.MaxVelocity < 0 {
			return fmt.Errorf("motor %s: max_velocity cannot be negative", m.Label())
		}
	}
	if f.PowerChannels < 0 {
		return errors.New("power_channels cannot be negative")
	}
	return nil
}
