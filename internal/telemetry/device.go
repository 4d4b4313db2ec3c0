// Package telemetry reads device attributes each tick and writes them to their sinks
package telemetry

import (
	"errors"
	"fmt"

	"diagview/internal/catalog"
	"diagview/internal/layout"
	"diagview/internal/sink"
)

var (
	// ErrNoDevices is returned by Setup for an empty device list
	ErrNoDevices = errors.New("no devices configured")

	// ErrNoAttributes is returned by Setup for an empty attribute set
	ErrNoAttributes = errors.New("no attributes configured")

	// ErrDuplicateDevice is returned by Setup when two devices share a name
	ErrDuplicateDevice = errors.New("duplicate device name")
)

// Device is a motor controller that can be polled for attribute readings
type Device interface {
	Name() string
	ReadBitmask(kind catalog.AttributeKind) (uint32, error)
	ReadNumeric(kind catalog.AttributeKind) (float64, error)
	ReadBool(kind catalog.AttributeKind) (bool, error)
}

// Names returns the device names in order
func Names(devices []Device) []string {
	names := make([]string, len(devices))
	for i, d := range devices {
		names[i] = d.Name()
	}
	return names
}

// Setup validates the device and attribute configuration, lays out one sink
// per (device, attribute) pair with s and returns the populated registry
func Setup(devices []Device, attrs []catalog.AttributeKind, s layout.Strategy, p layout.Provisioner) (*sink.Registry, error) {
	if len(devices) == 0 {
		return nil, ErrNoDevices
	}

	seen := make(map[string]bool, len(devices))
	for _, d := range devices {
		if d == nil {
			return nil, errors.New("device cannot be nil")
		}
		if seen[d.Name()] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDevice, d.Name())
		}
		seen[d.Name()] = true
	}

	if len(attrs) == 0 {
		return nil, ErrNoAttributes
	}
	for _, k := range attrs {
		if !k.Valid() {
			return nil, fmt.Errorf("%w: %d", catalog.ErrUnknownKind, int(k))
		}
	}

	reg, err := layout.Layout(s, Names(devices), attrs, p)
	if err != nil {
		return nil, fmt.Errorf("failed to lay out sinks: %w", err)
	}
	return reg, nil
}
