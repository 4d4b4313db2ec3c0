// Package sink provides write-only display endpoints and the registry that maps
// (device, attribute) pairs to them
package sink

import (
	"errors"
	"fmt"

	"diagview/internal/catalog"
)

var (
	// ErrNotRegistered is returned when no sink exists for a (device, attribute) pair
	ErrNotRegistered = errors.New("sink not registered")

	// ErrDuplicate is returned when a (device, attribute) pair is registered twice
	ErrDuplicate = errors.New("sink already registered")

	// ErrValueKind is returned when a value does not match the sink's value kind
	ErrValueKind = errors.New("value kind mismatch")
)

// Handle is a write-only endpoint for one attribute's current value
type Handle interface {
	Write(v catalog.Value) error
}

// HandleFunc adapts a function to the Handle interface
type HandleFunc func(v catalog.Value) error

// Write implements Handle
func (f HandleFunc) Write(v catalog.Value) error {
	return f(v)
}

// Registry maps device name -> attribute kind -> sink handle.
// It is populated once during setup and only read afterwards; it is not safe
// for concurrent registration.
type Registry struct {
	devices map[string]map[catalog.AttributeKind]Handle
	order   []string // registration order of device names
	health  Handle
	count   int
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[string]map[catalog.AttributeKind]Handle),
	}
}

// Register binds h to the (device, kind) pair
func (r *Registry) Register(device string, kind catalog.AttributeKind, h Handle) error {
	if h == nil {
		return fmt.Errorf("sink for %s/%s cannot be nil", device, kind)
	}

	byKind, ok := r.devices[device]
	if !ok {
		byKind = make(map[catalog.AttributeKind]Handle)
		r.devices[device] = byKind
		r.order = append(r.order, device)
	}

	if _, exists := byKind[kind]; exists {
		return fmt.Errorf("%w: %s/%s", ErrDuplicate, device, kind)
	}

	byKind[kind] = h
	r.count++
	return nil
}

// Lookup returns the handle bound to (device, kind)
func (r *Registry) Lookup(device string, kind catalog.AttributeKind) (Handle, error) {
	if h, ok := r.devices[device][kind]; ok {
		return h, nil
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrNotRegistered, device, kind)
}

// SetHealth sets the aggregate health sink
func (r *Registry) SetHealth(h Handle) {
	r.health = h
}

// Health returns the aggregate health sink, or nil if none was provisioned
func (r *Registry) Health() Handle {
	return r.health
}

// Devices returns the registered device names in registration order
func (r *Registry) Devices() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered (device, attribute) sinks
func (r *Registry) Len() int {
	return r.count
}
