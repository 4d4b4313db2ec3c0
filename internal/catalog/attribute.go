// Package catalog holds the fixed vocabulary of motor attributes and their display metadata
package catalog

import (
	"errors"
	"fmt"
	"maps"
	"strings"
)

// ErrUnknownKind is returned when an attribute kind is outside the enumerated set
var ErrUnknownKind = errors.New("unknown attribute kind")

// AttributeKind identifies one measurable device property
type AttributeKind int

const (
	kindInvalid AttributeKind = iota
	Faults
	StickyFaults
	Temperature
	Inverted
	Position
	Velocity
)

// ValueKind is the value type a sink for an attribute accepts
type ValueKind int

const (
	ValueBool ValueKind = iota + 1
	ValueNumber
	ValueText
)

// String returns the value kind name
func (v ValueKind) String() string {
	switch v {
	case ValueBool:
		return "bool"
	case ValueNumber:
		return "number"
	case ValueText:
		return "text"
	default:
		return "unknown"
	}
}

// Widget names used by display surfaces
const (
	WidgetTextView   = "Text View"
	WidgetDial       = "Dial"
	WidgetBooleanBox = "Boolean Box"
)

// Descriptor is the immutable catalog entry for an attribute kind
type Descriptor struct {
	Kind      AttributeKind  `json:"-"`
	Name      string         `json:"name"`
	Label     string         `json:"label"`
	ValueKind ValueKind      `json:"-"`
	Default   Value          `json:"-"`
	Width     int            `json:"width"`
	Widget    string         `json:"widget"`
	Hints     map[string]any `json:"hints,omitempty"`
}

// entries is indexed by AttributeKind; never mutated after init
var entries = [...]Descriptor{
	Faults: {
		Kind: Faults, Name: "FAULTS", Label: "Faults",
		ValueKind: ValueText, Default: TextValue("No fault"), Width: 2, Widget: WidgetTextView,
	},
	StickyFaults: {
		Kind: StickyFaults, Name: "STICKY_FAULTS", Label: "Sticky Faults",
		ValueKind: ValueText, Default: TextValue("No fault"), Width: 2, Widget: WidgetTextView,
	},
	Temperature: {
		Kind: Temperature, Name: "TEMPERATURE", Label: "Temp",
		ValueKind: ValueNumber, Default: NumberValue(0), Width: 1, Widget: WidgetDial,
		Hints: map[string]any{"Min": 0.0, "Max": 100.0},
	},
	Inverted: {
		Kind: Inverted, Name: "INVERTED", Label: "Inv. State",
		ValueKind: ValueText, Default: TextValue(""), Width: 1, Widget: WidgetTextView,
	},
	Position: {
		Kind: Position, Name: "POSITION", Label: "Position",
		ValueKind: ValueText, Default: TextValue("0"), Width: 1, Widget: WidgetTextView,
	},
	Velocity: {
		Kind: Velocity, Name: "VELOCITY", Label: "Velocity",
		ValueKind: ValueNumber, Default: NumberValue(0), Width: 1, Widget: WidgetDial,
		Hints: map[string]any{"Min": -6000.0, "Max": 6000.0},
	},
}

var healthDescriptor = Descriptor{
	Name:      "HEALTH",
	Label:     "Fault Indicator",
	ValueKind: ValueBool,
	Default:   BoolValue(false),
	Width:     1,
	Widget:    WidgetBooleanBox,
}

// All returns every attribute kind in enumeration order
func All() []AttributeKind {
	return []AttributeKind{Faults, StickyFaults, Temperature, Inverted, Position, Velocity}
}

// Valid reports whether k is part of the enumerated set
func (k AttributeKind) Valid() bool {
	return k > kindInvalid && int(k) < len(entries)
}

// String returns the enumerated name of the kind
func (k AttributeKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("AttributeKind(%d)", int(k))
	}
	return entries[k].Name
}

// MarshalText implements encoding.TextMarshaler
func (k AttributeKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(entries[k].Name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *AttributeKind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Describe returns the catalog entry for kind.
// The returned hints map is a copy; callers may not alter the catalog.
func Describe(kind AttributeKind) (Descriptor, error) {
	if !kind.Valid() {
		return Descriptor{}, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
	}
	d := entries[kind]
	d.Hints = maps.Clone(d.Hints)
	return d, nil
}

// MustDescribe is Describe for kinds known at compile time
func MustDescribe(kind AttributeKind) Descriptor {
	d, err := Describe(kind)
	if err != nil {
		panic(err)
	}
	return d
}

// HealthDescriptor describes the aggregate health indicator sink
func HealthDescriptor() Descriptor {
	return healthDescriptor
}

// ParseKind parses an enumerated kind name (case-insensitive).
// "TEMP" and "INVERTED_STATE" are accepted as aliases.
func ParseKind(s string) (AttributeKind, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	switch name {
	case "TEMP":
		return Temperature, nil
	case "INVERTED_STATE":
		return Inverted, nil
	}
	for _, k := range All() {
		if entries[k].Name == name {
			return k, nil
		}
	}
	return kindInvalid, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// ParseKinds parses a comma separated list of kind names
func ParseKinds(s string) ([]AttributeKind, error) {
	var kinds []AttributeKind
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		k, err := ParseKind(part)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}
