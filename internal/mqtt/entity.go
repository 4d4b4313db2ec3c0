package mqtt

// EntityKind is the Home Assistant component an entity is discovered as
type EntityKind string

const (
	EntitySensor       EntityKind = "sensor"
	EntityBinarySensor EntityKind = "binary_sensor"
)

// EntityConfig describes one sink as a Home Assistant entity
type EntityConfig struct {
	ID         string     // Sanitized unique entity ID
	Name       string     // Display name
	Kind       EntityKind // sensor or binary_sensor
	Unit       string     // °C, V, A, rpm
	StateTopic string     // Topic relative to the client prefix

	DeviceClass string // temperature, voltage, current, problem
	StateClass  string // measurement, total_increasing
	Icon        string

	// Device grouping (one Home Assistant device per surface)
	DeviceInfo *DeviceInfo
}

// DeviceInfo contains device information for grouping in Home Assistant
type DeviceInfo struct {
	Identifiers  []string
	Name         string
	Model        string
	Manufacturer string
}
