package mqtt

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"diagview/internal/catalog"
	"diagview/internal/layout"
	"diagview/internal/sink"
)

// ActiveSurfaceTopic carries the selected surface as retained JSON
const ActiveSurfaceTopic = "surface/active"

// Surface exposes every sink as a Home Assistant entity. It implements layout.Provisioner.
// Writes while the broker is unreachable are dropped.
type Surface struct {
	transport Transport
	publisher *Publisher
	discovery *DiscoveryManager
	logger    *log.Logger

	mu       sync.Mutex
	entities []*EntityConfig
	byID     map[string]bool
	byLabel  map[string]bool
}

// NewSurface creates a surface publishing through transport
func NewSurface(transport Transport, discovery *DiscoveryManager, logger *log.Logger) *Surface {
	return &Surface{
		transport: transport,
		publisher: NewPublisher(transport, logger),
		discovery: discovery,
		logger:    logger,
		byID:      make(map[string]bool),
		byLabel:   make(map[string]bool),
	}
}

// CreateSink implements layout.Provisioner
func (s *Surface) CreateSink(cell layout.Cell) (sink.Handle, error) {
	label := cell.Surface
	if cell.Region != nil {
		label += " " + cell.Region.Name
	}
	label += " " + cell.Title

	s.mu.Lock()
	if s.byLabel[label] {
		s.mu.Unlock()
		return nil, fmt.Errorf("entity %q already exists", label)
	}
	id := s.uniqueID(s.publisher.EntityID(label))
	s.byLabel[label] = true
	s.byID[id] = true
	s.mu.Unlock()

	cfg := &EntityConfig{
		ID:         id,
		Name:       entityName(cell),
		Kind:       EntitySensor,
		StateTopic: StateTopic(id),
		DeviceInfo: &DeviceInfo{
			Identifiers:  []string{"diagview_" + s.publisher.EntityID(cell.Surface)},
			Name:         cell.Surface,
			Model:        "Diagnostics surface",
			Manufacturer: "diagview",
		},
	}
	describeEntity(cfg, cell.Descriptor)

	s.mu.Lock()
	s.entities = append(s.entities, cfg)
	s.mu.Unlock()

	return sink.HandleFunc(func(v catalog.Value) error {
		if !s.transport.IsConnected() {
			return nil
		}
		return s.publisher.PublishState(id, v.Any())
	}), nil
}

// ActiveSurface is the retained payload of ActiveSurfaceTopic
type ActiveSurface struct {
	ID       string   `json:"id"`
	Surfaces []string `json:"surfaces"`
}

// uniqueID suffixes id with a counter when a different label already
// sanitized to it ("Arm.Left" and "Arm Left"). Callers hold s.mu.
func (s *Surface) uniqueID(id string) string {
	if !s.byID[id] {
		return id
	}
	for n := 2; ; n++ {
		candidate := id + "_" + strconv.Itoa(n)
		if !s.byID[candidate] {
			return candidate
		}
	}
}

// SelectActiveSurface implements layout.Provisioner
func (s *Surface) SelectActiveSurface(id string) error {
	if !s.transport.IsConnected() {
		return nil
	}
	return s.publisher.PublishRetained(ActiveSurfaceTopic, ActiveSurface{ID: id, Surfaces: s.surfaces()})
}

// surfaces lists the surface ids with entities, in creation order
func (s *Surface) surfaces() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	seen := make(map[string]bool)
	for _, e := range s.entities {
		if e.DeviceInfo == nil || seen[e.DeviceInfo.Name] {
			continue
		}
		seen[e.DeviceInfo.Name] = true
		out = append(out, e.DeviceInfo.Name)
	}
	return out
}

// Entities returns the entity configs created so far
func (s *Surface) Entities() []*EntityConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*EntityConfig(nil), s.entities...)
}

// PublishDiscovery publishes discovery configs when they were never published
// or the entity count changed since the last run
func (s *Surface) PublishDiscovery() error {
	entities := s.Entities()
	if s.discovery == nil || !s.discovery.ShouldRepublish(len(entities)) {
		return nil
	}
	return s.discovery.PublishAll(entities)
}

func entityName(cell layout.Cell) string {
	if cell.Region != nil && !strings.HasPrefix(cell.Title, cell.Region.Name) {
		return cell.Region.Name + " " + cell.Title
	}
	return cell.Title
}

// describeEntity fills in the Home Assistant presentation of a descriptor
func describeEntity(cfg *EntityConfig, d catalog.Descriptor) {
	switch {
	case d.ValueKind == catalog.ValueBool:
		cfg.Kind = EntityBinarySensor
		cfg.Icon = "mdi:heart-pulse"
	case d.Kind == catalog.Temperature || d.Name == "Temp":
		cfg.Unit = "°C"
		cfg.DeviceClass = "temperature"
		cfg.StateClass = "measurement"
	case d.Kind == catalog.Velocity:
		cfg.Unit = "rpm"
		cfg.StateClass = "measurement"
		cfg.Icon = "mdi:speedometer"
	case d.Kind == catalog.Faults || d.Kind == catalog.StickyFaults:
		cfg.Icon = "mdi:alert-circle-outline"
	case d.Name == "Voltage":
		cfg.Unit = "V"
		cfg.DeviceClass = "voltage"
		cfg.StateClass = "measurement"
	case d.Name == "Total Energy":
		cfg.Unit = "J"
		cfg.DeviceClass = "energy"
		cfg.StateClass = "total_increasing"
	case d.Name == "Total Current" || strings.HasPrefix(d.Name, "Current "):
		cfg.Unit = "A"
		cfg.DeviceClass = "current"
		cfg.StateClass = "measurement"
	}
}
