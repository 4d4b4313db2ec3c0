package mqtt

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diagview/internal/catalog"
	"diagview/internal/layout"
	"diagview/internal/storage"
)

type message struct {
	topic    string
	retained bool
	payload  string
}

// fakeTransport records published messages
type fakeTransport struct {
	mu        sync.Mutex
	prefix    string
	connected bool
	messages  []message
}

func (f *fakeTransport) Publish(topic string, payload interface{}) error {
	return f.PublishWithQoS(topic, 0, false, payload)
}

func (f *fakeTransport) PublishWithQoS(topic string, qos byte, retained bool, payload interface{}) error {
	full := topic
	if f.prefix != "" {
		full = f.prefix + "/" + topic
	}
	return f.PublishRaw(full, payload, retained)
}

func (f *fakeTransport) PublishRaw(topic string, payload interface{}, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return ErrNotConnected
	}
	var text string
	switch p := payload.(type) {
	case []byte:
		text = string(p)
	case string:
		text = p
	default:
		text = fmt.Sprint(p)
	}
	f.messages = append(f.messages, message{topic: topic, retained: retained, payload: text})
	return nil
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) Prefix() string { return f.prefix }

func (f *fakeTransport) find(topic string) (message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.messages) - 1; i >= 0; i-- {
		if f.messages[i].topic == topic {
			return f.messages[i], true
		}
	}
	return message{}, false
}

func (f *fakeTransport) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.messages {
		if strings.HasPrefix(m.topic, prefix) {
			n++
		}
	}
	return n
}

func openStore(t *testing.T) *storage.BoltStorage {
	t.Helper()
	store, err := storage.NewBoltStorage(filepath.Join(t.TempDir(), "mqtt.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSanitizeID(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Motors Grid FL Temp", "motors_grid_fl_temp"},
		{"Motors 1 SH2 Inv. State", "motors_1_sh2_inv__state"},
		{"Power Current 12", "power_current_12"},
		{"already-clean_id", "already-clean_id"},
		{"Temp °C", "temp___c"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeID(tt.input))
		})
	}
}

func TestSurfaceWritesState(t *testing.T) {
	tr := &fakeTransport{prefix: "diagview", connected: true}
	s := NewSurface(tr, nil, nil)

	reg, err := layout.Layout(layout.Grid{}, []string{"FL"}, []catalog.AttributeKind{catalog.Faults, catalog.Temperature}, s)
	require.NoError(t, err)

	active, ok := tr.find("diagview/" + ActiveSurfaceTopic)
	require.True(t, ok)
	assert.True(t, active.retained)
	var sel ActiveSurface
	require.NoError(t, json.Unmarshal([]byte(active.payload), &sel))
	assert.Equal(t, layout.GridSurface, sel.ID)
	assert.Equal(t, []string{layout.GridSurface, layout.SummarySurface}, sel.Surfaces)

	h, err := reg.Lookup("FL", catalog.Temperature)
	require.NoError(t, err)
	require.NoError(t, h.Write(catalog.NumberValue(42.5)))

	m, ok := tr.find("diagview/sensor/motors_grid_fl_temp/state")
	require.True(t, ok)
	assert.Equal(t, "42.5", m.payload)

	h, err = reg.Lookup("FL", catalog.Faults)
	require.NoError(t, err)
	require.NoError(t, h.Write(catalog.TextValue("Stall")))
	m, ok = tr.find("diagview/sensor/motors_grid_fl_faults/state")
	require.True(t, ok)
	assert.Equal(t, "Stall", m.payload)

	require.NoError(t, reg.Health().Write(catalog.BoolValue(true)))
	m, ok = tr.find("diagview/sensor/summary_grid_fault_indicator/state")
	require.True(t, ok)
	assert.Equal(t, "ON", m.payload)
}

func TestSurfaceDropsWritesWhileDisconnected(t *testing.T) {
	tr := &fakeTransport{}
	s := NewSurface(tr, nil, nil)

	reg, err := layout.Layout(layout.List{}, []string{"A"}, []catalog.AttributeKind{catalog.Velocity}, s)
	require.NoError(t, err)

	h, err := reg.Lookup("A", catalog.Velocity)
	require.NoError(t, err)
	assert.NoError(t, h.Write(catalog.NumberValue(100)))
	assert.Zero(t, tr.count(""))
}

func TestSurfaceDiscovery(t *testing.T) {
	tr := &fakeTransport{prefix: "diagview", connected: true}
	store := openStore(t)
	disc := NewDiscoveryManager(tr, nil, store, "mqtt")
	s := NewSurface(tr, disc, nil)

	_, err := layout.Layout(layout.Grid{}, []string{"FL", "FR"}, []catalog.AttributeKind{catalog.Temperature, catalog.Velocity}, s)
	require.NoError(t, err)
	require.Len(t, s.Entities(), 5)

	require.NoError(t, s.PublishDiscovery())
	assert.Equal(t, 4, tr.count("homeassistant/sensor/diagview/"))
	assert.Equal(t, 1, tr.count("homeassistant/binary_sensor/diagview/"))

	m, ok := tr.find("homeassistant/sensor/diagview/motors_grid_fr_temp/config")
	require.True(t, ok)
	assert.True(t, m.retained)

	var cfg map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(m.payload), &cfg))
	assert.Equal(t, "diagview_motors_grid_fr_temp", cfg["unique_id"])
	assert.Equal(t, "diagview/sensor/motors_grid_fr_temp/state", cfg["state_topic"])
	assert.Equal(t, "°C", cfg["unit_of_measurement"])
	assert.Equal(t, "FR Temp", cfg["name"])
	device := cfg["device"].(map[string]interface{})
	assert.Equal(t, layout.GridSurface, device["name"])

	// unchanged entity count: nothing republished, even after a restart
	require.NoError(t, s.PublishDiscovery())
	restarted := NewSurface(tr, NewDiscoveryManager(tr, nil, store, "mqtt"), nil)
	_, err = layout.Layout(layout.Grid{}, []string{"FL", "FR"}, []catalog.AttributeKind{catalog.Temperature, catalog.Velocity}, restarted)
	require.NoError(t, err)
	require.NoError(t, restarted.PublishDiscovery())
	assert.Equal(t, 5, tr.count("homeassistant/"))

	count, err := store.GetInt("mqtt", discoveryCountKey)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestSurfaceRejectsDuplicateEntity(t *testing.T) {
	s := NewSurface(&fakeTransport{}, nil, nil)
	cell := layout.Cell{Surface: "Power", Title: "Voltage", Descriptor: catalog.Descriptor{Name: "Voltage", ValueKind: catalog.ValueNumber}}

	_, err := s.CreateSink(cell)
	require.NoError(t, err)
	_, err = s.CreateSink(cell)
	assert.Error(t, err)
	assert.Equal(t, "V", s.Entities()[0].Unit)
}

func TestSurfaceSuffixesCollidingIDs(t *testing.T) {
	tr := &fakeTransport{prefix: "diagview", connected: true}
	s := NewSurface(tr, nil, nil)

	reg, err := layout.Layout(layout.Grid{}, []string{"Arm.Left", "Arm Left"}, []catalog.AttributeKind{catalog.Temperature}, s)
	require.NoError(t, err)

	entities := s.Entities()
	require.Len(t, entities, 3)
	assert.Equal(t, "motors_grid_arm_left_temp", entities[0].ID)
	assert.Equal(t, "motors_grid_arm_left_temp_2", entities[1].ID)

	h, err := reg.Lookup("Arm Left", catalog.Temperature)
	require.NoError(t, err)
	require.NoError(t, h.Write(catalog.NumberValue(30)))
	m, ok := tr.find("diagview/sensor/motors_grid_arm_left_temp_2/state")
	require.True(t, ok)
	assert.Equal(t, "30", m.payload)
}
