package mqtt

import (
	"encoding/json"
	"log"
	"sync"
)

// Publisher publishes entity states under sensor/<id>/state
type Publisher struct {
	transport Transport
	logger    *log.Logger

	// Cache of sanitized entity IDs; every tick publishes the same labels
	idCache   map[string]string
	idCacheMu sync.RWMutex
}

// NewPublisher creates a new Publisher instance
func NewPublisher(transport Transport, logger *log.Logger) *Publisher {
	return &Publisher{
		transport: transport,
		logger:    logger,
		idCache:   make(map[string]string),
	}
}

// StateTopic returns the state topic of an entity, relative to the prefix
func StateTopic(entityID string) string {
	return "sensor/" + entityID + "/state"
}

// PublishState publishes an entity's state. Booleans are sent as ON/OFF for
// binary sensors; everything else is JSON encoded.
func (p *Publisher) PublishState(entityID string, value interface{}) error {
	var payload []byte
	switch v := value.(type) {
	case bool:
		if v {
			payload = []byte("ON")
		} else {
			payload = []byte("OFF")
		}
	case string:
		payload = []byte(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			if p.logger != nil {
				p.logger.Printf("[MQTT Publisher] Failed to marshal state of %s: %v", entityID, err)
			}
			return err
		}
		payload = data
	}

	if err := p.transport.Publish(StateTopic(entityID), payload); err != nil {
		if p.logger != nil {
			p.logger.Printf("[MQTT Publisher] Failed to publish %s state: %v", entityID, err)
		}
		return err
	}
	return nil
}

// PublishRetained publishes a JSON payload retained under topic
func (p *Publisher) PublishRetained(topic string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return p.transport.PublishWithQoS(topic, 1, true, payload)
}

// EntityID returns the cached sanitized ID for label
func (p *Publisher) EntityID(label string) string {
	p.idCacheMu.RLock()
	if id, ok := p.idCache[label]; ok {
		p.idCacheMu.RUnlock()
		return id
	}
	p.idCacheMu.RUnlock()

	id := sanitizeID(label)

	p.idCacheMu.Lock()
	p.idCache[label] = id
	p.idCacheMu.Unlock()

	return id
}

// sanitizeID creates a safe ID for MQTT topics and Home Assistant unique IDs
func sanitizeID(name string) string {
	b := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'A' && c <= 'Z':
			b = append(b, c+('a'-'A'))
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_', c == '-':
			b = append(b, c)
		default:
			b = append(b, '_')
		}
	}
	return string(b)
}
