package mqtt

import (
	"encoding/json"
	"log"
	"sync"

	"diagview/internal/storage"
)

const (
	discoveryPublishedKey = "discoveryPublished"
	discoveryCountKey     = "discoveryCount"
)

// DiscoveryManager manages Home Assistant MQTT Discovery
type DiscoveryManager struct {
	transport Transport
	logger    *log.Logger
	storage   storage.Storage
	component string

	// Cache of pre-generated discovery configs
	configs   map[string][]byte
	configsMu sync.RWMutex

	lastCount int
	mu        sync.Mutex
}

// NewDiscoveryManager creates a new DiscoveryManager instance.
// The published flag and entity count are kept in storage under component.
func NewDiscoveryManager(transport Transport, logger *log.Logger, store storage.Storage, component string) *DiscoveryManager {
	d := &DiscoveryManager{
		transport: transport,
		logger:    logger,
		storage:   store,
		component: component,
		configs:   make(map[string][]byte),
		lastCount: -1,
	}
	if store != nil {
		if n, err := store.GetInt(component, discoveryCountKey); err == nil {
			d.lastCount = n
		}
	}
	return d
}

// ShouldRepublish reports whether discovery must be published for count entities:
// never published before, or the entity count changed
func (d *DiscoveryManager) ShouldRepublish(count int) bool {
	published := false
	if d.storage != nil {
		if v, err := d.storage.GetBool(d.component, discoveryPublishedKey); err == nil {
			published = v
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return !published || count != d.lastCount
}

// DiscoveryTopic returns the retained config topic of an entity
func DiscoveryTopic(cfg *EntityConfig) string {
	return "homeassistant/" + string(cfg.Kind) + "/diagview/" + cfg.ID + "/config"
}

// Publish publishes the discovery config of a single entity
func (d *DiscoveryManager) Publish(cfg *EntityConfig) error {
	if cfg == nil {
		return nil
	}

	configJSON, err := d.generate(cfg)
	if err != nil {
		return err
	}

	return d.transport.PublishRaw(DiscoveryTopic(cfg), configJSON, true)
}

// PublishAll publishes discovery configs for every entity and records the count.
// Individual failures are logged; the last one is returned.
func (d *DiscoveryManager) PublishAll(configs []*EntityConfig) error {
	var lastErr error
	for _, cfg := range configs {
		if err := d.Publish(cfg); err != nil {
			lastErr = err
			if d.logger != nil {
				d.logger.Printf("[%s] Failed to publish discovery for %s: %v", d.component, cfg.ID, err)
			}
		}
	}
	if lastErr != nil {
		return lastErr
	}

	d.markPublished(len(configs))

	if d.logger != nil {
		d.logger.Printf("[%s] Published MQTT discovery config for %d entities", d.component, len(configs))
	}
	return nil
}

// generate builds and caches the Home Assistant discovery config
func (d *DiscoveryManager) generate(cfg *EntityConfig) ([]byte, error) {
	d.configsMu.RLock()
	if config, ok := d.configs[cfg.ID]; ok {
		d.configsMu.RUnlock()
		return config, nil
	}
	d.configsMu.RUnlock()

	prefix := d.transport.Prefix()
	stateTopic := cfg.StateTopic
	if prefix != "" {
		stateTopic = prefix + "/" + stateTopic
	}

	discoveryConfig := map[string]interface{}{
		"name":        cfg.Name,
		"unique_id":   "diagview_" + cfg.ID,
		"state_topic": stateTopic,
	}

	if cfg.Unit != "" {
		discoveryConfig["unit_of_measurement"] = cfg.Unit
	}
	if cfg.DeviceClass != "" {
		discoveryConfig["device_class"] = cfg.DeviceClass
	}
	if cfg.StateClass != "" {
		discoveryConfig["state_class"] = cfg.StateClass
	}
	if cfg.Icon != "" {
		discoveryConfig["icon"] = cfg.Icon
	}

	if cfg.DeviceInfo != nil {
		discoveryConfig["device"] = map[string]interface{}{
			"identifiers":  cfg.DeviceInfo.Identifiers,
			"name":         cfg.DeviceInfo.Name,
			"model":        cfg.DeviceInfo.Model,
			"manufacturer": cfg.DeviceInfo.Manufacturer,
		}
	}

	configJSON, err := json.Marshal(discoveryConfig)
	if err != nil {
		return nil, err
	}

	d.configsMu.Lock()
	d.configs[cfg.ID] = configJSON
	d.configsMu.Unlock()

	return configJSON, nil
}

func (d *DiscoveryManager) markPublished(count int) {
	d.mu.Lock()
	d.lastCount = count
	d.mu.Unlock()

	if d.storage == nil {
		return
	}
	if err := d.storage.SetBool(d.component, discoveryPublishedKey, true); err != nil && d.logger != nil {
		d.logger.Printf("[%s] Failed to mark discovery as published: %v", d.component, err)
	}
	if err := d.storage.SetInt(d.component, discoveryCountKey, count); err != nil && d.logger != nil {
		d.logger.Printf("[%s] Failed to store discovery count: %v", d.component, err)
	}
}
