// Package mqtt surfaces diagnostics as Home Assistant MQTT entities
package mqtt

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// ErrNotConnected is returned when publishing without a broker connection
var ErrNotConnected = errors.New("MQTT client is not connected")

// Transport publishes messages to a broker. *Client implements it.
type Transport interface {
	Publish(topic string, payload interface{}) error
	PublishWithQoS(topic string, qos byte, retained bool, payload interface{}) error
	PublishRaw(topic string, payload interface{}, retained bool) error
	IsConnected() bool
	Prefix() string
}

// Config holds MQTT client configuration
type Config struct {
	Broker   string // MQTT broker address (e.g., "tcp://localhost:1883")
	ClientID string // Unique client ID
	Username string // MQTT username (optional)
	Password string // MQTT password (optional)
	Prefix   string // Topic prefix for all messages
	UseTLS   bool   // Enable TLS connection
}

// Client wraps the MQTT client with additional functionality
type Client struct {
	client   mqtt.Client
	config   Config
	mu       sync.RWMutex
	logger   *log.Logger
	isActive bool
}

// New creates a new MQTT client
func New(cfg Config, logger *log.Logger) (*Client, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address is required")
	}

	if cfg.ClientID == "" {
		cfg.ClientID = "diagview-" + uuid.NewString()[:8]
	}

	c := &Client{
		config: cfg,
		logger: logger,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	// Configure TLS if enabled
	if cfg.UseTLS {
		tlsConfig := &tls.Config{
			InsecureSkipVerify: false,
		}
		opts.SetTLSConfig(tlsConfig)
	}

	// Set connection handlers
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		if c.logger != nil {
			c.logger.Printf("[MQTT] Connection lost: %v", err)
		}
	})

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		if c.logger != nil {
			c.logger.Printf("[MQTT] Connected to broker: %s", cfg.Broker)
		}
	})

	opts.SetReconnectingHandler(func(client mqtt.Client, options *mqtt.ClientOptions) {
		if c.logger != nil {
			c.logger.Printf("[MQTT] Attempting to reconnect...")
		}
	})

	// Auto-reconnect settings
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(10 * time.Second)

	// Keep alive settings
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	// Clean session
	opts.SetCleanSession(true)

	c.client = mqtt.NewClient(opts)
	return c, nil
}

// Connect establishes connection to MQTT broker
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isActive {
		return nil // Already connected
	}

	if c.logger != nil {
		c.logger.Printf("[MQTT] Connecting to broker: %s", c.config.Broker)
	}

	token := c.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	c.isActive = true
	if c.logger != nil {
		c.logger.Printf("[MQTT] Successfully connected")
	}

	return nil
}

// Disconnect closes connection to MQTT broker
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isActive {
		return
	}

	c.client.Disconnect(250) // Wait up to 250ms for graceful disconnect
	c.isActive = false

	if c.logger != nil {
		c.logger.Printf("[MQTT] Disconnected from broker")
	}
}

// Publish publishes a message to the specified topic with QoS 0 (default for telemetry)
func (c *Client) Publish(topic string, payload interface{}) error {
	return c.PublishWithQoS(topic, 0, false, payload)
}

// PublishWithQoS publishes a message with explicit QoS and retained settings
func (c *Client) PublishWithQoS(topic string, qos byte, retained bool, payload interface{}) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.isActive {
		return ErrNotConnected
	}

	// Add prefix to topic
	fullTopic := c.buildTopic(topic)

	// Publish with specified QoS and retained flag
	token := c.client.Publish(fullTopic, qos, retained, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish message: %w", token.Error())
	}

	return nil
}

// PublishRaw publishes a message without adding prefix (for discovery topics)
func (c *Client) PublishRaw(topic string, payload interface{}, retained bool) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.isActive {
		return ErrNotConnected
	}

	// Publish with QoS 1 without prefix
	token := c.client.Publish(topic, 1, retained, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish message: %w", token.Error())
	}

	if c.logger != nil {
		c.logger.Printf("[MQTT] Published (raw) to %s", topic)
	}

	return nil
}

// buildTopic constructs full topic path with prefix
func (c *Client) buildTopic(topic string) string {
	if c.config.Prefix == "" {
		return topic
	}
	return c.config.Prefix + "/" + topic
}

// IsConnected returns true if client is connected to broker
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isActive && c.client.IsConnected()
}

// Prefix returns the topic prefix
func (c *Client) Prefix() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config.Prefix
}

// GetConfig returns the current MQTT configuration
func (c *Client) GetConfig() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}
