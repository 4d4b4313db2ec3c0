package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"diagview/internal/catalog"
	"diagview/internal/layout"
)

// Environment variable names
const (
	EnvAddr          = "DIAGVIEW_ADDR"
	EnvJWTSecret     = "DIAGVIEW_JWT_SECRET"
	EnvJWTExpiration = "DIAGVIEW_JWT_EXPIRATION"
	EnvNoAuth        = "DIAGVIEW_NO_AUTH"
	EnvAdminPassword = "DIAGVIEW_ADMIN_PASSWORD"
	EnvDBPath        = "DIAGVIEW_DB_PATH"
	EnvLogFile       = "DIAGVIEW_LOG_FILE"
	// Diagnostics settings
	EnvDevicesFile   = "DIAGVIEW_DEVICES_FILE"
	EnvLayout        = "DIAGVIEW_LAYOUT"
	EnvRowsPerPage   = "DIAGVIEW_ROWS_PER_PAGE"
	EnvTickInterval  = "DIAGVIEW_TICK_INTERVAL_MS"
	EnvPowerChannels = "DIAGVIEW_POWER_CHANNELS"
	EnvAttributes    = "DIAGVIEW_ATTRIBUTES"
	// MQTT settings
	EnvMQTTBroker   = "DIAGVIEW_MQTT_BROKER"
	EnvMQTTClientID = "DIAGVIEW_MQTT_CLIENT_ID"
	EnvMQTTUsername = "DIAGVIEW_MQTT_USERNAME"
	EnvMQTTPassword = "DIAGVIEW_MQTT_PASSWORD"
	EnvMQTTPrefix   = "DIAGVIEW_MQTT_PREFIX"
	EnvMQTTUseTLS   = "DIAGVIEW_MQTT_USE_TLS"
)

// Default values
const (
	DefaultAddr          = ":8080"
	DefaultJWTExpiration = 24 * time.Hour
	DefaultNoAuth        = false
	DefaultDBPath        = "diagview.db"
	DefaultLayout        = "grid"
	DefaultRowsPerPage   = layout.DefaultRowsPerPage
	DefaultTickInterval  = 100 * time.Millisecond
	DefaultPowerChannels = 16
	// MQTT defaults
	DefaultMQTTPrefix = "diagview"
	DefaultMQTTUseTLS = false
)

// Config holds all application configuration.
// All access should be through getter methods for thread safety.
type Config struct {
	mu       sync.RWMutex
	filePath string
	dirty    bool // tracks if config was modified

	// Server settings
	addr    string
	dbPath  string
	logFile string

	// Security settings
	jwtSecret     string
	jwtExpiration time.Duration
	noAuth        bool
	adminPassword string

	// Diagnostics settings
	devicesFile   string
	layout        string
	rowsPerPage   int
	tickInterval  time.Duration
	powerChannels int
	attributes    []catalog.AttributeKind

	// MQTT settings
	mqttBroker   string
	mqttClientID string
	mqttUsername string
	mqttPassword string
	mqttPrefix   string
	mqttUseTLS   bool
}

// Load loads configuration from .env file or creates it with defaults.
// This is the main entry point for configuration initialization.
func Load(filePath string) (*Config, error) {
	cfg := &Config{
		filePath: filePath,
	}

	cfg.setDefaults()

	if err := cfg.loadFromFile(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		// File doesn't exist - will be created with defaults
		cfg.dirty = true
	}

	// Generate JWT secret if empty
	if cfg.jwtSecret == "" {
		secret, err := generateSecureSecret(32)
		if err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		cfg.jwtSecret = secret
		cfg.dirty = true
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Save if config was modified (new file or generated secret)
	if cfg.dirty {
		if err := cfg.Save(); err != nil {
			return nil, fmt.Errorf("failed to save config: %w", err)
		}
	}

	return cfg, nil
}

// setDefaults initializes all fields with default values.
func (c *Config) setDefaults() {
	c.addr = DefaultAddr
	c.dbPath = DefaultDBPath
	c.logFile = ""
	c.jwtSecret = ""
	c.jwtExpiration = DefaultJWTExpiration
	c.noAuth = DefaultNoAuth
	c.adminPassword = ""
	c.devicesFile = ""
	c.layout = DefaultLayout
	c.rowsPerPage = DefaultRowsPerPage
	c.tickInterval = DefaultTickInterval
	c.powerChannels = DefaultPowerChannels
	c.attributes = catalog.All()
	c.mqttBroker = ""
	c.mqttClientID = ""
	c.mqttUsername = ""
	c.mqttPassword = ""
	c.mqttPrefix = DefaultMQTTPrefix
	c.mqttUseTLS = DefaultMQTTUseTLS
}

// loadFromFile reads configuration from .env file.
func (c *Config) loadFromFile() error {
	file, err := os.Open(c.filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	values, err := ParseEnvFile(file)
	if err != nil {
		return err
	}

	return c.applyValues(values)
}

// applyValues applies parsed key-value pairs to config.
func (c *Config) applyValues(values map[string]string) error {
	if v, ok := values[EnvAddr]; ok && v != "" {
		c.addr = v
	}
	if v, ok := values[EnvDBPath]; ok && v != "" {
		c.dbPath = v
	}
	if v, ok := values[EnvLogFile]; ok {
		c.logFile = v
	}

	if v, ok := values[EnvJWTSecret]; ok && v != "" {
		c.jwtSecret = v
	}
	if v, ok := values[EnvJWTExpiration]; ok && v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			c.jwtExpiration = time.Duration(seconds) * time.Second
		}
	}
	if v, ok := values[EnvNoAuth]; ok {
		c.noAuth = parseBool(v)
	}
	if v, ok := values[EnvAdminPassword]; ok {
		c.adminPassword = v
	}

	// Diagnostics settings
	if v, ok := values[EnvDevicesFile]; ok {
		c.devicesFile = v
	}
	if v, ok := values[EnvLayout]; ok && v != "" {
		c.layout = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := values[EnvRowsPerPage]; ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRowsPerPage, err)
		}
		c.rowsPerPage = n
	}
	if v, ok := values[EnvTickInterval]; ok && v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTickInterval, err)
		}
		c.tickInterval = time.Duration(ms) * time.Millisecond
	}
	if v, ok := values[EnvPowerChannels]; ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPowerChannels, err)
		}
		c.powerChannels = n
	}
	if v, ok := values[EnvAttributes]; ok && v != "" {
		kinds, err := catalog.ParseKinds(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvAttributes, err)
		}
		c.attributes = kinds
	}

	// MQTT settings
	if v, ok := values[EnvMQTTBroker]; ok {
		c.mqttBroker = v
	}
	if v, ok := values[EnvMQTTClientID]; ok {
		c.mqttClientID = v
	}
	if v, ok := values[EnvMQTTUsername]; ok {
		c.mqttUsername = v
	}
	if v, ok := values[EnvMQTTPassword]; ok {
		c.mqttPassword = v
	}
	if v, ok := values[EnvMQTTPrefix]; ok {
		c.mqttPrefix = v
	}
	if v, ok := values[EnvMQTTUseTLS]; ok {
		c.mqttUseTLS = parseBool(v)
	}

	return nil
}

// validate checks if configuration is valid.
func (c *Config) validate() error {
	if c.addr == "" {
		return errors.New("server address cannot be empty")
	}

	_, port, err := net.SplitHostPort(c.addr)
	if err != nil {
		if _, err := strconv.Atoi(strings.TrimPrefix(c.addr, ":")); err != nil {
			return fmt.Errorf("invalid server address format: %s", c.addr)
		}
	} else {
		portNum, err := strconv.Atoi(port)
		if err != nil || portNum < 1 || portNum > 65535 {
			return fmt.Errorf("invalid port number: %s", port)
		}
	}

	if c.jwtExpiration < time.Minute {
		return errors.New("JWT expiration must be at least 1 minute")
	}
	if c.jwtExpiration > 365*24*time.Hour {
		return errors.New("JWT expiration cannot exceed 1 year")
	}

	if _, err := layout.ByName(c.layout, c.rowsPerPage); err != nil {
		return err
	}
	if c.tickInterval < 10*time.Millisecond {
		return errors.New("tick interval must be at least 10ms")
	}
	if c.powerChannels < 0 {
		return errors.New("power channels cannot be negative")
	}
	if len(c.attributes) == 0 {
		return errors.New("at least one attribute must be displayed")
	}

	return nil
}

// Save writes current configuration to .env file.
func (c *Config) Save() error {
	c.mu.RLock()
	values := c.toMap()
	filePath := c.filePath
	c.mu.RUnlock()

	if err := WriteEnvFile(filePath, values); err != nil {
		return err
	}

	c.mu.Lock()
	c.dirty = false
	c.mu.Unlock()

	return nil
}

// toMap converts config to key-value map for saving.
func (c *Config) toMap() map[string]string {
	return map[string]string{
		EnvAddr:          c.addr,
		EnvDBPath:        c.dbPath,
		EnvLogFile:       c.logFile,
		EnvJWTSecret:     c.jwtSecret,
		EnvJWTExpiration: strconv.Itoa(int(c.jwtExpiration.Seconds())),
		EnvNoAuth:        strconv.FormatBool(c.noAuth),
		EnvAdminPassword: c.adminPassword,
		// Diagnostics settings
		EnvDevicesFile:   c.devicesFile,
		EnvLayout:        c.layout,
		EnvRowsPerPage:   strconv.Itoa(c.rowsPerPage),
		EnvTickInterval:  strconv.Itoa(int(c.tickInterval.Milliseconds())),
		EnvPowerChannels: strconv.Itoa(c.powerChannels),
		EnvAttributes:    formatKinds(c.attributes),
		// MQTT settings
		EnvMQTTBroker:   c.mqttBroker,
		EnvMQTTClientID: c.mqttClientID,
		EnvMQTTUsername: c.mqttUsername,
		EnvMQTTPassword: c.mqttPassword,
		EnvMQTTPrefix:   c.mqttPrefix,
		EnvMQTTUseTLS:   strconv.FormatBool(c.mqttUseTLS),
	}
}

// Getters (thread-safe)

// Addr returns the server address.
func (c *Config) Addr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.addr
}

// DBPath returns the bbolt database path.
func (c *Config) DBPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dbPath
}

// LogFile returns the rotated log file path, or "" for stdout only.
func (c *Config) LogFile() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logFile
}

// JWTSecret returns the JWT secret key.
func (c *Config) JWTSecret() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.jwtSecret
}

// JWTExpiration returns the JWT token expiration duration.
func (c *Config) JWTExpiration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.jwtExpiration
}

// NoAuth returns whether authentication is disabled.
func (c *Config) NoAuth() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.noAuth
}

// AdminPassword returns the operator password.
func (c *Config) AdminPassword() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.adminPassword
}

// DevicesFile returns the YAML device file path, or "" for the built-in motor set.
func (c *Config) DevicesFile() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.devicesFile
}

// Layout returns the layout strategy name.
func (c *Config) Layout() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.layout
}

// RowsPerPage returns the flow layout page height.
func (c *Config) RowsPerPage() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rowsPerPage
}

// TickInterval returns the telemetry refresh period.
func (c *Config) TickInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tickInterval
}

// PowerChannels returns the power panel channel count; 0 disables the panel.
func (c *Config) PowerChannels() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.powerChannels
}

// Attributes returns the displayed attribute kinds in order.
func (c *Config) Attributes() []catalog.AttributeKind {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]catalog.AttributeKind(nil), c.attributes...)
}

// FilePath returns the path to the .env file.
func (c *Config) FilePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filePath
}

// MQTT Getters

// MQTTBroker returns the MQTT broker address.
func (c *Config) MQTTBroker() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttBroker
}

// MQTTClientID returns the MQTT client ID.
func (c *Config) MQTTClientID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttClientID
}

// MQTTUsername returns the MQTT username.
func (c *Config) MQTTUsername() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttUsername
}

// MQTTPassword returns the MQTT password.
func (c *Config) MQTTPassword() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttPassword
}

// MQTTPrefix returns the MQTT topic prefix.
func (c *Config) MQTTPrefix() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttPrefix
}

// MQTTUseTLS returns whether TLS is enabled for MQTT.
func (c *Config) MQTTUseTLS() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mqttUseTLS
}

// Setters (thread-safe, auto-save)

// SetLayout sets the layout strategy and flow page height and saves to file.
// The change applies on next start.
func (c *Config) SetLayout(name string, rowsPerPage int) error {
	if _, err := layout.ByName(name, rowsPerPage); err != nil {
		return err
	}

	c.mu.Lock()
	c.layout = name
	c.rowsPerPage = rowsPerPage
	c.dirty = true
	c.mu.Unlock()

	return c.Save()
}

// SetAttributes sets the displayed attribute kinds and saves to file.
func (c *Config) SetAttributes(kinds []catalog.AttributeKind) error {
	if len(kinds) == 0 {
		return errors.New("at least one attribute must be displayed")
	}
	for _, k := range kinds {
		if !k.Valid() {
			return fmt.Errorf("%w: %d", catalog.ErrUnknownKind, int(k))
		}
	}

	c.mu.Lock()
	c.attributes = append([]catalog.AttributeKind(nil), kinds...)
	c.dirty = true
	c.mu.Unlock()

	return c.Save()
}

// Helper functions

// generateSecureSecret generates a cryptographically secure random hex string.
func generateSecureSecret(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// parseBool parses a boolean string value.
// Accepts: true, false, 1, 0, yes, no, on (case-insensitive)
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

func formatKinds(kinds []catalog.AttributeKind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return strings.Join(names, ",")
}

// String returns a string representation of the config (without secrets).
func (c *Config) String() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	secretDisplay := "[not set]"
	if c.jwtSecret != "" {
		secretDisplay = "[set]"
	}

	return fmt.Sprintf(
		"Config{Addr: %q, JWTSecret: %s, NoAuth: %v, Layout: %q, RowsPerPage: %d, TickInterval: %v, PowerChannels: %d}",
		c.addr, secretDisplay, c.noAuth, c.layout, c.rowsPerPage, c.tickInterval, c.powerChannels,
	)
}
