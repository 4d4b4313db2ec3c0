package plugins

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"diagview/internal/board"
	"diagview/internal/config"
	"diagview/internal/events"
	"diagview/internal/mqtt"
	"diagview/internal/sim"
	"diagview/internal/storage"
)

// Plugin is the base interface for all plugins
type Plugin interface {
	// Name returns the unique plugin name (lowercase, no spaces)
	Name() string

	// Description returns the plugin description
	Description() string

	// Version returns the plugin version (semver)
	Version() string

	// Init initializes the plugin
	// Called during application startup before Start
	Init(ctx context.Context, deps *PluginDependencies) error

	// Start starts the plugin
	// Called after successful initialization of all plugins
	Start(ctx context.Context) error

	// Stop stops the plugin
	// Called during application shutdown
	Stop(ctx context.Context) error

	// Routes returns the plugin's HTTP routes
	// Can be nil if the plugin doesn't add any routes
	Routes() []Route

	// IsEnabled checks if the plugin should be enabled
	IsEnabled() bool
}

// BackgroundTaskRunner is an optional interface for plugins that run periodic work.
// The context is cancelled when the plugin should stop its background tasks.
type BackgroundTaskRunner interface {
	StartBackgroundTasks(ctx context.Context) error
}

// PluginDependencies contains dependencies available to plugins
type PluginDependencies struct {
	// Config is the application configuration
	Config *config.Config

	// EventStore records fault transitions and operator actions
	EventStore *events.Store

	// Logger is the application logger
	Logger *log.Logger

	// Storage is the storage for settings, component data and value snapshots
	Storage storage.Storage

	// Board is the in-memory display surface served by the API
	Board *board.Board

	// Robot supplies the simulated motors and power panel
	Robot *sim.Robot

	// MQTT services (nil if MQTT is not configured)
	MQTTClient  *mqtt.Client
	MQTTSurface *mqtt.Surface
}

// Route represents a plugin's HTTP route
type Route struct {
	// Method is the HTTP method (GET, POST, DELETE, PUT, PATCH)
	Method string

	// Path is the route path, by convention under /api/plugins/{plugin-name}/
	Path string

	// Handler is the request handler
	Handler http.HandlerFunc

	// RequireAdmin restricts the route to admin users
	RequireAdmin bool
}

// PluginInfo contains plugin information for API responses
type PluginInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
	Enabled     bool   `json:"enabled"`
	Status      string `json:"status"` // "running", "stopped"
}

// enabledKey is the storage key holding a plugin's enabled flag
const enabledKey = "enabled"

// BasePlugin is a base structure that plugins can embed
type BasePlugin struct {
	name        string
	description string
	version     string
	deps        *PluginDependencies
	logger      *log.Logger
}

// NewBasePlugin creates a new BasePlugin
func NewBasePlugin(name, description, version string) *BasePlugin {
	return &BasePlugin{
		name:        name,
		description: description,
		version:     version,
	}
}

// Name implements Plugin.Name
func (p *BasePlugin) Name() string {
	return p.name
}

// Description implements Plugin.Description
func (p *BasePlugin) Description() string {
	return p.description
}

// Version implements Plugin.Version
func (p *BasePlugin) Version() string {
	return p.version
}

// SetDependencies sets the plugin's dependencies
func (p *BasePlugin) SetDependencies(deps *PluginDependencies) {
	p.deps = deps
	p.logger = deps.Logger
}

// Deps returns the plugin's dependencies
func (p *BasePlugin) Deps() *PluginDependencies {
	return p.deps
}

// Logger returns the plugin's logger
func (p *BasePlugin) Logger() *log.Logger {
	return p.logger
}

// Logf logs a message tagged with the plugin name
func (p *BasePlugin) Logf(format string, v ...interface{}) {
	if p.logger != nil {
		p.logger.Printf("["+p.name+"] "+format, v...)
	}
}

// IsEnabled reports the stored enabled flag. Plugins are enabled until disabled.
func (p *BasePlugin) IsEnabled() bool {
	if p.deps == nil {
		return true
	}
	return storedEnabled(p.deps.Storage, p.name)
}

// storedEnabled reads the enabled flag of plugin name; missing flags mean enabled
func storedEnabled(store storage.Storage, name string) bool {
	if store == nil {
		return true
	}
	enabled, err := store.GetBool(name, enabledKey)
	if errors.Is(err, storage.ErrNotFound) {
		return true
	}
	return err == nil && enabled
}

// SetEnabled stores the plugin's enabled flag, applied on next start
func SetEnabled(store storage.Storage, name string, enabled bool) error {
	return store.SetBool(name, enabledKey, enabled)
}

// WriteJSON is a shared helper function for writing JSON responses
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("ERROR: Failed to encode JSON response: %v", err)
	}
}

// RunPeriodic runs task immediately and then every interval until ctx is cancelled.
// Task errors are logged and do not stop the loop.
//
//	go RunPeriodic(ctx, time.Second, p.Logger(), p.Name(), func(ctx context.Context) error {
//	    return p.poll()
//	})
func RunPeriodic(ctx context.Context, interval time.Duration, logger *log.Logger, pluginName string, task func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := task(ctx); err != nil {
		if logger != nil {
			logger.Printf("[%s] Background task error: %v", pluginName, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if logger != nil {
				logger.Printf("[%s] Background task stopped", pluginName)
			}
			return
		case <-ticker.C:
			if err := task(ctx); err != nil {
				if logger != nil {
					logger.Printf("[%s] Background task error: %v", pluginName, err)
				}
			}
		}
	}
}

// RunOnce runs a function once after a delay, unless the context is cancelled
func RunOnce(ctx context.Context, delay time.Duration, logger *log.Logger, pluginName string, task func(context.Context) error) {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		if logger != nil {
			logger.Printf("[%s] Delayed task cancelled", pluginName)
		}
		return
	case <-timer.C:
		if err := task(ctx); err != nil {
			if logger != nil {
				logger.Printf("[%s] Delayed task error: %v", pluginName, err)
			}
		}
	}
}
