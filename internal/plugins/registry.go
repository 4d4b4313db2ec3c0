package plugins

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"diagview/internal/storage"
)

var (
	// ErrPluginNotFound is returned for a plugin name that was never registered
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrNoStorage is returned when enabled flags cannot be persisted
	ErrNoStorage = errors.New("plugin storage not available")
)

// Registry is the registry of all plugins
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
	order   []string // registration order
	deps    *PluginDependencies
	active  []Plugin // plugins that passed InitAll, in order
	running map[string]bool
}

// NewRegistry creates a new plugin registry
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]Plugin),
		running: make(map[string]bool),
	}
}

// Register registers a plugin in the registry
func (r *Registry) Register(p Plugin) error {
	if p == nil {
		return fmt.Errorf("plugin cannot be nil")
	}

	name := p.Name()
	if name == "" {
		return fmt.Errorf("plugin name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[name]; exists {
		return fmt.Errorf("plugin %s is already registered", name)
	}

	r.plugins[name] = p
	r.order = append(r.order, name)

	return nil
}

// Get returns a plugin by name
func (r *Registry) Get(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plugins[name]
	return p, ok
}

// All returns all registered plugins in registration order
func (r *Registry) All() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.plugins[name])
	}

	return result
}

// Count returns the total number of registered plugins
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.plugins)
}

func (r *Registry) logf(format string, v ...interface{}) {
	if r.deps != nil && r.deps.Logger != nil {
		r.deps.Logger.Printf("[plugins] "+format, v...)
	}
}

// InitAll initializes every enabled plugin. The enabled set is fixed here for
// the rest of the lifecycle. Rolls back already initialized plugins on error.
func (r *Registry) InitAll(ctx context.Context, deps *PluginDependencies) error {
	r.mu.Lock()
	r.deps = deps
	r.mu.Unlock()

	var store storage.Storage
	if deps != nil {
		store = deps.Storage
	}

	var initialized []Plugin
	for _, p := range r.All() {
		if !p.IsEnabled() || !storedEnabled(store, p.Name()) {
			r.logf("Plugin %s is disabled", p.Name())
			continue
		}
		if err := p.Init(ctx, deps); err != nil {
			r.stopReverse(ctx, initialized)
			return fmt.Errorf("failed to init plugin %s: %w", p.Name(), err)
		}
		// Init may have loaded settings that disable the plugin
		if !p.IsEnabled() {
			r.logf("Plugin %s disabled itself during init", p.Name())
			continue
		}
		initialized = append(initialized, p)
	}

	r.mu.Lock()
	r.active = initialized
	r.mu.Unlock()
	return nil
}

// Active returns the plugins selected by InitAll
func (r *Registry) Active() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.active)
}

// StartAll starts every active plugin.
// Rolls back already started plugins on error.
func (r *Registry) StartAll(ctx context.Context) error {
	active := r.Active()
	started := make([]Plugin, 0, len(active))

	for _, p := range active {
		if err := p.Start(ctx); err != nil {
			r.stopReverse(ctx, started)
			return fmt.Errorf("failed to start plugin %s: %w", p.Name(), err)
		}
		started = append(started, p)
		r.setRunning(p.Name(), true)
	}

	return nil
}

// StartBackgroundTasksAll starts background tasks of active plugins implementing
// BackgroundTaskRunner. Cancel ctx to stop them.
func (r *Registry) StartBackgroundTasksAll(ctx context.Context) error {
	for _, p := range r.Active() {
		if runner, ok := p.(BackgroundTaskRunner); ok {
			if err := runner.StartBackgroundTasks(ctx); err != nil {
				return fmt.Errorf("failed to start background tasks for plugin %s: %w", p.Name(), err)
			}
		}
	}

	return nil
}

// StopAll stops active plugins in reverse order, continuing past errors
func (r *Registry) StopAll(ctx context.Context) error {
	return r.stopReverse(ctx, r.Active())
}

func (r *Registry) stopReverse(ctx context.Context, list []Plugin) error {
	var errs []error
	for i := len(list) - 1; i >= 0; i-- {
		p := list[i]
		if err := p.Stop(ctx); err != nil {
			r.logf("Error stopping plugin %s: %v", p.Name(), err)
			errs = append(errs, fmt.Errorf("stop %s: %w", p.Name(), err))
		}
		r.setRunning(p.Name(), false)
	}
	return errors.Join(errs...)
}

func (r *Registry) setRunning(name string, running bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running[name] = running
}

// Routes returns the HTTP routes of every active plugin
func (r *Registry) Routes() []Route {
	var routes []Route
	for _, p := range r.Active() {
		routes = append(routes, p.Routes()...)
	}
	return routes
}

// SetEnabled stores the enabled flag of a registered plugin. The active set
// is fixed by InitAll, so the change applies on the next start.
func (r *Registry) SetEnabled(name string, enabled bool) error {
	if _, ok := r.Get(name); !ok {
		return fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	store := r.storage()
	if store == nil {
		return ErrNoStorage
	}
	if err := SetEnabled(store, name, enabled); err != nil {
		return fmt.Errorf("failed to store enabled flag of %s: %w", name, err)
	}
	r.logf("Plugin %s enabled=%t, applied on next start", name, enabled)
	return nil
}

func (r *Registry) storage() storage.Storage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.deps == nil {
		return nil
	}
	return r.deps.Storage
}

// ListInfo returns information about all plugins
func (r *Registry) ListInfo() []*PluginInfo {
	all := r.All()
	result := make([]*PluginInfo, 0, len(all))
	store := r.storage()

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range all {
		status := "stopped"
		if r.running[p.Name()] {
			status = "running"
		}

		result = append(result, &PluginInfo{
			Name:        p.Name(),
			Description: p.Description(),
			Version:     p.Version(),
			Enabled:     storedEnabled(store, p.Name()),
			Status:      status,
		})
	}

	return result
}
