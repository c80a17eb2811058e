// Package plugin provides the lifecycle hook registry used by the clicker CLI.
package plugin

import (
	"context"
	"fmt"
	"sync"
)

// Hook represents a lifecycle event.
type Hook string

const (
	// BeforeBuild is triggered before assets are built.
	BeforeBuild Hook = "before:build"
	// AfterBuild is triggered after assets are built.
	AfterBuild Hook = "after:build"
	// BeforeServe is triggered before the server starts listening.
	BeforeServe Hook = "before:serve"
	// AfterServe is triggered after the server has shut down.
	AfterServe Hook = "after:serve"
)

// Plugin is the base interface for all extensions.
type Plugin interface {
	Name() string
	Init() error
}

// CLIPlugin extends Plugin with CLI-specific functionality.
type CLIPlugin interface {
	Plugin
	// OnHook is called when a lifecycle hook is triggered.
	OnHook(ctx context.Context, hook Hook, data map[string]interface{}) error
	// Commands returns custom CLI commands provided by the plugin.
	Commands() []Command
}

// Command represents a custom CLI command.
type Command struct {
	Name        string
	Alias       string
	Description string
	Action      func(ctx context.Context, args []string) error
}

// Registry holds registered plugins.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a plugin after running its Init.
func (r *Registry) Register(p Plugin) error {
	if err := p.Init(); err != nil {
		return fmt.Errorf("plugin %s init: %w", p.Name(), err)
	}
	r.mu.Lock()
	r.plugins = append(r.plugins, p)
	r.mu.Unlock()
	return nil
}

// Plugins returns all registered plugins.
func (r *Registry) Plugins() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Plugin, len(r.plugins))
	copy(out, r.plugins)
	return out
}

// CLIPlugins returns all registered CLI plugins.
func (r *Registry) CLIPlugins() []CLIPlugin {
	var cliPlugins []CLIPlugin
	for _, p := range r.Plugins() {
		if cp, ok := p.(CLIPlugin); ok {
			cliPlugins = append(cliPlugins, cp)
		}
	}
	return cliPlugins
}

// TriggerHook runs a hook on every CLI plugin in registration order and stops
// at the first failure.
func (r *Registry) TriggerHook(ctx context.Context, hook Hook, data map[string]interface{}) error {
	for _, p := range r.CLIPlugins() {
		if err := p.OnHook(ctx, hook, data); err != nil {
			return fmt.Errorf("plugin %s failed on hook %s: %w", p.Name(), hook, err)
		}
	}
	return nil
}

// Commands returns every command contributed by CLI plugins.
func (r *Registry) Commands() []Command {
	var cmds []Command
	for _, p := range r.CLIPlugins() {
		cmds = append(cmds, p.Commands()...)
	}
	return cmds
}

// RunCommand executes a plugin command by name or alias.
func (r *Registry) RunCommand(ctx context.Context, name string, args []string) (bool, error) {
	for _, cmd := range r.Commands() {
		if cmd.Name == name || (cmd.Alias != "" && cmd.Alias == name) {
			return true, cmd.Action(ctx, args)
		}
	}
	return false, nil
}

var defaultRegistry = NewRegistry()

// Register registers a plugin with the default registry.
func Register(p Plugin) error {
	return defaultRegistry.Register(p)
}

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

// TriggerHook triggers a hook on the default registry.
func TriggerHook(ctx context.Context, hook Hook, data map[string]interface{}) error {
	return defaultRegistry.TriggerHook(ctx, hook, data)
}
