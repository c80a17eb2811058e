// Package tailwind compiles the served stylesheet with the Tailwind CSS CLI.
// It runs as a build step, through the plugin hooks, or as a file watcher in
// dev mode.
package tailwind

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aydenstechdungeon/clicker/plugin"
	"github.com/sirupsen/logrus"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
)

// Config holds Tailwind plugin configuration.
type Config struct {
	// Command is the executable to run (default: npx).
	Command string `mapstructure:"command"`
	// Args are passed before the input/output flags (default: tailwindcss).
	Args []string `mapstructure:"args"`
	// Input is the source CSS file.
	Input string `mapstructure:"input"`
	// Output is the compiled CSS file served under /static.
	Output string `mapstructure:"output"`
	// Content paths to scan for class names, passed as --content.
	Content []string `mapstructure:"content"`
	// Minify minifies the compiled output in-process.
	Minify bool `mapstructure:"minify"`
	// WatchPaths are the directories watched for changes in dev mode.
	WatchPaths []string `mapstructure:"watch_paths"`
	// Debounce delays recompilation after a burst of changes.
	Debounce time.Duration `mapstructure:"debounce"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Command:    "npx",
		Args:       []string{"tailwindcss"},
		Input:      "resources/tailwind.css",
		Output:     "static/stylesheet.css",
		WatchPaths: []string{"resources", "views"},
		Debounce:   100 * time.Millisecond,
	}
}

// CompileError reports a compiler run that exited non-zero.
type CompileError struct {
	ExitCode int
	Stderr   string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("tailwind compiler failed with exit code: %d and stderr: %s", e.ExitCode, strings.TrimSpace(e.Stderr))
}

// TailwindPlugin provides Tailwind CSS processing.
type TailwindPlugin struct {
	mu      sync.Mutex
	config  *Config
	logger  logrus.FieldLogger
	cancel  context.CancelFunc
	stopped chan struct{}
}

// New creates a new Tailwind plugin with default configuration.
func New(logger logrus.FieldLogger) *TailwindPlugin {
	return NewWithConfig(nil, logger)
}

// NewWithConfig creates a new Tailwind plugin with the given configuration.
// Zero fields fall back to defaults.
func NewWithConfig(cfg *Config, logger logrus.FieldLogger) *TailwindPlugin {
	def := DefaultConfig()
	if cfg == nil {
		cfg = def
	}
	if cfg.Command == "" {
		cfg.Command = def.Command
		if len(cfg.Args) == 0 {
			cfg.Args = def.Args
		}
	}
	if cfg.Input == "" {
		cfg.Input = def.Input
	}
	if cfg.Output == "" {
		cfg.Output = def.Output
	}
	if cfg.WatchPaths == nil {
		cfg.WatchPaths = def.WatchPaths
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = def.Debounce
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &TailwindPlugin{config: cfg, logger: logger.WithField("plugin", "tailwind")}
}

// Name returns the plugin name.
func (p *TailwindPlugin) Name() string {
	return "tailwind"
}

// Init is a no-op; the output directory is created by Compile.
func (p *TailwindPlugin) Init() error {
	return nil
}

// Config returns the current configuration.
func (p *TailwindPlugin) Config() *Config {
	return p.config
}

// OnHook handles lifecycle hooks. BeforeBuild compiles once; BeforeServe
// starts the watcher when data["dev"] is true; AfterServe stops it.
func (p *TailwindPlugin) OnHook(ctx context.Context, hook plugin.Hook, data map[string]interface{}) error {
	switch hook {
	case plugin.BeforeBuild:
		return p.Compile(ctx)
	case plugin.BeforeServe:
		if dev, _ := data["dev"].(bool); dev {
			return p.startWatcher(ctx)
		}
	case plugin.AfterServe:
		p.Stop()
	}
	return nil
}

// Commands returns CLI commands.
func (p *TailwindPlugin) Commands() []plugin.Command {
	return []plugin.Command{
		{
			Name:        "tailwind:init",
			Alias:       "tw:init",
			Description: "Create the Tailwind source stylesheet and config",
			Action:      func(context.Context, []string) error { return p.scaffold() },
		},
		{
			Name:        "tailwind:build",
			Alias:       "tw:build",
			Description: "Compile the stylesheet once",
			Action:      func(ctx context.Context, _ []string) error { return p.Compile(ctx) },
		},
		{
			Name:        "tailwind:watch",
			Alias:       "tw:watch",
			Description: "Recompile the stylesheet on changes",
			Action:      func(ctx context.Context, _ []string) error { return p.Watch(ctx) },
		},
	}
}

// args builds the compiler argument list.
func (p *TailwindPlugin) args() []string {
	args := append([]string{}, p.config.Args...)
	args = append(args, "-i", p.config.Input, "-o", p.config.Output)
	for _, path := range p.config.Content {
		args = append(args, "--content", path)
	}
	return args
}

// Compile runs the compiler once. A non-zero exit yields a *CompileError.
func (p *TailwindPlugin) Compile(ctx context.Context) error {
	start := time.Now()
	if err := os.MkdirAll(filepath.Dir(p.config.Output), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	cmd := exec.CommandContext(ctx, p.config.Command, p.args()...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &CompileError{ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return fmt.Errorf("run %s: %w", p.config.Command, err)
	}
	if out := strings.TrimSpace(stdout.String()); out != "" {
		p.logger.Debug(out)
	}

	if p.config.Minify {
		if err := minifyFile(p.config.Output); err != nil {
			return err
		}
	}

	p.logger.WithFields(logrus.Fields{
		"input":    p.config.Input,
		"output":   p.config.Output,
		"duration": time.Since(start),
	}).Info("stylesheet compiled")
	return nil
}

// minifyFile minifies a CSS file in place.
func minifyFile(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read compiled stylesheet: %w", err)
	}
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	out, err := m.Bytes("text/css", src)
	if err != nil {
		return fmt.Errorf("minify %s: %w", path, err)
	}
	return os.WriteFile(path, out, 0o644)
}

// startWatcher runs Watch in the background until Stop or ctx is done.
func (p *TailwindPlugin) startWatcher(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return nil
	}

	// compile up front so the first page load is styled
	if err := p.Compile(ctx); err != nil {
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	stopped := make(chan struct{})
	p.cancel = cancel
	p.stopped = stopped
	go func() {
		defer close(stopped)
		if err := p.Watch(watchCtx); err != nil {
			p.logger.WithError(err).Error("watcher failed")
		}
	}()
	return nil
}

// Stop stops a watcher started by the BeforeServe hook and waits for it.
func (p *TailwindPlugin) Stop() {
	p.mu.Lock()
	cancel, stopped := p.cancel, p.stopped
	p.cancel, p.stopped = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-stopped
	p.logger.Info("watcher stopped")
}

const defaultSource = `@tailwind base;
@tailwind components;
@tailwind utilities;
`

const defaultTailwindConfig = `/** @type {import('tailwindcss').Config} */
module.exports = {
  content: ["./views/**/*.go", "./*.go"],
  theme: { extend: {} },
  plugins: [],
};
`

// scaffold writes the source stylesheet and tailwind.config.js when missing.
func (p *TailwindPlugin) scaffold() error {
	files := []struct {
		path    string
		content string
	}{
		{p.config.Input, defaultSource},
		{"tailwind.config.js", defaultTailwindConfig},
	}
	for _, f := range files {
		if _, err := os.Stat(f.path); err == nil {
			p.logger.WithField("file", f.path).Info("exists, skipping")
			continue
		}
		if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
			return fmt.Errorf("create directory for %s: %w", f.path, err)
		}
		if err := os.WriteFile(f.path, []byte(f.content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.path, err)
		}
		p.logger.WithField("file", f.path).Info("created")
	}
	return nil
}

var _ plugin.CLIPlugin = (*TailwindPlugin)(nil)
