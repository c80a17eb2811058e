package clicker

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aydenstechdungeon/clicker/plugin/tailwind"
	"github.com/aydenstechdungeon/clicker/store"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "CLICKER"

// PubSub backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds the application configuration.
type Config struct {
	// Addr is the listen address.
	Addr string `mapstructure:"addr"`
	// AppName is the page title and Fiber app name.
	AppName string `mapstructure:"app_name"`
	// DevMode enables route printing, stack traces and the stylesheet watcher.
	DevMode bool `mapstructure:"dev"`
	// StaticDir is the directory for static files.
	StaticDir string `mapstructure:"static_dir"`
	// StaticPrefix is the URL prefix for static files.
	StaticPrefix string `mapstructure:"static_prefix"`
	// Stylesheet is the stylesheet href linked from the page.
	Stylesheet string `mapstructure:"stylesheet"`
	// ClickPath is the increment endpoint.
	ClickPath string `mapstructure:"click_path"`
	// LiveUpdates pushes counter changes to open pages over SSE.
	LiveUpdates bool `mapstructure:"live_updates"`
	// EventsPath is the SSE endpoint.
	EventsPath string `mapstructure:"events_path"`
	// Compression enables Brotli/Gzip response compression.
	Compression bool `mapstructure:"compression"`

	PubSub   PubSubConfig    `mapstructure:"pubsub"`
	Log      LogConfig       `mapstructure:"log"`
	Tailwind tailwind.Config `mapstructure:"tailwind"`

	// Logger overrides the logger built from Log.
	Logger *logrus.Logger `mapstructure:"-"`
	// Broker overrides the pub/sub backend built from PubSub.
	Broker store.PubSub `mapstructure:"-"`
}

// PubSubConfig selects the backend carrying counter events.
//
// Each instance keeps its own counter, and Redis only fans out events.
// With several instances behind one Redis, a page follows the count of
// whichever instance clicked last, not a shared total.
type PubSubConfig struct {
	Backend   string `mapstructure:"backend"`
	RedisAddr string `mapstructure:"redis_addr"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Addr:         ":8000",
		AppName:      "clicker",
		StaticDir:    "./static",
		StaticPrefix: "/static",
		Stylesheet:   "/static/stylesheet.css",
		ClickPath:    "/clicked",
		LiveUpdates:  true,
		EventsPath:   "/events",
		Compression:  true,
		PubSub: PubSubConfig{
			Backend:   BackendMemory,
			RedisAddr: "localhost:6379",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Tailwind: *tailwind.DefaultConfig(),
	}
}

// setDefaults registers every key so environment variables can override it.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("addr", d.Addr)
	v.SetDefault("app_name", d.AppName)
	v.SetDefault("dev", d.DevMode)
	v.SetDefault("static_dir", d.StaticDir)
	v.SetDefault("static_prefix", d.StaticPrefix)
	v.SetDefault("stylesheet", d.Stylesheet)
	v.SetDefault("click_path", d.ClickPath)
	v.SetDefault("live_updates", d.LiveUpdates)
	v.SetDefault("events_path", d.EventsPath)
	v.SetDefault("compression", d.Compression)
	v.SetDefault("pubsub.backend", d.PubSub.Backend)
	v.SetDefault("pubsub.redis_addr", d.PubSub.RedisAddr)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("tailwind.command", d.Tailwind.Command)
	v.SetDefault("tailwind.args", d.Tailwind.Args)
	v.SetDefault("tailwind.input", d.Tailwind.Input)
	v.SetDefault("tailwind.output", d.Tailwind.Output)
	v.SetDefault("tailwind.content", d.Tailwind.Content)
	v.SetDefault("tailwind.minify", d.Tailwind.Minify)
	v.SetDefault("tailwind.watch_paths", d.Tailwind.WatchPaths)
	v.SetDefault("tailwind.debounce", d.Tailwind.Debounce)
}

// LoadConfig loads configuration in order of precedence:
//  1. Flags bound into v by the caller
//  2. CLICKER_* environment variables
//  3. .env file in the working directory
//  4. Config file (the "config" key, else ./clicker.yaml)
//  5. Defaults
func LoadConfig(v *viper.Viper) (Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
	}

	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("clicker")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
