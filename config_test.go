package clicker

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Addr)
	assert.Equal(t, "./static", cfg.StaticDir)
	assert.Equal(t, "/clicked", cfg.ClickPath)
	assert.True(t, cfg.LiveUpdates)
	assert.Equal(t, BackendMemory, cfg.PubSub.Backend)
	assert.Equal(t, "npx", cfg.Tailwind.Command)
	assert.Equal(t, []string{"tailwindcss"}, cfg.Tailwind.Args)
	assert.Equal(t, "static/stylesheet.css", cfg.Tailwind.Output)
	assert.Equal(t, 100*time.Millisecond, cfg.Tailwind.Debounce)
}

func TestLoadConfigEnv(t *testing.T) {
	t.Setenv("CLICKER_ADDR", ":9001")
	t.Setenv("CLICKER_PUBSUB_BACKEND", BackendRedis)
	t.Setenv("CLICKER_TAILWIND_MINIFY", "true")

	cfg, err := LoadConfig(viper.New())
	require.NoError(t, err)
	assert.Equal(t, ":9001", cfg.Addr)
	assert.Equal(t, BackendRedis, cfg.PubSub.Backend)
	assert.True(t, cfg.Tailwind.Minify)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clicker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`addr: ":7000"
live_updates: false
tailwind:
  command: tailwindcss
  args: [--minify]
  debounce: 250ms
`), 0o644))

	v := viper.New()
	v.Set("config", path)
	cfg, err := LoadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Addr)
	assert.False(t, cfg.LiveUpdates)
	assert.Equal(t, "tailwindcss", cfg.Tailwind.Command)
	assert.Equal(t, []string{"--minify"}, cfg.Tailwind.Args)
	assert.Equal(t, 250*time.Millisecond, cfg.Tailwind.Debounce)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clicker.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":7000\"\n"), 0o644))
	t.Setenv("CLICKER_ADDR", ":7001")

	v := viper.New()
	v.Set("config", path)
	cfg, err := LoadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, ":7001", cfg.Addr)
}

func TestLoadConfigExplicitValueWins(t *testing.T) {
	t.Setenv("CLICKER_DEV", "false")
	v := viper.New()
	v.Set("dev", true)

	cfg, err := LoadConfig(v)
	require.NoError(t, err)
	assert.True(t, cfg.DevMode)
}

func TestLoadConfigMissingFile(t *testing.T) {
	v := viper.New()
	v.Set("config", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := LoadConfig(v)
	assert.Error(t, err)
}
