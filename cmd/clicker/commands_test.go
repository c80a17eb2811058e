package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/aydenstechdungeon/clicker/plugin/tailwind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig points the stylesheet compiler at a shell script and keeps
// every generated file inside a temp dir.
func writeConfig(t *testing.T, script string) (configPath, output string) {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "tailwind.css")
	output = filepath.Join(dir, "static", "stylesheet.css")
	require.NoError(t, os.WriteFile(input, []byte(".btn{}\n"), 0o644))

	configPath = filepath.Join(dir, "clicker.yaml")
	yaml := fmt.Sprintf(`log:
  level: error
tailwind:
  command: sh
  args: ["-c", %q, "tailwind"]
  input: %q
  output: %q
`, script, input, output)
	require.NoError(t, os.WriteFile(configPath, []byte(yaml), 0o644))
	return configPath, output
}

func run(args ...string) (string, error) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	cfg, output := writeConfig(t, "true")
	out, err := run("--config", cfg, "version")
	require.NoError(t, err)
	assert.Equal(t, "clicker v0.1.0\n", out)
	assert.NoDirExists(t, filepath.Dir(output))
}

func TestBuildCompilesStylesheet(t *testing.T) {
	cfg, output := writeConfig(t, `cp "$2" "$4"`)
	_, err := run("--config", cfg, "build")
	require.NoError(t, err)

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, ".btn{}\n", string(got))
}

func TestBuildFailsWhenCompilerFails(t *testing.T) {
	cfg, output := writeConfig(t, `echo "bad input" >&2; exit 2`)
	_, err := run("--config", cfg, "build")
	require.Error(t, err)

	var compileErr *tailwind.CompileError
	require.True(t, errors.As(err, &compileErr))
	assert.Equal(t, 2, compileErr.ExitCode)
	assert.Contains(t, err.Error(), "bad input")
	assert.NoFileExists(t, output)
}

func TestPluginCommandAlias(t *testing.T) {
	cfg, output := writeConfig(t, `cp "$2" "$4"`)
	_, err := run("--config", cfg, "tw:build")
	require.NoError(t, err)
	assert.FileExists(t, output)
}

func TestBadConfigFile(t *testing.T) {
	_, err := run("--config", filepath.Join(t.TempDir(), "missing.yaml"), "version")
	assert.Error(t, err)
}
