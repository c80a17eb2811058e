package tailwind

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aydenstechdungeon/clicker/plugin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// copyScript stands in for the Tailwind CLI: $2 is the input, $4 the output.
const copyScript = `cp "$2" "$4"`

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestPlugin(t *testing.T, script string) (*TailwindPlugin, string, string) {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "resources", "tailwind.css")
	output := filepath.Join(dir, "static", "stylesheet.css")
	require.NoError(t, os.MkdirAll(filepath.Dir(input), 0o755))
	require.NoError(t, os.WriteFile(input, []byte("body {  color: red;  }\n"), 0o644))

	p := NewWithConfig(&Config{
		Command:    "sh",
		Args:       []string{"-c", script, "tailwind"},
		Input:      input,
		Output:     output,
		WatchPaths: []string{},
		Debounce:   20 * time.Millisecond,
	}, quietLogger())
	require.NoError(t, p.Init())
	return p, input, output
}

func TestDefaultConfig(t *testing.T) {
	p := New(quietLogger())
	cfg := p.Config()
	assert.Equal(t, "npx", cfg.Command)
	assert.Equal(t, []string{"tailwindcss"}, cfg.Args)
	assert.Equal(t, []string{"tailwindcss", "-i", "resources/tailwind.css", "-o", "static/stylesheet.css"}, p.args())
}

func TestArgsIncludeContent(t *testing.T) {
	p := NewWithConfig(&Config{Content: []string{"./views/**/*.go"}}, quietLogger())
	assert.Equal(t, []string{
		"tailwindcss", "-i", "resources/tailwind.css", "-o", "static/stylesheet.css",
		"--content", "./views/**/*.go",
	}, p.args())
}

func TestCompileSuccess(t *testing.T) {
	p, _, output := newTestPlugin(t, copyScript)
	// Init leaves the filesystem alone; Compile creates the output directory
	assert.NoDirExists(t, filepath.Dir(output))
	require.NoError(t, p.Compile(context.Background()))

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "body {  color: red;  }\n", string(got))
}

func TestCompileMinifies(t *testing.T) {
	p, _, output := newTestPlugin(t, copyScript)
	p.config.Minify = true
	require.NoError(t, p.Compile(context.Background()))

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "body{color:red}", string(got))
}

func TestCompileFailureCarriesExitCodeAndStderr(t *testing.T) {
	p, _, _ := newTestPlugin(t, `echo "unknown utility class" >&2; exit 3`)
	err := p.Compile(context.Background())
	require.Error(t, err)

	var compileErr *CompileError
	require.True(t, errors.As(err, &compileErr))
	assert.Equal(t, 3, compileErr.ExitCode)
	assert.Equal(t, "unknown utility class\n", compileErr.Stderr)
	assert.Equal(t, "tailwind compiler failed with exit code: 3 and stderr: unknown utility class", err.Error())
}

func TestCompileMissingCommand(t *testing.T) {
	p, _, _ := newTestPlugin(t, copyScript)
	p.config.Command = "definitely-not-a-tailwind-binary"
	err := p.Compile(context.Background())
	require.Error(t, err)

	var compileErr *CompileError
	assert.False(t, errors.As(err, &compileErr))
}

func TestBeforeBuildHookFailsBuild(t *testing.T) {
	r := plugin.NewRegistry()
	p, _, _ := newTestPlugin(t, `exit 1`)
	require.NoError(t, r.Register(p))

	err := r.TriggerHook(context.Background(), plugin.BeforeBuild, nil)
	require.Error(t, err)
	var compileErr *CompileError
	assert.True(t, errors.As(err, &compileErr))
}

func TestWatchRecompilesOnChange(t *testing.T) {
	p, input, output := newTestPlugin(t, copyScript)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, p.OnHook(ctx, plugin.BeforeServe, map[string]interface{}{"dev": true}))
	defer p.OnHook(ctx, plugin.AfterServe, nil)

	// the hook compiles once before watching
	require.FileExists(t, output)

	require.Eventually(t, func() bool {
		// rewrite until the watcher has picked up a change
		_ = os.WriteFile(input, []byte(".btn { border-width: 2px; }\n"), 0o644)
		got, err := os.ReadFile(output)
		return err == nil && string(got) == ".btn { border-width: 2px; }\n"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestWatchCompilesOneAtATime(t *testing.T) {
	// the lock directory makes an overlapping compile exit non-zero
	p, input, _ := newTestPlugin(t, `mkdir "$4.lock" || exit 9; sleep 0.05; cp "$2" "$4"; rmdir "$4.lock"`)
	logger, hook := test.NewNullLogger()
	p.logger = logger.WithField("plugin", "tailwind")
	p.config.Debounce = 5 * time.Millisecond

	require.NoError(t, p.OnHook(context.Background(), plugin.BeforeServe, map[string]interface{}{"dev": true}))
	for deadline := time.Now().Add(500 * time.Millisecond); time.Now().Before(deadline); {
		require.NoError(t, os.WriteFile(input, []byte(time.Now().String()), 0o644))
		time.Sleep(15 * time.Millisecond)
	}
	p.Stop()

	compiled := 0
	for _, entry := range hook.AllEntries() {
		assert.NotEqual(t, logrus.ErrorLevel, entry.Level, entry.Message)
		if entry.Message == "stylesheet compiled" {
			compiled++
		}
	}
	assert.Greater(t, compiled, 1)

	// nothing compiles once Stop returns
	seen := len(hook.AllEntries())
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, hook.AllEntries(), seen)
}

func TestBeforeServeWithoutDevDoesNothing(t *testing.T) {
	p, _, output := newTestPlugin(t, copyScript)
	require.NoError(t, p.OnHook(context.Background(), plugin.BeforeServe, nil))
	assert.NoDirExists(t, filepath.Dir(output))
	p.Stop()
}

func TestScaffold(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	p := New(quietLogger())
	found, err := func() (bool, error) {
		r := plugin.NewRegistry()
		require.NoError(t, r.Register(p))
		return r.RunCommand(context.Background(), "tw:init", nil)
	}()
	require.NoError(t, err)
	assert.True(t, found)

	src, err := os.ReadFile(filepath.Join(dir, "resources", "tailwind.css"))
	require.NoError(t, err)
	assert.Contains(t, string(src), "@tailwind utilities;")
	assert.FileExists(t, filepath.Join(dir, "tailwind.config.js"))

	// existing files are left alone
	require.NoError(t, os.WriteFile(filepath.Join(dir, "resources", "tailwind.css"), []byte("custom"), 0o644))
	require.NoError(t, p.scaffold())
	src, _ = os.ReadFile(filepath.Join(dir, "resources", "tailwind.css"))
	assert.Equal(t, "custom", string(src))
}
