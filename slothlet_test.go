package slothlet

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeModule(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("package module\n\n"+body), 0o644))
}

func newFixtureDir(t *testing.T) string {
	root := t.TempDir()
	writeModule(t, filepath.Join(root, "math", "math.go"), `
type MathAPI struct{}
func (MathAPI) Add(a, b int) int { return a + b }
var Math = MathAPI{}
`)
	writeModule(t, filepath.Join(root, "greet.go"), `
func Hello(name string) string { return "hello " + name }
`)
	return root
}

func TestNew_EagerBuildsNavigableTree(t *testing.T) {
	root := newFixtureDir(t)
	api, err := New(Options{Dir: root})
	require.NoError(t, err)

	out, err := api.Call(context.Background(), "greet.Hello", "world")
	require.NoError(t, err)
	assert.Equal(t, "hello world", out[0])

	out, err = api.Call(context.Background(), "math.Add", 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, out[0])
}

func TestNew_LazyBuildsEquivalentTree(t *testing.T) {
	root := newFixtureDir(t)
	api, err := New(Options{Dir: root, Lazy: true})
	require.NoError(t, err)

	out, err := api.Call(context.Background(), "math.Add", 4, 5)
	require.NoError(t, err)
	assert.Equal(t, 9, out[0])
}

func TestNew_RejectsEmptyDir(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestNew_RejectsUnknownMode(t *testing.T) {
	root := newFixtureDir(t)
	_, err := New(Options{Dir: root, Mode: "eventual"})
	require.Error(t, err)
}

func TestCall_HookBeforeShortCircuitsDispatch(t *testing.T) {
	root := newFixtureDir(t)
	api, err := New(Options{Dir: root})
	require.NoError(t, err)

	api.Hooks().RegisterBefore("greet.*", 0, 0, func(ctx context.Context, path string, args []interface{}) ([]interface{}, interface{}, bool, error) {
		return args, "short-circuited", true, nil
	})

	out, err := api.Call(context.Background(), "greet.Hello", "world")
	require.NoError(t, err)
	assert.Equal(t, "short-circuited", out[0])
}

func TestReload_RegeneratesInstanceIDAndPreservesRootIdentity(t *testing.T) {
	root := newFixtureDir(t)
	api, err := New(Options{Dir: root})
	require.NoError(t, err)

	before := api.InstanceID()
	rootBefore := api.Root()

	require.NoError(t, api.Reload())

	assert.NotEqual(t, before, api.InstanceID())
	assert.Same(t, rootBefore, api.Root(), "Reload must rebind the existing root, not replace it")

	out, err := api.Call(context.Background(), "greet.Hello", "again")
	require.NoError(t, err)
	assert.Equal(t, "hello again", out[0])
}

func TestNew_ConfigPathSuppliesDefaultsForUnsetOptions(t *testing.T) {
	root := newFixtureDir(t)
	cfgPath := filepath.Join(t.TempDir(), "slothlet.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("runtime: live\napi_depth: 3\n"), 0o644))

	api, err := New(Options{Dir: root, ConfigPath: cfgPath})
	require.NoError(t, err)
	assert.Equal(t, "live", api.opts.Runtime)
	assert.Equal(t, 3, api.opts.ApiDepth)
}

func TestNew_ExplicitOptionsOverrideConfigFile(t *testing.T) {
	root := newFixtureDir(t)
	cfgPath := filepath.Join(t.TempDir(), "slothlet.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("runtime: live\n"), 0o644))

	api, err := New(Options{Dir: root, ConfigPath: cfgPath, Runtime: "async"})
	require.NoError(t, err)
	assert.Equal(t, "async", api.opts.Runtime, "an explicitly set Option must win over the config file")
}

func TestShutdown_DisablesHooksAndIsIdempotent(t *testing.T) {
	root := newFixtureDir(t)
	api, err := New(Options{Dir: root})
	require.NoError(t, err)

	require.NoError(t, api.Shutdown())
	require.NoError(t, api.Shutdown())

	_, err = api.Call(context.Background(), "greet.Hello", "x")
	assert.Error(t, err, "calls after shutdown are rejected")
}
