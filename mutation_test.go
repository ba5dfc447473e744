package slothlet

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newPluginDir writes a single-file, single-export module whose export
// is named Default, so C4's root-contributor rule makes the built
// subtree's own root node directly callable — addApi then merges a
// callable straight onto apiPath, letting tests call apiPath itself
// rather than apiPath plus a nested module slot.
func newPluginDir(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	writeModule(t, filepath.Join(dir, "plugin.go"), body)
	return dir
}

func TestAddApi_GraftsSubtreeAtPath(t *testing.T) {
	root := newFixtureDir(t)
	api, err := New(Options{Dir: root})
	require.NoError(t, err)

	pluginDir := newPluginDir(t, `func Default() string { return "pong" }`)
	require.NoError(t, api.AddApi("plugins.demo", pluginDir, AddApiOptions{}))

	out, err := api.Call(context.Background(), "plugins.demo")
	require.NoError(t, err)
	assert.Equal(t, "pong", out[0])
}

func TestAddApi_AnonymousOverwriteRequiresAllowApiOverwrite(t *testing.T) {
	root := newFixtureDir(t)
	no := false
	api, err := New(Options{Dir: root, AllowApiOverwrite: &no})
	require.NoError(t, err)

	pluginDir := newPluginDir(t, `func Default() string { return "pong" }`)
	require.NoError(t, api.AddApi("plugins.demo", pluginDir, AddApiOptions{}))

	err = api.AddApi("plugins.demo", pluginDir, AddApiOptions{})
	require.Error(t, err)
	var ownErr *OwnershipError
	assert.ErrorAs(t, err, &ownErr)
}

func TestAddApi_DifferentModuleRequiresForceOverwriteAndOwnershipEnabled(t *testing.T) {
	root := newFixtureDir(t)
	api, err := New(Options{Dir: root, EnableModuleOwnership: true})
	require.NoError(t, err)

	pluginDir := newPluginDir(t, `func Default() string { return "pong" }`)
	require.NoError(t, api.AddApi("plugins.demo", pluginDir, AddApiOptions{ModuleID: "m1"}))

	err = api.AddApi("plugins.demo", pluginDir, AddApiOptions{ModuleID: "m2"})
	require.Error(t, err, "a different moduleId without forceOverwrite must be rejected")

	require.NoError(t, api.AddApi("plugins.demo", pluginDir, AddApiOptions{ModuleID: "m2", ForceOverwrite: true}))
}

func TestAddApi_SameModuleIDReregistersWithoutError(t *testing.T) {
	root := newFixtureDir(t)
	api, err := New(Options{Dir: root})
	require.NoError(t, err)

	pluginDir := newPluginDir(t, `func Default() string { return "pong" }`)
	require.NoError(t, api.AddApi("plugins.demo", pluginDir, AddApiOptions{ModuleID: "m1"}))
	require.NoError(t, api.AddApi("plugins.demo", pluginDir, AddApiOptions{ModuleID: "m1"}))
}

func TestRemoveApi_TolerantOfAbsentPath(t *testing.T) {
	root := newFixtureDir(t)
	api, err := New(Options{Dir: root})
	require.NoError(t, err)

	require.NoError(t, api.RemoveApi("never.existed", ""))

	pluginDir := newPluginDir(t, `func Default() string { return "pong" }`)
	require.NoError(t, api.AddApi("plugins.demo", pluginDir, AddApiOptions{}))
	require.NoError(t, api.RemoveApi("plugins.demo", ""))

	_, err = api.Call(context.Background(), "plugins.demo")
	assert.Error(t, err)
}

func TestRemoveApi_ModuleIDOnlyRemovesEverySubtreeItOwns(t *testing.T) {
	root := newFixtureDir(t)
	api, err := New(Options{Dir: root, EnableModuleOwnership: true})
	require.NoError(t, err)

	pluginDir := newPluginDir(t, `func Default() string { return "pong" }`)
	require.NoError(t, api.AddApi("plugins.one", pluginDir, AddApiOptions{ModuleID: "m1"}))
	require.NoError(t, api.AddApi("plugins.two", pluginDir, AddApiOptions{ModuleID: "m1"}))
	require.NoError(t, api.AddApi("plugins.other", pluginDir, AddApiOptions{ModuleID: "m2"}))

	require.NoError(t, api.RemoveApi("", "m1"))

	_, err = api.Call(context.Background(), "plugins.one")
	assert.Error(t, err, "every subtree owned by m1 must be unmerged")
	_, err = api.Call(context.Background(), "plugins.two")
	assert.Error(t, err)

	out, err := api.Call(context.Background(), "plugins.other")
	require.NoError(t, err, "a subtree owned by a different moduleId must be untouched")
	assert.Equal(t, "pong", out[0])
}

func TestRemoveApi_RequiresApiPathOrModuleID(t *testing.T) {
	root := newFixtureDir(t)
	api, err := New(Options{Dir: root})
	require.NoError(t, err)

	err = api.RemoveApi("", "")
	require.Error(t, err)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestRemoveApi_DetachesHooksBoundOnlyToRemovedSubtree(t *testing.T) {
	root := newFixtureDir(t)
	api, err := New(Options{Dir: root})
	require.NoError(t, err)

	pluginDir := newPluginDir(t, `func Default() string { return "pong" }`)
	require.NoError(t, api.AddApi("plugins.demo", pluginDir, AddApiOptions{}))

	var scopedRan, globalRan bool
	api.Hooks().RegisterBefore("plugins.demo", 0, 0, func(ctx context.Context, path string, args []interface{}) ([]interface{}, interface{}, bool, error) {
		scopedRan = true
		return args, nil, false, nil
	})
	api.Hooks().RegisterBefore("**", 0, 0, func(ctx context.Context, path string, args []interface{}) ([]interface{}, interface{}, bool, error) {
		globalRan = true
		return args, nil, false, nil
	})

	require.NoError(t, api.RemoveApi("plugins.demo", ""))
	require.NoError(t, api.AddApi("plugins.demo", pluginDir, AddApiOptions{}))

	_, err = api.Call(context.Background(), "plugins.demo")
	require.NoError(t, err)

	assert.False(t, scopedRan, "the hook scoped to plugins.demo must not have survived removeApi")
	assert.True(t, globalRan, "a hook matching more than the removed subtree must be left registered")
}

func TestReloadApi_RebindsInPlacePreservingPriorReferences(t *testing.T) {
	root := newFixtureDir(t)
	api, err := New(Options{Dir: root})
	require.NoError(t, err)

	pluginDir := newPluginDir(t, `func Default() string { return "v1" }`)
	require.NoError(t, api.AddApi("plugins.demo", pluginDir, AddApiOptions{}))

	ref, err := api.Resolve("plugins.demo")
	require.NoError(t, err)

	out, err := api.Call(context.Background(), "plugins.demo")
	require.NoError(t, err)
	assert.Equal(t, "v1", out[0])

	// Mutate the plugin's source on disk to simulate an out-of-band
	// update, then reloadApi picks it up via the recorded folderPath.
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, "plugin.go"),
		[]byte("package module\n\nfunc Default() string { return \"v2\" }\n"), 0o644))

	require.NoError(t, api.ReloadApi("plugins.demo"))

	refAgain, err := api.Resolve("plugins.demo")
	require.NoError(t, err)
	assert.Same(t, ref, refAgain, "reloadApi must rebind the existing node, not replace it")

	out2, err := api.Call(context.Background(), "plugins.demo")
	require.NoError(t, err)
	assert.Equal(t, "v2", out2[0])
}
