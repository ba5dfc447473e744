package apinode

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_CreatesIntermediateNamespaces(t *testing.T) {
	root := NewNamespace("", NewEmptyNamespace())
	leaf := NewLeaf("plugins.a.value", "hello")

	require.NoError(t, Merge(root, "plugins.a.value", leaf))

	got, err := root.Resolve("plugins.a.value")
	require.NoError(t, err)
	v, err := got.Leaf()
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

func TestMerge_RebindsExistingNodeInPlacePreservingIdentity(t *testing.T) {
	root := NewNamespace("", NewEmptyNamespace())
	first := NewLeaf("deep.math", "v1")
	require.NoError(t, Merge(root, "deep.math", first))

	ref, err := root.Resolve("deep.math")
	require.NoError(t, err)
	assert.Same(t, first, ref)

	second := NewLeaf("deep.math", "v2")
	require.NoError(t, Merge(root, "deep.math", second))

	refAgain, err := root.Resolve("deep.math")
	require.NoError(t, err)
	assert.Same(t, ref, refAgain, "reload must rebind in place, not replace the pointer")
	v, err := refAgain.Leaf()
	require.NoError(t, err)
	assert.Equal(t, "v2", v, "contents must reflect the newer merge")
}

func TestMerge_RebindCallableNodeKeepsIdentityAndUpdatesFn(t *testing.T) {
	root := NewNamespace("", NewEmptyNamespace())
	v1 := NewCallable("deep.fn", reflect.ValueOf(func() string { return "v1" }), nil)
	require.NoError(t, Merge(root, "deep.fn", v1))

	ref, err := root.Resolve("deep.fn")
	require.NoError(t, err)

	v2 := NewCallable("deep.fn", reflect.ValueOf(func() string { return "v2" }), nil)
	require.NoError(t, Merge(root, "deep.fn", v2))

	refAgain, err := root.Resolve("deep.fn")
	require.NoError(t, err)
	assert.Same(t, ref, refAgain)

	out, err := refAgain.Call(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v2", out[0])
}

func TestUnmerge_RemovesLeafAndTolerateAbsentPath(t *testing.T) {
	root := NewNamespace("", NewEmptyNamespace())
	require.NoError(t, Merge(root, "plugins.a", NewLeaf("plugins.a", "x")))

	require.NoError(t, Unmerge(root, "plugins.a"))
	_, err := root.Resolve("plugins.a")
	assert.Error(t, err)

	// Removing an already-absent path is tolerated, not an error
	// (spec.md §4.9 "path-not-found (warn, no throw)").
	assert.NoError(t, Unmerge(root, "plugins.a"))
	assert.NoError(t, Unmerge(root, "never.existed"))
}
