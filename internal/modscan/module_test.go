package modscan

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze_SelfReferentialSingleNamedExport(t *testing.T) {
	m, err := Analyze("testdata/math/math.go", "math")
	require.NoError(t, err)

	assert.Equal(t, DefaultNone, m.DefaultKind)
	assert.Equal(t, []string{"Math"}, m.NamedExports)
	assert.True(t, m.SelfReferential)
	assert.False(t, m.ShouldWrapAsCallable)
}

func TestAnalyze_DefaultFunctionWithNamedSibling(t *testing.T) {
	m, err := Analyze("testdata/mixed/greet.go", "greet")
	require.NoError(t, err)

	assert.Equal(t, DefaultFunction, m.DefaultKind)
	assert.Equal(t, []string{"RootFunctionShout"}, m.NamedExports)
	assert.True(t, m.ShouldWrapAsCallable)
	assert.False(t, m.SelfReferential)
}

func TestAnalyze_SingleExportNotMatchingFileKey(t *testing.T) {
	m, err := Analyze("testdata/singlematch/widget.go", "notwidget")
	require.NoError(t, err)
	assert.False(t, m.SelfReferential, "single-file directory whose file key differs from the module key does not auto-flatten")
}

func TestModuleDescriptor_Load(t *testing.T) {
	m, err := Analyze("testdata/mixed/greet.go", "greet")
	require.NoError(t, err)

	def, named, err := m.Load(context.Background())
	require.NoError(t, err)
	require.True(t, def.IsValid())

	out := def.Call([]reflect.Value{reflect.ValueOf("World")})
	require.Len(t, out, 1)
	assert.Equal(t, "Hello, World!", out[0].Interface())

	shout, ok := named["RootFunctionShout"]
	require.True(t, ok)
	require.True(t, shout.IsValid())
	out = shout.Call([]reflect.Value{reflect.ValueOf("World")})
	assert.Equal(t, "HELLO, WORLD!", out[0].Interface())
}
