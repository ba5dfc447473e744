package slog

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactory_DebugGatesLevel(t *testing.T) {
	var buf bytes.Buffer
	f := NewFactory(&buf, false)
	l := f.Get(CategoryHooks)
	l.Debugw("should not appear")
	l.Warnw("should appear", "path", "math.add")
	require.NoError(t, f.Sync())

	out := buf.String()
	assert.NotContains(t, out, "should not appear")
	assert.Contains(t, out, "should appear")
}

func TestFactory_DebugModeEmitsDebugEvents(t *testing.T) {
	var buf bytes.Buffer
	f := NewFactory(&buf, true)
	l := f.Get(CategoryBuildLazy)
	l.Debugw("materialized node", "path", "deep.math")
	require.NoError(t, f.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "materialized node", entry["msg"])
	assert.Equal(t, string(CategoryBuildLazy), entry["component"])
	assert.Equal(t, "deep.math", entry["path"])
}

func TestFactory_CachesLoggerPerCategory(t *testing.T) {
	f := NewFactory(nil, false)
	a := f.Get(CategoryDecision)
	b := f.Get(CategoryDecision)
	assert.Same(t, a, b)
}

func TestNoop(t *testing.T) {
	l := Noop()
	require.NotNil(t, l)
	l.Infow("discarded")
}
