// Package slog provides config-driven, category-scoped structured logging
// for the slothlet runtime. Only warnings and above are written (zap's
// WarnLevel) unless the instance was created with Options.Debug, which
// drops the threshold to DebugLevel. No component in this module writes
// debug- or info-level entries, so Debug adds no extra events.
package slog

import (
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies which slothlet component emitted a log entry. It
// maps directly onto the component table in SPEC_FULL.md (C1-C10), with
// C2 and C3 sharing one category.
type Category string

const (
	CategorySanitize    Category = "sanitize"    // C1
	CategoryModscan     Category = "modscan"     // C2/C3
	CategoryDecision    Category = "decision"    // C4
	CategoryBuildEager  Category = "build.eager" // C5
	CategoryBuildLazy   Category = "build.lazy"  // C6
	CategoryBinding     Category = "binding"     // C7
	CategoryHooks       Category = "hooks"       // C8
	CategoryMutation    Category = "mutation"    // C9
	CategoryOrchestrator Category = "orchestrator" // C10
)

// Logger wraps a zap.SugaredLogger scoped to one Category.
type Logger struct {
	cat Category
	sl  *zap.SugaredLogger
}

// Factory builds per-category Loggers sharing one zap.Logger core, the
// way the teacher's internal/logging package shared one logsDir/config
// across categories but keyed loggers individually.
type Factory struct {
	mu     sync.RWMutex
	base   *zap.Logger
	cached map[Category]*Logger
}

// NewFactory builds a Factory writing to w (default os.Stderr when nil).
// debug selects zap.DebugLevel; otherwise only zap.WarnLevel and above
// are emitted, matching the teacher's "silent no-op in production mode"
// default.
func NewFactory(w io.Writer, debug bool) *Factory {
	if w == nil {
		w = os.Stderr
	}
	level := zapcore.WarnLevel
	if debug {
		level = zapcore.DebugLevel
	}
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(w),
		level,
	)
	return &Factory{
		base:   zap.New(core),
		cached: make(map[Category]*Logger),
	}
}

// Get returns (or creates) the Logger for category.
func (f *Factory) Get(category Category) *Logger {
	f.mu.RLock()
	if l, ok := f.cached[category]; ok {
		f.mu.RUnlock()
		return l
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.cached[category]; ok {
		return l
	}
	l := &Logger{
		cat: category,
		sl:  f.base.With(zap.String("component", string(category))).Sugar(),
	}
	f.cached[category] = l
	return l
}

// Sync flushes the underlying zap core. Call during Shutdown.
func (f *Factory) Sync() error {
	return f.base.Sync()
}

func (l *Logger) Debugw(msg string, kv ...interface{}) { l.sl.Debugw(msg, kv...) }
func (l *Logger) Infow(msg string, kv ...interface{})  { l.sl.Infow(msg, kv...) }
func (l *Logger) Warnw(msg string, kv ...interface{})  { l.sl.Warnw(msg, kv...) }
func (l *Logger) Errorw(msg string, kv ...interface{}) { l.sl.Errorw(msg, kv...) }

// Noop returns a Logger that discards everything, for call sites that
// need a non-nil *Logger before a Factory exists (e.g. package-level
// defaults used outside of any instance).
func Noop() *Logger {
	return &Logger{sl: zap.NewNop().Sugar()}
}
