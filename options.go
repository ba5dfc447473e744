package slothlet

import (
	"fmt"
	"io"
	"path/filepath"
	"runtime"

	"slothlet/internal/config"
	"slothlet/internal/sanitize"
)

// Options configures New (spec.md §6).
type Options struct {
	// Dir is the source root. A relative path resolves against the
	// caller's source file (runtime.Caller), matching the teacher's
	// honeypot_test.go / reviewer_capabilities_test.go idiom for
	// resolving fixtures relative to the calling file rather than the
	// process's working directory.
	Dir string

	// Lazy selects C6 over C5. Mode, if non-empty, takes precedence
	// ("eager" | "lazy").
	Lazy bool
	Mode string

	// ApiDepth bounds C3's recursion depth; -1 (the default) is
	// unlimited.
	ApiDepth int

	// AllowApiOverwrite gates anonymous-owner addApi overwrites and
	// defaults to true (spec.md §6). A bool can't represent "unset", so
	// the zero value is a pointer; nil means "use the default".
	AllowApiOverwrite     *bool
	EnableModuleOwnership bool
	HotReload             bool

	// Hooks seeds the initial hook-manager state. HooksEnabled is a
	// pointer for the same "true unless explicitly turned off" reason
	// as AllowApiOverwrite.
	HooksEnabled *bool
	HooksPattern string

	// Context and Reference are the initial context/reference live
	// bindings (spec.md §4.7); Reference is additionally merged into
	// the root namespace where keys don't collide.
	Context   interface{}
	Reference interface{}

	// Runtime chooses the C7 binding model: "async" (per-context Scope,
	// the default) or "live" (shared-mutation legacy mode).
	Runtime string

	Sanitize sanitize.Options

	Debug bool
	// LogWriter receives the instance's log output (warnings, plus
	// debug-level entries when Debug is set); defaults to os.Stderr (see
	// internal/slog.NewFactory).
	LogWriter io.Writer

	// HookPatternCacheSize bounds C8's compiled-pattern LRU.
	HookPatternCacheSize int

	// ConfigPath, if set, loads a YAML deployment config (internal/config)
	// before defaults are filled in. Fields explicitly set on Options
	// itself are NOT overridden by the file — the file only supplies
	// values for fields still at their Go zero value, the same
	// precedence the teacher's own config layer uses for env overrides
	// layered under explicit CLI flags.
	ConfigPath string
}

// applyConfigFile loads ConfigPath (if set) and fills in any Options
// field still at its zero value from the file, without touching fields
// the caller already set explicitly.
func (o Options) applyConfigFile() (Options, error) {
	if o.ConfigPath == "" {
		return o, nil
	}
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return o, &ConfigError{Detail: err.Error()}
	}

	if o.Runtime == "" {
		o.Runtime = cfg.Runtime
	}
	if o.ApiDepth == 0 {
		o.ApiDepth = cfg.ApiDepth
	}
	if o.AllowApiOverwrite == nil {
		o.AllowApiOverwrite = boolPtr(cfg.AllowApiOverwrite)
	}
	if !o.EnableModuleOwnership {
		o.EnableModuleOwnership = cfg.EnableModuleOwnership
	}
	if !o.HotReload {
		o.HotReload = cfg.HotReload
	}
	if !o.Debug {
		o.Debug = cfg.Debug
	}
	if o.HooksEnabled == nil {
		o.HooksEnabled = boolPtr(cfg.Hooks.Enabled)
	}
	if o.HooksPattern == "" {
		o.HooksPattern = cfg.Hooks.Pattern
	}
	if len(o.Sanitize.Rules) == 0 {
		o.Sanitize = sanitizeOptionsFromConfig(cfg.Sanitize)
	}
	return o, nil
}

func sanitizeOptionsFromConfig(c config.SanitizeConfig) sanitize.Options {
	rules := make([]sanitize.Rule, 0, len(c.Rules))
	for _, r := range c.Rules {
		rules = append(rules, sanitize.Rule{Kind: sanitizeRuleKind(r.Kind), Match: r.Match})
	}
	return sanitize.Options{
		Rules:            rules,
		LowerFirst:       c.LowerFirst,
		PreserveAllUpper: c.PreserveAllUpper,
		PreserveAllLower: c.PreserveAllLower,
	}
}

func sanitizeRuleKind(kind string) sanitize.RuleKind {
	switch kind {
	case "leaveInsensitive":
		return sanitize.RuleLeaveInsensitive
	case "upper":
		return sanitize.RuleUpper
	case "lower":
		return sanitize.RuleLower
	default:
		return sanitize.RuleLeave
	}
}

// normalize resolves Dir relative to the caller (skip frames up to the
// public entry point), fills in defaults, and validates the combination
// of options, returning *ConfigError for anything spec.md §7 calls out.
func (o Options) normalize(callerSkip int) (Options, error) {
	o, err := o.applyConfigFile()
	if err != nil {
		return o, err
	}

	if o.Dir == "" {
		return o, &ConfigError{Detail: "dir is required"}
	}
	if !filepath.IsAbs(o.Dir) {
		if _, file, _, ok := runtime.Caller(callerSkip); ok {
			o.Dir = filepath.Join(filepath.Dir(file), o.Dir)
		}
	}

	if o.Mode == "" {
		if o.Lazy {
			o.Mode = "lazy"
		} else {
			o.Mode = "eager"
		}
	}
	if o.Mode != "eager" && o.Mode != "lazy" {
		return o, &ConfigError{Detail: fmt.Sprintf("mode must be \"eager\" or \"lazy\", got %q", o.Mode)}
	}

	if o.ApiDepth == 0 {
		o.ApiDepth = -1
	}

	if o.Runtime == "" {
		o.Runtime = "async"
	}
	if o.Runtime != "async" && o.Runtime != "live" {
		return o, &ConfigError{Detail: fmt.Sprintf("runtime must be \"async\" or \"live\", got %q", o.Runtime)}
	}

	if o.HookPatternCacheSize == 0 {
		o.HookPatternCacheSize = 256
	}

	if o.AllowApiOverwrite == nil {
		o.AllowApiOverwrite = boolPtr(true)
	}
	if o.HooksEnabled == nil {
		o.HooksEnabled = boolPtr(true)
	}
	if o.HooksPattern == "" {
		o.HooksPattern = "**"
	}

	return o, nil
}

func boolPtr(b bool) *bool { return &b }
