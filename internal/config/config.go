// Package config loads the static, file-based portion of slothlet's
// configuration: sanitizer rules, hook defaults, and runtime mode. It
// mirrors the teacher's YAML-plus-environment-override configuration
// layer; call-site-only options (dir, context, reference) never live
// here because they are values the embedder passes to slothlet.New,
// not deployment configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SanitizeRule mirrors one entry of the C1 name sanitizer rule table
// (spec.md §4.1 step 4): a literal, glob, or boundary pattern paired
// with one of the four precedence classes.
type SanitizeRule struct {
	Match string `yaml:"match"`
	Kind  string `yaml:"kind"` // leave | leaveInsensitive | upper | lower
}

// SanitizeConfig is the C1 sanitizer's per-instance configuration.
type SanitizeConfig struct {
	Rules             []SanitizeRule `yaml:"rules"`
	LowerFirst        bool           `yaml:"lower_first"`
	PreserveAllUpper  bool           `yaml:"preserve_all_upper"`
	PreserveAllLower  bool           `yaml:"preserve_all_lower"`
}

// HooksConfig is the initial hook-manager state (spec.md §6 `hooks` option).
type HooksConfig struct {
	Enabled bool   `yaml:"enabled"`
	Pattern string `yaml:"pattern"`
}

// Config is the file-loadable subset of slothlet.Options.
type Config struct {
	Runtime               string         `yaml:"runtime"` // async | live
	ApiDepth              int            `yaml:"api_depth"`
	AllowApiOverwrite     bool           `yaml:"allow_api_overwrite"`
	EnableModuleOwnership bool           `yaml:"enable_module_ownership"`
	HotReload             bool           `yaml:"hot_reload"`
	Debug                 bool           `yaml:"debug"`
	Hooks                 HooksConfig    `yaml:"hooks"`
	Sanitize              SanitizeConfig `yaml:"sanitize"`
}

// Default returns slothlet's baked-in configuration defaults.
func Default() *Config {
	return &Config{
		Runtime:           "async",
		ApiDepth:          -1, // -1 == unlimited, per spec.md §6 default ∞
		AllowApiOverwrite: true,
		Hooks: HooksConfig{
			Enabled: true,
			Pattern: "**",
		},
	}
}

// Load reads Config from a YAML file at path, falling back to Default
// when the file does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("slothlet: read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("slothlet: parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("slothlet: create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("slothlet: marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("slothlet: write config: %w", err)
	}
	return nil
}

// applyEnvOverrides lets deployment environments flip the most
// operationally relevant knobs without editing the YAML file, matching
// the teacher's env-override precedence pattern in internal/config.
func (c *Config) applyEnvOverrides() {
	if v, ok := os.LookupEnv("SLOTHLET_DEBUG"); ok {
		c.Debug = v == "1" || v == "true"
	}
	if v, ok := os.LookupEnv("SLOTHLET_HOT_RELOAD"); ok {
		c.HotReload = v == "1" || v == "true"
	}
	if v, ok := os.LookupEnv("SLOTHLET_RUNTIME"); ok && v != "" {
		c.Runtime = v
	}
}
