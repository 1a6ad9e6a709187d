package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"classgen/internal/diag"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration.
type Config struct {
	TypeMappings        map[string]string `yaml:"typeMappings" json:"typeMappings" toml:"typeMappings"`
	DefaultInitializers map[string]string `yaml:"defaultInitializers" json:"defaultInitializers" toml:"defaultInitializers"`
	Options             Options           `yaml:"options" json:"options" toml:"options"`

	include []glob.Glob
	exclude []glob.Glob
}

// Options represents generation options.
type Options struct {
	IncludeClasses  []string          `yaml:"includeClasses" json:"includeClasses" toml:"includeClasses"`
	ExcludeClasses  []string          `yaml:"excludeClasses" json:"excludeClasses" toml:"excludeClasses"`
	IgnoredPrefixes []string          `yaml:"ignoredPrefixes" json:"ignoredPrefixes" toml:"ignoredPrefixes"`
	RootClass       string            `yaml:"rootClass" json:"rootClass" toml:"rootClass"`
	Runtime         Runtime           `yaml:"runtime" json:"runtime" toml:"runtime"`
	AccessorTags    map[string]string `yaml:"accessorTags" json:"accessorTags" toml:"accessorTags"`
	MaxPasses       int               `yaml:"maxPasses" json:"maxPasses" toml:"maxPasses"`
	Workers         int               `yaml:"workers" json:"workers" toml:"workers"`
	WarnClassInit   *bool             `yaml:"warnClassInit" json:"warnClassInit" toml:"warnClassInit"`
}

// Runtime names the helper functions the emitted code calls into.
type Runtime struct {
	Provide       string `yaml:"provide" json:"provide" toml:"provide"`
	Require       string `yaml:"require" json:"require" toml:"require"`
	Inherits      string `yaml:"inherits" json:"inherits" toml:"inherits"`
	EmptyFunction string `yaml:"emptyFunction" json:"emptyFunction" toml:"emptyFunction"`
	StaticInit    string `yaml:"staticInit" json:"staticInit" toml:"staticInit"`
	GetterPrefix  string `yaml:"getterPrefix" json:"getterPrefix" toml:"getterPrefix"`
	SetterPrefix  string `yaml:"setterPrefix" json:"setterPrefix" toml:"setterPrefix"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		TypeMappings:        DefaultTypeMappings(),
		DefaultInitializers: DefaultInitializers(),
		Options:             DefaultOptions(),
	}
}

// LoadFile loads configuration from a file (YAML, JSON or TOML based on extension).
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))

	var loaded Config
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &loaded); err != nil {
			return fmt.Errorf("parsing YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &loaded); err != nil {
			return fmt.Errorf("parsing JSON config: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &loaded); err != nil {
			return fmt.Errorf("parsing TOML config: %w", err)
		}
	default:
		// Try YAML first, then JSON
		if err := yaml.Unmarshal(data, &loaded); err != nil {
			if err := json.Unmarshal(data, &loaded); err != nil {
				return fmt.Errorf("unable to parse config as YAML or JSON")
			}
		}
	}

	// Merge loaded config with defaults
	c.merge(&loaded)

	return c.Validate()
}

// merge merges the loaded config into the current config.
func (c *Config) merge(loaded *Config) {
	// Merge mappings (loaded values override defaults)
	for k, v := range loaded.TypeMappings {
		c.TypeMappings[k] = v
	}
	for k, v := range loaded.DefaultInitializers {
		c.DefaultInitializers[k] = v
	}

	// Merge options
	o := loaded.Options
	if o.IncludeClasses != nil {
		c.Options.IncludeClasses = o.IncludeClasses
	}
	if o.ExcludeClasses != nil {
		c.Options.ExcludeClasses = o.ExcludeClasses
	}
	if o.IgnoredPrefixes != nil {
		c.Options.IgnoredPrefixes = o.IgnoredPrefixes
	}
	if o.RootClass != "" {
		c.Options.RootClass = o.RootClass
	}
	for k, v := range o.AccessorTags {
		if c.Options.AccessorTags == nil {
			c.Options.AccessorTags = make(map[string]string)
		}
		c.Options.AccessorTags[k] = v
	}
	if o.MaxPasses != 0 {
		c.Options.MaxPasses = o.MaxPasses
	}
	if o.Workers != 0 {
		c.Options.Workers = o.Workers
	}
	if o.WarnClassInit != nil {
		c.Options.WarnClassInit = o.WarnClassInit
	}
	c.Options.Runtime.merge(o.Runtime)
}

func (r *Runtime) merge(o Runtime) {
	// Provide and Require may be cleared to drop the prologue, so "-" means empty.
	set := func(dst *string, v string) {
		switch v {
		case "":
		case "-":
			*dst = ""
		default:
			*dst = v
		}
	}
	set(&r.Provide, o.Provide)
	set(&r.Require, o.Require)
	set(&r.Inherits, o.Inherits)
	set(&r.EmptyFunction, o.EmptyFunction)
	set(&r.StaticInit, o.StaticInit)
	set(&r.GetterPrefix, o.GetterPrefix)
	set(&r.SetterPrefix, o.SetterPrefix)
}

// Validate checks option ranges and compiles the class filters.
func (c *Config) Validate() error {
	if c.Options.MaxPasses < 1 {
		return diag.New(diag.CodeValidationError, fmt.Sprintf("maxPasses must be positive, got %d", c.Options.MaxPasses))
	}
	if c.Options.Workers < 1 {
		return diag.New(diag.CodeValidationError, fmt.Sprintf("workers must be positive, got %d", c.Options.Workers))
	}
	if c.Options.Runtime.Inherits == "" || c.Options.Runtime.EmptyFunction == "" || c.Options.Runtime.StaticInit == "" {
		return diag.New(diag.CodeValidationError, "runtime inherits, emptyFunction and staticInit names are required")
	}

	include, err := compileGlobs(c.Options.IncludeClasses)
	if err != nil {
		return err
	}
	exclude, err := compileGlobs(c.Options.ExcludeClasses)
	if err != nil {
		return err
	}
	c.include, c.exclude = include, exclude
	return nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '.')
		if err != nil {
			return nil, diag.Wrap(err, diag.CodeValidationError, fmt.Sprintf("invalid class pattern %q", p))
		}
		out = append(out, g)
	}
	return out, nil
}

// MapType maps a source type to its JSDoc type using the configured mappings.
func (c *Config) MapType(sourceType string) string {
	if mapped, ok := c.TypeMappings[sourceType]; ok {
		return mapped
	}
	return sourceType
}

// DefaultValue returns the literal an uninitialized field of sourceType starts with.
func (c *Config) DefaultValue(sourceType string) string {
	if v, ok := c.DefaultInitializers[sourceType]; ok {
		return v
	}
	return "undefined"
}

// ShouldIncludeClass checks if a class should be emitted based on config.
// The patterns are the ones compiled by the last Validate call.
func (c *Config) ShouldIncludeClass(fullName string) bool {
	// Check include list (if specified, class must match one pattern)
	if len(c.include) > 0 {
		found := false
		for _, g := range c.include {
			if g.Match(fullName) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	// Check exclude list
	for _, g := range c.exclude {
		if g.Match(fullName) {
			return false
		}
	}

	return true
}

// IsIgnored reports whether name starts with a synthetic or library prefix.
func (c *Config) IsIgnored(name string) bool {
	for _, p := range c.Options.IgnoredPrefixes {
		if p != "" && strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// WarnClassInit reports whether class-init performance warnings are enabled.
func (c *Config) WarnClassInit() bool {
	return c.Options.WarnClassInit != nil && *c.Options.WarnClassInit
}
