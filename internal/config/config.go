// Package config loads the build configuration.
//
// Sources are layered, later ones overriding earlier ones:
//  1. built-in defaults (defaults.toml, embedded)
//  2. kiln.toml or kiln.yaml in the project directory
//  3. KILN_* environment variables (KILN_FAIL_FAST=true)
//  4. explicit overrides, usually command-line flags
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/roach88/kiln/internal/source"
)

//go:embed defaults.toml
var defaultsTOML []byte

// EnvPrefix is the prefix of configuration environment variables.
const EnvPrefix = "KILN_"

// FileNames are the project configuration files, in lookup order.
// The first one found is used.
var FileNames = []string{"kiln.toml", "kiln.yaml", "kiln.yml"}

// Configuration is read-only for the duration of a build.
type Configuration struct {
	Input      string   `koanf:"input" json:"input"`
	Output     string   `koanf:"output" json:"output"`
	Ignore     []string `koanf:"ignore" json:"ignore"`
	Jobs       int      `koanf:"jobs" json:"jobs"`
	FailFast   bool     `koanf:"fail_fast" json:"fail_fast"`
	Strict     bool     `koanf:"strict" json:"strict"`
	Preview    bool     `koanf:"preview" json:"preview"`
	Database   string   `koanf:"database" json:"database"`
	Definition string   `koanf:"definition" json:"definition"`

	// File is the configuration file that was loaded, if any.
	File string `koanf:"-" json:"file,omitempty"`

	ignore source.Ignore
}

// Error is a configuration error. It is fatal: no rule runs.
type Error struct {
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config %s: %s: %v", e.Field, e.Message, e.Err)
	}
	return fmt.Sprintf("config %s: %s", e.Field, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// IsConfigError reports whether err is a configuration error.
func IsConfigError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

// rawBytesProvider feeds embedded bytes to koanf.
type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("not implemented")
}

// Load reads configuration for the project in dir. Relative paths in the
// result are resolved against dir. overrides may be nil.
func Load(dir string, overrides map[string]any) (*Configuration, error) {
	k := koanf.New(".")

	if err := k.Load(&rawBytesProvider{bytes: defaultsTOML}, toml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	var loaded string
	for _, name := range FileNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		var parser koanf.Parser = toml.Parser()
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			parser = yaml.Parser()
		}
		if err := k.Load(file.Provider(p), parser); err != nil {
			return nil, &Error{Field: "file", Message: "failed to load " + p, Err: err}
		}
		loaded = p
		break
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("failed to load overrides: %w", err)
		}
	}

	var cfg Configuration
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, &Error{Field: "file", Message: "failed to decode configuration", Err: err}
	}
	cfg.File = loaded
	cfg.resolve(dir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// New returns a configuration for the given roots with default settings.
// Intended for programmatic builds and tests; call Validate before use.
func New(input, output string) *Configuration {
	return &Configuration{
		Input:  input,
		Output: output,
		Ignore: append([]string(nil), source.DefaultIgnorePatterns...),
	}
}

func (c *Configuration) resolve(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	c.Input = abs(c.Input)
	c.Output = abs(c.Output)
	c.Database = abs(c.Database)
	c.Definition = abs(c.Definition)
}

// Validate checks the configuration and compiles the ignore patterns.
func (c *Configuration) Validate() error {
	if strings.TrimSpace(c.Input) == "" {
		return &Error{Field: "input", Message: "input root is required"}
	}
	if strings.TrimSpace(c.Output) == "" {
		return &Error{Field: "output", Message: "output root is required"}
	}
	in, err := filepath.Abs(c.Input)
	if err != nil {
		return &Error{Field: "input", Message: "cannot resolve input root", Err: err}
	}
	out, err := filepath.Abs(c.Output)
	if err != nil {
		return &Error{Field: "output", Message: "cannot resolve output root", Err: err}
	}
	if in == out {
		return &Error{Field: "output", Message: "output root must differ from input root"}
	}
	if within(in, out) || within(out, in) {
		return &Error{Field: "output", Message: fmt.Sprintf("input root %s and output root %s must not be nested", c.Input, c.Output)}
	}
	if c.Jobs < 0 {
		return &Error{Field: "jobs", Message: fmt.Sprintf("jobs must be >= 0, got %d", c.Jobs)}
	}

	ignore, err := source.CompileIgnore(c.Ignore)
	if err != nil {
		return &Error{Field: "ignore", Message: "invalid ignore pattern", Err: err}
	}
	c.ignore = ignore
	return nil
}

// within reports whether child is inside parent.
func within(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// IgnoreFunc returns the compiled ignore predicate. Validate must have
// succeeded first; before that it ignores nothing.
func (c *Configuration) IgnoreFunc() source.Ignore {
	if c.ignore == nil {
		return source.None
	}
	return c.ignore
}

// Workers returns the build-wide concurrency limit: Jobs, or the number of
// CPUs when Jobs is 0.
func (c *Configuration) Workers() int {
	if c.Jobs > 0 {
		return c.Jobs
	}
	return runtime.NumCPU()
}
