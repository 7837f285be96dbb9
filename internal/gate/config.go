// Package gate is the feature gate layer: it knows which capabilities are
// compiled into the engine, loads shapegen.toml, and rejects configurations
// that cannot work before any declaration is derived.
package gate

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"shapegen/internal/emit"
)

// ConfigFileName is the file discovered by walking up from a package.
const ConfigFileName = "shapegen.toml"

// Config is the content of shapegen.toml.
type Config struct {
	Features FeaturesConfig      `toml:"features"`
	Assume   map[string][]string `toml:"assume"`
	Output   OutputConfig        `toml:"output"`
	Cache    CacheConfig         `toml:"cache"`

	// Path is the file the config came from, empty for defaults.
	Path string `toml:"-"`
}

// FeaturesConfig selects capabilities and environment modes.
type FeaturesConfig struct {
	// Capabilities restricts derivation to the listed names; empty means
	// every compiled capability.
	Capabilities []string `toml:"capabilities"`
	Hosted       bool     `toml:"hosted"`
	Freestanding bool     `toml:"freestanding"`
}

// OutputConfig controls generated file names and imports.
type OutputConfig struct {
	// Prefix is prepended to hosted_shapegen.go, freestanding_shapegen.go
	// and types_shapegen.go.
	Prefix string `toml:"prefix"`
	// Meta overrides the import path of the descriptor package.
	Meta string `toml:"meta"`
}

// CacheConfig controls the on-disk derivation cache.
type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// Default returns the configuration used when no shapegen.toml exists:
// every compiled capability, hosted output only.
func Default() Config {
	return Config{
		Features: FeaturesConfig{Hosted: true},
		Assume:   map[string][]string{},
	}
}

// Modes returns the enabled environment modes.
func (c Config) Modes() emit.ModeSet {
	var s emit.ModeSet
	if c.Features.Hosted {
		s |= emit.NewModeSet(emit.Hosted)
	}
	if c.Features.Freestanding {
		s |= emit.NewModeSet(emit.Freestanding)
	}
	return s
}

// Find walks up from startDir looking for shapegen.toml.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load reads a config file. Keys not defined by Config are rejected so a
// misspelled section does not silently fall back to defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, &ConfigError{Path: path, Msg: "failed to parse TOML", Err: err}
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, &ConfigError{Path: path, Msg: "unknown keys: " + strings.Join(keys, ", ")}
	}
	if cfg.Assume == nil {
		cfg.Assume = map[string][]string{}
	}
	cfg.Path = path
	return cfg, nil
}

// Discover loads the nearest shapegen.toml above dir, or the defaults.
func Discover(dir string) (Config, error) {
	path, ok, err := Find(dir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

// Encode renders cfg as TOML, as written by `shapegen init`.
func Encode(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}
