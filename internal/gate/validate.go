package gate

import (
	"fmt"
	"slices"

	"shapegen/internal/capability"
	"shapegen/internal/diag"
	"shapegen/internal/emit"
)

// Gate is a validated configuration: the modes to emit and the
// capabilities declarations may request.
type Gate struct {
	cfg     Config
	modes   emit.ModeSet
	enabled map[string]*capability.Capability
}

// Validate fails fast on configurations no declaration could satisfy: no
// mode enabled, a capability that is unknown or not compiled in, or a listed
// capability without an emission for any enabled mode. When the list is left
// empty every compiled capability is enabled, and a request for one lacking
// the run's modes is reported per declaration by the resolver.
func Validate(cfg Config) (*Gate, error) {
	modes := cfg.Modes()
	if modes.Empty() {
		return nil, &ConfigError{Code: diag.GateNoMode, Path: cfg.Path, Msg: "no environment mode enabled; set [features] hosted or freestanding"}
	}

	g := &Gate{cfg: cfg, modes: modes, enabled: make(map[string]*capability.Capability)}
	names := cfg.Features.Capabilities
	explicit := len(names) > 0
	if !explicit {
		names = capability.Names()
	}
	for _, name := range names {
		c, ok := capability.Lookup(name)
		switch {
		case !ok && isDefaultFeature(name):
			return nil, &ConfigError{Code: diag.GateNotCompiled, Path: cfg.Path,
				Msg: fmt.Sprintf("capability %q is not compiled in (engine built with shapegen_nodefault)", name)}
		case !ok:
			return nil, &ConfigError{Code: diag.GateUnknownCapability, Path: cfg.Path,
				Msg: fmt.Sprintf("unknown capability %q (compiled: %v)", name, capability.Names())}
		}
		supported := false
		for _, m := range modes.Modes() {
			if c.Supports(m) {
				supported = true
			}
		}
		if explicit && !supported {
			return nil, &ConfigError{Code: diag.GateNoSupportedMode, Path: cfg.Path,
				Msg: fmt.Sprintf("capability %q supports none of the enabled modes (%s; it has %s)", name, modes, c.Modes)}
		}
		g.enabled[name] = c
	}
	for capName := range cfg.Assume {
		if capName != "*" && !capability.Known(capName) {
			return nil, &ConfigError{Code: diag.GateUnknownCapability, Path: cfg.Path,
				Msg: fmt.Sprintf("[assume] names unknown capability %q", capName)}
		}
	}
	return g, nil
}

// Config returns the validated configuration.
func (g *Gate) Config() Config { return g.cfg }

// Modes returns the enabled modes in rendering order.
func (g *Gate) Modes() []emit.Mode { return g.modes.Modes() }

// Enabled returns the enabled capability names, sorted.
func (g *Gate) Enabled() []string {
	out := make([]string, 0, len(g.enabled))
	for name := range g.enabled {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Capability returns an enabled capability.
func (g *Gate) Capability(name string) (*capability.Capability, bool) {
	c, ok := g.enabled[name]
	return c, ok
}

// Env returns the resolver environment for a batch.
func (g *Gate) Env(batch capability.Lookuper) capability.Env {
	return capability.Env{Batch: batch, Assume: g.cfg.Assume}
}
