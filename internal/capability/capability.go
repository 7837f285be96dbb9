// Package capability holds the registry of derivable capabilities and the
// resolver deciding whether a declaration can derive one in a given mode.
package capability

import (
	"fmt"
	"slices"
	"strings"

	"shapegen/internal/attr"
	"shapegen/internal/decl"
	"shapegen/internal/emit"
	"shapegen/internal/shape"
)

// AnyBound accepts type parameters regardless of their constraint.
const AnyBound = "*"

// Capability describes one derivable capability. The set is fixed when the
// engine is built: capability files register themselves from init.
type Capability struct {
	Name    string
	Summary string
	// Default capabilities are left out of builds tagged shapegen_nodefault.
	Default bool
	Modes   emit.ModeSet
	Schema  attr.Schema
	// MinFields is the number of non-skipped fields every record, tuple
	// and sum variant must have.
	MinFields int
	// Elements admits slices and arrays whose element type satisfies the
	// capability.
	Elements bool
	// Bounds lists, per mode, the type parameter constraints accepted.
	Bounds map[emit.Mode][]string
	// NamedOpaque accepts every named field type without delegation.
	NamedOpaque bool
	// AnyField accepts every field; Precondition does the real checking.
	AnyField bool
	// MethodKey is the declaration option renaming the generated method.
	// Fields delegating to a batch type call the name that type chose.
	MethodKey string
	// Precondition runs after field resolution over the whole plan.
	Precondition func(td *shape.TypeDescription, mode emit.Mode, plan emit.Plan) error
	// Emit builds the unit from an approval.
	Emit func(b *emit.Builder)
}

// Supports reports whether the capability has an emission for mode.
func (c *Capability) Supports(mode emit.Mode) bool { return c.Modes.Has(mode) }

// AcceptsBound reports whether a type parameter with the given constraint
// satisfies the capability in mode.
func (c *Capability) AcceptsBound(mode emit.Mode, bound string) bool {
	for _, b := range c.Bounds[mode] {
		if b == AnyBound || b == bound {
			return true
		}
	}
	return false
}

var registry = map[string]*Capability{}

// Register adds c to the registry. It panics on duplicates and is meant to
// be called from init.
func Register(c *Capability) {
	if c.Name == "" || c.Emit == nil {
		panic("capability: incomplete registration")
	}
	if _, dup := registry[c.Name]; dup {
		panic(fmt.Sprintf("capability: %q registered twice", c.Name))
	}
	registry[c.Name] = c
}

// Lookup returns the capability registered under name.
func Lookup(name string) (*Capability, bool) {
	c, ok := registry[name]
	return c, ok
}

// Known reports whether name is a registered capability.
func Known(name string) bool {
	_, ok := registry[name]
	return ok
}

// All returns the registered capabilities sorted by name.
func All() []*Capability {
	out := make([]*Capability, 0, len(registry))
	for _, c := range registry {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b *Capability) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Names returns the registered capability names, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Lookuper finds declarations of the current batch.
type Lookuper interface {
	Lookup(name string) (*decl.Decl, bool)
}

// Env is what the resolver knows beyond the declaration itself.
type Env struct {
	Batch Lookuper
	// Assume maps a capability name (or "*" for all) to type tokens
	// trusted to provide it.
	Assume map[string][]string
}

// derives returns the batch declaration a local named type refers to when
// that declaration derives capability.
func (e Env) derives(ref decl.TypeRef, capability string) (*decl.Decl, bool) {
	if e.Batch == nil || !ref.Local() {
		return nil, false
	}
	d, ok := e.Batch.Lookup(ref.BaseName())
	if !ok || !d.DerivesCapability(capability) {
		return nil, false
	}
	return d, true
}

func (e Env) assumed(capability string, ref decl.TypeRef) bool {
	for _, key := range []string{capability, "*"} {
		for _, t := range e.Assume[key] {
			if t == ref.Text || t == ref.BaseName() {
				return true
			}
		}
	}
	return false
}
