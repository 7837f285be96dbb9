package emit

import (
	"fmt"
	"slices"
	"strings"

	"shapegen/internal/diag"
	"shapegen/internal/shape"
)

// Builder assembles the fragments of one Unit. Every misuse panics with
// *diag.InternalInvariantViolation: reaching one means the resolver let
// through something the emitter cannot express.
type Builder struct {
	a     *Approval
	meta  string
	frags []Fragment
	uses  map[string]Facility
	done  bool
}

// NewBuilder starts a unit for an approval. metaPath overrides the import
// path of the descriptor package ("" keeps MetaPath).
func NewBuilder(a *Approval, metaPath string) *Builder {
	if !a.Approved() {
		name, capability, mode := "?", "?", "?"
		if a != nil && a.Type != nil {
			name, capability, mode = a.Type.Name, a.Capability, a.Mode.String()
		}
		panic(&diag.InternalInvariantViolation{Type: name, Capability: capability, Mode: mode, Detail: "emission without resolver approval"})
	}
	return &Builder{a: a, meta: metaPath, uses: make(map[string]Facility)}
}

// Approval returns the approval the builder works from.
func (b *Builder) Approval() *Approval { return b.a }

// Type returns the described declaration.
func (b *Builder) Type() *shape.TypeDescription { return b.a.Type }

// Mode returns the target mode.
func (b *Builder) Mode() Mode { return b.a.Mode }

// Fail aborts emission with an internal invariant violation.
func (b *Builder) Fail(format string, args ...any) {
	panic(&diag.InternalInvariantViolation{
		Type:       b.a.Type.Name,
		Capability: b.a.Capability,
		Mode:       b.a.Mode.String(),
		Detail:     fmt.Sprintf(format, args...),
	})
}

// Use records a facility and returns its package identifier. Facilities
// unavailable in the builder's mode are an invariant violation.
func (b *Builder) Use(f Facility) Expr {
	if !f.Available(b.a.Mode) {
		b.Fail("facility %s is not available in %s mode", f.Path, b.a.Mode)
	}
	b.uses[f.Path] = f
	return Ident(f.Name)
}

// UseMeta records the descriptor package.
func (b *Builder) UseMeta() Expr { return b.Use(Meta(b.meta)) }

// TypeName returns the declaration's type as written in signatures,
// including type arguments.
func (b *Builder) TypeName() string {
	return b.a.Type.Name + b.a.Type.TypeArgs()
}

// Recv returns the receiver slot "v T".
func (b *Builder) Recv() *Param {
	return &Param{Name: "v", Type: b.TypeName()}
}

// TypeParams returns the declaration's type parameters for helper funcs.
func (b *Builder) TypeParams() []Param {
	out := make([]Param, 0, len(b.a.Type.Params))
	for _, p := range b.a.Type.Params {
		bound := p.Bound
		if bound == "" {
			bound = "any"
		}
		out = append(out, Param{Name: p.Name, Type: bound})
	}
	return out
}

// Add appends a fragment.
func (b *Builder) Add(f Fragment) {
	if b.done {
		b.Fail("fragment added after the unit was built")
	}
	if f.Kind == 0 {
		b.Fail("fragment %q has no kind", f.Name)
	}
	if f.Kind == FragMethod && f.Recv == nil {
		b.Fail("method %s has no receiver", f.Name)
	}
	b.frags = append(b.frags, f)
}

// Method adds a method on the declaration's type.
func (b *Builder) Method(doc, name string, params, results []Param, body []Stmt) {
	b.Add(Fragment{Kind: FragMethod, Doc: docLines(doc), Name: name, Recv: b.Recv(), Params: params, Results: results, Body: body})
}

// Func adds a package-level function.
func (b *Builder) Func(doc, name string, params, results []Param, body []Stmt) {
	b.Add(Fragment{Kind: FragFunc, Doc: docLines(doc), Name: name, TypeParams: b.TypeParams(), Params: params, Results: results, Body: body})
}

func docLines(doc string) []string {
	if doc == "" {
		return nil
	}
	return strings.Split(doc, "\n")
}

// Unit freezes the builder. An empty emission is an invariant violation:
// an approved capability always produces code.
func (b *Builder) Unit() *Unit {
	if len(b.frags) == 0 {
		b.Fail("empty emission")
	}
	b.done = true
	facs := make([]Facility, 0, len(b.uses))
	for _, f := range b.uses {
		facs = append(facs, f)
	}
	slices.SortFunc(facs, func(x, y Facility) int { return strings.Compare(x.Path, y.Path) })
	return &Unit{
		typeName:   b.a.Type.Name,
		capability: b.a.Capability,
		mode:       b.a.Mode,
		fragments:  slices.Clone(b.frags),
		facilities: facs,
	}
}

// Arm is one variant arm of a sum walk.
type Arm struct {
	Index   int
	Name    string
	Type    string // type named in the case clause, *Name for pointer variants
	Plan    Plan
	Variant *shape.Variant
}

// Arms pairs the approved variant plans with their shapes, in declaration
// order. A mismatch between plan and shape is an invariant violation.
func (b *Builder) Arms(s *shape.Shape, p Plan) []Arm {
	if s.Kind != shape.Sum || p.Kind != shape.Sum {
		b.Fail("variant walk over %s shape", s.Kind)
	}
	if len(s.Variants) != len(p.Variants) {
		b.Fail("plan covers %d of %d variants", len(p.Variants), len(s.Variants))
	}
	out := make([]Arm, len(s.Variants))
	for i := range s.Variants {
		v := &s.Variants[i]
		if p.Variants[i].Name != v.Name {
			b.Fail("variant %d planned as %s, declared as %s", i, p.Variants[i].Name, v.Name)
		}
		out[i] = Arm{Index: i, Name: v.Name, Type: v.GoType(), Plan: p.Variants[i].Plan, Variant: v}
	}
	return out
}

// Fields checks that a product plan matches its shape and returns the
// field plans in declaration order.
func (b *Builder) Fields(s *shape.Shape, p Plan) []FieldPlan {
	if s.Kind == shape.Sum || p.Kind != s.Kind {
		b.Fail("field walk over %s shape with %s plan", s.Kind, p.Kind)
	}
	if len(s.Fields) != len(p.Fields) {
		b.Fail("plan covers %d of %d fields", len(p.Fields), len(s.Fields))
	}
	for i, f := range p.Fields {
		if f.Field.Index != s.Fields[i].Index {
			b.Fail("field %s out of order", f.Field.Label())
		}
	}
	return p.Fields
}
