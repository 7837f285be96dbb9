package emit

import (
	"shapegen/internal/attr"
	"shapegen/internal/decl"
	"shapegen/internal/shape"
)

// Strategy says how a capability reaches one field value.
type Strategy uint8

const (
	// Skip leaves the field out.
	Skip Strategy = iota + 1
	// Primitive uses the builtin operation for a basic type.
	Primitive
	// TypeParam handles a type parameter through its accepted bound.
	TypeParam
	// Derived calls the capability's method on a named type of the batch.
	Derived
	// SumHelper calls the package-level helper generated for a named sum.
	SumHelper
	// Assumed calls the capability's method on a type trusted to have it.
	Assumed
	// Custom calls a user-supplied function.
	Custom
	// Sequence iterates a slice; Elem plans the element.
	Sequence
	// Fixed iterates an array; Elem plans the element.
	Fixed
	// Opaque accepts the field without touching its value.
	Opaque
)

func (s Strategy) String() string {
	switch s {
	case Skip:
		return "skip"
	case Primitive:
		return "primitive"
	case TypeParam:
		return "param"
	case Derived:
		return "derived"
	case SumHelper:
		return "sum-helper"
	case Assumed:
		return "assumed"
	case Custom:
		return "custom"
	case Sequence:
		return "sequence"
	case Fixed:
		return "fixed"
	case Opaque:
		return "opaque"
	}
	return "invalid"
}

// FieldPlan is the resolver's verdict for one field or element type.
type FieldPlan struct {
	Field    shape.Field
	Type     decl.TypeRef
	Strategy Strategy
	Elem     *FieldPlan
	Func     string // Custom
	Method   string // Derived, when the target renamed its method
	Opts     attr.Bag
}

// VariantPlan is the plan of one sum variant.
type VariantPlan struct {
	Name string
	Plan Plan
}

// Plan mirrors a Shape with a verdict per field.
type Plan struct {
	Kind     shape.Kind
	Fields   []FieldPlan
	Variants []VariantPlan
}

// Active returns the fields that are not skipped, in order.
func (p Plan) Active() []FieldPlan {
	out := make([]FieldPlan, 0, len(p.Fields))
	for _, f := range p.Fields {
		if f.Strategy != Skip {
			out = append(out, f)
		}
	}
	return out
}

// Approval is the resolver's go-ahead for one (type, capability, mode)
// triple. The emitter refuses to build from anything else.
type Approval struct {
	Type       *shape.TypeDescription
	Capability string
	Mode       Mode
	Options    *attr.Options
	Plan       Plan
	approved   bool
}

// Approve records a successful resolution.
func Approve(td *shape.TypeDescription, capability string, mode Mode, opts *attr.Options, plan Plan) *Approval {
	if opts == nil {
		opts = &attr.Options{Capability: capability}
	}
	return &Approval{Type: td, Capability: capability, Mode: mode, Options: opts, Plan: plan, approved: true}
}

// Approved reports whether a was produced by Approve.
func (a *Approval) Approved() bool { return a != nil && a.approved }
