package capability

import (
	"fmt"

	"shapegen/internal/attr"
	"shapegen/internal/decl"
	"shapegen/internal/diag"
	"shapegen/internal/emit"
	"shapegen/internal/shape"
)

// Resolve decides whether td can derive c in mode. On success it returns
// the approval the emitter builds from; otherwise a *diag.CapabilityError
// (or, from preconditions, *diag.AttributeError) naming the first offending
// variant and field. Resolution is a pure function of its inputs.
func Resolve(td *shape.TypeDescription, opts *attr.Options, c *Capability, mode emit.Mode, env Env) (*emit.Approval, error) {
	loc := diag.At(td.Name, td.Span)
	if !c.Supports(mode) {
		return nil, &diag.CapabilityError{
			Code:       diag.CapUnsupportedMode,
			Capability: c.Name,
			Loc:        loc,
			Rule:       fmt.Sprintf("%s has no %s emission (supported: %s)", c.Name, mode, c.Modes),
		}
	}
	r := &resolver{c: c, td: td, opts: opts, mode: mode, env: env}
	plan, err := r.shape(nil, &td.Shape, loc)
	if err != nil {
		return nil, err
	}
	if c.Precondition != nil {
		if err := c.Precondition(td, mode, plan); err != nil {
			return nil, err
		}
	}
	return emit.Approve(td, c.Name, mode, opts, plan), nil
}

type resolver struct {
	c    *Capability
	td   *shape.TypeDescription
	opts *attr.Options
	mode emit.Mode
	env  Env
}

func (r *resolver) shape(path []string, s *shape.Shape, loc diag.Location) (emit.Plan, error) {
	plan := emit.Plan{Kind: s.Kind}
	if s.Kind == shape.Sum {
		// Zero variants: vacuously satisfied.
		for i := range s.Variants {
			v := &s.Variants[i]
			sub, err := r.shape(append(path[:len(path):len(path)], v.Name), &v.Shape, loc.InVariant(v.Name, v.Span))
			if err != nil {
				return emit.Plan{}, err
			}
			plan.Variants = append(plan.Variants, emit.VariantPlan{Name: v.Name, Plan: sub})
		}
		return plan, nil
	}

	active := 0
	for _, f := range s.Fields {
		fp, err := r.field(path, f, loc.AtField(f.Name, f.Index, f.Span))
		if err != nil {
			return emit.Plan{}, err
		}
		if fp.Strategy != emit.Skip {
			active++
		}
		plan.Fields = append(plan.Fields, fp)
	}
	if active < r.c.MinFields {
		return emit.Plan{}, &diag.CapabilityError{
			Code:       diag.CapMissingRequiredField,
			Capability: r.c.Name,
			Loc:        loc,
			Rule:       fmt.Sprintf("needs at least %d field(s), found %d", r.c.MinFields, active),
		}
	}
	return plan, nil
}

func (r *resolver) field(path []string, f shape.Field, loc diag.Location) (emit.FieldPlan, error) {
	bag := r.opts.Field(path, f.Index)
	fp := emit.FieldPlan{Field: f, Type: f.Type, Opts: bag}
	switch {
	case bag.Flag("skip"):
		fp.Strategy = emit.Skip
		return fp, nil
	case bag.Has("with"):
		fp.Func, _ = bag.String("with")
		fp.Strategy = emit.Custom
		return fp, nil
	case bag.Flag("assume"):
		fp.Strategy = emit.Assumed
		return fp, nil
	case r.c.AnyField:
		fp.Strategy = emit.Opaque
		return fp, nil
	}
	classified, err := r.classify(f.Type, loc)
	if err != nil {
		return emit.FieldPlan{}, err
	}
	classified.Field, classified.Opts = f, bag
	return classified, nil
}

func (r *resolver) classify(ref decl.TypeRef, loc diag.Location) (emit.FieldPlan, error) {
	fp := emit.FieldPlan{Type: ref}
	fail := func(code diag.Code, format string, args ...any) (emit.FieldPlan, error) {
		return emit.FieldPlan{}, &diag.CapabilityError{
			Code:       code,
			Capability: r.c.Name,
			Loc:        loc,
			Rule:       fmt.Sprintf(format, args...),
		}
	}

	if ref.Kind != decl.RefPrimitive && ref.Kind != decl.RefParam && r.env.assumed(r.c.Name, ref) {
		fp.Strategy = emit.Assumed
		return fp, nil
	}

	switch ref.Kind {
	case decl.RefPrimitive:
		fp.Strategy = emit.Primitive
	case decl.RefParam:
		p, _ := r.td.Param(ref.Text)
		if !r.c.AcceptsBound(r.mode, p.Bound) {
			return fail(diag.CapParamBound, "type parameter %s (%s) does not provide %s in %s mode", ref.Text, p.Bound, r.c.Name, r.mode)
		}
		fp.Strategy = emit.TypeParam
	case decl.RefNamed:
		if r.c.NamedOpaque {
			fp.Strategy = emit.Opaque
			return fp, nil
		}
		d, ok := r.env.derives(ref, r.c.Name)
		if !ok {
			return fail(diag.CapFieldUnsatisfied, "type %s does not derive %s; derive it, list it under [assume], or tag the field %s:assume", ref.Text, r.c.Name, r.c.Name)
		}
		fp.Strategy = emit.Derived
		if d.Kind == decl.KindSum {
			fp.Strategy = emit.SumHelper
		} else if r.c.MethodKey != "" {
			fp.Method, _ = d.DirectiveValue(r.c.Name, r.c.MethodKey)
		}
	case decl.RefSlice, decl.RefArray:
		if !r.c.Elements || ref.Elem == nil {
			return fail(diag.CapUnsupportedFieldType, "%s fields are not supported by %s", ref.Kind, r.c.Name)
		}
		elem, err := r.classify(*ref.Elem, loc)
		if err != nil {
			return emit.FieldPlan{}, err
		}
		fp.Elem = &elem
		fp.Strategy = emit.Sequence
		if ref.Kind == decl.RefArray {
			fp.Strategy = emit.Fixed
		}
	default:
		return fail(diag.CapUnsupportedFieldType, "%s field type %s is not supported by %s; list it under [assume] or tag the field", ref.Kind, ref.Text, r.c.Name)
	}
	return fp, nil
}
