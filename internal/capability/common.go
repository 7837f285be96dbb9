package capability

import (
	"strconv"

	"shapegen/internal/attr"
	"shapegen/internal/diag"
	"shapegen/internal/emit"
	"shapegen/internal/shape"
)

// Field options shared by most capabilities.
var (
	optSkip   = attr.Spec{Kind: attr.Flag, Effect: "leave the field out"}
	optAssume = attr.Spec{Kind: attr.Flag, Effect: "trust the field type to provide the capability"}
)

// touches reports whether emitting p reads any field value.
func touches(p emit.Plan) bool {
	if p.Kind == shape.Sum {
		for _, v := range p.Variants {
			if touches(v.Plan) {
				return true
			}
		}
		return false
	}
	return len(p.Active()) > 0
}

// typeSwitch builds `switch bind := x.(type)` over the arms of a sum. The
// binding is dropped when no arm reads it, which Go would reject as unused.
func typeSwitch(bind string, x emit.Expr, used bool, arms []emit.Arm, body func(emit.Arm) []emit.Stmt, tail ...emit.Case) emit.Stmt {
	sw := emit.Switch{TypeSwitch: true, X: x}
	if used {
		sw.Bind = bind
	}
	for _, arm := range arms {
		sw.Cases = append(sw.Cases, emit.Case{Exprs: []emit.Expr{emit.Ident(arm.Type)}, Body: body(arm)})
	}
	sw.Cases = append(sw.Cases, tail...)
	return sw
}

// armUses reports whether an arm's body reads the switch binding.
func armUses(arm emit.Arm) bool { return touches(arm.Plan) }

// bindsValue reports whether any arm reads the switch binding, either
// through a field or by switching on it again for a nested sum.
func bindsValue(arms []emit.Arm) bool {
	for _, arm := range arms {
		if arm.Plan.Kind == shape.Sum || armUses(arm) {
			return true
		}
	}
	return false
}

// suffixed names loop variables by nesting depth so inner loops never
// shadow outer ones.
func suffixed(name string, depth int) string {
	if depth == 0 {
		return name
	}
	return name + strconv.Itoa(depth)
}

// isValueElem reports whether a plan's values compare and copy with the
// builtin operators.
func isValueElem(fp *emit.FieldPlan) bool {
	return fp != nil && (fp.Strategy == emit.Primitive || fp.Strategy == emit.TypeParam || fp.Strategy == emit.Opaque)
}

// planVisitor receives every product plan with its location.
type planVisitor func(loc diag.Location, s *shape.Shape, p emit.Plan) error

// walkPlan visits the product plans of td in declaration order, pairing
// each with its shape and a location naming the variant path.
func walkPlan(td *shape.TypeDescription, plan emit.Plan, fn planVisitor) error {
	return walkPlanAt(diag.At(td.Name, td.Span), &td.Shape, plan, fn)
}

func walkPlanAt(loc diag.Location, s *shape.Shape, p emit.Plan, fn planVisitor) error {
	if s.Kind != shape.Sum {
		return fn(loc, s, p)
	}
	for i := range s.Variants {
		v := &s.Variants[i]
		if i >= len(p.Variants) {
			break
		}
		if err := walkPlanAt(loc.InVariant(v.Name, v.Span), &v.Shape, p.Variants[i].Plan, fn); err != nil {
			return err
		}
	}
	return nil
}
