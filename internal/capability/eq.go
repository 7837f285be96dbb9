package capability

import (
	"shapegen/internal/attr"
	"shapegen/internal/emit"
	"shapegen/internal/shape"
)

func init() {
	Register(&Capability{
		Name:    "eq",
		Summary: "structural equality: Equal(o T) bool, EqualS(a, b S) bool for sums",
		Modes:   emit.NewModeSet(emit.Hosted, emit.Freestanding),
		Schema: attr.Schema{
			Decl: map[string]attr.Spec{
				"method": {Kind: attr.Ident, Effect: "name of the generated method (default Equal)"},
			},
			Field: map[string]attr.Spec{
				"skip":   optSkip,
				"assume": optAssume,
				"with":   {Kind: attr.Ident, Effect: "compare with func(a, b F) bool"},
			},
		},
		Elements:  true,
		MethodKey: "method",
		Bounds: map[emit.Mode][]string{
			emit.Hosted:       {"comparable"},
			emit.Freestanding: {"comparable"},
		},
		Emit: emitEq,
	})
}

func emitEq(b *emit.Builder) {
	a := b.Approval()
	td := a.Type
	boolResult := []emit.Param{{Type: "bool"}}
	if td.Shape.Kind == shape.Sum {
		name := emit.HelperName("Equal", td.Name)
		b.Func(name+" reports whether a and b hold the same variant with equal fields.",
			name,
			[]emit.Param{{Name: "a", Type: td.Name}, {Name: "b", Type: td.Name}},
			boolResult,
			eqSum(b, &td.Shape, a.Plan, 0))
		return
	}
	method := a.Options.Decl.StringOr("method", "Equal")
	body := eqFields(b, &td.Shape, a.Plan, "v", "o")
	body = append(body, emit.Ret("true"))
	b.Method(method+" reports whether v and o are equal field by field.",
		method,
		[]emit.Param{{Name: "o", Type: b.TypeName()}},
		boolResult,
		body)
}

func eqFields(b *emit.Builder, s *shape.Shape, p emit.Plan, x, y string) []emit.Stmt {
	var out []emit.Stmt
	for _, fp := range b.Fields(s, p) {
		acc := fp.Field.Accessor()
		out = append(out, eqValue(b, emit.Sel(emit.Ident(x), acc), emit.Sel(emit.Ident(y), acc), &fp, 0)...)
	}
	return out
}

func eqValue(b *emit.Builder, x, y emit.Expr, fp *emit.FieldPlan, depth int) []emit.Stmt {
	unless := func(cond emit.Expr) []emit.Stmt {
		return []emit.Stmt{emit.If{Cond: cond, Then: []emit.Stmt{emit.Ret("false")}}}
	}
	switch fp.Strategy {
	case emit.Skip:
		return nil
	case emit.Primitive, emit.TypeParam, emit.Opaque:
		return unless(emit.Bin("!=", x, y))
	case emit.Derived, emit.Assumed:
		method := fp.Method
		if method == "" {
			method = "Equal"
		}
		return unless(emit.Not(emit.Call(emit.Sel(x, method), y)))
	case emit.SumHelper:
		return unless(emit.Not(emit.Call(emit.Ident(emit.HelperName("Equal", fp.Type.BaseName())), x, y)))
	case emit.Custom:
		return unless(emit.Not(emit.Call(emit.Ident(fp.Func), x, y)))
	case emit.Sequence:
		if b.Mode() == emit.Hosted && isValueElem(fp.Elem) {
			return unless(emit.Not(emit.Call(emit.Sel(b.Use(emit.Slices), "Equal"), x, y)))
		}
		i := suffixed("i", depth)
		return append(
			unless(emit.Bin("!=", emit.Call("len", x), emit.Call("len", y))),
			emit.Range{Key: i, X: x, Body: eqValue(b, emit.Index(x, emit.Ident(i)), emit.Index(y, emit.Ident(i)), fp.Elem, depth+1)},
		)
	case emit.Fixed:
		if isValueElem(fp.Elem) {
			return unless(emit.Bin("!=", x, y))
		}
		i := suffixed("i", depth)
		return []emit.Stmt{
			emit.Range{Key: i, X: x, Body: eqValue(b, emit.Index(x, emit.Ident(i)), emit.Index(y, emit.Ident(i)), fp.Elem, depth+1)},
		}
	}
	b.Fail("eq cannot compare %s value of field %s", fp.Strategy, fp.Field.Label())
	return nil
}

// eqSum compares a and b arm by arm. Nested sums recurse into an inner
// switch on the narrowed a.
func eqSum(b *emit.Builder, s *shape.Shape, p emit.Plan, depth int) []emit.Stmt {
	arms := b.Arms(s, p)
	sw := typeSwitch("a", emit.Ident("a"), bindsValue(arms), arms, func(arm emit.Arm) []emit.Stmt {
		if arm.Plan.Kind == shape.Sum {
			return eqSum(b, &arm.Variant.Shape, arm.Plan, depth+1)
		}
		lhs := emit.Expr("_")
		if armUses(arm) {
			lhs = "b"
		}
		body := []emit.Stmt{
			emit.Assign{Lhs: []emit.Expr{lhs, "ok"}, Tok: ":=", Rhs: []emit.Expr{emit.Assert("b", arm.Type)}},
			emit.If{Cond: "!ok", Then: []emit.Stmt{emit.Ret("false")}},
		}
		body = append(body, eqFields(b, &arm.Variant.Shape, arm.Plan, "a", "b")...)
		return append(body, emit.Ret("true"))
	})
	return []emit.Stmt{sw, emit.Ret(emit.Bin("&&", emit.Bin("==", "a", "nil"), emit.Bin("==", "b", "nil")))}
}
