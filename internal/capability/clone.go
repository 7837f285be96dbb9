//go:build !shapegen_nodefault

package capability

import (
	"shapegen/internal/attr"
	"shapegen/internal/emit"
	"shapegen/internal/shape"
)

func init() {
	Register(&Capability{
		Name:    "clone",
		Summary: "deep copy: Clone() T, CloneS(v S) S for sums (hosted only)",
		Default: true,
		Modes:   emit.NewModeSet(emit.Hosted),
		Schema: attr.Schema{
			Field: map[string]attr.Spec{
				"skip":    optSkip,
				"assume":  optAssume,
				"shallow": {Kind: attr.Flag, Effect: "copy the field by assignment"},
			},
		},
		Elements: true,
		Bounds: map[emit.Mode][]string{
			emit.Hosted: {AnyBound},
		},
		Emit: emitClone,
	})
}

func emitClone(b *emit.Builder) {
	a := b.Approval()
	td := a.Type
	if td.Shape.Kind == shape.Sum {
		name := emit.HelperName("Clone", td.Name)
		arms := b.Arms(&td.Shape, a.Plan)
		b.Func(name+" returns a deep copy of whichever variant v holds.", name,
			[]emit.Param{{Name: "v", Type: td.Name}},
			[]emit.Param{{Type: td.Name}},
			[]emit.Stmt{cloneSum(b, arms), emit.Ret("v")})
		return
	}
	b.Method("Clone returns a deep copy of v.", "Clone", nil,
		[]emit.Param{{Type: b.TypeName()}},
		cloneProduct(b, &td.Shape, a.Plan, false))
}

// cloneProduct copies v by value, then replaces the fields that share
// memory. ptr marks pointer variants, which get a fresh allocation.
func cloneProduct(b *emit.Builder, s *shape.Shape, p emit.Plan, ptr bool) []emit.Stmt {
	var deep []emit.Stmt
	for _, fp := range b.Fields(s, p) {
		if fp.Opts.Flag("shallow") {
			continue
		}
		acc := fp.Field.Accessor()
		deep = append(deep, cloneInto(b, emit.Sel("c", acc), emit.Sel("v", acc), &fp, 0, true)...)
	}
	if ptr {
		out := []emit.Stmt{
			emit.If{Cond: emit.Bin("==", "v", "nil"), Then: []emit.Stmt{emit.Ret("v")}},
			emit.Set("c", ":=", "*v"),
		}
		out = append(out, deep...)
		return append(out, emit.Ret("&c"))
	}
	if len(deep) == 0 {
		return []emit.Stmt{emit.Ret("v")}
	}
	out := []emit.Stmt{emit.Set("c", ":=", "v")}
	out = append(out, deep...)
	return append(out, emit.Ret("c"))
}

// cloneInto assigns a copy of src to dst. top marks fields already copied
// by value, where values need no statement at all.
func cloneInto(b *emit.Builder, dst, src emit.Expr, fp *emit.FieldPlan, depth int, top bool) []emit.Stmt {
	switch fp.Strategy {
	case emit.Skip:
		return nil
	case emit.Primitive, emit.TypeParam, emit.Opaque:
		if top {
			return nil
		}
		return []emit.Stmt{emit.Set(dst, "=", src)}
	case emit.Derived, emit.Assumed:
		return []emit.Stmt{emit.Set(dst, "=", emit.Call(emit.Sel(src, "Clone")))}
	case emit.SumHelper:
		return []emit.Stmt{emit.Set(dst, "=", emit.Call(emit.Ident(emit.HelperName("Clone", fp.Type.BaseName())), src))}
	case emit.Sequence:
		if isValueElem(fp.Elem) {
			return []emit.Stmt{emit.Set(dst, "=", emit.Call(emit.Sel(b.Use(emit.Slices), "Clone"), src))}
		}
		i := suffixed("i", depth)
		return []emit.Stmt{emit.If{
			Cond: emit.Bin("!=", src, "nil"),
			Then: []emit.Stmt{
				emit.Set(dst, "=", emit.Call("make", emit.Expr(fp.Type.Text), emit.Call("len", src))),
				emit.Range{Key: i, X: src, Body: cloneInto(b, emit.Index(dst, emit.Ident(i)), emit.Index(src, emit.Ident(i)), fp.Elem, depth+1, false)},
			},
		}}
	case emit.Fixed:
		if isValueElem(fp.Elem) {
			if top {
				return nil
			}
			return []emit.Stmt{emit.Set(dst, "=", src)}
		}
		i := suffixed("i", depth)
		return []emit.Stmt{
			emit.Range{Key: i, X: src, Body: cloneInto(b, emit.Index(dst, emit.Ident(i)), emit.Index(src, emit.Ident(i)), fp.Elem, depth+1, false)},
		}
	}
	b.Fail("clone cannot copy %s value of field %s", fp.Strategy, fp.Field.Label())
	return nil
}

func cloneSum(b *emit.Builder, arms []emit.Arm) emit.Stmt {
	return typeSwitch("v", "v", len(arms) > 0, arms, func(arm emit.Arm) []emit.Stmt {
		if arm.Plan.Kind == shape.Sum {
			return []emit.Stmt{cloneSum(b, b.Arms(&arm.Variant.Shape, arm.Plan)), emit.Ret("v")}
		}
		return cloneProduct(b, &arm.Variant.Shape, arm.Plan, arm.Variant.Pointer)
	})
}
