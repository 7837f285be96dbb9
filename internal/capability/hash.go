package capability

import (
	"shapegen/internal/attr"
	"shapegen/internal/emit"
	"shapegen/internal/shape"
)

// FNV-1a parameters used by freestanding Hash64.
const (
	fnvOffset = "14695981039346656037"
	fnvPrime  = "1099511628211"
)

func init() {
	Register(&Capability{
		Name:    "hash",
		Summary: "hashing: Hash(h *maphash.Hash) hosted, Hash64(seed uint64) uint64 freestanding",
		Modes:   emit.NewModeSet(emit.Hosted, emit.Freestanding),
		Schema: attr.Schema{
			Field: map[string]attr.Spec{
				"skip":   optSkip,
				"assume": optAssume,
			},
		},
		Elements: true,
		Bounds: map[emit.Mode][]string{
			emit.Hosted: {"comparable"},
		},
		Emit: emitHash,
	})
}

func emitHash(b *emit.Builder) {
	a := b.Approval()
	td := a.Type
	if b.Mode() == emit.Hosted {
		hashT := "*" + string(b.Use(emit.Maphash)) + ".Hash"
		if td.Shape.Kind == shape.Sum {
			name := emit.HelperName("Hash", td.Name)
			b.Func(name+" feeds the variant of v and its fields to h.",
				name,
				[]emit.Param{{Name: "h", Type: hashT}, {Name: "v", Type: td.Name}},
				nil,
				[]emit.Stmt{hashSum(b, &td.Shape, a.Plan)})
			return
		}
		b.Method("Hash feeds the fields of v to h in declaration order.",
			"Hash",
			[]emit.Param{{Name: "h", Type: hashT}},
			nil,
			hashFields(b, &td.Shape, a.Plan))
		return
	}

	u64 := []emit.Param{{Type: "uint64"}}
	body := []emit.Stmt{emit.Set("h", ":=", emit.Bin("^", "seed", fnvOffset))}
	if td.Shape.Kind == shape.Sum {
		name := emit.HelperName("Hash64", td.Name)
		body = append(body, hashSum(b, &td.Shape, a.Plan), emit.Ret("h"))
		b.Func(name+" mixes the variant of v and its fields into seed.",
			name,
			[]emit.Param{{Name: "seed", Type: "uint64"}, {Name: "v", Type: td.Name}},
			u64,
			body)
		return
	}
	body = append(body, hashFields(b, &td.Shape, a.Plan)...)
	body = append(body, emit.Ret("h"))
	b.Method("Hash64 mixes the fields of v into seed (FNV-1a).",
		"Hash64",
		[]emit.Param{{Name: "seed", Type: "uint64"}},
		u64,
		body)
}

func hashFields(b *emit.Builder, s *shape.Shape, p emit.Plan) []emit.Stmt {
	var out []emit.Stmt
	for _, fp := range b.Fields(s, p) {
		out = append(out, hashValue(b, emit.Sel("v", fp.Field.Accessor()), &fp, 0)...)
	}
	return out
}

// mix folds one 64-bit word into h.
func mix(w emit.Expr) emit.Stmt {
	return emit.Set("h", "=", emit.Bin("*", emit.Bin("^", "h", w), fnvPrime))
}

// writeComparable feeds a comparable value to the hosted hasher.
func writeComparable(b *emit.Builder, x emit.Expr) emit.Stmt {
	return emit.Do(emit.Call(emit.Sel(b.Use(emit.Maphash), "WriteComparable"), "h", x))
}

func hashValue(b *emit.Builder, x emit.Expr, fp *emit.FieldPlan, depth int) []emit.Stmt {
	hosted := b.Mode() == emit.Hosted
	i := suffixed("i", depth)
	switch fp.Strategy {
	case emit.Skip:
		return nil
	case emit.TypeParam:
		if hosted {
			return []emit.Stmt{writeComparable(b, x)}
		}
	case emit.Primitive:
		if hosted {
			if fp.Type.Text == "string" {
				return []emit.Stmt{emit.Do(emit.Call(emit.Sel("h", "WriteString"), x))}
			}
			return []emit.Stmt{writeComparable(b, x)}
		}
		return hashWord(b, x, fp.Type.Text, i)
	case emit.Derived, emit.Assumed:
		if hosted {
			return []emit.Stmt{emit.Do(emit.Call(emit.Sel(x, "Hash"), "h"))}
		}
		return []emit.Stmt{emit.Set("h", "=", emit.Call(emit.Sel(x, "Hash64"), "h"))}
	case emit.SumHelper:
		if hosted {
			return []emit.Stmt{emit.Do(emit.Call(emit.Ident(emit.HelperName("Hash", fp.Type.BaseName())), "h", x))}
		}
		return []emit.Stmt{emit.Set("h", "=", emit.Call(emit.Ident(emit.HelperName("Hash64", fp.Type.BaseName())), "h", x))}
	case emit.Sequence, emit.Fixed:
		if hosted && fp.Strategy == emit.Fixed && isValueElem(fp.Elem) {
			return []emit.Stmt{writeComparable(b, x)}
		}
		length := emit.Call("len", x)
		var out []emit.Stmt
		if hosted {
			out = append(out, writeComparable(b, length))
		} else {
			out = append(out, mix(emit.Conv("uint64", length)))
		}
		return append(out, emit.Range{Key: i, X: x, Body: hashValue(b, emit.Index(x, emit.Ident(i)), fp.Elem, depth+1)})
	}
	b.Fail("hash cannot mix %s value of field %s", fp.Strategy, fp.Field.Label())
	return nil
}

// hashWord mixes a basic value into h without any hosted facility.
func hashWord(b *emit.Builder, x emit.Expr, typ, i string) []emit.Stmt {
	switch typ {
	case "bool":
		return []emit.Stmt{emit.If{Cond: x, Then: []emit.Stmt{mix("1")}, Else: []emit.Stmt{mix("0")}}}
	case "string":
		return []emit.Stmt{
			mix(emit.Conv("uint64", emit.Call("len", x))),
			emit.Range{Key: i, X: emit.Call("len", x), Body: []emit.Stmt{mix(emit.Conv("uint64", emit.Index(x, emit.Ident(i))))}},
		}
	case "float32", "float64":
		return []emit.Stmt{mix(emit.Call(emit.Sel(b.Use(emit.Math), "Float64bits"), emit.Conv("float64", x)))}
	case "complex64", "complex128":
		c := emit.Conv("complex128", x)
		bits := emit.Sel(b.Use(emit.Math), "Float64bits")
		return []emit.Stmt{
			mix(emit.Call(bits, emit.Call("real", c))),
			mix(emit.Call(bits, emit.Call("imag", c))),
		}
	}
	return []emit.Stmt{mix(emit.Conv("uint64", x))}
}

// hashSum dispatches on the dynamic variant, mixing its position first so
// variants with equal fields hash apart.
func hashSum(b *emit.Builder, s *shape.Shape, p emit.Plan) emit.Stmt {
	hosted := b.Mode() == emit.Hosted
	arms := b.Arms(s, p)
	tag := func(n int) emit.Stmt {
		if hosted {
			return writeComparable(b, emit.Int(n))
		}
		return mix(emit.Int(n))
	}
	return typeSwitch("v", "v", bindsValue(arms), arms, func(arm emit.Arm) []emit.Stmt {
		body := []emit.Stmt{tag(arm.Index)}
		if arm.Plan.Kind == shape.Sum {
			return append(body, hashSum(b, &arm.Variant.Shape, arm.Plan))
		}
		return append(body, hashFields(b, &arm.Variant.Shape, arm.Plan)...)
	}, emit.Case{Exprs: []emit.Expr{"nil"}, Body: []emit.Stmt{tag(len(arms))}})
}
