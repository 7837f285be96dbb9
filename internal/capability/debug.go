//go:build !shapegen_nodefault

package capability

import (
	"strings"

	"shapegen/internal/attr"
	"shapegen/internal/emit"
	"shapegen/internal/shape"
)

func init() {
	Register(&Capability{
		Name:    "debug",
		Summary: "debug text: String() string hosted, AppendDebug(dst []byte) []byte freestanding",
		Default: true,
		Modes:   emit.NewModeSet(emit.Hosted, emit.Freestanding),
		Schema: attr.Schema{
			Decl: map[string]attr.Spec{
				"rename":  {Kind: attr.String, Effect: "type label printed instead of the type name"},
				"compact": {Kind: attr.Flag, Effect: "omit field names"},
			},
			Field: map[string]attr.Spec{
				"skip":   optSkip,
				"assume": optAssume,
				"rename": {Kind: attr.String, Effect: "label printed instead of the field name"},
				"redact": {Kind: attr.Flag, Effect: "print <redacted> instead of the value"},
			},
		},
		Elements: true,
		Bounds: map[emit.Mode][]string{
			emit.Hosted: {AnyBound},
		},
		Emit: emitDebug,
	})
}

// textOut accumulates debug text as statements, merging adjacent literals.
// Hosted output writes to sb (strings.Builder), freestanding output appends
// to dst.
type textOut struct {
	b       *emit.Builder
	hosted  bool
	pending strings.Builder
	stmts   []emit.Stmt
}

func newTextOut(b *emit.Builder) *textOut {
	return &textOut{b: b, hosted: b.Mode() == emit.Hosted}
}

func (t *textOut) lit(s string) { t.pending.WriteString(s) }

func (t *textOut) flush() {
	if t.pending.Len() == 0 {
		return
	}
	text := t.pending.String()
	t.pending.Reset()
	t.write(emit.Str(text))
}

func (t *textOut) stmt(s emit.Stmt) {
	t.flush()
	t.stmts = append(t.stmts, s)
}

// str writes a string-valued expression.
func (t *textOut) str(x emit.Expr) {
	t.flush()
	t.write(x)
}

func (t *textOut) write(x emit.Expr) {
	if t.hosted {
		t.stmts = append(t.stmts, emit.Do(emit.Call("sb.WriteString", x)))
		return
	}
	t.stmts = append(t.stmts, emit.Set("dst", "=", emit.Call("append", "dst", emit.Spread(x))))
}

// conv writes a basic value through strconv: the format function hosted,
// its Append counterpart freestanding.
func (t *textOut) conv(format, appendFn string, args ...emit.Expr) {
	sc := t.b.Use(emit.Strconv)
	if t.hosted {
		t.str(emit.Call(emit.Sel(sc, format), args...))
		return
	}
	t.stmt(emit.Set("dst", "=", emit.Call(emit.Sel(sc, appendFn), append([]emit.Expr{"dst"}, args...)...)))
}

func (t *textOut) done() []emit.Stmt {
	t.flush()
	return t.stmts
}

// child starts a nested body (loop or switch arm) sharing the builder.
func (t *textOut) child() *textOut {
	return &textOut{b: t.b, hosted: t.hosted}
}

func emitDebug(b *emit.Builder) {
	a := b.Approval()
	td := a.Type
	hosted := b.Mode() == emit.Hosted
	label := a.Options.Decl.StringOr("rename", td.Name)
	compact := a.Options.Decl.Flag("compact")

	out := newTextOut(b)
	if td.Shape.Kind == shape.Sum {
		debugSum(out, &td.Shape, a.Plan, compact)
	} else {
		debugProduct(out, label, &td.Shape, a.Plan, "v", compact)
	}
	body := out.done()

	if hosted {
		body = append([]emit.Stmt{emit.Var{Name: "sb", Type: string(b.Use(emit.Strings)) + ".Builder"}}, body...)
		body = append(body, emit.Ret("sb.String()"))
		if td.Shape.Kind == shape.Sum {
			name := emit.HelperName("String", td.Name)
			b.Func(name+" formats whichever variant v holds.", name,
				[]emit.Param{{Name: "v", Type: td.Name}},
				[]emit.Param{{Type: "string"}}, body)
			return
		}
		b.Method("String formats v with its fields in declaration order.", "String", nil,
			[]emit.Param{{Type: "string"}}, body)
		return
	}

	body = append(body, emit.Ret("dst"))
	bytesT := []emit.Param{{Type: "[]byte"}}
	if td.Shape.Kind == shape.Sum {
		name := emit.HelperName("AppendDebug", td.Name)
		b.Func(name+" appends the debug form of whichever variant v holds to dst.", name,
			[]emit.Param{{Name: "dst", Type: "[]byte"}, {Name: "v", Type: td.Name}},
			bytesT, body)
		return
	}
	b.Method("AppendDebug appends the debug form of v to dst.", "AppendDebug",
		[]emit.Param{{Name: "dst", Type: "[]byte"}}, bytesT, body)
}

// debugProduct prints Name{A: 1, B: 2}, Name{1, 2} when compact, and
// Name(1, 2) for tuples.
func debugProduct(out *textOut, label string, s *shape.Shape, p emit.Plan, recv string, compact bool) {
	open, closing := "{", "}"
	if s.Kind == shape.Tuple {
		open, closing = "(", ")"
	}
	out.lit(label + open)
	first := true
	for _, fp := range out.b.Fields(s, p) {
		if fp.Strategy == emit.Skip {
			continue
		}
		if !first {
			out.lit(", ")
		}
		first = false
		if s.Kind != shape.Tuple && !compact {
			out.lit(fp.Opts.StringOr("rename", fp.Field.Name) + ": ")
		}
		if fp.Opts.Flag("redact") {
			out.lit("<redacted>")
			continue
		}
		debugValue(out, emit.Sel(emit.Ident(recv), fp.Field.Accessor()), &fp, 0)
	}
	out.lit(closing)
}

func debugValue(out *textOut, x emit.Expr, fp *emit.FieldPlan, depth int) {
	b := out.b
	switch fp.Strategy {
	case emit.Primitive:
		debugPrimitive(out, x, fp.Type.Text)
		return
	case emit.TypeParam:
		if out.hosted {
			out.stmt(emit.Do(emit.Call(emit.Sel(b.Use(emit.Fmt), "Fprint"), "&sb", x)))
			return
		}
	case emit.Derived, emit.Assumed:
		if out.hosted {
			out.str(emit.Call(emit.Sel(x, "String")))
			return
		}
		out.stmt(emit.Set("dst", "=", emit.Call(emit.Sel(x, "AppendDebug"), "dst")))
		return
	case emit.SumHelper:
		if out.hosted {
			out.str(emit.Call(emit.Ident(emit.HelperName("String", fp.Type.BaseName())), x))
			return
		}
		out.stmt(emit.Set("dst", "=", emit.Call(emit.Ident(emit.HelperName("AppendDebug", fp.Type.BaseName())), "dst", x)))
		return
	case emit.Sequence, emit.Fixed:
		i := suffixed("i", depth)
		out.lit("[")
		inner := out.child()
		inner.stmt(emit.If{Cond: emit.Bin(">", emit.Ident(i), "0"), Then: lit(out, ", ")})
		debugValue(inner, emit.Index(x, emit.Ident(i)), fp.Elem, depth+1)
		out.stmt(emit.Range{Key: i, X: x, Body: inner.done()})
		out.lit("]")
		return
	}
	b.Fail("debug cannot format %s value of field %s", fp.Strategy, fp.Field.Label())
}

// lit returns the statements writing a single literal.
func lit(out *textOut, s string) []emit.Stmt {
	t := out.child()
	t.lit(s)
	return t.done()
}

func debugPrimitive(out *textOut, x emit.Expr, typ string) {
	switch typ {
	case "bool":
		out.conv("FormatBool", "AppendBool", x)
	case "string":
		out.conv("Quote", "AppendQuote", x)
	case "rune":
		out.conv("QuoteRune", "AppendQuoteRune", x)
	case "int", "int8", "int16", "int32", "int64":
		out.conv("FormatInt", "AppendInt", emit.Conv("int64", x), "10")
	case "uint", "uint8", "uint16", "uint32", "uint64", "uintptr", "byte":
		out.conv("FormatUint", "AppendUint", emit.Conv("uint64", x), "10")
	case "float32":
		out.conv("FormatFloat", "AppendFloat", emit.Conv("float64", x), "'g'", "-1", "32")
	case "float64":
		out.conv("FormatFloat", "AppendFloat", x, "'g'", "-1", "64")
	case "complex64", "complex128":
		// strconv has no AppendComplex.
		bits := "128"
		if typ == "complex64" {
			bits = "64"
		}
		out.str(emit.Call(emit.Sel(out.b.Use(emit.Strconv), "FormatComplex"), emit.Conv("complex128", x), "'g'", "-1", emit.Expr(bits)))
	default:
		out.b.Fail("debug has no format for %s", typ)
	}
}

// debugSum switches on the variant; each arm prints the variant's own
// product form.
func debugSum(out *textOut, s *shape.Shape, p emit.Plan, compact bool) {
	arms := out.b.Arms(s, p)
	sw := typeSwitch("v", "v", bindsValue(arms), arms, func(arm emit.Arm) []emit.Stmt {
		inner := out.child()
		if arm.Plan.Kind == shape.Sum {
			debugSum(inner, &arm.Variant.Shape, arm.Plan, compact)
		} else {
			debugProduct(inner, arm.Name, &arm.Variant.Shape, arm.Plan, "v", compact)
		}
		return inner.done()
	}, emit.Case{Exprs: []emit.Expr{"nil"}, Body: lit(out, "<nil>")})
	out.stmt(sw)
}
