//go:build !shapegen_nodefault

package capability

import (
	"strings"

	"shapegen/internal/attr"
	"shapegen/internal/decl"
	"shapegen/internal/diag"
	"shapegen/internal/emit"
	"shapegen/internal/shape"
	"shapegen/meta"
)

func init() {
	Register(&Capability{
		Name:    "typeinfo",
		Summary: "runtime descriptor: ShapeInfo() meta.Type, ShapeInfoS() meta.Type for sums",
		Default: true,
		Modes:   emit.NewModeSet(emit.Hosted, emit.Freestanding),
		Schema: attr.Schema{
			Decl: map[string]attr.Spec{
				"namespace": {Kind: attr.String, Effect: "module path the type is reported under"},
				"name":      {Kind: attr.String, Effect: "type name reported instead of the declared one"},
			},
		},
		Elements: true,
		Bounds: map[emit.Mode][]string{
			emit.Hosted:       {AnyBound},
			emit.Freestanding: {AnyBound},
		},
		NamedOpaque:  true,
		Precondition: typeinfoPrecondition,
		Emit:         emitTypeinfo,
	})
}

// typeinfoNamespace returns the namespace segments td is reported under.
func typeinfoNamespace(td *shape.TypeDescription, opts *attr.Options) ([]string, error) {
	path, ok := opts.Decl.String("namespace")
	if !ok {
		if _, err := meta.NewNamespace(td.Namespace...); err != nil {
			return nil, err
		}
		return td.Namespace, nil
	}
	ns, err := shape.Namespace(path)
	if err != nil {
		return nil, err
	}
	return ns.Segments(), nil
}

func typeinfoPrecondition(td *shape.TypeDescription, _ emit.Mode, plan emit.Plan) error {
	if _, renamed := td.DirectiveArg("typeinfo", "namespace"); !renamed {
		if _, err := meta.NewNamespace(td.Namespace...); err != nil {
			return diag.NewShapeError(diag.ShpBadNamespace, diag.At(td.Name, td.Span),
				"package path %q: %v; set //shapegen:typeinfo namespace=\"...\"", td.PkgPath, err)
		}
	}
	params := paramNames(td)
	err := walkPlan(td, plan, func(loc diag.Location, _ *shape.Shape, p emit.Plan) error {
		for _, fp := range p.Active() {
			if !describable(fp.Type, params) {
				return &diag.CapabilityError{
					Code:       diag.CapUnsupportedFieldType,
					Capability: "typeinfo",
					Loc:        loc.AtField(fp.Field.Name, fp.Field.Index, fp.Field.Span),
					Rule:       "no type id for a type argument of " + fp.Type.Text,
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, dir := range td.Directives {
		if dir.Verb != "typeinfo" {
			continue
		}
		for _, arg := range dir.Args {
			loc := diag.At(td.Name, arg.Span)
			switch arg.Key {
			case "namespace":
				if _, err := shape.Namespace(arg.Value); err != nil {
					return &diag.AttributeError{Code: diag.AtrKindMismatch, Capability: "typeinfo", Key: arg.Key, Loc: loc, Msg: "invalid module path: " + err.Error()}
				}
			case "name":
				if !meta.IsIdentifier(arg.Value) {
					return &diag.AttributeError{Code: diag.AtrKindMismatch, Capability: "typeinfo", Key: arg.Key, Loc: loc, Msg: "not an identifier"}
				}
			}
		}
	}
	return nil
}

func emitTypeinfo(b *emit.Builder) {
	a := b.Approval()
	td := a.Type
	segs, err := typeinfoNamespace(td, a.Options)
	if err != nil {
		b.Fail("namespace passed resolution but does not parse: %v", err)
	}
	ti := &typeinfoGen{b: b, meta: b.UseMeta(), td: td, ns: nsExpr(b.UseMeta(), segs)}
	name := a.Options.Decl.StringOr("name", td.Name)
	value := ti.typ(name, true, &td.Shape, a.Plan)
	result := []emit.Param{{Type: string(ti.meta) + ".Type"}}

	fn := "ShapeInfo"
	doc := "ShapeInfo describes the shape of " + td.Name + "."
	if td.Shape.Kind == shape.Sum {
		fn = emit.HelperName("ShapeInfo", td.Name)
		doc = fn + " describes the sum " + td.Name + " and its variants."
	}

	var body []emit.Stmt
	if b.Mode() == emit.Freestanding && !td.Generic() {
		// Built once at package init; the accessor only copies the header.
		static := "shapeInfo" + emit.HelperName("", td.Name)
		b.Add(emit.Fragment{Kind: emit.FragVar, Name: static, Value: value})
		body = []emit.Stmt{emit.Ret(emit.Ident(static))}
	} else {
		body = []emit.Stmt{emit.Ret(value)}
	}

	if td.Shape.Kind == shape.Sum {
		b.Func(doc, fn, nil, result, body)
		return
	}
	b.Method(doc, fn, nil, result, body)
}

type typeinfoGen struct {
	b    *emit.Builder
	meta emit.Expr
	td   *shape.TypeDescription
	ns   emit.Expr
}

func nsExpr(m emit.Expr, segs []string) emit.Expr {
	args := make([]emit.Expr, len(segs))
	for i, s := range segs {
		args[i] = emit.Str(s)
	}
	return emit.Call(emit.Sel(m, "MustNamespace"), args...)
}

func (g *typeinfoGen) typ(name string, top bool, s *shape.Shape, p emit.Plan) emit.Expr {
	m := g.meta
	var params []emit.Expr
	if top {
		for _, prm := range g.td.Params {
			params = append(params, emit.Call(emit.Sel(m, "Param"), emit.Str(prm.Name)))
		}
	}
	elems := []emit.Expr{
		emit.KeyValue("ID", emit.Call(emit.Sel(m, "Custom"), append([]emit.Expr{emit.Str(name), g.ns}, params...)...)),
	}
	switch s.Kind {
	case shape.Record:
		elems = append(elems, emit.KeyValue("Shape", emit.Sel(m, "ShapeRecord")))
	case shape.Tuple:
		elems = append(elems, emit.KeyValue("Shape", emit.Sel(m, "ShapeTuple")))
	case shape.Sum:
		elems = append(elems, emit.KeyValue("Shape", emit.Sel(m, "ShapeSum")))
		var variants []emit.Expr
		for _, arm := range g.b.Arms(s, p) {
			variants = append(variants, emit.Composite("",
				emit.KeyValue("Name", emit.Str(arm.Name)),
				emit.KeyValue("Type", g.typ(arm.Name, false, &arm.Variant.Shape, arm.Plan)),
			))
		}
		if len(variants) > 0 {
			elems = append(elems, emit.KeyValue("Variants", emit.Composite("[]"+string(m)+".Variant", variants...)))
		}
		return emit.Composite(string(m)+".Type", elems...)
	}

	var fields []emit.Expr
	for _, fp := range g.b.Fields(s, p) {
		fields = append(fields, emit.Composite("",
			emit.KeyValue("Name", emit.Str(fp.Field.Name)),
			emit.KeyValue("Type", g.id(fp.Type)),
		))
	}
	if len(fields) > 0 {
		elems = append(elems, emit.KeyValue("Fields", emit.Composite("[]"+string(m)+".Field", fields...)))
	}
	return emit.Composite(string(m)+".Type", elems...)
}

// id renders the TypeID of a field type token.
func (g *typeinfoGen) id(ref decl.TypeRef) emit.Expr {
	m := g.meta
	switch ref.Kind {
	case decl.RefPrimitive:
		p, ok := meta.PrimitiveOf(ref.Text)
		if !ok {
			g.b.Fail("no primitive id for %s", ref.Text)
		}
		return emit.Call(emit.Sel(m, "Prim"), emit.Sel(m, title(p.String())))
	case decl.RefParam:
		return emit.Call(emit.Sel(m, "Param"), emit.Str(ref.Text))
	case decl.RefSlice:
		return emit.Call(emit.Sel(m, "Slice"), g.id(*ref.Elem))
	case decl.RefArray:
		return emit.Call(emit.Sel(m, "Array"), emit.Expr(ref.Len), g.id(*ref.Elem))
	case decl.RefNamed:
		base := ref.BaseName()
		ns := g.ns
		if pkg, name, ok := strings.Cut(base, "."); ok {
			base, ns = name, nsExpr(m, []string{pkg})
		}
		args := []emit.Expr{emit.Str(base), ns}
		for _, arg := range ref.TypeArgs() {
			args = append(args, g.id(decl.ParseTypeRef(arg, paramNames(g.td))))
		}
		return emit.Call(emit.Sel(m, "Custom"), args...)
	}
	g.b.Fail("no type id for %s field type %s", ref.Kind, ref.Text)
	return ""
}

func paramNames(td *shape.TypeDescription) []string {
	names := make([]string, len(td.Params))
	for i, p := range td.Params {
		names[i] = p.Name
	}
	return names
}

// describable reports whether every type argument inside ref has a type id.
func describable(ref decl.TypeRef, params []string) bool {
	switch ref.Kind {
	case decl.RefPrimitive:
		_, ok := meta.PrimitiveOf(ref.Text)
		return ok
	case decl.RefParam:
		return true
	case decl.RefSlice, decl.RefArray:
		return ref.Elem != nil && describable(*ref.Elem, params)
	case decl.RefNamed:
		for _, arg := range ref.TypeArgs() {
			if !describable(decl.ParseTypeRef(arg, params), params) {
				return false
			}
		}
		return true
	}
	return false
}

// title upper-cases the first ASCII letter: "uint8" -> "Uint8".
func title(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
