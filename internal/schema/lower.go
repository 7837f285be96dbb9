package schema

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"shapegen/internal/decl"
	"shapegen/internal/diag"
	"shapegen/internal/goscan"
	"shapegen/internal/source"
)

// MarkerName is the marker method a schema sum declares for its variants.
func MarkerName(sum string) string { return "is" + sum }

// KindOf maps a schema kind to the declaration kind. An empty kind is a
// record; anything unknown is left for the extractor to reject.
func KindOf(kind string) decl.Kind {
	switch kind {
	case "", "record", "struct":
		return decl.KindStruct
	case "tuple":
		return decl.KindTuple
	case "sum":
		return decl.KindSum
	default:
		return decl.KindUnknown
	}
}

type lowering struct {
	s       *Schema
	bag     *diag.Bag
	pkgPath string
	pkgName string
}

func (l *lowering) errorf(sp source.Span, format string, args ...any) {
	l.bag.Add(diag.NewError(diag.IOParseFile, sp, fmt.Sprintf(format, args...)))
}

func (l *lowering) lower() []*decl.Decl {
	types := l.s.File.Types
	decls := make([]*decl.Decl, 0, len(types))
	byName := make(map[string]*decl.Decl, len(types))
	for i := range types {
		d := l.decl(i, &types[i])
		decls = append(decls, d)
		if _, dup := byName[d.Name]; !dup {
			byName[d.Name] = d
		}
	}
	// Variants implement their sum's marker, in the order the sum lists them.
	for _, d := range decls {
		if d.Kind != decl.KindSum {
			continue
		}
		for _, v := range d.Variants {
			if vd, ok := byName[v.Key]; ok && !slices.Contains(vd.MarkerOf, d.Marker) {
				vd.MarkerOf = append(vd.MarkerOf, d.Marker)
			}
		}
	}
	return decls
}

func (l *lowering) decl(i int, t *Type) *decl.Decl {
	nameSpan := l.s.spans.typ(i)
	d := &decl.Decl{
		Name:      t.Name,
		PkgPath:   l.pkgPath,
		PkgName:   l.pkgName,
		Kind:      KindOf(t.Kind),
		Span:      nameSpan,
		NameSpan:  nameSpan,
		Annotated: len(t.Derive) > 0,
	}
	if !decl.IsIdent(t.Name) {
		l.errorf(nameSpan, "type name %q is not an identifier", t.Name)
	}
	for _, name := range t.Derive {
		d.Derive = append(d.Derive, decl.Arg{Key: name, Span: nameSpan})
	}
	if len(d.Derive) > 0 {
		d.Directives = append(d.Directives, decl.Directive{Verb: "derive", Args: d.Derive, Span: nameSpan})
	}
	d.Directives = append(d.Directives, l.options(t, nameSpan)...)

	paramNames := make([]string, 0, len(t.Params))
	for _, p := range t.Params {
		d.Params = append(d.Params, decl.TypeParam{Name: p.Name, Bound: p.Bound, Span: nameSpan})
		paramNames = append(paramNames, p.Name)
	}

	switch d.Kind {
	case decl.KindSum:
		d.Marker = MarkerName(t.Name)
		if len(t.Fields) > 0 {
			l.errorf(nameSpan, "sum %s cannot declare fields", t.Name)
		}
		for k, v := range t.Variants {
			d.Variants = append(d.Variants, decl.Arg{Key: v, Span: l.s.spans.variant(i, k)})
		}
	default:
		if len(t.Variants) > 0 {
			l.errorf(nameSpan, "%s %s cannot list variants", t.Kind, t.Name)
		}
		for j, f := range t.Fields {
			d.Fields = append(d.Fields, l.field(d, j, f, l.s.spans.field(i, j), paramNames))
		}
	}
	return d
}

// options turns the per-capability option tables into directives, in
// capability order then key order.
func (l *lowering) options(t *Type, sp source.Span) []decl.Directive {
	caps := make([]string, 0, len(t.Options))
	for c := range t.Options {
		caps = append(caps, c)
	}
	slices.Sort(caps)
	var out []decl.Directive
	for _, c := range caps {
		opts := t.Options[c]
		keys := make([]string, 0, len(opts))
		for k := range opts {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		dir := decl.Directive{Verb: c, Span: sp}
		for _, k := range keys {
			arg := decl.Arg{Key: k, Span: sp}
			switch v := opts[k].(type) {
			case bool:
				if !v {
					continue
				}
			case string:
				arg.Value, arg.HasValue, arg.Quoted = v, true, true
			case int:
				arg.Value, arg.HasValue = strconv.Itoa(v), true
			case int64:
				arg.Value, arg.HasValue = strconv.FormatInt(v, 10), true
			default:
				l.errorf(sp, "option %s.%s of %s: unsupported value %v", c, k, t.Name, v)
				continue
			}
			dir.Args = append(dir.Args, arg)
		}
		out = append(out, dir)
	}
	return out
}

func (l *lowering) field(d *decl.Decl, j int, f Field, sp source.Span, params []string) decl.Field {
	name := f.Name
	if d.Kind == decl.KindTuple && name == "" {
		name = "F" + strconv.Itoa(j)
	}
	if f.Type == "" {
		l.errorf(sp, "field %s of %s has no type", name, d.Name)
	}
	return decl.Field{
		Name:    name,
		Type:    decl.ParseTypeRef(strings.TrimSpace(f.Type), params),
		Tag:     FieldTag(f.Options),
		TagSpan: source.Span{File: sp.File, Start: sp.Start, End: sp.Start},
		Span:    sp,
	}
}

// FieldTag renders field options as the value of a shapegen struct tag:
// one "cap:opt,opt" group per capability, in capability order.
func FieldTag(options map[string][]string) string {
	caps := make([]string, 0, len(options))
	for c, opts := range options {
		if len(opts) > 0 {
			caps = append(caps, c)
		}
	}
	slices.Sort(caps)
	groups := make([]string, 0, len(caps))
	for _, c := range caps {
		groups = append(groups, c+":"+strings.Join(options[c], ","))
	}
	return strings.Join(groups, " ")
}

// structTag is the full struct tag for a field, or "" without options.
func structTag(options map[string][]string) string {
	tag := FieldTag(options)
	if tag == "" {
		return ""
	}
	return goscan.TagKey + ":" + strconv.Quote(tag)
}
