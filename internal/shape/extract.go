package shape

import (
	"slices"
	"strconv"
	"strings"

	"shapegen/internal/decl"
	"shapegen/internal/diag"
	"shapegen/meta"
)

// Lookup resolves sibling declarations of the same compilation unit.
type Lookup interface {
	Lookup(name string) (*decl.Decl, bool)
	VariantsOf(marker string) []*decl.Decl
}

// Extract normalizes one raw declaration. Failures are *diag.ShapeError and
// concern only this declaration. The namespace is recorded unvalidated;
// only capabilities reporting it check it.
func Extract(d *decl.Decl, batch Lookup) (*TypeDescription, error) {
	loc := diag.At(d.Name, d.NameSpan)
	td := &TypeDescription{
		Name:       d.Name,
		PkgPath:    d.PkgPath,
		PkgName:    d.PkgName,
		Namespace:  namespaceSegments(d.PkgPath),
		Derive:     d.Derive,
		Directives: d.Directives,
		Span:       d.Span,
	}
	var err error
	if td.Params, err = params(d, loc); err != nil {
		return nil, err
	}

	x := extractor{batch: batch, visiting: map[string]bool{d.Name: true}}
	switch d.Kind {
	case decl.KindStruct, decl.KindTuple:
		td.Shape, err = x.product(d, loc)
	case decl.KindSum:
		if len(td.Params) > 0 {
			return nil, diag.NewShapeError(diag.ShpBadTypeParam, loc, "sum types cannot have type parameters")
		}
		td.Shape, err = x.sum(d, loc)
	default:
		return nil, diag.NewShapeError(diag.ShpUnknownKind, loc,
			"only structs, tuple structs and sealed interfaces can be derived")
	}
	if err != nil {
		return nil, err
	}
	return td, nil
}

// Namespace derives a meta namespace from an import path. Dots and dashes,
// common in module paths, are folded into underscores first.
func Namespace(pkgPath string) (meta.Namespace, error) {
	return meta.NewNamespace(namespaceSegments(pkgPath)...)
}

var segmentReplacer = strings.NewReplacer(".", "_", "-", "_")

func namespaceSegments(pkgPath string) []string {
	if pkgPath == "" {
		return nil
	}
	segs := strings.Split(pkgPath, "/")
	for i, s := range segs {
		segs[i] = segmentReplacer.Replace(s)
	}
	return segs
}

func params(d *decl.Decl, loc diag.Location) ([]Param, error) {
	if len(d.Params) == 0 {
		return nil, nil
	}
	out := make([]Param, 0, len(d.Params))
	seen := make(map[string]bool, len(d.Params))
	for _, p := range d.Params {
		if !decl.IsIdent(p.Name) || seen[p.Name] {
			return nil, diag.NewShapeError(diag.ShpBadTypeParam, diag.At(loc.Type, p.Span),
				"invalid or duplicate type parameter %q", p.Name)
		}
		seen[p.Name] = true
		bound := strings.TrimSpace(p.Bound)
		if bound == "" {
			bound = "any"
		}
		out = append(out, Param{Name: p.Name, Bound: bound, Span: p.Span})
	}
	return out, nil
}

type extractor struct {
	batch    Lookup
	visiting map[string]bool
}

// product extracts record and tuple shapes.
func (x *extractor) product(d *decl.Decl, loc diag.Location) (Shape, error) {
	s := Shape{Kind: Record}
	if d.Kind == decl.KindTuple {
		s.Kind = Tuple
	}
	seen := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		index := len(s.Fields)
		floc := loc.AtField(f.Name, index, f.Span)
		if f.Embedded {
			return Shape{}, diag.NewShapeError(diag.ShpEmbeddedField, floc, "embedded field %s is not supported", f.Type.Text)
		}
		if f.Name == "_" {
			continue
		}
		if seen[f.Name] {
			return Shape{}, diag.NewShapeError(diag.ShpDuplicateField, floc, "duplicate field %s", f.Name)
		}
		seen[f.Name] = true
		field := Field{
			Name:    f.Name,
			Index:   index,
			Type:    f.Type,
			Tag:     f.Tag,
			TagSpan: f.TagSpan,
			Span:    f.Span,
		}
		if s.Kind == Tuple {
			if want := "F" + strconv.Itoa(index); f.Name != want {
				return Shape{}, diag.NewShapeError(diag.ShpTupleFieldName, floc,
					"tuple field at position %d must be named %s, found %s", index, want, f.Name)
			}
			field.Name = ""
		}
		s.Fields = append(s.Fields, field)
	}
	return s, nil
}

// sum extracts a sum shape. Variant order is the explicit variants list when
// present, otherwise declaration order of the marker implementations.
func (x *extractor) sum(d *decl.Decl, loc diag.Location) (Shape, error) {
	s := Shape{Kind: Sum, Marker: d.Marker}

	type ref struct {
		name string
		loc  diag.Location
		d    *decl.Decl
	}
	var refs []ref
	switch {
	case len(d.Variants) > 0:
		for _, a := range d.Variants {
			vloc := loc.InVariant(a.Key, a.Span)
			vd, ok := x.batch.Lookup(a.Key)
			if !ok {
				return Shape{}, diag.NewShapeError(diag.ShpUnknownVariant, vloc, "variant %s is not declared in package", a.Key)
			}
			if d.Marker != "" && !implements(vd, d.Marker) {
				return Shape{}, diag.NewShapeError(diag.ShpVariantKind, vloc, "variant %s does not implement %s()", a.Key, d.Marker)
			}
			refs = append(refs, ref{name: a.Key, loc: vloc, d: vd})
		}
	case d.Marker != "":
		for _, vd := range x.batch.VariantsOf(d.Marker) {
			refs = append(refs, ref{name: vd.Name, loc: loc.InVariant(vd.Name, vd.NameSpan), d: vd})
		}
	default:
		return Shape{}, diag.NewShapeError(diag.ShpNoMarker, loc, "sum has neither a marker method nor a variants list")
	}

	seen := make(map[string]bool, len(refs))
	for _, r := range refs {
		if seen[r.name] {
			return Shape{}, diag.NewShapeError(diag.ShpDuplicateVariant, r.loc, "variant %s listed twice", r.name)
		}
		seen[r.name] = true
		if len(r.d.Params) > 0 {
			return Shape{}, diag.NewShapeError(diag.ShpBadTypeParam, r.loc, "variant %s cannot have type parameters", r.name)
		}
		var (
			vs  Shape
			err error
		)
		switch r.d.Kind {
		case decl.KindStruct, decl.KindTuple:
			vs, err = x.product(r.d, r.loc)
		case decl.KindSum:
			if x.visiting[r.name] {
				return Shape{}, diag.NewShapeError(diag.ShpSumCycle, r.loc, "variant %s contains itself", r.name)
			}
			x.visiting[r.name] = true
			vs, err = x.sum(r.d, r.loc)
			delete(x.visiting, r.name)
		default:
			return Shape{}, diag.NewShapeError(diag.ShpVariantKind, r.loc, "variant %s must be a struct or a sealed interface", r.name)
		}
		if err != nil {
			return Shape{}, err
		}
		s.Variants = append(s.Variants, Variant{
			Name:    r.name,
			Shape:   vs,
			Span:    r.loc.Span,
			Pointer: d.Marker != "" && slices.Contains(r.d.PtrMarkers, d.Marker),
		})
	}
	return s, nil
}

// implements accepts marker receivers and nested sums sealed by the same marker.
func implements(d *decl.Decl, marker string) bool {
	if d.Kind == decl.KindSum && d.Marker == marker {
		return true
	}
	for _, m := range d.MarkerOf {
		if m == marker {
			return true
		}
	}
	return false
}
