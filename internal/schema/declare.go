package schema

import (
	"strconv"
	"strings"

	"shapegen/internal/decl"
	"shapegen/internal/emit"
)

// Declarations returns one unit per schema type declaring it in Go, in file
// order. Sums also carry the marker methods of their variants. Types of an
// unknown kind are left out; the extractor reports them.
func (s *Schema) Declarations() []*emit.Unit {
	imports := s.imports()
	var units []*emit.Unit
	for _, t := range s.File.Types {
		var frags []emit.Fragment
		switch KindOf(t.Kind) {
		case decl.KindStruct, decl.KindTuple:
			frags = append(frags, emit.Fragment{
				Kind: emit.FragTypeDecl,
				Doc:  docLines(t.Doc),
				Name: t.Name,
				Spec: &emit.TypeSpec{TypeParams: typeParams(t.Params), Fields: structFields(t)},
			})
		case decl.KindSum:
			marker := MarkerName(t.Name)
			frags = append(frags, emit.Fragment{
				Kind: emit.FragTypeDecl,
				Doc:  docLines(t.Doc),
				Name: t.Name,
				Spec: &emit.TypeSpec{Interface: true, Methods: []string{marker}},
			})
			for _, v := range t.Variants {
				frags = append(frags, emit.Fragment{Kind: emit.FragMethod, Name: marker, Recv: &emit.Param{Type: v}})
			}
		default:
			continue
		}
		units = append(units, emit.Declarations(t.Name, frags, usedImports(imports, t)))
	}
	return units
}

func (s *Schema) imports() []emit.Facility {
	out := make([]emit.Facility, 0, len(s.File.Imports))
	for _, path := range s.File.Imports {
		name := path
		if i := strings.LastIndexByte(path, '/'); i >= 0 {
			name = path[i+1:]
		}
		out = append(out, emit.Facility{Path: path, Name: name, Modes: emit.NewModeSet(emit.AllModes...)})
	}
	return out
}

// usedImports keeps the imports whose package name prefixes a field type.
func usedImports(imports []emit.Facility, t Type) []emit.Facility {
	var out []emit.Facility
	for _, fac := range imports {
		for _, f := range t.Fields {
			if referencesPackage(f.Type, fac.Name) {
				out = append(out, fac)
				break
			}
		}
	}
	return out
}

func referencesPackage(typ, pkg string) bool {
	for i := strings.Index(typ, pkg+"."); i >= 0; {
		if i == 0 || !isIdentByte(typ[i-1]) {
			return true
		}
		next := strings.Index(typ[i+1:], pkg+".")
		if next < 0 {
			break
		}
		i += 1 + next
	}
	return false
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func typeParams(params []Param) []emit.Param {
	out := make([]emit.Param, 0, len(params))
	for _, p := range params {
		bound := p.Bound
		if bound == "" {
			bound = "any"
		}
		out = append(out, emit.Param{Name: p.Name, Type: bound})
	}
	return out
}

func structFields(t Type) []emit.StructField {
	out := make([]emit.StructField, 0, len(t.Fields))
	for j, f := range t.Fields {
		name := f.Name
		if name == "" && KindOf(t.Kind) == decl.KindTuple {
			name = "F" + strconv.Itoa(j)
		}
		out = append(out, emit.StructField{Name: name, Type: f.Type, Tag: structTag(f.Options)})
	}
	return out
}

func docLines(doc string) []string {
	doc = strings.TrimSpace(doc)
	if doc == "" {
		return nil
	}
	return strings.Split(doc, "\n")
}
