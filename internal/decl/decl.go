// Package decl holds the raw, frontend-independent view of an annotated type
// declaration: what the source says, before any normalisation or validation.
package decl

import (
	"shapegen/internal/source"
)

// Kind is the syntactic kind of a declaration as the frontend saw it.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindStruct       // record
	KindTuple        // struct marked //shapegen:tuple, or schema kind "tuple"
	KindSum          // sealed interface or schema kind "sum"
)

func (k Kind) String() string {
	switch k {
	case KindStruct:
		return "struct"
	case KindTuple:
		return "tuple"
	case KindSum:
		return "sum"
	default:
		return "unknown"
	}
}

// Directive is one `//shapegen:<verb> args...` comment line (or the schema
// equivalent). Args keep their raw text; the attr package interprets them.
type Directive struct {
	Verb string
	Args []Arg
	Span source.Span
}

// Arg is a single `key` or `key=value` token of a directive.
type Arg struct {
	Key      string
	Value    string
	HasValue bool
	Quoted   bool
	Span     source.Span
}

// TypeParam is a declared type parameter with its constraint text.
type TypeParam struct {
	Name  string
	Bound string
	Span  source.Span
}

// Field is one struct field in declaration order.
type Field struct {
	Name     string
	Embedded bool
	Type     TypeRef
	Tag      string // raw value of the shapegen:"..." tag key
	TagSpan  source.Span
	Span     source.Span
}

// Decl is a raw annotated declaration.
type Decl struct {
	Name       string
	PkgPath    string
	PkgName    string
	Kind       Kind
	Params     []TypeParam
	Fields     []Field
	Derive     []Arg // capability names from //shapegen:derive
	Directives []Directive
	Marker     string // sum marker method name
	Variants   []Arg  // explicit //shapegen:variants list, in order
	Span       source.Span
	NameSpan   source.Span
	// Annotated is false for declarations that are only referenced as sum
	// variants and carry no //shapegen:derive of their own.
	Annotated bool
	// MarkerOf lists the marker methods this type implements, in source order.
	MarkerOf []string
	// PtrMarkers lists the markers implemented on the pointer receiver.
	PtrMarkers []string
}

// DirectivesFor returns the directives whose verb equals name.
func (d *Decl) DirectivesFor(name string) []Directive {
	var out []Directive
	for _, dir := range d.Directives {
		if dir.Verb == name {
			out = append(out, dir)
		}
	}
	return out
}

// DirectiveValue returns the value given to key by the last verb directive
// carrying it.
func (d *Decl) DirectiveValue(verb, key string) (string, bool) {
	return LookupArg(d.Directives, verb, key)
}

// LookupArg returns the value of the last key=value argument of a verb
// directive in dirs.
func LookupArg(dirs []Directive, verb, key string) (string, bool) {
	var (
		value string
		found bool
	)
	for _, dir := range dirs {
		if dir.Verb != verb {
			continue
		}
		for _, a := range dir.Args {
			if a.Key == key && a.HasValue {
				value, found = a.Value, true
			}
		}
	}
	return value, found
}

// HasDirective reports whether a bare directive (e.g. "tuple") is present.
func (d *Decl) HasDirective(name string) bool {
	for _, dir := range d.Directives {
		if dir.Verb == name {
			return true
		}
	}
	return false
}

// DerivesCapability reports whether the declaration requests capability name.
func (d *Decl) DerivesCapability(name string) bool {
	for _, a := range d.Derive {
		if a.Key == name {
			return true
		}
	}
	return false
}

// Batch is every declaration of one package in source order.
type Batch struct {
	PkgPath string
	PkgName string
	Decls   []*Decl
	index   map[string]int
}

// NewBatch indexes decls by name. Later duplicates are ignored by Lookup.
func NewBatch(pkgPath, pkgName string, decls []*Decl) *Batch {
	b := &Batch{PkgPath: pkgPath, PkgName: pkgName, Decls: decls, index: make(map[string]int, len(decls))}
	for i, d := range decls {
		if _, dup := b.index[d.Name]; !dup {
			b.index[d.Name] = i
		}
	}
	return b
}

// Lookup finds a declaration of the batch by name.
func (b *Batch) Lookup(name string) (*Decl, bool) {
	if b == nil {
		return nil, false
	}
	i, ok := b.index[name]
	if !ok {
		return nil, false
	}
	return b.Decls[i], true
}

// Annotated returns the declarations that requested at least one capability.
func (b *Batch) Annotated() []*Decl {
	out := make([]*Decl, 0, len(b.Decls))
	for _, d := range b.Decls {
		if d.Annotated {
			out = append(out, d)
		}
	}
	return out
}

// VariantsOf lists batch declarations implementing marker, in source order.
func (b *Batch) VariantsOf(marker string) []*Decl {
	var out []*Decl
	for _, d := range b.Decls {
		for _, m := range d.MarkerOf {
			if m == marker {
				out = append(out, d)
				break
			}
		}
	}
	return out
}
