// Package shape holds the normalized TypeDescription intermediate
// representation and the Extractor that builds it from raw declarations.
//
// All three shape kinds travel through the same Shape value; only sums
// carry Variants, only records and tuples carry Fields.
package shape

import (
	"strconv"

	"shapegen/internal/decl"
	"shapegen/internal/source"
)

// Kind is the structural kind of a shape.
type Kind uint8

const (
	Record Kind = iota + 1
	Tuple
	Sum
)

func (k Kind) String() string {
	switch k {
	case Record:
		return "record"
	case Tuple:
		return "tuple"
	case Sum:
		return "sum"
	}
	return "invalid"
}

// Param is a generic type parameter with its bound text.
type Param struct {
	Name  string      `msgpack:"name"`
	Bound string      `msgpack:"bound"`
	Span  source.Span `msgpack:"span"`
}

// Field is a record or tuple field. Name is empty for tuple fields; Index
// is the position within the shape and is the identity of tuple fields.
type Field struct {
	Name    string       `msgpack:"name,omitempty"`
	Index   int          `msgpack:"index"`
	Type    decl.TypeRef `msgpack:"type"`
	Tag     string       `msgpack:"tag,omitempty"`
	TagSpan source.Span  `msgpack:"tag_span"`
	Span    source.Span  `msgpack:"span"`
}

// Accessor returns the Go selector addressing the field on a value.
// Tuple fields are addressed positionally as F<index>.
func (f Field) Accessor() string {
	if f.Name == "" {
		return "F" + strconv.Itoa(f.Index)
	}
	return f.Name
}

// Label is the field's display identity: its name, or #index for tuples.
func (f Field) Label() string {
	if f.Name == "" {
		return "#" + strconv.Itoa(f.Index)
	}
	return f.Name
}

// Variant is one alternative of a sum. Each variant is a declared Go type
// with its own shape.
type Variant struct {
	Name  string      `msgpack:"name"`
	Shape Shape       `msgpack:"shape"`
	Span  source.Span `msgpack:"span"`
	// Pointer is set when the marker has a pointer receiver, so the
	// variant is held as *Name.
	Pointer bool `msgpack:"pointer,omitempty"`
}

// GoType is the type a sum value holds for this variant.
func (v Variant) GoType() string {
	if v.Pointer {
		return "*" + v.Name
	}
	return v.Name
}

// Shape is the tagged-variant structure of a declaration.
type Shape struct {
	Kind     Kind      `msgpack:"kind"`
	Fields   []Field   `msgpack:"fields,omitempty"`
	Variants []Variant `msgpack:"variants,omitempty"`
	// Marker is the sealing method of a sum; empty for schema sums.
	Marker string `msgpack:"marker,omitempty"`
}

// TypeDescription is the normalized view of one declaration. It is owned
// by the pass that extracted it and is never shared across declarations.
type TypeDescription struct {
	Name       string           `msgpack:"name"`
	PkgPath    string           `msgpack:"pkg_path"`
	PkgName    string           `msgpack:"pkg_name"`
	Namespace  []string         `msgpack:"namespace"`
	Params     []Param          `msgpack:"params,omitempty"`
	Shape      Shape            `msgpack:"shape"`
	Derive     []decl.Arg       `msgpack:"derive"`
	Directives []decl.Directive `msgpack:"directives,omitempty"`
	Span       source.Span      `msgpack:"span"`
}

// Generic reports whether the declaration has type parameters.
func (td *TypeDescription) Generic() bool {
	return len(td.Params) > 0
}

// TypeArgs returns "[K, V]" for generic declarations and "" otherwise.
func (td *TypeDescription) TypeArgs() string {
	if len(td.Params) == 0 {
		return ""
	}
	out := "["
	for i, p := range td.Params {
		if i > 0 {
			out += ", "
		}
		out += p.Name
	}
	return out + "]"
}

// Param looks up a type parameter by name.
func (td *TypeDescription) Param(name string) (Param, bool) {
	for _, p := range td.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Directive returns the first directive with the given verb.
func (td *TypeDescription) Directive(verb string) (decl.Directive, bool) {
	for _, d := range td.Directives {
		if d.Verb == verb {
			return d, true
		}
	}
	return decl.Directive{}, false
}

// DirectiveArg returns the value of a key=value argument of a verb
// directive.
func (td *TypeDescription) DirectiveArg(verb, key string) (string, bool) {
	return decl.LookupArg(td.Directives, verb, key)
}

// Walk visits every record/tuple shape of td in declaration order, passing
// the variant path ("" for the top level).
func (td *TypeDescription) Walk(fn func(path []string, s *Shape)) {
	walk(nil, &td.Shape, fn)
}

func walk(path []string, s *Shape, fn func([]string, *Shape)) {
	if s.Kind != Sum {
		fn(path, s)
		return
	}
	for i := range s.Variants {
		v := &s.Variants[i]
		walk(append(path[:len(path):len(path)], v.Name), &v.Shape, fn)
	}
}
