// Package attr interprets configuration directives. Each capability owns a
// Schema of recognized option keys and value kinds; Interpret validates the
// directives of one declaration against one capability's schema.
package attr

import (
	"slices"
	"strconv"

	"shapegen/internal/source"
)

// Kind is the value kind an option expects.
type Kind uint8

const (
	Flag   Kind = iota + 1 // bare key, no value
	Ident                  // Go identifier, optionally package-qualified
	String                 // free text, quoted or bare
	Int                    // decimal integer
)

func (k Kind) String() string {
	switch k {
	case Flag:
		return "flag"
	case Ident:
		return "identifier"
	case String:
		return "string"
	case Int:
		return "integer"
	}
	return "invalid"
}

// Spec documents one recognized option: its kind and its effect.
type Spec struct {
	Kind   Kind
	Effect string
}

// Schema lists the options a capability recognizes on declarations and on
// fields.
type Schema struct {
	Decl  map[string]Spec
	Field map[string]Spec
}

// DeclKeys returns the recognized declaration keys in sorted order.
func (s Schema) DeclKeys() []string { return sortedKeys(s.Decl) }

// FieldKeys returns the recognized field keys in sorted order.
func (s Schema) FieldKeys() []string { return sortedKeys(s.Field) }

func sortedKeys(m map[string]Spec) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Value is one validated option.
type Value struct {
	Key  string
	Kind Kind
	Raw  string
	Span source.Span
}

// Bag is an ordered, validated option set (the OptionsBag).
type Bag struct {
	values []Value
}

func (b Bag) lookup(key string) (Value, bool) {
	for _, v := range b.values {
		if v.Key == key {
			return v, true
		}
	}
	return Value{}, false
}

// Has reports whether key was given.
func (b Bag) Has(key string) bool {
	_, ok := b.lookup(key)
	return ok
}

// Flag reports whether the flag key was set.
func (b Bag) Flag(key string) bool {
	v, ok := b.lookup(key)
	return ok && v.Kind == Flag
}

// String returns the raw value of a string or identifier option.
func (b Bag) String(key string) (string, bool) {
	v, ok := b.lookup(key)
	if !ok || v.Kind == Flag {
		return "", false
	}
	return v.Raw, true
}

// StringOr returns the option's value or def.
func (b Bag) StringOr(key, def string) string {
	if s, ok := b.String(key); ok {
		return s
	}
	return def
}

// Int returns the value of an integer option.
func (b Bag) Int(key string) (int, bool) {
	v, ok := b.lookup(key)
	if !ok || v.Kind != Int {
		return 0, false
	}
	n, err := strconv.Atoi(v.Raw)
	return n, err == nil
}

// Values returns the options in the order they were written.
func (b Bag) Values() []Value {
	return slices.Clone(b.values)
}

// Len returns the number of options.
func (b Bag) Len() int { return len(b.values) }

// FieldKey addresses a field inside a (possibly nested) sum.
type FieldKey struct {
	Variant string // dotted variant path, "" at top level
	Index   int
}

// Options is the Interpreter's result for one (declaration, capability) pair.
type Options struct {
	Capability string
	Decl       Bag
	fields     map[FieldKey]Bag
}

// Field returns the options of the field at index inside variant path.
func (o *Options) Field(path []string, index int) Bag {
	if o == nil {
		return Bag{}
	}
	return o.fields[FieldKey{Variant: joinPath(path), Index: index}]
}

func joinPath(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += "."
		}
		out += p
	}
	return out
}
