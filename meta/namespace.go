package meta

import (
	"errors"
	"strconv"
)

// ErrMissingSegments is returned for a module path without any segment.
var ErrMissingSegments = errors.New("meta: namespace has no segments")

// InvalidIdentifierError reports the first segment that is not an identifier.
type InvalidIdentifierError struct {
	Segment int
}

func (e *InvalidIdentifierError) Error() string {
	return "meta: namespace segment " + strconv.Itoa(e.Segment) + " is not an identifier"
}

// Namespace is the ordered list of path segments a type is defined in.
// The first segment names the module. Predeclared types use the empty
// Prelude namespace.
type Namespace struct {
	segments []string
}

// NewNamespace validates segments and builds a Namespace.
func NewNamespace(segments ...string) (Namespace, error) {
	if len(segments) == 0 {
		return Namespace{}, ErrMissingSegments
	}
	for i, seg := range segments {
		if !IsIdentifier(seg) {
			return Namespace{}, &InvalidIdentifierError{Segment: i}
		}
	}
	return Namespace{segments: segments}, nil
}

// MustNamespace is NewNamespace for segments known to be valid, as in
// generated code.
func MustNamespace(segments ...string) Namespace {
	ns, err := NewNamespace(segments...)
	if err != nil {
		panic(err)
	}
	return ns
}

// NamespaceFromModulePath splits a slash separated path into a Namespace.
func NamespaceFromModulePath(path string) (Namespace, error) {
	return NewNamespace(splitPath(path)...)
}

// Prelude returns the namespace of predeclared types.
func Prelude() Namespace {
	return Namespace{}
}

// Segments returns the namespace segments. The slice must not be modified.
func (n Namespace) Segments() []string {
	return n.segments
}

// IsPrelude reports whether n is the empty prelude namespace.
func (n Namespace) IsPrelude() bool {
	return len(n.segments) == 0
}

func (n Namespace) String() string {
	out := ""
	for i, seg := range n.segments {
		if i > 0 {
			out += "/"
		}
		out += seg
	}
	return out
}

// Equal compares two namespaces segment by segment.
func (n Namespace) Equal(o Namespace) bool {
	if len(n.segments) != len(o.segments) {
		return false
	}
	for i := range n.segments {
		if n.segments[i] != o.segments[i] {
			return false
		}
	}
	return true
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '/' {
			out = append(out, path[start:i])
			start = i + 1
		}
	}
	return out
}

// IsIdentifier reports whether s is an ASCII identifier: a letter or
// underscore followed by letters, digits or underscores.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
