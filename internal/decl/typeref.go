package decl

import "strings"

// RefKind is a purely syntactic classification of a field's type token.
type RefKind uint8

const (
	RefOther RefKind = iota
	RefPrimitive
	RefNamed
	RefParam
	RefSlice
	RefArray
	RefPointer
	RefMap
)

func (k RefKind) String() string {
	switch k {
	case RefPrimitive:
		return "primitive"
	case RefNamed:
		return "named"
	case RefParam:
		return "type parameter"
	case RefSlice:
		return "slice"
	case RefArray:
		return "array"
	case RefPointer:
		return "pointer"
	case RefMap:
		return "map"
	default:
		return "other"
	}
}

// TypeRef is an opaque type token. The engine never resolves it; Kind and
// Elem only let capabilities pick an access pattern.
type TypeRef struct {
	Text string   `msgpack:"text"`
	Kind RefKind  `msgpack:"kind"`
	Elem *TypeRef `msgpack:"elem,omitempty"`
	Len  string   `msgpack:"len,omitempty"` // array length expression
}

func (r TypeRef) String() string { return r.Text }

// primitives lists Go's predeclared non-composite types.
var primitives = map[string]struct{}{
	"bool": {}, "string": {}, "byte": {}, "rune": {},
	"int": {}, "int8": {}, "int16": {}, "int32": {}, "int64": {},
	"uint": {}, "uint8": {}, "uint16": {}, "uint32": {}, "uint64": {}, "uintptr": {},
	"float32": {}, "float64": {}, "complex64": {}, "complex128": {},
}

// IsPrimitiveName reports whether name is a predeclared basic type.
func IsPrimitiveName(name string) bool {
	_, ok := primitives[name]
	return ok
}

// ParseTypeRef classifies a Go type expression written as text. params lists
// the declaration's type parameter names. It is used by the schema frontend;
// the Go frontend classifies from go/ast directly.
func ParseTypeRef(text string, params []string) TypeRef {
	text = strings.TrimSpace(text)
	ref := TypeRef{Text: text}
	switch {
	case strings.HasPrefix(text, "[]"):
		elem := ParseTypeRef(text[2:], params)
		ref.Kind, ref.Elem = RefSlice, &elem
	case strings.HasPrefix(text, "["):
		end := strings.IndexByte(text, ']')
		if end < 0 {
			return ref
		}
		elem := ParseTypeRef(text[end+1:], params)
		ref.Kind, ref.Elem, ref.Len = RefArray, &elem, strings.TrimSpace(text[1:end])
	case strings.HasPrefix(text, "*"):
		elem := ParseTypeRef(text[1:], params)
		ref.Kind, ref.Elem = RefPointer, &elem
	case strings.HasPrefix(text, "map["):
		ref.Kind = RefMap
	case IsPrimitiveName(text):
		ref.Kind = RefPrimitive
	case isIdentPath(text):
		ref.Kind = RefNamed
		for _, p := range params {
			if p == text {
				ref.Kind = RefParam
				break
			}
		}
	}
	return ref
}

// BaseName strips generic instantiation from a named type token:
// "List[int]" -> "List", "geo.Point" -> "geo.Point".
func (r TypeRef) BaseName() string {
	if i := strings.IndexByte(r.Text, '['); i > 0 {
		return r.Text[:i]
	}
	return r.Text
}

// TypeArgs splits the type arguments of an instantiated named type token:
// "Map[string, []int]" -> ["string", "[]int"]. It returns nil for other
// tokens.
func (r TypeRef) TypeArgs() []string {
	open := strings.IndexByte(r.Text, '[')
	if r.Kind != RefNamed || open <= 0 || !strings.HasSuffix(r.Text, "]") {
		return nil
	}
	inner := r.Text[open+1 : len(r.Text)-1]
	var (
		out   []string
		depth int
		start int
	)
	for i := 0; i < len(inner); i++ {
		switch inner[i] {
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(inner[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(inner[start:]))
}

// Local reports whether a named type token refers to the current package.
func (r TypeRef) Local() bool {
	return r.Kind == RefNamed && !strings.Contains(r.BaseName(), ".")
}

func isIdentPath(s string) bool {
	if i := strings.IndexByte(s, '['); i > 0 && strings.HasSuffix(s, "]") {
		s = s[:i]
	}
	if s == "" {
		return false
	}
	for _, part := range strings.Split(s, ".") {
		if !IsIdent(part) {
			return false
		}
	}
	return true
}

// IsIdent reports whether s is a valid Go identifier.
func IsIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		isLetter := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r > 0x7f
		isDigit := r >= '0' && r <= '9'
		if !isLetter && (i == 0 || !isDigit) {
			return false
		}
	}
	return true
}
