package meta

import "strconv"

// Primitive identifies a predeclared Go type.
type Primitive uint8

const (
	Bool Primitive = iota + 1
	String
	Int
	Int8
	Int16
	Int32
	Int64
	Uint
	Uint8
	Uint16
	Uint32
	Uint64
	Uintptr
	Float32
	Float64
	Complex64
	Complex128
)

var primitiveNames = [...]string{
	Bool: "bool", String: "string",
	Int: "int", Int8: "int8", Int16: "int16", Int32: "int32", Int64: "int64",
	Uint: "uint", Uint8: "uint8", Uint16: "uint16", Uint32: "uint32", Uint64: "uint64", Uintptr: "uintptr",
	Float32: "float32", Float64: "float64", Complex64: "complex64", Complex128: "complex128",
}

func (p Primitive) String() string {
	if int(p) < len(primitiveNames) && primitiveNames[p] != "" {
		return primitiveNames[p]
	}
	return "invalid"
}

// PrimitiveOf maps a predeclared type name (including the byte and rune
// aliases) to its Primitive.
func PrimitiveOf(name string) (Primitive, bool) {
	switch name {
	case "byte":
		return Uint8, true
	case "rune":
		return Int32, true
	}
	for i, n := range primitiveNames {
		if n != "" && n == name {
			return Primitive(i), true //nolint:gosec // index bounded by the array
		}
	}
	return 0, false
}

// IDKind discriminates TypeID.
type IDKind uint8

const (
	KindCustom IDKind = iota + 1
	KindSlice
	KindArray
	KindTuple
	KindPrimitive
	KindParam
)

// TypeID identifies a type without describing its structure.
type TypeID struct {
	Kind      IDKind
	Name      string
	Namespace Namespace
	Params    []TypeID
	Elem      *TypeID
	Len       int
	Prim      Primitive
}

// Custom identifies a user defined type with its generic arguments.
func Custom(name string, ns Namespace, params ...TypeID) TypeID {
	return TypeID{Kind: KindCustom, Name: name, Namespace: ns, Params: params}
}

// Slice identifies []elem.
func Slice(elem TypeID) TypeID {
	return TypeID{Kind: KindSlice, Elem: &elem}
}

// Array identifies [n]elem.
func Array(n int, elem TypeID) TypeID {
	return TypeID{Kind: KindArray, Len: n, Elem: &elem}
}

// Tuple identifies an ordered list of positional types.
func Tuple(elems ...TypeID) TypeID {
	return TypeID{Kind: KindTuple, Params: elems}
}

// Unit is the empty tuple.
func Unit() TypeID {
	return Tuple()
}

// Prim identifies a predeclared type.
func Prim(p Primitive) TypeID {
	return TypeID{Kind: KindPrimitive, Prim: p, Namespace: Prelude()}
}

// Param identifies an uninstantiated type parameter.
func Param(name string) TypeID {
	return TypeID{Kind: KindParam, Name: name}
}

func (id TypeID) String() string {
	switch id.Kind {
	case KindPrimitive:
		return id.Prim.String()
	case KindParam:
		return id.Name
	case KindSlice:
		return "[]" + id.Elem.String()
	case KindArray:
		return "[" + strconv.Itoa(id.Len) + "]" + id.Elem.String()
	case KindTuple:
		return "(" + joinIDs(id.Params) + ")"
	case KindCustom:
		name := id.Name
		if !id.Namespace.IsPrelude() {
			name = id.Namespace.String() + "." + name
		}
		if len(id.Params) > 0 {
			name += "[" + joinIDs(id.Params) + "]"
		}
		return name
	}
	return "invalid"
}

func joinIDs(ids []TypeID) string {
	out := ""
	for i, p := range ids {
		if i > 0 {
			out += ", "
		}
		out += p.String()
	}
	return out
}
