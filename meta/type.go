package meta

// ShapeKind is the structural kind of a described type.
type ShapeKind uint8

const (
	ShapeRecord ShapeKind = iota + 1
	ShapeTuple
	ShapeSum
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeRecord:
		return "record"
	case ShapeTuple:
		return "tuple"
	case ShapeSum:
		return "sum"
	}
	return "invalid"
}

// Field describes one field. Name is empty for tuple fields.
type Field struct {
	Name string
	Type TypeID
}

// Variant is one alternative of a sum.
type Variant struct {
	Name string
	Type Type
}

// Type is the full descriptor returned by generated ShapeInfo methods.
type Type struct {
	ID       TypeID
	Shape    ShapeKind
	Fields   []Field
	Variants []Variant
}

// Field looks up a record field by name.
func (t Type) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Variant looks up a sum variant by name.
func (t Type) Variant(name string) (Variant, bool) {
	for _, v := range t.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}
