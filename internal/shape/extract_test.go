package shape

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"shapegen/internal/decl"
	"shapegen/internal/diag"
	"shapegen/internal/goscan"
	"shapegen/internal/source"
)

func scan(t *testing.T, src string) *decl.Batch {
	t.Helper()
	bag := diag.NewBag(10)
	b := goscan.New(source.NewFileSet(), "example.com/geo").ParseSource(map[string]string{"a.go": src}, bag)
	if bag.Len() != 0 {
		t.Fatalf("scan diagnostics: %+v", bag.Items())
	}
	return b
}

func extract(t *testing.T, src, name string) (*TypeDescription, error) {
	t.Helper()
	b := scan(t, src)
	d, ok := b.Lookup(name)
	if !ok {
		t.Fatalf("%s not declared", name)
	}
	return Extract(d, b)
}

func shapeErr(t *testing.T, err error) *diag.ShapeError {
	t.Helper()
	var se *diag.ShapeError
	if !errors.As(err, &se) {
		t.Fatalf("expected ShapeError, got %v", err)
	}
	return se
}

func TestExtract_RecordKeepsFieldOrder(t *testing.T) {
	td, err := extract(t, `package geo
//shapegen:derive eq
type P struct { Z int; A string; M []byte }
`, "P")
	if err != nil {
		t.Fatal(err)
	}
	if td.Shape.Kind != Record {
		t.Fatalf("kind = %v", td.Shape.Kind)
	}
	var got []string
	for _, f := range td.Shape.Fields {
		got = append(got, f.Name)
	}
	if !reflect.DeepEqual(got, []string{"Z", "A", "M"}) {
		t.Errorf("field order = %v", got)
	}
	if !reflect.DeepEqual(td.Namespace, []string{"example_com", "geo"}) {
		t.Errorf("namespace = %v", td.Namespace)
	}
}

func TestExtract_TupleIsPositional(t *testing.T) {
	td, err := extract(t, `package geo
//shapegen:derive eq
//shapegen:tuple
type RGB struct { F0, F1, F2 uint8 }
`, "RGB")
	if err != nil {
		t.Fatal(err)
	}
	if td.Shape.Kind != Tuple || len(td.Shape.Fields) != 3 {
		t.Fatalf("shape = %+v", td.Shape)
	}
	for i, f := range td.Shape.Fields {
		if f.Name != "" || f.Index != i || f.Accessor() != "F"+string(rune('0'+i)) {
			t.Errorf("field %d = %+v", i, f)
		}
	}
}

func TestExtract_TupleFieldNameError(t *testing.T) {
	_, err := extract(t, `package geo
//shapegen:derive eq
//shapegen:tuple
type Bad struct { F0 int; Second int }
`, "Bad")
	se := shapeErr(t, err)
	if se.Code != diag.ShpTupleFieldName || se.Loc.Index != 1 || se.Loc.Field != "Second" {
		t.Errorf("error = %+v", se)
	}
}

func TestExtract_EmbeddedField(t *testing.T) {
	_, err := extract(t, `package geo
//shapegen:derive eq
type E struct { A int; Base }
type Base struct{}
`, "E")
	se := shapeErr(t, err)
	if se.Code != diag.ShpEmbeddedField || se.Loc.Index != 1 {
		t.Errorf("error = %+v", se)
	}
}

func TestExtract_SumVariantsInOrder(t *testing.T) {
	td, err := extract(t, `package geo
//shapegen:derive eq
type Shape interface{ isShape() }
type Square struct{ S float64 }
type Circle struct{ R float64 }
type Empty struct{}
func (Circle) isShape() {}
func (Square) isShape() {}
func (Empty) isShape() {}
`, "Shape")
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, v := range td.Shape.Variants {
		got = append(got, v.Name)
	}
	if !reflect.DeepEqual(got, []string{"Square", "Circle", "Empty"}) {
		t.Errorf("variants = %v", got)
	}
	if td.Shape.Variants[2].Shape.Kind != Record || len(td.Shape.Variants[2].Shape.Fields) != 0 {
		t.Errorf("Empty variant = %+v", td.Shape.Variants[2].Shape)
	}
}

func TestExtract_ExplicitVariants(t *testing.T) {
	src := `package geo
//shapegen:derive eq
//shapegen:variants Circle Missing
type Shape interface{ isShape() }
type Circle struct{ R float64 }
func (Circle) isShape() {}
`
	_, err := extract(t, src, "Shape")
	se := shapeErr(t, err)
	if se.Code != diag.ShpUnknownVariant || se.Loc.Variant != "Missing" {
		t.Errorf("error = %+v", se)
	}
}

func TestExtract_NestedSumCycle(t *testing.T) {
	_, err := extract(t, `package geo
//shapegen:derive eq
//shapegen:variants Inner
type Outer interface{ isOuter() }
//shapegen:variants Outer
type Inner interface{ isOuter() }
`, "Outer")
	se := shapeErr(t, err)
	if se.Code != diag.ShpSumCycle {
		t.Errorf("error = %+v", se)
	}
}

func TestExtract_UnknownKind(t *testing.T) {
	_, err := extract(t, "package geo\n//shapegen:derive eq\ntype ID int\n", "ID")
	if se := shapeErr(t, err); se.Code != diag.ShpUnknownKind || se.Loc.Type != "ID" {
		t.Errorf("error = %+v", se)
	}
}

func TestNamespace(t *testing.T) {
	ns, err := Namespace("github.com/acme/geo-kit")
	if err != nil {
		t.Fatal(err)
	}
	if ns.String() != "github_com/acme/geo_kit" {
		t.Errorf("namespace = %s", ns)
	}
	if _, err := Namespace(""); err == nil {
		t.Error("empty path must fail")
	}
	if _, err := Namespace("acme/9lives"); err == nil {
		t.Error("segment starting with a digit must fail")
	}
}

func TestExtract_KeepsNamespaceUnvalidated(t *testing.T) {
	b := scan(t, "package p\n//shapegen:derive eq\ntype A struct{ N int }\n")
	d, _ := b.Lookup("A")
	d.PkgPath = "example.com/9p/p"
	td, err := Extract(d, b)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !reflect.DeepEqual(td.Namespace, []string{"example_com", "9p", "p"}) {
		t.Errorf("namespace = %v", td.Namespace)
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	td, err := extract(t, `package geo
//shapegen:derive eq
type Pair[K comparable, V any] struct { Key K; Val []V `+"`shapegen:\"eq:skip\"`"+` }
`, "Pair")
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := Encode(&buf, td.PkgPath, td.PkgName, []*TypeDescription{td}); err != nil {
		t.Fatal(err)
	}
	f, err := Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Types) != 1 || !reflect.DeepEqual(f.Types[0].Shape, td.Shape) || f.Types[0].TypeArgs() != "[K, V]" {
		t.Errorf("round trip mismatch: %+v", f.Types[0])
	}
}
