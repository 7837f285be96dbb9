//go:build !shapegen_nodefault

package capability

import (
	"errors"
	"strings"
	"testing"

	"shapegen/internal/diag"
	"shapegen/internal/emit"
	"shapegen/internal/goscan"
	"shapegen/internal/source"
)

const docSrc = `package geo

//shapegen:derive debug clone typeinfo
type User struct {
	Name     string
	Age      uint8
	Password string ` + "`shapegen:\"debug:redact\"`" + `
	Tags     []string
	Friends  []User ` + "`shapegen:\"debug:rename=friends\"`" + `
}

//shapegen:derive debug
//shapegen:debug rename="P" compact
type Point struct{ X, Y float64 }

//shapegen:derive debug clone
type Box[T any] struct{ Value T }

//shapegen:derive debug clone typeinfo
type Shape interface{ isShape() }

type Circle struct{ R float64 }
type Poly struct{ Points []float64 }

func (Circle) isShape() {}
func (*Poly) isShape()  {}
`

func TestDebugHosted(t *testing.T) {
	out := generate(t, docSrc, "User", "debug", emit.Hosted)
	wantContains(t, out,
		"func (v User) String() string {",
		"var sb strings.Builder",
		`sb.WriteString("User{Name: ")`,
		"sb.WriteString(strconv.Quote(v.Name))",
		"strconv.FormatUint(uint64(v.Age), 10)",
		`Password: <redacted>, Tags: [`,
		"friends: [",
		"v.Friends[i].String()",
		"return sb.String()",
	)
	if strings.Contains(out, "v.Password") {
		t.Errorf("redacted field printed:\n%s", out)
	}
}

func TestDebugFreestanding(t *testing.T) {
	out := generate(t, docSrc, "Point", "debug", emit.Freestanding)
	wantContains(t, out,
		"func (v Point) AppendDebug(dst []byte) []byte {",
		`dst = append(dst, "P{"...)`,
		"dst = strconv.AppendFloat(dst, v.X, 'g', -1, 64)",
	)
	for _, banned := range []string{"strings", "fmt"} {
		if strings.Contains(out, `"`+banned+`"`) {
			t.Errorf("freestanding output imports %s:\n%s", banned, out)
		}
	}
}

func TestDebugTypeParamNeedsHosted(t *testing.T) {
	out := generate(t, docSrc, "Box", "debug", emit.Hosted)
	wantContains(t, out, "func (v Box[T]) String() string {", "fmt.Fprint(&sb, v.Value)")

	batch := scan(t, docSrc)
	_, err := derive(t, batch, "Box", "debug", emit.Freestanding, nil)
	wantCapError(t, err, diag.CapParamBound)
}

func TestDebugSum(t *testing.T) {
	out := generate(t, docSrc, "Shape", "debug", emit.Hosted)
	wantContains(t, out, "func StringShape(v Shape) string {", "case Circle:", "case *Poly:", "case nil:", `"<nil>"`)
}

func TestCloneHostedOnly(t *testing.T) {
	out := generate(t, docSrc, "User", "clone", emit.Hosted)
	wantContains(t, out,
		"func (v User) Clone() User {",
		"c := v",
		"c.Tags = slices.Clone(v.Tags)",
		"c.Friends = make([]User, len(v.Friends))",
		"c.Friends[i] = v.Friends[i].Clone()",
		"return c",
	)

	batch := scan(t, docSrc)
	_, err := derive(t, batch, "User", "clone", emit.Freestanding, nil)
	ce := wantCapError(t, err, diag.CapUnsupportedMode)
	if ce.Loc.Type != "User" {
		t.Errorf("location = %s", ce.Loc)
	}
}

func TestCloneSumPointerVariant(t *testing.T) {
	out := generate(t, docSrc, "Shape", "clone", emit.Hosted)
	wantContains(t, out, "func CloneShape(v Shape) Shape {", "case *Poly:", "c := *v", "return &c", "c.Points = slices.Clone(v.Points)")
}

func TestTypeinfo(t *testing.T) {
	hosted := generate(t, docSrc, "User", "typeinfo", emit.Hosted)
	wantContains(t, hosted,
		`"shapegen/meta"`,
		"func (v User) ShapeInfo() meta.Type {",
		`meta.Custom("User", meta.MustNamespace("example_com", "geo"))`,
		"meta.Prim(meta.Uint8)",
		"meta.Slice(meta.Prim(meta.String))",
	)

	free := generate(t, docSrc, "Shape", "typeinfo", emit.Freestanding)
	wantContains(t, free, "var shapeInfoShape = meta.Type{", "func ShapeInfoShape() meta.Type {", "return shapeInfoShape", "meta.ShapeSum")
}

func TestTypeinfoBadNamespace(t *testing.T) {
	src := `package geo

//shapegen:derive typeinfo
//shapegen:typeinfo namespace="9lives/x"
type P struct{ X int }
`
	batch := scan(t, src)
	_, err := derive(t, batch, "P", "typeinfo", emit.Hosted, nil)
	ae, ok := err.(*diag.AttributeError)
	if !ok || ae.Key != "namespace" {
		t.Fatalf("want namespace AttributeError, got %v", err)
	}
}

func TestTypeinfoRecordsTypeArguments(t *testing.T) {
	src := `package geo

//shapegen:derive typeinfo
type Holder[T any] struct {
	B Box[int]
	L []Box[T]
}

//shapegen:derive typeinfo
type Odd struct {
	N   int
	Bad Box[map[string]int]
}

type Box[T any] struct{ Value T }
`
	out := generate(t, src, "Holder", "typeinfo", emit.Hosted)
	wantContains(t, out,
		`meta.Custom("Box", meta.MustNamespace("example_com", "geo"), meta.Prim(meta.Int))`,
		`meta.Slice(meta.Custom("Box", meta.MustNamespace("example_com", "geo"), meta.Param("T")))`,
	)

	_, err := derive(t, scan(t, src), "Odd", "typeinfo", emit.Hosted, nil)
	if ce := wantCapError(t, err, diag.CapUnsupportedFieldType); ce.Loc.Field != "Bad" {
		t.Errorf("error names field %q, want Bad", ce.Loc.Field)
	}
}

func TestTypeinfoChecksPackagePath(t *testing.T) {
	src := `package p

//shapegen:derive eq typeinfo
type A struct{ N int }

//shapegen:derive typeinfo
//shapegen:typeinfo namespace="example.com/ninep"
type B struct{ N int }
`
	bag := diag.NewBag(10)
	batch := goscan.New(source.NewFileSet(), "example.com/9p/p").ParseSource(map[string]string{"p.go": src}, bag)
	if bag.HasErrors() {
		t.Fatalf("scan: %+v", bag.Items())
	}

	if _, err := derive(t, batch, "A", "eq", emit.Hosted, nil); err != nil {
		t.Fatalf("eq must not depend on the package path: %v", err)
	}
	_, err := derive(t, batch, "A", "typeinfo", emit.Hosted, nil)
	var se *diag.ShapeError
	if !errors.As(err, &se) || se.Code != diag.ShpBadNamespace {
		t.Fatalf("want %s, got %v", diag.ShpBadNamespace.ID(), err)
	}
	a, err := derive(t, batch, "B", "typeinfo", emit.Hosted, nil)
	if err != nil {
		t.Fatalf("explicit namespace: %v", err)
	}
	wantContains(t, render(t, a), `meta.MustNamespace("example_com", "ninep")`)
}

func TestDefaultCapabilitiesFlagged(t *testing.T) {
	for _, name := range []string{"debug", "clone", "typeinfo"} {
		c, ok := Lookup(name)
		if !ok || !c.Default {
			t.Errorf("%s: registered=%v default=%v", name, ok, ok && c.Default)
		}
	}
}
