package capability

import (
	"strings"
	"testing"

	"shapegen/internal/emit"
)

func TestEqSingleFieldRecordDelegates(t *testing.T) {
	src := `package geo

//shapegen:derive eq
type Point struct{ X, Y int }

//shapegen:derive eq
type Wrapper struct{ Inner Point }
`
	out := generate(t, src, "Wrapper", "eq", emit.Hosted)
	wantContains(t, out,
		"//go:build !shapegen_freestanding",
		"func (v Wrapper) Equal(o Wrapper) bool {",
		"if !v.Inner.Equal(o.Inner) {",
		"return true",
	)
}

func TestEqDelegatesToRenamedMethod(t *testing.T) {
	src := `package geo

//shapegen:derive eq
//shapegen:eq method=Same
type Inner struct{ N int }

//shapegen:derive eq
type Outer struct {
	I    Inner
	List []Inner
}
`
	for _, mode := range []emit.Mode{emit.Hosted, emit.Freestanding} {
		out := generate(t, src, "Outer", "eq", mode)
		wantContains(t, out, "if !v.I.Same(o.I) {", "if !v.List[i].Same(o.List[i]) {")
		if strings.Contains(out, ".Equal(") {
			t.Errorf("%s output calls Equal on Inner:\n%s", mode, out)
		}
	}
}

func TestEqZeroFieldTupleIsVacuous(t *testing.T) {
	src := `package geo

//shapegen:derive eq hash
//shapegen:tuple
type Unit struct{}
`
	out := generate(t, src, "Unit", "eq", emit.Freestanding)
	wantContains(t, out, "//go:build shapegen_freestanding", "func (v Unit) Equal(o Unit) bool {\n\treturn true\n}")

	hashed := generate(t, src, "Unit", "hash", emit.Freestanding)
	wantContains(t, hashed, "func (v Unit) Hash64(seed uint64) uint64 {", "return h")
}

func TestEqTupleUsesPositionalAccessors(t *testing.T) {
	src := `package geo

//shapegen:derive eq
//shapegen:tuple
type Pair struct {
	F0 string
	F1 []byte
}
`
	hosted := generate(t, src, "Pair", "eq", emit.Hosted)
	wantContains(t, hosted, "v.F0 != o.F0", "slices.Equal(v.F1, o.F1)", `"slices"`)

	free := generate(t, src, "Pair", "eq", emit.Freestanding)
	wantContains(t, free, "len(v.F1) != len(o.F1)", "for i := range v.F1 {", "v.F1[i] != o.F1[i]")
	if strings.Contains(free, "slices") {
		t.Errorf("freestanding output imports slices:\n%s", free)
	}
}

func TestEqFieldOptions(t *testing.T) {
	src := `package geo

//shapegen:derive eq
//shapegen:eq method=Same
type Doc struct {
	Title string
	Cache []byte ` + "`shapegen:\"eq:skip\"`" + `
	Body  string ` + "`shapegen:\"eq:with=strings.EqualFold\"`" + `
}
`
	out := generate(t, src, "Doc", "eq", emit.Hosted)
	wantContains(t, out, "func (v Doc) Same(o Doc) bool {", "!strings.EqualFold(v.Body, o.Body)")
	if strings.Contains(out, "Cache") {
		t.Errorf("skipped field compared:\n%s", out)
	}
}

func TestEqSumArms(t *testing.T) {
	out := generate(t, geoSrc, "Shape", "eq", emit.Hosted)
	wantContains(t, out,
		"func EqualShape(a, b Shape) bool {",
		"switch a := a.(type) {",
		"case Circle:",
		"b, ok := b.(Circle)",
		"case *Square:",
		"b, ok := b.(*Square)",
		"a.Side != b.Side",
	)
	if strings.Index(out, "case Circle:") > strings.Index(out, "case *Square:") {
		t.Errorf("arms out of declaration order:\n%s", out)
	}
}

func TestHashModes(t *testing.T) {
	hosted := generate(t, geoSrc, "Segment", "hash", emit.Hosted)
	wantContains(t, hosted,
		"func (v Segment) Hash(h *maphash.Hash) {",
		"v.From.Hash(h)",
		"maphash.WriteComparable(h, len(v.Points))",
		"h.WriteString(v.Labels[i])",
		"maphash.WriteComparable(h, v.Grid)",
	)

	free := generate(t, geoSrc, "Segment", "hash", emit.Freestanding)
	wantContains(t, free,
		"func (v Segment) Hash64(seed uint64) uint64 {",
		"h := seed ^ 14695981039346656037",
		"h = v.From.Hash64(h)",
		"for i1 := range len(v.Labels[i]) {",
	)
	if strings.Contains(free, "maphash") {
		t.Errorf("freestanding output uses maphash:\n%s", free)
	}
}

func TestKeyEmission(t *testing.T) {
	out := generate(t, geoSrc, "Point", "key", emit.Hosted)
	wantContains(t, out, "func (v Point) Key() int {", "return v.X")

	sum := generate(t, geoSrc, "Shape", "key", emit.Freestanding)
	wantContains(t, sum, "func ShapeKey(v Shape) string {", "case *Square:", "return v.Name", "var zero string")
}
