package capability

import (
	"errors"
	"testing"

	"shapegen/internal/diag"
	"shapegen/internal/emit"
)

const geoSrc = `package geo

import "time"

//shapegen:derive eq hash key
type Point struct {
	X int ` + "`shapegen:\"key:key\"`" + `
	Y int
}

//shapegen:derive eq hash
type Segment struct {
	From, To Point
	Points   []Point
	Labels   []string
	Grid     [3]int
}

//shapegen:derive eq
type Stamped struct {
	P  Point
	At time.Time
}

//shapegen:derive eq
type Lookup struct {
	Index map[string]int
}

//shapegen:derive eq hash
type Box[T comparable] struct {
	Value T
}

//shapegen:derive eq
type Any[T any] struct {
	Value T
}

//shapegen:derive eq hash key
type Shape interface{ isShape() }

type Circle struct {
	Name string ` + "`shapegen:\"key:key\"`" + `
	R    float64
}

type Square struct {
	Name string ` + "`shapegen:\"key:key\"`" + `
	Side float64
}

func (Circle) isShape()  {}
func (*Square) isShape() {}

//shapegen:derive eq
type Never interface{ isNever() }

//shapegen:derive eq
//shapegen:tuple
type Unit struct{}
`

func TestResolveRecordAndTuple(t *testing.T) {
	batch := scan(t, geoSrc)
	for _, name := range []string{"Point", "Segment", "Box", "Unit"} {
		for _, mode := range emit.AllModes {
			if _, err := derive(t, batch, name, "eq", mode, nil); err != nil {
				t.Errorf("%s eq %s: %v", name, mode, err)
			}
		}
	}
}

func TestResolveUnsatisfiedField(t *testing.T) {
	batch := scan(t, geoSrc)
	_, err := derive(t, batch, "Stamped", "eq", emit.Hosted, nil)
	ce := wantCapError(t, err, diag.CapFieldUnsatisfied)
	if ce.Loc.Type != "Stamped" || ce.Loc.Field != "At" || ce.Loc.Index != 1 {
		t.Errorf("location = %s", ce.Loc)
	}
	if !diag.IsUserError(err) {
		t.Errorf("capability errors are user errors")
	}

	assume := map[string][]string{"eq": {"time.Time"}}
	a, err := derive(t, batch, "Stamped", "eq", emit.Hosted, assume)
	if err != nil {
		t.Fatalf("with assume: %v", err)
	}
	if got := a.Plan.Fields[1].Strategy; got != emit.Assumed {
		t.Errorf("At strategy = %s", got)
	}
}

func TestResolveUnsupportedFieldType(t *testing.T) {
	batch := scan(t, geoSrc)
	_, err := derive(t, batch, "Lookup", "eq", emit.Hosted, nil)
	wantCapError(t, err, diag.CapUnsupportedFieldType)
}

func TestResolveParamBound(t *testing.T) {
	batch := scan(t, geoSrc)
	_, err := derive(t, batch, "Any", "eq", emit.Hosted, nil)
	ce := wantCapError(t, err, diag.CapParamBound)
	if ce.Loc.Field != "Value" {
		t.Errorf("location = %s", ce.Loc)
	}

	if _, err := derive(t, batch, "Box", "hash", emit.Hosted, nil); err != nil {
		t.Errorf("hosted hash of comparable param: %v", err)
	}
	_, err = derive(t, batch, "Box", "hash", emit.Freestanding, nil)
	wantCapError(t, err, diag.CapParamBound)
}

func TestResolveSumRequiresEveryVariant(t *testing.T) {
	src := `package geo

//shapegen:derive eq
type Shape interface{ isShape() }

type Circle struct{ R float64 }
type Blob struct {
	R     float64
	Cells map[int]bool
}

func (Circle) isShape() {}
func (Blob) isShape()   {}
`
	batch := scan(t, src)
	_, err := derive(t, batch, "Shape", "eq", emit.Hosted, nil)
	ce := wantCapError(t, err, diag.CapUnsupportedFieldType)
	if ce.Loc.Variant != "Blob" || ce.Loc.Field != "Cells" || ce.Loc.Index != 1 {
		t.Errorf("location = %s", ce.Loc)
	}

	good := scan(t, geoSrc)
	a, err := derive(t, good, "Shape", "eq", emit.Hosted, nil)
	if err != nil {
		t.Fatalf("Shape eq: %v", err)
	}
	if len(a.Plan.Variants) != 2 || a.Plan.Variants[0].Name != "Circle" || a.Plan.Variants[1].Name != "Square" {
		t.Errorf("variants = %+v", a.Plan.Variants)
	}
}

func TestResolveZeroVariantSumIsVacuous(t *testing.T) {
	batch := scan(t, geoSrc)
	for _, mode := range emit.AllModes {
		a, err := derive(t, batch, "Never", "eq", mode, nil)
		if err != nil {
			t.Fatalf("Never eq %s: %v", mode, err)
		}
		out := render(t, a)
		wantContains(t, out, "func EqualNever(a, b Never) bool", "return (a == nil) && (b == nil)")
	}
}

func TestResolveKeyPreconditions(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		code    diag.Code
		variant string
		field   string
	}{
		{
			name: "variant without key field",
			src: `package geo

//shapegen:derive key
type Shape interface{ isShape() }

type Circle struct {
	Name string ` + "`shapegen:\"key:key\"`" + `
}
type Dot struct {
	X int
}

func (Circle) isShape() {}
func (Dot) isShape()    {}
`,
			code:    diag.CapMissingRequiredField,
			variant: "Dot",
		},
		{
			name: "key types differ",
			src: `package geo

//shapegen:derive key
type Shape interface{ isShape() }

type Circle struct {
	Name string ` + "`shapegen:\"key:key\"`" + `
}
type Dot struct {
	ID int ` + "`shapegen:\"key:key\"`" + `
}

func (Circle) isShape() {}
func (Dot) isShape()    {}
`,
			code:    diag.CapConflictingField,
			variant: "Dot",
			field:   "ID",
		},
		{
			name: "two key fields",
			src: `package geo

//shapegen:derive key
type User struct {
	ID    int    ` + "`shapegen:\"key:key\"`" + `
	Email string ` + "`shapegen:\"key:key\"`" + `
}
`,
			code:  diag.CapConflictingField,
			field: "Email",
		},
		{
			name: "empty record",
			src: `package geo

//shapegen:derive key
type Empty struct{}
`,
			code: diag.CapMissingRequiredField,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := scan(t, tt.src)
			name := batch.Annotated()[0].Name
			_, err := derive(t, batch, name, "key", emit.Hosted, nil)
			ce := wantCapError(t, err, tt.code)
			if ce.Loc.Variant != tt.variant || ce.Loc.Field != tt.field {
				t.Errorf("location = %s, want variant %q field %q", ce.Loc, tt.variant, tt.field)
			}
		})
	}
}

// Anything the freestanding resolver accepts, the hosted one accepts too.
func TestFreestandingAcceptanceWithinHosted(t *testing.T) {
	batch := scan(t, geoSrc)
	for _, d := range batch.Annotated() {
		for _, c := range All() {
			_, freeErr := derive(t, batch, d.Name, c.Name, emit.Freestanding, nil)
			if freeErr != nil {
				continue
			}
			if _, err := derive(t, batch, d.Name, c.Name, emit.Hosted, nil); err != nil {
				t.Errorf("%s %s: freestanding ok but hosted failed: %v", d.Name, c.Name, err)
			}
		}
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	batch := scan(t, geoSrc)
	first, err := derive(t, batch, "Segment", "hash", emit.Freestanding, nil)
	if err != nil {
		t.Fatal(err)
	}
	a := render(t, first)
	for i := 0; i < 5; i++ {
		again, err := derive(t, batch, "Segment", "hash", emit.Freestanding, nil)
		if err != nil {
			t.Fatal(err)
		}
		if b := render(t, again); a != b {
			t.Fatalf("emission differs between runs:\n%s\n---\n%s", a, b)
		}
	}
}

func TestEmitWithoutApprovalPanics(t *testing.T) {
	defer func() {
		r := recover()
		err, ok := r.(error)
		var iv *diag.InternalInvariantViolation
		if !ok || !errors.As(err, &iv) {
			t.Fatalf("recovered %v, want InternalInvariantViolation", r)
		}
	}()
	batch := scan(t, geoSrc)
	td := describe(t, batch, "Point")
	emit.NewBuilder(&emit.Approval{Type: td, Capability: "eq", Mode: emit.Hosted}, "")
}

func TestRegistryListing(t *testing.T) {
	names := Names()
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("names not sorted: %v", names)
		}
	}
	for _, want := range []string{"eq", "hash", "key"} {
		if !Known(want) {
			t.Errorf("%s not registered", want)
		}
	}
	if Known("serialize") {
		t.Errorf("serialize should not be registered")
	}
}
