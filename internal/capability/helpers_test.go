package capability

import (
	"strings"
	"testing"

	"shapegen/internal/attr"
	"shapegen/internal/decl"
	"shapegen/internal/diag"
	"shapegen/internal/emit"
	"shapegen/internal/goscan"
	"shapegen/internal/shape"
	"shapegen/internal/source"
)

func scan(t *testing.T, src string) *decl.Batch {
	t.Helper()
	bag := diag.NewBag(20)
	batch := goscan.New(source.NewFileSet(), "example.com/geo").ParseSource(map[string]string{"geo.go": src}, bag)
	if bag.HasErrors() {
		t.Fatalf("scan: %+v", bag.Items())
	}
	return batch
}

func describe(t *testing.T, batch *decl.Batch, name string) *shape.TypeDescription {
	t.Helper()
	d, ok := batch.Lookup(name)
	if !ok {
		t.Fatalf("%s not declared", name)
	}
	td, err := shape.Extract(d, batch)
	if err != nil {
		t.Fatalf("extract %s: %v", name, err)
	}
	return td
}

// derive runs interpreter and resolver for one triple.
func derive(t *testing.T, batch *decl.Batch, name, capName string, mode emit.Mode, assume map[string][]string) (*emit.Approval, error) {
	t.Helper()
	c, ok := Lookup(capName)
	if !ok {
		t.Fatalf("capability %s not registered", capName)
	}
	td := describe(t, batch, name)
	opts, err := attr.Interpret(td, capName, c.Schema)
	if err != nil {
		return nil, err
	}
	return Resolve(td, opts, c, mode, Env{Batch: batch, Assume: assume})
}

// generate derives and renders one triple, failing the test on any error.
func generate(t *testing.T, src, name, capName string, mode emit.Mode) string {
	t.Helper()
	batch := scan(t, src)
	a, err := derive(t, batch, name, capName, mode, nil)
	if err != nil {
		t.Fatalf("derive %s %s (%s): %v", name, capName, mode, err)
	}
	return render(t, a)
}

func render(t *testing.T, a *emit.Approval) string {
	t.Helper()
	c, _ := Lookup(a.Capability)
	b := emit.NewBuilder(a, "")
	c.Emit(b)
	out, err := emit.Render(emit.File{Package: "geo", Mode: a.Mode, Units: []*emit.Unit{b.Unit()}})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	return string(out)
}

func wantContains(t *testing.T, out string, parts ...string) {
	t.Helper()
	for _, p := range parts {
		if !strings.Contains(out, p) {
			t.Errorf("output lacks %q:\n%s", p, out)
		}
	}
}

func wantCapError(t *testing.T, err error, code diag.Code) *diag.CapabilityError {
	t.Helper()
	ce, ok := err.(*diag.CapabilityError)
	if !ok {
		t.Fatalf("want CapabilityError %s, got %v", code.ID(), err)
	}
	if ce.Code != code {
		t.Fatalf("code = %s, want %s (%v)", ce.Code.ID(), code.ID(), err)
	}
	return ce
}
