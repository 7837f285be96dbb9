package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shapegen/internal/capability"
	"shapegen/internal/diag"
	"shapegen/internal/emit"
	"shapegen/internal/gate"
	"shapegen/internal/pipeline"
)

const geoSrc = `package geo

//shapegen:derive eq hash
type Point struct {
	X, Y int
}

//shapegen:derive eq
type Shape interface{ isShape() }

type Circle struct{ C Point; R float64 }
type Square struct{ Side float64 }

func (Circle) isShape() {}
func (Square) isShape() {}
`

// broken emits a hosted-only facility in every mode. It exists to drive the
// internal invariant path.
func init() {
	capability.Register(&capability.Capability{
		Name:    "broken",
		Summary: "uses strings in freestanding output",
		Modes:   emit.NewModeSet(emit.Hosted, emit.Freestanding),
		Emit: func(b *emit.Builder) {
			pkg := b.Use(emit.Strings)
			b.Method("", "Broken", nil, []emit.Param{{Type: "string"}}, []emit.Stmt{emit.Ret(emit.Call(emit.Sel(pkg, "ToUpper"), emit.Str("x")))})
		},
	})
}

func writePkg(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func options(t *testing.T, cfg gate.Config) Options {
	t.Helper()
	g, err := gate.Validate(cfg)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	return Options{Gate: g, Jobs: 4, PkgPath: "example.com/geo"}
}

func bothModes() gate.Config {
	cfg := gate.Default()
	cfg.Features.Freestanding = true
	return cfg
}

func output(t *testing.T, res *Result, name string) string {
	t.Helper()
	for _, out := range res.Outputs {
		if out.Name == name {
			return string(out.Content)
		}
	}
	t.Fatalf("no output %s (have %d)", name, len(res.Outputs))
	return ""
}

func codes(bag *diag.Bag) []diag.Code {
	var out []diag.Code
	for _, d := range bag.Items() {
		out = append(out, d.Code)
	}
	return out
}

func TestGenerateDir_Hosted(t *testing.T) {
	dir := writePkg(t, map[string]string{"geo.go": geoSrc})
	res, err := GenerateDir(context.Background(), dir, options(t, gate.Default()))
	if err != nil {
		t.Fatal(err)
	}
	if res.HasErrors() {
		t.Fatalf("diagnostics: %v", res.Bag.Items())
	}
	if len(res.Outputs) != 1 {
		t.Fatalf("outputs = %d, want only the hosted file", len(res.Outputs))
	}
	src := output(t, res, "hosted_shapegen.go")
	for _, want := range []string{
		"//go:build !shapegen_freestanding",
		"package geo",
		"func (v Point) Equal(o Point) bool {",
		"func (v Point) Hash(h *maphash.Hash) {",
		"func EqualShape(a, b Shape) bool {",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("hosted output lacks %q:\n%s", want, src)
		}
	}
	if res.PkgName != "geo" || res.PkgPath != "example.com/geo" {
		t.Errorf("package = %s %s", res.PkgName, res.PkgPath)
	}
}

func TestGenerateDir_UserErrorDropsOnlyThatTriple(t *testing.T) {
	dir := writePkg(t, map[string]string{"geo.go": geoSrc + `
//shapegen:derive eq clone
type Tag struct{ Name string }
`})
	res, err := GenerateDir(context.Background(), dir, options(t, bothModes()))
	if err != nil {
		t.Fatal(err)
	}
	got := codes(res.Bag)
	if len(got) != 1 || got[0] != diag.CapUnsupportedMode {
		t.Fatalf("codes = %v, want [%s]", got, diag.CapUnsupportedMode.ID())
	}
	tag := res.Types[len(res.Types)-1]
	if tag.Name != "Tag" || !tag.DroppedIn("clone", emit.Freestanding) || tag.DroppedIn("clone", emit.Hosted) || tag.DroppedIn("eq", emit.Freestanding) {
		t.Fatalf("Tag dropped = %v", tag.Dropped)
	}
	hosted := output(t, res, "hosted_shapegen.go")
	if !strings.Contains(hosted, "func (v Tag) Clone() Tag {") || !strings.Contains(hosted, "func (v Tag) Equal(o Tag) bool {") {
		t.Errorf("hosted output lacks Tag:\n%s", hosted)
	}
	free := output(t, res, "freestanding_shapegen.go")
	if strings.Contains(free, "Clone") || !strings.Contains(free, "func (v Tag) Equal(o Tag) bool {") {
		t.Errorf("freestanding output should carry Tag.Equal only:\n%s", free)
	}
	if !strings.Contains(free, "func (v Point) Hash64(seed uint64) uint64 {") {
		t.Errorf("freestanding output lacks Point:\n%s", free)
	}
}

func TestGenerateDir_ShapeErrorDropsDeclaration(t *testing.T) {
	dir := writePkg(t, map[string]string{"geo.go": geoSrc + `
type Base struct{}

//shapegen:derive eq
type Bad struct {
	Base
	N int
}
`})
	res, err := GenerateDir(context.Background(), dir, options(t, gate.Default()))
	if err != nil {
		t.Fatal(err)
	}
	if got := codes(res.Bag); len(got) != 1 || got[0] != diag.ShpEmbeddedField {
		t.Fatalf("codes = %v", got)
	}
	if strings.Contains(output(t, res, "hosted_shapegen.go"), "Bad") {
		t.Error("Bad was emitted")
	}
}

func TestGenerateDir_CapabilityNotEnabled(t *testing.T) {
	dir := writePkg(t, map[string]string{"geo.go": geoSrc})
	cfg := gate.Default()
	cfg.Features.Capabilities = []string{"eq"}
	res, err := GenerateDir(context.Background(), dir, options(t, cfg))
	if err != nil {
		t.Fatal(err)
	}
	got := codes(res.Bag)
	if len(got) != 1 || got[0] != diag.CapNotEnabled {
		t.Fatalf("codes = %v", got)
	}
	hosted := output(t, res, "hosted_shapegen.go")
	if strings.Contains(hosted, "func (v Point) Hash(") {
		t.Error("Point.Hash emitted although hash is not enabled")
	}
	if !strings.Contains(hosted, "func (v Point) Equal(o Point) bool {") {
		t.Errorf("Point.Equal missing:\n%s", hosted)
	}
}

func TestGenerateDir_FreestandingOnlyWithoutConfig(t *testing.T) {
	dir := writePkg(t, map[string]string{"geo.go": `package geo

//shapegen:derive eq clone
type Tag struct{ Name string }
`})
	cfg := gate.Default()
	cfg.Features.Hosted, cfg.Features.Freestanding = false, true
	res, err := GenerateDir(context.Background(), dir, options(t, cfg))
	if err != nil {
		t.Fatal(err)
	}
	if got := codes(res.Bag); len(got) != 1 || got[0] != diag.CapUnsupportedMode {
		t.Fatalf("codes = %v", got)
	}
	free := output(t, res, "freestanding_shapegen.go")
	if !strings.Contains(free, "func (v Tag) Equal(o Tag) bool {") {
		t.Errorf("freestanding output lacks Tag.Equal:\n%s", free)
	}
}

func TestGenerateDir_CapabilitiesFailIndependently(t *testing.T) {
	dir := writePkg(t, map[string]string{"geo.go": `package geo

//shapegen:derive eq debug
type B struct {
	X int
	F func() ` + "`shapegen:\"debug:skip\"`" + `
}

//shapegen:derive eq debug
//shapegen:debug compact=yes
type C struct{ N int }
`})
	res, err := GenerateDir(context.Background(), dir, options(t, gate.Default()))
	if err != nil {
		t.Fatal(err)
	}
	got := codes(res.Bag)
	if len(got) != 2 || got[0] != diag.CapUnsupportedFieldType || got[1] != diag.AtrUnexpectedValue {
		t.Fatalf("codes = %v", got)
	}
	hosted := output(t, res, "hosted_shapegen.go")
	for _, want := range []string{"func (v B) String() string {", "func (v C) Equal(o C) bool {"} {
		if !strings.Contains(hosted, want) {
			t.Errorf("hosted output lacks %q:\n%s", want, hosted)
		}
	}
	for _, unwanted := range []string{"func (v B) Equal(", "func (v C) String("} {
		if strings.Contains(hosted, unwanted) {
			t.Errorf("hosted output carries %q", unwanted)
		}
	}
}

func TestGenerateDir_OutputFollowsDeclarationOrder(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("package geo\n")
	for i := 0; i < 24; i++ {
		fmt.Fprintf(&sb, "\n//shapegen:derive eq\ntype T%02d struct{ N int }\n", i)
	}
	dir := writePkg(t, map[string]string{"geo.go": sb.String()})
	var first string
	for run := 0; run < 3; run++ {
		opts := options(t, gate.Default())
		opts.Jobs = 8
		res, err := GenerateDir(context.Background(), dir, opts)
		if err != nil {
			t.Fatal(err)
		}
		src := output(t, res, "hosted_shapegen.go")
		last := -1
		for i := 0; i < 24; i++ {
			at := strings.Index(src, fmt.Sprintf("func (v T%02d) Equal", i))
			if at < last {
				t.Fatalf("T%02d out of order", i)
			}
			last = at
		}
		if run == 0 {
			first = src
		} else if src != first {
			t.Fatal("output differs between runs")
		}
	}
}

func TestGenerateDir_InvariantViolationIsFatal(t *testing.T) {
	dir := writePkg(t, map[string]string{"geo.go": `package geo

//shapegen:derive broken
type P struct{ N int }
`})
	_, err := GenerateDir(context.Background(), dir, options(t, bothModes()))
	if err == nil || !IsFatal(err) {
		t.Fatalf("err = %v, want an internal invariant violation", err)
	}
	var iv *diag.InternalInvariantViolation
	if !errors.As(err, &iv) || iv.Mode != "freestanding" || iv.Capability != "broken" {
		t.Errorf("violation = %+v", iv)
	}
}

func TestGenerateDir_ProgressEvents(t *testing.T) {
	dir := writePkg(t, map[string]string{"geo.go": geoSrc})
	rec := &pipeline.Recorder{}
	opts := options(t, gate.Default())
	opts.Sink = rec
	if _, err := GenerateDir(context.Background(), dir, opts); err != nil {
		t.Fatal(err)
	}
	done := map[string]bool{}
	for _, evt := range rec.Events() {
		if evt.Stage == pipeline.StageDerive && evt.Status == pipeline.StatusDone {
			done[evt.Item] = true
		}
	}
	if !done["Point"] || !done["Shape"] || len(done) != 2 {
		t.Errorf("derive done events for %v", done)
	}
}

func TestResult_WriteRemovesStale(t *testing.T) {
	dir := writePkg(t, map[string]string{"geo.go": geoSrc})
	stale := filepath.Join(dir, "freestanding_shapegen.go")
	if err := os.WriteFile(stale, []byte(emit.Banner+"\n\npackage geo\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := bothModes()
	cfg.Features.Capabilities = []string{"eq", "hash", "clone"}
	// clone has no freestanding emission, so every declaration leaves that mode.
	src := strings.Replace(geoSrc, "//shapegen:derive eq hash", "//shapegen:derive eq hash clone", 1)
	src = strings.Replace(src, "//shapegen:derive eq\ntype Shape", "//shapegen:derive eq clone\ntype Shape", 1)
	if err := os.WriteFile(filepath.Join(dir, "geo.go"), []byte(src), 0o600); err != nil {
		t.Fatal(err)
	}
	res, err := GenerateDir(context.Background(), dir, options(t, cfg))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Stale) != 1 || res.Stale[0] != "freestanding_shapegen.go" {
		t.Fatalf("stale = %v", res.Stale)
	}
	touched, err := res.Write(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(touched) != 2 {
		t.Errorf("touched = %v", touched)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale file still present: %v", err)
	}
	again, err := res.Write(dir)
	if err != nil || len(again) != 0 {
		t.Errorf("second write touched %v (%v)", again, err)
	}
}

func TestResult_WriteKeepsHandWrittenFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hosted_shapegen.go")
	if err := os.WriteFile(path, []byte("package geo\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	res := &Result{Stale: []string{"hosted_shapegen.go"}}
	touched, err := res.Write(dir)
	if err != nil || len(touched) != 0 {
		t.Fatalf("touched = %v (%v)", touched, err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("hand-written file removed: %v", err)
	}
}

func TestGenerateDir_DiskCache(t *testing.T) {
	dir := writePkg(t, map[string]string{"geo.go": geoSrc})
	cache, err := OpenDiskCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	opts := options(t, gate.Default())
	opts.Cache = cache
	first, err := GenerateDir(context.Background(), dir, opts)
	if err != nil {
		t.Fatal(err)
	}
	if first.Cached {
		t.Fatal("first run reported a cache hit")
	}
	second, err := GenerateDir(context.Background(), dir, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !second.Cached {
		t.Fatal("second run missed the cache")
	}
	if !bytes.Equal(first.Outputs[0].Content, second.Outputs[0].Content) {
		t.Error("cached output differs")
	}

	if err := os.WriteFile(filepath.Join(dir, "geo.go"), []byte(geoSrc+"\n// edited\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	third, err := GenerateDir(context.Background(), dir, opts)
	if err != nil {
		t.Fatal(err)
	}
	if third.Cached {
		t.Error("edited input hit the cache")
	}
}

func TestDumpThenGenerateIR(t *testing.T) {
	dir := writePkg(t, map[string]string{"geo.go": geoSrc})
	opts := options(t, gate.Default())
	direct, err := GenerateDir(context.Background(), dir, opts)
	if err != nil {
		t.Fatal(err)
	}

	irPath := filepath.Join(t.TempDir(), "geo.ir")
	f, err := os.Create(irPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Dump(context.Background(), dir, f, opts); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	fromIR, err := GenerateIR(context.Background(), irPath, opts)
	if err != nil {
		t.Fatal(err)
	}
	if fromIR.HasErrors() {
		t.Fatalf("diagnostics: %v", fromIR.Bag.Items())
	}
	if got, want := output(t, fromIR, "hosted_shapegen.go"), output(t, direct, "hosted_shapegen.go"); got != want {
		t.Errorf("IR output differs from direct output:\n%s\n---\n%s", got, want)
	}
}

func TestGenerateSchema(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "geo.yaml")
	content := `package: geo
path: example.com/geo
types:
  - name: Point
    derive: [eq, debug]
    fields:
      - name: X
        type: int
      - name: Y
        type: int
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	res, err := GenerateSchema(context.Background(), path, options(t, gate.Default()))
	if err != nil {
		t.Fatal(err)
	}
	if res.HasErrors() {
		t.Fatalf("diagnostics: %v", res.Bag.Items())
	}
	types := output(t, res, "types_shapegen.go")
	if !strings.Contains(types, "type Point struct {") {
		t.Errorf("types file:\n%s", types)
	}
	hosted := output(t, res, "hosted_shapegen.go")
	if !strings.Contains(hosted, "func (v Point) String() string {") {
		t.Errorf("hosted file:\n%s", hosted)
	}
}
