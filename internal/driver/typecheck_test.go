//go:build !shapegen_nodefault

package driver

import (
	"context"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shapegen/internal/diag"
	"shapegen/internal/emit"
)

const typecheckSrc = `package geo

//shapegen:derive eq hash debug typeinfo
type Point struct {
	X, Y int
}

//shapegen:derive eq hash debug
//shapegen:eq method=Same
type Inner struct {
	N    int
	Name string
	Data []byte
}

//shapegen:derive eq hash debug
type Outer struct {
	I    Inner
	List []Inner
	Grid [2]int
	At   Point
}

//shapegen:derive eq hash debug
type Shape interface{ isShape() }

type Circle struct {
	C Point
	R float64
}
type Square struct{ Side float64 }

func (Circle) isShape() {}
func (Square) isShape() {}

//shapegen:derive eq clone
//shapegen:tuple
type Pair struct {
	F0 string
	F1 []Inner
}
`

// checker type-checks generated files against the fixture package. The
// meta package is checked from its sources in this module.
type checker struct {
	fset *token.FileSet
	std  types.Importer
	meta *types.Package
}

func (c *checker) Import(path string) (*types.Package, error) {
	if path != "shapegen/meta" {
		return c.std.Import(path)
	}
	if c.meta != nil {
		return c.meta, nil
	}
	dir := filepath.Join("..", "..", "meta")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []*ast.File
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(c.fset, filepath.Join(dir, name), nil, 0)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	conf := types.Config{Importer: c.std}
	c.meta, err = conf.Check(path, c.fset, files, nil)
	return c.meta, err
}

func (c *checker) check(t *testing.T, sources map[string]string) {
	t.Helper()
	var files []*ast.File
	for name, src := range sources {
		f, err := parser.ParseFile(c.fset, name, src, parser.ParseComments)
		if err != nil {
			t.Fatalf("parse %s: %v", name, err)
		}
		files = append(files, f)
	}
	var errs []string
	conf := types.Config{
		Importer: c,
		Error:    func(err error) { errs = append(errs, err.Error()) },
	}
	if _, err := conf.Check("example.com/geo", c.fset, files, nil); err != nil && len(errs) == 0 {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		t.Errorf("generated code does not type-check:\n%s", strings.Join(errs, "\n"))
	}
}

func TestGenerateDir_OutputTypeChecks(t *testing.T) {
	dir := writePkg(t, map[string]string{"geo.go": typecheckSrc})
	res, err := GenerateDir(context.Background(), dir, options(t, bothModes()))
	if err != nil {
		t.Fatal(err)
	}
	// clone has no freestanding emission; everything else must succeed.
	for _, d := range res.Bag.Items() {
		if d.Code != diag.CapUnsupportedMode {
			t.Fatalf("unexpected diagnostic %s: %s", d.Code.ID(), d.Message)
		}
	}

	hosted := output(t, res, "hosted_shapegen.go")
	for _, want := range []string{"if !v.I.Same(o.I) {", "func (v Pair) Clone() Pair {", "func (v Point) ShapeInfo() meta.Type {"} {
		if !strings.Contains(hosted, want) {
			t.Errorf("hosted output lacks %q", want)
		}
	}

	for _, mode := range []emit.Mode{emit.Hosted, emit.Freestanding} {
		t.Run(mode.String(), func(t *testing.T) {
			fset := token.NewFileSet()
			c := &checker{fset: fset, std: importer.ForCompiler(fset, "source", nil)}
			name := mode.String() + "_shapegen.go"
			c.check(t, map[string]string{
				"geo.go": typecheckSrc,
				name:     output(t, res, name),
			})
		})
	}
}
