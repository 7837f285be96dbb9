// Package goscan is the Go-source frontend: it reads a package directory and
// produces raw declarations for every type declaration it finds, marking the
// ones annotated with //shapegen:derive.
package goscan

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/mod/modfile"

	"shapegen/internal/decl"
	"shapegen/internal/diag"
	"shapegen/internal/source"
)

// TagKey is the struct tag key carrying field options.
const TagKey = "shapegen"

// GeneratedSuffix marks files written by the engine; they are never scanned.
const GeneratedSuffix = "_shapegen.go"

// Scanner parses Go files into a decl.Batch.
type Scanner struct {
	Files   *source.FileSet
	PkgPath string
	tokens  *token.FileSet
}

// New returns a Scanner writing loaded files into fs.
func New(fs *source.FileSet, pkgPath string) *Scanner {
	return &Scanner{Files: fs, PkgPath: pkgPath, tokens: token.NewFileSet()}
}

// ListGoFiles returns the sorted non-test, non-generated Go files of dir.
func ListGoFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") {
			continue
		}
		if strings.HasSuffix(name, "_test.go") || strings.HasSuffix(name, GeneratedSuffix) {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}

// ScanDir loads and parses every Go file of dir. Parse failures become
// diagnostics in bag; only directory-level IO errors are returned.
func (s *Scanner) ScanDir(dir string, bag *diag.Bag) (*decl.Batch, error) {
	files, err := ListGoFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	if s.PkgPath == "" {
		s.PkgPath = ResolvePkgPath(dir)
	}
	var decls []*decl.Decl
	pkgName := ""
	for _, path := range files {
		id, err := s.Files.Load(path)
		if err != nil {
			bag.Add(diag.NewError(diag.IOLoadFile, source.NoSpan, fmt.Sprintf("%s: %v", path, err)))
			continue
		}
		name, fileDecls := s.scan(id, bag)
		if pkgName == "" {
			pkgName = name
		}
		decls = append(decls, fileDecls...)
	}
	return s.batch(pkgName, decls), nil
}

// ParseSource parses in-memory files (name -> content) in name order.
func (s *Scanner) ParseSource(files map[string]string, bag *diag.Bag) *decl.Batch {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	var decls []*decl.Decl
	pkgName := ""
	for _, name := range names {
		id := s.Files.AddVirtual(name, []byte(files[name]))
		pn, fileDecls := s.scan(id, bag)
		if pkgName == "" {
			pkgName = pn
		}
		decls = append(decls, fileDecls...)
	}
	return s.batch(pkgName, decls)
}

func (s *Scanner) batch(pkgName string, decls []*decl.Decl) *decl.Batch {
	if s.PkgPath == "" {
		s.PkgPath = pkgName
	}
	merged := mergeStubs(decls)
	for _, d := range merged {
		d.PkgName = pkgName
		d.PkgPath = s.PkgPath
	}
	return decl.NewBatch(s.PkgPath, pkgName, merged)
}

// mergeStubs folds method-only stubs (types whose methods live in another
// file than the type) into the named declaration. Stubs have no span.
func mergeStubs(decls []*decl.Decl) []*decl.Decl {
	named := make(map[string]*decl.Decl, len(decls))
	for _, d := range decls {
		if d.Span != source.NoSpan {
			if _, seen := named[d.Name]; !seen {
				named[d.Name] = d
			}
		}
	}
	out := make([]*decl.Decl, 0, len(decls))
	stubs := make(map[string]*decl.Decl)
	for _, d := range decls {
		if d.Span != source.NoSpan {
			out = append(out, d)
			continue
		}
		if r, ok := named[d.Name]; ok {
			r.MarkerOf = append(r.MarkerOf, d.MarkerOf...)
			r.PtrMarkers = append(r.PtrMarkers, d.PtrMarkers...)
			continue
		}
		if prev, ok := stubs[d.Name]; ok {
			prev.MarkerOf = append(prev.MarkerOf, d.MarkerOf...)
			prev.PtrMarkers = append(prev.PtrMarkers, d.PtrMarkers...)
			continue
		}
		stubs[d.Name] = d
		out = append(out, d)
	}
	return out
}

func (s *Scanner) scan(id source.FileID, bag *diag.Bag) (string, []*decl.Decl) {
	sf := s.Files.Get(id)
	file, err := parser.ParseFile(s.tokens, sf.Path, sf.Content, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		var list scanner.ErrorList
		if errors.As(err, &list) {
			for _, e := range list {
				sp := source.SpanOf(id, e.Pos.Offset, e.Pos.Offset)
				bag.Add(diag.NewError(diag.IOParseFile, sp, e.Msg))
			}
		} else {
			bag.Add(diag.NewError(diag.IOParseFile, source.NoSpan, err.Error()))
		}
		if file == nil || file.Name == nil {
			return "", nil
		}
		// partial trees carry unreliable positions
		return file.Name.Name, nil
	}
	fs := &fileScan{id: id, src: sf.Content, tokens: s.tokens, bag: bag}
	return file.Name.Name, fs.collect(file)
}

type fileScan struct {
	id     source.FileID
	src    []byte
	tokens *token.FileSet
	bag    *diag.Bag
}

func (f *fileScan) span(from, to token.Pos) source.Span {
	return source.SpanOf(f.id, f.tokens.Position(from).Offset, f.tokens.Position(to).Offset)
}

func (f *fileScan) text(n ast.Node) string {
	return string(f.src[f.tokens.Position(n.Pos()).Offset:f.tokens.Position(n.End()).Offset])
}

func (f *fileScan) collect(file *ast.File) []*decl.Decl {
	var out []*decl.Decl
	byName := make(map[string]*decl.Decl)
	for _, d := range file.Decls {
		gd, ok := d.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		for _, spec := range gd.Specs {
			ts := spec.(*ast.TypeSpec)
			doc := ts.Doc
			if doc == nil && len(gd.Specs) == 1 {
				doc = gd.Doc
			}
			rd := f.typeDecl(ts, doc)
			out = append(out, rd)
			byName[rd.Name] = rd
		}
	}
	// markers are attached after all type specs of the file are known
	for _, d := range file.Decls {
		fd, ok := d.(*ast.FuncDecl)
		if !ok || fd.Recv == nil || len(fd.Recv.List) != 1 {
			continue
		}
		if fd.Type.Params.NumFields() != 0 || fd.Type.Results.NumFields() != 0 {
			continue
		}
		recv, ptr := receiverName(fd.Recv.List[0].Type)
		rd, ok := byName[recv]
		if !ok && recv != "" {
			// method declared in another file: keep a stub, batch merges by name
			rd = &decl.Decl{Name: recv, Kind: decl.KindUnknown}
			out = append(out, rd)
			ok = true
		}
		if ok {
			rd.MarkerOf = append(rd.MarkerOf, fd.Name.Name)
			if ptr {
				rd.PtrMarkers = append(rd.PtrMarkers, fd.Name.Name)
			}
		}
	}
	return out
}

func receiverName(expr ast.Expr) (name string, ptr bool) {
	for {
		switch e := expr.(type) {
		case *ast.StarExpr:
			ptr = true
			expr = e.X
		case *ast.IndexExpr:
			expr = e.X
		case *ast.IndexListExpr:
			expr = e.X
		case *ast.ParenExpr:
			expr = e.X
		case *ast.Ident:
			return e.Name, ptr
		default:
			return "", false
		}
	}
}

func (f *fileScan) typeDecl(ts *ast.TypeSpec, doc *ast.CommentGroup) *decl.Decl {
	rd := &decl.Decl{
		Name:     ts.Name.Name,
		Span:     f.span(ts.Pos(), ts.End()),
		NameSpan: f.span(ts.Name.Pos(), ts.Name.End()),
	}
	f.directives(rd, doc)

	var paramNames []string
	if ts.TypeParams != nil {
		for _, field := range ts.TypeParams.List {
			bound := f.text(field.Type)
			for _, n := range field.Names {
				rd.Params = append(rd.Params, decl.TypeParam{Name: n.Name, Bound: bound, Span: f.span(n.Pos(), n.End())})
				paramNames = append(paramNames, n.Name)
			}
		}
	}

	switch t := ts.Type.(type) {
	case *ast.StructType:
		rd.Kind = decl.KindStruct
		if rd.HasDirective("tuple") {
			rd.Kind = decl.KindTuple
		}
		rd.Fields = f.fields(t, paramNames)
	case *ast.InterfaceType:
		if marker, ok := markerMethod(t); ok && !ts.Assign.IsValid() {
			rd.Kind = decl.KindSum
			rd.Marker = marker
		}
	}
	return rd
}

func (f *fileScan) directives(rd *decl.Decl, doc *ast.CommentGroup) {
	if doc == nil {
		return
	}
	for _, c := range doc.List {
		dir, ok := parseDirective(c.Text, f.id, f.tokens.Position(c.Slash).Offset)
		if !ok {
			continue
		}
		switch dir.Verb {
		case "derive":
			rd.Annotated = true
			rd.Derive = append(rd.Derive, dir.Args...)
		case "variants":
			rd.Variants = append(rd.Variants, dir.Args...)
		}
		rd.Directives = append(rd.Directives, dir)
	}
}

// markerMethod accepts interfaces whose only element is one unexported
// method without parameters or results.
func markerMethod(t *ast.InterfaceType) (string, bool) {
	if t.Methods == nil || len(t.Methods.List) != 1 {
		return "", false
	}
	m := t.Methods.List[0]
	ft, ok := m.Type.(*ast.FuncType)
	if !ok || len(m.Names) != 1 || ast.IsExported(m.Names[0].Name) {
		return "", false
	}
	if ft.Params.NumFields() != 0 || ft.Results.NumFields() != 0 {
		return "", false
	}
	return m.Names[0].Name, true
}

func (f *fileScan) fields(st *ast.StructType, params []string) []decl.Field {
	var out []decl.Field
	for _, field := range st.Fields.List {
		ref := f.typeRef(field.Type, params)
		tag, tagSpan := f.tag(field.Tag)
		if len(field.Names) == 0 {
			name, _ := receiverName(field.Type)
			out = append(out, decl.Field{
				Name:     name,
				Embedded: true,
				Type:     ref,
				Tag:      tag,
				TagSpan:  tagSpan,
				Span:     f.span(field.Pos(), field.End()),
			})
			continue
		}
		for _, n := range field.Names {
			out = append(out, decl.Field{
				Name:    n.Name,
				Type:    ref,
				Tag:     tag,
				TagSpan: tagSpan,
				Span:    f.span(n.Pos(), n.End()),
			})
		}
	}
	return out
}

// tag returns the shapegen tag value and a span whose Start lines up with the
// value's first byte when the literal is a raw string.
func (f *fileScan) tag(lit *ast.BasicLit) (string, source.Span) {
	if lit == nil {
		return "", source.NoSpan
	}
	raw, err := strconv.Unquote(lit.Value)
	if err != nil {
		return "", source.NoSpan
	}
	value, ok := reflect.StructTag(raw).Lookup(TagKey)
	if !ok {
		return "", source.NoSpan
	}
	litSpan := f.span(lit.Pos(), lit.End())
	if strings.HasPrefix(lit.Value, "`") {
		if i := strings.Index(lit.Value, TagKey+`:"`); i >= 0 {
			start := int(litSpan.Start) + i + len(TagKey) + 2
			return value, source.SpanOf(f.id, start, start+len(value))
		}
	}
	return value, litSpan
}

func (f *fileScan) typeRef(expr ast.Expr, params []string) decl.TypeRef {
	ref := decl.TypeRef{Text: f.text(expr)}
	switch e := expr.(type) {
	case *ast.Ident:
		switch {
		case decl.IsPrimitiveName(e.Name):
			ref.Kind = decl.RefPrimitive
		case contains(params, e.Name):
			ref.Kind = decl.RefParam
		default:
			ref.Kind = decl.RefNamed
		}
	case *ast.SelectorExpr, *ast.IndexExpr, *ast.IndexListExpr:
		ref.Kind = decl.RefNamed
	case *ast.ArrayType:
		elem := f.typeRef(e.Elt, params)
		ref.Elem = &elem
		if e.Len == nil {
			ref.Kind = decl.RefSlice
		} else {
			ref.Kind = decl.RefArray
			ref.Len = f.text(e.Len)
		}
	case *ast.StarExpr:
		elem := f.typeRef(e.X, params)
		ref.Kind, ref.Elem = decl.RefPointer, &elem
	case *ast.MapType:
		ref.Kind = decl.RefMap
	case *ast.ParenExpr:
		return f.typeRef(e.X, params)
	}
	return ref
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ResolvePkgPath derives the import path of dir from the nearest go.mod.
// It falls back to the directory base name outside a module.
func ResolvePkgPath(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return filepath.Base(dir)
	}
	for cur := abs; ; {
		data, err := os.ReadFile(filepath.Join(cur, "go.mod"))
		if err == nil {
			mod := modfile.ModulePath(data)
			if mod == "" {
				break
			}
			rel, err := filepath.Rel(cur, abs)
			if err != nil || rel == "." {
				return mod
			}
			return mod + "/" + filepath.ToSlash(rel)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}
	return filepath.Base(abs)
}
