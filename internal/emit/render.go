package emit

import (
	"fmt"
	"go/format"
	"slices"
	"strings"
)

// Banner opens every generated file; goscan skips files carrying it.
const Banner = "// Code generated by shapegen. DO NOT EDIT."

// File is one output file: units of a single package, rendered for Mode.
// A zero Mode renders without a build constraint (type declarations).
type File struct {
	Package string
	Mode    Mode
	Units   []*Unit
}

// Render prints f as gofmt-formatted Go source. Identical input yields
// byte-identical output.
func Render(f File) ([]byte, error) {
	var p printer
	p.line(Banner)
	p.line("")
	if f.Mode != 0 {
		p.line("//go:build " + f.Mode.Constraint())
		p.line("")
	}
	p.line("package " + f.Package)

	imports := collectImports(f.Units)
	if len(imports) > 0 {
		p.line("")
		p.line("import (")
		for _, fac := range imports {
			if fac.Name != lastSegment(fac.Path) {
				p.printf("\t%s %q\n", fac.Name, fac.Path)
				continue
			}
			p.printf("\t%q\n", fac.Path)
		}
		p.line(")")
	}

	for _, u := range f.Units {
		for _, frag := range u.fragments {
			p.line("")
			p.fragment(frag)
		}
	}

	out, err := format.Source([]byte(p.sb.String()))
	if err != nil {
		return nil, fmt.Errorf("format generated %s code: %w", f.Package, err)
	}
	return out, nil
}

func collectImports(units []*Unit) []Facility {
	byPath := make(map[string]Facility)
	for _, u := range units {
		for _, fac := range u.facilities {
			byPath[fac.Path] = fac
		}
	}
	out := make([]Facility, 0, len(byPath))
	for _, fac := range byPath {
		out = append(out, fac)
	}
	slices.SortFunc(out, func(a, b Facility) int { return strings.Compare(a.Path, b.Path) })
	return out
}

func lastSegment(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

type printer struct {
	sb strings.Builder
}

func (p *printer) line(s string) {
	p.sb.WriteString(s)
	p.sb.WriteByte('\n')
}

func (p *printer) printf(format string, args ...any) {
	fmt.Fprintf(&p.sb, format, args...)
}

func (p *printer) doc(lines []string) {
	for _, l := range lines {
		if l == "" {
			p.line("//")
			continue
		}
		p.line("// " + l)
	}
}

func (p *printer) fragment(f Fragment) {
	p.doc(f.Doc)
	switch f.Kind {
	case FragComment:
	case FragMethod:
		p.printf("func (%s %s) %s", f.Recv.Name, f.Recv.Type, f.Name)
		p.signature(f.Params, f.Results)
		p.block(f.Body)
		p.sb.WriteByte('\n')
	case FragFunc:
		p.sb.WriteString("func " + f.Name)
		p.typeParams(f.TypeParams)
		p.signature(f.Params, f.Results)
		p.block(f.Body)
		p.sb.WriteByte('\n')
	case FragVar:
		p.sb.WriteString("var " + f.Name)
		if f.VarType != "" {
			p.sb.WriteString(" " + f.VarType)
		}
		if f.Value != "" {
			p.sb.WriteString(" = " + string(f.Value))
		}
		p.sb.WriteByte('\n')
	case FragTypeDecl:
		p.typeDecl(f.Name, f.Spec)
	}
}

func (p *printer) typeParams(params []Param) {
	if len(params) == 0 {
		return
	}
	p.sb.WriteByte('[')
	p.params(params)
	p.sb.WriteByte(']')
}

// params prints a parameter list, grouping consecutive named parameters of
// the same type ("a, b T").
func (p *printer) params(params []Param) {
	for i, prm := range params {
		if i > 0 {
			p.sb.WriteString(", ")
		}
		if prm.Name == "" {
			p.sb.WriteString(prm.Type)
			continue
		}
		p.sb.WriteString(prm.Name)
		if i+1 < len(params) && params[i+1].Name != "" && params[i+1].Type == prm.Type {
			continue
		}
		p.sb.WriteString(" " + prm.Type)
	}
}

func (p *printer) signature(params, results []Param) {
	p.sb.WriteByte('(')
	p.params(params)
	p.sb.WriteByte(')')
	switch {
	case len(results) == 1 && results[0].Name == "":
		p.sb.WriteString(" " + results[0].Type)
	case len(results) > 0:
		p.sb.WriteString(" (")
		p.params(results)
		p.sb.WriteByte(')')
	}
}

func (p *printer) block(body []Stmt) {
	if len(body) == 0 {
		p.sb.WriteString(" {}")
		return
	}
	p.sb.WriteString(" {\n")
	for _, s := range body {
		p.stmt(s)
	}
	p.sb.WriteString("}")
}

func (p *printer) exprs(xs []Expr) {
	for i, x := range xs {
		if i > 0 {
			p.sb.WriteString(", ")
		}
		p.sb.WriteString(string(x))
	}
}

func (p *printer) stmt(s Stmt) {
	switch s := s.(type) {
	case Return:
		p.sb.WriteString("return")
		if len(s.Results) > 0 {
			p.sb.WriteByte(' ')
			p.exprs(s.Results)
		}
	case If:
		p.sb.WriteString("if " + string(s.Cond))
		p.block(s.Then)
		if len(s.Else) > 0 {
			p.sb.WriteString(" else")
			p.block(s.Else)
		}
	case Assign:
		p.exprs(s.Lhs)
		p.sb.WriteString(" " + s.Tok + " ")
		p.exprs(s.Rhs)
	case ExprStmt:
		p.sb.WriteString(string(s.X))
	case Var:
		p.sb.WriteString("var " + s.Name)
		if s.Type != "" {
			p.sb.WriteString(" " + s.Type)
		}
		if s.Value != "" {
			p.sb.WriteString(" = " + string(s.Value))
		}
	case Range:
		p.sb.WriteString("for ")
		switch {
		case s.Key != "" && s.Value != "":
			p.sb.WriteString(s.Key + ", " + s.Value + " := ")
		case s.Key != "":
			p.sb.WriteString(s.Key + " := ")
		case s.Value != "":
			p.sb.WriteString("_, " + s.Value + " := ")
		}
		p.sb.WriteString("range " + string(s.X))
		p.block(s.Body)
	case Switch:
		p.sb.WriteString("switch ")
		if s.TypeSwitch {
			if s.Bind != "" {
				p.sb.WriteString(s.Bind + " := ")
			}
			p.sb.WriteString(string(s.X) + ".(type)")
		} else {
			p.sb.WriteString(string(s.X))
		}
		p.sb.WriteString(" {\n")
		for _, c := range s.Cases {
			if len(c.Exprs) == 0 {
				p.sb.WriteString("default:\n")
			} else {
				p.sb.WriteString("case ")
				p.exprs(c.Exprs)
				p.sb.WriteString(":\n")
			}
			for _, st := range c.Body {
				p.stmt(st)
			}
		}
		p.sb.WriteString("}")
	case Comment:
		p.sb.WriteString("// " + s.Text)
	default:
		panic(fmt.Sprintf("emit: unknown statement %T", s))
	}
	p.sb.WriteByte('\n')
}

func (p *printer) typeDecl(name string, spec *TypeSpec) {
	p.sb.WriteString("type " + name)
	p.typeParams(spec.TypeParams)
	if spec.Interface {
		p.sb.WriteString(" interface {\n")
		for _, m := range spec.Methods {
			p.line(m + "()")
		}
		p.line("}")
		return
	}
	p.sb.WriteString(" struct {\n")
	for _, f := range spec.Fields {
		p.sb.WriteString(f.Name + " " + f.Type)
		if f.Tag != "" {
			p.sb.WriteString(" `" + f.Tag + "`")
		}
		p.sb.WriteByte('\n')
	}
	p.line("}")
}
