package emit

import (
	"strconv"
	"strings"
)

// FragmentKind classifies a top-level fragment.
type FragmentKind uint8

const (
	FragMethod FragmentKind = iota + 1
	FragFunc
	FragVar
	FragTypeDecl
	FragComment
)

func (k FragmentKind) String() string {
	switch k {
	case FragMethod:
		return "method"
	case FragFunc:
		return "func"
	case FragVar:
		return "var"
	case FragTypeDecl:
		return "type"
	case FragComment:
		return "comment"
	}
	return "invalid"
}

// Param is a named, typed slot: a parameter, result, receiver or type
// parameter (Type is then the constraint).
type Param struct {
	Name string
	Type string
}

// StructField is one field of an emitted struct type.
type StructField struct {
	Name string
	Type string
	Tag  string
}

// TypeSpec describes an emitted type declaration. Interfaces list method
// names, each niladic with no results.
type TypeSpec struct {
	Interface  bool
	TypeParams []Param
	Fields     []StructField
	Methods    []string
}

// Fragment is one top-level declaration of emitted code.
type Fragment struct {
	Kind       FragmentKind
	Doc        []string
	Name       string
	Recv       *Param
	TypeParams []Param
	Params     []Param
	Results    []Param
	Body       []Stmt

	// FragVar
	VarType string
	Value   Expr

	// FragTypeDecl
	Spec *TypeSpec
}

// Expr is a Go expression. Build it with the helpers below rather than by
// hand so that precedence stays explicit.
type Expr string

// Ident returns a bare identifier expression.
func Ident(name string) Expr { return Expr(name) }

// Sel returns x.name.
func Sel(x Expr, name string) Expr { return x + "." + Expr(name) }

// Call returns fn(args...).
func Call(fn Expr, args ...Expr) Expr {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = string(a)
	}
	return fn + "(" + Expr(strings.Join(parts, ", ")) + ")"
}

// Index returns x[i].
func Index(x, i Expr) Expr { return x + "[" + i + "]" }

// Bin returns x op y, parenthesising operands that are not primary
// expressions.
func Bin(op string, x, y Expr) Expr { return paren(x) + " " + Expr(op) + " " + paren(y) }

// Not returns !x.
func Not(x Expr) Expr { return "!" + paren(x) }

func paren(x Expr) Expr {
	if primary(x) {
		return x
	}
	return "(" + x + ")"
}

// primary reports whether x has no operator outside brackets or literals:
// an operand, selector, index, call or conversion.
func primary(x Expr) bool {
	depth := 0
	var quote byte
	for i := 0; i < len(x); i++ {
		c := x[i]
		switch {
		case quote != 0:
			if c == '\\' && quote != '`' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'' || c == '`':
			quote = c
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case depth == 0 && strings.IndexByte(" +-*/%&|^<>=!:", c) >= 0:
			return false
		}
	}
	return true
}

// Str returns a quoted string literal.
func Str(s string) Expr { return Expr(strconv.Quote(s)) }

// Int returns a decimal literal.
func Int(n int) Expr { return Expr(strconv.Itoa(n)) }

// Conv returns typ(x).
func Conv(typ string, x Expr) Expr { return Expr(typ) + "(" + x + ")" }

// Spread returns x... for variadic calls.
func Spread(x Expr) Expr { return x + "..." }

// Composite returns typ{elems...}, one element per line.
func Composite(typ string, elems ...Expr) Expr {
	if len(elems) == 0 {
		return Expr(typ) + "{}"
	}
	var sb strings.Builder
	sb.WriteString(typ)
	sb.WriteString("{\n")
	for _, e := range elems {
		sb.WriteString(string(e))
		sb.WriteString(",\n")
	}
	sb.WriteString("}")
	return Expr(sb.String())
}

// KeyValue returns key: value for composite literals.
func KeyValue(key string, value Expr) Expr { return Expr(key) + ": " + value }

// FuncLit returns an inline function literal.
func FuncLit(params, results []Param, body []Stmt) Expr {
	var p printer
	p.signature(params, results)
	p.block(body)
	return Expr("func" + p.sb.String())
}

// Stmt is a statement in a fragment body.
type Stmt interface{ stmtNode() }

// Return returns the given results.
type Return struct{ Results []Expr }

// If runs Then when Cond holds and Else otherwise.
type If struct {
	Cond Expr
	Then []Stmt
	Else []Stmt
}

// Assign is lhs tok rhs, with Tok one of "=", ":=", "+=", "^=", "*=".
type Assign struct {
	Lhs []Expr
	Tok string
	Rhs []Expr
}

// ExprStmt evaluates X for its effect.
type ExprStmt struct{ X Expr }

// Var declares a variable, optionally initialised.
type Var struct {
	Name  string
	Type  string
	Value Expr
}

// Range is for Key, Value := range X.
type Range struct {
	Key   string
	Value string
	X     Expr
	Body  []Stmt
}

// Switch is an expression switch, or a type switch when TypeSwitch is set
// (Bind := X.(type)).
type Switch struct {
	TypeSwitch bool
	Bind       string
	X          Expr
	Cases      []Case
}

// Case is one switch arm; no Exprs means default.
type Case struct {
	Exprs []Expr
	Body  []Stmt
}

// Comment is a line comment inside a body.
type Comment struct{ Text string }

func (Return) stmtNode()   {}
func (If) stmtNode()       {}
func (Assign) stmtNode()   {}
func (ExprStmt) stmtNode() {}
func (Var) stmtNode()      {}
func (Range) stmtNode()    {}
func (Switch) stmtNode()   {}
func (Comment) stmtNode()  {}

// Ret is shorthand for a Return statement.
func Ret(results ...Expr) Stmt { return Return{Results: results} }

// Set is shorthand for lhs = rhs.
func Set(lhs Expr, tok string, rhs Expr) Stmt {
	return Assign{Lhs: []Expr{lhs}, Tok: tok, Rhs: []Expr{rhs}}
}

// Do is shorthand for an expression statement.
func Do(x Expr) Stmt { return ExprStmt{X: x} }

// Assert returns the type assertion x.(typ).
func Assert(x Expr, typ string) Expr { return x + ".(" + Expr(typ) + ")" }
