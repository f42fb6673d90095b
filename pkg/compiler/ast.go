package compiler

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Pos is a source position: 1-based line, 0-based column.
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Col) }

// Node is implemented by every syntax tree node. The set of implementations
// is closed: only this package can add variants.
type Node interface {
	Pos() Pos
	String() string
	node()
}

// Expr is implemented by every node that produces a value.
type Expr interface {
	Node
	exprNode()
}

// Stmt is implemented by every node that does not produce a value.
type Stmt interface {
	Node
	stmtNode()
}

//  Operators

// BinaryOp is an arithmetic or bitwise operator of a BinOp or AugAssign.
type BinaryOp int

const (
	Add BinaryOp = iota
	Sub
	Mult
	Div
	FloorDiv
	Mod
	Pow
	LShift
	RShift
	BitOr
	BitXor
	BitAnd
	MatMult
)

var binaryOpText = [...]string{
	Add: "+", Sub: "-", Mult: "*", Div: "/", FloorDiv: "//", Mod: "%", Pow: "**",
	LShift: "<<", RShift: ">>", BitOr: "|", BitXor: "^", BitAnd: "&", MatMult: "@",
}

func (op BinaryOp) String() string { return binaryOpText[op] }

// UnaryOperator is the operator of a UnaryOp.
type UnaryOperator int

const (
	Invert UnaryOperator = iota
	Not
	UAdd
	USub
)

var unaryOpText = [...]string{Invert: "~", Not: "not ", UAdd: "+", USub: "-"}

func (op UnaryOperator) String() string { return unaryOpText[op] }

// BoolOperator is the operator of a BoolOp.
type BoolOperator int

const (
	And BoolOperator = iota
	Or
)

func (op BoolOperator) String() string {
	if op == And {
		return "and"
	}
	return "or"
}

// CmpOp is a single comparison operator inside a Compare chain.
type CmpOp int

const (
	Eq CmpOp = iota
	NotEq
	Lt
	LtE
	Gt
	GtE
	Is
	IsNot
	In
	NotIn
)

var cmpOpText = [...]string{
	Eq: "==", NotEq: "!=", Lt: "<", LtE: "<=", Gt: ">", GtE: ">=",
	Is: "is", IsNot: "is not", In: "in", NotIn: "not in",
}

func (op CmpOp) String() string { return cmpOpText[op] }

//  Expression nodes

// Name is a bare identifier reference.
//
//	return x
//	       ^  Name{ID: "x"}
type Name struct {
	At Pos
	ID string
}

// Num is a numeric literal. Exactly one of Int / Float is meaningful.
type Num struct {
	At      Pos
	IsFloat bool
	Int     int64
	Float   float64
}

// ConstantKind enumerates the named constants.
type ConstantKind int

const (
	ConstTrue ConstantKind = iota
	ConstFalse
	ConstNone
)

// Constant is True, False or None.
type Constant struct {
	At   Pos
	Kind ConstantKind
}

// Str is a string literal. It parses but never translates.
type Str struct {
	At    Pos
	Value string
}

// BinOp represents Left Op Right.
//
//	x + 1
//	^ ^ ^
//	| | Right
//	| Op (OpAt)
//	Left
type BinOp struct {
	Left  Expr
	Op    BinaryOp
	OpAt  Pos
	Right Expr
}

// UnaryOp represents Op Operand (e.g. -x, not y).
type UnaryOp struct {
	At      Pos
	Op      UnaryOperator
	Operand Expr
}

// BoolOp represents Values[0] Op Values[1] Op ... with short-circuiting.
type BoolOp struct {
	Op     BoolOperator
	Values []Expr
}

// Compare represents a comparison chain: Left Ops[0] Comparators[0] Ops[1] ...
type Compare struct {
	Left        Expr
	Ops         []CmpOp
	OpsAt       []Pos
	Comparators []Expr
}

// Keyword is a name=value argument of a Call.
type Keyword struct {
	At    Pos
	Name  string
	Value Expr
}

// Call represents Func(Args..., Keywords...).
type Call struct {
	Func     Expr
	Args     []Expr
	Keywords []Keyword
}

// Attribute represents Value.Attr.
type Attribute struct {
	Value Expr
	Attr  string
}

// Subscript represents Value[Index]. Index may be a Tuple or Slice, which
// only type annotations accept.
type Subscript struct {
	Value Expr
	Index Expr
}

// Slice represents lower:upper:step inside a subscript.
type Slice struct {
	At    Pos
	Lower Expr
	Upper Expr
	Step  Expr
}

// Tuple is a comma separated expression list.
type Tuple struct {
	At   Pos
	Elts []Expr
}

// List is a bracketed expression list [a, b].
type List struct {
	At   Pos
	Elts []Expr
}

func (*Name) node()      {}
func (*Num) node()       {}
func (*Constant) node()  {}
func (*Str) node()       {}
func (*BinOp) node()     {}
func (*UnaryOp) node()   {}
func (*BoolOp) node()    {}
func (*Compare) node()   {}
func (*Call) node()      {}
func (*Attribute) node() {}
func (*Subscript) node() {}
func (*Slice) node()     {}
func (*Tuple) node()     {}
func (*List) node()      {}

func (*Name) exprNode()      {}
func (*Num) exprNode()       {}
func (*Constant) exprNode()  {}
func (*Str) exprNode()       {}
func (*BinOp) exprNode()     {}
func (*UnaryOp) exprNode()   {}
func (*BoolOp) exprNode()    {}
func (*Compare) exprNode()   {}
func (*Call) exprNode()      {}
func (*Attribute) exprNode() {}
func (*Subscript) exprNode() {}
func (*Slice) exprNode()     {}
func (*Tuple) exprNode()     {}
func (*List) exprNode()      {}

func (n *Name) Pos() Pos      { return n.At }
func (n *Num) Pos() Pos       { return n.At }
func (n *Constant) Pos() Pos  { return n.At }
func (n *Str) Pos() Pos       { return n.At }
func (n *BinOp) Pos() Pos     { return n.Left.Pos() }
func (n *UnaryOp) Pos() Pos   { return n.At }
func (n *BoolOp) Pos() Pos    { return n.Values[0].Pos() }
func (n *Compare) Pos() Pos   { return n.Left.Pos() }
func (n *Call) Pos() Pos      { return n.Func.Pos() }
func (n *Attribute) Pos() Pos { return n.Value.Pos() }
func (n *Subscript) Pos() Pos { return n.Value.Pos() }
func (n *Slice) Pos() Pos     { return n.At }
func (n *Tuple) Pos() Pos     { return n.At }
func (n *List) Pos() Pos      { return n.At }

func (n *Name) String() string { return n.ID }
func (n *Num) String() string  { return n.Text() }
func (n *Constant) String() string {
	switch n.Kind {
	case ConstTrue:
		return "True"
	case ConstFalse:
		return "False"
	}
	return "None"
}
func (n *Str) String() string { return fmt.Sprintf("%q", n.Value) }
func (n *BinOp) String() string {
	return fmt.Sprintf("(%s %s %s)", n.Left, n.Op, n.Right)
}
func (n *UnaryOp) String() string { return fmt.Sprintf("(%s%s)", n.Op, n.Operand) }
func (n *BoolOp) String() string {
	return "(" + joinNodes(n.Values, " "+n.Op.String()+" ") + ")"
}
func (n *Compare) String() string {
	var b strings.Builder
	b.WriteString("(")
	b.WriteString(n.Left.String())
	for i, op := range n.Ops {
		fmt.Fprintf(&b, " %s %s", op, n.Comparators[i])
	}
	b.WriteString(")")
	return b.String()
}
func (n *Call) String() string {
	args := joinNodes(n.Args, ", ")
	for _, kw := range n.Keywords {
		if args != "" {
			args += ", "
		}
		args += kw.Name + "=" + kw.Value.String()
	}
	return fmt.Sprintf("%s(%s)", n.Func, args)
}
func (n *Attribute) String() string { return fmt.Sprintf("%s.%s", n.Value, n.Attr) }
func (n *Subscript) String() string { return fmt.Sprintf("%s[%s]", n.Value, n.Index) }
func (n *Slice) String() string {
	part := func(e Expr) string {
		if e == nil {
			return ""
		}
		return e.String()
	}
	s := part(n.Lower) + ":" + part(n.Upper)
	if n.Step != nil {
		s += ":" + part(n.Step)
	}
	return s
}
func (n *Tuple) String() string { return "(" + joinNodes(n.Elts, ", ") + ")" }
func (n *List) String() string  { return "[" + joinNodes(n.Elts, ", ") + "]" }

//  Statement nodes

// Arg is a single declared parameter.
type Arg struct {
	At         Pos
	Name       string
	Annotation Expr // nil when the parameter is untyped
}

// Arguments is the full parameter list of a FunctionDef.
type Arguments struct {
	At         Pos
	Args       []Arg
	Vararg     *Arg   // *args
	KwOnly     []Arg  // parameters after * or *args
	Kwarg      *Arg   // **kwargs
	Defaults   []Expr // defaults of trailing positional parameters
	KwDefaults []Expr // non-nil entries are defaults of keyword-only parameters
}

// FunctionDef represents  @decorators def Name(Args) -> Returns: Body
type FunctionDef struct {
	At         Pos // position of the "def" keyword
	Name       string
	Decorators []Expr
	Args       Arguments
	Returns    Expr // nil when no return annotation was written
	Body       []Stmt
	EndLine    int // last source line of the definition
}

// Assign represents  Targets[0] = Targets[1] = ... = Value
type Assign struct {
	Targets []Expr
	Value   Expr
}

// AnnAssign represents  Target: Annotation [= Value]
type AnnAssign struct {
	Target     Expr
	Annotation Expr
	Value      Expr // may be nil
}

// AugAssign represents  Target Op= Value
type AugAssign struct {
	Target Expr
	Op     BinaryOp
	OpAt   Pos
	Value  Expr
}

// If represents  if Test: Body [elif ... | else: Orelse]
// An elif chain is an Orelse holding a single *If.
type If struct {
	At     Pos
	Test   Expr
	Body   []Stmt
	Orelse []Stmt
}

// For represents  for Target in Iter: Body [else: Orelse]
type For struct {
	At     Pos
	Target Expr
	Iter   Expr
	Body   []Stmt
	Orelse []Stmt
}

// While represents  while Test: Body [else: Orelse]
type While struct {
	At     Pos
	Test   Expr
	Body   []Stmt
	Orelse []Stmt
}

// Return represents  return [Value]
type Return struct {
	At    Pos
	Value Expr // may be nil
}

// Break represents  break
type Break struct{ At Pos }

// Continue represents  continue
type Continue struct{ At Pos }

// Pass represents  pass
type Pass struct{ At Pos }

// ExprStmt is an expression evaluated for its side effects (e.g. a call).
type ExprStmt struct {
	Value Expr
}

// Module is the root of a parsed source file.
type Module struct {
	Body []Stmt
}

func (*FunctionDef) node() {}
func (*Assign) node()      {}
func (*AnnAssign) node()   {}
func (*AugAssign) node()   {}
func (*If) node()          {}
func (*For) node()         {}
func (*While) node()       {}
func (*Return) node()      {}
func (*Break) node()       {}
func (*Continue) node()    {}
func (*Pass) node()        {}
func (*ExprStmt) node()    {}
func (*Module) node()      {}

func (*FunctionDef) stmtNode() {}
func (*Assign) stmtNode()      {}
func (*AnnAssign) stmtNode()   {}
func (*AugAssign) stmtNode()   {}
func (*If) stmtNode()          {}
func (*For) stmtNode()         {}
func (*While) stmtNode()       {}
func (*Return) stmtNode()      {}
func (*Break) stmtNode()       {}
func (*Continue) stmtNode()    {}
func (*Pass) stmtNode()        {}
func (*ExprStmt) stmtNode()    {}

func (n *FunctionDef) Pos() Pos {
	if len(n.Decorators) > 0 {
		return n.Decorators[0].Pos()
	}
	return n.At
}
func (n *Assign) Pos() Pos    { return n.Targets[0].Pos() }
func (n *AnnAssign) Pos() Pos { return n.Target.Pos() }
func (n *AugAssign) Pos() Pos { return n.Target.Pos() }
func (n *If) Pos() Pos        { return n.At }
func (n *For) Pos() Pos       { return n.At }
func (n *While) Pos() Pos     { return n.At }
func (n *Return) Pos() Pos    { return n.At }
func (n *Break) Pos() Pos     { return n.At }
func (n *Continue) Pos() Pos  { return n.At }
func (n *Pass) Pos() Pos      { return n.At }
func (n *ExprStmt) Pos() Pos  { return n.Value.Pos() }
func (n *Module) Pos() Pos {
	if len(n.Body) > 0 {
		return n.Body[0].Pos()
	}
	return Pos{Line: 1}
}

func (n *FunctionDef) String() string {
	return fmt.Sprintf("FunctionDef(%s, args=%d, body=%d)", n.Name, len(n.Args.Args), len(n.Body))
}
func (n *Assign) String() string {
	return fmt.Sprintf("Assign(%s = %s)", joinNodes(n.Targets, " = "), n.Value)
}
func (n *AnnAssign) String() string {
	if n.Value == nil {
		return fmt.Sprintf("AnnAssign(%s: %s)", n.Target, n.Annotation)
	}
	return fmt.Sprintf("AnnAssign(%s: %s = %s)", n.Target, n.Annotation, n.Value)
}
func (n *AugAssign) String() string {
	return fmt.Sprintf("AugAssign(%s %s= %s)", n.Target, n.Op, n.Value)
}
func (n *If) String() string {
	return fmt.Sprintf("If(%s, body=%d, orelse=%d)", n.Test, len(n.Body), len(n.Orelse))
}
func (n *For) String() string {
	return fmt.Sprintf("For(%s in %s, body=%d)", n.Target, n.Iter, len(n.Body))
}
func (n *While) String() string {
	return fmt.Sprintf("While(%s, body=%d)", n.Test, len(n.Body))
}
func (n *Return) String() string {
	if n.Value == nil {
		return "Return()"
	}
	return fmt.Sprintf("Return(%s)", n.Value)
}
func (*Break) String() string      { return "Break" }
func (*Continue) String() string   { return "Continue" }
func (*Pass) String() string       { return "Pass" }
func (n *ExprStmt) String() string { return fmt.Sprintf("Expr(%s)", n.Value) }
func (n *Module) String() string   { return fmt.Sprintf("Module(body=%d)", len(n.Body)) }

func joinNodes[T Node](nodes []T, sep string) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, sep)
}

// nodeKind is the variant name used in "Unable to handle node type" diagnostics.
func nodeKind(n Node) string {
	name := fmt.Sprintf("%T", n)
	return strings.TrimPrefix(name, "*compiler.")
}

// Text renders the literal in its canonical form: integers in decimal,
// floats in shortest round-trip form that always carries a '.' or exponent.
func (n *Num) Text() string {
	if !n.IsFloat {
		return strconv.FormatInt(n.Int, 10)
	}
	f := n.Float
	switch {
	case math.IsInf(f, 0):
		return "INFINITY"
	case math.IsNaN(f):
		return "NAN"
	}
	if abs := math.Abs(f); f != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// Arg, Arguments and Keyword are not expressions or statements, but they
// are nodes so a diagnostic can point at them.

func (*Arg) node()       {}
func (*Arguments) node() {}
func (*Keyword) node()   {}

func (a *Arg) Pos() Pos       { return a.At }
func (a *Arguments) Pos() Pos { return a.At }
func (k *Keyword) Pos() Pos   { return k.At }

func (a *Arg) String() string {
	if a.Annotation == nil {
		return a.Name
	}
	return fmt.Sprintf("%s: %s", a.Name, a.Annotation)
}
func (a *Arguments) String() string {
	parts := make([]string, len(a.Args))
	for i := range a.Args {
		parts[i] = a.Args[i].String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
func (k *Keyword) String() string { return fmt.Sprintf("%s=%s", k.Name, k.Value) }
