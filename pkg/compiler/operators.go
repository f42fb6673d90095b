package compiler

// Target precedence levels, loosest first. An operand is parenthesized when
// it binds looser than the position it is rendered in.
const (
	precOr = iota + 1
	precAnd
	precBitOr
	precBitXor
	precBitAnd
	precEquality
	precRelational
	precShift
	precAdditive
	precMultiplicative
	precUnary
	precPrimary
)

// binaryOperator describes how a BinaryOp renders: left sep right, wrapped
// in call(...) when call is set. prec is the precedence the operands are
// rendered at.
type binaryOperator struct {
	sep  string
	prec int
	call string
}

var binaryOperators = map[BinaryOp]binaryOperator{
	Add:      {sep: " + ", prec: precAdditive},
	Sub:      {sep: " - ", prec: precAdditive},
	Mult:     {sep: " * ", prec: precMultiplicative},
	Div:      {sep: " / ", prec: precMultiplicative},
	Mod:      {sep: " % ", prec: precMultiplicative},
	Pow:      {sep: ", ", call: "pow"},
	FloorDiv: {sep: " / ", prec: precMultiplicative, call: "floor"},
	LShift:   {sep: " << ", prec: precShift},
	RShift:   {sep: " >> ", prec: precShift},
	BitOr:    {sep: " | ", prec: precBitOr},
	BitXor:   {sep: " ^ ", prec: precBitXor},
	BitAnd:   {sep: " & ", prec: precBitAnd},
}

var unaryOperators = map[UnaryOperator]string{
	Invert: "~",
	Not:    "!",
	UAdd:   "+",
	USub:   "-",
}

// augmentedOperators maps an AugAssign operator to its compound form.
// Pow and FloorDiv have none and expand to a plain assignment.
var augmentedOperators = map[BinaryOp]string{
	Add:    "+=",
	Sub:    "-=",
	Mult:   "*=",
	Div:    "/=",
	Mod:    "%=",
	LShift: "<<=",
	RShift: ">>=",
	BitOr:  "|=",
	BitXor: "^=",
	BitAnd: "&=",
}

type compareOperator struct {
	text string
	prec int
}

// compareOperators lists the comparisons a kernel can express. Identity
// collapses to equality.
var compareOperators = map[CmpOp]compareOperator{
	Eq:    {"==", precEquality},
	NotEq: {"!=", precEquality},
	Lt:    {"<", precRelational},
	LtE:   {"<=", precRelational},
	Gt:    {">", precRelational},
	GtE:   {">=", precRelational},
	Is:    {"==", precEquality},
	IsNot: {"!=", precEquality},
}

// precedence returns how tightly the rendering of e binds.
func precedence(e Expr) int {
	switch n := e.(type) {
	case *BinOp:
		if op, ok := binaryOperators[n.Op]; ok && op.call == "" {
			return op.prec
		}
	case *UnaryOp:
		return precUnary
	case *BoolOp:
		if n.Op == And {
			return precAnd
		}
		return precOr
	case *Compare:
		if len(n.Ops) > 1 {
			return precAnd
		}
		if op, ok := compareOperators[n.Ops[0]]; ok {
			return op.prec
		}
	}
	return precPrimary
}
