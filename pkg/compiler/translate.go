package compiler

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// indentUnit is one level of kernel indentation.
const indentUnit = "  "

// kernelDecorators rewrites the decorators a kernel may carry.
var kernelDecorators = map[string]string{
	"@okl.kernel": "@kernel",
}

// translator renders one function (or module) to kernel text.
type translator struct {
	source string
	env    *closureEnv
	scopes scopeStack
}

func (t *translator) errorf(n Node, format string, args ...any) error {
	return newTranslateError(t.source, n, n.Pos(), fmt.Sprintf(format, args...))
}

// errorAt reports a failure of n at a position inside it, such as an operator.
func (t *translator) errorAt(n Node, pos Pos, msg string) error {
	return newTranslateError(t.source, n, pos, msg)
}

//  Blocks

// block renders stmts one per line at indent, inside a new scope that
// starts with declared.
func (t *translator) block(stmts []Stmt, indent string, declared ...string) (string, error) {
	t.scopes.push(declared...)
	defer t.scopes.pop()

	var lines []string
	for _, s := range stmts {
		text, err := t.stmt(s, indent)
		if err != nil {
			return "", err
		}
		if text != "" {
			lines = append(lines, indent+text)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// body renders a braced block one level deeper than indent.
func (t *translator) body(stmts []Stmt, indent string, declared ...string) (string, error) {
	text, err := t.block(stmts, indent+indentUnit, declared...)
	if err != nil {
		return "", err
	}
	if text == "" {
		return " {}", nil
	}
	return " {\n" + text + "\n" + indent + "}", nil
}

//  Statements

func (t *translator) stmt(s Stmt, indent string) (string, error) {
	switch n := s.(type) {
	case *FunctionDef:
		return t.functionDef(n, indent)
	case *Assign:
		return t.assign(n)
	case *AnnAssign:
		return t.annAssign(n)
	case *AugAssign:
		return t.augAssign(n)
	case *If:
		return t.ifStmt(n, indent)
	case *For:
		return t.forStmt(n, indent)
	case *While:
		return t.whileStmt(n, indent)
	case *Return:
		if n.Value == nil {
			return "return;", nil
		}
		value, err := t.expr(n.Value)
		if err != nil {
			return "", err
		}
		return "return " + value + ";", nil
	case *Break:
		return "break;", nil
	case *Continue:
		return "continue;", nil
	case *Pass:
		return "", nil
	case *ExprStmt:
		value, err := t.expr(n.Value)
		if err != nil {
			return "", err
		}
		return value + ";", nil
	}
	return "", t.errorf(s, "Unable to handle node type %s", nodeKind(s))
}

func (t *translator) functionDef(n *FunctionDef, indent string) (string, error) {
	t.scopes.declare(n.Name)

	sig, err := t.signature(n, indent, false)
	if err != nil {
		return "", err
	}
	body, err := t.body(n.Body, indent, paramNames(&n.Args)...)
	if err != nil {
		return "", err
	}
	return sig + body, nil
}

func paramNames(args *Arguments) []string {
	names := make([]string, 0, len(args.Args)+len(args.KwOnly))
	for _, a := range args.Args {
		names = append(names, a.Name)
	}
	for _, a := range args.KwOnly {
		names = append(names, a.Name)
	}
	return names
}

// signature renders "[decorators ]returns name(params)". Continuation
// parameter lines are aligned under the opening parenthesis.
func (t *translator) signature(n *FunctionDef, indent string, semicolon bool) (string, error) {
	returns, err := t.annotation(n.Returns, "")
	if err != nil {
		return "", err
	}
	if returns == "" {
		return "", t.errorAt(n, n.At, "Function must have a return value type")
	}

	var decorators strings.Builder
	for _, d := range n.Decorators {
		name, ok := dottedName(d)
		rewrite, known := kernelDecorators["@"+name]
		if !ok || !known {
			return "", t.errorf(d, "Cannot handle decorator")
		}
		decorators.WriteString(rewrite + " ")
	}

	head := decorators.String() + withName(returns, n.Name) + "("
	params, err := t.arguments(&n.Args, indent+strings.Repeat(" ", utf8.RuneCountInString(head)))
	if err != nil {
		return "", err
	}

	sig := head + params + ")"
	if semicolon {
		sig += ";"
	}
	return sig, nil
}

// dottedName renders a Name or a chain of attributes on one.
func dottedName(e Expr) (string, bool) {
	switch n := e.(type) {
	case *Name:
		return n.ID, true
	case *Attribute:
		base, ok := dottedName(n.Value)
		return base + "." + n.Attr, ok
	}
	return "", false
}

// arguments renders the parameter declarations, one per line after the
// first, each continuation line prefixed with indent.
func (t *translator) arguments(args *Arguments, indent string) (string, error) {
	if args.Kwarg != nil {
		return "", t.errorf(args, "Cannot handle **kwargs")
	}
	if args.Vararg != nil {
		return "", t.errorf(args, "Cannot handle *args")
	}
	hasDefault := len(args.Defaults) > 0
	for _, d := range args.KwDefaults {
		hasDefault = hasDefault || d != nil
	}
	if hasDefault {
		return "", t.errorf(args, "Cannot handle default arguments yet")
	}

	var params []string
	for _, group := range [][]Arg{args.Args, args.KwOnly} {
		for i := range group {
			arg := &group[i]
			decl, err := t.annotation(arg.Annotation, arg.Name)
			if err != nil {
				return "", err
			}
			if decl == arg.Name {
				return "", t.errorf(arg, "Arguments must have a type annotation")
			}
			params = append(params, decl)
		}
	}
	return strings.Join(params, ",\n"+indent), nil
}

func (t *translator) assign(n *Assign) (string, error) {
	if len(n.Targets) != 1 {
		return "", t.errorf(n, "Cannot handle assignment of more than 1 value")
	}
	target := n.Targets[0]
	if name, ok := target.(*Name); ok && !t.scopes.defined(name.ID) {
		return "", t.errorf(n, "Cannot handle untyped variables")
	}

	left, err := t.expr(target)
	if err != nil {
		return "", err
	}
	right, err := t.expr(n.Value)
	if err != nil {
		return "", err
	}
	return left + " = " + right + ";", nil
}

func (t *translator) annAssign(n *AnnAssign) (string, error) {
	name, ok := n.Target.(*Name)
	if !ok {
		return "", t.errorf(n.Target, "Can only declare a variable name")
	}
	t.scopes.declare(name.ID)

	decl, err := t.annotation(n.Annotation, name.ID)
	if err != nil {
		return "", err
	}
	if n.Value != nil {
		value, err := t.expr(n.Value)
		if err != nil {
			return "", err
		}
		decl += " = " + value
	}
	return decl + ";", nil
}

func (t *translator) augAssign(n *AugAssign) (string, error) {
	if name, ok := n.Target.(*Name); ok && !t.scopes.defined(name.ID) {
		return "", t.errorf(n, "Cannot handle untyped variables")
	}
	target, err := t.expr(n.Target)
	if err != nil {
		return "", err
	}

	switch n.Op {
	case Pow:
		value, err := t.expr(n.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s = pow(%s, %s);", target, target, value), nil
	case FloorDiv:
		value, err := t.operand(n.Value, precMultiplicative+1)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s = floor(%s / %s);", target, target, value), nil
	}

	op, ok := augmentedOperators[n.Op]
	if !ok {
		return "", t.errorAt(n, n.OpAt, "Unable to handle operator")
	}
	value, err := t.expr(n.Value)
	if err != nil {
		return "", err
	}
	return target + " " + op + " " + value + ";", nil
}

func (t *translator) ifStmt(n *If, indent string) (string, error) {
	test, err := t.expr(n.Test)
	if err != nil {
		return "", err
	}
	body, err := t.body(n.Body, indent)
	if err != nil {
		return "", err
	}
	out := "if (" + test + ")" + body
	if len(n.Orelse) == 0 {
		return out, nil
	}

	out += "\n" + indent + "else"
	if elif, ok := n.Orelse[0].(*If); ok && len(n.Orelse) == 1 {
		rest, err := t.ifStmt(elif, indent)
		if err != nil {
			return "", err
		}
		return out + " " + rest, nil
	}
	orelse, err := t.body(n.Orelse, indent)
	if err != nil {
		return "", err
	}
	return out + orelse, nil
}

// loopRange is the start, end and step of a counted loop.
type loopRange struct {
	start, end, step int
}

// rangeBounds returns the bounds of range(...).
// TODO: evaluate the call arguments instead of returning fixed bounds.
func rangeBounds(*Call) loopRange { return loopRange{start: 0, end: 10, step: 1} }

func oklRangeBounds(*Call) loopRange { return loopRange{start: 0, end: 10, step: 1} }

// loopBounds recognizes range(...) and okl.range(...) iterables.
func (t *translator) loopBounds(iter Expr) (loopRange, error) {
	text, err := t.expr(iter)
	if err != nil {
		return loopRange{}, err
	}
	call, _ := iter.(*Call)
	switch {
	case strings.HasPrefix(text, "range"):
		return rangeBounds(call), nil
	case strings.HasPrefix(text, "okl.range"):
		return oklRangeBounds(call), nil
	}
	return loopRange{}, t.errorf(iter, "Unable to transform this iterable")
}

// formatLoop renders the for header. It reports false for a zero step.
func formatLoop(index string, r loopRange) (string, bool) {
	var step string
	switch {
	case r.step == 0:
		return "", false
	case r.step == 1:
		step = "++" + index
	case r.step > 0:
		step = fmt.Sprintf("%s += %d", index, r.step)
	case r.step == -1:
		step = "--" + index
	default:
		step = fmt.Sprintf("%s -= %d", index, -r.step)
	}
	return fmt.Sprintf("for (int %s = %d; %s < %d; %s)", index, r.start, index, r.end, step), true
}

func (t *translator) forStmt(n *For, indent string) (string, error) {
	target, ok := n.Target.(*Name)
	if !ok {
		return "", t.errorf(n.Target, "Can only handle one variable for the for-loop index")
	}
	if len(n.Orelse) > 0 {
		return "", t.errorf(n.Orelse[0], "Cannot handle statement after for")
	}

	bounds, err := t.loopBounds(n.Iter)
	if err != nil {
		return "", err
	}
	header, ok := formatLoop(target.ID, bounds)
	if !ok {
		return "", t.errorf(n.Iter, "Cannot have for-loop with a step size of 0")
	}

	body, err := t.body(n.Body, indent, target.ID)
	if err != nil {
		return "", err
	}
	return header + body, nil
}

func (t *translator) whileStmt(n *While, indent string) (string, error) {
	if len(n.Orelse) > 0 {
		return "", t.errorf(n.Orelse[0], "Cannot handle statement after while")
	}
	test, err := t.expr(n.Test)
	if err != nil {
		return "", err
	}
	body, err := t.body(n.Body, indent)
	if err != nil {
		return "", err
	}
	return "while (" + test + ")" + body, nil
}

//  Expressions

func (t *translator) expr(e Expr) (string, error) {
	switch n := e.(type) {
	case *Name:
		return t.name(n)
	case *Num:
		return n.Text(), nil
	case *Constant:
		switch n.Kind {
		case ConstTrue:
			return "true", nil
		case ConstFalse:
			return "false", nil
		}
		return "NULL", nil
	case *BinOp:
		return t.binOp(n)
	case *UnaryOp:
		return t.unaryOp(n)
	case *BoolOp:
		return t.boolOp(n)
	case *Compare:
		return t.compare(n)
	case *Call:
		return t.call(n)
	case *Attribute:
		value, err := t.operand(n.Value, precPrimary)
		if err != nil {
			return "", err
		}
		return value + "." + n.Attr, nil
	case *Subscript:
		return t.subscript(n)
	case *List:
		items := make([]string, len(n.Elts))
		for i, elt := range n.Elts {
			item, err := t.expr(elt)
			if err != nil {
				return "", err
			}
			items[i] = item
		}
		return "{" + strings.Join(items, ", ") + "}", nil
	}
	return "", t.errorf(e, "Unable to handle node type %s", nodeKind(e))
}

// operand renders e, parenthesized when it binds looser than minPrec.
func (t *translator) operand(e Expr, minPrec int) (string, error) {
	text, err := t.expr(e)
	if err != nil {
		return "", err
	}
	if precedence(e) < minPrec {
		return "(" + text + ")", nil
	}
	return text, nil
}

// name renders a variable. Closure globals render as their kernel type.
func (t *translator) name(n *Name) (string, error) {
	if typ, ok := t.env.globals[n.ID]; ok {
		return typ, nil
	}
	if t.scopes.defined(n.ID) || t.env.known(n.ID) {
		return n.ID, nil
	}
	return "", t.errorf(n, "Cannot handle undeclared variable %s", n.ID)
}

func (t *translator) binOp(n *BinOp) (string, error) {
	op, ok := binaryOperators[n.Op]
	if !ok {
		return "", t.errorAt(n, n.OpAt, "Unable to handle operator")
	}
	left, err := t.operand(n.Left, op.prec)
	if err != nil {
		return "", err
	}
	right, err := t.operand(n.Right, op.prec+1)
	if err != nil {
		return "", err
	}
	text := left + op.sep + right
	if op.call != "" {
		return op.call + "(" + text + ")", nil
	}
	return text, nil
}

func (t *translator) unaryOp(n *UnaryOp) (string, error) {
	op, ok := unaryOperators[n.Op]
	if !ok {
		return "", t.errorf(n, "Unable to handle operator")
	}
	operand, err := t.operand(n.Operand, precUnary)
	if err != nil {
		return "", err
	}
	// - -x must not become the decrement operator
	if (op == "-" || op == "+") && strings.HasPrefix(operand, op) {
		operand = "(" + operand + ")"
	}
	return op + operand, nil
}

func (t *translator) boolOp(n *BoolOp) (string, error) {
	sep, prec := " && ", precAnd
	if n.Op == Or {
		sep, prec = " || ", precOr
	}
	values := make([]string, len(n.Values))
	for i, v := range n.Values {
		text, err := t.operand(v, prec)
		if err != nil {
			return "", err
		}
		values[i] = text
	}
	return strings.Join(values, sep), nil
}

// compare expands a chain a < b < c into a < b && b < c.
func (t *translator) compare(n *Compare) (string, error) {
	ops := make([]compareOperator, len(n.Ops))
	for i, cmp := range n.Ops {
		op, ok := compareOperators[cmp]
		if !ok {
			return "", t.errorAt(n, n.OpsAt[i], "Cannot handle comparison operator")
		}
		ops[i] = op
	}

	values := append([]Expr{n.Left}, n.Comparators...)
	pairs := make([]string, len(ops))
	for i, op := range ops {
		left, err := t.operand(values[i], op.prec)
		if err != nil {
			return "", err
		}
		right, err := t.operand(values[i+1], op.prec+1)
		if err != nil {
			return "", err
		}
		pairs[i] = left + " " + op.text + " " + right
	}
	return strings.Join(pairs, " && "), nil
}

func (t *translator) call(n *Call) (string, error) {
	if len(n.Keywords) > 0 {
		return "", t.errorf(&n.Keywords[0], "Cannot handle keyword arguments")
	}
	fn, err := t.operand(n.Func, precPrimary)
	if err != nil {
		return "", err
	}
	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		if args[i], err = t.expr(a); err != nil {
			return "", err
		}
	}
	return fn + "(" + strings.Join(args, ", ") + ")", nil
}

func (t *translator) subscript(n *Subscript) (string, error) {
	switch n.Index.(type) {
	case *Slice, *Tuple:
		return "", t.errorf(n.Index, "Can only handle single access slices")
	}
	value, err := t.operand(n.Value, precPrimary)
	if err != nil {
		return "", err
	}
	index, err := t.expr(n.Index)
	if err != nil {
		return "", err
	}
	return value + "[" + index + "]", nil
}
