package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser consumes the flat token slice produced by the Lexer and builds a
// syntax tree.
//
// Grammar (the function-definition subset):
//
//	file        = (NEWLINE | statement)* EOF
//	statement   = decorated | funcdef | if | for | while | simple_stmts
//	simple_stmts= small_stmt (";" small_stmt)* [";"] NEWLINE
//	small_stmt  = "pass" | "break" | "continue" | "return" [testlist] | expr_stmt
//	expr_stmt   = testlist (":" test ["=" testlist] | augassign testlist | ("=" testlist)*)
//	decorated   = ("@" test NEWLINE)+ funcdef
//	funcdef     = "def" NAME "(" [params] ")" ["->" test] ":" suite
//	suite       = simple_stmts | NEWLINE INDENT statement+ DEDENT
//	if          = "if" test ":" suite ("elif" test ":" suite)* ["else" ":" suite]
//	for         = "for" testlist "in" testlist ":" suite ["else" ":" suite]
//	while       = "while" test ":" suite ["else" ":" suite]
//	test        = or_test
//	or_test     = and_test ("or" and_test)*
//	and_test    = not_test ("and" not_test)*
//	not_test    = "not" not_test | comparison
//	comparison  = bitor (compop bitor)*
//	bitor       = bitxor ("|" bitxor)*
//	bitxor      = bitand ("^" bitand)*
//	bitand      = shift ("&" shift)*
//	shift       = arith (("<<" | ">>") arith)*
//	arith       = term (("+" | "-") term)*
//	term        = factor (("*" | "/" | "//" | "%" | "@") factor)*
//	factor      = ("+" | "-" | "~") factor | power
//	power       = primary ["**" factor]
//	primary     = atom ("(" [args] ")" | "[" subscript "]" | "." NAME)*
//	atom        = NAME | NUMBER | STRING+ | "True" | "False" | "None"
//	            | "(" [testlist] ")" | "[" [testlist] "]"
type Parser struct {
	tokens   []Token
	pos      int
	source   string
	lastLine int // line of the most recently consumed token
}

func NewParser(tokens []Token, rawSource string) *Parser {
	return &Parser{tokens: tokens, source: rawSource}
}

// errorf builds a diagnostic pointing at tok.
func (p *Parser) errorf(tok Token, format string, args ...any) error {
	return newTranslateError(p.source, nil, tok.Pos(), fmt.Sprintf(format, args...))
}

// peek returns the current token without consuming it.
func (p *Parser) peek() Token {
	return p.peekAt(0)
}

// peekAt returns the token at the given offset from the current position.
func (p *Parser) peekAt(offset int) Token {
	if p.pos+offset >= len(p.tokens) {
		if len(p.tokens) > 0 {
			last := p.tokens[len(p.tokens)-1]
			return Token{Type: EOF, Line: last.Line, Col: last.Col}
		}
		return Token{Type: EOF, Line: 1}
	}
	return p.tokens[p.pos+offset]
}

// advance consumes and returns the current token.
func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	switch tok.Type {
	case NEWLINE, INDENT, DEDENT, EOF:
	default:
		p.lastLine = tok.Line
	}
	return tok
}

// accept consumes the current token when it matches tt.
func (p *Parser) accept(tt TokenType) bool {
	if p.peek().Type == tt {
		p.advance()
		return true
	}
	return false
}

// expect consumes the current token if it matches tt, otherwise returns an error.
func (p *Parser) expect(tt TokenType) (Token, error) {
	tok := p.peek()
	if tok.Type != tt {
		return tok, p.unexpected(tok, tt.String())
	}
	return p.advance(), nil
}

func (p *Parser) unexpected(tok Token, want string) error {
	switch tok.Type {
	case EOF:
		return p.errorf(tok, "invalid syntax: expected %s, got end of input", want)
	case NEWLINE:
		return p.errorf(tok, "invalid syntax: expected %s, got end of line", want)
	case INDENT:
		return p.errorf(tok, "unexpected indent")
	case DEDENT:
		return p.errorf(tok, "invalid syntax: expected %s, got dedent", want)
	}
	return p.errorf(tok, "invalid syntax: expected %s, got %q", want, tok.Lexeme)
}

//  Statements

// parseStatement parses one statement. Simple statement lines separated by
// ';' may produce more than one node.
func (p *Parser) parseStatement() ([]Stmt, error) {
	switch tok := p.peek(); tok.Type {
	case AT, DEF:
		s, err := p.parseFunctionDef()
		if err != nil {
			return nil, err
		}
		return []Stmt{s}, nil
	case IF:
		s, err := p.parseIf()
		if err != nil {
			return nil, err
		}
		return []Stmt{s}, nil
	case FOR:
		s, err := p.parseFor()
		if err != nil {
			return nil, err
		}
		return []Stmt{s}, nil
	case WHILE:
		s, err := p.parseWhile()
		if err != nil {
			return nil, err
		}
		return []Stmt{s}, nil
	case INDENT:
		return nil, p.errorf(tok, "unexpected indent")
	case RESERVED:
		return nil, p.errorf(tok, "unsupported statement %q", tok.Lexeme)
	}
	return p.parseSimpleStatements()
}

// parseSimpleStatements parses small statements up to the end of the line.
func (p *Parser) parseSimpleStatements() ([]Stmt, error) {
	var stmts []Stmt
	for {
		s, err := p.parseSmallStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
		if !p.accept(SEMICOLON) {
			break
		}
		if t := p.peek().Type; t == NEWLINE || t == EOF {
			break
		}
	}
	if p.peek().Type == EOF {
		return stmts, nil
	}
	if _, err := p.expect(NEWLINE); err != nil {
		return nil, err
	}
	return stmts, nil
}

func (p *Parser) parseSmallStatement() (Stmt, error) {
	tok := p.peek()
	switch tok.Type {
	case PASS:
		p.advance()
		return &Pass{At: tok.Pos()}, nil
	case BREAK:
		p.advance()
		return &Break{At: tok.Pos()}, nil
	case CONTINUE:
		p.advance()
		return &Continue{At: tok.Pos()}, nil
	case RETURN:
		p.advance()
		ret := &Return{At: tok.Pos()}
		if t := p.peek().Type; t != NEWLINE && t != SEMICOLON && t != EOF {
			value, err := p.parseTestList()
			if err != nil {
				return nil, err
			}
			ret.Value = value
		}
		return ret, nil
	case RESERVED:
		return nil, p.errorf(tok, "unsupported statement %q", tok.Lexeme)
	}
	return p.parseExprStatement()
}

// augAssignOps maps augmented assignment tokens to their operator.
var augAssignOps = map[TokenType]BinaryOp{
	PLUS_ASSIGN:         Add,
	MINUS_ASSIGN:        Sub,
	STAR_ASSIGN:         Mult,
	SLASH_ASSIGN:        Div,
	DOUBLE_SLASH_ASSIGN: FloorDiv,
	PERCENT_ASSIGN:      Mod,
	DOUBLE_STAR_ASSIGN:  Pow,
	SHL_ASSIGN:          LShift,
	SHR_ASSIGN:          RShift,
	PIPE_ASSIGN:         BitOr,
	CARET_ASSIGN:        BitXor,
	AMP_ASSIGN:          BitAnd,
	AT_ASSIGN:           MatMult,
}

func (p *Parser) parseExprStatement() (Stmt, error) {
	first, err := p.parseTestList()
	if err != nil {
		return nil, err
	}

	tok := p.peek()
	switch {
	case tok.Type == COLON:
		p.advance()
		annotation, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		stmt := &AnnAssign{Target: first, Annotation: annotation}
		if p.accept(ASSIGN) {
			if stmt.Value, err = p.parseTestList(); err != nil {
				return nil, err
			}
		}
		return stmt, nil

	case tok.Type == ASSIGN:
		targets := []Expr{first}
		var value Expr
		for p.accept(ASSIGN) {
			next, err := p.parseTestList()
			if err != nil {
				return nil, err
			}
			if value != nil {
				targets = append(targets, value)
			}
			value = next
		}
		return &Assign{Targets: targets, Value: value}, nil
	}

	if op, ok := augAssignOps[tok.Type]; ok {
		p.advance()
		value, err := p.parseTestList()
		if err != nil {
			return nil, err
		}
		return &AugAssign{Target: first, Op: op, OpAt: tok.Pos(), Value: value}, nil
	}

	return &ExprStmt{Value: first}, nil
}

// parseSuite parses the body following a ':'.
func (p *Parser) parseSuite() ([]Stmt, error) {
	if _, err := p.expect(COLON); err != nil {
		return nil, err
	}
	if p.peek().Type != NEWLINE {
		return p.parseSimpleStatements()
	}
	p.advance()
	if tok := p.peek(); tok.Type != INDENT {
		return nil, p.errorf(tok, "expected an indented block")
	}
	p.advance()

	var body []Stmt
	for {
		switch p.peek().Type {
		case DEDENT:
			p.advance()
			return body, nil
		case EOF:
			return body, nil
		case NEWLINE:
			p.advance()
			continue
		}
		stmts, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		body = append(body, stmts...)
	}
}

func (p *Parser) parseFunctionDef() (Stmt, error) {
	var decorators []Expr
	for p.peek().Type == AT {
		p.advance()
		d, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		decorators = append(decorators, d)
		if _, err := p.expect(NEWLINE); err != nil {
			return nil, err
		}
	}

	defTok, err := p.expect(DEF)
	if err != nil {
		return nil, err
	}
	nameTok, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	openTok, err := p.expect(LPAREN)
	if err != nil {
		return nil, err
	}
	args, err := p.parseParams()
	if err != nil {
		return nil, err
	}
	args.At = openTok.Pos()
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}

	var returns Expr
	if p.accept(ARROW) {
		if returns, err = p.parseTest(); err != nil {
			return nil, err
		}
	}

	body, err := p.parseSuite()
	if err != nil {
		return nil, err
	}

	return &FunctionDef{
		At:         defTok.Pos(),
		Name:       nameTok.Lexeme,
		Decorators: decorators,
		Args:       args,
		Returns:    returns,
		Body:       body,
		EndLine:    p.lastLine,
	}, nil
}

// parseParam parses NAME [":" test].
func (p *Parser) parseParam() (Arg, error) {
	nameTok, err := p.expect(IDENTIFIER)
	if err != nil {
		return Arg{}, err
	}
	arg := Arg{At: nameTok.Pos(), Name: nameTok.Lexeme}
	if p.accept(COLON) {
		if arg.Annotation, err = p.parseTest(); err != nil {
			return Arg{}, err
		}
	}
	return arg, nil
}

func (p *Parser) parseParams() (Arguments, error) {
	var args Arguments
	keywordOnly := false

	for p.peek().Type != RPAREN {
		tok := p.peek()
		switch tok.Type {
		case SLASH:
			// positional-only marker
			p.advance()

		case STAR:
			p.advance()
			keywordOnly = true
			if p.peek().Type == IDENTIFIER {
				arg, err := p.parseParam()
				if err != nil {
					return args, err
				}
				args.Vararg = &arg
			}

		case DOUBLE_STAR:
			p.advance()
			arg, err := p.parseParam()
			if err != nil {
				return args, err
			}
			args.Kwarg = &arg

		default:
			arg, err := p.parseParam()
			if err != nil {
				return args, err
			}
			var def Expr
			if p.accept(ASSIGN) {
				if def, err = p.parseTest(); err != nil {
					return args, err
				}
			}
			if keywordOnly {
				args.KwOnly = append(args.KwOnly, arg)
				args.KwDefaults = append(args.KwDefaults, def)
				break
			}
			if def == nil && len(args.Defaults) > 0 {
				return args, p.errorf(tok, "non-default argument follows default argument")
			}
			args.Args = append(args.Args, arg)
			if def != nil {
				args.Defaults = append(args.Defaults, def)
			}
		}

		if !p.accept(COMMA) {
			break
		}
	}
	return args, nil
}

func (p *Parser) parseIf() (Stmt, error) {
	ifTok := p.advance() // "if" or "elif"
	test, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	body, err := p.parseSuite()
	if err != nil {
		return nil, err
	}
	stmt := &If{At: ifTok.Pos(), Test: test, Body: body}

	switch p.peek().Type {
	case ELIF:
		elif, err := p.parseIf()
		if err != nil {
			return nil, err
		}
		stmt.Orelse = []Stmt{elif}
	case ELSE:
		p.advance()
		if stmt.Orelse, err = p.parseSuite(); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

func (p *Parser) parseFor() (Stmt, error) {
	forTok := p.advance()
	target, err := p.parseTargetList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(IN); err != nil {
		return nil, err
	}
	iter, err := p.parseTestList()
	if err != nil {
		return nil, err
	}
	body, err := p.parseSuite()
	if err != nil {
		return nil, err
	}
	stmt := &For{At: forTok.Pos(), Target: target, Iter: iter, Body: body}
	if p.accept(ELSE) {
		if stmt.Orelse, err = p.parseSuite(); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

// parseTargetList parses the loop target, stopping before "in".
func (p *Parser) parseTargetList() (Expr, error) {
	first, err := p.parseBitOr()
	if err != nil {
		return nil, err
	}
	if p.peek().Type != COMMA {
		return first, nil
	}
	elts := []Expr{first}
	for p.accept(COMMA) {
		if p.peek().Type == IN {
			break
		}
		e, err := p.parseBitOr()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	return &Tuple{At: first.Pos(), Elts: elts}, nil
}

func (p *Parser) parseWhile() (Stmt, error) {
	whileTok := p.advance()
	test, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	body, err := p.parseSuite()
	if err != nil {
		return nil, err
	}
	stmt := &While{At: whileTok.Pos(), Test: test, Body: body}
	if p.accept(ELSE) {
		if stmt.Orelse, err = p.parseSuite(); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

//  Expressions

// startsExpr reports whether tt can begin an expression.
func startsExpr(tt TokenType) bool {
	switch tt {
	case IDENTIFIER, INTEGER, FLOAT, STRING, TRUE, FALSE, NONE,
		LPAREN, LBRACKET, MINUS, PLUS, TILDE, NOT:
		return true
	}
	return false
}

// parseTestList parses test ("," test)* [","], producing a Tuple when a
// comma is present.
func (p *Parser) parseTestList() (Expr, error) {
	first, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	if p.peek().Type != COMMA {
		return first, nil
	}
	elts := []Expr{first}
	for p.accept(COMMA) {
		if !startsExpr(p.peek().Type) {
			break
		}
		e, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	return &Tuple{At: first.Pos(), Elts: elts}, nil
}

// parseTest is the entry point for a single expression.
func (p *Parser) parseTest() (Expr, error) {
	tok := p.peek()
	if tok.Type == RESERVED {
		return nil, p.errorf(tok, "unsupported expression %q", tok.Lexeme)
	}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.Type == IF {
		return nil, p.errorf(t, "conditional expressions are not supported")
	}
	return expr, nil
}

// parseOr handles "or"
func (p *Parser) parseOr() (Expr, error) {
	expr, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	if p.peek().Type != OR {
		return expr, nil
	}
	values := []Expr{expr}
	for p.accept(OR) {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		values = append(values, right)
	}
	return &BoolOp{Op: Or, Values: values}, nil
}

// parseAnd handles "and"
func (p *Parser) parseAnd() (Expr, error) {
	expr, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	if p.peek().Type != AND {
		return expr, nil
	}
	values := []Expr{expr}
	for p.accept(AND) {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		values = append(values, right)
	}
	return &BoolOp{Op: And, Values: values}, nil
}

// parseNot handles prefix "not"
func (p *Parser) parseNot() (Expr, error) {
	if tok := p.peek(); tok.Type == NOT {
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{At: tok.Pos(), Op: Not, Operand: operand}, nil
	}
	return p.parseComparison()
}

// compareOp reads one comparison operator, including the two-token forms
// "is not" and "not in".
func (p *Parser) compareOp() (CmpOp, Token, bool) {
	tok := p.peek()
	switch tok.Type {
	case EQUALS:
		return Eq, tok, true
	case NOT_EQ:
		return NotEq, tok, true
	case LESS:
		return Lt, tok, true
	case LESS_EQ:
		return LtE, tok, true
	case GREATER:
		return Gt, tok, true
	case GREATER_EQ:
		return GtE, tok, true
	case IN:
		return In, tok, true
	case IS:
		if p.peekAt(1).Type == NOT {
			return IsNot, tok, true
		}
		return Is, tok, true
	case NOT:
		if p.peekAt(1).Type == IN {
			return NotIn, tok, true
		}
	}
	return 0, tok, false
}

// parseComparison handles comparison chains a < b <= c ...
func (p *Parser) parseComparison() (Expr, error) {
	left, err := p.parseBitOr()
	if err != nil {
		return nil, err
	}
	op, tok, ok := p.compareOp()
	if !ok {
		return left, nil
	}
	cmp := &Compare{Left: left}
	for ok {
		p.advance()
		if op == IsNot || op == NotIn {
			p.advance()
		}
		right, err := p.parseBitOr()
		if err != nil {
			return nil, err
		}
		cmp.Ops = append(cmp.Ops, op)
		cmp.OpsAt = append(cmp.OpsAt, tok.Pos())
		cmp.Comparators = append(cmp.Comparators, right)
		op, tok, ok = p.compareOp()
	}
	return cmp, nil
}

// parseBinaryLevel parses one left-associative precedence level.
func (p *Parser) parseBinaryLevel(ops map[TokenType]BinaryOp, next func() (Expr, error)) (Expr, error) {
	expr, err := next()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		op, ok := ops[tok.Type]
		if !ok {
			return expr, nil
		}
		p.advance()
		right, err := next()
		if err != nil {
			return nil, err
		}
		expr = &BinOp{Left: expr, Op: op, OpAt: tok.Pos(), Right: right}
	}
}

var (
	bitOrOps  = map[TokenType]BinaryOp{PIPE: BitOr}
	bitXorOps = map[TokenType]BinaryOp{CARET: BitXor}
	bitAndOps = map[TokenType]BinaryOp{AMP: BitAnd}
	shiftOps  = map[TokenType]BinaryOp{SHL_OP: LShift, SHR_OP: RShift}
	arithOps  = map[TokenType]BinaryOp{PLUS: Add, MINUS: Sub}
	termOps   = map[TokenType]BinaryOp{
		STAR: Mult, SLASH: Div, DOUBLE_SLASH: FloorDiv, PERCENT: Mod, AT: MatMult,
	}
)

// parseBitOr handles | (lowest precedence among bitwise ops)
func (p *Parser) parseBitOr() (Expr, error) {
	return p.parseBinaryLevel(bitOrOps, p.parseBitXor)
}

// parseBitXor handles ^
func (p *Parser) parseBitXor() (Expr, error) {
	return p.parseBinaryLevel(bitXorOps, p.parseBitAnd)
}

// parseBitAnd handles &
func (p *Parser) parseBitAnd() (Expr, error) {
	return p.parseBinaryLevel(bitAndOps, p.parseShift)
}

// parseShift handles << and >>
func (p *Parser) parseShift() (Expr, error) {
	return p.parseBinaryLevel(shiftOps, p.parseArith)
}

// parseArith handles + and -
func (p *Parser) parseArith() (Expr, error) {
	return p.parseBinaryLevel(arithOps, p.parseTerm)
}

// parseTerm handles * / // % @
func (p *Parser) parseTerm() (Expr, error) {
	return p.parseBinaryLevel(termOps, p.parseFactor)
}

// parseFactor handles prefix + - ~
func (p *Parser) parseFactor() (Expr, error) {
	tok := p.peek()
	var op UnaryOperator
	switch tok.Type {
	case PLUS:
		op = UAdd
	case MINUS:
		op = USub
	case TILDE:
		op = Invert
	default:
		return p.parsePower()
	}
	p.advance()
	operand, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	return &UnaryOp{At: tok.Pos(), Op: op, Operand: operand}, nil
}

// parsePower handles ** which is right-associative and binds tighter than
// a unary operator on its left.
func (p *Parser) parsePower() (Expr, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	tok := p.peek()
	if tok.Type != DOUBLE_STAR {
		return base, nil
	}
	p.advance()
	exp, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	return &BinOp{Left: base, Op: Pow, OpAt: tok.Pos(), Right: exp}, nil
}

// parsePrimary handles call, subscript and attribute trailers.
func (p *Parser) parsePrimary() (Expr, error) {
	expr, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().Type {
		case LPAREN:
			p.advance()
			call, err := p.parseCallArgs(expr)
			if err != nil {
				return nil, err
			}
			expr = call
		case LBRACKET:
			p.advance()
			index, err := p.parseSubscript()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(RBRACKET); err != nil {
				return nil, err
			}
			expr = &Subscript{Value: expr, Index: index}
		case DOT:
			p.advance()
			attr, err := p.expect(IDENTIFIER)
			if err != nil {
				return nil, err
			}
			expr = &Attribute{Value: expr, Attr: attr.Lexeme}
		default:
			return expr, nil
		}
	}
}

// parseCallArgs parses positional and keyword arguments; the opening '('
// has been consumed.
func (p *Parser) parseCallArgs(fn Expr) (Expr, error) {
	call := &Call{Func: fn}
	for p.peek().Type != RPAREN {
		tok := p.peek()
		if tok.Type == STAR || tok.Type == DOUBLE_STAR {
			return nil, p.errorf(tok, "unpacked call arguments are not supported")
		}
		if tok.Type == IDENTIFIER && p.peekAt(1).Type == ASSIGN {
			p.advance()
			p.advance()
			value, err := p.parseTest()
			if err != nil {
				return nil, err
			}
			call.Keywords = append(call.Keywords, Keyword{At: tok.Pos(), Name: tok.Lexeme, Value: value})
		} else {
			if len(call.Keywords) > 0 {
				return nil, p.errorf(tok, "positional argument follows keyword argument")
			}
			arg, err := p.parseTest()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
		}
		if !p.accept(COMMA) {
			break
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return call, nil
}

// parseSubscript parses the inside of [...]: one index, a slice, or a
// comma separated tuple of either.
func (p *Parser) parseSubscript() (Expr, error) {
	first, err := p.parseSliceItem()
	if err != nil {
		return nil, err
	}
	if p.peek().Type != COMMA {
		return first, nil
	}
	elts := []Expr{first}
	for p.accept(COMMA) {
		if p.peek().Type == RBRACKET {
			break
		}
		e, err := p.parseSliceItem()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	return &Tuple{At: first.Pos(), Elts: elts}, nil
}

func (p *Parser) parseSliceItem() (Expr, error) {
	start := p.peek()
	var lower Expr
	var err error
	if start.Type != COLON {
		if lower, err = p.parseTest(); err != nil {
			return nil, err
		}
		if p.peek().Type != COLON {
			return lower, nil
		}
	}

	slice := &Slice{At: start.Pos(), Lower: lower}
	p.advance() // ':'
	if t := p.peek().Type; t != COLON && t != COMMA && t != RBRACKET {
		if slice.Upper, err = p.parseTest(); err != nil {
			return nil, err
		}
	}
	if p.accept(COLON) {
		if t := p.peek().Type; t != COMMA && t != RBRACKET {
			if slice.Step, err = p.parseTest(); err != nil {
				return nil, err
			}
		}
	}
	return slice, nil
}

func (p *Parser) parseAtom() (Expr, error) {
	tok := p.peek()
	switch tok.Type {
	case IDENTIFIER:
		p.advance()
		return &Name{At: tok.Pos(), ID: tok.Lexeme}, nil

	case INTEGER:
		p.advance()
		v, err := parseIntLiteral(tok.Lexeme)
		if err != nil {
			return nil, p.errorf(tok, "invalid integer literal %q", tok.Lexeme)
		}
		return &Num{At: tok.Pos(), Int: v}, nil

	case FLOAT:
		p.advance()
		v, err := strconv.ParseFloat(strings.ReplaceAll(tok.Lexeme, "_", ""), 64)
		if err != nil && !isRangeError(err) {
			return nil, p.errorf(tok, "invalid float literal %q", tok.Lexeme)
		}
		return &Num{At: tok.Pos(), IsFloat: true, Float: v}, nil

	case STRING:
		p.advance()
		value := tok.Lexeme
		for p.peek().Type == STRING {
			value += p.advance().Lexeme
		}
		return &Str{At: tok.Pos(), Value: value}, nil

	case TRUE:
		p.advance()
		return &Constant{At: tok.Pos(), Kind: ConstTrue}, nil
	case FALSE:
		p.advance()
		return &Constant{At: tok.Pos(), Kind: ConstFalse}, nil
	case NONE:
		p.advance()
		return &Constant{At: tok.Pos(), Kind: ConstNone}, nil

	case LPAREN:
		p.advance()
		if p.accept(RPAREN) {
			return &Tuple{At: tok.Pos()}, nil
		}
		inner, err := p.parseTestList()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		if t, ok := inner.(*Tuple); ok {
			t.At = tok.Pos()
		}
		return inner, nil

	case LBRACKET:
		p.advance()
		list := &List{At: tok.Pos()}
		for p.peek().Type != RBRACKET {
			e, err := p.parseTest()
			if err != nil {
				return nil, err
			}
			list.Elts = append(list.Elts, e)
			if !p.accept(COMMA) {
				break
			}
		}
		if _, err := p.expect(RBRACKET); err != nil {
			return nil, err
		}
		return list, nil

	case LBRACE:
		return nil, p.errorf(tok, "dict and set literals are not supported")
	case RESERVED:
		return nil, p.errorf(tok, "unsupported expression %q", tok.Lexeme)
	}
	return nil, p.unexpected(tok, "expression")
}

// skipLine discards tokens up to and including the next NEWLINE. Module
// level imports only bind the kernel namespace and produce no output.
func (p *Parser) skipLine() {
	for {
		switch p.advance().Type {
		case NEWLINE, EOF:
			return
		}
	}
}

// parseIntLiteral resolves decimal and 0x/0o/0b prefixed literals.
func parseIntLiteral(lexeme string) (int64, error) {
	s := strings.ReplaceAll(lexeme, "_", "")
	if len(s) > 1 && s[0] == '0' && strings.ContainsRune("xXoObB", rune(s[1])) {
		return strconv.ParseInt(s, 0, 64)
	}
	if len(s) > 1 && s[0] == '0' && strings.Trim(s, "0") != "" {
		return 0, fmt.Errorf("leading zeros in decimal integer literals are not permitted")
	}
	return strconv.ParseInt(s, 10, 64)
}

func isRangeError(err error) bool {
	ne, ok := err.(*strconv.NumError)
	return ok && ne.Err == strconv.ErrRange
}

// Parse builds a Module from the token stream produced by Lex.
func Parse(tokens []Token, rawSource string) (*Module, error) {
	p := NewParser(tokens, rawSource)
	mod := &Module{}
	for {
		switch tok := p.peek(); tok.Type {
		case EOF:
			return mod, nil
		case NEWLINE:
			p.advance()
			continue
		case DEDENT:
			return nil, p.errorf(tok, "unindent does not match any outer indentation level")
		case RESERVED:
			if tok.Lexeme == "import" || tok.Lexeme == "from" {
				p.skipLine()
				continue
			}
		}
		stmts, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		mod.Body = append(mod.Body, stmts...)
	}
}

// ParseSource lexes and parses src. Source whose every line shares a common
// indentation (a method or nested function cut out of a larger file) is
// dedented first; diagnostics refer to the dedented text.
func ParseSource(src string) (*Module, string, error) {
	src = dedent(src)
	tokens, err := Lex(src)
	if err != nil {
		return nil, src, err
	}
	mod, err := Parse(tokens, src)
	return mod, src, err
}

// dedent removes whitespace common to the start of every non-blank line.
func dedent(src string) string {
	lines := strings.Split(src, "\n")
	prefix := ""
	first := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lead := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if first {
			prefix = lead
			first = false
			continue
		}
		for !strings.HasPrefix(lead, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	if prefix == "" {
		return src
	}
	for i, line := range lines {
		lines[i] = strings.TrimPrefix(line, prefix)
	}
	return strings.Join(lines, "\n")
}
