package compiler

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// keywords maps source text to its keyword TokenType.
var keywords = map[string]TokenType{
	"def":      DEF,
	"return":   RETURN,
	"if":       IF,
	"elif":     ELIF,
	"else":     ELSE,
	"for":      FOR,
	"while":    WHILE,
	"in":       IN,
	"not":      NOT,
	"and":      AND,
	"or":       OR,
	"is":       IS,
	"pass":     PASS,
	"break":    BREAK,
	"continue": CONTINUE,
	"True":     TRUE,
	"False":    FALSE,
	"None":     NONE,

	"as":       RESERVED,
	"assert":   RESERVED,
	"async":    RESERVED,
	"await":    RESERVED,
	"class":    RESERVED,
	"del":      RESERVED,
	"except":   RESERVED,
	"finally":  RESERVED,
	"from":     RESERVED,
	"global":   RESERVED,
	"import":   RESERVED,
	"lambda":   RESERVED,
	"nonlocal": RESERVED,
	"raise":    RESERVED,
	"try":      RESERVED,
	"with":     RESERVED,
	"yield":    RESERVED,
}

// operators maps punctuation to its TokenType. Lookup is longest match first.
var operators = map[string]TokenType{
	"**=": DOUBLE_STAR_ASSIGN,
	"//=": DOUBLE_SLASH_ASSIGN,
	"<<=": SHL_ASSIGN,
	">>=": SHR_ASSIGN,

	"**": DOUBLE_STAR,
	"//": DOUBLE_SLASH,
	"<<": SHL_OP,
	">>": SHR_OP,
	"<=": LESS_EQ,
	">=": GREATER_EQ,
	"==": EQUALS,
	"!=": NOT_EQ,
	"->": ARROW,
	"+=": PLUS_ASSIGN,
	"-=": MINUS_ASSIGN,
	"*=": STAR_ASSIGN,
	"/=": SLASH_ASSIGN,
	"%=": PERCENT_ASSIGN,
	"&=": AMP_ASSIGN,
	"|=": PIPE_ASSIGN,
	"^=": CARET_ASSIGN,
	"@=": AT_ASSIGN,

	"(": LPAREN,
	")": RPAREN,
	"[": LBRACKET,
	"]": RBRACKET,
	"{": LBRACE,
	"}": RBRACE,
	".": DOT,
	",": COMMA,
	":": COLON,
	";": SEMICOLON,
	"@": AT,
	"+": PLUS,
	"-": MINUS,
	"*": STAR,
	"/": SLASH,
	"%": PERCENT,
	"&": AMP,
	"|": PIPE,
	"^": CARET,
	"~": TILDE,
	"<": LESS,
	">": GREATER,
	"=": ASSIGN,
}

// stringPrefixes are the identifier spellings that may directly precede a quote.
var stringPrefixes = map[string]bool{
	"r": true, "u": true, "b": true, "f": true,
	"br": true, "rb": true, "fr": true, "rf": true,
}

// Lexer holds all mutable state for a single scanning pass over src.
type Lexer struct {
	source    string
	src       []rune
	pos       int // index of the next rune to consume
	line      int // current 1-based source line
	col       int // current 0-based column
	indents   []int
	depth     int // open (, [ and { count; newlines inside brackets are insignificant
	lineStart bool
	tokens    []Token
}

func newLexer(src string) *Lexer {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	src = strings.ReplaceAll(src, "\r", "\n")
	return &Lexer{
		source:    src,
		src:       []rune(src),
		line:      1,
		indents:   []int{0},
		lineStart: true,
	}
}

func (l *Lexer) errorf(line, col int, format string, args ...any) error {
	return newTranslateError(l.source, nil, Pos{Line: line, Col: col}, fmt.Sprintf(format, args...))
}

// peek returns the rune at the current position without advancing.
func (l *Lexer) peek() rune { return l.peekAt(0) }

// peekAt returns the rune offset runes ahead of the current position.
func (l *Lexer) peekAt(offset int) rune {
	if l.pos+offset >= len(l.src) {
		return 0
	}
	return l.src[l.pos+offset]
}

func (l *Lexer) atEOF() bool { return l.pos >= len(l.src) }

// advance consumes one rune and returns it.
func (l *Lexer) advance() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
	return r
}

func (l *Lexer) emit(tt TokenType, lexeme string, line, col int) {
	l.tokens = append(l.tokens, Token{Type: tt, Lexeme: lexeme, Line: line, Col: col})
}

func (l *Lexer) lastType() TokenType {
	if len(l.tokens) == 0 {
		return NEWLINE
	}
	return l.tokens[len(l.tokens)-1].Type
}

// skipComment discards everything from '#' up to (not including) the newline.
func (l *Lexer) skipComment() {
	for !l.atEOF() && l.peek() != '\n' {
		l.advance()
	}
}

// measureIndent consumes leading blanks and returns the indentation width.
// Tabs advance to the next multiple of eight.
func (l *Lexer) measureIndent() int {
	width := 0
	for !l.atEOF() {
		switch l.peek() {
		case ' ':
			width++
		case '\t':
			width = (width/8 + 1) * 8
		case '\f':
			width = 0
		default:
			return width
		}
		l.advance()
	}
	return width
}

// scanIndent runs at the start of every logical line. Blank and comment-only
// lines are skipped; otherwise INDENT/DEDENT tokens are emitted to match the
// indentation stack.
func (l *Lexer) scanIndent() error {
	for {
		width := l.measureIndent()
		if l.atEOF() {
			return nil
		}
		switch l.peek() {
		case '#':
			l.skipComment()
			continue
		case '\n':
			l.advance()
			continue
		}

		l.lineStart = false
		top := l.indents[len(l.indents)-1]
		if width > top {
			l.indents = append(l.indents, width)
			l.emit(INDENT, "", l.line, l.col)
			return nil
		}
		for width < top {
			l.indents = l.indents[:len(l.indents)-1]
			l.emit(DEDENT, "", l.line, l.col)
			top = l.indents[len(l.indents)-1]
		}
		if width != top {
			return l.errorf(l.line, l.col, "unindent does not match any outer indentation level")
		}
		return nil
	}
}

// skipBlanks discards in-line whitespace, comments and backslash continuations.
func (l *Lexer) skipBlanks() error {
	for !l.atEOF() {
		switch r := l.peek(); {
		case r == ' ' || r == '\t' || r == '\f':
			l.advance()
		case r == '#':
			l.skipComment()
		case r == '\\':
			line, col := l.line, l.col
			l.advance()
			if l.peek() != '\n' {
				return l.errorf(line, col, "unexpected character after line continuation character")
			}
			l.advance()
		default:
			return nil
		}
	}
	return nil
}

// scanIdent collects a full identifier or keyword token.
func (l *Lexer) scanIdent() {
	line, col := l.line, l.col
	start := l.pos
	for !l.atEOF() {
		r := l.peek()
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && !unicode.Is(unicode.Mn, r) {
			break
		}
		l.advance()
	}
	lexeme := norm.NFKC.String(string(l.src[start:l.pos]))
	tt := IDENTIFIER
	if kw, ok := keywords[lexeme]; ok {
		tt = kw
	}
	l.emit(tt, lexeme, line, col)
}

func isDigitOrUnderscore(r rune) bool {
	return (r >= '0' && r <= '9') || r == '_'
}

// scanNumber collects an integer or floating point literal. Base prefixes
// (0x, 0o, 0b) and digit separators are kept in the lexeme; the parser
// resolves the value.
func (l *Lexer) scanNumber() error {
	line, col := l.line, l.col
	start := l.pos
	isFloat := false

	if l.peek() == '0' && strings.ContainsRune("xXoObB", l.peekAt(1)) {
		l.advance()
		l.advance()
		for !l.atEOF() && (unicode.IsDigit(l.peek()) || unicode.IsLetter(l.peek()) || l.peek() == '_') {
			l.advance()
		}
	} else {
		for !l.atEOF() && isDigitOrUnderscore(l.peek()) {
			l.advance()
		}
		if l.peek() == '.' {
			isFloat = true
			l.advance()
			for !l.atEOF() && isDigitOrUnderscore(l.peek()) {
				l.advance()
			}
		}
		if e := l.peek(); e == 'e' || e == 'E' {
			next := l.peekAt(1)
			if unicode.IsDigit(next) || ((next == '+' || next == '-') && unicode.IsDigit(l.peekAt(2))) {
				isFloat = true
				l.advance() // e
				if next == '+' || next == '-' {
					l.advance()
				}
				for !l.atEOF() && isDigitOrUnderscore(l.peek()) {
					l.advance()
				}
			}
		}
	}

	if r := l.peek(); r == 'j' || r == 'J' {
		return l.errorf(line, col, "complex literals are not supported")
	}
	if r := l.peek(); unicode.IsLetter(r) || r == '_' {
		return l.errorf(line, col, "invalid number literal")
	}

	tt := INTEGER
	if isFloat {
		tt = FLOAT
	}
	l.emit(tt, string(l.src[start:l.pos]), line, col)
	return nil
}

// scanString collects a quoted string, single or triple quoted. The opening
// quote must still be at l.peek(); line/col point at the prefix if any.
func (l *Lexer) scanString(line, col int) error {
	quote := l.advance()
	triple := l.peek() == quote && l.peekAt(1) == quote
	if triple {
		l.advance()
		l.advance()
	}

	var val strings.Builder
	for {
		if l.atEOF() {
			return l.errorf(line, col, "unterminated string literal")
		}
		r := l.peek()
		if r == '\\' {
			val.WriteRune(l.advance())
			if !l.atEOF() {
				val.WriteRune(l.advance())
			}
			continue
		}
		if r == '\n' && !triple {
			return l.errorf(line, col, "unterminated string literal")
		}
		if r == quote {
			if !triple {
				l.advance()
				break
			}
			if l.peekAt(1) == quote && l.peekAt(2) == quote {
				l.advance()
				l.advance()
				l.advance()
				break
			}
		}
		val.WriteRune(l.advance())
	}

	l.emit(STRING, val.String(), line, col)
	return nil
}

// scanOperator matches the longest operator at the current position.
func (l *Lexer) scanOperator() error {
	line, col := l.line, l.col
	for n := 3; n >= 1; n-- {
		if l.pos+n > len(l.src) {
			continue
		}
		text := string(l.src[l.pos : l.pos+n])
		tt, ok := operators[text]
		if !ok {
			continue
		}
		for range n {
			l.advance()
		}
		switch tt {
		case LPAREN, LBRACKET, LBRACE:
			l.depth++
		case RPAREN, RBRACKET, RBRACE:
			if l.depth > 0 {
				l.depth--
			}
		}
		l.emit(tt, text, line, col)
		return nil
	}
	return l.errorf(line, col, "unexpected character %q", l.peek())
}

// nextToken scans exactly one token (or one layout transition).
func (l *Lexer) nextToken() error {
	if l.lineStart && l.depth == 0 {
		if err := l.scanIndent(); err != nil {
			return err
		}
	}
	if err := l.skipBlanks(); err != nil {
		return err
	}
	if l.atEOF() {
		return nil
	}

	ch := l.peek()
	switch {
	case ch == '\n':
		line, col := l.line, l.col
		l.advance()
		if l.depth == 0 {
			if t := l.lastType(); t != NEWLINE && t != INDENT && t != DEDENT {
				l.emit(NEWLINE, "", line, col)
			}
			l.lineStart = true
		}
		return nil

	case unicode.IsLetter(ch) || ch == '_':
		line, col := l.line, l.col
		start := l.pos
		l.scanIdent()
		ident := string(l.src[start:l.pos])
		if q := l.peek(); (q == '\'' || q == '"') && stringPrefixes[strings.ToLower(ident)] {
			l.tokens = l.tokens[:len(l.tokens)-1]
			return l.scanString(line, col)
		}
		return nil

	case unicode.IsDigit(ch) || (ch == '.' && unicode.IsDigit(l.peekAt(1))):
		return l.scanNumber()

	case ch == '\'' || ch == '"':
		return l.scanString(l.line, l.col)
	}

	return l.scanOperator()
}

// Lex tokenises src and returns all tokens including the trailing NEWLINE,
// DEDENTs and the final EOF token. It returns a *TranslateError describing
// the first illegal character, bad indentation or unterminated literal.
func Lex(src string) ([]Token, error) {
	l := newLexer(src)
	for !l.atEOF() {
		if err := l.nextToken(); err != nil {
			return l.tokens, err
		}
	}
	if l.depth > 0 {
		return l.tokens, l.errorf(l.line, l.col, "unexpected EOF: unclosed bracket")
	}
	if t := l.lastType(); t != NEWLINE && t != INDENT && t != DEDENT {
		l.emit(NEWLINE, "", l.line, l.col)
	}
	for len(l.indents) > 1 {
		l.indents = l.indents[:len(l.indents)-1]
		l.emit(DEDENT, "", l.line, l.col)
	}
	l.emit(EOF, "", l.line, l.col)
	return l.tokens, nil
}
