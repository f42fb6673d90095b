package compiler

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func tokenTypes(tokens []Token) []TokenType {
	types := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		types[i] = tok.Type
	}
	return types
}

func TestLex(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []TokenType
	}{
		{
			name:     "Empty",
			input:    "",
			expected: []TokenType{EOF},
		},
		{
			name:  "Function Header",
			input: "def f(a: int) -> int:\n    return a\n",
			expected: []TokenType{
				DEF, IDENTIFIER, LPAREN, IDENTIFIER, COLON, IDENTIFIER, RPAREN, ARROW, IDENTIFIER, COLON, NEWLINE,
				INDENT, RETURN, IDENTIFIER, NEWLINE,
				DEDENT, EOF,
			},
		},
		{
			name:  "Decorator",
			input: "@okl.kernel\ndef k() -> None:\n  pass",
			expected: []TokenType{
				AT, IDENTIFIER, DOT, IDENTIFIER, NEWLINE,
				DEF, IDENTIFIER, LPAREN, RPAREN, ARROW, NONE, COLON, NEWLINE,
				INDENT, PASS, NEWLINE,
				DEDENT, EOF,
			},
		},
		{
			name:  "Newlines Inside Brackets",
			input: "f(a,\n      b)\n",
			expected: []TokenType{
				IDENTIFIER, LPAREN, IDENTIFIER, COMMA, IDENTIFIER, RPAREN, NEWLINE, EOF,
			},
		},
		{
			name:  "Comments And Blank Lines",
			input: "x = 1  # one\n\n   # indented comment\ny = 2\n",
			expected: []TokenType{
				IDENTIFIER, ASSIGN, INTEGER, NEWLINE,
				IDENTIFIER, ASSIGN, INTEGER, NEWLINE, EOF,
			},
		},
		{
			name:  "Backslash Continuation",
			input: "x = 1 + \\\n    2\n",
			expected: []TokenType{
				IDENTIFIER, ASSIGN, INTEGER, PLUS, INTEGER, NEWLINE, EOF,
			},
		},
		{
			name:  "Operators Longest Match",
			input: "a **= b // c << d >>= e -> f <= g != h",
			expected: []TokenType{
				IDENTIFIER, DOUBLE_STAR_ASSIGN, IDENTIFIER, DOUBLE_SLASH, IDENTIFIER, SHL_OP, IDENTIFIER,
				SHR_ASSIGN, IDENTIFIER, ARROW, IDENTIFIER, LESS_EQ, IDENTIFIER, NOT_EQ, IDENTIFIER,
				NEWLINE, EOF,
			},
		},
		{
			name:  "Keywords",
			input: "if elif else for while in not and or is True False None",
			expected: []TokenType{
				IF, ELIF, ELSE, FOR, WHILE, IN, NOT, AND, OR, IS, TRUE, FALSE, NONE, NEWLINE, EOF,
			},
		},
		{
			name:     "Reserved Words",
			input:    "import lambda class",
			expected: []TokenType{RESERVED, RESERVED, RESERVED, NEWLINE, EOF},
		},
		{
			name:  "Nested Dedent",
			input: "if a:\n    if b:\n        c\nd\n",
			expected: []TokenType{
				IF, IDENTIFIER, COLON, NEWLINE,
				INDENT, IF, IDENTIFIER, COLON, NEWLINE,
				INDENT, IDENTIFIER, NEWLINE,
				DEDENT, DEDENT, IDENTIFIER, NEWLINE, EOF,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := Lex(tt.input)
			if err != nil {
				t.Fatalf("Lex() error = %v", err)
			}
			if got := tokenTypes(tokens); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Lex() types\n got: %v\nwant: %v", got, tt.expected)
			}
		})
	}
}

func TestLexLiterals(t *testing.T) {
	tests := []struct {
		input  string
		typ    TokenType
		lexeme string
	}{
		{"123", INTEGER, "123"},
		{"0x1F", INTEGER, "0x1F"},
		{"0b101", INTEGER, "0b101"},
		{"1_000", INTEGER, "1_000"},
		{"3.5", FLOAT, "3.5"},
		{"1e3", FLOAT, "1e3"},
		{".5", FLOAT, ".5"},
		{"2.5e-3", FLOAT, "2.5e-3"},
		{"'abc'", STRING, "abc"},
		{`"a'b"`, STRING, "a'b"},
		{`r"raw"`, STRING, "raw"},
		{`"""doc"""`, STRING, "doc"},
		{"_under_score", IDENTIFIER, "_under_score"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tokens, err := Lex(tt.input)
			if err != nil {
				t.Fatalf("Lex(%q) error = %v", tt.input, err)
			}
			if tokens[0].Type != tt.typ || tokens[0].Lexeme != tt.lexeme {
				t.Errorf("Lex(%q)[0] = %v %q, want %v %q", tt.input, tokens[0].Type, tokens[0].Lexeme, tt.typ, tt.lexeme)
			}
		})
	}
}

func TestLexNormalizesIdentifiers(t *testing.T) {
	// U+FB01 LATIN SMALL LIGATURE FI folds to "fi".
	tokens, err := Lex("\ufb01le = 1")
	if err != nil {
		t.Fatalf("Lex() error = %v", err)
	}
	if tokens[0].Lexeme != "file" {
		t.Errorf("identifier = %q, want %q", tokens[0].Lexeme, "file")
	}
}

func TestLexPositions(t *testing.T) {
	tokens, err := Lex("x = 1\nif  y:\n  z\n")
	if err != nil {
		t.Fatalf("Lex() error = %v", err)
	}
	want := map[string]Pos{
		"x": {Line: 1, Col: 0},
		"1": {Line: 1, Col: 4},
		"y": {Line: 2, Col: 4},
		"z": {Line: 3, Col: 2},
	}
	for _, tok := range tokens {
		if p, ok := want[tok.Lexeme]; ok && tok.Pos() != p {
			t.Errorf("%q at %v, want %v", tok.Lexeme, tok.Pos(), p)
		}
	}
}

func TestLexErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		msg   string
	}{
		{"Bad Dedent", "if x:\n    a\n  b\n", "unindent does not match any outer indentation level"},
		{"Unterminated String", "x = 'abc\n", "unterminated string literal"},
		{"Unclosed Bracket", "f(a, b\n", "unclosed bracket"},
		{"Complex Literal", "x = 3j\n", "complex literals are not supported"},
		{"Bad Character", "x = $\n", "unexpected character"},
		{"Bad Continuation", "x = 1 \\ 2\n", "line continuation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Lex(tt.input)
			if err == nil {
				t.Fatalf("Lex(%q) expected error", tt.input)
			}
			var te *TranslateError
			if !errors.As(err, &te) {
				t.Fatalf("error type = %T, want *TranslateError", err)
			}
			if !strings.Contains(te.Message, tt.msg) {
				t.Errorf("message = %q, want it to contain %q", te.Message, tt.msg)
			}
		})
	}
}
