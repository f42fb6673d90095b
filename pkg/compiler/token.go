package compiler

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOF TokenType = iota // sentinel: end of input

	// Layout
	NEWLINE // end of a logical line
	INDENT  // indentation level increased
	DEDENT  // indentation level decreased

	// Literals
	IDENTIFIER // variable / function name
	INTEGER    // integer literal, any base
	FLOAT      // floating point literal
	STRING     // string literal '...' or "..."

	// Keywords
	DEF      // "def"
	RETURN   // "return"
	IF       // "if"
	ELIF     // "elif"
	ELSE     // "else"
	FOR      // "for"
	WHILE    // "while"
	IN       // "in"
	NOT      // "not"
	AND      // "and"
	OR       // "or"
	IS       // "is"
	PASS     // "pass"
	BREAK    // "break"
	CONTINUE // "continue"
	TRUE     // "True"
	FALSE    // "False"
	NONE     // "None"
	RESERVED // keyword of the source language with no translation (class, import, lambda...)

	// Paired delimiters
	LPAREN   // (
	RPAREN   // )
	LBRACKET // [
	RBRACKET // ]
	LBRACE   // {
	RBRACE   // }

	// Punctuation
	DOT       // .
	COMMA     // ,
	COLON     // :
	SEMICOLON // ;
	AT        // @
	ARROW     // ->

	// Arithmetic operators
	PLUS         // +
	MINUS        // -
	STAR         // *
	DOUBLE_STAR  // **
	SLASH        // /
	DOUBLE_SLASH // //
	PERCENT      // %
	SHL_OP       // <<
	SHR_OP       // >>
	AMP          // &
	PIPE         // |
	CARET        // ^
	TILDE        // ~

	// Comparison
	EQUALS     // ==
	NOT_EQ     // !=
	LESS       // <
	GREATER    // >
	LESS_EQ    // <=
	GREATER_EQ // >=

	// Assignment
	ASSIGN              // =
	PLUS_ASSIGN         // +=
	MINUS_ASSIGN        // -=
	STAR_ASSIGN         // *=
	DOUBLE_STAR_ASSIGN  // **=
	SLASH_ASSIGN        // /=
	DOUBLE_SLASH_ASSIGN // //=
	PERCENT_ASSIGN      // %=
	SHL_ASSIGN          // <<=
	SHR_ASSIGN          // >>=
	AMP_ASSIGN          // &=
	PIPE_ASSIGN         // |=
	CARET_ASSIGN        // ^=
	AT_ASSIGN           // @=
)

// tokenNames is indexed by TokenType.
var tokenNames = [...]string{
	EOF:                 "EOF",
	NEWLINE:             "NEWLINE",
	INDENT:              "INDENT",
	DEDENT:              "DEDENT",
	IDENTIFIER:          "IDENTIFIER",
	INTEGER:             "INTEGER",
	FLOAT:               "FLOAT",
	STRING:              "STRING",
	DEF:                 "DEF",
	RETURN:              "RETURN",
	IF:                  "IF",
	ELIF:                "ELIF",
	ELSE:                "ELSE",
	FOR:                 "FOR",
	WHILE:               "WHILE",
	IN:                  "IN",
	NOT:                 "NOT",
	AND:                 "AND",
	OR:                  "OR",
	IS:                  "IS",
	PASS:                "PASS",
	BREAK:               "BREAK",
	CONTINUE:            "CONTINUE",
	TRUE:                "TRUE",
	FALSE:               "FALSE",
	NONE:                "NONE",
	RESERVED:            "RESERVED",
	LPAREN:              "LPAREN",
	RPAREN:              "RPAREN",
	LBRACKET:            "LBRACKET",
	RBRACKET:            "RBRACKET",
	LBRACE:              "LBRACE",
	RBRACE:              "RBRACE",
	DOT:                 "DOT",
	COMMA:               "COMMA",
	COLON:               "COLON",
	SEMICOLON:           "SEMICOLON",
	AT:                  "AT",
	ARROW:               "ARROW",
	PLUS:                "PLUS",
	MINUS:               "MINUS",
	STAR:                "STAR",
	DOUBLE_STAR:         "DOUBLE_STAR",
	SLASH:               "SLASH",
	DOUBLE_SLASH:        "DOUBLE_SLASH",
	PERCENT:             "PERCENT",
	SHL_OP:              "SHL_OP",
	SHR_OP:              "SHR_OP",
	AMP:                 "AMP",
	PIPE:                "PIPE",
	CARET:               "CARET",
	TILDE:               "TILDE",
	EQUALS:              "EQUALS",
	NOT_EQ:              "NOT_EQ",
	LESS:                "LESS",
	GREATER:             "GREATER",
	LESS_EQ:             "LESS_EQ",
	GREATER_EQ:          "GREATER_EQ",
	ASSIGN:              "ASSIGN",
	PLUS_ASSIGN:         "PLUS_ASSIGN",
	MINUS_ASSIGN:        "MINUS_ASSIGN",
	STAR_ASSIGN:         "STAR_ASSIGN",
	DOUBLE_STAR_ASSIGN:  "DOUBLE_STAR_ASSIGN",
	SLASH_ASSIGN:        "SLASH_ASSIGN",
	DOUBLE_SLASH_ASSIGN: "DOUBLE_SLASH_ASSIGN",
	PERCENT_ASSIGN:      "PERCENT_ASSIGN",
	SHL_ASSIGN:          "SHL_ASSIGN",
	SHR_ASSIGN:          "SHR_ASSIGN",
	AMP_ASSIGN:          "AMP_ASSIGN",
	PIPE_ASSIGN:         "PIPE_ASSIGN",
	CARET_ASSIGN:        "CARET_ASSIGN",
	AT_ASSIGN:           "AT_ASSIGN",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// Token is a single lexical unit produced by the Lexer.
type Token struct {
	Type   TokenType
	Lexeme string // the exact source text that was matched (NFKC-normalised for identifiers)
	Line   int    // 1-based source line
	Col    int    // 0-based column of the first rune
}

// Pos returns the source position of the token.
func (t Token) Pos() Pos { return Pos{Line: t.Line, Col: t.Col} }

func (t Token) String() string {
	return fmt.Sprintf("%-12s %-14q  line %d:%d", t.Type, t.Lexeme, t.Line, t.Col)
}
