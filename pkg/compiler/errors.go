package compiler

import (
	"errors"
	"fmt"
	"strings"
)

// contextLines is how many source lines are shown on each side of the
// failing line.
const contextLines = 2

// Diagnostic is a rendered error: position, message and the source window
// with a caret under the failing column.
type Diagnostic struct {
	Line    int // 1-based
	Col     int // 0-based
	Message string
	Context string // empty when no source text was available
}

func (d Diagnostic) String() string {
	return "Error: " + d.Message + "\n" + d.Context
}

// TranslateError reports an unsupported construct, missing annotation,
// bad operator or a syntax error in the source.
type TranslateError struct {
	Diagnostic
	Node Node // the failing node; nil for lexer and parser errors
}

func (e *TranslateError) Error() string { return e.Diagnostic.String() }

// ClosureError reports a non-local name that cannot be carried into the
// kernel: an unsupported global value or a builtin outside the allow-list.
type ClosureError struct {
	Name    string
	Builtin bool
	Message string
}

func (e *ClosureError) Error() string { return e.Message }

func newClosureError(name string, builtin bool) *ClosureError {
	msg := "Unable to transform non-local variable: " + name
	if builtin {
		msg = "Unable to transform builtin: " + name
	}
	return &ClosureError{Name: name, Builtin: builtin, Message: msg}
}

// ErrorNode returns the node a failed translation stopped at, or nil when
// err carries none.
func ErrorNode(err error) Node {
	var te *TranslateError
	if errors.As(err, &te) {
		return te.Node
	}
	return nil
}

// newTranslateError builds the diagnostic for a failure at pos.
func newTranslateError(source string, node Node, pos Pos, message string) *TranslateError {
	return &TranslateError{
		Diagnostic: Diagnostic{
			Line:    pos.Line,
			Col:     pos.Col,
			Message: message,
			Context: renderContext(source, pos),
		},
		Node: node,
	}
}

// renderContext draws up to two lines either side of the failing line,
// with line labels padded to a common width:
//
//	   2 | def f(a) -> int:
//	     |       ^
func renderContext(source string, pos Pos) string {
	if source == "" {
		return ""
	}
	lines := strings.Split(strings.TrimSuffix(source, "\n"), "\n")
	errLine := pos.Line - 1

	first := max(errLine-contextLines, 0)
	last := min(errLine+contextLines, len(lines)-1)
	if first > last {
		return ""
	}

	width := len(fmt.Sprint(last + 1))
	const prefix = "   "

	var b strings.Builder
	for i := first; i <= last; i++ {
		fmt.Fprintf(&b, "%s%-*d | %s\n", prefix, width, i+1, lines[i])
		if i == errLine {
			fmt.Fprintf(&b, "%s%s | %s^\n", prefix, strings.Repeat(" ", width), strings.Repeat(" ", pos.Col))
		}
	}
	return b.String()
}
