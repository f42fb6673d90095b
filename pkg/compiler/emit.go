package compiler

import "strings"

// Translation is the rendered kernel text of one function.
type Translation struct {
	Name      string // def name; empty for a module without one
	Signature string // forward declaration, terminated by ';'
	Body      string

	// Helpers are the functions reached through the closure, in the order
	// first discovered. Only the root translation carries them.
	Helpers []*Translation
}

// String assembles the kernel source: helper forward declarations, then
// helper bodies, then the root body, separated by blank lines.
func (tr *Translation) String() string {
	parts := make([]string, 0, 2*len(tr.Helpers)+1)
	for _, h := range tr.Helpers {
		parts = append(parts, h.Signature)
	}
	for _, h := range tr.Helpers {
		parts = append(parts, h.Body)
	}
	parts = append(parts, tr.Body)
	return strings.Join(parts, "\n\n")
}
