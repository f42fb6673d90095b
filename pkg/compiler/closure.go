package compiler

import "fmt"

// Function is a translatable unit: source text (or an already parsed tree)
// and the values of the non-local names it refers to.
type Function struct {
	// Name selects one top-level def from Source. When empty the whole
	// source is translated and its first def is the entry point.
	Name string

	// Source is the function text. It is also used to render diagnostics
	// when Tree is set.
	Source string

	// Tree, when set, is translated instead of parsing Source. It must be
	// a *Module or a *FunctionDef.
	Tree Node

	// Globals binds non-local names: Go primitives become kernel types,
	// *Function values become helper functions.
	Globals map[string]any
}

// namespaceNames are non-local names that mark the kernel DSL and are never
// materialized.
var namespaceNames = map[string]bool{
	"okl": true,
}

// allowedBuiltins are the builtins a kernel may refer to.
var allowedBuiltins = map[string]bool{
	"range": true,
	"len":   true,
}

// builtinNames is the builtin namespace of the source language. An unbound
// reference to one of these is reported as a builtin rather than as an
// unknown variable.
var builtinNames = map[string]bool{
	"abs": true, "aiter": true, "all": true, "anext": true, "any": true, "ascii": true,
	"bin": true, "bool": true, "breakpoint": true, "bytearray": true, "bytes": true,
	"callable": true, "chr": true, "classmethod": true, "compile": true, "complex": true,
	"delattr": true, "dict": true, "dir": true, "divmod": true, "enumerate": true,
	"eval": true, "exec": true, "filter": true, "float": true, "format": true,
	"frozenset": true, "getattr": true, "globals": true, "hasattr": true, "hash": true,
	"help": true, "hex": true, "id": true, "input": true, "int": true, "isinstance": true,
	"issubclass": true, "iter": true, "len": true, "list": true, "locals": true,
	"map": true, "max": true, "memoryview": true, "min": true, "next": true,
	"object": true, "oct": true, "open": true, "ord": true, "pow": true, "print": true,
	"property": true, "range": true, "repr": true, "reversed": true, "round": true,
	"set": true, "setattr": true, "slice": true, "sorted": true, "staticmethod": true,
	"str": true, "sum": true, "super": true, "tuple": true, "type": true, "vars": true,
	"zip": true, "__import__": true,
}

// primitiveType maps a bound Go value to its kernel type name.
func primitiveType(v any) (string, bool) {
	switch v.(type) {
	case nil:
		return "void", true
	case bool:
		return "bool", true
	case int8, uint8:
		return "char", true
	case int16, uint16:
		return "short", true
	case int32, uint32:
		return "int", true
	case int64, uint64:
		return "long", true
	case int, uint:
		return "int", true
	case float32:
		return "float", true
	case float64:
		return "double", true
	}
	return "", false
}

// closureEnv classifies every non-local name a function refers to.
type closureEnv struct {
	names    []string          // referenced non-local names, first appearance first
	globals  map[string]string // name -> kernel type
	helpers  map[string]*Function
	builtins []string
}

// known reports whether name passed inspection.
func (env *closureEnv) known(name string) bool {
	if _, ok := env.globals[name]; ok {
		return true
	}
	if _, ok := env.helpers[name]; ok {
		return true
	}
	return namespaceNames[name] || allowedBuiltins[name]
}

// inspect classifies the non-local references of root against fn.Globals.
// Helper functions are translated into ctx as they are discovered.
func inspect(ctx *translationContext, fn *Function, root Node) (*closureEnv, error) {
	env := &closureEnv{
		globals: make(map[string]string),
		helpers: make(map[string]*Function),
	}
	env.names = nonLocalNames(root)

	for _, name := range env.names {
		value, bound := fn.Globals[name]
		if !bound {
			if builtinNames[name] {
				if !allowedBuiltins[name] {
					return nil, newClosureError(name, true)
				}
				env.builtins = append(env.builtins, name)
				continue
			}
			if namespaceNames[name] {
				continue
			}
			return nil, newClosureError(name, false)
		}

		if typ, ok := primitiveType(value); ok {
			env.globals[name] = typ
			continue
		}
		if helper, ok := value.(*Function); ok {
			if err := ctx.addHelper(name, helper); err != nil {
				return nil, err
			}
			env.helpers[name] = helper
			continue
		}
		if !namespaceNames[name] {
			return nil, newClosureError(name, false)
		}
	}
	return env, nil
}

// nonLocalNames returns the names root reads that it never binds, in order
// of first appearance. Annotations and decorators are not reads.
func nonLocalNames(root Node) []string {
	bound := make(map[string]bool)
	findBindings(root, bound)

	var names []string
	seen := make(map[string]bool)
	findNames(root, func(name string) {
		if bound[name] || seen[name] {
			return
		}
		seen[name] = true
		names = append(names, name)
	})
	return names
}

// findBindings records every name n binds: parameters, assignment and loop
// targets and def names.
func findBindings(n Node, bound map[string]bool) {
	bindTarget := func(target Expr) {
		switch t := target.(type) {
		case *Name:
			bound[t.ID] = true
		case *Tuple:
			for _, e := range t.Elts {
				if name, ok := e.(*Name); ok {
					bound[name.ID] = true
				}
			}
		}
	}

	switch s := n.(type) {
	case *Module:
		findBindingsBlock(s.Body, bound)
	case *FunctionDef:
		bound[s.Name] = true
		for _, a := range s.Args.Args {
			bound[a.Name] = true
		}
		for _, a := range s.Args.KwOnly {
			bound[a.Name] = true
		}
		if s.Args.Vararg != nil {
			bound[s.Args.Vararg.Name] = true
		}
		if s.Args.Kwarg != nil {
			bound[s.Args.Kwarg.Name] = true
		}
		findBindingsBlock(s.Body, bound)
	case *Assign:
		for _, t := range s.Targets {
			bindTarget(t)
		}
	case *AnnAssign:
		bindTarget(s.Target)
	case *AugAssign:
		bindTarget(s.Target)
	case *For:
		bindTarget(s.Target)
		findBindingsBlock(s.Body, bound)
		findBindingsBlock(s.Orelse, bound)
	case *While:
		findBindingsBlock(s.Body, bound)
		findBindingsBlock(s.Orelse, bound)
	case *If:
		findBindingsBlock(s.Body, bound)
		findBindingsBlock(s.Orelse, bound)
	}
}

func findBindingsBlock(stmts []Stmt, bound map[string]bool) {
	for _, s := range stmts {
		findBindings(s, bound)
	}
}

// findNames calls visit for every Name read in n, in source order.
func findNames(n Node, visit func(string)) {
	if n == nil {
		return
	}
	switch e := n.(type) {
	case *Module:
		findNamesBlock(e.Body, visit)
	case *FunctionDef:
		for _, d := range e.Args.Defaults {
			findNames(d, visit)
		}
		for _, d := range e.Args.KwDefaults {
			if d != nil {
				findNames(d, visit)
			}
		}
		findNamesBlock(e.Body, visit)
	case *Assign:
		for _, t := range e.Targets {
			findNames(t, visit)
		}
		findNames(e.Value, visit)
	case *AnnAssign:
		findNames(e.Target, visit)
		if e.Value != nil {
			findNames(e.Value, visit)
		}
	case *AugAssign:
		findNames(e.Target, visit)
		findNames(e.Value, visit)
	case *If:
		findNames(e.Test, visit)
		findNamesBlock(e.Body, visit)
		findNamesBlock(e.Orelse, visit)
	case *For:
		findNames(e.Target, visit)
		findNames(e.Iter, visit)
		findNamesBlock(e.Body, visit)
		findNamesBlock(e.Orelse, visit)
	case *While:
		findNames(e.Test, visit)
		findNamesBlock(e.Body, visit)
		findNamesBlock(e.Orelse, visit)
	case *Return:
		if e.Value != nil {
			findNames(e.Value, visit)
		}
	case *ExprStmt:
		findNames(e.Value, visit)

	case *Name:
		visit(e.ID)
	case *BinOp:
		findNames(e.Left, visit)
		findNames(e.Right, visit)
	case *UnaryOp:
		findNames(e.Operand, visit)
	case *BoolOp:
		for _, v := range e.Values {
			findNames(v, visit)
		}
	case *Compare:
		findNames(e.Left, visit)
		for _, c := range e.Comparators {
			findNames(c, visit)
		}
	case *Call:
		findNames(e.Func, visit)
		for _, a := range e.Args {
			findNames(a, visit)
		}
		for _, kw := range e.Keywords {
			findNames(kw.Value, visit)
		}
	case *Attribute:
		findNames(e.Value, visit)
	case *Subscript:
		findNames(e.Value, visit)
		findNames(e.Index, visit)
	case *Slice:
		if e.Lower != nil {
			findNames(e.Lower, visit)
		}
		if e.Upper != nil {
			findNames(e.Upper, visit)
		}
		if e.Step != nil {
			findNames(e.Step, visit)
		}
	case *Tuple:
		for _, x := range e.Elts {
			findNames(x, visit)
		}
	case *List:
		for _, x := range e.Elts {
			findNames(x, visit)
		}
	}
}

func findNamesBlock(stmts []Stmt, visit func(string)) {
	for _, s := range stmts {
		findNames(s, visit)
	}
}

// String renders the environment one name per line.
func (env *closureEnv) String() string {
	var out string
	for _, name := range env.names {
		switch {
		case env.globals[name] != "":
			out += fmt.Sprintf("%s: global %s\n", name, env.globals[name])
		case env.helpers[name] != nil:
			out += fmt.Sprintf("%s: helper function\n", name)
		case allowedBuiltins[name]:
			out += fmt.Sprintf("%s: builtin\n", name)
		default:
			out += fmt.Sprintf("%s: namespace\n", name)
		}
	}
	return out
}
