package compiler

import (
	"fmt"
	"maps"
)

// translationContext is shared by a root translation and every helper it
// pulls in. Helpers are kept in the order they were first discovered.
type translationContext struct {
	helpers []*Translation
	seen    map[*Function]bool
	byName  map[string]*Function
}

func newTranslationContext() *translationContext {
	return &translationContext{
		seen:   make(map[*Function]bool),
		byName: make(map[string]*Function),
	}
}

// load returns the tree to translate, the def that names it (nil for a
// module without one) and the source used for diagnostics.
func (fn *Function) load() (root Node, def *FunctionDef, source string, err error) {
	source = fn.Source
	root = fn.Tree
	if root == nil {
		var mod *Module
		mod, source, err = ParseSource(fn.Source)
		if err != nil {
			return nil, nil, source, err
		}
		root = mod
	}

	switch n := root.(type) {
	case *FunctionDef:
		if fn.Name != "" && n.Name != fn.Name {
			return nil, nil, source, fmt.Errorf("function %q not found", fn.Name)
		}
		return n, n, source, nil
	case *Module:
		if fn.Name == "" {
			if len(n.Body) > 0 {
				def, _ = n.Body[0].(*FunctionDef)
			}
			return n, def, source, nil
		}
		for _, s := range n.Body {
			if d, ok := s.(*FunctionDef); ok && d.Name == fn.Name {
				return d, d, source, nil
			}
		}
		return nil, nil, source, fmt.Errorf("function %q not found", fn.Name)
	}
	return nil, nil, source, fmt.Errorf("unable to translate %T", root)
}

// addHelper translates fn as a helper bound to name, once per context.
func (ctx *translationContext) addHelper(name string, fn *Function) error {
	if ctx.seen[fn] {
		return nil
	}
	ctx.seen[fn] = true

	root, def, source, err := fn.load()
	if err != nil {
		return err
	}
	if def == nil {
		return newTranslateError(source, root, root.Pos(), "Expected a function definition")
	}
	if def.Name != name {
		return &ClosureError{
			Name:    name,
			Message: fmt.Sprintf("Unable to transform non-local variable: %s (bound to function %s)", name, def.Name),
		}
	}
	if other, ok := ctx.byName[def.Name]; ok && other != fn {
		return &ClosureError{
			Name:    name,
			Message: "Conflicting definitions for function: " + def.Name,
		}
	}
	ctx.byName[def.Name] = fn

	slot := len(ctx.helpers)
	ctx.helpers = append(ctx.helpers, nil)
	tr, err := ctx.translate(root, def, source, fn)
	if err != nil {
		return err
	}
	ctx.helpers[slot] = tr
	return nil
}

// translate inspects the closure of root, which pulls in its helpers, then
// renders it.
func (ctx *translationContext) translate(root Node, def *FunctionDef, source string, fn *Function) (*Translation, error) {
	env, err := inspect(ctx, fn, root)
	if err != nil {
		return nil, err
	}
	t := &translator{source: source, env: env}

	var stmts []Stmt
	switch n := root.(type) {
	case *Module:
		stmts = n.Body
	case *FunctionDef:
		stmts = []Stmt{n}
	}
	body, err := t.block(stmts, "")
	if err != nil {
		return nil, err
	}

	tr := &Translation{Body: body}
	if def != nil {
		tr.Name = def.Name
		if tr.Signature, err = t.signature(def, "", true); err != nil {
			return nil, err
		}
	}
	return tr, nil
}

// Translate renders fn and every helper function it reaches as kernel
// source. The first invalid construct aborts the whole translation with a
// *TranslateError or *ClosureError.
func Translate(fn *Function) (*Translation, error) {
	if fn == nil {
		return nil, fmt.Errorf("unable to translate nil function")
	}
	ctx := newTranslationContext()
	ctx.seen[fn] = true

	root, def, source, err := fn.load()
	if err != nil {
		return nil, err
	}
	if def != nil {
		ctx.byName[def.Name] = fn
	}
	tr, err := ctx.translate(root, def, source, fn)
	if err != nil {
		return nil, err
	}
	tr.Helpers = ctx.helpers
	return tr, nil
}

// TranslateSource translates the whole of src with the given bindings.
func TranslateSource(src string, globals map[string]any) (string, error) {
	tr, err := Translate(&Function{Source: src, Globals: globals})
	if err != nil {
		return "", err
	}
	return tr.String(), nil
}

// FunctionsFromSource splits a file into one Function per top-level def.
// The functions share one set of bindings, globals plus each other, the
// way the defs of one module see each other.
func FunctionsFromSource(src string, globals map[string]any) ([]*Function, error) {
	mod, src, err := ParseSource(src)
	if err != nil {
		return nil, err
	}

	scope := maps.Clone(globals)
	if scope == nil {
		scope = make(map[string]any)
	}

	var fns []*Function
	for _, s := range mod.Body {
		def, ok := s.(*FunctionDef)
		if !ok {
			continue
		}
		fn := &Function{Name: def.Name, Source: src, Tree: def, Globals: scope}
		scope[def.Name] = fn
		fns = append(fns, fn)
	}
	return fns, nil
}

// IsKernel reports whether fn is a kernel entry point: a def decorated
// with @okl.kernel.
func (fn *Function) IsKernel() bool {
	root, def, _, err := fn.load()
	if err != nil || def == nil || root == nil {
		return false
	}
	for _, d := range def.Decorators {
		if name, ok := dottedName(d); ok {
			if _, known := kernelDecorators["@"+name]; known {
				return true
			}
		}
	}
	return false
}

// DescribeClosure lists how each non-local name of fn is classified.
func DescribeClosure(fn *Function) (string, error) {
	root, _, _, err := fn.load()
	if err != nil {
		return "", err
	}
	ctx := newTranslationContext()
	ctx.seen[fn] = true
	env, err := inspect(ctx, fn, root)
	if err != nil {
		return "", err
	}
	return env.String(), nil
}
