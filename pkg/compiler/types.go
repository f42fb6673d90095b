package compiler

import "strings"

// typeAliases maps the sized scalar annotation names to kernel types.
var typeAliases = map[string]string{
	"bool_":   "bool",
	"int8":    "char",
	"uint8":   "char",
	"int16":   "short",
	"uint16":  "short",
	"int32":   "int",
	"uint32":  "int",
	"int64":   "long",
	"uint64":  "long",
	"float32": "float",
	"float64": "double",
}

// Generic annotation heads.
const (
	annotationList      = "List"
	annotationConst     = "Const"
	annotationExclusive = "Exclusive"
	annotationShared    = "Shared"
)

// typeName resolves a scalar annotation name.
func (t *translator) typeName(name string) string {
	if typ, ok := t.env.globals[name]; ok {
		return typ
	}
	if typ, ok := typeAliases[name]; ok {
		return typ
	}
	return name
}

// annotationHead returns the name an annotation is written with: a bare
// name or one qualified by the kernel namespace (okl.List).
func annotationHead(e Expr) (string, bool) {
	switch n := e.(type) {
	case *Name:
		return n.ID, true
	case *Attribute:
		if ns, ok := n.Value.(*Name); ok && namespaceNames[ns.ID] {
			return n.Attr, true
		}
	}
	return "", false
}

// withName appends a variable name to a type, without a gap after '*'.
func withName(typ, varName string) string {
	if varName == "" {
		return typ
	}
	if strings.HasSuffix(typ, "*") {
		return typ + varName
	}
	return typ + " " + varName
}

// annotation renders the declaration of varName with the given annotation.
// A nil annotation renders varName alone, which callers treat as untyped.
func (t *translator) annotation(node Expr, varName string) (string, error) {
	if node == nil {
		return varName, nil
	}

	switch n := node.(type) {
	case *Name, *Attribute:
		if name, ok := annotationHead(n); ok {
			return withName(t.typeName(name), varName), nil
		}

	case *Constant:
		if n.Kind == ConstNone {
			return withName("void", varName), nil
		}

	case *Subscript:
		head, ok := annotationHead(n.Value)
		if !ok {
			break
		}
		if _, isSlice := n.Index.(*Slice); isSlice {
			return "", t.errorf(n.Index, "Can only handle single access slices")
		}
		switch head {
		case annotationList:
			return t.listAnnotation(n.Index, varName)
		case annotationConst:
			inner, err := t.annotation(n.Index, varName)
			return "const " + inner, err
		case annotationExclusive:
			inner, err := t.annotation(n.Index, varName)
			return "@exclusive " + inner, err
		case annotationShared:
			inner, err := t.annotation(n.Index, varName)
			return "@shared " + inner, err
		}
	}
	return "", t.errorf(node, "Cannot handle type annotation")
}

// listAnnotation renders List[T] as a pointer and List[T, d1, d2...] as a
// fixed size array.
func (t *translator) listAnnotation(index Expr, varName string) (string, error) {
	tuple, isArray := index.(*Tuple)
	if !isArray {
		typ, err := t.annotation(index, "")
		if err != nil {
			return "", err
		}
		if !strings.HasSuffix(typ, "*") {
			typ += " "
		}
		return typ + "*" + varName, nil
	}

	if len(tuple.Elts) == 0 {
		return "", t.errorf(tuple, "Cannot handle type annotation")
	}
	typ, err := t.annotation(tuple.Elts[0], "")
	if err != nil {
		return "", err
	}
	var dims strings.Builder
	for _, d := range tuple.Elts[1:] {
		dim, err := t.dimension(d)
		if err != nil {
			return "", err
		}
		dims.WriteString("[" + dim + "]")
	}
	return withName(typ, varName) + dims.String(), nil
}

// dimension renders an array size. Names need not be declared: a size is
// often a macro supplied as a build define.
func (t *translator) dimension(e Expr) (string, error) {
	if name, ok := e.(*Name); ok {
		if typ, ok := t.env.globals[name.ID]; ok {
			return typ, nil
		}
		return name.ID, nil
	}
	return t.expr(e)
}
