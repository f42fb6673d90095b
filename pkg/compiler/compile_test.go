package compiler

import (
	"errors"
	"strings"
	"testing"
)

func twiceHelper() *Function {
	return &Function{Source: "def twice(x: int) -> int:\n    return 2 * x\n"}
}

func TestTranslateHelper(t *testing.T) {
	src := "@okl.kernel\ndef k(a: List[int]) -> None:\n    a[0] = twice(a[0])\n"
	got := translate(t, src, map[string]any{"twice": twiceHelper()})

	want := "int twice(int x);\n\n" +
		"int twice(int x) {\n  return 2 * x;\n}\n\n" +
		"@kernel void k(int *a) {\n  a[0] = twice(a[0]);\n}"
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestTranslateTransitiveHelpers(t *testing.T) {
	twice := twiceHelper()
	quad := &Function{
		Source:  "def quad(x: int) -> int:\n    return twice(twice(x))\n",
		Globals: map[string]any{"twice": twice},
	}
	root := &Function{
		Source:  "@okl.kernel\ndef k(a: List[int]) -> None:\n    a[0] = quad(a[0]) + twice(a[1])\n",
		Globals: map[string]any{"quad": quad, "twice": twice},
	}

	tr, err := Translate(root)
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if len(tr.Helpers) != 2 || tr.Helpers[0].Name != "quad" || tr.Helpers[1].Name != "twice" {
		t.Fatalf("Helpers = %v, want quad then twice", tr.Helpers)
	}

	want := "int quad(int x);\n\n" +
		"int twice(int x);\n\n" +
		"int quad(int x) {\n  return twice(twice(x));\n}\n\n" +
		"int twice(int x) {\n  return 2 * x;\n}\n\n" +
		"@kernel void k(int *a) {\n  a[0] = quad(a[0]) + twice(a[1]);\n}"
	if got := tr.String(); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestTranslateMutualRecursion(t *testing.T) {
	src := `def is_even(n: int) -> bool:
    if n == 0:
        return True
    return is_odd(n - 1)

def is_odd(n: int) -> bool:
    if n == 0:
        return False
    return is_even(n - 1)
`
	fns, err := FunctionsFromSource(src, nil)
	if err != nil {
		t.Fatalf("FunctionsFromSource() error = %v", err)
	}
	if len(fns) != 2 {
		t.Fatalf("got %d functions, want 2", len(fns))
	}

	tr, err := Translate(fns[0])
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	want := "bool is_odd(int n);\n\n" +
		"bool is_odd(int n) {\n  if (n == 0) {\n    return false;\n  }\n  return is_even(n - 1);\n}\n\n" +
		"bool is_even(int n) {\n  if (n == 0) {\n    return true;\n  }\n  return is_odd(n - 1);\n}"
	if got := tr.String(); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestTranslateHelperErrors(t *testing.T) {
	t.Run("Bound Name Mismatch", func(t *testing.T) {
		src := "def f() -> int:\n    return helper()\n"
		other := &Function{Source: "def other() -> int:\n    return 1\n"}
		_, err := TranslateSource(src, map[string]any{"helper": other})
		ce := closureError(t, err)
		if ce.Name != "helper" || !strings.Contains(ce.Message, "bound to function other") {
			t.Errorf("got %q", ce.Message)
		}
	})

	t.Run("Conflicting Definitions", func(t *testing.T) {
		a := &Function{Source: "def g() -> int:\n    return 1\n"}
		b := &Function{Source: "def g() -> int:\n    return 2\n"}
		h := &Function{Source: "def h() -> int:\n    return g()\n", Globals: map[string]any{"g": b}}
		src := "def f() -> int:\n    return g() + h()\n"
		_, err := TranslateSource(src, map[string]any{"g": a, "h": h})
		ce := closureError(t, err)
		if ce.Message != "Conflicting definitions for function: g" {
			t.Errorf("got %q", ce.Message)
		}
	})

	t.Run("Helper Diagnostic Uses Helper Source", func(t *testing.T) {
		bad := &Function{Source: "def bad(x) -> int:\n    return x\n"}
		_, err := TranslateSource("def f() -> int:\n    return bad(1)\n", map[string]any{"bad": bad})
		var te *TranslateError
		if !errors.As(err, &te) {
			t.Fatalf("error = %T, want *TranslateError", err)
		}
		if !strings.Contains(te.Context, "def bad(x) -> int:") {
			t.Errorf("context = %q", te.Context)
		}
		if _, ok := ErrorNode(err).(*Arg); !ok {
			t.Errorf("ErrorNode() = %T, want *Arg", ErrorNode(err))
		}
	})

	t.Run("Helper Without Def", func(t *testing.T) {
		notDef := &Function{Source: "x: int = 1\n"}
		_, err := TranslateSource("def f() -> int:\n    return g()\n", map[string]any{"g": notDef})
		var te *TranslateError
		if !errors.As(err, &te) || te.Message != "Expected a function definition" {
			t.Errorf("error = %v", err)
		}
	})
}

func TestLoadNamedFunction(t *testing.T) {
	src := "def a() -> int:\n    return 1\n\ndef b() -> int:\n    return 2\n"
	if _, err := Translate(&Function{Name: "c", Source: src}); err == nil || !strings.Contains(err.Error(), `function "c" not found`) {
		t.Errorf("Translate() error = %v", err)
	}
	if _, err := Translate(nil); err == nil {
		t.Error("Translate(nil) expected error")
	}
}

func TestIsKernel(t *testing.T) {
	src := "@okl.kernel\ndef k(a: List[int]) -> None:\n    pass\n\ndef helper() -> None:\n    pass\n"
	fns, err := FunctionsFromSource(src, map[string]any{"N": int32(4)})
	if err != nil {
		t.Fatalf("FunctionsFromSource() error = %v", err)
	}
	if len(fns) != 2 {
		t.Fatalf("got %d functions, want 2", len(fns))
	}
	if !fns[0].IsKernel() || fns[1].IsKernel() {
		t.Errorf("IsKernel() = %v, %v; want true, false", fns[0].IsKernel(), fns[1].IsKernel())
	}
	if _, ok := fns[1].Globals["N"]; !ok {
		t.Error("module bindings should include the given globals")
	}
	if fns[1].Globals["k"] != fns[0] {
		t.Error("module bindings should include sibling defs")
	}
}

func TestTranslationString(t *testing.T) {
	tr := &Translation{Body: "root"}
	if got := tr.String(); got != "root" {
		t.Errorf("String() = %q, want root", got)
	}
	tr.Helpers = []*Translation{
		{Signature: "int a();", Body: "int a() {}"},
		{Signature: "int b();", Body: "int b() {}"},
	}
	want := "int a();\n\nint b();\n\nint a() {}\n\nint b() {}\n\nroot"
	if got := tr.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
