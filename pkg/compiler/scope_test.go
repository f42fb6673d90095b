package compiler

import "testing"

func TestScopeStack(t *testing.T) {
	var s scopeStack
	if s.defined("a") {
		t.Fatal("empty stack defines a")
	}

	s.push("a", "b")
	s.push("i")
	s.declare("c")
	for _, name := range []string{"a", "b", "i", "c"} {
		if !s.defined(name) {
			t.Errorf("%s should be defined", name)
		}
	}
	if s.depth() != 2 {
		t.Errorf("depth() = %d, want 2", s.depth())
	}

	s.pop()
	if s.defined("i") || s.defined("c") {
		t.Error("inner names should be gone after pop")
	}
	if !s.defined("a") {
		t.Error("outer names should survive pop")
	}

	s.pop()
	s.pop()
	if s.depth() != 0 {
		t.Errorf("depth() = %d, want 0", s.depth())
	}
	s.declare("x")
	if !s.defined("x") || s.depth() != 1 {
		t.Error("declare on an empty stack should open a scope")
	}
}

func TestScopeLoopIndexIsLocalToLoop(t *testing.T) {
	src := "def f(a: List[int]) -> None:\n    for i in range(4):\n        a[i] = i\n    a[0] = i\n"
	te := translateError(t, src, nil)
	if te.Message != "Cannot handle undeclared variable i" {
		t.Errorf("message = %q", te.Message)
	}
	if te.Line != 4 {
		t.Errorf("line = %d, want 4", te.Line)
	}
}
