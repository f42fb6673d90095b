// Package compiler translates type-annotated Python-style function
// definitions into OKL kernel source.
//
// Pipeline: source → Lex → Parse → closure inspection → translate → kernel text
//
// Helper functions reached through a function's bindings are translated
// into the same output, forward declared ahead of the root kernel.
package compiler
