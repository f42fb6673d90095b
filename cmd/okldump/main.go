// Command okldump prints each stage of a translation: tokens, tree,
// closure classification and the kernel text.
package main

import (
	"flag"
	"fmt"
	"os"

	"oklify/pkg/bindings"
	"oklify/pkg/compiler"
)

const testSource = `@okl.kernel
def addVectors(entries: int,
               a: List[float],
               b: List[float],
               ab: List[float]) -> None:
    for i in okl.range(entries).tile(16):
        ab[i] = a[i] + b[i]
`

func main() {
	funcName := flag.String("func", "", "function to dump (default: the first def)")
	globalsPath := flag.String("globals", "", "HuJSON bindings file")
	flag.Parse()

	src := testSource
	if flag.NArg() > 0 {
		data, err := os.ReadFile(flag.Arg(0))
		if err != nil {
			fmt.Fprintln(os.Stderr, "read error:", err)
			os.Exit(1)
		}
		src = string(data)
	}

	var globals map[string]any
	if *globalsPath != "" {
		var err error
		if globals, err = bindings.Load(*globalsPath); err != nil {
			fmt.Fprintln(os.Stderr, "bindings error:", err)
			os.Exit(1)
		}
	}

	// Parse (dedents the source)
	mod, src, err := compiler.ParseSource(src)
	if err != nil {
		fmt.Fprint(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("Source:\n%s\n", src)

	// Lex
	tokens, err := compiler.Lex(src)
	if err != nil {
		fmt.Fprint(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("Tokens (%d)\n", len(tokens))
	for _, tok := range tokens {
		fmt.Println(" ", tok)
	}
	fmt.Println()

	fmt.Println("AST")
	for _, s := range mod.Body {
		fmt.Println(" ", s)
	}
	fmt.Println()

	fn := &compiler.Function{Name: *funcName, Source: src, Globals: globals}

	closure, err := compiler.DescribeClosure(fn)
	if err != nil {
		fmt.Fprintln(os.Stderr, "closure error:", err)
		os.Exit(1)
	}
	fmt.Println("Closure")
	fmt.Print(closure)
	fmt.Println()

	tr, err := compiler.Translate(fn)
	if err != nil {
		fmt.Fprint(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println("Kernel")
	fmt.Println(tr)
}
