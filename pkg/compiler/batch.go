package compiler

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// BatchResult is the outcome of one function in a batch.
type BatchResult struct {
	Name string
	Text string
	Err  error
}

// TranslateAll translates fns concurrently, at most limit at a time
// (GOMAXPROCS when limit <= 0). Results are in input order and each holds
// its own error; the returned error is only set when ctx is cancelled.
func TranslateAll(ctx context.Context, fns []*Function, limit int) ([]BatchResult, error) {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	results := make([]BatchResult, len(fns))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, fn := range fns {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i].Name = functionName(fn)
			tr, err := Translate(fn)
			if err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Text = tr.String()
			return nil
		})
	}
	return results, g.Wait()
}

func functionName(fn *Function) string {
	if fn == nil {
		return ""
	}
	if fn.Name != "" {
		return fn.Name
	}
	if def, ok := fn.Tree.(*FunctionDef); ok {
		return def.Name
	}
	return ""
}
