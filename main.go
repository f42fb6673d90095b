package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/syncthing/notify"

	"oklify/pkg/bindings"
	"oklify/pkg/compiler"
	"oklify/pkg/kernel"
	"oklify/pkg/utils"
)

// watchDelay batches file events: a run starts once no new event has
// arrived for this long.
const watchDelay = 100 * time.Millisecond

// kvFlag collects repeated NAME=VALUE flags.
type kvFlag map[string]string

func (f kvFlag) String() string {
	var parts []string
	for k, v := range f {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (f kvFlag) Set(s string) error { return kernel.Set(f, s) }

type config struct {
	inPath      string
	funcName    string
	globalsPath string
	outPath     string
	buildCmd    string
	cacheDir    string
	jobs        int
	watch       bool
	opts        kernel.Options
}

type app struct {
	cfg    config
	cache  *kernel.Cache // nil unless kernels are built
	stdout io.Writer
	stderr io.Writer
}

func main() {
	cfg := config{opts: kernel.Options{Defines: map[string]string{}, Flags: map[string]string{}}}
	flag.StringVar(&cfg.inPath, "in", "", "input source file path")
	flag.StringVar(&cfg.funcName, "func", "", "translate only this function (default: every kernel)")
	flag.StringVar(&cfg.globalsPath, "globals", "", "HuJSON file binding non-local names")
	flag.StringVar(&cfg.outPath, "out", "", "output kernel file path (default: stdout)")
	flag.StringVar(&cfg.buildCmd, "build", "", "command that builds kernel source read from stdin")
	flag.StringVar(&cfg.cacheDir, "cache", "", "directory persisting built kernels between runs")
	flag.IntVar(&cfg.jobs, "j", 0, "functions translated in parallel (default: GOMAXPROCS)")
	flag.BoolVar(&cfg.watch, "watch", false, "translate again whenever the input changes")
	flag.Var(kvFlag(cfg.opts.Defines), "D", "define NAME=VALUE for the kernel build (repeatable)")
	flag.Var(kvFlag(cfg.opts.Flags), "flag", "build property KEY=VALUE (repeatable)")
	flag.Parse()

	if cfg.inPath == "" && flag.NArg() > 0 {
		cfg.inPath = flag.Arg(0)
	}
	if cfg.inPath == "" {
		fmt.Fprintln(os.Stderr, "nothing to do: provide -in <file.py>")
		flag.Usage()
		os.Exit(2)
	}

	a := &app{cfg: cfg, stdout: os.Stdout, stderr: os.Stderr}
	if cfg.buildCmd != "" {
		cache, err := newBuildCache(cfg.buildCmd)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			flag.Usage()
			os.Exit(2)
		}
		if cfg.cacheDir != "" {
			if err := cache.LoadFrom(cfg.cacheDir); err != nil {
				fmt.Fprintf(os.Stderr, "failed to load kernel cache %q: %v\n", cfg.cacheDir, err)
				os.Exit(1)
			}
		}
		a.cache = cache
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	if cfg.watch {
		err = a.watch(ctx)
	} else {
		err = a.run(ctx)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newBuildCache wraps the -build command line in a kernel cache.
func newBuildCache(buildCmd string) (*kernel.Cache, error) {
	fields := strings.Fields(buildCmd)
	if len(fields) == 0 {
		return nil, errors.New("-build needs a command")
	}
	return kernel.NewCache(&kernel.CommandBuilder{Path: fields[0], Args: fields[1:]}, 0), nil
}

// selectFunctions picks what to translate: the named def, or every
// @okl.kernel def, or every def when none is a kernel.
func selectFunctions(src, name string, globals map[string]any) ([]*compiler.Function, error) {
	fns, err := compiler.FunctionsFromSource(src, globals)
	if err != nil {
		return nil, err
	}
	if len(fns) == 0 {
		return nil, errors.New("no functions found")
	}

	if name != "" {
		for _, fn := range fns {
			if fn.Name == name {
				return []*compiler.Function{fn}, nil
			}
		}
		return nil, fmt.Errorf("function %q not found", name)
	}

	var kernels []*compiler.Function
	for _, fn := range fns {
		if fn.IsKernel() {
			kernels = append(kernels, fn)
		}
	}
	if len(kernels) > 0 {
		return kernels, nil
	}
	return fns, nil
}

// run translates the input once, writes the kernel text and, when a build
// command is set, builds every translated function.
func (a *app) run(ctx context.Context) error {
	src, err := os.ReadFile(a.cfg.inPath)
	if err != nil {
		return fmt.Errorf("failed to read input file %q: %w", a.cfg.inPath, err)
	}

	var globals map[string]any
	if a.cfg.globalsPath != "" {
		if globals, err = bindings.Load(a.cfg.globalsPath); err != nil {
			return err
		}
	}

	fns, err := selectFunctions(string(src), a.cfg.funcName, globals)
	if err != nil {
		return fmt.Errorf("%s: %w", a.cfg.inPath, err)
	}

	results, err := compiler.TranslateAll(ctx, fns, a.cfg.jobs)
	if err != nil {
		return err
	}

	var texts []string
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(a.stderr, "%s: %s: %v\n", a.cfg.inPath, r.Name, r.Err)
			failed++
			continue
		}
		texts = append(texts, r.Text)

		if a.cache == nil {
			continue
		}
		h, err := a.cache.Build(ctx, r.Text, r.Name, a.cfg.opts)
		if err != nil {
			fmt.Fprintf(a.stderr, "build of %s failed: %v\n", r.Name, err)
			failed++
			continue
		}
		fmt.Fprintf(a.stderr, "built %s (%d bytes)\n", r.Name, len(h.Output))
	}

	if len(texts) > 0 {
		out := strings.Join(texts, "\n\n") + "\n"
		if a.cfg.outPath == "" {
			if _, err := io.WriteString(a.stdout, out); err != nil {
				return fmt.Errorf("failed to write kernel text: %w", err)
			}
		} else {
			if err := utils.WriteFile(a.cfg.outPath, []byte(out)); err != nil {
				return fmt.Errorf("failed to write kernel file %q: %w", a.cfg.outPath, err)
			}
			fmt.Fprintf(a.stdout, "translated %d functions -> %s\n", len(texts), a.cfg.outPath)
		}
	}

	if a.cache != nil && a.cfg.cacheDir != "" {
		if err := a.cache.PersistTo(a.cfg.cacheDir); err != nil {
			return fmt.Errorf("failed to persist kernel cache %q: %w", a.cfg.cacheDir, err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d functions failed", failed, len(results))
	}
	return nil
}

// watch runs once, then again after every change to the input or the
// bindings file, until ctx is cancelled.
func (a *app) watch(ctx context.Context) error {
	watched := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, p := range []string{a.cfg.inPath, a.cfg.globalsPath} {
		if p == "" {
			continue
		}
		full, dir, err := utils.GetPathInfo(p)
		if err != nil {
			return err
		}
		watched[full] = true
		dirs[dir] = true
	}

	// Buffered so no event is dropped while a run is in progress.
	c := make(chan notify.EventInfo, 1)
	for dir := range dirs {
		if err := notify.Watch(dir, c, notify.Write|notify.Create|notify.Rename); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	defer notify.Stop(c)

	fmt.Fprintf(a.stdout, "Watching %s for changes...\n", a.cfg.inPath)
	if err := a.run(ctx); err != nil {
		fmt.Fprintln(a.stderr, err)
	}

	var timer *time.Timer
	timeout := func() <-chan time.Time {
		if timer != nil {
			return timer.C
		}
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-c:
			if !watched[ev.Path()] {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(watchDelay)
		case <-timeout():
			timer = nil
			if err := a.run(ctx); err != nil {
				fmt.Fprintln(a.stderr, err)
			}
		}
	}
}
