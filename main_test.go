package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"oklify/pkg/kernel"
)

const kernelSource = `import occa.okl as okl

def twice(x: float) -> float:
    return 2 * x

@okl.kernel
def scale(n: int, a: List[float]) -> None:
    for i in range(n):
        a[i] = twice(a[i])

@okl.kernel
def fill(a: List[int]) -> None:
    for i in range(n):
        a[i] = SIZE
`

func writeTemp(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSelectFunctions(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		funcName string
		expected []string
		errMsg   string
	}{
		{"Kernels Only", kernelSource, "", []string{"scale", "fill"}, ""},
		{"Named", kernelSource, "twice", []string{"twice"}, ""},
		{"Missing", kernelSource, "nope", nil, `function "nope" not found`},
		{"No Kernels", "def a() -> None:\n    pass\n\ndef b() -> None:\n    pass\n", "", []string{"a", "b"}, ""},
		{"Empty", "x: int = 1\n", "", nil, "no functions found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fns, err := selectFunctions(tt.src, tt.funcName, nil)
			if tt.errMsg != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
					t.Fatalf("error = %v, want %q", err, tt.errMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("selectFunctions() error = %v", err)
			}
			var names []string
			for _, fn := range fns {
				names = append(names, fn.Name)
			}
			if strings.Join(names, ",") != strings.Join(tt.expected, ",") {
				t.Errorf("got %v, want %v", names, tt.expected)
			}
		})
	}
}

func TestKVFlag(t *testing.T) {
	f := kvFlag{}
	if err := f.Set("N=4"); err != nil {
		t.Fatal(err)
	}
	if err := f.Set("=4"); err == nil {
		t.Error("expected error for an empty name")
	}
	if f.String() != "N=4" {
		t.Errorf("String() = %q", f.String())
	}
}

func TestRun(t *testing.T) {
	in := writeTemp(t, "kernels.py", kernelSource)
	globals := writeTemp(t, "globals.hujson", `{
	"n":    {"type": "int32", "value": 8},
	"SIZE": {"type": "int64", "value": 8}, // rendered as its type
}`)
	out := filepath.Join(t.TempDir(), "out", "kernels.okl")

	var built []string
	builder := kernel.BuilderFunc(func(_ context.Context, source, entry string, opts kernel.Options) (*kernel.Handle, error) {
		built = append(built, entry+":"+opts.Defines["N"])
		return &kernel.Handle{Entry: entry, Output: []byte(source)}, nil
	})

	var stdout, stderr bytes.Buffer
	a := &app{
		cfg: config{
			inPath:      in,
			globalsPath: globals,
			outPath:     out,
			jobs:        1,
			opts:        kernel.Options{Defines: map[string]string{"N": "8"}},
		},
		cache:  kernel.NewCache(builder, 0),
		stdout: &stdout,
		stderr: &stderr,
	}
	if err := a.run(context.Background()); err != nil {
		t.Fatalf("run() error = %v\n%s", err, stderr.String())
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		"float twice(float x);",
		"@kernel void scale(int n,\n                   float *a) {",
		"@kernel void fill(int *a) {",
		"    a[i] = long;",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if strings.Join(built, ",") != "scale:8,fill:8" {
		t.Errorf("built = %v", built)
	}
	if !strings.Contains(stdout.String(), "translated 2 functions -> "+out) {
		t.Errorf("stdout = %q", stdout.String())
	}

	// A second run is served from the cache.
	built = nil
	if err := a.run(context.Background()); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if len(built) != 0 {
		t.Errorf("rebuilt %v, want cache hits", built)
	}
}

func TestRunReportsFailures(t *testing.T) {
	in := writeTemp(t, "bad.py", "@okl.kernel\ndef k(a) -> None:\n    pass\n\n@okl.kernel\ndef ok(a: int) -> None:\n    pass\n")

	var stdout, stderr bytes.Buffer
	a := &app{cfg: config{inPath: in}, stdout: &stdout, stderr: &stderr}
	err := a.run(context.Background())
	if err == nil || err.Error() != "1 of 2 functions failed" {
		t.Fatalf("run() error = %v", err)
	}
	if !strings.Contains(stderr.String(), "k: Error: Arguments must have a type annotation") {
		t.Errorf("stderr = %q", stderr.String())
	}
	if want := "@kernel void ok(int a) {}\n"; stdout.String() != want {
		t.Errorf("stdout = %q, want %q", stdout.String(), want)
	}
}

func TestRunBuildFailure(t *testing.T) {
	in := writeTemp(t, "k.py", "@okl.kernel\ndef k(a: int) -> None:\n    pass\n")
	failing := kernel.BuilderFunc(func(context.Context, string, string, kernel.Options) (*kernel.Handle, error) {
		return nil, errors.New("no device")
	})

	var stdout, stderr bytes.Buffer
	a := &app{cfg: config{inPath: in}, cache: kernel.NewCache(failing, 0), stdout: &stdout, stderr: &stderr}
	if err := a.run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(stderr.String(), "build of k failed: no device") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestRunMissingInput(t *testing.T) {
	a := &app{cfg: config{inPath: filepath.Join(t.TempDir(), "none.py")}, stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	if err := a.run(context.Background()); err == nil || !strings.Contains(err.Error(), "failed to read input file") {
		t.Errorf("run() error = %v", err)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestRunReportsStdoutFailure(t *testing.T) {
	in := writeTemp(t, "k.py", "@okl.kernel\ndef k(a: int) -> None:\n    pass\n")
	a := &app{cfg: config{inPath: in}, stdout: failingWriter{}, stderr: &bytes.Buffer{}}
	err := a.run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "closed pipe") {
		t.Errorf("run() error = %v, want the write failure", err)
	}
}

func TestNewBuildCache(t *testing.T) {
	for _, cmd := range []string{"", " ", "\t\n"} {
		if _, err := newBuildCache(cmd); err == nil {
			t.Errorf("newBuildCache(%q) expected error", cmd)
		}
	}
	c, err := newBuildCache("occa build --verbose")
	if err != nil || c == nil {
		t.Errorf("newBuildCache() = %v, %v", c, err)
	}
}

// waitForFile polls path until it contains want.
func waitForFile(t *testing.T, path, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if data, err := os.ReadFile(path); err == nil && strings.Contains(string(data), want) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	data, _ := os.ReadFile(path)
	t.Fatalf("%s never contained %q, last content:\n%s", path, want, data)
}

func TestWatch(t *testing.T) {
	in := writeTemp(t, "kernels.py", "@okl.kernel\ndef first(a: int) -> None:\n    pass\n")
	out := filepath.Join(t.TempDir(), "kernels.okl")

	var stdout, stderr bytes.Buffer
	a := &app{cfg: config{inPath: in, outPath: out}, stdout: &stdout, stderr: &stderr}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.watch(ctx) }()

	waitForFile(t, out, "@kernel void first(int a) {}")

	// Several quick writes settle into one run with the last content.
	for _, name := range []string{"second", "third"} {
		src := "@okl.kernel\ndef " + name + "(a: int) -> None:\n    pass\n"
		if err := os.WriteFile(in, []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	waitForFile(t, out, "@kernel void third(int a) {}")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watch() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch() did not stop after cancel")
	}
	if !strings.HasPrefix(stdout.String(), "Watching "+in+" for changes...\n") {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestWatchStopsWhenCancelled(t *testing.T) {
	in := writeTemp(t, "k.py", "@okl.kernel\ndef k(a: int) -> None:\n    pass\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stderr bytes.Buffer
	a := &app{cfg: config{inPath: in}, stdout: &bytes.Buffer{}, stderr: &stderr}
	if err := a.watch(ctx); err != nil {
		t.Errorf("watch() error = %v", err)
	}
	if !strings.Contains(stderr.String(), context.Canceled.Error()) {
		t.Errorf("stderr = %q, want the cancelled run reported", stderr.String())
	}
}

func TestWatchMissingDirectory(t *testing.T) {
	in := filepath.Join(t.TempDir(), "gone", "k.py")
	a := &app{cfg: config{inPath: in}, stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	if err := a.watch(context.Background()); err == nil || !strings.Contains(err.Error(), "failed to watch") {
		t.Errorf("watch() error = %v", err)
	}
}
