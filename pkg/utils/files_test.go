package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOutputPath(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"kernels/add.py", "kernels/add.okl"},
		{"add", "add.okl"},
		{"a.b/add.py", "a.b/add.okl"},
		{"add.tar.py", "add.tar.okl"},
	}
	for _, tt := range tests {
		if got := OutputPath(tt.in, ".okl"); got != tt.expected {
			t.Errorf("OutputPath(%q) = %q, want %q", tt.in, got, tt.expected)
		}
	}
}

func TestGetPathInfo(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(dir, "add.py")
	if err := os.WriteFile(target, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link.py")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	full, parent, err := GetPathInfo(link)
	if err != nil {
		t.Fatalf("GetPathInfo() error = %v", err)
	}
	if full != target || parent != dir {
		t.Errorf("GetPathInfo() = %q, %q; want %q, %q", full, parent, target, dir)
	}

	missing := filepath.Join(dir, "missing.py")
	if full, _, err := GetPathInfo(missing); err != nil || full != missing {
		t.Errorf("GetPathInfo(missing) = %q, %v", full, err)
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build", "out.okl")
	if err := WriteFile(path, []byte("x")); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "x" {
		t.Errorf("ReadFile() = %q, %v", data, err)
	}
}
