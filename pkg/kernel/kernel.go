// Package kernel hands translated kernel source to a native build step.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"oklify/pkg/compiler"
)

var (
	ErrNoBuilder      = errors.New("no kernel builder configured")
	ErrEntryTooLarge  = errors.New("kernel exceeds cache quota")
	ErrMissingEntry   = errors.New("kernel has no entry function")
	ErrInvalidHandle  = errors.New("invalid cached kernel")
	ErrInvalidOptions = errors.New("invalid build option")
)

// Options are the compile-time settings of one build.
type Options struct {
	Defines map[string]string // -D NAME=VALUE macros
	Flags   map[string]string // backend properties
}

// Key renders the options in a fixed order, for hashing.
func (o Options) Key() string {
	var b strings.Builder
	for _, k := range sortedKeys(o.Defines) {
		fmt.Fprintf(&b, "D:%s=%s\n", k, o.Defines[k])
	}
	for _, k := range sortedKeys(o.Flags) {
		fmt.Fprintf(&b, "F:%s=%s\n", k, o.Flags[k])
	}
	return b.String()
}

// Set parses NAME=VALUE (or a bare NAME, meaning NAME=1) into m.
func Set(m map[string]string, kv string) error {
	name, value, found := strings.Cut(kv, "=")
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: %q", ErrInvalidOptions, kv)
	}
	if !found {
		value = "1"
	}
	m[name] = value
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Handle is an opaque built kernel.
type Handle struct {
	Key    string // hex digest of the build inputs; set by Cache
	Entry  string
	Output []byte
}

// Builder compiles kernel source with the given entry point.
type Builder interface {
	Build(ctx context.Context, source, entry string, opts Options) (*Handle, error)
}

// BuilderFunc adapts a function to the Builder interface.
type BuilderFunc func(ctx context.Context, source, entry string, opts Options) (*Handle, error)

func (f BuilderFunc) Build(ctx context.Context, source, entry string, opts Options) (*Handle, error) {
	return f(ctx, source, entry, opts)
}

// Build translates fn and builds the result with fn's def as the entry.
func Build(ctx context.Context, b Builder, fn *compiler.Function, opts Options) (*Handle, error) {
	if b == nil {
		return nil, ErrNoBuilder
	}
	tr, err := compiler.Translate(fn)
	if err != nil {
		return nil, err
	}
	if tr.Name == "" {
		return nil, ErrMissingEntry
	}
	return b.Build(ctx, tr.String(), tr.Name, opts)
}
