package kernel

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
)

// echoBuilder returns the source as output and counts its builds.
func echoBuilder(calls *atomic.Int32) Builder {
	return BuilderFunc(func(_ context.Context, source, entry string, _ Options) (*Handle, error) {
		calls.Add(1)
		return &Handle{Entry: entry, Output: []byte(source)}, nil
	})
}

func TestKey(t *testing.T) {
	a := Key("src", "k", Options{})
	if !validKey.MatchString(a) {
		t.Fatalf("Key() = %q, not a hex digest", a)
	}
	if a != Key("src", "k", Options{}) {
		t.Error("Key() is not deterministic")
	}
	variants := []string{
		Key("src2", "k", Options{}),
		Key("src", "k2", Options{}),
		Key("src", "k", Options{Defines: map[string]string{"N": "1"}}),
		Key("sr", "ck", Options{}),
	}
	for i, v := range variants {
		if v == a {
			t.Errorf("variant %d collides with the base key", i)
		}
	}
}

func TestCacheBuild(t *testing.T) {
	var calls atomic.Int32
	c := NewCache(echoBuilder(&calls), 0)
	ctx := context.Background()

	h1, err := c.Build(ctx, "void k() {}", "k", Options{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	h2, err := c.Build(ctx, "void k() {}", "k", Options{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if h1 != h2 || calls.Load() != 1 {
		t.Errorf("second build should hit the cache, calls = %d", calls.Load())
	}
	if h1.Key != Key("void k() {}", "k", Options{}) {
		t.Errorf("handle key = %q", h1.Key)
	}

	if _, err := c.Build(ctx, "void k() {}", "k", Options{Defines: map[string]string{"N": "2"}}); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if calls.Load() != 2 || c.Len() != 2 {
		t.Errorf("calls = %d, Len() = %d; want 2, 2", calls.Load(), c.Len())
	}
}

func TestCacheConcurrentBuilds(t *testing.T) {
	var calls atomic.Int32
	c := NewCache(echoBuilder(&calls), 0)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Build(context.Background(), "void k() {}", "k", Options{}); err != nil {
				t.Errorf("Build() error = %v", err)
			}
		}()
	}
	wg.Wait()
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestCacheQuota(t *testing.T) {
	var calls atomic.Int32
	// Each handle is 1 entry byte plus 9 output bytes.
	c := NewCache(echoBuilder(&calls), 20)
	ctx := context.Background()

	var keys []string
	for _, src := range []string{"aaaaaaaaa", "bbbbbbbbb", "ccccccccc"} {
		h, err := c.Build(ctx, src, "k", Options{})
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		keys = append(keys, h.Key)
	}

	if c.Len() != 2 || c.UsedBytes() != 20 {
		t.Errorf("Len() = %d, UsedBytes() = %d; want 2, 20", c.Len(), c.UsedBytes())
	}
	if _, ok := c.Get(keys[0]); ok {
		t.Error("oldest entry should have been evicted")
	}
	for _, k := range keys[1:] {
		if _, ok := c.Get(k); !ok {
			t.Errorf("entry %s should be cached", k)
		}
	}

	h, err := c.Build(ctx, string(make([]byte, 40)), "k", Options{})
	if err != nil || h == nil {
		t.Fatalf("oversized Build() = %v, %v; want a handle", h, err)
	}
	if _, ok := c.Get(h.Key); ok {
		t.Error("oversized handle should not be cached")
	}
	if err := c.Put(h); !errors.Is(err, ErrEntryTooLarge) {
		t.Errorf("Put() error = %v, want ErrEntryTooLarge", err)
	}
}

func TestCacheErrors(t *testing.T) {
	if _, err := NewCache(nil, 0).Build(context.Background(), "", "k", Options{}); !errors.Is(err, ErrNoBuilder) {
		t.Errorf("error = %v, want ErrNoBuilder", err)
	}
	if err := NewCache(nil, 0).Put(&Handle{Key: "../escape"}); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("error = %v, want ErrInvalidHandle", err)
	}

	empty := BuilderFunc(func(context.Context, string, string, Options) (*Handle, error) {
		return nil, nil
	})
	if _, err := NewCache(empty, 0).Build(context.Background(), "", "k", Options{}); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("nil handle error = %v, want ErrInvalidHandle", err)
	}

	failing := BuilderFunc(func(context.Context, string, string, Options) (*Handle, error) {
		return nil, errors.New("no compiler")
	})
	c := NewCache(failing, 0)
	if _, err := c.Build(context.Background(), "", "k", Options{}); err == nil {
		t.Error("expected the builder error")
	}
	if c.Len() != 0 {
		t.Error("failed builds should not be cached")
	}
}

func TestCachePersistence(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	var calls atomic.Int32
	c := NewCache(echoBuilder(&calls), 20)
	ctx := context.Background()

	first, _ := c.Build(ctx, "aaaaaaaaa", "k", Options{})
	if err := c.PersistTo(dir); err != nil {
		t.Fatalf("PersistTo() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, first.Key)); err != nil {
		t.Fatalf("persisted file missing: %v", err)
	}

	c.Build(ctx, "bbbbbbbbb", "k", Options{})
	c.Build(ctx, "ccccccccc", "k", Options{})
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := c.PersistTo(dir); err != nil {
		t.Fatalf("PersistTo() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, first.Key)); !os.IsNotExist(err) {
		t.Errorf("evicted entry should be removed from disk, stat err = %v", err)
	}

	loaded := NewCache(echoBuilder(&calls), 20)
	if err := loaded.LoadFrom(dir); err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if loaded.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", loaded.Len())
	}
	for _, key := range c.Keys() {
		want, _ := c.Get(key)
		got, ok := loaded.Get(key)
		if !ok || got.Entry != want.Entry || !bytes.Equal(got.Output, want.Output) {
			t.Errorf("loaded %s = %+v, want %+v", key, got, want)
		}
	}

	before := calls.Load()
	if _, err := loaded.Build(ctx, "ccccccccc", "k", Options{}); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != before {
		t.Error("loaded entries should satisfy builds")
	}

	if err := NewCache(nil, 0).LoadFrom(filepath.Join(dir, "missing")); err != nil {
		t.Errorf("LoadFrom(missing) error = %v", err)
	}
}
