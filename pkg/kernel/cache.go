package kernel

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxBytes bounds the handle bytes a Cache keeps (16MB).
const DefaultMaxBytes = 16 << 20

// validKey matches a hex blake2b-256 digest, which is also the on-disk name.
var validKey = regexp.MustCompile(`^[0-9a-f]{64}$`)

type cacheEntry struct {
	handle *Handle
	size   int
	seq    uint64
}

// Cache memoizes built kernels by a digest of their source, entry and
// options. When the quota is exceeded the oldest entries are evicted.
type Cache struct {
	mu        sync.RWMutex
	builder   Builder
	maxBytes  int
	entries   map[string]*cacheEntry
	dirty     map[string]bool
	usedBytes int
	seq       uint64

	group singleflight.Group
}

// NewCache wraps b. maxBytes <= 0 selects DefaultMaxBytes.
func NewCache(b Builder, maxBytes int) *Cache {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Cache{
		builder:  b,
		maxBytes: maxBytes,
		entries:  make(map[string]*cacheEntry),
		dirty:    make(map[string]bool),
	}
}

// Key is the cache key of one build.
func Key(source, entry string, opts Options) string {
	h, _ := blake2b.New256(nil)
	io.WriteString(h, source)
	h.Write([]byte{0})
	io.WriteString(h, entry)
	h.Write([]byte{0})
	io.WriteString(h, opts.Key())
	return hex.EncodeToString(h.Sum(nil))
}

func handleSize(h *Handle) int { return len(h.Entry) + len(h.Output) }

// Build returns the cached handle for these inputs, building it on a miss.
// Concurrent misses for the same key share one build. A handle larger than
// the whole quota is returned but not kept.
func (c *Cache) Build(ctx context.Context, source, entry string, opts Options) (*Handle, error) {
	if c.builder == nil {
		return nil, ErrNoBuilder
	}
	key := Key(source, entry, opts)
	if h, ok := c.Get(key); ok {
		return h, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if h, ok := c.Get(key); ok {
			return h, nil
		}
		h, err := c.builder.Build(ctx, source, entry, opts)
		if err != nil {
			return nil, err
		}
		if h == nil {
			return nil, ErrInvalidHandle
		}
		h.Key = key
		if err := c.Put(h); err != nil && !errors.Is(err, ErrEntryTooLarge) {
			return nil, err
		}
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle), nil
}

// Get looks up a handle by key.
func (c *Cache) Get(key string) (*Handle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return e.handle, true
}

// Put stores h under h.Key, replacing any previous entry.
func (c *Cache) Put(h *Handle) error {
	if h == nil || !validKey.MatchString(h.Key) {
		return ErrInvalidHandle
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.putLocked(h)
}

func (c *Cache) putLocked(h *Handle) error {
	size := handleSize(h)
	if size > c.maxBytes {
		return ErrEntryTooLarge
	}
	if old, ok := c.entries[h.Key]; ok {
		c.usedBytes -= old.size
		delete(c.entries, h.Key)
	}
	for c.usedBytes+size > c.maxBytes {
		c.evictOldest()
	}

	c.seq++
	c.entries[h.Key] = &cacheEntry{handle: h, size: size, seq: c.seq}
	c.usedBytes += size
	c.dirty[h.Key] = true
	return nil
}

func (c *Cache) evictOldest() {
	var oldest string
	var seq uint64
	for key, e := range c.entries {
		if oldest == "" || e.seq < seq {
			oldest, seq = key, e.seq
		}
	}
	if oldest == "" {
		return
	}
	c.usedBytes -= c.entries[oldest].size
	delete(c.entries, oldest)
	c.dirty[oldest] = true
}

// Len returns the number of cached handles.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// UsedBytes returns the bytes counted against the quota.
func (c *Cache) UsedBytes() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.usedBytes
}

// Keys returns the cached keys, sorted.
func (c *Cache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// encodeHandle stores the entry name on the first line, the output after.
func encodeHandle(h *Handle) []byte {
	data := make([]byte, 0, handleSize(h)+1)
	data = append(data, h.Entry...)
	data = append(data, '\n')
	return append(data, h.Output...)
}

func decodeHandle(key string, data []byte) (*Handle, bool) {
	entry, output, found := bytes.Cut(data, []byte{'\n'})
	if !found || len(entry) == 0 {
		return nil, false
	}
	return &Handle{Key: key, Entry: string(entry), Output: output}, true
}

// LoadFrom fills the cache from a directory written by PersistTo.
// Unrecognized files are skipped and a missing directory is not an error.
func (c *Cache) LoadFrom(path string) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !validKey.MatchString(name) {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(path, name))
		if err != nil {
			continue
		}
		h, ok := decodeHandle(name, raw)
		if !ok {
			continue
		}
		if err := c.putLocked(h); err == nil {
			delete(c.dirty, name)
		}
	}
	return nil
}

// PersistTo writes new handles to path and removes evicted ones.
// Returns the first I/O error encountered.
func (c *Cache) PersistTo(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return err
	}

	c.mu.Lock()
	snapshot := make(map[string][]byte)
	var removed []string
	for key := range c.dirty {
		if e, ok := c.entries[key]; ok {
			snapshot[key] = encodeHandle(e.handle)
		} else {
			removed = append(removed, key)
		}
		delete(c.dirty, key)
	}
	c.mu.Unlock()

	var firstErr error
	for _, key := range removed {
		err := os.Remove(filepath.Join(path, key))
		if err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	for key, data := range snapshot {
		if err := os.WriteFile(filepath.Join(path, key), data, 0o644); err != nil {
			c.mu.Lock()
			c.dirty[key] = true
			c.mu.Unlock()
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
