package embedder

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/esglens/esglens/pkg/errors"
)

// HashText returns the cache key for a cleaned text unit: the hex SHA-256 of
// its bytes. Identical cleaned text always maps to the same key, which is
// the only correctness requirement the cache carries.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// VectorCache maps content hashes to embedding vectors. Implementations must
// be safe for concurrent use. The cache is a performance optimization, never
// a source of truth: a miss is always recoverable by re-encoding.
type VectorCache interface {
	Get(key string) ([]float32, bool)
	Put(key string, vec []float32)
	Len() int

	// Close releases resources and, where supported, persists the cache.
	Close() error
}

// MemoryCache is an in-process VectorCache with optional JSON file
// persistence between runs.
type MemoryCache struct {
	mu   sync.RWMutex
	vecs map[string][]float32
	path string
}

// NewMemoryCache constructs an empty in-memory cache. If path is non-empty,
// a previously persisted snapshot is loaded from it (a missing file is not
// an error) and Close writes the cache back.
func NewMemoryCache(path string) (*MemoryCache, error) {
	c := &MemoryCache{vecs: make(map[string][]float32), path: path}
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "read vector cache file")
	}
	if err := json.Unmarshal(data, &c.vecs); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "decode vector cache file").
			WithDetail("path=" + path)
	}
	return c, nil
}

// Get returns the vector for key. The returned slice is shared; callers must
// not mutate it.
func (c *MemoryCache) Get(key string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vec, ok := c.vecs[key]
	return vec, ok
}

// Put stores the vector for key, overwriting any previous entry.
func (c *MemoryCache) Put(key string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vecs[key] = vec
}

// Len returns the number of cached vectors.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.vecs)
}

// Close persists the cache when a path was configured. The snapshot is
// written to a temporary file and renamed so a crash never leaves a
// truncated cache behind.
func (c *MemoryCache) Close() error {
	if c.path == "" {
		return nil
	}

	c.mu.RLock()
	data, err := json.Marshal(c.vecs)
	c.mu.RUnlock()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "encode vector cache")
	}

	tmp := c.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "create vector cache directory")
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "write vector cache file")
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "replace vector cache file")
	}
	return nil
}
