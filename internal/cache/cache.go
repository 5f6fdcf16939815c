// Package cache stores raw external lookup results keyed by query
// fingerprint, with wall-clock expiry checked lazily on read. An optional
// JSON file keeps entries across restarts so a new process does not re-spend
// the lookup service's rate budget.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tagscout/internal/logger"
	"tagscout/internal/suggest"
)

// entry is one cached result with its absolute expiry time.
type entry struct {
	Result    suggest.Result `json:"result"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Cache implements suggest.ResultCache. Safe for concurrent use; two
// requests racing to populate the same fingerprint converge last-writer-wins.
type Cache struct {
	ttl  time.Duration
	path string // "" disables persistence
	log  *logger.Logger

	mu      sync.RWMutex
	entries map[string]entry

	now func() time.Time // test seam
}

// New creates a Cache with the given TTL. If path is non-empty, previously
// persisted entries are loaded (silently starting empty on any load error)
// and every Put is written back to disk.
func New(ttl time.Duration, path string, log *logger.Logger) *Cache {
	if log == nil {
		log = logger.New(false)
	}
	c := &Cache{
		ttl:     ttl,
		path:    path,
		log:     log,
		entries: make(map[string]entry),
		now:     time.Now,
	}
	if path != "" {
		if err := c.load(); err != nil {
			log.Warn("failed to load lookup cache from %s: %v", path, err)
		}
	}
	return c
}

// Get returns the cached result for a fingerprint. Expired entries are
// treated as misses and dropped.
func (c *Cache) Get(fingerprint string) (suggest.Result, bool) {
	c.mu.RLock()
	e, ok := c.entries[fingerprint]
	c.mu.RUnlock()
	if !ok {
		return suggest.Result{}, false
	}

	if !c.now().Before(e.ExpiresAt) {
		c.mu.Lock()
		// Re-check under the write lock: a racing Put may have refreshed it.
		if current, still := c.entries[fingerprint]; still && !c.now().Before(current.ExpiresAt) {
			delete(c.entries, fingerprint)
		}
		c.mu.Unlock()
		return suggest.Result{}, false
	}
	return e.Result, true
}

// Put stores a result under the fingerprint with a fresh TTL, overwriting any
// previous entry.
func (c *Cache) Put(fingerprint string, result suggest.Result) {
	if fingerprint == "" {
		return
	}

	c.mu.Lock()
	c.entries[fingerprint] = entry{Result: result, ExpiresAt: c.now().Add(c.ttl)}
	var snapshot map[string]entry
	if c.path != "" {
		snapshot = make(map[string]entry, len(c.entries))
		for k, v := range c.entries {
			snapshot[k] = v
		}
	}
	c.mu.Unlock()

	if snapshot != nil {
		if err := c.save(snapshot); err != nil {
			c.log.Warn("failed to persist lookup cache: %v", err)
		}
	}
}

// Len reports the number of entries, including any not yet lazily expired.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	loaded := make(map[string]entry)
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parse cache file: %w", err)
	}

	now := c.now()
	c.mu.Lock()
	for fp, e := range loaded {
		if now.Before(e.ExpiresAt) {
			c.entries[fp] = e
		}
	}
	c.mu.Unlock()
	return nil
}

func (c *Cache) save(snapshot map[string]entry) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// Write-and-rename keeps a crashed write from truncating the cache.
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}
