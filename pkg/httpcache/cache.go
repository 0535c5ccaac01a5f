// Package httpcache keeps successful GET responses in an otter cache that is
// persisted between runs, so repeated image searches for the same city do not
// spend search quota.
package httpcache

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/maypok86/otter/v2"
)

const fileName = "responses.gob"

// Entry is a cached response body.
type Entry struct {
	ExpiresAt   time.Time
	ContentType string
	Data        []byte
}

// OtterCache is a size-bounded response cache with write expiry.
type OtterCache struct {
	cache  *otter.Cache[string, Entry]
	logger *slog.Logger
	dir    string
	ttl    time.Duration
	mu     sync.Mutex
}

// NewOtterCache returns a cache persisted under dir. An empty dir keeps the
// cache in memory only.
func NewOtterCache(dir string, ttl time.Duration, logger *slog.Logger) (*OtterCache, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	c := &OtterCache{
		cache: otter.Must(&otter.Options[string, Entry]{
			MaximumSize:      10_000,
			InitialCapacity:  256,
			ExpiryCalculator: otter.ExpiryWriting[string, Entry](ttl),
		}),
		dir:    dir,
		ttl:    ttl,
		logger: logger,
	}

	if dir != "" {
		if err := c.load(); err != nil {
			logger.Warn("failed to load response cache", "error", err)
		}
	}
	logger.Debug("response cache ready", "dir", dir, "entries", c.cache.EstimatedSize())
	return c, nil
}

func key(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached response for url.
func (c *OtterCache) Get(url string) (Entry, bool) {
	k := key(url)
	e, ok := c.cache.GetIfPresent(k)
	if !ok {
		return Entry{}, false
	}
	if time.Now().After(e.ExpiresAt) {
		c.cache.Invalidate(k)
		return Entry{}, false
	}
	return e, true
}

// Set stores a response body for url.
func (c *OtterCache) Set(url, contentType string, data []byte) {
	c.cache.Set(key(url), Entry{
		ExpiresAt:   time.Now().Add(c.ttl),
		ContentType: contentType,
		Data:        data,
	})
}

// Len is the approximate number of cached responses.
func (c *OtterCache) Len() int { return c.cache.EstimatedSize() }

// Close writes unexpired entries to disk.
func (c *OtterCache) Close() error {
	if c.dir == "" {
		return nil
	}
	return c.save()
}

func (c *OtterCache) load() error {
	path := filepath.Join(c.dir, fileName)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening cache file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			c.logger.Debug("failed to close cache file", "error", err)
		}
	}()

	var entries map[string]Entry
	if err := gob.NewDecoder(f).Decode(&entries); err != nil {
		return fmt.Errorf("decoding cache file: %w", err)
	}
	now := time.Now()
	for k, e := range entries {
		if now.Before(e.ExpiresAt) {
			c.cache.Set(k, e)
		}
	}
	return nil
}

func (c *OtterCache) save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := filepath.Join(c.dir, fileName)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	defer func() {
		if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Debug("failed to remove temp cache file", "error", err)
		}
	}()

	entries := make(map[string]Entry)
	now := time.Now()
	for k, e := range c.cache.All() {
		if now.Before(e.ExpiresAt) {
			entries[k] = e
		}
	}

	if err := gob.NewEncoder(f).Encode(entries); err != nil {
		_ = f.Close() //nolint:errcheck // already returning the encode error
		return fmt.Errorf("encoding cache file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing cache file: %w", err)
	}
	c.logger.Debug("response cache saved", "entries", len(entries), "path", path)
	return nil
}
