// Package cache keeps recently fetched search pages so that re-sampled
// queries do not spend rate-limit budget on pages seen moments ago.
package cache

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultTTL is how long a cached page stays valid.
const DefaultTTL = 30 * time.Minute

// Cache wraps go-cache with GOB persistence.
type Cache struct {
	inner *gocache.Cache
	ttl   time.Duration
}

// New creates an empty cache with DefaultTTL.
func New() *Cache {
	return NewWithTTL(DefaultTTL)
}

// NewWithTTL creates an empty cache whose entries expire after ttl.
func NewWithTTL(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{inner: gocache.New(ttl, 2*ttl), ttl: ttl}
}

// LoadFromFile loads a cache from a GOB file. A missing file yields an empty
// cache; so does an undecodable one, in which case the decode error is
// returned alongside the usable cache.
func LoadFromFile(filename string, ttl time.Duration) (*Cache, error) {
	fresh := NewWithTTL(ttl)
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return fresh, nil
		}
		return nil, err
	}
	items := map[string]gocache.Item{}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&items); err != nil {
		return fresh, fmt.Errorf("decoding cache %s: %w", filename, err)
	}
	return &Cache{inner: gocache.NewFrom(fresh.ttl, 2*fresh.ttl, items), ttl: fresh.ttl}, nil
}

// SaveToFile writes the unexpired entries to a GOB file.
func (c *Cache) SaveToFile(filename string) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(c.inner.Items()); err != nil {
		return err
	}
	return os.WriteFile(filename, buf.Bytes(), 0600)
}

// Get retrieves a value by key.
func (c *Cache) Get(key string) (any, bool) {
	return c.inner.Get(key)
}

// Set stores a value with the cache TTL.
func (c *Cache) Set(key string, val any) {
	c.inner.Set(key, val, gocache.DefaultExpiration)
}

// Len returns the number of entries, including expired ones not yet evicted.
func (c *Cache) Len() int {
	return c.inner.ItemCount()
}

// Flush clears all cached items.
func (c *Cache) Flush() {
	c.inner.Flush()
}
