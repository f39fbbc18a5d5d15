package results

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultCacheMaxSize = 256
	defaultCacheTTL     = 5 * time.Minute
)

// CacheConfig configures the call result cache.
type CacheConfig struct {
	// MaxSize is the maximum number of entries in the LRU cache.
	MaxSize int
	// TTL is how long a cached result remains valid.
	TTL time.Duration
	// ExcludeNames lists function names whose results should never be cached,
	// typically anything with side effects.
	ExcludeNames []string
}

// DefaultCacheConfig returns sensible defaults for result caching.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxSize: defaultCacheMaxSize,
		TTL:     defaultCacheTTL,
	}
}

type cacheEntry struct {
	value    any
	storedAt time.Time
}

// Cache remembers call results keyed by (function name + normalized
// arguments), so a repeated call with identical arguments can reuse the
// earlier result instead of being executed again.
type Cache struct {
	cache   *lru.Cache[string, cacheEntry]
	ttl     time.Duration
	exclude map[string]bool
}

// NewCache builds a cache from config, filling zero values with defaults.
func NewCache(config CacheConfig) (*Cache, error) {
	if config.MaxSize <= 0 {
		config.MaxSize = defaultCacheMaxSize
	}
	if config.TTL <= 0 {
		config.TTL = defaultCacheTTL
	}
	inner, err := lru.New[string, cacheEntry](config.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create result cache: %w", err)
	}
	exclude := make(map[string]bool, len(config.ExcludeNames))
	for _, name := range config.ExcludeNames {
		exclude[strings.TrimSpace(name)] = true
	}
	return &Cache{
		cache:   inner,
		ttl:     config.TTL,
		exclude: exclude,
	}, nil
}

// Get returns the cached result for a call with the given name and arguments.
func (c *Cache) Get(name string, args map[string]any) (any, bool) {
	if c.exclude[strings.TrimSpace(name)] {
		return nil, false
	}
	key := cacheKey(name, args)
	entry, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	if time.Since(entry.storedAt) >= c.ttl {
		// Expired, evict so the LRU bookkeeping stays clean.
		c.cache.Remove(key)
		return nil, false
	}
	return entry.value, true
}

// Put stores the result for a call with the given name and arguments.
func (c *Cache) Put(name string, args map[string]any, value any) {
	if c.exclude[strings.TrimSpace(name)] {
		return
	}
	c.cache.Add(cacheKey(name, args), cacheEntry{
		value:    value,
		storedAt: time.Now(),
	})
}

// Len returns the number of cached entries, including expired ones not yet
// evicted.
func (c *Cache) Len() int {
	return c.cache.Len()
}

// Purge drops all cached entries.
func (c *Cache) Purge() {
	c.cache.Purge()
}

// cacheKey produces a deterministic string key from name + arguments.
func cacheKey(name string, args map[string]any) string {
	return fmt.Sprintf("%s:%s", strings.TrimSpace(name), normalizeArgs(args))
}

// normalizeArgs serialises a map[string]any into a deterministic JSON string
// by sorting keys at every level.
func normalizeArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(sortedMap(args))
	if err != nil {
		return "{}"
	}
	return string(data)
}

// sortedMap returns a representation of m that json.Marshal will serialise
// with keys in sorted order (json.Marshal already sorts top-level keys, so
// only nested maps need converting to the same concrete type).
func sortedMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := m[k]
		if nested, ok := v.(map[string]any); ok {
			v = sortedMap(nested)
		}
		out[k] = v
	}
	return out
}
