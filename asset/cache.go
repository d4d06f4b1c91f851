package asset

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize and DefaultTTL match spec §4.6's defaults.
const (
	DefaultSize = 1000
	DefaultTTL  = 5 * time.Minute
)

type entry struct {
	record  Record
	cachedAt time.Time
}

// Cache is an LRU store of Record keyed by mint, with a TTL layered on top
// of hashicorp/golang-lru/v2's recency-based eviction: an entry surviving
// in the LRU but older than ttl is treated as a miss.
type Cache struct {
	mu  sync.Mutex
	lru *lru.Cache[string, entry]
	ttl time.Duration
}

// NewCache constructs an AssetCache bounded to size entries, each expiring
// after ttl. size<=0 and ttl<=0 fall back to the spec defaults.
func NewCache(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	backing, err := lru.New[string, entry](size)
	if err != nil {
		// size is always a positive int here, so lru.New cannot fail in
		// practice; this guards the signature's error return.
		backing, _ = lru.New[string, entry](DefaultSize)
	}
	return &Cache{lru: backing, ttl: ttl}
}

// FindByMint returns the cached record for mint if present and unexpired.
func (c *Cache) FindByMint(mint string) (Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(mint)
	if !ok || time.Since(e.cachedAt) > c.ttl {
		return Record{}, false
	}
	return e.record, true
}

// FindByMints resolves a batch, returning only the hits.
func (c *Cache) FindByMints(mints []string) map[string]Record {
	out := make(map[string]Record, len(mints))
	for _, m := range mints {
		if r, ok := c.FindByMint(m); ok {
			out[m] = r
		}
	}
	return out
}

// Save upserts one record.
func (c *Cache) Save(r Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(r.Mint, entry{record: r, cachedAt: time.Now()})
}

// SaveMany upserts a batch of records.
func (c *Cache) SaveMany(records []Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for _, r := range records {
		c.lru.Add(r.Mint, entry{record: r, cachedAt: now})
	}
}

// GetVerifiedAssets returns every non-expired record marked Verified.
func (c *Cache) GetVerifiedAssets() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Record, 0)
	for _, mint := range c.lru.Keys() {
		e, ok := c.lru.Peek(mint)
		if !ok || time.Since(e.cachedAt) > c.ttl {
			continue
		}
		if e.record.Metadata.Verified {
			out = append(out, e.record)
		}
	}
	return out
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// IsNFT implements balance.AssetClassifier: known reports whether mint was
// resolved at all, isNFT is only meaningful when known is true.
func (c *Cache) IsNFT(mint string) (isNFT bool, known bool) {
	r, ok := c.FindByMint(mint)
	if !ok {
		return false, false
	}
	return r.isNFT(), true
}
