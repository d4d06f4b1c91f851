package balance

import (
	"sync"
	"time"

	"github.com/cygnus-wealth/sol-core/walletaddr"
)

// DefaultTTL is BalanceCache's default entry lifetime, per spec §4.5.
const DefaultTTL = 30 * time.Second

// Reader exposes cache read operations. Split from Writer/Invalidator
// following the teacher's ISP cache interface split
// (internal/cache.CacheReader/CacheWriter/CacheInvalidator).
type Reader interface {
	Get(wallet walletaddr.WalletAddress, mint string) (BalanceCacheEntry, bool)
	GetWalletBalances(wallet walletaddr.WalletAddress) []BalanceCacheEntry
	IsStale(wallet walletaddr.WalletAddress, mint string, maxAge time.Duration) bool
}

// Writer exposes cache write operations.
type Writer interface {
	SaveBalances(snapshots []BalanceSnapshot, ttl time.Duration)
}

// Invalidator exposes cache maintenance operations.
type Invalidator interface {
	InvalidateWallet(wallet walletaddr.WalletAddress)
	PruneStale(maxAge time.Duration) int
}

// Cache composes the full BalanceCache surface.
type Cache interface {
	Reader
	Writer
	Invalidator
}

type cacheKey struct {
	wallet string
	mint   string
}

// BalanceCache is an in-memory, TTL-based store of BalanceCacheEntry keyed
// by (walletAddress, mintAddress). It is safe for concurrent use; readers
// never observe a torn entry because each entry value is written and read
// only under a single map-wide lock.
type BalanceCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]BalanceCacheEntry
	// wallets indexes the set of mints known for each wallet, so
	// GetWalletBalances and InvalidateWallet don't need a full scan.
	wallets map[string]map[string]struct{}
}

// NewBalanceCache constructs an empty cache.
func NewBalanceCache() *BalanceCache {
	return &BalanceCache{
		entries: make(map[cacheKey]BalanceCacheEntry),
		wallets: make(map[string]map[string]struct{}),
	}
}

// Get returns the entry for (wallet, mint) if present and not expired.
func (c *BalanceCache) Get(wallet walletaddr.WalletAddress, mint string) (BalanceCacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[cacheKey{wallet: wallet.String(), mint: mint}]
	if !ok || entry.Expired(time.Now()) {
		return BalanceCacheEntry{}, false
	}
	return entry, true
}

// GetWalletBalances returns every non-expired entry for wallet.
func (c *BalanceCache) GetWalletBalances(wallet walletaddr.WalletAddress) []BalanceCacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	mints, ok := c.wallets[wallet.String()]
	if !ok {
		return nil
	}

	now := time.Now()
	out := make([]BalanceCacheEntry, 0, len(mints))
	for mint := range mints {
		entry, ok := c.entries[cacheKey{wallet: wallet.String(), mint: mint}]
		if !ok || entry.Expired(now) {
			continue
		}
		out = append(out, entry)
	}
	return out
}

// IsStale reports whether the (wallet, mint) entry is missing or older
// than maxAge.
func (c *BalanceCache) IsStale(wallet walletaddr.WalletAddress, mint string, maxAge time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[cacheKey{wallet: wallet.String(), mint: mint}]
	if !ok {
		return true
	}
	return time.Since(entry.CachedAt) > maxAge
}

// SaveBalances atomically writes every snapshot under the same ttl; all
// snapshots become visible together under one lock acquisition, so readers
// never observe a partial write for this batch.
func (c *BalanceCache) SaveBalances(snapshots []BalanceSnapshot, ttl time.Duration) {
	if len(snapshots) == 0 {
		return
	}
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, snap := range snapshots {
		walletKey := snap.Wallet.String()
		key := cacheKey{wallet: walletKey, mint: snap.Mint}
		c.entries[key] = BalanceCacheEntry{
			Snapshot: snap,
			TTLMs:    ttl.Milliseconds(),
			CachedAt: now,
		}
		mints, ok := c.wallets[walletKey]
		if !ok {
			mints = make(map[string]struct{})
			c.wallets[walletKey] = mints
		}
		mints[snap.Mint] = struct{}{}
	}
}

// InvalidateWallet removes every entry for wallet.
func (c *BalanceCache) InvalidateWallet(wallet walletaddr.WalletAddress) {
	c.mu.Lock()
	defer c.mu.Unlock()

	walletKey := wallet.String()
	mints, ok := c.wallets[walletKey]
	if !ok {
		return
	}
	for mint := range mints {
		delete(c.entries, cacheKey{wallet: walletKey, mint: mint})
	}
	delete(c.wallets, walletKey)
}

// PruneStale removes every entry older than maxAge and returns the count
// removed. Intended to be called periodically by the owner.
func (c *BalanceCache) PruneStale(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, entry := range c.entries {
		if now.Sub(entry.CachedAt) > maxAge {
			delete(c.entries, key)
			if mints, ok := c.wallets[key.wallet]; ok {
				delete(mints, key.mint)
				if len(mints) == 0 {
					delete(c.wallets, key.wallet)
				}
			}
			removed++
		}
	}
	return removed
}

var _ Cache = (*BalanceCache)(nil)
