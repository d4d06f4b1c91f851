// Package balance implements the BalanceCache and BalanceDiscoveryService
// components of the Cache Coherence model: slot-tagged TTL snapshots of a
// wallet's native and per-mint token balances.
package balance

import (
	"time"

	"github.com/cygnus-wealth/sol-core/tokenamount"
	"github.com/cygnus-wealth/sol-core/walletaddr"
)

// NativeMint is the sentinel mint key BalanceCache uses for a wallet's
// native (SOL) balance entry, so it shares the same (wallet, mint) keyspace
// as token entries.
const NativeMint = "native"

// BalanceSnapshot is a point-in-time, slot-tagged balance observation for
// one (wallet, mint) pair.
type BalanceSnapshot struct {
	Wallet       walletaddr.WalletAddress
	Mint         string
	Amount       tokenamount.TokenAmount
	TokenAccount string // empty for the native entry
	Slot         uint64
	ObservedAt   time.Time
}

// BalanceCacheEntry wraps a snapshot with the TTL it was written under.
type BalanceCacheEntry struct {
	Snapshot BalanceSnapshot
	TTLMs    int64
	CachedAt time.Time
}

// Expired reports whether the entry is stale as of now.
func (e BalanceCacheEntry) Expired(now time.Time) bool {
	return now.Sub(e.CachedAt) > time.Duration(e.TTLMs)*time.Millisecond
}

// TokenBalance is one mint's balance within a WalletBalance.
type TokenBalance struct {
	Mint         string
	Amount       tokenamount.TokenAmount
	TokenAccount string
}

// WalletBalance is the result of fetchWalletBalance: native balance plus
// every discovered token balance.
type WalletBalance struct {
	Wallet        walletaddr.WalletAddress
	NativeBalance tokenamount.TokenAmount
	TokenBalances []TokenBalance
	TotalAccounts int
	LastUpdated   time.Time
	FromCache     bool
}
