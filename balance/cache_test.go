package balance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cygnus-wealth/sol-core/tokenamount"
	"github.com/cygnus-wealth/sol-core/walletaddr"
)

var testWallet = walletaddr.MustNew("11111111111111111111111111111111")

func usdcAmount(t *testing.T, raw string) tokenamount.TokenAmount {
	t.Helper()
	amt, err := tokenamount.New(raw, 6)
	require.NoError(t, err)
	return amt
}

func TestBalanceCache_SaveThenGetWalletBalances_RoundTrip(t *testing.T) {
	c := NewBalanceCache()
	snaps := []BalanceSnapshot{
		{Wallet: testWallet, Mint: NativeMint, Amount: usdcAmount(t, "1000000000"), ObservedAt: time.Now()},
		{Wallet: testWallet, Mint: "mintA", Amount: usdcAmount(t, "500000"), ObservedAt: time.Now()},
	}

	c.SaveBalances(snaps, DefaultTTL)

	entries := c.GetWalletBalances(testWallet)
	require.Len(t, entries, 2)

	mints := map[string]bool{}
	for _, e := range entries {
		mints[e.Snapshot.Mint] = true
	}
	require.True(t, mints[NativeMint])
	require.True(t, mints["mintA"])
}

func TestBalanceCache_InvalidateWallet_ClearsAllEntries(t *testing.T) {
	c := NewBalanceCache()
	snaps := []BalanceSnapshot{
		{Wallet: testWallet, Mint: NativeMint, Amount: usdcAmount(t, "1"), ObservedAt: time.Now()},
		{Wallet: testWallet, Mint: "mintA", Amount: usdcAmount(t, "1"), ObservedAt: time.Now()},
	}
	c.SaveBalances(snaps, DefaultTTL)
	require.Len(t, c.GetWalletBalances(testWallet), 2)

	c.InvalidateWallet(testWallet)

	require.Empty(t, c.GetWalletBalances(testWallet))
	_, ok := c.Get(testWallet, NativeMint)
	require.False(t, ok)
}

func TestBalanceCache_IsStale_MissingEntryIsStale(t *testing.T) {
	c := NewBalanceCache()
	require.True(t, c.IsStale(testWallet, NativeMint, time.Minute))
}

func TestBalanceCache_IsStale_WithinMaxAge(t *testing.T) {
	c := NewBalanceCache()
	c.SaveBalances([]BalanceSnapshot{
		{Wallet: testWallet, Mint: NativeMint, Amount: usdcAmount(t, "1"), ObservedAt: time.Now()},
	}, DefaultTTL)

	require.False(t, c.IsStale(testWallet, NativeMint, time.Minute))
}

func TestBalanceCache_Get_ExpiredEntryNotReturned(t *testing.T) {
	c := NewBalanceCache()
	c.SaveBalances([]BalanceSnapshot{
		{Wallet: testWallet, Mint: NativeMint, Amount: usdcAmount(t, "1"), ObservedAt: time.Now()},
	}, time.Millisecond)

	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get(testWallet, NativeMint)
	require.False(t, ok)
	require.Empty(t, c.GetWalletBalances(testWallet))
}

func TestBalanceCache_PruneStale_RemovesOldEntriesOnly(t *testing.T) {
	c := NewBalanceCache()
	c.SaveBalances([]BalanceSnapshot{
		{Wallet: testWallet, Mint: NativeMint, Amount: usdcAmount(t, "1"), ObservedAt: time.Now()},
	}, DefaultTTL)

	removed := c.PruneStale(time.Millisecond)
	require.Equal(t, 0, removed)

	time.Sleep(5 * time.Millisecond)
	removed = c.PruneStale(time.Millisecond)
	require.Equal(t, 1, removed)
	require.Empty(t, c.GetWalletBalances(testWallet))
}

func TestBalanceCache_SaveBalances_BatchIsAtomicallyVisible(t *testing.T) {
	c := NewBalanceCache()
	snaps := make([]BalanceSnapshot, 0, 50)
	for i := 0; i < 50; i++ {
		snaps = append(snaps, BalanceSnapshot{
			Wallet:     testWallet,
			Mint:       string(rune('a' + i)),
			Amount:     usdcAmount(t, "1"),
			ObservedAt: time.Now(),
		})
	}

	done := make(chan struct{})
	go func() {
		c.SaveBalances(snaps, DefaultTTL)
		close(done)
	}()
	<-done

	entries := c.GetWalletBalances(testWallet)
	require.Len(t, entries, 50)
}
