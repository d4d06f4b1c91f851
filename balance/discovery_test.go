package balance

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"

	"github.com/cygnus-wealth/sol-core/rpcchain"
	"github.com/cygnus-wealth/sol-core/solrpc"
	"github.com/cygnus-wealth/sol-core/walletaddr"
)

const testWalletStr = "11111111111111111111111111111111"

// fakeConnection is an in-memory solrpc.Connection stand-in so discovery
// tests never touch a real RPC transport.
type fakeConnection struct {
	balance       uint64
	balanceErr    error
	accounts      []solrpc.TokenAccountInfo
	accountsErr   error
	slot          uint64
	slotErr       error
	balanceCalls  int
	accountsCalls int
}

func (f *fakeConnection) GetBalance(ctx context.Context, owner solana.PublicKey, commitment rpc.CommitmentType) (uint64, error) {
	f.balanceCalls++
	if f.balanceErr != nil {
		return 0, f.balanceErr
	}
	return f.balance, nil
}

func (f *fakeConnection) GetTokenAccountsByOwner(ctx context.Context, owner solana.PublicKey, commitment rpc.CommitmentType) ([]solrpc.TokenAccountInfo, error) {
	f.accountsCalls++
	if f.accountsErr != nil {
		return nil, f.accountsErr
	}
	return f.accounts, nil
}

func (f *fakeConnection) GetSlot(ctx context.Context, commitment rpc.CommitmentType) (uint64, error) {
	if f.slotErr != nil {
		return 0, f.slotErr
	}
	return f.slot, nil
}

func (f *fakeConnection) GetMultipleTokenMetadata(ctx context.Context, mints []string) (map[string]solrpc.AssetMetadata, error) {
	return nil, nil
}

func (f *fakeConnection) GetTokenMetadata(ctx context.Context, mint string) (solrpc.AssetMetadata, error) {
	return solrpc.AssetMetadata{}, nil
}

var _ solrpc.Connection = (*fakeConnection)(nil)

func newTestChain(t *testing.T, conn *fakeConnection) *rpcchain.FallbackChain {
	t.Helper()
	capSet := map[rpcchain.Capability]bool{rpcchain.CapStandard: true}
	cfg := rpcchain.EndpointConfig{
		URL:          "https://test",
		Name:         "test",
		Priority:     1,
		Capabilities: capSet,
		RateLimit:    rpcchain.RateLimiterConfig{Capacity: 100, RefillPerSec: 100},
		Breaker:      rpcchain.BreakerConfig{FailureThreshold: 5, RecoveryMs: 5000, SuccessThreshold: 1},
		TimeoutMs:    2000,
	}
	return rpcchain.NewFallbackChain(rpcchain.DefaultChainConfig(), []rpcchain.EndpointConfig{cfg}, func(rpcchain.EndpointConfig) rpcchain.ConnectionHandle {
		return conn
	}, nil)
}

func mintPubkey(t *testing.T, seed byte) solana.PublicKey {
	t.Helper()
	var raw [32]byte
	raw[0] = seed
	return solana.PublicKeyFromBytes(raw[:])
}

func TestBalanceDiscoveryService_FetchWalletBalance_HappyPath(t *testing.T) {
	mint := mintPubkey(t, 1)
	tokenAcct := mintPubkey(t, 2)
	conn := &fakeConnection{
		balance: 2_000_000_000,
		accounts: []solrpc.TokenAccountInfo{
			{Pubkey: tokenAcct, Mint: mint, RawAmount: "500000", Decimals: 6, State: solrpc.TokenAccountInitialized},
		},
		slot: 12345,
	}
	chain := newTestChain(t, conn)
	cache := NewBalanceCache()
	svc := NewBalanceDiscoveryService(chain, cache, nil, nil)

	wb, err := svc.FetchWalletBalance(context.Background(), testWalletStr, DefaultFetchOptions())
	require.NoError(t, err)
	require.False(t, wb.FromCache)
	require.Equal(t, "2000000000", wb.NativeBalance.RawString())
	require.Len(t, wb.TokenBalances, 1)
	require.Equal(t, mint.String(), wb.TokenBalances[0].Mint)
	require.Equal(t, 2, wb.TotalAccounts)

	entries := cache.GetWalletBalances(walletaddr.MustNew(testWalletStr))
	require.Len(t, entries, 2)
}

func TestBalanceDiscoveryService_ServesFromCacheWithinTTL(t *testing.T) {
	conn := &fakeConnection{balance: 1_000_000_000, slot: 1}
	chain := newTestChain(t, conn)
	cache := NewBalanceCache()
	svc := NewBalanceDiscoveryService(chain, cache, nil, nil)

	opts := DefaultFetchOptions()
	opts.MaxCacheAge = 30 * time.Second

	_, err := svc.FetchWalletBalance(context.Background(), testWalletStr, opts)
	require.NoError(t, err)
	require.Equal(t, 1, conn.balanceCalls)

	wb, err := svc.FetchWalletBalance(context.Background(), testWalletStr, opts)
	require.NoError(t, err)
	require.True(t, wb.FromCache)
	require.Equal(t, 1, conn.balanceCalls, "second call should be served from cache, not re-fetch")
}

func TestBalanceDiscoveryService_RefetchesAfterTTLExpires(t *testing.T) {
	conn := &fakeConnection{balance: 1_000_000_000, slot: 1}
	chain := newTestChain(t, conn)
	cache := NewBalanceCache()
	svc := NewBalanceDiscoveryService(chain, cache, nil, nil)

	opts := DefaultFetchOptions()
	opts.MaxCacheAge = 20 * time.Millisecond

	_, err := svc.FetchWalletBalance(context.Background(), testWalletStr, opts)
	require.NoError(t, err)
	require.Equal(t, 1, conn.balanceCalls)

	time.Sleep(30 * time.Millisecond)

	wb, err := svc.FetchWalletBalance(context.Background(), testWalletStr, opts)
	require.NoError(t, err)
	require.False(t, wb.FromCache)
	require.Equal(t, 2, conn.balanceCalls, "stale cache entry should force a refetch")
}

func TestBalanceDiscoveryService_ForceRefreshBypassesCache(t *testing.T) {
	conn := &fakeConnection{balance: 1_000_000_000, slot: 1}
	chain := newTestChain(t, conn)
	cache := NewBalanceCache()
	svc := NewBalanceDiscoveryService(chain, cache, nil, nil)

	opts := DefaultFetchOptions()
	_, err := svc.FetchWalletBalance(context.Background(), testWalletStr, opts)
	require.NoError(t, err)

	opts.ForceRefresh = true
	wb, err := svc.FetchWalletBalance(context.Background(), testWalletStr, opts)
	require.NoError(t, err)
	require.False(t, wb.FromCache)
	require.Equal(t, 2, conn.balanceCalls)
}

func TestBalanceDiscoveryService_ZeroBalanceExcludedByDefault(t *testing.T) {
	mint := mintPubkey(t, 3)
	conn := &fakeConnection{
		balance: 0,
		accounts: []solrpc.TokenAccountInfo{
			{Pubkey: mintPubkey(t, 4), Mint: mint, RawAmount: "0", Decimals: 6, State: solrpc.TokenAccountInitialized},
		},
	}
	chain := newTestChain(t, conn)
	cache := NewBalanceCache()
	svc := NewBalanceDiscoveryService(chain, cache, nil, nil)

	wb, err := svc.FetchWalletBalance(context.Background(), testWalletStr, DefaultFetchOptions())
	require.NoError(t, err)
	require.Empty(t, wb.TokenBalances)
}

func TestBalanceDiscoveryService_FrozenAccountsExcluded(t *testing.T) {
	mint := mintPubkey(t, 5)
	conn := &fakeConnection{
		accounts: []solrpc.TokenAccountInfo{
			{Pubkey: mintPubkey(t, 6), Mint: mint, RawAmount: "100", Decimals: 6, State: solrpc.TokenAccountFrozen},
		},
	}
	chain := newTestChain(t, conn)
	cache := NewBalanceCache()
	svc := NewBalanceDiscoveryService(chain, cache, nil, nil)

	wb, err := svc.FetchWalletBalance(context.Background(), testWalletStr, DefaultFetchOptions())
	require.NoError(t, err)
	require.Empty(t, wb.TokenBalances)
}

type fakeClassifier struct {
	nfts map[string]bool
}

func (f fakeClassifier) IsNFT(mint string) (bool, bool) {
	isNFT, ok := f.nfts[mint]
	return isNFT, ok
}

func TestBalanceDiscoveryService_NFTsExcludedUnlessRequested(t *testing.T) {
	mint := mintPubkey(t, 7)
	conn := &fakeConnection{
		accounts: []solrpc.TokenAccountInfo{
			{Pubkey: mintPubkey(t, 8), Mint: mint, RawAmount: "1", Decimals: 0, State: solrpc.TokenAccountInitialized},
		},
	}
	chain := newTestChain(t, conn)
	cache := NewBalanceCache()
	classifier := fakeClassifier{nfts: map[string]bool{mint.String(): true}}
	svc := NewBalanceDiscoveryService(chain, cache, classifier, nil)

	wb, err := svc.FetchWalletBalance(context.Background(), testWalletStr, DefaultFetchOptions())
	require.NoError(t, err)
	require.Empty(t, wb.TokenBalances)

	opts := DefaultFetchOptions()
	opts.IncludeNFTs = true
	opts.ForceRefresh = true
	wb, err = svc.FetchWalletBalance(context.Background(), testWalletStr, opts)
	require.NoError(t, err)
	require.Len(t, wb.TokenBalances, 1)
}

func TestBalanceDiscoveryService_ProgressCallbackReachesDone(t *testing.T) {
	conn := &fakeConnection{balance: 1}
	chain := newTestChain(t, conn)
	cache := NewBalanceCache()
	svc := NewBalanceDiscoveryService(chain, cache, nil, nil)

	var phases []ProgressPhase
	opts := DefaultFetchOptions()
	opts.Progress = func(phase ProgressPhase, percent int) {
		phases = append(phases, phase)
	}

	_, err := svc.FetchWalletBalance(context.Background(), testWalletStr, opts)
	require.NoError(t, err)
	require.Contains(t, phases, PhaseStarted)
	require.Contains(t, phases, PhaseDone)
}

func TestBalanceDiscoveryService_InvalidWalletRejected(t *testing.T) {
	chain := newTestChain(t, &fakeConnection{})
	cache := NewBalanceCache()
	svc := NewBalanceDiscoveryService(chain, cache, nil, nil)

	_, err := svc.FetchWalletBalance(context.Background(), "not-a-valid-address!!", DefaultFetchOptions())
	require.Error(t, err)
}
