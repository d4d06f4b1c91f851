package balance

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gagliardetto/solana-go/rpc"

	"github.com/cygnus-wealth/sol-core/errs"
	"github.com/cygnus-wealth/sol-core/rpcchain"
	"github.com/cygnus-wealth/sol-core/solrpc"
	"github.com/cygnus-wealth/sol-core/tokenamount"
	"github.com/cygnus-wealth/sol-core/walletaddr"
)

// AssetClassifier is the minimal collaborator BalanceDiscoveryService needs
// from the asset package to decide whether a token account is an NFT.
// Declared here (rather than importing the asset package directly) so
// balance has no dependency on asset; *asset.Cache satisfies it.
type AssetClassifier interface {
	IsNFT(mint string) (isNFT bool, known bool)
}

// ProgressPhase names a progress callback checkpoint.
type ProgressPhase string

const (
	PhaseStarted        ProgressPhase = "started"
	PhaseCacheChecked   ProgressPhase = "cache_checked"
	PhaseNativeFetched  ProgressPhase = "native_fetched"
	PhaseAccountsFetched ProgressPhase = "accounts_fetched"
	PhaseDone           ProgressPhase = "done"
)

// ProgressCallback is invoked with PhaseStarted at 10, PhaseCacheChecked at
// 30, PhaseNativeFetched at 50, PhaseAccountsFetched at 70, one
// "classify_<i>" phase per kept token account at 30-90 (30 + 60*(i+1)/n,
// where i indexes all n fetched accounts), and PhaseDone at 100. A call served from cache reports PhaseStarted at 10
// and then PhaseCacheChecked at 100.
type ProgressCallback func(phase ProgressPhase, percent int)

// FetchOptions configures a single fetchWalletBalance call.
type FetchOptions struct {
	ForceRefresh        bool
	IncludeZeroBalances bool
	IncludeNFTs         bool
	MaxCacheAge         time.Duration
	Commitment          rpc.CommitmentType
	Progress            ProgressCallback
}

// DefaultFetchOptions matches the configuration defaults in spec §6.
func DefaultFetchOptions() FetchOptions {
	return FetchOptions{
		MaxCacheAge: DefaultTTL,
		Commitment:  rpc.CommitmentConfirmed,
	}
}

// maxAttempts and backoffFor are the exponential backoff policy from spec
// §4.7: max 3 attempts, 1s*2^(attempt-1) backoff, retry only retryable
// NetworkErrors.
const maxAttempts = 3

func backoffFor(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt-1)) * time.Second
}

// BalanceDiscoveryService orchestrates native-balance and token-account
// discovery for one wallet: consult the cache, fetch via FallbackChain with
// retries, classify, and persist through BalanceCache under a single batch
// write.
type BalanceDiscoveryService struct {
	chain      *rpcchain.FallbackChain
	cache      *BalanceCache
	classifier AssetClassifier
	logger     *log.Logger
}

// NewBalanceDiscoveryService wires a chain, cache, and asset classifier
// together. classifier may be nil; unresolved mints are then conservatively
// treated as fungible tokens (never excluded as NFTs).
func NewBalanceDiscoveryService(chain *rpcchain.FallbackChain, cache *BalanceCache, classifier AssetClassifier, logger *log.Logger) *BalanceDiscoveryService {
	if logger == nil {
		logger = log.Default()
	}
	return &BalanceDiscoveryService{chain: chain, cache: cache, classifier: classifier, logger: logger}
}

// FetchWalletBalance implements the state machine Start -> CheckCache ->
// FetchNative -> FetchAccounts -> Classify -> Persist -> Done, with Fail as
// a sink reachable from FetchNative/FetchAccounts terminal failures.
func (s *BalanceDiscoveryService) FetchWalletBalance(ctx context.Context, walletString string, opts FetchOptions) (WalletBalance, error) {
	if opts.MaxCacheAge <= 0 {
		opts.MaxCacheAge = DefaultTTL
	}
	if opts.Commitment == "" {
		opts.Commitment = rpc.CommitmentConfirmed
	}

	wallet, err := walletaddr.New(walletString)
	if err != nil {
		return WalletBalance{}, err
	}
	s.emit(opts.Progress, PhaseStarted, 10)

	if !opts.ForceRefresh {
		if wb, ok := s.tryServeFromCache(wallet, opts); ok {
			s.emit(opts.Progress, PhaseCacheChecked, 100)
			return wb, nil
		}
	}
	s.emit(opts.Progress, PhaseCacheChecked, 30)

	native, err := s.fetchNativeBalance(ctx, wallet, opts)
	if err != nil {
		return WalletBalance{}, err
	}
	s.emit(opts.Progress, PhaseNativeFetched, 50)

	accounts, err := s.fetchTokenAccounts(ctx, wallet, opts)
	if err != nil {
		return WalletBalance{}, err
	}
	s.emit(opts.Progress, PhaseAccountsFetched, 70)

	slot := s.fetchSlotBestEffort(ctx, opts)

	now := time.Now()
	snapshots := make([]BalanceSnapshot, 0, len(accounts)+1)
	snapshots = append(snapshots, BalanceSnapshot{
		Wallet:     wallet,
		Mint:       NativeMint,
		Amount:     native,
		Slot:       slot,
		ObservedAt: now,
	})

	tokenBalances := make([]TokenBalance, 0, len(accounts))
	total := len(accounts)
	for i, acct := range accounts {
		if acct.State == solrpc.TokenAccountFrozen {
			continue
		}
		amount, err := tokenamount.New(acct.RawAmount, int32(acct.Decimals))
		if err != nil {
			continue
		}
		if !opts.IncludeZeroBalances && amount.IsZero() {
			continue
		}
		if s.classifier != nil {
			if isNFT, known := s.classifier.IsNFT(acct.Mint.String()); known && isNFT && !opts.IncludeNFTs {
				continue
			}
		}

		tb := TokenBalance{Mint: acct.Mint.String(), Amount: amount, TokenAccount: acct.Pubkey.String()}
		tokenBalances = append(tokenBalances, tb)
		snapshots = append(snapshots, BalanceSnapshot{
			Wallet:       wallet,
			Mint:         acct.Mint.String(),
			Amount:       amount,
			TokenAccount: acct.Pubkey.String(),
			Slot:         slot,
			ObservedAt:   now,
		})

		if total > 0 {
			pct := 30 + (60 * (i + 1) / total)
			s.emit(opts.Progress, ProgressPhase(fmt.Sprintf("classify_%d", i)), pct)
		}
	}

	s.cache.SaveBalances(snapshots, opts.MaxCacheAge)

	s.emit(opts.Progress, PhaseDone, 100)

	return WalletBalance{
		Wallet:        wallet,
		NativeBalance: native,
		TokenBalances: tokenBalances,
		TotalAccounts: 1 + len(tokenBalances),
		LastUpdated:   now,
		FromCache:     false,
	}, nil
}

// tryServeFromCache implements spec §4.5's staleness rule: the cached view
// is usable only if every entry is within maxCacheAge, and a missing
// native entry forces a refetch.
func (s *BalanceDiscoveryService) tryServeFromCache(wallet walletaddr.WalletAddress, opts FetchOptions) (WalletBalance, bool) {
	entries := s.cache.GetWalletBalances(wallet)
	if len(entries) == 0 {
		return WalletBalance{}, false
	}

	now := time.Now()
	var native *BalanceCacheEntry
	tokenBalances := make([]TokenBalance, 0, len(entries))
	var lastUpdated time.Time

	for i := range entries {
		e := entries[i]
		if now.Sub(e.CachedAt) > opts.MaxCacheAge {
			return WalletBalance{}, false
		}
		if e.Snapshot.ObservedAt.After(lastUpdated) {
			lastUpdated = e.Snapshot.ObservedAt
		}
		if e.Snapshot.Mint == NativeMint {
			native = &entries[i]
			continue
		}
		tokenBalances = append(tokenBalances, TokenBalance{
			Mint:         e.Snapshot.Mint,
			Amount:       e.Snapshot.Amount,
			TokenAccount: e.Snapshot.TokenAccount,
		})
	}

	if native == nil {
		return WalletBalance{}, false
	}

	return WalletBalance{
		Wallet:        wallet,
		NativeBalance: native.Snapshot.Amount,
		TokenBalances: tokenBalances,
		TotalAccounts: 1 + len(tokenBalances),
		LastUpdated:   lastUpdated,
		FromCache:     true,
	}, true
}

func (s *BalanceDiscoveryService) fetchNativeBalance(ctx context.Context, wallet walletaddr.WalletAddress, opts FetchOptions) (tokenamount.TokenAmount, error) {
	lamports, err := executeWithRetry(ctx, s.chain, func(ctx context.Context, conn rpcchain.ConnectionHandle) (uint64, error) {
		connection := conn.(solrpc.Connection)
		return connection.GetBalance(ctx, wallet.PublicKey(), opts.Commitment)
	}, rpcchain.ExecuteOptions{Method: solrpc.MethodGetBalance})
	if err != nil {
		return tokenamount.TokenAmount{}, err
	}
	return tokenamount.New(fmt.Sprintf("%d", lamports), 9)
}

func (s *BalanceDiscoveryService) fetchTokenAccounts(ctx context.Context, wallet walletaddr.WalletAddress, opts FetchOptions) ([]solrpc.TokenAccountInfo, error) {
	return executeWithRetry(ctx, s.chain, func(ctx context.Context, conn rpcchain.ConnectionHandle) ([]solrpc.TokenAccountInfo, error) {
		connection := conn.(solrpc.Connection)
		return connection.GetTokenAccountsByOwner(ctx, wallet.PublicKey(), opts.Commitment)
	}, rpcchain.ExecuteOptions{Method: solrpc.MethodGetTokenAccountsByOwner})
}

// fetchSlotBestEffort fetches the current slot; on failure it defaults to
// 0 rather than failing the whole discovery call, per spec §4.7 step 5.
func (s *BalanceDiscoveryService) fetchSlotBestEffort(ctx context.Context, opts FetchOptions) uint64 {
	slot, err := rpcchain.Execute(ctx, s.chain, func(ctx context.Context, conn rpcchain.ConnectionHandle) (uint64, error) {
		connection := conn.(solrpc.Connection)
		return connection.GetSlot(ctx, opts.Commitment)
	}, rpcchain.ExecuteOptions{Method: solrpc.MethodGetSlot})
	if err != nil {
		return 0
	}
	return slot
}

func (s *BalanceDiscoveryService) emit(cb ProgressCallback, phase ProgressPhase, percent int) {
	if cb != nil {
		cb(phase, percent)
	}
}

// executeWithRetry applies the per-call retry policy from spec §4.7: up to
// maxAttempts, only for retryable NetworkErrors, waiting 1s after the first
// attempt and 2s after the second. The
// first retry may land on the same endpoint; later retries advance
// naturally because the first endpoint's breaker trips across calls.
func executeWithRetry[T any](ctx context.Context, chain *rpcchain.FallbackChain, op func(ctx context.Context, conn rpcchain.ConnectionHandle) (T, error), opts rpcchain.ExecuteOptions) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := rpcchain.Execute(ctx, chain, op, opts)
		if err == nil {
			return result, nil
		}
		lastErr = err

		retryable, isNetErr := errs.AsNetworkError(err)
		if !isNetErr || !retryable {
			return zero, err
		}
		if attempt == maxAttempts {
			break
		}

		select {
		case <-time.After(backoffFor(attempt)):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	return zero, fmt.Errorf("exhausted retries: %w", lastErr)
}
