package asset

import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cygnus-wealth/sol-core/errs"
	"github.com/cygnus-wealth/sol-core/rpcchain"
	"github.com/cygnus-wealth/sol-core/solrpc"
	"github.com/cygnus-wealth/sol-core/walletaddr"
)

// DefaultBatchSize is the mint-chunk size for metadata batch fetches.
const DefaultBatchSize = 50

// metadataFetchConcurrency bounds how many metadata batches are in flight
// against the chain at once.
const metadataFetchConcurrency = 4

// Options configures a DiscoverTokens call.
type Options struct {
	IncludeZeroBalances bool
	IncludeNFTs         bool
	BatchSize           int
}

// DefaultOptions returns the spec's discovery defaults.
func DefaultOptions() Options {
	return Options{BatchSize: DefaultBatchSize}
}

// Result is the outcome of a DiscoverTokens call: per-item errors never
// abort the batch, so a partial result plus accumulated errors is the
// normal shape, not an exceptional one.
type Result struct {
	Tokens        []Record
	NFTs          []Record
	TokenAccounts []solrpc.TokenAccountInfo
	ProcessedCount int
	Errors        []error
}

// Service discovers and classifies the tokens a wallet holds, resolving
// their metadata through the DAS-eligible side of a FallbackChain and
// caching the result in a Cache.
type Service struct {
	chain  *rpcchain.FallbackChain
	cache  *Cache
	logger *log.Logger
}

// NewService wires a chain and cache together.
func NewService(chain *rpcchain.FallbackChain, cache *Cache, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{chain: chain, cache: cache, logger: logger}
}

// DiscoverTokens fetches a wallet's token accounts, resolves metadata in
// batches, classifies each mint as token or nft, and persists the results.
func (s *Service) DiscoverTokens(ctx context.Context, wallet walletaddr.WalletAddress, opts Options) (Result, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	accounts, err := rpcchain.Execute(ctx, s.chain, func(ctx context.Context, conn rpcchain.ConnectionHandle) ([]solrpc.TokenAccountInfo, error) {
		connection := conn.(solrpc.Connection)
		return connection.GetTokenAccountsByOwner(ctx, wallet.PublicKey(), "")
	}, rpcchain.ExecuteOptions{Method: solrpc.MethodGetTokenAccountsByOwner})
	if err != nil {
		return Result{}, err
	}

	filtered := make([]solrpc.TokenAccountInfo, 0, len(accounts))
	mintSet := make(map[string]struct{})
	for _, acct := range accounts {
		if acct.State == solrpc.TokenAccountFrozen {
			continue
		}
		if !opts.IncludeZeroBalances && acct.RawAmount == "0" {
			continue
		}
		filtered = append(filtered, acct)
		mintSet[acct.Mint.String()] = struct{}{}
	}

	mints := make([]string, 0, len(mintSet))
	for m := range mintSet {
		mints = append(mints, m)
	}

	metadata, fetchErrors := s.fetchMetadataBatches(ctx, mints, opts.BatchSize)

	if opts.IncludeNFTs {
		var unresolved []string
		for _, mint := range mints {
			if _, ok := metadata[mint]; !ok {
				unresolved = append(unresolved, mint)
			}
		}
		resolved, individualErrors := s.fetchMetadataIndividually(ctx, unresolved)
		for mint, meta := range resolved {
			metadata[mint] = meta
		}
		fetchErrors = append(fetchErrors, individualErrors...)
	}

	tokens := make([]Record, 0)
	nfts := make([]Record, 0)
	for _, mint := range mints {
		meta, ok := metadata[mint]
		if !ok {
			continue
		}
		record := classify(mint, meta)
		if record.Kind == KindNFT {
			if !opts.IncludeNFTs {
				continue
			}
			nfts = append(nfts, record)
		} else {
			tokens = append(tokens, record)
		}
	}

	all := make([]Record, 0, len(tokens)+len(nfts))
	all = append(all, tokens...)
	all = append(all, nfts...)
	s.cache.SaveMany(all)

	return Result{
		Tokens:         tokens,
		NFTs:           nfts,
		TokenAccounts:  filtered,
		ProcessedCount: len(mints),
		Errors:         fetchErrors,
	}, nil
}

// RefreshTokenMetadata performs a batched metadata refetch for mints and
// upserts the results into the cache. Per-mint failures are logged, not
// returned, matching spec §4.8's refresh contract.
func (s *Service) RefreshTokenMetadata(ctx context.Context, mints []string) {
	metadata, fetchErrors := s.fetchMetadataBatches(ctx, mints, DefaultBatchSize)
	for _, e := range fetchErrors {
		s.logger.Printf("refreshTokenMetadata: %v", e)
	}
	records := make([]Record, 0, len(metadata))
	for mint, meta := range metadata {
		records = append(records, classify(mint, meta))
	}
	s.cache.SaveMany(records)
}

// fetchMetadataBatches chunks mints into batchSize groups and resolves each
// concurrently via the chain's DAS-eligible endpoints.
func (s *Service) fetchMetadataBatches(ctx context.Context, mints []string, batchSize int) (map[string]solrpc.AssetMetadata, []error) {
	chunks := chunk(mints, batchSize)
	results := make([]map[string]solrpc.AssetMetadata, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(metadataFetchConcurrency)
	var mu sync.Mutex
	var collectedErrors []error
	for i, c := range chunks {
		i, c := i, c
		g.Go(func() error {
			meta, err := rpcchain.Execute(gctx, s.chain, func(ctx context.Context, conn rpcchain.ConnectionHandle) (map[string]solrpc.AssetMetadata, error) {
				connection := conn.(solrpc.Connection)
				return connection.GetMultipleTokenMetadata(ctx, c)
			}, rpcchain.ExecuteOptions{Method: solrpc.MethodGetAssetBatch})
			if err != nil {
				mu.Lock()
				for _, mint := range c {
					collectedErrors = append(collectedErrors, &errs.MetadataFetchError{Mint: mint, Err: err})
				}
				mu.Unlock()
				return nil
			}
			results[i] = meta
			return nil
		})
	}
	_ = g.Wait()

	merged := make(map[string]solrpc.AssetMetadata)
	for _, r := range results {
		for mint, meta := range r {
			merged[mint] = meta
		}
	}
	return merged, collectedErrors
}

// fetchMetadataIndividually is the per-mint fallback from spec §4.8 step 4:
// a mint a batched getAssetBatch response left unresolved gets one more
// getAsset attempt each, bounded by the same concurrency limit as the batch
// fetch. A per-mint failure is accumulated, never aborts the others.
func (s *Service) fetchMetadataIndividually(ctx context.Context, mints []string) (map[string]solrpc.AssetMetadata, []error) {
	if len(mints) == 0 {
		return nil, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(metadataFetchConcurrency)
	var mu sync.Mutex
	resolved := make(map[string]solrpc.AssetMetadata, len(mints))
	var collectedErrors []error
	for _, mint := range mints {
		mint := mint
		g.Go(func() error {
			meta, err := rpcchain.Execute(gctx, s.chain, func(ctx context.Context, conn rpcchain.ConnectionHandle) (solrpc.AssetMetadata, error) {
				connection := conn.(solrpc.Connection)
				return connection.GetTokenMetadata(ctx, mint)
			}, rpcchain.ExecuteOptions{Method: solrpc.MethodGetAsset})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				collectedErrors = append(collectedErrors, &errs.MetadataFetchError{Mint: mint, Err: err})
				return nil
			}
			resolved[mint] = meta
			return nil
		})
	}
	_ = g.Wait()
	return resolved, collectedErrors
}

// classify applies spec §4.8 step 5: a mint is an NFT iff decimals=0 and
// supply<=1, or Metaplex-style metadata carries a master edition.
func classify(mint string, meta solrpc.AssetMetadata) Record {
	isNFT := (meta.Decimals == 0 && meta.Supply <= 1) || meta.HasMasterEdition

	kind := KindToken
	var supply *uint64
	if isNFT {
		kind = KindNFT
		s := meta.Supply
		supply = &s
	}

	return Record{
		Mint: mint,
		Kind: kind,
		Metadata: Metadata{
			Name:       meta.Name,
			Symbol:     meta.Symbol,
			Decimals:   meta.Decimals,
			LogoURI:    meta.LogoURI,
			Verified:   meta.Verified,
			Collection: meta.Collection,
			Attributes: meta.Attributes,
		},
		Supply: supply,
	}
}

func chunk(items []string, size int) [][]string {
	if size <= 0 {
		size = DefaultBatchSize
	}
	out := make([][]string, 0, (len(items)+size-1)/size)
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[i:end])
	}
	return out
}
