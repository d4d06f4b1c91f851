// Package portfolio implements PortfolioAssembler, a thin stateless join
// over BalanceDiscoveryService and TokenDiscoveryService.
package portfolio

import (
	"context"
	"time"

	"github.com/cygnus-wealth/sol-core/asset"
	"github.com/cygnus-wealth/sol-core/balance"
)

// TokenPosition is one fungible-token mint's balance joined with its
// resolved asset metadata, when known. Field names and shape follow spec
// §6's normative snapshot schema.
type TokenPosition struct {
	Mint     string  `json:"mint"`
	Symbol   string  `json:"symbol,omitempty"`
	Name     string  `json:"name,omitempty"`
	Balance  string  `json:"balance"`
	Decimals int32   `json:"decimals"`
	ValueUSD *string `json:"valueUSD,omitempty"`
}

// NFTPosition is one NFT mint joined with its resolved asset metadata.
// Collection/Attributes are only present when the underlying DAS metadata
// carried them.
type NFTPosition struct {
	Mint       string            `json:"mint"`
	Name       string            `json:"name,omitempty"`
	Symbol     string            `json:"symbol,omitempty"`
	URI        string            `json:"uri,omitempty"`
	Collection string            `json:"collection,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Snapshot is the assembled, read-only view of a wallet's holdings. Field
// names follow spec §6's "returned snapshot shape", plus fromCache, which
// carries the underlying WalletBalance's FromCache flag.
type Snapshot struct {
	Address       string          `json:"address"`
	TotalValueUSD *string         `json:"totalValueUSD,omitempty"`
	SOLBalance    string          `json:"solBalance"`
	TokenCount    int             `json:"tokenCount"`
	NFTCount      int             `json:"nftCount"`
	Tokens        []TokenPosition `json:"tokens"`
	NFTs          []NFTPosition   `json:"nfts"`
	LastUpdated   time.Time       `json:"lastUpdated"`
	FromCache     bool            `json:"fromCache"`
}

// Options threads through to both underlying services.
type Options struct {
	Balance balance.FetchOptions
	Asset   asset.Options
	// ResolveAssets controls whether TokenDiscoveryService runs at all, per
	// §4.9's "if needed" qualifier; when false no metadata fetch occurs and
	// positions carry only metadata already present in the asset cache.
	ResolveAssets bool
}

// Assembler joins BalanceDiscoveryService and TokenDiscoveryService output
// through the mint key. It holds no per-wallet state: every call is
// independent and idempotent.
type Assembler struct {
	balances *balance.BalanceDiscoveryService
	tokens   *asset.Service
	assets   *asset.Cache
}

// NewAssembler wires the two discovery services and the asset cache used to
// resolve metadata for the join.
func NewAssembler(balances *balance.BalanceDiscoveryService, tokens *asset.Service, assets *asset.Cache) *Assembler {
	return &Assembler{balances: balances, tokens: tokens, assets: assets}
}

// FetchSnapshot materializes a PortfolioSnapshot for wallet: balances first,
// optionally followed by a token-metadata discovery pass, joined by mint.
func (a *Assembler) FetchSnapshot(ctx context.Context, walletString string, opts Options) (Snapshot, error) {
	wb, err := a.balances.FetchWalletBalance(ctx, walletString, opts.Balance)
	if err != nil {
		return Snapshot{}, err
	}

	if opts.ResolveAssets && a.tokens != nil {
		if _, err := a.tokens.DiscoverTokens(ctx, wb.Wallet, opts.Asset); err != nil {
			return Snapshot{}, err
		}
	}

	tokens := make([]TokenPosition, 0, len(wb.TokenBalances))
	nfts := make([]NFTPosition, 0)
	for _, tb := range wb.TokenBalances {
		var record *asset.Record
		if a.assets != nil {
			if r, ok := a.assets.FindByMint(tb.Mint); ok {
				record = &r
			}
		}

		// An unresolved mint is conservatively treated as fungible, matching
		// BalanceDiscoveryService's own nil-classifier contract.
		if record != nil && record.Kind == asset.KindNFT {
			nfts = append(nfts, NFTPosition{
				Mint:       tb.Mint,
				Name:       record.Metadata.Name,
				Symbol:     record.Metadata.Symbol,
				URI:        record.Metadata.LogoURI,
				Collection: record.Metadata.Collection,
				Attributes: record.Metadata.Attributes,
			})
			continue
		}

		tp := TokenPosition{
			Mint:     tb.Mint,
			Balance:  tb.Amount.String(),
			Decimals: tb.Amount.Decimals(),
		}
		if record != nil {
			tp.Name = record.Metadata.Name
			tp.Symbol = record.Metadata.Symbol
		}
		tokens = append(tokens, tp)
	}

	return Snapshot{
		Address:     wb.Wallet.String(),
		SOLBalance:  wb.NativeBalance.String(),
		TokenCount:  len(tokens),
		NFTCount:    len(nfts),
		Tokens:      tokens,
		NFTs:        nfts,
		LastUpdated: wb.LastUpdated,
		FromCache:   wb.FromCache,
	}, nil
}
