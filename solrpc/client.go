// Package solrpc is the external JSON-RPC transport boundary the rest of
// this module depends on through a small interface. The transport itself —
// wire encoding, HTTP semantics, connection pooling — is out of scope per
// spec §1; this package only adapts gagliardetto/solana-go's client to the
// shape the RPC access layer and discovery pipeline need.
package solrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/cygnus-wealth/sol-core/errs"
)

// TokenAccountState mirrors the SPL token account state enum.
type TokenAccountState string

const (
	TokenAccountInitialized   TokenAccountState = "initialized"
	TokenAccountUninitialized TokenAccountState = "uninitialized"
	TokenAccountFrozen        TokenAccountState = "frozen"
)

// TokenAccountInfo is the transient per-fetch view of one SPL token
// account, independent of any cache entry.
type TokenAccountInfo struct {
	Pubkey   solana.PublicKey
	Mint     solana.PublicKey
	Owner    solana.PublicKey
	RawAmount string
	Decimals  uint8
	State     TokenAccountState
}

// AssetMetadata is the metadata payload returned for a mint by a DAS
// getAsset-family call.
type AssetMetadata struct {
	Mint          string
	Name          string
	Symbol        string
	Decimals      uint8
	LogoURI       string
	Verified      bool
	Supply        uint64
	IsNFT         bool
	HasMasterEdition bool
	// Collection and Attributes are populated from a DAS response's
	// collection grouping and content attributes whenever it carries them,
	// whatever the asset's interface; both are the zero value otherwise.
	Collection string
	Attributes map[string]string
}

// Connection is the black-box RPC transport contract. The default
// implementation (Client) wraps *rpc.Client; tests supply fakes.
type Connection interface {
	GetBalance(ctx context.Context, owner solana.PublicKey, commitment rpc.CommitmentType) (uint64, error)
	GetTokenAccountsByOwner(ctx context.Context, owner solana.PublicKey, commitment rpc.CommitmentType) ([]TokenAccountInfo, error)
	GetSlot(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
	GetMultipleTokenMetadata(ctx context.Context, mints []string) (map[string]AssetMetadata, error)
	// GetTokenMetadata resolves a single mint's metadata, used as the
	// per-item fallback when a mint is missing from a batched
	// GetMultipleTokenMetadata response.
	GetTokenMetadata(ctx context.Context, mint string) (AssetMetadata, error)
}

// Client adapts gagliardetto/solana-go's rpc.Client to the Connection
// interface, following the call shapes used for GetBalance and
// GetTokenAccountsByOwner in the Solana service reference implementations
// in this corpus.
type Client struct {
	rpc *rpc.Client
}

// NewClient constructs a solana-go RPC client for endpoint and wraps it.
func NewClient(endpoint string) *Client {
	return &Client{rpc: rpc.New(endpoint)}
}

// GetBalance returns the lamport balance of owner.
func (c *Client) GetBalance(ctx context.Context, owner solana.PublicKey, commitment rpc.CommitmentType) (uint64, error) {
	out, err := c.rpc.GetBalance(ctx, owner, commitment)
	if err != nil {
		return 0, classifyRPCError("getBalance", err)
	}
	return out.Value, nil
}

// GetSlot returns the current slot, used by HealthMonitor's cheap probe
// and by BalanceDiscoveryService to tag snapshots.
func (c *Client) GetSlot(ctx context.Context, commitment rpc.CommitmentType) (uint64, error) {
	slot, err := c.rpc.GetSlot(ctx, commitment)
	if err != nil {
		return 0, classifyRPCError("getSlot", err)
	}
	return slot, nil
}

// GetTokenAccountsByOwner returns every SPL token account owned by owner
// under the standard token program.
func (c *Client) GetTokenAccountsByOwner(ctx context.Context, owner solana.PublicKey, commitment rpc.CommitmentType) ([]TokenAccountInfo, error) {
	result, err := c.rpc.GetTokenAccountsByOwner(
		ctx,
		owner,
		&rpc.GetTokenAccountsConfig{ProgramId: &solana.TokenProgramID},
		&rpc.GetTokenAccountsOpts{
			Commitment: commitment,
			Encoding:   solana.EncodingJSONParsed,
		},
	)
	if err != nil {
		return nil, classifyRPCError("getTokenAccountsByOwner", err)
	}

	out := make([]TokenAccountInfo, 0, len(result.Value))
	for _, acct := range result.Value {
		info, ok := parseTokenAccount(acct.Pubkey, acct.Account.Data)
		if !ok {
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

// GetMultipleTokenMetadata resolves metadata for a batch of mints via the
// DAS getAssetBatch call. The on-the-wire DAS request/response shapes are
// provider-specific extensions to JSON-RPC 2.0 not modeled by
// gagliardetto/solana-go, so this issues a raw RPC call through the
// client's generic call path.
func (c *Client) GetMultipleTokenMetadata(ctx context.Context, mints []string) (map[string]AssetMetadata, error) {
	var raw []dasAssetResponse
	err := c.rpc.RPCCallForInto(ctx, &raw, "getAssetBatch", []interface{}{
		map[string]interface{}{"ids": mints},
	})
	if err != nil {
		return nil, classifyRPCError("getAssetBatch", err)
	}

	out := make(map[string]AssetMetadata, len(raw))
	for _, item := range raw {
		out[item.ID] = item.toMetadata()
	}
	return out, nil
}

// GetTokenMetadata resolves a single mint via the DAS getAsset call,
// the per-mint fallback path for a mint a batched getAssetBatch response
// left unresolved.
func (c *Client) GetTokenMetadata(ctx context.Context, mint string) (AssetMetadata, error) {
	var raw dasAssetResponse
	err := c.rpc.RPCCallForInto(ctx, &raw, "getAsset", []interface{}{
		map[string]interface{}{"id": mint},
	})
	if err != nil {
		return AssetMetadata{}, classifyRPCError("getAsset", err)
	}
	return raw.toMetadata(), nil
}

// dasAssetResponse is the subset of a DAS getAsset response this module
// reads; providers vary their full payload shape considerably.
type dasAssetResponse struct {
	ID      string `json:"id"`
	Content struct {
		JSONURI  string `json:"json_uri"`
		Metadata struct {
			Name       string `json:"name"`
			Symbol     string `json:"symbol"`
			Attributes []struct {
				TraitType string      `json:"trait_type"`
				Value     interface{} `json:"value"`
			} `json:"attributes"`
		} `json:"metadata"`
	} `json:"content"`
	Grouping []struct {
		GroupKey   string `json:"group_key"`
		GroupValue string `json:"group_value"`
	} `json:"grouping"`
	Supply struct {
		PrintMaxSupply uint64 `json:"print_max_supply"`
	} `json:"supply"`
	Interface     string `json:"interface"`
	MasterEdition bool   `json:"-"`
	TokenInfo     struct {
		Decimals uint8 `json:"decimals"`
	} `json:"token_info"`
}

func (r dasAssetResponse) toMetadata() AssetMetadata {
	meta := AssetMetadata{
		Mint:             r.ID,
		Name:             r.Content.Metadata.Name,
		Symbol:           r.Content.Metadata.Symbol,
		LogoURI:          r.Content.JSONURI,
		Decimals:         r.TokenInfo.Decimals,
		Supply:           r.Supply.PrintMaxSupply,
		IsNFT:            r.Interface == "V1_NFT" || r.Interface == "ProgrammableNFT",
		HasMasterEdition: r.MasterEdition,
	}
	for _, g := range r.Grouping {
		if g.GroupKey == "collection" {
			meta.Collection = g.GroupValue
			break
		}
	}
	if len(r.Content.Metadata.Attributes) > 0 {
		meta.Attributes = make(map[string]string, len(r.Content.Metadata.Attributes))
		for _, a := range r.Content.Metadata.Attributes {
			meta.Attributes[a.TraitType] = fmt.Sprintf("%v", a.Value)
		}
	}
	return meta
}

// splParsedTokenAccount mirrors the well-known jsonParsed shape Solana's
// getTokenAccountsByOwner returns for SPL token accounts: an "info" object
// nested under "parsed".
type splParsedTokenAccount struct {
	Parsed struct {
		Info struct {
			Mint  string `json:"mint"`
			Owner string `json:"owner"`
			State string `json:"state"`
			TokenAmount struct {
				Amount   string `json:"amount"`
				Decimals uint8  `json:"decimals"`
			} `json:"tokenAmount"`
		} `json:"info"`
	} `json:"parsed"`
}

func parseTokenAccount(pubkey solana.PublicKey, data interface{}) (TokenAccountInfo, bool) {
	raw, err := json.Marshal(data)
	if err != nil {
		return TokenAccountInfo{}, false
	}
	var parsed splParsedTokenAccount
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return TokenAccountInfo{}, false
	}

	mint, err := solana.PublicKeyFromBase58(parsed.Parsed.Info.Mint)
	if err != nil {
		return TokenAccountInfo{}, false
	}
	owner, err := solana.PublicKeyFromBase58(parsed.Parsed.Info.Owner)
	if err != nil {
		return TokenAccountInfo{}, false
	}

	state := TokenAccountInitialized
	switch parsed.Parsed.Info.State {
	case "frozen":
		state = TokenAccountFrozen
	case "uninitialized":
		state = TokenAccountUninitialized
	}

	return TokenAccountInfo{
		Pubkey:    pubkey,
		Mint:      mint,
		Owner:     owner,
		RawAmount: parsed.Parsed.Info.TokenAmount.Amount,
		Decimals:  parsed.Parsed.Info.TokenAmount.Decimals,
		State:     state,
	}, true
}

// classifyRPCError wraps a raw transport error as an *errs.TimeoutError
// when the deadline was exceeded, and otherwise as an *errs.NetworkError
// whose Retryable flag is set by isRetryable, per spec §7.
func classifyRPCError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &errs.TimeoutError{Op: op, Err: err}
	}
	return &errs.NetworkError{Op: op, Retryable: isRetryable(err), Err: err}
}

// isRetryable applies the classification rule from spec §7: timeouts,
// connection resets, HTTP 5xx, and RPC rate-limit responses are retryable;
// everything else (bad params, deserialization) is not. The RPC provider's
// exact error-code vocabulary varies, so this classifies on the message
// text rather than a fixed JSON-RPC error-code table.
func isRetryable(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"timeout", "deadline exceeded", "connection reset", "eof", "503", "502", "500", "429", "rate limit"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

var _ Connection = (*Client)(nil)
