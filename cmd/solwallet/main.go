// Command solwallet is a thin manual smoke-test wiring the library's
// pieces together against a real RPC endpoint. It is not part of the core
// and carries none of its invariants.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/cygnus-wealth/sol-core/asset"
	"github.com/cygnus-wealth/sol-core/balance"
	"github.com/cygnus-wealth/sol-core/portfolio"
	"github.com/cygnus-wealth/sol-core/rpcchain"
	"github.com/cygnus-wealth/sol-core/solconfig"
	"github.com/cygnus-wealth/sol-core/solrpc"
)

func main() {
	wallet := flag.String("wallet", "", "base58 wallet address to inspect")
	resolveAssets := flag.Bool("resolve-assets", false, "run token metadata discovery and join it into the snapshot")
	flag.Parse()

	if *wallet == "" {
		fmt.Fprintln(os.Stderr, "usage: solwallet -wallet <base58-address> [-resolve-assets]")
		os.Exit(2)
	}

	opts := solconfig.FromEnv()
	logger := log.New(os.Stderr, "[solwallet] ", log.LstdFlags)

	chain := rpcchain.NewFallbackChain(
		rpcchain.DefaultChainConfig(),
		opts.RPCEndpoints,
		func(cfg rpcchain.EndpointConfig) rpcchain.ConnectionHandle {
			return solrpc.NewClient(cfg.URL)
		},
		logger,
	)
	defer chain.Destroy(context.Background())

	if opts.EnableHealthMonitoring {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = chain.StartHealthMonitoring(ctx, func(cfg rpcchain.EndpointConfig, conn rpcchain.ConnectionHandle) rpcchain.Prober {
			return slotProber{conn: conn.(solrpc.Connection)}
		})
	}

	balanceCache := balance.NewBalanceCache()
	balanceSvc := balance.NewBalanceDiscoveryService(chain, balanceCache, nil, logger)

	assetCache := asset.NewCache(asset.DefaultSize, asset.DefaultTTL)
	tokenSvc := asset.NewService(chain, assetCache, logger)

	assembler := portfolio.NewAssembler(balanceSvc, tokenSvc, assetCache)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snapshot, err := assembler.FetchSnapshot(ctx, *wallet, portfolio.Options{
		Balance:       balance.DefaultFetchOptions(),
		Asset:         asset.DefaultOptions(),
		ResolveAssets: *resolveAssets,
	})
	if err != nil {
		logger.Fatalf("fetch snapshot: %v", err)
	}

	out, _ := json.MarshalIndent(snapshot, "", "  ")
	fmt.Println(string(out))
}

// slotProber is the cheap getSlot probe HealthMonitor runs against every
// registered endpoint, per spec §4.3.
type slotProber struct {
	conn solrpc.Connection
}

func (p slotProber) Probe(ctx context.Context) error {
	_, err := p.conn.GetSlot(ctx, "")
	return err
}
