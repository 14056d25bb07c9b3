package main

import (
	"context"
	"flag"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/you/arb-engine/internal/config"
	"github.com/you/arb-engine/internal/dex/univ3"
)

// Probes every configured token against USDT on-chain and prints the spot
// price plus the fee tier that served it.
func main() {
	cfgPath := flag.String("config", "./config.yaml", "path to config file")
	timeout := flag.Duration("timeout", 15*time.Second, "per-token timeout")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(err)
	}
	usdt := common.HexToAddress(cfg.DEX.USDT)
	if usdt == (common.Address{}) {
		panic("dex.usdt is empty in config")
	}

	quoter, err := univ3.NewQuoter(cfg, zap.NewNop())
	if err != nil {
		panic(err)
	}

	fmt.Printf("RPC: %s\n", cfg.Chain.RPCHTTP)
	fmt.Printf("USDT: %s\n", usdt.Hex())
	fmt.Printf("Tiers: %v\n\n", cfg.DEX.FeeTiers)

	symbols := make([]string, 0, len(cfg.DEX.Tokens))
	for sym := range cfg.DEX.Tokens {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		addr := common.HexToAddress(cfg.DEX.Tokens[sym])
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		px, tier, err := quoter.SpotPrice(ctx, addr, usdt)
		cancel()
		if err != nil {
			fmt.Printf("%-8s error: %v\n", sym, err)
			continue
		}
		fmt.Printf("%-8s %.6f USDT (fee tier %d)\n", sym, px, tier)
	}
}
