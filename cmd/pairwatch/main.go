package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/you/arb-engine/internal/config"
	"github.com/you/arb-engine/internal/discovery"
)

// One-shot discovery: rank the USDT universe, publish the pick to Redis
// and print it. Handy for checking the pair set before starting the engine.
func main() {
	cfgPath := flag.String("config", "./config.yaml", "path to config file")
	fromRank := flag.Int("from", 0, "override discovery.from_rank")
	toRank := flag.Int("to", 0, "override discovery.to_rank")
	pick := flag.Int("pick", 0, "override discovery.pick")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(err)
	}
	if *fromRank > 0 {
		cfg.Discovery.FromRank = *fromRank
	}
	if *toRank > 0 {
		cfg.Discovery.ToRank = *toRank
	}
	if *pick > 0 {
		cfg.Discovery.Pick = *pick
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	pairs, err := discovery.NewService(cfg, log).Run(ctx)
	if err != nil {
		panic(err)
	}
	for _, pm := range pairs {
		addr := pm.Addr
		if addr == "" {
			addr = "-"
		}
		fmt.Printf("%3d %-12s base=%-6s addr=%s\n", pm.Rank, pm.Symbol, pm.Base, addr)
	}
}
