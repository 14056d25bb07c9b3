package main

import (
	"context"
	"flag"

	"go.uber.org/zap"

	"github.com/you/arb-engine/internal/config"
	"github.com/you/arb-engine/internal/engine"
)

func main() {
	cfgPath := flag.String("config", "./config.yaml", "path to config file")
	flag.Parse()

	logger, err := engine.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	logger.Info("starting arb-engine",
		zap.Bool("dry_run", cfg.DryRun),
		zap.Uint32s("dex_fee_tiers", cfg.DEX.FeeTiers),
	)

	engine.New(cfg, logger).Run(context.Background())
}
