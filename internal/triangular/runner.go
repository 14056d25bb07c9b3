package triangular

import (
	"context"
	"time"

	"github.com/you/arb-engine/internal/config"
	"github.com/you/arb-engine/internal/graph"
	"github.com/you/arb-engine/internal/marketdata"
	imetrics "github.com/you/arb-engine/internal/metrics"
	"github.com/you/arb-engine/internal/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Run rebuilds the currency graph and sweeps it for profitable cycles on
// every tick, pushing the ranked results downstream. The graph is rebuilt
// from a fresh product list each round; stale listings never linger.
func Run(ctx context.Context, cfg *config.Config, md marketdata.Provider, out chan<- types.PathProfit, log *zap.Logger) {
	g := graph.New(log)
	sim := NewSimulator(md, cfg.Triangular.FeePct, rate.Every(cfg.TriangularBatchDelay()), log)

	t := time.NewTicker(cfg.TriangularScanInterval())
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			products, err := md.Products(ctx)
			if err != nil {
				log.Warn("triangular: product list fetch failed", zap.Error(err))
				continue
			}
			n := g.Build(products)
			if n == 0 {
				log.Warn("triangular: empty graph, nothing to scan")
				continue
			}

			starts := cfg.Triangular.StartCurrencies
			if len(starts) == 0 {
				starts = g.Currencies()
			}

			pps := sim.FindProfitablePaths(ctx, g, starts,
				cfg.Triangular.MinProfitPct, cfg.Triangular.StartAmount,
				cfg.Triangular.MaxPathsPerCurrency)

			imetrics.TriPathsProfitable.Set(float64(len(pps)))
			if len(pps) > 0 {
				imetrics.TriBestProfitPct.Set(pps[0].ProfitPct)
			}

			for _, pp := range pps {
				select {
				case out <- pp:
				default:
					log.Warn("triangular: output channel full; dropping",
						zap.String("start", pp.Path.Currencies[0]),
						zap.Float64("profit_pct", pp.ProfitPct),
					)
				}
			}
		}
	}
}
