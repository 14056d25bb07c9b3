package triangular

import (
	"context"
	"sort"
	"sync"

	"github.com/you/arb-engine/internal/graph"
	"github.com/you/arb-engine/internal/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Paths are priced in fixed-size concurrent batches so a wide graph does not
// hammer the venue's ticker endpoint.
const batchSize = 10

type tickerSource interface {
	BestBidAsk(ctx context.Context, pair string) (bid, ask float64, err error)
}

// Simulator prices triangular paths leg by leg against live top-of-book.
type Simulator struct {
	src     tickerSource
	log     *zap.Logger
	feePct  float64
	limiter *rate.Limiter
}

func NewSimulator(src tickerSource, feePct float64, batchEvery rate.Limit, log *zap.Logger) *Simulator {
	return &Simulator{
		src:     src,
		log:     log,
		feePct:  feePct,
		limiter: rate.NewLimiter(batchEvery, 1),
	}
}

// PathProfit walks the three legs with ask-for-buy / bid-for-sell semantics.
// Any leg without a positive price aborts the whole path: the returned
// sentinel has EndAmount 0 and Profitable false.
func (s *Simulator) PathProfit(ctx context.Context, path types.TriangularPath, startAmount float64, includeFees bool) types.PathProfit {
	sentinel := types.PathProfit{Path: path, StartAmount: startAmount}

	amount := startAmount
	var rates, fees [3]float64
	for i := 0; i < 3; i++ {
		bid, ask, err := s.src.BestBidAsk(ctx, path.Pairs[i])
		if err != nil {
			s.log.Debug("triangular: leg price unavailable",
				zap.String("pair", path.Pairs[i]), zap.Error(err))
			return sentinel
		}

		var price float64
		switch path.Sides[i] {
		case types.SideSell:
			price = bid
		case types.SideBuy:
			price = ask
		}
		if price <= 0 {
			return sentinel
		}
		rates[i] = price

		var out float64
		if path.Sides[i] == types.SideSell {
			out = amount * price
		} else {
			out = amount / price
		}
		if includeFees {
			fee := out * s.feePct / 100
			fees[i] = fee
			out -= fee
		}
		amount = out
	}

	profit := amount - startAmount
	return types.PathProfit{
		Path:        path,
		StartAmount: startAmount,
		EndAmount:   amount,
		Profit:      profit,
		ProfitPct:   profit / startAmount * 100,
		Rates:       rates,
		Fees:        fees,
		Profitable:  profit > 0,
	}
}

// FindProfitablePaths enumerates candidate cycles for every start currency
// and prices them in concurrent batches, pacing between batches. A failed
// path is just "no opportunity" and never aborts the scan. Results meeting
// the threshold come back sorted by ProfitPct descending.
func (s *Simulator) FindProfitablePaths(
	ctx context.Context,
	g *graph.CurrencyGraph,
	currencies []string,
	minProfitPct, startAmount float64,
	maxPathsPerCurrency int,
) []types.PathProfit {
	var results []types.PathProfit
	var mu sync.Mutex

	for _, cur := range currencies {
		paths := g.FindTriangularPaths(cur, maxPathsPerCurrency)
		for off := 0; off < len(paths); off += batchSize {
			if ctx.Err() != nil {
				return sortByProfit(results)
			}
			end := off + batchSize
			if end > len(paths) {
				end = len(paths)
			}

			var wg sync.WaitGroup
			for _, p := range paths[off:end] {
				p := p
				wg.Add(1)
				go func() {
					defer wg.Done()
					pp := s.PathProfit(ctx, p, startAmount, true)
					if pp.Profitable && pp.ProfitPct >= minProfitPct {
						mu.Lock()
						results = append(results, pp)
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			if err := s.limiter.Wait(ctx); err != nil {
				return sortByProfit(results)
			}
		}
	}
	return sortByProfit(results)
}

func sortByProfit(pps []types.PathProfit) []types.PathProfit {
	sort.Slice(pps, func(i, j int) bool { return pps[i].ProfitPct > pps[j].ProfitPct })
	return pps
}
