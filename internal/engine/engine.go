package engine

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/you/arb-engine/internal/aggregator"
	"github.com/you/arb-engine/internal/config"
	"github.com/you/arb-engine/internal/connectors/cex/mexc"
	"github.com/you/arb-engine/internal/connectors/redisfeed"
	"github.com/you/arb-engine/internal/dex/univ3"
	"github.com/you/arb-engine/internal/discovery"
	"github.com/you/arb-engine/internal/feeds"
	"github.com/you/arb-engine/internal/marketdata"
	imetrics "github.com/you/arb-engine/internal/metrics"
	"github.com/you/arb-engine/internal/risk"
	"github.com/you/arb-engine/internal/statarb"
	"github.com/you/arb-engine/internal/triangular"
	"github.com/you/arb-engine/internal/types"
)

const bootstrapTimeout = 5 * time.Second

// Engine wires the three detector lines together: discovery picks the pair
// universe, the WS book and the DEX quoter feed the spatial scanner, the
// REST product list feeds the triangular sweep, and the estimator turns
// price history into pairs-trade signals. Detection only; nothing here
// places orders.
type Engine struct {
	cfg       *config.Config
	log       *zap.Logger
	discovery *discovery.Service
	risk      *risk.Engine

	// positions is the engine's own view of open pairs-trade legs, keyed
	// pair1|pair2. The estimator stays position-free.
	positions map[string]types.SpreadDirection
}

func New(cfg *config.Config, log *zap.Logger) *Engine {
	return &Engine{
		cfg:       cfg,
		log:       log,
		discovery: discovery.NewService(cfg, log),
		risk:      risk.NewEngine(cfg),
		positions: make(map[string]types.SpreadDirection),
	}
}

func (e *Engine) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// graceful shutdown
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		e.log.Warn("received signal, shutting down...")
		cancel()
	}()

	imetrics.Serve(ctx, e.cfg.Metrics.ListenAddr, nil, e.log)

	// 1) discovery
	pairs, err := e.discovery.Run(ctx)
	if err != nil {
		e.log.Fatal("pair discovery failed", zap.Error(err))
	}
	if len(pairs) == 0 {
		e.log.Fatal("no pairs discovered")
	}
	e.log.Info("discovered pairs", zap.Int("count", len(pairs)))

	symbols := make([]string, 0, len(pairs))
	for _, pm := range pairs {
		symbols = append(symbols, pm.Symbol)
	}

	// 2) CEX market data: WS book with REST fallback
	rest, err := mexc.NewClient(e.cfg, e.log)
	if err != nil {
		e.log.Fatal("failed to initialize mexc client", zap.Error(err))
	}

	book := marketdata.NewBookCache()
	ws := mexc.NewWS(e.cfg.MEXC.WsURL)
	wsStream, err := ws.SubscribeBookTicker(ctx, symbols)
	if err != nil {
		e.log.Fatal("failed to subscribe to book ticker", zap.Error(err))
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case t, ok := <-wsStream:
				if !ok {
					return
				}
				book.Set(t.Symbol, t.Bid, t.Ask)
			}
		}
	}()
	e.log.Info("subscribed to WS book ticker", zap.Strings("symbols", symbols))

	missing := waitWSBootstrap(ctx, book, symbols, bootstrapTimeout)
	if len(missing) > 0 {
		e.log.Warn("WS bootstrap timeout, continue with partial set",
			zap.Int("missing", len(missing)),
			zap.Strings("symbols_missing", missing),
		)
	} else {
		e.log.Info("WS book ready for all symbols")
	}

	md := &cexProvider{book: book, rest: rest}

	// 3) price feeds -> aggregator -> spatial scanner
	agg := aggregator.New(e.log,
		feeds.NewCEXFeed("mexc", md, e.cfg.MEXC.TakerFeePct, e.cfg.MEXC.MakerFeePct, e.log))

	quoter, err := univ3.NewQuoter(e.cfg, e.log)
	if err != nil {
		e.log.Warn("uniswap quoter unavailable, running CEX-only", zap.Error(err))
	} else {
		agg.Register(feeds.NewDEXFeed(e.cfg, quoter, rest, e.log))
	}

	pub := redisfeed.NewPublisher(e.cfg)
	defer pub.Close()

	oppCh := make(chan types.ArbitrageOpportunity, 64)
	go agg.RunScanner(ctx, pairs, aggregator.ScanParams{
		MinProfitPct: e.cfg.Spatial.MinProfitPct,
		MinQuantity:  e.cfg.Spatial.MinQuantity,
		QuoteTimeout: e.cfg.QuoteTimeout(),
		IncludeGas:   e.cfg.Spatial.IncludeGas,
	}, e.cfg.SpatialScanInterval(), oppCh)
	go e.consumeOpportunities(ctx, pub, oppCh)

	// 4) triangular sweep over the full product graph
	triCh := make(chan types.PathProfit, 64)
	go triangular.Run(ctx, e.cfg, md, triCh, e.log)
	go e.consumePathProfits(ctx, pub, triCh)

	// 5) stat-arb estimator fed off the WS book mid
	est := statarb.NewEstimator(
		e.cfg.StatArb.LookbackDays,
		e.cfg.StatArb.MaxPoints,
		e.cfg.CorrelationCacheTTL(),
		e.log,
	)
	go e.runStatArb(ctx, est, pub, book, symbols)

	if e.cfg.DryRun {
		e.log.Warn("DRY-RUN: detections are logged but not published")
	}

	<-ctx.Done()
	e.log.Info("arb-engine finished")
}

func (e *Engine) consumeOpportunities(ctx context.Context, pub *redisfeed.Publisher, in <-chan types.ArbitrageOpportunity) {
	for {
		select {
		case <-ctx.Done():
			return
		case opp := <-in:
			if !e.risk.AllowOpportunity(opp) {
				e.log.Debug("opportunity below risk floor", zap.String("pair", opp.Pair),
					zap.Float64("est_profit_usd", opp.EstProfitUSD))
				continue
			}
			e.log.Info("opportunity",
				zap.String("id", opp.ID),
				zap.String("pair", opp.Pair),
				zap.String("buy", opp.BuyExchange),
				zap.String("sell", opp.SellExchange),
				zap.Float64("spread_pct", opp.SpreadPct),
				zap.Float64("est_profit_pct", opp.EstProfitPct),
				zap.Float64("confidence", opp.Confidence),
			)
			if e.cfg.DryRun {
				continue
			}
			if err := pub.PublishOpportunity(ctx, opp); err != nil {
				e.log.Warn("failed to publish opportunity", zap.Error(err))
			}
		}
	}
}

func (e *Engine) consumePathProfits(ctx context.Context, pub *redisfeed.Publisher, in <-chan types.PathProfit) {
	for {
		select {
		case <-ctx.Done():
			return
		case pp := <-in:
			e.log.Info("triangular path",
				zap.Strings("currencies", pp.Path.Currencies[:]),
				zap.Float64("profit_pct", pp.ProfitPct),
			)
			if e.cfg.DryRun {
				continue
			}
			if err := pub.PublishPathProfit(ctx, pp); err != nil {
				e.log.Warn("failed to publish path profit", zap.Error(err))
			}
		}
	}
}

// runStatArb appends one book-mid sample per pair per tick, then screens
// the tracked universe and steps the signal state machine for every pair
// that still qualifies.
func (e *Engine) runStatArb(ctx context.Context, est *statarb.Estimator, pub *redisfeed.Publisher, book *marketdata.BookCache, symbols []string) {
	t := time.NewTicker(e.cfg.StatArbTick())
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			now := time.Now()
			for _, sym := range symbols {
				bid, ask, err := book.BestBidAsk(sym)
				if err != nil {
					continue
				}
				est.UpdatePrice(sym, (bid+ask)/2, now)
			}

			for _, sig := range e.collectStatArbSignals(est) {
				imetrics.StatArbSignals.WithLabelValues(string(sig.Direction)).Inc()
				e.log.Info("statarb signal",
					zap.String("pair1", sig.Pair1),
					zap.String("pair2", sig.Pair2),
					zap.Float64("z", sig.ZScore),
					zap.String("direction", string(sig.Direction)),
					zap.Float64("confidence", sig.Confidence),
				)
				if e.cfg.DryRun {
					continue
				}
				if err := pub.PublishSignal(ctx, sig); err != nil {
					e.log.Warn("failed to publish signal", zap.Error(err))
				}
			}
		}
	}
}

// collectStatArbSignals steps the state machine once for every currently
// suitable pair, then once more for every open position the screen no
// longer covers. A pair whose correlation decayed below the screen still
// owes the caller its exit; dropping it would strand the position forever.
func (e *Engine) collectStatArbSignals(est *statarb.Estimator) []types.ZScoreSignal {
	suitable := est.SuitablePairs(e.cfg.StatArb.MinCorrelation)
	imetrics.StatArbSuitablePairs.Set(float64(len(suitable)))

	stepped := make(map[string]struct{}, len(suitable)+len(e.positions))
	var out []types.ZScoreSignal
	step := func(pair1, pair2 string) {
		key := pair1 + "|" + pair2
		if _, done := stepped[key]; done {
			return
		}
		stepped[key] = struct{}{}

		sig := est.Signal(pair1, pair2, e.cfg.StatArb.EntryZ, e.cfg.StatArb.ExitZ, e.positions[key])
		if sig == nil || !e.risk.AllowSignal(*sig) {
			return
		}
		if sig.Direction == types.ExitSpread {
			delete(e.positions, key)
		} else {
			e.positions[key] = sig.Direction
		}
		out = append(out, *sig)
	}

	for _, pc := range suitable {
		step(pc.Pair1, pc.Pair2)
	}
	for key := range e.positions {
		if _, done := stepped[key]; done {
			continue
		}
		pair1, pair2, ok := strings.Cut(key, "|")
		if !ok {
			continue
		}
		step(pair1, pair2)
	}
	return out
}

// cexProvider layers the WS book over the REST client: top-of-book comes
// from the book when warm, everything else (and cold symbols) from REST.
type cexProvider struct {
	book *marketdata.BookCache
	rest *mexc.Client
}

func (p *cexProvider) BestBidAsk(ctx context.Context, pair string) (float64, float64, error) {
	sym := strings.ToUpper(strings.ReplaceAll(pair, "-", ""))
	if bid, ask, err := p.book.BestBidAsk(sym); err == nil {
		return bid, ask, nil
	}
	return p.rest.BestBidAsk(ctx, pair)
}

func (p *cexProvider) Price(ctx context.Context, pair string) (float64, error) {
	sym := strings.ToUpper(strings.ReplaceAll(pair, "-", ""))
	if bid, ask, err := p.book.BestBidAsk(sym); err == nil {
		return (bid + ask) / 2, nil
	}
	return p.rest.Price(ctx, pair)
}

func (p *cexProvider) Products(ctx context.Context) ([]marketdata.Product, error) {
	return p.rest.Products(ctx)
}

func waitWSBootstrap(ctx context.Context, book *marketdata.BookCache, symbols []string, timeout time.Duration) []string {
	deadline := time.Now().Add(timeout)
	missing := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		missing[s] = struct{}{}
	}
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		for s := range missing {
			if book.Has(s) {
				delete(missing, s)
			}
		}
		if len(missing) == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			out := make([]string, 0, len(missing))
			for s := range missing {
				out = append(out, s)
			}
			sort.Strings(out)
			return out
		}
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}
	}
}

func NewLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.CallerKey = "caller"
	cfg.EncoderConfig.StacktraceKey = "stacktrace"
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
	return cfg.Build()
}
