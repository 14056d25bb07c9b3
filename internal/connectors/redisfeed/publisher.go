package redisfeed

import (
	"context"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/you/arb-engine/internal/config"
	"github.com/you/arb-engine/internal/types"
)

// Publisher pushes detection output into Redis: one stream per detector
// line plus a metadata hash and an "active pairs" ZSET index.
type Publisher struct {
	rdb       *redis.Client
	active    string
	metaNS    string
	oppStream string
	sigStream string
	triStream string
}

func NewPublisher(cfg *config.Config) *Publisher {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
	})
	return &Publisher{
		rdb:       rdb,
		active:    cfg.Redis.ActiveKey,
		metaNS:    cfg.Redis.MetaNS,
		oppStream: cfg.Redis.OppStream,
		sigStream: cfg.Redis.SigStream,
		triStream: cfg.Redis.TriStream,
	}
}

func (p *Publisher) Close() error { return p.rdb.Close() }

// UpsertPairMeta stores the pair's metadata hash and bumps it in the
// active ZSET, scored by the update timestamp.
func (p *Publisher) UpsertPairMeta(ctx context.Context, pm types.PairMeta, tsMs int64) error {
	if err := p.rdb.HSet(ctx, p.metaNS+pm.Symbol, map[string]interface{}{
		"symbol": pm.Symbol,
		"base":   pm.Base,
		"quote":  pm.Quote,
		"addr":   pm.Addr,
		"rank":   pm.Rank,
		"ts_ms":  tsMs,
	}).Err(); err != nil {
		return err
	}
	return p.rdb.ZAdd(ctx, p.active, redis.Z{
		Score: float64(tsMs), Member: pm.Symbol,
	}).Err()
}

// PublishOpportunity appends a spatial opportunity to its stream.
func (p *Publisher) PublishOpportunity(ctx context.Context, opp types.ArbitrageOpportunity) error {
	return p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.oppStream,
		Values: map[string]interface{}{
			"id":             opp.ID,
			"pair":           opp.Pair,
			"buy_exchange":   opp.BuyExchange,
			"sell_exchange":  opp.SellExchange,
			"buy_price":      fmtFloat(opp.BuyPrice),
			"sell_price":     fmtFloat(opp.SellPrice),
			"spread_pct":     fmtFloat(opp.SpreadPct),
			"est_profit_pct": fmtFloat(opp.EstProfitPct),
			"est_profit_usd": fmtFloat(opp.EstProfitUSD),
			"confidence":     fmtFloat(opp.Confidence),
			"ts_ms":          opp.Ts.UnixMilli(),
		},
	}).Err()
}

// PublishSignal appends a pairs-trade signal to its stream.
func (p *Publisher) PublishSignal(ctx context.Context, sig types.ZScoreSignal) error {
	return p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.sigStream,
		Values: map[string]interface{}{
			"pair1":      sig.Pair1,
			"pair2":      sig.Pair2,
			"z_score":    fmtFloat(sig.ZScore),
			"direction":  string(sig.Direction),
			"confidence": fmtFloat(sig.Confidence),
			"ts_ms":      sig.Ts.UnixMilli(),
		},
	}).Err()
}

// PublishPathProfit appends a profitable triangular path to its stream.
// The path field reads A->B->C->A.
func (p *Publisher) PublishPathProfit(ctx context.Context, pp types.PathProfit) error {
	return p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.triStream,
		Values: map[string]interface{}{
			"path":         strings.Join(pp.Path.Currencies[:], "->"),
			"pairs":        strings.Join(pp.Path.Pairs[:], ","),
			"start_amount": fmtFloat(pp.StartAmount),
			"end_amount":   fmtFloat(pp.EndAmount),
			"profit_pct":   fmtFloat(pp.ProfitPct),
		},
	}).Err()
}

func fmtFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
