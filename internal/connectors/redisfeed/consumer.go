package redisfeed

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/you/arb-engine/internal/config"
	"github.com/you/arb-engine/internal/types"
)

// Consumer is the read side: pair metadata lookups plus opportunity stream
// consumption for downstream services.
type Consumer struct {
	rdb       *redis.Client
	activeKey string
	metaNS    string
	oppStream string
}

func NewConsumer(cfg *config.Config) *Consumer {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
	})
	return &Consumer{
		rdb:       rdb,
		activeKey: cfg.Redis.ActiveKey,
		metaNS:    cfg.Redis.MetaNS,
		oppStream: cfg.Redis.OppStream,
	}
}

func (c *Consumer) Close() error { return c.rdb.Close() }

// ReadPairMeta читает HASH pair:meta:<SYMBOL> и возвращает метаданные пары.
func (c *Consumer) ReadPairMeta(ctx context.Context, symbol string) (types.PairMeta, error) {
	m, err := c.rdb.HGetAll(ctx, c.metaNS+symbol).Result()
	if err != nil {
		return types.PairMeta{}, err
	}
	if len(m) == 0 {
		return types.PairMeta{}, redis.Nil
	}
	rank, _ := strconv.Atoi(m["rank"])
	return types.PairMeta{
		Symbol: m["symbol"],
		Base:   m["base"],
		Quote:  m["quote"],
		Addr:   m["addr"],
		Rank:   rank,
	}, nil
}

// RecentPairSymbols возвращает символы из ZSET активных пар новее sinceMs.
func (c *Consumer) RecentPairSymbols(ctx context.Context, sinceMs int64) ([]string, error) {
	return c.rdb.ZRangeByScore(ctx, c.activeKey, &redis.ZRangeBy{
		Min: strconv.FormatInt(sinceMs, 10),
		Max: "+inf",
	}).Result()
}

// StreamConsumeOpportunities reads the opportunity stream through a
// consumer group and forwards decoded records until ctx is cancelled.
// Create the group once:  XGROUP CREATE arb:opportunities feed $ MKSTREAM
func (c *Consumer) StreamConsumeOpportunities(ctx context.Context, group, consumer string, out chan<- types.ArbitrageOpportunity) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{c.oppStream, ">"},
			Count:    200,
			Block:    time.Second,
		}).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			time.Sleep(200 * time.Millisecond)
			continue
		}
		for _, s := range streams {
			for _, m := range s.Messages {
				opp := decodeOpportunity(m.Values)
				if opp.ID != "" && opp.Pair != "" {
					select {
					case out <- opp:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
				_ = c.rdb.XAck(ctx, c.oppStream, group, m.ID).Err()
			}
		}
	}
}

func decodeOpportunity(values map[string]interface{}) types.ArbitrageOpportunity {
	str := func(key string) string {
		v, _ := values[key].(string)
		return v
	}
	num := func(key string) float64 {
		f, _ := strconv.ParseFloat(str(key), 64)
		return f
	}

	opp := types.ArbitrageOpportunity{
		ID:           str("id"),
		Pair:         str("pair"),
		BuyExchange:  str("buy_exchange"),
		SellExchange: str("sell_exchange"),
		BuyPrice:     num("buy_price"),
		SellPrice:    num("sell_price"),
		SpreadPct:    num("spread_pct"),
		EstProfitPct: num("est_profit_pct"),
		EstProfitUSD: num("est_profit_usd"),
		Confidence:   num("confidence"),
	}
	if ms, err := strconv.ParseInt(str("ts_ms"), 10, 64); err == nil {
		opp.Ts = time.UnixMilli(ms)
	}
	return opp
}
