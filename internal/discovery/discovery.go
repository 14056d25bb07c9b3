package discovery

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/you/arb-engine/internal/config"
	"github.com/you/arb-engine/internal/connectors/redisfeed"
	"github.com/you/arb-engine/internal/types"
	"go.uber.org/zap"
)

// Service selects the pair universe the detectors will watch: a ranked
// window of USDT pairs by 24h quote volume, narrowed to a random pick and
// published to Redis for other services.
type Service struct {
	cfg *config.Config
	log *zap.Logger
	pub *redisfeed.Publisher
}

func NewService(cfg *config.Config, log *zap.Logger) *Service {
	return &Service{
		cfg: cfg,
		log: log,
		pub: redisfeed.NewPublisher(cfg),
	}
}

// Run fetches, ranks and publishes the pair set, and returns it for the
// caller to wire straight into the detectors.
func (s *Service) Run(ctx context.Context) ([]types.PairMeta, error) {
	s.log.Info("starting pair discovery")

	tickers, err := s.fetchTicker24h(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tickers: %w", err)
	}
	if len(tickers) == 0 {
		return nil, fmt.Errorf("empty response on tickers")
	}

	// Отбираем /USDT пары и сортируем по quote volume.
	type row struct {
		Sym string
		QV  float64
	}
	rows := make([]row, 0, len(tickers))
	for _, r := range tickers {
		sym := strings.ToUpper(strings.TrimSpace(r.Symbol))
		if !strings.HasSuffix(sym, "USDT") {
			continue
		}
		lp := toF(r.LastPrice)
		vol := toF(r.Volume)
		qv := toF(r.QuoteVolume)
		if !isFinite(qv) && lp > 0 && vol > 0 {
			qv = lp * vol
		}
		if qv <= 0 {
			continue
		}
		rows = append(rows, row{Sym: sym, QV: qv})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].QV > rows[j].QV })

	fromRank := s.cfg.Discovery.FromRank
	toRank := s.cfg.Discovery.ToRank
	if fromRank < 1 {
		fromRank = 1
	}
	start := fromRank - 1
	if start > len(rows) {
		start = len(rows)
	}
	end := toRank
	if end > len(rows) {
		end = len(rows)
	}
	// инвертированное окно (from > to) — просто пустая выборка
	if end < start {
		end = start
	}
	window := rows[start:end]
	s.log.Info("rank window", zap.Int("from", fromRank), zap.Int("to", toRank), zap.Int("total_pairs", len(window)))
	if len(window) == 0 {
		return nil, nil
	}

	// Contract addresses come from the configured token map: a pair whose
	// base has no contract still trades on the CEX side.
	pairs := make([]types.PairMeta, 0, len(window))
	for i, r := range window {
		base := strings.TrimSuffix(r.Sym, "USDT")
		pairs = append(pairs, types.PairMeta{
			Symbol: r.Sym,
			Base:   base,
			Quote:  "USDT",
			Addr:   strings.TrimSpace(s.cfg.DEX.Tokens[base]),
			Rank:   fromRank + i,
		})
	}

	pick := s.cfg.Discovery.Pick
	if pick > len(pairs) {
		pick = len(pairs)
	}
	sample := cryptShuffle(pairs)[:pick]

	nowMs := time.Now().UnixMilli()
	s.log.Info("publishing pairs to redis", zap.Int("count", len(sample)))
	for _, pm := range sample {
		if err := s.pub.UpsertPairMeta(ctx, pm, nowMs); err != nil {
			s.log.Warn("failed to upsert pair meta", zap.String("symbol", pm.Symbol), zap.Error(err))
			continue
		}
		s.log.Info("published pair",
			zap.String("symbol", pm.Symbol),
			zap.String("base", pm.Base),
			zap.String("addr", pm.Addr),
			zap.Int("rank", pm.Rank),
		)
	}

	s.log.Info("pair discovery finished")
	return sample, nil
}

type t24 struct {
	Symbol      string `json:"symbol"`
	LastPrice   string `json:"lastPrice"`
	Volume      string `json:"volume"`
	QuoteVolume string `json:"quoteVolume"`
}

func (s *Service) fetchTicker24h(ctx context.Context) ([]t24, error) {
	baseURL := s.cfg.MEXC.RestURL
	if baseURL == "" {
		baseURL = "https://api.mexc.com"
	}
	fullURL, err := url.JoinPath(baseURL, "/api/v3/ticker/24hr")
	if err != nil {
		return nil, fmt.Errorf("failed to create mexc api url: %w", err)
	}

	req, _ := http.NewRequestWithContext(ctx, "GET", fullURL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var arr []t24
	if err := json.NewDecoder(resp.Body).Decode(&arr); err != nil {
		return nil, err
	}
	return arr, nil
}

func toF(s string) float64    { f, _ := strconv.ParseFloat(s, 64); return f }
func isFinite(f float64) bool { return !((f != f) || (f > 1e308) || (f < -1e308)) }

func cryptShuffle[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	for i := len(out) - 1; i > 0; i-- {
		j := crandInt(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func crandInt(n int) int {
	if n <= 1 {
		return 0
	}
	bi, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(bi.Int64())
}
