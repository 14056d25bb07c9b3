package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	TriPathsProfitable = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arb_tri_paths_profitable",
		Help: "Profitable triangular paths found in the last sweep",
	})

	TriBestProfitPct = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arb_tri_best_profit_pct",
		Help: "Best triangular profit (pct) in the last sweep",
	})

	SpatialOpportunities = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arb_spatial_opportunities",
		Help: "Spatial opportunities found in the last sweep",
	})

	SpatialBestProfitPct = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arb_spatial_best_profit_pct",
		Help: "Best spatial estimated profit (pct) in the last sweep",
	})

	FeedErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_feed_errors_total",
		Help: "Price feed failures (timeouts included)",
	}, []string{"feed"})

	FeedQuoteLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "arb_feed_quote_latency_seconds",
		Help:    "Time to obtain one venue quote",
		Buckets: prometheus.DefBuckets,
	})

	StatArbSignals = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_statarb_signals_total",
		Help: "Z-score signals emitted, by direction",
	}, []string{"direction"})

	StatArbSuitablePairs = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arb_statarb_suitable_pairs",
		Help: "Pairs passing the correlation/cointegration screen",
	})
)

func init() {
	prometheus.MustRegister(
		TriPathsProfitable,
		TriBestProfitPct,
		SpatialOpportunities,
		SpatialBestProfitPct,
		FeedErrors,
		FeedQuoteLatency,
		StatArbSignals,
		StatArbSuitablePairs,
	)
}
