package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DryRun bool `yaml:"dry_run"`

	Discovery struct {
		FromRank int `yaml:"from_rank"`
		ToRank   int `yaml:"to_rank"`
		Pick     int `yaml:"pick"`
	} `yaml:"discovery"`

	MEXC struct {
		RestURL     string  `yaml:"rest_url"`
		WsURL       string  `yaml:"ws_url"`
		TakerFeePct float64 `yaml:"taker_fee_pct"`
		MakerFeePct float64 `yaml:"maker_fee_pct"`
	} `yaml:"mexc"`

	Chain struct {
		RPCHTTP      string `yaml:"rpc_http"`
		GasLimitSwap uint64 `yaml:"gas_limit_swap"`
	} `yaml:"chain"`

	DEX struct {
		Name      string            `yaml:"name"`
		USDT      string            `yaml:"usdt"`
		Multicall string            `yaml:"multicall"`
		Factory   string            `yaml:"factory"`
		FeeTiers  []uint32          `yaml:"fee_tiers"`
		Tokens    map[string]string `yaml:"tokens"` // currency -> contract address
	} `yaml:"dex"`

	Redis struct {
		Addr      string `yaml:"addr"`
		DB        int    `yaml:"db"`
		Username  string `yaml:"username"`
		Password  string `yaml:"password"`
		ActiveKey string `yaml:"active_key"`
		MetaNS    string `yaml:"meta_ns"`
		OppStream string `yaml:"opp_stream"`
		SigStream string `yaml:"sig_stream"`
		TriStream string `yaml:"tri_stream"`
	} `yaml:"redis"`

	Metrics struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"metrics"`

	Triangular struct {
		StartCurrencies     []string `yaml:"start_currencies"`
		MaxPathsPerCurrency int      `yaml:"max_paths_per_currency"`
		MinProfitPct        float64  `yaml:"min_profit_pct"`
		StartAmount         float64  `yaml:"start_amount"`
		FeePct              float64  `yaml:"fee_pct"`
		BatchDelayMs        int      `yaml:"batch_delay_ms"`
		ScanIntervalMs      int      `yaml:"scan_interval_ms"`
	} `yaml:"triangular"`

	Spatial struct {
		MinProfitPct   float64 `yaml:"min_profit_pct"`
		MinQuantity    float64 `yaml:"min_quantity"`
		QuoteTimeoutMs int     `yaml:"quote_timeout_ms"`
		ScanIntervalMs int     `yaml:"scan_interval_ms"`
		IncludeGas     bool    `yaml:"include_gas"`
	} `yaml:"spatial"`

	Risk struct {
		MinProfitUSD  float64 `yaml:"min_profit_usd"`
		MinConfidence float64 `yaml:"min_confidence"`
	} `yaml:"risk"`

	StatArb struct {
		LookbackDays   int     `yaml:"lookback_days"`
		MaxPoints      int     `yaml:"max_points"`
		EntryZ         float64 `yaml:"entry_z"`
		ExitZ          float64 `yaml:"exit_z"`
		MinCorrelation float64 `yaml:"min_correlation"`
		CacheMinutes   int     `yaml:"cache_minutes"`
		TickIntervalMs int     `yaml:"tick_interval_ms"`
	} `yaml:"statarb"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Discovery.FromRank == 0 {
		c.Discovery.FromRank = 1
	}
	if c.Discovery.ToRank == 0 {
		c.Discovery.ToRank = 50
	}
	if c.Discovery.Pick == 0 {
		c.Discovery.Pick = 10
	}
	if c.MEXC.RestURL == "" {
		c.MEXC.RestURL = "https://api.mexc.com"
	}
	if c.MEXC.WsURL == "" {
		c.MEXC.WsURL = "wss://wbs-api.mexc.com/ws"
	}
	if c.MEXC.TakerFeePct == 0 {
		c.MEXC.TakerFeePct = 0.1
	}
	if c.Chain.GasLimitSwap == 0 {
		c.Chain.GasLimitSwap = 350_000
	}
	if len(c.DEX.FeeTiers) == 0 {
		c.DEX.FeeTiers = []uint32{100, 500, 3000, 10000}
	}
	if c.DEX.Name == "" {
		c.DEX.Name = "uniswap_v3"
	}
	if c.Redis.ActiveKey == "" {
		c.Redis.ActiveKey = "pair:active"
	}
	if c.Redis.MetaNS == "" {
		c.Redis.MetaNS = "pair:meta:"
	}
	if c.Redis.OppStream == "" {
		c.Redis.OppStream = "arb:opportunities"
	}
	if c.Redis.SigStream == "" {
		c.Redis.SigStream = "arb:signals"
	}
	if c.Redis.TriStream == "" {
		c.Redis.TriStream = "arb:triangular"
	}
	if c.Triangular.MaxPathsPerCurrency == 0 {
		c.Triangular.MaxPathsPerCurrency = 50
	}
	if c.Triangular.StartAmount == 0 {
		c.Triangular.StartAmount = 1.0
	}
	if c.Triangular.FeePct == 0 {
		c.Triangular.FeePct = c.MEXC.TakerFeePct
	}
	if c.Triangular.BatchDelayMs == 0 {
		c.Triangular.BatchDelayMs = 200
	}
	if c.Triangular.ScanIntervalMs == 0 {
		c.Triangular.ScanIntervalMs = 5000
	}
	if c.Spatial.MinQuantity == 0 {
		c.Spatial.MinQuantity = 1.0
	}
	if c.Spatial.QuoteTimeoutMs == 0 {
		c.Spatial.QuoteTimeoutMs = 3000
	}
	if c.Spatial.ScanIntervalMs == 0 {
		c.Spatial.ScanIntervalMs = 2000
	}
	if c.StatArb.LookbackDays == 0 {
		c.StatArb.LookbackDays = 30
	}
	if c.StatArb.MaxPoints == 0 {
		c.StatArb.MaxPoints = 10_000
	}
	if c.StatArb.EntryZ == 0 {
		c.StatArb.EntryZ = 2.0
	}
	if c.StatArb.ExitZ == 0 {
		c.StatArb.ExitZ = 0.5
	}
	if c.StatArb.MinCorrelation == 0 {
		c.StatArb.MinCorrelation = 0.7
	}
	if c.StatArb.CacheMinutes == 0 {
		c.StatArb.CacheMinutes = 15
	}
	if c.StatArb.TickIntervalMs == 0 {
		c.StatArb.TickIntervalMs = 1000
	}
}

// validate normalizes every configured token contract to its EIP-55 form so a
// mistyped address fails at startup instead of producing empty DEX quotes.
func (c *Config) validate() error {
	checkAddr := func(field, addr string) (string, error) {
		if strings.TrimSpace(addr) == "" {
			return "", nil
		}
		sum, err := ToChecksumAddress(addr)
		if err != nil {
			return "", fmt.Errorf("config: %s: %w", field, err)
		}
		return sum, nil
	}

	var err error
	if c.DEX.USDT, err = checkAddr("dex.usdt", c.DEX.USDT); err != nil {
		return err
	}
	if c.DEX.Multicall, err = checkAddr("dex.multicall", c.DEX.Multicall); err != nil {
		return err
	}
	if c.DEX.Factory, err = checkAddr("dex.factory", c.DEX.Factory); err != nil {
		return err
	}
	for sym, addr := range c.DEX.Tokens {
		sum, err := checkAddr("dex.tokens."+sym, addr)
		if err != nil {
			return err
		}
		c.DEX.Tokens[sym] = sum
	}
	return nil
}

func (c *Config) QuoteTimeout() time.Duration {
	return time.Duration(c.Spatial.QuoteTimeoutMs) * time.Millisecond
}
func (c *Config) SpatialScanInterval() time.Duration {
	return time.Duration(c.Spatial.ScanIntervalMs) * time.Millisecond
}
func (c *Config) TriangularScanInterval() time.Duration {
	return time.Duration(c.Triangular.ScanIntervalMs) * time.Millisecond
}
func (c *Config) TriangularBatchDelay() time.Duration {
	return time.Duration(c.Triangular.BatchDelayMs) * time.Millisecond
}
func (c *Config) StatArbTick() time.Duration {
	return time.Duration(c.StatArb.TickIntervalMs) * time.Millisecond
}
func (c *Config) CorrelationCacheTTL() time.Duration {
	return time.Duration(c.StatArb.CacheMinutes) * time.Minute
}
