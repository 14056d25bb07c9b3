package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "dry_run: true\n"))
	require.NoError(t, err)

	assert.True(t, cfg.DryRun)
	assert.Equal(t, "https://api.mexc.com", cfg.MEXC.RestURL)
	assert.Equal(t, 0.1, cfg.MEXC.TakerFeePct)
	assert.Equal(t, []uint32{100, 500, 3000, 10000}, cfg.DEX.FeeTiers)
	assert.Equal(t, "arb:opportunities", cfg.Redis.OppStream)
	assert.Equal(t, 50, cfg.Triangular.MaxPathsPerCurrency)
	assert.Equal(t, 0.1, cfg.Triangular.FeePct) // inherits the CEX taker fee
	assert.Equal(t, 2.0, cfg.StatArb.EntryZ)
	assert.Equal(t, 0.5, cfg.StatArb.ExitZ)
	assert.Equal(t, 10_000, cfg.StatArb.MaxPoints)

	assert.Equal(t, 3*time.Second, cfg.QuoteTimeout())
	assert.Equal(t, 2*time.Second, cfg.SpatialScanInterval())
	assert.Equal(t, 5*time.Second, cfg.TriangularScanInterval())
	assert.Equal(t, 200*time.Millisecond, cfg.TriangularBatchDelay())
	assert.Equal(t, time.Second, cfg.StatArbTick())
	assert.Equal(t, 15*time.Minute, cfg.CorrelationCacheTTL())
}

func TestLoadNormalizesAddresses(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
dex:
  usdt: "0xdac17f958d2ee523a2206206994597c13d831ec7"
  tokens:
    ETH: "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
`))
	require.NoError(t, err)
	assert.Equal(t, "0xdAC17F958D2ee523a2206206994597C13D831ec7", cfg.DEX.USDT)
	assert.Equal(t, "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", cfg.DEX.Tokens["ETH"])
}

func TestLoadRejectsBadAddress(t *testing.T) {
	_, err := Load(writeConfig(t, `
dex:
  usdt: "0x1234"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dex.usdt")
}

func TestLoadRejectsBadTokenAddress(t *testing.T) {
	_, err := Load(writeConfig(t, `
dex:
  tokens:
    ETH: "not-an-address"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dex.tokens.ETH")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
triangular:
  start_currencies: ["USDT", "BTC"]
  min_profit_pct: 0.8
  scan_interval_ms: 10000
statarb:
  entry_z: 2.5
  cache_minutes: 5
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"USDT", "BTC"}, cfg.Triangular.StartCurrencies)
	assert.Equal(t, 0.8, cfg.Triangular.MinProfitPct)
	assert.Equal(t, 10*time.Second, cfg.TriangularScanInterval())
	assert.Equal(t, 2.5, cfg.StatArb.EntryZ)
	assert.Equal(t, 5*time.Minute, cfg.CorrelationCacheTTL())
}

func TestToChecksumAddress(t *testing.T) {
	sum, err := ToChecksumAddress("0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359")
	require.NoError(t, err)
	assert.Equal(t, "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359", sum)

	_, err = ToChecksumAddress("0xzz6916095ca1df60bb79ce92ce3ea74c37c5d359")
	assert.Error(t, err)
}
