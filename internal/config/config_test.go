package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", "exchange:\n  venue: paper\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"BTC/USDT"}, cfg.Trading.Symbols)
	assert.Equal(t, "1h", cfg.Trading.Timeframe)
	assert.Equal(t, 0.001, cfg.Trading.Amount)
	assert.Equal(t, 3, cfg.Exchange.MaxAttempts)
	assert.Equal(t, 4, cfg.Exchange.BackoffBaseSeconds)
	assert.Equal(t, 10, cfg.Exchange.BackoffCapSeconds)
	assert.Equal(t, 5, cfg.Database.ConnectAttempts)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, float64(70), cfg.Alerts.CommentaryThreshold)
	assert.Equal(t, 300, cfg.Alerts.IntervalSeconds)
	assert.Equal(t, []string{"30m", "1h", "1d"}, cfg.Alerts.Prediction.Timeframes)
	assert.Equal(t, "gpt-3.5-turbo", cfg.Commentary.Model)
	assert.True(t, cfg.Alerts.Enabled)
}

func TestLoadKeepsExplicitFalse(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", "trading:\n  enabled: false\ncommentary:\n  enabled: false\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Trading.Enabled)
	assert.False(t, cfg.Commentary.Enabled)
}

func TestLoadNormalizesLists(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", `
exchange:
  venue: PAPER
  market_source: Gate
trading:
  symbols: [" btc/usdt", "BTC/USDT", "eth/usdt"]
  order_type: LIMIT
alerts:
  perpetual:
    symbols: [doge, "  wif "]
    timeframes: [5M]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "paper", cfg.Exchange.Venue)
	assert.Equal(t, "gate", cfg.Exchange.MarketSource)
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, cfg.Trading.Symbols)
	assert.Equal(t, "limit", cfg.Trading.OrderType)
	assert.Equal(t, []string{"DOGE", "WIF"}, cfg.Alerts.Perpetual.Symbols)
	assert.Equal(t, []string{"5m"}, cfg.Alerts.Perpetual.Timeframes)
}

func TestLoadIncludesAndOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "base.yaml", "exchange:\n  venue: paper\ntrading:\n  amount: 0.5\n  timeframe: 4h\n")
	path := writeConfig(t, dir, "config.yaml", "include: [base.yaml]\ntrading:\n  amount: 0.25\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.25, cfg.Trading.Amount)
	assert.Equal(t, "4h", cfg.Trading.Timeframe)
}

func TestLoadIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.yaml", "include: [b.yaml]\n")
	path := writeConfig(t, dir, "b.yaml", "include: [a.yaml]\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "include cycle")
}

func TestEnvOverridesSecrets(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", "exchange:\n  venue: binance\n")
	t.Setenv(EnvName("exchange.api_key"), "k")
	t.Setenv(EnvName("exchange.api_secret"), "s")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "k", cfg.Exchange.APIKey)
	assert.Equal(t, "s", cfg.Exchange.APISecret)
	assert.Equal(t, "TRADEPILOT_NOTIFY_TELEGRAM_BOT_TOKEN", EnvName("notify.telegram.bot_token"))
}

func TestValidationErrors(t *testing.T) {
	cases := map[string]string{
		"exchange:\n  venue: binance\n":                                        "api_key",
		"exchange:\n  venue: paper\n  market_source: kraken\n":                 "market_source",
		"exchange:\n  venue: paper\ntrading:\n  order_type: stop\n":            "order_type",
		"exchange:\n  venue: paper\ntrading:\n  timeframe: 0h\n":               "timeframe",
		"exchange:\n  venue: paper\ndatabase:\n  driver: oracle\n":             "database.driver",
		"exchange:\n  venue: paper\nnotify:\n  telegram:\n    enabled: true\n": "bot_token",
		"exchange:\n  venue: paper\ntrading:\n  lookback_candles: 10\n":        "lookback_candles",
	}
	for body, want := range cases {
		path := writeConfig(t, t.TempDir(), "config.yaml", body)
		_, err := Load(path)
		assert.ErrorContains(t, err, want, body)
	}
}

func TestValidTimeframe(t *testing.T) {
	for _, tf := range []string{"1m", "15m", "1h", "4h", "1d", "1w"} {
		assert.True(t, validTimeframe(tf), tf)
	}
	for _, tf := range []string{"", "m", "0m", "1y", "h1", "1.5h"} {
		assert.False(t, validTimeframe(tf), tf)
	}
}
