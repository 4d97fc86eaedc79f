package config

import (
	"strings"
)

// 默认值常量
const (
	defaultAppEnv              = "dev"
	defaultAppLogLevel         = "info"
	defaultAppHTTPAddr         = ":9991"
	defaultTradingSymbol       = "BTC/USDT"
	defaultTradingAmount       = 0.001
	defaultTradingTimeframe    = "1h"
	defaultTradingOrderType    = "market"
	defaultTradingQuote        = "USDT"
	defaultTradingLookback     = 120
	defaultTradingRetry        = 60
	defaultTradingErrorBackoff = 60
	defaultExchangeVenue       = "binance"
	defaultExchangeTimeout     = 15
	defaultExchangeAttempts    = 3
	defaultExchangeBackoffBase = 4
	defaultExchangeBackoffCap  = 10
	defaultDatabaseDriver      = "sqlite"
	defaultDatabaseDSN         = "/data/db/tradepilot.db"
	defaultDatabaseAttempts    = 5
	defaultDatabaseBackoffBase = 2
	defaultDatabaseBackoffCap  = 10
	defaultModelPath           = "/data/models/model.onnx"
	defaultModelBackupPath     = "/data/models/backup_model.onnx"
	defaultModelInputName      = "input"
	defaultModelOutputName     = "output"
	defaultModelOutputSize     = 2
	defaultAlertsFlagPath      = "/data/alerts_on.flag"
	defaultAlertsInterval      = 300
	defaultAlertsThreshold     = 70
	defaultCommentaryAPIURL    = "https://api.openai.com/v1"
	defaultCommentaryModel     = "gpt-3.5-turbo"
	defaultCommentaryTemp      = 0.7
	defaultCommentaryTimeout   = 15
)

var (
	defaultSymbols              = []string{"BTC", "ETH", "SOL", "DOGE", "XRP", "ADA", "WIF", "1000PEPE"}
	defaultPredictionSymbols    = []string{"BTC", "ETH", "SOL"}
	defaultPredictionTimeframes = []string{"30m", "1h", "1d"}
	defaultPerpetualTimeframes  = []string{"1m", "5m", "10m", "15m"}
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Trading.applyDefaults(keys)
	c.Exchange.applyDefaults(keys)
	c.Database.applyDefaults(keys)
	c.Model.applyDefaults(keys)
	c.Alerts.applyDefaults(keys)
	c.Commentary.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (t *TradingConfig) applyDefaults(keys keySet) {
	if t == nil {
		return
	}
	applyFieldDefaults(keys,
		boolFieldDefault("trading.enabled", &t.Enabled, true),
		listFieldDefault("trading.symbols", &t.Symbols, []string{defaultTradingSymbol}),
		fieldDefault{
			key:   "trading.amount",
			need:  func() bool { return t.Amount <= 0 },
			apply: func() { t.Amount = defaultTradingAmount },
		},
		stringFieldDefault("trading.timeframe", &t.Timeframe, defaultTradingTimeframe),
		stringFieldDefault("trading.order_type", &t.OrderType, defaultTradingOrderType),
		stringFieldDefault("trading.quote_asset", &t.QuoteAsset, defaultTradingQuote),
		intFieldDefault("trading.lookback_candles", &t.LookbackCandles, defaultTradingLookback),
		intFieldDefault("trading.retry_seconds", &t.RetrySeconds, defaultTradingRetry),
		intFieldDefault("trading.error_backoff_seconds", &t.ErrorBackoffSeconds, defaultTradingErrorBackoff),
	)
	t.Symbols = normalizeList(t.Symbols, strings.ToUpper)
	t.Timeframe = strings.ToLower(strings.TrimSpace(t.Timeframe))
	t.OrderType = strings.ToLower(strings.TrimSpace(t.OrderType))
	t.QuoteAsset = strings.ToUpper(strings.TrimSpace(t.QuoteAsset))
}

func (e *ExchangeConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("exchange.venue", &e.Venue, defaultExchangeVenue),
		intFieldDefault("exchange.timeout_seconds", &e.TimeoutSeconds, defaultExchangeTimeout),
		intFieldDefault("exchange.max_attempts", &e.MaxAttempts, defaultExchangeAttempts),
		intFieldDefault("exchange.backoff_base_seconds", &e.BackoffBaseSeconds, defaultExchangeBackoffBase),
		intFieldDefault("exchange.backoff_cap_seconds", &e.BackoffCapSeconds, defaultExchangeBackoffCap),
	)
	e.Venue = strings.ToLower(strings.TrimSpace(e.Venue))
	e.MarketSource = strings.ToLower(strings.TrimSpace(e.MarketSource))
}

func (d *DatabaseConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("database.driver", &d.Driver, defaultDatabaseDriver),
		stringFieldDefault("database.dsn", &d.DSN, defaultDatabaseDSN),
		intFieldDefault("database.connect_attempts", &d.ConnectAttempts, defaultDatabaseAttempts),
		intFieldDefault("database.backoff_base_seconds", &d.BackoffBaseSeconds, defaultDatabaseBackoffBase),
		intFieldDefault("database.backoff_cap_seconds", &d.BackoffCapSeconds, defaultDatabaseBackoffCap),
	)
	d.Driver = strings.ToLower(strings.TrimSpace(d.Driver))
}

func (m *ModelConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("model.path", &m.Path, defaultModelPath),
		stringFieldDefault("model.backup_path", &m.BackupPath, defaultModelBackupPath),
		stringFieldDefault("model.input_name", &m.InputName, defaultModelInputName),
		stringFieldDefault("model.output_name", &m.OutputName, defaultModelOutputName),
		intFieldDefault("model.output_size", &m.OutputSize, defaultModelOutputSize),
	)
}

func (a *AlertsConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		boolFieldDefault("alerts.enabled", &a.Enabled, true),
		stringFieldDefault("alerts.flag_path", &a.FlagPath, defaultAlertsFlagPath),
		intFieldDefault("alerts.interval_seconds", &a.IntervalSeconds, defaultAlertsInterval),
		fieldDefault{
			key:   "alerts.commentary_threshold",
			need:  func() bool { return a.CommentaryThreshold <= 0 },
			apply: func() { a.CommentaryThreshold = defaultAlertsThreshold },
		},
		listFieldDefault("alerts.prediction.symbols", &a.Prediction.Symbols, defaultPredictionSymbols),
		listFieldDefault("alerts.prediction.timeframes", &a.Prediction.Timeframes, defaultPredictionTimeframes),
		listFieldDefault("alerts.perpetual.symbols", &a.Perpetual.Symbols, defaultSymbols),
		listFieldDefault("alerts.perpetual.timeframes", &a.Perpetual.Timeframes, defaultPerpetualTimeframes),
	)
	a.Prediction.Symbols = normalizeList(a.Prediction.Symbols, strings.ToUpper)
	a.Prediction.Timeframes = normalizeList(a.Prediction.Timeframes, strings.ToLower)
	a.Perpetual.Symbols = normalizeList(a.Perpetual.Symbols, strings.ToUpper)
	a.Perpetual.Timeframes = normalizeList(a.Perpetual.Timeframes, strings.ToLower)
}

func (c *CommentaryConfig) applyDefaults(keys keySet) {
	if c == nil {
		return
	}
	applyFieldDefaults(keys,
		boolFieldDefault("commentary.enabled", &c.Enabled, true),
		stringFieldDefault("commentary.api_url", &c.APIURL, defaultCommentaryAPIURL),
		stringFieldDefault("commentary.model", &c.Model, defaultCommentaryModel),
		fieldDefault{
			key:   "commentary.temperature",
			need:  func() bool { return c.Temperature <= 0 },
			apply: func() { c.Temperature = defaultCommentaryTemp },
		},
		intFieldDefault("commentary.timeout_seconds", &c.TimeoutSeconds, defaultCommentaryTimeout),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func listFieldDefault(key string, target *[]string, def []string) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && len(*target) == 0 },
		apply: func() {
			if target != nil {
				*target = append([]string(nil), def...)
			}
		},
	}
}

func normalizeList(items []string, fold func(string) string) []string {
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		item = fold(strings.TrimSpace(item))
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}
