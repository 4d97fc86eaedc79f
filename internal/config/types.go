package config

import (
	"strings"
	"time"
)

// Config 是 tradepilot 的主配置载体。
type Config struct {
	App        AppConfig        `toml:"app"`
	Trading    TradingConfig    `toml:"trading"`
	Exchange   ExchangeConfig   `toml:"exchange"`
	Database   DatabaseConfig   `toml:"database"`
	Model      ModelConfig      `toml:"model"`
	Alerts     AlertsConfig     `toml:"alerts"`
	Commentary CommentaryConfig `toml:"commentary"`
	Notify     NotifyConfig     `toml:"notify"`
}

type AppConfig struct {
	Env           string `toml:"env"`
	LogLevel      string `toml:"log_level"`
	HTTPAddr      string `toml:"http_addr"`
	LogPath       string `toml:"log_path"`
	LogMaxSizeMB  int    `toml:"log_max_size_mb"`
	LogMaxBackups int    `toml:"log_max_backups"`
}

// TradingConfig 描述交易循环：交易对、K线周期、下单数量与重试节奏。
type TradingConfig struct {
	Enabled             bool     `toml:"enabled"`
	Symbols             []string `toml:"symbols"`
	Timeframe           string   `toml:"timeframe"`
	Amount              float64  `toml:"amount"`
	OrderType           string   `toml:"order_type"`
	QuoteAsset          string   `toml:"quote_asset"`
	LookbackCandles     int      `toml:"lookback_candles"`
	RetrySeconds        int      `toml:"retry_seconds"`
	ErrorBackoffSeconds int      `toml:"error_backoff_seconds"`
	RecordPredictions   bool     `toml:"record_predictions"`
}

// RetryDelay is the wait after an empty market frame.
func (t TradingConfig) RetryDelay() time.Duration {
	return time.Duration(t.RetrySeconds) * time.Second
}

// ErrorBackoff is the wait after an unexpected cycle failure.
func (t TradingConfig) ErrorBackoff() time.Duration {
	return time.Duration(t.ErrorBackoffSeconds) * time.Second
}

// ExchangeConfig 选择交易场所并配置其重试策略。
type ExchangeConfig struct {
	Venue string `toml:"venue"`
	// MarketSource 选择 K 线来源：binance（默认，随 venue）或 gate。
	MarketSource       string `toml:"market_source"`
	APIKey             string `toml:"api_key"`
	APISecret          string `toml:"api_secret"`
	BaseURL            string `toml:"base_url"`
	Testnet            bool   `toml:"testnet"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
	MaxAttempts        int    `toml:"max_attempts"`
	BackoffBaseSeconds int    `toml:"backoff_base_seconds"`
	BackoffCapSeconds  int    `toml:"backoff_cap_seconds"`
	Jitter             bool   `toml:"jitter"`
	// 仅 paper 场所使用：初始计价资产余额。
	PaperQuoteBalance float64 `toml:"paper_quote_balance"`
}

type DatabaseConfig struct {
	Driver             string `toml:"driver"`
	DSN                string `toml:"dsn"`
	ConnectAttempts    int    `toml:"connect_attempts"`
	BackoffBaseSeconds int    `toml:"backoff_base_seconds"`
	BackoffCapSeconds  int    `toml:"backoff_cap_seconds"`
}

type ModelConfig struct {
	Path         string `toml:"path"`
	BackupPath   string `toml:"backup_path"`
	RuntimePath  string `toml:"runtime_path"`
	InputName    string `toml:"input_name"`
	OutputName   string `toml:"output_name"`
	FeatureCount int    `toml:"feature_count"`
	OutputSize   int    `toml:"output_size"`
}

// AlertsConfig 控制预测推送的开关文件、轮询周期与分类表。
type AlertsConfig struct {
	Enabled             bool           `toml:"enabled"`
	FlagPath            string         `toml:"flag_path"`
	IntervalSeconds     int            `toml:"interval_seconds"`
	CommentaryThreshold float64        `toml:"commentary_threshold"`
	Prediction          TaxonomyConfig `toml:"prediction"`
	Perpetual           TaxonomyConfig `toml:"perpetual"`
}

// Interval is the dispatcher polling period.
func (a AlertsConfig) Interval() time.Duration {
	return time.Duration(a.IntervalSeconds) * time.Second
}

type TaxonomyConfig struct {
	Symbols    []string `toml:"symbols"`
	Timeframes []string `toml:"timeframes"`
}

type CommentaryConfig struct {
	Enabled        bool    `toml:"enabled"`
	APIURL         string  `toml:"api_url"`
	APIKey         string  `toml:"api_key"`
	Model          string  `toml:"model"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
