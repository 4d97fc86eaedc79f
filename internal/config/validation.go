package config

import (
	"fmt"
	"strings"
)

var (
	knownDrivers    = map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	knownOrderTypes = map[string]bool{"market": true, "limit": true}
	knownSources    = map[string]bool{"": true, "binance": true, "gate": true}
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Trading.validate(); err != nil {
		return err
	}
	if err := c.Exchange.validate(c.Trading.Enabled); err != nil {
		return err
	}
	if err := c.Database.validate(); err != nil {
		return err
	}
	if err := c.Alerts.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (t *TradingConfig) validate() error {
	if !t.Enabled {
		return nil
	}
	if len(t.Symbols) == 0 {
		return fmt.Errorf("trading.symbols requires at least one symbol")
	}
	if t.Amount <= 0 {
		return fmt.Errorf("trading.amount must be > 0")
	}
	if !knownOrderTypes[t.OrderType] {
		return fmt.Errorf("trading.order_type %q is not supported", t.OrderType)
	}
	if !validTimeframe(t.Timeframe) {
		return fmt.Errorf("trading.timeframe %q is invalid", t.Timeframe)
	}
	if t.LookbackCandles < 30 {
		return fmt.Errorf("trading.lookback_candles must be >= 30")
	}
	return nil
}

func (e *ExchangeConfig) validate(trading bool) error {
	if e.MaxAttempts < 1 {
		return fmt.Errorf("exchange.max_attempts must be >= 1")
	}
	if !knownSources[e.MarketSource] {
		return fmt.Errorf("exchange.market_source %q is not supported (binance|gate)", e.MarketSource)
	}
	if e.BackoffCapSeconds < e.BackoffBaseSeconds {
		return fmt.Errorf("exchange.backoff_cap_seconds must be >= backoff_base_seconds")
	}
	if !trading || e.Venue == "paper" {
		return nil
	}
	if strings.TrimSpace(e.APIKey) == "" || strings.TrimSpace(e.APISecret) == "" {
		return fmt.Errorf("exchange.api_key/api_secret are required for venue %q (or set %s / %s)",
			e.Venue, EnvName("exchange.api_key"), EnvName("exchange.api_secret"))
	}
	return nil
}

func (d *DatabaseConfig) validate() error {
	if !knownDrivers[d.Driver] {
		return fmt.Errorf("database.driver %q is not supported (sqlite|postgres|mysql)", d.Driver)
	}
	if strings.TrimSpace(d.DSN) == "" {
		return fmt.Errorf("database.dsn cannot be empty")
	}
	if d.ConnectAttempts < 1 {
		return fmt.Errorf("database.connect_attempts must be >= 1")
	}
	return nil
}

func (a *AlertsConfig) validate() error {
	if !a.Enabled {
		return nil
	}
	if strings.TrimSpace(a.FlagPath) == "" {
		return fmt.Errorf("alerts.flag_path cannot be empty")
	}
	if a.CommentaryThreshold > 100 {
		return fmt.Errorf("alerts.commentary_threshold must be within (0, 100]")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	tg := n.Telegram
	if !tg.Enabled {
		return nil
	}
	if strings.TrimSpace(tg.BotToken) == "" || strings.TrimSpace(tg.ChatID) == "" {
		return fmt.Errorf("notify.telegram requires bot_token and chat_id when enabled")
	}
	return nil
}

// validTimeframe accepts "<n><unit>" with unit in m/h/d/w.
func validTimeframe(tf string) bool {
	tf = strings.TrimSpace(tf)
	if len(tf) < 2 {
		return false
	}
	switch tf[len(tf)-1] {
	case 'm', 'h', 'd', 'w':
	default:
		return false
	}
	for _, r := range tf[:len(tf)-1] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return tf[0] != '0'
}
