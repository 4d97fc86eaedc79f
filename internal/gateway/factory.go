package gateway

import (
	"fmt"
	"strings"
	"time"

	"tradepilot/internal/config"
	"tradepilot/internal/gateway/binance"
	"tradepilot/internal/gateway/exchange"
	"tradepilot/internal/gateway/gate"
	"tradepilot/internal/market"
	"tradepilot/internal/retry"
)

func binanceConfig(cfg config.ExchangeConfig) binance.Config {
	return binance.Config{
		APIKey:      cfg.APIKey,
		APISecret:   cfg.APISecret,
		Testnet:     cfg.Testnet,
		BaseURL:     cfg.BaseURL,
		HTTPTimeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
}

// NewSourceFromConfig returns the kline source: Gate.io perpetual klines when
// market_source is gate, else the Binance klines matching the venue.
func NewSourceFromConfig(cfg *config.Config) (market.Source, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if cfg.Exchange.MarketSource == "gate" {
		return gate.New(gate.Config{HTTPTimeout: time.Duration(cfg.Exchange.TimeoutSeconds) * time.Second})
	}
	bc := binanceConfig(cfg.Exchange)
	// 行情为公开接口，不需要密钥
	bc.APIKey, bc.APISecret = "", ""
	switch strings.ToLower(cfg.Exchange.Venue) {
	case "binance-futures":
		return binance.NewSource(bc, binance.MarketFutures)
	case "", "binance", "paper":
		return binance.NewSource(bc, binance.MarketSpot)
	default:
		return nil, fmt.Errorf("unsupported market source for venue: %s", cfg.Exchange.Venue)
	}
}

// NewVenueRegistry registers every venue this build knows about.
func NewVenueRegistry(cfg *config.Config, src market.Source) *exchange.Registry {
	reg := exchange.NewRegistry()
	reg.Register("binance", func() (exchange.Venue, error) {
		return binance.NewSpotVenue(binanceConfig(cfg.Exchange), cfg.Trading.QuoteAsset)
	})
	reg.Register("binance-futures", func() (exchange.Venue, error) {
		return binance.NewFuturesVenue(binanceConfig(cfg.Exchange), cfg.Trading.QuoteAsset)
	})
	reg.Register("paper", func() (exchange.Venue, error) {
		return exchange.NewPaperVenue(src, cfg.Trading.Timeframe, cfg.Trading.QuoteAsset, cfg.Exchange.PaperQuoteBalance), nil
	})
	return reg
}

// RetryPolicy builds the venue retry policy from config.
func RetryPolicy(cfg config.ExchangeConfig) retry.Policy {
	return retry.Policy{
		Name:        cfg.Venue,
		MaxAttempts: cfg.MaxAttempts,
		Base:        time.Duration(cfg.BackoffBaseSeconds) * time.Second,
		Cap:         time.Duration(cfg.BackoffCapSeconds) * time.Second,
		Jitter:      cfg.Jitter,
		Retryable:   exchange.IsRetryable,
	}
}

// NewExchangeClient builds the configured venue wrapped in the retrying client.
func NewExchangeClient(cfg *config.Config, src market.Source) (*exchange.Client, error) {
	venue, err := NewVenueRegistry(cfg, src).New(cfg.Exchange.Venue)
	if err != nil {
		return nil, err
	}
	return exchange.NewClient(venue, RetryPolicy(cfg.Exchange)), nil
}
