package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tradepilot/internal/market"
	symbolpkg "tradepilot/internal/pkg/symbol"
	"tradepilot/internal/scheduler"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
)

const maxHistoryLimit = 1000

// Market selects which Binance kline endpoint a Source reads.
type Market string

const (
	MarketSpot    Market = "spot"
	MarketFutures Market = "futures"
)

// Source 基于 go-binance SDK 实现 market.Source，只返回已收盘的 K 线。
type Source struct {
	market  Market
	spot    *gobinance.Client
	futures *futures.Client
	nowFn   func() time.Time
}

func NewSource(cfg Config, m Market) (*Source, error) {
	final := cfg.withDefaults()
	hc, err := final.httpClient()
	if err != nil {
		return nil, err
	}
	s := &Source{market: m, nowFn: time.Now}
	switch m {
	case MarketFutures:
		client := futures.NewClient("", "")
		client.BaseURL = final.futuresURL()
		client.HTTPClient = hc
		s.futures = client
	case MarketSpot, "":
		client := gobinance.NewClient("", "")
		client.BaseURL = final.spotURL()
		client.HTTPClient = hc
		s.spot = client
		s.market = MarketSpot
	default:
		return nil, fmt.Errorf("unknown binance market %q", m)
	}
	return s, nil
}

func (s *Source) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	// 多取一根，用于抵消被丢弃的未收盘 K 线
	fetch := limit + 1
	if fetch > maxHistoryLimit {
		fetch = maxHistoryLimit
	}
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	// Binance requires symbols without slashes (e.g., ETHUSDT)
	cleanSymbol := symbolpkg.Binance.ToExchange(symbolpkg.Pair(symbol, ""))

	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	var (
		out []market.Candle
		err error
	)
	if s.market == MarketFutures {
		out, err = s.futuresKlines(ctx, cleanSymbol, interval, fetch)
	} else {
		out, err = s.spotKlines(ctx, cleanSymbol, interval, fetch)
	}
	if err != nil {
		return nil, classify("binance", "fetch_klines", err)
	}
	if dur, perr := scheduler.ParseTimeframe(interval); perr == nil {
		out = scheduler.DropUnclosedKline(out, dur, s.nowFn())
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *Source) spotKlines(ctx context.Context, sym, interval string, limit int) ([]market.Candle, error) {
	kls, err := s.spot.NewKlinesService().Symbol(sym).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
			Trades:    kl.TradeNum,
		})
	}
	return out, nil
}

func (s *Source) futuresKlines(ctx context.Context, sym, interval string, limit int) ([]market.Candle, error) {
	kls, err := s.futures.NewKlinesService().Symbol(sym).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
			Trades:    kl.TradeNum,
		})
	}
	return out, nil
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}
