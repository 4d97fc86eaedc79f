// Package gate reads USDT-settled perpetual klines from Gate.io. It is a
// market data source only; orders still go to the configured venue.
package gate

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tradepilot/internal/logger"
	"tradepilot/internal/market"
	symbolpkg "tradepilot/internal/pkg/symbol"
	"tradepilot/internal/scheduler"

	"github.com/antihax/optional"
	gateapi "github.com/gateio/gateapi-go/v7"
)

const (
	gateSettle          = "usdt"
	gateMaxHistoryLimit = 2000
	defaultGateREST     = "https://api.gateio.ws/api/v4"
)

type Source struct {
	rest  *gateapi.APIClient
	nowFn func() time.Time
}

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	restClient, err := newRESTClient(final)
	if err != nil {
		return nil, err
	}
	return &Source{rest: restClient, nowFn: time.Now}, nil
}

func newRESTClient(cfg Config) (*gateapi.APIClient, error) {
	conf := gateapi.NewConfiguration()
	conf.BasePath = cfg.RESTBaseURL

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	if cfg.RESTProxyURL != "" {
		proxyURL, err := url.Parse(cfg.RESTProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid gate REST proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	conf.HTTPClient = httpClient
	return gateapi.NewAPIClient(conf), nil
}

// contract maps "BTC/USDT" or "BTC" to Gate's "BTC_USDT".
func contract(symbol string) string {
	return symbolpkg.Gate.ToExchange(symbol)
}

// gateInterval converts a timeframe to Gate's spelling; weeks are "7d".
func gateInterval(tf string) string {
	if tf == "1w" {
		return "7d"
	}
	return tf
}

func (s *Source) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	fetch := limit + 1
	if fetch > gateMaxHistoryLimit {
		fetch = gateMaxHistoryLimit
	}
	exchangeSymbol := contract(symbol)
	if exchangeSymbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	dur, err := scheduler.ParseTimeframe(interval)
	if err != nil {
		return nil, err
	}

	opts := &gateapi.ListFuturesCandlesticksOpts{
		Limit:    optional.NewInt32(int32(fetch)),
		Interval: optional.NewString(gateInterval(interval)),
	}
	kls, _, err := s.rest.FuturesApi.ListFuturesCandlesticks(ctx, gateSettle, exchangeSymbol, opts)
	if err != nil {
		logger.Errorf("[gate] fetch kline failed %s %s limit=%d: %v", symbol, interval, fetch, err)
		return nil, err
	}

	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		openTime := int64(kl.T * 1000)
		out = append(out, market.Candle{
			OpenTime:  openTime,
			CloseTime: openTime + dur.Milliseconds() - 1,
			Open:      parseFloat(kl.O),
			High:      parseFloat(kl.H),
			Low:       parseFloat(kl.L),
			Close:     parseFloat(kl.C),
			Volume:    parseFloat(kl.Sum),
		})
	}
	out = scheduler.DropUnclosedKline(out, dur, s.nowFn())
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}
