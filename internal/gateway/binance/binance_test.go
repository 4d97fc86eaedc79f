package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tradepilot/internal/gateway/exchange"

	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyAPIError(t *testing.T) {
	cases := []struct {
		code int64
		kind exchange.ErrorKind
	}{
		{-1003, exchange.KindExchange},
		{-1001, exchange.KindNetwork},
		{-1007, exchange.KindTimeout},
		{-2015, exchange.KindFatal},
		{-2010, exchange.KindFatal},
		{-1121, exchange.KindFatal},
	}
	for _, tc := range cases {
		err := classify("binance", "create_order", &common.APIError{Code: tc.code, Message: "x"})
		assert.Equal(t, tc.kind, exchange.KindOf(err), "code %d", tc.code)
		var xe *exchange.Error
		require.True(t, errors.As(err, &xe))
		assert.Equal(t, tc.code, xe.Code)
	}
}

func TestClassifyTransportError(t *testing.T) {
	err := classify("binance", "fetch_balance", context.DeadlineExceeded)
	assert.Equal(t, exchange.KindTimeout, exchange.KindOf(err))
	assert.True(t, exchange.IsRetryable(err))
}

func TestFormatQuantity(t *testing.T) {
	q, err := formatQuantity(0.0012345, decimal.RequireFromString("0.00001"))
	require.NoError(t, err)
	assert.Equal(t, "0.00123", q)

	q, err = formatQuantity(12.7, decimal.RequireFromString("1"))
	require.NoError(t, err)
	assert.Equal(t, "12", q)

	_, err = formatQuantity(0.0000001, decimal.RequireFromString("0.001"))
	assert.Error(t, err)

	q, err = formatQuantity(0.5, decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, "0.5", q)
}

func TestSpotSourceDropsOpenCandle(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.Header().Set("Content-Type", "application/json")
		body := "["
		for i := 0; i < 3; i++ {
			open := base.Add(time.Duration(i) * time.Hour).UnixMilli()
			if i > 0 {
				body += ","
			}
			body += fmt.Sprintf(`[%d,"100","110","90","%d","5",%d,"500",42,"1","1","0"]`,
				open, 101+i, open+time.Hour.Milliseconds()-1)
		}
		body += "]"
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	src, err := NewSource(Config{BaseURL: srv.URL}, MarketSpot)
	require.NoError(t, err)
	// 12:30 时最后一根 12:00 K 线尚未收盘
	src.nowFn = func() time.Time { return base.Add(2*time.Hour + 30*time.Minute) }

	candles, err := src.FetchHistory(context.Background(), "BTC/USDT", "1h", 10)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, 102.0, candles[1].Close)
	assert.Equal(t, int64(42), candles[0].Trades)
}

func TestSourceLimitTrimsOldest(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		body := "["
		for i := 0; i < 4; i++ {
			open := base.Add(time.Duration(i) * time.Minute).UnixMilli()
			if i > 0 {
				body += ","
			}
			body += fmt.Sprintf(`[%d,"1","1","1","%d","1",%d,"1",1,"1","1","0"]`, open, i, open+59999)
		}
		_, _ = w.Write([]byte(body + "]"))
	}))
	defer srv.Close()

	src, err := NewSource(Config{BaseURL: srv.URL}, MarketFutures)
	require.NoError(t, err)
	src.nowFn = func() time.Time { return base.Add(time.Hour) }

	candles, err := src.FetchHistory(context.Background(), "ETH", "1m", 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, 3.0, candles[1].Close)
}

func TestNewSpotVenueRequiresKeys(t *testing.T) {
	_, err := NewSpotVenue(Config{}, "USDT")
	require.Error(t, err)
	assert.Equal(t, exchange.KindFatal, exchange.KindOf(err))
}
