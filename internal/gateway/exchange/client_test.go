package exchange

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"tradepilot/internal/market"
	"tradepilot/internal/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockVenue struct {
	mock.Mock
}

func (m *mockVenue) Name() string { return "mock" }

func (m *mockVenue) FetchBalance(ctx context.Context, asset string) (float64, error) {
	args := m.Called(ctx, asset)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockVenue) CreateOrder(ctx context.Context, req OrderRequest) (OrderConfirmation, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(OrderConfirmation), args.Error(1)
}

func (m *mockVenue) Close() error {
	return m.Called().Error(0)
}

type recordedSleeps struct {
	waits []time.Duration
}

func (r *recordedSleeps) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func testPolicy(s *recordedSleeps) retry.Policy {
	return retry.Policy{MaxAttempts: 3, Base: 4 * time.Second, Cap: 10 * time.Second, Sleep: s.sleep}
}

func TestCreateOrderRetriesTransientThenSucceeds(t *testing.T) {
	venue := new(mockVenue)
	var ids []string
	venue.On("CreateOrder", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { ids = append(ids, args.Get(1).(OrderRequest).ClientID) }).
		Return(OrderConfirmation{}, NewError(KindNetwork, "mock", "create_order", errors.New("reset"))).Once()
	venue.On("CreateOrder", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { ids = append(ids, args.Get(1).(OrderRequest).ClientID) }).
		Return(OrderConfirmation{ID: "42", Price: 100, Amount: 0.001}, nil).Once()

	sleeps := &recordedSleeps{}
	client := NewClient(venue, testPolicy(sleeps))
	conf, err := client.CreateOrder(context.Background(), "BTC/USDT", OrderTypeMarket, SideBuy, 0.001)
	require.NoError(t, err)
	assert.Equal(t, "42", conf.ID)
	assert.Equal(t, []time.Duration{4 * time.Second}, sleeps.waits)
	require.Len(t, ids, 2)
	assert.Equal(t, ids[0], ids[1], "client id must be stable across retries")
	assert.NotEmpty(t, ids[0])
	venue.AssertExpectations(t)
}

func TestCreateOrderExhaustion(t *testing.T) {
	venue := new(mockVenue)
	venue.On("CreateOrder", mock.Anything, mock.Anything).
		Return(OrderConfirmation{}, NewError(KindTimeout, "mock", "create_order", errors.New("slow")))

	sleeps := &recordedSleeps{}
	client := NewClient(venue, testPolicy(sleeps))
	_, err := client.CreateOrder(context.Background(), "BTC/USDT", OrderTypeMarket, SideSell, 0.001)
	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.Equal(t, KindTimeout, KindOf(err))
	venue.AssertNumberOfCalls(t, "CreateOrder", 3)
	assert.Equal(t, []time.Duration{4 * time.Second, 8 * time.Second}, sleeps.waits)
}

func TestCreateOrderFatalIsNotRetried(t *testing.T) {
	venue := new(mockVenue)
	venue.On("CreateOrder", mock.Anything, mock.Anything).
		Return(OrderConfirmation{}, Fatal("mock", "create_order", errors.New("insufficient balance"))).Once()

	sleeps := &recordedSleeps{}
	client := NewClient(venue, testPolicy(sleeps))
	_, err := client.CreateOrder(context.Background(), "BTC/USDT", OrderTypeMarket, SideBuy, 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, retry.ErrExhausted)
	assert.Equal(t, KindFatal, KindOf(err))
	assert.Empty(t, sleeps.waits)
	venue.AssertExpectations(t)
}

func TestFetchBalanceRetriesNetwork(t *testing.T) {
	venue := new(mockVenue)
	venue.On("FetchBalance", mock.Anything, "USDT").
		Return(0.0, NewError(KindExchange, "mock", "fetch_balance", errors.New("busy"))).Once()
	venue.On("FetchBalance", mock.Anything, "USDT").Return(250.5, nil).Once()

	client := NewClient(venue, testPolicy(&recordedSleeps{}))
	bal, err := client.FetchBalance(context.Background(), "usdt")
	require.NoError(t, err)
	assert.Equal(t, 250.5, bal)
}

// slowVenue calls a real HTTP endpoint with a short client timeout.
type slowVenue struct {
	mockVenue
	url   string
	httpc *http.Client
}

func (v *slowVenue) FetchBalance(ctx context.Context, asset string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := v.httpc.Do(req)
	if err != nil {
		return 0, Classify("slow", "fetch_balance", err)
	}
	resp.Body.Close()
	return 1, nil
}

func TestFetchBalanceRetriesHTTPClientTimeout(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(200 * time.Millisecond):
		}
	}))
	defer srv.Close()

	venue := &slowVenue{url: srv.URL, httpc: &http.Client{Timeout: 20 * time.Millisecond}}
	sleeps := &recordedSleeps{}
	client := NewClient(venue, testPolicy(sleeps))

	_, err := client.FetchBalance(context.Background(), "USDT")
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.Equal(t, []time.Duration{4 * time.Second, 8 * time.Second}, sleeps.waits)
	assert.Eventually(t, func() bool { return hits.Load() == 3 }, time.Second, 10*time.Millisecond)
}

func TestHasOpenPositionUnsupported(t *testing.T) {
	client := NewClient(new(mockVenue), testPolicy(&recordedSleeps{}))
	_, err := client.HasOpenPosition(context.Background(), "BTC/USDT", 0.001)
	assert.ErrorIs(t, err, ErrPositionsUnsupported)
}

func TestCloseIsIdempotent(t *testing.T) {
	venue := new(mockVenue)
	venue.On("Close").Return(nil).Once()
	client := NewClient(venue, testPolicy(&recordedSleeps{}))
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
	venue.AssertNumberOfCalls(t, "Close", 1)

	_, err := client.FetchBalance(context.Background(), "USDT")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRegistryUnknownVenue(t *testing.T) {
	reg := NewRegistry()
	reg.Register("paper", func() (Venue, error) { return NewPaperVenue(nil, "1h", "USDT", 100), nil })

	v, err := reg.New("PAPER")
	require.NoError(t, err)
	assert.Equal(t, "paper", v.Name())

	_, err = reg.New("kraken")
	assert.ErrorIs(t, err, ErrUnknownVenue)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewError(KindNetwork, "v", "op", errors.New("x"))))
	assert.False(t, IsRetryable(Fatal("v", "op", errors.New("x"))))
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.False(t, IsRetryable(errors.New("invalid api key")))
}

type staticSource struct {
	price float64
}

func (s staticSource) FetchHistory(context.Context, string, string, int) ([]market.Candle, error) {
	return []market.Candle{{OpenTime: 1, Close: s.price}}, nil
}

func TestPaperVenueRoundTrip(t *testing.T) {
	paper := NewPaperVenue(staticSource{price: 100}, "1h", "USDT", 1000)
	ctx := context.Background()

	buy, err := paper.CreateOrder(ctx, OrderRequest{Symbol: "BTC/USDT", Type: OrderTypeMarket, Side: SideBuy, Amount: 2, ClientID: "a"})
	require.NoError(t, err)
	assert.Equal(t, 100.0, buy.Price)

	again, err := paper.CreateOrder(ctx, OrderRequest{Symbol: "BTC/USDT", Type: OrderTypeMarket, Side: SideBuy, Amount: 2, ClientID: "a"})
	require.NoError(t, err)
	assert.Equal(t, buy.ID, again.ID, "a replayed client id must not fill twice")

	quote, _ := paper.FetchBalance(ctx, "USDT")
	assert.Equal(t, 800.0, quote)
	open, err := paper.HasOpenPosition(ctx, "BTC/USDT", 2)
	require.NoError(t, err)
	assert.True(t, open)

	_, err = paper.CreateOrder(ctx, OrderRequest{Symbol: "BTC/USDT", Type: OrderTypeMarket, Side: SideSell, Amount: 3, ClientID: "b"})
	assert.Equal(t, KindFatal, KindOf(err))

	_, err = paper.CreateOrder(ctx, OrderRequest{Symbol: "BTC/USDT", Type: OrderTypeMarket, Side: SideSell, Amount: 2, ClientID: "c"})
	require.NoError(t, err)
	quote, _ = paper.FetchBalance(ctx, "USDT")
	assert.Equal(t, 1000.0, quote)
}
