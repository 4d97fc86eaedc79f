package exchange

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"tradepilot/internal/logger"
	"tradepilot/internal/metrics"
	"tradepilot/internal/retry"

	"github.com/google/uuid"
)

// Client wraps a Venue with the retry policy. It never mutates local state
// on failure; a returned error means no order was confirmed.
type Client struct {
	venue  Venue
	policy retry.Policy

	closeOnce sync.Once
	closeErr  error
	closed    chan struct{}
}

// NewClient applies policy to every venue call. The policy's Retryable
// predicate defaults to IsRetryable.
func NewClient(venue Venue, policy retry.Policy) *Client {
	if policy.Retryable == nil {
		policy.Retryable = IsRetryable
	}
	if policy.Name == "" {
		policy.Name = venue.Name()
	}
	return &Client{venue: venue, policy: policy, closed: make(chan struct{})}
}

func (c *Client) Name() string { return c.venue.Name() }

func (c *Client) policyFor(op string) retry.Policy {
	p := c.policy
	p.Name = c.venue.Name() + "." + op
	venue := c.venue.Name()
	userHook := p.OnRetry
	p.OnRetry = func(attempt int, err error, wait time.Duration) {
		metrics.ExchangeRetries.WithLabelValues(venue, op).Inc()
		logger.Warnf("exchange %s %s attempt #%d failed (%s): %v; retrying in %s",
			venue, op, attempt, KindOf(err), err, wait)
		if userHook != nil {
			userHook(attempt, err, wait)
		}
	}
	return p
}

func (c *Client) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// FetchBalance returns the free balance of asset.
func (c *Client) FetchBalance(ctx context.Context, asset string) (float64, error) {
	if c.isClosed() {
		return 0, ErrClosed
	}
	asset = strings.ToUpper(strings.TrimSpace(asset))
	logger.Infof("fetching %s balance from %s", asset, c.venue.Name())
	return retry.Do(ctx, c.policyFor("fetch_balance"), func(ctx context.Context) (float64, error) {
		return c.venue.FetchBalance(ctx, asset)
	})
}

// CreateOrder places an order and returns only on confirmed acceptance. One
// client order id is used for every attempt so a retried request that the
// venue already accepted is rejected rather than filled twice.
func (c *Client) CreateOrder(ctx context.Context, symbol string, typ OrderType, side Side, amount float64) (OrderConfirmation, error) {
	if c.isClosed() {
		return OrderConfirmation{}, ErrClosed
	}
	if amount <= 0 {
		return OrderConfirmation{}, Fatal(c.venue.Name(), "create_order", fmt.Errorf("amount must be > 0, got %v", amount))
	}
	req := OrderRequest{
		Symbol:   symbol,
		Type:     typ,
		Side:     side,
		Amount:   amount,
		ClientID: "tp-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24],
	}
	logger.Infof("creating %s %s order for %v %s on %s (client_id=%s)",
		side, typ, amount, symbol, c.venue.Name(), req.ClientID)
	conf, err := retry.Do(ctx, c.policyFor("create_order"), func(ctx context.Context) (OrderConfirmation, error) {
		return c.venue.CreateOrder(ctx, req)
	})
	if err != nil {
		metrics.Orders.WithLabelValues(c.venue.Name(), string(side), "failed").Inc()
		logger.Errorf("order %s %s %s failed: %v", side, symbol, req.ClientID, err)
		return OrderConfirmation{}, err
	}
	metrics.Orders.WithLabelValues(c.venue.Name(), string(side), "filled").Inc()
	logger.Infof("order placed id=%s %s %v %s @ %v", conf.ID, side, conf.Amount, symbol, conf.Price)
	return conf, nil
}

// HasOpenPosition asks the venue whether a long position of at least
// minAmount exists. Venues without position support return
// ErrPositionsUnsupported.
func (c *Client) HasOpenPosition(ctx context.Context, symbol string, minAmount float64) (bool, error) {
	if c.isClosed() {
		return false, ErrClosed
	}
	reader, ok := c.venue.(PositionReader)
	if !ok {
		return false, ErrPositionsUnsupported
	}
	return retry.Do(ctx, c.policyFor("open_position"), func(ctx context.Context) (bool, error) {
		return reader.HasOpenPosition(ctx, symbol, minAmount)
	})
}

// Close releases the venue connection. It is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.closeErr = c.venue.Close()
		logger.Infof("exchange %s connection closed", c.venue.Name())
	})
	return c.closeErr
}
