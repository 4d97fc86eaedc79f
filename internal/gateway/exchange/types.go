// Package exchange defines the venue abstraction used by the trade loop and
// the retrying client that masks transient venue failures.
package exchange

import (
	"context"
	"time"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// OrderRequest is what the trade loop asks a venue to execute.
type OrderRequest struct {
	Symbol   string    // internal form, e.g. "BTC/USDT"
	Type     OrderType // market or limit
	Side     Side
	Amount   float64 // base asset quantity
	Price    float64 // limit price, ignored for market orders
	ClientID string  // idempotency key, stable across retries of one request
}

// OrderConfirmation is returned only once the venue accepted the order.
type OrderConfirmation struct {
	ID       string
	ClientID string
	Symbol   string
	Side     Side
	Price    float64 // average fill price when known
	Amount   float64 // executed base quantity
	Status   string
	FilledAt time.Time
	Raw      map[string]any
}

// Venue is the raw, non-retrying surface of a trading venue.
type Venue interface {
	Name() string
	FetchBalance(ctx context.Context, asset string) (float64, error)
	CreateOrder(ctx context.Context, req OrderRequest) (OrderConfirmation, error)
	Close() error
}

// PositionReader is implemented by venues that can report an already open
// long position, used to resynchronise state after a restart.
type PositionReader interface {
	HasOpenPosition(ctx context.Context, symbol string, minAmount float64) (bool, error)
}
