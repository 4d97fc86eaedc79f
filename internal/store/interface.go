// Package store defines the persisted state shared by the trade loop and the
// alert dispatcher. The two never talk to each other; the store is their only
// coupling.
package store

import (
	"context"
	"errors"

	"tradepilot/internal/store/model"
)

// FetchMode selects what Execute returns.
type FetchMode int

const (
	FetchNone FetchMode = iota
	FetchOne
	FetchAll
)

// Row is one result row keyed by column name.
type Row = map[string]any

// ErrConnectionLost marks a failure caused by a broken connection. The store
// reconnects once and retries the operation.
var ErrConnectionLost = errors.New("store connection lost")

// TradeLogger is what the trade loop needs.
type TradeLogger interface {
	LogTrade(ctx context.Context, rec *model.TradeRecord) error
	LogPrediction(ctx context.Context, rec *model.PredictionRecord) error
	Close() error
}

// PredictionQueue is what the alert dispatcher needs.
type PredictionQueue interface {
	UnsentPredictions(ctx context.Context) ([]model.PredictionRecord, error)
	MarkPredictionSent(ctx context.Context, id int64) error
	Close() error
}

// PersistentStore is the full surface of a store handle. A handle is not
// safe for concurrent use by several components; open one per component.
type PersistentStore interface {
	TradeLogger
	PredictionQueue
	EnsureSchema(ctx context.Context) error
	Execute(ctx context.Context, query string, args []any, mode FetchMode) ([]Row, error)
}
