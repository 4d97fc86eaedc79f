package livehttp

import (
	"context"
	"sync"
	"time"

	"tradepilot/internal/store"

	"github.com/spf13/cast"
)

const liveSignalsQuery = `SELECT id, timestamp, symbol, timeframe, signal, confidence, price, sent_to_telegram
FROM predictions WHERE confidence >= ? ORDER BY timestamp DESC, id DESC LIMIT ?`

// StoreSignals reads predictions through a dedicated store handle. Requests
// are serialized because a store handle is owned by one caller at a time.
type StoreSignals struct {
	mu    sync.Mutex
	store store.PersistentStore
}

func NewStoreSignals(st store.PersistentStore) *StoreSignals {
	return &StoreSignals{store: st}
}

func (s *StoreSignals) LiveSignals(ctx context.Context, minConfidence float64, limit int) ([]Signal, error) {
	s.mu.Lock()
	rows, err := s.store.Execute(ctx, liveSignalsQuery, []any{minConfidence, limit}, store.FetchAll)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([]Signal, 0, len(rows))
	for _, row := range rows {
		out = append(out, signalFromRow(row))
	}
	return out, nil
}

func signalFromRow(row store.Row) Signal {
	sig := Signal{
		ID:         cast.ToInt64(row["id"]),
		Symbol:     cast.ToString(row["symbol"]),
		Timeframe:  cast.ToString(row["timeframe"]),
		Signal:     cast.ToString(row["signal"]),
		Confidence: cast.ToFloat64(row["confidence"]),
		Sent:       cast.ToBool(row["sent_to_telegram"]),
	}
	if ts, err := cast.ToTimeE(row["timestamp"]); err == nil {
		sig.Timestamp = ts.UTC().Format(time.RFC3339)
	} else {
		sig.Timestamp = cast.ToString(row["timestamp"])
	}
	if raw, ok := row["price"]; ok && raw != nil {
		if p, err := cast.ToFloat64E(raw); err == nil {
			sig.Price = &p
		}
	}
	return sig
}
