package gormstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tradepilot/internal/retry"
	"tradepilot/internal/store"
	"tradepilot/internal/store/model"

	"github.com/spf13/cast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db", "tradepilot.db")
	s, err := Open(context.Background(), Options{
		Driver:  "sqlite",
		DSN:     path,
		Connect: retry.Policy{MaxAttempts: 1},
	})
	require.NoError(t, err)
	require.NoError(t, s.EnsureSchema(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.EnsureSchema(context.Background()))

	rows, err := s.Execute(context.Background(), "SELECT COUNT(*) AS n FROM predictions", nil, store.FetchOne)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 0, rows[0]["n"])
}

func TestSQLiteFileUsesWALAndBusyTimeout(t *testing.T) {
	assert.Equal(t, "file:/data/db/x.db?_busy_timeout=5000&_journal_mode=WAL&cache=shared", sqliteFileDSN("/data/db/x.db"))

	s := openTestStore(t)
	ctx := context.Background()
	rows, err := s.Execute(ctx, "PRAGMA journal_mode", nil, store.FetchOne)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "wal", strings.ToLower(cast.ToString(rows[0]["journal_mode"])))

	rows, err = s.Execute(ctx, "PRAGMA busy_timeout", nil, store.FetchOne)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 5000, cast.ToInt(rows[0]["timeout"]))
}

func TestLogTradeAssignsMonotonicIDs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := &model.TradeRecord{Symbol: "BTC/USDT", Type: "buy", Price: 100, Amount: 0.001, Status: "FILLED",
		Raw: model.RawJSON(map[string]any{"id": "1"})}
	second := &model.TradeRecord{Symbol: "BTC/USDT", Type: "sell", Price: 110, Amount: 0.001, Status: "FILLED"}
	require.NoError(t, s.LogTrade(ctx, first))
	require.NoError(t, s.LogTrade(ctx, second))
	assert.Greater(t, second.ID, first.ID)
	assert.False(t, first.Timestamp.IsZero())

	rows, err := s.Execute(ctx, "SELECT type FROM trades ORDER BY id", nil, store.FetchAll)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "buy", rows[0]["type"])
	assert.Equal(t, "sell", rows[1]["type"])
}

func TestPredictionQueue(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	price := 42000.5
	for _, p := range []*model.PredictionRecord{
		{Symbol: "BTC", Timeframe: "1h", Signal: "UP", Confidence: 95, Price: &price},
		{Symbol: "ETH", Timeframe: "1d", Signal: "DOWN", Confidence: 60},
	} {
		require.NoError(t, s.LogPrediction(ctx, p))
	}

	pending, err := s.UnsentPredictions(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "BTC", pending[0].Symbol)
	require.NotNil(t, pending[0].Price)
	assert.Equal(t, price, *pending[0].Price)
	assert.Nil(t, pending[1].Price)

	require.NoError(t, s.MarkPredictionSent(ctx, pending[0].ID))
	require.NoError(t, s.MarkPredictionSent(ctx, pending[0].ID))

	pending, err = s.UnsentPredictions(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "ETH", pending[0].Symbol)
}

func TestExecuteFailureLeavesStoreUsable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.Execute(ctx, "INSERT INTO missing_table (x) VALUES (?)", []any{1}, store.FetchNone)
	require.Error(t, err)

	_, err = s.Execute(ctx, "INSERT INTO trades (timestamp, symbol, type, price, amount, status) VALUES (?, ?, ?, ?, ?, ?)",
		[]any{time.Now().UTC(), "BTC/USDT", "buy", 1.0, 1.0, "FILLED"}, store.FetchNone)
	require.NoError(t, err)
	rows, err := s.Execute(ctx, "SELECT COUNT(*) AS n FROM trades", nil, store.FetchOne)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows[0]["n"])
}

func TestReconnectsOnceAfterLostConnection(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sqlDB, err := s.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	rec := &model.TradeRecord{Symbol: "ETH/USDT", Type: "buy", Price: 10, Amount: 1, Status: "FILLED"}
	require.NoError(t, s.LogTrade(ctx, rec))
	assert.NotZero(t, rec.ID)
}

func TestOpenExhaustsConnectAttempts(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	attempts := 0
	_, err := Open(context.Background(), Options{
		Driver: "sqlite",
		DSN:    filepath.Join(blocker, "sub", "db.sqlite"),
		Connect: retry.Policy{
			MaxAttempts: 3,
			Base:        time.Millisecond,
			Cap:         time.Millisecond,
			Sleep: func(context.Context, time.Duration) error {
				attempts++
				return nil
			},
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.Equal(t, 2, attempts)
}

func TestOpenRejectsUnknownDriverWithoutRetry(t *testing.T) {
	slept := false
	_, err := Open(context.Background(), Options{
		Driver: "oracle",
		DSN:    "x",
		Connect: retry.Policy{MaxAttempts: 5, Sleep: func(context.Context, time.Duration) error {
			slept = true
			return nil
		}},
	})
	require.Error(t, err)
	assert.False(t, slept)
	assert.NotErrorIs(t, err, retry.ErrExhausted)
}

func TestClosedStore(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	_, err := s.UnsentPredictions(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestIsConnectionLost(t *testing.T) {
	assert.True(t, IsConnectionLost(store.ErrConnectionLost))
	assert.True(t, IsConnectionLost(errors.New("sql: database is closed")))
	assert.False(t, IsConnectionLost(errors.New("UNIQUE constraint failed")))
	assert.False(t, IsConnectionLost(nil))
}
