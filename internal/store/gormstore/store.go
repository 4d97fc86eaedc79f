// Package gormstore implements store.PersistentStore on gorm. The same code
// serves sqlite, postgres and mysql; queries passed to Execute use "?"
// placeholders which gorm rewrites per dialect.
package gormstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"tradepilot/internal/logger"
	"tradepilot/internal/metrics"
	"tradepilot/internal/retry"
	"tradepilot/internal/store"
	"tradepilot/internal/store/model"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrClosed is returned by every call after Close.
var ErrClosed = errors.New("store closed")

type Options struct {
	Driver string
	DSN    string
	// Connect governs the initial connection. Exhaustion is fatal to startup.
	Connect retry.Policy
}

// Store is a reconnecting gorm handle.
type Store struct {
	opts Options

	mu     sync.Mutex
	db     *gorm.DB
	closed bool
}

var _ store.PersistentStore = (*Store)(nil)

// Open connects with the connect policy and returns a ready handle.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Connect.Name == "" {
		opts.Connect.Name = "store.connect"
	}
	s := &Store{opts: opts}
	p := opts.Connect
	p.Retryable = func(err error) bool { return !errors.Is(err, errInvalidConfig) }
	p.OnRetry = func(attempt int, err error, wait time.Duration) {
		logger.Warnf("数据库连接失败 (%s) attempt #%d: %v; retrying in %s",
			describe(opts.Driver, opts.DSN), attempt, err, wait)
	}
	db, err := retry.Do(ctx, p, func(ctx context.Context) (*gorm.DB, error) {
		return dial(ctx, opts.Driver, opts.DSN)
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", describe(opts.Driver, opts.DSN), err)
	}
	s.db = db
	logger.Infof("store connected: %s", describe(opts.Driver, opts.DSN))
	return s, nil
}

func dial(ctx context.Context, driverName, dsn string) (*gorm.DB, error) {
	d, err := dialector(driverName, dsn)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(d, &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(driverName, "sqlite") || driverName == "" {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func (s *Store) handle() (*gorm.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.db, nil
}

func (s *Store) reconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	db, err := dial(ctx, s.opts.Driver, s.opts.DSN)
	if err != nil {
		return err
	}
	s.db = db
	metrics.StoreReconnects.Inc()
	return nil
}

// run executes op and, when the connection turned out to be broken,
// reconnects once and runs op again.
func (s *Store) run(ctx context.Context, name string, op func(db *gorm.DB) error) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	err = op(db.WithContext(ctx))
	if err == nil || !IsConnectionLost(err) {
		return err
	}
	logger.Warnf("store %s: connection lost (%v), reconnecting", name, err)
	if rerr := s.reconnect(ctx); rerr != nil {
		return fmt.Errorf("%s: reconnect failed: %v: %w", name, rerr, store.ErrConnectionLost)
	}
	db, err = s.handle()
	if err != nil {
		return err
	}
	return op(db.WithContext(ctx))
}

// IsConnectionLost reports whether err means the connection is gone.
func IsConnectionLost(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, store.ErrConnectionLost) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{
		"database is closed",
		"bad connection",
		"broken pipe",
		"connection reset",
		"connection refused",
		"server has gone away",
		"conn closed",
		"unexpected eof",
	} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

// EnsureSchema creates the trades and predictions tables. Safe to repeat.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.run(ctx, "ensure_schema", func(db *gorm.DB) error {
		return db.AutoMigrate(&model.TradeRecord{}, &model.PredictionRecord{})
	})
}

// Execute runs query inside a transaction that commits on success and rolls
// back on failure.
func (s *Store) Execute(ctx context.Context, query string, args []any, mode store.FetchMode) ([]store.Row, error) {
	var out []store.Row
	err := s.run(ctx, "execute", func(db *gorm.DB) error {
		out = nil
		return db.Transaction(func(tx *gorm.DB) error {
			if mode == store.FetchNone {
				return tx.Exec(query, args...).Error
			}
			var rows []map[string]any
			if err := tx.Raw(query, args...).Scan(&rows).Error; err != nil {
				return err
			}
			if mode == store.FetchOne && len(rows) > 1 {
				rows = rows[:1]
			}
			out = make([]store.Row, 0, len(rows))
			for _, r := range rows {
				out = append(out, r)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) LogTrade(ctx context.Context, rec *model.TradeRecord) error {
	if rec == nil {
		return errors.New("nil trade record")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	return s.run(ctx, "log_trade", func(db *gorm.DB) error {
		rec.ID = 0
		return db.Transaction(func(tx *gorm.DB) error {
			return tx.Create(rec).Error
		})
	})
}

func (s *Store) LogPrediction(ctx context.Context, rec *model.PredictionRecord) error {
	if rec == nil {
		return errors.New("nil prediction record")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	return s.run(ctx, "log_prediction", func(db *gorm.DB) error {
		rec.ID = 0
		return db.Transaction(func(tx *gorm.DB) error {
			return tx.Create(rec).Error
		})
	})
}

// UnsentPredictions returns pending rows oldest first.
func (s *Store) UnsentPredictions(ctx context.Context) ([]model.PredictionRecord, error) {
	var rows []model.PredictionRecord
	err := s.run(ctx, "unsent_predictions", func(db *gorm.DB) error {
		rows = nil
		return db.Where("sent_to_telegram = ?", false).Order("id ASC").Find(&rows).Error
	})
	return rows, err
}

// MarkPredictionSent flips the sent flag. Marking an already sent row is a no-op.
func (s *Store) MarkPredictionSent(ctx context.Context, id int64) error {
	return s.run(ctx, "mark_sent", func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			return tx.Model(&model.PredictionRecord{}).
				Where("id = ?", id).
				Update("sent_to_telegram", true).Error
		})
	})
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
