// Package trader drives one symbol through the FLAT/LONG position state
// machine, paced to candle boundaries.
package trader

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"tradepilot/internal/gateway/exchange"
	"tradepilot/internal/logger"
	"tradepilot/internal/market"
	"tradepilot/internal/metrics"
	"tradepilot/internal/pkg/symbol"
	"tradepilot/internal/scheduler"
	"tradepilot/internal/signal"
	"tradepilot/internal/store"
	"tradepilot/internal/store/model"

	"go.uber.org/multierr"
)

type PositionState string

const (
	Flat PositionState = "FLAT"
	Long PositionState = "LONG"
)

// Exchange is the order surface of exchange.Client.
type Exchange interface {
	CreateOrder(ctx context.Context, symbol string, typ exchange.OrderType, side exchange.Side, amount float64) (exchange.OrderConfirmation, error)
	HasOpenPosition(ctx context.Context, symbol string, minAmount float64) (bool, error)
	Close() error
}

// Evaluator is the signal engine.
type Evaluator interface {
	Evaluate(frame market.Frame) signal.Decision
}

type Options struct {
	Symbol            string
	Timeframe         string
	Amount            float64
	OrderType         exchange.OrderType
	Lookback          int
	RetryDelay        time.Duration
	ErrorBackoff      time.Duration
	RecordPredictions bool
}

// errNoFrame means the market frame was unavailable; the cycle is retried
// after RetryDelay without waiting for the next boundary.
var errNoFrame = errors.New("market frame unavailable")

// Orchestrator owns the position of one symbol. It is not safe for
// concurrent use; Run is its only driver.
type Orchestrator struct {
	opts   Options
	unit   time.Duration
	source market.Source
	engine Evaluator
	exch   Exchange
	store  store.TradeLogger

	state PositionState

	nowFn   func() time.Time
	sleepFn func(ctx context.Context, d time.Duration) error
}

func New(opts Options, source market.Source, engine Evaluator, exch Exchange, st store.TradeLogger) (*Orchestrator, error) {
	if source == nil || engine == nil || exch == nil || st == nil {
		return nil, fmt.Errorf("trader: source, engine, exchange and store are required")
	}
	unit, err := scheduler.ParseTimeframe(opts.Timeframe)
	if err != nil {
		return nil, err
	}
	if opts.Amount <= 0 {
		return nil, fmt.Errorf("trader: amount must be > 0")
	}
	if opts.OrderType == "" {
		opts.OrderType = exchange.OrderTypeMarket
	}
	if opts.Lookback <= 0 {
		opts.Lookback = signal.MinCandles * 2
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Minute
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = time.Minute
	}
	opts.Symbol = strings.ToUpper(strings.TrimSpace(opts.Symbol))
	return &Orchestrator{
		opts:    opts,
		unit:    unit,
		source:  source,
		engine:  engine,
		exch:    exch,
		store:   st,
		state:   Flat,
		nowFn:   time.Now,
		sleepFn: scheduler.Sleep,
	}, nil
}

func (o *Orchestrator) State() PositionState { return o.state }

func (o *Orchestrator) setState(s PositionState) {
	o.state = s
	metrics.SetPosition(o.opts.Symbol, s == Long)
}

// Resync reads the venue's open position once at startup. Any failure,
// including a venue without position support, leaves the state FLAT.
func (o *Orchestrator) Resync(ctx context.Context) {
	logger.Infof("synchronizing position state for %s...", o.opts.Symbol)
	open, err := o.exch.HasOpenPosition(ctx, o.opts.Symbol, o.opts.Amount)
	switch {
	case errors.Is(err, exchange.ErrPositionsUnsupported):
		logger.Warnf("venue cannot report positions for %s, assuming FLAT", o.opts.Symbol)
		o.setState(Flat)
	case err != nil:
		logger.Warnf("failed to synchronize position for %s: %v; assuming FLAT", o.opts.Symbol, err)
		o.setState(Flat)
	case open:
		logger.Infof("found existing position for %s, state LONG", o.opts.Symbol)
		o.setState(Long)
	default:
		logger.Infof("no open position for %s, state FLAT", o.opts.Symbol)
		o.setState(Flat)
	}
}

// Cycle fetches one frame, evaluates it and applies the signal.
func (o *Orchestrator) Cycle(ctx context.Context) error {
	logger.Infof("fetching market data for %s %s...", o.opts.Symbol, o.opts.Timeframe)
	frame, err := market.FetchFrame(ctx, o.source, o.opts.Symbol, o.opts.Timeframe, o.opts.Lookback)
	if err != nil {
		return fmt.Errorf("%w: %v", errNoFrame, err)
	}
	if frame.Empty() {
		return errNoFrame
	}
	d := o.engine.Evaluate(frame)
	o.recordPrediction(ctx, frame, d)
	return o.Apply(ctx, d.Signal)
}

// Apply runs the state machine for one signal. State only changes after the
// venue confirmed the order.
func (o *Orchestrator) Apply(ctx context.Context, sig signal.Signal) error {
	var side exchange.Side
	var next PositionState
	switch {
	case sig == signal.Buy && o.state == Flat:
		side, next = exchange.SideBuy, Long
	case sig == signal.Sell && o.state == Long:
		side, next = exchange.SideSell, Flat
	default:
		logger.Infof("%s signal for %s while %s, no action taken", sig, o.opts.Symbol, o.state)
		return nil
	}
	logger.Infof("%s signal received for %s, executing trade", sig, o.opts.Symbol)
	conf, err := o.exch.CreateOrder(ctx, o.opts.Symbol, o.opts.OrderType, side, o.opts.Amount)
	if err != nil {
		return fmt.Errorf("%s %s order not placed: %w", side, o.opts.Symbol, err)
	}
	prev := o.state
	o.setState(next)
	logger.Infof("position %s: %s -> %s (order %s)", o.opts.Symbol, prev, next, conf.ID)

	rec := &model.TradeRecord{
		Timestamp: conf.FilledAt,
		Symbol:    o.opts.Symbol,
		Type:      string(side),
		Price:     conf.Price,
		Amount:    conf.Amount,
		Status:    strings.ToLower(conf.Status),
		OrderID:   conf.ID,
		Raw:       model.RawJSON(conf.Raw),
	}
	if rec.Amount <= 0 {
		rec.Amount = o.opts.Amount
	}
	if rec.Status == "" {
		rec.Status = "filled"
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = o.nowFn().UTC()
	}
	if err := o.store.LogTrade(ctx, rec); err != nil {
		return fmt.Errorf("order %s confirmed but trade record failed: %w", conf.ID, err)
	}
	return nil
}

func (o *Orchestrator) recordPrediction(ctx context.Context, frame market.Frame, d signal.Decision) {
	if !o.opts.RecordPredictions || d.Signal == signal.Hold {
		return
	}
	price := d.Price
	rec := &model.PredictionRecord{
		Timestamp:  o.nowFn().UTC(),
		Symbol:     symbol.Coin(frame.Symbol),
		Timeframe:  frame.Timeframe,
		Signal:     d.Signal.Direction(),
		Confidence: d.Confidence,
		Price:      &price,
	}
	if err := o.store.LogPrediction(ctx, rec); err != nil {
		logger.Warnf("failed to record prediction for %s: %v", frame.Symbol, err)
	}
}

// Run resyncs, then loops until ctx is cancelled. The exchange and store
// handles are closed on every exit path.
func (o *Orchestrator) Run(ctx context.Context) (err error) {
	defer func() {
		if cerr := o.Close(); cerr != nil {
			logger.Errorf("closing %s handles: %v", o.opts.Symbol, cerr)
		}
	}()
	o.Resync(ctx)
	logger.Infof("trade loop for %s started (timeframe %s, amount %v)", o.opts.Symbol, o.opts.Timeframe, o.opts.Amount)
	for {
		if ctx.Err() != nil {
			logger.Infof("trade loop for %s cancelled", o.opts.Symbol)
			return nil
		}
		var wait time.Duration
		cerr := o.safeCycle(ctx)
		switch {
		case cerr == nil:
			now := o.nowFn()
			wait = scheduler.UntilNextBoundary(now, o.unit)
			logger.Infof("next check for %s in %.2f minutes at %s",
				o.opts.Symbol, wait.Minutes(), now.UTC().Add(wait).Format(time.RFC3339))
		case ctx.Err() != nil:
			continue
		case errors.Is(cerr, errNoFrame):
			wait = o.opts.RetryDelay
			logger.Warnf("could not fetch market data for %s (%v), retrying in %s", o.opts.Symbol, cerr, wait)
		default:
			wait = o.opts.ErrorBackoff
			metrics.CycleFailures.WithLabelValues("trade").Inc()
			logger.Errorf("an error occurred in the trade loop for %s: %v; backing off %s", o.opts.Symbol, cerr, wait)
		}
		if serr := o.sleepFn(ctx, wait); serr != nil {
			logger.Infof("trade loop for %s cancelled", o.opts.Symbol)
			return nil
		}
	}
}

// safeCycle 把单次 cycle 中的 panic 转为错误，循环照常退避后继续。
func (o *Orchestrator) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("trade cycle for %s panicked: %v", o.opts.Symbol, r)
			debug.PrintStack()
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return o.Cycle(ctx)
}

// Close releases the exchange and store handles.
func (o *Orchestrator) Close() error {
	logger.Infof("stopping trade loop for %s and closing connections...", o.opts.Symbol)
	return multierr.Combine(o.exch.Close(), o.store.Close())
}
