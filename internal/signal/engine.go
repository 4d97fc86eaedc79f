// Package signal maps a market frame to a trading signal through the
// classifier. The engine holds no state between calls.
package signal

import (
	"tradepilot/internal/classifier"
	"tradepilot/internal/logger"
	"tradepilot/internal/market"
	"tradepilot/internal/metrics"
)

type Signal string

const (
	Buy  Signal = "buy"
	Sell Signal = "sell"
	Hold Signal = "hold"
)

// Direction renders a signal the way predictions are stored: UP, DOWN, HOLD.
func (s Signal) Direction() string {
	switch s {
	case Buy:
		return "UP"
	case Sell:
		return "DOWN"
	default:
		return "HOLD"
	}
}

// Decision is one evaluation result. Features are zero when the frame was
// too short to compute them.
type Decision struct {
	Signal     Signal
	Confidence float64
	Price      float64
	Features   Features
}

type Engine struct {
	clf classifier.Classifier
}

func NewEngine(clf classifier.Classifier) *Engine {
	return &Engine{clf: clf}
}

// FromLabel maps +1 to buy, -1 to sell and anything else to hold.
func FromLabel(label int) Signal {
	switch label {
	case classifier.LabelUp:
		return Buy
	case classifier.LabelDown:
		return Sell
	default:
		return Hold
	}
}

// Evaluate never fails: a frame that cannot be evaluated or a classifier
// error yields hold.
func (e *Engine) Evaluate(frame market.Frame) Decision {
	last, ok := frame.Last()
	if !ok {
		logger.Warnf("market frame for %s is empty, holding", frame.Symbol)
		return Decision{Signal: Hold}
	}
	d := Decision{Signal: Hold, Price: last.Close}
	feats, err := BuildFeatures(frame)
	if err != nil {
		logger.Warnf("%s %s: %v, holding", frame.Symbol, frame.Timeframe, err)
		return d
	}
	d.Features = feats
	pred, err := e.clf.Predict(feats.Vector())
	if err != nil {
		logger.Errorf("error during model prediction for %s: %v", frame.Symbol, err)
		return d
	}
	d.Signal = FromLabel(pred.Label)
	d.Confidence = pred.Confidence
	metrics.Signals.WithLabelValues(frame.Symbol, string(d.Signal)).Inc()
	logger.Infof("signal %s for %s %s (confidence %.2f%%, close %.4f)",
		d.Signal, frame.Symbol, frame.Timeframe, d.Confidence, d.Price)
	return d
}
