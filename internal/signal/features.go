package signal

import (
	"fmt"
	"math"

	"tradepilot/internal/market"

	"github.com/markcheno/go-talib"
)

const (
	rsiPeriod        = 14
	emaPeriod        = 20
	atrPeriod        = 14
	volatilityPeriod = 20
	macdFast         = 12
	macdSlow         = 26
	macdSignal       = 9
)

// MinCandles is the shortest frame for which every feature is defined.
const MinCandles = macdSlow + macdSignal

// FeatureCount is the width of Features.Vector.
const FeatureCount = 12

// Features is the model input derived from the last closed candle.
type Features struct {
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
	RSI        float64
	EMA        float64
	MACD       float64
	MACDSignal float64
	MACDHist   float64
	ATR        float64
	// Volatility is the stdev of 1-bar returns in percent.
	Volatility float64
}

// BuildFeatures computes the feature set for the frame's last candle.
func BuildFeatures(frame market.Frame) (Features, error) {
	n := frame.Len()
	if n < MinCandles {
		return Features{}, fmt.Errorf("features: insufficient candles need %d got %d", MinCandles, n)
	}
	closes := frame.Closes()
	highs := frame.Highs()
	lows := frame.Lows()
	last, _ := frame.Last()

	macd, sig, hist := talib.Macd(closes, macdFast, macdSlow, macdSignal)
	returns := talib.Roc(closes, 1)
	f := Features{
		Open:       last.Open,
		High:       last.High,
		Low:        last.Low,
		Close:      last.Close,
		Volume:     last.Volume,
		RSI:        lastValue(talib.Rsi(closes, rsiPeriod)),
		EMA:        lastValue(talib.Ema(closes, emaPeriod)),
		MACD:       lastValue(macd),
		MACDSignal: lastValue(sig),
		MACDHist:   lastValue(hist),
		ATR:        lastValue(talib.Atr(highs, lows, closes, atrPeriod)),
		Volatility: lastValue(talib.StdDev(returns, volatilityPeriod, 1)),
	}
	return f, nil
}

// Vector is the fixed-order float32 input of the classifier.
func (f Features) Vector() []float32 {
	vals := [FeatureCount]float64{
		f.Open, f.High, f.Low, f.Close, f.Volume,
		f.RSI, f.EMA, f.MACD, f.MACDSignal, f.MACDHist,
		f.ATR, f.Volatility,
	}
	out := make([]float32, FeatureCount)
	for i, v := range vals {
		out[i] = float32(v)
	}
	return out
}

// Context is the indicator map handed to the commentary generator.
func (f Features) Context() map[string]any {
	return map[string]any{
		"close":      round(f.Close, 4),
		"volatility": round(f.Volatility, 2),
		"ema":        round(f.EMA, 4),
		"macd":       round(f.MACD, 6),
		"rsi":        round(f.RSI, 2),
	}
}

func lastValue(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	v := series[len(series)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
