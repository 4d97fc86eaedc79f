package market

import "time"

// Candle is one OHLCV bar. Times are unix milliseconds as returned by the venue.
type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Trades    int64   `json:"trades"`
}

// Time returns the candle open time.
func (c Candle) Time() time.Time {
	return time.UnixMilli(c.OpenTime).UTC()
}

// Frame is an ordered, oldest-first candle sequence for one symbol/timeframe.
// It is treated as immutable once handed to a consumer.
type Frame struct {
	Symbol    string
	Timeframe string
	Candles   []Candle
}

func (f Frame) Len() int { return len(f.Candles) }

func (f Frame) Empty() bool { return len(f.Candles) == 0 }

// Last returns the most recent candle.
func (f Frame) Last() (Candle, bool) {
	if len(f.Candles) == 0 {
		return Candle{}, false
	}
	return f.Candles[len(f.Candles)-1], true
}

// Column extracts one series, used by the feature builder.
func (f Frame) Column(pick func(Candle) float64) []float64 {
	out := make([]float64, len(f.Candles))
	for i, c := range f.Candles {
		out[i] = pick(c)
	}
	return out
}

func (f Frame) Closes() []float64  { return f.Column(func(c Candle) float64 { return c.Close }) }
func (f Frame) Highs() []float64   { return f.Column(func(c Candle) float64 { return c.High }) }
func (f Frame) Lows() []float64    { return f.Column(func(c Candle) float64 { return c.Low }) }
func (f Frame) Volumes() []float64 { return f.Column(func(c Candle) float64 { return c.Volume }) }
