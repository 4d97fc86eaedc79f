package scheduler

import (
	"time"

	"tradepilot/internal/market"
)

const DefaultKlineGrace = 10 * time.Second

// DropUnclosedKline drops the last candle if it is still in progress.
// Venues such as Binance return the current, not-yet-closed candle last; a
// decision must only see closed candles.
func DropUnclosedKline(klines []market.Candle, interval time.Duration, now time.Time) []market.Candle {
	return dropUnclosedKlineAt(klines, interval, now.UTC(), DefaultKlineGrace)
}

func dropUnclosedKlineAt(klines []market.Candle, interval time.Duration, now time.Time, grace time.Duration) []market.Candle {
	if len(klines) == 0 || interval <= 0 {
		return klines
	}
	if grace < 0 {
		grace = 0
	}
	last := klines[len(klines)-1]
	if last.OpenTime <= 0 {
		return klines
	}
	cutoffMs := last.OpenTime + interval.Milliseconds() + grace.Milliseconds()
	if now.UnixMilli() < cutoffMs {
		return klines[:len(klines)-1]
	}
	return klines
}
