package market

import "context"

// Source supplies closed candles for a symbol/timeframe, oldest first.
type Source interface {
	FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
}

// FetchFrame wraps Source.FetchHistory into a Frame. An empty result is not
// an error; callers decide how to treat a frame with no candles.
func FetchFrame(ctx context.Context, src Source, symbol, timeframe string, lookback int) (Frame, error) {
	candles, err := src.FetchHistory(ctx, symbol, timeframe, lookback)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Symbol: symbol, Timeframe: timeframe, Candles: candles}, nil
}
