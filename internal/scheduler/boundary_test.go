package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradepilot/internal/market"
)

func TestNextBoundaryHourly(t *testing.T) {
	now := time.Date(2024, 5, 1, 13, 42, 17, 500, time.UTC)
	next := NextBoundary(now, time.Hour)
	assert.Equal(t, time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC), next)
	assert.Equal(t, 17*time.Minute+43*time.Second-500*time.Nanosecond, UntilNextBoundary(now, time.Hour))
}

func TestNextBoundaryUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5:30", 5*3600+1800)
	now := time.Date(2024, 5, 1, 10, 10, 0, 0, loc) // 04:40 UTC
	next := NextBoundary(now, time.Hour)
	assert.Equal(t, time.Date(2024, 5, 1, 5, 0, 0, 0, time.UTC), next)
	assert.Equal(t, 20*time.Minute, UntilNextBoundary(now, time.Hour))
}

func TestUntilNextBoundaryRange(t *testing.T) {
	units := []time.Duration{time.Minute, 5 * time.Minute, 15 * time.Minute, time.Hour, 4 * time.Hour, 24 * time.Hour}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, unit := range units {
		for step := time.Duration(0); step < 49*time.Hour; step += 7*time.Minute + 13*time.Second {
			now := base.Add(step)
			wait := UntilNextBoundary(now, unit)
			require.GreaterOrEqual(t, wait, time.Duration(0), "unit=%s now=%s", unit, now)
			require.Less(t, wait, unit, "unit=%s now=%s", unit, now)
			landed := now.Add(wait)
			assert.Equal(t, landed, landed.Truncate(unit), "unit=%s now=%s", unit, now)
		}
	}
}

func TestUntilNextBoundaryExactlyOnBoundary(t *testing.T) {
	now := time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Duration(0), UntilNextBoundary(now, time.Hour))
	// 日志里的下一次检查时间必须与实际等待一致
	assert.Equal(t, now, NextBoundary(now, time.Hour))

	later := now.Add(time.Nanosecond)
	assert.Equal(t, now.Add(time.Hour), NextBoundary(later, time.Hour))
	assert.Equal(t, later.Add(UntilNextBoundary(later, time.Hour)), NextBoundary(later, time.Hour))
}

func TestParseTimeframe(t *testing.T) {
	cases := map[string]time.Duration{
		"1m":  time.Minute,
		"15m": 15 * time.Minute,
		"1h":  time.Hour,
		"4H":  4 * time.Hour,
		"1d":  24 * time.Hour,
		"1w":  7 * 24 * time.Hour,
	}
	for in, want := range cases {
		got, err := ParseTimeframe(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "h", "0h", "-1h", "1y", "abc"} {
		_, err := ParseTimeframe(bad)
		assert.Error(t, err, bad)
	}
}

func TestSleepInterruptedByCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDropUnclosedKline(t *testing.T) {
	open := time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)
	klines := []market.Candle{
		{OpenTime: open.Add(-time.Hour).UnixMilli()},
		{OpenTime: open.UnixMilli()},
	}
	stillOpen := DropUnclosedKline(klines, time.Hour, open.Add(30*time.Minute))
	assert.Len(t, stillOpen, 1)

	closed := DropUnclosedKline(klines, time.Hour, open.Add(time.Hour+DefaultKlineGrace))
	assert.Len(t, closed, 2)
}

func TestIntervalSchedulerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runs := 0
	s := NewIntervalScheduler("test", time.Hour, true)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx, func(context.Context) error {
			runs++
			cancel()
			return nil
		})
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, 1, runs)
}
