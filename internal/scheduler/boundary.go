package scheduler

import (
	"context"
	"time"
)

// NextBoundary returns the next instant aligned to unit, in UTC. An instant
// already on a boundary is due now and is returned unchanged, otherwise the
// result is floor(now, unit) + unit.
func NextBoundary(now time.Time, unit time.Duration) time.Time {
	now = now.UTC()
	if unit <= 0 {
		return now
	}
	floor := now.Truncate(unit)
	if floor.Equal(now) {
		return now
	}
	return floor.Add(unit)
}

// UntilNextBoundary is the wait from now to NextBoundary; always in [0, unit).
func UntilNextBoundary(now time.Time, unit time.Duration) time.Duration {
	wait := NextBoundary(now, unit).Sub(now.UTC())
	if wait < 0 || (unit > 0 && wait >= unit) {
		return 0
	}
	return wait
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
