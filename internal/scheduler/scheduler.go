package scheduler

import (
	"context"
	"time"

	"tradepilot/internal/logger"
)

// IntervalScheduler runs a task on a fixed period until its context ends.
// Runs never overlap: the next wait starts after the task returns.
type IntervalScheduler struct {
	Name           string
	Interval       time.Duration
	RunImmediately bool

	nowFn func() time.Time
}

func NewIntervalScheduler(name string, interval time.Duration, runImmediately bool) *IntervalScheduler {
	return &IntervalScheduler{
		Name:           name,
		Interval:       interval,
		RunImmediately: runImmediately,
		nowFn:          time.Now,
	}
}

// Run blocks until ctx is done. Task errors are logged and do not stop the loop.
func (s *IntervalScheduler) Run(ctx context.Context, task func(context.Context) error) error {
	if task == nil {
		logger.Warnf("IntervalScheduler[%s]: task is nil, exit", s.Name)
		return nil
	}
	if s.Interval <= 0 {
		logger.Warnf("IntervalScheduler[%s]: invalid interval=%s, exit", s.Name, s.Interval)
		return nil
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}
	startAt := s.nowFn().UTC()
	logger.Infof("IntervalScheduler[%s]: started interval=%s run_immediately=%v at=%s",
		s.Name, s.Interval, s.RunImmediately, startAt.Format(time.RFC3339))

	run := func() {
		if err := task(ctx); err != nil && ctx.Err() == nil {
			logger.Errorf("IntervalScheduler[%s]: task failed: %v", s.Name, err)
		}
	}
	if s.RunImmediately {
		run()
	}
	for {
		nextAt := s.nowFn().UTC().Add(s.Interval)
		logger.Debugf("IntervalScheduler[%s]: next run at %s | uptime=%s",
			s.Name, nextAt.Format(time.RFC3339), s.nowFn().UTC().Sub(startAt).Truncate(time.Second))
		if err := Sleep(ctx, s.Interval); err != nil {
			logger.Infof("IntervalScheduler[%s]: ctx done, exit", s.Name)
			return nil
		}
		run()
	}
}
