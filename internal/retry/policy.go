// Package retry provides the bounded exponential retry policy shared by the
// exchange client and the persistent store.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
)

// ErrExhausted marks a failure that survived every allowed attempt.
var ErrExhausted = errors.New("retry budget exhausted")

// ExhaustedError carries the last error seen before the budget ran out.
type ExhaustedError struct {
	Name     string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: %d attempts failed: %v", e.Name, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }

// Policy is a plain value so it can be built from config and unit-tested
// without the call it wraps.
type Policy struct {
	Name        string
	MaxAttempts int
	Base        time.Duration
	Cap         time.Duration
	Jitter      bool
	// Retryable decides whether an error is worth another attempt. Nil means
	// every error is retryable.
	Retryable func(error) bool
	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, err error, wait time.Duration)
	// Sleep overrides the context-aware wait, mainly for tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Backoff returns the wait after the given failed attempt (1-based):
// Base, 2*Base, 4*Base ... capped at Cap.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if p.Base <= 0 {
		return 0
	}
	limit := p.Cap
	if limit < p.Base {
		limit = p.Base
	}
	b := &backoff.Backoff{Min: p.Base, Max: limit, Factor: 2, Jitter: p.Jitter}
	return b.ForAttempt(float64(attempt - 1))
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// retryable 只在调用方 ctx 结束时放弃；http.Client 自身超时的错误链同样
// 匹配 context.DeadlineExceeded，不能据此判断。
func (p Policy) retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
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

// Do runs op until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. Non-retryable errors are returned unchanged.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := Do(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Do is the value-returning form of Policy.Do.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	total := p.attempts()
	var lastErr error
	for attempt := 1; attempt <= total; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if cerr := ctx.Err(); cerr != nil {
			return zero, fmt.Errorf("%w: %w", cerr, err)
		}
		if !p.retryable(ctx, err) {
			return zero, err
		}
		if attempt == total {
			break
		}
		wait := p.Backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}
		if serr := p.sleep(ctx, wait); serr != nil {
			return zero, serr
		}
	}
	return zero, &ExhaustedError{Name: p.Name, Attempts: total, Err: lastErr}
}
