package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func recordingSleep(waits *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return ctx.Err()
	}
}

func TestPolicyBackoffSchedule(t *testing.T) {
	p := Policy{Base: 4 * time.Second, Cap: 10 * time.Second}
	assert.Equal(t, 4*time.Second, p.Backoff(1))
	assert.Equal(t, 8*time.Second, p.Backoff(2))
	assert.Equal(t, 10*time.Second, p.Backoff(3))
	assert.Equal(t, 10*time.Second, p.Backoff(7))

	store := Policy{Base: 2 * time.Second, Cap: 10 * time.Second}
	assert.Equal(t, 2*time.Second, store.Backoff(1))
	assert.Equal(t, 4*time.Second, store.Backoff(2))
	assert.Equal(t, 8*time.Second, store.Backoff(3))
	assert.Equal(t, 10*time.Second, store.Backoff(4))
}

func TestPolicyBackoffJitterStaysInBounds(t *testing.T) {
	p := Policy{Base: 4 * time.Second, Cap: 10 * time.Second, Jitter: true}
	for i := 1; i <= 50; i++ {
		d := p.Backoff(2)
		assert.GreaterOrEqual(t, d, 4*time.Second)
		assert.LessOrEqual(t, d, 10*time.Second)
	}
}

func TestDoSucceedsAfterRetry(t *testing.T) {
	var waits []time.Duration
	calls := 0
	p := Policy{Name: "op", MaxAttempts: 3, Base: time.Second, Cap: 5 * time.Second, Sleep: recordingSleep(&waits)}

	out, err := Do(context.Background(), p, func(context.Context) (int, error) {
		calls++
		if calls < 2 {
			return 0, errFlaky
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, out)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{time.Second}, waits)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	fatal := errors.New("fatal")
	calls := 0
	p := Policy{
		MaxAttempts: 3,
		Retryable:   func(err error) bool { return !errors.Is(err, fatal) },
		Sleep:       func(context.Context, time.Duration) error { return nil },
	}
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return fatal
	})
	assert.Same(t, fatal, err)
	assert.Equal(t, 1, calls)
	assert.False(t, errors.Is(err, ErrExhausted))
}

func TestDoExhaustsBudget(t *testing.T) {
	var waits []time.Duration
	var retried []int
	calls := 0
	p := Policy{
		Name:        "create_order",
		MaxAttempts: 3,
		Base:        4 * time.Second,
		Cap:         10 * time.Second,
		Sleep:       recordingSleep(&waits),
		OnRetry:     func(attempt int, _ error, _ time.Duration) { retried = append(retried, attempt) },
	}
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return errFlaky
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExhausted))
	assert.True(t, errors.Is(err, errFlaky))
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{4 * time.Second, 8 * time.Second}, waits)
	assert.Equal(t, []int{1, 2}, retried)

	var exhausted *ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 3, exhausted.Attempts)
}

func TestDoRetriesOwnTimeoutWhileCallerIsLive(t *testing.T) {
	// http.Client 超时返回的错误链里带 context.DeadlineExceeded
	clientTimeout := fmt.Errorf("Get \"https://api.example\": %w (Client.Timeout exceeded while awaiting headers)", context.DeadlineExceeded)
	var waits []time.Duration
	calls := 0
	p := Policy{MaxAttempts: 3, Base: time.Second, Cap: 4 * time.Second, Sleep: recordingSleep(&waits)}
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return clientTimeout
	})
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, waits)
}

func TestDoStopsWhenCallerDeadlinePasses(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	calls := 0
	p := Policy{MaxAttempts: 3, Base: time.Second, Cap: time.Second}
	_, err := Do(ctx, p, func(context.Context) (int, error) {
		calls++
		return 0, errFlaky
	})
	assert.Zero(t, calls)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := Policy{MaxAttempts: 5, Base: time.Hour, Cap: time.Hour}
	go cancel()
	err := p.Do(ctx, func(context.Context) error {
		calls++
		return errFlaky
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, calls, 2)
}
