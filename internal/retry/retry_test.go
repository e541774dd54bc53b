package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribehq/scribe/internal/errkind"
	"github.com/scribehq/scribe/internal/logger"
)

// newTestExecutor builds an executor with instant sleeps, recording each
// sleep duration in the returned slice.
func newTestExecutor(policy Policy) (*Executor, *[]time.Duration) {
	executor := NewExecutor("slack", policy, logger.NewTestLogger())
	sleeps := &[]time.Duration{}
	executor.SetSleepFunc(func(ctx context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	})
	return executor, sleeps
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	t.Parallel()

	executor, sleeps := newTestExecutor(DefaultPolicy())

	calls := 0
	err := executor.Do(context.Background(), "fetch thread", func(ctx context.Context) error {
		calls++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *sleeps)
}

func TestDo_RetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	executor, sleeps := newTestExecutor(DefaultPolicy())

	calls := 0
	err := executor.Do(context.Background(), "fetch thread", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errkind.New("slack", errkind.KindUpstream, "upstream error")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, *sleeps, 2)
}

func TestDo_ExhaustsAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	policy := DefaultPolicy()
	policy.MaxAttempts = 3
	executor, sleeps := newTestExecutor(policy)

	calls := 0
	err := executor.Do(context.Background(), "fetch thread", func(ctx context.Context) error {
		calls++
		return errkind.New("slack", errkind.KindTimeout, "network timeout")
	})

	// Initial try plus MaxAttempts retries.
	assert.Equal(t, 4, calls)
	assert.Len(t, *sleeps, 3)

	exhausted, ok := AsExhausted(err)
	require.True(t, ok)
	assert.Equal(t, "slack", exhausted.Service)
	assert.Equal(t, "fetch thread", exhausted.Label)
	assert.Equal(t, 3, exhausted.Retries)
	assert.Equal(t, errkind.KindTimeout, exhausted.Cause.Kind)
	assert.Contains(t, err.Error(), "failed after 3 retries")
}

func TestDo_NonRetryableFailsImmediately(t *testing.T) {
	t.Parallel()

	executor, sleeps := newTestExecutor(DefaultPolicy())

	calls := 0
	err := executor.Do(context.Background(), "fetch thread", func(ctx context.Context) error {
		calls++
		return errkind.New("slack", errkind.KindAuth, "token rejected")
	})

	assert.Equal(t, 1, calls)
	assert.Empty(t, *sleeps)

	exhausted, ok := AsExhausted(err)
	require.True(t, ok)
	assert.Zero(t, exhausted.Retries)
	assert.Equal(t, errkind.KindAuth, exhausted.Cause.Kind)
}

func TestDo_PolicyNonRetryableKindsOverrideClassifier(t *testing.T) {
	t.Parallel()

	policy := DefaultPolicy()
	policy.NonRetryableKinds = Kinds(errkind.KindRateLimit)
	executor, _ := newTestExecutor(policy)

	calls := 0
	err := executor.Do(context.Background(), "create page", func(ctx context.Context) error {
		calls++
		return errkind.New("slack", errkind.KindRateLimit, "rate limited")
	})

	assert.Equal(t, 1, calls)
	exhausted, ok := AsExhausted(err)
	require.True(t, ok)
	assert.Zero(t, exhausted.Retries)
}

func TestDo_RetryableKindsRestrictRetries(t *testing.T) {
	t.Parallel()

	policy := DefaultPolicy()
	policy.RetryableKinds = Kinds(errkind.KindTimeout)
	executor, _ := newTestExecutor(policy)

	calls := 0
	err := executor.Do(context.Background(), "create page", func(ctx context.Context) error {
		calls++
		return errkind.New("slack", errkind.KindUpstream, "upstream error")
	})

	// Upstream is retryable by default but excluded by the allow list.
	assert.Equal(t, 1, calls)
	assert.Error(t, err)
}

func TestDo_ClassifiesRawErrors(t *testing.T) {
	t.Parallel()

	policy := DefaultPolicy()
	policy.MaxAttempts = 1
	executor, _ := newTestExecutor(policy)

	err := executor.Do(context.Background(), "fetch thread", func(ctx context.Context) error {
		return errors.New("something inexplicable")
	})

	// Unknown failures are retried (fail-open), then surfaced classified.
	exhausted, ok := AsExhausted(err)
	require.True(t, ok)
	assert.Equal(t, 1, exhausted.Retries)
	assert.Equal(t, errkind.KindUnknown, exhausted.Cause.Kind)
}

func TestDo_RetryAfterSupersedesBackoff(t *testing.T) {
	t.Parallel()

	policy := Policy{
		MaxAttempts:   2,
		BaseInterval:  time.Second,
		BackoffFactor: 2.0,
		MaxInterval:   30 * time.Second,
		Jitter:        false,
	}
	executor, sleeps := newTestExecutor(policy)

	calls := 0
	err := executor.Do(context.Background(), "fetch thread", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			rateLimited := errkind.New("slack", errkind.KindRateLimit, "rate limited")
			rateLimited.RetryAfter = 9 * time.Second
			return rateLimited
		}
		return errkind.New("slack", errkind.KindTimeout, "network timeout")
	})

	assert.Equal(t, 3, calls)
	require.Len(t, *sleeps, 2)
	// The server hint replaces the computed backoff for that attempt only.
	assert.Equal(t, 9*time.Second, (*sleeps)[0])
	assert.Equal(t, 2*time.Second, (*sleeps)[1])
	assert.Error(t, err)
}

func TestDo_ContextCancelledDuringSleep(t *testing.T) {
	t.Parallel()

	policy := DefaultPolicy()
	executor := NewExecutor("slack", policy, logger.NewTestLogger())
	executor.SetSleepFunc(func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	})

	calls := 0
	err := executor.Do(context.Background(), "fetch thread", func(ctx context.Context) error {
		calls++
		return errkind.New("slack", errkind.KindTimeout, "network timeout")
	})

	assert.Equal(t, 1, calls)
	exhausted, ok := AsExhausted(err)
	require.True(t, ok)
	assert.Equal(t, errkind.KindValidation, exhausted.Cause.Kind)
	assert.False(t, exhausted.Cause.Retryable)
}

func TestDo_ZeroMaxAttemptsRunsOnce(t *testing.T) {
	t.Parallel()

	policy := DefaultPolicy()
	policy.MaxAttempts = 0
	executor, sleeps := newTestExecutor(policy)

	calls := 0
	err := executor.Do(context.Background(), "fetch thread", func(ctx context.Context) error {
		calls++
		return errkind.New("slack", errkind.KindUpstream, "upstream error")
	})

	assert.Equal(t, 1, calls)
	assert.Empty(t, *sleeps)
	assert.Error(t, err)
}

func TestExhaustedError_UnwrapsToClassified(t *testing.T) {
	t.Parallel()

	cause := errkind.New("notion", errkind.KindUpstream, "upstream error")
	err := fmt.Errorf("publish: %w", &ExhaustedError{
		Service: "notion",
		Label:   "create page",
		Retries: 3,
		Cause:   cause,
	})

	classified, ok := errkind.As(err)
	require.True(t, ok)
	assert.Equal(t, errkind.KindUpstream, classified.Kind)

	exhausted, ok := AsExhausted(err)
	require.True(t, ok)
	assert.Equal(t, 3, exhausted.Retries)
}

func TestPolicyNormalized(t *testing.T) {
	t.Parallel()

	p := Policy{MaxAttempts: -1, BackoffFactor: 0.5}.normalized()

	assert.Zero(t, p.MaxAttempts)
	assert.Equal(t, time.Second, p.BaseInterval)
	assert.Equal(t, 2.0, p.BackoffFactor)
	assert.GreaterOrEqual(t, p.MaxInterval, p.BaseInterval)
}
