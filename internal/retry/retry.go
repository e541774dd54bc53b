// Package retry wraps fallible integration calls with classification-aware
// retries and exponential backoff. Every adapter owns one Executor tuned to
// its service; the workflow engine only ever sees the executor's terminal
// errors, never raw transport failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/scribehq/scribe/internal/errkind"
	"github.com/scribehq/scribe/internal/logger"
)

// ExhaustedError is the terminal error an Executor returns when an operation
// keeps failing. Service scopes it to the integration that gave up, so
// callers can tell a chat fetch failure from a store write failure without
// string matching.
type ExhaustedError struct {
	// Service is the integration the executor belongs to.
	Service string
	// Label names the operation for diagnostics (e.g. "fetch thread").
	Label string
	// Retries is the number of retries actually performed. Zero when the
	// failure was non-retryable and the operation ran exactly once.
	Retries int
	// Cause is the classified failure from the final attempt.
	Cause *errkind.Classified
}

// Error includes the retry count, the operation label and the underlying
// failure so the message stands alone in a run record.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: %s failed after %d retries: %s", e.Service, e.Label, e.Retries, e.Cause.Error())
}

// Unwrap exposes the classified cause for errors.As.
func (e *ExhaustedError) Unwrap() error {
	return e.Cause
}

// AsExhausted extracts an ExhaustedError from anywhere in err's chain.
func AsExhausted(err error) (*ExhaustedError, bool) {
	var exhausted *ExhaustedError
	if errors.As(err, &exhausted) {
		return exhausted, true
	}
	return nil, false
}

// Executor retries an operation according to its policy. The backoff sleep
// blocks only the calling goroutine; concurrent runs are unaffected.
type Executor struct {
	service string
	policy  Policy
	log     *logger.Logger

	// sleep is replaceable in tests so retry loops don't wall-clock wait.
	sleep func(ctx context.Context, d time.Duration) error
}

// sleepContext blocks the calling goroutine for d, returning early if ctx is
// cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NewExecutor creates an executor for the given service. A nil log falls
// back to the global logger.
func NewExecutor(service string, policy Policy, log *logger.Logger) *Executor {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Executor{
		service: service,
		policy:  policy.normalized(),
		log:     log.WithField("service", service),
		sleep:   sleepContext,
	}
}

// SetSleepFunc overrides how the executor sleeps between attempts (mainly
// for testing).
func (e *Executor) SetSleepFunc(sleep func(ctx context.Context, d time.Duration) error) {
	e.sleep = sleep
}

// Do runs op, retrying classified-retryable failures per the policy. The
// initial try is unconditional; label names the operation in logs and in the
// terminal error. Returns nil on success, or an *ExhaustedError once the
// policy refuses further attempts.
func (e *Executor) Do(ctx context.Context, label string, op func(context.Context) error) error {
	retries := 0

	for {
		err := op(ctx)
		if err == nil {
			if retries > 0 {
				e.log.WithFields(map[string]interface{}{
					"operation": label,
					"retries":   retries,
				}).Info("Operation succeeded after retries")
			}
			return nil
		}

		classified := errkind.Classify(e.service, err)

		if !e.policy.allows(classified) {
			e.log.WithFields(map[string]interface{}{
				"operation": label,
				"kind":      string(classified.Kind),
				"error":     classified.Error(),
			}).Debug("Failure is not retryable")
			return &ExhaustedError{Service: e.service, Label: label, Retries: retries, Cause: classified}
		}

		if retries >= e.policy.MaxAttempts {
			return &ExhaustedError{Service: e.service, Label: label, Retries: retries, Cause: classified}
		}

		wait := Backoff(retries+1, e.policy.BaseInterval, e.policy.BackoffFactor, e.policy.MaxInterval, e.policy.Jitter)
		// A server-suggested wait supersedes the computed backoff for this
		// attempt only.
		if classified.Kind == errkind.KindRateLimit && classified.RetryAfter > 0 {
			wait = classified.RetryAfter
		}

		e.log.WithFields(map[string]interface{}{
			"operation": label,
			"attempt":   retries + 1,
			"max":       e.policy.MaxAttempts,
			"sleep":     wait.String(),
			"kind":      string(classified.Kind),
			"error":     classified.Error(),
		}).Warn("Retrying failed operation")

		if err := e.sleep(ctx, wait); err != nil {
			cancelled := errkind.Classify(e.service, err)
			return &ExhaustedError{Service: e.service, Label: label, Retries: retries, Cause: cancelled}
		}
		retries++
	}
}
