package retry

import (
	"time"

	"github.com/scribehq/scribe/internal/errkind"
)

// Policy controls how an Executor retries a failing operation. Policies are
// plain values tuned per integration and passed in at construction; they are
// never persisted.
type Policy struct {
	// MaxAttempts is the number of retries after the initial try. Zero means
	// the operation runs exactly once.
	MaxAttempts int

	// BaseInterval is the sleep before the first retry.
	BaseInterval time.Duration

	// BackoffFactor multiplies the interval on every subsequent retry.
	BackoffFactor float64

	// MaxInterval caps the computed interval.
	MaxInterval time.Duration

	// Jitter applies a ±25% random perturbation to each computed interval.
	// Disable for reproducible sleep assertions in tests.
	Jitter bool

	// RetryableKinds, when non-empty, restricts retries to these kinds.
	// Kinds outside the set fail immediately even if classified retryable.
	RetryableKinds map[errkind.Kind]bool

	// NonRetryableKinds always fail immediately. Takes precedence over
	// RetryableKinds and over the classifier's verdict.
	NonRetryableKinds map[errkind.Kind]bool
}

// DefaultPolicy returns the policy integrations start from: three retries
// with exponential backoff from one second, capped at thirty, jittered.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:   3,
		BaseInterval:  time.Second,
		BackoffFactor: 2.0,
		MaxInterval:   30 * time.Second,
		Jitter:        true,
	}
}

// normalized returns a copy of p with invalid fields replaced by safe
// defaults, so a zero-value policy still behaves sensibly.
func (p Policy) normalized() Policy {
	if p.MaxAttempts < 0 {
		p.MaxAttempts = 0
	}
	if p.BaseInterval <= 0 {
		p.BaseInterval = time.Second
	}
	if p.BackoffFactor < 1 {
		p.BackoffFactor = 2.0
	}
	if p.MaxInterval < p.BaseInterval {
		p.MaxInterval = p.BaseInterval
	}
	return p
}

// allows reports whether the policy permits retrying the classified error.
func (p Policy) allows(classified *errkind.Classified) bool {
	if p.NonRetryableKinds[classified.Kind] {
		return false
	}
	if !classified.Retryable {
		return false
	}
	if len(p.RetryableKinds) > 0 && !p.RetryableKinds[classified.Kind] {
		return false
	}
	return true
}

// Kinds builds a kind set from the given tags. Convenience for policy
// construction.
func Kinds(kinds ...errkind.Kind) map[errkind.Kind]bool {
	set := make(map[errkind.Kind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return set
}
