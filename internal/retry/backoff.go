package retry

import (
	"math"
	"math/rand"
	"time"
)

// minBackoff is the floor applied to jittered durations so a retry never
// busy-loops on a zero or negative sleep.
const minBackoff = 100 * time.Millisecond

// jitterFraction is the uniform perturbation applied when jitter is enabled:
// the computed duration is scaled by a random factor in [0.75, 1.25].
const jitterFraction = 0.25

// Backoff computes the sleep duration before a retry. attempt is 1-based
// (the first retry is attempt 1). The duration grows exponentially from base
// by factor and is capped at cap. With jitter disabled the result is
// deterministic, which tests rely on for reproducible assertions.
func Backoff(attempt int, base time.Duration, factor float64, cap time.Duration, jitter bool) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := float64(base) * math.Pow(factor, float64(attempt-1))
	if d > float64(cap) {
		d = float64(cap)
	}

	if jitter {
		// Uniform perturbation of ±25%, floored so the sleep stays positive.
		d *= 1 + jitterFraction*(2*rand.Float64()-1)
		if d < float64(minBackoff) {
			d = float64(minBackoff)
		}
	}

	return time.Duration(d)
}
