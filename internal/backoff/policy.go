// Package backoff provides exponential backoff with jitter for retrying
// provider calls.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Policy defines the parameters for exponential backoff calculation.
type Policy struct {
	// Initial is the delay before the second attempt.
	Initial time.Duration
	// Max caps the computed delay.
	Max time.Duration
	// Factor is the exponential growth factor per attempt.
	Factor float64
	// Jitter is the randomization factor (0.0 to 1.0) added on top of
	// the base delay.
	Jitter float64
}

// Delay computes the backoff duration for a given attempt number.
// Attempts are 1-indexed: Delay(1) is the sleep before attempt 2.
func (p Policy) Delay(attempt int) time.Duration {
	return p.delayWithRand(attempt, rand.Float64()) // #nosec G404 -- jitter does not need crypto randomness
}

// delayWithRand computes the delay using a caller-supplied random value
// in [0, 1), which keeps tests deterministic.
func (p Policy) delayWithRand(attempt int, randomValue float64) time.Duration {
	exp := math.Max(float64(attempt-1), 0)
	base := float64(p.Initial) * math.Pow(p.Factor, exp)
	withJitter := base + base*p.Jitter*randomValue
	return time.Duration(math.Min(withJitter, float64(p.Max)))
}

// Default is the policy used for transient provider errors.
// 500ms initial, 30s cap, doubling, 10% jitter.
func Default() Policy {
	return Policy{
		Initial: 500 * time.Millisecond,
		Max:     30 * time.Second,
		Factor:  2,
		Jitter:  0.1,
	}
}

// RateLimited is the policy used after a rate-limit response: longer
// initial wait, higher cap, more jitter to spread out competing workers.
func RateLimited() Policy {
	return Policy{
		Initial: 2 * time.Second,
		Max:     2 * time.Minute,
		Factor:  2.5,
		Jitter:  0.3,
	}
}
