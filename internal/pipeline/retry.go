package pipeline

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy bounds how long the controller keeps skipping iterations when
// the capture device stops delivering frames.
type RetryPolicy struct {
	// MaxFailures is the number of consecutive failed acquisitions tolerated.
	// One more failure is fatal.
	MaxFailures int
	// BaseDelay is the wait after the first failure; it doubles per failure.
	BaseDelay time.Duration
	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy(interval time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxFailures: 10,
		BaseDelay:   interval,
		MaxDelay:    30 * time.Second,
	}
}

// Delay returns the wait before the next acquisition after the given number
// of consecutive failures, with up to 25% jitter.
func (p RetryPolicy) Delay(failures int) time.Duration {
	if failures < 1 || p.BaseDelay <= 0 {
		return 0
	}

	scaled := float64(p.BaseDelay) * math.Pow(2, float64(failures-1))
	limit := p.MaxDelay
	if limit <= 0 {
		limit = time.Duration(math.MaxInt64 / 2)
	}
	delay := limit
	if scaled < float64(limit) {
		delay = time.Duration(scaled)
	}

	if spread := int64(delay / 4); spread > 0 {
		delay += time.Duration(rand.Int63n(spread))
	}
	return delay
}
