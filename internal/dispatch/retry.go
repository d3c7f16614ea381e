package dispatch

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy controls how a failed HTTP/webhook dispatch is retried before
// being reported as a dispatch_error (spec.md §4.7, §7 "Dispatch failures
// produce an internal error signal but do not stop the drain").
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	BackoffFactor float64
	MaxDelay      time.Duration
}

// DefaultRetryPolicy is a conservative default for outbound HTTP dispatch.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    3,
		InitialDelay:  500 * time.Millisecond,
		BackoffFactor: 2.0,
		MaxDelay:      10 * time.Second,
	}
}

// NextDelay returns the delay before retrying the given attempt (0-based)
// and whether a retry should be attempted at all.
func (p RetryPolicy) NextDelay(attempt int) (delay time.Duration, shouldRetry bool) {
	if attempt < 0 {
		attempt = 0
	}
	if p.MaxRetries <= attempt {
		return 0, false
	}
	return backoffDelayWithFactor(attempt+1, p.InitialDelay, p.MaxDelay, p.BackoffFactor), true
}

// backoffDelayWithFactor returns base * factor^(retries-1), capped at
// maxDelay, with up to 10% jitter added.
func backoffDelayWithFactor(retries int, base, maxDelay time.Duration, factor float64) time.Duration {
	if retries <= 0 || base <= 0 {
		return 0
	}
	if factor < 1.0 {
		factor = 1.0
	}

	backoff := float64(base) * math.Pow(factor, float64(retries-1))
	if math.IsNaN(backoff) || math.IsInf(backoff, 0) {
		if maxDelay > 0 {
			backoff = float64(maxDelay)
		} else {
			backoff = float64(base)
		}
	}
	if maxDelay > 0 && backoff > float64(maxDelay) {
		backoff = float64(maxDelay)
	}
	if backoff < float64(base) {
		backoff = float64(base)
	}

	jitter := 1.0 + (rand.Float64() * 0.1)
	return time.Duration(backoff * jitter)
}
