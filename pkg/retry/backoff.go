package retry

import (
	"context"
	"time"
)

// Backoff maps the number of consecutive failures so far to the pause
// before the next attempt
type Backoff func(failures int) time.Duration

// Factor is the urllib3 policy: no pause after the first failure, then
// factor * 2^(n-1) after the n-th, capped at max (120s when zero)
func Factor(factor, max time.Duration) Backoff {
	if max <= 0 {
		max = 120 * time.Second
	}
	return func(failures int) time.Duration {
		if failures <= 1 || factor <= 0 {
			return 0
		}
		return doubled(factor, failures-1, max)
	}
}

// Exponential pauses base after the first failure and doubles up to max
func Exponential(base, max time.Duration) Backoff {
	return func(failures int) time.Duration {
		if failures <= 0 {
			return 0
		}
		return doubled(base, failures-1, max)
	}
}

// Constant pauses d after every failure
func Constant(d time.Duration) Backoff {
	return func(failures int) time.Duration {
		if failures <= 0 {
			return 0
		}
		return d
	}
}

// doubled returns d << shifts without overflowing past max
func doubled(d time.Duration, shifts int, max time.Duration) time.Duration {
	for i := 0; i < shifts; i++ {
		if max > 0 && d >= max/2 {
			return max
		}
		d *= 2
	}
	if max > 0 && d > max {
		return max
	}
	return d
}

// Wait pauses for delay or until ctx is done, whichever comes first
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(delay)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
