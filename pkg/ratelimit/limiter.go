package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter defines the interface for inter-item pacing
type Limiter interface {
	// Wait blocks until the next item may start or ctx is done
	Wait(ctx context.Context) error
}

// FixedDelay pauses for the same duration on every Wait
type FixedDelay struct {
	delay time.Duration

	mu     sync.Mutex
	waits  int
	waited time.Duration
}

// NewFixedDelay creates a limiter pausing for delay. A non-positive delay
// makes Wait return immediately.
func NewFixedDelay(delay time.Duration) *FixedDelay {
	return &FixedDelay{delay: delay}
}

// Delay returns the configured pause
func (f *FixedDelay) Delay() time.Duration {
	return f.delay
}

// Wait implements Limiter
func (f *FixedDelay) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.delay <= 0 {
		return nil
	}

	start := time.Now()
	timer := time.NewTimer(f.delay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		f.record(time.Since(start))
		return ctx.Err()
	}

	f.record(time.Since(start))
	return nil
}

func (f *FixedDelay) record(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.waits++
	f.waited += d
}

// Stats returns how many pauses were taken and their total duration
func (f *FixedDelay) Stats() (int, time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.waits, f.waited
}

// Unlimited never pauses
type Unlimited struct{}

// Wait implements Limiter
func (Unlimited) Wait(ctx context.Context) error {
	return ctx.Err()
}
