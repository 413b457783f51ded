package retry

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"prodfetch/pkg/errors"
	"prodfetch/pkg/logger"
)

// Config controls a retry loop. Zero values fall back to: unlimited
// attempts, Exponential(1s, 60s), DefaultRetryIf, context.Background and the
// global logger.
type Config struct {
	// MaxAttempts counts the first try; 0 means no limit
	MaxAttempts int
	Backoff     Backoff
	RetryIf     func(error) bool
	// OnRetry runs after a retryable failure, before the pause
	OnRetry func(failures int, err error, delay time.Duration)
	Context context.Context
	Logger  logger.Logger
}

// ExhaustedError is returned when MaxAttempts retryable failures occurred
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// DefaultRetryIf retries network and server errors. Context errors are final.
func DefaultRetryIf(err error) bool {
	switch {
	case err == nil:
		return false
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return false
	default:
		return errors.IsRetryable(errors.TypeOf(err))
	}
}

func (c Config) withDefaults() Config {
	if c.Backoff == nil {
		c.Backoff = Exponential(time.Second, time.Minute)
	}
	if c.RetryIf == nil {
		c.RetryIf = DefaultRetryIf
	}
	if c.Context == nil {
		c.Context = context.Background()
	}
	if c.Logger == nil {
		c.Logger = logger.GetLogger()
	}
	return c
}

// DoWithResult calls op until it succeeds, returns a non-retryable error,
// runs out of attempts or the context ends
func DoWithResult[T any](op func() (T, error), cfg *Config) (T, error) {
	var c Config
	if cfg != nil {
		c = *cfg
	}
	c = c.withDefaults()

	var zero T
	for failures := 1; ; failures++ {
		v, err := op()
		if err == nil {
			if failures > 1 {
				c.Logger.WithField("attempt", failures).Debug("Succeeded after retry")
			}
			return v, nil
		}
		if !c.RetryIf(err) {
			return zero, err
		}
		if c.MaxAttempts > 0 && failures >= c.MaxAttempts {
			c.Logger.WithError(err).WithField("attempts", failures).Warn("Retries exhausted")
			return zero, &ExhaustedError{Attempts: failures, Err: err}
		}

		delay := c.Backoff(failures)
		if c.OnRetry != nil {
			c.OnRetry(failures, err, delay)
		}
		c.Logger.WithError(err).WithFields(map[string]interface{}{
			"attempt": failures,
			"delay":   delay,
		}).Debug("Retrying")

		if werr := Wait(c.Context, delay); werr != nil {
			return zero, fmt.Errorf("retry interrupted: %w", werr)
		}
	}
}
