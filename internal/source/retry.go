package source

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/roach88/steadyboard/internal/ir"
)

// RetryConfig configures retry behavior with exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	// Default: 3
	MaxAttempts int

	// InitialBackoff is the wait before the first retry.
	// Default: 500ms
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between retries.
	// Default: 5s
	MaxBackoff time.Duration

	// BackoffFactor is the multiplier for exponential backoff.
	// Default: 2.0
	BackoffFactor float64

	// JitterFactor is the maximum jitter as a fraction of backoff (0-1).
	// Default: 0.2
	JitterFactor float64
}

// DefaultRetryConfig returns the defaults. The whole retry budget stays
// well under a typical poll interval.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2.0,
		JitterFactor:   0.2,
	}
}

// Validate checks if the retry configuration is valid.
func (c RetryConfig) Validate() error {
	switch {
	case c.MaxAttempts < 1:
		return fmt.Errorf("retry: max attempts must be >= 1, got %d", c.MaxAttempts)
	case c.InitialBackoff <= 0:
		return fmt.Errorf("retry: initial backoff must be positive, got %s", c.InitialBackoff)
	case c.MaxBackoff < c.InitialBackoff:
		return fmt.Errorf("retry: max backoff %s is below initial backoff %s", c.MaxBackoff, c.InitialBackoff)
	case c.BackoffFactor < 1.0:
		return fmt.Errorf("retry: backoff factor must be >= 1, got %g", c.BackoffFactor)
	case c.JitterFactor < 0 || c.JitterFactor > 1:
		return fmt.Errorf("retry: jitter factor must be within [0, 1], got %g", c.JitterFactor)
	}
	return nil
}

// retryFunc is one attempt. attempt starts at 1.
type retryFunc func(ctx context.Context, attempt int) error

// retryHook is told about every failed attempt that will be retried.
type retryHook func(attempt int, err error)

// retry runs fn until it succeeds, returns a non-retryable error, or the
// attempts run out. The last error is returned.
func retry(ctx context.Context, cfg RetryConfig, hook retryHook, fn retryFunc) error {
	backoff := cfg.InitialBackoff

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) || attempt == cfg.MaxAttempts {
			break
		}
		if hook != nil {
			hook(attempt, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(calculateBackoff(backoff, cfg.JitterFactor)):
		}

		backoff = nextBackoff(backoff, cfg.BackoffFactor, cfg.MaxBackoff)
	}
	return lastErr
}

// statusError records a non-2xx HTTP status as the cause of a transport error.
type statusError struct {
	Code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d %s", e.Code, http.StatusText(e.Code))
}

// isRetryable reports whether err is worth another attempt: transport
// failures are, except client errors that will not change on their own
// (404, 403 and the like). Shape errors never are.
func isRetryable(err error) bool {
	if !ir.IsTransportError(err) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 {
		return se.Code == http.StatusRequestTimeout || se.Code == http.StatusTooManyRequests
	}
	return true
}

// calculateBackoff calculates the actual backoff with jitter.
func calculateBackoff(base time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return base
	}

	// Range: [base * (1-jitter), base * (1+jitter)]
	jitter := (rand.Float64()*2 - 1) * jitterFactor
	return time.Duration(float64(base) * (1.0 + jitter))
}

// nextBackoff calculates the next backoff value.
func nextBackoff(current time.Duration, factor float64, max time.Duration) time.Duration {
	next := time.Duration(float64(current) * factor)
	if next > max {
		return max
	}
	return next
}
