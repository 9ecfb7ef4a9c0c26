// Package retry drives a request until a classification function decides it
// has succeeded or failed.
//
// The classifier sees every outcome and answers with a Decision:
//
//   - Succeed: return the result
//   - RetryNow: transient failure, back off exponentially (counts against MaxRetries)
//   - RetryAfter: rate limited, wait the given duration (never counts against MaxRetries)
//   - Fail: permanent failure, return the error immediately
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Action is what the driver does next.
type Action int

const (
	ActionSucceed Action = iota
	ActionRetryNow
	ActionRetryAfter
	ActionFail
)

func (a Action) String() string {
	switch a {
	case ActionSucceed:
		return "succeed"
	case ActionRetryNow:
		return "retry_now"
	case ActionRetryAfter:
		return "retry_after"
	case ActionFail:
		return "fail"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Decision is the classifier's verdict on one attempt.
type Decision struct {
	Action Action
	// Wait is the rate-limit pause for ActionRetryAfter.
	Wait time.Duration
	// Err is the error returned for ActionFail, or the cause of a retry.
	Err error
}

// Succeed accepts the attempt's result.
func Succeed() Decision { return Decision{Action: ActionSucceed} }

// RetryNow retries after exponential backoff.
func RetryNow(cause error) Decision { return Decision{Action: ActionRetryNow, Err: cause} }

// RetryAfter retries once d has elapsed.
func RetryAfter(d time.Duration, cause error) Decision {
	return Decision{Action: ActionRetryAfter, Wait: d, Err: cause}
}

// Fail returns err to the caller without retrying.
func Fail(err error) Decision { return Decision{Action: ActionFail, Err: err} }

// Config defines retry behaviour with exponential backoff.
type Config struct {
	// MaxRetries bounds transient retries. Rate-limit waits are not counted.
	MaxRetries int
	// BaseDelay is the first transient backoff.
	BaseDelay time.Duration
	// Factor multiplies the backoff after each transient retry.
	Factor float64
	// MaxDelay caps a single transient backoff. Zero means uncapped.
	MaxDelay time.Duration

	// OnRetry is called before every wait.
	OnRetry func(attempt int, d Decision, wait time.Duration)
	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultConfig returns a config with 3 retries starting at one second, doubling.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		Factor:     2.0,
	}
}

// Backoff returns the transient delay before retry number n (0-based).
func (c Config) Backoff(n int) time.Duration {
	factor := c.Factor
	if factor <= 0 {
		factor = 1
	}
	d := time.Duration(float64(c.BaseDelay) * math.Pow(factor, float64(n)))
	if c.MaxDelay > 0 && d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

// ExhaustedError is returned when transient retries run out.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// IsExhausted reports whether err came from running out of retries.
func IsExhausted(err error) bool {
	var e *ExhaustedError
	return errors.As(err, &e)
}

// Do calls fn until classify accepts or rejects the outcome.
// classify receives the 0-based attempt number alongside fn's results.
func Do[T any](
	ctx context.Context,
	cfg Config,
	fn func(ctx context.Context) (T, error),
	classify func(attempt int, result T, err error) Decision,
) (T, error) {
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var zero T
	transient := 0
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		d := classify(attempt, result, err)

		var wait time.Duration
		switch d.Action {
		case ActionSucceed:
			return result, nil
		case ActionFail:
			if d.Err == nil {
				d.Err = err
			}
			return zero, d.Err
		case ActionRetryAfter:
			wait = d.Wait
		case ActionRetryNow:
			if transient >= cfg.MaxRetries {
				last := d.Err
				if last == nil {
					last = err
				}
				return zero, &ExhaustedError{Attempts: attempt + 1, Last: last}
			}
			wait = cfg.Backoff(transient)
			transient++
		default:
			return zero, fmt.Errorf("retry: unknown action %v", d.Action)
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, d, wait)
		}
		if err := sleep(ctx, wait); err != nil {
			return zero, err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
