package github

import (
	"context"
	"errors"
	"io"
	"math"
	"net"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/ghfetch/internal/logger"
	"github.com/custodia-labs/ghfetch/internal/retry"
)

// rateLimitBase is the first fallback wait when a rate-limit response
// carries no Retry-After header.
const rateLimitBase = 5 * time.Second

// rateLimitFallback returns rateLimitBase * factor^attempt.
func rateLimitFallback(factor float64, attempt int) time.Duration {
	if factor <= 0 {
		factor = 1
	}
	return time.Duration(float64(rateLimitBase) * math.Pow(factor, float64(attempt)))
}

// classifyError maps a go-github error to a retry decision.
func classifyError(attempt int, factor float64, err error) retry.Decision {
	if err == nil {
		return retry.Succeed()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retry.Fail(err)
	}

	// Primary quota exhausted: wait for the reset instant.
	var rle *gh.RateLimitError
	if errors.As(err, &rle) {
		wait := time.Until(rle.Rate.Reset.Time) + time.Second
		if wait < time.Second {
			wait = time.Second
		}
		return retry.RetryAfter(wait, err)
	}

	// Secondary limit: honour Retry-After when given.
	var abuse *gh.AbuseRateLimitError
	if errors.As(err, &abuse) {
		if d := abuse.GetRetryAfter(); d > 0 {
			return retry.RetryAfter(d, err)
		}
		return retry.RetryAfter(rateLimitFallback(factor, attempt), err)
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		status := ghErr.Response.StatusCode
		switch {
		case status == 429,
			status == 403 && strings.Contains(strings.ToLower(ghErr.Message), "rate limit"):
			if d, ok := retryAfter(ghErr.Response); ok {
				return retry.RetryAfter(d, err)
			}
			return retry.RetryAfter(rateLimitFallback(factor, attempt), err)
		case status >= 500:
			return retry.RetryNow(err)
		default:
			return retry.Fail(err)
		}
	}

	if isNetworkError(err) {
		return retry.RetryNow(err)
	}
	return retry.Fail(err)
}

func isNetworkError(err error) bool {
	var netErr net.Error
	var urlErr *url.Error
	return errors.As(err, &netErr) ||
		errors.As(err, &urlErr) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

// onRetry returns the retry hook shared by both clients. Rate-limit waits
// pause the whole limiter so concurrent workers back off together.
func onRetry(op string, limiter *RateLimiter, st *counters) func(int, retry.Decision, time.Duration) {
	return func(attempt int, d retry.Decision, wait time.Duration) {
		if d.Action == retry.ActionRetryAfter {
			st.rateLimitHits.Add(1)
			limiter.PauseUntil(time.Now().Add(wait))
			logger.Warn("%s: rate limited, waiting %s", op, wait.Round(time.Second))
			return
		}
		st.retries.Add(1)
		logger.Debug("%s: attempt %d failed (%v), retrying in %s", op, attempt+1, d.Err, wait)
	}
}
