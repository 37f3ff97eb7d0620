// Package retry provides an explicit retry policy with exponential backoff
// for calls into rate-limited services.
package retry

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/aws/smithy-go"
)

// Policy configures retry behavior. Only errors accepted by Retryable are
// retried; everything else propagates immediately.
type Policy struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	MaxAttempts int
	// InitialDelay is the delay after the first failure.
	InitialDelay time.Duration
	// Factor is the multiplier for exponential backoff.
	Factor float64
	// Retryable decides whether an error is worth another attempt.
	// A nil predicate retries every error.
	Retryable func(error) bool
}

// ThrottlePolicy returns the policy used for externally rate-limited model
// calls: up to 5 attempts, 2s initial delay doubling each retry, retrying
// only throttling error classes.
func ThrottlePolicy() Policy {
	return Policy{
		MaxAttempts:  5,
		InitialDelay: 2 * time.Second,
		Factor:       2.0,
		Retryable:    IsThrottle,
	}
}

// Do executes op with retries. It returns the result of the last attempt.
func Do[T any](ctx context.Context, policy Policy, op func() (T, error)) (T, error) {
	var zero T

	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = time.Second
	}
	if policy.Factor <= 0 {
		policy.Factor = 2.0
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		value, err := op()
		if err == nil {
			return value, nil
		}
		lastErr = err

		if policy.Retryable != nil && !policy.Retryable(err) {
			return zero, err
		}
		if attempt >= policy.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(Backoff(policy, attempt)):
		}
	}
	return zero, lastErr
}

// Backoff calculates the delay before the attempt following the given one.
// The formula is initial * factor^(attempt-1).
func Backoff(policy Policy, attempt int) time.Duration {
	exp := math.Max(float64(attempt-1), 0)
	return time.Duration(float64(policy.InitialDelay) * math.Pow(policy.Factor, exp))
}

// throttleCodes are the service error codes treated as rate limiting.
var throttleCodes = map[string]bool{
	"ThrottlingException":      true,
	"RequestLimitExceeded":     true,
	"TooManyRequestsException": true,
}

// IsThrottle reports whether err is a throttling/rate-limit error from an
// AWS service.
func IsThrottle(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return throttleCodes[apiErr.ErrorCode()]
	}
	return false
}
