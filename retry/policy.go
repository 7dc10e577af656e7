package retry

import (
	"strings"
	"time"
)

// maxBackoffShift caps the exponent so the shift below cannot overflow.
const maxBackoffShift = 20

// Attempt is the outcome of one HTTP attempt as seen by the policy:
// either a received response status or a transport error, never both.
type Attempt struct {
	// Method is the request method of the attempt.
	Method string
	// StatusCode is the received response status, 0 when no response arrived.
	StatusCode int
	// Err is the transport failure, nil when a response was received.
	Err error
}

// NoResponse reports whether the attempt failed before any response arrived.
func (a Attempt) NoResponse() bool {
	return a.Err != nil
}

// ShouldRetryAttempt reports whether the failed attempt should be retried.
// A ShouldRetry override, when present, is authoritative; otherwise the
// built-in decision applies:
//   - the overall budget must have room (CurrentRetryAttempt < MaxRetries)
//   - the request method must be in HTTPMethodsToRetry
//   - a no-response failure must also fit the NoResponseRetries budget
//   - a response failure must carry a status inside StatusCodesToRetry
func (c *Config) ShouldRetryAttempt(a Attempt) bool {
	if c.ShouldRetry != nil {
		return c.ShouldRetry(a, c)
	}
	if c.CurrentRetryAttempt >= c.MaxRetries {
		return false
	}
	if !c.MethodRetryable(a.Method) {
		return false
	}
	if a.NoResponse() {
		return c.CurrentRetryAttempt < c.NoResponseRetries
	}
	return c.StatusRetryable(a.StatusCode)
}

// MethodRetryable reports whether the method is eligible for retry.
func (c *Config) MethodRetryable(method string) bool {
	method = strings.ToUpper(method)
	for _, m := range c.HTTPMethodsToRetry {
		if m == method {
			return true
		}
	}
	return false
}

// StatusRetryable reports whether the status code falls in a configured range.
func (c *Config) StatusRetryable(code int) bool {
	for _, r := range c.StatusCodesToRetry {
		if r.Contains(code) {
			return true
		}
	}
	return false
}

// RecordRetry consumes one retry: it bumps CurrentRetryAttempt, notifies the
// observer, and returns the backoff delay to wait before the next attempt.
// Call it only after ShouldRetryAttempt returned true.
func (c *Config) RecordRetry(a Attempt) time.Duration {
	c.CurrentRetryAttempt++
	if c.OnRetryAttempt != nil {
		c.OnRetryAttempt(a, c)
	}
	return c.Backoff()
}

// Backoff returns the delay before retry n, where n is the current value of
// CurrentRetryAttempt: RetryDelay * 2^(n-1).
func (c *Config) Backoff() time.Duration {
	shift := c.CurrentRetryAttempt - 1
	if shift < 0 {
		shift = 0
	}
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	return c.RetryDelay * time.Duration(1<<shift)
}
