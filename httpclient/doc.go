// Package httpclient provides a small, composable REST client with
// request/response interceptors, default headers, basic auth, trace-ID
// propagation, and a per-call retry policy with exponential backoff.
//
// Retries
//   - Policy is a *retry.Config, attached per request (Request.Retry)
//     or as a client default (Builder.WithRetryPolicy). retry.Default()
//     is the "retry everything sensible" shorthand; a nil policy
//     disables retries entirely.
//   - The client performs exactly one attempt, then consults the policy
//     after each failure: HTTP statuses inside the configured ranges and
//     transport failures (no response at all) are candidates, everything
//     else is terminal on the spot.
//   - The same request is re-sent unchanged on every attempt; the method
//     and body are never rewritten.
//   - When retries run out, the returned error exposes the final policy
//     (RetryConfigFromError), including the number of retries taken.
//
// Backoff
//   - Delay before retry n is RetryDelay * 2^(n-1), no jitter, so the
//     schedule is exact and testable.
//   - The wait is context-aware: a caller deadline or cancellation
//     abandons a pending backoff.
//
// Notes
//   - A received response is always returned, even alongside an error,
//     so callers decide for themselves what a non-2xx status means.
//   - Interceptor and validation errors are surfaced immediately and
//     never retried.
package httpclient
