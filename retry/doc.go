// Package retry implements the retry policy applied by the HTTP client
// to a single outbound request.
//
// Policy
//   - A Config is built from defaults merged with functional options.
//   - A failed attempt is retried when the retry budget has room, the
//     request method is retryable, and either the response status falls
//     in a configured range or the failure produced no response at all.
//   - No-response failures carry their own budget (NoResponseRetries)
//     on top of the overall MaxRetries budget; retrying stops as soon
//     as either is exhausted.
//   - ShouldRetry, when set, replaces the built-in decision entirely.
//
// Backoff
//   - Delay before retry n (1-indexed) is RetryDelay * 2^(n-1).
//   - OnRetryAttempt, when set, fires once per retry after the attempt
//     counter is bumped and before the delay starts.
//
// Configs are cheap; build one per logical call. The HTTP client clones
// the policy it is handed, so a Config value is never shared between
// concurrent calls.
package retry
