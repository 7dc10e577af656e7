package retry

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	// DefaultMaxRetries is the default maximum number of retries after the initial attempt
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the default base delay used for exponential backoff
	DefaultRetryDelay = 100 * time.Millisecond

	// DefaultNoResponseRetries is the default retry budget for attempts that failed
	// without producing any HTTP response
	DefaultNoResponseRetries = 2
)

// StatusRange is an inclusive [Min, Max] range of HTTP status codes.
type StatusRange struct {
	Min int `validate:"gte=0"`
	Max int `validate:"gtefield=Min"`
}

// Contains reports whether the status code falls inside the range.
func (r StatusRange) Contains(code int) bool {
	return code >= r.Min && code <= r.Max
}

// ShouldRetryFunc decides whether a failed attempt is retried. When set on a
// Config it fully replaces the built-in decision, including the budget and
// method checks. The policy passed in is the live per-call snapshot; its
// CurrentRetryAttempt has not yet been bumped for the retry under evaluation.
type ShouldRetryFunc func(a Attempt, cfg *Config) bool

// OnRetryAttemptFunc observes a retry that is about to happen. It runs
// synchronously after CurrentRetryAttempt is bumped and before the backoff
// delay starts.
type OnRetryAttemptFunc func(a Attempt, cfg *Config)

// Config is the retry policy for one logical HTTP call.
//
// The zero value is not usable; build a Config with New so unset fields pick
// up the defaults above. Explicit zero options (e.g. WithMaxRetries(0)) are
// honored as configured values, not replaced by defaults.
type Config struct {
	// MaxRetries caps the number of retries taken after the initial attempt.
	MaxRetries int `validate:"gte=0"`
	// RetryDelay is the base backoff delay; see Backoff.
	RetryDelay time.Duration `validate:"gte=0"`
	// HTTPMethodsToRetry lists the request methods eligible for retry.
	// Requests using any other method fail terminally on the first failure.
	HTTPMethodsToRetry []string `validate:"min=1"`
	// StatusCodesToRetry lists the response status ranges eligible for retry.
	StatusCodesToRetry []StatusRange `validate:"dive"`
	// NoResponseRetries caps retries of attempts that produced no response.
	NoResponseRetries int `validate:"gte=0"`
	// CurrentRetryAttempt counts the retries actually taken for this call.
	// It starts at 0 and never exceeds MaxRetries under the built-in policy.
	CurrentRetryAttempt int

	ShouldRetry    ShouldRetryFunc    `validate:"-"`
	OnRetryAttempt OnRetryAttemptFunc `validate:"-"`
}

// Option mutates a Config during construction.
type Option func(*Config)

// WithMaxRetries sets the overall retry budget.
func WithMaxRetries(n int) Option {
	return func(c *Config) { c.MaxRetries = n }
}

// WithRetryDelay sets the base backoff delay.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Config) { c.RetryDelay = d }
}

// WithNoResponseRetries sets the retry budget for no-response failures.
func WithNoResponseRetries(n int) Option {
	return func(c *Config) { c.NoResponseRetries = n }
}

// WithMethods replaces the set of retryable request methods.
// Method names are normalized to upper case.
func WithMethods(methods ...string) Option {
	return func(c *Config) {
		normalized := make([]string, 0, len(methods))
		for _, m := range methods {
			normalized = append(normalized, strings.ToUpper(m))
		}
		c.HTTPMethodsToRetry = normalized
	}
}

// WithStatusRanges replaces the set of retryable status code ranges.
func WithStatusRanges(ranges ...StatusRange) Option {
	return func(c *Config) { c.StatusCodesToRetry = ranges }
}

// WithShouldRetry installs a full override of the retry decision.
func WithShouldRetry(fn ShouldRetryFunc) Option {
	return func(c *Config) { c.ShouldRetry = fn }
}

// WithOnRetryAttempt installs a per-retry observer.
func WithOnRetryAttempt(fn OnRetryAttemptFunc) Option {
	return func(c *Config) { c.OnRetryAttempt = fn }
}

// New builds a policy from the defaults merged with the supplied options.
// CurrentRetryAttempt always starts at 0 regardless of options.
func New(opts ...Option) *Config {
	cfg := &Config{
		MaxRetries:         DefaultMaxRetries,
		RetryDelay:         DefaultRetryDelay,
		HTTPMethodsToRetry: defaultMethods(),
		StatusCodesToRetry: defaultStatusRanges(),
		NoResponseRetries:  DefaultNoResponseRetries,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.CurrentRetryAttempt = 0
	return cfg
}

// Default returns a policy with all defaults, the equivalent of the
// "retry: true" shorthand.
func Default() *Config {
	return New()
}

// defaultMethods returns a fresh slice so callers never share the defaults.
func defaultMethods() []string {
	return []string{"GET", "HEAD", "PUT", "OPTIONS", "DELETE"}
}

// defaultStatusRanges covers informational responses, 429 and all 5xx.
func defaultStatusRanges() []StatusRange {
	return []StatusRange{
		{Min: 100, Max: 199},
		{Min: 429, Max: 429},
		{Min: 500, Max: 599},
	}
}

// Clone returns a per-call copy of the policy with a reset attempt counter.
// Slices are copied so the original is never mutated by a call in flight.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.HTTPMethodsToRetry = append([]string(nil), c.HTTPMethodsToRetry...)
	clone.StatusCodesToRetry = append([]StatusRange(nil), c.StatusCodesToRetry...)
	clone.CurrentRetryAttempt = 0
	return &clone
}

var configValidator = validator.New()

// Validate checks the policy for nonsensical values (negative budgets,
// inverted status ranges, empty method set).
func (c *Config) Validate() error {
	return configValidator.Struct(c)
}
