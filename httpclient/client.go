package httpclient

import (
	"context"
	"fmt"
	nethttp "net/http"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/gaborage/go-retryhttp/logger"
	"github.com/gaborage/go-retryhttp/retry"
)

const (
	// DefaultTimeout is the default request timeout duration
	DefaultTimeout = 30 * time.Second

	// DefaultMaxPayloadLogBytes caps payload logging when enabled
	DefaultMaxPayloadLogBytes = 2048

	tracerName = "github.com/gaborage/go-retryhttp/httpclient"
)

// client implements the Client interface
type client struct {
	httpClient           *nethttp.Client
	logger               logger.Logger
	config               *Config
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
	callCount            int64
}

// NewClient creates a new REST client with default configuration
func NewClient(log logger.Logger) Client {
	return NewBuilder(log).Build()
}

// Builder provides a fluent interface for configuring the REST client
type Builder struct {
	config     *Config
	logger     logger.Logger
	httpClient *nethttp.Client
	transport  nethttp.RoundTripper
}

// NewBuilder creates a new client builder
func NewBuilder(log logger.Logger) *Builder {
	return &Builder{
		config: &Config{
			Timeout:              DefaultTimeout,
			RequestInterceptors:  []RequestInterceptor{},
			ResponseInterceptors: []ResponseInterceptor{},
			DefaultHeaders:       make(map[string]string),
			MaxPayloadLogBytes:   DefaultMaxPayloadLogBytes,
			TraceIDHeader:        HeaderXRequestID,
			NewTraceID:           func() string { return GetTraceIDFromContext(context.Background()) },
			TraceIDExtractor:     TraceIDFromContext,
			EnableW3CTrace:       true,
		},
		logger: log,
	}
}

// WithTimeout sets the request timeout
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Timeout = timeout
	return b
}

// WithRetryPolicy sets the default retry policy applied to requests that do
// not carry their own. Pass retry.Default() for the stock policy or nil to
// disable retries (the default).
func (b *Builder) WithRetryPolicy(cfg *retry.Config) *Builder {
	b.config.Retry = cfg
	return b
}

// WithRateLimit paces outbound attempts (including retries) at the given
// rate with the given burst
func (b *Builder) WithRateLimit(limit rate.Limit, burst int) *Builder {
	b.config.Limiter = rate.NewLimiter(limit, burst)
	return b
}

// WithBasicAuth sets basic authentication credentials
func (b *Builder) WithBasicAuth(username, password string) *Builder {
	b.config.BasicAuth = &BasicAuth{
		Username: username,
		Password: password,
	}
	return b
}

// WithDefaultHeader adds a default header that will be sent with all requests
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.config.DefaultHeaders[key] = value
	return b
}

// WithRequestInterceptor adds a request interceptor
func (b *Builder) WithRequestInterceptor(interceptor RequestInterceptor) *Builder {
	b.config.RequestInterceptors = append(b.config.RequestInterceptors, interceptor)
	return b
}

// WithResponseInterceptor adds a response interceptor
func (b *Builder) WithResponseInterceptor(interceptor ResponseInterceptor) *Builder {
	b.config.ResponseInterceptors = append(b.config.ResponseInterceptors, interceptor)
	return b
}

// WithHTTPClient supplies a pre-configured *http.Client. A zero timeout on
// the supplied client is filled in from the builder's timeout.
func (b *Builder) WithHTTPClient(httpClient *nethttp.Client) *Builder {
	b.httpClient = httpClient
	return b
}

// WithTransport sets a custom transport on the client
func (b *Builder) WithTransport(transport nethttp.RoundTripper) *Builder {
	b.transport = transport
	return b
}

// WithPayloadLogging enables debug logging of request/response payloads,
// capped at maxBytes per body
func (b *Builder) WithPayloadLogging(enabled bool, maxBytes int) *Builder {
	b.config.LogPayloads = enabled
	if maxBytes > 0 {
		b.config.MaxPayloadLogBytes = maxBytes
	}
	return b
}

// WithTraceIDHeader overrides the header used for trace ID propagation
func (b *Builder) WithTraceIDHeader(header string) *Builder {
	if header != "" {
		b.config.TraceIDHeader = header
	}
	return b
}

// WithTraceIDGenerator overrides how trace IDs are generated
func (b *Builder) WithTraceIDGenerator(generator func() string) *Builder {
	if generator != nil {
		b.config.NewTraceID = generator
	}
	return b
}

// WithTraceIDExtractor overrides how trace IDs are pulled from the context
func (b *Builder) WithTraceIDExtractor(extractor func(ctx context.Context) (string, bool)) *Builder {
	if extractor != nil {
		b.config.TraceIDExtractor = extractor
	}
	return b
}

// WithW3CTrace toggles W3C trace context propagation
func (b *Builder) WithW3CTrace(enabled bool) *Builder {
	b.config.EnableW3CTrace = enabled
	return b
}

// Build creates the REST client with the configured options
func (b *Builder) Build() Client {
	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = &nethttp.Client{Timeout: b.config.Timeout}
	} else if httpClient.Timeout == 0 {
		httpClient.Timeout = b.config.Timeout
	}
	if b.transport != nil {
		httpClient.Transport = b.transport
	}

	return &client{
		httpClient:           httpClient,
		logger:               b.logger,
		config:               b.config,
		requestInterceptors:  b.config.RequestInterceptors,
		responseInterceptors: b.config.ResponseInterceptors,
	}
}

// Get performs a GET request
func (c *client) Get(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodGet, req)
}

// Head performs a HEAD request
func (c *client) Head(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodHead, req)
}

// Post performs a POST request
func (c *client) Post(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPost, req)
}

// Put performs a PUT request
func (c *client) Put(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPut, req)
}

// Patch performs a PATCH request
func (c *client) Patch(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPatch, req)
}

// Delete performs a DELETE request
func (c *client) Delete(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodDelete, req)
}

// Options performs an OPTIONS request
func (c *client) Options(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodOptions, req)
}

// Do performs an HTTP request with the specified method, applying the retry
// policy attached to the request (or the client default) to qualifying
// failures. The request itself is re-sent unchanged on every attempt.
func (c *client) Do(ctx context.Context, method string, req *Request) (*Response, error) {
	if err := c.validateRequest(req); err != nil {
		return nil, err
	}

	// Fresh policy per call; a shared policy value is never mutated and the
	// attempt counter always starts at 0.
	policy := req.Retry
	if policy == nil {
		policy = c.config.Retry
	}
	cfg := policy.Clone()

	start := time.Now()
	callCount := atomic.AddInt64(&c.callCount, 1)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "httpclient.do",
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.full", req.URL),
		))
	defer span.End()

	for {
		if c.config.Limiter != nil {
			if err := c.config.Limiter.Wait(ctx); err != nil {
				return nil, c.terminal(span, nil, NewNetworkError("rate limiter wait aborted", err), cfg)
			}
		}

		c.logRequest(method, req)

		resp, err := c.sendOnce(ctx, method, req, start, callCount)
		if err != nil && !isNoResponseFailure(err) {
			// Validation and interceptor failures are never retried
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		if err == nil && IsSuccessStatus(resp.StatusCode) {
			c.logResponse(resp)
			span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
			return resp, nil
		}

		attempt := retry.Attempt{Method: method, Err: err}
		if resp != nil {
			attempt.StatusCode = resp.StatusCode
		}

		if cfg != nil && cfg.ShouldRetryAttempt(attempt) {
			delay := cfg.RecordRetry(attempt)
			c.logRetry(method, req, attempt, cfg, delay)
			span.AddEvent("retry", oteltrace.WithAttributes(
				attribute.Int("retry.attempt", cfg.CurrentRetryAttempt),
				attribute.String("retry.delay", delay.String()),
			))
			if waitErr := waitBackoff(ctx, delay); waitErr != nil {
				return resp, c.terminal(span, resp, NewNetworkError("backoff wait aborted", waitErr), cfg)
			}
			continue
		}

		if err == nil {
			c.logResponse(resp)
			err = NewHTTPError(
				fmt.Sprintf("HTTP request failed with status %d", resp.StatusCode),
				resp.StatusCode,
				resp.Body,
			)
		}
		return resp, c.terminal(span, resp, err, cfg)
	}
}

// terminal annotates a terminal failure with the final policy state and
// records it on the span
func (c *client) terminal(span oteltrace.Span, resp *Response, cause error, cfg *retry.Config) error {
	err := cause
	if cfg != nil {
		err = NewRetryError(cause, cfg)
	}
	span.SetStatus(codes.Error, err.Error())
	if resp != nil {
		span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	}
	return err
}

// waitBackoff suspends this call (and only this call) for the backoff delay,
// giving up early when the context is done
func waitBackoff(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
