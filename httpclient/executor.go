package httpclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	nethttp "net/http"
	"time"

	"github.com/go-playground/validator/v10"
)

var requestValidator = validator.New()

// sendOnce performs exactly one HTTP attempt: build the request, send it,
// read the response. Any received response is a successful send regardless of
// its status code; the returned error is non-nil only when no response was
// obtained (transport failure, timeout) or when an interceptor failed.
// Retry decisions belong to the caller, never to this function.
func (c *client) sendOnce(ctx context.Context, method string, req *Request, start time.Time, callCount int64) (*Response, error) {
	httpReq, err := c.buildRequest(ctx, method, req)
	if err != nil {
		return nil, err
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if c.isTimeout(err) {
			return nil, NewTimeoutError("request timeout", c.config.Timeout)
		}
		return nil, NewNetworkError("request execution failed", err)
	}

	return c.buildResponse(ctx, start, callCount, httpReq, httpResp)
}

// validateRequest validates the request before the first attempt
func (c *client) validateRequest(req *Request) error {
	if req == nil {
		return NewValidationError("request cannot be nil", "request")
	}
	if req.URL == "" {
		return NewValidationError("URL cannot be empty", "url")
	}
	if err := requestValidator.Struct(req); err != nil {
		return NewValidationError(err.Error(), "url")
	}
	return nil
}

// buildRequest constructs an *http.Request, applies headers/auth/trace, and
// runs request interceptors. It is called once per attempt so the body reader
// is fresh every time.
func (c *client) buildRequest(ctx context.Context, method string, req *Request) (*nethttp.Request, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := nethttp.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, NewValidationError(err.Error(), "url")
	}

	c.applyHeaders(httpReq, req)
	c.applyAuth(httpReq, req)
	c.applyTraceHeaders(ctx, httpReq)

	if err := c.runRequestInterceptors(ctx, httpReq); err != nil {
		return nil, NewInterceptorError("request interceptor failed", "request", err)
	}
	return httpReq, nil
}

// applyHeaders applies default and request-specific headers
func (c *client) applyHeaders(httpReq *nethttp.Request, req *Request) {
	for key, value := range c.config.DefaultHeaders {
		httpReq.Header.Set(key, value)
	}

	// Request-specific headers override defaults
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	if httpReq.Header.Get("Content-Type") == "" && req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
}

// applyAuth applies authentication; request-level auth takes precedence
func (c *client) applyAuth(httpReq *nethttp.Request, req *Request) {
	auth := req.Auth
	if auth == nil {
		auth = c.config.BasicAuth
	}

	if auth != nil {
		httpReq.SetBasicAuth(auth.Username, auth.Password)
	}
}

// applyTraceHeaders sets the trace ID header (header > context > generator)
// and, when enabled, the W3C traceparent/tracestate pair.
func (c *client) applyTraceHeaders(ctx context.Context, httpReq *nethttp.Request) {
	header := c.config.TraceIDHeader
	if header == "" {
		header = HeaderXRequestID
	}

	if httpReq.Header.Get(header) == "" {
		traceID, ok := c.config.TraceIDExtractor(ctx)
		if !ok || traceID == "" {
			traceID = c.config.NewTraceID()
		}
		httpReq.Header.Set(header, traceID)
	}

	if !c.config.EnableW3CTrace {
		return
	}
	if httpReq.Header.Get(HeaderTraceParent) == "" {
		tp, ok := TraceParentFromContext(ctx)
		if !ok {
			tp = GenerateTraceParent()
		}
		httpReq.Header.Set(HeaderTraceParent, tp)
	}
	if ts, ok := TraceStateFromContext(ctx); ok && httpReq.Header.Get(HeaderTraceState) == "" {
		httpReq.Header.Set(HeaderTraceState, ts)
	}
}

// buildResponse runs response interceptors, reads the body, and builds a Response
func (c *client) buildResponse(ctx context.Context, start time.Time, callCount int64, httpReq *nethttp.Request, httpResp *nethttp.Response) (*Response, error) {
	defer httpResp.Body.Close()

	if err := c.runResponseInterceptors(ctx, httpReq, httpResp); err != nil {
		return nil, NewInterceptorError("response interceptor failed", "response", err)
	}

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, NewNetworkError("failed to read response body", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       respBody,
		Headers:    httpResp.Header,
		Stats: Stats{
			ElapsedTime: time.Since(start),
			CallCount:   callCount,
		},
	}, nil
}

func (c *client) isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// runRequestInterceptors executes all request interceptors
func (c *client) runRequestInterceptors(ctx context.Context, req *nethttp.Request) error {
	for _, interceptor := range c.requestInterceptors {
		if err := interceptor(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// runResponseInterceptors executes all response interceptors
func (c *client) runResponseInterceptors(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error {
	for _, interceptor := range c.responseInterceptors {
		if err := interceptor(ctx, req, resp); err != nil {
			return err
		}
	}
	return nil
}
