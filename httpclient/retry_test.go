package httpclient

import (
	"context"
	"fmt"
	nethttp "net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/sync/errgroup"

	"github.com/gaborage/go-retryhttp/retry"
)

// fastRetry returns the default policy with a short base delay so tests
// exercising the full budget stay quick
func fastRetry(opts ...retry.Option) *retry.Config {
	merged := append([]retry.Option{retry.WithRetryDelay(time.Millisecond)}, opts...)
	return retry.New(merged...)
}

func TestRetryOn5xxThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(nethttp.StatusInternalServerError)
			w.Write([]byte("fail"))
			return
		}
		w.WriteHeader(nethttp.StatusOK)
		w.Write([]byte(`{"buttered":"🥖"}`))
	}))
	defer server.Close()

	c := NewClient(createTestLogger())
	req := &Request{URL: server.URL, Retry: fastRetry()}

	resp, err := c.Get(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, `{"buttered":"🥖"}`, string(resp.Body))
	assert.Equal(t, int32(2), calls.Load())
}

func TestRetryBudgetExhausted(t *testing.T) {
	var calls atomic.Int32
	server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		calls.Add(1)
		w.WriteHeader(nethttp.StatusInternalServerError)
		w.Write([]byte("fail"))
	}))
	defer server.Close()

	c := NewClient(createTestLogger())
	req := &Request{URL: server.URL, Retry: fastRetry()}

	resp, err := c.Get(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, int32(4), calls.Load()) // initial + 3 retries

	// The last response still comes back alongside the terminal error
	require.NotNil(t, resp)
	assert.Equal(t, nethttp.StatusInternalServerError, resp.StatusCode)

	assert.True(t, IsErrorType(err, RetryError))
	assert.True(t, IsHTTPStatusError(err, nethttp.StatusInternalServerError))

	cfg, ok := RetryConfigFromError(err)
	require.True(t, ok)
	assert.Equal(t, 3, cfg.CurrentRetryAttempt)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 2, cfg.NoResponseRetries)
}

func TestNoRetryOn404(t *testing.T) {
	var calls atomic.Int32
	server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		calls.Add(1)
		w.WriteHeader(nethttp.StatusNotFound)
	}))
	defer server.Close()

	c := NewClient(createTestLogger())
	req := &Request{URL: server.URL, Retry: fastRetry()}

	resp, err := c.Get(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	require.NotNil(t, resp)
	assert.Equal(t, nethttp.StatusNotFound, resp.StatusCode)

	cfg, ok := RetryConfigFromError(err)
	require.True(t, ok)
	assert.Equal(t, 0, cfg.CurrentRetryAttempt)
}

func TestZeroRetryBudget(t *testing.T) {
	var calls atomic.Int32
	server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		calls.Add(1)
		w.WriteHeader(nethttp.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(createTestLogger())
	req := &Request{URL: server.URL, Retry: fastRetry(retry.WithMaxRetries(0))}

	_, err := c.Get(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	cfg, ok := RetryConfigFromError(err)
	require.True(t, ok)
	assert.Equal(t, 0, cfg.CurrentRetryAttempt)
}

func TestPostNeverRetriedByDefault(t *testing.T) {
	var calls atomic.Int32
	server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		calls.Add(1)
		w.WriteHeader(nethttp.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(createTestLogger())
	req := &Request{URL: server.URL, Retry: fastRetry()}

	_, err := c.Post(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	cfg, ok := RetryConfigFromError(err)
	require.True(t, ok)
	assert.Equal(t, 0, cfg.CurrentRetryAttempt)
}

func TestNoResponseRetriesStopAtSmallerBudget(t *testing.T) {
	var calls atomic.Int32
	transport := roundTripperFunc(func(_ *nethttp.Request) (*nethttp.Response, error) {
		calls.Add(1)
		return nil, fmt.Errorf("connection refused")
	})

	c := NewBuilder(createTestLogger()).WithTransport(transport).Build()
	req := &Request{URL: "http://example.invalid", Retry: fastRetry()}

	_, err := c.Get(context.Background(), req)
	require.Error(t, err)
	// Defaults: MaxRetries 3, NoResponseRetries 2 -> initial + 2 retries
	assert.Equal(t, int32(3), calls.Load())

	assert.True(t, IsErrorType(err, RetryError))
	assert.True(t, IsErrorType(err, NetworkError))

	cfg, ok := RetryConfigFromError(err)
	require.True(t, ok)
	assert.Equal(t, 2, cfg.CurrentRetryAttempt)
}

func TestOnRetryAttemptObserver(t *testing.T) {
	var calls atomic.Int32
	server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		calls.Add(1)
		w.WriteHeader(nethttp.StatusServiceUnavailable)
	}))
	defer server.Close()

	var observed []int
	var observedDelays []time.Duration
	policy := fastRetry(
		retry.WithRetryDelay(2*time.Millisecond),
		retry.WithOnRetryAttempt(func(a retry.Attempt, cfg *retry.Config) {
			assert.Equal(t, nethttp.StatusServiceUnavailable, a.StatusCode)
			observed = append(observed, cfg.CurrentRetryAttempt)
			observedDelays = append(observedDelays, cfg.Backoff())
		}),
	)

	c := NewClient(createTestLogger())
	req := &Request{URL: server.URL, Retry: policy}

	_, err := c.Get(context.Background(), req)
	require.Error(t, err)

	// Fires once per retry, 1-indexed, before the backoff delay
	assert.Equal(t, []int{1, 2, 3}, observed)
	// Exponential schedule: delay * 2^(n-1)
	assert.Equal(t, []time.Duration{
		2 * time.Millisecond,
		4 * time.Millisecond,
		8 * time.Millisecond,
	}, observedDelays)
	assert.Equal(t, int32(4), calls.Load())
}

func TestShouldRetryOverride(t *testing.T) {
	t.Run("forces retry of a POST", func(t *testing.T) {
		var calls atomic.Int32
		server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(nethttp.StatusInternalServerError)
				return
			}
			w.WriteHeader(nethttp.StatusOK)
		}))
		defer server.Close()

		policy := fastRetry(retry.WithShouldRetry(func(a retry.Attempt, cfg *retry.Config) bool {
			return cfg.CurrentRetryAttempt < 1
		}))

		c := NewClient(createTestLogger())
		req := &Request{URL: server.URL, Retry: policy}

		_, err := c.Post(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("suppresses retry of a 500", func(t *testing.T) {
		var calls atomic.Int32
		server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
			calls.Add(1)
			w.WriteHeader(nethttp.StatusInternalServerError)
		}))
		defer server.Close()

		policy := fastRetry(retry.WithShouldRetry(func(retry.Attempt, *retry.Config) bool {
			return false
		}))

		c := NewClient(createTestLogger())
		req := &Request{URL: server.URL, Retry: policy}

		_, err := c.Get(context.Background(), req)
		require.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestClientDefaultRetryPolicy(t *testing.T) {
	var calls atomic.Int32
	server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(nethttp.StatusInternalServerError)
			return
		}
		w.WriteHeader(nethttp.StatusOK)
	}))
	defer server.Close()

	c := NewBuilder(createTestLogger()).
		WithRetryPolicy(fastRetry()).
		Build()

	// Request carries no policy of its own; the client default applies
	_, err := c.Get(context.Background(), &Request{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSharedPolicyNotMutatedAcrossCalls(t *testing.T) {
	server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		w.WriteHeader(nethttp.StatusInternalServerError)
	}))
	defer server.Close()

	policy := fastRetry()
	c := NewClient(createTestLogger())
	req := &Request{URL: server.URL, Retry: policy}

	for i := 0; i < 2; i++ {
		_, err := c.Get(context.Background(), req)
		require.Error(t, err)

		cfg, ok := RetryConfigFromError(err)
		require.True(t, ok)
		// Every call starts its own count from zero
		assert.Equal(t, 3, cfg.CurrentRetryAttempt)
	}
	assert.Equal(t, 0, policy.CurrentRetryAttempt)
}

func TestConcurrentCallsAreIndependent(t *testing.T) {
	var calls atomic.Int32
	server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		// Fail the first few requests so some calls take a retry; each caller
		// has budget to spare, so every call still succeeds
		if calls.Add(1) <= 2 {
			w.WriteHeader(nethttp.StatusInternalServerError)
			return
		}
		w.WriteHeader(nethttp.StatusOK)
	}))
	defer server.Close()

	c := NewClient(createTestLogger())
	policy := fastRetry()

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := c.Get(context.Background(), &Request{URL: server.URL, Retry: policy})
			return err
		})
	}
	require.NoError(t, g.Wait())
}

func TestContextCancellationAbortsBackoff(t *testing.T) {
	var calls atomic.Int32
	transport := roundTripperFunc(func(_ *nethttp.Request) (*nethttp.Response, error) {
		calls.Add(1)
		return nil, fmt.Errorf("connection refused")
	})

	c := NewBuilder(createTestLogger()).WithTransport(transport).Build()
	policy := retry.New(retry.WithRetryDelay(10 * time.Second))
	req := &Request{URL: "http://example.invalid", Retry: policy}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Get(ctx, req)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, int32(1), calls.Load())

	cfg, ok := RetryConfigFromError(err)
	require.True(t, ok)
	assert.Equal(t, 1, cfg.CurrentRetryAttempt)
}

func TestRetrySpanEvents(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	defer otel.SetTracerProvider(prev)

	var calls atomic.Int32
	server := newIPv4TestServer(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(nethttp.StatusInternalServerError)
			return
		}
		w.WriteHeader(nethttp.StatusOK)
	}))
	defer server.Close()

	c := NewClient(createTestLogger())
	req := &Request{URL: server.URL, Retry: fastRetry()}

	_, err := c.Get(context.Background(), req)
	require.NoError(t, err)

	spans := recorder.Ended()
	require.NotEmpty(t, spans)
	span := spans[len(spans)-1]
	assert.Equal(t, "httpclient.do", span.Name())

	var retryEvents int
	for _, ev := range span.Events() {
		if ev.Name == "retry" {
			retryEvents++
		}
	}
	assert.Equal(t, 1, retryEvents)
}
