package httpclient

import (
	"context"
	nethttp "net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceIDContext(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "test-trace-123")

		traceID, ok := TraceIDFromContext(ctx)
		assert.True(t, ok)
		assert.Equal(t, "test-trace-123", traceID)
	})

	t.Run("absent", func(t *testing.T) {
		_, ok := TraceIDFromContext(context.Background())
		assert.False(t, ok)
	})

	t.Run("GetTraceIDFromContext generates UUID when no trace ID", func(t *testing.T) {
		traceID := GetTraceIDFromContext(context.Background())
		assert.NotEmpty(t, traceID)
		assert.Len(t, traceID, 36) // UUID format
	})
}

func TestTraceParentAndState(t *testing.T) {
	ctx := context.Background()
	ctx = WithTraceParent(ctx, "00-0123456789abcdef0123456789abcdef-0123456789abcdef-01")
	ctx = WithTraceState(ctx, "vendor=k:v")

	tp, ok := TraceParentFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "00-0123456789abcdef0123456789abcdef-0123456789abcdef-01", tp)

	ts, ok := TraceStateFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "vendor=k:v", ts)
}

func TestGenerateTraceParent(t *testing.T) {
	tp := GenerateTraceParent()

	parts := strings.Split(tp, "-")
	require.Len(t, parts, 4)
	assert.Equal(t, "00", parts[0])
	assert.Len(t, parts[1], 32)
	assert.Len(t, parts[2], 16)
	assert.Equal(t, "01", parts[3])

	// IDs must not be all zero
	assert.NotEqual(t, strings.Repeat("0", 32), parts[1])
	assert.NotEqual(t, strings.Repeat("0", 16), parts[2])
}

func TestNewTraceIDInterceptor(t *testing.T) {
	interceptor := NewTraceIDInterceptor()
	require.NotNil(t, interceptor)

	t.Run("adds header when missing", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "test-trace")
		req, _ := nethttp.NewRequestWithContext(ctx, "GET", "http://example.com", nethttp.NoBody)

		require.NoError(t, interceptor(ctx, req))
		assert.Equal(t, "test-trace", req.Header.Get(HeaderXRequestID))
	})

	t.Run("does not override existing header", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "test-trace")
		req, _ := nethttp.NewRequestWithContext(ctx, "GET", "http://example.com", nethttp.NoBody)
		req.Header.Set(HeaderXRequestID, "existing-trace")

		require.NoError(t, interceptor(ctx, req))
		assert.Equal(t, "existing-trace", req.Header.Get(HeaderXRequestID))
	})
}

func TestNewTraceIDInterceptorFor(t *testing.T) {
	interceptor := NewTraceIDInterceptorFor("X-My-Trace")

	ctx := WithTraceID(context.Background(), "custom-header-trace")
	req, _ := nethttp.NewRequestWithContext(ctx, "GET", "http://example.com", nethttp.NoBody)

	require.NoError(t, interceptor(ctx, req))
	assert.Equal(t, "custom-header-trace", req.Header.Get("X-My-Trace"))

	t.Run("empty header falls back to default", func(t *testing.T) {
		fallback := NewTraceIDInterceptorFor("")
		req, _ := nethttp.NewRequestWithContext(ctx, "GET", "http://example.com", nethttp.NoBody)

		require.NoError(t, fallback(ctx, req))
		assert.Equal(t, "custom-header-trace", req.Header.Get(HeaderXRequestID))
	})
}
