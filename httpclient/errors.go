package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gaborage/go-retryhttp/retry"
)

// ClientError represents different types of REST client errors
type ClientError interface {
	error
	Type() ErrorType
}

// ErrorType defines the category of client error
type ErrorType string

const (
	NetworkError     ErrorType = "network"
	TimeoutError     ErrorType = "timeout"
	HTTPError        ErrorType = "http"
	ValidationError  ErrorType = "validation"
	InterceptorError ErrorType = "interceptor"
	RetryError       ErrorType = "retry"
)

// Machine-readable codes attached to no-response failures.
const (
	CodeTimedOut = "timed_out"
	CodeNotFound = "not_found"
	CodeCanceled = "canceled"
	CodeNetwork  = "network"
)

// networkError represents a failure that produced no HTTP response
type networkError struct {
	message string
	code    string
	wrapped error
}

func (e *networkError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("network error (%s): %s: %v", e.code, e.message, e.wrapped)
	}
	return fmt.Sprintf("network error (%s): %s", e.code, e.message)
}

func (e *networkError) Type() ErrorType {
	return NetworkError
}

func (e *networkError) Code() string {
	return e.code
}

func (e *networkError) Unwrap() error {
	return e.wrapped
}

// timeoutError represents timeout-related errors
type timeoutError struct {
	message string
	timeout time.Duration
}

func (e *timeoutError) Error() string {
	return fmt.Sprintf("timeout error: %s (timeout: %v)", e.message, e.timeout)
}

func (e *timeoutError) Type() ErrorType {
	return TimeoutError
}

func (e *timeoutError) Code() string {
	return CodeTimedOut
}

// httpError represents HTTP status-related errors
type httpError struct {
	message    string
	statusCode int
	body       []byte
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP error: %s (status: %d)", e.message, e.statusCode)
}

func (e *httpError) Type() ErrorType {
	return HTTPError
}

func (e *httpError) StatusCode() int {
	return e.statusCode
}

func (e *httpError) Body() []byte {
	return e.body
}

// validationError represents request validation errors
type validationError struct {
	message string
	field   string
}

func (e *validationError) Error() string {
	if e.field != "" {
		return fmt.Sprintf("validation error: %s (field: %s)", e.message, e.field)
	}
	return fmt.Sprintf("validation error: %s", e.message)
}

func (e *validationError) Type() ErrorType {
	return ValidationError
}

// interceptorError represents interceptor-related errors
type interceptorError struct {
	message string
	wrapped error
	stage   string
}

func (e *interceptorError) Error() string {
	return fmt.Sprintf("interceptor error: %s (stage: %s): %v", e.message, e.stage, e.wrapped)
}

func (e *interceptorError) Type() ErrorType {
	return InterceptorError
}

func (e *interceptorError) Unwrap() error {
	return e.wrapped
}

// retryExhaustedError is the terminal error returned once a retry policy was
// in effect and the request still failed: either the budgets ran out or the
// failure was never eligible. It carries the final policy state so callers
// can inspect how many retries were actually taken.
type retryExhaustedError struct {
	cause  error
	config *retry.Config
}

func (e *retryExhaustedError) Error() string {
	return fmt.Sprintf("request failed after %d retries: %v", e.config.CurrentRetryAttempt, e.cause)
}

func (e *retryExhaustedError) Type() ErrorType {
	return RetryError
}

func (e *retryExhaustedError) Unwrap() error {
	return e.cause
}

// Config returns the final per-call retry policy, including CurrentRetryAttempt.
func (e *retryExhaustedError) Config() *retry.Config {
	return e.config
}

// NewNetworkError creates a new network error with a machine-readable code
// derived from the wrapped transport failure
func NewNetworkError(message string, wrapped error) ClientError {
	return &networkError{
		message: message,
		code:    classifyNetworkError(wrapped),
		wrapped: wrapped,
	}
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, timeout time.Duration) ClientError {
	return &timeoutError{
		message: message,
		timeout: timeout,
	}
}

// NewHTTPError creates a new HTTP error
func NewHTTPError(message string, statusCode int, body []byte) ClientError {
	return &httpError{
		message:    message,
		statusCode: statusCode,
		body:       body,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message, field string) ClientError {
	return &validationError{
		message: message,
		field:   field,
	}
}

// NewInterceptorError creates a new interceptor error
func NewInterceptorError(message, stage string, wrapped error) ClientError {
	return &interceptorError{
		message: message,
		wrapped: wrapped,
		stage:   stage,
	}
}

// NewRetryError wraps a terminal failure with the final retry policy state
func NewRetryError(cause error, config *retry.Config) ClientError {
	return &retryExhaustedError{
		cause:  cause,
		config: config,
	}
}

// classifyNetworkError maps a transport failure to a stable error code
func classifyNetworkError(err error) string {
	if err == nil {
		return CodeNetwork
	}
	if errors.Is(err, context.Canceled) {
		return CodeCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimedOut
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CodeNotFound
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeTimedOut
	}
	return CodeNetwork
}

// IsErrorType checks if an error is of a specific type, looking through
// wrapping (a terminal retry error still answers true for its HTTP or
// network cause).
func IsErrorType(err error, errorType ErrorType) bool {
	for err != nil {
		var clientErr ClientError
		if !errors.As(err, &clientErr) {
			return false
		}
		if clientErr.Type() == errorType {
			return true
		}
		err = errors.Unwrap(clientErr)
	}
	return false
}

// IsHTTPStatusError checks if an error is an HTTP error with a specific status
// code, looking through retry annotations.
func IsHTTPStatusError(err error, statusCode int) bool {
	var httpErr *httpError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode() == statusCode
	}
	return false
}

// RetryConfigFromError extracts the final retry policy from a terminal error.
// It returns false when the error carries no retry metadata (no policy was in
// effect for the failed call).
func RetryConfigFromError(err error) (*retry.Config, bool) {
	var retryErr *retryExhaustedError
	if errors.As(err, &retryErr) {
		return retryErr.Config(), true
	}
	return nil, false
}

// NetworkErrorCode returns the machine-readable code of a no-response
// failure ("timed_out", "not_found", ...), or "" when the error did not
// originate from the transport.
func NetworkErrorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return ""
}

// IsSuccessStatus checks if a status code represents success (2xx)
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// isNoResponseFailure reports whether the error represents an attempt that
// failed before any HTTP response was received.
func isNoResponseFailure(err error) bool {
	return IsErrorType(err, NetworkError) || IsErrorType(err, TimeoutError)
}
