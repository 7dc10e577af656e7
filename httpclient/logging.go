package httpclient

import (
	"time"

	"github.com/gaborage/go-retryhttp/retry"
)

// logRequest logs the outgoing request
func (c *client) logRequest(method string, req *Request) {
	logEvent := c.logger.Info().
		Str("direction", "outbound").
		Str("method", method).
		Str("url", req.URL)

	logEvent.Msg("REST client request")

	if c.config.LogPayloads {
		debugEvent := c.logger.Debug().
			Str("method", method).
			Str("url", req.URL)
		if len(req.Headers) > 0 {
			debugEvent = debugEvent.Interface("headers", req.Headers)
		}
		if len(req.Body) > 0 {
			debugEvent = debugEvent.Bytes("body", c.capPayload(req.Body))
		}
		debugEvent.Msg("REST client request payload")
	}
}

// logResponse logs the incoming response
func (c *client) logResponse(resp *Response) {
	logEvent := c.logger.Info().
		Str("direction", "inbound").
		Int("status", resp.StatusCode).
		Dur("elapsed", resp.Stats.ElapsedTime).
		Int64("call_count", resp.Stats.CallCount)

	logEvent.Msg("REST client response")

	if c.config.LogPayloads && len(resp.Body) > 0 {
		c.logger.Debug().
			Int("status", resp.StatusCode).
			Bytes("body", c.capPayload(resp.Body)).
			Msg("REST client response payload")
	}
}

// logRetry logs a retry decision before the backoff delay starts
func (c *client) logRetry(method string, req *Request, attempt retry.Attempt, cfg *retry.Config, delay time.Duration) {
	logEvent := c.logger.Warn().
		Str("method", method).
		Str("url", req.URL).
		Int("retry_attempt", cfg.CurrentRetryAttempt).
		Int("max_retries", cfg.MaxRetries).
		Dur("backoff", delay)

	if attempt.NoResponse() {
		logEvent = logEvent.Err(attempt.Err)
	} else {
		logEvent = logEvent.Int("status", attempt.StatusCode)
	}

	logEvent.Msg("REST client retrying request")
}

func (c *client) capPayload(body []byte) []byte {
	maxBytes := c.config.MaxPayloadLogBytes
	if maxBytes <= 0 || len(body) <= maxBytes {
		return body
	}
	return body[:maxBytes]
}
