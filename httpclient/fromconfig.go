package httpclient

import (
	"github.com/gaborage/go-retryhttp/config"
	"github.com/gaborage/go-retryhttp/logger"
)

// NewBuilderFromConfig seeds a builder with loaded configuration: timeout,
// default retry policy and rate limiter. Further builder calls can still
// override any of them.
func NewBuilderFromConfig(cfg *config.Config, log logger.Logger) *Builder {
	b := NewBuilder(log).
		WithTimeout(cfg.HTTP.Timeout).
		WithRetryPolicy(cfg.HTTP.Retry.Policy())
	b.config.Limiter = cfg.HTTP.Rate.Limiter()
	return b
}
