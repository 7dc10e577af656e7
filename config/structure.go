// Package config loads client defaults from configuration files and the
// environment. Per-call retry policies are plain retry.Config values; this
// package only supplies the optional client-level defaults.
package config

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/gaborage/go-retryhttp/retry"
)

// Config is the root configuration structure
type Config struct {
	HTTP HTTPConfig `koanf:"http"`
	Log  LogConfig  `koanf:"log"`
}

// HTTPConfig holds client-level defaults
type HTTPConfig struct {
	Timeout time.Duration `koanf:"timeout" validate:"gte=0"`
	Retry   RetryConfig   `koanf:"retry"`
	Rate    RateConfig    `koanf:"rate"`
}

// RetryConfig mirrors retry.Config in a file/env friendly shape
type RetryConfig struct {
	Enabled           bool          `koanf:"enabled"`
	MaxRetries        int           `koanf:"max_retries" validate:"gte=0"`
	Delay             time.Duration `koanf:"delay" validate:"gte=0"`
	NoResponseRetries int           `koanf:"no_response_retries" validate:"gte=0"`
	Methods           []string      `koanf:"methods"`
	// StatusRanges is a list of inclusive [min, max] pairs
	StatusRanges [][]int `koanf:"status_ranges" validate:"dive,len=2"`
}

// RateConfig paces outbound attempts when enabled
type RateConfig struct {
	Enabled bool    `koanf:"enabled"`
	Limit   float64 `koanf:"limit" validate:"gte=0"`
	Burst   int     `koanf:"burst" validate:"gte=0"`
}

// LogConfig holds logging defaults
type LogConfig struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

// Policy converts the loaded retry settings into a retry policy, or nil when
// retries are disabled. Zero-valued fields keep the retry package defaults.
func (r RetryConfig) Policy() *retry.Config {
	if !r.Enabled {
		return nil
	}

	opts := []retry.Option{
		retry.WithMaxRetries(r.MaxRetries),
		retry.WithNoResponseRetries(r.NoResponseRetries),
	}
	if r.Delay > 0 {
		opts = append(opts, retry.WithRetryDelay(r.Delay))
	}
	if len(r.Methods) > 0 {
		opts = append(opts, retry.WithMethods(r.Methods...))
	}
	if len(r.StatusRanges) > 0 {
		ranges := make([]retry.StatusRange, 0, len(r.StatusRanges))
		for _, pair := range r.StatusRanges {
			if len(pair) != 2 {
				continue
			}
			ranges = append(ranges, retry.StatusRange{Min: pair[0], Max: pair[1]})
		}
		opts = append(opts, retry.WithStatusRanges(ranges...))
	}
	return retry.New(opts...)
}

// Limiter builds a rate limiter from the loaded settings, or nil when
// rate limiting is disabled
func (r RateConfig) Limiter() *rate.Limiter {
	if !r.Enabled || r.Limit <= 0 {
		return nil
	}
	burst := r.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(r.Limit), burst)
}
