package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces the environment variables read by Load.
// RETRYHTTP_HTTP__RETRY__MAX_RETRIES maps to http.retry.max_retries.
const envPrefix = "RETRYHTTP_"

var configValidator = validator.New()

// Load loads configuration with priority:
// 1. Environment variables (highest)
// 2. The YAML file at path, when path is non-empty and the file exists
// 3. Default values (lowest)
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if err := k.Load(envprovider.Provider(envPrefix, ".", envToKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	return unmarshal(k)
}

// LoadBytes loads configuration from raw YAML on top of the defaults.
// The environment is not consulted; tests and embedders use this to build a
// fully deterministic configuration.
func LoadBytes(data []byte) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse config bytes: %w", err)
	}

	return unmarshal(k)
}

func unmarshal(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := configValidator.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// envToKey maps RETRYHTTP_HTTP__RETRY__DELAY to http.retry.delay; a double
// underscore separates segments so multi-word keys keep their underscores.
func envToKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"http.timeout": "30s",

		"http.retry.enabled":             false,
		"http.retry.max_retries":         3,
		"http.retry.delay":               "100ms",
		"http.retry.no_response_retries": 2,
		"http.retry.methods":             []string{"GET", "HEAD", "PUT", "OPTIONS", "DELETE"},
		"http.retry.status_ranges":       [][]int{{100, 199}, {429, 429}, {500, 599}},

		"http.rate.enabled": false,
		"http.rate.limit":   0.0,
		"http.rate.burst":   0,

		"log.level":  "info",
		"log.pretty": false,
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}
