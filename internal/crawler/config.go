package crawler

import (
	"time"
)

// DefaultUserAgent identifies llmoptimizer to the sites it fetches.
const DefaultUserAgent = "llmoptimizer/0.2 (+https://npmjs.com/llmoptimizer)"

// Config holds the configuration for the default HTTP fetcher
type Config struct {
	DefaultTimeout time.Duration // Per-request timeout
	UserAgent      string        // User agent string for requests
	MaxBodySize    int           // Response bodies beyond this many bytes are truncated (0 = colly default)
	Instrument     bool          // Wrap the HTTP transport with OpenTelemetry instrumentation
}

// DefaultConfig returns a Config instance with default values
func DefaultConfig() *Config {
	return &Config{
		DefaultTimeout: 30 * time.Second,
		UserAgent:      DefaultUserAgent,
		MaxBodySize:    10 * 1024 * 1024,
		Instrument:     true,
	}
}
