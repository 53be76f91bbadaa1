package config

import "time"

// TimeoutConfig holds timeout settings for request handling and queries.
// These can be configured via CLI flags.
type TimeoutConfig struct {
	// Request bounds a whole HTTP request, including rendering. Default: 60s
	Request time.Duration

	// Query bounds a single report query. Default: 30s
	Query time.Duration

	// Shutdown is the grace period for in-flight requests on exit. Default: 30s
	Shutdown time.Duration
}

// DefaultTimeoutConfig returns the default timeout configuration
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		Request:  60 * time.Second,
		Query:    30 * time.Second,
		Shutdown: 30 * time.Second,
	}
}

// global instance that can be set at startup
var globalTimeouts = DefaultTimeoutConfig()

// SetGlobalTimeouts sets the global timeout configuration
func SetGlobalTimeouts(cfg *TimeoutConfig) {
	globalTimeouts = cfg
}

// GetTimeouts returns the global timeout configuration
func GetTimeouts() *TimeoutConfig {
	return globalTimeouts
}
