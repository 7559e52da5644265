package resilience

import (
	"time"
)

// FromRetrySettings converts config values to a RetryConfig. Zero values
// keep the defaults.
func FromRetrySettings(maxAttempts, initialBackoffMs, maxBackoffMs int) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	if initialBackoffMs > 0 {
		cfg.InitialBackoff = time.Duration(initialBackoffMs) * time.Millisecond
	}
	if maxBackoffMs > 0 {
		cfg.MaxBackoff = time.Duration(maxBackoffMs) * time.Millisecond
	}
	return cfg
}

// FromBreakerSettings converts config values to a BreakerConfig.
func FromBreakerSettings(failureThreshold, coolOffSecs int) BreakerConfig {
	cfg := DefaultBreakerConfig()
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if coolOffSecs > 0 {
		cfg.CoolOff = time.Duration(coolOffSecs) * time.Second
	}
	return cfg
}
