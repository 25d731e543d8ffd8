package resilience

import (
	"time"

	"github.com/sells-group/pe-score/internal/config"
)

// FromEngineConfig builds the block retry policy and the run-abort breaker
// from engine settings. Zero values keep the defaults.
func FromEngineConfig(cfg config.EngineConfig) (RetryConfig, CircuitBreakerConfig) {
	rc := DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		rc.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialBackoffMs > 0 {
		rc.InitialBackoff = time.Duration(cfg.InitialBackoffMs) * time.Millisecond
	}
	if cfg.MaxBackoffMs > 0 {
		rc.MaxBackoff = time.Duration(cfg.MaxBackoffMs) * time.Millisecond
	}

	cc := DefaultCircuitBreakerConfig()
	if cfg.FailureThreshold > 0 {
		cc.FailureThreshold = cfg.FailureThreshold
	}
	return rc, cc
}
