package stream

import "time"

const (
	// DefaultBaseDelay is the first reconnect delay
	DefaultBaseDelay = 1 * time.Second

	// DefaultMaxDelay caps the reconnect delay
	DefaultMaxDelay = 30 * time.Second

	// DefaultMaxAttempts is the number of reconnects tried before giving up
	DefaultMaxAttempts = 10
)

// Backoff returns base * 2^attempt, capped at max.
// A negative attempt returns base.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		return base
	}

	// 2^30 seconds is already far past any sensible cap
	if attempt > 30 {
		return max
	}

	delay := base * time.Duration(1<<attempt)
	if delay > max || delay <= 0 {
		return max
	}
	return delay
}
