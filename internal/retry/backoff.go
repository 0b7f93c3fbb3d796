package retry

import "time"

// MaxBackoff caps the delay between redeliveries of a failed task.
const MaxBackoff = time.Minute

// ExponentialBackoff returns base * 2^attempt, never more than MaxBackoff.
func ExponentialBackoff(attempt int, base time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 30 {
		return MaxBackoff
	}
	d := base * (1 << attempt)
	if d <= 0 || d > MaxBackoff {
		return MaxBackoff
	}
	return d
}
