package utils

import (
	"math/rand"
	"time"
)

// Backoff returns exponential backoff with jitter for the given retry attempt.
// The base delay doubles each attempt, capped at 30 seconds, with random
// jitter between -25% and +25%.
func Backoff(baseDelay time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	if attempt > 30 {
		attempt = 30
	}
	d := baseDelay * time.Duration(1<<uint(attempt))
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(d)/2)) - d/4
	return d + jitter
}
