package ledger

import (
	"time"

	"github.com/hooklinehq/hookline/internal/model"
)

// maxRetryDelay bounds exponential growth so a long failure streak never
// schedules a retry days out.
const maxRetryDelay = 24 * time.Hour

// NextRetryDelay computes the backoff before the next attempt given the
// subscription's retry policy and its failure streak after this failure.
// Exponential: base * 2^(failureCount-1). Fixed: base.
func NextRetryDelay(cfg model.RetryConfig, failureCount int) time.Duration {
	base := time.Duration(cfg.RetryDelay) * time.Second
	if base <= 0 {
		base = time.Minute
	}
	if !cfg.ExponentialBackoff {
		return base
	}

	n := failureCount - 1
	if n < 0 {
		n = 0
	}
	if n > 20 {
		n = 20
	}
	d := base << n
	if d > maxRetryDelay || d <= 0 {
		d = maxRetryDelay
	}
	return d
}
