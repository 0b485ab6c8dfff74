package ledger

import (
	"testing"
	"time"

	"github.com/hooklinehq/hookline/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestNextRetryDelayExponential(t *testing.T) {
	cfg := model.RetryConfig{MaxRetries: 3, RetryDelay: 5, ExponentialBackoff: true}

	assert.Equal(t, 5*time.Second, NextRetryDelay(cfg, 1))
	assert.Equal(t, 10*time.Second, NextRetryDelay(cfg, 2))
	assert.Equal(t, 20*time.Second, NextRetryDelay(cfg, 3))
}

func TestNextRetryDelayFixed(t *testing.T) {
	cfg := model.RetryConfig{MaxRetries: 5, RetryDelay: 30, ExponentialBackoff: false}

	for count := 1; count <= 5; count++ {
		assert.Equal(t, 30*time.Second, NextRetryDelay(cfg, count))
	}
}

func TestNextRetryDelayCapped(t *testing.T) {
	cfg := model.RetryConfig{MaxRetries: 20, RetryDelay: 3600, ExponentialBackoff: true}

	// 1h, 2h, 4h, 8h, 16h, then pinned at 24h
	assert.Equal(t, time.Hour, NextRetryDelay(cfg, 1))
	assert.Equal(t, 16*time.Hour, NextRetryDelay(cfg, 5))
	assert.Equal(t, 24*time.Hour, NextRetryDelay(cfg, 6))
	assert.Equal(t, 24*time.Hour, NextRetryDelay(cfg, 50))
}

func TestNextRetryDelayDefaultsBase(t *testing.T) {
	cfg := model.RetryConfig{ExponentialBackoff: false}
	assert.Equal(t, time.Minute, NextRetryDelay(cfg, 1))
}
