package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDLQRetryConfig_NextDelay(t *testing.T) {
	cfg := DLQRetryConfig{RetryInterval: time.Second, BackoffFactor: 2}

	assert.Equal(t, time.Second, cfg.NextDelay(0))
	assert.Equal(t, 2*time.Second, cfg.NextDelay(1))
	assert.Equal(t, 8*time.Second, cfg.NextDelay(3))
}
