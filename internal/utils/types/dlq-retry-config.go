package types

import "time"

type DLQRetryConfig struct {
	BatchSize      int           `json:"batch_size"`
	RetryInterval  time.Duration `json:"retry_interval"`
	MaxRetryCount  int           `json:"max_retry_count"`
	BackoffFactor  float64       `json:"backoff_factor"`
	CollectionName string        `json:"collection_name"`
}

// NextDelay is the wait before retry number attempt (0-based).
func (c DLQRetryConfig) NextDelay(attempt int) time.Duration {
	delay := c.RetryInterval
	for i := 0; i < attempt; i++ {
		delay = time.Duration(float64(delay) * c.BackoffFactor)
	}
	return delay
}
