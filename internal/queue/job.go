package queue

import (
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	QueueKey = "priority_queue"
	DLQKey   = "priority_queue_dlq"
)

const JobTypePushOfflineMessage = "push_offline_message"

type Job struct {
	ID        string              `json:"id"`
	Type      string              `json:"type"`
	Payload   jsoniter.RawMessage `json:"payload"`
	Retry     int                 `json:"retry"`
	MaxRetry  int                 `json:"max_retry"`
	ErrorMsg  string              `json:"error_msg,omitempty"`
	RunAt     int64               `json:"run_at"`
	CreatedAt int64               `json:"created_at"`
	ExpireAt  int64               `json:"expired_at"`
}

func NewJob(jobType string, payload any, maxRetry int, ttl time.Duration) (Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, err
	}

	now := time.Now()
	return Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Payload:   raw,
		MaxRetry:  maxRetry,
		RunAt:     now.Unix(),
		CreatedAt: now.Unix(),
		ExpireAt:  now.Add(ttl).Unix(),
	}, nil
}

func (j Job) Expired(now time.Time) bool {
	return j.ExpireAt > 0 && now.Unix() > j.ExpireAt
}
