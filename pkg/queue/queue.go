package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueDirectMessages is the Redis list key for direct message jobs.
	QueueDirectMessages = "worker:dm"
	// QueueEvidence is the Redis list key for evidence archival jobs.
	QueueEvidence = "worker:evidence"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeDirectMessage   JobType = "direct_message"
	JobTypeEvidenceArchive JobType = "evidence_archive"
)

// Key returns the list a job type is pushed to.
func (t JobType) Key() string {
	if t == JobTypeEvidenceArchive {
		return QueueEvidence
	}
	return QueueDirectMessages
}

// DirectMessagePayload is the payload for direct message jobs. Content is the
// structured notification, opaque to the queue.
type DirectMessagePayload struct {
	GuildID string          `json:"guild_id"`
	UserID  string          `json:"user_id"`
	Content json.RawMessage `json:"content"`
}

// EvidenceArchivePayload is the payload for evidence archival jobs.
type EvidenceArchivePayload struct {
	GuildID      string    `json:"guild_id"`
	SubmissionID uuid.UUID `json:"submission_id"`
	EventID      uuid.UUID `json:"event_id"`
	UserID       string    `json:"user_id"`
	Evidence     []string  `json:"evidence"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// EnqueueDirectMessage enqueues a direct message job.
func (q *Queue) EnqueueDirectMessage(ctx context.Context, payload DirectMessagePayload) error {
	return q.enqueue(ctx, JobTypeDirectMessage, payload)
}

// EnqueueEvidenceArchive enqueues an evidence archival job.
func (q *Queue) EnqueueEvidenceArchive(ctx context.Context, payload EvidenceArchivePayload) error {
	return q.enqueue(ctx, JobTypeEvidenceArchive, payload)
}

func (q *Queue) enqueue(ctx context.Context, typ JobType, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.New().String(),
		Type:      typ,
		Payload:   body,
		Attempt:   0,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, typ.Key(), raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued job", zap.String("job_id", job.ID), zap.String("type", string(typ)))
	return nil
}

// Dequeue blocks until a job is available on one of keys or ctx is done. Returns job and key (queue name).
func (q *Queue) Dequeue(ctx context.Context, keys ...string) (*Job, string, error) {
	if len(keys) == 0 {
		keys = []string{QueueDirectMessages, QueueEvidence}
	}
	result, err := q.client.BLPop(ctx, 0, keys...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, "", nil
		}
		return nil, "", err
	}
	if len(result) < 2 {
		return nil, "", nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, "", nil
	}
	return &job, result[0], nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.client.RPush(ctx, job.Type.Key(), raw).Err(); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}
