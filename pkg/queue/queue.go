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
	// QueueAwards is the Redis list key for award jobs.
	QueueAwards = "worker:awards"
	// QueueDLQ holds award jobs that failed without recording a grant.
	QueueDLQ = "worker:dlq"
	// DefaultMaxDepth bounds the award list.
	DefaultMaxDepth = 10000
	// DefaultPollTimeout is how long Dequeue blocks before returning nil.
	DefaultPollTimeout = 2 * time.Second
	// RetryBackoff is the delay between dequeue errors.
	RetryBackoff = 2 * time.Second
)

// ErrQueueFull is returned by EnqueueAward when the list is at MaxDepth.
var ErrQueueFull = errors.New("award queue full")

// JobType identifies the job kind.
type JobType string

const (
	JobTypeAwardPoints JobType = "award_points"
)

// AwardPayload is the payload for award jobs.
type AwardPayload struct {
	RegistrationID int64 `json:"registration_id"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	LastError string          `json:"last_error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Options bounds the queue.
type Options struct {
	MaxDepth    int64
	PollTimeout time.Duration
}

// Queue enqueues and dequeues jobs via Redis lists.
type Queue struct {
	client *redis.Client
	opts   Options
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, opts Options, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	return &Queue{client: client, opts: opts, logger: logger}
}

// NewAwardJob builds the envelope for an award job.
func NewAwardJob(registrationID int64) (*Job, error) {
	body, err := json.Marshal(AwardPayload{RegistrationID: registrationID})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Job{
		ID:        uuid.New().String(),
		Type:      JobTypeAwardPoints,
		Payload:   body,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// DecodeAward returns the award payload of job.
func DecodeAward(job *Job) (AwardPayload, error) {
	var p AwardPayload
	if job.Type != JobTypeAwardPoints {
		return p, fmt.Errorf("unknown job type: %s", job.Type)
	}
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return p, fmt.Errorf("unmarshal payload: %w", err)
	}
	if p.RegistrationID <= 0 {
		return p, fmt.Errorf("invalid registration id: %d", p.RegistrationID)
	}
	return p, nil
}

// EnqueueAward pushes an award job. The depth check and push are separate
// commands, so MaxDepth is a soft bound under concurrent producers.
func (q *Queue) EnqueueAward(ctx context.Context, registrationID int64) error {
	depth, err := q.client.LLen(ctx, QueueAwards).Result()
	if err != nil {
		return fmt.Errorf("llen: %w", err)
	}
	if depth >= q.opts.MaxDepth {
		q.logger.Warn("award queue saturated", zap.Int64("depth", depth), zap.Int64("registration_id", registrationID))
		return ErrQueueFull
	}
	job, err := NewAwardJob(registrationID)
	if err != nil {
		return err
	}
	if err := q.push(ctx, QueueAwards, job); err != nil {
		return err
	}
	q.logger.Debug("enqueued award job", zap.String("job_id", job.ID), zap.Int64("registration_id", registrationID))
	return nil
}

// Dequeue blocks up to PollTimeout for a job. It returns nil, nil when none arrived.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	result, err := q.client.BLPop(ctx, q.opts.PollTimeout, QueueAwards).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// DeadLetter moves a job straight to the DLQ.
func (q *Queue) DeadLetter(ctx context.Context, job *Job, cause error) error {
	if cause != nil {
		job.LastError = cause.Error()
	}
	return q.deadLetter(ctx, job)
}

// DeadLetterAward records a failed award for a registration in the DLQ.
func (q *Queue) DeadLetterAward(ctx context.Context, registrationID int64, cause error) error {
	job, err := NewAwardJob(registrationID)
	if err != nil {
		return err
	}
	job.Attempt = 1
	return q.DeadLetter(ctx, job, cause)
}

func (q *Queue) deadLetter(ctx context.Context, job *Job) error {
	if err := q.push(ctx, QueueDLQ, job); err != nil {
		q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
		return err
	}
	q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.String("last_error", job.LastError))
	return nil
}

// DeadLetters returns up to limit jobs from the DLQ without removing them.
func (q *Queue) DeadLetters(ctx context.Context, limit int64) ([]Job, error) {
	if limit <= 0 {
		limit = 100
	}
	raws, err := q.client.LRange(ctx, QueueDLQ, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange: %w", err)
	}
	jobs := make([]Job, 0, len(raws))
	for _, raw := range raws {
		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			q.logger.Warn("invalid dlq entry", zap.String("raw", raw), zap.Error(err))
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// RequeueDead moves every DLQ job back onto the award list with its attempt
// count reset. It returns how many jobs moved.
func (q *Queue) RequeueDead(ctx context.Context) (int, error) {
	moved := 0
	for {
		raw, err := q.client.LPop(ctx, QueueDLQ).Result()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("lpop: %w", err)
		}
		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			q.logger.Warn("dropping invalid dlq entry", zap.String("raw", raw), zap.Error(err))
			continue
		}
		job.Attempt = 0
		if err := q.push(ctx, QueueAwards, &job); err != nil {
			return moved, err
		}
		moved++
	}
}

// Depth returns the number of pending award jobs.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, QueueAwards).Result()
}

func (q *Queue) push(ctx context.Context, key string, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	return nil
}
