package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/eventpoints/backend/pkg/queue"
)

// JobSource is the durable side of the scheduler.
type JobSource interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	DeadLetter(ctx context.Context, job *queue.Job, cause error) error
}

// AwardProcessor moves award jobs from Redis into the in-process pool.
type AwardProcessor struct {
	source  JobSource
	pool    *Pool
	backoff time.Duration
	logger  *zap.Logger
}

// NewAwardProcessor creates a processor feeding pool from source.
func NewAwardProcessor(source JobSource, pool *Pool, logger *zap.Logger) *AwardProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AwardProcessor{source: source, pool: pool, backoff: queue.RetryBackoff, logger: logger}
}

// Process hands one job to the pool, waiting while the pool is saturated.
func (p *AwardProcessor) Process(ctx context.Context, job *queue.Job) error {
	payload, err := queue.DecodeAward(job)
	if err != nil {
		p.logger.Warn("undecodable award job", zap.String("job_id", job.ID), zap.Error(err))
		return p.source.DeadLetter(ctx, job, err)
	}
	for {
		err := p.pool.EnqueueAward(ctx, payload.RegistrationID)
		if !errors.Is(err, ErrQueueFull) {
			return err
		}
		if !sleep(ctx, p.backoff) {
			return ctx.Err()
		}
	}
}

// Run starts the worker loop: dequeue, hand off, back off on error.
func (p *AwardProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("award processor stopping")
			return
		default:
		}

		job, err := p.source.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			sleep(ctx, p.backoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job handoff failed", zap.String("job_id", job.ID), zap.Error(err))
			if dlErr := p.source.DeadLetter(context.WithoutCancel(ctx), job, err); dlErr != nil {
				p.logger.Error("dead-letter failed", zap.String("job_id", job.ID), zap.Error(dlErr))
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
