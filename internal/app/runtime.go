package app

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/eventpoints/backend/config"
	"github.com/eventpoints/backend/internal/award"
	"github.com/eventpoints/backend/internal/rewards"
	"github.com/eventpoints/backend/internal/worker"
	"github.com/eventpoints/backend/pkg/queue"
	"github.com/eventpoints/backend/pkg/redis"
)

// Runtime is the award pipeline: reward client, task, pool and, with the
// redis backend, the durable queue feeding the pool.
type Runtime struct {
	Rewards   *rewards.Client
	Task      *award.Task
	Pool      *worker.Pool
	Queue     *queue.Queue           // nil with the memory backend
	Processor *worker.AwardProcessor // nil with the memory backend
	Enqueuer  award.Enqueuer

	rdb           *redis.Client
	processorDone chan struct{}
	logger        *zap.Logger
}

// NewRuntime wires the award pipeline on top of stores.
func NewRuntime(ctx context.Context, cfg *config.Config, stores *Stores, logger *zap.Logger) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := rewards.NewClient(rewards.Config{
		PrimaryBaseURL:  cfg.Rewards.PrimaryBaseURL,
		PrimaryTimeout:  cfg.Rewards.PrimaryTimeout,
		FallbackBaseURL: cfg.Rewards.FallbackBaseURL,
		FallbackTimeout: cfg.Rewards.FallbackTimeout,
	}, &http.Client{}, logger)

	task := award.NewTask(stores.Registrations, stores.Events, stores.Users, client, logger)
	pool := worker.NewPool(worker.PoolConfig{
		Workers:       cfg.Worker.Workers,
		QueueSize:     cfg.Worker.QueueSize,
		MaxAttempts:   cfg.Worker.MaxAttempts,
		RetryBackoff:  cfg.Worker.RetryBackoff,
		SubmitTimeout: cfg.Worker.SubmitTimeout,
	}, task, logger)

	rt := &Runtime{Rewards: client, Task: task, Pool: pool, Enqueuer: pool, logger: logger}
	if cfg.Queue.Backend != config.QueueBackendRedis {
		return rt, nil
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		return nil, err
	}
	q := queue.NewQueue(rdb.Client, queue.Options{MaxDepth: cfg.Queue.MaxDepth}, logger)
	pool.OnFailure(func(ctx context.Context, rep award.Report) {
		if err := q.DeadLetterAward(ctx, rep.RegistrationID, rep.Err); err != nil {
			logger.Error("dead-letter award failed", zap.Int64("registration_id", rep.RegistrationID), zap.Error(err))
		}
	})
	rt.rdb = rdb
	rt.Queue = q
	rt.Processor = worker.NewAwardProcessor(q, pool, logger)
	rt.Enqueuer = q
	return rt, nil
}

// Start launches the pool and, with the redis backend, the queue consumer.
// The consumer stops when ctx is cancelled.
func (rt *Runtime) Start(ctx context.Context) {
	rt.Pool.Start(ctx)
	if rt.Processor != nil {
		rt.processorDone = make(chan struct{})
		go func() {
			defer close(rt.processorDone)
			rt.Processor.Run(ctx)
		}()
		rt.logger.Info("award processor started")
	}
}

// Stop waits for the queue consumer to exit (its Start context must already
// be cancelled), drains the pool and closes the Redis client.
func (rt *Runtime) Stop(ctx context.Context) error {
	if rt.processorDone != nil {
		select {
		case <-rt.processorDone:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	err := rt.Pool.Stop(ctx)
	if rt.rdb != nil {
		err = errors.Join(err, rt.rdb.Close())
	}
	return err
}
