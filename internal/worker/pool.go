package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/eventpoints/backend/internal/award"
	"github.com/eventpoints/backend/internal/models"
)

var (
	// ErrQueueFull is returned when the pool buffer stays full for SubmitTimeout.
	ErrQueueFull = errors.New("award queue full")
	// ErrPoolClosed is returned by EnqueueAward after Stop.
	ErrPoolClosed = errors.New("award pool closed")
)

// Runner executes one award task. *award.Task implements it.
type Runner interface {
	Run(ctx context.Context, registrationID int64) award.Report
}

// PoolConfig sizes the pool.
type PoolConfig struct {
	Workers       int
	QueueSize     int
	MaxAttempts   int
	RetryBackoff  time.Duration
	SubmitTimeout time.Duration
}

// Stats counts pool activity since start.
type Stats struct {
	Submitted int64 `json:"submitted"`
	Rejected  int64 `json:"rejected"`
	Skipped   int64 `json:"skipped"`
	Granted   int64 `json:"granted"`
	Failed    int64 `json:"failed"`
	Pending   int   `json:"pending"`
}

// Pool runs award tasks on a fixed set of goroutines fed by a bounded channel.
type Pool struct {
	cfg       PoolConfig
	runner    Runner
	jobs      chan int64
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	started   bool
	onFailure func(ctx context.Context, rep award.Report)
	abort     context.Context
	cancel    context.CancelFunc
	logger    *zap.Logger

	submitted atomic.Int64
	rejected  atomic.Int64
	skipped   atomic.Int64
	granted   atomic.Int64
	failed    atomic.Int64
}

// NewPool creates a pool. Zero config values take small defaults.
func NewPool(cfg PoolConfig, runner Runner, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	abort, cancel := context.WithCancel(context.Background())
	return &Pool{
		cfg:    cfg,
		runner: runner,
		jobs:   make(chan int64, cfg.QueueSize),
		abort:  abort,
		cancel: cancel,
		logger: logger,
	}
}

// OnFailure registers a hook for tasks that end failed without recording a
// grant, after the last attempt.
func (p *Pool) OnFailure(fn func(ctx context.Context, rep award.Report)) {
	p.onFailure = fn
}

// Start launches the workers. Tasks run on a context detached from ctx's
// cancellation so a started task always completes.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.startLocked(ctx)
}

func (p *Pool) startLocked(ctx context.Context) {
	p.started = true
	runCtx := context.WithoutCancel(ctx)
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.work(runCtx, i)
	}
	p.logger.Info("award pool started", zap.Int("workers", p.cfg.Workers), zap.Int("queue_size", p.cfg.QueueSize))
}

// EnqueueAward hands a registration to the pool. It waits at most
// SubmitTimeout for buffer space.
func (p *Pool) EnqueueAward(ctx context.Context, registrationID int64) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.jobs <- registrationID:
		p.submitted.Add(1)
		return nil
	default:
	}

	if p.cfg.SubmitTimeout > 0 {
		timer := time.NewTimer(p.cfg.SubmitTimeout)
		defer timer.Stop()
		select {
		case p.jobs <- registrationID:
			p.submitted.Add(1)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	p.rejected.Add(1)
	p.logger.Warn("award queue saturated",
		zap.Int64("registration_id", registrationID),
		zap.Int("queue_size", p.cfg.QueueSize),
	)
	return ErrQueueFull
}

// Stop refuses new work and waits for queued and in-flight tasks, or for ctx.
// A pool that was never started gets workers here so accepted tasks still run.
// When ctx ends first, pending retry backoffs are abandoned and those tasks
// finish with their last report.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	if !p.started {
		p.startLocked(ctx)
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.cancel()
		p.logger.Info("award pool stopped")
		return nil
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Rejected:  p.rejected.Load(),
		Skipped:   p.skipped.Load(),
		Granted:   p.granted.Load(),
		Failed:    p.failed.Load(),
		Pending:   len(p.jobs),
	}
}

func (p *Pool) work(ctx context.Context, n int) {
	defer p.wg.Done()
	for id := range p.jobs {
		p.runOne(ctx, id)
	}
	p.logger.Debug("award worker exiting", zap.Int("worker", n))
}

func (p *Pool) runOne(ctx context.Context, registrationID int64) {
	var rep award.Report
	for attempt := 1; ; attempt++ {
		rep = p.runner.Run(ctx, registrationID)
		if !retryable(rep) || attempt >= p.cfg.MaxAttempts {
			break
		}
		p.logger.Info("award task retrying",
			zap.Int64("registration_id", registrationID),
			zap.Int("attempt", attempt),
			zap.Error(rep.Err),
		)
		if p.cfg.RetryBackoff > 0 && !sleep(p.abort, p.cfg.RetryBackoff) {
			p.logger.Warn("award retry abandoned on shutdown", zap.Int64("registration_id", registrationID), zap.Int("attempt", attempt))
			break
		}
	}

	switch rep.State {
	case models.TaskStateSkipped:
		p.skipped.Add(1)
	case models.TaskStateGranted:
		p.granted.Add(1)
	default:
		p.failed.Add(1)
		if retryable(rep) && p.onFailure != nil {
			p.onFailure(ctx, rep)
		}
	}
}

// retryable is true only for infrastructure failures that left no grant behind.
func retryable(rep award.Report) bool {
	return rep.State == models.TaskStateFailed && !rep.Recorded && rep.Err != nil
}
