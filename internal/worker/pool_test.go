package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventpoints/backend/internal/award"
	"github.com/eventpoints/backend/internal/models"
	"github.com/eventpoints/backend/internal/rewards"
	"github.com/eventpoints/backend/internal/store/memory"
)

type runnerFunc func(ctx context.Context, id int64) award.Report

func (f runnerFunc) Run(ctx context.Context, id int64) award.Report { return f(ctx, id) }

func granted(id int64) award.Report {
	return award.Report{RegistrationID: id, State: models.TaskStateGranted, Outcome: models.AwardOutcomeGrantedPrimary}
}

func TestPool_RunsSubmittedTasks(t *testing.T) {
	var mu sync.Mutex
	seen := map[int64]bool{}
	p := NewPool(PoolConfig{Workers: 3, QueueSize: 10}, runnerFunc(func(_ context.Context, id int64) award.Report {
		mu.Lock()
		seen[id] = true
		mu.Unlock()
		return granted(id)
	}), nil)
	p.Start(context.Background())

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, p.EnqueueAward(context.Background(), i))
	}
	require.NoError(t, p.Stop(context.Background()))

	assert.Len(t, seen, 5)
	stats := p.Stats()
	assert.Equal(t, int64(5), stats.Submitted)
	assert.Equal(t, int64(5), stats.Granted)
}

func TestPool_EnqueueReturnsImmediately(t *testing.T) {
	block := make(chan struct{})
	p := NewPool(PoolConfig{Workers: 1, QueueSize: 4}, runnerFunc(func(_ context.Context, id int64) award.Report {
		<-block
		return granted(id)
	}), nil)
	p.Start(context.Background())

	start := time.Now()
	require.NoError(t, p.EnqueueAward(context.Background(), 1))
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	close(block)
	require.NoError(t, p.Stop(context.Background()))
}

func TestPool_RejectsWhenSaturated(t *testing.T) {
	block := make(chan struct{})
	p := NewPool(PoolConfig{Workers: 1, QueueSize: 1, SubmitTimeout: 10 * time.Millisecond}, runnerFunc(func(_ context.Context, id int64) award.Report {
		<-block
		return granted(id)
	}), nil)
	p.Start(context.Background())

	// The first job occupies the worker, the second fills the buffer.
	require.NoError(t, p.EnqueueAward(context.Background(), 1))
	require.Eventually(t, func() bool { return p.Stats().Pending == 0 }, time.Second, time.Millisecond)
	require.NoError(t, p.EnqueueAward(context.Background(), 2))

	err := p.EnqueueAward(context.Background(), 3)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, int64(1), p.Stats().Rejected)

	close(block)
	require.NoError(t, p.Stop(context.Background()))
}

func TestPool_ClosedAfterStop(t *testing.T) {
	p := NewPool(PoolConfig{}, runnerFunc(func(_ context.Context, id int64) award.Report { return granted(id) }), nil)
	p.Start(context.Background())
	require.NoError(t, p.Stop(context.Background()))

	assert.ErrorIs(t, p.EnqueueAward(context.Background(), 1), ErrPoolClosed)
	assert.NoError(t, p.Stop(context.Background()))
}

func TestPool_RetriesInfrastructureFailures(t *testing.T) {
	var calls atomic.Int32
	var failures []award.Report
	p := NewPool(PoolConfig{Workers: 1, MaxAttempts: 3}, runnerFunc(func(_ context.Context, id int64) award.Report {
		calls.Add(1)
		return award.Report{RegistrationID: id, State: models.TaskStateFailed, Outcome: models.AwardOutcomeFailed, Err: errors.New("db down")}
	}), nil)
	p.OnFailure(func(_ context.Context, rep award.Report) { failures = append(failures, rep) })
	p.Start(context.Background())

	require.NoError(t, p.EnqueueAward(context.Background(), 9))
	require.NoError(t, p.Stop(context.Background()))

	assert.Equal(t, int32(3), calls.Load())
	require.Len(t, failures, 1)
	assert.Equal(t, int64(9), failures[0].RegistrationID)
	assert.Equal(t, int64(1), p.Stats().Failed)
}

func TestPool_StopBeforeStartRunsAcceptedTasks(t *testing.T) {
	var ran atomic.Int32
	p := NewPool(PoolConfig{Workers: 2, QueueSize: 4}, runnerFunc(func(_ context.Context, id int64) award.Report {
		ran.Add(1)
		return granted(id)
	}), nil)

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, p.EnqueueAward(context.Background(), i))
	}
	require.NoError(t, p.Stop(context.Background()))

	assert.Equal(t, int32(3), ran.Load())
	stats := p.Stats()
	assert.Equal(t, int64(3), stats.Granted)
	assert.Zero(t, stats.Pending)

	p.Start(context.Background())
	assert.ErrorIs(t, p.EnqueueAward(context.Background(), 4), ErrPoolClosed)
}

func TestPool_StopDeadlineAbandonsRetryBackoff(t *testing.T) {
	var calls atomic.Int32
	hooked := make(chan award.Report, 1)
	p := NewPool(PoolConfig{Workers: 1, MaxAttempts: 5, RetryBackoff: time.Hour}, runnerFunc(func(_ context.Context, id int64) award.Report {
		calls.Add(1)
		return award.Report{RegistrationID: id, State: models.TaskStateFailed, Outcome: models.AwardOutcomeFailed, Err: errors.New("db down")}
	}), nil)
	p.OnFailure(func(_ context.Context, rep award.Report) { hooked <- rep })
	p.Start(context.Background())

	require.NoError(t, p.EnqueueAward(context.Background(), 11))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	assert.ErrorIs(t, p.Stop(ctx), context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)

	select {
	case rep := <-hooked:
		assert.Equal(t, int64(11), rep.RegistrationID)
	case <-time.After(2 * time.Second):
		t.Fatal("failure hook not called after abandoned retry")
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestPool_DoesNotRetryRecordedFailure(t *testing.T) {
	var calls atomic.Int32
	p := NewPool(PoolConfig{Workers: 1, MaxAttempts: 3}, runnerFunc(func(_ context.Context, id int64) award.Report {
		calls.Add(1)
		return award.Report{RegistrationID: id, State: models.TaskStateFailed, Outcome: models.AwardOutcomeFailed, Recorded: true}
	}), nil)
	hooked := false
	p.OnFailure(func(context.Context, award.Report) { hooked = true })
	p.Start(context.Background())

	require.NoError(t, p.EnqueueAward(context.Background(), 9))
	require.NoError(t, p.Stop(context.Background()))

	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, hooked)
}

func TestPool_ConcurrentDuplicateEnqueue(t *testing.T) {
	s := memory.New()
	s.PutUser(models.User{ID: 42})
	s.PutEvent(models.Event{ID: 1, PointsReward: 100})
	s.PutRegistration(models.Registration{ID: 1, UserID: 42, EventID: 1})

	var calls atomic.Int32
	rewarder := rewarderFunc(func() rewards.Result {
		calls.Add(1)
		return rewards.Result{OK: true, Source: models.AwardSourcePrimary}
	})
	p := NewPool(PoolConfig{Workers: 8, QueueSize: 64}, award.NewTask(s, s, s, rewarder, nil), nil)
	p.Start(context.Background())

	for i := 0; i < 20; i++ {
		require.NoError(t, p.EnqueueAward(context.Background(), 1))
	}
	require.NoError(t, p.Stop(context.Background()))

	assert.Equal(t, int32(1), calls.Load())
	stats := p.Stats()
	assert.Equal(t, int64(1), stats.Granted)
	assert.Equal(t, int64(19), stats.Skipped)
	reg, err := s.GetRegistrationByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 100, reg.AwardedPoints)
}

type rewarderFunc func() rewards.Result

func (f rewarderFunc) Award(context.Context, int64, int) rewards.Result { return f() }
