package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventpoints/backend/internal/award"
	"github.com/eventpoints/backend/pkg/queue"
)

type fakeSource struct {
	mu   sync.Mutex
	jobs []*queue.Job
	dead []*queue.Job
}

func (f *fakeSource) Dequeue(ctx context.Context) (*queue.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.jobs) == 0 {
		return nil, nil
	}
	job := f.jobs[0]
	f.jobs = f.jobs[1:]
	return job, nil
}

func (f *fakeSource) DeadLetter(ctx context.Context, job *queue.Job, cause error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dead = append(f.dead, job)
	return nil
}

func (f *fakeSource) deadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dead)
}

func TestAwardProcessor_Process(t *testing.T) {
	ran := make(chan int64, 1)
	p := NewPool(PoolConfig{Workers: 1}, runnerFunc(func(_ context.Context, id int64) award.Report {
		ran <- id
		return granted(id)
	}), nil)
	p.Start(context.Background())
	defer func() { _ = p.Stop(context.Background()) }()

	src := &fakeSource{}
	proc := NewAwardProcessor(src, p, nil)
	job, err := queue.NewAwardJob(12)
	require.NoError(t, err)

	require.NoError(t, proc.Process(context.Background(), job))
	select {
	case id := <-ran:
		assert.Equal(t, int64(12), id)
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
}

func TestAwardProcessor_DeadLettersBadJobs(t *testing.T) {
	p := NewPool(PoolConfig{Workers: 1}, runnerFunc(func(_ context.Context, id int64) award.Report { return granted(id) }), nil)
	src := &fakeSource{}
	proc := NewAwardProcessor(src, p, nil)

	err := proc.Process(context.Background(), &queue.Job{ID: "x", Type: queue.JobTypeAwardPoints, Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, 1, src.deadCount())
}

func TestAwardProcessor_Run(t *testing.T) {
	var mu sync.Mutex
	var seen []int64
	p := NewPool(PoolConfig{Workers: 2}, runnerFunc(func(_ context.Context, id int64) award.Report {
		mu.Lock()
		seen = append(seen, id)
		mu.Unlock()
		return granted(id)
	}), nil)
	p.Start(context.Background())

	src := &fakeSource{}
	for i := int64(1); i <= 3; i++ {
		job, err := queue.NewAwardJob(i)
		require.NoError(t, err)
		src.jobs = append(src.jobs, job)
	}
	proc := NewAwardProcessor(src, p, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		proc.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return p.Stats().Submitted == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
	require.NoError(t, p.Stop(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []int64{1, 2, 3}, seen)
}
