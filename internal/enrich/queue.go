package enrich

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned when the job buffer is at capacity.
	ErrQueueFull = eris.New("enrich: queue full")
	// ErrQueueClosed is returned after Close.
	ErrQueueClosed = eris.New("enrich: queue closed")
)

// Job is one unit of background work.
type Job func(ctx context.Context)

// Queue runs jobs on a fixed pool of workers fed by a bounded buffer.
type Queue struct {
	jobs    chan Job
	ctx     context.Context
	cancel  context.CancelFunc
	workers sync.WaitGroup

	// pending counts submitted jobs that have not finished. Drain may run
	// concurrently with Submit, so it waits on a cond rather than a WaitGroup.
	pmu     sync.Mutex
	idle    *sync.Cond
	pending int

	mu     sync.RWMutex
	closed bool
}

// NewQueue starts workers goroutines over a buffer of size capacity.
func NewQueue(workers, capacity int) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if capacity < 0 {
		capacity = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		jobs:   make(chan Job, capacity),
		ctx:    ctx,
		cancel: cancel,
	}
	q.idle = sync.NewCond(&q.pmu)
	q.workers.Add(workers)
	for range workers {
		go q.work()
	}
	return q
}

func (q *Queue) work() {
	defer q.workers.Done()
	for job := range q.jobs {
		queueDepth.Dec()
		q.run(job)
	}
}

func (q *Queue) run(job Job) {
	defer q.done()
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("enrich: job panicked", zap.Any("panic", r))
		}
	}()
	job(q.ctx)
}

// Submit enqueues job without blocking.
func (q *Queue) Submit(job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.pmu.Lock()
	q.pending++
	q.pmu.Unlock()
	select {
	case q.jobs <- job:
		queueDepth.Inc()
		return nil
	default:
		q.done()
		return ErrQueueFull
	}
}

func (q *Queue) done() {
	q.pmu.Lock()
	defer q.pmu.Unlock()
	q.pending--
	if q.pending == 0 {
		q.idle.Broadcast()
	}
}

// Drain blocks until no submitted job is queued or running. Jobs
// submitted while Drain waits are waited for too.
func (q *Queue) Drain() {
	q.pmu.Lock()
	defer q.pmu.Unlock()
	for q.pending > 0 {
		q.idle.Wait()
	}
}

// Close stops intake and waits for queued jobs to finish. If ctx ends
// first, running jobs are cancelled and Close returns ctx's error.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return eris.Wrap(ctx.Err(), "enrich: close queue")
	}
}
