package runner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
)

// Scheduler runs jobs some time after they are handed over.
type Scheduler interface {
	Schedule(job func(context.Context))
}

// InlineScheduler runs each job immediately on the caller's goroutine.
type InlineScheduler struct{}

func (InlineScheduler) Schedule(job func(context.Context)) {
	job(context.Background())
}

// ErrSchedulerClosed is logged when a job arrives after Close.
var ErrSchedulerClosed = errors.New("scheduler closed")

const queueSize = 1024

// PoolScheduler runs jobs on a bounded worker pool after a start delay.
// Schedule only blocks once queueSize jobs are waiting.
type PoolScheduler struct {
	delay time.Duration
	queue chan func(context.Context)
	pool  *pool.Pool
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewPoolScheduler(workers int, delay time.Duration) *PoolScheduler {
	if workers < 1 {
		workers = 1
	}
	s := &PoolScheduler{
		delay: delay,
		queue: make(chan func(context.Context), queueSize),
		pool:  pool.New().WithMaxGoroutines(workers),
		done:  make(chan struct{}),
	}
	go s.dispatch()
	return s
}

func (s *PoolScheduler) dispatch() {
	defer close(s.done)
	for job := range s.queue {
		s.pool.Go(func() {
			if s.delay > 0 {
				time.Sleep(s.delay)
			}
			job(context.Background())
		})
	}
	s.pool.Wait()
}

func (s *PoolScheduler) Schedule(job func(context.Context)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		slog.Warn("dropping job", "error", ErrSchedulerClosed)
		return
	}
	s.queue <- job
}

// Close stops accepting jobs and waits until every accepted job has run or
// ctx is done.
func (s *PoolScheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
