package scheduler

import (
	"context"
	"runtime"
	"sync"

	"github.com/vk/cleangrid/internal/ctxlog"
	"github.com/vk/cleangrid/internal/errs"
	"golang.org/x/sync/semaphore"
)

// Option customizes a scheduler.
type Option func(*options)

type options struct {
	metrics *Metrics
}

// WithMetrics records unit outcomes on m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func collect(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// MultiThreaded runs at most poolSize units at a time, each on its own
// goroutine.
type MultiThreaded struct {
	size    int
	sem     *semaphore.Weighted
	metrics *Metrics

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

var _ Scheduler = (*MultiThreaded)(nil)

// NewMultiThreaded creates a pool of poolSize slots. A poolSize below 1 uses
// GOMAXPROCS.
func NewMultiThreaded(poolSize int, opts ...Option) *MultiThreaded {
	if poolSize < 1 {
		poolSize = runtime.GOMAXPROCS(0)
	}
	o := collect(opts)
	return &MultiThreaded{
		size:    poolSize,
		sem:     semaphore.NewWeighted(int64(poolSize)),
		metrics: o.metrics,
	}
}

// PoolSize returns the number of units that may run at once.
func (s *MultiThreaded) PoolSize() int { return s.size }

// Submit implements Scheduler.
func (s *MultiThreaded) Submit(ctx context.Context, t Task) *Handle {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return failedHandle(t.Name, errs.Resource("scheduler", "submit "+t.Name, errs.ErrResourceClosed))
	}
	s.wg.Add(1)
	s.mu.Unlock()

	taskCtx, cancel := context.WithCancel(ctx)
	h := newHandle(t.Name, cancel)
	s.metrics.onSubmit()

	go func() {
		defer s.wg.Done()
		if err := s.sem.Acquire(taskCtx, 1); err != nil {
			ctxlog.FromContext(ctx).Debug("Task dropped before it started.", "task", t.Name)
			h.drop()
			s.metrics.onFinish(Cancelled, false)
			return
		}
		defer s.sem.Release(1)
		h.run(taskCtx, t, s.metrics)
	}()
	return h
}

// AwaitAll implements Scheduler.
func (s *MultiThreaded) AwaitAll(handles ...*Handle) { AwaitAll(handles...) }

// Close implements Scheduler. It is safe to call more than once.
func (s *MultiThreaded) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}

// SingleThreaded runs each unit inline inside Submit. Handles it returns
// are always finished.
type SingleThreaded struct {
	metrics *Metrics

	mu     sync.Mutex
	closed bool
}

var _ Scheduler = (*SingleThreaded)(nil)

// NewSingleThreaded creates an inline scheduler.
func NewSingleThreaded(opts ...Option) *SingleThreaded {
	o := collect(opts)
	return &SingleThreaded{metrics: o.metrics}
}

// Submit implements Scheduler.
func (s *SingleThreaded) Submit(ctx context.Context, t Task) *Handle {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return failedHandle(t.Name, errs.Resource("scheduler", "submit "+t.Name, errs.ErrResourceClosed))
	}

	taskCtx, cancel := context.WithCancel(ctx)
	h := newHandle(t.Name, cancel)
	s.metrics.onSubmit()
	h.run(taskCtx, t, s.metrics)
	return h
}

// AwaitAll implements Scheduler.
func (s *SingleThreaded) AwaitAll(handles ...*Handle) { AwaitAll(handles...) }

// Close implements Scheduler.
func (s *SingleThreaded) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
