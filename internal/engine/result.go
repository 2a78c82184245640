package engine

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/vk/cleangrid/internal/descriptor"
	"github.com/vk/cleangrid/internal/errs"
	"github.com/vk/cleangrid/internal/job"
	"github.com/vk/cleangrid/internal/scheduler"
)

// ComponentError is an error attributed to one component of the job. Errors
// that belong to the run as a whole, such as a lost datastore connection or
// a cancellation, have a nil Component.
type ComponentError struct {
	Component *job.ComponentJob
	Err       error
}

// Name returns the component's name, or an empty string for run errors.
func (e ComponentError) Name() string {
	if e.Component == nil {
		return ""
	}
	return e.Component.Name()
}

// Error implements the error interface.
func (e ComponentError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error.
func (e ComponentError) Unwrap() error { return e.Err }

// ResultSet is the outcome of a finished run.
type ResultSet struct {
	runID     string
	job       *job.AnalysisJob
	results   map[*job.ComponentJob]descriptor.Result
	errors    []ComponentError
	rows      int64
	cancelled bool
}

// RunID returns the id of the run.
func (rs *ResultSet) RunID() string { return rs.runID }

// Job returns the job that was run.
func (rs *ResultSet) Job() *job.AnalysisJob { return rs.job }

// IsSuccessful reports whether every component finished without error.
func (rs *ResultSet) IsSuccessful() bool { return len(rs.errors) == 0 }

// IsErrornous reports whether any error was recorded.
func (rs *ResultSet) IsErrornous() bool { return len(rs.errors) > 0 }

// IsCancelled reports whether the run was cancelled before it finished.
func (rs *ResultSet) IsCancelled() bool { return rs.cancelled }

// Errors returns the recorded errors, component errors in job order first.
func (rs *ResultSet) Errors() []ComponentError { return slices.Clone(rs.errors) }

// Err joins all recorded errors, or returns nil.
func (rs *ResultSet) Err() error {
	if len(rs.errors) == 0 {
		return nil
	}
	all := make([]error, len(rs.errors))
	for i, e := range rs.errors {
		all[i] = e
	}
	return errors.Join(all...)
}

// ResultFor returns the reduced result of an analyzer.
func (rs *ResultSet) ResultFor(c *job.ComponentJob) (descriptor.Result, bool) {
	r, ok := rs.results[c]
	return r, ok
}

// Result returns the reduced result of the analyzer with the given name.
func (rs *ResultSet) Result(name string) (descriptor.Result, bool) {
	c, ok := rs.job.Component(name)
	if !ok {
		return nil, false
	}
	return rs.ResultFor(c)
}

// Results returns every analyzer result, keyed by component.
func (rs *ResultSet) Results() map[*job.ComponentJob]descriptor.Result {
	return maps.Clone(rs.results)
}

// RowCount returns the number of rows processed over all partitions.
func (rs *ResultSet) RowCount() int64 { return rs.rows }

// ResultFuture is a handle on a run in flight.
type ResultFuture struct {
	done   chan struct{}
	cancel context.CancelFunc

	mu      sync.Mutex
	handles []*scheduler.Handle
	rs      *ResultSet
}

func newResultFuture(cancel context.CancelFunc) *ResultFuture {
	return &ResultFuture{done: make(chan struct{}), cancel: cancel}
}

// Done is closed once the ResultSet is available.
func (f *ResultFuture) Done() <-chan struct{} { return f.done }

// Await blocks until the run finished or ctx ends.
func (f *ResultFuture) Await(ctx context.Context) (*ResultSet, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.rs, nil
	case <-ctx.Done():
		return nil, errs.Cancelled("await run", ctx.Err())
	}
}

// Cancel stops the run. Partitions that have not started are dropped and
// running ones stop at the next row. The run then finishes as cancelled.
func (f *ResultFuture) Cancel() {
	f.cancel()
	f.mu.Lock()
	handles := slices.Clone(f.handles)
	f.mu.Unlock()
	for _, h := range handles {
		h.Cancel()
	}
}

func (f *ResultFuture) track(h *scheduler.Handle) {
	f.mu.Lock()
	f.handles = append(f.handles, h)
	f.mu.Unlock()
}

func (f *ResultFuture) complete(rs *ResultSet) {
	f.mu.Lock()
	f.rs = rs
	f.mu.Unlock()
	close(f.done)
}
