package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/vk/cleangrid/internal/ctxlog"
	"github.com/vk/cleangrid/internal/errs"
)

// State is the lifecycle position of a submitted unit.
type State int

const (
	Pending State = iota
	Running
	Done
	Failed
	Cancelled
)

// String returns the string representation of the State.
func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Done:
		return "done"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the unit can no longer change state.
func (s State) IsTerminal() bool { return s >= Done }

// Handle tracks one submitted unit. It is safe for concurrent use.
type Handle struct {
	name string
	done chan struct{}

	mu        sync.Mutex
	state     State
	err       error
	cancelled bool
	cancel    context.CancelFunc
}

func newHandle(name string, cancel context.CancelFunc) *Handle {
	return &Handle{name: name, done: make(chan struct{}), cancel: cancel}
}

// Name returns the task name.
func (h *Handle) Name() string { return h.name }

// Done returns a channel closed once the unit is finished.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the unit is finished and returns its error.
func (h *Handle) Wait() error {
	<-h.done
	return h.Err()
}

// Err returns the unit's error once it failed or was dropped.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Cancelled reports whether Cancel was called before the unit finished.
func (h *Handle) Cancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

// Cancel requests cancellation. A pending unit is dropped; a running unit
// sees its context cancelled and keeps running until it returns. Cancelling
// a finished unit does nothing.
func (h *Handle) Cancel() {
	h.mu.Lock()
	if h.state.IsTerminal() {
		h.mu.Unlock()
		return
	}
	h.cancelled = true
	h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
	}
}

// start moves a pending unit to Running. It returns false when the unit was
// cancelled, or its context ended, before it got a worker.
func (h *Handle) start(ctx context.Context) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancelled || ctx.Err() != nil {
		return false
	}
	h.state = Running
	return true
}

func (h *Handle) finish(state State, err error) {
	h.mu.Lock()
	if h.state.IsTerminal() {
		h.mu.Unlock()
		return
	}
	h.state = state
	h.err = err
	h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
	}
	close(h.done)
}

func (h *Handle) drop() {
	h.finish(Cancelled, errs.Cancelled("run task "+h.name, errs.ErrCancelled))
}

// run executes t on the calling goroutine and records the outcome. A panic
// in the task fails the unit instead of the process.
func (h *Handle) run(ctx context.Context, t Task, m *Metrics) {
	if !h.start(ctx) {
		h.drop()
		m.onFinish(Cancelled, false)
		return
	}
	m.onStart()
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Task started.", "task", h.name)

	state, err := Done, error(nil)
	defer func() {
		if r := recover(); r != nil {
			state, err = Failed, errs.Execution(h.name, "run task", fmt.Errorf("task panicked: %v", r))
		}
		if err != nil {
			logger.Debug("Task failed.", "task", h.name, "error", err)
		}
		h.finish(state, err)
		m.onFinish(state, true)
	}()
	if err = t.Run(ctx); err != nil {
		state = Failed
	}
}

func failedHandle(name string, err error) *Handle {
	h := newHandle(name, nil)
	h.finish(Failed, err)
	return h
}

// AwaitAll blocks until every handle is finished.
func AwaitAll(handles ...*Handle) {
	for _, h := range handles {
		if h != nil {
			<-h.done
		}
	}
}
