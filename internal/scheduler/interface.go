// Package scheduler runs independent units of work on a bounded pool.
//
// # Why Scheduler Exists
//
// The engine splits a run into one unit per partition. Those units share no
// state except through thread-safe collaborators, so they can run in any
// order and in parallel. The scheduler decides how many run at once and gives
// the caller a Handle per unit to wait on, inspect and cancel.
//
// This provides several key benefits:
//   - **Bounded Concurrency:** A pool size caps how many units touch the
//     datastore at the same time.
//   - **Deterministic Testing:** SingleThreaded runs every unit inline, so
//     tests observe a fixed order without changing the engine.
//   - **No Error Rethrow:** AwaitAll only waits. Failures stay on the handles
//     where the caller can attribute them.
//
// # Cancellation
//
// Cancelling a pending unit drops it: it never starts and finishes as
// Cancelled. A running unit is not interrupted. Its context is cancelled and
// Handle.Cancelled reports the request, so well-behaved units stop at the
// next row boundary.
package scheduler

import "context"

// Task is one unit of work.
type Task struct {
	// Name identifies the unit in logs and errors.
	Name string
	// Run does the work. ctx is cancelled when the handle is cancelled or
	// the submitting context ends.
	Run func(ctx context.Context) error
}

// Scheduler runs tasks and hands out handles to track them.
//
// # Thread-Safety
//
// Implementations must accept Submit calls from any goroutine.
type Scheduler interface {
	// Submit schedules t and returns immediately with its handle. A
	// scheduler that has been closed returns a handle that already failed.
	Submit(ctx context.Context, t Task) *Handle
	// AwaitAll blocks until every handle is finished. It never returns the
	// units' errors; inspect the handles instead.
	AwaitAll(handles ...*Handle)
	// Close stops accepting work and waits for submitted units to finish.
	Close()
}
