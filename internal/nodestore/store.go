// Package nodestore defines the interface for recording the mutable state of
// components while a job runs.
//
// # Why Node Store Exists
//
// A frozen job says what runs. The node store says how it went: the status
// of every component, the final result of every analyzer and the error a
// failing component raised. Keeping that state out of the job keeps jobs
// immutable and lets one job be run any number of times.
//
// This separation provides several benefits:
//   - **Concurrency:** Partitions write state from many goroutines without
//     touching the job graph.
//   - **Testability:** Run state can be asserted on directly.
//   - **Flexibility:** Different storage backends can be swapped in.
//
// # State Transitions
//
// Components follow this lifecycle:
//
//	Pending → Running → Succeeded (with a result) OR Failed (with an error)
//
// A component that failed in any partition stays Failed for the rest of the
// run.
package nodestore

import (
	"context"

	"github.com/vk/cleangrid/internal/nodeid"
)

// Status is the run state of one component.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusSucceeded
	StatusFailed
)

// String returns the string representation of the Status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Store records the run state of components, keyed by component address.
//
// # Thread-Safety Requirements
//
// Implementations MUST be safe for concurrent reads and writes: every
// partition of a run reports into the same store.
type Store interface {
	// SetStatus updates the status of a component. A Failed status is
	// final and later updates are ignored.
	SetStatus(ctx context.Context, id nodeid.Address, status Status) error

	// GetStatus returns StatusPending if no status was set yet.
	GetStatus(ctx context.Context, id nodeid.Address) (Status, error)

	// SetResult records the final result of an analyzer.
	SetResult(ctx context.Context, id nodeid.Address, result any) error

	// GetResult returns nil if no result was recorded.
	GetResult(ctx context.Context, id nodeid.Address) (any, error)

	// RecordError marks the component Failed and keeps the first error it
	// raised. It reports whether componentErr was the first one.
	RecordError(ctx context.Context, id nodeid.Address, componentErr error) (bool, error)

	// GetError returns nil if the component did not fail.
	GetError(ctx context.Context, id nodeid.Address) (error, error)
}
