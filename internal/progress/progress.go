// Package progress publishes engine run events to an external monitor.
//
// Events are plain JSON-friendly payloads:
//
//	job:begin          {run_id, job, table, partitions, rows}
//	partition:end      {run_id, partition, rows, error}
//	component:success  {run_id, component, kind}
//	component:error    {run_id, component, kind, error}
//	job:end            {run_id, job, rows, successful, cancelled, errors}
//
// The monitor is advisory. An event that cannot be delivered is logged and
// never fails the run.
package progress

import (
	"context"

	"github.com/vk/cleangrid/internal/ctxlog"
	"github.com/vk/cleangrid/internal/datastore"
	"github.com/vk/cleangrid/internal/descriptor"
	"github.com/vk/cleangrid/internal/engine"
	"github.com/vk/cleangrid/internal/job"
)

// Event names.
const (
	EventJobBegin         = "job:begin"
	EventPartitionEnd     = "partition:end"
	EventComponentSuccess = "component:success"
	EventComponentError   = "component:error"
	EventJobEnd           = "job:end"
)

// Emitter delivers one event. Implementations must be safe for concurrent
// use.
type Emitter interface {
	Emit(event string, payload any) error
}

// JobBegin is the payload of EventJobBegin.
type JobBegin struct {
	RunID      string `json:"run_id"`
	Job        string `json:"job"`
	Table      string `json:"table"`
	Partitions int    `json:"partitions"`
	Rows       int64  `json:"rows"`
}

// PartitionEnd is the payload of EventPartitionEnd.
type PartitionEnd struct {
	RunID     string `json:"run_id"`
	Partition int    `json:"partition"`
	Rows      int64  `json:"rows"`
	Error     string `json:"error,omitempty"`
}

// ComponentEvent is the payload of EventComponentSuccess and
// EventComponentError.
type ComponentEvent struct {
	RunID     string `json:"run_id"`
	Component string `json:"component"`
	Kind      string `json:"kind"`
	Error     string `json:"error,omitempty"`
}

// JobEnd is the payload of EventJobEnd.
type JobEnd struct {
	RunID      string   `json:"run_id"`
	Job        string   `json:"job"`
	Rows       int64    `json:"rows"`
	Successful bool     `json:"successful"`
	Cancelled  bool     `json:"cancelled"`
	Errors     []string `json:"errors,omitempty"`
}

// Listener is an engine.Listener forwarding run events to an Emitter.
type Listener struct {
	engine.NopListener
	emitter Emitter
}

var _ engine.Listener = (*Listener)(nil)

// NewListener creates a listener emitting through e.
func NewListener(e Emitter) *Listener {
	return &Listener{emitter: e}
}

func (l *Listener) emit(ctx context.Context, event string, payload any) {
	if err := l.emitter.Emit(event, payload); err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to publish progress event.", "event", event, "error", err)
	}
}

// JobBegin implements engine.Listener.
func (l *Listener) JobBegin(ctx context.Context, run engine.RunInfo) {
	l.emit(ctx, EventJobBegin, JobBegin{
		RunID:      run.ID,
		Job:        run.Job.Name(),
		Table:      run.Table,
		Partitions: run.Partitions,
		Rows:       run.TotalRows,
	})
}

// PartitionEnd implements engine.Listener.
func (l *Listener) PartitionEnd(ctx context.Context, run engine.RunInfo, p datastore.Partition, rows int64, err error) {
	ev := PartitionEnd{RunID: run.ID, Partition: p.Index, Rows: rows}
	if err != nil {
		ev.Error = err.Error()
	}
	l.emit(ctx, EventPartitionEnd, ev)
}

// ComponentSuccess implements engine.Listener.
func (l *Listener) ComponentSuccess(ctx context.Context, run engine.RunInfo, c *job.ComponentJob, _ descriptor.Result) {
	l.emit(ctx, EventComponentSuccess, ComponentEvent{RunID: run.ID, Component: c.Name(), Kind: c.Kind().String()})
}

// ComponentError implements engine.Listener.
func (l *Listener) ComponentError(ctx context.Context, run engine.RunInfo, c *job.ComponentJob, err error) {
	l.emit(ctx, EventComponentError, ComponentEvent{
		RunID:     run.ID,
		Component: c.Name(),
		Kind:      c.Kind().String(),
		Error:     err.Error(),
	})
}

// JobEnd implements engine.Listener.
func (l *Listener) JobEnd(ctx context.Context, run engine.RunInfo, rs *engine.ResultSet) {
	ev := JobEnd{
		RunID:      run.ID,
		Job:        run.Job.Name(),
		Rows:       rs.RowCount(),
		Successful: rs.IsSuccessful(),
		Cancelled:  rs.IsCancelled(),
	}
	for _, e := range rs.Errors() {
		ev.Errors = append(ev.Errors, e.Error())
	}
	l.emit(ctx, EventJobEnd, ev)
}
