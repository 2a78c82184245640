package engine

import (
	"context"

	"github.com/vk/cleangrid/internal/ctxlog"
	"github.com/vk/cleangrid/internal/datastore"
	"github.com/vk/cleangrid/internal/descriptor"
	"github.com/vk/cleangrid/internal/job"
)

// RunInfo describes a run to listeners.
type RunInfo struct {
	ID         string
	Job        *job.AnalysisJob
	Datastore  string
	Table      string
	Partitions int
	TotalRows  int64
}

// Listener observes a run.
//
// # Thread-Safety
//
// Partition and component callbacks arrive from the partition goroutines,
// so implementations MUST be safe for concurrent use. JobBegin is always
// the first callback of a run and JobEnd the last.
type Listener interface {
	JobBegin(ctx context.Context, run RunInfo)
	PartitionBegin(ctx context.Context, run RunInfo, p datastore.Partition)
	// RowProgress reports the rows a partition has processed so far.
	RowProgress(ctx context.Context, run RunInfo, p datastore.Partition, rows int64)
	// PartitionEnd is called once per started partition. err is nil when
	// every row was scanned.
	PartitionEnd(ctx context.Context, run RunInfo, p datastore.Partition, rows int64, err error)
	// ComponentSuccess is called after reduction for every component that
	// did not fail. result is nil for filters and transformers.
	ComponentSuccess(ctx context.Context, run RunInfo, c *job.ComponentJob, result descriptor.Result)
	// ComponentError is called once, when a component is marked errored.
	ComponentError(ctx context.Context, run RunInfo, c *job.ComponentJob, err error)
	JobEnd(ctx context.Context, run RunInfo, rs *ResultSet)
}

// NopListener implements Listener with no-ops. Embed it to implement only
// the callbacks you need.
type NopListener struct{}

func (NopListener) JobBegin(context.Context, RunInfo) {}

func (NopListener) PartitionBegin(context.Context, RunInfo, datastore.Partition) {}

func (NopListener) RowProgress(context.Context, RunInfo, datastore.Partition, int64) {}

func (NopListener) PartitionEnd(context.Context, RunInfo, datastore.Partition, int64, error) {}

func (NopListener) ComponentSuccess(context.Context, RunInfo, *job.ComponentJob, descriptor.Result) {}

func (NopListener) ComponentError(context.Context, RunInfo, *job.ComponentJob, error) {}

func (NopListener) JobEnd(context.Context, RunInfo, *ResultSet) {}

// Listeners fans every callback out to each listener in order.
type Listeners []Listener

var _ Listener = Listeners(nil)

func (ls Listeners) JobBegin(ctx context.Context, run RunInfo) {
	for _, l := range ls {
		l.JobBegin(ctx, run)
	}
}

func (ls Listeners) PartitionBegin(ctx context.Context, run RunInfo, p datastore.Partition) {
	for _, l := range ls {
		l.PartitionBegin(ctx, run, p)
	}
}

func (ls Listeners) RowProgress(ctx context.Context, run RunInfo, p datastore.Partition, rows int64) {
	for _, l := range ls {
		l.RowProgress(ctx, run, p, rows)
	}
}

func (ls Listeners) PartitionEnd(ctx context.Context, run RunInfo, p datastore.Partition, rows int64, err error) {
	for _, l := range ls {
		l.PartitionEnd(ctx, run, p, rows, err)
	}
}

func (ls Listeners) ComponentSuccess(ctx context.Context, run RunInfo, c *job.ComponentJob, result descriptor.Result) {
	for _, l := range ls {
		l.ComponentSuccess(ctx, run, c, result)
	}
}

func (ls Listeners) ComponentError(ctx context.Context, run RunInfo, c *job.ComponentJob, err error) {
	for _, l := range ls {
		l.ComponentError(ctx, run, c, err)
	}
}

func (ls Listeners) JobEnd(ctx context.Context, run RunInfo, rs *ResultSet) {
	for _, l := range ls {
		l.JobEnd(ctx, run, rs)
	}
}

// LoggingListener logs run events to the logger carried by the context.
type LoggingListener struct{}

var _ Listener = LoggingListener{}

func (LoggingListener) JobBegin(ctx context.Context, run RunInfo) {
	ctxlog.FromContext(ctx).Info("Job started.",
		"job", run.Job.Name(), "run_id", run.ID, "table", run.Table,
		"partitions", run.Partitions, "rows", run.TotalRows)
}

func (LoggingListener) PartitionBegin(ctx context.Context, run RunInfo, p datastore.Partition) {
	ctxlog.FromContext(ctx).Debug("Partition started.", "run_id", run.ID, "partition", p.String())
}

func (LoggingListener) RowProgress(ctx context.Context, run RunInfo, p datastore.Partition, rows int64) {
	ctxlog.FromContext(ctx).Debug("Partition progress.", "run_id", run.ID, "partition", p.Index, "rows", rows)
}

func (LoggingListener) PartitionEnd(ctx context.Context, run RunInfo, p datastore.Partition, rows int64, err error) {
	logger := ctxlog.FromContext(ctx)
	if err != nil {
		logger.Warn("Partition ended early.", "run_id", run.ID, "partition", p.Index, "rows", rows, "error", err)
		return
	}
	logger.Debug("Partition finished.", "run_id", run.ID, "partition", p.Index, "rows", rows)
}

func (LoggingListener) ComponentSuccess(ctx context.Context, run RunInfo, c *job.ComponentJob, _ descriptor.Result) {
	ctxlog.FromContext(ctx).Debug("Component succeeded.", "run_id", run.ID, "component", c.String())
}

func (LoggingListener) ComponentError(ctx context.Context, run RunInfo, c *job.ComponentJob, err error) {
	ctxlog.FromContext(ctx).Error("Component failed.", "run_id", run.ID, "component", c.String(), "error", err)
}

func (LoggingListener) JobEnd(ctx context.Context, run RunInfo, rs *ResultSet) {
	logger := ctxlog.FromContext(ctx)
	if rs.IsErrornous() {
		logger.Error("Job finished with errors.", "job", run.Job.Name(), "run_id", run.ID,
			"rows", rs.RowCount(), "errors", len(rs.Errors()))
		return
	}
	logger.Info("Job finished.", "job", run.Job.Name(), "run_id", run.ID, "rows", rs.RowCount())
}
