package engine

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vk/cleangrid/internal/column"
	"github.com/vk/cleangrid/internal/ctxlog"
	"github.com/vk/cleangrid/internal/datastore"
	"github.com/vk/cleangrid/internal/descriptor"
	"github.com/vk/cleangrid/internal/errs"
	"github.com/vk/cleangrid/internal/inmemorystore"
	"github.com/vk/cleangrid/internal/job"
	"github.com/vk/cleangrid/internal/nodestore"
	"github.com/vk/cleangrid/internal/scheduler"
)

const (
	opRun = "run job"

	// DefaultProgressInterval is how many rows a partition processes
	// between RowProgress callbacks.
	DefaultProgressInterval = 1000
)

// Engine runs analysis jobs on a scheduler.
type Engine struct {
	sched         scheduler.Scheduler
	catalog       *datastore.Catalog
	listeners     Listeners
	metrics       *Metrics
	progressEvery int64
	reduceLimit   int
}

// Option configures an Engine.
type Option func(*Engine)

// WithCatalog sets the catalog injected into components that ask for it.
func WithCatalog(c *datastore.Catalog) Option {
	return func(e *Engine) { e.catalog = c }
}

// WithListeners adds listeners notified of every run.
func WithListeners(ls ...Listener) Option {
	return func(e *Engine) { e.listeners = append(e.listeners, ls...) }
}

// WithMetrics sets the collectors the engine records into.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithProgressInterval sets how many rows pass between RowProgress
// callbacks. Values below 1 disable row progress.
func WithProgressInterval(rows int64) Option {
	return func(e *Engine) { e.progressEvery = rows }
}

// WithReduceLimit caps how many analyzers are reduced in parallel.
func WithReduceLimit(n int) Option {
	return func(e *Engine) { e.reduceLimit = n }
}

// New creates an engine submitting its partitions to sched.
func New(sched scheduler.Scheduler, opts ...Option) *Engine {
	e := &Engine{
		sched:         sched,
		progressEvery: DefaultProgressInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunOptions configures a single run.
type RunOptions struct {
	// Partitions is the number of row ranges processed independently. Zero
	// means one.
	Partitions int
	// RunID identifies the run. A random UUID is used when empty.
	RunID string
	// Store receives the run state of every component. A fresh in-memory
	// store is used when nil.
	Store nodestore.Store
}

// Run validates that j can run against ds, submits one task per partition
// and returns without waiting for them. Configuration problems are
// returned here; everything that goes wrong later is reported through the
// ResultSet.
func (e *Engine) Run(ctx context.Context, j *job.AnalysisJob, ds datastore.Datastore, opts RunOptions) (*ResultFuture, error) {
	partitions := opts.Partitions
	if partitions == 0 {
		partitions = 1
	}
	if partitions < 0 {
		return nil, errs.Configuration(j.Name(), opRun, fmt.Errorf("partition count must be at least 1, got %d", partitions))
	}
	if partitions > 1 {
		for _, a := range j.Analyzers() {
			if !a.Descriptor().IsDistributable() {
				return nil, errs.Configuration(a.Name(), opRun,
					fmt.Errorf("%w: analyzer %q cannot run on %d partitions", errs.ErrNotDistributable, a.Descriptor().Identity(), partitions))
			}
		}
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	store := opts.Store
	if store == nil {
		store = inmemorystore.New()
	}
	ctx, logger := ctxlog.With(ctx, "run_id", runID)

	// The first lease stays checked out until the run finished, so every
	// partition shares one open connection.
	conn := datastore.NewSharedConnection(ds)
	lease, err := conn.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	total, err := preflight(ctx, j, ds.Name(), lease.Source())
	if err != nil {
		if relErr := lease.Release(ctx); relErr != nil {
			logger.Warn("Failed to release datastore after preflight.", "error", relErr)
		}
		return nil, err
	}

	comps := j.Components()
	r := &runState{
		e:     e,
		job:   j,
		comps: comps,
		store: store,
		conn:  conn,
		info: RunInfo{
			ID:         runID,
			Job:        j,
			Datastore:  ds.Name(),
			Table:      j.Metadata().Table,
			Partitions: partitions,
			TotalRows:  total,
		},
		errored:  make([]atomic.Bool, len(comps)),
		partials: make([][]partial, len(comps)),
		started:  time.Now(),
	}
	for _, c := range comps {
		r.partials[c.Index()] = make([]partial, partitions)
		if err := store.SetStatus(ctx, *c.Address(), nodestore.StatusRunning); err != nil {
			logger.Warn("Failed to record component status.", "component", c.String(), "error", err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	f := newResultFuture(cancel)
	e.listeners.JobBegin(ctx, r.info)

	for _, p := range datastore.SplitRange(total, partitions) {
		f.track(e.sched.Submit(runCtx, scheduler.Task{
			Name: fmt.Sprintf("partition-%d", p.Index),
			Run: func(ctx context.Context) error {
				return r.partition(ctx, p)
			},
		}))
	}

	go r.finish(runCtx, f, lease)
	return f, nil
}

// preflight checks the source table against the job and returns its row
// count.
func preflight(ctx context.Context, j *job.AnalysisJob, dsName string, src datastore.RowSource) (int64, error) {
	table := j.Metadata().Table
	if table == "" {
		return 0, errs.Configuration(j.Name(), opRun, fmt.Errorf("job has no source table"))
	}
	cols, err := src.Columns(ctx, table)
	if err != nil {
		return 0, err
	}
	for _, want := range j.SourceColumns() {
		found := slices.ContainsFunc(cols, func(c *column.InputColumn) bool { return c.Name() == want.Name() })
		if !found {
			return 0, errs.Configuration(dsName, opRun,
				fmt.Errorf("%w: table %q has no column %q", errs.ErrUnresolvedColumn, table, want.Name()))
		}
	}
	total, err := src.RowCount(ctx, table)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// provided builds the helper objects a component asked for.
func (r *runState) provided(ctx context.Context, c *job.ComponentJob, p datastore.Partition) map[string]any {
	props := c.Descriptor().Provided()
	if len(props) == 0 {
		return nil
	}
	out := make(map[string]any, len(props))
	for _, pp := range props {
		switch pp.Kind {
		case descriptor.ProvidedLogger:
			out[pp.Name] = ctxlog.FromContext(ctx).With("component", c.Address().InPartition(p.Index).String())
		case descriptor.ProvidedCatalog:
			out[pp.Name] = r.e.catalog
		case descriptor.ProvidedRunID:
			out[pp.Name] = r.info.ID
		case descriptor.ProvidedPartition:
			out[pp.Name] = p.Index
		}
	}
	return out
}
