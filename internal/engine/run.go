package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/vk/cleangrid/internal/column"
	"github.com/vk/cleangrid/internal/ctxlog"
	"github.com/vk/cleangrid/internal/datastore"
	"github.com/vk/cleangrid/internal/descriptor"
	"github.com/vk/cleangrid/internal/errs"
	"github.com/vk/cleangrid/internal/job"
	"github.com/vk/cleangrid/internal/nodestore"
	"github.com/vk/cleangrid/internal/reducer"
	"github.com/vk/cleangrid/internal/scheduler"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// partial is the result one partition produced for one analyzer.
type partial struct {
	result descriptor.Result
	ok     bool
}

// runState is shared by the partitions of one run. Per-component slices
// are indexed by ComponentJob.Index.
type runState struct {
	e     *Engine
	job   *job.AnalysisJob
	comps []*job.ComponentJob
	info  RunInfo
	store nodestore.Store
	conn  *datastore.SharedConnection

	// errored is set once per component and read by every partition
	// before each row.
	errored []atomic.Bool
	// partials[c][p] is written only by partition p.
	partials [][]partial
	rows     atomic.Int64
	started  time.Time
}

// fail marks c errored for the rest of the run. Only the first error of a
// component is recorded and reported.
func (r *runState) fail(ctx context.Context, c *job.ComponentJob, err error) {
	if !r.errored[c.Index()].CompareAndSwap(false, true) {
		ctxlog.FromContext(ctx).Debug("Dropping further error of failed component.", "component", c.String(), "error", err)
		return
	}
	if _, storeErr := r.store.RecordError(ctx, *c.Address(), err); storeErr != nil {
		ctxlog.FromContext(ctx).Warn("Failed to record component error.", "component", c.String(), "error", storeErr)
	}
	r.e.metrics.onComponentError(c.Descriptor().Identity())
	r.e.listeners.ComponentError(ctx, r.info, c, err)
}

func (r *runState) isErrored(c *job.ComponentJob) bool {
	return r.errored[c.Index()].Load()
}

// partition processes one row range from start to finish.
func (r *runState) partition(ctx context.Context, p datastore.Partition) (err error) {
	ctx, logger := ctxlog.With(ctx, "partition", p.Index)
	lease, err := r.conn.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := lease.Release(ctx); relErr != nil {
			logger.Warn("Failed to release datastore.", "error", relErr)
		}
	}()

	r.e.listeners.PartitionBegin(ctx, r.info, p)
	insts := r.instantiate(ctx, p)
	rows, err := r.scan(ctx, lease.Source(), p, insts)
	if err == nil {
		r.drain(ctx, p, insts)
	}
	r.closeAll(ctx, insts)
	r.e.listeners.PartitionEnd(ctx, r.info, p, rows, err)
	return err
}

// instantiate creates the partition-local component instances. Components
// that cannot be created are marked errored and left nil.
func (r *runState) instantiate(ctx context.Context, p datastore.Partition) []any {
	insts := make([]any, len(r.comps))
	for _, c := range r.comps {
		if r.isErrored(c) {
			continue
		}
		props := c.Properties(r.provided(ctx, c, p))
		created := call(c, "instantiate", func() (any, error) {
			return c.Descriptor().Instantiate(props)
		})
		if !created.ok() {
			r.fail(ctx, c, created.err)
			continue
		}
		if initializer, ok := created.value.(descriptor.Initializer); ok {
			if err := invoke(c, "initialize", func() error { return initializer.Init(ctx) }); err != nil {
				r.fail(ctx, c, err)
				closeComponent(ctx, c, created.value)
				continue
			}
		}
		insts[c.Index()] = created.value
	}
	return insts
}

// scan feeds every row of p through the row state machine.
func (r *runState) scan(ctx context.Context, src datastore.RowSource, p datastore.Partition, insts []any) (int64, error) {
	sources := r.job.SourceColumns()
	outcomes := make([]string, len(r.comps))
	var rows int64

	err := src.Scan(ctx, r.info.Table, sources, p, func(id int64, values []cty.Value) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		row := column.NewMapRow(id, sources, coerce(sources, values))
		clear(outcomes)
		r.processRow(ctx, row, insts, outcomes)
		rows++
		if r.e.progressEvery > 0 && rows%r.e.progressEvery == 0 {
			r.e.listeners.RowProgress(ctx, r.info, p, rows)
		}
		return nil
	})
	r.rows.Add(rows)
	r.e.metrics.onRows(rows)

	switch {
	case ctx.Err() != nil:
		return rows, errs.Cancelled(fmt.Sprintf("scan %s", p), ctx.Err())
	case err != nil:
		if errs.ClassOf(err) == errs.ClassExecution {
			err = errs.Resource(r.info.Datastore, fmt.Sprintf("scan %s", p), err)
		}
		return rows, err
	}
	return rows, nil
}

// coerce converts source values to the declared column types. Values that
// do not convert are passed on unchanged for components to reject.
func coerce(cols []*column.InputColumn, values []cty.Value) []cty.Value {
	for i, v := range values {
		if i >= len(cols) || cols[i].Type().Equals(cty.DynamicPseudoType) {
			continue
		}
		if cv, err := convert.Convert(v, cols[i].Type()); err == nil {
			values[i] = cv
		}
	}
	return values
}

// processRow runs one row through every component, in topological order.
// outcomes[i] holds the outcome filter i recorded for this row.
func (r *runState) processRow(ctx context.Context, row *column.MapRow, insts []any, outcomes []string) {
	for _, c := range r.comps {
		inst := insts[c.Index()]
		if inst == nil || r.isErrored(c) || !eligible(c, outcomes) {
			continue
		}
		switch comp := inst.(type) {
		case descriptor.Filter:
			res := call(c, fmt.Sprintf("categorize row %d", row.ID()), func() (string, error) {
				return comp.Categorize(row)
			})
			if res.ok() && !c.Descriptor().HasOutcome(res.value) {
				res.err = errs.Execution(c.Name(), fmt.Sprintf("categorize row %d", row.ID()),
					fmt.Errorf("unknown outcome %q, expected one of %v", res.value, c.Descriptor().Outcomes()))
			}
			if !res.ok() {
				r.fail(ctx, c, res.err)
				continue
			}
			outcomes[c.Index()] = res.value
		case descriptor.Transformer:
			outputs := c.OutputColumns()
			res := call(c, fmt.Sprintf("transform row %d", row.ID()), func() ([]cty.Value, error) {
				vals, err := comp.Transform(row)
				if err != nil {
					return nil, err
				}
				return conform(outputs, vals)
			})
			if !res.ok() {
				r.fail(ctx, c, res.err)
				continue
			}
			for i, col := range outputs {
				row.Set(col, res.value[i])
			}
		case descriptor.Analyzer:
			if err := invoke(c, fmt.Sprintf("analyze row %d", row.ID()), func() error { return comp.Run(row) }); err != nil {
				r.fail(ctx, c, err)
			}
		}
	}
}

// eligible reports whether c may see the current row: it has no
// requirement, or its filter recorded the required outcome.
func eligible(c *job.ComponentJob, outcomes []string) bool {
	req := c.Requirement()
	if req == nil {
		return true
	}
	return outcomes[req.Filter.Index()] == req.Outcome
}

// conform checks transformer values against the declared outputs.
func conform(outputs []*column.InputColumn, vals []cty.Value) ([]cty.Value, error) {
	if len(vals) != len(outputs) {
		return nil, fmt.Errorf("produced %d value(s) for %d output column(s)", len(vals), len(outputs))
	}
	out := make([]cty.Value, len(vals))
	for i, v := range vals {
		typ := outputs[i].Type()
		if v.IsNull() {
			out[i] = cty.NullVal(typ)
			continue
		}
		if typ.Equals(cty.DynamicPseudoType) {
			out[i] = v
			continue
		}
		cv, err := convert.Convert(v, typ)
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", outputs[i].Name(), err)
		}
		out[i] = cv
	}
	return out, nil
}

// drain collects the partial results of the partition's analyzers.
func (r *runState) drain(ctx context.Context, p datastore.Partition, insts []any) {
	for _, c := range r.comps {
		a, ok := insts[c.Index()].(descriptor.Analyzer)
		if !ok || r.isErrored(c) {
			continue
		}
		res := call(c, "collect result", a.Result)
		if !res.ok() {
			r.fail(ctx, c, res.err)
			continue
		}
		r.partials[c.Index()][p.Index] = partial{result: res.value, ok: true}
	}
}

func (r *runState) closeAll(ctx context.Context, insts []any) {
	for _, c := range r.comps {
		if inst := insts[c.Index()]; inst != nil {
			if err := closeComponent(ctx, c, inst); err != nil {
				r.fail(ctx, c, err)
			}
		}
	}
}

func closeComponent(ctx context.Context, c *job.ComponentJob, inst any) error {
	closer, ok := inst.(io.Closer)
	if !ok {
		return nil
	}
	err := invoke(c, "close", closer.Close)
	if err != nil {
		ctxlog.FromContext(ctx).Debug("Component failed to close.", "component", c.String(), "error", err)
	}
	return err
}

// finish waits for every partition, reduces the partial results and
// completes the future.
func (r *runState) finish(ctx context.Context, f *ResultFuture, lease *datastore.Lease) {
	f.mu.Lock()
	handles := append([]*scheduler.Handle(nil), f.handles...)
	f.mu.Unlock()
	r.e.sched.AwaitAll(handles...)

	logger := ctxlog.FromContext(ctx)
	if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
		logger.Warn("Failed to release datastore.", "error", err)
	}

	rs := &ResultSet{
		runID:   r.info.ID,
		job:     r.job,
		results: make(map[*job.ComponentJob]descriptor.Result),
		rows:    r.rows.Load(),
	}
	// Reporting must outlive a cancelled run.
	reportCtx := context.WithoutCancel(ctx)

	if ctx.Err() != nil {
		rs.cancelled = true
	} else if failed := failedPartitions(handles); len(failed) > 0 {
		r.failIncomplete(reportCtx, failed)
	} else {
		r.reduce(reportCtx, rs)
	}
	// The run context is no longer needed once cancellation is decided.
	f.cancel()

	for _, c := range r.comps {
		if r.isErrored(c) || rs.cancelled {
			continue
		}
		if err := r.store.SetStatus(reportCtx, *c.Address(), nodestore.StatusSucceeded); err != nil {
			logger.Warn("Failed to record component status.", "component", c.String(), "error", err)
		}
		res := rs.results[c]
		r.e.listeners.ComponentSuccess(reportCtx, r.info, c, res)
	}

	for _, c := range r.comps {
		if !r.isErrored(c) {
			continue
		}
		err, storeErr := r.store.GetError(reportCtx, *c.Address())
		if storeErr != nil || err == nil {
			err = errs.Execution(c.Name(), opRun, fmt.Errorf("component failed"))
		}
		rs.errors = append(rs.errors, ComponentError{Component: c, Err: err})
	}
	for _, h := range handles {
		if err := h.Err(); err != nil && !errors.Is(err, errs.ErrCancelled) {
			rs.errors = append(rs.errors, ComponentError{Err: err})
		}
	}
	if rs.cancelled {
		rs.errors = append(rs.errors, ComponentError{Err: errs.Cancelled(opRun, context.Cause(ctx))})
	}

	outcome := "succeeded"
	switch {
	case rs.cancelled:
		outcome = "cancelled"
	case rs.IsErrornous():
		outcome = "failed"
	}
	r.e.metrics.onRunEnd(outcome, r.started)
	r.e.listeners.JobEnd(reportCtx, r.info, rs)
	f.complete(rs)
}

// failedPartitions returns the indexes of partitions that did not complete.
func failedPartitions(handles []*scheduler.Handle) []int {
	var failed []int
	for i, h := range handles {
		if h.State() != scheduler.Done {
			failed = append(failed, i)
		}
	}
	return failed
}

// failIncomplete marks every analyzer errored whose result would miss the
// rows of a failed partition.
func (r *runState) failIncomplete(ctx context.Context, failed []int) {
	for _, c := range r.job.Analyzers() {
		r.fail(ctx, c, errs.Execution(c.Name(), "reduce",
			fmt.Errorf("result incomplete: partition(s) %v did not finish", failed)))
	}
}

// reduce combines the partials of every healthy analyzer into rs.
func (r *runState) reduce(ctx context.Context, rs *ResultSet) {
	var inputs []reducer.Input[*job.ComponentJob]
	for _, c := range r.job.Analyzers() {
		if r.isErrored(c) {
			continue
		}
		in := reducer.Input[*job.ComponentJob]{Key: c, Descriptor: c.Descriptor()}
		for _, p := range r.partials[c.Index()] {
			if p.ok {
				in.Partials = append(in.Partials, p.result)
			}
		}
		inputs = append(inputs, in)
	}

	out, err := reducer.ReduceAll(ctx, inputs, r.e.reduceLimit)
	if err != nil {
		for _, in := range inputs {
			r.fail(ctx, in.Key, err)
		}
		return
	}
	for _, in := range inputs {
		o := out[in.Key]
		if o.Err != nil {
			r.fail(ctx, in.Key, errs.Execution(in.Key.Name(), "reduce", o.Err))
			continue
		}
		rs.results[in.Key] = o.Result
		if err := r.store.SetResult(ctx, *in.Key.Address(), o.Result); err != nil {
			ctxlog.FromContext(ctx).Warn("Failed to record component result.", "component", in.Key.String(), "error", err)
		}
	}
}
