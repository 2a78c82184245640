package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/cleangrid/internal/builder"
	"github.com/vk/cleangrid/internal/column"
	"github.com/vk/cleangrid/internal/datastore"
	"github.com/vk/cleangrid/internal/datastore/memory"
	"github.com/vk/cleangrid/internal/descriptor"
	"github.com/vk/cleangrid/internal/errs"
	"github.com/vk/cleangrid/internal/inmemorystore"
	"github.com/vk/cleangrid/internal/job"
	"github.com/vk/cleangrid/internal/nodestore"
	"github.com/vk/cleangrid/internal/registry"
	"github.com/vk/cleangrid/internal/scheduler"
	"github.com/zclconf/go-cty/cty"
)

// --- test components ---

type nullFilter struct{ cols []*column.InputColumn }

func (f nullFilter) Categorize(row column.Row) (string, error) {
	for _, c := range f.cols {
		if column.IsNullOrEmpty(row.Value(c)) {
			return "NULL", nil
		}
	}
	return "NOT_NULL", nil
}

type suffixer struct{ cols []*column.InputColumn }

func (suffixer) OutputColumns() []descriptor.OutputColumn {
	return []descriptor.OutputColumn{{Name: "tagged", Type: cty.String}}
}

func (s suffixer) Transform(row column.Row) ([]cty.Value, error) {
	v := row.Value(s.cols[0])
	if v.IsNull() {
		return []cty.Value{cty.NullVal(cty.String)}, nil
	}
	return []cty.Value{cty.StringVal(v.AsString() + "!")}, nil
}

type counter struct{ n int }

func (c *counter) Run(column.Row) error {
	c.n++
	return nil
}

func (c *counter) Result() (descriptor.Result, error) { return c.n, nil }

func sum(partials []descriptor.Result) (descriptor.Result, error) {
	total := 0
	for _, p := range partials {
		total += p.(int)
	}
	return total, nil
}

// collector keeps the values of its first column in row order.
type collector struct {
	cols   []*column.InputColumn
	values []string
}

func (c *collector) Run(row column.Row) error {
	v := row.Value(c.cols[0])
	if v.IsNull() {
		c.values = append(c.values, "<null>")
		return nil
	}
	c.values = append(c.values, v.AsString())
	return nil
}

func (c *collector) Result() (descriptor.Result, error) { return c.values, nil }

// breaker fails on one row id, by error or by panic.
type breaker struct {
	at    int64
	panic bool
}

func (b *breaker) Run(row column.Row) error {
	if row.ID() != b.at {
		return nil
	}
	if b.panic {
		panic("row is cursed")
	}
	return errors.New("row is cursed")
}

func (b *breaker) Result() (descriptor.Result, error) { return "unreachable", nil }

var (
	nullCheck = descriptor.NewFilter("null-check", func(p descriptor.Properties) (descriptor.Filter, error) {
		return nullFilter{cols: p.Columns("columns")}, nil
	}).
		InputColumns("columns", cty.DynamicPseudoType).
		Outcomes("NOT_NULL", "NULL").
		Build()

	suffix = descriptor.NewTransformer("suffix", func(p descriptor.Properties) (descriptor.Transformer, error) {
		return suffixer{cols: p.Columns("columns")}, nil
	}).
		InputColumns("columns", cty.String).
		Build()

	rowCount = descriptor.NewAnalyzer("row-count", func(descriptor.Properties) (descriptor.Analyzer, error) {
		return &counter{}, nil
	}).
		InputColumns("columns", cty.DynamicPseudoType).
		Reducer(sum).
		Build()

	collect = descriptor.NewAnalyzer("collect", func(p descriptor.Properties) (descriptor.Analyzer, error) {
		return &collector{cols: p.Columns("columns")}, nil
	}).
		InputColumns("columns", cty.DynamicPseudoType).
		Build()

	failing = descriptor.NewAnalyzer("failing", func(p descriptor.Properties) (descriptor.Analyzer, error) {
		at, err := descriptor.Get[int64](p, "at")
		if err != nil {
			return nil, err
		}
		panics, err := descriptor.Get[bool](p, "panic")
		return &breaker{at: at, panic: panics}, err
	}).
		InputColumns("columns", cty.DynamicPseudoType).
		Property("at", cty.Number, descriptor.Required()).
		Property("panic", cty.Bool, descriptor.Default(cty.False)).
		Reducer(sum).
		Build()
)

// --- fixtures ---

var emailValues = []cty.Value{
	cty.StringVal("ann@example.com"),
	cty.NullVal(cty.String),
	cty.StringVal(""),
	cty.StringVal("bob@example.com"),
}

func newDatastore(t *testing.T, values ...cty.Value) *memory.Store {
	t.Helper()
	ds := memory.New("mem")
	require.NoError(t, ds.CreateTable("people", column.NewPhysical("email", 0, cty.String)))
	for _, v := range values {
		require.NoError(t, ds.Insert("people", []cty.Value{v}))
	}
	return ds
}

func numberedEmails(n int) []cty.Value {
	out := make([]cty.Value, n)
	for i := range out {
		out[i] = cty.StringVal(fmt.Sprintf("user%d@example.com", i))
	}
	return out
}

type jobFixture struct {
	t     *testing.T
	b     *builder.Builder
	email *column.InputColumn
}

func newJobFixture(t *testing.T) *jobFixture {
	t.Helper()
	b := builder.New(registry.New())
	b.SetMetadata(job.Metadata{Name: "people-profile", Datastore: "mem", Table: "people"})
	email := column.NewPhysical("email", 0, cty.String)
	require.NoError(t, b.AddSourceColumn(email))
	return &jobFixture{t: t, b: b, email: email}
}

func (f *jobFixture) add(d *descriptor.Descriptor, name string, cols ...*column.InputColumn) *builder.ComponentBuilder {
	f.t.Helper()
	cb, err := f.b.AddComponent(d)
	require.NoError(f.t, err)
	require.NoError(f.t, cb.SetName(name))
	require.NoError(f.t, cb.SetInputColumns(cols...))
	return cb
}

func (f *jobFixture) build() *job.AnalysisJob {
	f.t.Helper()
	j, err := f.b.ToAnalysisJob()
	require.NoError(f.t, err)
	return j
}

func await(t *testing.T, f *ResultFuture) *ResultSet {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rs, err := f.Await(ctx)
	require.NoError(t, err)
	return rs
}

func runJob(t *testing.T, e *Engine, j *job.AnalysisJob, ds datastore.Datastore, opts RunOptions) *ResultSet {
	t.Helper()
	f, err := e.Run(context.Background(), j, ds, opts)
	require.NoError(t, err)
	return await(t, f)
}

// --- tests ---

func TestRun_RequirementRouting(t *testing.T) {
	// Arrange
	fx := newJobFixture(t)
	nc := fx.add(nullCheck, "email_check", fx.email)
	valid := fx.add(rowCount, "valid", fx.email)
	require.NoError(t, valid.SetRequirement(nc, "NOT_NULL"))
	invalid := fx.add(collect, "invalid", fx.email)
	require.NoError(t, invalid.SetRequirement(nc, "NULL"))
	fx.add(rowCount, "all", fx.email)
	j := fx.build()
	e := New(scheduler.NewSingleThreaded())

	// Act
	rs := runJob(t, e, j, newDatastore(t, emailValues...), RunOptions{})

	// Assert
	require.True(t, rs.IsSuccessful(), "errors: %v", rs.Errors())
	assert.Equal(t, int64(4), rs.RowCount())
	res, ok := rs.Result("valid")
	require.True(t, ok)
	assert.Equal(t, 2, res)
	res, _ = rs.Result("invalid")
	assert.Equal(t, []string{"<null>", ""}, res)
	res, _ = rs.Result("all")
	assert.Equal(t, 4, res)
	assert.Len(t, rs.Results(), 3, "only analyzers carry results")
}

func TestRun_EmptyTable(t *testing.T) {
	fx := newJobFixture(t)
	nc := fx.add(nullCheck, "email_check", fx.email)
	valid := fx.add(rowCount, "valid", fx.email)
	require.NoError(t, valid.SetRequirement(nc, "NOT_NULL"))
	j := fx.build()

	rs := runJob(t, New(scheduler.NewSingleThreaded()), j, newDatastore(t), RunOptions{Partitions: 3})

	require.True(t, rs.IsSuccessful())
	res, ok := rs.Result("valid")
	require.True(t, ok)
	assert.Equal(t, 0, res)
}

func TestRun_TransformerOutputsReachAnalyzers(t *testing.T) {
	fx := newJobFixture(t)
	nc := fx.add(nullCheck, "email_check", fx.email)
	tr := fx.add(suffix, "suffix", fx.email)
	out := fx.add(collect, "tagged", tr.OutputColumns()...)
	require.NoError(t, out.SetRequirement(nc, "NOT_NULL"))
	j := fx.build()

	rs := runJob(t, New(scheduler.NewSingleThreaded()), j, newDatastore(t, emailValues...), RunOptions{})

	require.True(t, rs.IsSuccessful(), "errors: %v", rs.Errors())
	res, _ := rs.Result("tagged")
	assert.Equal(t, []string{"ann@example.com!", "bob@example.com!"}, res)
}

func TestRun_PartitionedReduction(t *testing.T) {
	testCases := []struct {
		name       string
		rows       int
		partitions int
		sched      func() scheduler.Scheduler
	}{
		{"single partition", 10, 1, func() scheduler.Scheduler { return scheduler.NewSingleThreaded() }},
		{"three partitions inline", 10, 3, func() scheduler.Scheduler { return scheduler.NewSingleThreaded() }},
		{"three partitions pooled", 10, 3, func() scheduler.Scheduler { return scheduler.NewMultiThreaded(3) }},
		{"more partitions than rows", 7, 9, func() scheduler.Scheduler { return scheduler.NewMultiThreaded(2) }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			fx := newJobFixture(t)
			fx.add(rowCount, "count", fx.email)
			j := fx.build()
			ds := newDatastore(t, numberedEmails(tc.rows)...)
			sched := tc.sched()
			defer sched.Close()

			// Act
			rs := runJob(t, New(sched), j, ds, RunOptions{Partitions: tc.partitions})

			// Assert
			require.True(t, rs.IsSuccessful(), "errors: %v", rs.Errors())
			res, _ := rs.Result("count")
			assert.Equal(t, tc.rows, res)
			assert.Equal(t, int64(tc.rows), rs.RowCount())
			assert.Equal(t, 1, ds.Opens(), "partitions share one connection")
			assert.Equal(t, 1, ds.Closes())
		})
	}
}

func TestRun_ConfigurationErrors(t *testing.T) {
	t.Run("non-distributable analyzer on several partitions", func(t *testing.T) {
		fx := newJobFixture(t)
		fx.add(collect, "sample", fx.email)
		j := fx.build()
		ds := newDatastore(t, emailValues...)

		_, err := New(scheduler.NewSingleThreaded()).Run(context.Background(), j, ds, RunOptions{Partitions: 2})

		assert.ErrorIs(t, err, errs.ErrNotDistributable)
		assert.True(t, errs.IsConfiguration(err))
		assert.Equal(t, "sample", errs.ComponentOf(err))
		assert.Zero(t, ds.Opens(), "nothing runs")
	})

	t.Run("negative partition count", func(t *testing.T) {
		fx := newJobFixture(t)
		fx.add(rowCount, "count", fx.email)

		_, err := New(scheduler.NewSingleThreaded()).Run(context.Background(), fx.build(), newDatastore(t), RunOptions{Partitions: -1})

		assert.True(t, errs.IsConfiguration(err))
	})

	t.Run("missing table", func(t *testing.T) {
		fx := newJobFixture(t)
		fx.add(rowCount, "count", fx.email)
		ds := memory.New("mem")

		_, err := New(scheduler.NewSingleThreaded()).Run(context.Background(), fx.build(), ds, RunOptions{})

		assert.True(t, errs.IsConfiguration(err))
		assert.Equal(t, ds.Opens(), ds.Closes(), "preflight releases the connection")
	})

	t.Run("missing source column", func(t *testing.T) {
		fx := newJobFixture(t)
		phone := column.NewPhysical("phone", 1, cty.String)
		require.NoError(t, fx.b.AddSourceColumn(phone))
		fx.add(rowCount, "count", phone)

		_, err := New(scheduler.NewSingleThreaded()).Run(context.Background(), fx.build(), newDatastore(t), RunOptions{})

		assert.ErrorIs(t, err, errs.ErrUnresolvedColumn)
	})
}

func TestRun_FailureIsolation(t *testing.T) {
	testCases := []struct {
		name       string
		panics     bool
		partitions int
	}{
		{"error", false, 1},
		{"panic", true, 1},
		{"error across partitions", false, 3},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			fx := newJobFixture(t)
			x := fx.add(failing, "x", fx.email)
			require.NoError(t, x.SetConfiguredProperty("at", 3))
			require.NoError(t, x.SetConfiguredProperty("panic", tc.panics))
			fx.add(rowCount, "y", fx.email)
			j := fx.build()
			store := inmemorystore.New()
			sched := scheduler.NewMultiThreaded(3)
			defer sched.Close()

			// Act
			rs := runJob(t, New(sched), j, newDatastore(t, numberedEmails(10)...), RunOptions{Partitions: tc.partitions, Store: store})

			// Assert
			assert.True(t, rs.IsErrornous())
			require.Len(t, rs.Errors(), 1)
			failure := rs.Errors()[0]
			assert.Equal(t, "x", failure.Name())
			assert.Equal(t, errs.ClassExecution, errs.ClassOf(failure.Err))
			assert.ErrorContains(t, failure, "row is cursed")

			y, ok := rs.Result("y")
			require.True(t, ok)
			assert.Equal(t, 10, y)
			_, ok = rs.Result("x")
			assert.False(t, ok)

			xJob, _ := j.Component("x")
			status, err := store.GetStatus(context.Background(), *xJob.Address())
			require.NoError(t, err)
			assert.Equal(t, nodestore.StatusFailed, status)
			yJob, _ := j.Component("y")
			status, err = store.GetStatus(context.Background(), *yJob.Address())
			require.NoError(t, err)
			assert.Equal(t, nodestore.StatusSucceeded, status)
			stored, err := store.GetResult(context.Background(), *yJob.Address())
			require.NoError(t, err)
			assert.Equal(t, 10, stored)
		})
	}
}

func TestRun_FilterWithUnknownOutcome(t *testing.T) {
	liar := descriptor.NewFilter("liar", func(descriptor.Properties) (descriptor.Filter, error) {
		return outcomeFunc(func(column.Row) (string, error) { return "MAYBE", nil }), nil
	}).
		InputColumns("columns", cty.DynamicPseudoType).
		Outcomes("YES", "NO").
		Build()
	fx := newJobFixture(t)
	f := fx.add(liar, "liar", fx.email)
	gated := fx.add(rowCount, "gated", fx.email)
	require.NoError(t, gated.SetRequirement(f, "YES"))
	j := fx.build()

	rs := runJob(t, New(scheduler.NewSingleThreaded()), j, newDatastore(t, emailValues...), RunOptions{})

	require.Len(t, rs.Errors(), 1)
	assert.Equal(t, "liar", rs.Errors()[0].Name())
	assert.ErrorContains(t, rs.Errors()[0], `unknown outcome "MAYBE"`)
	res, _ := rs.Result("gated")
	assert.Equal(t, 0, res, "rows never satisfy a failed filter")
}

type outcomeFunc func(column.Row) (string, error)

func (f outcomeFunc) Categorize(row column.Row) (string, error) { return f(row) }

// lifecycle records the provided values and lifecycle calls it receives.
type lifecycle struct {
	mu        sync.Mutex
	runIDs    []string
	parts     []int
	ctxs      []context.Context
	inits     atomic.Int32
	closes    atomic.Int32
	failClose bool
}

type lifecycleAnalyzer struct {
	l     *lifecycle
	runID string
	part  int
}

func (a *lifecycleAnalyzer) Init(ctx context.Context) error {
	a.l.inits.Add(1)
	a.l.mu.Lock()
	defer a.l.mu.Unlock()
	a.l.ctxs = append(a.l.ctxs, ctx)
	a.l.runIDs = append(a.l.runIDs, a.runID)
	a.l.parts = append(a.l.parts, a.part)
	return nil
}

func (a *lifecycleAnalyzer) Run(column.Row) error { return nil }

func (a *lifecycleAnalyzer) Result() (descriptor.Result, error) { return 0, nil }

func (a *lifecycleAnalyzer) Close() error {
	a.l.closes.Add(1)
	if a.l.failClose {
		return errors.New("close failed")
	}
	return nil
}

func lifecycleDescriptor(l *lifecycle) *descriptor.Descriptor {
	return descriptor.NewAnalyzer("lifecycle", func(p descriptor.Properties) (descriptor.Analyzer, error) {
		runID, _ := p.Provided("run_id").(string)
		part, _ := p.Provided("partition").(int)
		return &lifecycleAnalyzer{l: l, runID: runID, part: part}, nil
	}).
		InputColumns("columns", cty.DynamicPseudoType).
		Provided("run_id", descriptor.ProvidedRunID).
		Provided("partition", descriptor.ProvidedPartition).
		Reducer(sum).
		Build()
}

func TestRun_ComponentLifecycle(t *testing.T) {
	t.Run("fresh instances per partition", func(t *testing.T) {
		l := &lifecycle{}
		fx := newJobFixture(t)
		fx.add(lifecycleDescriptor(l), "probe", fx.email)

		rs := runJob(t, New(scheduler.NewSingleThreaded()), fx.build(), newDatastore(t, numberedEmails(6)...),
			RunOptions{Partitions: 3, RunID: "run-1"})

		require.True(t, rs.IsSuccessful())
		assert.Equal(t, "run-1", rs.RunID())
		assert.EqualValues(t, 3, l.inits.Load())
		assert.EqualValues(t, 3, l.closes.Load())
		assert.Equal(t, []string{"run-1", "run-1", "run-1"}, l.runIDs)
		assert.Equal(t, []int{0, 1, 2}, l.parts)
	})

	t.Run("run context is released when the run completes", func(t *testing.T) {
		l := &lifecycle{}
		fx := newJobFixture(t)
		fx.add(lifecycleDescriptor(l), "probe", fx.email)
		parent, cancel := context.WithCancel(context.Background())
		defer cancel()

		sched := scheduler.NewMultiThreaded(2)
		defer sched.Close()

		f, err := New(sched).Run(parent, fx.build(), newDatastore(t, numberedEmails(4)...), RunOptions{Partitions: 2})
		require.NoError(t, err)
		rs := await(t, f)

		require.True(t, rs.IsSuccessful())
		assert.False(t, rs.IsCancelled())
		require.Len(t, l.ctxs, 2)
		for _, ctx := range l.ctxs {
			assert.ErrorIs(t, ctx.Err(), context.Canceled)
		}
		assert.NoError(t, parent.Err(), "the caller's context is untouched")
	})

	t.Run("close errors are attributed", func(t *testing.T) {
		l := &lifecycle{failClose: true}
		fx := newJobFixture(t)
		fx.add(lifecycleDescriptor(l), "probe", fx.email)

		rs := runJob(t, New(scheduler.NewSingleThreaded()), fx.build(), newDatastore(t, numberedEmails(2)...), RunOptions{})

		require.Len(t, rs.Errors(), 1)
		assert.Equal(t, "probe", rs.Errors()[0].Name())
		assert.ErrorContains(t, rs.Err(), "close failed")
	})
}

// recordingListener collects callback names.
type recordingListener struct {
	NopListener
	mu     sync.Mutex
	events []string
}

func (l *recordingListener) add(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *recordingListener) JobBegin(context.Context, RunInfo) { l.add("job:begin") }

func (l *recordingListener) PartitionEnd(_ context.Context, _ RunInfo, p datastore.Partition, rows int64, _ error) {
	l.add(fmt.Sprintf("partition:end:%d:%d", p.Index, rows))
}

func (l *recordingListener) RowProgress(_ context.Context, _ RunInfo, p datastore.Partition, rows int64) {
	l.add(fmt.Sprintf("progress:%d:%d", p.Index, rows))
}

func (l *recordingListener) ComponentSuccess(_ context.Context, _ RunInfo, c *job.ComponentJob, _ descriptor.Result) {
	l.add("success:" + c.Name())
}

func (l *recordingListener) ComponentError(_ context.Context, _ RunInfo, c *job.ComponentJob, _ error) {
	l.add("error:" + c.Name())
}

func (l *recordingListener) JobEnd(context.Context, RunInfo, *ResultSet) { l.add("job:end") }

func TestRun_Listeners(t *testing.T) {
	// Arrange
	rec := &recordingListener{}
	fx := newJobFixture(t)
	nc := fx.add(nullCheck, "email_check", fx.email)
	count := fx.add(rowCount, "count", fx.email)
	require.NoError(t, count.SetRequirement(nc, "NOT_NULL"))
	x := fx.add(failing, "x", fx.email)
	require.NoError(t, x.SetConfiguredProperty("at", 0))
	e := New(scheduler.NewSingleThreaded(), WithListeners(rec, LoggingListener{}), WithProgressInterval(2))

	// Act
	runJob(t, e, fx.build(), newDatastore(t, emailValues...), RunOptions{})

	// Assert
	assert.Equal(t, []string{
		"job:begin",
		"error:x",
		"progress:0:2",
		"progress:0:4",
		"partition:end:0:4",
		"success:email_check",
		"success:count",
		"job:end",
	}, rec.events)
}

func TestRun_Cancel(t *testing.T) {
	// Arrange
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	blocking := descriptor.NewAnalyzer("blocking", func(descriptor.Properties) (descriptor.Analyzer, error) {
		return analyzerFunc(func(column.Row) error {
			once.Do(func() { close(started) })
			<-release
			return nil
		}), nil
	}).
		InputColumns("columns", cty.DynamicPseudoType).
		Reducer(sum).
		Build()
	fx := newJobFixture(t)
	fx.add(blocking, "blocking", fx.email)
	ds := newDatastore(t, numberedEmails(10)...)
	sched := scheduler.NewMultiThreaded(1)
	defer sched.Close()

	f, err := New(sched).Run(context.Background(), fx.build(), ds, RunOptions{Partitions: 2})
	require.NoError(t, err)
	<-started

	// Act
	f.Cancel()
	close(release)
	rs := await(t, f)

	// Assert
	assert.True(t, rs.IsCancelled())
	assert.True(t, rs.IsErrornous())
	assert.ErrorIs(t, rs.Err(), errs.ErrCancelled)
	assert.Empty(t, rs.Results(), "no partial results")
	assert.Less(t, rs.RowCount(), int64(10))
	assert.Equal(t, ds.Opens(), ds.Closes())
}

type analyzerFunc func(column.Row) error

func (f analyzerFunc) Run(row column.Row) error { return f(row) }

func (f analyzerFunc) Result() (descriptor.Result, error) { return 0, nil }

func TestResultFuture_AwaitTimeout(t *testing.T) {
	f := newResultFuture(func() {})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Await(ctx)

	assert.ErrorIs(t, err, errs.ErrCancelled)
}

func TestRun_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)
	fx := newJobFixture(t)
	fx.add(rowCount, "count", fx.email)
	x := fx.add(failing, "x", fx.email)
	require.NoError(t, x.SetConfiguredProperty("at", 1))

	runJob(t, New(scheduler.NewSingleThreaded(), WithMetrics(m)), fx.build(), newDatastore(t, emailValues...), RunOptions{})

	assert.Equal(t, 4.0, promtest.ToFloat64(m.rows))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.componentErrors.WithLabelValues("failing")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.runs.WithLabelValues("failed")))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "collectors register once")
}

func TestResultSet_ErrorsInJobOrder(t *testing.T) {
	fx := newJobFixture(t)
	for _, name := range []string{"b", "a", "c"} {
		x := fx.add(failing, name, fx.email)
		require.NoError(t, x.SetConfiguredProperty("at", 0))
	}
	j := fx.build()

	rs := runJob(t, New(scheduler.NewSingleThreaded()), j, newDatastore(t, emailValues...), RunOptions{})

	var names []string
	for _, e := range rs.Errors() {
		names = append(names, e.Name())
	}
	var want []string
	for _, c := range j.Components() {
		want = append(want, c.Name())
	}
	assert.Equal(t, want, names)
}
