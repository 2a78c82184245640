package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/cleangrid/internal/builder"
	"github.com/vk/cleangrid/internal/column"
	"github.com/vk/cleangrid/internal/datastore/memory"
	"github.com/vk/cleangrid/internal/descriptor"
	"github.com/vk/cleangrid/internal/engine"
	"github.com/vk/cleangrid/internal/job"
	"github.com/vk/cleangrid/internal/registry"
	"github.com/vk/cleangrid/internal/scheduler"
	"github.com/zclconf/go-cty/cty"
)

type emitted struct {
	event   string
	payload any
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []emitted
	err    error
}

func (f *fakeEmitter) Emit(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emitted{event, payload})
	return f.err
}

func (f *fakeEmitter) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.event
	}
	return out
}

type rowErr struct{}

func (rowErr) Run(column.Row) error { return errors.New("boom") }

func (rowErr) Result() (descriptor.Result, error) { return nil, nil }

type noop struct{}

func (noop) Run(column.Row) error { return nil }

func (noop) Result() (descriptor.Result, error) { return "ok", nil }

func runWith(t *testing.T, l engine.Listener) *engine.ResultSet {
	t.Helper()
	broken := descriptor.NewAnalyzer("broken", func(descriptor.Properties) (descriptor.Analyzer, error) {
		return rowErr{}, nil
	}).InputColumns("columns", cty.DynamicPseudoType).Build()
	fine := descriptor.NewAnalyzer("fine", func(descriptor.Properties) (descriptor.Analyzer, error) {
		return noop{}, nil
	}).InputColumns("columns", cty.DynamicPseudoType).Build()

	ds := memory.New("mem")
	name := column.NewPhysical("name", 0, cty.String)
	require.NoError(t, ds.CreateTable("t", name))
	require.NoError(t, ds.Insert("t", []cty.Value{cty.StringVal("a")}, []cty.Value{cty.StringVal("b")}))

	b := builder.New(registry.New())
	b.SetMetadata(job.Metadata{Name: "progress", Table: "t"})
	require.NoError(t, b.AddSourceColumn(name))
	for _, d := range []*descriptor.Descriptor{broken, fine} {
		cb, err := b.AddAnalyzer(d)
		require.NoError(t, err)
		require.NoError(t, cb.SetInputColumns(name))
	}
	j, err := b.ToAnalysisJob()
	require.NoError(t, err)

	f, err := engine.New(scheduler.NewSingleThreaded(), engine.WithListeners(l)).
		Run(context.Background(), j, ds, engine.RunOptions{RunID: "run-7"})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rs, err := f.Await(ctx)
	require.NoError(t, err)
	return rs
}

func TestListener_EmitsRunEvents(t *testing.T) {
	// Arrange
	em := &fakeEmitter{}

	// Act
	runWith(t, NewListener(em))

	// Assert
	assert.Equal(t, []string{
		EventJobBegin,
		EventComponentError,
		EventPartitionEnd,
		EventComponentSuccess,
		EventJobEnd,
	}, em.names())

	begin := em.events[0].payload.(JobBegin)
	assert.Equal(t, JobBegin{RunID: "run-7", Job: "progress", Table: "t", Partitions: 1, Rows: 2}, begin)

	failed := em.events[1].payload.(ComponentEvent)
	assert.Equal(t, "broken", failed.Component)
	assert.Equal(t, "analyzer", failed.Kind)
	assert.Contains(t, failed.Error, "boom")

	end := em.events[4].payload.(JobEnd)
	assert.False(t, end.Successful)
	assert.Equal(t, int64(2), end.Rows)
	assert.Len(t, end.Errors, 1)
}

func TestListener_EmitFailuresDoNotFailTheRun(t *testing.T) {
	em := &fakeEmitter{err: errors.New("monitor gone")}

	rs := runWith(t, NewListener(em))

	assert.Len(t, rs.Errors(), 1, "only the component error is reported")
	assert.NotEmpty(t, em.names())
}

func TestDial_InvalidURL(t *testing.T) {
	testCases := []struct {
		name string
		url  string
	}{
		{"unparseable", "://nope"},
		{"no host", "ws:///path"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Dial(context.Background(), DialOptions{URL: tc.url})
			assert.Error(t, err)
		})
	}
}

func TestSocketEmitter_ClosedEmitterRejectsEvents(t *testing.T) {
	s := &SocketEmitter{}

	assert.NoError(t, s.Close())
	assert.Error(t, s.Emit(EventJobBegin, nil))
}
