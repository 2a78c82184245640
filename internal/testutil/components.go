package testutil

import (
	"errors"
	"slices"
	"sync"

	"github.com/vk/cleangrid/internal/column"
	"github.com/vk/cleangrid/internal/descriptor"
	"github.com/vk/cleangrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// ErrAlwaysFails is returned by every row the failing analyzer sees.
var ErrAlwaysFails = errors.New("analyzer always fails")

// SimpleModule registers a fixed list of descriptors.
type SimpleModule struct {
	Descriptors []*descriptor.Descriptor
}

// Register implements the registry.Module interface.
func (m *SimpleModule) Register(r *registry.Registry) error {
	for _, d := range m.Descriptors {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

type failing struct{}

func (failing) Run(column.Row) error { return ErrAlwaysFails }

func (failing) Result() (descriptor.Result, error) { return nil, ErrAlwaysFails }

// FailingAnalyzer fails on the first row it is given. It is distributable.
var FailingAnalyzer = descriptor.NewAnalyzer("always-fail", func(descriptor.Properties) (descriptor.Analyzer, error) {
	return failing{}, nil
}).
	DisplayName("Always fail").
	Description("Fails on every row.").
	InputColumns("columns", cty.DynamicPseudoType).
	Reducer(func([]descriptor.Result) (descriptor.Result, error) { return nil, ErrAlwaysFails }).
	Build()

// Recorder collects the ids of the rows its analyzer was given, over every
// partition of every run.
type Recorder struct {
	mu   sync.Mutex
	seen []int64
	desc *descriptor.Descriptor
}

// NewRecorder creates a recorder whose analyzer registers as identity. The
// analyzer's result is the number of rows it saw in its partition, summed
// over partitions.
func NewRecorder(identity string) *Recorder {
	r := &Recorder{}
	r.desc = descriptor.NewAnalyzer(identity, func(descriptor.Properties) (descriptor.Analyzer, error) {
		return &recording{r: r}, nil
	}).
		InputColumns("columns", cty.DynamicPseudoType, descriptor.Optional()).
		Reducer(func(partials []descriptor.Result) (descriptor.Result, error) {
			var total int
			for _, p := range partials {
				total += p.(int)
			}
			return total, nil
		}).
		Build()
	return r
}

// Descriptor returns the recording analyzer's descriptor.
func (r *Recorder) Descriptor() *descriptor.Descriptor { return r.desc }

// Register implements the registry.Module interface.
func (r *Recorder) Register(reg *registry.Registry) error { return reg.Register(r.desc) }

// Seen returns the recorded row ids in ascending order.
func (r *Recorder) Seen() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := slices.Clone(r.seen)
	slices.Sort(out)
	return out
}

type recording struct {
	r *Recorder
	n int
}

func (a *recording) Run(row column.Row) error {
	a.n++
	a.r.mu.Lock()
	a.r.seen = append(a.r.seen, row.ID())
	a.r.mu.Unlock()
	return nil
}

func (a *recording) Result() (descriptor.Result, error) { return a.n, nil }
