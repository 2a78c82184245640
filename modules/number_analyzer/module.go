// Package number_analyzer provides an analyzer computing summary statistics
// of numeric columns.
package number_analyzer

import (
	"fmt"
	"math"

	"github.com/vk/cleangrid/internal/column"
	"github.com/vk/cleangrid/internal/descriptor"
	"github.com/vk/cleangrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Descriptor describes the number analyzer.
var Descriptor = descriptor.NewAnalyzer("number-analyzer", New).
	DisplayName("Number analyzer").
	Alias("NumberAnalyzer").
	Description("Computes count, sum, min, max, mean and standard deviation per column.").
	InputColumns("columns", cty.DynamicPseudoType).
	Reducer(Reduce).
	Build()

// Stats summarizes one column. Values that are not numbers are counted as
// Invalid and otherwise ignored.
type Stats struct {
	Rows       int64   `yaml:"rows"`
	Nulls      int64   `yaml:"nulls"`
	Invalid    int64   `yaml:"invalid"`
	Count      int64   `yaml:"count"`
	Sum        float64 `yaml:"sum"`
	SumSquares float64 `yaml:"-"`
	Min        float64 `yaml:"min"`
	Max        float64 `yaml:"max"`
}

// Mean returns the arithmetic mean, or NaN without values.
func (s Stats) Mean() float64 {
	if s.Count == 0 {
		return math.NaN()
	}
	return s.Sum / float64(s.Count)
}

// StdDev returns the population standard deviation, or NaN without values.
func (s Stats) StdDev() float64 {
	if s.Count == 0 {
		return math.NaN()
	}
	mean := s.Mean()
	variance := s.SumSquares/float64(s.Count) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// MarshalYAML reports the derived mean and standard deviation. Min, max,
// mean and stddev are left out for a column without numeric values.
func (s Stats) MarshalYAML() (any, error) {
	type report struct {
		Rows    int64    `yaml:"rows"`
		Nulls   int64    `yaml:"nulls"`
		Invalid int64    `yaml:"invalid"`
		Count   int64    `yaml:"count"`
		Sum     float64  `yaml:"sum"`
		Min     *float64 `yaml:"min,omitempty"`
		Max     *float64 `yaml:"max,omitempty"`
		Mean    *float64 `yaml:"mean,omitempty"`
		StdDev  *float64 `yaml:"stddev,omitempty"`
	}
	r := report{Rows: s.Rows, Nulls: s.Nulls, Invalid: s.Invalid, Count: s.Count, Sum: s.Sum}
	if s.Count > 0 {
		mean, stddev := s.Mean(), s.StdDev()
		r.Min, r.Max, r.Mean, r.StdDev = &s.Min, &s.Max, &mean, &stddev
	}
	return r, nil
}

func (s *Stats) add(x float64) {
	if s.Count == 0 {
		s.Min, s.Max = x, x
	} else {
		s.Min = math.Min(s.Min, x)
		s.Max = math.Max(s.Max, x)
	}
	s.Count++
	s.Sum += x
	s.SumSquares += x * x
}

// Merge combines two summaries of the same column.
func (s Stats) Merge(o Stats) Stats {
	out := Stats{
		Rows:       s.Rows + o.Rows,
		Nulls:      s.Nulls + o.Nulls,
		Invalid:    s.Invalid + o.Invalid,
		Count:      s.Count + o.Count,
		Sum:        s.Sum + o.Sum,
		SumSquares: s.SumSquares + o.SumSquares,
	}
	switch {
	case s.Count == 0:
		out.Min, out.Max = o.Min, o.Max
	case o.Count == 0:
		out.Min, out.Max = s.Min, s.Max
	default:
		out.Min = math.Min(s.Min, o.Min)
		out.Max = math.Max(s.Max, o.Max)
	}
	return out
}

// Result maps column names to their summary. Bound columns have distinct
// names.
type Result map[string]Stats

// Analyzer is a number-analyzer instance.
type Analyzer struct {
	cols  []*column.InputColumn
	stats []Stats
}

// New creates an Analyzer for the bound columns.
func New(p descriptor.Properties) (descriptor.Analyzer, error) {
	cols := p.Columns("columns")
	if err := column.UniqueNames(cols); err != nil {
		return nil, err
	}
	return &Analyzer{cols: cols, stats: make([]Stats, len(cols))}, nil
}

// Run implements descriptor.Analyzer.
func (a *Analyzer) Run(row column.Row) error {
	for i, c := range a.cols {
		st := &a.stats[i]
		st.Rows++
		v := row.Value(c)
		if v.IsNull() || !v.IsKnown() {
			st.Nulls++
			continue
		}
		n, err := convert.Convert(v, cty.Number)
		if err != nil || n.IsNull() {
			st.Invalid++
			continue
		}
		x, _ := n.AsBigFloat().Float64()
		st.add(x)
	}
	return nil
}

// Result implements descriptor.Analyzer.
func (a *Analyzer) Result() (descriptor.Result, error) {
	out := make(Result, len(a.cols))
	for i, c := range a.cols {
		out[c.Name()] = a.stats[i]
	}
	return out, nil
}

// Reduce merges partial summaries column by column.
func Reduce(partials []descriptor.Result) (descriptor.Result, error) {
	out := make(Result)
	for _, p := range partials {
		r, ok := p.(Result)
		if !ok {
			return nil, fmt.Errorf("unexpected partial result %T", p)
		}
		for name, st := range r {
			out[name] = out[name].Merge(st)
		}
	}
	return out, nil
}

// Register registers the analyzer's descriptor.
func (m *Module) Register(r *registry.Registry) error {
	return r.Register(Descriptor)
}
