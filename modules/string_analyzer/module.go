// Package string_analyzer provides an analyzer profiling the text of its
// columns.
package string_analyzer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/vk/cleangrid/internal/column"
	"github.com/vk/cleangrid/internal/descriptor"
	"github.com/vk/cleangrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Descriptor describes the string analyzer.
var Descriptor = descriptor.NewAnalyzer("string-analyzer", New).
	DisplayName("String analyzer").
	Alias("StringAnalyzer").
	Description("Counts characters, case, blanks and missing values per column.").
	InputColumns("columns", cty.String).
	Reducer(Reduce).
	Build()

// Stats profiles one column. Length figures are in characters and only
// meaningful when Rows exceeds Nulls.
type Stats struct {
	Rows              int64 `yaml:"rows"`
	Nulls             int64 `yaml:"nulls"`
	Blanks            int64 `yaml:"blanks"`
	Chars             int64 `yaml:"chars"`
	MinLength         int64 `yaml:"min_length"`
	MaxLength         int64 `yaml:"max_length"`
	UppercaseChars    int64 `yaml:"uppercase_chars"`
	LowercaseChars    int64 `yaml:"lowercase_chars"`
	DigitChars        int64 `yaml:"digit_chars"`
	WhitespaceChars   int64 `yaml:"whitespace_chars"`
	Words             int64 `yaml:"words"`
	EntirelyUppercase int64 `yaml:"entirely_uppercase"`
	EntirelyLowercase int64 `yaml:"entirely_lowercase"`
}

// Values returns the number of non-null values.
func (s Stats) Values() int64 { return s.Rows - s.Nulls }

// AvgLength returns the mean length of the non-null values.
func (s Stats) AvgLength() float64 {
	if s.Values() == 0 {
		return 0
	}
	return float64(s.Chars) / float64(s.Values())
}

// Merge combines two profiles of the same column.
func (s Stats) Merge(o Stats) Stats {
	out := Stats{
		Rows:              s.Rows + o.Rows,
		Nulls:             s.Nulls + o.Nulls,
		Blanks:            s.Blanks + o.Blanks,
		Chars:             s.Chars + o.Chars,
		UppercaseChars:    s.UppercaseChars + o.UppercaseChars,
		LowercaseChars:    s.LowercaseChars + o.LowercaseChars,
		DigitChars:        s.DigitChars + o.DigitChars,
		WhitespaceChars:   s.WhitespaceChars + o.WhitespaceChars,
		Words:             s.Words + o.Words,
		EntirelyUppercase: s.EntirelyUppercase + o.EntirelyUppercase,
		EntirelyLowercase: s.EntirelyLowercase + o.EntirelyLowercase,
	}
	switch {
	case s.Values() == 0:
		out.MinLength, out.MaxLength = o.MinLength, o.MaxLength
	case o.Values() == 0:
		out.MinLength, out.MaxLength = s.MinLength, s.MaxLength
	default:
		out.MinLength = min(s.MinLength, o.MinLength)
		out.MaxLength = max(s.MaxLength, o.MaxLength)
	}
	return out
}

// Result maps column names to their profile.
type Result map[string]Stats

// Analyzer is a string-analyzer instance.
type Analyzer struct {
	cols  []*column.InputColumn
	stats []Stats
	upper cases.Caser
	lower cases.Caser
}

// New creates an Analyzer for the bound columns.
func New(p descriptor.Properties) (descriptor.Analyzer, error) {
	cols := p.Columns("columns")
	if err := column.UniqueNames(cols); err != nil {
		return nil, err
	}
	return &Analyzer{
		cols:  cols,
		stats: make([]Stats, len(cols)),
		upper: cases.Upper(language.Und),
		lower: cases.Lower(language.Und),
	}, nil
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
		a.observe(st, column.Format(v))
	}
	return nil
}

func (a *Analyzer) observe(st *Stats, s string) {
	length := int64(utf8.RuneCountInString(s))
	if st.Values() == 1 {
		st.MinLength, st.MaxLength = length, length
	} else {
		st.MinLength = min(st.MinLength, length)
		st.MaxLength = max(st.MaxLength, length)
	}
	st.Chars += length
	if strings.TrimSpace(s) == "" {
		st.Blanks++
	}
	st.Words += int64(len(strings.Fields(s)))

	letters := false
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			st.UppercaseChars++
			letters = true
		case unicode.IsLower(r):
			st.LowercaseChars++
			letters = true
		case unicode.IsDigit(r):
			st.DigitChars++
		case unicode.IsSpace(r):
			st.WhitespaceChars++
		}
	}
	if !letters {
		return
	}
	if a.upper.String(s) == s {
		st.EntirelyUppercase++
	}
	if a.lower.String(s) == s {
		st.EntirelyLowercase++
	}
}

// Result implements descriptor.Analyzer.
func (a *Analyzer) Result() (descriptor.Result, error) {
	out := make(Result, len(a.cols))
	for i, c := range a.cols {
		out[c.Name()] = a.stats[i]
	}
	return out, nil
}

// Reduce merges partial profiles column by column.
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
