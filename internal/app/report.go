package app

import (
	"io"

	"github.com/vk/cleangrid/internal/engine"
	"gopkg.in/yaml.v3"
)

type report struct {
	Job     string         `yaml:"job"`
	RunID   string         `yaml:"run_id"`
	Status  string         `yaml:"status"`
	Rows    int64          `yaml:"rows"`
	Results map[string]any `yaml:"results,omitempty"`
	Errors  []reportError  `yaml:"errors,omitempty"`
}

type reportError struct {
	Component string `yaml:"component,omitempty"`
	Error     string `yaml:"error"`
}

func status(rs *engine.ResultSet) string {
	switch {
	case rs.IsCancelled():
		return "cancelled"
	case rs.IsErrornous():
		return "failed"
	default:
		return "succeeded"
	}
}

// WriteResults renders rs as one YAML document. Results are keyed by
// analyzer name.
func WriteResults(w io.Writer, rs *engine.ResultSet) error {
	r := report{
		Job:    rs.Job().Name(),
		RunID:  rs.RunID(),
		Status: status(rs),
		Rows:   rs.RowCount(),
	}
	if results := rs.Results(); len(results) > 0 {
		r.Results = make(map[string]any, len(results))
		for c, res := range results {
			r.Results[c.Name()] = res
		}
	}
	for _, e := range rs.Errors() {
		r.Errors = append(r.Errors, reportError{Component: e.Name(), Error: e.Error()})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}
