package descriptor

import (
	"fmt"
	"strings"
)

// Kind is the role a component type plays in a job graph.
type Kind int

const (
	// KindUnknown is the zero value; descriptors of this kind are rejected.
	KindUnknown Kind = iota
	KindFilter
	KindTransformer
	KindAnalyzer
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindFilter:
		return "filter"
	case KindTransformer:
		return "transformer"
	case KindAnalyzer:
		return "analyzer"
	default:
		return "unknown"
	}
}

// ParseKind converts a kind keyword into a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "filter":
		return KindFilter, nil
	case "transformer":
		return KindTransformer, nil
	case "analyzer":
		return KindAnalyzer, nil
	default:
		return KindUnknown, fmt.Errorf("unknown component kind %q", s)
	}
}

// ProvidedKind identifies a helper object the engine injects at run time.
type ProvidedKind int

const (
	// ProvidedLogger injects a *slog.Logger scoped to the component.
	ProvidedLogger ProvidedKind = iota + 1
	// ProvidedCatalog injects the *datastore.Catalog of the run.
	ProvidedCatalog
	// ProvidedRunID injects the run id as a string.
	ProvidedRunID
	// ProvidedPartition injects the partition index as an int.
	ProvidedPartition
)

// String returns the string representation of the ProvidedKind.
func (k ProvidedKind) String() string {
	switch k {
	case ProvidedLogger:
		return "logger"
	case ProvidedCatalog:
		return "catalog"
	case ProvidedRunID:
		return "run_id"
	case ProvidedPartition:
		return "partition"
	default:
		return "unknown"
	}
}
