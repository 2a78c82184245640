package config

import (
	"context"
	"io"
)

// Loader is the interface for a format-specific job definition loader.
type Loader interface {
	// Load reads a job definition from the given paths, migrated to
	// CurrentFormatVersion.
	Load(ctx context.Context, paths ...string) (*JobDefinition, error)
}

// Writer is the interface for a format-specific job definition writer.
type Writer interface {
	// Write serializes def to w.
	Write(ctx context.Context, def *JobDefinition, w io.Writer) error
}
