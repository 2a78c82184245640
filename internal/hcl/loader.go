package hcl

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/cleangrid/internal/config"
	"github.com/vk/cleangrid/internal/ctxlog"
	"github.com/vk/cleangrid/internal/errs"
	"github.com/vk/cleangrid/internal/fsutil"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL job definition loader.
func NewLoader() *Loader {
	return &Loader{}
}

var _ config.Loader = (*Loader)(nil)

// Load parses every .hcl file found under paths and merges them into one
// definition. Exactly one job block must be present across all files.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.JobDefinition, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	hclFiles, err := fsutil.FindFilesByExtension(paths, ".hcl")
	if err != nil {
		return nil, errs.Configuration("", "load job", err)
	}
	if len(hclFiles) == 0 {
		return nil, errs.Configuration("", "load job", fmt.Errorf("no .hcl files found in %v", paths))
	}
	logger.Debug("Discovered HCL files.", "count", len(hclFiles))

	parser := hclparse.NewParser()
	m := newMerger()
	for _, file := range hclFiles {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, errs.Configuration("", "load job", fmt.Errorf("failed to parse HCL file %s: %w", file, diags))
		}
		if err := m.add(ctx, file, hclFile); err != nil {
			return nil, err
		}
	}
	return m.finish(ctx)
}

// LoadBytes parses a single in-memory HCL document. filename is used in
// diagnostics only.
func (l *Loader) LoadBytes(ctx context.Context, src []byte, filename string) (*config.JobDefinition, error) {
	hclFile, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, errs.Configuration("", "load job", fmt.Errorf("failed to parse HCL %s: %w", filename, diags))
	}
	m := newMerger()
	if err := m.add(ctx, filename, hclFile); err != nil {
		return nil, err
	}
	return m.finish(ctx)
}

// merger accumulates the blocks of several files into one definition.
type merger struct {
	def        *config.JobDefinition
	versionSrc string
	jobSrc     string
}

func newMerger() *merger {
	return &merger{def: &config.JobDefinition{}}
}

func (m *merger) add(ctx context.Context, filename string, file *hcl.File) error {
	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return errs.Configuration("", "load job", fmt.Errorf("failed to decode HCL file %s: %w", filename, diags))
	}

	if root.FormatVersion != nil {
		if m.versionSrc != "" && *root.FormatVersion != m.def.FormatVersion {
			return errs.Configuration("", "load job",
				fmt.Errorf("%s declares format_version %d but %s declares %d", filename, *root.FormatVersion, m.versionSrc, m.def.FormatVersion))
		}
		m.def.FormatVersion = *root.FormatVersion
		m.versionSrc = filename
	}

	for _, j := range root.Jobs {
		if m.jobSrc != "" {
			return errs.Configuration(j.Name, "load job",
				fmt.Errorf("job block in %s: a job is already declared in %s", filename, m.jobSrc))
		}
		m.def.Name, m.def.Datastore, m.def.Table = j.Name, j.Datastore, j.Table
		m.jobSrc = filename
	}

	for _, sc := range root.SourceColumns {
		col, err := translateSourceColumn(ctx, sc)
		if err != nil {
			return err
		}
		m.def.SourceColumns = append(m.def.SourceColumns, col)
	}

	for _, group := range []struct {
		kind   string
		blocks []*componentBlock
	}{
		{"filter", root.Filters},
		{"transformer", root.Transformers},
		{"analyzer", root.Analyzers},
	} {
		for _, b := range group.blocks {
			c, err := translateComponent(ctx, group.kind, b)
			if err != nil {
				return err
			}
			m.def.Components = append(m.def.Components, c)
		}
	}
	return nil
}

func (m *merger) finish(ctx context.Context) (*config.JobDefinition, error) {
	if m.jobSrc == "" {
		return nil, errs.Configuration("", "load job", errors.New("no job block found"))
	}
	if err := config.Migrate(m.def); err != nil {
		return nil, errs.Configuration(m.def.Name, "load job", err)
	}
	if err := m.def.Validate(); err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("HCL loading complete.",
		"job", m.def.Name,
		"format_version", m.def.FormatVersion,
		"source_columns", len(m.def.SourceColumns),
		"components", len(m.def.Components),
	)
	return m.def, nil
}
