package app

import (
	"context"
	"errors"

	"github.com/vk/cleangrid/internal/builder"
	"github.com/vk/cleangrid/internal/ctxlog"
	"github.com/vk/cleangrid/internal/errs"
	"github.com/vk/cleangrid/internal/hcl"
	"github.com/vk/cleangrid/internal/job"
)

// LoadJob reads the configured HCL job and freezes it into an analysis job.
func (a *App) LoadJob(ctx context.Context) (*job.AnalysisJob, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading job...", "job_path", a.config.JobPath)

	if a.config.JobPath == "" {
		return nil, errs.Configuration("", "load job", errors.New("no job path configured"))
	}

	def, err := hcl.NewLoader().Load(ctx, a.config.JobPath)
	if err != nil {
		return nil, err
	}
	b, err := builder.FromDefinition(ctx, a.registry, def)
	if err != nil {
		return nil, err
	}
	j, err := b.ToAnalysisJob()
	if err != nil {
		return nil, err
	}

	logger.Info("Job loaded successfully.",
		"job", j.Name(),
		"source_columns", len(j.SourceColumns()),
		"components", len(j.Components()),
		"analyzers", len(j.Analyzers()))
	return j, nil
}

// Validate loads and freezes the job without running it.
func (a *App) Validate(ctx context.Context) (*job.AnalysisJob, error) {
	return a.LoadJob(ctx)
}
