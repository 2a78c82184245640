package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/vk/cleangrid/internal/ctxlog"
	"github.com/vk/cleangrid/internal/datastore"
	"github.com/vk/cleangrid/internal/datastore/sqlite"
	"github.com/vk/cleangrid/internal/engine"
	"github.com/vk/cleangrid/internal/errs"
	"github.com/vk/cleangrid/internal/job"
	"github.com/vk/cleangrid/internal/progress"
	"github.com/vk/cleangrid/internal/scheduler"
)

// Run loads the job, runs it against the configured datastore and writes
// the results to resultW as YAML. A run that recorded any error returns
// its result set together with a non-nil error.
func (a *App) Run(ctx context.Context, resultW io.Writer) (*engine.ResultSet, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.HealthcheckPort > 0 {
		a.startHealthcheckServer(ctx)
		defer func() {
			if err := a.closeHealthcheckServer(ctx); err != nil {
				a.logger.Warn("Failed to stop health check server.", "error", err)
			}
		}()
	}

	j, err := a.LoadJob(ctx)
	if err != nil {
		return nil, err
	}

	store, catalog, err := a.openDatastore(j)
	if err != nil {
		return nil, err
	}

	sched := scheduler.NewMultiThreaded(a.config.WorkerCount, scheduler.WithMetrics(a.schedulerMetrics))
	defer sched.Close()

	listeners := []engine.Listener{engine.LoggingListener{}}
	if a.config.MonitorURL != "" {
		emitter, err := progress.Dial(ctx, progress.DialOptions{
			URL:       a.config.MonitorURL,
			Namespace: a.config.MonitorNamespace,
		})
		if err != nil {
			// Progress publishing is advisory.
			a.logger.Warn("Progress monitor unavailable, continuing without it.", "url", a.config.MonitorURL, "error", err)
		} else {
			defer emitter.Close()
			listeners = append(listeners, progress.NewListener(emitter))
		}
	}

	eng := engine.New(sched,
		engine.WithCatalog(catalog),
		engine.WithListeners(listeners...),
		engine.WithMetrics(a.engineMetrics),
	)

	a.logger.Info("🚀 Starting analysis...", "job", j.Name(), "datastore", store.Name(), "partitions", a.config.Partitions)
	future, err := eng.Run(ctx, j, store, engine.RunOptions{Partitions: a.config.Partitions})
	if err != nil {
		return nil, err
	}

	rs, err := future.Await(ctx)
	if err != nil {
		// The caller gave up; stop the partitions and wait for the
		// cancelled result set.
		future.Cancel()
		rs, _ = future.Await(context.Background())
	}
	a.logger.Info("🏁 Analysis finished.", "rows", rs.RowCount(), "errors", len(rs.Errors()), "cancelled", rs.IsCancelled())

	if err := WriteResults(resultW, rs); err != nil {
		return rs, fmt.Errorf("failed to write results: %w", err)
	}
	if rs.IsErrornous() {
		return rs, fmt.Errorf("job %q finished with errors: %w", j.Name(), rs.Err())
	}
	return rs, nil
}

// openDatastore opens the configured SQLite file under the name the job
// expects, unless the configuration overrides it.
func (a *App) openDatastore(j *job.AnalysisJob) (*sqlite.Store, *datastore.Catalog, error) {
	if a.config.DatastorePath == "" {
		return nil, nil, errs.Configuration(j.Name(), "open datastore", errors.New("no datastore path configured"))
	}
	name := a.config.DatastoreName
	if name == "" {
		name = j.Metadata().Datastore
	}
	store := sqlite.New(name, a.config.DatastorePath)
	catalog, err := datastore.NewCatalog(store)
	if err != nil {
		return nil, nil, err
	}
	return store, catalog, nil
}
