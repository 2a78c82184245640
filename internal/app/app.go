package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/vk/cleangrid/internal/ctxlog"
	"github.com/vk/cleangrid/internal/engine"
	"github.com/vk/cleangrid/internal/registry"
	"github.com/vk/cleangrid/internal/scheduler"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	config   *Config
	logger   *slog.Logger
	registry *registry.Registry

	metrics          *prometheus.Registry
	schedulerMetrics *scheduler.Metrics
	engineMetrics    *engine.Metrics

	httpServer *http.Server
}

// NewApp is the constructor for the main application. Logs are written to
// outW. The registry is populated from modules, or from every built-in
// module when none are given.
func NewApp(outW io.Writer, cfg *Config, modules ...registry.Module) (*App, error) {
	logger := newLogger(cfg, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	if err := reg.RegisterModules(ctx, modules...); err != nil {
		return nil, fmt.Errorf("failed to build component registry: %w", err)
	}
	logger.Debug("Component registry ready.", "descriptors", reg.Len())

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	schedMetrics, err := scheduler.NewMetrics(metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to register scheduler metrics: %w", err)
	}
	engMetrics, err := engine.NewMetrics(metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to register engine metrics: %w", err)
	}

	return &App{
		outW:             outW,
		config:           cfg,
		logger:           logger,
		registry:         reg,
		metrics:          metrics,
		schedulerMetrics: schedMetrics,
		engineMetrics:    engMetrics,
	}, nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Metrics returns the registry every collector of the app is registered on.
func (a *App) Metrics() *prometheus.Registry {
	return a.metrics
}

// Config returns the configuration the app was created with.
func (a *App) Config() *Config {
	return a.config
}
