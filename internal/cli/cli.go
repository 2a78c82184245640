package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/vk/cleangrid/internal/app"
	"github.com/vk/cleangrid/internal/errs"
	"github.com/vk/cleangrid/internal/registry"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// usageError marks errors caused by how the command was invoked.
func usageError(err error) error {
	return &ExitError{Code: 2, Message: err.Error()}
}

// options collects the raw flag values of one invocation.
type options struct {
	settings string
	cfg      app.Config
	modules  []registry.Module
}

// Execute runs the command line given by args. Results go to outW and logs
// to errW. modules replaces the built-in component modules when not empty.
func Execute(ctx context.Context, args []string, outW, errW io.Writer, modules ...registry.Module) error {
	root := NewRootCommand(outW, errW, modules...)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	if errs.IsConfiguration(err) {
		return usageError(err)
	}
	return err
}

// NewRootCommand builds the cleangrid command tree.
func NewRootCommand(outW, errW io.Writer, modules ...registry.Module) *cobra.Command {
	opts := &options{cfg: app.DefaultConfig(), modules: modules}

	root := &cobra.Command{
		Use:   "cleangrid",
		Short: "Descriptor-driven data profiling for SQL tables.",
		Long: `cleangrid profiles a datastore table with a declarative job: filters
route rows by outcome, transformers derive virtual columns and analyzers
compute results that are reduced over partitions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(outW)
	root.SetErr(errW)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.settings, "config", "c", "", "Path to a YAML settings file. Flags take precedence over it.")
	pf.StringVar(&opts.cfg.LogFormat, "log-format", opts.cfg.LogFormat, "Log output format. Options: 'text' or 'json'.")
	pf.StringVar(&opts.cfg.LogLevel, "log-level", opts.cfg.LogLevel, "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	root.AddCommand(
		newRunCommand(opts),
		newValidateCommand(opts),
		newComponentsCommand(opts),
	)
	return root
}

func newRunCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [JOB_PATH]",
		Short: "Run a job against a SQLite datastore and print its results as YAML.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd, args)
			if err != nil {
				return err
			}
			_, err = a.Run(cmd.Context(), cmd.OutOrStdout())
			return err
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.cfg.JobPath, "job", "j", "", "Path to the job file or directory.")
	f.StringVarP(&opts.cfg.DatastorePath, "datastore", "d", "", "Path to the SQLite database file.")
	f.StringVar(&opts.cfg.DatastoreName, "datastore-name", "", "Register the datastore under this name instead of the job's.")
	f.IntVarP(&opts.cfg.Partitions, "partitions", "p", opts.cfg.Partitions, "Number of row partitions processed independently.")
	f.IntVarP(&opts.cfg.WorkerCount, "workers", "w", opts.cfg.WorkerCount, "Number of concurrent workers. 0 uses GOMAXPROCS.")
	f.IntVar(&opts.cfg.HealthcheckPort, "healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	f.StringVar(&opts.cfg.MonitorURL, "monitor-url", "", "socket.io server to publish progress events to.")
	f.StringVar(&opts.cfg.MonitorNamespace, "monitor-namespace", "", "socket.io namespace for progress events.")
	return cmd
}

func newValidateCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [JOB_PATH]",
		Short: "Load a job and check that it can be built, without running it.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd, args)
			if err != nil {
				return err
			}
			j, err := a.Validate(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Job %q is valid: %d source columns, %d components.\n",
				j.Name(), len(j.SourceColumns()), len(j.Components()))
			return err
		},
	}
	cmd.Flags().StringVarP(&opts.cfg.JobPath, "job", "j", "", "Path to the job file or directory.")
	return cmd
}

func newComponentsCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "components",
		Short: "List every registered filter, transformer and analyzer.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd, args)
			if err != nil {
				return err
			}
			return a.Components(cmd.OutOrStdout())
		},
	}
}

// newApp merges settings file and flags into a validated config and creates
// the app. Flags that were set explicitly win over the settings file.
func (o *options) newApp(cmd *cobra.Command, args []string) (*app.App, error) {
	cfg := o.cfg
	if len(args) > 0 {
		if cfg.JobPath != "" {
			return nil, usageError(fmt.Errorf("job path given both as argument and --job"))
		}
		cfg.JobPath = args[0]
	}

	if o.settings != "" {
		loaded, err := app.LoadSettings(o.settings, app.DefaultConfig())
		if err != nil {
			return nil, usageError(err)
		}
		cmd.Flags().Visit(func(f *pflag.Flag) { overlay(&loaded, cfg, f.Name) })
		if len(args) > 0 {
			loaded.JobPath = cfg.JobPath
		}
		cfg = loaded
	}

	appConfig, err := app.NewConfig(cfg)
	if err != nil {
		return nil, usageError(err)
	}
	slog.Debug("CLI configuration resolved.", "config", appConfig)

	a, err := app.NewApp(cmd.ErrOrStderr(), appConfig, o.modules...)
	if err != nil {
		return nil, fmt.Errorf("application startup failed: %w", err)
	}
	return a, nil
}

// overlay copies the field behind flag name from src to dst.
func overlay(dst *app.Config, src app.Config, name string) {
	switch name {
	case "log-format":
		dst.LogFormat = src.LogFormat
	case "log-level":
		dst.LogLevel = src.LogLevel
	case "job":
		dst.JobPath = src.JobPath
	case "datastore":
		dst.DatastorePath = src.DatastorePath
	case "datastore-name":
		dst.DatastoreName = src.DatastoreName
	case "partitions":
		dst.Partitions = src.Partitions
	case "workers":
		dst.WorkerCount = src.WorkerCount
	case "healthcheck-port":
		dst.HealthcheckPort = src.HealthcheckPort
	case "monitor-url":
		dst.MonitorURL = src.MonitorURL
	case "monitor-namespace":
		dst.MonitorNamespace = src.MonitorNamespace
	}
}
