package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/cleangrid/internal/app"
	"github.com/vk/cleangrid/internal/engine"
	"github.com/vk/cleangrid/internal/registry"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// Scenario is one end-to-end run of the application.
type Scenario struct {
	// Files maps job file names, relative to the job directory, to HCL.
	Files map[string]string
	// Datastore is the name the SQLite file is registered under.
	Datastore string
	Tables    []Table
	// Modules replaces the built-in component modules when not empty.
	Modules []registry.Module
	// Configure adjusts the configuration before the app is created.
	Configure func(*app.Config)
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	// Output is what the run wrote as its YAML report.
	Output  string
	Err     error
	App     *app.App
	Results *engine.ResultSet
}

// RunIntegrationTest provides a standardized harness for running integration tests
// using a default background context.
func RunIntegrationTest(t *testing.T, s Scenario) *HarnessResult {
	t.Helper()
	return RunIntegrationTestWithContext(context.Background(), t, s)
}

// RunIntegrationTestWithContext provides a standardized harness for running integration
// tests with a specific context provided by the caller.
func RunIntegrationTestWithContext(ctx context.Context, t *testing.T, s Scenario) *HarnessResult {
	t.Helper()

	jobDir := filepath.Join(t.TempDir(), "job")
	for name, content := range s.Files {
		path := filepath.Join(jobDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	name := s.Datastore
	if name == "" {
		name = "main"
	}
	store := NewSQLiteDatastore(t, name, s.Tables...)

	cfg := app.DefaultConfig()
	cfg.JobPath = jobDir
	cfg.DatastorePath = store.Path()
	cfg.LogLevel = "debug"
	cfg.WorkerCount = 4
	if s.Configure != nil {
		s.Configure(&cfg)
	}
	appConfig, err := app.NewConfig(cfg)
	require.NoError(t, err)

	logBuffer := &SafeBuffer{}
	t.Cleanup(func() {
		if os.Getenv("CLEANGRID_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	testApp, err := app.NewApp(logBuffer, appConfig, s.Modules...)
	if err != nil {
		return &HarnessResult{LogOutput: logBuffer.String(), Err: err}
	}

	var out bytes.Buffer
	rs, runErr := testApp.Run(ctx, &out)
	return &HarnessResult{
		LogOutput: logBuffer.String(),
		Output:    out.String(),
		Err:       runErr,
		App:       testApp,
		Results:   rs,
	}
}
