package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/cleangrid/internal/testutil"
	"gopkg.in/yaml.v3"
)

const emailJob = `
job "people" {
  datastore = "main"
  table     = "people"
}

source_column "email" {
  number = 0
  type   = string
}

analyzer "row-count" "rows" {
  columns {
    columns = ["email"]
  }
}
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func peopleDatastore(t *testing.T) string {
	t.Helper()
	store := testutil.NewSQLiteDatastore(t, "main", testutil.Table{
		Name:    "people",
		Columns: "email TEXT",
		Rows:    [][]any{{"a@b.com"}, {"c@d.com"}, {nil}, {"e@f.com"}},
	})
	return store.Path()
}

func execute(args ...string) (string, string, error) {
	var out, errOut bytes.Buffer
	err := Execute(context.Background(), args, &out, &errOut)
	return out.String(), errOut.String(), err
}

func TestExecute_Help(t *testing.T) {
	// Arrange & Act
	out, _, err := execute()

	// Assert
	require.NoError(t, err, "no subcommand prints help")
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "components")
}

func TestExecute_UsageErrors(t *testing.T) {
	testCases := []struct {
		name    string
		args    []string
		wantMsg string
	}{
		{"unknown flag", []string{"--this-is-not-a-valid-flag"}, "unknown flag: --this-is-not-a-valid-flag"},
		{"unknown subcommand flag", []string{"run", "--bogus"}, "unknown flag: --bogus"},
		{"bad log level", []string{"components", "--log-level", "loud"}, "LogLevel"},
		{"bad partitions", []string{"run", "job.hcl", "--partitions", "0"}, "Partitions"},
		{"job given twice", []string{"validate", "a.hcl", "--job", "b.hcl"}, "both as argument and --job"},
		{"too many args", []string{"run", "a.hcl", "b.hcl"}, "accepts at most 1 arg"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := execute(tc.args...)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantMsg)
			var exitErr *ExitError
			if tc.name != "too many args" {
				require.True(t, errors.As(err, &exitErr), "got %T", err)
				assert.Equal(t, 2, exitErr.Code)
			}
		})
	}
}

func TestExecute_Components(t *testing.T) {
	out, _, err := execute("components")

	require.NoError(t, err)
	assert.Contains(t, out, "null-check")
	assert.Contains(t, out, "string-analyzer")
	assert.Contains(t, out, "insert-into-table")
}

func TestExecute_Validate(t *testing.T) {
	t.Run("valid job", func(t *testing.T) {
		out, _, err := execute("validate", writeFile(t, "job.hcl", emailJob))

		require.NoError(t, err)
		assert.Equal(t, "Job \"people\" is valid: 1 source columns, 1 components.\n", out)
	})

	t.Run("broken job is a usage error", func(t *testing.T) {
		_, _, err := execute("validate", writeFile(t, "job.hcl", `job "x" {`))

		var exitErr *ExitError
		require.True(t, errors.As(err, &exitErr), "got %v", err)
		assert.Equal(t, 2, exitErr.Code)
	})
}

func TestExecute_Run(t *testing.T) {
	t.Run("flags", func(t *testing.T) {
		// Arrange
		job := writeFile(t, "job.hcl", emailJob)
		db := peopleDatastore(t)

		// Act
		out, logs, err := execute("run", job, "--datastore", db, "--partitions", "2", "--log-format", "json")

		// Assert
		require.NoError(t, err)
		var report map[string]any
		require.NoError(t, yaml.Unmarshal([]byte(out), &report))
		assert.Equal(t, "succeeded", report["status"])
		assert.Equal(t, map[string]any{"rows": 4}, report["results"])
		assert.Contains(t, logs, `"msg":"Job loaded successfully."`)
	})

	t.Run("settings file with flag override", func(t *testing.T) {
		// Arrange
		settings := writeFile(t, "cleangrid.yaml",
			"job: "+writeFile(t, "job.hcl", emailJob)+"\n"+
				"datastore_path: "+peopleDatastore(t)+"\n"+
				"partitions: 0\n")

		// Act
		_, _, invalidErr := execute("run", "--config", settings)
		out, _, err := execute("run", "--config", settings, "--partitions", "3")

		// Assert
		assert.ErrorContains(t, invalidErr, "Partitions", "the file alone is invalid")
		require.NoError(t, err)
		assert.Contains(t, out, "status: succeeded")
	})
}
