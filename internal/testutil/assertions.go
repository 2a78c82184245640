package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/cleangrid/internal/engine"
)

// AssertComponentFailed checks that the run recorded exactly one error for
// the named component and returns it.
func AssertComponentFailed(t *testing.T, rs *engine.ResultSet, name string) error {
	t.Helper()
	require.NotNil(t, rs, "run produced no result set")

	var found []error
	for _, e := range rs.Errors() {
		if e.Name() == name {
			found = append(found, e.Err)
		}
	}
	require.Len(t, found, 1, "expected exactly one error for component %q, got %v", name, rs.Errors())
	return found[0]
}

// RequireResult returns the reduced result of the named analyzer as T.
func RequireResult[T any](t *testing.T, rs *engine.ResultSet, name string) T {
	t.Helper()
	require.NotNil(t, rs, "run produced no result set")

	res, ok := rs.Result(name)
	require.True(t, ok, "no result for analyzer %q", name)
	typed, ok := res.(T)
	require.True(t, ok, "result of %q has type %T", name, res)
	return typed
}
