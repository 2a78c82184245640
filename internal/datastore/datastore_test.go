package datastore_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/cleangrid/internal/ctxlog"
	"github.com/vk/cleangrid/internal/datastore"
	"github.com/vk/cleangrid/internal/datastore/memory"
	"github.com/vk/cleangrid/internal/errs"
)

func TestSplitRange(t *testing.T) {
	testCases := []struct {
		name   string
		total  int64
		n      int
		limits []int64
	}{
		{"even", 10, 2, []int64{5, 5}},
		{"remainder goes first", 7, 2, []int64{4, 3}},
		{"three ways", 10, 3, []int64{4, 3, 3}},
		{"more partitions than rows", 2, 4, []int64{1, 1, 0, 0}},
		{"empty table", 0, 3, []int64{0, 0, 0}},
		{"n below one", 5, 0, []int64{5}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			parts := datastore.SplitRange(tc.total, tc.n)

			require.Len(t, parts, len(tc.limits))
			var offset int64
			for i, p := range parts {
				assert.Equal(t, i, p.Index)
				assert.Equal(t, offset, p.Offset, "partitions are contiguous")
				assert.Equal(t, tc.limits[i], p.Limit)
				offset += p.Limit
			}
			assert.Equal(t, tc.total, offset)
		})
	}
}

func TestCatalog(t *testing.T) {
	a, b := memory.New("a"), memory.New("b")
	cat, err := datastore.NewCatalog(b, a)
	require.NoError(t, err)

	got, ok := cat.Get("a")
	require.True(t, ok)
	assert.Same(t, a, got)
	_, ok = cat.Get("c")
	assert.False(t, ok)
	assert.Equal(t, []string{"a", "b"}, cat.Names())

	err = cat.Register(memory.New("a"))
	assert.True(t, errs.IsConfiguration(err))
}

func TestSharedConnection(t *testing.T) {
	t.Run("usage counting", func(t *testing.T) {
		// Arrange
		ctx := context.Background()
		store := memory.New("main")
		conn := datastore.NewSharedConnection(store)

		// Act
		first, err := conn.Acquire(ctx)
		require.NoError(t, err)
		second, err := conn.Acquire(ctx)
		require.NoError(t, err)

		// Assert
		assert.Equal(t, 1, first.Count())
		assert.Equal(t, 2, second.Count())
		assert.Same(t, first.Source(), second.Source())
		assert.Equal(t, 1, store.Opens())

		require.NoError(t, first.Release(ctx))
		assert.Equal(t, 0, store.Closes(), "still in use")
		require.NoError(t, second.Release(ctx))
		assert.Equal(t, 1, store.Closes())
		assert.Zero(t, conn.Users())

		again, err := conn.Acquire(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, again.Count())
		assert.Equal(t, 2, conn.Opens(), "reopened after the last release")
		require.NoError(t, again.Release(ctx))
	})

	t.Run("double release is logged", func(t *testing.T) {
		var logs bytes.Buffer
		ctx := ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(&logs, nil)))
		store := memory.New("main")
		conn := datastore.NewSharedConnection(store)
		keep, err := conn.Acquire(ctx)
		require.NoError(t, err)
		lease, err := conn.Acquire(ctx)
		require.NoError(t, err)

		require.NoError(t, lease.Release(ctx))
		require.NoError(t, lease.Release(ctx))

		assert.Equal(t, 1, conn.Users(), "the second release did not steal the other user's count")
		assert.Contains(t, logs.String(), "released more than once")
		require.NoError(t, keep.Release(ctx))
		assert.Equal(t, 1, store.Closes())
	})

	t.Run("concurrent users share one connection", func(t *testing.T) {
		ctx := context.Background()
		store := memory.New("main")
		conn := datastore.NewSharedConnection(store)
		hold, err := conn.Acquire(ctx)
		require.NoError(t, err)

		var wg sync.WaitGroup
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				l, err := conn.Acquire(ctx)
				if assert.NoError(t, err) {
					assert.NoError(t, l.Release(ctx))
				}
			}()
		}
		wg.Wait()
		require.NoError(t, hold.Release(ctx))

		assert.Equal(t, 1, store.Opens())
		assert.Equal(t, 1, store.Closes())
	})

	t.Run("open failures are resource errors", func(t *testing.T) {
		conn := datastore.NewSharedConnection(failingStore{})

		_, err := conn.Acquire(context.Background())

		require.Error(t, err)
		assert.True(t, errs.IsResource(err))
		assert.Zero(t, conn.Users())
	})
}

type failingStore struct{}

func (failingStore) Name() string { return "broken" }

func (failingStore) Open(context.Context) (datastore.RowSource, error) {
	return nil, errors.New("connection refused")
}
