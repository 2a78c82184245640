package scheduler

import (
	"context"
	"fmt"
	"sync"
)

// FlushFunc drains one batch of buffered records.
type FlushFunc[T any] func(ctx context.Context, batch []T) error

// WriteBuffer collects records and drains them in batches of at most size.
//
// A batch is flushed when the buffer becomes full or when Flush is called.
// The flush runs on the goroutine whose call triggered it and its error is
// returned from that call. Callers of Add block while a flush is in
// progress. A batch whose flush fails is discarded.
type WriteBuffer[T any] struct {
	size  int
	flush FlushFunc[T]

	mu    sync.Mutex
	items []T
}

// NewWriteBuffer creates a buffer holding up to size records. A size below 1
// flushes on every Add.
func NewWriteBuffer[T any](size int, flush FlushFunc[T]) *WriteBuffer[T] {
	if size < 1 {
		size = 1
	}
	return &WriteBuffer[T]{size: size, flush: flush, items: make([]T, 0, size)}
}

// Add buffers rec and flushes when the buffer is full.
func (b *WriteBuffer[T]) Add(ctx context.Context, rec T) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, rec)
	if len(b.items) < b.size {
		return nil
	}
	return b.flushLocked(ctx)
}

// Flush drains whatever is buffered.
func (b *WriteBuffer[T]) Flush(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushLocked(ctx)
}

// Len returns the number of records waiting for a flush.
func (b *WriteBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

func (b *WriteBuffer[T]) flushLocked(ctx context.Context) error {
	if len(b.items) == 0 {
		return nil
	}
	batch := b.items
	b.items = make([]T, 0, b.size)
	if err := b.flush(ctx, batch); err != nil {
		return fmt.Errorf("failed to flush %d buffered record(s): %w", len(batch), err)
	}
	return nil
}
