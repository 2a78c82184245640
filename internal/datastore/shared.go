package datastore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/vk/cleangrid/internal/ctxlog"
	"github.com/vk/cleangrid/internal/errs"
)

// SharedConnection opens a datastore once and lends the connection to every
// concurrent user. The first Acquire opens it; the connection is closed
// when the last lease is released. A later Acquire opens it again.
type SharedConnection struct {
	ds Datastore

	mu    sync.Mutex
	src   RowSource
	users int
	opens int
}

// NewSharedConnection wraps ds.
func NewSharedConnection(ds Datastore) *SharedConnection {
	return &SharedConnection{ds: ds}
}

// Name returns the datastore name.
func (c *SharedConnection) Name() string { return c.ds.Name() }

// Users returns the number of outstanding leases.
func (c *SharedConnection) Users() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.users
}

// Opens returns how many times the underlying connection was opened.
func (c *SharedConnection) Opens() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens
}

// Acquire checks the connection out. Every successful Acquire must be
// paired with Lease.Release.
func (c *SharedConnection) Acquire(ctx context.Context) (*Lease, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.users == 0 {
		src, err := c.ds.Open(ctx)
		if err != nil {
			return nil, errs.Resource(c.ds.Name(), "open datastore", err)
		}
		c.src = src
		c.opens++
		ctxlog.FromContext(ctx).Debug("Datastore connection opened.", "datastore", c.ds.Name())
	}
	c.users++
	return &Lease{conn: c, src: c.src, count: c.users}, nil
}

func (c *SharedConnection) release(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users--
	if c.users > 0 {
		return nil
	}
	src := c.src
	c.src = nil
	ctxlog.FromContext(ctx).Debug("Datastore connection closed.", "datastore", c.ds.Name())
	if err := src.Close(); err != nil {
		return errs.Resource(c.ds.Name(), "close datastore", err)
	}
	return nil
}

// Lease is one checked-out use of a SharedConnection.
type Lease struct {
	conn     *SharedConnection
	src      RowSource
	count    int
	released atomic.Bool
}

// Source returns the open row source.
func (l *Lease) Source() RowSource { return l.src }

// Count returns the number of users, this one included, at the time the
// lease was acquired.
func (l *Lease) Count() int { return l.count }

// Release returns the lease. Releasing twice is logged and otherwise
// ignored.
func (l *Lease) Release(ctx context.Context) error {
	if !l.released.CompareAndSwap(false, true) {
		ctxlog.FromContext(ctx).Warn("Datastore lease released more than once.",
			"datastore", l.conn.Name(),
			"error", fmt.Errorf("%w: lease", errs.ErrResourceClosed),
		)
		return nil
	}
	return l.conn.release(ctx)
}
