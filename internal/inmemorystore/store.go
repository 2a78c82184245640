// Package inmemorystore provides an ephemeral, thread-safe, in-memory
// implementation of the nodestore.Store interface.
//
// # Concurrency Model
//
// The store uses sync.Map because the key space (every component of one
// job) is known up front while values change constantly as partitions
// report in. Each component's state is independent, so writers for
// different components never contend.
package inmemorystore

import (
	"context"
	"sync"

	"github.com/vk/cleangrid/internal/nodeid"
	"github.com/vk/cleangrid/internal/nodestore"
)

// Store is an in-memory implementation of nodestore.Store.
type Store struct {
	mu      sync.Mutex // serializes status transitions
	states  sync.Map   // Key: address string, Value: nodestore.Status
	results sync.Map   // Key: address string, Value: any
	errors  sync.Map   // Key: address string, Value: error
}

var _ nodestore.Store = (*Store)(nil)

// New creates a new, empty store.
func New() *Store {
	return &Store{}
}

// SetStatus implements nodestore.Store.
func (s *Store) SetStatus(_ context.Context, id nodeid.Address, status nodestore.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := id.String()
	if cur, ok := s.states.Load(key); ok && cur.(nodestore.Status) == nodestore.StatusFailed {
		return nil
	}
	s.states.Store(key, status)
	return nil
}

// GetStatus implements nodestore.Store.
func (s *Store) GetStatus(_ context.Context, id nodeid.Address) (nodestore.Status, error) {
	status, ok := s.states.Load(id.String())
	if !ok {
		return nodestore.StatusPending, nil
	}
	return status.(nodestore.Status), nil
}

// SetResult implements nodestore.Store.
func (s *Store) SetResult(_ context.Context, id nodeid.Address, result any) error {
	s.results.Store(id.String(), result)
	return nil
}

// GetResult implements nodestore.Store.
func (s *Store) GetResult(_ context.Context, id nodeid.Address) (any, error) {
	result, ok := s.results.Load(id.String())
	if !ok {
		return nil, nil
	}
	return result, nil
}

// RecordError implements nodestore.Store.
func (s *Store) RecordError(_ context.Context, id nodeid.Address, componentErr error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := id.String()
	s.states.Store(key, nodestore.StatusFailed)
	_, loaded := s.errors.LoadOrStore(key, componentErr)
	return !loaded, nil
}

// GetError implements nodestore.Store.
func (s *Store) GetError(_ context.Context, id nodeid.Address) (error, error) {
	err, ok := s.errors.Load(id.String())
	if !ok {
		return nil, nil
	}
	return err.(error), nil
}
