package storage

import (
	"context"
	"io"
	"slices"
	"sync"
)

// Namespaces and well-known keys.
const (
	NamespaceTree    = "tree"
	NamespaceFavicon = "favicon"

	// KeyBookmarks holds the encoded extended tree in NamespaceTree.
	KeyBookmarks = "bookmarks"
)

// Store defines the key-value substrate used to persist the extended tree
// and the favicon cache. An absent key is reported as ok == false with a nil
// error.
type Store interface {
	Get(ctx context.Context, namespace, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, namespace, key string, value []byte) error
	Clear(ctx context.Context, namespace string) error
	Keys(ctx context.Context, namespace string) ([]string, error)
}

// Backend is a Store that holds resources until closed.
type Backend interface {
	Store
	io.Closer
}

// MemoryStore implements Store in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string][]byte)}
}

// Get returns a copy of the value stored under namespace/key.
func (s *MemoryStore) Get(_ context.Context, namespace, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[namespace][key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(value), true, nil
}

// Set stores a copy of value under namespace/key.
func (s *MemoryStore) Set(_ context.Context, namespace, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.data[namespace]
	if !ok {
		ns = make(map[string][]byte)
		s.data[namespace] = ns
	}
	ns[key] = slices.Clone(value)
	return nil
}

// Clear removes every key of namespace.
func (s *MemoryStore) Clear(_ context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, namespace)
	return nil
}

// Keys returns the keys of a namespace in sorted order.
func (s *MemoryStore) Keys(_ context.Context, namespace string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data[namespace]))
	for key := range s.data[namespace] {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// OpenStore opens the store configured by cfg. An empty database path, or
// ":memory:", selects the in-memory store.
func OpenStore(cfg *Config) (Backend, error) {
	if cfg.Database == "" || cfg.Database == ":memory:" {
		return NewMemoryStore(), nil
	}
	return NewSQLiteStore(cfg.Database)
}
