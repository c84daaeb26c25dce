// Package memory implements a process local kvstore driver.
package memory

import (
	"sync"

	"github.com/jrsteele09/myoutlet-admin/kvstore"
)

func init() {
	kvstore.Register("memory", func(kvstore.DriverConfig) (kvstore.Store, error) {
		return New(), nil
	})
}

// Store is a thread-safe in-memory implementation of kvstore.Store
type Store struct {
	mu     sync.RWMutex
	data   map[string]map[string]string
	closed bool
}

var _ kvstore.Store = (*Store)(nil)

// New creates an empty in-memory store
func New() *Store {
	return &Store{data: make(map[string]map[string]string)}
}

func (s *Store) Get(namespace, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", kvstore.ErrClosed
	}
	v, ok := s.data[namespace][key]
	if !ok {
		return "", kvstore.ErrNotFound
	}
	return v, nil
}

func (s *Store) PutMany(namespace string, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return kvstore.ErrClosed
	}
	ns, ok := s.data[namespace]
	if !ok {
		ns = make(map[string]string, len(values))
		s.data[namespace] = ns
	}
	for k, v := range values {
		ns[k] = v
	}
	return nil
}

func (s *Store) Delete(namespace string, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return kvstore.ErrClosed
	}
	ns, ok := s.data[namespace]
	if !ok {
		return nil
	}
	for _, k := range keys {
		delete(ns, k)
	}
	if len(ns) == 0 {
		delete(s.data, namespace)
	}
	return nil
}

func (s *Store) DeleteNamespace(namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return kvstore.ErrClosed
	}
	delete(s.data, namespace)
	return nil
}

func (s *Store) Namespaces() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, kvstore.ErrClosed
	}
	names := make([]string, 0, len(s.data))
	for ns := range s.data {
		names = append(names, ns)
	}
	return names, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
