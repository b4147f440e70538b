// Package memory stores blob content in-memory for tests and development.
package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// Store is an in-memory blob store keyed by object name.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Put seeds an object. Intended for test setup.
func (s *Store) Put(object string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[object] = append([]byte(nil), data...)
}

// Exists reports whether an object is present.
func (s *Store) Exists(object string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[object]
	return ok
}

// List returns the sorted names of objects under the prefix.
func (s *Store) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var names []string
	for name := range s.data {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Download writes the object's contents to destPath.
func (s *Store) Download(_ context.Context, object, destPath string) error {
	s.mu.RLock()
	data, ok := s.data[object]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("object not found: %s", object)
	}
	if err := os.WriteFile(destPath, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", destPath, err)
	}
	return nil
}

// Copy duplicates src to dst.
func (s *Store) Copy(_ context.Context, src, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.data[src]
	if !ok {
		return fmt.Errorf("object not found: %s", src)
	}
	s.data[dst] = append([]byte(nil), data...)
	return nil
}

// Delete removes the object.
func (s *Store) Delete(_ context.Context, object string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[object]; !ok {
		return fmt.Errorf("object not found: %s", object)
	}
	delete(s.data, object)
	return nil
}
