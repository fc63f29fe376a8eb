// Package memstore provides an in-memory implementation of
// incident.SnapshotStore.
package memstore

import (
	"context"
	"sync"

	"github.com/linnemanlabs/trackwatch/internal/incident"
)

// Store holds collection snapshots in memory. Suitable for dev/testing.
type Store struct {
	mu   sync.RWMutex
	docs map[incident.Collection][]byte
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{docs: make(map[incident.Collection][]byte)}
}

// Load returns a copy of the stored document, or nil if c was never saved.
func (s *Store) Load(_ context.Context, c incident.Collection) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[c]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), doc...), nil
}

// Save stores a copy of doc.
func (s *Store) Save(_ context.Context, c incident.Collection, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[c] = append([]byte(nil), doc...)
	return nil
}
