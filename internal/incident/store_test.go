package incident

import (
	"context"
	"errors"
	"sync"
)

var errBackend = errors.New("backend unavailable")

// fakeStore is an in-package SnapshotStore with switchable failures.
type fakeStore struct {
	mu       sync.Mutex
	docs     map[Collection][]byte
	failLoad map[Collection]bool
	failSave map[Collection]bool
	saves    map[Collection]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:     make(map[Collection][]byte),
		failLoad: make(map[Collection]bool),
		failSave: make(map[Collection]bool),
		saves:    make(map[Collection]int),
	}
}

func (s *fakeStore) Load(_ context.Context, c Collection) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failLoad[c] {
		return nil, errBackend
	}
	doc, ok := s.docs[c]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), doc...), nil
}

func (s *fakeStore) Save(_ context.Context, c Collection, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave[c] {
		return errBackend
	}
	s.docs[c] = append([]byte(nil), doc...)
	s.saves[c]++
	return nil
}

func (s *fakeStore) setFailSave(c Collection, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSave[c] = fail
}

func (s *fakeStore) setFailLoad(c Collection, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLoad[c] = fail
}

func (s *fakeStore) setDoc(c Collection, doc string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[c] = []byte(doc)
}

func (s *fakeStore) saveCount(c Collection) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[c]
}
