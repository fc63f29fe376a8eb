// Package filestore persists incident collections as JSON documents in a
// data directory, one file per collection.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/linnemanlabs/trackwatch/internal/incident"
)

// Store reads and writes <dir>/<collection>.json.
type Store struct {
	dir string
}

// New creates dir if needed and returns a Store rooted there.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("filestore: data directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("filestore: create %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Path returns the file backing collection c.
func (s *Store) Path(c incident.Collection) string {
	return filepath.Join(s.dir, string(c)+".json")
}

// Load returns the file contents, or nil if the file does not exist.
func (s *Store) Load(_ context.Context, c incident.Collection) ([]byte, error) {
	doc, err := os.ReadFile(s.Path(c))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Save replaces the file atomically: readers see either the old or the new
// document, never a partial write.
func (s *Store) Save(_ context.Context, c incident.Collection, doc []byte) error {
	tmp, err := os.CreateTemp(s.dir, string(c)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(doc); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, s.Path(c))
}
