package store

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/verihire/outbox/internal/queue"
)

// FileStore persists the queue slot as a single JSON file.
//
// Saves go through an atomic rename so a crash mid-write leaves either the
// old slot or the new one, never a torn file.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed slot at the given path. The parent
// directory is created if needed.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &FileStore{path: path}, nil
}

// Path returns the slot file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the slot. A missing file is a first run and yields an empty
// queue. Unparseable content is logged and also yields an empty queue:
// a corrupt slot must never take the client down.
func (s *FileStore) Load() ([]queue.Item, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	items, err := Unmarshal(data)
	if err != nil {
		slog.Warn("queue slot corrupt, treating as empty",
			"path", s.path,
			"error", err,
		)
		return nil, nil
	}
	return items, nil
}

// Save atomically replaces the slot with the given items.
func (s *FileStore) Save(items []queue.Item) error {
	data, err := Marshal(items)
	if err != nil {
		return err
	}
	return atomic.WriteFile(s.path, bytes.NewReader(data))
}
