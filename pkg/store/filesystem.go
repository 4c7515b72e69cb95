package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// FileSystemStore writes one JSON document per item in a directory.
// Writes go through a temp file and a rename, so concurrent readers
// (including other processes) never observe a torn file.
type FileSystemStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileSystem opens dir as a store, creating it if needed.
// It fails when dir exists and is not a directory.
func NewFileSystem(dir string) (*FileSystemStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage directory required")
	}

	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return nil, fmt.Errorf("invalid storage directory %s: not a directory", dir)
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("stat storage directory: %w", err)
	}

	return &FileSystemStore{dir: dir}, nil
}

// Dir returns the storage directory
func (s *FileSystemStore) Dir() string {
	return s.dir
}

func (s *FileSystemStore) fileFor(id string) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, url.PathEscape(id)), nil
}

func (s *FileSystemStore) Read(_ context.Context, id string) (*Item, error) {
	path, err := s.fileFor(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read item %q: %w", id, err)
	}

	var item Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("corrupt item %q: %w", id, err)
	}
	return &item, nil
}

func (s *FileSystemStore) Save(_ context.Context, item Item) error {
	path, err := s.fileFor(item.ID)
	if err != nil {
		return err
	}
	if item.Metadata == nil {
		item.Metadata = map[string]interface{}{}
	}

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode item %q: %w", item.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := filepath.Join(s.dir, ".tmp-"+uuid.NewString())
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write item %q: %w", item.ID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit item %q: %w", item.ID, err)
	}
	return nil
}

func (s *FileSystemStore) Exists(_ context.Context, id string) (bool, error) {
	path, err := s.fileFor(id)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (s *FileSystemStore) Close() error {
	return nil
}
