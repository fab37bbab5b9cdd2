package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// LocalStore writes documents to the local filesystem
type LocalStore struct {
	dirPerm  os.FileMode
	filePerm os.FileMode
}

// NewLocalStore creates a store with 0755 directories and 0644 files
func NewLocalStore() *LocalStore {
	return &LocalStore{dirPerm: 0o755, filePerm: 0o644}
}

// Put creates missing parent directories and replaces path atomically.
// On failure the previous file, if any, is left untouched.
func (s *LocalStore) Put(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, s.dirPerm); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	if err := renameio.WriteFile(path, data, s.filePerm); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
