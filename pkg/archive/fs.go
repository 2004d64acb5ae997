package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileBackend writes blobs under a directory.
type FileBackend struct {
	baseDir string
	mu      sync.RWMutex
}

func NewFileBackend(baseDir string) (*FileBackend, error) {
	//nolint:gosec // G301: receipts are not secret
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to ensure archive dir: %w", err)
	}
	return &FileBackend{baseDir: baseDir}, nil
}

func (b *FileBackend) Write(_ context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	path := filepath.Join(b.baseDir, filepath.Base(key))
	tmp := path + ".tmp"
	//nolint:gosec // G306
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write receipt: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to commit receipt: %w", err)
	}
	return nil
}

func (b *FileBackend) Read(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(b.baseDir, filepath.Base(key)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}
