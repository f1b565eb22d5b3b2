package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// LocalStorage keeps blobs in a directory on disk. Used in development and in
// deployments without object storage.
type LocalStorage struct {
	dir string
}

func NewLocalStorage(dir string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %q: %w", dir, err)
	}
	return &LocalStorage{dir: dir}, nil
}

func (s *LocalStorage) Upload(_ context.Context, data []byte, originalName, mimeType string) (*FileInfo, error) {
	filename := uuid.NewString() + filepath.Ext(originalName)

	if err := os.WriteFile(filepath.Join(s.dir, filename), data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write file %q: %w", filename, err)
	}

	return &FileInfo{
		Filename:     filename,
		OriginalName: originalName,
		MimeType:     mimeType,
		Size:         int64(len(data)),
		Path:         "/api/files/" + filename,
	}, nil
}

func (s *LocalStorage) Delete(_ context.Context, filename string) error {
	path := filepath.Join(s.dir, filepath.Base(filename))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file %q: %w", filename, err)
	}
	return nil
}

// FilePath returns the on-disk path of a stored blob, for serving downloads.
func (s *LocalStorage) FilePath(filename string) string {
	return filepath.Join(s.dir, filepath.Base(filename))
}
