package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileStore is the canonical on-disk home for committed files, organised
// into one subdirectory per content kind under a base directory.
type FileStore struct {
	baseDir string
}

// NewFileStore ensures the base directory exists and returns a handle.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		baseDir = "./data/files"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// Promote moves an assembled staging file into canonical storage under the
// given subdirectory and stored name. The source is renamed, not copied;
// when rename crosses filesystems a copy-then-remove fallback runs instead.
// On failure any partially written destination is deleted before returning.
func (s *FileStore) Promote(srcPath, subdir, storedName string) (string, error) {
	dst := s.Path(subdir, storedName)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("prepare storage directory: %w", err)
	}
	if err := os.Rename(srcPath, dst); err == nil {
		return dst, nil
	}
	if err := copyAndRemove(srcPath, dst); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("promote file: %w", err)
	}
	return dst, nil
}

// Open returns a read-only handle for a stored file.
func (s *FileStore) Open(subdir, storedName string) (*os.File, error) {
	file, err := os.Open(s.Path(subdir, storedName))
	if err != nil {
		return nil, fmt.Errorf("open stored file: %w", err)
	}
	return file, nil
}

// Size reports the byte size of a stored file from the filesystem, never
// from client-reported metadata.
func (s *FileStore) Size(subdir, storedName string) (int64, error) {
	info, err := os.Stat(s.Path(subdir, storedName))
	if err != nil {
		return 0, fmt.Errorf("stat stored file: %w", err)
	}
	return info.Size(), nil
}

// Exists reports whether a physical file backs the stored name.
func (s *FileStore) Exists(subdir, storedName string) bool {
	_, err := os.Stat(s.Path(subdir, storedName))
	return err == nil
}

// Delete removes a stored file if present.
func (s *FileStore) Delete(subdir, storedName string) error {
	if err := os.Remove(s.Path(subdir, storedName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete stored file: %w", err)
	}
	return nil
}

// Path exposes the absolute canonical path for a stored file.
func (s *FileStore) Path(subdir, storedName string) string {
	return filepath.Join(s.baseDir, sanitizeComponent(subdir), sanitizeComponent(storedName))
}

func copyAndRemove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
