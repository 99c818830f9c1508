package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Chunk sequencing errors surfaced to the upload pipeline.
var (
	ErrChunkOutOfOrder = errors.New("chunk index out of order")
	ErrChunkIndexRange = errors.New("chunk index outside declared total")
)

// ChunkStore is an append-only staging area for in-flight uploads keyed by
// an opaque upload id. A sidecar file tracks the next expected chunk index
// so duplicate or reordered chunks fail instead of corrupting the assembly.
type ChunkStore struct {
	stagingDir string
}

// NewChunkStore ensures the staging directory exists and returns a handle.
func NewChunkStore(stagingDir string) (*ChunkStore, error) {
	if stagingDir == "" {
		stagingDir = "./data/staging"
	}
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	return &ChunkStore{stagingDir: stagingDir}, nil
}

// Append writes one chunk's bytes onto the partial file for the upload.
// Chunks must arrive in strict index order from a single sender; the open
// mode is append-only so a failed write never corrupts the existing prefix.
// Returns the number of bytes written.
func (s *ChunkStore) Append(uploadID, originalFilename string, index, total int, r io.Reader) (int64, error) {
	if total <= 0 || index < 0 || index >= total {
		return 0, ErrChunkIndexRange
	}

	path := s.PartialPath(uploadID, originalFilename)
	expected, err := s.readNextIndex(path)
	if err != nil {
		return 0, err
	}
	if index != expected {
		return 0, fmt.Errorf("%w: got %d, expected %d", ErrChunkOutOfOrder, index, expected)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open partial file: %w", err)
	}
	written, err := io.Copy(file, r)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return written, fmt.Errorf("append chunk: %w", err)
	}

	if err := s.writeNextIndex(path, index+1); err != nil {
		return written, err
	}
	return written, nil
}

// PartialPath returns the deterministic staging path for an upload.
func (s *ChunkStore) PartialPath(uploadID, originalFilename string) string {
	name := sanitizeComponent(uploadID) + "_" + sanitizeComponent(originalFilename) + ".part"
	return filepath.Join(s.stagingDir, name)
}

// Remove deletes the partial file and its index sidecar if present.
func (s *ChunkStore) Remove(uploadID, originalFilename string) error {
	path := s.PartialPath(uploadID, originalFilename)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove partial file: %w", err)
	}
	if err := os.Remove(sidecarPath(path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove chunk sidecar: %w", err)
	}
	return nil
}

// Release drops only the sidecar, used after the partial file has been
// promoted to canonical storage by rename.
func (s *ChunkStore) Release(uploadID, originalFilename string) error {
	path := sidecarPath(s.PartialPath(uploadID, originalFilename))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove chunk sidecar: %w", err)
	}
	return nil
}

// SweepOlderThan removes staging files untouched for longer than ttl and
// returns the removed names. Reclaims partials abandoned by crashed clients.
func (s *ChunkStore) SweepOlderThan(ttl time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-ttl)
	removed := make([]string, 0)
	err := filepath.WalkDir(s.stagingDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		removed = append(removed, d.Name())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sweep staging: %w", err)
	}
	return removed, nil
}

func (s *ChunkStore) readNextIndex(partialPath string) (int, error) {
	raw, err := os.ReadFile(sidecarPath(partialPath))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read chunk sidecar: %w", err)
	}
	next, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("parse chunk sidecar: %w", err)
	}
	return next, nil
}

func (s *ChunkStore) writeNextIndex(partialPath string, next int) error {
	if err := os.WriteFile(sidecarPath(partialPath), []byte(strconv.Itoa(next)), 0o644); err != nil {
		return fmt.Errorf("write chunk sidecar: %w", err)
	}
	return nil
}

func sidecarPath(partialPath string) string {
	return partialPath + ".next"
}

// sanitizeComponent flattens a client-supplied string into a safe single
// path component. Path separators and leading dots are never preserved.
func sanitizeComponent(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		out = "unnamed"
	}
	return out
}
