package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStorePromoteMovesNotCopies(t *testing.T) {
	staging := t.TempDir()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	src := filepath.Join(staging, "assembled.part")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))

	dst, err := store.Promote(src, "documents", "abc123.pdf")
	require.NoError(t, err)

	_, err = os.Stat(src)
	require.True(t, os.IsNotExist(err), "source must be gone after promote")

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))

	size, err := store.Size("documents", "abc123.pdf")
	require.NoError(t, err)
	require.Equal(t, int64(7), size)
	require.True(t, store.Exists("documents", "abc123.pdf"))
}

func TestFileStorePromoteMissingSourceFails(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Promote(filepath.Join(t.TempDir(), "nope.part"), "patches", "x.bin")
	require.Error(t, err)
	require.False(t, store.Exists("patches", "x.bin"))
}

func TestFileStoreDeleteIsIdempotent(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "f.part")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))
	_, err = store.Promote(src, "misc", "y.bin")
	require.NoError(t, err)

	require.NoError(t, store.Delete("misc", "y.bin"))
	require.NoError(t, store.Delete("misc", "y.bin"))
	require.False(t, store.Exists("misc", "y.bin"))
}
