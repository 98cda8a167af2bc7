package storage

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestLocal(t *testing.T) *LocalStorage {
	t.Helper()

	cfg := testConfig()
	cfg.LocalRoot = filepath.Join(t.TempDir(), "files")

	s, err := NewLocalStorage(cfg)
	require.NoError(t, err)
	return s
}

func TestNewLocalStorage_CreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "files")
	cfg := testConfig()
	cfg.LocalRoot = root

	_, err := NewLocalStorage(cfg)
	require.NoError(t, err)

	info, err := os.Stat(root)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestLocalStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestLocal(t)

	content := []byte("invoice image bytes")
	key, err := s.SaveFile(ctx, content, "invoices/2026/scan.jpg", "image/jpeg")
	require.NoError(t, err)
	require.Equal(t, "invoices/2026/scan.jpg", key)

	got, err := s.DownloadFile(ctx, key)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestLocalStorage_DownloadMissing(t *testing.T) {
	s := newTestLocal(t)

	_, err := s.DownloadFile(context.Background(), "uploads/ghost.png")
	require.Error(t, err)
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLocalStorage_Delete(t *testing.T) {
	ctx := context.Background()
	s := newTestLocal(t)

	t.Run("missing key is not an error", func(t *testing.T) {
		deleted, err := s.DeleteFile(ctx, "uploads/nothing.png")
		require.NoError(t, err)
		require.False(t, deleted)
	})

	t.Run("existing key", func(t *testing.T) {
		_, err := s.SaveFile(ctx, []byte("x"), "uploads/gone.png", "image/png")
		require.NoError(t, err)

		deleted, err := s.DeleteFile(ctx, "uploads/gone.png")
		require.NoError(t, err)
		require.True(t, deleted)

		exists, err := s.FileExists(ctx, "uploads/gone.png")
		require.NoError(t, err)
		require.False(t, exists)
	})
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	ctx := context.Background()
	s := newTestLocal(t)

	for _, key := range []string{
		"../escape.txt",
		"uploads/../../escape.txt",
		"..",
	} {
		_, err := s.SaveFile(ctx, []byte("x"), key, "text/plain")
		require.Error(t, err, "key %q must be rejected", key)

		_, err = s.DownloadFile(ctx, key)
		require.Error(t, err, "key %q must be rejected", key)
	}
}

func TestLocalStorage_FileURL(t *testing.T) {
	s := newTestLocal(t)

	url, err := s.FileURL(context.Background(), "uploads/cert.png", 0)
	require.NoError(t, err)
	require.Equal(t, "/files/uploads/cert.png", url)
}

func TestLocalStorage_PresignUnsupported(t *testing.T) {
	ctx := context.Background()
	s := newTestLocal(t)

	_, err := s.PresignPut(ctx, "uploads/a.png", "image/png", 0)
	require.ErrorIs(t, err, ErrPresignNotSupported)

	_, err = s.PresignPost(ctx, "uploads/a.png", "image/png", 0, 0)
	require.ErrorIs(t, err, ErrPresignNotSupported)
}
