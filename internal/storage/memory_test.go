package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage(testConfig())

	content := []byte("certificate scan bytes")
	key, err := s.SaveFile(ctx, content, "uploads/cert.png", "image/png")
	require.NoError(t, err)
	require.Equal(t, "uploads/cert.png", key)

	got, err := s.DownloadFile(ctx, key)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestMemoryStorage_CopiesContent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage(testConfig())

	content := []byte{1, 2, 3}
	_, err := s.SaveFile(ctx, content, "uploads/raw.bin", "application/octet-stream")
	require.NoError(t, err)

	content[0] = 9

	got, err := s.DownloadFile(ctx, "uploads/raw.bin")
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, got)
}

func TestMemoryStorage_DownloadMissing(t *testing.T) {
	s := NewMemoryStorage(testConfig())

	_, err := s.DownloadFile(context.Background(), "uploads/ghost.png")
	require.ErrorIs(t, err, ErrFileNotFound)
	require.Contains(t, err.Error(), "uploads/ghost.png")
}

func TestMemoryStorage_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage(testConfig())

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

func TestMemoryStorage_FileExists(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage(testConfig())

	exists, err := s.FileExists(ctx, "uploads/never-written.png")
	require.NoError(t, err)
	require.False(t, exists)

	_, err = s.SaveFile(ctx, []byte("x"), "uploads/written.png", "image/png")
	require.NoError(t, err)

	exists, err = s.FileExists(ctx, "uploads/written.png")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestMemoryStorage_FileURL(t *testing.T) {
	s := NewMemoryStorage(testConfig())

	url, err := s.FileURL(context.Background(), "uploads/cert.png", 0)
	require.NoError(t, err)
	require.Equal(t, "memory://uploads/cert.png", url)
}

func TestMemoryStorage_PresignUnsupported(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage(testConfig())

	_, err := s.PresignPut(ctx, "uploads/a.png", "image/png", 0)
	require.ErrorIs(t, err, ErrPresignNotSupported)

	_, err = s.PresignPost(ctx, "uploads/a.png", "image/png", 0, 0)
	require.ErrorIs(t, err, ErrPresignNotSupported)
}

func TestMemoryStorage_RejectsOversized(t *testing.T) {
	cfg := testConfig()
	cfg.MaxFileSize = 4
	s := NewMemoryStorage(cfg)

	_, err := s.SaveFile(context.Background(), []byte("12345"), "uploads/big.bin", "application/octet-stream")
	require.ErrorIs(t, err, ErrFileTooLarge)
}
