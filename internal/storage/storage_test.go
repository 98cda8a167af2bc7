package storage

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Type:        TypeLocal,
		BasePrefix:  "uploads",
		MaxFileSize: DefaultMaxFileSize,
	}
}

// keyUUID extracts and parses the UUID segment of "{prefix}/{uuid}[.{ext}]".
func keyUUID(t *testing.T, key string) uuid.UUID {
	t.Helper()

	slash := strings.LastIndex(key, "/")
	require.GreaterOrEqual(t, slash, 0, "key %q has no prefix segment", key)

	segment := key[slash+1:]
	if dot := strings.Index(segment, "."); dot >= 0 {
		segment = segment[:dot]
	}

	id, err := uuid.Parse(segment)
	require.NoError(t, err, "key %q has no UUID segment", key)
	return id
}

func TestGenerateFileKey(t *testing.T) {
	s := NewMemoryStorage(testConfig())

	t.Run("preserves extension", func(t *testing.T) {
		key := s.GenerateFileKey("invoice.pdf", "")
		require.True(t, strings.HasPrefix(key, "uploads/"))
		require.True(t, strings.HasSuffix(key, ".pdf"))
		keyUUID(t, key)
	})

	t.Run("last dot segment wins", func(t *testing.T) {
		key := s.GenerateFileKey("archive.tar.gz", "")
		require.True(t, strings.HasSuffix(key, ".gz"))
		require.False(t, strings.HasSuffix(key, ".tar.gz"))
	})

	t.Run("no extension", func(t *testing.T) {
		key := s.GenerateFileKey("README", "")
		require.True(t, strings.HasPrefix(key, "uploads/"))
		require.NotContains(t, key[len("uploads/"):], ".")
		keyUUID(t, key)
	})

	t.Run("trailing dot yields no extension", func(t *testing.T) {
		key := s.GenerateFileKey("broken.", "")
		require.False(t, strings.HasSuffix(key, "."))
		keyUUID(t, key)
	})

	t.Run("explicit prefix overrides base", func(t *testing.T) {
		key := s.GenerateFileKey("logo.png", "certificates")
		require.True(t, strings.HasPrefix(key, "certificates/"))
		require.True(t, strings.HasSuffix(key, ".png"))
	})

	t.Run("keys never repeat", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			key := s.GenerateFileKey("photo.jpg", "")
			require.False(t, seen[key], "key %q generated twice", key)
			seen[key] = true
		}
	})
}

func TestValidateFile(t *testing.T) {
	cfg := testConfig()
	cfg.MaxFileSize = 20 << 20
	s := NewMemoryStorage(cfg)

	t.Run("accepts file at limit", func(t *testing.T) {
		require.NoError(t, s.ValidateFile("a.png", "image/png", 20<<20))
	})

	t.Run("rejects oversized file", func(t *testing.T) {
		err := s.ValidateFile("a.png", "image/png", 21<<20)
		require.ErrorIs(t, err, ErrFileTooLarge)
	})

	t.Run("rejects missing content type", func(t *testing.T) {
		err := s.ValidateFile("a.png", "", 10)
		require.ErrorIs(t, err, ErrMissingContentType)
	})
}
