package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage writes objects under a root directory, creating subdirectories
// as keys require. Reads surface the underlying OS error, so a missing key is
// reachable via errors.Is(err, fs.ErrNotExist). Concurrent saves of the same
// key are not coordinated; last write wins.
type LocalStorage struct {
	cfg  Config
	root string
}

var _ Storage = (*LocalStorage)(nil)

func NewLocalStorage(cfg Config) (*LocalStorage, error) {
	root := cfg.LocalRoot
	if root == "" {
		root = defaultLocalRoot
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{cfg: cfg, root: root}, nil
}

func (s *LocalStorage) ValidateFile(filename, contentType string, size int64) error {
	return validateFile(contentType, size, s.cfg.MaxFileSize)
}

func (s *LocalStorage) GenerateFileKey(originalFilename, prefix string) string {
	return generateFileKey(originalFilename, prefix, s.cfg.BasePrefix)
}

func (s *LocalStorage) SaveFile(ctx context.Context, content []byte, key, contentType string) (string, error) {
	if err := s.ValidateFile(key, contentType, int64(len(content))); err != nil {
		return "", err
	}

	path, err := s.resolvePath(key)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory structure: %w", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	slog.Info("file saved to local storage", "key", key, "path", path, "size", len(content))
	return key, nil
}

func (s *LocalStorage) DownloadFile(ctx context.Context, key string) ([]byte, error) {
	path, err := s.resolvePath(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

func (s *LocalStorage) DeleteFile(ctx context.Context, key string) (bool, error) {
	path, err := s.resolvePath(key)
	if err != nil {
		return false, err
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete file: %w", err)
	}

	slog.Info("file deleted from local storage", "key", key, "path", path)
	return true, nil
}

func (s *LocalStorage) FileExists(ctx context.Context, key string) (bool, error) {
	path, err := s.resolvePath(key)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat file: %w", err)
	}
	return true, nil
}

// FileURL returns the application-served path for the key; main mounts the
// /files/ handler in local storage mode.
func (s *LocalStorage) FileURL(ctx context.Context, key string, expiresIn time.Duration) (string, error) {
	return "/files/" + key, nil
}

func (s *LocalStorage) PresignPut(ctx context.Context, key, contentType string, expires time.Duration) (string, error) {
	return "", ErrPresignNotSupported
}

func (s *LocalStorage) PresignPost(ctx context.Context, key, contentType string, maxMB int64, expires time.Duration) (*PresignedPost, error) {
	return nil, ErrPresignNotSupported
}

// resolvePath maps a key onto the root directory and rejects keys that would
// escape it.
func (s *LocalStorage) resolvePath(key string) (string, error) {
	path := filepath.Clean(filepath.Join(s.root, filepath.FromSlash(key)))

	root := filepath.Clean(s.root)
	if path != root && !strings.HasPrefix(path, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid file key: %s", key)
	}
	return path, nil
}
