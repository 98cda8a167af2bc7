package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStorage keeps objects in process memory. The provider selects it
// under APP_ENV=test; nothing it stores survives the process.
type MemoryStorage struct {
	cfg Config

	mu      sync.RWMutex
	objects map[string][]byte
}

var _ Storage = (*MemoryStorage)(nil)

func NewMemoryStorage(cfg Config) *MemoryStorage {
	return &MemoryStorage{
		cfg:     cfg,
		objects: make(map[string][]byte),
	}
}

func (s *MemoryStorage) ValidateFile(filename, contentType string, size int64) error {
	return validateFile(contentType, size, s.cfg.MaxFileSize)
}

func (s *MemoryStorage) GenerateFileKey(originalFilename, prefix string) string {
	return generateFileKey(originalFilename, prefix, s.cfg.BasePrefix)
}

func (s *MemoryStorage) SaveFile(ctx context.Context, content []byte, key, contentType string) (string, error) {
	if err := s.ValidateFile(key, contentType, int64(len(content))); err != nil {
		return "", err
	}

	// Copy so later caller mutations cannot reach the stored bytes.
	buf := make([]byte, len(content))
	copy(buf, content)

	s.mu.Lock()
	s.objects[key] = buf
	s.mu.Unlock()

	return key, nil
}

func (s *MemoryStorage) DownloadFile(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	stored, ok := s.objects[key]
	s.mu.RUnlock()

	if !ok {
		return nil, notFound(key)
	}

	buf := make([]byte, len(stored))
	copy(buf, stored)
	return buf, nil
}

func (s *MemoryStorage) DeleteFile(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[key]; !ok {
		return false, nil
	}
	delete(s.objects, key)
	return true, nil
}

func (s *MemoryStorage) FileExists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	_, ok := s.objects[key]
	s.mu.RUnlock()
	return ok, nil
}

func (s *MemoryStorage) FileURL(ctx context.Context, key string, expiresIn time.Duration) (string, error) {
	return "memory://" + key, nil
}

func (s *MemoryStorage) PresignPut(ctx context.Context, key, contentType string, expires time.Duration) (string, error) {
	return "", ErrPresignNotSupported
}

func (s *MemoryStorage) PresignPost(ctx context.Context, key, contentType string, maxMB int64, expires time.Duration) (*PresignedPost, error) {
	return nil, ErrPresignNotSupported
}
