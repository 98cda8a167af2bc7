// Package storage provides a pluggable file-storage abstraction with S3,
// local-filesystem, and in-memory backends behind one capability interface.
// Backend selection is config-driven and owned by a Provider; the S3 backend
// adds content-hash upload deduplication and presigned URLs.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultPresignExpiry applies when a presign call passes a zero or negative
// expiry.
const DefaultPresignExpiry = 3600 * time.Second

// Storage is the capability interface every backend implements.
type Storage interface {
	// ValidateFile rejects an upload before any bytes move: an empty content
	// type and a size above the configured maximum are both errors.
	ValidateFile(filename, contentType string, size int64) error

	// GenerateFileKey builds "{prefix}/{uuid}.{ext}" from the original
	// filename. An empty prefix falls back to the configured base prefix;
	// the extension is the filename's last dot-segment, taken verbatim.
	GenerateFileKey(originalFilename, prefix string) string

	// SaveFile stores content under key and returns the key the content
	// ended up under (the S3 backend may return an earlier key for
	// duplicate content).
	SaveFile(ctx context.Context, content []byte, key, contentType string) (string, error)

	DownloadFile(ctx context.Context, key string) ([]byte, error)

	// DeleteFile reports whether the key existed. Deleting a missing key is
	// (false, nil), not an error.
	DeleteFile(ctx context.Context, key string) (bool, error)

	FileExists(ctx context.Context, key string) (bool, error)

	// FileURL returns an address for the stored object. expiresIn only
	// applies to backends that sign URLs.
	FileURL(ctx context.Context, key string, expiresIn time.Duration) (string, error)

	PresignPut(ctx context.Context, key, contentType string, expires time.Duration) (string, error)
	PresignPost(ctx context.Context, key, contentType string, maxMB int64, expires time.Duration) (*PresignedPost, error)
}

// PresignGetter is the optional download-presign capability. Only the S3
// backend implements it.
type PresignGetter interface {
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)
}

// PresignedPost describes a browser form POST straight to the backend.
type PresignedPost struct {
	URL    string            `json:"url"`
	Fields map[string]string `json:"fields"`
}

func generateFileKey(originalFilename, prefix, basePrefix string) string {
	if prefix == "" {
		prefix = basePrefix
	}

	id := uuid.New().String()
	if i := strings.LastIndex(originalFilename, "."); i >= 0 && i < len(originalFilename)-1 {
		return fmt.Sprintf("%s/%s.%s", prefix, id, originalFilename[i+1:])
	}
	return fmt.Sprintf("%s/%s", prefix, id)
}

func validateFile(contentType string, size, maxSize int64) error {
	if contentType == "" {
		return ErrMissingContentType
	}
	if size > maxSize {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, size, maxSize)
	}
	return nil
}
