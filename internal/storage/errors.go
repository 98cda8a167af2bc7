package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrFileNotFound reports a key with no stored object behind it.
	ErrFileNotFound = errors.New("file not found")

	// ErrPresignNotSupported is returned by backends that cannot mint
	// presigned URLs.
	ErrPresignNotSupported = errors.New("presigned URLs are not supported for this backend")

	// ErrMissingContentType and ErrFileTooLarge are validation failures,
	// raised before any bytes move.
	ErrMissingContentType = errors.New("content type is required")
	ErrFileTooLarge       = errors.New("file exceeds the maximum allowed size")
)

// notFound keeps the missing key in the message while staying matchable via
// errors.Is(err, ErrFileNotFound).
func notFound(key string) error {
	return fmt.Errorf("%w: %s", ErrFileNotFound, key)
}
