package storage

import (
	"log/slog"
	"math"
	"os"
	"strconv"
)

// Type names a storage backend.
type Type string

const (
	TypeLocal Type = "local"
	TypeS3    Type = "s3"
)

// DefaultMaxFileSize applies when UPLOAD_MAX_FILE_SIZE_MB is unset, not a
// number, or not positive.
const DefaultMaxFileSize int64 = 10 << 20

const (
	defaultBasePrefix = "uploads"
	defaultLocalRoot  = "./uploads"
)

// Config is a snapshot of the storage environment.
type Config struct {
	Type            Type
	S3Bucket        string
	S3Region        string
	AWSAccessKey    string
	AWSSecretKey    string
	EndpointURL     string
	AddressingStyle string
	KMSKeyID        string
	BasePrefix      string
	LocalRoot       string
	MaxFileSize     int64
}

// LoadConfig reads the process environment on every call. Callers that need
// a stable view keep the returned value.
func LoadConfig() Config {
	return Config{
		Type:            Type(getenv("STORAGE_TYPE", string(TypeLocal))),
		S3Bucket:        os.Getenv("S3_BUCKET_NAME"),
		S3Region:        os.Getenv("S3_REGION"),
		AWSAccessKey:    os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretKey:    os.Getenv("AWS_SECRET_ACCESS_KEY"),
		EndpointURL:     os.Getenv("AWS_ENDPOINT_URL"),
		AddressingStyle: os.Getenv("S3_ADDRESSING_STYLE"),
		KMSKeyID:        os.Getenv("KMS_KEY_ID"),
		BasePrefix:      getenv("STORAGE_BASE_PREFIX", defaultBasePrefix),
		LocalRoot:       getenv("STORAGE_LOCAL_ROOT", defaultLocalRoot),
		MaxFileSize:     maxFileSizeFromEnv(),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func maxFileSizeFromEnv() int64 {
	raw := os.Getenv("UPLOAD_MAX_FILE_SIZE_MB")
	if raw == "" {
		return DefaultMaxFileSize
	}

	mb, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(mb) || math.IsInf(mb, 0) || mb <= 0 {
		slog.Warn("invalid UPLOAD_MAX_FILE_SIZE_MB, using default",
			"value", raw,
			"default_bytes", DefaultMaxFileSize)
		return DefaultMaxFileSize
	}

	return int64(mb * (1 << 20))
}
