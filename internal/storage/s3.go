package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/ivolkova/luthier/internal/cache"
)

// hashCacheSize bounds the dedup cache. Oldest insert is evicted first.
const hashCacheSize = 1000

// s3API is the slice of the S3 client the backend calls.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type s3Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignPostObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignPostOptions)) (*s3.PresignedPostRequest, error)
}

// S3Storage stores objects in an S3 or S3-compatible bucket. The SDK client
// is built lazily on first use; uploads are deduplicated per process through
// a bounded SHA-256 cache.
type S3Storage struct {
	cfg Config

	mu        sync.Mutex
	client    s3API
	presigner s3Presigner

	hashCache *cache.FIFO[string, string]
}

var (
	_ Storage       = (*S3Storage)(nil)
	_ PresignGetter = (*S3Storage)(nil)
)

// NewS3Storage never touches the network; the client is constructed on the
// first operation that needs it.
func NewS3Storage(cfg Config) *S3Storage {
	return &S3Storage{
		cfg:       cfg,
		hashCache: cache.NewFIFO[string, string](hashCacheSize),
	}
}

func (s *S3Storage) ValidateFile(filename, contentType string, size int64) error {
	return validateFile(contentType, size, s.cfg.MaxFileSize)
}

func (s *S3Storage) GenerateFileKey(originalFilename, prefix string) string {
	return generateFileKey(originalFilename, prefix, s.cfg.BasePrefix)
}

// SaveFile validates, deduplicates by content hash, then uploads. A cache hit
// returns the previously stored key without touching the network; the dedup
// is process-local only, a cold process re-uploads identical content.
func (s *S3Storage) SaveFile(ctx context.Context, content []byte, key, contentType string) (string, error) {
	if err := s.ValidateFile(key, contentType, int64(len(content))); err != nil {
		return "", err
	}

	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])

	if storedKey, ok := s.hashCache.Get(hash); ok {
		slog.Debug("duplicate content, skipping upload", "key", storedKey, "hash", hash)
		return storedKey, nil
	}

	client, _, err := s.ensureClient(ctx)
	if err != nil {
		return "", fmt.Errorf("S3 upload failed: %w", err)
	}

	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.S3Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
		ContentType:   aws.String(contentType),
		Metadata: map[string]string{
			"file-hash":         hash,
			"original-filename": path.Base(key),
			"upload-timestamp":  time.Now().UTC().Format(time.RFC3339),
		},
	}
	s.applySSE(in)

	if _, err := client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("S3 upload failed: %w", err)
	}
	s.hashCache.Put(hash, key)

	slog.Info("file uploaded to S3", "key", key, "bucket", s.cfg.S3Bucket, "size", len(content))
	return key, nil
}

func (s *S3Storage) DownloadFile(ctx context.Context, key string) ([]byte, error) {
	client, _, err := s.ensureClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("S3 download failed: %w", err)
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, notFound(key)
		}
		return nil, fmt.Errorf("S3 download failed: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("S3 download failed: %w", err)
	}
	return data, nil
}

// DeleteFile reports (false, nil) for a missing key; a successful delete also
// purges matching hash-cache entries so the key cannot be handed out again.
func (s *S3Storage) DeleteFile(ctx context.Context, key string) (bool, error) {
	client, _, err := s.ensureClient(ctx)
	if err != nil {
		return false, fmt.Errorf("S3 delete failed: %w", err)
	}

	_, err = client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.cfg.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("S3 delete failed: %w", err)
	}

	_, err = client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return false, fmt.Errorf("S3 delete failed: %w", err)
	}
	s.hashCache.RemoveValue(key)

	slog.Info("file deleted from S3", "key", key, "bucket", s.cfg.S3Bucket)
	return true, nil
}

// FileExists fails closed: only a recognized not-found answer maps to
// (false, nil), every other failure is returned.
func (s *S3Storage) FileExists(ctx context.Context, key string) (bool, error) {
	client, _, err := s.ensureClient(ctx)
	if err != nil {
		return false, fmt.Errorf("S3 existence check failed: %w", err)
	}

	_, err = client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.cfg.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("S3 existence check failed: %w", err)
	}
	return true, nil
}

func (s *S3Storage) FileURL(ctx context.Context, key string, expiresIn time.Duration) (string, error) {
	return s.PresignGet(ctx, key, expiresIn)
}

func (s *S3Storage) PresignGet(ctx context.Context, key string, expires time.Duration) (string, error) {
	_, presigner, err := s.ensureClient(ctx)
	if err != nil {
		return "", fmt.Errorf("S3 presign failed: %w", err)
	}

	req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.S3Bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = presignExpiry(expires)
	})
	if err != nil {
		return "", fmt.Errorf("S3 presign failed: %w", err)
	}
	return req.URL, nil
}

func (s *S3Storage) PresignPut(ctx context.Context, key, contentType string, expires time.Duration) (string, error) {
	_, presigner, err := s.ensureClient(ctx)
	if err != nil {
		return "", fmt.Errorf("S3 presign failed: %w", err)
	}

	req, err := presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.S3Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = presignExpiry(expires)
	})
	if err != nil {
		return "", fmt.Errorf("S3 presign failed: %w", err)
	}
	return req.URL, nil
}

// PresignPost bounds the client-side upload with a content-length-range
// condition derived from maxMB (the configured maximum when maxMB is zero)
// and pins the exact content type.
func (s *S3Storage) PresignPost(ctx context.Context, key, contentType string, maxMB int64, expires time.Duration) (*PresignedPost, error) {
	_, presigner, err := s.ensureClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("S3 presign failed: %w", err)
	}

	maxBytes := s.cfg.MaxFileSize
	if maxMB > 0 {
		maxBytes = maxMB << 20
	}

	req, err := presigner.PresignPostObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.S3Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignPostOptions) {
		opts.Expires = presignExpiry(expires)
		opts.Conditions = []interface{}{
			[]interface{}{"content-length-range", int64(1), maxBytes},
			[]interface{}{"eq", "$Content-Type", contentType},
		}
	})
	if err != nil {
		return nil, fmt.Errorf("S3 presign failed: %w", err)
	}

	fields := make(map[string]string, len(req.Values)+1)
	for k, v := range req.Values {
		fields[k] = v
	}
	fields["Content-Type"] = contentType

	return &PresignedPost{URL: req.URL, Fields: fields}, nil
}

// ensureClient builds the SDK client and presigner once, on first use. Tests
// preset the fields to run against fakes.
func (s *S3Storage) ensureClient(ctx context.Context) (s3API, s3Presigner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, s.presigner, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(s.cfg.S3Region),
	}
	if s.cfg.AWSAccessKey != "" && s.cfg.AWSSecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.cfg.AWSAccessKey, s.cfg.AWSSecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s.cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(s.cfg.EndpointURL)
		}
		o.UsePathStyle = s.usePathStyle()
	})
	s.client = client
	s.presigner = s3.NewPresignClient(client)

	slog.Info("initialized S3 client",
		"bucket", s.cfg.S3Bucket,
		"region", s.cfg.S3Region,
		"endpoint", s.cfg.EndpointURL,
		"path_style", s.usePathStyle())

	return s.client, s.presigner, nil
}

// usePathStyle follows S3_ADDRESSING_STYLE when set; otherwise custom
// endpoints get path-style addressing (MinIO, localstack) and plain AWS gets
// virtual-hosted-style.
func (s *S3Storage) usePathStyle() bool {
	if s.cfg.AddressingStyle != "" {
		return s.cfg.AddressingStyle == "path-style"
	}
	return s.cfg.EndpointURL != ""
}

// applySSE sets server-side encryption on an upload. A configured KMS key
// selects aws:kms; otherwise plain AWS defaults to AES256 and custom
// endpoints send no SSE headers.
func (s *S3Storage) applySSE(in *s3.PutObjectInput) {
	switch {
	case s.cfg.KMSKeyID != "":
		in.ServerSideEncryption = types.ServerSideEncryptionAwsKms
		in.SSEKMSKeyId = aws.String(s.cfg.KMSKeyID)
	case s.cfg.EndpointURL == "":
		in.ServerSideEncryption = types.ServerSideEncryptionAes256
	}
}

func presignExpiry(expires time.Duration) time.Duration {
	if expires <= 0 {
		return DefaultPresignExpiry
	}
	return expires
}

// isNotFound matches the SDK's assorted missing-object shapes.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var headNotFound *types.NotFound
	if errors.As(err, &headNotFound) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "404":
			return true
		}
	}
	return false
}
