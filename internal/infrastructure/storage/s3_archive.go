// Package storage keeps submitted price documents in S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	catalogapp "github.com/procurement/backend/internal/application/catalog"
	"github.com/procurement/backend/internal/domain/shared"
	infraconfig "github.com/procurement/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

var _ catalogapp.DocumentArchive = (*S3DocumentArchive)(nil)

// S3DocumentArchive stores raw price documents by key. Any S3-compatible
// backend works (AWS S3, MinIO, RustFS).
type S3DocumentArchive struct {
	client  *s3.Client
	bucket  string
	prefix  string
	maxSize int64
	logger  *zap.Logger
}

// S3DocumentArchiveOption configures S3DocumentArchive
type S3DocumentArchiveOption func(*S3DocumentArchive)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) S3DocumentArchiveOption {
	return func(s *S3DocumentArchive) {
		s.logger = logger
	}
}

// WithMaxObjectSize refuses to read back objects larger than n bytes
func WithMaxObjectSize(n int64) S3DocumentArchiveOption {
	return func(s *S3DocumentArchive) {
		s.maxSize = n
	}
}

// NewS3DocumentArchive creates an archive from configuration
func NewS3DocumentArchive(ctx context.Context, cfg infraconfig.StorageConfig, opts ...S3DocumentArchiveOption) (*S3DocumentArchive, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("storage credentials are required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "localhost:9000"
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if cfg.UseSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("invalid storage endpoint: %w", err)
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		o.BaseEndpoint = aws.String(endpoint)
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	archive := &S3DocumentArchive{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(archive)
	}
	return archive, nil
}

// EnsureBucket creates the bucket when it is missing
func (s *S3DocumentArchive) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}

	s.logger.Info("Creating document bucket", zap.String("bucket", s.bucket))
	if _, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Put uploads a document
func (s *S3DocumentArchive) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return shared.NewValidationError("Document key is required")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(key)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return shared.NewStorageError("archive document", err)
	}

	s.logger.Debug("Document archived", zap.String("key", key), zap.Int("bytes", len(data)))
	return nil
}

// Get downloads a document. A missing key is NotFound and is not retried.
func (s *S3DocumentArchive) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		var notFound *types.NotFound
		if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
			return nil, shared.NewNotFoundError("document", key)
		}
		return nil, shared.NewStorageError("load document", err)
	}
	defer out.Body.Close()

	var body io.Reader = out.Body
	if s.maxSize > 0 {
		body = io.LimitReader(out.Body, s.maxSize+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, shared.NewStorageError("read document", err)
	}
	if s.maxSize > 0 && int64(len(data)) > s.maxSize {
		return nil, shared.NewValidationError("Archived document exceeds %d bytes", s.maxSize)
	}
	return data, nil
}

// Delete removes a document
func (s *S3DocumentArchive) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return shared.NewStorageError("delete document", err)
	}
	return nil
}

// Bucket returns the bucket name
func (s *S3DocumentArchive) Bucket() string {
	return s.bucket
}

func (s *S3DocumentArchive) objectKey(key string) string {
	key = strings.TrimLeft(key, "/")
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}
