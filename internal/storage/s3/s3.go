// Package s3 stores avatars in an S3-compatible object store.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/prn-tf/luma-identity/internal/config"
	"github.com/prn-tf/luma-identity/internal/pkg/crypto"
	"github.com/prn-tf/luma-identity/internal/storage"
)

// ObjectAPI is the subset of the S3 client used by Backend.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Backend implements storage.Backend on an S3 bucket.
type Backend struct {
	client  ObjectAPI
	bucket  string
	paths   storage.PathConfig
	maxSize int64
	logger  zerolog.Logger
}

// NewClient builds an S3 client from configuration. Static credentials are
// used when provided, otherwise the default AWS credential chain applies.
func NewClient(ctx context.Context, cfg config.S3StorageConfig) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// New creates an S3 backend. maxSize bounds how much of an upload is buffered.
func New(client ObjectAPI, cfg config.S3StorageConfig, maxSize int64, logger zerolog.Logger) *Backend {
	return &Backend{
		client:  client,
		bucket:  cfg.Bucket,
		paths:   storage.DefaultPathConfig(cfg.Prefix),
		maxSize: maxSize,
		logger:  logger.With().Str("component", "storage").Str("backend", "s3").Logger(),
	}
}

// Store implements storage.Backend. The upload is buffered so the key can be
// derived from the digest before the object is written.
func (b *Backend) Store(ctx context.Context, reader io.Reader, size int64) (string, error) {
	limit := b.maxSize
	if size >= 0 && (limit <= 0 || size < limit) {
		limit = size
	}
	var src io.Reader = reader
	if limit > 0 {
		src = io.LimitReader(reader, limit+1)
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return "", fmt.Errorf("failed to read content: %w", err)
	}
	if size >= 0 && int64(len(data)) != size {
		return "", fmt.Errorf("%w: expected %d bytes, got %d", storage.ErrSizeMismatch, size, len(data))
	}
	if b.maxSize > 0 && int64(len(data)) > b.maxSize {
		return "", fmt.Errorf("%w: content exceeds %d bytes", storage.ErrSizeMismatch, b.maxSize)
	}

	hash := crypto.ComputeSHA256(data)
	exists, err := b.Exists(ctx, hash)
	if err != nil {
		return "", err
	}
	if exists {
		return hash, nil
	}

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(b.GetPath(hash)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(http.DetectContentType(data)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object: %w", err)
	}

	b.logger.Debug().Str("hash", hash).Int("size", len(data)).Msg("content stored")
	return hash, nil
}

// Retrieve implements storage.Backend.
func (b *Backend) Retrieve(ctx context.Context, contentHash string) (io.ReadCloser, error) {
	if !crypto.ValidateSHA256(contentHash) {
		return nil, storage.ErrInvalidHash
	}
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.GetPath(contentHash)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, storage.ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return out.Body, nil
}

// Delete implements storage.Backend.
func (b *Backend) Delete(ctx context.Context, contentHash string) error {
	exists, err := b.Exists(ctx, contentHash)
	if err != nil {
		return err
	}
	if !exists {
		return storage.ErrBlobNotFound
	}
	_, err = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.GetPath(contentHash)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// Exists implements storage.Backend.
func (b *Backend) Exists(ctx context.Context, contentHash string) (bool, error) {
	if !crypto.ValidateSHA256(contentHash) {
		return false, storage.ErrInvalidHash
	}
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.GetPath(contentHash)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to head object: %w", err)
	}
	return true, nil
}

// GetPath implements storage.Backend.
func (b *Backend) GetPath(contentHash string) string {
	return storage.ComputeKey(b.paths, contentHash)
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noKey) || errors.As(err, &notFound)
}

// Ensure Backend implements storage.Backend.
var _ storage.Backend = (*Backend)(nil)
