// Package storage defines interfaces for avatar storage backends.
// Avatars are content-addressed: a file is stored under the SHA-256 of its
// bytes, so re-uploading the same image reuses the stored copy.
package storage

import (
	"context"
	"errors"
	"io"
)

// Storage errors.
var (
	// ErrBlobNotFound indicates no content is stored under the hash.
	ErrBlobNotFound = errors.New("blob not found")

	// ErrInvalidHash indicates the value is not a SHA-256 hex digest.
	ErrInvalidHash = errors.New("invalid content hash")

	// ErrSizeMismatch indicates the stream length differs from the declared size.
	ErrSizeMismatch = errors.New("content size mismatch")
)

// Backend defines the interface for storage backends.
// Implementations include the local filesystem and S3-compatible object stores.
// The interface is designed to be stateless and support horizontal scaling.
type Backend interface {
	// Store stores content from a reader and returns the content hash (SHA-256).
	// The content is stored at a location derived from its hash.
	// If the content already exists (same hash), no new copy is created.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - reader: Source of the content to store
	//   - size: Expected size in bytes, or -1 when unknown
	//
	// Returns:
	//   - contentHash: SHA-256 hash of the content (64 hex characters)
	//   - err: Error if storage fails
	Store(ctx context.Context, reader io.Reader, size int64) (contentHash string, err error)

	// Retrieve retrieves content by its hash.
	// Returns a ReadCloser that must be closed after use.
	Retrieve(ctx context.Context, contentHash string) (io.ReadCloser, error)

	// Delete removes content by its hash.
	Delete(ctx context.Context, contentHash string) error

	// Exists checks if content with the given hash exists.
	Exists(ctx context.Context, contentHash string) (bool, error)

	// GetPath returns the storage location for a content hash.
	GetPath(contentHash string) string
}
