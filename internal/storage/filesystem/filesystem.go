// Package filesystem stores avatars on the local disk.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/prn-tf/luma-identity/internal/pkg/crypto"
	"github.com/prn-tf/luma-identity/internal/storage"
)

// Backend implements storage.Backend on a directory tree.
type Backend struct {
	paths  storage.PathConfig
	tmpDir string
	logger zerolog.Logger
}

// New creates a filesystem backend rooted at dataDir.
func New(dataDir string, logger zerolog.Logger) (*Backend, error) {
	b := &Backend{
		paths:  storage.DefaultPathConfig(dataDir),
		tmpDir: dataDir + string(os.PathSeparator) + ".tmp",
		logger: logger.With().Str("component", "storage").Str("backend", "filesystem").Logger(),
	}
	if err := os.MkdirAll(b.tmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return b, nil
}

// Store implements storage.Backend.
func (b *Backend) Store(ctx context.Context, reader io.Reader, size int64) (string, error) {
	tmp, err := os.CreateTemp(b.tmpDir, "upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	hr := crypto.NewHashReader(reader)
	_, copyErr := io.Copy(tmp, hr)
	closeErr := tmp.Close()
	if copyErr != nil {
		return "", fmt.Errorf("failed to write content: %w", copyErr)
	}
	if closeErr != nil {
		return "", fmt.Errorf("failed to write content: %w", closeErr)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if size >= 0 && hr.Size() != size {
		return "", fmt.Errorf("%w: expected %d bytes, got %d", storage.ErrSizeMismatch, size, hr.Size())
	}

	hash := hr.SHA256()
	dest := storage.ComputePath(b.paths, hash)
	if _, err := os.Stat(dest); err == nil {
		return hash, nil
	}

	if err := os.MkdirAll(storage.GetShardPath(b.paths, hash), 0o755); err != nil {
		return "", fmt.Errorf("failed to create shard directory: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return "", fmt.Errorf("failed to move content into place: %w", err)
	}

	b.logger.Debug().Str("hash", hash).Int64("size", hr.Size()).Msg("content stored")
	return hash, nil
}

// Retrieve implements storage.Backend.
func (b *Backend) Retrieve(ctx context.Context, contentHash string) (io.ReadCloser, error) {
	if !crypto.ValidateSHA256(contentHash) {
		return nil, storage.ErrInvalidHash
	}
	f, err := os.Open(storage.ComputePath(b.paths, contentHash))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, storage.ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to open content: %w", err)
	}
	return f, nil
}

// Delete implements storage.Backend.
func (b *Backend) Delete(ctx context.Context, contentHash string) error {
	if !crypto.ValidateSHA256(contentHash) {
		return storage.ErrInvalidHash
	}
	if err := os.Remove(storage.ComputePath(b.paths, contentHash)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return storage.ErrBlobNotFound
		}
		return fmt.Errorf("failed to delete content: %w", err)
	}
	return nil
}

// Exists implements storage.Backend.
func (b *Backend) Exists(ctx context.Context, contentHash string) (bool, error) {
	if !crypto.ValidateSHA256(contentHash) {
		return false, storage.ErrInvalidHash
	}
	_, err := os.Stat(storage.ComputePath(b.paths, contentHash))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat content: %w", err)
}

// GetPath implements storage.Backend.
func (b *Backend) GetPath(contentHash string) string {
	return storage.ComputePath(b.paths, contentHash)
}

// Ensure Backend implements storage.Backend.
var _ storage.Backend = (*Backend)(nil)
