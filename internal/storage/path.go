package storage

import (
	"path"
	"path/filepath"
	"strings"
)

// PathConfig holds configuration for storage path generation.
type PathConfig struct {
	// BasePath is the root directory (filesystem) or key prefix (object store).
	BasePath string

	// ShardLevels is the number of directory levels for sharding.
	// Default: 2 (e.g., /ab/cd/abcdef...)
	ShardLevels int

	// ShardWidth is the number of characters per shard level.
	// Default: 2 (e.g., ab, cd)
	ShardWidth int
}

// DefaultPathConfig returns the default path configuration.
func DefaultPathConfig(basePath string) PathConfig {
	return PathConfig{
		BasePath:    basePath,
		ShardLevels: 2,
		ShardWidth:  2,
	}
}

// ComputePath generates the filesystem path for a content hash.
// Uses directory sharding to distribute files across directories.
//
// Example with default config (2 levels, 2 chars each):
//
//	hash: "abcdef1234567890..."
//	basePath: "/data"
//	result: "/data/ab/cd/abcdef1234567890..."
func ComputePath(config PathConfig, contentHash string) string {
	return filepath.Join(append([]string{config.BasePath}, shardComponents(config, contentHash)...)...)
}

// ComputeKey generates the object-store key for a content hash. Keys always
// use forward slashes.
//
//	hash: "abcdef..."
//	basePath: "avatars/"
//	result: "avatars/ab/cd/abcdef..."
func ComputeKey(config PathConfig, contentHash string) string {
	return path.Join(append([]string{strings.TrimSuffix(config.BasePath, "/")}, shardComponents(config, contentHash)...)...)
}

// GetShardPath returns the directory path for a hash (without the filename).
//
// Example:
//
//	hash: "abcdef..."
//	basePath: "/data"
//	result: "/data/ab/cd"
func GetShardPath(config PathConfig, contentHash string) string {
	return filepath.Dir(ComputePath(config, contentHash))
}

// shardComponents returns the shard directories followed by the full hash.
func shardComponents(config PathConfig, contentHash string) []string {
	minLength := config.ShardLevels * config.ShardWidth
	if len(contentHash) < minLength {
		return []string{contentHash}
	}

	components := make([]string, 0, config.ShardLevels+1)
	offset := 0
	for i := 0; i < config.ShardLevels; i++ {
		components = append(components, contentHash[offset:offset+config.ShardWidth])
		offset += config.ShardWidth
	}
	return append(components, contentHash)
}
