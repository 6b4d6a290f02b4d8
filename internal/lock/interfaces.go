// Package lock provides distributed and local locking abstractions.
// For single-node deployments, memory-based locks are used.
// For distributed deployments, Redis-based locks can be used.
package lock

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prn-tf/luma-identity/internal/repository"
)

// Locker defines the interface for distributed/local locking.
// This abstraction allows switching between in-memory locks (single-node)
// and Redis-based locks (distributed) without changing business logic.
//
// Every acquisition yields an owner token; only the holder of the token may
// release or extend the lock, so a holder whose TTL lapsed cannot free a lock
// that has since been taken by someone else.
type Locker interface {
	// Acquire attempts to acquire a lock.
	// Returns the owner token and true if the lock was acquired, false if it's held by another process.
	// The lock will automatically expire after the specified TTL.
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error)

	// AcquireWithRetry attempts to acquire a lock with retries.
	// Will retry up to maxRetries times with retryDelay between attempts.
	AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (string, bool, error)

	// Release releases a lock held under token.
	// Returns true if the lock was released, false if it wasn't held by token.
	Release(ctx context.Context, key, token string) (bool, error)

	// Extend extends the TTL of a lock held under token.
	// Returns true if the lock was extended, false if it's not held by token.
	Extend(ctx context.Context, key, token string, ttl time.Duration) (bool, error)

	// IsHeld checks if the lock is currently held by anyone.
	IsHeld(ctx context.Context, key string) (bool, error)
}

// Lock is a convenience wrapper for a specific lock instance.
type Lock struct {
	locker Locker
	key    string
	token  string
	held   bool
}

// NewLock creates a new Lock instance.
func NewLock(locker Locker, key string) *Lock {
	return &Lock{
		locker: locker,
		key:    key,
	}
}

// Acquire attempts to acquire the lock.
func (l *Lock) Acquire(ctx context.Context, ttl time.Duration) (bool, error) {
	token, acquired, err := l.locker.Acquire(ctx, l.key, ttl)
	if err != nil {
		return false, err
	}
	l.token, l.held = token, acquired
	return acquired, nil
}

// AcquireWithRetry attempts to acquire the lock, retrying while it is contended.
func (l *Lock) AcquireWithRetry(ctx context.Context, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error) {
	token, acquired, err := l.locker.AcquireWithRetry(ctx, l.key, ttl, maxRetries, retryDelay)
	if err != nil {
		return false, err
	}
	l.token, l.held = token, acquired
	return acquired, nil
}

// Release releases the lock.
func (l *Lock) Release(ctx context.Context) error {
	if !l.held {
		return nil
	}
	_, err := l.locker.Release(ctx, l.key, l.token)
	l.held = false
	l.token = ""
	return err
}

// Extend extends the lock TTL.
func (l *Lock) Extend(ctx context.Context, ttl time.Duration) error {
	if !l.held {
		return repository.ErrLockNotOwned
	}
	extended, err := l.locker.Extend(ctx, l.key, l.token, ttl)
	if err != nil {
		return err
	}
	if !extended {
		l.held = false
		return repository.ErrLockNotOwned
	}
	return nil
}

// IsHeld returns whether the lock is held.
func (l *Lock) IsHeld() bool {
	return l.held
}

// Options controls how WithLock waits for a contended key.
type Options struct {
	TTL        time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultOptions returns the options used for short critical sections.
func DefaultOptions(ttl time.Duration) Options {
	return Options{TTL: ttl, MaxRetries: 50, RetryDelay: 20 * time.Millisecond}
}

// WithLock runs fn while holding key. It returns repository.ErrLockNotAcquired
// when the key stays contended for every retry.
func WithLock(ctx context.Context, locker Locker, key string, opts Options, fn func(ctx context.Context) error) error {
	l := NewLock(locker, key)
	acquired, err := l.AcquireWithRetry(ctx, opts.TTL, opts.MaxRetries, opts.RetryDelay)
	if err != nil {
		return fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !acquired {
		return fmt.Errorf("%w: %s", repository.ErrLockNotAcquired, key)
	}
	defer func() {
		// Release with a fresh context so a cancelled request still frees the key.
		_ = l.Release(context.WithoutCancel(ctx))
	}()
	return fn(ctx)
}

// =============================================================================
// Common Lock Keys
// =============================================================================

// Keys provides lock key generation for common scenarios.
var Keys = lockKeys{}

type lockKeys struct{}

// UserMutation returns the lock key serializing writes to one user row.
func (lockKeys) UserMutation(uid int64) string {
	return "lock:user:" + strconv.FormatInt(uid, 10)
}

