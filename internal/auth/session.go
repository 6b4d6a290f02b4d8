package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/prn-tf/luma-identity/internal/repository"
)

// revokedMarker is stored under the revocation key of an ended session.
var revokedMarker = []byte("1")

// SessionManager issues HS256 session tokens and tracks revoked token ids in a cache.
type SessionManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	cache  repository.Cache
	now    func() time.Time
}

// SessionConfig configures a SessionManager.
type SessionConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// NewSessionManager creates a new session manager.
func NewSessionManager(cfg SessionConfig, cache repository.Cache) *SessionManager {
	return &SessionManager{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
		cache:  cache,
		now:    time.Now,
	}
}

// TTL returns the lifetime of issued sessions.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a new session token for the subject.
func (m *SessionManager) Issue(userID int64, username string) (*Session, error) {
	now := m.now()
	id := uuid.NewString()
	expiresAt := now.Add(m.ttl)

	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	return &Session{
		Token:     token,
		ID:        id,
		UserID:    userID,
		Username:  username,
		ExpiresAt: expiresAt,
	}, nil
}

// Parse validates a session token and rejects revoked sessions.
func (m *SessionManager) Parse(ctx context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrNoSession
	}

	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ID == "" || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}

	revoked, err := m.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrSessionRevoked
	}

	return claims, nil
}

// Revoke ends the session for the rest of its lifetime.
func (m *SessionManager) Revoke(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ID == "" {
		return ErrNoSession
	}

	remaining := time.Second
	if claims.ExpiresAt != nil {
		remaining = claims.ExpiresAt.Sub(m.now())
	}
	if remaining <= 0 {
		// Already expired; nothing will accept it again.
		return nil
	}

	if err := m.cache.Set(ctx, repository.CacheKeys.RevokedSession(claims.ID), revokedMarker, remaining); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// IsRevoked reports whether the token id has been revoked.
func (m *SessionManager) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	exists, err := m.cache.Exists(ctx, repository.CacheKeys.RevokedSession(tokenID))
	if err != nil {
		return false, fmt.Errorf("failed to check session revocation: %w", err)
	}
	return exists, nil
}
