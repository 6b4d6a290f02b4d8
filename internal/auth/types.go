package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/prn-tf/luma-identity/internal/domain"
)

// =============================================================================
// Token Types
// =============================================================================

// Claims represents the session token claims.
// The registered ID claim (jti) names the session for revocation.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Session is an issued login session.
type Session struct {
	// Token is the signed JWT carried in the session cookie.
	Token string

	// ID is the token id (jti).
	ID string

	// UserID and Username identify the subject.
	UserID   int64
	Username string

	// ExpiresAt is when the token stops being accepted.
	ExpiresAt time.Time
}

// =============================================================================
// Context Types
// =============================================================================

type claimsContextKey struct{}

type actorContextKey struct{}

// WithClaims returns a context carrying the parsed session claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext returns the session claims, or nil for anonymous requests.
func ClaimsFromContext(ctx context.Context) *Claims {
	if claims, ok := ctx.Value(claimsContextKey{}).(*Claims); ok {
		return claims
	}
	return nil
}

// WithActor returns a context carrying the resolved actor.
func WithActor(ctx context.Context, actor *domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the requesting actor, or nil when not authenticated.
func ActorFromContext(ctx context.Context) *domain.Actor {
	if actor, ok := ctx.Value(actorContextKey{}).(*domain.Actor); ok {
		return actor
	}
	return nil
}
