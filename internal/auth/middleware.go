package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/prn-tf/luma-identity/internal/domain"
)

// ActorResolver loads the current identity of a session subject.
type ActorResolver interface {
	// ResolveActor returns the actor for uid. It returns an error when the
	// user no longer exists.
	ResolveActor(ctx context.Context, uid int64) (*domain.Actor, error)
}

// Middleware resolves the session cookie into an actor on the request context.
// Requests without a valid session continue anonymously; each operation decides
// whether it needs an actor.
func Middleware(sessions *SessionManager, cookies *CookieHelper, resolver ActorResolver, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := cookies.Token(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			claims, err := sessions.Parse(ctx, token)
			if err != nil {
				level := zerolog.DebugLevel
				if !errors.Is(err, ErrInvalidToken) && !errors.Is(err, ErrTokenExpired) && !errors.Is(err, ErrSessionRevoked) {
					level = zerolog.WarnLevel
				}
				logger.WithLevel(level).Err(err).Str("path", r.URL.Path).Msg("session rejected")
				next.ServeHTTP(w, r)
				return
			}

			actor, err := resolver.ResolveActor(ctx, claims.UserID)
			if err != nil {
				logger.Debug().Err(err).Int64("uid", claims.UserID).Msg("session subject not resolved")
				next.ServeHTTP(w, r)
				return
			}

			ctx = WithClaims(ctx, claims)
			ctx = WithActor(ctx, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
