package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/luma-identity/internal/auth"
	"github.com/prn-tf/luma-identity/internal/domain"
	"github.com/prn-tf/luma-identity/internal/metrics"
	"github.com/prn-tf/luma-identity/internal/pkg/crypto"
	"github.com/prn-tf/luma-identity/internal/repository"
	"github.com/prn-tf/luma-identity/internal/sanitize"
)

// maxPasswordBytes is the longest password bcrypt accepts without truncation.
const maxPasswordBytes = 72

// AuthService handles login, logout, registration and actor resolution.
type AuthService struct {
	users    repository.UserRepository
	hasher   crypto.PasswordHasher
	sessions *auth.SessionManager
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	now      func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	users repository.UserRepository,
	hasher crypto.PasswordHasher,
	sessions *auth.SessionManager,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		hasher:   hasher,
		sessions: sessions,
		metrics:  m,
		logger:   logger.With().Str("service", "auth").Logger(),
		now:      time.Now,
	}
}

// LoginInput contains the credentials presented at login.
type LoginInput struct {
	Username string
	Password string
	IP       string
}

// Login verifies credentials and records the visit.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*domain.Subject, error) {
	if input.Username == "" || input.Password == "" {
		s.metrics.Login("invalid")
		return nil, invalidInput(errors.New("username and password are required"))
	}

	user, err := s.verifyCredentials(ctx, input.Username, input.Password)
	if err != nil {
		if errors.Is(err, ErrAuthFailed) {
			s.metrics.Login("failed")
		} else {
			s.metrics.Login("error")
		}
		return nil, err
	}

	if err := s.users.TouchLogin(ctx, user.UID, input.IP, s.now().UTC()); err != nil {
		s.logger.Warn().Err(err).Int64("uid", user.UID).Msg("failed to record login")
	}

	s.metrics.Login("success")
	s.logger.Info().
		Int64("uid", user.UID).
		Str("username", user.Username).
		Msg("user logged in")

	return &domain.Subject{UID: user.UID, Username: user.Username}, nil
}

// StartSession issues a session token for an authenticated subject.
func (s *AuthService) StartSession(ctx context.Context, subject *domain.Subject) (*auth.Session, error) {
	session, err := s.sessions.Issue(subject.UID, subject.Username)
	if err != nil {
		s.logger.Error().Err(err).Int64("uid", subject.UID).Msg("failed to issue session")
		return nil, internalError(err)
	}
	return session, nil
}

// Logout revokes the session for the rest of its lifetime.
// A request without a session has nothing to revoke.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil {
		return nil
	}
	if err := s.sessions.Revoke(ctx, claims); err != nil {
		s.logger.Error().Err(err).Int64("uid", claims.UserID).Msg("failed to revoke session")
		return internalError(err)
	}

	s.logger.Info().Int64("uid", claims.UserID).Str("session", claims.ID).Msg("user logged out")
	return nil
}

// RegisterInput contains the data needed to create an account.
type RegisterInput struct {
	Username string
	Password string
	Email    string
	IP       string
}

// Register creates a new account in the default group and returns its uid.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (int64, error) {
	uid, err := s.register(ctx, input)
	switch {
	case err == nil:
		s.metrics.Registration("success")
	case errors.Is(err, ErrConflict):
		s.metrics.Registration("conflict")
	case errors.Is(err, ErrInvalidInput):
		s.metrics.Registration("invalid")
	default:
		s.metrics.Registration("error")
	}
	return uid, err
}

func (s *AuthService) register(ctx context.Context, input RegisterInput) (int64, error) {
	if input.Username == "" || input.Password == "" || input.Email == "" {
		return 0, invalidInput(errors.New("username, password and email are required"))
	}

	username, err := sanitize.Username(input.Username)
	if err != nil {
		return 0, invalidInput(err)
	}
	email, err := sanitize.Email(input.Email)
	if err != nil {
		return 0, invalidInput(err)
	}
	if err := validatePassword(input.Password); err != nil {
		return 0, err
	}

	exists, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		s.logger.Error().Err(err).Str("username", username).Msg("failed to check username existence")
		return 0, internalError(err)
	}
	if exists {
		return 0, conflict(domain.FieldUsername)
	}

	exists, err = s.users.ExistsByEmail(ctx, email)
	if err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("failed to check email existence")
		return 0, internalError(err)
	}
	if exists {
		return 0, conflict(domain.FieldEmail)
	}

	digest, err := s.hasher.Hash(ctx, input.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash password")
		return 0, internalError(err)
	}

	user := domain.NewUser(username, email, digest, input.IP)
	user.JoinDate = s.now().UTC()

	if err := s.users.Create(ctx, user); err != nil {
		// Lost a race with a concurrent registration.
		var dup *repository.ConflictError
		if errors.As(err, &dup) {
			return 0, conflict(dup.Field)
		}
		s.logger.Error().Err(err).Str("username", username).Msg("failed to create user")
		return 0, internalError(err)
	}

	s.logger.Info().
		Int64("uid", user.UID).
		Str("username", user.Username).
		Msg("user registered")

	return user.UID, nil
}

// ResolveActor loads the current capabilities of uid.
// It implements auth.ActorResolver.
func (s *AuthService) ResolveActor(ctx context.Context, uid int64) (*domain.Actor, error) {
	user, err := s.users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error().Err(err).Int64("uid", uid).Msg("failed to resolve actor")
		return nil, internalError(err)
	}
	return user.Actor(), nil
}

// verifyCredentials checks username and password without side effects.
// An unknown username still pays for a full hash comparison.
func (s *AuthService) verifyCredentials(ctx context.Context, username, password string) (*domain.User, error) {
	var (
		digest string
		user   *domain.User
		err    error
	)
	// A name that cannot be sanitized was never stored; it fails like an
	// unknown user.
	if name, serr := sanitize.Text(username, 32); serr == nil {
		username = name
		user, err = s.users.GetByUsername(ctx, username)
	} else {
		err = repository.ErrNotFound
	}
	switch {
	case err == nil:
		digest = user.PasswordHash
	case errors.Is(err, repository.ErrNotFound):
		user = nil
	default:
		s.logger.Error().Err(err).Str("username", username).Msg("failed to load user")
		return nil, internalError(err)
	}

	ok, err := s.hasher.Verify(ctx, password, digest)
	if err != nil {
		return nil, internalError(err)
	}
	if !ok || user == nil {
		s.logger.Debug().Str("username", username).Msg("invalid credentials")
		return nil, ErrAuthFailed
	}
	return user, nil
}

func validatePassword(password string) error {
	if password == "" {
		return invalidInput(errors.New("password is required"))
	}
	if len(password) > maxPasswordBytes {
		return invalidInput(crypto.ErrPasswordTooLong)
	}
	return nil
}

var _ auth.ActorResolver = (*AuthService)(nil)
