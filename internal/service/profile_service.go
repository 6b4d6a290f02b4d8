package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/luma-identity/internal/domain"
	"github.com/prn-tf/luma-identity/internal/lock"
	"github.com/prn-tf/luma-identity/internal/metrics"
	"github.com/prn-tf/luma-identity/internal/pkg/crypto"
	"github.com/prn-tf/luma-identity/internal/policy"
	"github.com/prn-tf/luma-identity/internal/repository"
	"github.com/prn-tf/luma-identity/internal/sanitize"
	"github.com/prn-tf/luma-identity/internal/storage"
)

// DefaultMaxAvatarSize bounds avatar uploads when no limit is configured.
const DefaultMaxAvatarSize = 1 << 20

var avatarTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// ProfileService applies permission-checked mutations to user records.
type ProfileService struct {
	users         repository.UserRepository
	hasher        crypto.PasswordHasher
	credentials   *AuthService
	locker        lock.Locker
	lockOpts      lock.Options
	avatars       storage.Backend
	maxAvatarSize int64
	metrics       *metrics.Metrics
	logger        zerolog.Logger
}

// ProfileOptions tunes a ProfileService.
type ProfileOptions struct {
	// LockTTL bounds how long a single mutation may hold the per-user lock.
	LockTTL time.Duration

	// MaxAvatarSize bounds avatar uploads in bytes.
	MaxAvatarSize int64
}

// NewProfileService creates a new ProfileService. credentials re-verifies
// passwords for the password and email workflows.
func NewProfileService(
	users repository.UserRepository,
	hasher crypto.PasswordHasher,
	credentials *AuthService,
	locker lock.Locker,
	avatars storage.Backend,
	m *metrics.Metrics,
	logger zerolog.Logger,
	opts ProfileOptions,
) *ProfileService {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Second
	}
	if opts.MaxAvatarSize <= 0 {
		opts.MaxAvatarSize = DefaultMaxAvatarSize
	}
	return &ProfileService{
		users:         users,
		hasher:        hasher,
		credentials:   credentials,
		locker:        locker,
		lockOpts:      lock.DefaultOptions(opts.LockTTL),
		avatars:       avatars,
		maxAvatarSize: opts.MaxAvatarSize,
		metrics:       m,
		logger:        logger.With().Str("service", "profile").Logger(),
	}
}

// FieldUpdate is one raw column assignment as received from a client.
type FieldUpdate struct {
	Field string
	Value string
}

// UpdateProfileInput contains a batch of field assignments for one user.
type UpdateProfileInput struct {
	Actor     *domain.Actor
	TargetUID int64
	Fields    []FieldUpdate

	// Override lifts the sensitive-field restriction. Only the password and
	// email workflows set it, after re-verifying the password.
	Override bool

	// passwordDigest marks a password value that is already hashed.
	passwordDigest bool
}

// UpdateProfile validates every assignment and writes the batch in a single
// statement. It returns the number of rows affected.
func (s *ProfileService) UpdateProfile(ctx context.Context, input UpdateProfileInput) (int64, error) {
	rows, err := s.updateProfile(ctx, input)
	switch {
	case err == nil:
		s.metrics.ProfileUpdate("success")
	case errors.Is(err, ErrFieldDenied), errors.Is(err, ErrPermissionDenied):
		s.metrics.ProfileUpdate("denied")
	case errors.Is(err, ErrConflict):
		s.metrics.ProfileUpdate("conflict")
	case errors.Is(err, ErrInternalError):
		s.metrics.ProfileUpdate("error")
	default:
		s.metrics.ProfileUpdate("rejected")
	}
	return rows, err
}

func (s *ProfileService) updateProfile(ctx context.Context, input UpdateProfileInput) (int64, error) {
	if err := authorize(input.Actor, input.TargetUID); err != nil {
		return 0, err
	}
	if len(input.Fields) == 0 {
		return 0, ErrNothingToUpdate
	}

	var rows int64
	entered := false
	key := lock.Keys.UserMutation(input.TargetUID)

	err := lock.WithLock(ctx, s.locker, key, s.lockOpts, func(ctx context.Context) error {
		entered = true

		values, err := s.evaluate(ctx, input)
		if err != nil {
			return err
		}

		n, err := s.users.UpdateFields(ctx, input.TargetUID, values)
		if err != nil {
			return s.translateWriteError(input.TargetUID, err)
		}
		if n == 0 {
			return ErrUserNotFound
		}
		rows = n
		return nil
	})
	if err != nil && !entered {
		s.logger.Error().Err(err).Int64("uid", input.TargetUID).Msg("failed to acquire user lock")
		return 0, internalError(err)
	}
	if err != nil {
		return 0, err
	}

	fields := make([]string, len(input.Fields))
	for i, f := range input.Fields {
		fields[i] = f.Field
	}
	s.logger.Info().
		Int64("uid", input.TargetUID).
		Int64("actor", input.Actor.UID).
		Strs("fields", fields).
		Msg("profile updated")

	return rows, nil
}

// authorize applies the checks that precede any field evaluation.
func authorize(actor *domain.Actor, targetUID int64) error {
	if actor == nil {
		return ErrNotAuthenticated
	}
	if !actor.Owns(targetUID) && !actor.StaffUser {
		return permissionDenied(domain.ReasonNotOwner)
	}
	if actor.IsBanned() {
		return permissionDenied(domain.ReasonBanned)
	}
	return nil
}

// evaluate checks every assignment against the field catalog and the policy,
// then normalizes the values. Nothing is normalized until the whole batch
// has passed the policy.
func (s *ProfileService) evaluate(ctx context.Context, input UpdateProfileInput) ([]domain.FieldValue, error) {
	specs := make([]domain.FieldSpec, len(input.Fields))
	seen := make(map[string]bool, len(input.Fields))

	for i, f := range input.Fields {
		spec, ok := domain.LookupField(f.Field)
		if !ok {
			return nil, invalidInput(fmt.Errorf("%w: %q", domain.ErrUnknownField, f.Field))
		}
		if seen[f.Field] {
			return nil, invalidInput(fmt.Errorf("duplicate field %q", f.Field))
		}
		seen[f.Field] = true

		decision := policy.Decide(input.Actor, f.Field, f.Value, input.Override)
		if !decision.Allowed {
			s.metrics.PolicyDenied(string(decision.Reason))
			s.logger.Debug().
				Int64("uid", input.TargetUID).
				Int64("actor", input.Actor.UID).
				Str("field", f.Field).
				Str("reason", string(decision.Reason)).
				Msg("field mutation denied")
			return nil, domain.NewFieldDeniedError(f.Field, decision.Reason)
		}
		specs[i] = spec
	}

	values := make([]domain.FieldValue, len(input.Fields))
	for i, f := range input.Fields {
		v, err := s.normalize(ctx, specs[i], f.Value, input.passwordDigest)
		if err != nil {
			return nil, err
		}
		values[i] = domain.FieldValue{Field: f.Field, Value: v}
	}
	return values, nil
}

func (s *ProfileService) normalize(ctx context.Context, spec domain.FieldSpec, value string, passwordDigest bool) (any, error) {
	switch spec.Kind {
	case domain.KindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, invalidInput(fmt.Errorf("%s: not a boolean", spec.Name))
		}
		return b, nil
	case domain.KindInt:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, invalidInput(fmt.Errorf("%s: not an integer", spec.Name))
		}
		return n, nil
	case domain.KindTime:
		return nil, invalidInput(fmt.Errorf("%s: not writable", spec.Name))
	}

	switch spec.Name {
	case domain.FieldUsername:
		v, err := sanitize.Username(value)
		if err != nil {
			return nil, invalidInput(err)
		}
		return v, nil
	case domain.FieldEmail:
		v, err := sanitize.Email(value)
		if err != nil {
			return nil, invalidInput(err)
		}
		return v, nil
	case domain.FieldPassword:
		if passwordDigest {
			return value, nil
		}
		if err := validatePassword(value); err != nil {
			return nil, err
		}
		digest, err := s.hasher.Hash(ctx, value)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to hash password")
			return nil, internalError(err)
		}
		return digest, nil
	}

	v, err := sanitize.Text(value, spec.MaxLen)
	if err != nil {
		return nil, invalidInput(fmt.Errorf("%s: %w", spec.Name, err))
	}
	return v, nil
}

func (s *ProfileService) translateWriteError(uid int64, err error) error {
	var dup *repository.ConflictError
	switch {
	case errors.As(err, &dup):
		return conflict(dup.Field)
	case errors.Is(err, repository.ErrInvalidReference):
		return invalidInput(err)
	case errors.Is(err, domain.ErrUnknownField):
		return invalidInput(err)
	}
	s.logger.Error().Err(err).Int64("uid", uid).Msg("failed to update user")
	return internalError(err)
}

// ChangePasswordInput contains the data for a password change.
type ChangePasswordInput struct {
	Actor       *domain.Actor
	OldPassword string
	NewPassword string
}

// ChangePassword replaces the actor's password after re-verifying the old one.
func (s *ProfileService) ChangePassword(ctx context.Context, input ChangePasswordInput) error {
	if input.OldPassword == input.NewPassword {
		return ErrSamePassword
	}
	if input.Actor == nil {
		return ErrNotAuthenticated
	}
	if err := s.reverify(ctx, input.Actor, input.OldPassword); err != nil {
		return err
	}
	if err := validatePassword(input.NewPassword); err != nil {
		return err
	}

	digest, err := s.hasher.Hash(ctx, input.NewPassword)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash password")
		return internalError(err)
	}

	_, err = s.UpdateProfile(ctx, UpdateProfileInput{
		Actor:          input.Actor,
		TargetUID:      input.Actor.UID,
		Fields:         []FieldUpdate{{Field: domain.FieldPassword, Value: digest}},
		Override:       true,
		passwordDigest: true,
	})
	return err
}

// ChangeEmailInput contains the data for an email change.
type ChangeEmailInput struct {
	Actor    *domain.Actor
	Password string
	Email    string
}

// ChangeEmail replaces the actor's email after re-verifying the password.
func (s *ProfileService) ChangeEmail(ctx context.Context, input ChangeEmailInput) error {
	if input.Actor == nil {
		return ErrNotAuthenticated
	}
	if err := s.reverify(ctx, input.Actor, input.Password); err != nil {
		return err
	}

	email, err := sanitize.Email(input.Email)
	if err != nil {
		return invalidInput(err)
	}

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("failed to check email existence")
		return internalError(err)
	}
	if exists {
		return conflict(domain.FieldEmail)
	}

	_, err = s.UpdateProfile(ctx, UpdateProfileInput{
		Actor:     input.Actor,
		TargetUID: input.Actor.UID,
		Fields:    []FieldUpdate{{Field: domain.FieldEmail, Value: email}},
		Override:  true,
	})
	return err
}

func (s *ProfileService) reverify(ctx context.Context, actor *domain.Actor, password string) error {
	if password == "" {
		return ErrPasswordFail
	}
	user, err := s.credentials.verifyCredentials(ctx, actor.Username, password)
	if err != nil {
		if errors.Is(err, ErrAuthFailed) {
			return ErrPasswordFail
		}
		return err
	}
	if user.UID != actor.UID {
		return ErrPasswordFail
	}
	return nil
}

// UploadAvatarInput contains an avatar image for one user.
type UploadAvatarInput struct {
	Actor     *domain.Actor
	TargetUID int64
	Content   io.Reader
	Size      int64
}

// UploadAvatar stores the image content-addressed and points the user's
// avatar field at it. It returns the content hash.
func (s *ProfileService) UploadAvatar(ctx context.Context, input UploadAvatarInput) (string, error) {
	if err := authorize(input.Actor, input.TargetUID); err != nil {
		return "", err
	}
	if input.Size <= 0 {
		return "", invalidInput(errors.New("avatar is empty"))
	}
	if input.Size > s.maxAvatarSize {
		return "", invalidInput(fmt.Errorf("avatar exceeds %d bytes", s.maxAvatarSize))
	}

	br := bufio.NewReaderSize(input.Content, 512)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", invalidInput(err)
	}
	contentType := http.DetectContentType(head)
	if !avatarTypes[contentType] {
		return "", invalidInput(fmt.Errorf("unsupported avatar type %s", contentType))
	}

	hash, err := s.avatars.Store(ctx, br, input.Size)
	if err != nil {
		if errors.Is(err, storage.ErrSizeMismatch) {
			return "", invalidInput(err)
		}
		s.logger.Error().Err(err).Int64("uid", input.TargetUID).Msg("failed to store avatar")
		return "", internalError(err)
	}

	_, err = s.UpdateProfile(ctx, UpdateProfileInput{
		Actor:     input.Actor,
		TargetUID: input.TargetUID,
		Fields:    []FieldUpdate{{Field: domain.FieldAvatar, Value: hash}},
	})
	if err != nil {
		return "", err
	}
	return hash, nil
}

// Avatar opens a stored avatar by content hash.
func (s *ProfileService) Avatar(ctx context.Context, hash string) (io.ReadCloser, error) {
	rc, err := s.avatars.Retrieve(ctx, hash)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) || errors.Is(err, storage.ErrInvalidHash) {
			return nil, ErrAvatarNotFound
		}
		s.logger.Error().Err(err).Str("hash", hash).Msg("failed to open avatar")
		return nil, internalError(err)
	}
	return rc, nil
}

// MaxAvatarSize returns the upload limit in bytes.
func (s *ProfileService) MaxAvatarSize() int64 {
	return s.maxAvatarSize
}
