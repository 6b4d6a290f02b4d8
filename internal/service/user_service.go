package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/prn-tf/luma-identity/internal/domain"
	"github.com/prn-tf/luma-identity/internal/repository"
	"github.com/prn-tf/luma-identity/internal/sanitize"
)

// Listing defaults.
const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

// UserService handles user listing, lookup and deletion.
type UserService struct {
	users       repository.UserRepository
	defaultSize int
	maxSize     int
	logger      zerolog.Logger
}

// NewUserService creates a new UserService. Non-positive page sizes fall back
// to DefaultPageSize and MaxPageSize.
func NewUserService(users repository.UserRepository, defaultSize, maxSize int, logger zerolog.Logger) *UserService {
	if defaultSize <= 0 {
		defaultSize = DefaultPageSize
	}
	if maxSize <= 0 {
		maxSize = MaxPageSize
	}
	if defaultSize > maxSize {
		defaultSize = maxSize
	}
	return &UserService{
		users:       users,
		defaultSize: defaultSize,
		maxSize:     maxSize,
		logger:      logger.With().Str("service", "user").Logger(),
	}
}

// ListUsersInput contains paging, sorting and exact-match filters.
type ListUsersInput struct {
	// Page is zero-based.
	Page int

	// Count is the page size. Zero selects the default.
	Count int

	// Column is the sort column. Empty sorts by uid.
	Column string

	Descending bool

	// Filters maps column to the exact value it must hold.
	Filters map[string]string
}

// ListUsersOutput contains one page of users.
type ListUsersOutput struct {
	Users []*domain.User `json:"users"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Count int            `json:"count"`
}

// List returns one page of users.
func (s *UserService) List(ctx context.Context, input ListUsersInput) (*ListUsersOutput, error) {
	if input.Page < 0 {
		return nil, invalidInput(errors.New("page must not be negative"))
	}
	if input.Count < 0 {
		return nil, invalidInput(errors.New("count must not be negative"))
	}

	count := input.Count
	if count == 0 {
		count = s.defaultSize
	}
	if count > s.maxSize {
		count = s.maxSize
	}
	if input.Page > math.MaxInt/count {
		return nil, invalidInput(errors.New("page out of range"))
	}

	column := input.Column
	if column == "" {
		column = domain.FieldUID
	}
	if !domain.SortableFields[column] {
		return nil, invalidInput(fmt.Errorf("cannot sort by %q", column))
	}

	filters, err := normalizeFilters(input.Filters)
	if err != nil {
		return nil, err
	}

	result, err := s.users.List(ctx, repository.UserListOptions{
		ListOptions: repository.ListOptions{
			Offset:     input.Page * count,
			Limit:      count,
			OrderBy:    column,
			Descending: input.Descending,
		},
		Filters: filters,
	})
	if err != nil {
		if errors.Is(err, domain.ErrUnknownField) {
			return nil, invalidInput(err)
		}
		s.logger.Error().Err(err).Msg("failed to list users")
		return nil, internalError(err)
	}

	return &ListUsersOutput{
		Users: result.Items,
		Total: result.Total,
		Page:  input.Page,
		Count: count,
	}, nil
}

// normalizeFilters converts raw filter values to their column types.
// Columns are visited in name order so generated queries are stable.
func normalizeFilters(raw map[string]string) ([]domain.FieldValue, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	columns := make([]string, 0, len(raw))
	for column := range raw {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	filters := make([]domain.FieldValue, 0, len(columns))
	for _, column := range columns {
		if !domain.FilterableFields[column] {
			return nil, invalidInput(fmt.Errorf("cannot filter by %q", column))
		}
		spec, _ := domain.LookupField(column)
		value := raw[column]

		var v any
		switch spec.Kind {
		case domain.KindInt:
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, invalidInput(fmt.Errorf("%s: not an integer", column))
			}
			v = n
		case domain.KindBool:
			b, err := strconv.ParseBool(value)
			if err != nil {
				return nil, invalidInput(fmt.Errorf("%s: not a boolean", column))
			}
			v = b
		default:
			text, err := sanitize.Text(value, spec.MaxLen)
			if err != nil {
				return nil, invalidInput(fmt.Errorf("%s: %w", column, err))
			}
			if column == domain.FieldEmail {
				text = strings.ToLower(text)
			}
			v = text
		}
		filters = append(filters, domain.FieldValue{Field: column, Value: v})
	}
	return filters, nil
}

// Get retrieves a user with comment and submission counts.
func (s *UserService) Get(ctx context.Context, uid int64) (*domain.UserProfile, error) {
	profile, err := s.users.GetProfile(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error().Err(err).Int64("uid", uid).Msg("failed to get user")
		return nil, internalError(err)
	}
	return profile, nil
}

// Delete hard-deletes a user. Only root may delete accounts.
func (s *UserService) Delete(ctx context.Context, actor *domain.Actor, uid int64) error {
	if actor == nil {
		return ErrNotAuthenticated
	}
	if !actor.StaffRoot {
		return permissionDenied(domain.ReasonRootOnly)
	}

	n, err := s.users.Delete(ctx, uid)
	if err != nil {
		s.logger.Error().Err(err).Int64("uid", uid).Msg("failed to delete user")
		return internalError(err)
	}
	if n == 0 {
		return ErrUserNotFound
	}

	s.logger.Info().
		Int64("uid", uid).
		Int64("actor", actor.UID).
		Msg("user deleted")
	return nil
}
