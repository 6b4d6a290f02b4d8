package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/prn-tf/luma-identity/internal/domain"
	"github.com/prn-tf/luma-identity/internal/repository"
	"github.com/prn-tf/luma-identity/internal/repository/sqlbuild"
)

const userColumns = `
	u.uid, u.gid, u.username, u.email, u.password,
	g.staff_user, g.staff_root,
	u.can_msg, u.can_submit, u.can_comment,
	u.title, u.bio, u.website, u.avatar, u.show_email,
	u.registered_ip, u.join_date, u.last_visit, u.last_active, u.last_ip`

const userFrom = ` FROM users u JOIN user_groups g ON g.gid = u.gid`

// userRepository implements repository.UserRepository for SQLite.
type userRepository struct {
	db *DB
}

// NewUserRepository creates a new SQLite user repository.
func NewUserRepository(db *DB) repository.UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (gid, username, email, password, can_msg, can_submit, can_comment,
			title, bio, website, avatar, show_email, registered_ip, join_date, last_ip)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		user.GID,
		user.Username,
		user.Email,
		user.PasswordHash,
		boolToInt(user.CanMsg),
		boolToInt(user.CanSubmit),
		boolToInt(user.CanComment),
		user.Title,
		user.Bio,
		user.Website,
		user.Avatar,
		boolToInt(user.ShowEmail),
		user.RegisteredIP,
		formatTime(user.JoinDate),
		user.LastIP,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.NewConflictError(conflictField(err))
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: %v", repository.ErrInvalidReference, domain.ErrGroupNotFound)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	user.UID = id

	return nil
}

// GetByID retrieves a user by uid.
func (r *userRepository) GetByID(ctx context.Context, uid int64) (*domain.User, error) {
	query := `SELECT` + userColumns + userFrom + ` WHERE u.uid = ?`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, uid))
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return user, nil
}

// GetByUsername retrieves a user by exact username.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT` + userColumns + userFrom + ` WHERE u.username = ?`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, username))
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return user, nil
}

// GetProfile retrieves a user with comment and submission counts.
func (r *userRepository) GetProfile(ctx context.Context, uid int64) (*domain.UserProfile, error) {
	query := `SELECT` + userColumns + `,
		(SELECT COUNT(*) FROM comments c WHERE c.uid = u.uid),
		(SELECT COUNT(*) FROM resources s WHERE s.uid = u.uid AND s.queue_code = 0)` +
		userFrom + ` WHERE u.uid = ?`

	profile := &domain.UserProfile{}
	user, err := scanUser(r.db.QueryRowContext(ctx, query, uid), &profile.Comments, &profile.Submissions)
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}
	profile.User = user
	return profile, nil
}

// UpdateFields applies the assignments in a single UPDATE.
func (r *userRepository) UpdateFields(ctx context.Context, uid int64, fields []domain.FieldValue) (int64, error) {
	b := sqlbuild.New(sqlbuild.Question, toSQLiteValue)
	set, err := b.Assignments(fields)
	if err != nil {
		return 0, err
	}
	query := `UPDATE users SET ` + set + ` WHERE uid = ` + b.Arg(uid)

	result, err := r.db.ExecContext(ctx, query, b.Args()...)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, repository.NewConflictError(conflictField(err))
		}
		if isForeignKeyViolation(err) {
			return 0, fmt.Errorf("%w: %v", repository.ErrInvalidReference, domain.ErrGroupNotFound)
		}
		return 0, fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return rowsAffected, nil
}

// TouchLogin records a successful login.
func (r *userRepository) TouchLogin(ctx context.Context, uid int64, ip string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_visit = ?, last_active = ?, last_ip = ? WHERE uid = ?`,
		formatTime(at), formatTime(at), ip, uid,
	)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}

// Delete deletes a user by uid.
func (r *userRepository) Delete(ctx context.Context, uid int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE uid = ?`, uid)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return rowsAffected, nil
}

// List returns users with filtering, sorting and pagination.
func (r *userRepository) List(ctx context.Context, opts repository.UserListOptions) (*repository.ListResult[domain.User], error) {
	b := sqlbuild.New(sqlbuild.Question, toSQLiteValue)
	where, err := b.Where("u", opts.Filters)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*)`+userFrom+where, b.Args()...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	query := `SELECT` + userColumns + userFrom + where +
		sqlbuild.OrderBy("u", opts.ListOptions) +
		` LIMIT ` + b.Arg(opts.Limit) + ` OFFSET ` + b.Arg(opts.Offset)

	rows, err := r.db.QueryContext(ctx, query, b.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*domain.User, 0, opts.Limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return &repository.ListResult[domain.User]{
		Items:  users,
		Total:  total,
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}, nil
}

// ExistsByUsername checks if a user with the given username exists.
func (r *userRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE username = ?`, username).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check username existence: %w", err)
	}
	return count > 0, nil
}

// ExistsByEmail checks if a user with the given email exists.
func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE email = ?`, email).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}
	return count > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanUser reads userColumns followed by any extra destinations.
func scanUser(row rowScanner, extra ...any) (*domain.User, error) {
	user := &domain.User{}
	var staffUser, staffRoot, canMsg, canSubmit, canComment, showEmail int
	var joinDate string
	var lastVisit, lastActive sql.NullString

	dest := []any{
		&user.UID,
		&user.GID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&staffUser,
		&staffRoot,
		&canMsg,
		&canSubmit,
		&canComment,
		&user.Title,
		&user.Bio,
		&user.Website,
		&user.Avatar,
		&showEmail,
		&user.RegisteredIP,
		&joinDate,
		&lastVisit,
		&lastActive,
		&user.LastIP,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	user.StaffUser = staffUser != 0
	user.StaffRoot = staffRoot != 0
	user.CanMsg = canMsg != 0
	user.CanSubmit = canSubmit != 0
	user.CanComment = canComment != 0
	user.ShowEmail = showEmail != 0
	user.JoinDate, _ = time.Parse(time.RFC3339, joinDate)
	user.LastVisit = parseNullTime(lastVisit)
	user.LastActive = parseNullTime(lastActive)

	return user, nil
}

// toSQLiteValue stores booleans as integers and times as RFC 3339 text.
func toSQLiteValue(spec domain.FieldSpec, v any) any {
	switch val := v.(type) {
	case bool:
		return boolToInt(val)
	case time.Time:
		return formatTime(val)
	}
	return v
}

// boolToInt converts a boolean to an integer (SQLite doesn't have native boolean).
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseNullTime handles nullable timestamp columns.
func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

// Ensure userRepository implements repository.UserRepository.
var _ repository.UserRepository = (*userRepository)(nil)
