package mysql

import (
	"context"
	"database/sql/driver"
	"errors"
	"io/fs"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/luma-identity/internal/config"
	"github.com/prn-tf/luma-identity/internal/domain"
	"github.com/prn-tf/luma-identity/internal/repository"
)

// setupUserTestRepository creates a user repository with a mock database
func setupUserTestRepository(t *testing.T) (repository.UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewUserRepository(Wrap(db, zerolog.Nop())), mock
}

var userRowColumns = []string{
	"uid", "gid", "username", "email", "password",
	"staff_user", "staff_root",
	"can_msg", "can_submit", "can_comment",
	"title", "bio", "website", "avatar", "show_email",
	"registered_ip", "join_date", "last_visit", "last_active", "last_ip",
}

func userRow(uid int64, username string, joined time.Time, lastVisit driver.Value) []driver.Value {
	return []driver.Value{
		uid, int64(3), username, username + "@x.com", "$2a$08$digest",
		false, false,
		true, true, true,
		"", "", "", "", false,
		"127.0.0.1", joined, lastVisit, lastVisit, "",
	}
}

func TestUserRepository_Create(t *testing.T) {
	tests := []struct {
		name          string
		setupMock     func(sqlmock.Sqlmock)
		expectedField string
		expectedIs    error
	}{
		{
			name: "success",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO users`).
					WillReturnResult(sqlmock.NewResult(7, 1))
			},
		},
		{
			name: "duplicate email",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO users`).
					WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a@x.com' for key 'users.idx_users_email'"})
			},
			expectedIs:    repository.ErrConflict,
			expectedField: domain.FieldEmail,
		},
		{
			name: "duplicate username as text",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO users`).
					WillReturnError(errors.New("Error 1062: Duplicate entry 'alice' for key 'username'"))
			},
			expectedIs:    repository.ErrConflict,
			expectedField: domain.FieldUsername,
		},
		{
			name: "unknown group",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO users`).
					WillReturnError(&mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"})
			},
			expectedIs: repository.ErrInvalidReference,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := setupUserTestRepository(t)
			tt.setupMock(mock)

			user := domain.NewUser("alice", "a@x.com", "$2a$08$digest", "127.0.0.1")
			err := repo.Create(context.Background(), user)

			if tt.expectedIs == nil {
				require.NoError(t, err)
				assert.Equal(t, int64(7), user.UID)
			} else {
				require.ErrorIs(t, err, tt.expectedIs)
				var conflict *repository.ConflictError
				if errors.As(err, &conflict) {
					assert.Equal(t, tt.expectedField, conflict.Field)
				}
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_GetByID(t *testing.T) {
	joined := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		repo, mock := setupUserTestRepository(t)
		mock.ExpectQuery(regexp.QuoteMeta(`WHERE u.uid = ?`)).
			WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow(userRow(5, "alice", joined, nil)...))

		user, err := repo.GetByID(context.Background(), 5)
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
		assert.Equal(t, joined, user.JoinDate)
		assert.Nil(t, user.LastVisit)
		assert.True(t, user.CanMsg)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		repo, mock := setupUserTestRepository(t)
		mock.ExpectQuery(regexp.QuoteMeta(`WHERE u.uid = ?`)).
			WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows(userRowColumns))

		_, err := repo.GetByID(context.Background(), 9)
		require.ErrorIs(t, err, repository.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository_GetProfile(t *testing.T) {
	repo, mock := setupUserTestRepository(t)
	visited := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	row := append(userRow(5, "alice", visited, visited), int64(4), int64(2))
	mock.ExpectQuery(`FROM comments`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(append(userRowColumns, "comments", "submissions")).AddRow(row...))

	profile, err := repo.GetProfile(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(4), profile.Comments)
	assert.Equal(t, int64(2), profile.Submissions)
	require.NotNil(t, profile.LastVisit)
	assert.Equal(t, visited, *profile.LastVisit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpdateFields(t *testing.T) {
	t.Run("single statement", func(t *testing.T) {
		repo, mock := setupUserTestRepository(t)
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET title = ?, show_email = ? WHERE uid = ?`)).
			WithArgs("Pixel", true, int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		n, err := repo.UpdateFields(context.Background(), 5, []domain.FieldValue{
			{Field: domain.FieldTitle, Value: "Pixel"},
			{Field: domain.FieldShowEmail, Value: true},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown column never reaches the database", func(t *testing.T) {
		repo, mock := setupUserTestRepository(t)

		_, err := repo.UpdateFields(context.Background(), 5, []domain.FieldValue{{Field: "uid = 1 --", Value: "x"}})
		require.ErrorIs(t, err, domain.ErrUnknownField)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("email collision", func(t *testing.T) {
		repo, mock := setupUserTestRepository(t)
		mock.ExpectExec(`UPDATE users SET`).
			WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'b@x.com' for key 'idx_users_email'"})

		_, err := repo.UpdateFields(context.Background(), 5, []domain.FieldValue{{Field: domain.FieldEmail, Value: "b@x.com"}})
		var conflict *repository.ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, domain.FieldEmail, conflict.Field)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository_Delete(t *testing.T) {
	repo, mock := setupUserTestRepository(t)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM users WHERE uid = ?`)).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := repo.Delete(context.Background(), 5)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_List(t *testing.T) {
	repo, mock := setupUserTestRepository(t)
	joined := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM users u JOIN user_groups g ON g.gid = u.gid WHERE u.gid = ?`)).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(2)))
	mock.ExpectQuery(`LIMIT \? OFFSET \?`).
		WithArgs(int64(3), 10, 0).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(userRow(1, "alice", joined, nil)...).
			AddRow(userRow(2, "bob", joined, nil)...))

	result, err := repo.List(context.Background(), repository.UserListOptions{
		ListOptions: repository.ListOptions{Limit: 10},
		Filters:     []domain.FieldValue{{Field: domain.FieldGID, Value: int64(3)}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Total)
	require.Len(t, result.Items, 2)
	assert.Equal(t, "bob", result.Items[1].Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ExistsByEmail(t *testing.T) {
	repo, mock := setupUserTestRepository(t)
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host: "db", Port: 3306, User: "luma", Password: "secret", Database: "luma",
	})
	assert.Contains(t, dsn, "luma:secret@tcp(db:3306)/luma")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "clientFoundRows=true")
}

func TestMigrations(t *testing.T) {
	src := Migrations()
	assert.Equal(t, "mysql", src.Dialect)

	raw, err := fs.ReadFile(src.FS, "00001_init.sql")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "UNIQUE KEY idx_users_email (email)")
}
