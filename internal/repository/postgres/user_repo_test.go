package postgres

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/luma-identity/internal/domain"
	"github.com/prn-tf/luma-identity/internal/repository"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantIs    error
		wantField string
	}{
		{
			name:      "username unique",
			err:       &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "users_username_key"},
			wantIs:    repository.ErrConflict,
			wantField: domain.FieldUsername,
		},
		{
			name:      "email unique",
			err:       &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "users_email_key"},
			wantIs:    repository.ErrConflict,
			wantField: domain.FieldEmail,
		},
		{
			name:   "missing group",
			err:    &pgconn.PgError{Code: pgForeignKeyViolation, ConstraintName: "users_gid_fkey"},
			wantIs: repository.ErrInvalidReference,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := translateError("op", tt.err)
			require.ErrorIs(t, err, tt.wantIs)

			var conflict *repository.ConflictError
			if errors.As(err, &conflict) {
				assert.Equal(t, tt.wantField, conflict.Field)
			}
		})
	}

	plain := errors.New("connection reset")
	err := translateError("failed to update user", plain)
	require.ErrorIs(t, err, plain)
	assert.NotErrorIs(t, err, repository.ErrConflict)
}

func TestMigrations(t *testing.T) {
	src := Migrations()
	assert.Equal(t, "postgres", src.Dialect)

	raw, err := fs.ReadFile(src.FS, "00001_init.sql")
	require.NoError(t, err)
	data := string(raw)
	assert.Contains(t, data, "CONSTRAINT users_username_key UNIQUE (username)")
	assert.Contains(t, data, "CONSTRAINT users_email_key UNIQUE (email)")
}
