package mysql

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/prn-tf/luma-identity/internal/domain"
	"github.com/prn-tf/luma-identity/internal/repository"
)

const (
	errDuplicateEntry   = 1062
	errNoReferencedRow  = 1452
	errNoReferencedRow2 = 1216
)

// translateError maps MySQL constraint violations to repository errors.
func translateError(msg string, err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case errDuplicateEntry:
			return repository.NewConflictError(conflictField(myErr.Message))
		case errNoReferencedRow, errNoReferencedRow2:
			return fmt.Errorf("%w: %v", repository.ErrInvalidReference, domain.ErrGroupNotFound)
		}
	}

	// Errors that crossed a proxy or a mock only keep their text.
	text := err.Error()
	switch {
	case strings.Contains(text, "Error 1062"):
		return repository.NewConflictError(conflictField(text))
	case strings.Contains(text, "Error 1452"):
		return fmt.Errorf("%w: %v", repository.ErrInvalidReference, domain.ErrGroupNotFound)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// conflictField extracts the colliding column from
// "Duplicate entry 'x' for key 'users.idx_users_email'".
func conflictField(message string) string {
	i := strings.LastIndex(message, "for key '")
	if i < 0 {
		return ""
	}
	key := strings.TrimSuffix(message[i+len("for key '"):], "'")
	if dot := strings.LastIndexByte(key, '.'); dot >= 0 {
		key = key[dot+1:]
	}
	switch key {
	case "idx_users_username", domain.FieldUsername:
		return domain.FieldUsername
	case "idx_users_email", domain.FieldEmail:
		return domain.FieldEmail
	}
	return ""
}

// isNoRows checks if an error indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
