// Package sanitize validates and normalizes externally supplied text before
// it is used as a stored value or a query predicate.
package sanitize

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// DefaultMaxLen bounds free-text values when no column limit applies.
const DefaultMaxLen = 4096

var (
	// ErrInvalidText indicates the value is not valid UTF-8 or contains control characters.
	ErrInvalidText = errors.New("invalid text")

	// ErrTooLong indicates the value exceeds its length limit.
	ErrTooLong = errors.New("value too long")

	// ErrEmpty indicates a required value is blank.
	ErrEmpty = errors.New("value is empty")

	// ErrInvalidEmail indicates the value is not a bare email address.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrInvalidUsername indicates the username uses characters outside the allowed set.
	ErrInvalidUsername = errors.New("invalid username")
)

// Text trims surrounding whitespace, normalizes to NFC and rejects control
// characters other than newline and tab. maxLen counts runes; zero selects
// DefaultMaxLen.
func Text(value string, maxLen int) (string, error) {
	if !utf8.ValidString(value) {
		return "", ErrInvalidText
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}

	value = norm.NFC.String(strings.TrimSpace(value))

	for _, r := range value {
		if r == '\n' || r == '\t' {
			continue
		}
		if unicode.IsControl(r) {
			return "", ErrInvalidText
		}
	}

	if utf8.RuneCountInString(value) > maxLen {
		return "", fmt.Errorf("%w: max %d characters", ErrTooLong, maxLen)
	}
	return value, nil
}

// Username validates a login name: 3 to 32 characters of letters, digits,
// '_', '-' or '.'. Case is preserved.
func Username(value string) (string, error) {
	value, err := Text(value, 32)
	if err != nil {
		return "", err
	}
	if utf8.RuneCountInString(value) < 3 {
		return "", ErrInvalidUsername
	}
	for _, r := range value {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.') {
			return "", ErrInvalidUsername
		}
	}
	return value, nil
}

// Email validates a bare address and lower-cases it.
func Email(value string) (string, error) {
	value, err := Text(value, 254)
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", ErrEmpty
	}

	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(value), nil
}
