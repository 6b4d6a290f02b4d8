// Package auth issues, parses and revokes login sessions for the Luma identity server.
package auth

import "errors"

// Session errors.
var (
	// ErrNoSession indicates the request carries no session cookie.
	ErrNoSession = errors.New("no session")

	// ErrInvalidToken indicates the session token is malformed or its signature does not match.
	ErrInvalidToken = errors.New("invalid session token")

	// ErrTokenExpired indicates the session token is past its expiry.
	ErrTokenExpired = errors.New("session token expired")

	// ErrSessionRevoked indicates the session was ended by logout.
	ErrSessionRevoked = errors.New("session revoked")
)
