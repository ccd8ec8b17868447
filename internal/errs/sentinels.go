// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Authentication and authorization.
var (
	// ErrUnauthenticated indicates a missing or unparseable credential.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidToken indicates a bearer token was presented but rejected.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is an ErrInvalidToken whose expiry has passed.
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrInvalidToken)

	// ErrInvalidSignature is an ErrInvalidToken not signed with the configured secret.
	ErrInvalidSignature = fmt.Errorf("%w: signature mismatch", ErrInvalidToken)

	// ErrInvalidCredentials indicates a username/password pair was rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccessDenied indicates the caller is authenticated but does not own the resource.
	ErrAccessDenied = errors.New("access denied")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")
)

// Repository and service layers.
var (
	// ErrValidation indicates a missing or malformed required field.
	ErrValidation = errors.New("validation error")

	// ErrNotFound indicates the requested entity does not exist for the owner.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateID indicates an (owner, id) unique key violation on insert.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrConflict indicates id allocation kept colliding after the retry budget.
	ErrConflict = errors.New("conflict")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrBackendUnavailable indicates the persistence layer could not be reached.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// Unavailable wraps a transport-level failure as ErrBackendUnavailable, keeping the cause.
func Unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
}
