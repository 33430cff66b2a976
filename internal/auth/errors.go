package auth

import "errors"

var (
	// ErrUnauthenticated means the caller has no valid, active session.
	ErrUnauthenticated = errors.New("auth: unauthenticated")
	// ErrNoMembership means the caller holds no role in the target organization.
	ErrNoMembership = errors.New("auth: no membership in organization")

	ErrNotFound      = errors.New("auth: not found")
	ErrAlreadyExists = errors.New("auth: already exists")
	ErrInvalidInput  = errors.New("auth: invalid input")
)
