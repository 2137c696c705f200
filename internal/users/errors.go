package users

import "errors"

var (
	// ErrNotFound indicates the user does not exist or is deleted.
	ErrNotFound = errors.New("user not found")
	// ErrConflict indicates the email is already registered.
	ErrConflict = errors.New("email already registered")
	// ErrInvalidInput indicates a malformed registration or login request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrBadCredentials indicates the email/password pair did not match.
	ErrBadCredentials = errors.New("invalid credentials")
)
