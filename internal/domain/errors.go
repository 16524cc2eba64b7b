package domain

import "errors"

var (
	// ErrConflict is returned when registering a username that is already taken.
	ErrConflict = errors.New("username already exists")
	// ErrInvalidCredentials covers both unknown usernames and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated is returned for missing, expired or revoked sessions.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrNotFound indicates the requested entity id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the entity exists but belongs to another user.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput is returned for empty or malformed request values.
	ErrInvalidInput = errors.New("invalid input")
)
