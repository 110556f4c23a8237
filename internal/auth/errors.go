package auth

import "errors"

// Sentinel errors for accounts and tokens.
var (
	ErrUserExists         = errors.New("username or email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidInput       = errors.New("invalid registration input")
	ErrUnauthorized       = errors.New("missing or invalid access token")
	ErrInvalidSecret      = errors.New("token secret must be at least 16 bytes")
)
