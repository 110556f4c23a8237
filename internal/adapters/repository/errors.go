package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound = errors.New("document not found")
	ErrConflict = errors.New("document already exists")
	ErrClosed   = errors.New("store is closed")
)
