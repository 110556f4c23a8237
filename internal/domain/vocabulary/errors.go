package vocabulary

import "errors"

// Sentinel kinds for vocabulary errors.
var (
	ErrInvalidTerm = errors.New("invalid term")
	ErrNotFound    = errors.New("vocabulary entry not found")
)
