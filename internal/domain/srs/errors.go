package srs

import "errors"

// Sentinel kinds for scheduler errors.
var (
	ErrUnknownOutcome = errors.New("unknown review outcome")
	ErrInvalidPolicy  = errors.New("invalid review policy")
)
