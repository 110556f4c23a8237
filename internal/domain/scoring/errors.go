package scoring

import "errors"

// Sentinel kinds for scoring errors.
var (
	ErrMalformedAssessment = errors.New("malformed assessment")
	ErrInvalidWeights      = errors.New("invalid scoring weights")
	ErrInvalidBands        = errors.New("invalid band thresholds")
)
