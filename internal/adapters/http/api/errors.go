package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/readcoach/internal/adapters/speech"
	"github.com/okian/readcoach/internal/auth"
	"github.com/okian/readcoach/internal/domain/scoring"
	"github.com/okian/readcoach/internal/domain/session"
	"github.com/okian/readcoach/internal/domain/srs"
	"github.com/okian/readcoach/internal/domain/vocabulary"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrMissingToken = errors.New("missing bearer token")
	ErrTooLarge     = errors.New("request body too large")
)

type mapping struct {
	err    error
	status int
	code   string
	retry  bool
}

// errorTable is checked in order; the first match wins. Generation parse
// failures wrap the scorer's malformed error and must match first.
var errorTable = []mapping{ //nolint:gochecknoglobals // lookup table
	{session.ErrGenerationParse, http.StatusBadGateway, "generation_failed", true},
	{session.ErrTranscription, http.StatusBadGateway, "transcription_failed", true},
	{ErrBadRequest, http.StatusBadRequest, "bad_request", false},
	{vocabulary.ErrInvalidTerm, http.StatusBadRequest, "invalid_term", false},
	{srs.ErrUnknownOutcome, http.StatusBadRequest, "unknown_outcome", false},
	{scoring.ErrMalformedAssessment, http.StatusBadRequest, "malformed", false},
	{session.ErrEmptyAnswer, http.StatusBadRequest, "empty_answer", false},
	{session.ErrInvalidCount, http.StatusBadRequest, "invalid_count", false},
	{speech.ErrUnsupportedFormat, http.StatusBadRequest, "unsupported_format", false},
	{auth.ErrInvalidInput, http.StatusBadRequest, "invalid_input", false},
	{ErrMissingToken, http.StatusUnauthorized, "unauthorized", false},
	{auth.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", false},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", false},
	{vocabulary.ErrNotFound, http.StatusNotFound, "not_found", false},
	{session.ErrSessionNotFound, http.StatusNotFound, "session_not_found", false},
	{auth.ErrUserExists, http.StatusConflict, "user_exists", false},
	{ErrTooLarge, http.StatusRequestEntityTooLarge, "too_large", false},
	{session.ErrNoTranscriber, http.StatusServiceUnavailable, "unavailable", false},
	{session.ErrNoVocabularyBook, http.StatusServiceUnavailable, "unavailable", false},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout", true},
}

func classify(err error) mapping {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			return m
		}
	}
	return mapping{status: http.StatusInternalServerError, code: "internal"}
}
