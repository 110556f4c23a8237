// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/readcoach/internal/domain/analytics"
	"github.com/okian/readcoach/internal/domain/model"
	"github.com/okian/readcoach/internal/domain/session"
	"github.com/okian/readcoach/internal/domain/types"
	"github.com/okian/readcoach/pkg/logger"
)

// Accounts registers users and verifies their tokens.
type Accounts interface {
	Register(ctx context.Context, username, email, password string) (types.AuthResult, error)
	Login(ctx context.Context, username, password string) (types.AuthResult, error)
	Authenticate(ctx context.Context, token string) (string, error)
}

// Sessions drives active practice sessions.
type Sessions interface {
	StartSession(ctx context.Context, userID, passage string, questions int) (types.SessionView, error)
	Session(ctx context.Context, userID, id string) (types.SessionView, error)
	Next(ctx context.Context, userID, id string) (types.SessionView, error)
	Prev(ctx context.Context, userID, id string) (types.SessionView, error)
	SubmitAnswer(ctx context.Context, userID, id, answer string) (types.AnswerResult, error)
	Transcribe(ctx context.Context, userID, id string, audio io.Reader, filename string) (string, error)
	ExtractVocabulary(ctx context.Context, userID, id string, limit int) ([]model.VocabularyEntry, error)
	FinishSession(ctx context.Context, userID, id string) (model.SessionRecord, error)
}

// Progress reads finished sessions.
type Progress interface {
	History(ctx context.Context, userID string) ([]model.SessionRecord, error)
	HistoryRecord(ctx context.Context, userID, id string) (model.SessionRecord, error)
	Analytics(ctx context.Context, userID string) (analytics.Analytics, error)
}

// Words manages the personal vocabulary.
type Words interface {
	AddWord(ctx context.Context, userID, term, definition, example string) (model.VocabularyEntry, error)
	Vocabulary(ctx context.Context, userID string) ([]model.VocabularyEntry, error)
	DueVocabulary(ctx context.Context, userID string) (types.DueVocabulary, error)
	ReviewWord(ctx context.Context, userID, term, outcome string) (model.VocabularyEntry, error)
	ArchiveWord(ctx context.Context, userID, term string) (model.VocabularyEntry, error)
}

// Dependencies required by HTTP handlers.
type Dependencies interface {
	Accounts
	Sessions
	Progress
	Words
}

const defaultMaxAudioBytes = 25 << 20

// Option configures a Server.
type Option func(*Server)

// WithMaxAudioBytes limits transcription uploads.
func WithMaxAudioBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxAudioBytes = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps          Dependencies
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	maxAudioBytes int64
	logger        logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		deps:          deps,
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		maxAudioBytes: defaultMaxAudioBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /v1/auth/register", MetricsMiddleware(s.handleRegister, "register"))
	mux.HandleFunc("POST /v1/auth/login", MetricsMiddleware(s.handleLogin, "login"))

	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(s.requireUser(h), endpoint))
	}
	route("POST /v1/sessions", "sessions_start", s.handleStartSession)
	route("GET /v1/sessions/{id}", "sessions_get", s.handleGetSession)
	route("POST /v1/sessions/{id}/next", "sessions_next", s.handleNext)
	route("POST /v1/sessions/{id}/prev", "sessions_prev", s.handlePrev)
	route("POST /v1/sessions/{id}/answer", "sessions_answer", s.handleAnswer)
	route("POST /v1/sessions/{id}/transcribe", "sessions_transcribe", s.handleTranscribe)
	route("POST /v1/sessions/{id}/vocabulary", "sessions_vocabulary", s.handleExtractVocabulary)
	route("POST /v1/sessions/{id}/finish", "sessions_finish", s.handleFinish)

	route("GET /v1/history", "history", s.handleHistory)
	route("GET /v1/history/{id}", "history_get", s.handleHistoryRecord)
	route("GET /v1/analytics", "analytics", s.handleAnalytics)

	route("POST /v1/vocabulary", "vocabulary_add", s.handleAddWord)
	route("GET /v1/vocabulary", "vocabulary_list", s.handleListWords)
	route("GET /v1/vocabulary/due", "vocabulary_due", s.handleDueWords)
	route("POST /v1/vocabulary/{term}/review", "vocabulary_review", s.handleReviewWord)
	route("DELETE /v1/vocabulary/{term}", "vocabulary_archive", s.handleArchiveWord)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Retry   bool   `json:"retry,omitempty"`
	// Answer echoes text that was not recorded so it can be resubmitted.
	Answer string `json:"answer,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail maps err to a status through the error table and logs server-side
// failures.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	m := classify(err)
	msg := err.Error()
	if m.status >= http.StatusInternalServerError && !m.retry {
		s.logger.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.Error(err),
		)
		msg = http.StatusText(m.status)
	}
	resp := errorResponse{Code: m.code, Message: msg, Retry: m.retry}
	var answerErr *session.AnswerError
	if errors.As(err, &answerErr) {
		resp.Answer = answerErr.Answer
	}
	writeJSON(w, m.status, resp)
}

// decode reads a JSON body into v. Unknown fields are rejected.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body: %w", ErrBadRequest, err)
		}
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

// decodeOptional is decode for endpoints whose body may be empty.
func decodeOptional(r *http.Request, v any) error {
	if r.ContentLength == 0 {
		return nil
	}
	err := decode(r, v)
	if err != nil && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
