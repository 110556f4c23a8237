package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/readcoach/internal/domain/model"
	"github.com/okian/readcoach/internal/domain/session"
	"github.com/okian/readcoach/internal/domain/types"
)

const multipartMemory = 1 << 20

type startRequest struct {
	Passage   string `json:"passage"`
	Questions int    `json:"questions"`
}

type answerRequest struct {
	Answer string `json:"answer"`
}

type transcribeResponse struct {
	Text   string              `json:"text"`
	Result *types.AnswerResult `json:"result,omitempty"`
}

type extractRequest struct {
	Limit int `json:"limit"`
}

type entriesResponse struct {
	Entries []model.VocabularyEntry `json:"entries"`
}

// handleStartSession handles POST /v1/sessions. An empty body starts a
// session over the default passage.
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeOptional(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Questions < 0 || req.Questions > session.MaxQuestionCount {
		s.fail(w, r, fmt.Errorf("%w: questions must be within 0..%d", ErrBadRequest, session.MaxQuestionCount))
		return
	}
	view, err := s.deps.StartSession(r.Context(), userID(r), req.Passage, req.Questions)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) sessionView(fn func(ctx context.Context, userID, id string) (types.SessionView, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := fn(r.Context(), userID(r), r.PathValue("id"))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// handleGetSession handles GET /v1/sessions/{id}.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s.sessionView(s.deps.Session)(w, r)
}

// handleNext handles POST /v1/sessions/{id}/next.
func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	s.sessionView(s.deps.Next)(w, r)
}

// handlePrev handles POST /v1/sessions/{id}/prev.
func (s *Server) handlePrev(w http.ResponseWriter, r *http.Request) {
	s.sessionView(s.deps.Prev)(w, r)
}

// handleAnswer handles POST /v1/sessions/{id}/answer.
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.deps.SubmitAnswer(r.Context(), userID(r), r.PathValue("id"), req.Answer)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleTranscribe handles POST /v1/sessions/{id}/transcribe with the
// recording in the multipart field "audio". With ?submit=true the text is
// also submitted as the answer to the current question.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxAudioBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(w, r, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, tooLarge.Limit))
			return
		}
		s.fail(w, r, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("audio")
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: audio field: %w", ErrBadRequest, err))
		return
	}
	defer func() { _ = file.Close() }()

	id := r.PathValue("id")
	text, err := s.deps.Transcribe(r.Context(), userID(r), id, file, header.Filename)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := transcribeResponse{Text: text}
	if submit, _ := strconv.ParseBool(r.URL.Query().Get("submit")); submit {
		res, err := s.deps.SubmitAnswer(r.Context(), userID(r), id, text)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		resp.Result = &res
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleExtractVocabulary handles POST /v1/sessions/{id}/vocabulary.
func (s *Server) handleExtractVocabulary(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := decodeOptional(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	entries, err := s.deps.ExtractVocabulary(r.Context(), userID(r), r.PathValue("id"), req.Limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []model.VocabularyEntry{}
	}
	writeJSON(w, http.StatusOK, entriesResponse{Entries: entries})
}

// handleFinish handles POST /v1/sessions/{id}/finish.
func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	rec, err := s.deps.FinishSession(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
