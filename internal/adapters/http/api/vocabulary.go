package api

import (
	"net/http"

	"github.com/okian/readcoach/internal/domain/model"
)

type addWordRequest struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
	Example    string `json:"example"`
}

type reviewRequest struct {
	Outcome string `json:"outcome"`
}

// handleAddWord handles POST /v1/vocabulary. A missing definition is
// looked up.
func (s *Server) handleAddWord(w http.ResponseWriter, r *http.Request) {
	var req addWordRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	e, err := s.deps.AddWord(r.Context(), userID(r), req.Term, req.Definition, req.Example)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// handleListWords handles GET /v1/vocabulary.
func (s *Server) handleListWords(w http.ResponseWriter, r *http.Request) {
	entries, err := s.deps.Vocabulary(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []model.VocabularyEntry{}
	}
	writeJSON(w, http.StatusOK, entriesResponse{Entries: entries})
}

// handleDueWords handles GET /v1/vocabulary/due.
func (s *Server) handleDueWords(w http.ResponseWriter, r *http.Request) {
	due, err := s.deps.DueVocabulary(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, due)
}

// handleReviewWord handles POST /v1/vocabulary/{term}/review.
func (s *Server) handleReviewWord(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	e, err := s.deps.ReviewWord(r.Context(), userID(r), r.PathValue("term"), req.Outcome)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// handleArchiveWord handles DELETE /v1/vocabulary/{term}. Entries are
// archived, never removed.
func (s *Server) handleArchiveWord(w http.ResponseWriter, r *http.Request) {
	e, err := s.deps.ArchiveWord(r.Context(), userID(r), r.PathValue("term"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}
