package api

import (
	"net/http"

	"github.com/okian/readcoach/internal/domain/model"
)

type historyResponse struct {
	Sessions []model.SessionRecord `json:"sessions"`
}

// handleHistory handles GET /v1/history.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	recs, err := s.deps.History(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if recs == nil {
		recs = []model.SessionRecord{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Sessions: recs})
}

// handleHistoryRecord handles GET /v1/history/{id}.
func (s *Server) handleHistoryRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.deps.HistoryRecord(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleAnalytics handles GET /v1/analytics.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	a, err := s.deps.Analytics(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
