package model

import "time"

// ReviewOutcome is the learner's difficulty signal for one review.
type ReviewOutcome string

// Review outcomes.
const (
	OutcomeAgain ReviewOutcome = "again"
	OutcomeHard  ReviewOutcome = "hard"
	OutcomeGood  ReviewOutcome = "good"
	OutcomeEasy  ReviewOutcome = "easy"
)

// VocabularyEntry is a saved word or phrase owned by one user. Term is the
// normalized dedup key; Display keeps the spelling last added.
type VocabularyEntry struct {
	UserID       string     `json:"user_id"`
	Term         string     `json:"term"`
	Display      string     `json:"display"`
	Definition   string     `json:"definition"`
	Example      string     `json:"example"`
	SourceRef    string     `json:"source_ref"`
	Frequency    int        `json:"frequency"`
	ReviewCount  int        `json:"review_count"`
	NextReviewAt time.Time  `json:"next_review_at"`
	LastReviewAt *time.Time `json:"last_review_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	Archived     bool       `json:"archived"`
}

// DueAt reports whether the entry is due at now.
func (e VocabularyEntry) DueAt(now time.Time) bool {
	return !e.Archived && !e.NextReviewAt.After(now)
}
