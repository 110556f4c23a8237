// Package types contains response shapes shared by the service and the
// HTTP layer.
package types

import (
	"time"

	"github.com/okian/readcoach/internal/domain/model"
)

// SessionView is a snapshot of an active practice session.
type SessionView struct {
	ID         string          `json:"id"`
	Passage    string          `json:"passage"`
	Index      int             `json:"index"`
	Total      int             `json:"total"`
	Current    *model.Question `json:"current,omitempty"`
	Slots      []model.Slot    `json:"slots"`
	Vocabulary []string        `json:"vocabulary"`
	Complete   bool            `json:"complete"`
	StartedAt  time.Time       `json:"started_at"`
}

// AnswerResult is the outcome of submitting an answer.
type AnswerResult struct {
	Assessment model.Assessment `json:"assessment"`
	Session    SessionView      `json:"session"`
}

// AuthResult carries a user and a freshly issued access token.
type AuthResult struct {
	User      model.User `json:"user"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// DueVocabulary lists entries due for review.
type DueVocabulary struct {
	Entries []model.VocabularyEntry `json:"entries"`
	Count   int                     `json:"count"`
	// LastReminder is when the reminder job last counted this user's due
	// entries, if it has.
	LastReminder *time.Time `json:"last_reminder,omitempty"`
}
