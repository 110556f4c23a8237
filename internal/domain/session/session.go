// Package session runs practice sessions: a passage, generated questions,
// the learner's answers and their assessments.
package session

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/okian/readcoach/internal/domain/model"
)

// Session is the transient state of one practice session. It is owned by
// a single user and must not be mutated concurrently.
type Session struct {
	ID        string
	UserID    string
	Passage   string
	StartedAt time.Time

	// mu serializes access through Registry.With.
	mu          sync.Mutex
	questions   []model.Question
	answers     []string
	assessments []*model.Assessment
	vocabulary  []string
	index       int
}

// New creates a session positioned on the first question.
func New(id, userID, passage string, questions []model.Question, startedAt time.Time) *Session {
	return &Session{
		ID:          id,
		UserID:      userID,
		Passage:     passage,
		StartedAt:   startedAt,
		questions:   slices.Clone(questions),
		answers:     make([]string, len(questions)),
		assessments: make([]*model.Assessment, len(questions)),
	}
}

// Len returns the number of questions.
func (s *Session) Len() int { return len(s.questions) }

// Index returns the current question index.
func (s *Session) Index() int { return s.index }

// Next moves forward one question. It is a no-op on the last question.
func (s *Session) Next() {
	if s.index < len(s.questions)-1 {
		s.index++
	}
}

// Prev moves back one question. It is a no-op on the first question.
func (s *Session) Prev() {
	if s.index > 0 {
		s.index--
	}
}

// Current returns the question at the current index.
func (s *Session) Current() (model.Question, bool) {
	if len(s.questions) == 0 {
		return model.Question{}, false
	}
	return s.questions[s.index], true
}

// Questions returns a copy of the generated questions.
func (s *Session) Questions() []model.Question {
	return slices.Clone(s.questions)
}

// PrepareAnswer validates text as an answer to the current question and
// returns it trimmed. The session is not changed.
func (s *Session) PrepareAnswer(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyAnswer
	}
	if len(s.questions) == 0 {
		return "", ErrSlotOutOfRange
	}
	return text, nil
}

// Answer records text and its assessment for the current question,
// replacing any earlier pair. Both are written or neither is.
func (s *Session) Answer(text string, a model.Assessment) error {
	text, err := s.PrepareAnswer(text)
	if err != nil {
		return err
	}
	s.answers[s.index] = text
	s.assessments[s.index] = &a
	return nil
}

// AddVocabulary tracks a term saved during the session.
func (s *Session) AddVocabulary(term string) {
	if !slices.Contains(s.vocabulary, term) {
		s.vocabulary = append(s.vocabulary, term)
	}
}

// Vocabulary returns the terms saved during the session.
func (s *Session) Vocabulary() []string {
	return append([]string{}, s.vocabulary...)
}

// Complete reports whether every question has an answer.
func (s *Session) Complete() bool {
	for _, a := range s.answers {
		if a == "" {
			return false
		}
	}
	return true
}

// Slots returns the current state of every question slot.
func (s *Session) Slots() []model.Slot {
	slots := make([]model.Slot, len(s.questions))
	for i, q := range s.questions {
		slot := model.Slot{Question: q, Answer: s.answers[i], Status: model.SlotUnanswered}
		if s.answers[i] != "" {
			slot.Status = model.SlotAnswered
		}
		if a := s.assessments[i]; a != nil {
			cp := *a
			cp.Errors = slices.Clone(a.Errors)
			slot.Assessment = &cp
		}
		slots[i] = slot
	}
	return slots
}

// Record builds the persisted form of the session. Unanswered slots are
// kept and marked as such.
func (s *Session) Record(now time.Time) model.SessionRecord {
	slots := s.Slots()
	return model.SessionRecord{
		ID:         s.ID,
		UserID:     s.UserID,
		Passage:    s.Passage,
		Slots:      slots,
		Vocabulary: s.Vocabulary(),
		StartedAt:  s.StartedAt,
		EndedAt:    now,
		Score:      model.SessionScore(slots),
	}
}
