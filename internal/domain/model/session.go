package model

import (
	"math"
	"time"
)

// SlotStatus marks whether a question slot was answered.
type SlotStatus string

// Slot statuses.
const (
	SlotAnswered   SlotStatus = "answered"
	SlotUnanswered SlotStatus = "unanswered"
)

// Slot is one (question, answer, assessment) triple of a session.
type Slot struct {
	Question   Question    `json:"question"`
	Answer     string      `json:"answer"`
	Status     SlotStatus  `json:"status"`
	Assessment *Assessment `json:"assessment,omitempty"`
}

// SessionRecord is the immutable log of one finished practice session.
type SessionRecord struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Passage    string    `json:"passage"`
	Slots      []Slot    `json:"slots"`
	Vocabulary []string  `json:"vocabulary"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	Score      int       `json:"score"`
}

// Answered returns the number of answered slots.
func (r SessionRecord) Answered() int {
	n := 0
	for _, s := range r.Slots {
		if s.Status == SlotAnswered {
			n++
		}
	}
	return n
}

// SessionScore is the rounded mean aggregate of assessed slots, 0 when none
// were assessed.
func SessionScore(slots []Slot) int {
	total, n := 0, 0
	for _, s := range slots {
		if s.Assessment == nil {
			continue
		}
		total += s.Assessment.Aggregate
		n++
	}
	if n == 0 {
		return 0
	}
	return int(math.Round(float64(total) / float64(n)))
}
