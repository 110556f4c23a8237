// Package srs schedules vocabulary reviews. Each entry moves between
// review-count buckets (0, 1, 2, 3+) driven by the learner's outcome; there
// is no terminal state.
package srs

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/readcoach/internal/domain/model"
)

// MasteredBucket is the highest bucket; entries in it count as mastered.
const MasteredBucket = 3

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithPolicy replaces the default policy.
func WithPolicy(p Policy) Option {
	return func(s *Scheduler) {
		s.policy = p
	}
}

// Scheduler computes the next review state of an entry. It holds no
// mutable state and is safe for concurrent use.
type Scheduler struct {
	policy Policy
}

// New creates a scheduler with the default policy.
func New(opts ...Option) (*Scheduler, error) {
	s := &Scheduler{policy: DefaultPolicy()}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.policy.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Policy returns the active policy.
func (s *Scheduler) Policy() Policy {
	return s.policy
}

// ParseOutcome accepts again, hard, good or easy in any case.
func ParseOutcome(v string) (model.ReviewOutcome, error) {
	o := model.ReviewOutcome(strings.ToLower(strings.TrimSpace(v)))
	switch o {
	case model.OutcomeAgain, model.OutcomeHard, model.OutcomeGood, model.OutcomeEasy:
		return o, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOutcome, v)
}

// Review returns entry updated for outcome at now. The input is not
// modified; the caller persists the result.
func (s *Scheduler) Review(entry model.VocabularyEntry, outcome model.ReviewOutcome, now time.Time) (model.VocabularyEntry, error) {
	p := s.policy
	prior := priorInterval(entry, now)

	var interval time.Duration
	switch outcome {
	case model.OutcomeAgain:
		entry.ReviewCount = 0
		interval = p.AgainInterval
	case model.OutcomeHard:
		interval = max(scale(prior, p.HardMultiplier), p.MinInterval)
	case model.OutcomeGood:
		interval = scale(s.effectivePrior(entry, prior), p.GoodMultiplier)
		entry.ReviewCount++
	case model.OutcomeEasy:
		interval = scale(s.effectivePrior(entry, prior), p.EasyMultiplier)
		entry.ReviewCount++
	default:
		return model.VocabularyEntry{}, fmt.Errorf("%w: %q", ErrUnknownOutcome, outcome)
	}

	if p.MaxInterval > 0 {
		interval = min(interval, p.MaxInterval)
	}

	reviewed := now
	entry.LastReviewAt = &reviewed
	entry.NextReviewAt = now.Add(interval)
	return entry, nil
}

// effectivePrior is the interval good and easy multiply. Entries in bucket 0
// start from the baseline so a first good lands on BaseInterval.
func (s *Scheduler) effectivePrior(entry model.VocabularyEntry, prior time.Duration) time.Duration {
	p := s.policy
	if entry.ReviewCount == 0 || prior == 0 {
		prior = scale(p.BaseInterval, 1/p.GoodMultiplier)
	}
	return max(prior, scale(p.MinInterval, 1/p.GoodMultiplier))
}

// priorInterval is the time elapsed since the last review, so irregular
// review cadence is tolerated. Never reviewed or clock skew yields 0.
func priorInterval(entry model.VocabularyEntry, now time.Time) time.Duration {
	if entry.LastReviewAt == nil || now.Before(*entry.LastReviewAt) {
		return 0
	}
	return now.Sub(*entry.LastReviewAt)
}

func scale(d time.Duration, f float64) time.Duration {
	return time.Duration(float64(d) * f)
}

// Bucket returns the review-count bucket: 0, 1, 2 or 3 (meaning 3+).
func Bucket(entry model.VocabularyEntry) int {
	return min(max(entry.ReviewCount, 0), MasteredBucket)
}

// IsMastered is a presentation filter, not a lifecycle state.
func IsMastered(entry model.VocabularyEntry) bool {
	return Bucket(entry) == MasteredBucket
}
