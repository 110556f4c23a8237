// Package vocabulary manages a learner's saved words: deduplication by
// normalized term, frequency counting and due-review listing.
package vocabulary

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"hash/maphash"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/okian/readcoach/internal/domain/model"
	"github.com/okian/readcoach/internal/domain/srs"
	"github.com/okian/readcoach/pkg/logger"
	"github.com/okian/readcoach/pkg/metrics"
)

// Store is the persistence boundary for vocabulary entries. GetEntry
// returns ErrNotFound for unknown keys.
type Store interface {
	GetEntry(ctx context.Context, userID, term string) (model.VocabularyEntry, error)
	PutEntry(ctx context.Context, entry model.VocabularyEntry) error
	ListEntries(ctx context.Context, userID string) ([]model.VocabularyEntry, error)
}

// Option applies a configuration option to the Book.
type Option func(*Book)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Book) {
		if now != nil {
			b.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(b *Book) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithScheduler sets the review scheduler.
func WithScheduler(s *srs.Scheduler) Option {
	return func(b *Book) {
		if s != nil {
			b.scheduler = s
		}
	}
}

// Book is the vocabulary lifecycle manager for all users.
type Book struct {
	store     Store
	scheduler *srs.Scheduler
	now       func() time.Time
	logger    logger.Logger

	// stripes serialize read-modify-write cycles on one (user, term).
	seed    maphash.Seed
	stripes [lockStripes]sync.Mutex
}

const lockStripes = 64

func (b *Book) lock(userID, key string) func() {
	var h maphash.Hash
	h.SetSeed(b.seed)
	_, _ = h.WriteString(userID)
	_ = h.WriteByte(0)
	_, _ = h.WriteString(key)
	m := &b.stripes[h.Sum64()%lockStripes]
	m.Lock()
	return m.Unlock
}

// New creates a Book over store. A default scheduler is used unless one is
// supplied.
func New(store Store, opts ...Option) (*Book, error) {
	b := &Book{
		store: store,
		now:   time.Now,
		seed:  maphash.MakeSeed(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.scheduler == nil {
		s, err := srs.New()
		if err != nil {
			return nil, err
		}
		b.scheduler = s
	}
	if b.logger == nil {
		b.logger = logger.Get().Named("vocabulary")
	}
	return b, nil
}

// AddWord saves term for userID. A repeated term bumps the frequency and
// takes the newest metadata; otherwise a new entry is created that is due
// immediately.
func (b *Book) AddWord(ctx context.Context, userID, term, definition, example, sourceRef string) (model.VocabularyEntry, error) {
	key, err := Normalize(term)
	if err != nil {
		return model.VocabularyEntry{}, err
	}
	defer b.lock(userID, key)()
	now := b.now()

	entry, err := b.store.GetEntry(ctx, userID, key)
	switch {
	case errors.Is(err, ErrNotFound):
		entry = model.VocabularyEntry{
			UserID:       userID,
			Term:         key,
			Display:      strings.Join(strings.Fields(term), " "),
			Definition:   strings.TrimSpace(definition),
			Example:      strings.TrimSpace(example),
			SourceRef:    sourceRef,
			Frequency:    1,
			NextReviewAt: now,
			CreatedAt:    now,
		}
	case err != nil:
		return model.VocabularyEntry{}, fmt.Errorf("load entry: %w", err)
	default:
		entry.Frequency++
		entry.Display = strings.Join(strings.Fields(term), " ")
		entry.SourceRef = sourceRef
		if d := strings.TrimSpace(definition); d != "" {
			entry.Definition = d
		}
		if ex := strings.TrimSpace(example); ex != "" {
			entry.Example = ex
		}
		entry.Archived = false
	}

	if err := b.store.PutEntry(ctx, entry); err != nil {
		return model.VocabularyEntry{}, fmt.Errorf("save entry: %w", err)
	}
	metrics.RecordVocabularyAdded()
	b.logger.Debug(ctx, "vocabulary entry saved",
		logger.String("user", userID),
		logger.String("term", key),
		logger.Int("frequency", entry.Frequency),
	)
	return entry, nil
}

// Get returns one entry by term.
func (b *Book) Get(ctx context.Context, userID, term string) (model.VocabularyEntry, error) {
	key, err := Normalize(term)
	if err != nil {
		return model.VocabularyEntry{}, err
	}
	return b.store.GetEntry(ctx, userID, key)
}

// List returns all non-archived entries ordered by term.
func (b *Book) List(ctx context.Context, userID string) ([]model.VocabularyEntry, error) {
	all, err := b.store.ListEntries(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := slices.DeleteFunc(slices.Clone(all), func(e model.VocabularyEntry) bool { return e.Archived })
	slices.SortFunc(out, func(a, b model.VocabularyEntry) int { return strings.Compare(a.Term, b.Term) })
	return out, nil
}

// ListDue snapshots the user's entries and returns a sequence of those due
// at now, least frequent first, then earliest due. The sequence is finite
// and can be ranged over repeatedly.
func (b *Book) ListDue(ctx context.Context, userID string, now time.Time) (iter.Seq[model.VocabularyEntry], error) {
	all, err := b.store.ListEntries(ctx, userID)
	if err != nil {
		return nil, err
	}
	due := make([]model.VocabularyEntry, 0, len(all))
	for _, e := range all {
		if e.DueAt(now) {
			due = append(due, e)
		}
	}
	slices.SortStableFunc(due, dueOrder)

	return func(yield func(model.VocabularyEntry) bool) {
		for _, e := range due {
			if !yield(e) {
				return
			}
		}
	}, nil
}

func dueOrder(a, b model.VocabularyEntry) int {
	return cmp.Or(
		cmp.Compare(a.Frequency, b.Frequency),
		a.NextReviewAt.Compare(b.NextReviewAt),
		strings.Compare(a.Term, b.Term),
	)
}

// Review applies outcome to the stored entry and persists the result.
// Archived entries are reported as ErrNotFound.
func (b *Book) Review(ctx context.Context, userID, term string, outcome model.ReviewOutcome) (model.VocabularyEntry, error) {
	key, err := Normalize(term)
	if err != nil {
		return model.VocabularyEntry{}, err
	}
	defer b.lock(userID, key)()
	entry, err := b.store.GetEntry(ctx, userID, key)
	if err != nil {
		return model.VocabularyEntry{}, err
	}
	if entry.Archived {
		return model.VocabularyEntry{}, fmt.Errorf("%w: %q is archived", ErrNotFound, key)
	}
	updated, err := b.scheduler.Review(entry, outcome, b.now())
	if err != nil {
		return model.VocabularyEntry{}, err
	}
	if err := b.store.PutEntry(ctx, updated); err != nil {
		return model.VocabularyEntry{}, fmt.Errorf("save entry: %w", err)
	}
	metrics.RecordVocabularyReviewed(string(outcome))
	b.logger.Debug(ctx, "vocabulary entry reviewed",
		logger.String("user", userID),
		logger.String("term", updated.Term),
		logger.String("outcome", string(outcome)),
		logger.Int("reviewCount", updated.ReviewCount),
	)
	return updated, nil
}

// Archive hides an entry from listings without deleting it.
func (b *Book) Archive(ctx context.Context, userID, term string) (model.VocabularyEntry, error) {
	key, err := Normalize(term)
	if err != nil {
		return model.VocabularyEntry{}, err
	}
	defer b.lock(userID, key)()
	entry, err := b.store.GetEntry(ctx, userID, key)
	if err != nil {
		return model.VocabularyEntry{}, err
	}
	if entry.Archived {
		return entry, nil
	}
	entry.Archived = true
	if err := b.store.PutEntry(ctx, entry); err != nil {
		return model.VocabularyEntry{}, fmt.Errorf("save entry: %w", err)
	}
	return entry, nil
}

// Mastered filters entries in the top review bucket.
func Mastered(entries []model.VocabularyEntry) []model.VocabularyEntry {
	var out []model.VocabularyEntry
	for _, e := range entries {
		if srs.IsMastered(e) {
			out = append(out, e)
		}
	}
	return out
}
