package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/okian/readcoach/internal/domain/model"
	"github.com/okian/readcoach/internal/domain/vocabulary"
)

// Vocabulary stores vocabulary entries keyed by normalized term.
type Vocabulary struct {
	docs DocumentStore
}

var _ vocabulary.Store = (*Vocabulary)(nil)

// NewVocabulary creates a vocabulary repository over docs.
func NewVocabulary(docs DocumentStore) *Vocabulary {
	return &Vocabulary{docs: docs}
}

func (r *Vocabulary) GetEntry(ctx context.Context, userID, term string) (model.VocabularyEntry, error) {
	body, err := r.docs.Get(ctx, CollectionVocabulary, userID, term)
	if errors.Is(err, ErrNotFound) {
		return model.VocabularyEntry{}, fmt.Errorf("%w: %q", vocabulary.ErrNotFound, term)
	}
	if err != nil {
		return model.VocabularyEntry{}, err
	}
	var e model.VocabularyEntry
	if err := json.Unmarshal(body, &e); err != nil {
		return model.VocabularyEntry{}, fmt.Errorf("decode entry: %w", err)
	}
	return e, nil
}

func (r *Vocabulary) PutEntry(ctx context.Context, e model.VocabularyEntry) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	return r.docs.Put(ctx, CollectionVocabulary, e.UserID, e.Term, body)
}

func (r *Vocabulary) ListEntries(ctx context.Context, userID string) ([]model.VocabularyEntry, error) {
	bodies, err := r.docs.List(ctx, CollectionVocabulary, userID)
	if err != nil {
		return nil, err
	}
	out := make([]model.VocabularyEntry, 0, len(bodies))
	for _, b := range bodies {
		var e model.VocabularyEntry
		if err := json.Unmarshal(b, &e); err != nil {
			return nil, fmt.Errorf("decode entry: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Users returns the IDs of users that have saved vocabulary.
func (r *Vocabulary) Users(ctx context.Context) ([]string, error) {
	return r.docs.Owners(ctx, CollectionVocabulary)
}
