package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/okian/readcoach/internal/domain/model"
	"github.com/okian/readcoach/internal/domain/session"
)

// Sessions stores finished session records per user, append-only.
type Sessions struct {
	docs DocumentStore
}

var _ session.SessionStore = (*Sessions)(nil)

// NewSessions creates a session repository over docs.
func NewSessions(docs DocumentStore) *Sessions {
	return &Sessions{docs: docs}
}

// Append stores rec. A record with the same ID is rejected with
// ErrConflict.
func (r *Sessions) Append(ctx context.Context, rec model.SessionRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return r.docs.Create(ctx, CollectionSessions, rec.UserID, rec.ID, body)
}

// List returns the user's records in the order they were appended.
func (r *Sessions) List(ctx context.Context, userID string) ([]model.SessionRecord, error) {
	bodies, err := r.docs.List(ctx, CollectionSessions, userID)
	if err != nil {
		return nil, err
	}
	out := make([]model.SessionRecord, 0, len(bodies))
	for _, b := range bodies {
		var rec model.SessionRecord
		if err := json.Unmarshal(b, &rec); err != nil {
			return nil, fmt.Errorf("decode session: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Get returns one record of userID.
func (r *Sessions) Get(ctx context.Context, userID, id string) (model.SessionRecord, error) {
	body, err := r.docs.Get(ctx, CollectionSessions, userID, id)
	if errors.Is(err, ErrNotFound) {
		return model.SessionRecord{}, fmt.Errorf("%w: %w", session.ErrSessionNotFound, err)
	}
	if err != nil {
		return model.SessionRecord{}, err
	}
	var rec model.SessionRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return model.SessionRecord{}, fmt.Errorf("decode session: %w", err)
	}
	return rec, nil
}
