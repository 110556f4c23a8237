package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/readcoach/internal/auth"
	"github.com/okian/readcoach/internal/domain/model"
)

// userDoc is the stored form of a user; the API model never serializes
// the password hash.
type userDoc struct {
	model.User
	Hash string `json:"password_hash"`
}

func encodeUser(u model.User) ([]byte, error) {
	body, err := json.Marshal(userDoc{User: u, Hash: u.PasswordHash})
	if err != nil {
		return nil, fmt.Errorf("encode user: %w", err)
	}
	return body, nil
}

// Users stores accounts with unique usernames and emails.
type Users struct {
	docs DocumentStore
}

var _ auth.UserStore = (*Users)(nil)

// NewUsers creates a user repository over docs.
func NewUsers(docs DocumentStore) *Users {
	return &Users{docs: docs}
}

func indexKey(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// Create stores a new user. A taken username or email yields
// auth.ErrUserExists and leaves no partial state.
func (r *Users) Create(ctx context.Context, u model.User) error {
	body, err := encodeUser(u)
	if err != nil {
		return err
	}
	name := indexKey(u.Username)
	email := indexKey(u.Email)

	if err := r.docs.Create(ctx, CollectionUsernames, "", name, []byte(u.ID)); err != nil {
		return conflictAs(err, "username")
	}
	if err := r.docs.Create(ctx, CollectionEmails, "", email, []byte(u.ID)); err != nil {
		_ = r.docs.Delete(ctx, CollectionUsernames, "", name)
		return conflictAs(err, "email")
	}
	if err := r.docs.Create(ctx, CollectionUsers, "", u.ID, body); err != nil {
		_ = r.docs.Delete(ctx, CollectionUsernames, "", name)
		_ = r.docs.Delete(ctx, CollectionEmails, "", email)
		return conflictAs(err, "id")
	}
	return nil
}

func conflictAs(err error, field string) error {
	if errors.Is(err, ErrConflict) {
		return fmt.Errorf("%w: %s taken", auth.ErrUserExists, field)
	}
	return err
}

// Update overwrites an existing user record.
func (r *Users) Update(ctx context.Context, u model.User) error {
	if _, err := r.ByID(ctx, u.ID); err != nil {
		return err
	}
	body, err := encodeUser(u)
	if err != nil {
		return err
	}
	return r.docs.Put(ctx, CollectionUsers, "", u.ID, body)
}

// ByID loads a user, or auth.ErrUserNotFound.
func (r *Users) ByID(ctx context.Context, id string) (model.User, error) {
	body, err := r.docs.Get(ctx, CollectionUsers, "", id)
	if errors.Is(err, ErrNotFound) {
		return model.User{}, auth.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	var doc userDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return model.User{}, fmt.Errorf("decode user %s: %w", id, err)
	}
	u := doc.User
	u.PasswordHash = doc.Hash
	return u, nil
}

// ByUsername loads a user by case-insensitive username.
func (r *Users) ByUsername(ctx context.Context, username string) (model.User, error) {
	return r.byIndex(ctx, CollectionUsernames, username)
}

// ByEmail loads a user by case-insensitive email.
func (r *Users) ByEmail(ctx context.Context, email string) (model.User, error) {
	return r.byIndex(ctx, CollectionEmails, email)
}

func (r *Users) byIndex(ctx context.Context, collection, value string) (model.User, error) {
	id, err := r.docs.Get(ctx, collection, "", indexKey(value))
	if errors.Is(err, ErrNotFound) {
		return model.User{}, auth.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	return r.ByID(ctx, string(id))
}
