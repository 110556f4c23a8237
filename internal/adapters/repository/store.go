// Package repository persists users, session records and vocabulary as
// JSON documents addressed by (collection, owner, key).
package repository

import "context"

// Collection names.
const (
	CollectionUsers      = "users"
	CollectionUsernames  = "usernames"
	CollectionEmails     = "emails"
	CollectionSessions   = "sessions"
	CollectionVocabulary = "vocabulary"
)

// DocumentStore is a key-based document store. Writes to one key are
// atomic; there are no multi-key transactions.
type DocumentStore interface {
	// Get returns the body stored at key, or ErrNotFound.
	Get(ctx context.Context, collection, owner, key string) ([]byte, error)
	// Put stores body at key, overwriting any existing document.
	Put(ctx context.Context, collection, owner, key string, body []byte) error
	// Create stores body at key only if the key is free, else ErrConflict.
	Create(ctx context.Context, collection, owner, key string, body []byte) error
	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, collection, owner, key string) error
	// List returns all bodies of owner in first-insertion order.
	List(ctx context.Context, collection, owner string) ([][]byte, error)
	// Owners returns the distinct owners with documents in collection.
	Owners(ctx context.Context, collection string) ([]string, error)
	// Close releases resources.
	Close() error
}
