// Package model contains domain models passed between layers.
package model

import "time"

// User is a registered learner. PasswordHash is a one-way hash and is never
// serialized to clients.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// Question is a single generated comprehension question.
type Question struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}
