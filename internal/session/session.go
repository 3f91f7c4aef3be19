// Package session stores login sessions outside the process so any replica can
// resolve them.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the session id is unknown or has expired.
var ErrNotFound = errors.New("session not found")

// Session binds an opaque id to a user for a limited time.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Remember  bool      `json:"remember"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store persists sessions.
type Store interface {
	Create(ctx context.Context, userID int64, remember bool) (Session, error)
	Get(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
}
