package api

import (
	"context"

	"taskfolio-api/domain"
	"taskfolio-api/notify"
	"taskfolio-api/session"
)

// Sessions hands out per-user state stores.
type Sessions interface {
	// Get returns the user's session, loading it on first touch.
	Get(ctx context.Context, userID string) (*session.Session, error)
	// Drop signs the user out and clears the session without persisting.
	Drop(userID string)
	// Active reports the number of loaded sessions.
	Active() int
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Deduper prevents reapplying duplicate mutation requests.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when the mutation is
	// rejected so the caller may retry with the same key.
	Remove(ctx context.Context, userID, key string) error
}

// Reminders runs a due-reminder scan over a task collection.
type Reminders interface {
	Scan(ctx context.Context, userID string, tasks []domain.Task) ([]notify.Reminder, error)
}
