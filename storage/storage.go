package storage

import (
	"context"
	"errors"

	"taskfolio-api/domain"
)

// Kind names a persisted collection. Collections are stored whole, one
// record per user and kind.
type Kind string

const (
	KindTasks    Kind = "tasks"
	KindProjects Kind = "projects"
)

// ErrNotFound signals that no collection was ever saved for the user and
// kind. Callers distinguish it from an empty collection so first-time users
// can be seeded with defaults.
var ErrNotFound = errors.New("collection not found")

// Adapter durably stores and retrieves per-user task and project
// collections. Saves overwrite whole collections; there is one logical
// writer per user, so no finer-grained concurrency control is provided.
type Adapter interface {
	LoadTasks(ctx context.Context, userID string) ([]domain.Task, error)
	SaveTasks(ctx context.Context, userID string, tasks []domain.Task) error
	LoadProjects(ctx context.Context, userID string) ([]domain.Project, error)
	SaveProjects(ctx context.Context, userID string, projects []domain.Project) error
}

func collectionKey(kind Kind, userID string) string {
	return string(kind) + "-" + userID
}
