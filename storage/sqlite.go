package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"taskfolio-api/domain"

	_ "modernc.org/sqlite"
)

// SQLite is the local, on-device persistence variant. Collections are stored
// whole in a key-value table keyed by `{kind}-{userId}`, mirroring the
// hosted adapter's record-per-collection layout.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and prepares the schema.
// Use ":memory:" for tests.
func NewSQLite(path string) (*SQLite, error) {
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	ctx := context.Background()
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	schema := `CREATE TABLE IF NOT EXISTS collections (
		key        TEXT PRIMARY KEY,
		payload    TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) load(ctx context.Context, userID string, kind Kind, out any) error {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM collections WHERE key = ?`,
		collectionKey(kind, userID),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(payload), out)
}

func (s *SQLite) save(ctx context.Context, userID string, kind Kind, collection any) error {
	data, err := json.Marshal(collection)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO collections (key, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		collectionKey(kind, userID), string(data), time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *SQLite) LoadTasks(ctx context.Context, userID string) ([]domain.Task, error) {
	var tasks []domain.Task
	if err := s.load(ctx, userID, KindTasks, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *SQLite) SaveTasks(ctx context.Context, userID string, tasks []domain.Task) error {
	return s.save(ctx, userID, KindTasks, tasks)
}

func (s *SQLite) LoadProjects(ctx context.Context, userID string) ([]domain.Project, error) {
	var projects []domain.Project
	if err := s.load(ctx, userID, KindProjects, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (s *SQLite) SaveProjects(ctx context.Context, userID string, projects []domain.Project) error {
	return s.save(ctx, userID, KindProjects, projects)
}
