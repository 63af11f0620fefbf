package session

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"taskfolio-api/storage"
)

const loadTimeout = 30 * time.Second

// Manager owns one Session per signed-in user. The first request for a user
// transitions them SignedOut -> Loading -> Ready; dropping a session is the
// sign-out transition and clears memory without touching storage.
type Manager struct {
	adapter storage.Adapter
	flusher *Flusher
	logger  *log.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a Manager persisting through the given adapter.
func NewManager(adapter storage.Adapter, flusher *Flusher, logger *log.Logger) *Manager {
	if logger == nil {
		panic("session.NewManager: logger is nil")
	}
	return &Manager{
		adapter:  adapter,
		flusher:  flusher,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Get returns the user's session, loading collections on first touch. It
// blocks until the session is Ready or ctx is done.
func (m *Manager) Get(ctx context.Context, userID string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	if !ok {
		s = newSession(userID, m.flusher, m.logger)
		m.sessions[userID] = s
		go func() {
			loadCtx, cancel := context.WithTimeout(context.Background(), loadTimeout)
			defer cancel()
			s.load(loadCtx, m.adapter)
		}()
	}
	m.mu.Unlock()

	select {
	case <-s.ready:
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Drop signs the user out: the session leaves the map and its collections
// are cleared with no persistence write.
func (m *Manager) Drop(userID string) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	if ok {
		delete(m.sessions, userID)
	}
	m.mu.Unlock()
	if ok {
		s.signOut()
	}
}

// Active reports how many sessions are loaded. Used by the health endpoint.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
