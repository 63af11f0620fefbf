package session

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"

	"taskfolio-api/domain"
)

func TestManagerGetLoadsOnce(t *testing.T) {
	adapter := newFakeAdapter()
	m := NewManager(adapter, nil, log.New())

	first, err := m.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	second, err := m.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if first != second {
		t.Fatal("expected the same session instance")
	}

	adapter.mu.Lock()
	loads := adapter.taskLoads
	adapter.mu.Unlock()
	if loads != 1 {
		t.Fatalf("expected a single task load, got %d", loads)
	}
	if first.State() != StateReady {
		t.Fatalf("expected Ready, got %s", first.State())
	}
}

func TestManagerDropSignsOut(t *testing.T) {
	adapter := newFakeAdapter()
	m := NewManager(adapter, nil, log.New())

	s, err := m.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if m.Active() != 1 {
		t.Fatalf("expected 1 active session, got %d", m.Active())
	}

	m.Drop("user-1")
	if m.Active() != 0 {
		t.Fatalf("expected 0 active sessions, got %d", m.Active())
	}
	if s.State() != StateSignedOut {
		t.Fatalf("expected SignedOut, got %s", s.State())
	}

	// Dropping an unknown user is harmless.
	m.Drop("nobody")
}

func TestManagerWriteThroughRoundTrip(t *testing.T) {
	adapter := newFakeAdapter()
	flusher := NewFlusher(adapter, log.New(), FlusherConfig{Workers: 1})
	m := NewManager(adapter, flusher, log.New())

	s, err := m.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	added, err := s.AddTask(domain.Task{Title: "durable"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	flusher.Close() // drain pending writes
	m.Drop("user-1")

	// A fresh manager over the same storage sees the persisted task.
	m2 := NewManager(adapter, nil, log.New())
	s2, err := m2.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	tasks := s2.Tasks()
	if len(tasks) != 1 || tasks[0].ID != added.ID {
		t.Fatalf("persisted task not reloaded: %#v", tasks)
	}
}
