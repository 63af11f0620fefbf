package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taskfolio-api/domain"
	"taskfolio-api/storage"
)

// State tracks where a session is in its lifecycle.
type State string

const (
	StateSignedOut State = "signed-out"
	StateLoading   State = "loading"
	StateReady     State = "ready"
)

// Snapshot is what observers receive after every mutation.
type Snapshot struct {
	Tasks    []domain.Task    `json:"tasks"`
	Projects []domain.Project `json:"projects"`
}

// defaultProjects seeds a first-ever sign-in. Seeding is keyed on the
// projects record being absent, not empty, so a user who deleted everything
// is not re-seeded.
func defaultProjects(newID func() string) []domain.Project {
	return []domain.Project{
		{ID: newID(), Name: "Personal", Color: "#3B82F6"},
		{ID: newID(), Name: "Work", Color: "#10B981"},
		{ID: newID(), Name: "Shopping", Color: "#F59E0B"},
	}
}

// Session is the single source of truth for one user's tasks and projects
// while signed in. Mutations apply to memory synchronously and schedule a
// write-through flush; storage failures never roll memory back.
type Session struct {
	userID  string
	flusher *Flusher
	logger  *log.Logger
	now     func() time.Time
	newID   func() string

	ready chan struct{}

	mu       sync.Mutex
	state    State
	tasks    []domain.Task
	projects []domain.Project
	filter   domain.FilterOptions
	view     domain.ViewMode

	observers map[int]chan Snapshot
	obsSeq    int
}

func newSession(userID string, flusher *Flusher, logger *log.Logger) *Session {
	return &Session{
		userID:    userID,
		flusher:   flusher,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
		ready:     make(chan struct{}),
		state:     StateLoading,
		filter:    domain.Unfiltered(),
		view:      domain.ViewDashboard,
		observers: make(map[int]chan Snapshot),
	}
}

// UserID returns the identifier scoping this session's storage.
func (s *Session) UserID() string { return s.userID }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// load fetches both collections in parallel, seeding default projects when
// no projects record exists yet. Read failures are logged and treated as
// empty collections; they never block the session.
func (s *Session) load(ctx context.Context, adapter storage.Adapter) {
	var (
		wg       sync.WaitGroup
		tasks    []domain.Task
		projects []domain.Project
		seeded   bool
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		tasks, err = adapter.LoadTasks(ctx, s.userID)
		if err != nil && err != storage.ErrNotFound {
			s.logger.WithField("user", s.userID).Errorf("load tasks: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		projects, err = adapter.LoadProjects(ctx, s.userID)
		if err == storage.ErrNotFound {
			projects = defaultProjects(s.newID)
			seeded = true
			return
		}
		if err != nil {
			s.logger.WithField("user", s.userID).Errorf("load projects: %v", err)
		}
	}()
	wg.Wait()

	if seeded {
		if err := adapter.SaveProjects(ctx, s.userID, projects); err != nil {
			s.logger.WithField("user", s.userID).Errorf("seed projects: %v", err)
		}
	}

	s.mu.Lock()
	s.tasks = tasks
	s.projects = projects
	domain.RecountProjects(s.projects, s.tasks)
	s.state = StateReady
	s.mu.Unlock()
	close(s.ready)
}

// signOut discards the collections without any persistence write and ends
// every observer stream.
func (s *Session) signOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateSignedOut
	s.tasks = nil
	s.projects = nil
	for id, ch := range s.observers {
		close(ch)
		delete(s.observers, id)
	}
}

// AddTask validates and inserts a new task at the front of the collection.
// An empty project assignment falls back to the first existing project.
func (s *Session) AddTask(data domain.Task) (domain.Task, error) {
	if err := data.Validate(); err != nil {
		return domain.Task{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	t := data
	t.ID = s.newID()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Priority == "" {
		t.Priority = domain.PriorityMedium
	}
	if t.Status == "" {
		t.Status = domain.StatusTodo
	}
	if t.ProjectID == "" && len(s.projects) > 0 {
		t.ProjectID = s.projects[0].ID
	}
	t.Tags = domain.DedupeTags(t.Tags)
	t.Subtasks = append([]domain.Subtask(nil), t.Subtasks...)
	for i := range t.Subtasks {
		if t.Subtasks[i].ID == "" {
			t.Subtasks[i].ID = s.newID()
		}
	}

	s.tasks = append([]domain.Task{t}, s.tasks...)
	s.afterTaskMutation()
	return t, nil
}

// UpdateTask merges the partial update into the task. A missing id is a
// silent no-op, reported through the second return value only.
func (s *Session) UpdateTask(id string, u domain.TaskUpdate) (domain.Task, bool, error) {
	if err := u.Validate(); err != nil {
		return domain.Task{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateTaskLocked(id, u)
}

func (s *Session) updateTaskLocked(id string, u domain.TaskUpdate) (domain.Task, bool, error) {
	for i := range s.tasks {
		if s.tasks[i].ID != id {
			continue
		}
		if u.Empty() {
			// Nothing to merge; skip the UpdatedAt bump and the flush.
			return s.tasks[i], true, nil
		}
		u.Apply(&s.tasks[i], s.now())
		t := s.tasks[i]
		s.afterTaskMutation()
		return t, true, nil
	}
	return domain.Task{}, false, nil
}

// ToggleTask flips completion through the update path: done becomes todo,
// anything else becomes done. Applying it twice restores the original
// completion state.
func (s *Session) ToggleTask(id string) (domain.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID != id {
			continue
		}
		flipped := !s.tasks[i].Completed()
		t, ok, _ := s.updateTaskLocked(id, domain.TaskUpdate{Completed: &flipped})
		return t, ok
	}
	return domain.Task{}, false
}

// DeleteTask removes the task; a missing id is a silent no-op.
func (s *Session) DeleteTask(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID != id {
			continue
		}
		s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
		s.afterTaskMutation()
		return true
	}
	return false
}

// AddProject validates and appends a new project with zeroed counters.
func (s *Session) AddProject(data domain.Project) (domain.Project, error) {
	if err := data.Validate(); err != nil {
		return domain.Project{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p := domain.Project{ID: s.newID(), Name: data.Name, Color: data.Color}
	s.projects = append(s.projects, p)
	s.flushProjectsLocked()
	s.notifyLocked()
	return p, nil
}

// UpdateProject merges name and color. Counters are never settable.
func (s *Session) UpdateProject(id string, u domain.ProjectUpdate) (domain.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.projects {
		if s.projects[i].ID != id {
			continue
		}
		u.Apply(&s.projects[i])
		p := s.projects[i]
		s.flushProjectsLocked()
		s.notifyLocked()
		return p, true
	}
	return domain.Project{}, false
}

// DeleteProject removes the project and cascades deletion to every task
// assigned to it.
func (s *Session) DeleteProject(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	for i := range s.projects {
		if s.projects[i].ID == id {
			s.projects = append(s.projects[:i], s.projects[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return false
	}
	kept := s.tasks[:0:0]
	for _, t := range s.tasks {
		if t.ProjectID != id {
			kept = append(kept, t)
		}
	}
	s.tasks = kept
	s.flushProjectsLocked()
	s.afterTaskMutation()
	return true
}

// FilteredTasks returns the tasks matching the given filter, or the
// session's own filter when f is nil, preserving collection order.
func (s *Session) FilteredTasks(f *domain.FilterOptions) []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	filter := s.filter
	if f != nil {
		filter = *f
	}
	return domain.Filter(s.tasks, filter, s.now())
}

// Tasks returns a copy of the full task collection.
func (s *Session) Tasks() []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Task(nil), s.tasks...)
}

// Projects returns a copy of the project collection.
func (s *Session) Projects() []domain.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Project(nil), s.projects...)
}

// Stats derives the dashboard summary from the task collection.
func (s *Session) Stats() domain.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.ComputeStats(s.tasks, s.now())
}

// SetFilter replaces the session's active filter.
func (s *Session) SetFilter(f domain.FilterOptions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = f
}

// Filter returns the session's active filter.
func (s *Session) Filter() domain.FilterOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// SetView switches the active view mode.
func (s *Session) SetView(v domain.ViewMode) error {
	if !domain.ValidViewMode(v) {
		return &domain.ValidationError{Field: "view", Reason: "unknown value " + string(v)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = v
	return nil
}

// View returns the active view mode.
func (s *Session) View() domain.ViewMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Subscribe registers an observer for post-mutation snapshots. The returned
// cancel func must be called when the observer goes away. The channel closes
// on sign-out.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.obsSeq
	s.obsSeq++
	ch := make(chan Snapshot, 1)
	s.observers[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.observers[id]; ok {
			delete(s.observers, id)
			close(c)
		}
	}
}

// afterTaskMutation recomputes project counters, schedules the task flush
// (always) and the project flush (only when a counter moved), and notifies
// observers. Callers hold the lock.
func (s *Session) afterTaskMutation() {
	if domain.RecountProjects(s.projects, s.tasks) {
		s.flushProjectsLocked()
	}
	s.flushTasksLocked()
	s.notifyLocked()
}

func (s *Session) flushTasksLocked() {
	if s.flusher == nil {
		return
	}
	s.flusher.FlushTasks(s.userID, append([]domain.Task(nil), s.tasks...))
}

func (s *Session) flushProjectsLocked() {
	if s.flusher == nil {
		return
	}
	s.flusher.FlushProjects(s.userID, append([]domain.Project(nil), s.projects...))
}

// notifyLocked delivers the newest snapshot to every observer, replacing an
// undelivered older one rather than blocking.
func (s *Session) notifyLocked() {
	if len(s.observers) == 0 {
		return
	}
	snap := Snapshot{
		Tasks:    append([]domain.Task(nil), s.tasks...),
		Projects: append([]domain.Project(nil), s.projects...),
	}
	for _, ch := range s.observers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
