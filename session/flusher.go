package session

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"taskfolio-api/domain"
	"taskfolio-api/storage"
)

type flushJob struct {
	userID   string
	kind     storage.Kind
	tasks    []domain.Task
	projects []domain.Project
}

// FlusherConfig sizes the write-through pool. Zero fields fall back to
// defaults.
type FlusherConfig struct {
	Workers     int
	Buffer      int
	SaveTimeout time.Duration
	Handoff     time.Duration
}

func (c FlusherConfig) withDefaults() FlusherConfig {
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.Buffer <= 0 {
		c.Buffer = 1024
	}
	if c.SaveTimeout <= 0 {
		c.SaveTimeout = 30 * time.Second
	}
	if c.Handoff <= 0 {
		c.Handoff = 15 * time.Millisecond
	}
	return c
}

// Flusher persists collection snapshots asynchronously after the in-memory
// mutation has already been applied. Jobs for the same user always land on
// the same worker, so a user's writes reach storage in mutation order. A
// failed or dropped save is logged and the in-memory state stays
// authoritative; there is no retry.
type Flusher struct {
	adapter storage.Adapter
	logger  *log.Logger
	cfg     FlusherConfig
	lanes   []chan flushJob
	wg      sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewFlusher starts the worker pool.
func NewFlusher(adapter storage.Adapter, logger *log.Logger, cfg FlusherConfig) *Flusher {
	if logger == nil {
		panic("session.NewFlusher: logger is nil")
	}
	cfg = cfg.withDefaults()
	f := &Flusher{adapter: adapter, logger: logger, cfg: cfg}
	f.lanes = make([]chan flushJob, cfg.Workers)
	for i := range f.lanes {
		f.lanes[i] = make(chan flushJob, cfg.Buffer)
		f.wg.Add(1)
		go f.worker(i, f.lanes[i])
	}
	logger.Infof("flusher started, workers: %d, buffer: %d, timeout: %v", cfg.Workers, cfg.Buffer, cfg.SaveTimeout)
	return f
}

// Close stops the workers after draining queued jobs.
func (f *Flusher) Close() {
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		for _, lane := range f.lanes {
			close(lane)
		}
	}
	f.mu.Unlock()
	f.wg.Wait()
}

func (f *Flusher) worker(id int, lane <-chan flushJob) {
	defer f.wg.Done()
	for j := range lane {
		ctx, cancel := context.WithTimeout(context.Background(), f.cfg.SaveTimeout)
		var err error
		switch j.kind {
		case storage.KindTasks:
			err = f.adapter.SaveTasks(ctx, j.userID, j.tasks)
		case storage.KindProjects:
			err = f.adapter.SaveProjects(ctx, j.userID, j.projects)
		}
		cancel()
		if err != nil {
			f.logger.WithFields(log.Fields{
				"user":   j.userID,
				"kind":   j.kind,
				"worker": id,
			}).Errorf("flush failed: %v", err)
		}
	}
}

func (f *Flusher) lane(userID string) chan flushJob {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return f.lanes[int(h.Sum32())%len(f.lanes)]
}

func (f *Flusher) enqueue(j flushJob) {
	// A send can race Close during shutdown; a write lost there is no worse
	// than a failed save.
	defer func() { _ = recover() }()

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	lane := f.lane(j.userID)
	f.mu.Unlock()

	select {
	case lane <- j:
		return
	default:
	}

	timer := time.NewTimer(f.cfg.Handoff)
	defer timer.Stop()
	select {
	case lane <- j:
	case <-timer.C:
		// Dropping the write is equivalent to a failed save: logged,
		// memory stays authoritative.
		f.logger.WithFields(log.Fields{"user": j.userID, "kind": j.kind}).
			Error("flush buffer saturated, write dropped")
	}
}

// FlushTasks schedules a write of the user's task collection snapshot.
func (f *Flusher) FlushTasks(userID string, tasks []domain.Task) {
	f.enqueue(flushJob{userID: userID, kind: storage.KindTasks, tasks: tasks})
}

// FlushProjects schedules a write of the user's project collection snapshot.
func (f *Flusher) FlushProjects(userID string, projects []domain.Project) {
	f.enqueue(flushJob{userID: userID, kind: storage.KindProjects, projects: projects})
}
