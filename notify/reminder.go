// Package notify computes which task reminders are due and hands the
// rendered messages to a delivery queue. The scan is a pure walk over the
// task collection; delivery is a queue enqueue owned by the caller's storage.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"taskfolio-api/domain"
)

// Reminder describes one notification that is due for delivery.
type Reminder struct {
	UserID   string          `json:"userId"`
	TaskID   string          `json:"taskId"`
	Title    string          `json:"title"`
	Priority domain.Priority `json:"priority"`
	DueDate  time.Time       `json:"dueDate"`
	Overdue  bool            `json:"overdue"`
	Subject  string          `json:"subject"`
}

// DueReminders walks the task collection and returns a reminder for every
// incomplete task whose due date falls inside [now-window, now+window].
// Tasks without a due date never produce reminders.
func DueReminders(userID string, tasks []domain.Task, now time.Time, window time.Duration) []Reminder {
	var out []Reminder
	for _, t := range tasks {
		if t.Completed() || t.DueDate == nil {
			continue
		}
		due := *t.DueDate
		if due.Before(now.Add(-window)) || due.After(now.Add(window)) {
			continue
		}
		r := Reminder{
			UserID:   userID,
			TaskID:   t.ID,
			Title:    t.Title,
			Priority: t.Priority,
			DueDate:  due,
			Overdue:  due.Before(now),
		}
		if r.Overdue {
			r.Subject = fmt.Sprintf("Overdue: %s", t.Title)
		} else {
			r.Subject = fmt.Sprintf("Reminder: %s is due soon", t.Title)
		}
		out = append(out, r)
	}
	return out
}

// QueueSink delivers one rendered reminder message.
type QueueSink interface {
	EnqueueReminder(ctx context.Context, payload []byte) error
}

// Service runs reminder scans against a queue sink. It is injected where
// needed rather than living as a process-wide singleton.
type Service struct {
	sink   QueueSink
	logger *log.Logger
	window time.Duration
	now    func() time.Time
}

// NewService creates a reminder service scanning with the given window on
// each side of now.
func NewService(sink QueueSink, logger *log.Logger, window time.Duration) *Service {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Service{sink: sink, logger: logger, window: window, now: time.Now}
}

// Scan computes the due reminders for the user's tasks and enqueues each
// one. Individual enqueue failures are logged and skipped; the remaining
// reminders still go out. The returned slice holds everything that was
// successfully enqueued.
func (s *Service) Scan(ctx context.Context, userID string, tasks []domain.Task) ([]Reminder, error) {
	reminders := DueReminders(userID, tasks, s.now(), s.window)
	if len(reminders) == 0 {
		return nil, nil
	}
	if s.sink == nil {
		return nil, fmt.Errorf("reminder sink not configured")
	}
	sent := make([]Reminder, 0, len(reminders))
	for _, r := range reminders {
		payload, err := json.Marshal(r)
		if err != nil {
			s.logger.WithField("task", r.TaskID).Errorf("encode reminder: %v", err)
			continue
		}
		if err := s.sink.EnqueueReminder(ctx, payload); err != nil {
			s.logger.WithFields(log.Fields{"user": userID, "task": r.TaskID}).
				Errorf("enqueue reminder: %v", err)
			continue
		}
		sent = append(sent, r)
	}
	return sent, nil
}
