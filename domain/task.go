package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Priority buckets a task for sorting and filtering.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Status is the canonical lifecycle field of a task. Completion is a
// projection of it: a task is completed exactly when its status is done.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusReview     Status = "review"
	StatusDone       Status = "done"
)

// ValidPriority reports whether p is one of the known priority values.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ValidStatus reports whether s is one of the known status values.
func ValidStatus(s Status) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusReview, StatusDone:
		return true
	}
	return false
}

// Subtask is a checklist entry nested under a task.
type Subtask struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Task represents a single to-do item owned by a user.
type Task struct {
	ID          string
	Title       string
	Description string
	Priority    Priority
	Status      Status
	DueDate     *time.Time
	ProjectID   string
	Tags        []string
	Subtasks    []Subtask
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Completed reports whether the task is done. There is no separate completed
// field to drift out of sync with the status.
func (t Task) Completed() bool { return t.Status == StatusDone }

// taskJSON is the wire and storage shape of a Task. It carries a redundant
// completed flag for clients, and tolerates older records that stored only
// the flag without a status.
type taskJSON struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Completed   bool       `json:"completed"`
	Priority    Priority   `json:"priority"`
	Status      Status     `json:"status,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	ProjectID   string     `json:"projectId,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Subtasks    []Subtask  `json:"subtasks,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (t Task) MarshalJSON() ([]byte, error) {
	return json.Marshal(taskJSON{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed(),
		Priority:    t.Priority,
		Status:      t.Status,
		DueDate:     t.DueDate,
		ProjectID:   t.ProjectID,
		Tags:        t.Tags,
		Subtasks:    t.Subtasks,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	})
}

func (t *Task) UnmarshalJSON(data []byte) error {
	var raw taskJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	status := raw.Status
	if status == "" {
		if raw.Completed {
			status = StatusDone
		} else {
			status = StatusTodo
		}
	}
	*t = Task{
		ID:          raw.ID,
		Title:       raw.Title,
		Description: raw.Description,
		Priority:    raw.Priority,
		Status:      status,
		DueDate:     raw.DueDate,
		ProjectID:   raw.ProjectID,
		Tags:        raw.Tags,
		Subtasks:    raw.Subtasks,
		CreatedAt:   raw.CreatedAt,
		UpdatedAt:   raw.UpdatedAt,
	}
	return nil
}

// TaskUpdate carries a partial update for a task. Nil fields are left
// untouched by Apply.
type TaskUpdate struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Completed   *bool      `json:"completed,omitempty"`
	Priority    *Priority  `json:"priority,omitempty"`
	Status      *Status    `json:"status,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	ClearDue    bool       `json:"clearDueDate,omitempty"`
	ProjectID   *string    `json:"projectId,omitempty"`
	Tags        *[]string  `json:"tags,omitempty"`
	Subtasks    *[]Subtask `json:"subtasks,omitempty"`
}

// Empty reports whether the update would change nothing.
func (u TaskUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Completed == nil &&
		u.Priority == nil && u.Status == nil && u.DueDate == nil && !u.ClearDue &&
		u.ProjectID == nil && u.Tags == nil && u.Subtasks == nil
}

// Apply merges the update into the task and bumps UpdatedAt. A completed flag
// in the update is translated to a status assignment (done, or back to todo)
// so the two can never diverge; an explicit status in the same update wins.
func (u TaskUpdate) Apply(t *Task, now time.Time) {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Priority != nil {
		t.Priority = *u.Priority
	}
	if u.Completed != nil {
		if *u.Completed {
			t.Status = StatusDone
		} else if t.Status == StatusDone {
			t.Status = StatusTodo
		}
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.ClearDue {
		t.DueDate = nil
	} else if u.DueDate != nil {
		due := *u.DueDate
		t.DueDate = &due
	}
	if u.ProjectID != nil {
		t.ProjectID = *u.ProjectID
	}
	if u.Tags != nil {
		t.Tags = DedupeTags(*u.Tags)
	}
	if u.Subtasks != nil {
		t.Subtasks = append([]Subtask(nil), (*u.Subtasks)...)
	}
	t.UpdatedAt = now
}

// Validate rejects updates that name unknown enum values.
func (u TaskUpdate) Validate() error {
	if u.Title != nil && *u.Title == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if u.Priority != nil && !ValidPriority(*u.Priority) {
		return &ValidationError{Field: "priority", Reason: "unknown value " + string(*u.Priority)}
	}
	if u.Status != nil && !ValidStatus(*u.Status) {
		return &ValidationError{Field: "status", Reason: "unknown value " + string(*u.Status)}
	}
	return nil
}

// DedupeTags returns tags with duplicates removed, keeping first occurrence
// order.
func DedupeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// ValidationError rejects a mutation before any state changes.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks the fields a caller controls on create.
func (t Task) Validate() error {
	if t.Title == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if t.Priority != "" && !ValidPriority(t.Priority) {
		return &ValidationError{Field: "priority", Reason: "unknown value " + string(t.Priority)}
	}
	if t.Status != "" && !ValidStatus(t.Status) {
		return &ValidationError{Field: "status", Reason: "unknown value " + string(t.Status)}
	}
	return nil
}
