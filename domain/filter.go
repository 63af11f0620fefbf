package domain

import (
	"strings"
	"time"
)

// PriorityFilter narrows tasks by priority; FilterAll disables the criterion.
const FilterAll = "all"

// StatusFilter values beyond FilterAll.
const (
	StatusFilterPending   = "pending"
	StatusFilterCompleted = "completed"
)

// DateRange values beyond FilterAll. All windows look forward from now;
// overdue tasks fall outside them. That mirrors the product behavior and is
// deliberate, see DESIGN.md.
const (
	DateRangeToday = "today"
	DateRangeWeek  = "week"
	DateRangeMonth = "month"
)

// ViewMode selects which board presentation a client renders. The server
// only stores it per session.
type ViewMode string

const (
	ViewDashboard ViewMode = "dashboard"
	ViewList      ViewMode = "list"
	ViewKanban    ViewMode = "kanban"
	ViewCalendar  ViewMode = "calendar"
)

// ValidViewMode reports whether v is a known view mode.
func ValidViewMode(v ViewMode) bool {
	switch v {
	case ViewDashboard, ViewList, ViewKanban, ViewCalendar:
		return true
	}
	return false
}

// FilterOptions is the ephemeral set of view-narrowing criteria. The zero
// value of every field means "all".
type FilterOptions struct {
	Search    string `json:"search"`
	Priority  string `json:"priority"`
	Project   string `json:"project"`
	Status    string `json:"status"`
	DateRange string `json:"dateRange"`
}

// Unfiltered is the filter that matches every task.
func Unfiltered() FilterOptions {
	return FilterOptions{Priority: FilterAll, Project: FilterAll, Status: FilterAll, DateRange: FilterAll}
}

func active(criterion string) bool {
	return criterion != "" && criterion != FilterAll
}

// Matches evaluates all five criteria against the task, ANDed. now anchors
// the date-range windows.
func Matches(t Task, f FilterOptions, now time.Time) bool {
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(t.Title), needle) &&
			!strings.Contains(strings.ToLower(t.Description), needle) {
			return false
		}
	}
	if active(f.Priority) && f.Priority != string(t.Priority) {
		return false
	}
	if active(f.Project) && f.Project != t.ProjectID {
		return false
	}
	if active(f.Status) {
		switch f.Status {
		case StatusFilterCompleted:
			if !t.Completed() {
				return false
			}
		case StatusFilterPending:
			if t.Completed() {
				return false
			}
		}
	}
	if active(f.DateRange) && t.DueDate != nil {
		if !inDateRange(*t.DueDate, f.DateRange, now) {
			return false
		}
	}
	return true
}

func inDateRange(due time.Time, dateRange string, now time.Time) bool {
	switch dateRange {
	case DateRangeToday:
		y1, m1, d1 := due.Date()
		y2, m2, d2 := now.Date()
		return y1 == y2 && m1 == m2 && d1 == d2
	case DateRangeWeek:
		return !due.Before(now) && !due.After(now.AddDate(0, 0, 7))
	case DateRangeMonth:
		return !due.Before(now) && !due.After(now.AddDate(0, 0, 30))
	}
	return true
}

// Filter returns the tasks matching f, preserving collection order.
func Filter(tasks []Task, f FilterOptions, now time.Time) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if Matches(t, f, now) {
			out = append(out, t)
		}
	}
	return out
}
