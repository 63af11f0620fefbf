package domain

import (
	"testing"
	"time"
)

func datePtr(t time.Time) *time.Time { return &t }

func TestMatchesCriteria(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	task := Task{
		ID:          "t1",
		Title:       "Buy milk",
		Description: "Two liters, whole",
		Priority:    PriorityHigh,
		Status:      StatusTodo,
		ProjectID:   "p1",
		DueDate:     datePtr(now.Add(2 * time.Hour)),
	}

	tests := []struct {
		name   string
		filter FilterOptions
		want   bool
	}{
		{name: "unfiltered", filter: Unfiltered(), want: true},
		{name: "zero value means all", filter: FilterOptions{}, want: true},
		{name: "search in title", filter: FilterOptions{Search: "MILK"}, want: true},
		{name: "search in description", filter: FilterOptions{Search: "liters"}, want: true},
		{name: "search miss", filter: FilterOptions{Search: "dentist"}, want: false},
		{name: "priority match", filter: FilterOptions{Priority: "high"}, want: true},
		{name: "priority miss", filter: FilterOptions{Priority: "low"}, want: false},
		{name: "project match", filter: FilterOptions{Project: "p1"}, want: true},
		{name: "project miss", filter: FilterOptions{Project: "p2"}, want: false},
		{name: "pending matches incomplete", filter: FilterOptions{Status: StatusFilterPending}, want: true},
		{name: "completed misses incomplete", filter: FilterOptions{Status: StatusFilterCompleted}, want: false},
		{name: "due today", filter: FilterOptions{DateRange: DateRangeToday}, want: true},
		{name: "due this week", filter: FilterOptions{DateRange: DateRangeWeek}, want: true},
		{name: "due this month", filter: FilterOptions{DateRange: DateRangeMonth}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(task, tt.filter, now); got != tt.want {
				t.Fatalf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchesCompletedStatus(t *testing.T) {
	now := time.Now()
	done := Task{ID: "t1", Title: "done", Status: StatusDone}
	if !Matches(done, FilterOptions{Status: StatusFilterCompleted}, now) {
		t.Fatal("completed filter should match a done task")
	}
	if Matches(done, FilterOptions{Status: StatusFilterPending}, now) {
		t.Fatal("pending filter should not match a done task")
	}
	// Richer states still count as pending.
	review := Task{ID: "t2", Title: "review", Status: StatusReview}
	if !Matches(review, FilterOptions{Status: StatusFilterPending}, now) {
		t.Fatal("pending filter should match a task in review")
	}
}

// The date windows look forward only: an overdue task does not match
// today/week/month. Deliberate, see DESIGN.md.
func TestDateRangeWindowsExcludeOverdue(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	overdue := Task{ID: "t1", Title: "late", DueDate: datePtr(now.AddDate(0, 0, -1))}

	for _, dateRange := range []string{DateRangeToday, DateRangeWeek, DateRangeMonth} {
		if Matches(overdue, FilterOptions{DateRange: dateRange}, now) {
			t.Fatalf("overdue task matched dateRange %q", dateRange)
		}
	}
}

func TestDateRangeBoundaries(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		due       time.Time
		dateRange string
		want      bool
	}{
		{name: "later today", due: now.Add(8 * time.Hour), dateRange: DateRangeToday, want: true},
		{name: "tomorrow not today", due: now.AddDate(0, 0, 1), dateRange: DateRangeToday, want: false},
		{name: "six days out in week", due: now.AddDate(0, 0, 6), dateRange: DateRangeWeek, want: true},
		{name: "eight days out not week", due: now.AddDate(0, 0, 8), dateRange: DateRangeWeek, want: false},
		{name: "29 days out in month", due: now.AddDate(0, 0, 29), dateRange: DateRangeMonth, want: true},
		{name: "31 days out not month", due: now.AddDate(0, 0, 31), dateRange: DateRangeMonth, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := Task{ID: "t", Title: "t", DueDate: datePtr(tt.due)}
			if got := Matches(task, FilterOptions{DateRange: tt.dateRange}, now); got != tt.want {
				t.Fatalf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNoDueDateMatchesAnyRange(t *testing.T) {
	task := Task{ID: "t1", Title: "no due"}
	if !Matches(task, FilterOptions{DateRange: DateRangeWeek}, time.Now()) {
		t.Fatal("task without due date should match any date range")
	}
}

func TestFilterPreservesOrder(t *testing.T) {
	now := time.Now()
	tasks := []Task{
		{ID: "a", Title: "alpha"},
		{ID: "b", Title: "beta"},
		{ID: "c", Title: "alpha again"},
	}
	got := Filter(tasks, Unfiltered(), now)
	if len(got) != 3 {
		t.Fatalf("expected all tasks, got %d", len(got))
	}
	for i, id := range []string{"a", "b", "c"} {
		if got[i].ID != id {
			t.Fatalf("order not preserved: got[%d].ID = %s", i, got[i].ID)
		}
	}

	matched := Filter(tasks, FilterOptions{Search: "alpha"}, now)
	if len(matched) != 2 || matched[0].ID != "a" || matched[1].ID != "c" {
		t.Fatalf("unexpected filtered set: %#v", matched)
	}
}
