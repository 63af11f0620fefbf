package domain

import (
	"testing"
	"time"
)

func TestRecountProjects(t *testing.T) {
	projects := []Project{
		{ID: "p1", Name: "Work", Color: "#10B981"},
		{ID: "p2", Name: "Home", Color: "#3B82F6"},
	}
	tasks := []Task{
		{ID: "t1", Title: "a", ProjectID: "p1", Status: StatusDone},
		{ID: "t2", Title: "b", ProjectID: "p1", Status: StatusTodo},
		{ID: "t3", Title: "c", ProjectID: "p2", Status: StatusInProgress},
		{ID: "t4", Title: "d", Status: StatusTodo},
	}

	if !RecountProjects(projects, tasks) {
		t.Fatal("first recount should report a change")
	}
	if projects[0].TaskCount != 2 || projects[0].CompletedTasks != 1 {
		t.Fatalf("p1 counts wrong: %+v", projects[0])
	}
	if projects[1].TaskCount != 1 || projects[1].CompletedTasks != 0 {
		t.Fatalf("p2 counts wrong: %+v", projects[1])
	}

	// Idempotent: same input, no change reported.
	if RecountProjects(projects, tasks) {
		t.Fatal("second recount must not report a change")
	}

	// Removing p1's tasks zeroes its counters.
	if !RecountProjects(projects, tasks[2:]) {
		t.Fatal("expected change after task removal")
	}
	if projects[0].TaskCount != 0 || projects[0].CompletedTasks != 0 {
		t.Fatalf("p1 not zeroed: %+v", projects[0])
	}
}

func TestProjectUpdateApply(t *testing.T) {
	p := Project{ID: "p1", Name: "Work", Color: "#10B981", TaskCount: 3, CompletedTasks: 1}
	name := "Office"
	color := "#EF4444"
	(ProjectUpdate{Name: &name, Color: &color}).Apply(&p)
	if p.Name != "Office" || p.Color != "#EF4444" {
		t.Fatalf("update not applied: %+v", p)
	}
	if p.TaskCount != 3 || p.CompletedTasks != 1 {
		t.Fatal("derived counters must not be touched by updates")
	}

	empty := ""
	(ProjectUpdate{Name: &empty}).Apply(&p)
	if p.Name != "Office" {
		t.Fatal("empty name must not overwrite")
	}
}

func TestComputeStats(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	tasks := []Task{
		{ID: "t1", Title: "a", Status: StatusDone, Priority: PriorityHigh},
		{ID: "t2", Title: "b", Status: StatusTodo, Priority: PriorityHigh, DueDate: &past},
		{ID: "t3", Title: "c", Status: StatusInProgress, Priority: PriorityLow, DueDate: &future},
		{ID: "t4", Title: "d", Status: StatusTodo, Priority: PriorityMedium},
	}

	s := ComputeStats(tasks, now)
	if s.Total != 4 || s.Completed != 1 || s.Pending != 3 {
		t.Fatalf("unexpected stats: %+v", s)
	}
	if s.Overdue != 1 {
		t.Fatalf("expected 1 overdue, got %d", s.Overdue)
	}
	if s.ByPriority[PriorityHigh] != 2 || s.ByPriority[PriorityMedium] != 1 || s.ByPriority[PriorityLow] != 1 {
		t.Fatalf("unexpected priority breakdown: %+v", s.ByPriority)
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	s := ComputeStats(nil, time.Now())
	if s.Total != 0 || s.Completed != 0 || s.Pending != 0 || s.Overdue != 0 {
		t.Fatalf("unexpected stats for empty collection: %+v", s)
	}
}
