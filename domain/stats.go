package domain

import "time"

// Stats summarizes the task collection for the dashboard view.
type Stats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`

	Overdue    int              `json:"overdue"`
	ByPriority map[Priority]int `json:"byPriority"`
}

// ComputeStats derives the full stats document from the task collection.
// Pending is always Total minus Completed. A task is overdue when it has a
// due date strictly before now and is not done.
func ComputeStats(tasks []Task, now time.Time) Stats {
	s := Stats{ByPriority: map[Priority]int{
		PriorityLow:    0,
		PriorityMedium: 0,
		PriorityHigh:   0,
	}}
	for _, t := range tasks {
		s.Total++
		if t.Completed() {
			s.Completed++
		} else if t.DueDate != nil && t.DueDate.Before(now) {
			s.Overdue++
		}
		if ValidPriority(t.Priority) {
			s.ByPriority[t.Priority]++
		}
	}
	s.Pending = s.Total - s.Completed
	return s
}
