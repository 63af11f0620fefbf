package domain

// Project is a named, colored grouping of tasks. TaskCount and
// CompletedTasks are derived from the task collection and never settable by
// callers.
type Project struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Color          string `json:"color"`
	TaskCount      int    `json:"taskCount"`
	CompletedTasks int    `json:"completedTasks"`
}

// Validate checks the caller-controlled fields on create.
func (p Project) Validate() error {
	if p.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	return nil
}

// ProjectUpdate carries a partial update for a project. Only name and color
// are externally settable.
type ProjectUpdate struct {
	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`
}

// Apply merges the update into the project.
func (u ProjectUpdate) Apply(p *Project) {
	if u.Name != nil && *u.Name != "" {
		p.Name = *u.Name
	}
	if u.Color != nil && *u.Color != "" {
		p.Color = *u.Color
	}
}

// RecountProjects recomputes the derived counters of every project from the
// task collection. It reports whether any counter actually changed so
// callers can skip persistence and notification when nothing moved.
func RecountProjects(projects []Project, tasks []Task) bool {
	changed := false
	for i := range projects {
		total, done := 0, 0
		for _, t := range tasks {
			if t.ProjectID != projects[i].ID {
				continue
			}
			total++
			if t.Completed() {
				done++
			}
		}
		if projects[i].TaskCount != total || projects[i].CompletedTasks != done {
			projects[i].TaskCount = total
			projects[i].CompletedTasks = done
			changed = true
		}
	}
	return changed
}
