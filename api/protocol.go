package api

import (
	"time"

	"taskfolio-api/domain"
	"taskfolio-api/notify"
)

const requestBodyMaxSize = 64 * 1024 // 64 KiB

type errorResponse struct {
	Error string `json:"error"`
}

type tasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
}

type projectsResponse struct {
	Projects []domain.Project `json:"projects"`
}

// createTaskRequest is the POST /api/tasks body.
type createTaskRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Priority    domain.Priority  `json:"priority"`
	Status      domain.Status    `json:"status"`
	DueDate     *time.Time       `json:"dueDate"`
	ProjectID   string           `json:"projectId"`
	Tags        []string         `json:"tags"`
	Subtasks    []domain.Subtask `json:"subtasks"`
}

func (r createTaskRequest) task() domain.Task {
	return domain.Task{
		Title:       r.Title,
		Description: r.Description,
		Priority:    r.Priority,
		Status:      r.Status,
		DueDate:     r.DueDate,
		ProjectID:   r.ProjectID,
		Tags:        r.Tags,
		Subtasks:    r.Subtasks,
	}
}

// createProjectRequest is the POST /api/projects body.
type createProjectRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type viewRequest struct {
	View domain.ViewMode `json:"view"`
}

type duplicateResponse struct {
	Duplicate bool `json:"duplicate"`
}

type scanResponse struct {
	Scheduled []notify.Reminder `json:"scheduled"`
	Count     int               `json:"count"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}
