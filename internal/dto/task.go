package dto

import (
	"time"

	"github.com/yukikurage/unica-api/internal/models"
	"github.com/yukikurage/unica-api/internal/properties"
	"github.com/yukikurage/unica-api/internal/utils"
)

// TaskDTO represents a task in API responses. Global property values whose
// definition was removed or retyped are left out.
type TaskDTO struct {
	ID              int                        `json:"id"`
	Title           string                     `json:"title"`
	Description     string                     `json:"description"`
	Archived        bool                       `json:"archived"`
	Properties      properties.Values          `json:"properties"`
	LocalProperties properties.LocalProperties `json:"local_properties"`
	CreatedAt       time.Time                  `json:"created_at"`
	UpdatedAt       time.Time                  `json:"updated_at"`
}

// TaskListResponse represents a paginated list of tasks
type TaskListResponse struct {
	Tasks      []TaskDTO                `json:"tasks"`
	Pagination utils.PaginationResponse `json:"pagination"`
}

// PinnedTaskDTO represents a pinned task of the current user
type PinnedTaskDTO struct {
	CollectionID uint64    `json:"collection_id"`
	TaskID       int       `json:"task_id"`
	Title        string    `json:"title"`
	Archived     bool      `json:"archived"`
	PinnedAt     time.Time `json:"pinned_at"`
}

// ToTaskDTO converts a Task model to TaskDTO
func ToTaskDTO(task models.Task, defs properties.Definitions) TaskDTO {
	return TaskDTO{
		ID:              task.LocalID,
		Title:           task.Title,
		Description:     task.Description,
		Archived:        task.Archived,
		Properties:      task.Values().Effective(defs),
		LocalProperties: task.Locals(),
		CreatedAt:       task.CreatedAt,
		UpdatedAt:       task.UpdatedAt,
	}
}

// ToTaskListResponse converts a page of tasks
func ToTaskListResponse(tasks []models.Task, defs properties.Definitions, params utils.PaginationParams, total int64) TaskListResponse {
	items := make([]TaskDTO, len(tasks))
	for i, task := range tasks {
		items[i] = ToTaskDTO(task, defs)
	}
	return TaskListResponse{
		Tasks:      items,
		Pagination: utils.PaginationResponse{Page: params.Page, Limit: params.Limit, Total: total},
	}
}

// ToPinnedTaskDTOs converts pins with their preloaded tasks
func ToPinnedTaskDTOs(pins []models.TaskPin) []PinnedTaskDTO {
	out := make([]PinnedTaskDTO, len(pins))
	for i, pin := range pins {
		out[i] = PinnedTaskDTO{
			CollectionID: pin.Task.CollectionID,
			TaskID:       pin.Task.LocalID,
			Title:        pin.Task.Title,
			Archived:     pin.Task.Archived,
			PinnedAt:     pin.CreatedAt,
		}
	}
	return out
}
