package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/unica-api/internal/dto"
	apierrors "github.com/yukikurage/unica-api/internal/errors"
	"github.com/yukikurage/unica-api/internal/middleware"
	"github.com/yukikurage/unica-api/internal/services"
	"github.com/yukikurage/unica-api/internal/utils"
	"go.uber.org/zap"
)

type TaskHandler struct {
	taskService *services.TaskService
	logger      *zap.Logger
}

func NewTaskHandler(taskService *services.TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		logger:      logger,
	}
}

// ListTasks returns the live, unarchived tasks of the project
func (h *TaskHandler) ListTasks(c *gin.Context) {
	project, _ := middleware.GetProject(c)
	params := utils.GetPaginationParams(c)

	tasks, total, err := h.taskService.ListTasks(project, params)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskListResponse(tasks, project.Collection.Definitions(), params, total))
}

// GetTask returns a task by its id within the project
func (h *TaskHandler) GetTask(c *gin.Context) {
	project, _ := middleware.GetProject(c)
	localID, ok := localIDParam(c, "task_id")
	if !ok {
		return
	}

	task, err := h.taskService.GetTask(project, localID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task, project.Collection.Definitions()))
}

// CreateTask creates a task with the next id of the project
func (h *TaskHandler) CreateTask(c *gin.Context) {
	project, _ := middleware.GetProject(c)

	type CreateTaskRequest struct {
		Title           string                     `json:"title" binding:"required"`
		Description     string                     `json:"description"`
		Properties      map[string]json.RawMessage `json:"properties"`
		LocalProperties map[string]json.RawMessage `json:"local_properties"`
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), project, services.CreateTaskInput{
		Title:           req.Title,
		Description:     req.Description,
		Properties:      req.Properties,
		LocalProperties: req.LocalProperties,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTaskDTO(*task, project.Collection.Definitions()))
}

// UpdateTask updates a task. Property maps are merged and null removes a value.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	project, _ := middleware.GetProject(c)
	localID, ok := localIDParam(c, "task_id")
	if !ok {
		return
	}

	type UpdateTaskRequest struct {
		Title           *string                    `json:"title"`
		Description     *string                    `json:"description"`
		Properties      map[string]json.RawMessage `json:"properties"`
		LocalProperties map[string]json.RawMessage `json:"local_properties"`
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := h.taskService.UpdateTask(c.Request.Context(), project, localID, services.UpdateTaskInput{
		Title:           req.Title,
		Description:     req.Description,
		Properties:      req.Properties,
		LocalProperties: req.LocalProperties,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task, project.Collection.Definitions()))
}

// ArchiveTask hides a task from the task list
func (h *TaskHandler) ArchiveTask(c *gin.Context) {
	h.setArchived(c, true)
}

// UnarchiveTask brings an archived task back to the list
func (h *TaskHandler) UnarchiveTask(c *gin.Context) {
	h.setArchived(c, false)
}

func (h *TaskHandler) setArchived(c *gin.Context, archived bool) {
	project, _ := middleware.GetProject(c)
	localID, ok := localIDParam(c, "task_id")
	if !ok {
		return
	}

	task, err := h.taskService.SetArchived(c.Request.Context(), project, localID, archived)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task, project.Collection.Definitions()))
}

// DeleteTasks soft deletes a batch of tasks. Their ids are never reused.
func (h *TaskHandler) DeleteTasks(c *gin.Context) {
	project, _ := middleware.GetProject(c)

	type DeleteTasksRequest struct {
		IDs []int `json:"ids"`
	}

	var req DeleteTasksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	deleted, err := h.taskService.DeleteTasks(c.Request.Context(), project, req.IDs)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// PinTask pins a task for the caller
func (h *TaskHandler) PinTask(c *gin.Context) {
	project, _ := middleware.GetProject(c)
	userID, _ := middleware.GetUserID(c)
	localID, ok := localIDParam(c, "task_id")
	if !ok {
		return
	}

	if err := h.taskService.PinTask(c.Request.Context(), userID, project, localID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Task pinned"})
}

// UnpinTask removes the caller's pin from a task
func (h *TaskHandler) UnpinTask(c *gin.Context) {
	project, _ := middleware.GetProject(c)
	userID, _ := middleware.GetUserID(c)
	localID, ok := localIDParam(c, "task_id")
	if !ok {
		return
	}

	if err := h.taskService.UnpinTask(userID, project, localID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Task unpinned"})
}

// ListPinnedTasks lists the caller's pinned tasks across projects
func (h *TaskHandler) ListPinnedTasks(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	pins, err := h.taskService.ListPinnedTasks(userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"pinned": dto.ToPinnedTaskDTOs(pins)})
}
