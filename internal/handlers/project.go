package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/unica-api/internal/dto"
	apierrors "github.com/yukikurage/unica-api/internal/errors"
	"github.com/yukikurage/unica-api/internal/middleware"
	"github.com/yukikurage/unica-api/internal/models"
	"github.com/yukikurage/unica-api/internal/services"
	"github.com/yukikurage/unica-api/internal/utils"
	"go.uber.org/zap"
)

// ProjectHandler serves projects and their property definitions.
type ProjectHandler struct {
	projectService  *services.ProjectService
	propertyService *services.PropertyService
	taskService     *services.TaskService
	logger          *zap.Logger
}

func NewProjectHandler(projectService *services.ProjectService, propertyService *services.PropertyService, taskService *services.TaskService, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{
		projectService:  projectService,
		propertyService: propertyService,
		taskService:     taskService,
		logger:          logger,
	}
}

type createProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// CreateProject creates a project owned by the caller
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}
	h.createProject(c, models.ProjectOwnerUser, userID)
}

// CreateOrganizationProject creates a project owned by the organization
// loaded by RequireOrganizationAccess
func (h *ProjectHandler) CreateOrganizationProject(c *gin.Context) {
	org, _ := middleware.GetOrganization(c)
	h.createProject(c, models.ProjectOwnerOrganization, org.ID)
}

func (h *ProjectHandler) createProject(c *gin.Context, ownerType models.ProjectOwnerType, ownerID uint64) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	project, err := h.projectService.CreateProject(services.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		OwnerType:   ownerType,
		OwnerID:     ownerID,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToProjectDetailDTO(*project))
}

// ListProjects lists the caller's own projects
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}
	h.listProjects(c, models.ProjectOwnerUser, userID)
}

// ListOrganizationProjects lists the projects of an organization
func (h *ProjectHandler) ListOrganizationProjects(c *gin.Context) {
	org, _ := middleware.GetOrganization(c)
	h.listProjects(c, models.ProjectOwnerOrganization, org.ID)
}

func (h *ProjectHandler) listProjects(c *gin.Context, ownerType models.ProjectOwnerType, ownerID uint64) {
	params := utils.GetPaginationParams(c)

	projects, total, err := h.projectService.ListProjects(ownerType, ownerID, params)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToProjectListResponse(projects, params, total))
}

// GetProject returns a project with its property definitions
func (h *ProjectHandler) GetProject(c *gin.Context) {
	project, _ := middleware.GetProject(c)
	c.JSON(http.StatusOK, dto.ToProjectDetailDTO(*project))
}

// UpdateProject updates a project's name and description
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	project, _ := middleware.GetProject(c)

	type UpdateProjectRequest struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}

	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	updated, err := h.projectService.UpdateProject(project, services.UpdateProjectInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToProjectDetailDTO(*updated))
}

// DeleteProject deletes a project with all of its tasks
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	project, _ := middleware.GetProject(c)

	if err := h.projectService.DeleteProject(project.ID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Project deleted successfully"})
}

// UpsertProperty adds or replaces one property definition. The request body
// is the definition document itself.
func (h *ProjectHandler) UpsertProperty(c *gin.Context) {
	project, _ := middleware.GetProject(c)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	collection, err := h.propertyService.UpsertDefinition(c.Request.Context(), project, body)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"properties": dto.PropertyDefinitions(collection)})
}

// RemoveProperty removes a property definition by name
func (h *ProjectHandler) RemoveProperty(c *gin.Context) {
	project, _ := middleware.GetProject(c)

	type RemovePropertyRequest struct {
		Name string `json:"name"`
	}

	var req RemovePropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	collection, err := h.propertyService.RemoveDefinition(c.Request.Context(), project, req.Name)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"properties": dto.PropertyDefinitions(collection)})
}

// PurgeOrphanedValues drops stored values that no definition matches anymore
func (h *ProjectHandler) PurgeOrphanedValues(c *gin.Context) {
	project, _ := middleware.GetProject(c)

	purged, err := h.taskService.PurgeOrphanedValues(c.Request.Context(), project)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"purged_tasks": purged})
}
