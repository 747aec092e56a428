package middleware

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/unica-api/internal/constants"
	apierrors "github.com/yukikurage/unica-api/internal/errors"
	"github.com/yukikurage/unica-api/internal/models"
	"github.com/yukikurage/unica-api/internal/services"
	"go.uber.org/zap"
)

// RequireProjectAccess checks if the user can see the project named by the
// :id parameter and stores it, with its task collection, in the context.
func RequireProjectAccess(projectService *services.ProjectService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid project ID")
			c.Abort()
			return
		}

		userID, exists := GetUserID(c)
		if !exists {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		project, err := projectService.GetProject(projectID)
		if err != nil {
			abortLookup(c, logger, err, services.ErrProjectNotFound, "Project not found")
			return
		}

		if err := projectService.CheckAccess(project, userID); err != nil {
			// Return 404 instead of 403 to avoid leaking project existence
			abortLookup(c, logger, err, services.ErrProjectAccessDenied, "Project not found")
			return
		}

		c.Set(constants.ContextKeyProject, project)
		c.Next()
	}
}

// RequireProjectAdmin checks if the user may administer the project loaded
// by RequireProjectAccess.
func RequireProjectAdmin(projectService *services.ProjectService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		project, ok := GetProject(c)
		if !ok {
			apierrors.Forbidden(c, "Project access required")
			c.Abort()
			return
		}
		userID, _ := GetUserID(c)

		if err := projectService.CheckAdmin(project, userID); err != nil {
			if errors.Is(err, services.ErrNotOrganizationOwner) || errors.Is(err, services.ErrProjectAccessDenied) {
				apierrors.Forbidden(c, err.Error())
			} else {
				logger.Error("Project admin check failed", zap.Uint64("project_id", project.ID), zap.Error(err))
				apierrors.InternalError(c, "")
			}
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetProject returns the project loaded by RequireProjectAccess.
func GetProject(c *gin.Context) (*models.Project, bool) {
	v, exists := c.Get(constants.ContextKeyProject)
	if !exists {
		return nil, false
	}
	project, ok := v.(*models.Project)
	return project, ok
}
