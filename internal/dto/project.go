package dto

import (
	"time"

	"github.com/yukikurage/unica-api/internal/models"
	"github.com/yukikurage/unica-api/internal/properties"
	"github.com/yukikurage/unica-api/internal/utils"
)

// ProjectDTO represents a project in API responses
type ProjectDTO struct {
	ID          uint64                  `json:"id"`
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	OwnerType   models.ProjectOwnerType `json:"owner_type"`
	OwnerID     uint64                  `json:"owner_id"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// ProjectDetailDTO adds the task property definitions
type ProjectDetailDTO struct {
	ProjectDTO
	Properties properties.Definitions `json:"properties"`
}

// ProjectListResponse represents a paginated list of projects
type ProjectListResponse struct {
	Projects   []ProjectDTO             `json:"projects"`
	Pagination utils.PaginationResponse `json:"pagination"`
}

// ToProjectDTO converts a Project model to ProjectDTO
func ToProjectDTO(project models.Project) ProjectDTO {
	return ProjectDTO{
		ID:          project.ID,
		Name:        project.Name,
		Description: project.Description,
		OwnerType:   project.OwnerType,
		OwnerID:     project.OwnerID,
		CreatedAt:   project.CreatedAt,
		UpdatedAt:   project.UpdatedAt,
	}
}

// ToProjectDetailDTO converts a project with its collection
func ToProjectDetailDTO(project models.Project) ProjectDetailDTO {
	dto := ProjectDetailDTO{ProjectDTO: ToProjectDTO(project), Properties: properties.Definitions{}}
	if project.Collection != nil {
		dto.Properties = PropertyDefinitions(project.Collection)
	}
	return dto
}

// PropertyDefinitions returns the definitions of a collection, never nil
func PropertyDefinitions(collection *models.TaskCollection) properties.Definitions {
	if defs := collection.Definitions(); defs != nil {
		return defs
	}
	return properties.Definitions{}
}

// ToProjectListResponse converts a page of projects
func ToProjectListResponse(projects []models.Project, params utils.PaginationParams, total int64) ProjectListResponse {
	items := make([]ProjectDTO, len(projects))
	for i, project := range projects {
		items[i] = ToProjectDTO(project)
	}
	return ProjectListResponse{
		Projects:   items,
		Pagination: utils.PaginationResponse{Page: params.Page, Limit: params.Limit, Total: total},
	}
}
