package services

import (
	"errors"
	"fmt"

	"github.com/yukikurage/unica-api/internal/models"
	"github.com/yukikurage/unica-api/internal/repository"
	"github.com/yukikurage/unica-api/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrProjectNotFound      = errors.New("project not found")
	ErrInvalidProjectName   = errors.New("project name must be 1 to 20 characters")
	ErrInvalidProjectOwner  = errors.New("owner_type must be user or organization")
	ErrNotOrganizationOwner = errors.New("only organization owners can perform this action")
	ErrProjectAccessDenied  = errors.New("user does not have access to this project")
)

// ProjectService provides business logic for projects.
type ProjectService struct {
	projectRepo repository.ProjectRepository
	orgRepo     repository.OrganizationRepository
	logger      *zap.Logger
}

// NewProjectService creates a new ProjectService.
func NewProjectService(projectRepo repository.ProjectRepository, orgRepo repository.OrganizationRepository, logger *zap.Logger) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		orgRepo:     orgRepo,
		logger:      logger,
	}
}

// CreateProjectInput represents input for creating a project
type CreateProjectInput struct {
	Name        string
	Description string
	OwnerType   models.ProjectOwnerType
	OwnerID     uint64
}

// UpdateProjectInput holds the fields to change. Nil fields are kept.
type UpdateProjectInput struct {
	Name        *string
	Description *string
}

// CreateProject creates a project and its task collection.
func (s *ProjectService) CreateProject(input CreateProjectInput) (*models.Project, error) {
	name, err := validateName(input.Name)
	if err != nil {
		return nil, ErrInvalidProjectName
	}
	if err := validateDescription(input.Description); err != nil {
		return nil, err
	}
	if input.OwnerType != models.ProjectOwnerUser && input.OwnerType != models.ProjectOwnerOrganization {
		return nil, ErrInvalidProjectOwner
	}

	project := &models.Project{
		Name:        name,
		Description: input.Description,
		OwnerType:   input.OwnerType,
		OwnerID:     input.OwnerID,
	}
	if err := s.projectRepo.Create(project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	s.logger.Info("Project created",
		zap.Uint64("project_id", project.ID),
		zap.String("owner_type", string(project.OwnerType)),
		zap.Uint64("owner_id", project.OwnerID),
	)
	return project, nil
}

// GetProject returns a project with its collection.
func (s *ProjectService) GetProject(projectID uint64) (*models.Project, error) {
	project, err := s.projectRepo.FindByID(projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to find project: %w", err)
	}
	if project.Collection == nil {
		return nil, fmt.Errorf("project %d has no task collection", project.ID)
	}
	return project, nil
}

// ListProjects lists the projects of one owner, most recently active first.
func (s *ProjectService) ListProjects(ownerType models.ProjectOwnerType, ownerID uint64, page utils.PaginationParams) ([]models.Project, int64, error) {
	projects, total, err := s.projectRepo.List(repository.ProjectFilter{
		OwnerType: ownerType,
		OwnerID:   ownerID,
		Page:      page,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, total, nil
}

// UpdateProject updates a project's name and description.
func (s *ProjectService) UpdateProject(project *models.Project, input UpdateProjectInput) (*models.Project, error) {
	if input.Name != nil {
		name, err := validateName(*input.Name)
		if err != nil {
			return nil, ErrInvalidProjectName
		}
		project.Name = name
	}
	if input.Description != nil {
		if err := validateDescription(*input.Description); err != nil {
			return nil, err
		}
		project.Description = *input.Description
	}

	if err := s.projectRepo.Update(project); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	return project, nil
}

// DeleteProject deletes a project with its collection, tasks and pins.
func (s *ProjectService) DeleteProject(projectID uint64) error {
	if err := s.projectRepo.Delete(projectID); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	s.logger.Info("Project deleted", zap.Uint64("project_id", projectID))
	return nil
}

// CheckAccess allows the owning user, or any joined member of the owning
// organization.
func (s *ProjectService) CheckAccess(project *models.Project, userID uint64) error {
	switch project.OwnerType {
	case models.ProjectOwnerUser:
		if project.OwnerID == userID {
			return nil
		}
		return ErrProjectAccessDenied
	case models.ProjectOwnerOrganization:
		member, err := s.findMember(project.OwnerID, userID)
		if err != nil {
			return err
		}
		if member.Role == models.RolePending {
			return ErrProjectAccessDenied
		}
		return nil
	}
	return ErrProjectAccessDenied
}

// CheckAdmin allows the owning user, or an Owner of the owning organization.
func (s *ProjectService) CheckAdmin(project *models.Project, userID uint64) error {
	if err := s.CheckAccess(project, userID); err != nil {
		return err
	}
	if project.OwnerType == models.ProjectOwnerUser {
		return nil
	}
	member, err := s.findMember(project.OwnerID, userID)
	if err != nil {
		return err
	}
	if member.Role != models.RoleOwner {
		return ErrNotOrganizationOwner
	}
	return nil
}

func (s *ProjectService) findMember(orgID, userID uint64) (*models.OrganizationMember, error) {
	member, err := s.orgRepo.FindMember(orgID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectAccessDenied
		}
		return nil, fmt.Errorf("failed to verify membership: %w", err)
	}
	return member, nil
}
