package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yukikurage/unica-api/internal/metrics"
	"github.com/yukikurage/unica-api/internal/models"
	"github.com/yukikurage/unica-api/internal/properties"
	"github.com/yukikurage/unica-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrPropertyNameRequired is returned when a removal names no property.
var ErrPropertyNameRequired = errors.New("property name is required")

// PropertyService manages the property definitions of task collections.
type PropertyService struct {
	projectRepo repository.ProjectRepository
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewPropertyService creates a new PropertyService.
func NewPropertyService(projectRepo repository.ProjectRepository, m *metrics.Metrics, logger *zap.Logger) *PropertyService {
	return &PropertyService{
		projectRepo: projectRepo,
		metrics:     m,
		logger:      logger,
	}
}

// UpsertDefinition validates doc and merges it into the project's definitions.
// Validation errors and type conflicts leave the stored list unchanged.
func (s *PropertyService) UpsertDefinition(ctx context.Context, project *models.Project, doc []byte) (*models.TaskCollection, error) {
	var def properties.Definition
	collection, err := s.updateDefinitions(ctx, project, func(defs properties.Definitions) (properties.Definitions, bool, error) {
		out, upserted, err := defs.UpsertDocument(doc)
		def = upserted
		return out, true, err
	})
	s.metrics.RecordPropertyChange("upsert", err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Property definition upserted",
		zap.Uint64("project_id", project.ID),
		zap.String("name", def.PropertyName()),
		zap.String("type", string(def.Kind())),
	)
	return collection, nil
}

// RemoveDefinition removes the named definition. Removing an unknown name
// succeeds and changes nothing. Stored values of the property are kept and
// ignored by readers.
func (s *PropertyService) RemoveDefinition(ctx context.Context, project *models.Project, name string) (*models.TaskCollection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrPropertyNameRequired
	}

	collection, err := s.updateDefinitions(ctx, project, func(defs properties.Definitions) (properties.Definitions, bool, error) {
		out, removed := defs.Remove(name)
		return out, removed, nil
	})
	s.metrics.RecordPropertyChange("remove", err)
	if err != nil {
		return nil, err
	}
	return collection, nil
}

func (s *PropertyService) updateDefinitions(ctx context.Context, project *models.Project, change func(properties.Definitions) (properties.Definitions, bool, error)) (*models.TaskCollection, error) {
	var updated *models.TaskCollection
	err := s.projectRepo.WithinTransaction(ctx, func(repo repository.ProjectRepository) error {
		collection, err := repo.FindCollectionForUpdate(project.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCollectionNotFound
			}
			return fmt.Errorf("failed to load task collection: %w", err)
		}

		defs, changed, err := change(collection.Definitions())
		if err != nil {
			return err
		}
		if !changed {
			updated = collection
			return nil
		}
		collection.SetDefinitions(defs)

		if err := repo.SaveCollection(collection); err != nil {
			return fmt.Errorf("failed to save property definitions: %w", err)
		}
		if err := repo.Touch(project.ID); err != nil {
			return err
		}
		updated = collection
		return nil
	})
	if err != nil {
		return nil, err
	}
	project.Collection = updated
	return updated, nil
}
