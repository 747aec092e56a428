package repository

import (
	"context"

	"github.com/yukikurage/unica-api/internal/database"
	"github.com/yukikurage/unica-api/internal/lifecycle"
	"github.com/yukikurage/unica-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProjectRepository is a GORM implementation of ProjectRepository
type GormProjectRepository struct {
	db *gorm.DB
}

// NewProjectRepository creates a new ProjectRepository
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &GormProjectRepository{db: db}
}

// WithinTransaction runs fn inside a retried transaction
func (r *GormProjectRepository) WithinTransaction(ctx context.Context, fn func(repo ProjectRepository) error) error {
	return database.Transact(ctx, r.db, func(tx *gorm.DB) error {
		return fn(&GormProjectRepository{db: tx})
	})
}

// Create inserts the project and its collection in one transaction
func (r *GormProjectRepository) Create(project *models.Project) error {
	if project.Collection == nil {
		project.Collection = &models.TaskCollection{}
	}
	if project.Collection.GlobalProperties.Data() == nil {
		project.Collection.SetDefinitions(nil)
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(project).Error
	})
}

// FindByID finds a project by ID
func (r *GormProjectRepository) FindByID(id uint64) (*models.Project, error) {
	var project models.Project
	if err := r.db.Preload("Collection").First(&project, id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// List retrieves the projects of one owner with pagination
func (r *GormProjectRepository) List(filter ProjectFilter) ([]models.Project, int64, error) {
	query := r.db.Model(&models.Project{}).
		Where("owner_type = ? AND owner_id = ?", filter.OwnerType, filter.OwnerID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var projects []models.Project
	if err := query.
		Order("updated_at DESC").
		Order("id DESC").
		Scopes(database.Paginate(filter.Page)).
		Find(&projects).Error; err != nil {
		return nil, 0, err
	}
	return projects, total, nil
}

// Update updates a project
func (r *GormProjectRepository) Update(project *models.Project) error {
	return r.db.Omit(clause.Associations).Save(project).Error
}

// Delete deletes a project and everything stored in its collection
func (r *GormProjectRepository) Delete(id uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return deleteProjects(tx, []uint64{id})
	})
}

// FindCollectionForUpdate loads the collection of a project under a row lock
func (r *GormProjectRepository) FindCollectionForUpdate(projectID uint64) (*models.TaskCollection, error) {
	if err := database.LockWhere(r.db, "task_collections", "project_id = ?", projectID); err != nil {
		return nil, err
	}
	var collection models.TaskCollection
	if err := r.db.Where("project_id = ?", projectID).First(&collection).Error; err != nil {
		return nil, err
	}
	return &collection, nil
}

// SaveCollection saves a task collection
func (r *GormProjectRepository) SaveCollection(collection *models.TaskCollection) error {
	return r.db.Omit(clause.Associations).Save(collection).Error
}

// Touch refreshes the project's updated_at
func (r *GormProjectRepository) Touch(projectID uint64) error {
	return lifecycle.Touch(r.db, lifecycle.Project(projectID))
}

func deleteProjects(tx *gorm.DB, projectIDs []uint64) error {
	if len(projectIDs) == 0 {
		return nil
	}

	collections := tx.Model(&models.TaskCollection{}).Select("id").Where("project_id IN ?", projectIDs)
	tasks := tx.Model(&models.Task{}).Select("id").Where("collection_id IN (?)", collections)

	if err := tx.Where("task_id IN (?)", tasks).Delete(&models.TaskPin{}).Error; err != nil {
		return err
	}
	if err := tx.Where("collection_id IN (?)", collections).Delete(&models.Task{}).Error; err != nil {
		return err
	}
	if err := tx.Where("project_id IN ?", projectIDs).Delete(&models.TaskCollection{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", projectIDs).Delete(&models.Project{}).Error
}
