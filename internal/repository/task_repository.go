package repository

import (
	"context"

	"github.com/yukikurage/unica-api/internal/database"
	"github.com/yukikurage/unica-api/internal/lifecycle"
	"github.com/yukikurage/unica-api/internal/models"
	"github.com/yukikurage/unica-api/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

// WithinTransaction runs fn inside a retried transaction
func (r *GormTaskRepository) WithinTransaction(ctx context.Context, fn func(repo TaskRepository) error) error {
	return database.Transact(ctx, r.db, func(tx *gorm.DB) error {
		return fn(&GormTaskRepository{db: tx})
	})
}

// FindByLocalID finds a live task by its local id
func (r *GormTaskRepository) FindByLocalID(collectionID uint64, localID int) (*models.Task, error) {
	var task models.Task
	if err := r.db.Scopes(database.Live("tasks")).
		Where("collection_id = ? AND local_id = ?", collectionID, localID).
		First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// FindByLocalIDs finds the live tasks with the given local ids
func (r *GormTaskRepository) FindByLocalIDs(collectionID uint64, localIDs []int) ([]models.Task, error) {
	var tasks []models.Task
	if len(localIDs) == 0 {
		return tasks, nil
	}
	if err := r.db.Scopes(database.Live("tasks")).
		Where("collection_id = ? AND local_id IN ?", collectionID, localIDs).
		Order("local_id").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// List retrieves live, unarchived tasks with pagination
func (r *GormTaskRepository) List(collectionID uint64, params utils.PaginationParams) ([]models.Task, int64, error) {
	query := r.db.Model(&models.Task{}).
		Scopes(database.Live("tasks")).
		Where("collection_id = ? AND archived = ?", collectionID, false)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tasks []models.Task
	if err := query.Order("local_id").
		Scopes(database.Paginate(params)).
		Find(&tasks).Error; err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// ListAll lists every live task of a collection, archived ones included
func (r *GormTaskRepository) ListAll(collectionID uint64) ([]models.Task, error) {
	var tasks []models.Task
	if err := r.db.Scopes(database.Live("tasks")).
		Where("collection_id = ?", collectionID).
		Order("local_id").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// FindCollectionForUpdate locks a task collection and loads it
func (r *GormTaskRepository) FindCollectionForUpdate(collectionID uint64) (*models.TaskCollection, error) {
	if err := database.LockRow(r.db, "task_collections", collectionID); err != nil {
		return nil, err
	}
	var collection models.TaskCollection
	if err := r.db.First(&collection, collectionID).Error; err != nil {
		return nil, err
	}
	return &collection, nil
}

// Update writes the editable fields of a live task
func (r *GormTaskRepository) Update(task *models.Task) error {
	return updateLive(r.db, "tasks", task,
		"title", "description", "archived", "global_properties", "local_properties", "updated_at")
}

// MarkDeleted soft deletes tasks and removes their pins
func (r *GormTaskRepository) MarkDeleted(taskIDs []uint64) error {
	if len(taskIDs) == 0 {
		return nil
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id IN ?", taskIDs).Delete(&models.TaskPin{}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Task{}).
			Where("id IN ?", taskIDs).
			Update("deleted", true).Error
	})
}

// TouchProject refreshes the project's updated_at
func (r *GormTaskRepository) TouchProject(projectID uint64) error {
	return lifecycle.Touch(r.db, lifecycle.Project(projectID))
}

// LockUserPins locks the user row that guards the user's pinned set
func (r *GormTaskRepository) LockUserPins(userID uint64) error {
	return database.LockRow(r.db, "users", userID)
}

// CountPins counts a user's pins of live tasks
func (r *GormTaskRepository) CountPins(userID uint64) (int64, error) {
	var count int64
	err := r.db.Model(&models.TaskPin{}).
		Joins("JOIN tasks ON tasks.id = task_pins.task_id").
		Where("task_pins.user_id = ? AND tasks.deleted = ?", userID, false).
		Count(&count).Error
	return count, err
}

// FindPin finds a specific pin
func (r *GormTaskRepository) FindPin(userID, taskID uint64) (*models.TaskPin, error) {
	var pin models.TaskPin
	if err := r.db.Where("user_id = ? AND task_id = ?", userID, taskID).
		First(&pin).Error; err != nil {
		return nil, err
	}
	return &pin, nil
}

// CreatePin creates a pin
func (r *GormTaskRepository) CreatePin(pin *models.TaskPin) error {
	return r.db.Omit(clause.Associations).Create(pin).Error
}

// DeletePin deletes a pin
func (r *GormTaskRepository) DeletePin(userID, taskID uint64) error {
	return r.db.Where("user_id = ? AND task_id = ?", userID, taskID).
		Delete(&models.TaskPin{}).Error
}

// ListPins lists a user's pins with their tasks
func (r *GormTaskRepository) ListPins(userID uint64) ([]models.TaskPin, error) {
	var pins []models.TaskPin
	if err := r.db.Preload("Task").
		Joins("JOIN tasks ON tasks.id = task_pins.task_id").
		Where("task_pins.user_id = ? AND tasks.deleted = ?", userID, false).
		Order("task_pins.created_at DESC").
		Find(&pins).Error; err != nil {
		return nil, err
	}
	return pins, nil
}
