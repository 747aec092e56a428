package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yukikurage/unica-api/internal/constants"
	"github.com/yukikurage/unica-api/internal/lifecycle"
	"github.com/yukikurage/unica-api/internal/metrics"
	"github.com/yukikurage/unica-api/internal/models"
	"github.com/yukikurage/unica-api/internal/properties"
	"github.com/yukikurage/unica-api/internal/repository"
	"github.com/yukikurage/unica-api/internal/sequence"
	"github.com/yukikurage/unica-api/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrTaskNotFound       = errors.New("task not found")
	ErrInvalidTaskTitle   = errors.New("title must be 1 to 100 characters")
	ErrNoTaskIDsProvided  = errors.New("at least one task id is required")
	ErrPinLimitExceeded   = errors.New("pinned task limit reached")
	ErrCollectionNotFound = errors.New("task collection not found")
)

const maxTaskTitleLength = 100

// TaskService handles task business logic
type TaskService struct {
	taskRepo  repository.TaskRepository
	allocator *sequence.Allocator
	metrics   *metrics.Metrics
	logger    *zap.Logger
	maxPins   int
}

// NewTaskService creates a new TaskService. maxPins falls back to the default
// limit when not positive.
func NewTaskService(taskRepo repository.TaskRepository, allocator *sequence.Allocator, m *metrics.Metrics, logger *zap.Logger, maxPins int) *TaskService {
	if maxPins <= 0 {
		maxPins = constants.MaxPinnedTasks
	}
	return &TaskService{
		taskRepo:  taskRepo,
		allocator: allocator,
		metrics:   m,
		logger:    logger,
		maxPins:   maxPins,
	}
}

// CreateTaskInput represents input for creating a task
type CreateTaskInput struct {
	Title           string
	Description     string
	Properties      map[string]json.RawMessage
	LocalProperties map[string]json.RawMessage
}

// UpdateTaskInput represents input for updating a task. Property patches are
// merged; a JSON null removes a value.
type UpdateTaskInput struct {
	Title           *string
	Description     *string
	Properties      map[string]json.RawMessage
	LocalProperties map[string]json.RawMessage
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" || utf8.RuneCountInString(title) > maxTaskTitleLength {
		return "", ErrInvalidTaskTitle
	}
	return title, nil
}

// CreateTask creates a task with the next local id of the project's collection.
func (s *TaskService) CreateTask(ctx context.Context, project *models.Project, input CreateTaskInput) (*models.Task, error) {
	title, err := validateTitle(input.Title)
	if err != nil {
		return nil, err
	}

	locals, err := properties.LocalProperties{}.Apply(input.LocalProperties)
	if err != nil {
		return nil, err
	}

	task := &models.Task{
		CollectionID: project.Collection.ID,
		Title:        title,
		Description:  input.Description,
	}
	task.SetLocals(locals)

	hooks := sequence.Hooks{
		// The collection is locked here, so its definitions cannot change
		// before the insert commits.
		Before: func(tx *gorm.DB) error {
			defs, err := lockedDefinitions(repository.NewTaskRepository(tx), project.Collection.ID)
			if err != nil {
				return err
			}
			values, err := properties.Values{}.Apply(defs, input.Properties)
			if err != nil {
				return err
			}
			task.SetValues(values)
			return nil
		},
		After: func(tx *gorm.DB) error {
			return lifecycle.Touch(tx, lifecycle.Project(project.ID))
		},
	}
	if _, err := s.allocator.Create(ctx, sequence.Tasks(project.Collection.ID), task, hooks); err != nil {
		switch {
		case errors.Is(err, sequence.ErrParentNotFound), errors.Is(err, ErrCollectionNotFound):
			return nil, ErrCollectionNotFound
		case errors.Is(err, properties.ErrInvalidValue):
			return nil, err
		}
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	return task, nil
}

// ListTasks lists the live, unarchived tasks of a project.
func (s *TaskService) ListTasks(project *models.Project, page utils.PaginationParams) ([]models.Task, int64, error) {
	tasks, total, err := s.taskRepo.List(project.Collection.ID, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, total, nil
}

// GetTask returns a live task by local id.
func (s *TaskService) GetTask(project *models.Project, localID int) (*models.Task, error) {
	return findTask(s.taskRepo, project.Collection.ID, localID)
}

// UpdateTask updates the fields and property values of a task.
func (s *TaskService) UpdateTask(ctx context.Context, project *models.Project, localID int, input UpdateTaskInput) (*models.Task, error) {
	var title string
	if input.Title != nil {
		var err error
		if title, err = validateTitle(*input.Title); err != nil {
			return nil, err
		}
	}

	var updated *models.Task
	err := s.taskRepo.WithinTransaction(ctx, func(repo repository.TaskRepository) error {
		var defs properties.Definitions
		if len(input.Properties) > 0 {
			var err error
			if defs, err = lockedDefinitions(repo, project.Collection.ID); err != nil {
				return err
			}
		}

		task, err := findTask(repo, project.Collection.ID, localID)
		if err != nil {
			return err
		}

		if input.Title != nil {
			task.Title = title
		}
		if input.Description != nil {
			task.Description = *input.Description
		}
		if len(input.Properties) > 0 {
			values, err := task.Values().Apply(defs, input.Properties)
			if err != nil {
				return err
			}
			task.SetValues(values)
		}
		if len(input.LocalProperties) > 0 {
			locals, err := task.Locals().Apply(input.LocalProperties)
			if err != nil {
				return err
			}
			task.SetLocals(locals)
		}

		if err := repo.Update(task); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTaskNotFound
			}
			return fmt.Errorf("failed to update task: %w", err)
		}
		if err := repo.TouchProject(project.ID); err != nil {
			return err
		}
		updated = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SetArchived archives or restores a task.
func (s *TaskService) SetArchived(ctx context.Context, project *models.Project, localID int, archived bool) (*models.Task, error) {
	var updated *models.Task
	err := s.taskRepo.WithinTransaction(ctx, func(repo repository.TaskRepository) error {
		task, err := findTask(repo, project.Collection.ID, localID)
		if err != nil {
			return err
		}
		task.Archived = archived
		if err := repo.Update(task); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTaskNotFound
			}
			return fmt.Errorf("failed to archive task: %w", err)
		}
		updated = task
		return repo.TouchProject(project.ID)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteTasks soft deletes the live tasks among localIDs and returns how many
// were deleted. Their pins are removed.
func (s *TaskService) DeleteTasks(ctx context.Context, project *models.Project, localIDs []int) (int, error) {
	if len(localIDs) == 0 {
		return 0, ErrNoTaskIDsProvided
	}

	var deleted int
	err := s.taskRepo.WithinTransaction(ctx, func(repo repository.TaskRepository) error {
		tasks, err := repo.FindByLocalIDs(project.Collection.ID, localIDs)
		if err != nil {
			return fmt.Errorf("failed to find tasks: %w", err)
		}
		if len(tasks) == 0 {
			return ErrTaskNotFound
		}

		ids := make([]uint64, len(tasks))
		for i, task := range tasks {
			ids[i] = task.ID
		}
		if err := repo.MarkDeleted(ids); err != nil {
			return fmt.Errorf("failed to delete tasks: %w", err)
		}
		deleted = len(ids)
		return repo.TouchProject(project.ID)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Tasks deleted", zap.Uint64("project_id", project.ID), zap.Int("count", deleted))
	return deleted, nil
}

// PurgeOrphanedValues drops stored values that no current definition accepts
// and returns the number of tasks changed. The definitions are read under the
// collection lock.
func (s *TaskService) PurgeOrphanedValues(ctx context.Context, project *models.Project) (int, error) {
	var changed int
	err := s.taskRepo.WithinTransaction(ctx, func(repo repository.TaskRepository) error {
		changed = 0
		defs, err := lockedDefinitions(repo, project.Collection.ID)
		if err != nil {
			return err
		}
		tasks, err := repo.ListAll(project.Collection.ID)
		if err != nil {
			return fmt.Errorf("failed to list tasks: %w", err)
		}
		for i := range tasks {
			task := &tasks[i]
			if len(task.Values().Orphans(defs)) == 0 {
				continue
			}
			task.SetValues(task.Values().Effective(defs))
			if err := repo.Update(task); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					continue
				}
				return fmt.Errorf("failed to purge task %d: %w", task.LocalID, err)
			}
			changed++
		}
		if changed == 0 {
			return nil
		}
		return repo.TouchProject(project.ID)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Purged orphaned property values",
		zap.Uint64("project_id", project.ID),
		zap.Int("tasks", changed),
	)
	return changed, nil
}

// PinTask pins a task for a user. Pinning an already pinned task succeeds
// without changes.
func (s *TaskService) PinTask(ctx context.Context, userID uint64, project *models.Project, localID int) error {
	err := s.taskRepo.WithinTransaction(ctx, func(repo repository.TaskRepository) error {
		if err := repo.LockUserPins(userID); err != nil {
			return fmt.Errorf("failed to lock pins: %w", err)
		}
		task, err := findTask(repo, project.Collection.ID, localID)
		if err != nil {
			return err
		}

		if _, err := repo.FindPin(userID, task.ID); err == nil {
			return nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to find pin: %w", err)
		}

		count, err := repo.CountPins(userID)
		if err != nil {
			return fmt.Errorf("failed to count pins: %w", err)
		}
		if count >= int64(s.maxPins) {
			return ErrPinLimitExceeded
		}

		if err := repo.CreatePin(&models.TaskPin{UserID: userID, TaskID: task.ID}); err != nil {
			return fmt.Errorf("failed to pin task: %w", err)
		}
		return nil
	})
	if errors.Is(err, ErrPinLimitExceeded) {
		s.metrics.IncrementPinRejected()
		s.logger.Info("Pin rejected by limit", zap.Uint64("user_id", userID), zap.Int("limit", s.maxPins))
	}
	return err
}

// UnpinTask removes a pin. Unpinning a task that is not pinned succeeds.
func (s *TaskService) UnpinTask(userID uint64, project *models.Project, localID int) error {
	task, err := findTask(s.taskRepo, project.Collection.ID, localID)
	if err != nil {
		return err
	}
	if err := s.taskRepo.DeletePin(userID, task.ID); err != nil {
		return fmt.Errorf("failed to unpin task: %w", err)
	}
	return nil
}

// ListPinnedTasks lists the live tasks a user has pinned, newest pin first.
func (s *TaskService) ListPinnedTasks(userID uint64) ([]models.TaskPin, error) {
	pins, err := s.taskRepo.ListPins(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pinned tasks: %w", err)
	}
	return pins, nil
}

func lockedDefinitions(repo repository.TaskRepository, collectionID uint64) (properties.Definitions, error) {
	collection, err := repo.FindCollectionForUpdate(collectionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCollectionNotFound
		}
		return nil, fmt.Errorf("failed to lock task collection: %w", err)
	}
	return collection.Definitions(), nil
}

func findTask(repo repository.TaskRepository, collectionID uint64, localID int) (*models.Task, error) {
	task, err := repo.FindByLocalID(collectionID, localID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return task, nil
}
