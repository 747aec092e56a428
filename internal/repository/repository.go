package repository

import (
	"context"

	"github.com/yukikurage/unica-api/internal/database"
	"github.com/yukikurage/unica-api/internal/models"
	"github.com/yukikurage/unica-api/internal/utils"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(user *models.User) error

	// FindByID finds a user by ID
	FindByID(id uint64) (*models.User, error)

	// FindByUsername finds a user by username
	FindByUsername(username string) (*models.User, error)
}

// OrganizationRepository defines the interface for organization data access
type OrganizationRepository interface {
	// WithinTransaction runs fn with a repository bound to one retried transaction
	WithinTransaction(ctx context.Context, fn func(repo OrganizationRepository) error) error

	// Lock takes a row lock on the organization until the transaction ends
	Lock(id uint64) error

	// Create creates a new organization together with its first owner
	Create(org *models.Organization, owner *models.OrganizationMember) error

	// FindByID finds an organization by ID
	FindByID(id uint64) (*models.Organization, error)

	// Update updates an organization
	Update(org *models.Organization) error

	// Delete deletes an organization and everything it owns
	Delete(id uint64) error

	// AddMember adds a member or a pending invitation
	AddMember(member *models.OrganizationMember) error

	// UpdateMember saves a membership row
	UpdateMember(member *models.OrganizationMember) error

	// RemoveMember removes a member or an invitation
	RemoveMember(organizationID, userID uint64) error

	// FindMember finds a specific organization member
	FindMember(organizationID, userID uint64) (*models.OrganizationMember, error)

	// CountByRole counts the memberships of an organization with the given role
	CountByRole(organizationID uint64, role models.OrganizationRole) (int64, error)

	// ListMembersByUserID lists the memberships of a user with the given roles
	ListMembersByUserID(userID uint64, roles ...models.OrganizationRole) ([]models.OrganizationMember, error)

	// ListMembers lists the memberships of an organization with the given roles
	ListMembers(organizationID uint64, roles ...models.OrganizationRole) ([]models.OrganizationMember, error)
}

// ProjectFilter selects the projects of one owner
type ProjectFilter struct {
	OwnerType models.ProjectOwnerType
	OwnerID   uint64
	Page      utils.PaginationParams
}

// ProjectRepository defines the interface for project data access
type ProjectRepository interface {
	// WithinTransaction runs fn with a repository bound to one retried transaction
	WithinTransaction(ctx context.Context, fn func(repo ProjectRepository) error) error

	// Create creates a project together with its task collection
	Create(project *models.Project) error

	// FindByID finds a project and preloads its collection
	FindByID(id uint64) (*models.Project, error)

	// List lists projects, most recently active first
	List(filter ProjectFilter) ([]models.Project, int64, error)

	// Update updates a project
	Update(project *models.Project) error

	// Delete deletes a project, its collection, tasks and pins
	Delete(id uint64) error

	// FindCollectionForUpdate loads and locks the task collection of a project
	FindCollectionForUpdate(projectID uint64) (*models.TaskCollection, error)

	// SaveCollection persists a task collection
	SaveCollection(collection *models.TaskCollection) error

	// Touch refreshes the project's updated_at
	Touch(projectID uint64) error
}

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	// WithinTransaction runs fn with a repository bound to one retried transaction
	WithinTransaction(ctx context.Context, fn func(repo TaskRepository) error) error

	// FindByLocalID finds a live task of a collection by its local id
	FindByLocalID(collectionID uint64, localID int) (*models.Task, error)

	// FindByLocalIDs finds the live tasks of a collection with the given local ids
	FindByLocalIDs(collectionID uint64, localIDs []int) ([]models.Task, error)

	// List lists live, unarchived tasks ordered by local id
	List(collectionID uint64, params utils.PaginationParams) ([]models.Task, int64, error)

	// ListAll lists every live task of a collection
	ListAll(collectionID uint64) ([]models.Task, error)

	// FindCollectionForUpdate locks a task collection and loads it
	FindCollectionForUpdate(collectionID uint64) (*models.TaskCollection, error)

	// Update writes the editable fields of a live task. It returns
	// gorm.ErrRecordNotFound when the task has been deleted meanwhile.
	Update(task *models.Task) error

	// MarkDeleted soft deletes tasks and drops their pins
	MarkDeleted(taskIDs []uint64) error

	// TouchProject refreshes the updated_at of the project owning the tasks
	TouchProject(projectID uint64) error

	// LockUserPins serializes pin changes of one user until the transaction ends
	LockUserPins(userID uint64) error

	// CountPins counts the live tasks a user has pinned
	CountPins(userID uint64) (int64, error)

	// FindPin finds a pin
	FindPin(userID, taskID uint64) (*models.TaskPin, error)

	// CreatePin pins a task for a user
	CreatePin(pin *models.TaskPin) error

	// DeletePin unpins a task for a user
	DeletePin(userID, taskID uint64) error

	// ListPins lists a user's pins of live tasks, newest first
	ListPins(userID uint64) ([]models.TaskPin, error)
}

// DiscussionRepository defines the interface for discussion data access
type DiscussionRepository interface {
	// WithinTransaction runs fn with a repository bound to one retried transaction
	WithinTransaction(ctx context.Context, fn func(repo DiscussionRepository) error) error

	// Lock serializes category and topic allocation of a discussion until the transaction ends
	Lock(discussionID uint64) error

	// Create creates a discussion
	Create(discussion *models.Discussion) error

	// FindByOrganizationID finds the discussion of an organization
	FindByOrganizationID(organizationID uint64) (*models.Discussion, error)

	// ListCategories lists the categories of a discussion ordered by local id
	ListCategories(discussionID uint64) ([]models.DiscussionCategory, error)

	// FindCategory finds a category by its local id
	FindCategory(discussionID uint64, localID int) (*models.DiscussionCategory, error)

	// FindCategoryByNameColor finds a category by its unique (name, color) pair
	FindCategoryByNameColor(discussionID uint64, name, color string) (*models.DiscussionCategory, error)

	// CreateCategory inserts a category with a caller-chosen local id
	CreateCategory(category *models.DiscussionCategory) error

	// UpdateCategory updates a category
	UpdateCategory(category *models.DiscussionCategory) error

	// DeleteCategory deletes a category and uncategorizes its topics
	DeleteCategory(category *models.DiscussionCategory) error

	// ListTopics lists live topics, most recently active first
	ListTopics(discussionID uint64, params utils.PaginationParams) ([]models.DiscussionTopic, int64, error)

	// FindTopic finds a live topic by its local id
	FindTopic(discussionID uint64, localID int) (*models.DiscussionTopic, error)

	// UpdateTopic writes a live topic's title and category. It returns gorm.ErrRecordNotFound when the topic has been deleted meanwhile.
	UpdateTopic(topic *models.DiscussionTopic) error

	// SoftDeleteTopic marks a topic deleted
	SoftDeleteTopic(topic *models.DiscussionTopic) error

	// TouchTopic refreshes the topic's updated_at
	TouchTopic(topicID uint64) error

	// ListComments lists the live comments of a topic ordered by local id
	ListComments(topicID uint64, params utils.PaginationParams) ([]models.DiscussionComment, int64, error)

	// FindComment finds a live comment by its local id
	FindComment(topicID uint64, localID int) (*models.DiscussionComment, error)

	// UpdateComment writes a live comment's content and edited flag. It returns gorm.ErrRecordNotFound when the comment has been deleted meanwhile.
	UpdateComment(comment *models.DiscussionComment) error

	// SoftDeleteComment marks a comment deleted and touches its topic
	SoftDeleteComment(comment *models.DiscussionComment) error
}

// updateLive writes columns of model only while its row is not soft deleted,
// so an edit racing a delete can never bring the row back.
func updateLive(db *gorm.DB, table string, model any, columns ...string) error {
	result := db.Model(model).
		Scopes(database.Live(table)).
		Select(columns).
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
