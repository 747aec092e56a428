package repository

import (
	"context"

	"github.com/yukikurage/unica-api/internal/database"
	"github.com/yukikurage/unica-api/internal/lifecycle"
	"github.com/yukikurage/unica-api/internal/models"
	"github.com/yukikurage/unica-api/internal/sequence"
	"github.com/yukikurage/unica-api/internal/utils"
	"gorm.io/gorm"
)

// GormDiscussionRepository is a GORM implementation of DiscussionRepository
type GormDiscussionRepository struct {
	db *gorm.DB
}

// NewDiscussionRepository creates a new DiscussionRepository
func NewDiscussionRepository(db *gorm.DB) DiscussionRepository {
	return &GormDiscussionRepository{db: db}
}

// WithinTransaction runs fn inside a retried transaction
func (r *GormDiscussionRepository) WithinTransaction(ctx context.Context, fn func(repo DiscussionRepository) error) error {
	return database.Transact(ctx, r.db, func(tx *gorm.DB) error {
		return fn(&GormDiscussionRepository{db: tx})
	})
}

// Lock locks the discussion row
func (r *GormDiscussionRepository) Lock(discussionID uint64) error {
	return sequence.Lock(r.db, sequence.Categories(discussionID))
}

// Create creates a discussion
func (r *GormDiscussionRepository) Create(discussion *models.Discussion) error {
	return r.db.Create(discussion).Error
}

// FindByOrganizationID finds the discussion of an organization
func (r *GormDiscussionRepository) FindByOrganizationID(organizationID uint64) (*models.Discussion, error) {
	var discussion models.Discussion
	if err := r.db.Where("organization_id = ?", organizationID).First(&discussion).Error; err != nil {
		return nil, err
	}
	return &discussion, nil
}

// ListCategories lists categories ordered by local id
func (r *GormDiscussionRepository) ListCategories(discussionID uint64) ([]models.DiscussionCategory, error) {
	var categories []models.DiscussionCategory
	if err := r.db.Where("discussion_id = ?", discussionID).
		Order("local_id").
		Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// FindCategory finds a category by local id
func (r *GormDiscussionRepository) FindCategory(discussionID uint64, localID int) (*models.DiscussionCategory, error) {
	var category models.DiscussionCategory
	if err := r.db.Where("discussion_id = ? AND local_id = ?", discussionID, localID).
		First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// FindCategoryByNameColor finds a category by name and color
func (r *GormDiscussionRepository) FindCategoryByNameColor(discussionID uint64, name, color string) (*models.DiscussionCategory, error) {
	var category models.DiscussionCategory
	if err := r.db.Where("discussion_id = ? AND name = ? AND color = ?", discussionID, name, color).
		First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// CreateCategory creates a category
func (r *GormDiscussionRepository) CreateCategory(category *models.DiscussionCategory) error {
	return r.db.Create(category).Error
}

// UpdateCategory updates a category
func (r *GormDiscussionRepository) UpdateCategory(category *models.DiscussionCategory) error {
	return r.db.Save(category).Error
}

// DeleteCategory deletes a category. Its topics become uncategorized.
func (r *GormDiscussionRepository) DeleteCategory(category *models.DiscussionCategory) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.DiscussionTopic{}).
			Where("category_id = ?", category.ID).
			UpdateColumn("category_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.DiscussionCategory{}, category.ID).Error
	})
}

// ListTopics lists live topics, most recently active first
func (r *GormDiscussionRepository) ListTopics(discussionID uint64, params utils.PaginationParams) ([]models.DiscussionTopic, int64, error) {
	query := r.db.Model(&models.DiscussionTopic{}).
		Scopes(database.Live("discussion_topics")).
		Where("discussion_id = ?", discussionID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var topics []models.DiscussionTopic
	if err := query.Preload("Category").
		Order("updated_at DESC").
		Order("local_id DESC").
		Scopes(database.Paginate(params)).
		Find(&topics).Error; err != nil {
		return nil, 0, err
	}
	return topics, total, nil
}

// FindTopic finds a live topic by local id
func (r *GormDiscussionRepository) FindTopic(discussionID uint64, localID int) (*models.DiscussionTopic, error) {
	var topic models.DiscussionTopic
	if err := r.db.Preload("Category").
		Scopes(database.Live("discussion_topics")).
		Where("discussion_id = ? AND local_id = ?", discussionID, localID).
		First(&topic).Error; err != nil {
		return nil, err
	}
	return &topic, nil
}

// UpdateTopic writes a live topic's title and category
func (r *GormDiscussionRepository) UpdateTopic(topic *models.DiscussionTopic) error {
	return updateLive(r.db, "discussion_topics", topic, "title", "category_id", "updated_at")
}

// SoftDeleteTopic marks a topic deleted
func (r *GormDiscussionRepository) SoftDeleteTopic(topic *models.DiscussionTopic) error {
	return lifecycle.SoftDelete(r.db, &models.DiscussionTopic{ID: topic.ID})
}

// TouchTopic refreshes the topic's updated_at
func (r *GormDiscussionRepository) TouchTopic(topicID uint64) error {
	return lifecycle.Touch(r.db, lifecycle.Topic(topicID))
}

// ListComments lists live comments ordered by local id
func (r *GormDiscussionRepository) ListComments(topicID uint64, params utils.PaginationParams) ([]models.DiscussionComment, int64, error) {
	query := r.db.Model(&models.DiscussionComment{}).
		Scopes(database.Live("discussion_comments")).
		Where("topic_id = ?", topicID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var comments []models.DiscussionComment
	if err := query.Order("local_id").
		Scopes(database.Paginate(params)).
		Find(&comments).Error; err != nil {
		return nil, 0, err
	}
	return comments, total, nil
}

// FindComment finds a live comment by local id
func (r *GormDiscussionRepository) FindComment(topicID uint64, localID int) (*models.DiscussionComment, error) {
	var comment models.DiscussionComment
	if err := r.db.Scopes(database.Live("discussion_comments")).
		Where("topic_id = ? AND local_id = ?", topicID, localID).
		First(&comment).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

// UpdateComment writes a live comment's content and edited flag
func (r *GormDiscussionRepository) UpdateComment(comment *models.DiscussionComment) error {
	return updateLive(r.db, "discussion_comments", comment, "content", "edited", "updated_at")
}

// SoftDeleteComment marks a comment deleted and touches its topic
func (r *GormDiscussionRepository) SoftDeleteComment(comment *models.DiscussionComment) error {
	return lifecycle.SoftDelete(r.db, &models.DiscussionComment{ID: comment.ID}, lifecycle.Topic(comment.TopicID))
}
