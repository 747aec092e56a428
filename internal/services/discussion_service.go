package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yukikurage/unica-api/internal/categories"
	"github.com/yukikurage/unica-api/internal/models"
	"github.com/yukikurage/unica-api/internal/repository"
	"github.com/yukikurage/unica-api/internal/sequence"
	"github.com/yukikurage/unica-api/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrDiscussionNotFound       = errors.New("discussion is not enabled for this organization")
	ErrDiscussionAlreadyEnabled = errors.New("discussion is already enabled")
	ErrCategoryNotFound         = errors.New("category not found")
	ErrCategoryExists           = errors.New("a category with this name and color already exists")
	ErrTopicNotFound            = errors.New("topic not found")
	ErrInvalidTopicTitle        = errors.New("title must be 1 to 40 characters")
	ErrCommentNotFound          = errors.New("comment not found")
	ErrCommentRequired          = errors.New("content is required")
	ErrNotCommentAuthor         = errors.New("only the author can edit this comment")
)

const maxTopicTitleLength = 40

// DiscussionService handles the forum of an organization.
type DiscussionService struct {
	discussionRepo repository.DiscussionRepository
	allocator      *sequence.Allocator
	logger         *zap.Logger
}

// NewDiscussionService creates a new DiscussionService.
func NewDiscussionService(discussionRepo repository.DiscussionRepository, allocator *sequence.Allocator, logger *zap.Logger) *DiscussionService {
	return &DiscussionService{
		discussionRepo: discussionRepo,
		allocator:      allocator,
		logger:         logger,
	}
}

// EnableDiscussion creates the discussion of an organization.
func (s *DiscussionService) EnableDiscussion(orgID uint64) (*models.Discussion, error) {
	if _, err := s.discussionRepo.FindByOrganizationID(orgID); err == nil {
		return nil, ErrDiscussionAlreadyEnabled
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to find discussion: %w", err)
	}

	discussion := &models.Discussion{OrganizationID: orgID}
	if err := s.discussionRepo.Create(discussion); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDiscussionAlreadyEnabled
		}
		return nil, fmt.Errorf("failed to enable discussion: %w", err)
	}

	s.logger.Info("Discussion enabled", zap.Uint64("organization_id", orgID))
	return discussion, nil
}

// GetDiscussion returns the discussion of an organization.
func (s *DiscussionService) GetDiscussion(orgID uint64) (*models.Discussion, error) {
	discussion, err := s.discussionRepo.FindByOrganizationID(orgID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDiscussionNotFound
		}
		return nil, fmt.Errorf("failed to find discussion: %w", err)
	}
	return discussion, nil
}

// ListCategories lists the categories of a discussion.
func (s *DiscussionService) ListCategories(discussion *models.Discussion) ([]models.DiscussionCategory, error) {
	list, err := s.discussionRepo.ListCategories(discussion.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return list, nil
}

// CreateCategory adds a category with the next local id of the discussion.
func (s *DiscussionService) CreateCategory(ctx context.Context, discussion *models.Discussion, fields categories.Fields) (*models.DiscussionCategory, error) {
	if err := categories.ValidateFields(fields); err != nil {
		return nil, err
	}

	category := &models.DiscussionCategory{
		DiscussionID: discussion.ID,
		Name:         fields.Name,
		Color:        fields.Color,
		Emoji:        fields.Emoji,
		Description:  fields.Description,
	}
	unique := func(tx *gorm.DB) error {
		return ensureNameColorFree(repository.NewDiscussionRepository(tx), discussion.ID, fields, 0)
	}
	if _, err := s.allocator.Create(ctx, sequence.Categories(discussion.ID), category, sequence.Hooks{Before: unique}); err != nil {
		return nil, err
	}
	return category, nil
}

// UpdateCategory changes the fields of one category.
func (s *DiscussionService) UpdateCategory(ctx context.Context, discussion *models.Discussion, localID int, fields categories.Fields) (*models.DiscussionCategory, error) {
	if err := categories.ValidateFields(fields); err != nil {
		return nil, err
	}

	var updated *models.DiscussionCategory
	err := s.discussionRepo.WithinTransaction(ctx, func(repo repository.DiscussionRepository) error {
		if err := repo.Lock(discussion.ID); err != nil {
			return err
		}
		category, err := findCategory(repo, discussion.ID, localID)
		if err != nil {
			return err
		}
		if err := ensureNameColorFree(repo, discussion.ID, fields, category.ID); err != nil {
			return err
		}

		category.Name = fields.Name
		category.Color = fields.Color
		category.Emoji = fields.Emoji
		category.Description = fields.Description
		if err := repo.UpdateCategory(category); err != nil {
			return fmt.Errorf("failed to update category: %w", err)
		}
		updated = category
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteCategory deletes a category. Its topics become uncategorized.
func (s *DiscussionService) DeleteCategory(ctx context.Context, discussion *models.Discussion, localID int) error {
	return s.discussionRepo.WithinTransaction(ctx, func(repo repository.DiscussionRepository) error {
		if err := repo.Lock(discussion.ID); err != nil {
			return err
		}
		category, err := findCategory(repo, discussion.ID, localID)
		if err != nil {
			return err
		}
		if err := repo.DeleteCategory(category); err != nil {
			return fmt.Errorf("failed to delete category: %w", err)
		}
		return nil
	})
}

// ReplaceCategories replaces the whole category list of a discussion. Rows
// whose id is kept retain their description; rows missing from the list are
// deleted and their topics become uncategorized.
func (s *DiscussionService) ReplaceCategories(ctx context.Context, discussion *models.Discussion, doc []byte) ([]models.DiscussionCategory, error) {
	list, err := categories.Validate(doc)
	if err != nil {
		return nil, err
	}
	for i, c := range list {
		fields := categories.Fields{Name: c.Name, Color: string(c.Color), Emoji: c.Emoji}
		if err := categories.ValidateFields(fields); err != nil {
			var schemaErr *categories.SchemaError
			if errors.As(err, &schemaErr) {
				schemaErr.Path = fmt.Sprintf("[%d].%s", i, schemaErr.Path)
			}
			return nil, err
		}
	}

	var result []models.DiscussionCategory
	err = s.discussionRepo.WithinTransaction(ctx, func(repo repository.DiscussionRepository) error {
		if err := repo.Lock(discussion.ID); err != nil {
			return err
		}
		existing, err := repo.ListCategories(discussion.ID)
		if err != nil {
			return fmt.Errorf("failed to list categories: %w", err)
		}

		byID := make(map[int]*models.DiscussionCategory, len(existing))
		for i := range existing {
			c := &existing[i]
			if _, keep := list.Find(c.LocalID); !keep {
				if err := repo.DeleteCategory(c); err != nil {
					return fmt.Errorf("failed to delete category: %w", err)
				}
				continue
			}
			// Park kept rows on a temporary name so that swapping names
			// between rows never trips the unique index.
			c.Name = fmt.Sprintf("~%d~", c.ID)
			if err := repo.UpdateCategory(c); err != nil {
				return fmt.Errorf("failed to update category: %w", err)
			}
			byID[c.LocalID] = c
		}

		result = make([]models.DiscussionCategory, 0, len(list))
		for _, item := range list {
			c, ok := byID[item.ID]
			if !ok {
				c = &models.DiscussionCategory{DiscussionID: discussion.ID, LocalID: item.ID}
			}
			c.Name = item.Name
			c.Color = string(item.Color)
			c.Emoji = item.Emoji

			if ok {
				err = repo.UpdateCategory(c)
			} else {
				err = repo.CreateCategory(c)
			}
			if err != nil {
				return fmt.Errorf("failed to save category %d: %w", item.ID, err)
			}
			result = append(result, *c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Categories replaced", zap.Uint64("discussion_id", discussion.ID), zap.Int("count", len(result)))
	return result, nil
}

// CreateTopicInput represents input for opening a topic
type CreateTopicInput struct {
	Title      string
	CategoryID *int
	Content    string
	OpenerID   uint64
}

// UpdateTopicInput represents input for updating a topic
type UpdateTopicInput struct {
	Title         *string
	CategoryID    *int
	ClearCategory bool
}

func validateTopicTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" || utf8.RuneCountInString(title) > maxTopicTitleLength {
		return "", ErrInvalidTopicTitle
	}
	return title, nil
}

// CreateTopic opens a topic together with its opening comment.
func (s *DiscussionService) CreateTopic(ctx context.Context, discussion *models.Discussion, input CreateTopicInput) (*models.DiscussionTopic, error) {
	title, err := validateTopicTitle(input.Title)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Content) == "" {
		return nil, ErrCommentRequired
	}

	topic := &models.DiscussionTopic{
		DiscussionID: discussion.ID,
		Title:        title,
		OpenerID:     input.OpenerID,
	}
	var category *models.DiscussionCategory
	if input.CategoryID != nil {
		category, err = findCategory(s.discussionRepo, discussion.ID, *input.CategoryID)
		if err != nil {
			return nil, err
		}
		topic.CategoryID = &category.ID
	}

	opening := func(tx *gorm.DB) error {
		comment := &models.DiscussionComment{
			TopicID: topic.ID,
			UserID:  input.OpenerID,
			Content: input.Content,
		}
		_, err := sequence.Insert(tx, sequence.Comments(topic.ID), comment)
		return err
	}
	if _, err := s.allocator.Create(ctx, sequence.Topics(discussion.ID), topic, sequence.Hooks{After: opening}); err != nil {
		return nil, fmt.Errorf("failed to create topic: %w", err)
	}

	topic.Category = category
	return topic, nil
}

// ListTopics lists live topics, most recently active first.
func (s *DiscussionService) ListTopics(discussion *models.Discussion, page utils.PaginationParams) ([]models.DiscussionTopic, int64, error) {
	topics, total, err := s.discussionRepo.ListTopics(discussion.ID, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list topics: %w", err)
	}
	return topics, total, nil
}

// GetTopic returns a live topic by local id.
func (s *DiscussionService) GetTopic(discussion *models.Discussion, localID int) (*models.DiscussionTopic, error) {
	return findTopic(s.discussionRepo, discussion.ID, localID)
}

// UpdateTopic changes a topic's title or category.
func (s *DiscussionService) UpdateTopic(ctx context.Context, discussion *models.Discussion, localID int, input UpdateTopicInput) (*models.DiscussionTopic, error) {
	var title string
	if input.Title != nil {
		var err error
		if title, err = validateTopicTitle(*input.Title); err != nil {
			return nil, err
		}
	}

	var updated *models.DiscussionTopic
	err := s.discussionRepo.WithinTransaction(ctx, func(repo repository.DiscussionRepository) error {
		topic, err := findTopic(repo, discussion.ID, localID)
		if err != nil {
			return err
		}

		if input.Title != nil {
			topic.Title = title
		}
		switch {
		case input.ClearCategory:
			topic.CategoryID = nil
			topic.Category = nil
		case input.CategoryID != nil:
			category, err := findCategory(repo, discussion.ID, *input.CategoryID)
			if err != nil {
				return err
			}
			topic.CategoryID = &category.ID
			topic.Category = category
		}

		if err := repo.UpdateTopic(topic); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTopicNotFound
			}
			return fmt.Errorf("failed to update topic: %w", err)
		}
		updated = topic
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteTopic soft deletes a topic. Its local id is never reused.
func (s *DiscussionService) DeleteTopic(ctx context.Context, discussion *models.Discussion, localID int) error {
	return s.discussionRepo.WithinTransaction(ctx, func(repo repository.DiscussionRepository) error {
		topic, err := findTopic(repo, discussion.ID, localID)
		if err != nil {
			return err
		}
		if err := repo.SoftDeleteTopic(topic); err != nil {
			return fmt.Errorf("failed to delete topic: %w", err)
		}
		return nil
	})
}

// ListComments lists the live comments of a topic.
func (s *DiscussionService) ListComments(discussion *models.Discussion, topicLocalID int, page utils.PaginationParams) ([]models.DiscussionComment, int64, error) {
	topic, err := findTopic(s.discussionRepo, discussion.ID, topicLocalID)
	if err != nil {
		return nil, 0, err
	}
	comments, total, err := s.discussionRepo.ListComments(topic.ID, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, total, nil
}

// GetComment returns a live comment of a live topic.
func (s *DiscussionService) GetComment(discussion *models.Discussion, topicLocalID, localID int) (*models.DiscussionComment, error) {
	topic, err := findTopic(s.discussionRepo, discussion.ID, topicLocalID)
	if err != nil {
		return nil, err
	}
	return findComment(s.discussionRepo, topic.ID, localID)
}

// CreateComment posts a comment to a topic.
func (s *DiscussionService) CreateComment(ctx context.Context, discussion *models.Discussion, topicLocalID int, userID uint64, content string) (*models.DiscussionComment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrCommentRequired
	}
	topic, err := findTopic(s.discussionRepo, discussion.ID, topicLocalID)
	if err != nil {
		return nil, err
	}

	comment := &models.DiscussionComment{
		TopicID: topic.ID,
		UserID:  userID,
		Content: content,
	}
	hooks := sequence.Hooks{
		// The topic row is locked here; it may have been deleted meanwhile.
		Before: func(tx *gorm.DB) error {
			_, err := findTopic(repository.NewDiscussionRepository(tx), discussion.ID, topicLocalID)
			return err
		},
		After: func(tx *gorm.DB) error {
			return repository.NewDiscussionRepository(tx).TouchTopic(topic.ID)
		},
	}
	if _, err := s.allocator.Create(ctx, sequence.Comments(topic.ID), comment, hooks); err != nil {
		if errors.Is(err, ErrTopicNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	return comment, nil
}

// EditComment replaces the content of the caller's own comment and marks it
// edited.
func (s *DiscussionService) EditComment(ctx context.Context, discussion *models.Discussion, topicLocalID, localID int, userID uint64, content string) (*models.DiscussionComment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrCommentRequired
	}

	var updated *models.DiscussionComment
	err := s.discussionRepo.WithinTransaction(ctx, func(repo repository.DiscussionRepository) error {
		topic, err := findTopic(repo, discussion.ID, topicLocalID)
		if err != nil {
			return err
		}
		comment, err := findComment(repo, topic.ID, localID)
		if err != nil {
			return err
		}
		if comment.UserID != userID {
			return ErrNotCommentAuthor
		}

		comment.Content = content
		comment.Edited = true
		if err := repo.UpdateComment(comment); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCommentNotFound
			}
			return fmt.Errorf("failed to edit comment: %w", err)
		}
		if err := repo.TouchTopic(topic.ID); err != nil {
			return err
		}
		updated = comment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteComment soft deletes a comment and touches its topic.
func (s *DiscussionService) DeleteComment(ctx context.Context, discussion *models.Discussion, topicLocalID, localID int) error {
	return s.discussionRepo.WithinTransaction(ctx, func(repo repository.DiscussionRepository) error {
		topic, err := findTopic(repo, discussion.ID, topicLocalID)
		if err != nil {
			return err
		}
		comment, err := findComment(repo, topic.ID, localID)
		if err != nil {
			return err
		}
		if err := repo.SoftDeleteComment(comment); err != nil {
			return fmt.Errorf("failed to delete comment: %w", err)
		}
		return nil
	})
}

func ensureNameColorFree(repo repository.DiscussionRepository, discussionID uint64, fields categories.Fields, selfID uint64) error {
	other, err := repo.FindCategoryByNameColor(discussionID, fields.Name, fields.Color)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("failed to check category: %w", err)
	}
	if other.ID != selfID {
		return ErrCategoryExists
	}
	return nil
}

func findCategory(repo repository.DiscussionRepository, discussionID uint64, localID int) (*models.DiscussionCategory, error) {
	category, err := repo.FindCategory(discussionID, localID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to find category: %w", err)
	}
	return category, nil
}

func findTopic(repo repository.DiscussionRepository, discussionID uint64, localID int) (*models.DiscussionTopic, error) {
	topic, err := repo.FindTopic(discussionID, localID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTopicNotFound
		}
		return nil, fmt.Errorf("failed to find topic: %w", err)
	}
	return topic, nil
}

func findComment(repo repository.DiscussionRepository, topicID uint64, localID int) (*models.DiscussionComment, error) {
	comment, err := repo.FindComment(topicID, localID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommentNotFound
		}
		return nil, fmt.Errorf("failed to find comment: %w", err)
	}
	return comment, nil
}
