package dto

import (
	"time"

	"github.com/yukikurage/unica-api/internal/models"
	"github.com/yukikurage/unica-api/internal/utils"
)

// CategoryDTO represents a discussion category
type CategoryDTO struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Color       string `json:"color"`
	Emoji       string `json:"emoji,omitempty"`
	Description string `json:"description,omitempty"`
}

// TopicDTO represents a topic in API responses
type TopicDTO struct {
	ID        int          `json:"id"`
	Title     string       `json:"title"`
	Category  *CategoryDTO `json:"category"`
	OpenerID  uint64       `json:"opener_id"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// CommentDTO represents a comment in API responses
type CommentDTO struct {
	ID        int       `json:"id"`
	UserID    uint64    `json:"user_id"`
	Content   string    `json:"content"`
	Edited    bool      `json:"edited"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TopicListResponse represents a paginated list of topics
type TopicListResponse struct {
	Topics     []TopicDTO               `json:"topics"`
	Pagination utils.PaginationResponse `json:"pagination"`
}

// CommentListResponse represents a paginated list of comments
type CommentListResponse struct {
	Comments   []CommentDTO             `json:"comments"`
	Pagination utils.PaginationResponse `json:"pagination"`
}

// ToCategoryDTO converts a category row
func ToCategoryDTO(category models.DiscussionCategory) CategoryDTO {
	return CategoryDTO{
		ID:          category.LocalID,
		Name:        category.Name,
		Color:       category.Color,
		Emoji:       category.Emoji,
		Description: category.Description,
	}
}

// ToCategoryDTOs converts a list of category rows
func ToCategoryDTOs(categories []models.DiscussionCategory) []CategoryDTO {
	out := make([]CategoryDTO, len(categories))
	for i, category := range categories {
		out[i] = ToCategoryDTO(category)
	}
	return out
}

// ToTopicDTO converts a topic with its preloaded category
func ToTopicDTO(topic models.DiscussionTopic) TopicDTO {
	dto := TopicDTO{
		ID:        topic.LocalID,
		Title:     topic.Title,
		OpenerID:  topic.OpenerID,
		CreatedAt: topic.CreatedAt,
		UpdatedAt: topic.UpdatedAt,
	}
	if topic.Category != nil {
		category := ToCategoryDTO(*topic.Category)
		dto.Category = &category
	}
	return dto
}

// ToCommentDTO converts a comment
func ToCommentDTO(comment models.DiscussionComment) CommentDTO {
	return CommentDTO{
		ID:        comment.LocalID,
		UserID:    comment.UserID,
		Content:   comment.Content,
		Edited:    comment.Edited,
		CreatedAt: comment.CreatedAt,
		UpdatedAt: comment.UpdatedAt,
	}
}

// ToTopicListResponse converts a page of topics
func ToTopicListResponse(topics []models.DiscussionTopic, params utils.PaginationParams, total int64) TopicListResponse {
	items := make([]TopicDTO, len(topics))
	for i, topic := range topics {
		items[i] = ToTopicDTO(topic)
	}
	return TopicListResponse{
		Topics:     items,
		Pagination: utils.PaginationResponse{Page: params.Page, Limit: params.Limit, Total: total},
	}
}

// ToCommentListResponse converts a page of comments
func ToCommentListResponse(comments []models.DiscussionComment, params utils.PaginationParams, total int64) CommentListResponse {
	items := make([]CommentDTO, len(comments))
	for i, comment := range comments {
		items[i] = ToCommentDTO(comment)
	}
	return CommentListResponse{
		Comments:   items,
		Pagination: utils.PaginationResponse{Page: params.Page, Limit: params.Limit, Total: total},
	}
}
