package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/unica-api/internal/categories"
	"github.com/yukikurage/unica-api/internal/dto"
	apierrors "github.com/yukikurage/unica-api/internal/errors"
	"github.com/yukikurage/unica-api/internal/middleware"
	"github.com/yukikurage/unica-api/internal/models"
	"github.com/yukikurage/unica-api/internal/services"
	"github.com/yukikurage/unica-api/internal/utils"
	"go.uber.org/zap"
)

// DiscussionHandler serves the forum of an organization.
type DiscussionHandler struct {
	discussionService *services.DiscussionService
	logger            *zap.Logger
}

func NewDiscussionHandler(discussionService *services.DiscussionService, logger *zap.Logger) *DiscussionHandler {
	return &DiscussionHandler{
		discussionService: discussionService,
		logger:            logger,
	}
}

// EnableDiscussion turns the forum on for the organization
func (h *DiscussionHandler) EnableDiscussion(c *gin.Context) {
	org, _ := middleware.GetOrganization(c)

	if _, err := h.discussionService.EnableDiscussion(org.ID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"enabled": true, "categories": []dto.CategoryDTO{}})
}

// GetDiscussion returns the forum with its categories
func (h *DiscussionHandler) GetDiscussion(c *gin.Context) {
	discussion, _ := middleware.GetDiscussion(c)

	list, err := h.discussionService.ListCategories(discussion)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"enabled": true, "categories": dto.ToCategoryDTOs(list)})
}

// ListCategories lists the categories of the forum
func (h *DiscussionHandler) ListCategories(c *gin.Context) {
	discussion, _ := middleware.GetDiscussion(c)

	list, err := h.discussionService.ListCategories(discussion)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": dto.ToCategoryDTOs(list)})
}

// CreateCategory adds one category
func (h *DiscussionHandler) CreateCategory(c *gin.Context) {
	discussion, _ := middleware.GetDiscussion(c)

	var req categories.Fields
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	category, err := h.discussionService.CreateCategory(c.Request.Context(), discussion, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToCategoryDTO(*category))
}

// UpdateCategory replaces the fields of one category
func (h *DiscussionHandler) UpdateCategory(c *gin.Context) {
	discussion, _ := middleware.GetDiscussion(c)
	localID, ok := localIDParam(c, "category_id")
	if !ok {
		return
	}

	var req categories.Fields
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	category, err := h.discussionService.UpdateCategory(c.Request.Context(), discussion, localID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToCategoryDTO(*category))
}

// DeleteCategory deletes a category; its topics become uncategorized
func (h *DiscussionHandler) DeleteCategory(c *gin.Context) {
	discussion, _ := middleware.GetDiscussion(c)
	localID, ok := localIDParam(c, "category_id")
	if !ok {
		return
	}

	if err := h.discussionService.DeleteCategory(c.Request.Context(), discussion, localID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Category deleted"})
}

// ReplaceCategories replaces the whole category list. The request body is
// the list document itself.
func (h *DiscussionHandler) ReplaceCategories(c *gin.Context) {
	discussion, _ := middleware.GetDiscussion(c)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	list, err := h.discussionService.ReplaceCategories(c.Request.Context(), discussion, body)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": dto.ToCategoryDTOs(list)})
}

// ListTopics lists live topics, most recently active first
func (h *DiscussionHandler) ListTopics(c *gin.Context) {
	discussion, _ := middleware.GetDiscussion(c)
	params := utils.GetPaginationParams(c)

	topics, total, err := h.discussionService.ListTopics(discussion, params)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTopicListResponse(topics, params, total))
}

// CreateTopic opens a topic with its first comment
func (h *DiscussionHandler) CreateTopic(c *gin.Context) {
	discussion, _ := middleware.GetDiscussion(c)
	userID, _ := middleware.GetUserID(c)

	type CreateTopicRequest struct {
		Title      string `json:"title" binding:"required"`
		CategoryID *int   `json:"category_id"`
		Content    string `json:"content" binding:"required"`
	}

	var req CreateTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	topic, err := h.discussionService.CreateTopic(c.Request.Context(), discussion, services.CreateTopicInput{
		Title:      req.Title,
		CategoryID: req.CategoryID,
		Content:    req.Content,
		OpenerID:   userID,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTopicDTO(*topic))
}

// GetTopic returns one topic
func (h *DiscussionHandler) GetTopic(c *gin.Context) {
	discussion, _ := middleware.GetDiscussion(c)
	localID, ok := localIDParam(c, "topic_id")
	if !ok {
		return
	}

	topic, err := h.discussionService.GetTopic(discussion, localID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTopicDTO(*topic))
}

// UpdateTopic changes the title or category of a topic. Only the opener or
// an organization Owner may do this. A null category_id clears the category.
func (h *DiscussionHandler) UpdateTopic(c *gin.Context) {
	discussion, _ := middleware.GetDiscussion(c)
	localID, ok := localIDParam(c, "topic_id")
	if !ok {
		return
	}
	if !h.canModerateTopic(c, discussion, localID) {
		return
	}

	type UpdateTopicRequest struct {
		Title      *string         `json:"title"`
		CategoryID json.RawMessage `json:"category_id"`
	}

	var req UpdateTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	input := services.UpdateTopicInput{Title: req.Title}
	switch {
	case len(req.CategoryID) == 0:
		// category_id absent: keep the category
	case string(req.CategoryID) == "null":
		input.ClearCategory = true
	default:
		var id int
		if err := json.Unmarshal(req.CategoryID, &id); err != nil {
			apierrors.BadRequest(c, "Invalid category_id")
			return
		}
		input.CategoryID = &id
	}

	topic, err := h.discussionService.UpdateTopic(c.Request.Context(), discussion, localID, input)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTopicDTO(*topic))
}

// DeleteTopic soft deletes a topic (opener or Owner)
func (h *DiscussionHandler) DeleteTopic(c *gin.Context) {
	discussion, _ := middleware.GetDiscussion(c)
	localID, ok := localIDParam(c, "topic_id")
	if !ok {
		return
	}
	if !h.canModerateTopic(c, discussion, localID) {
		return
	}

	if err := h.discussionService.DeleteTopic(c.Request.Context(), discussion, localID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Topic deleted"})
}

// ListComments lists the live comments of a topic in posting order
func (h *DiscussionHandler) ListComments(c *gin.Context) {
	discussion, _ := middleware.GetDiscussion(c)
	topicID, ok := localIDParam(c, "topic_id")
	if !ok {
		return
	}
	params := utils.GetPaginationParams(c)

	comments, total, err := h.discussionService.ListComments(discussion, topicID, params)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToCommentListResponse(comments, params, total))
}

type commentRequest struct {
	Content string `json:"content" binding:"required"`
}

// CreateComment posts a comment to a topic
func (h *DiscussionHandler) CreateComment(c *gin.Context) {
	discussion, _ := middleware.GetDiscussion(c)
	userID, _ := middleware.GetUserID(c)
	topicID, ok := localIDParam(c, "topic_id")
	if !ok {
		return
	}

	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	comment, err := h.discussionService.CreateComment(c.Request.Context(), discussion, topicID, userID, req.Content)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToCommentDTO(*comment))
}

// EditComment replaces the content of the caller's own comment
func (h *DiscussionHandler) EditComment(c *gin.Context) {
	discussion, _ := middleware.GetDiscussion(c)
	userID, _ := middleware.GetUserID(c)
	topicID, ok := localIDParam(c, "topic_id")
	if !ok {
		return
	}
	commentID, ok := localIDParam(c, "comment_id")
	if !ok {
		return
	}

	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	comment, err := h.discussionService.EditComment(c.Request.Context(), discussion, topicID, commentID, userID, req.Content)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToCommentDTO(*comment))
}

// DeleteComment soft deletes a comment (author or Owner)
func (h *DiscussionHandler) DeleteComment(c *gin.Context) {
	discussion, _ := middleware.GetDiscussion(c)
	userID, _ := middleware.GetUserID(c)
	topicID, ok := localIDParam(c, "topic_id")
	if !ok {
		return
	}
	commentID, ok := localIDParam(c, "comment_id")
	if !ok {
		return
	}

	comment, err := h.discussionService.GetComment(discussion, topicID, commentID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if comment.UserID != userID && !isOwner(c) {
		apierrors.Forbidden(c, "Only the author or an owner can delete this comment")
		return
	}

	if err := h.discussionService.DeleteComment(c.Request.Context(), discussion, topicID, commentID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted"})
}

// canModerateTopic answers the request and returns false unless the caller
// opened the topic or owns the organization.
func (h *DiscussionHandler) canModerateTopic(c *gin.Context, discussion *models.Discussion, localID int) bool {
	topic, err := h.discussionService.GetTopic(discussion, localID)
	if err != nil {
		respondError(c, h.logger, err)
		return false
	}
	userID, _ := middleware.GetUserID(c)
	if topic.OpenerID != userID && !isOwner(c) {
		apierrors.Forbidden(c, "Only the opener or an owner can change this topic")
		return false
	}
	return true
}

func isOwner(c *gin.Context) bool {
	member, ok := middleware.GetOrganizationMember(c)
	return ok && member.Role == models.RoleOwner
}
