package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/unica-api/internal/dto"
	apierrors "github.com/yukikurage/unica-api/internal/errors"
	"github.com/yukikurage/unica-api/internal/middleware"
	"github.com/yukikurage/unica-api/internal/models"
	"github.com/yukikurage/unica-api/internal/services"
	"go.uber.org/zap"
)

type OrganizationHandler struct {
	orgService *services.OrganizationService
	logger     *zap.Logger
}

func NewOrganizationHandler(orgService *services.OrganizationService, logger *zap.Logger) *OrganizationHandler {
	return &OrganizationHandler{
		orgService: orgService,
		logger:     logger,
	}
}

// CreateOrganization creates a new organization owned by the caller
func (h *OrganizationHandler) CreateOrganization(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	type CreateOrgRequest struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	}

	var req CreateOrgRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	org, err := h.orgService.CreateOrganization(services.CreateOrganizationInput{
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     userID,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToOrganizationDTO(*org))
}

// ListOrganizations returns all organizations the user has joined
func (h *OrganizationHandler) ListOrganizations(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	memberships, err := h.orgService.ListOrganizationsForUser(userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	orgs := make([]dto.OrganizationWithRoleDTO, len(memberships))
	for i, m := range memberships {
		orgs[i] = dto.ToOrganizationWithRoleDTO(m)
	}

	c.JSON(http.StatusOK, gin.H{
		"organizations": orgs,
	})
}

// GetOrganization returns organization details with its members
func (h *OrganizationHandler) GetOrganization(c *gin.Context) {
	org, _ := middleware.GetOrganization(c)
	member, _ := middleware.GetOrganizationMember(c)

	_, members, err := h.orgService.GetOrganizationWithMembers(org.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToOrganizationDetailDTO(*org, members, member.Role))
}

// UpdateOrganization updates organization name and description
func (h *OrganizationHandler) UpdateOrganization(c *gin.Context) {
	org, _ := middleware.GetOrganization(c)

	type UpdateOrgRequest struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}

	var req UpdateOrgRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	updated, err := h.orgService.UpdateOrganization(org.ID, services.UpdateOrganizationInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToOrganizationDTO(*updated))
}

// DeleteOrganization deletes an organization with its projects and discussion
func (h *OrganizationHandler) DeleteOrganization(c *gin.Context) {
	org, _ := middleware.GetOrganization(c)

	if err := h.orgService.DeleteOrganization(org.ID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Organization deleted successfully"})
}

// InviteMember invites a user by username
func (h *OrganizationHandler) InviteMember(c *gin.Context) {
	org, _ := middleware.GetOrganization(c)

	type InviteRequest struct {
		Username string `json:"username" binding:"required"`
	}

	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	invitation, err := h.orgService.InviteMember(org.ID, req.Username)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToOrganizationMemberDTO(*invitation))
}

// ListInvitations lists the pending invitations of an organization
func (h *OrganizationHandler) ListInvitations(c *gin.Context) {
	org, _ := middleware.GetOrganization(c)

	invitations, err := h.orgService.ListInvitations(org.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invitations": dto.ToOrganizationMemberDTOs(invitations)})
}

// CancelInvitation withdraws an invitation
func (h *OrganizationHandler) CancelInvitation(c *gin.Context) {
	org, _ := middleware.GetOrganization(c)
	userID, ok := uintParam(c, "user_id")
	if !ok {
		return
	}

	if err := h.orgService.CancelInvitation(org.ID, userID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Invitation cancelled"})
}

// ListMyInvitations lists the invitations the caller has not answered
func (h *OrganizationHandler) ListMyInvitations(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	invitations, err := h.orgService.ListInvitationsForUser(userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	out := make([]dto.InvitationDTO, len(invitations))
	for i, invitation := range invitations {
		out[i] = dto.ToInvitationDTO(invitation)
	}
	c.JSON(http.StatusOK, gin.H{"invitations": out})
}

// RespondToInvitation accepts or declines the caller's invitation. It runs
// without RequireOrganizationAccess because the caller is still Pending.
func (h *OrganizationHandler) RespondToInvitation(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}
	orgID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	type RespondRequest struct {
		Accept *bool `json:"accept" binding:"required"`
	}

	var req RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	member, err := h.orgService.RespondToInvitation(orgID, userID, *req.Accept)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if member == nil {
		c.JSON(http.StatusOK, gin.H{"message": "Invitation declined"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"role": member.Role, "joined_at": member.JoinedAt})
}

// LeaveOrganization removes the caller from the organization
func (h *OrganizationHandler) LeaveOrganization(c *gin.Context) {
	org, _ := middleware.GetOrganization(c)
	userID, _ := middleware.GetUserID(c)

	if err := h.orgService.LeaveOrganization(c.Request.Context(), org.ID, userID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Left organization"})
}

// RemoveMember removes a member from organization (owner only)
func (h *OrganizationHandler) RemoveMember(c *gin.Context) {
	org, _ := middleware.GetOrganization(c)
	targetID, ok := uintParam(c, "user_id")
	if !ok {
		return
	}

	if err := h.orgService.RemoveMember(c.Request.Context(), org.ID, targetID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Member removed successfully"})
}

// ChangeMemberRole switches a member between Owner and Member (owner only)
func (h *OrganizationHandler) ChangeMemberRole(c *gin.Context) {
	org, _ := middleware.GetOrganization(c)
	targetID, ok := uintParam(c, "user_id")
	if !ok {
		return
	}

	type ChangeRoleRequest struct {
		Role models.OrganizationRole `json:"role" binding:"required"`
	}

	var req ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	member, err := h.orgService.ChangeMemberRole(c.Request.Context(), org.ID, targetID, req.Role)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": member.UserID, "role": member.Role})
}
