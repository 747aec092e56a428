package dto

import (
	"time"

	"github.com/yukikurage/unica-api/internal/models"
)

// UserDTO represents a user in API responses
type UserDTO struct {
	ID          uint64 `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
}

// OrganizationDTO represents an organization in API responses
type OrganizationDTO struct {
	ID          uint64    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// OrganizationWithRoleDTO represents an organization with the user's role
type OrganizationWithRoleDTO struct {
	OrganizationDTO
	Role models.OrganizationRole `json:"role"`
}

// OrganizationMemberDTO represents a member in an organization
type OrganizationMemberDTO struct {
	User      UserDTO                 `json:"user"`
	Role      models.OrganizationRole `json:"role"`
	InvitedAt time.Time               `json:"invited_at"`
	JoinedAt  *time.Time              `json:"joined_at"`
}

// InvitationDTO represents a pending invitation seen by the invited user
type InvitationDTO struct {
	Organization OrganizationDTO `json:"organization"`
	InvitedAt    time.Time       `json:"invited_at"`
}

// OrganizationDetailDTO represents detailed organization information
type OrganizationDetailDTO struct {
	OrganizationDTO
	Members  []OrganizationMemberDTO `json:"members"`
	YourRole models.OrganizationRole `json:"your_role"`
}

// ToUserDTO converts a User model to UserDTO
func ToUserDTO(user models.User) UserDTO {
	return UserDTO{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
	}
}

// ToOrganizationDTO converts an Organization model to OrganizationDTO
func ToOrganizationDTO(org models.Organization) OrganizationDTO {
	return OrganizationDTO{
		ID:          org.ID,
		Name:        org.Name,
		Description: org.Description,
		CreatedAt:   org.CreatedAt,
	}
}

// ToOrganizationWithRoleDTO converts an organization member to DTO with role
func ToOrganizationWithRoleDTO(member models.OrganizationMember) OrganizationWithRoleDTO {
	return OrganizationWithRoleDTO{
		OrganizationDTO: ToOrganizationDTO(member.Organization),
		Role:            member.Role,
	}
}

// ToOrganizationMemberDTO converts a member to DTO
func ToOrganizationMemberDTO(member models.OrganizationMember) OrganizationMemberDTO {
	return OrganizationMemberDTO{
		User:      ToUserDTO(member.User),
		Role:      member.Role,
		InvitedAt: member.InvitedAt,
		JoinedAt:  member.JoinedAt,
	}
}

// ToOrganizationMemberDTOs converts a list of members
func ToOrganizationMemberDTOs(members []models.OrganizationMember) []OrganizationMemberDTO {
	out := make([]OrganizationMemberDTO, len(members))
	for i, member := range members {
		out[i] = ToOrganizationMemberDTO(member)
	}
	return out
}

// ToInvitationDTO converts a pending membership to the invited user's view
func ToInvitationDTO(member models.OrganizationMember) InvitationDTO {
	return InvitationDTO{
		Organization: ToOrganizationDTO(member.Organization),
		InvitedAt:    member.InvitedAt,
	}
}

// ToOrganizationDetailDTO converts organization with members to detailed DTO
func ToOrganizationDetailDTO(org models.Organization, members []models.OrganizationMember, yourRole models.OrganizationRole) OrganizationDetailDTO {
	return OrganizationDetailDTO{
		OrganizationDTO: ToOrganizationDTO(org),
		Members:         ToOrganizationMemberDTOs(members),
		YourRole:        yourRole,
	}
}
