package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yukikurage/unica-api/internal/models"
	"github.com/yukikurage/unica-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrOrganizationNotFound       = errors.New("organization not found")
	ErrInvalidOrganizationName    = errors.New("organization name must be 1 to 20 characters")
	ErrDescriptionTooLong         = errors.New("description must be at most 200 characters")
	ErrAlreadyOrganizationMember  = errors.New("user is already a member of this organization")
	ErrOrganizationMemberNotFound = errors.New("organization member not found")
	ErrInvitationNotFound         = errors.New("invitation not found")
	ErrLastOwner                  = errors.New("the last owner cannot leave, be removed or be demoted")
	ErrInvalidRole                = errors.New("role must be Owner or Member")
)

const (
	maxNameLength        = 20
	maxDescriptionLength = 200
)

// OrganizationService provides business logic for organization operations.
type OrganizationService struct {
	orgRepo  repository.OrganizationRepository
	userRepo repository.UserRepository
	logger   *zap.Logger
}

// NewOrganizationService creates a new OrganizationService.
func NewOrganizationService(orgRepo repository.OrganizationRepository, userRepo repository.UserRepository, logger *zap.Logger) *OrganizationService {
	return &OrganizationService{
		orgRepo:  orgRepo,
		userRepo: userRepo,
		logger:   logger,
	}
}

// CreateOrganizationInput represents parameters to create a new organization.
type CreateOrganizationInput struct {
	Name        string
	Description string
	OwnerID     uint64
}

// UpdateOrganizationInput holds the fields to change. Nil fields are kept.
type UpdateOrganizationInput struct {
	Name        *string
	Description *string
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return "", ErrInvalidOrganizationName
	}
	return name, nil
}

func validateDescription(description string) error {
	if utf8.RuneCountInString(description) > maxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

// CreateOrganization creates a new organization and assigns the owner.
func (s *OrganizationService) CreateOrganization(input CreateOrganizationInput) (*models.Organization, error) {
	name, err := validateName(input.Name)
	if err != nil {
		return nil, err
	}
	if err := validateDescription(input.Description); err != nil {
		return nil, err
	}

	org := &models.Organization{
		Name:        name,
		Description: input.Description,
	}

	now := time.Now()
	owner := &models.OrganizationMember{
		UserID:   input.OwnerID,
		Role:     models.RoleOwner,
		JoinedAt: &now,
	}

	if err := s.orgRepo.Create(org, owner); err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	s.logger.Info("Organization created", zap.Uint64("organization_id", org.ID), zap.Uint64("owner_id", input.OwnerID))
	return org, nil
}

// ListOrganizationsForUser returns organizations the user has joined.
func (s *OrganizationService) ListOrganizationsForUser(userID uint64) ([]models.OrganizationMember, error) {
	memberships, err := s.orgRepo.ListMembersByUserID(userID, models.RoleOwner, models.RoleMember)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	return memberships, nil
}

// GetOrganization returns an organization by id.
func (s *OrganizationService) GetOrganization(orgID uint64) (*models.Organization, error) {
	return s.findOrganization(orgID)
}

// GetOrganizationWithMembers returns an organization and all of its joined members.
func (s *OrganizationService) GetOrganizationWithMembers(orgID uint64) (*models.Organization, []models.OrganizationMember, error) {
	org, err := s.findOrganization(orgID)
	if err != nil {
		return nil, nil, err
	}

	members, err := s.orgRepo.ListMembers(orgID, models.RoleOwner, models.RoleMember)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list organization members: %w", err)
	}

	return org, members, nil
}

// UpdateOrganization updates an organization's name and description.
func (s *OrganizationService) UpdateOrganization(orgID uint64, input UpdateOrganizationInput) (*models.Organization, error) {
	org, err := s.findOrganization(orgID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name, err := validateName(*input.Name)
		if err != nil {
			return nil, err
		}
		org.Name = name
	}
	if input.Description != nil {
		if err := validateDescription(*input.Description); err != nil {
			return nil, err
		}
		org.Description = *input.Description
	}

	if err := s.orgRepo.Update(org); err != nil {
		return nil, fmt.Errorf("failed to update organization: %w", err)
	}

	return org, nil
}

// DeleteOrganization removes an organization with its projects and discussion.
func (s *OrganizationService) DeleteOrganization(orgID uint64) error {
	if _, err := s.findOrganization(orgID); err != nil {
		return err
	}

	if err := s.orgRepo.Delete(orgID); err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}

	s.logger.Info("Organization deleted", zap.Uint64("organization_id", orgID))
	return nil
}

// InviteMember creates a pending membership for the user with the given username.
func (s *OrganizationService) InviteMember(orgID uint64, username string) (*models.OrganizationMember, error) {
	user, err := s.userRepo.FindByUsername(strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if _, err := s.orgRepo.FindMember(orgID, user.ID); err == nil {
		return nil, ErrAlreadyOrganizationMember
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to verify membership: %w", err)
	}

	member := &models.OrganizationMember{
		OrganizationID: orgID,
		UserID:         user.ID,
		Role:           models.RolePending,
	}
	if err := s.orgRepo.AddMember(member); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyOrganizationMember
		}
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}
	member.User = *user

	return member, nil
}

// ListInvitations returns the pending invitations of an organization.
func (s *OrganizationService) ListInvitations(orgID uint64) ([]models.OrganizationMember, error) {
	invitations, err := s.orgRepo.ListMembers(orgID, models.RolePending)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	return invitations, nil
}

// ListInvitationsForUser returns the invitations a user has not answered.
func (s *OrganizationService) ListInvitationsForUser(userID uint64) ([]models.OrganizationMember, error) {
	invitations, err := s.orgRepo.ListMembersByUserID(userID, models.RolePending)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	return invitations, nil
}

// CancelInvitation withdraws a pending invitation.
func (s *OrganizationService) CancelInvitation(orgID, userID uint64) error {
	if _, err := s.findInvitation(orgID, userID); err != nil {
		return err
	}
	if err := s.orgRepo.RemoveMember(orgID, userID); err != nil {
		return fmt.Errorf("failed to cancel invitation: %w", err)
	}
	return nil
}

// RespondToInvitation accepts or declines a pending invitation.
func (s *OrganizationService) RespondToInvitation(orgID, userID uint64, accept bool) (*models.OrganizationMember, error) {
	member, err := s.findInvitation(orgID, userID)
	if err != nil {
		return nil, err
	}

	if !accept {
		if err := s.orgRepo.RemoveMember(orgID, userID); err != nil {
			return nil, fmt.Errorf("failed to decline invitation: %w", err)
		}
		return nil, nil
	}

	now := time.Now()
	member.Role = models.RoleMember
	member.JoinedAt = &now
	if err := s.orgRepo.UpdateMember(member); err != nil {
		return nil, fmt.Errorf("failed to accept invitation: %w", err)
	}

	s.logger.Info("Invitation accepted", zap.Uint64("organization_id", orgID), zap.Uint64("user_id", userID))
	return member, nil
}

// LeaveOrganization removes the caller's own membership.
func (s *OrganizationService) LeaveOrganization(ctx context.Context, orgID, userID uint64) error {
	return s.removeMember(ctx, orgID, userID)
}

// RemoveMember removes a member from the organization.
func (s *OrganizationService) RemoveMember(ctx context.Context, orgID, targetID uint64) error {
	return s.removeMember(ctx, orgID, targetID)
}

func (s *OrganizationService) removeMember(ctx context.Context, orgID, userID uint64) error {
	return s.orgRepo.WithinTransaction(ctx, func(repo repository.OrganizationRepository) error {
		member, err := lockedMember(repo, orgID, userID)
		if err != nil {
			return err
		}
		if member.Role == models.RolePending {
			return ErrOrganizationMemberNotFound
		}
		if err := ensureAnotherOwner(repo, member); err != nil {
			return err
		}
		if err := repo.RemoveMember(orgID, userID); err != nil {
			return fmt.Errorf("failed to remove member: %w", err)
		}
		return nil
	})
}

// ChangeMemberRole switches a joined member between Owner and Member.
func (s *OrganizationService) ChangeMemberRole(ctx context.Context, orgID, targetID uint64, role models.OrganizationRole) (*models.OrganizationMember, error) {
	if role != models.RoleOwner && role != models.RoleMember {
		return nil, ErrInvalidRole
	}

	var updated *models.OrganizationMember
	err := s.orgRepo.WithinTransaction(ctx, func(repo repository.OrganizationRepository) error {
		member, err := lockedMember(repo, orgID, targetID)
		if err != nil {
			return err
		}
		if member.Role == models.RolePending {
			return ErrOrganizationMemberNotFound
		}
		if member.Role == role {
			updated = member
			return nil
		}
		if role != models.RoleOwner {
			if err := ensureAnotherOwner(repo, member); err != nil {
				return err
			}
		}
		member.Role = role
		if err := repo.UpdateMember(member); err != nil {
			return fmt.Errorf("failed to change role: %w", err)
		}
		updated = member
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetMembership returns the membership of a user, Pending included.
func (s *OrganizationService) GetMembership(orgID, userID uint64) (*models.OrganizationMember, error) {
	member, err := s.orgRepo.FindMember(orgID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrganizationMemberNotFound
		}
		return nil, fmt.Errorf("failed to find organization member: %w", err)
	}
	return member, nil
}

func (s *OrganizationService) findOrganization(orgID uint64) (*models.Organization, error) {
	org, err := s.orgRepo.FindByID(orgID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to find organization: %w", err)
	}
	return org, nil
}

func (s *OrganizationService) findInvitation(orgID, userID uint64) (*models.OrganizationMember, error) {
	member, err := s.orgRepo.FindMember(orgID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, fmt.Errorf("failed to find invitation: %w", err)
	}
	if member.Role != models.RolePending {
		return nil, ErrInvitationNotFound
	}
	return member, nil
}

// lockedMember locks the organization so that owner counts stay stable until
// the transaction ends.
func lockedMember(repo repository.OrganizationRepository, orgID, userID uint64) (*models.OrganizationMember, error) {
	if err := repo.Lock(orgID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to lock organization: %w", err)
	}
	member, err := repo.FindMember(orgID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrganizationMemberNotFound
		}
		return nil, fmt.Errorf("failed to find organization member: %w", err)
	}
	return member, nil
}

func ensureAnotherOwner(repo repository.OrganizationRepository, member *models.OrganizationMember) error {
	if member.Role != models.RoleOwner {
		return nil
	}
	owners, err := repo.CountByRole(member.OrganizationID, models.RoleOwner)
	if err != nil {
		return fmt.Errorf("failed to count owners: %w", err)
	}
	if owners <= 1 {
		return ErrLastOwner
	}
	return nil
}
