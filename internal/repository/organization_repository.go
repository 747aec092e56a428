package repository

import (
	"context"

	"github.com/yukikurage/unica-api/internal/database"
	"github.com/yukikurage/unica-api/internal/models"
	"gorm.io/gorm"
)

// GormOrganizationRepository is a GORM implementation of OrganizationRepository
type GormOrganizationRepository struct {
	db *gorm.DB
}

// NewOrganizationRepository creates a new OrganizationRepository
func NewOrganizationRepository(db *gorm.DB) OrganizationRepository {
	return &GormOrganizationRepository{db: db}
}

// WithinTransaction runs fn inside a retried transaction
func (r *GormOrganizationRepository) WithinTransaction(ctx context.Context, fn func(repo OrganizationRepository) error) error {
	return database.Transact(ctx, r.db, func(tx *gorm.DB) error {
		return fn(&GormOrganizationRepository{db: tx})
	})
}

// Lock locks the organization row
func (r *GormOrganizationRepository) Lock(id uint64) error {
	return database.LockRow(r.db, "organizations", id)
}

// Create creates a new organization and its owner membership
func (r *GormOrganizationRepository) Create(org *models.Organization, owner *models.OrganizationMember) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(org).Error; err != nil {
			return err
		}
		owner.OrganizationID = org.ID
		return tx.Create(owner).Error
	})
}

// FindByID finds an organization by ID
func (r *GormOrganizationRepository) FindByID(id uint64) (*models.Organization, error) {
	var org models.Organization
	if err := r.db.First(&org, id).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

// Update updates an organization
func (r *GormOrganizationRepository) Update(org *models.Organization) error {
	return r.db.Save(org).Error
}

// Delete deletes an organization and all related data in a transaction
func (r *GormOrganizationRepository) Delete(id uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		// Delete projects owned by the organization
		var projectIDs []uint64
		if err := tx.Model(&models.Project{}).
			Where("owner_type = ? AND owner_id = ?", models.ProjectOwnerOrganization, id).
			Pluck("id", &projectIDs).Error; err != nil {
			return err
		}
		if err := deleteProjects(tx, projectIDs); err != nil {
			return err
		}

		// Delete the discussion
		discussions := tx.Model(&models.Discussion{}).Select("id").Where("organization_id = ?", id)
		topics := tx.Model(&models.DiscussionTopic{}).Select("id").Where("discussion_id IN (?)", discussions)
		if err := tx.Where("topic_id IN (?)", topics).Delete(&models.DiscussionComment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("discussion_id IN (?)", discussions).Delete(&models.DiscussionTopic{}).Error; err != nil {
			return err
		}
		if err := tx.Where("discussion_id IN (?)", discussions).Delete(&models.DiscussionCategory{}).Error; err != nil {
			return err
		}
		if err := tx.Where("organization_id = ?", id).Delete(&models.Discussion{}).Error; err != nil {
			return err
		}

		// Delete all members and invitations
		if err := tx.Where("organization_id = ?", id).Delete(&models.OrganizationMember{}).Error; err != nil {
			return err
		}

		// Delete organization
		return tx.Delete(&models.Organization{}, id).Error
	})
}

// AddMember adds a member to an organization
func (r *GormOrganizationRepository) AddMember(member *models.OrganizationMember) error {
	return r.db.Create(member).Error
}

// UpdateMember saves a membership
func (r *GormOrganizationRepository) UpdateMember(member *models.OrganizationMember) error {
	return r.db.Model(member).
		Select("Role", "JoinedAt").
		Updates(member).Error
}

// RemoveMember removes a member from an organization
func (r *GormOrganizationRepository) RemoveMember(organizationID, userID uint64) error {
	return r.db.Where("organization_id = ? AND user_id = ?", organizationID, userID).
		Delete(&models.OrganizationMember{}).Error
}

// FindMember finds a specific organization member
func (r *GormOrganizationRepository) FindMember(organizationID, userID uint64) (*models.OrganizationMember, error) {
	var member models.OrganizationMember
	if err := r.db.Where("organization_id = ? AND user_id = ?", organizationID, userID).
		First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// CountByRole counts memberships with the given role
func (r *GormOrganizationRepository) CountByRole(organizationID uint64, role models.OrganizationRole) (int64, error) {
	var count int64
	err := r.db.Model(&models.OrganizationMember{}).
		Where("organization_id = ? AND role = ?", organizationID, role).
		Count(&count).Error
	return count, err
}

// ListMembersByUserID lists the organizations a user belongs to or is invited to
func (r *GormOrganizationRepository) ListMembersByUserID(userID uint64, roles ...models.OrganizationRole) ([]models.OrganizationMember, error) {
	var memberships []models.OrganizationMember
	query := r.db.Joins("Organization").
		Where("organization_members.user_id = ?", userID)
	if len(roles) > 0 {
		query = query.Where("organization_members.role IN ?", roles)
	}
	if err := query.Order("organization_members.organization_id").
		Find(&memberships).Error; err != nil {
		return nil, err
	}
	return memberships, nil
}

// ListMembers lists all members of an organization
func (r *GormOrganizationRepository) ListMembers(organizationID uint64, roles ...models.OrganizationRole) ([]models.OrganizationMember, error) {
	var members []models.OrganizationMember
	query := r.db.Preload("User").
		Where("organization_id = ?", organizationID)
	if len(roles) > 0 {
		query = query.Where("role IN ?", roles)
	}
	if err := query.Order("user_id").Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}
