package models

import "time"

type OrganizationRole string

const (
	RoleOwner   OrganizationRole = "Owner"
	RoleMember  OrganizationRole = "Member"
	RolePending OrganizationRole = "Pending"
)

// Valid reports whether r is one of the known roles.
func (r OrganizationRole) Valid() bool {
	switch r {
	case RoleOwner, RoleMember, RolePending:
		return true
	}
	return false
}

// OrganizationMember is a membership row. A Pending row is an invitation the
// user has not answered yet; JoinedAt stays nil until it is accepted.
type OrganizationMember struct {
	OrganizationID uint64           `gorm:"primarykey" json:"organization_id"`
	UserID         uint64           `gorm:"primarykey" json:"user_id"`
	Role           OrganizationRole `gorm:"type:varchar(20);not null" json:"role"`
	InvitedAt      time.Time        `gorm:"autoCreateTime" json:"invited_at"`
	JoinedAt       *time.Time       `json:"joined_at"`

	// Relations
	Organization Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	User         User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
