package models

import (
	"time"

	"gorm.io/gorm"
)

type Organization struct {
	ID          uint64         `gorm:"primarykey" json:"id"`
	Name        string         `gorm:"type:varchar(20);not null" json:"name"`
	Description string         `gorm:"type:varchar(200)" json:"description"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Members    []OrganizationMember `gorm:"foreignKey:OrganizationID" json:"members,omitempty"`
	Discussion *Discussion          `gorm:"foreignKey:OrganizationID" json:"-"`
}
