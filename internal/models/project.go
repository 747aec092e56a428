package models

import (
	"time"

	"github.com/yukikurage/unica-api/internal/properties"
	"gorm.io/datatypes"
)

type ProjectOwnerType string

const (
	ProjectOwnerUser         ProjectOwnerType = "user"
	ProjectOwnerOrganization ProjectOwnerType = "organization"
)

type Project struct {
	ID          uint64           `gorm:"primarykey" json:"id"`
	Name        string           `gorm:"type:varchar(20);not null" json:"name"`
	Description string           `gorm:"type:varchar(200)" json:"description"`
	OwnerType   ProjectOwnerType `gorm:"type:varchar(20);not null;index:idx_projects_owner" json:"owner_type"`
	OwnerID     uint64           `gorm:"not null;index:idx_projects_owner" json:"owner_id"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `gorm:"index" json:"updated_at"`

	// Relations
	Collection *TaskCollection `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
}

// TaskCollection is the property scope of a project's tasks.
type TaskCollection struct {
	ID               uint64                                     `gorm:"primarykey" json:"id"`
	ProjectID        uint64                                     `gorm:"uniqueIndex;not null" json:"project_id"`
	GlobalProperties datatypes.JSONType[properties.Definitions] `json:"global_properties"`

	// Relations
	Tasks []Task `gorm:"foreignKey:CollectionID;constraint:OnDelete:CASCADE" json:"-"`
}

// Definitions returns the collection's property definitions.
func (c *TaskCollection) Definitions() properties.Definitions {
	return c.GlobalProperties.Data()
}

// SetDefinitions replaces the collection's property definitions.
func (c *TaskCollection) SetDefinitions(defs properties.Definitions) {
	if defs == nil {
		defs = properties.Definitions{}
	}
	c.GlobalProperties = datatypes.NewJSONType(defs)
}
