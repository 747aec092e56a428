package models

import (
	"time"

	"github.com/yukikurage/unica-api/internal/properties"
	"gorm.io/datatypes"
)

type Task struct {
	ID               uint64                                         `gorm:"primarykey" json:"id"`
	CollectionID     uint64                                         `gorm:"not null;uniqueIndex:idx_tasks_collection_local" json:"collection_id"`
	LocalID          int                                            `gorm:"not null;uniqueIndex:idx_tasks_collection_local" json:"local_id"`
	Title            string                                         `gorm:"type:varchar(100);not null" json:"title"`
	Description      string                                         `gorm:"type:text" json:"description"`
	Archived         bool                                           `gorm:"not null;default:false" json:"archived"`
	Deleted          bool                                           `gorm:"not null;default:false" json:"-"`
	GlobalProperties datatypes.JSONType[properties.Values]          `json:"global_properties"`
	LocalProperties  datatypes.JSONType[properties.LocalProperties] `json:"local_properties"`
	CreatedAt        time.Time                                      `json:"created_at"`
	UpdatedAt        time.Time                                      `json:"updated_at"`
}

func (t *Task) SetLocalID(id int) { t.LocalID = id }

func (t *Task) Values() properties.Values {
	if v := t.GlobalProperties.Data(); v != nil {
		return v
	}
	return properties.Values{}
}

func (t *Task) SetValues(v properties.Values) {
	if v == nil {
		v = properties.Values{}
	}
	t.GlobalProperties = datatypes.NewJSONType(v)
}

func (t *Task) Locals() properties.LocalProperties {
	if v := t.LocalProperties.Data(); v != nil {
		return v
	}
	return properties.LocalProperties{}
}

func (t *Task) SetLocals(v properties.LocalProperties) {
	if v == nil {
		v = properties.LocalProperties{}
	}
	t.LocalProperties = datatypes.NewJSONType(v)
}

// TaskPin records that a user pinned a task.
type TaskPin struct {
	UserID    uint64    `gorm:"primarykey" json:"user_id"`
	TaskID    uint64    `gorm:"primarykey;index" json:"task_id"`
	CreatedAt time.Time `json:"created_at"`

	// Relations
	Task Task `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE" json:"-"`
}
