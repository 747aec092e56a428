package models

import "time"

// Discussion is the forum of one organization.
type Discussion struct {
	ID             uint64    `gorm:"primarykey" json:"id"`
	OrganizationID uint64    `gorm:"uniqueIndex;not null" json:"organization_id"`
	CreatedAt      time.Time `json:"created_at"`

	// Relations
	Categories []DiscussionCategory `gorm:"foreignKey:DiscussionID;constraint:OnDelete:CASCADE" json:"-"`
	Topics     []DiscussionTopic    `gorm:"foreignKey:DiscussionID;constraint:OnDelete:CASCADE" json:"-"`
}

type DiscussionCategory struct {
	ID           uint64    `gorm:"primarykey" json:"-"`
	DiscussionID uint64    `gorm:"not null;uniqueIndex:idx_categories_discussion_local;uniqueIndex:idx_categories_discussion_name_color" json:"-"`
	LocalID      int       `gorm:"not null;uniqueIndex:idx_categories_discussion_local" json:"id"`
	Name         string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_categories_discussion_name_color" json:"name"`
	Color        string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_categories_discussion_name_color" json:"color"`
	Emoji        string    `gorm:"type:varchar(16)" json:"emoji,omitempty"`
	Description  string    `gorm:"type:varchar(200)" json:"description,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (c *DiscussionCategory) SetLocalID(id int) { c.LocalID = id }

type DiscussionTopic struct {
	ID           uint64    `gorm:"primarykey" json:"-"`
	DiscussionID uint64    `gorm:"not null;uniqueIndex:idx_topics_discussion_local;index:idx_topics_discussion_updated" json:"-"`
	LocalID      int       `gorm:"not null;uniqueIndex:idx_topics_discussion_local" json:"id"`
	Title        string    `gorm:"type:varchar(40);not null" json:"title"`
	CategoryID   *uint64   `json:"-"`
	OpenerID     uint64    `gorm:"not null" json:"opener_id"`
	Deleted      bool      `gorm:"not null;default:false" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `gorm:"index:idx_topics_discussion_updated" json:"updated_at"`

	// Relations
	Category *DiscussionCategory `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL" json:"category,omitempty"`
	Opener   User                `gorm:"foreignKey:OpenerID" json:"-"`
	Comments []DiscussionComment `gorm:"foreignKey:TopicID;constraint:OnDelete:CASCADE" json:"-"`
}

func (t *DiscussionTopic) SetLocalID(id int) { t.LocalID = id }

type DiscussionComment struct {
	ID        uint64    `gorm:"primarykey" json:"-"`
	TopicID   uint64    `gorm:"not null;uniqueIndex:idx_comments_topic_local" json:"-"`
	LocalID   int       `gorm:"not null;uniqueIndex:idx_comments_topic_local" json:"id"`
	UserID    uint64    `gorm:"not null" json:"user_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Edited    bool      `gorm:"not null;default:false" json:"edited"`
	Deleted   bool      `gorm:"not null;default:false" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (c *DiscussionComment) SetLocalID(id int) { c.LocalID = id }
