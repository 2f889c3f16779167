package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Comment is a reply to a thread. ThreadID always names the root thread,
// also for replies to other comments.
type Comment struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	AuthorID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"author_id"`
	Author           User       `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author"`
	ThreadID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"thread_id"`
	ParentID         *uuid.UUID `gorm:"type:uuid;index" json:"parent_id"`
	Content          string     `gorm:"type:text;not null" json:"content"`
	ModerationStatus string     `gorm:"size:20;not null;default:pending" json:"moderation_status"`
	IsDeleted        bool       `gorm:"not null;default:false" json:"is_deleted"`
	CreatedAt        time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID, err = uuid.NewV7()
	}
	return
}

// Visible reports whether the comment is shown on the read path.
func (c *Comment) Visible() bool {
	return !c.IsDeleted && c.ModerationStatus == ModerationApproved
}
