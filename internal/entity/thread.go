package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ModerationPending  = "pending"
	ModerationApproved = "approved"
	ModerationRejected = "rejected"
)

type Thread struct {
	ID               uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	AuthorID         uuid.UUID    `gorm:"type:uuid;not null;index" json:"author_id"`
	Author           User         `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author"`
	Title            string       `gorm:"size:255;not null" json:"title"`
	Content          string       `gorm:"type:text;not null" json:"content"`
	ModerationStatus string       `gorm:"size:20;not null;default:pending;index" json:"moderation_status"`
	Attachments      []Attachment `gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE" json:"attachments"`
	Comments         []Comment    `gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt        time.Time    `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t *Thread) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == uuid.Nil {
		t.ID, err = uuid.NewV7()
	}
	return
}
