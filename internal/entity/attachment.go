package entity

import (
	"time"

	"github.com/google/uuid"
)

type Attachment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ThreadID  uuid.UUID `gorm:"type:uuid;not null;index" json:"thread_id"`
	FileURL   string    `gorm:"type:text;not null" json:"file_url"`
	MimeType  string    `gorm:"size:100;not null" json:"mime_type"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
