package dto

import (
	"time"

	attachmentDto "anoa.com/forumboard/internal/modules/attachment/dto"
	commentDto "anoa.com/forumboard/internal/modules/comment/dto"
	commonDto "anoa.com/forumboard/pkg/dto"
	"github.com/google/uuid"
)

// CreateThreadRequest carries attachments already uploaded through /uploads.
type CreateThreadRequest struct {
	Title       string                          `json:"title" binding:"required,max=255"`
	Content     string                          `json:"content" binding:"required,max=20000"`
	Attachments []attachmentDto.AttachmentInput `json:"attachments" binding:"omitempty,max=10,dive"`
}

type UpdateThreadRequest struct {
	Title   string `json:"title" binding:"required,max=255"`
	Content string `json:"content" binding:"required,max=20000"`
}

type SearchThreadsQuery struct {
	Query string `form:"q" binding:"required,max=200"`
	commonDto.PageQuery
}

type ThreadResponse struct {
	ID               uuid.UUID                          `json:"id"`
	Title            string                             `json:"title"`
	Content          string                             `json:"content"`
	ModerationStatus string                             `json:"moderation_status"`
	Author           commonDto.AuthorResponse           `json:"author"`
	Attachments      []attachmentDto.AttachmentResponse `json:"attachments"`
	CommentCount     int64                              `json:"comment_count"`
	CreatedAt        time.Time                          `json:"created_at"`
	UpdatedAt        time.Time                          `json:"updated_at"`
}

type ThreadDetailResponse struct {
	ThreadResponse
	Comments []*commentDto.CommentNode `json:"comments"`
}

type ThreadListResponse struct {
	Threads    []ThreadResponse         `json:"threads"`
	Pagination commonDto.PaginationMeta `json:"pagination"`
}
