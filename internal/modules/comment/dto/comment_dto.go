package dto

import (
	"time"

	commonDto "anoa.com/forumboard/pkg/dto"
	"github.com/google/uuid"
)

// CreateCommentRequest needs a thread id for a top-level comment or a parent
// id for a reply. With a parent id the thread id is taken from the parent.
type CreateCommentRequest struct {
	ThreadID *uuid.UUID `json:"thread_id"`
	ParentID *uuid.UUID `json:"parent_id"`
	Content  string     `json:"content" binding:"required,max=10000"`
}

type CommentResponse struct {
	ID               uuid.UUID                `json:"id"`
	ThreadID         uuid.UUID                `json:"thread_id"`
	ParentID         *uuid.UUID               `json:"parent_id"`
	Content          string                   `json:"content"`
	ModerationStatus string                   `json:"moderation_status"`
	Author           commonDto.AuthorResponse `json:"author"`
	CreatedAt        time.Time                `json:"created_at"`
	UpdatedAt        time.Time                `json:"updated_at"`
}

// CommentNode is a comment with its visible replies, oldest first.
type CommentNode struct {
	CommentResponse
	Replies []*CommentNode `json:"replies"`
}
