package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"anoa.com/forumboard/internal/entity"
	commentRepo "anoa.com/forumboard/internal/modules/comment/repository"
	threadRepo "anoa.com/forumboard/internal/modules/thread/repository"
	"anoa.com/forumboard/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ResourceThread  = "thread"
	ResourceComment = "comment"
)

type Actor struct {
	ID   uuid.UUID
	Role string
}

// OwnershipService decides whether an actor may change a thread or comment.
// Admins may change anything. A thread belongs to its author; a comment
// belongs to its author and to the author of its thread.
type OwnershipService interface {
	Authorize(ctx context.Context, actor Actor, resourceType string, id uuid.UUID) error
}

type ownershipService struct {
	threads  threadRepo.ThreadRepository
	comments commentRepo.CommentRepository
}

func NewOwnershipService(threads threadRepo.ThreadRepository, comments commentRepo.CommentRepository) OwnershipService {
	return &ownershipService{threads: threads, comments: comments}
}

var errForbidden = apperror.New(http.StatusForbidden, "You do not have permission to modify this resource", apperror.ErrForbidden)

func (s *ownershipService) Authorize(ctx context.Context, actor Actor, resourceType string, id uuid.UUID) error {
	switch resourceType {
	case ResourceThread:
		thread, err := s.thread(ctx, id)
		if err != nil {
			return err
		}
		if actor.Role == entity.RoleAdmin || thread.AuthorID == actor.ID {
			return nil
		}
		return errForbidden

	case ResourceComment:
		c, err := s.comments.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.New(http.StatusNotFound, "Comment not found", apperror.ErrNotFound)
			}
			return fmt.Errorf("load comment: %w", err)
		}
		if c.IsDeleted {
			return apperror.New(http.StatusNotFound, "Comment not found", apperror.ErrNotFound)
		}
		if actor.Role == entity.RoleAdmin || c.AuthorID == actor.ID {
			return nil
		}
		thread, err := s.thread(ctx, c.ThreadID)
		if err != nil {
			return err
		}
		if thread.AuthorID == actor.ID {
			return nil
		}
		return errForbidden
	}

	return fmt.Errorf("unknown resource type %q", resourceType)
}

func (s *ownershipService) thread(ctx context.Context, id uuid.UUID) (*entity.Thread, error) {
	thread, err := s.threads.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.New(http.StatusNotFound, "Thread not found", apperror.ErrNotFound)
		}
		return nil, fmt.Errorf("load thread: %w", err)
	}
	return thread, nil
}
