package comment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"anoa.com/forumboard/internal/entity"
	commentDto "anoa.com/forumboard/internal/modules/comment/dto"
	commentRepo "anoa.com/forumboard/internal/modules/comment/repository"
	moderation "anoa.com/forumboard/internal/modules/moderation/service"
	threadRepo "anoa.com/forumboard/internal/modules/thread/repository"
	"anoa.com/forumboard/pkg/apperror"
	"anoa.com/forumboard/pkg/ratelimiter"
	"anoa.com/forumboard/pkg/sanitizer"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const EventCommentCreated = "comment.created"

// AutoReplier is told about new replies so ForumBot can answer replies to its
// own comments. Calls must not block.
type AutoReplier interface {
	OnCommentCreated(comment entity.Comment, parent entity.Comment)
	IsBot(id uuid.UUID) bool
}

// EventPublisher pushes thread events to live subscribers, best effort.
type EventPublisher interface {
	Publish(ctx context.Context, threadID uuid.UUID, event string, payload any) error
}

type Service interface {
	CreateComment(ctx context.Context, authorID uuid.UUID, req commentDto.CreateCommentRequest) (*commentDto.CommentResponse, error)
	GetCommentsByThread(ctx context.Context, threadID uuid.UUID) ([]*commentDto.CommentNode, error)
	DeleteComment(ctx context.Context, id uuid.UUID) error
}

type commentService struct {
	commentRepo commentRepo.CommentRepository
	threadRepo  threadRepo.ThreadRepository
	gate        moderation.Gate
	limiter     *ratelimiter.Limiter
	sanitizer   *sanitizer.Sanitizer
	replier     AutoReplier
	events      EventPublisher
	logger      *slog.Logger
}

func NewCommentService(
	commentRepo commentRepo.CommentRepository,
	threadRepo threadRepo.ThreadRepository,
	gate moderation.Gate,
	limiter *ratelimiter.Limiter,
	sanitizer *sanitizer.Sanitizer,
	replier AutoReplier,
	events EventPublisher,
	logger *slog.Logger,
) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &commentService{
		commentRepo: commentRepo,
		threadRepo:  threadRepo,
		gate:        gate,
		limiter:     limiter,
		sanitizer:   sanitizer,
		replier:     replier,
		events:      events,
		logger:      logger.With("component", "comment"),
	}
}

func (s *commentService) isBot(id uuid.UUID) bool {
	return s.replier != nil && s.replier.IsBot(id)
}

func (s *commentService) CreateComment(ctx context.Context, authorID uuid.UUID, req commentDto.CreateCommentRequest) (*commentDto.CommentResponse, error) {
	if req.ThreadID == nil && req.ParentID == nil {
		return nil, apperror.New(http.StatusBadRequest, "Comment must belong to a thread or another comment", apperror.ErrInvalidReference)
	}

	var (
		threadID uuid.UUID
		parent   *entity.Comment
	)
	if req.ParentID != nil {
		p, err := s.commentRepo.FindByID(ctx, *req.ParentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperror.New(http.StatusNotFound, "Parent comment not found", apperror.ErrParentNotFound)
			}
			return nil, fmt.Errorf("load parent comment: %w", err)
		}
		if !p.Visible() {
			return nil, apperror.New(http.StatusNotFound, "Parent comment not found", apperror.ErrParentNotFound)
		}
		// replies inherit the thread of their parent
		threadID = p.ThreadID
		parent = p
	} else {
		threadID = *req.ThreadID
		exists, err := s.threadRepo.Exists(ctx, threadID)
		if err != nil {
			return nil, fmt.Errorf("check thread: %w", err)
		}
		if !exists {
			return nil, apperror.New(http.StatusNotFound, "Thread not found", apperror.ErrNotFound)
		}
	}

	if err := s.limiter.Acquire(ctx, authorID, ratelimiter.ActionGlobal, ratelimiter.ActionComment); err != nil {
		return nil, err
	}
	created := false
	defer func() {
		if !created {
			s.limiter.Release(context.WithoutCancel(ctx), authorID, ratelimiter.ActionGlobal, ratelimiter.ActionComment)
		}
	}()

	content := s.sanitizer.Content(req.Content)
	if content == "" {
		return nil, apperror.New(http.StatusBadRequest, "Content is required", apperror.ErrInvalidInput)
	}

	if err := s.gate.Moderate(ctx, content); err != nil {
		return nil, err
	}

	comment := &entity.Comment{
		AuthorID:         authorID,
		ThreadID:         threadID,
		Content:          content,
		ModerationStatus: entity.ModerationApproved,
	}
	if parent != nil {
		comment.ParentID = &parent.ID
	}

	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	created = true

	if parent != nil && s.isBot(parent.AuthorID) && !s.isBot(authorID) {
		s.replier.OnCommentCreated(*comment, *parent)
	}

	resp := ToResponse(comment, s.isBot)
	s.publish(ctx, threadID, resp)

	return &resp, nil
}

func (s *commentService) publish(ctx context.Context, threadID uuid.UUID, payload commentDto.CommentResponse) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, threadID, EventCommentCreated, payload); err != nil {
		s.logger.Warn("failed to publish comment event", "thread_id", threadID, "comment_id", payload.ID, "error", err)
	}
}

func (s *commentService) GetCommentsByThread(ctx context.Context, threadID uuid.UUID) ([]*commentDto.CommentNode, error) {
	exists, err := s.threadRepo.Exists(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("check thread: %w", err)
	}
	if !exists {
		return nil, apperror.New(http.StatusNotFound, "Thread not found", apperror.ErrNotFound)
	}

	rows, err := s.commentRepo.FindVisibleByThreadID(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("load comments: %w", err)
	}
	return BuildTree(rows, s.isBot), nil
}

func (s *commentService) DeleteComment(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.commentRepo.SoftDelete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if !deleted {
		return apperror.New(http.StatusNotFound, "Comment not found", apperror.ErrNotFound)
	}
	return nil
}
