package thread

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"anoa.com/forumboard/internal/entity"
	attachment "anoa.com/forumboard/internal/modules/attachment/service"
	commentRepo "anoa.com/forumboard/internal/modules/comment/repository"
	comment "anoa.com/forumboard/internal/modules/comment/service"
	moderation "anoa.com/forumboard/internal/modules/moderation/service"
	search "anoa.com/forumboard/internal/modules/search/service"
	threadDto "anoa.com/forumboard/internal/modules/thread/dto"
	repo "anoa.com/forumboard/internal/modules/thread/repository"
	"anoa.com/forumboard/pkg/apperror"
	commonDto "anoa.com/forumboard/pkg/dto"
	"anoa.com/forumboard/pkg/ratelimiter"
	"anoa.com/forumboard/pkg/sanitizer"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AutoReplier is told about new threads so ForumBot can welcome them.
// Calls must not block.
type AutoReplier interface {
	OnThreadCreated(thread entity.Thread)
	IsBot(id uuid.UUID) bool
}

type Service interface {
	CreateThread(ctx context.Context, authorID uuid.UUID, req threadDto.CreateThreadRequest) (*threadDto.ThreadResponse, error)
	ListThreads(ctx context.Context, q commonDto.PageQuery) (*threadDto.ThreadListResponse, error)
	GetThreadWithComments(ctx context.Context, id uuid.UUID) (*threadDto.ThreadDetailResponse, error)
	UpdateThread(ctx context.Context, id uuid.UUID, req threadDto.UpdateThreadRequest) (*threadDto.ThreadResponse, error)
	DeleteThread(ctx context.Context, id uuid.UUID) error
	SearchThreads(ctx context.Context, q threadDto.SearchThreadsQuery) (*threadDto.ThreadListResponse, error)
}

type service struct {
	threadRepo  repo.ThreadRepository
	commentRepo commentRepo.CommentRepository
	gate        moderation.Gate
	limiter     *ratelimiter.Limiter
	sanitizer   *sanitizer.Sanitizer
	search      search.SearchService
	attachments attachment.AttachmentService
	replier     AutoReplier
	logger      *slog.Logger
}

// NewService wires the thread service. search, attachments and replier may
// be nil.
func NewService(
	threadRepo repo.ThreadRepository,
	commentRepo commentRepo.CommentRepository,
	gate moderation.Gate,
	limiter *ratelimiter.Limiter,
	sanitizer *sanitizer.Sanitizer,
	search search.SearchService,
	attachments attachment.AttachmentService,
	replier AutoReplier,
	logger *slog.Logger,
) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		threadRepo:  threadRepo,
		commentRepo: commentRepo,
		gate:        gate,
		limiter:     limiter,
		sanitizer:   sanitizer,
		search:      search,
		attachments: attachments,
		replier:     replier,
		logger:      logger.With("component", "thread"),
	}
}

func (s *service) CreateThread(ctx context.Context, authorID uuid.UUID, req threadDto.CreateThreadRequest) (*threadDto.ThreadResponse, error) {
	if err := s.limiter.Acquire(ctx, authorID, ratelimiter.ActionGlobal, ratelimiter.ActionThread); err != nil {
		return nil, err
	}
	created := false
	defer func() {
		if !created {
			s.limiter.Release(context.WithoutCancel(ctx), authorID, ratelimiter.ActionGlobal, ratelimiter.ActionThread)
		}
	}()

	title, content, err := s.clean(req.Title, req.Content)
	if err != nil {
		return nil, err
	}

	// title first, the first rejection wins
	if err := moderation.ModerateAll(ctx, s.gate, title, content); err != nil {
		return nil, err
	}

	thread := &entity.Thread{
		AuthorID:         authorID,
		Title:            title,
		Content:          content,
		ModerationStatus: entity.ModerationApproved,
	}
	for _, att := range req.Attachments {
		thread.Attachments = append(thread.Attachments, entity.Attachment{FileURL: att.FileURL, MimeType: att.MimeType})
	}

	if err := s.threadRepo.Create(ctx, thread); err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}
	created = true

	s.index(ctx, thread)
	if s.replier != nil {
		s.replier.OnThreadCreated(*thread)
	}

	resp := s.buildThreadResponse(*thread, 0)
	return &resp, nil
}

func (s *service) ListThreads(ctx context.Context, q commonDto.PageQuery) (*threadDto.ThreadListResponse, error) {
	_, limit := q.Normalize()

	threads, total, err := s.threadRepo.FindApproved(ctx, q.Offset(), limit)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	return s.buildListResponse(ctx, q, threads, total)
}

func (s *service) GetThreadWithComments(ctx context.Context, id uuid.UUID) (*threadDto.ThreadDetailResponse, error) {
	thread, err := s.findThread(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.commentRepo.FindVisibleByThreadID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load comments: %w", err)
	}

	tree := comment.BuildTree(rows, s.isBot)
	return &threadDto.ThreadDetailResponse{
		ThreadResponse: s.buildThreadResponse(*thread, comment.CountNodes(tree)),
		Comments:       tree,
	}, nil
}

func (s *service) UpdateThread(ctx context.Context, id uuid.UUID, req threadDto.UpdateThreadRequest) (*threadDto.ThreadResponse, error) {
	thread, err := s.findThread(ctx, id)
	if err != nil {
		return nil, err
	}

	title, content, err := s.clean(req.Title, req.Content)
	if err != nil {
		return nil, err
	}
	if err := moderation.ModerateAll(ctx, s.gate, title, content); err != nil {
		return nil, err
	}

	thread.Title = title
	thread.Content = content
	thread.ModerationStatus = entity.ModerationApproved
	if err := s.threadRepo.UpdateContent(ctx, thread); err != nil {
		return nil, fmt.Errorf("update thread: %w", err)
	}

	s.index(ctx, thread)

	counts, err := s.countComments(ctx, []uuid.UUID{thread.ID})
	if err != nil {
		s.logger.Warn("failed to count comments", "thread_id", thread.ID, "error", err)
	}
	resp := s.buildThreadResponse(*thread, counts[thread.ID])
	return &resp, nil
}

func (s *service) DeleteThread(ctx context.Context, id uuid.UUID) error {
	thread, err := s.findThread(ctx, id)
	if err != nil {
		return err
	}

	if err := s.threadRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.New(http.StatusNotFound, "Thread not found", apperror.ErrNotFound)
		}
		return fmt.Errorf("delete thread: %w", err)
	}

	if s.attachments != nil {
		s.attachments.RemoveBlobs(ctx, thread.Attachments)
	}
	if s.search != nil {
		if err := s.search.DeleteThread(ctx, id); err != nil {
			s.logger.Warn("failed to remove thread from search index", "thread_id", id, "error", err)
		}
	}
	return nil
}

// SearchThreads asks meilisearch when it is configured and falls back to a
// database match when it is not or when the index is unreachable.
func (s *service) SearchThreads(ctx context.Context, q threadDto.SearchThreadsQuery) (*threadDto.ThreadListResponse, error) {
	_, limit := q.Normalize()

	if s.search != nil {
		ids, total, err := s.search.Search(ctx, q.Query, q.Offset(), limit)
		if err == nil {
			threads, err := s.threadRepo.FindApprovedByIDs(ctx, ids)
			if err != nil {
				return nil, fmt.Errorf("load search results: %w", err)
			}
			return s.buildListResponse(ctx, q.PageQuery, threads, total)
		}
		s.logger.Warn("search index unavailable, using database", "error", err)
	}

	threads, total, err := s.threadRepo.SearchApproved(ctx, q.Query, q.Offset(), limit)
	if err != nil {
		return nil, fmt.Errorf("search threads: %w", err)
	}
	return s.buildListResponse(ctx, q.PageQuery, threads, total)
}
