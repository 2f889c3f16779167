package thread

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"anoa.com/forumboard/internal/entity"
	attachmentDto "anoa.com/forumboard/internal/modules/attachment/dto"
	comment "anoa.com/forumboard/internal/modules/comment/service"
	threadDto "anoa.com/forumboard/internal/modules/thread/dto"
	"anoa.com/forumboard/pkg/apperror"
	commonDto "anoa.com/forumboard/pkg/dto"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (s *service) isBot(id uuid.UUID) bool {
	return s.replier != nil && s.replier.IsBot(id)
}

func (s *service) findThread(ctx context.Context, id uuid.UUID) (*entity.Thread, error) {
	thread, err := s.threadRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.New(http.StatusNotFound, "Thread not found", apperror.ErrNotFound)
		}
		return nil, fmt.Errorf("load thread: %w", err)
	}
	return thread, nil
}

func (s *service) clean(rawTitle, rawContent string) (string, string, error) {
	title := s.sanitizer.Title(rawTitle)
	if title == "" {
		return "", "", apperror.New(http.StatusBadRequest, "Title is required", apperror.ErrInvalidInput)
	}
	content := s.sanitizer.Content(rawContent)
	if content == "" {
		return "", "", apperror.New(http.StatusBadRequest, "Content is required", apperror.ErrInvalidInput)
	}
	return title, content, nil
}

func (s *service) index(ctx context.Context, thread *entity.Thread) {
	if s.search == nil {
		return
	}
	if err := s.search.IndexThread(ctx, thread); err != nil {
		s.logger.Warn("failed to index thread", "thread_id", thread.ID, "error", err)
	}
}

func (s *service) buildThreadResponse(thread entity.Thread, commentCount int64) threadDto.ThreadResponse {
	attachments := make([]attachmentDto.AttachmentResponse, 0, len(thread.Attachments))
	for _, att := range thread.Attachments {
		attachments = append(attachments, attachmentDto.AttachmentResponse{
			ID:       att.ID,
			FileURL:  att.FileURL,
			MimeType: att.MimeType,
		})
	}

	author := commonDto.AuthorResponse{ID: thread.AuthorID, Username: "Unknown", IsBot: s.isBot(thread.AuthorID)}
	if thread.Author.Username != "" {
		author.Username = thread.Author.Username
	}

	return threadDto.ThreadResponse{
		ID:               thread.ID,
		Title:            thread.Title,
		Content:          thread.Content,
		ModerationStatus: thread.ModerationStatus,
		Author:           author,
		Attachments:      attachments,
		CommentCount:     commentCount,
		CreatedAt:        thread.CreatedAt,
		UpdatedAt:        thread.UpdatedAt,
	}
}

// countComments matches what the detail tree shows, so replies under a
// deleted comment are not counted.
func (s *service) countComments(ctx context.Context, threadIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	links, err := s.commentRepo.FindVisibleLinksByThreadIDs(ctx, threadIDs)
	if err != nil {
		return nil, err
	}
	return comment.CountVisible(links), nil
}

func (s *service) buildListResponse(ctx context.Context, q commonDto.PageQuery, threads []entity.Thread, total int64) (*threadDto.ThreadListResponse, error) {
	ids := make([]uuid.UUID, 0, len(threads))
	for _, t := range threads {
		ids = append(ids, t.ID)
	}
	counts, err := s.countComments(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("count comments: %w", err)
	}

	resp := &threadDto.ThreadListResponse{
		Threads:    make([]threadDto.ThreadResponse, 0, len(threads)),
		Pagination: commonDto.NewPaginationMeta(q, total, len(threads)),
	}
	for _, t := range threads {
		resp.Threads = append(resp.Threads, s.buildThreadResponse(t, counts[t.ID]))
	}
	return resp, nil
}
