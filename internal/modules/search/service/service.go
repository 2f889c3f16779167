package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"anoa.com/forumboard/internal/entity"
	"anoa.com/forumboard/pkg/sanitizer"
	"github.com/google/uuid"
	"github.com/meilisearch/meilisearch-go"
)

const ThreadsIndex = "threads"

// SearchService keeps the meilisearch thread index. Only approved threads are
// indexed; callers treat index errors as non fatal.
type SearchService interface {
	IndexThread(ctx context.Context, thread *entity.Thread) error
	IndexThreads(ctx context.Context, threads []entity.Thread) error
	DeleteThread(ctx context.Context, id uuid.UUID) error
	// Search returns matching thread ids, best match first, and the estimated total.
	Search(ctx context.Context, query string, offset, limit int) ([]uuid.UUID, int64, error)
}

type meiliSearchService struct {
	client    meilisearch.ServiceManager
	sanitizer *sanitizer.Sanitizer
	logger    *slog.Logger
}

func NewMeiliSearchService(client meilisearch.ServiceManager, sanitizer *sanitizer.Sanitizer, logger *slog.Logger) SearchService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &meiliSearchService{
		client:    client,
		sanitizer: sanitizer,
		logger:    logger.With("component", "search"),
	}
	s.initIndexes()
	return s
}

// NewClient returns nil when no host is configured, which selects the
// database fallback in the thread service.
func NewClient(host, apiKey string) meilisearch.ServiceManager {
	if host == "" {
		return nil
	}
	return meilisearch.New(host, meilisearch.WithAPIKey(apiKey))
}

func (s *meiliSearchService) initIndexes() {
	searchable := []string{"title", "content", "author"}
	if _, err := s.client.Index(ThreadsIndex).UpdateSearchableAttributes(&searchable); err != nil {
		s.logger.Warn("failed to update searchable attributes", "index", ThreadsIndex, "error", err)
	}

	sortable := []string{"created_at"}
	if _, err := s.client.Index(ThreadsIndex).UpdateSortableAttributes(&sortable); err != nil {
		s.logger.Warn("failed to update sortable attributes", "index", ThreadsIndex, "error", err)
	}
}

type threadDoc struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Author    string `json:"author"`
	CreatedAt int64  `json:"created_at"`
}

func (s *meiliSearchService) toDoc(thread *entity.Thread) threadDoc {
	return threadDoc{
		ID:        thread.ID.String(),
		Title:     thread.Title,
		Content:   s.sanitizer.PlainText(thread.Content),
		Author:    thread.Author.Username,
		CreatedAt: thread.CreatedAt.Unix(),
	}
}

func (s *meiliSearchService) IndexThread(ctx context.Context, thread *entity.Thread) error {
	if thread.ModerationStatus != entity.ModerationApproved {
		return s.DeleteThread(ctx, thread.ID)
	}
	return s.IndexThreads(ctx, []entity.Thread{*thread})
}

func (s *meiliSearchService) IndexThreads(_ context.Context, threads []entity.Thread) error {
	docs := make([]threadDoc, 0, len(threads))
	for i := range threads {
		if threads[i].ModerationStatus != entity.ModerationApproved {
			continue
		}
		docs = append(docs, s.toDoc(&threads[i]))
	}
	if len(docs) == 0 {
		return nil
	}

	task, err := s.client.Index(ThreadsIndex).AddDocuments(docs, strPtr("id"))
	if err != nil {
		return fmt.Errorf("index threads: %w", err)
	}
	s.logger.Debug("indexed threads", "count", len(docs), "task_uid", task.TaskUID)
	return nil
}

func (s *meiliSearchService) DeleteThread(_ context.Context, id uuid.UUID) error {
	if _, err := s.client.Index(ThreadsIndex).DeleteDocument(id.String()); err != nil {
		return fmt.Errorf("delete thread document: %w", err)
	}
	return nil
}

type searchHits struct {
	Hits []struct {
		ID string `json:"id"`
	} `json:"hits"`
	EstimatedTotalHits int64 `json:"estimatedTotalHits"`
}

func (s *meiliSearchService) Search(_ context.Context, query string, offset, limit int) ([]uuid.UUID, int64, error) {
	raw, err := s.client.Index(ThreadsIndex).SearchRaw(query, &meilisearch.SearchRequest{
		Offset:               int64(offset),
		Limit:                int64(limit),
		AttributesToRetrieve: []string{"id"},
	})
	if err != nil {
		return nil, 0, fmt.Errorf("search threads: %w", err)
	}

	var res searchHits
	if err := json.Unmarshal(*raw, &res); err != nil {
		return nil, 0, fmt.Errorf("decode search response: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(res.Hits))
	for _, hit := range res.Hits {
		id, err := uuid.Parse(hit.ID)
		if err != nil {
			s.logger.Warn("skipping search hit with bad id", "id", hit.ID)
			continue
		}
		ids = append(ids, id)
	}
	return ids, res.EstimatedTotalHits, nil
}

func strPtr(s string) *string {
	return &s
}
