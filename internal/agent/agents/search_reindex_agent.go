package agents

import (
	"context"
	"fmt"
	"log/slog"

	"anoa.com/forumboard/internal/entity"
	search "anoa.com/forumboard/internal/modules/search/service"
	threadRepo "anoa.com/forumboard/internal/modules/thread/repository"
)

const SearchReindexName = "search-reindex"

// SearchReindexAgent pushes every approved thread to the search index again,
// repairing documents lost to best-effort indexing on the write path.
type SearchReindexAgent struct {
	threads   threadRepo.ThreadRepository
	search    search.SearchService
	schedule  string
	batchSize int
	logger    *slog.Logger
}

func NewSearchReindexAgent(threads threadRepo.ThreadRepository, search search.SearchService, schedule string, logger *slog.Logger) *SearchReindexAgent {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchReindexAgent{
		threads:   threads,
		search:    search,
		schedule:  schedule,
		batchSize: 200,
		logger:    logger.With("agent", SearchReindexName),
	}
}

func (a *SearchReindexAgent) GetName() string { return SearchReindexName }

func (a *SearchReindexAgent) GetSchedule() string { return a.schedule }

func (a *SearchReindexAgent) Execute(ctx context.Context) error {
	total := 0
	err := a.threads.EachApproved(ctx, a.batchSize, func(batch []entity.Thread) error {
		if err := a.search.IndexThreads(ctx, batch); err != nil {
			return err
		}
		total += len(batch)
		return nil
	})
	if err != nil {
		return fmt.Errorf("reindex threads: %w", err)
	}

	a.logger.Info("reindexed threads", "count", total)
	return nil
}
