package repository

import (
	"context"
	"strings"

	"anoa.com/forumboard/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ThreadRepository interface {
	// Create stores the thread and its attachments in one transaction.
	Create(ctx context.Context, thread *entity.Thread) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Thread, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	FindApproved(ctx context.Context, offset, limit int) ([]entity.Thread, int64, error)
	FindApprovedByIDs(ctx context.Context, ids []uuid.UUID) ([]entity.Thread, error)
	SearchApproved(ctx context.Context, query string, offset, limit int) ([]entity.Thread, int64, error)
	// EachApproved walks all approved threads in batches, used for reindexing.
	EachApproved(ctx context.Context, batchSize int, fn func([]entity.Thread) error) error
	UpdateContent(ctx context.Context, thread *entity.Thread) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type threadRepository struct {
	db *gorm.DB
}

func NewThreadRepository(db *gorm.DB) ThreadRepository {
	return &threadRepository{db: db}
}

func (r *threadRepository) Create(ctx context.Context, thread *entity.Thread) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// attachments are created by the association save
		return tx.Omit("Author").Create(thread).Error
	})
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("id = ?", thread.AuthorID).First(&thread.Author).Error
}

func (r *threadRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Thread, error) {
	var thread entity.Thread
	if err := r.db.WithContext(ctx).
		Preload("Author").
		Preload("Attachments").
		Where("id = ?", id).
		First(&thread).Error; err != nil {
		return nil, err
	}
	return &thread, nil
}

func (r *threadRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entity.Thread{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *threadRepository) approved(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&entity.Thread{}).
		Where("moderation_status = ?", entity.ModerationApproved)
}

func withRelations(q *gorm.DB) *gorm.DB {
	return q.Preload("Author").Preload("Attachments")
}

func (r *threadRepository) FindApproved(ctx context.Context, offset, limit int) ([]entity.Thread, int64, error) {
	var threads []entity.Thread
	var total int64

	if err := r.approved(ctx).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := withRelations(r.approved(ctx)).Order("created_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&threads).Error; err != nil {
		return nil, 0, err
	}

	return threads, total, nil
}

// FindApprovedByIDs keeps the order of ids and skips ids without an approved row.
func (r *threadRepository) FindApprovedByIDs(ctx context.Context, ids []uuid.UUID) ([]entity.Thread, error) {
	if len(ids) == 0 {
		return []entity.Thread{}, nil
	}

	var rows []entity.Thread
	if err := withRelations(r.approved(ctx)).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]entity.Thread, len(rows))
	for _, t := range rows {
		byID[t.ID] = t
	}
	threads := make([]entity.Thread, 0, len(rows))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			threads = append(threads, t)
		}
	}
	return threads, nil
}

// likeEscaper makes user input match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func (r *threadRepository) SearchApproved(ctx context.Context, query string, offset, limit int) ([]entity.Thread, int64, error) {
	var threads []entity.Thread
	var total int64

	// LOWER LIKE works on postgres and sqlite, ILIKE only on postgres
	pattern := "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"
	match := func() *gorm.DB {
		return r.approved(ctx).Where("LOWER(title) LIKE ? ESCAPE '!' OR LOWER(content) LIKE ? ESCAPE '!'", pattern, pattern)
	}

	if err := match().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := withRelations(match()).Order("created_at DESC").Offset(offset).Limit(limit).Find(&threads).Error; err != nil {
		return nil, 0, err
	}
	return threads, total, nil
}

func (r *threadRepository) EachApproved(ctx context.Context, batchSize int, fn func([]entity.Thread) error) error {
	var batch []entity.Thread
	res := withRelations(r.approved(ctx)).FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
		return fn(batch)
	})
	return res.Error
}

func (r *threadRepository) UpdateContent(ctx context.Context, thread *entity.Thread) error {
	return r.db.WithContext(ctx).
		Model(thread).
		Select("title", "content", "moderation_status", "updated_at").
		Updates(thread).Error
}

// Delete removes the thread with its comments and attachments.
func (r *threadRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("thread_id = ?", id).Delete(&entity.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("thread_id = ?", id).Delete(&entity.Attachment{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&entity.Thread{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
