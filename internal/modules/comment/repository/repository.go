package repository

import (
	"context"

	"anoa.com/forumboard/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CommentRepository interface {
	Create(ctx context.Context, comment *entity.Comment) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Comment, error)
	// FindVisibleByThreadID returns approved, non-deleted comments oldest first.
	FindVisibleByThreadID(ctx context.Context, threadID uuid.UUID) ([]entity.Comment, error)
	// FindVisibleLinksByThreadIDs returns only id, thread_id and parent_id of
	// the visible comments, enough to count what a tree would show.
	FindVisibleLinksByThreadIDs(ctx context.Context, threadIDs []uuid.UUID) ([]entity.Comment, error)
	SoftDelete(ctx context.Context, id uuid.UUID) (bool, error)
}

type commentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *entity.Comment) error {
	if err := r.db.WithContext(ctx).Omit("Author").Create(comment).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("id = ?", comment.AuthorID).First(&comment.Author).Error
}

func (r *commentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Comment, error) {
	var comment entity.Comment
	if err := r.db.WithContext(ctx).
		Preload("Author").
		Where("id = ?", id).
		First(&comment).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *commentRepository) FindVisibleByThreadID(ctx context.Context, threadID uuid.UUID) ([]entity.Comment, error) {
	var comments []entity.Comment

	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("thread_id = ? AND moderation_status = ? AND is_deleted = ?", threadID, entity.ModerationApproved, false).
		Order("created_at ASC").
		Find(&comments).Error

	return comments, err
}

func (r *commentRepository) FindVisibleLinksByThreadIDs(ctx context.Context, threadIDs []uuid.UUID) ([]entity.Comment, error) {
	if len(threadIDs) == 0 {
		return []entity.Comment{}, nil
	}

	var comments []entity.Comment
	err := r.db.WithContext(ctx).
		Select("id", "thread_id", "parent_id").
		Where("thread_id IN ? AND moderation_status = ? AND is_deleted = ?", threadIDs, entity.ModerationApproved, false).
		Find(&comments).Error
	return comments, err
}

// SoftDelete flags the comment as deleted. It reports false when no live
// comment had that id.
func (r *commentRepository) SoftDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&entity.Comment{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Update("is_deleted", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
