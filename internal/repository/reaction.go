package repository

import (
	"context"
	"errors"

	"shapeit/internal/models"

	"gorm.io/gorm"
)

// ReactionRepository defines persistence operations for shape reactions.
type ReactionRepository interface {
	GetByUserAndPost(ctx context.Context, userID, postID uint) (*models.Reaction, error)
	Create(ctx context.Context, reaction *models.Reaction) error
	UpdateShape(ctx context.Context, id uint, from, to models.Shape) error
	Delete(ctx context.Context, id uint, shape models.Shape) error
	CountByPosts(ctx context.Context, postIDs []uint) ([]models.ShapeCountRow, error)
	ListByUserForPosts(ctx context.Context, userID uint, postIDs []uint) (map[uint]models.Shape, error)
}

type reactionRepository struct {
	db *gorm.DB
}

// NewReactionRepository returns a new ReactionRepository implementation.
func NewReactionRepository(db *gorm.DB) ReactionRepository {
	return &reactionRepository{db: db}
}

// GetByUserAndPost returns nil, nil when the user has not reacted to the post.
func (r *reactionRepository) GetByUserAndPost(ctx context.Context, userID, postID uint) (*models.Reaction, error) {
	var reaction models.Reaction
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		First(&reaction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &reaction, nil
}

func (r *reactionRepository) Create(ctx context.Context, reaction *models.Reaction) error {
	if err := r.db.WithContext(ctx).Create(reaction).Error; err != nil {
		if isUniqueConstraintError(err) {
			return ErrReactionExists
		}
		return models.NewInternalError(err)
	}
	return nil
}

// UpdateShape changes the reaction's shape only if it still holds from.
func (r *reactionRepository) UpdateShape(ctx context.Context, id uint, from, to models.Shape) error {
	res := r.db.WithContext(ctx).
		Model(&models.Reaction{}).
		Where("id = ? AND shape = ?", id, from).
		Update("shape", to)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrReactionGone
	}
	return nil
}

// Delete removes the reaction only if it still holds shape.
func (r *reactionRepository) Delete(ctx context.Context, id uint, shape models.Shape) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND shape = ?", id, shape).
		Delete(&models.Reaction{})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrReactionGone
	}
	return nil
}

// CountByPosts returns one row per (post, shape) pair that has at least one reaction.
func (r *reactionRepository) CountByPosts(ctx context.Context, postIDs []uint) ([]models.ShapeCountRow, error) {
	if len(postIDs) == 0 {
		return nil, nil
	}

	var rows []models.ShapeCountRow
	err := r.db.WithContext(ctx).
		Model(&models.Reaction{}).
		Select("post_id, shape, COUNT(*) AS count").
		Where("post_id IN ?", postIDs).
		Group("post_id, shape").
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}

func (r *reactionRepository) ListByUserForPosts(ctx context.Context, userID uint, postIDs []uint) (map[uint]models.Shape, error) {
	out := make(map[uint]models.Shape, len(postIDs))
	if userID == 0 || len(postIDs) == 0 {
		return out, nil
	}

	var reactions []models.Reaction
	err := r.db.WithContext(ctx).
		Select("post_id, shape").
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Find(&reactions).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, re := range reactions {
		out[re.PostID] = re.Shape
	}
	return out, nil
}
