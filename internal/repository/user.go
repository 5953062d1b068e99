package repository

import (
	"context"
	"errors"

	"shapeit/internal/cache"
	"shapeit/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByGitHubUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	SetGitHubUsernameIfEmpty(ctx context.Context, id uint, username string) (bool, error)
	Delete(ctx context.Context, id uint) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// GetByEmail returns nil, nil when no user has email.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// GetByGitHubUsername resolves a provider username, case-insensitively.
// Hits are cached; misses are not.
func (r *userRepository) GetByGitHubUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := cache.Aside(ctx, cache.UsernameKey(username), cache.UserTTL, func(ctx context.Context) (*models.User, error) {
		var u models.User
		err := r.db.WithContext(ctx).
			Where("LOWER(github_username) = LOWER(?)", username).
			First(&u).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, models.NewNotFoundError("User", username)
			}
			return nil, models.NewInternalError(err)
		}
		return &u, nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("User already exists", ErrEmailTaken)
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("User already exists", ErrEmailTaken)
		}
		return models.NewInternalError(err)
	}
	cache.InvalidateUsername(ctx, user.Username())
	return nil
}

// SetGitHubUsernameIfEmpty stores username only when none is recorded yet.
// It reports whether the row was changed.
func (r *userRepository) SetGitHubUsernameIfEmpty(ctx context.Context, id uint, username string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND github_username IS NULL", id).
		Update("github_username", username)
	if res.Error != nil {
		if isUniqueConstraintError(res.Error) {
			return false, models.NewConflictError("GitHub username already linked to another account", ErrUsernameTaken)
		}
		return false, models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	cache.InvalidateUsername(ctx, username)
	return true, nil
}

// Delete removes the user with every reaction they made, every post they wrote
// and every reaction on those posts.
func (r *userRepository) Delete(ctx context.Context, id uint) error {
	var user models.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, id).Error; err != nil {
			return err
		}

		ownPosts := tx.Model(&models.Post{}).Select("id").Where("user_id = ?", id)
		if err := tx.Where("user_id = ? OR post_id IN (?)", id, ownPosts).Delete(&models.Reaction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Post{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("User", id)
		}
		return models.NewInternalError(err)
	}

	cache.InvalidateUsername(ctx, user.Username())
	cache.InvalidatePostCount(ctx)
	return nil
}
