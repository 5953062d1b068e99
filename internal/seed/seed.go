package seed

import (
	"context"
	"fmt"
	"log"

	"shapeit/internal/models"

	"gorm.io/gorm"
)

// Summary reports what a run created.
type Summary struct {
	Users     int
	Posts     int
	Reactions int
}

// Run seeds db according to p. The same seed reproduces the same data.
func Run(ctx context.Context, db *gorm.DB, p Preset, seed int64) (*Summary, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if p.Clean {
		if err := ClearAll(ctx, db); err != nil {
			return nil, fmt.Errorf("failed to clear data: %w", err)
		}
	}

	f := NewFactory(db, seed)
	users := make([]*models.User, 0, p.Users)
	for i := 0; i < p.Users; i++ {
		u, err := f.CreateUser(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create users: %w", err)
		}
		users = append(users, u)
	}
	log.Printf("✓ %d users created", len(users))

	posts := make([]*models.Post, 0, p.Users*p.PostsPerUser)
	for _, u := range users {
		for i := 0; i < p.PostsPerUser; i++ {
			posts = append(posts, f.BuildPost(u, p.MaxDays))
		}
	}
	if err := f.CreatePostsBatch(ctx, posts); err != nil {
		return nil, fmt.Errorf("failed to create posts: %w", err)
	}
	log.Printf("✓ %d posts created", len(posts))

	reactions, err := f.React(ctx, users, posts, p.ReactionProbability)
	if err != nil {
		return nil, fmt.Errorf("failed to create reactions: %w", err)
	}
	log.Printf("✓ %d reactions created", reactions)

	return &Summary{Users: len(users), Posts: len(posts), Reactions: reactions}, nil
}

// ClearAll removes every reaction, post and user.
func ClearAll(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&models.Reaction{}, &models.Post{}, &models.User{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
