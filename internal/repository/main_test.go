package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"shapeit/internal/models"
	"shapeit/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	testutil.DisableCache(t)
	return testutil.NewTestDB(t)
}

func createUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	login := username
	u := &models.User{Name: username, Email: strings.ToLower(username) + "@example.com", GitHubUsername: &login}
	require.NoError(t, db.Create(u).Error)
	return u
}

func createPost(t *testing.T, db *gorm.DB, author *models.User, content string, at time.Time) *models.Post {
	t.Helper()
	p := &models.Post{UserID: author.ID, Content: content, CreatedAt: at}
	require.NoError(t, db.Create(p).Error)
	return p
}

func react(t *testing.T, db *gorm.DB, user *models.User, post *models.Post, shape models.Shape) *models.Reaction {
	t.Helper()
	r := &models.Reaction{UserID: user.ID, PostID: post.ID, Shape: shape}
	require.NoError(t, NewReactionRepository(db).Create(context.Background(), r))
	return r
}
