package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"shapeit/internal/models"
	"shapeit/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_GetByGitHubUsername(t *testing.T) {
	db := testutil.NewTestDB(t)
	mr, _ := testutil.NewTestRedis(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	created := createUser(t, db, "Octocat")

	got, err := repo.GetByGitHubUsername(ctx, "octocat")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.True(t, mr.Exists("user:gh:octocat"))

	_, err = repo.GetByGitHubUsername(ctx, "nobody")
	assert.True(t, models.IsNotFound(err))
	assert.False(t, mr.Exists("user:gh:nobody"))
}

func TestUserRepository_GetByEmail(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	createUser(t, db, "alice")

	got, err := repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.Name)

	got, err = repo.GetByEmail(ctx, "missing@example.com")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestUserRepository_CreateDuplicateEmailIsConflict(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.User{Name: "a", Email: "same@example.com"}))
	err := repo.Create(ctx, &models.User{Name: "b", Email: "same@example.com"})
	assert.Equal(t, models.CodeConflict, models.ErrorCode(err))
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.NotContains(t, strings.ToLower(err.Error()), "unique")
}

func TestUserRepository_SetGitHubUsernameIfEmpty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	u := &models.User{Name: "new", Email: "new@example.com"}
	require.NoError(t, repo.Create(ctx, u))

	changed, err := repo.SetGitHubUsernameIfEmpty(ctx, u.ID, "newbie")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.SetGitHubUsernameIfEmpty(ctx, u.ID, "someone-else")
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "newbie", got.Username())

	other := &models.User{Name: "other", Email: "other@example.com"}
	require.NoError(t, repo.Create(ctx, other))
	_, err = repo.SetGitHubUsernameIfEmpty(ctx, other.ID, "newbie")
	assert.Equal(t, models.CodeConflict, models.ErrorCode(err))
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestUserRepository_DeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	leaving := createUser(t, db, "leaving")
	staying := createUser(t, db, "staying")

	ownPost := createPost(t, db, leaving, "mine", time.Now())
	otherPost := createPost(t, db, staying, "theirs", time.Now())

	react(t, db, staying, ownPost, models.ShapeCircle)
	react(t, db, leaving, otherPost, models.ShapeSquare)
	react(t, db, staying, otherPost, models.ShapeDiamond)

	require.NoError(t, repo.Delete(ctx, leaving.ID))

	var users, posts, reactions int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	require.NoError(t, db.Model(&models.Post{}).Count(&posts).Error)
	require.NoError(t, db.Model(&models.Reaction{}).Count(&reactions).Error)
	assert.Equal(t, int64(1), users)
	assert.Equal(t, int64(1), posts)
	assert.Equal(t, int64(1), reactions)

	assert.True(t, models.IsNotFound(repo.Delete(ctx, leaving.ID)))
}
