package seed

import (
	"context"
	"strings"
	"testing"

	"shapeit/internal/models"
	"shapeit/internal/testutil"
	"shapeit/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPreset(t *testing.T) {
	p, err := LoadPreset(strings.NewReader("users: 3\nposts_per_user: 2\nreaction_probability: 0.5\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, p.Users)
	assert.Equal(t, 2, p.PostsPerUser)
	assert.Equal(t, 0.5, p.ReactionProbability)
	assert.Equal(t, DefaultPreset.MaxDays, p.MaxDays)

	p, err = LoadPreset(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultPreset, p)

	_, err = LoadPreset(strings.NewReader("reaction_probability: 1.5\n"))
	assert.Error(t, err)

	_, err = LoadPreset(strings.NewReader("users: 0\n"))
	assert.Error(t, err)

	_, err = LoadPreset(strings.NewReader("userz: 4\n"))
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	testutil.DisableCache(t)
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	preset := Preset{Users: 4, PostsPerUser: 3, ReactionProbability: 1, MaxDays: 7, Clean: true}
	sum, err := Run(ctx, db, preset, 42)
	require.NoError(t, err)
	assert.Equal(t, &Summary{Users: 4, Posts: 12, Reactions: 48}, sum)

	var users []models.User
	require.NoError(t, db.Find(&users).Error)
	require.Len(t, users, 4)
	for _, u := range users {
		assert.NoError(t, validation.GitHubUsername(u.Username()), u.Username())
	}

	var posts []models.Post
	require.NoError(t, db.Find(&posts).Error)
	for _, p := range posts {
		_, err := validation.PostContent(p.Content, len(p.Images))
		assert.NoError(t, err)
	}

	// A second clean run replaces everything.
	sum, err = Run(ctx, db, Preset{Users: 2, PostsPerUser: 1, ReactionProbability: 0, MaxDays: 1, Clean: true}, 7)
	require.NoError(t, err)
	assert.Zero(t, sum.Reactions)

	var n int64
	require.NoError(t, db.Model(&models.User{}).Count(&n).Error)
	assert.Equal(t, int64(2), n)
	require.NoError(t, db.Model(&models.Reaction{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestFactory_React_OnePerPair(t *testing.T) {
	testutil.DisableCache(t)
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	f := NewFactory(db, 1)

	a, err := f.CreateUser(ctx)
	require.NoError(t, err)
	b, err := f.CreateUser(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, a.Username(), b.Username())

	posts := []*models.Post{f.BuildPost(a, 3), f.BuildPost(b, 3)}
	require.NoError(t, f.CreatePostsBatch(ctx, posts))

	n, err := f.React(ctx, []*models.User{a, b}, posts, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	// The unique key rejects a second reaction on the same pair.
	_, err = f.React(ctx, []*models.User{a}, posts[:1], 1)
	assert.Error(t, err)
}
