package service

import (
	"context"
	"errors"
	"testing"

	"shapeit/internal/cache"
	"shapeit/internal/featureflags"
	"shapeit/internal/models"
	"shapeit/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestUserService_SignIn(t *testing.T) {
	ctx := context.Background()

	t.Run("creates on first sign-in", func(t *testing.T) {
		users := noopUserRepo()
		var created *models.User
		users.createFn = func(_ context.Context, u *models.User) error {
			u.ID = 5
			created = u
			return nil
		}
		svc := NewUserService(users, nil, nil)

		user, err := svc.SignIn(ctx, ProviderIdentity{AccountID: "42", Email: " Ada@Example.COM ", Name: " Ada ", Image: "https://img/ada"})
		require.NoError(t, err)
		assert.Equal(t, uint(5), user.ID)
		assert.Equal(t, "ada@example.com", created.Email)
		assert.Equal(t, "Ada", created.Name)
		assert.Equal(t, "42", created.ProviderAccountID)
	})

	t.Run("refreshes an existing user", func(t *testing.T) {
		users := noopUserRepo()
		users.getByEmailFn = func(_ context.Context, email string) (*models.User, error) {
			return &models.User{ID: 9, Email: email, Name: "Old", Image: "old"}, nil
		}
		var updated *models.User
		users.updateFn = func(_ context.Context, u *models.User) error {
			updated = u
			return nil
		}
		users.createFn = func(context.Context, *models.User) error {
			t.Fatal("create must not be called for an existing user")
			return nil
		}
		svc := NewUserService(users, nil, nil)

		user, err := svc.SignIn(ctx, ProviderIdentity{AccountID: "42", Email: "ada@example.com", Name: "New", Image: "new"})
		require.NoError(t, err)
		assert.Equal(t, uint(9), user.ID)
		require.NotNil(t, updated)
		assert.Equal(t, "New", updated.Name)
		assert.Equal(t, "new", updated.Image)
	})

	t.Run("unchanged profile skips update", func(t *testing.T) {
		users := noopUserRepo()
		users.getByEmailFn = func(_ context.Context, email string) (*models.User, error) {
			return &models.User{ID: 9, Email: email, Name: "Ada", Image: "img", ProviderAccountID: "42"}, nil
		}
		users.updateFn = func(context.Context, *models.User) error {
			t.Fatal("update must not be called")
			return nil
		}
		_, err := NewUserService(users, nil, nil).SignIn(ctx, ProviderIdentity{AccountID: "42", Email: "ada@example.com", Name: "Ada", Image: "img"})
		require.NoError(t, err)
	})

	t.Run("concurrent create re-reads", func(t *testing.T) {
		users := noopUserRepo()
		reads := 0
		users.getByEmailFn = func(_ context.Context, email string) (*models.User, error) {
			reads++
			if reads == 1 {
				return nil, nil
			}
			return &models.User{ID: 3, Email: email, Name: "Ada"}, nil
		}
		users.createFn = func(context.Context, *models.User) error {
			return models.NewConflictError("User already exists", errors.New("duplicate"))
		}
		user, err := NewUserService(users, nil, nil).SignIn(ctx, ProviderIdentity{Email: "ada@example.com", Name: "Ada"})
		require.NoError(t, err)
		assert.Equal(t, uint(3), user.ID)
		assert.Equal(t, 2, reads)
	})

	t.Run("missing email", func(t *testing.T) {
		_, err := NewUserService(noopUserRepo(), nil, nil).SignIn(ctx, ProviderIdentity{Name: "Ada"})
		assertValidationError(t, err)
	})
}

func TestUserService_EnrichProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("backfills once", func(t *testing.T) {
		users := noopUserRepo()
		stored := &models.User{ID: 1, ProviderAccountID: "583231"}
		users.getByIDFn = func(context.Context, uint) (*models.User, error) {
			cp := *stored
			return &cp, nil
		}
		users.setGitHubUsernameIfEmptyFn = func(_ context.Context, _ uint, login string) (bool, error) {
			stored.GitHubUsername = strPtr(login)
			return true, nil
		}
		lookups := 0
		provider := &providerStub{loginFn: func(_ context.Context, id string) (string, error) {
			lookups++
			assert.Equal(t, "583231", id)
			return "octocat", nil
		}}
		svc := NewUserService(users, provider, nil)

		user, err := svc.EnrichProfile(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "octocat", user.Username())

		user, err = svc.EnrichProfile(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "octocat", user.Username())
		assert.Equal(t, 1, lookups)
	})

	t.Run("no linked account", func(t *testing.T) {
		_, err := NewUserService(noopUserRepo(), &providerStub{}, nil).EnrichProfile(ctx, 1)
		assertValidationError(t, err)
	})

	t.Run("provider failure leaves user unchanged", func(t *testing.T) {
		users := noopUserRepo()
		users.getByIDFn = func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id, ProviderAccountID: "1"}, nil
		}
		users.setGitHubUsernameIfEmptyFn = func(context.Context, uint, string) (bool, error) {
			t.Fatal("username must not be written")
			return false, nil
		}
		provider := &providerStub{loginFn: func(context.Context, string) (string, error) {
			return "", errors.New("rate limited")
		}}
		_, err := NewUserService(users, provider, nil).EnrichProfile(ctx, 1)
		assertAppError(t, err, models.CodeInternal)
	})

	t.Run("anonymous", func(t *testing.T) {
		_, err := NewUserService(noopUserRepo(), nil, nil).EnrichProfile(ctx, 0)
		assertAppError(t, err, models.CodeUnauthenticated)
	})
}

func TestUserService_GetByUsername(t *testing.T) {
	ctx := context.Background()
	users := noopUserRepo()
	users.getByGitHubUsernameFn = func(_ context.Context, username string) (*models.User, error) {
		if username == "octocat" {
			return &models.User{ID: 2, GitHubUsername: strPtr("octocat")}, nil
		}
		return nil, models.NewNotFoundError("User", username)
	}
	svc := NewUserService(users, nil, nil)

	user, err := svc.GetByUsername(ctx, " octocat ")
	require.NoError(t, err)
	assert.Equal(t, uint(2), user.ID)

	for _, name := range []string{"", "bad name", "trailing-", "double--dash"} {
		_, err := svc.GetByUsername(ctx, name)
		assertAppError(t, err, models.CodeNotFound)
	}
}

func TestUserService_ProviderProfile(t *testing.T) {
	ctx := context.Background()
	on := featureflags.NewManager("provider_profiles=on")

	t.Run("cached after first fetch", func(t *testing.T) {
		mr, _ := testutil.NewTestRedis(t)
		calls := 0
		provider := &providerStub{profileFn: func(_ context.Context, login string) (*models.ProviderProfile, error) {
			calls++
			return &models.ProviderProfile{Name: "The Octocat", HTMLURL: "https://github.com/" + login}, nil
		}}
		svc := NewUserService(noopUserRepo(), provider, on)

		first := svc.ProviderProfile(ctx, 0, "octocat")
		require.NotNil(t, first)
		second := svc.ProviderProfile(ctx, 0, "octocat")
		assert.Equal(t, first, second)
		assert.Equal(t, 1, calls)
		assert.True(t, mr.Exists(cache.ProviderProfileKey("octocat")))
	})

	t.Run("failure is not cached", func(t *testing.T) {
		mr, _ := testutil.NewTestRedis(t)
		provider := &providerStub{profileFn: func(context.Context, string) (*models.ProviderProfile, error) {
			return nil, errors.New("boom")
		}}
		assert.Nil(t, NewUserService(noopUserRepo(), provider, on).ProviderProfile(ctx, 0, "octocat"))
		assert.False(t, mr.Exists(cache.ProviderProfileKey("octocat")))
	})

	t.Run("flag off", func(t *testing.T) {
		testutil.DisableCache(t)
		provider := &providerStub{profileFn: func(context.Context, string) (*models.ProviderProfile, error) {
			t.Fatal("provider must not be called")
			return nil, nil
		}}
		off := featureflags.NewManager("provider_profiles=off")
		assert.Nil(t, NewUserService(noopUserRepo(), provider, off).ProviderProfile(ctx, 0, "octocat"))
		assert.Nil(t, NewUserService(noopUserRepo(), nil, on).ProviderProfile(ctx, 0, "octocat"))
	})
}

func TestUserService_DeleteAccount(t *testing.T) {
	users := noopUserRepo()
	var deleted uint
	users.deleteFn = func(_ context.Context, id uint) error {
		deleted = id
		return nil
	}
	svc := NewUserService(users, nil, nil)

	assertAppError(t, svc.DeleteAccount(context.Background(), 0), models.CodeUnauthenticated)
	require.NoError(t, svc.DeleteAccount(context.Background(), 8))
	assert.Equal(t, uint(8), deleted)
}
