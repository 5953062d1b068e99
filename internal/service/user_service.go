package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"shapeit/internal/cache"
	"shapeit/internal/featureflags"
	"shapeit/internal/models"
	"shapeit/internal/repository"
	"shapeit/internal/validation"
)

// ProviderClient reads public data from the identity provider.
type ProviderClient interface {
	LoginByAccountID(ctx context.Context, accountID string) (string, error)
	PublicProfile(ctx context.Context, login string) (*models.ProviderProfile, error)
}

// ProviderIdentity is what the identity provider hands over after a successful sign-in.
type ProviderIdentity struct {
	AccountID string `json:"accountId"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Image     string `json:"image"`
}

type UserService struct {
	users    repository.UserRepository
	provider ProviderClient
	flags    *featureflags.Manager
}

func NewUserService(users repository.UserRepository, provider ProviderClient, flags *featureflags.Manager) *UserService {
	return &UserService{users: users, provider: provider, flags: flags}
}

// SignIn creates the user on first sign-in and refreshes name and avatar afterwards.
func (s *UserService) SignIn(ctx context.Context, id ProviderIdentity) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(id.Email))
	if email == "" {
		return nil, models.NewValidationError("Email is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if user == nil {
		user = &models.User{
			Name:              strings.TrimSpace(id.Name),
			Email:             email,
			Image:             id.Image,
			ProviderAccountID: id.AccountID,
		}
		err := s.users.Create(ctx, user)
		if err == nil {
			return user, nil
		}
		if models.ErrorCode(err) != models.CodeConflict {
			return nil, err
		}
		// Created by a concurrent sign-in.
		user, err = s.users.GetByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, models.NewInternalError(fmt.Errorf("user %s vanished after conflict", email))
		}
	}

	changed := false
	if name := strings.TrimSpace(id.Name); name != "" && name != user.Name {
		user.Name = name
		changed = true
	}
	if id.Image != "" && id.Image != user.Image {
		user.Image = id.Image
		changed = true
	}
	if id.AccountID != "" && id.AccountID != user.ProviderAccountID {
		user.ProviderAccountID = id.AccountID
		changed = true
	}
	if changed {
		if err := s.users.Update(ctx, user); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// EnrichProfile backfills the provider username once. It is a no-op when the
// username is already known. Provider failures leave the user unchanged.
func (s *UserService) EnrichProfile(ctx context.Context, userID uint) (*models.User, error) {
	if userID == 0 {
		return nil, models.NewUnauthenticatedError("Authentication required")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.GitHubUsername != nil {
		return user, nil
	}
	if user.ProviderAccountID == "" {
		return nil, models.NewValidationError("No provider account linked")
	}
	if s.provider == nil {
		return nil, models.NewInternalError(fmt.Errorf("provider client not configured"))
	}

	login, err := s.provider.LoginByAccountID(ctx, user.ProviderAccountID)
	if err != nil {
		slog.WarnContext(ctx, "provider username lookup failed", "user_id", userID, "err", err)
		return nil, models.NewInternalError(err)
	}
	if err := validation.GitHubUsername(login); err != nil {
		return nil, models.NewInternalError(fmt.Errorf("provider returned login %q: %w", login, err))
	}

	if _, err := s.users.SetGitHubUsernameIfEmpty(ctx, userID, login); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, userID)
}

// GetByUsername returns the user with the given provider username.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if validation.GitHubUsername(username) != nil {
		return nil, models.NewNotFoundError("User", username)
	}
	return s.users.GetByGitHubUsername(ctx, username)
}

func (s *UserService) GetByID(ctx context.Context, userID uint) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

// ProviderProfile returns the public provider profile of username, or nil when
// it is disabled or cannot be fetched.
func (s *UserService) ProviderProfile(ctx context.Context, viewerID uint, username string) *models.ProviderProfile {
	if s.provider == nil || !s.flags.Enabled(featureflags.ProviderProfiles, viewerID) {
		return nil
	}
	if validation.GitHubUsername(username) != nil {
		return nil
	}

	profile, err := cache.Aside(ctx, cache.ProviderProfileKey(username), cache.ProviderProfileTTL,
		func(ctx context.Context) (*models.ProviderProfile, error) {
			return s.provider.PublicProfile(ctx, username)
		})
	if err != nil {
		slog.WarnContext(ctx, "failed to fetch provider profile", "username", username, "err", err)
		return nil
	}
	return profile
}

// DeleteAccount removes the user together with their posts and reactions.
func (s *UserService) DeleteAccount(ctx context.Context, userID uint) error {
	if userID == 0 {
		return models.NewUnauthenticatedError("Authentication required")
	}
	return s.users.Delete(ctx, userID)
}
