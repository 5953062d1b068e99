package server

import (
	"time"

	"shapeit/internal/models"
	"shapeit/internal/service"

	"github.com/gofiber/fiber/v2"
)

// PublicUser is the part of a user visible to other people.
type PublicUser struct {
	ID             uint      `json:"id"`
	Name           string    `json:"name"`
	Image          string    `json:"image"`
	GitHubUsername *string   `json:"githubUsername"`
	CreatedAt      time.Time `json:"createdAt"`
}

// UserProfileResponse is returned by GET /api/users/:username.
type UserProfileResponse struct {
	User            PublicUser              `json:"user"`
	ProviderProfile *models.ProviderProfile `json:"providerProfile"`
}

func toPublicUser(u *models.User) PublicUser {
	return PublicUser{
		ID:             u.ID,
		Name:           u.Name,
		Image:          u.Image,
		GitHubUsername: u.GitHubUsername,
		CreatedAt:      u.CreatedAt,
	}
}

// GetMyProfile handles GET /api/users/me
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	user, err := s.userService.GetByID(c.UserContext(), userID)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.JSON(user)
}

// DeleteMyAccount handles DELETE /api/users/me. The account, its posts and
// its reactions are removed and the current token is revoked.
func (s *Server) DeleteMyAccount(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	if err := s.userService.DeleteAccount(c.UserContext(), userID); err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	s.revokeSession(c)
	return c.SendStatus(fiber.StatusNoContent)
}

// GetUserProfile handles GET /api/users/:username
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	username := c.Params("username")
	viewerID := s.optionalViewerID(c)
	ctx := c.UserContext()

	user, err := s.userService.GetByUsername(ctx, username)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(UserProfileResponse{
		User:            toPublicUser(user),
		ProviderProfile: s.userService.ProviderProfile(ctx, viewerID, user.Username()),
	})
}

// GetUserPosts handles GET /api/users/:username/posts?page=&pageSize=
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	page, pageSize, err := parsePaging(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, err)
	}
	viewerID := s.optionalViewerID(c)

	result, err := s.feedService.GetPage(c.UserContext(), service.FeedQuery{
		AuthorUsername: c.Params("username"),
		ViewerID:       viewerID,
		Page:           page,
		PageSize:       pageSize,
	})
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.JSON(result)
}
