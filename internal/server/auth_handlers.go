package server

import (
	"crypto/subtle"
	"log/slog"
	"time"

	"shapeit/internal/middleware"
	"shapeit/internal/models"
	"shapeit/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ProviderSecretHeader carries the secret shared with the sign-in bridge.
const ProviderSecretHeader = "X-Provider-Secret"

// SignInResponse is returned after a successful provider sign-in.
type SignInResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

// ProviderSignIn handles POST /api/auth/provider. The OAuth handshake runs in
// the sign-in bridge, which forwards the verified identity here.
func (s *Server) ProviderSignIn(c *fiber.Ctx) error {
	expected := s.config.ProviderSharedSecret
	got := c.Get(ProviderSecretHeader)
	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(got)) != 1 {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthenticatedError("Invalid provider credentials"))
	}

	var identity service.ProviderIdentity
	if err := c.BodyParser(&identity); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.SignIn(c.UserContext(), identity)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	token, claims, err := s.sessions.Issue(user.ID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}

	return c.JSON(SignInResponse{Token: token, ExpiresAt: claims.ExpiresAt, User: user})
}

// EnrichProfile handles POST /api/auth/enrich
func (s *Server) EnrichProfile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	user, err := s.userService.EnrichProfile(c.UserContext(), userID)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.JSON(user)
}

// Logout handles POST /api/auth/logout by revoking the presented token.
func (s *Server) Logout(c *fiber.Ctx) error {
	s.revokeSession(c)
	return c.JSON(fiber.Map{"message": "Logged out"})
}

func (s *Server) revokeSession(c *fiber.Ctx) {
	sc, ok := middleware.SessionFrom(c)
	if !ok {
		return
	}
	if err := s.sessions.Revoke(c.UserContext(), sc); err != nil {
		middleware.Logger.WarnContext(c.UserContext(), "failed to revoke session",
			slog.String("jti", sc.JTI),
			slog.String("error", err.Error()),
		)
	}
}
