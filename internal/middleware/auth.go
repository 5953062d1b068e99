package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"shapeit/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	tokenIssuer   = "shapeit-api"
	tokenAudience = "shapeit-client"
	revokedPrefix = "blacklist:"
)

var (
	errMissingToken = errors.New("authorization required")
	errRevoked      = errors.New("token has been revoked")
	errUnknownUser  = errors.New("session user no longer exists")
)

// UserExistsFunc reports whether userID still names an account.
type UserExistsFunc func(ctx context.Context, userID uint) (bool, error)

// SessionClaims is the verified content of a session token.
type SessionClaims struct {
	UserID    uint
	JTI       string
	ExpiresAt time.Time
}

// Sessions issues and verifies the HS256 session tokens handed out after provider sign-in.
type Sessions struct {
	secret     []byte
	ttl        time.Duration
	rdb        *redis.Client
	userExists UserExistsFunc
}

// NewSessions returns a session manager. rdb may be nil, in which case revocation is not tracked.
func NewSessions(secret string, ttl time.Duration, rdb *redis.Client) *Sessions {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Sessions{secret: []byte(secret), ttl: ttl, rdb: rdb}
}

// WithUserCheck makes Required and OptionalViewer reject sessions whose user
// has been deleted. Tokens issued before an account deletion stay otherwise valid.
func (s *Sessions) WithUserCheck(fn UserExistsFunc) *Sessions {
	s.userExists = fn
	return s
}

// Issue signs a token for userID.
func (s *Sessions) Issue(userID uint) (string, *SessionClaims, error) {
	if len(s.secret) == 0 {
		return "", nil, errors.New("session secret not configured")
	}

	now := time.Now()
	sc := &SessionClaims{
		UserID:    userID,
		JTI:       fmt.Sprintf("%d-%s", now.Unix(), uuid.New().String()[:8]),
		ExpiresAt: now.Add(s.ttl),
	}
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"iss": tokenIssuer,
		"aud": tokenAudience,
		"exp": sc.ExpiresAt.Unix(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"jti": sc.JTI,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, err
	}
	return signed, sc, nil
}

// Parse verifies signature, issuer, audience, expiry and revocation of raw.
func (s *Sessions) Parse(ctx context.Context, raw string) (*SessionClaims, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, errors.New("invalid subject claim")
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return nil, errors.New("invalid user id in token")
	}

	sc := &SessionClaims{UserID: uint(userID)}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		sc.ExpiresAt = exp.Time
	}
	if jti, ok := claims["jti"].(string); ok && jti != "" {
		sc.JTI = jti
		if s.rdb != nil {
			n, err := s.rdb.Exists(ctx, revokedPrefix+jti).Result()
			if err == nil && n > 0 {
				return nil, errRevoked
			}
		}
	}
	return sc, nil
}

// Revoke blacklists the token until it would have expired anyway.
func (s *Sessions) Revoke(ctx context.Context, sc *SessionClaims) error {
	if s.rdb == nil || sc == nil || sc.JTI == "" {
		return nil
	}
	ttl := time.Until(sc.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, revokedPrefix+sc.JTI, "1", ttl).Err()
}

func bearerToken(c *fiber.Ctx) (string, error) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return "", errMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", errors.New("invalid authorization header format")
	}
	return parts[1], nil
}

// Required rejects requests without a valid session and stores the viewer in
// c.Locals("userID") and c.Locals("session").
func (s *Sessions) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, err := bearerToken(c)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthenticatedError("Authorization required"))
		}

		sc, err := s.Parse(c.UserContext(), raw)
		if err == nil {
			err = s.checkUser(c.UserContext(), sc.UserID)
		}
		if err != nil {
			var appErr *models.AppError
			if errors.As(err, &appErr) {
				return models.RespondWithError(c, fiber.StatusInternalServerError, appErr)
			}
			msg := "Invalid or expired token"
			switch {
			case errors.Is(err, errRevoked):
				msg = "Token has been revoked"
			case errors.Is(err, errUnknownUser):
				msg = "Account no longer exists"
			}
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthenticatedError(msg))
		}

		c.Locals("userID", sc.UserID)
		c.Locals("session", sc)
		c.SetUserContext(WithViewer(c.UserContext(), sc.UserID))
		return c.Next()
	}
}

// OptionalViewer returns the viewer id when a valid session is attached, or 0 for anonymous requests.
func (s *Sessions) OptionalViewer(c *fiber.Ctx) uint {
	if uid, ok := c.Locals("userID").(uint); ok {
		return uid
	}
	raw, err := bearerToken(c)
	if err != nil {
		return 0
	}
	sc, err := s.Parse(c.UserContext(), raw)
	if err != nil {
		return 0
	}
	if err := s.checkUser(c.UserContext(), sc.UserID); err != nil {
		return 0
	}
	c.SetUserContext(WithViewer(c.UserContext(), sc.UserID))
	return sc.UserID
}

// checkUser returns errUnknownUser for deleted accounts and an internal
// AppError when the lookup itself fails.
func (s *Sessions) checkUser(ctx context.Context, userID uint) error {
	if s.userExists == nil {
		return nil
	}
	ok, err := s.userExists(ctx, userID)
	if err != nil {
		return models.NewInternalError(err)
	}
	if !ok {
		return errUnknownUser
	}
	return nil
}

// SessionFrom returns the claims stored by Required.
func SessionFrom(c *fiber.Ctx) (*SessionClaims, bool) {
	sc, ok := c.Locals("session").(*SessionClaims)
	return sc, ok
}
