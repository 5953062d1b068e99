// Package github is a minimal client for the public GitHub REST API.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"shapeit/internal/models"
	"shapeit/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Endpoint string
	Status   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("github %s: unexpected status %d", e.Endpoint, e.Status)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == fiber.StatusNotFound
}

// Client calls the GitHub API with a fixed user agent and timeout.
type Client struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
}

// NewClient returns a client for baseURL, e.g. https://api.github.com.
func NewClient(baseURL, userAgent string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{baseURL: baseURL, userAgent: userAgent, timeout: timeout}
}

type userResponse struct {
	Login     string `json:"login"`
	Name      string `json:"name"`
	Bio       string `json:"bio"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
}

// LoginByAccountID maps a numeric account id to its current login.
func (c *Client) LoginByAccountID(ctx context.Context, accountID string) (string, error) {
	if _, err := strconv.ParseUint(accountID, 10, 64); err != nil {
		return "", fmt.Errorf("invalid account id %q", accountID)
	}

	var u userResponse
	if err := c.getJSON(ctx, "user", "/user/"+accountID, &u); err != nil {
		return "", err
	}
	if u.Login == "" {
		return "", errors.New("github user: empty login")
	}
	return u.Login, nil
}

// PublicProfile fetches the public profile of login. Name falls back to the login.
func (c *Client) PublicProfile(ctx context.Context, login string) (*models.ProviderProfile, error) {
	var u userResponse
	if err := c.getJSON(ctx, "users", "/users/"+url.PathEscape(login), &u); err != nil {
		return nil, err
	}

	name := u.Name
	if name == "" {
		name = login
	}
	return &models.ProviderProfile{
		Name:      name,
		Bio:       u.Bio,
		AvatarURL: u.AvatarURL,
		HTMLURL:   u.HTMLURL,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, dst any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	agent := fiber.Get(c.baseURL+path).
		UserAgent(c.userAgent).
		Set(fiber.HeaderAccept, "application/vnd.github+json").
		Timeout(c.timeout)

	code, _, errs := agent.Struct(dst)
	switch {
	case len(errs) > 0 && code == 0:
		observability.ProviderRequests.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("github %s: %w", endpoint, errors.Join(errs...))
	case code < 200 || code > 299:
		observability.ProviderRequests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
		return &StatusError{Endpoint: endpoint, Status: code}
	case len(errs) > 0:
		observability.ProviderRequests.WithLabelValues(endpoint, "decode_error").Inc()
		return fmt.Errorf("github %s: decode response: %w", endpoint, errors.Join(errs...))
	}

	observability.ProviderRequests.WithLabelValues(endpoint, "ok").Inc()
	return nil
}
