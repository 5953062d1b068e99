package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCode_UnwrapsChain(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("toggle: %w", NewNotFoundError("Post", 9))
	assert.Equal(t, CodeNotFound, ErrorCode(wrapped))
	assert.True(t, IsNotFound(wrapped))
	assert.Equal(t, "", ErrorCode(errors.New("plain")))
}

func TestRespondWithError_HidesInternalDetails(t *testing.T) {
	t.Parallel()

	app := fiber.New()
	app.Get("/internal", func(c *fiber.Ctx) error {
		return RespondWithError(c, fiber.StatusInternalServerError, NewInternalError(errors.New("pq: connection refused")))
	})
	app.Get("/conflict", func(c *fiber.Ctx) error {
		return RespondWithError(c, fiber.StatusConflict, NewConflictError("Reaction changed concurrently", errors.New("retry exhausted")))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/internal", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	var out ErrorResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, CodeInternal, out.Code)
	assert.Empty(t, out.Details)

	resp, err = app.Test(httptest.NewRequest("GET", "/conflict", nil))
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, CodeConflict, out.Code)
	assert.Equal(t, "retry exhausted", out.Details)
}
