package server

import (
	"errors"
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"shapeit/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+strings.ToUpper(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// parsePaging reads ?page and ?pageSize. Missing values become page 1 and the
// default page size (0); range checks are left to the feed service.
func parsePaging(c *fiber.Ctx) (page, pageSize int, err error) {
	page = 1
	if raw := strings.TrimSpace(c.Query("page")); raw != "" {
		if page, err = strconv.Atoi(raw); err != nil {
			return 0, 0, models.NewValidationError("page must be an integer")
		}
	}
	if raw := strings.TrimSpace(c.Query("pageSize")); raw != "" {
		if pageSize, err = strconv.Atoi(raw); err != nil {
			return 0, 0, models.NewValidationError("pageSize must be an integer")
		}
	}
	return page, pageSize, nil
}

// mapServiceError maps an AppError code to its HTTP status.
func mapServiceError(err error) int {
	switch models.ErrorCode(err) {
	case models.CodeUnauthenticated:
		return fiber.StatusUnauthorized
	case models.CodeForbidden:
		return fiber.StatusForbidden
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeValidation:
		return fiber.StatusBadRequest
	case models.CodeConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()
	return io.ReadAll(src)
}
