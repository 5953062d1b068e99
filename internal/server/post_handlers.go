package server

import (
	"mime/multipart"
	"strings"

	"shapeit/internal/models"
	"shapeit/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetFeed handles GET /api/posts?page=&pageSize=
func (s *Server) GetFeed(c *fiber.Ctx) error {
	page, pageSize, err := parsePaging(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, err)
	}
	viewerID := s.optionalViewerID(c)

	result, err := s.feedService.GetPage(c.UserContext(), service.FeedQuery{
		ViewerID: viewerID,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.JSON(result)
}

// GetPostCount handles GET /api/posts/count
func (s *Server) GetPostCount(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"count": s.postService.TotalPostCount(c.UserContext())})
}

// CreatePost handles POST /api/posts. It accepts multipart/form-data with a
// content field and images files, or a JSON body {"content": "..."}.
func (s *Server) CreatePost(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	in := service.CreatePostInput{ViewerID: userID}

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid multipart form"))
		}
		if v := form.Value["content"]; len(v) > 0 {
			in.Content = v[0]
		}
		files := make([]*multipart.FileHeader, 0, len(form.File["images"])+len(form.File["images[]"]))
		files = append(files, form.File["images"]...)
		files = append(files, form.File["images[]"]...)
		for _, fh := range files {
			content, err := readFormFile(fh)
			if err != nil {
				return models.RespondWithError(c, fiber.StatusBadRequest,
					models.NewValidationError("Unable to read uploaded file"))
			}
			in.Images = append(in.Images, service.UploadFile{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get(fiber.HeaderContentType),
				Content:     content,
			})
		}
	} else {
		var req struct {
			Content string `json:"content"`
		}
		if err := c.BodyParser(&req); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}
		in.Content = req.Content
	}

	post, err := s.postService.CreatePost(c.UserContext(), in)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.Status(fiber.StatusCreated).JSON(models.NewFeedPost(post))
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.postService.DeletePost(c.UserContext(), userID, postID); err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ToggleReaction handles POST /api/posts/:id/reactions with body {"shape": "CIRCLE"}.
func (s *Server) ToggleReaction(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Shape string `json:"shape"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	result, err := s.reactionService.Toggle(c.UserContext(), service.ToggleReactionInput{
		ViewerID: userID,
		PostID:   postID,
		Shape:    req.Shape,
	})
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.JSON(result)
}

// ReportPost handles POST /api/posts/:id/report
func (s *Server) ReportPost(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if err := s.postService.ReportPost(c.UserContext(), service.ReportPostInput{
		ViewerID: userID,
		PostID:   postID,
		Reason:   req.Reason,
	}); err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"message": "Report received"})
}
