package service

import (
	"context"
	"log/slog"

	"shapeit/internal/featureflags"
	"shapeit/internal/models"
	"shapeit/internal/notifications"
	"shapeit/internal/observability"
	"shapeit/internal/repository"
	"shapeit/internal/validation"
)

// ImageUploader stores one image and returns its public URL.
type ImageUploader interface {
	Upload(ctx context.Context, f UploadFile) (string, error)
}

type PostService struct {
	posts    repository.PostRepository
	uploader ImageUploader
	events   EventPublisher
	flags    *featureflags.Manager
}

type CreatePostInput struct {
	ViewerID uint
	Content  string
	Images   []UploadFile
}

type ReportPostInput struct {
	ViewerID uint
	PostID   uint
	Reason   string
}

func NewPostService(
	posts repository.PostRepository,
	uploader ImageUploader,
	events EventPublisher,
	flags *featureflags.Manager,
) *PostService {
	return &PostService{posts: posts, uploader: uploader, events: events, flags: flags}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if in.ViewerID == 0 {
		return nil, models.NewUnauthenticatedError("Authentication required")
	}

	images := make([]UploadFile, 0, len(in.Images))
	for _, f := range in.Images {
		if len(f.Content) > 0 {
			images = append(images, f)
		}
	}

	content, err := validation.PostContent(in.Content, len(images))
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if len(images) > 0 && (s.uploader == nil || !s.flags.Enabled(featureflags.ImageUploads, in.ViewerID)) {
		return nil, models.NewValidationError("Image uploads are disabled")
	}

	urls := make([]string, 0, len(images))
	for _, f := range images {
		url, err := s.uploader.Upload(ctx, f)
		if err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}

	post := &models.Post{
		UserID:  in.ViewerID,
		Content: content,
		Images:  urls,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}

	publishEvent(ctx, s.events, notifications.EventPostCreated, map[string]any{
		"postId":   post.ID,
		"authorId": post.UserID,
	})

	created, err := s.posts.GetByID(ctx, post.ID)
	if err != nil {
		slog.WarnContext(ctx, "failed to reload created post", "post_id", post.ID, "err", err)
		return post, nil
	}
	return created, nil
}

// DeletePost removes a post and its reactions. Only the author may delete it.
func (s *PostService) DeletePost(ctx context.Context, viewerID, postID uint) error {
	if viewerID == 0 {
		return models.NewUnauthenticatedError("Authentication required")
	}
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.UserID != viewerID {
		return models.NewForbiddenError("You can only delete your own posts")
	}
	if err := s.posts.Delete(ctx, postID); err != nil {
		return err
	}

	publishEvent(ctx, s.events, notifications.EventPostDeleted, map[string]any{
		"postId":   postID,
		"authorId": post.UserID,
	})
	return nil
}

// TotalPostCount returns the number of posts, or 0 when the store is unavailable.
func (s *PostService) TotalPostCount(ctx context.Context) int64 {
	n, err := s.posts.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count posts", "err", err)
		return 0
	}
	return n
}

// ReportPost records a report against a post. Reports are logged and counted only.
func (s *PostService) ReportPost(ctx context.Context, in ReportPostInput) error {
	if in.ViewerID == 0 {
		return models.NewUnauthenticatedError("Authentication required")
	}
	reason, err := validation.ReportReason(in.Reason)
	if err != nil {
		return models.NewValidationError(err.Error())
	}
	post, err := s.posts.GetByID(ctx, in.PostID)
	if err != nil {
		return err
	}

	observability.PostReports.Inc()
	slog.WarnContext(ctx, "post reported",
		"post_id", post.ID,
		"author_id", post.UserID,
		"reporter_id", in.ViewerID,
		"reason", reason,
	)
	return nil
}
