package service

import (
	"context"
	"errors"
	"log/slog"

	"shapeit/internal/models"
	"shapeit/internal/notifications"
	"shapeit/internal/observability"
	"shapeit/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// Toggle outcomes, also used as metric labels.
const (
	outcomeCreated  = "created"
	outcomeChanged  = "changed"
	outcomeRemoved  = "removed"
	outcomeConflict = "conflict"
	outcomeError    = "error"
)

type ReactionService struct {
	posts     repository.PostRepository
	reactions repository.ReactionRepository
	events    EventPublisher
}

type ToggleReactionInput struct {
	ViewerID uint
	PostID   uint
	Shape    string
}

// ToggleResult reports the viewer's reaction after the toggle. AppliedShape is
// nil when the toggle removed it. ShapeCounts is the post's tally after the
// mutation, or nil if it could not be read back.
type ToggleResult struct {
	PostID       uint                `json:"postId"`
	AppliedShape *models.Shape       `json:"appliedShape"`
	ShapeCounts  *models.ShapeCounts `json:"shapeCounts,omitempty"`
}

func NewReactionService(
	posts repository.PostRepository,
	reactions repository.ReactionRepository,
	events EventPublisher,
) *ReactionService {
	return &ReactionService{posts: posts, reactions: reactions, events: events}
}

// Toggle sets, clears or changes the viewer's shape on a post.
//
// The (user, post) unique key is the only concurrency guard. When a concurrent
// request wins the race the toggle is re-applied once on top of the winner's
// state; losing twice is reported as a conflict.
func (s *ReactionService) Toggle(ctx context.Context, in ToggleReactionInput) (res *ToggleResult, err error) {
	ctx, span := observability.StartSpan(ctx, "ReactionService.Toggle",
		attribute.Int64("post.id", int64(in.PostID)),
		attribute.String("reaction.shape", in.Shape),
	)
	defer func() { observability.EndSpan(span, err) }()

	if in.ViewerID == 0 {
		return nil, models.NewUnauthenticatedError("Authentication required")
	}
	shape, err := models.ParseShape(in.Shape)
	if err != nil {
		return nil, err
	}
	if _, err := s.posts.GetByID(ctx, in.PostID); err != nil {
		return nil, err
	}

	outcome, applied, err := s.apply(ctx, in.ViewerID, in.PostID, shape)
	if isLostRace(err) {
		observability.ReactionRaceRetries.Inc()
		slog.DebugContext(ctx, "reaction toggle lost a race, re-applying",
			"post_id", in.PostID, "user_id", in.ViewerID, "err", err)
		outcome, applied, err = s.apply(ctx, in.ViewerID, in.PostID, shape)
		if isLostRace(err) {
			observability.ReactionToggles.WithLabelValues(outcomeConflict).Inc()
			return nil, models.NewConflictError("Reaction was changed concurrently, please retry", err)
		}
	}
	if err != nil {
		observability.ReactionToggles.WithLabelValues(outcomeError).Inc()
		slog.ErrorContext(ctx, "reaction toggle failed",
			"post_id", in.PostID, "user_id", in.ViewerID, "err", err)
		return nil, err
	}
	observability.ReactionToggles.WithLabelValues(outcome).Inc()
	span.SetAttributes(attribute.String("reaction.outcome", outcome))

	res = &ToggleResult{PostID: in.PostID, AppliedShape: applied}
	if counts, countErr := s.countsFor(ctx, in.PostID); countErr != nil {
		slog.WarnContext(ctx, "failed to recount reactions after toggle", "post_id", in.PostID, "err", countErr)
	} else {
		res.ShapeCounts = counts
		span.SetAttributes(attribute.Int64("reaction.post_total", counts.Total()))
	}

	publishEvent(ctx, s.events, notifications.EventReactionUpdated, map[string]any{
		"postId":       in.PostID,
		"userId":       in.ViewerID,
		"appliedShape": applied,
		"shapeCounts":  res.ShapeCounts,
	})
	return res, nil
}

func (s *ReactionService) apply(ctx context.Context, viewerID, postID uint, shape models.Shape) (string, *models.Shape, error) {
	existing, err := s.reactions.GetByUserAndPost(ctx, viewerID, postID)
	if err != nil {
		return "", nil, err
	}

	switch {
	case existing == nil:
		r := &models.Reaction{UserID: viewerID, PostID: postID, Shape: shape}
		if err := s.reactions.Create(ctx, r); err != nil {
			return "", nil, err
		}
		return outcomeCreated, &shape, nil
	case existing.Shape == shape:
		if err := s.reactions.Delete(ctx, existing.ID, existing.Shape); err != nil {
			return "", nil, err
		}
		return outcomeRemoved, nil, nil
	default:
		if err := s.reactions.UpdateShape(ctx, existing.ID, existing.Shape, shape); err != nil {
			return "", nil, err
		}
		return outcomeChanged, &shape, nil
	}
}

func (s *ReactionService) countsFor(ctx context.Context, postID uint) (*models.ShapeCounts, error) {
	rows, err := s.reactions.CountByPosts(ctx, []uint{postID})
	if err != nil {
		return nil, err
	}
	var counts models.ShapeCounts
	for _, row := range rows {
		counts.Add(row.Shape, row.Count)
	}
	return &counts, nil
}

func isLostRace(err error) bool {
	return errors.Is(err, repository.ErrReactionExists) || errors.Is(err, repository.ErrReactionGone)
}
