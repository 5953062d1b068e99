package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"shapeit/internal/models"
	"shapeit/internal/observability"
	"shapeit/internal/repository"
	"shapeit/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultFeedPageSize = 20
	MaxFeedPageSize     = 100
)

// FeedQuery selects one page of the global feed, or of one author's posts when
// AuthorUsername is set. ViewerID 0 is an anonymous viewer. PageSize 0 uses the default.
type FeedQuery struct {
	AuthorUsername string
	ViewerID       uint
	Page           int
	PageSize       int
}

// FeedPage is one page of enriched posts. An empty page with Degraded false is
// the end of the feed. Degraded is set when a store failure emptied the page.
type FeedPage struct {
	Posts    []models.FeedPost `json:"posts"`
	Page     int               `json:"page"`
	PageSize int               `json:"pageSize"`
	Degraded bool              `json:"degraded"`
}

type FeedService struct {
	users           repository.UserRepository
	posts           repository.PostRepository
	reactions       repository.ReactionRepository
	defaultPageSize int
}

func NewFeedService(
	users repository.UserRepository,
	posts repository.PostRepository,
	reactions repository.ReactionRepository,
	defaultPageSize int,
) *FeedService {
	if defaultPageSize < 1 || defaultPageSize > MaxFeedPageSize {
		defaultPageSize = DefaultFeedPageSize
	}
	return &FeedService{
		users:           users,
		posts:           posts,
		reactions:       reactions,
		defaultPageSize: defaultPageSize,
	}
}

// GetPage returns a page of posts newest first, each with its dense shape
// counts and the viewer's own reaction. Store failures never surface as errors:
// they yield an empty page marked Degraded. Only invalid paging is an error.
func (s *FeedService) GetPage(ctx context.Context, q FeedQuery) (*FeedPage, error) {
	pageSize := q.PageSize
	if pageSize == 0 {
		pageSize = s.defaultPageSize
	}
	if q.Page < 1 {
		return nil, models.NewValidationError("page must be at least 1")
	}
	if pageSize < 1 || pageSize > MaxFeedPageSize {
		return nil, models.NewValidationError(fmt.Sprintf("pageSize must be between 1 and %d", MaxFeedPageSize))
	}

	username := strings.TrimSpace(q.AuthorUsername)
	scope := "global"
	if username != "" {
		scope = "author"
	}
	defer observability.ObserveFeedAssembly(scope)()

	ctx, span := observability.StartSpan(ctx, "FeedService.GetPage",
		attribute.String("feed.scope", scope),
		attribute.Int("feed.page", q.Page),
		attribute.Int("feed.page_size", pageSize),
	)
	defer span.End()

	page := &FeedPage{Posts: []models.FeedPost{}, Page: q.Page, PageSize: pageSize}

	var filter repository.PostFilter
	if username != "" {
		if validation.GitHubUsername(username) != nil {
			return page, nil
		}
		author, err := s.users.GetByGitHubUsername(ctx, username)
		if err != nil {
			if models.IsNotFound(err) {
				return page, nil
			}
			return s.degrade(ctx, page, "author", err), nil
		}
		filter.AuthorID = author.ID
	}

	posts, err := s.posts.List(ctx, filter, pageSize, (q.Page-1)*pageSize)
	if err != nil {
		return s.degrade(ctx, page, "posts", err), nil
	}
	if len(posts) == 0 {
		return page, nil
	}

	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}

	rows, err := s.reactions.CountByPosts(ctx, ids)
	if err != nil {
		return s.degrade(ctx, page, "counts", err), nil
	}

	var mine map[uint]models.Shape
	if q.ViewerID != 0 {
		mine, err = s.reactions.ListByUserForPosts(ctx, q.ViewerID, ids)
		if err != nil {
			return s.degrade(ctx, page, "viewer", err), nil
		}
	}

	page.Posts = assembleFeed(posts, rows, mine)
	span.SetAttributes(attribute.Int("feed.posts", len(page.Posts)))
	return page, nil
}

func (s *FeedService) degrade(ctx context.Context, page *FeedPage, stage string, err error) *FeedPage {
	observability.FeedDegraded.WithLabelValues(stage).Inc()
	slog.ErrorContext(ctx, "feed degraded to empty page", "stage", stage, "page", page.Page, "err", err)
	page.Posts = []models.FeedPost{}
	page.Degraded = true
	return page
}

// assembleFeed folds grouped (post, shape) counts and the viewer's reactions
// into feed entries, keeping the order of posts. Count rows for posts not in
// posts are ignored. A post without a row in viewerShapes gets a nil UserReaction.
func assembleFeed(posts []*models.Post, rows []models.ShapeCountRow, viewerShapes map[uint]models.Shape) []models.FeedPost {
	out := make([]models.FeedPost, len(posts))
	index := make(map[uint]int, len(posts))
	for i, p := range posts {
		out[i] = models.NewFeedPost(p)
		index[p.ID] = i
	}

	for _, row := range rows {
		if i, ok := index[row.PostID]; ok {
			out[i].ShapeCounts.Add(row.Shape, row.Count)
		}
	}

	for i := range out {
		if shape, ok := viewerShapes[out[i].ID]; ok {
			out[i].UserReaction = &shape
		}
	}
	return out
}
