package models

import "time"

// FeedAuthor is the author summary attached to every feed entry.
type FeedAuthor struct {
	Name           string  `json:"name"`
	Image          string  `json:"image"`
	GitHubUsername *string `json:"githubUsername"`
}

// FeedPost is a post enriched with its reaction tally and the viewer's own reaction.
type FeedPost struct {
	ID           uint        `json:"id"`
	Content      string      `json:"content"`
	Images       []string    `json:"images"`
	AuthorID     uint        `json:"authorId"`
	Author       FeedAuthor  `json:"author"`
	CreatedAt    time.Time   `json:"createdAt"`
	ShapeCounts  ShapeCounts `json:"shapeCounts"`
	UserReaction *Shape      `json:"userReaction"`
}

// NewFeedPost copies the pass-through fields of p. Counts start at zero.
func NewFeedPost(p *Post) FeedPost {
	images := make([]string, 0, len(p.Images))
	images = append(images, p.Images...)

	fp := FeedPost{
		ID:        p.ID,
		Content:   p.Content,
		Images:    images,
		AuthorID:  p.UserID,
		CreatedAt: p.CreatedAt,
	}
	if p.User != nil {
		fp.Author = FeedAuthor{
			Name:           p.User.Name,
			Image:          p.User.Image,
			GitHubUsername: p.User.GitHubUsername,
		}
	}
	return fp
}
