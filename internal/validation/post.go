// Package validation holds the input rules for posts, reports and usernames.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MaxPostContentLength  = 365
	MaxPostImages         = 4
	MaxReportReasonLength = 500
)

var githubUsernameRegex = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,38})$`)

// PostContent validates a new post and returns the trimmed content.
// The length limit applies to content as submitted, surrounding whitespace included.
// imageCount is the number of non-empty image files attached.
func PostContent(content string, imageCount int) (string, error) {
	trimmed := strings.TrimSpace(content)

	if utf8.RuneCountInString(content) > MaxPostContentLength {
		return "", fmt.Errorf("content must be at most %d characters", MaxPostContentLength)
	}
	if imageCount > MaxPostImages {
		return "", fmt.Errorf("at most %d images are allowed", MaxPostImages)
	}
	if trimmed == "" && imageCount == 0 {
		return "", errors.New("post must have text or at least one image")
	}
	return trimmed, nil
}

// GitHubUsername validates the shape of a provider username.
func GitHubUsername(username string) error {
	if !githubUsernameRegex.MatchString(username) {
		return errors.New("invalid username")
	}
	if strings.HasSuffix(username, "-") || strings.Contains(username, "--") {
		return errors.New("invalid username")
	}
	return nil
}

// ReportReason validates and trims a report reason.
func ReportReason(reason string) (string, error) {
	trimmed := strings.TrimSpace(reason)
	if trimmed == "" {
		return "", errors.New("reason is required")
	}
	if utf8.RuneCountInString(trimmed) > MaxReportReasonLength {
		return "", fmt.Errorf("reason must be at most %d characters", MaxReportReasonLength)
	}
	return trimmed, nil
}
