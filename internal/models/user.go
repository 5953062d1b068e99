// Package models contains the persistent records and API shapes of the application.
package models

import "time"

// User is an account created on first sign-in through the identity provider.
type User struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Name              string    `gorm:"size:255" json:"name"`
	Email             string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Image             string    `json:"image"`
	GitHubUsername    *string   `gorm:"column:github_username;uniqueIndex;size:64" json:"githubUsername"`
	ProviderAccountID string    `gorm:"index;size:64" json:"-"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Username returns the provider username or "" when it has not been backfilled yet.
func (u *User) Username() string {
	if u == nil || u.GitHubUsername == nil {
		return ""
	}
	return *u.GitHubUsername
}

// ProviderProfile is the public profile published by the identity provider.
type ProviderProfile struct {
	Name      string `json:"name"`
	Bio       string `json:"bio"`
	AvatarURL string `json:"avatarUrl"`
	HTMLURL   string `json:"htmlUrl"`
}
