package models

import (
	"time"

	"gorm.io/datatypes"
)

// Post is a short text and/or image post. Posts are never edited.
type Post struct {
	ID        uint                        `gorm:"primaryKey" json:"id"`
	UserID    uint                        `gorm:"not null;index" json:"authorId"`
	User      *User                       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"author,omitempty"`
	Content   string                      `gorm:"type:text;not null;default:''" json:"content"`
	Images    datatypes.JSONSlice[string] `json:"images"`
	CreatedAt time.Time                   `gorm:"index" json:"createdAt"`
}

// Reaction is one user's shape on one post. (UserID, PostID) is unique.
type Reaction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_reactions_user_post" json:"userId"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_reactions_user_post;index" json:"postId"`
	Shape     Shape     `gorm:"type:varchar(16);not null" json:"shape"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Post *Post `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
}
