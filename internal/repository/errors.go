// Package repository implements the data access layer for the application.
package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrReactionExists is returned by Create when the (user, post) pair already has a reaction.
	ErrReactionExists = errors.New("reaction already exists")
	// ErrReactionGone is returned by UpdateShape and Delete when the row no longer holds the expected shape.
	ErrReactionGone = errors.New("reaction changed concurrently")
	// ErrEmailTaken is the cause carried by conflicts on the users email key.
	ErrEmailTaken = errors.New("email is already registered")
	// ErrUsernameTaken is the cause carried by conflicts on the users github_username key.
	ErrUsernameTaken = errors.New("username is already linked")
)

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "23505")
}
