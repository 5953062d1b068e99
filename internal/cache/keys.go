package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	UsernameKeyPrefix        = "user:gh:%s"
	ProviderProfileKeyPrefix = "github:profile:%s"
	PostCountKey             = "posts:count"
)

const (
	UserTTL            = 5 * time.Minute
	ProviderProfileTTL = time.Hour
	PostCountTTL       = time.Minute
)

// UsernameKey is keyed case-insensitively since provider usernames are.
func UsernameKey(username string) string {
	return fmt.Sprintf(UsernameKeyPrefix, strings.ToLower(username))
}

func ProviderProfileKey(username string) string {
	return fmt.Sprintf(ProviderProfileKeyPrefix, strings.ToLower(username))
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUsername(ctx context.Context, username string) {
	if username == "" {
		return
	}
	Invalidate(ctx, UsernameKey(username))
}

func InvalidatePostCount(ctx context.Context) {
	Invalidate(ctx, PostCountKey)
}
