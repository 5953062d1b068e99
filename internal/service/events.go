// Package service implements the application's use cases on top of the repositories.
package service

import (
	"context"
	"log/slog"
)

// EventPublisher publishes domain events. *notifications.Notifier satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// publishEvent is best-effort: a failed publish is logged and never fails the caller.
func publishEvent(ctx context.Context, pub EventPublisher, eventType string, payload any) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, eventType, payload); err != nil {
		slog.WarnContext(ctx, "failed to publish event", "type", eventType, "err", err)
	}
}
