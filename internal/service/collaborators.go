// Package service implements the feed, interaction and snap lifecycle logic.
package service

import (
	"context"

	"twitsnap/internal/clients"
	"twitsnap/internal/models"
	"twitsnap/internal/notifications"
)

// FollowGraph resolves users and follow relationships.
type FollowGraph interface {
	LookupUser(ctx context.Context, viewer models.Identity, username string) (clients.RemoteUser, error)
	FollowedIDs(ctx context.Context, viewer models.Identity) ([]int64, error)
	Notify(ctx context.Context, as models.Identity, n clients.Notification) error
}

// Ranker is the feed ranking oracle.
type Ranker interface {
	Rank(ctx context.Context, sample []models.Snap, limit int) ([]string, error)
	Trending(ctx context.Context, limit int) ([]models.TrendingTopic, error)
	Sync(ctx context.Context, snaps []models.Snap) error
}

// MetricsRecorder reports user activity to the metrics service.
type MetricsRecorder interface {
	Record(ctx context.Context, t clients.MetricType, username string) error
}

// EventPublisher fans snap lifecycle events out to other consumers.
type EventPublisher interface {
	PublishSnapEvent(ctx context.Context, ev notifications.SnapEvent) error
}

// TaskRunner runs best-effort work after the response is decided.
type TaskRunner interface {
	Go(ctx context.Context, name string, fn func(ctx context.Context) error)
}

// FlagSource reports whether a feature flag is on for a user.
type FlagSource interface {
	Enabled(name string, userID int64) bool
}
