// Package notifications publishes snap lifecycle events for other consumers.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"twitsnap/internal/cache"
	"twitsnap/internal/models"
	"twitsnap/internal/observability"

	"github.com/redis/go-redis/v9"
)

// EventType names a snap lifecycle event.
type EventType string

const (
	EventSnapCreated   EventType = "snap.created"
	EventSnapEdited    EventType = "snap.edited"
	EventSnapDeleted   EventType = "snap.deleted"
	EventRetwitDeleted EventType = "retwit.deleted"
)

// SnapEvent is the payload published on cache.SnapEventsTopic.
type SnapEvent struct {
	Type       EventType       `json:"type"`
	SnapID     string          `json:"snapId"`
	Kind       models.SnapKind `json:"kind,omitempty"`
	ParentID   string          `json:"parentId,omitempty"`
	ActorID    int64           `json:"actorId"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// Notifier provides helpers to publish events into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
// A nil client turns every publish into a no-op.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishSnapEvent publishes ev, stamping OccurredAt when unset.
func (n *Notifier) PublishSnapEvent(ctx context.Context, ev SnapEvent) error {
	observability.SnapEvents.WithLabelValues(string(ev.Type)).Inc()
	if n == nil || n.rdb == nil {
		return nil
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := n.rdb.Publish(ctx, cache.SnapEventsTopic, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}
