package service

import (
	"context"

	"twitsnap/internal/clients"
	"twitsnap/internal/featureflags"
	"twitsnap/internal/models"
	"twitsnap/internal/repository"
)

// reactionStore is the part of the like and bookmark repositories a ReactionService needs.
type reactionStore interface {
	Add(ctx context.Context, userID int64, snapID string) error
	Remove(ctx context.Context, userID int64, snapID string) error
	CountBySnap(ctx context.Context, snapID string) (int64, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Snap, error)
}

// ReactionService records one kind of (user, snap) pair: likes or bookmarks.
// Reactions on a retwit land on its parent.
type ReactionService struct {
	snaps   repository.SnapRepository
	store   reactionStore
	feed    *FeedService
	metric  clients.MetricType
	metrics MetricsRecorder
	tasks   TaskRunner
	flags   FlagSource
}

// NewLikeService creates the ReactionService for likes. Each like is reported to the metrics service.
func NewLikeService(
	snaps repository.SnapRepository,
	likes repository.LikeRepository,
	feed *FeedService,
	metrics MetricsRecorder,
	tasks TaskRunner,
	flags FlagSource,
) *ReactionService {
	return &ReactionService{
		snaps:   snaps,
		store:   likes,
		feed:    feed,
		metric:  clients.MetricLike,
		metrics: metrics,
		tasks:   tasks,
		flags:   flags,
	}
}

// NewBookmarkService creates the ReactionService for bookmarks.
func NewBookmarkService(snaps repository.SnapRepository, bookmarks repository.BookmarkRepository, feed *FeedService) *ReactionService {
	return &ReactionService{snaps: snaps, store: bookmarks, feed: feed}
}

// target returns the countable id of snapID, failing when the snap is gone.
func (s *ReactionService) target(ctx context.Context, snapID string) (string, error) {
	snap, err := s.snaps.GetByID(ctx, snapID, repository.GetOptions{NoJoinParent: true})
	if err != nil {
		return "", err
	}
	return snap.CountableID(), nil
}

// Add records the caller's reaction. Repeating it is a no-op.
func (s *ReactionService) Add(ctx context.Context, caller models.Identity, snapID string) error {
	id, err := s.target(ctx, snapID)
	if err != nil {
		return err
	}
	if err := s.store.Add(ctx, caller.UserID, id); err != nil {
		return err
	}

	if s.metric != "" && s.flags.Enabled(featureflags.MetricsEvents, caller.UserID) {
		metric, username := s.metric, caller.Username
		s.tasks.Go(ctx, "metrics.record", func(ctx context.Context) error {
			return s.metrics.Record(ctx, metric, username)
		})
	}
	return nil
}

// Remove deletes the caller's reaction.
func (s *ReactionService) Remove(ctx context.Context, caller models.Identity, snapID string) error {
	id, err := s.target(ctx, snapID)
	if err != nil {
		return err
	}
	return s.store.Remove(ctx, caller.UserID, id)
}

// Count returns how many users reacted to snapID.
func (s *ReactionService) Count(ctx context.Context, snapID string) (int64, error) {
	id, err := s.target(ctx, snapID)
	if err != nil {
		return 0, err
	}
	return s.store.CountBySnap(ctx, id)
}

// ListByUser returns the snaps the caller reacted to, most recent reaction first.
func (s *ReactionService) ListByUser(ctx context.Context, caller models.Identity) ([]models.SnapView, error) {
	snaps, err := s.store.ListByUser(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	return s.feed.present(ctx, caller, snaps, true)
}
