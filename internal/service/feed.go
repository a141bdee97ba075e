package service

import (
	"context"
	"errors"
	"log/slog"

	"twitsnap/internal/featureflags"
	"twitsnap/internal/middleware"
	"twitsnap/internal/models"
	"twitsnap/internal/observability"
	"twitsnap/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// maxLookups bounds concurrent follow-graph lookups per request.
const maxLookups = 8

// FeedParams selects a feed page.
type FeedParams struct {
	Filter     repository.SnapFilter
	ByFollowed bool
	Rank       bool
	Bookmarks  bool
}

// FeedService assembles feeds and single snaps for a viewer.
type FeedService struct {
	snaps        repository.SnapRepository
	bookmarks    repository.BookmarkRepository
	follows      FollowGraph
	ranker       Ranker
	flags        FlagSource
	interactions *InteractionAggregator
	trending     *TrendingCache
}

// NewFeedService creates a FeedService.
func NewFeedService(
	snaps repository.SnapRepository,
	bookmarks repository.BookmarkRepository,
	follows FollowGraph,
	ranker Ranker,
	flags FlagSource,
	interactions *InteractionAggregator,
	trending *TrendingCache,
) *FeedService {
	return &FeedService{
		snaps:        snaps,
		bookmarks:    bookmarks,
		follows:      follows,
		ranker:       ranker,
		flags:        flags,
		interactions: interactions,
		trending:     trending,
	}
}

// GetFeed returns a feed page. Ranked snaps come first in the ranking
// service's order, followed by the direct query in createdAt order.
func (s *FeedService) GetFeed(ctx context.Context, viewer models.Identity, p FeedParams) ([]models.SnapView, error) {
	span, ctx := observability.NewSpan(ctx, "feed.GetFeed",
		attribute.Bool("feed.rank", p.Rank),
		attribute.Bool("feed.by_followed", p.ByFollowed),
		attribute.Bool("feed.bookmarks", p.Bookmarks),
	)
	defer span.End()

	snaps, mode, err := s.collect(ctx, viewer, p)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	views, err := s.present(ctx, viewer, snaps, true)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	observability.FeedSnapsReturned.WithLabelValues(mode).Observe(float64(len(views)))
	return views, nil
}

func (s *FeedService) collect(ctx context.Context, viewer models.Identity, p FeedParams) ([]models.Snap, string, error) {
	if p.Bookmarks {
		snaps, err := s.bookmarks.ListByUser(ctx, viewer.UserID)
		return snaps, "bookmarks", err
	}

	f := p.Filter
	mode := "direct"
	var ranked []models.Snap
	if p.Rank && !p.ByFollowed && s.flags.Enabled(featureflags.RankedFeed, viewer.UserID) {
		limit := f.Limit
		if limit <= 0 {
			limit = repository.DefaultLimit
		}
		if limit /= 4; limit == 0 {
			limit = 5
		}
		f.Limit = limit

		var err error
		ranked, err = s.rank(ctx, viewer, limit, f.NoJoinParent)
		if err != nil {
			return nil, "", err
		}
		for _, snap := range ranked {
			f.ExcludeIDs = append(f.ExcludeIDs, snap.ID)
		}
		mode = "ranked"
	}

	if p.ByFollowed {
		ids, err := s.followedIDs(ctx, viewer)
		if err != nil {
			return nil, "", err
		}
		f.AuthorIDs = ids
		mode = "followed"
	}

	direct, err := s.snaps.Query(ctx, f)
	if err != nil {
		return nil, "", err
	}
	if ranked == nil {
		return direct, mode, nil
	}
	return dedupSnaps(append(ranked, direct...)), mode, nil
}

// rank asks the ranking service to order the viewer's sample and rehydrates
// the returned ids. Ids that no longer exist are skipped.
func (s *FeedService) rank(ctx context.Context, viewer models.Identity, limit int, noJoinParent bool) ([]models.Snap, error) {
	sample, err := s.snaps.Sample(ctx, viewer.UserID)
	if err != nil {
		return nil, err
	}
	ids, err := s.ranker.Rank(ctx, sample, limit*3)
	if err != nil {
		return nil, err
	}

	ranked := make([]models.Snap, 0, len(ids))
	for _, id := range ids {
		snap, err := s.snaps.GetByID(ctx, id, repository.GetOptions{NoJoinParent: noJoinParent})
		if errors.Is(err, models.ErrNotFound) {
			middleware.Logger.DebugContext(ctx, "ranked snap no longer exists", slog.String("snap_id", id))
			continue
		}
		if err != nil {
			return nil, err
		}
		ranked = append(ranked, *snap)
	}
	return ranked, nil
}

func (s *FeedService) followedIDs(ctx context.Context, viewer models.Identity) ([]int64, error) {
	if viewer.Type != models.IdentityUser {
		return []int64{}, nil
	}
	ids, err := s.follows.FollowedIDs(ctx, viewer)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

// GetSnap returns one snap. Blocked snaps are reported as missing; the
// privacy filter does not apply so direct links resolve.
func (s *FeedService) GetSnap(ctx context.Context, viewer models.Identity, id string, opts repository.GetOptions) (models.SnapView, error) {
	snap, err := s.snaps.GetByID(ctx, id, opts)
	if err != nil {
		return models.SnapView{}, err
	}
	if snap.IsBlocked {
		return models.SnapView{}, models.NewNotFoundError("twit", id)
	}

	views, err := s.present(ctx, viewer, []models.Snap{*snap}, false)
	if err != nil {
		return models.SnapView{}, err
	}
	if len(views) == 0 {
		return models.SnapView{}, models.NewNotFoundError("twit", id)
	}
	return views[0], nil
}

// Count returns the number of snaps matching f.
func (s *FeedService) Count(ctx context.Context, f repository.SnapFilter) (int64, error) {
	return s.snaps.Count(ctx, f)
}

// Trending returns the current trending topics.
func (s *FeedService) Trending(ctx context.Context) ([]models.TrendingTopic, error) {
	return s.trending.Get(ctx)
}

// present turns rows into views: blocked snaps are dropped, authors are
// resolved against the follow graph, private snaps are filtered when
// filterPrivate is set and interactions are attached.
func (s *FeedService) present(ctx context.Context, viewer models.Identity, snaps []models.Snap, filterPrivate bool) ([]models.SnapView, error) {
	views := make([]models.SnapView, 0, len(snaps))
	for i := range snaps {
		v := models.NewSnapView(&snaps[i])
		if v.Hidden() {
			continue
		}
		views = append(views, v)
	}

	if viewer.Type == models.IdentityUser {
		var err error
		if views, err = s.resolveAuthors(ctx, viewer, views); err != nil {
			return nil, err
		}
	}

	if filterPrivate && !viewer.IsAdmin() {
		visible := views[:0]
		for _, v := range views {
			if canView(viewer, v) {
				visible = append(visible, v)
			}
		}
		views = visible
	}

	return s.interactions.Annotate(ctx, viewer, views)
}

// canView applies snap privacy: follower-only snaps are visible to the author
// and to accounts the author reports as followed.
func canView(viewer models.Identity, v models.SnapView) bool {
	switch v.Privacy {
	case models.PrivacyEveryone:
		return true
	case models.PrivacyOnlyFollowers:
		return v.User.UserID == viewer.UserID || v.User.FollowsViewer()
	}
	return false
}

// resolveAuthors looks up every distinct author and parent author once and
// returns copies of views carrying the viewer's relationship to each.
func (s *FeedService) resolveAuthors(ctx context.Context, viewer models.Identity, views []models.SnapView) ([]models.SnapView, error) {
	var usernames []string
	seen := make(map[string]struct{})
	add := func(username string) {
		if _, ok := seen[username]; ok || username == "" {
			return
		}
		seen[username] = struct{}{}
		usernames = append(usernames, username)
	}
	for _, v := range views {
		add(v.User.Username)
		if v.Parent != nil {
			add(v.Parent.User.Username)
		}
		add(v.CountableAuthor().Username)
	}
	if len(usernames) == 0 {
		return views, nil
	}

	rels := make([]models.Relationship, len(usernames))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxLookups)
	for i, username := range usernames {
		i, username := i, username
		g.Go(func() error {
			u, err := s.follows.LookupUser(gctx, viewer, username)
			if err != nil {
				return err
			}
			rels[i] = models.Relationship{IsPrivate: u.IsPrivate, Following: u.Following, Followed: u.Followed}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byName := make(map[string]models.Relationship, len(usernames))
	for i, username := range usernames {
		byName[username] = rels[i]
	}
	resolve := func(a models.Author) models.Author {
		if rel, ok := byName[a.Username]; ok {
			return a.WithRelationship(rel)
		}
		return a
	}

	out := make([]models.SnapView, len(views))
	for i, v := range views {
		out[i] = v.WithAuthors(resolve)
	}
	return out, nil
}

func dedupSnaps(snaps []models.Snap) []models.Snap {
	seen := make(map[string]struct{}, len(snaps))
	out := snaps[:0]
	for _, snap := range snaps {
		if _, dup := seen[snap.ID]; dup {
			continue
		}
		seen[snap.ID] = struct{}{}
		out = append(out, snap)
	}
	return out
}
