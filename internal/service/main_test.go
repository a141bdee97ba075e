package service

import (
	"context"
	"testing"
	"time"

	"twitsnap/internal/clients"
	"twitsnap/internal/database"
	"twitsnap/internal/models"
	"twitsnap/internal/notifications"
	"twitsnap/internal/repository"
	"twitsnap/internal/validation"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockFollowGraph is a mock of the FollowGraph interface
type MockFollowGraph struct {
	mock.Mock
}

func (m *MockFollowGraph) LookupUser(ctx context.Context, viewer models.Identity, username string) (clients.RemoteUser, error) {
	args := m.Called(ctx, viewer, username)
	return args.Get(0).(clients.RemoteUser), args.Error(1)
}

func (m *MockFollowGraph) FollowedIDs(ctx context.Context, viewer models.Identity) ([]int64, error) {
	args := m.Called(ctx, viewer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockFollowGraph) Notify(ctx context.Context, as models.Identity, n clients.Notification) error {
	args := m.Called(ctx, as, n)
	return args.Error(0)
}

// MockRanker is a mock of the Ranker interface
type MockRanker struct {
	mock.Mock
}

func (m *MockRanker) Rank(ctx context.Context, sample []models.Snap, limit int) ([]string, error) {
	args := m.Called(ctx, sample, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockRanker) Trending(ctx context.Context, limit int) ([]models.TrendingTopic, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TrendingTopic), args.Error(1)
}

func (m *MockRanker) Sync(ctx context.Context, snaps []models.Snap) error {
	args := m.Called(ctx, snaps)
	return args.Error(0)
}

// MockMetrics is a mock of the MetricsRecorder interface
type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) Record(ctx context.Context, t clients.MetricType, username string) error {
	args := m.Called(ctx, t, username)
	return args.Error(0)
}

// MockEvents is a mock of the EventPublisher interface
type MockEvents struct {
	mock.Mock
}

func (m *MockEvents) PublishSnapEvent(ctx context.Context, ev notifications.SnapEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

// syncRunner runs tasks inline so tests can assert on their effects.
type syncRunner struct{}

func (syncRunner) Go(ctx context.Context, _ string, fn func(ctx context.Context) error) {
	_ = fn(ctx)
}

// staticFlags turns every flag on unless it is listed in off.
type staticFlags struct {
	off map[string]bool
}

func (f staticFlags) Enabled(name string, _ int64) bool {
	return !f.off[name]
}

var (
	ada   = models.Author{UserID: 1, Name: "Ada", Username: "ada"}
	bob   = models.Author{UserID: 2, Name: "Bob", Username: "bob"}
	carol = models.Author{UserID: 3, Name: "Carol", Username: "carol"}

	viewerAda = models.Identity{Type: models.IdentityUser, UserID: 1, Email: "ada@example.com", Username: "ada"}
	admin     = models.Identity{Type: models.IdentityAdmin, Email: "root@example.com"}

	base = time.Date(2024, 11, 28, 12, 0, 0, 0, time.UTC)
)

type fixture struct {
	snaps     repository.SnapRepository
	likes     repository.LikeRepository
	bookmarks repository.BookmarkRepository

	follows *MockFollowGraph
	ranker  *MockRanker
	metrics *MockMetrics
	events  *MockEvents
	flags   staticFlags

	trending  *TrendingCache
	feed      *FeedService
	lifecycle *SnapService
	likeSvc   *ReactionService
	bookSvc   *ReactionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	f := &fixture{
		snaps:     repository.NewSnapRepository(db),
		likes:     repository.NewLikeRepository(db),
		bookmarks: repository.NewBookmarkRepository(db),
		follows:   new(MockFollowGraph),
		ranker:    new(MockRanker),
		metrics:   new(MockMetrics),
		events:    new(MockEvents),
		flags:     staticFlags{off: map[string]bool{}},
	}
	f.events.On("PublishSnapEvent", mock.Anything, mock.Anything).Return(nil).Maybe()

	f.trending = NewTrendingCache(f.ranker, nil, time.Minute, 5, time.Second)
	interactions := NewInteractionAggregator(f.snaps, f.likes, f.bookmarks)
	f.feed = NewFeedService(f.snaps, f.bookmarks, f.follows, f.ranker, &f.flags, interactions, f.trending)
	f.lifecycle = NewSnapService(f.snaps, f.follows, f.ranker, f.metrics, f.events, syncRunner{}, &f.flags, f.trending)
	f.likeSvc = NewLikeService(f.snaps, f.likes, f.feed, f.metrics, syncRunner{}, &f.flags)
	f.bookSvc = NewBookmarkService(f.snaps, f.bookmarks, f.feed)
	return f
}

// seed stores a snap directly, bypassing validation and resync.
func (f *fixture) seed(t *testing.T, author models.Author, kind models.SnapKind, content string, parent *models.Snap, at time.Time, opts ...func(*models.Snap)) *models.Snap {
	t.Helper()
	snap := &models.Snap{
		AuthorID:       author.UserID,
		AuthorName:     author.Name,
		AuthorUsername: author.Username,
		Content:        content,
		Kind:           kind,
		Privacy:        models.PrivacyEveryone,
		Hashtags:       validation.ExtractHashtags(content),
		Mentions:       validation.ExtractMentions(content),
		CreatedAt:      at,
	}
	if parent != nil {
		snap.ParentID = &parent.ID
	}
	for _, opt := range opts {
		opt(snap)
	}
	require.NoError(t, f.snaps.Create(context.Background(), snap))
	return snap
}

func followersOnly(s *models.Snap) {
	s.Privacy = models.PrivacyOnlyFollowers
}

// knows makes the follow graph answer lookups for author with rel.
func (f *fixture) knows(author models.Author, rel models.Relationship) {
	f.follows.On("LookupUser", mock.Anything, mock.Anything, author.Username).Return(clients.RemoteUser{
		UserID:    author.UserID,
		Name:      author.Name,
		Username:  author.Username,
		IsPrivate: rel.IsPrivate,
		Following: rel.Following,
		Followed:  rel.Followed,
	}, nil)
}

func ids(views []models.SnapView) []string {
	out := make([]string, len(views))
	for i, v := range views {
		out[i] = v.ID
	}
	return out
}

func clientsUser(a models.Author) clients.RemoteUser {
	return clients.RemoteUser{UserID: a.UserID, Name: a.Name, Username: a.Username}
}
