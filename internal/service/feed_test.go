package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"twitsnap/internal/featureflags"
	"twitsnap/internal/models"
	"twitsnap/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestFeedService_RankedItemsComeFirstAndDeduplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s1 := f.seed(t, bob, models.KindOriginal, "one", nil, base)
	s2 := f.seed(t, bob, models.KindOriginal, "two", nil, base.Add(1*time.Minute))
	s3 := f.seed(t, bob, models.KindOriginal, "three", nil, base.Add(2*time.Minute))
	s4 := f.seed(t, bob, models.KindOriginal, "four", nil, base.Add(3*time.Minute))
	f.knows(bob, models.Relationship{Following: true})

	// The oracle repeats s3 and returns an id that was deleted since.
	f.ranker.On("Rank", mock.Anything, mock.Anything, 6).
		Return([]string{s3.ID, s1.ID, s3.ID, uuid.NewString()}, nil).Once()

	views, err := f.feed.GetFeed(ctx, viewerAda, FeedParams{
		Filter: repository.SnapFilter{Limit: 8},
		Rank:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{s3.ID, s1.ID, s4.ID, s2.ID}, ids(views))
	f.ranker.AssertExpectations(t)
}

func TestFeedService_RankingFlagOff(t *testing.T) {
	f := newFixture(t)
	f.flags.off[featureflags.RankedFeed] = true

	for i := 0; i < 3; i++ {
		f.seed(t, bob, models.KindOriginal, "post", nil, base.Add(time.Duration(i)*time.Minute))
	}
	f.knows(bob, models.Relationship{})

	views, err := f.feed.GetFeed(context.Background(), viewerAda, FeedParams{
		Filter: repository.SnapFilter{Limit: 8},
		Rank:   true,
	})
	require.NoError(t, err)
	assert.Len(t, views, 3)
	f.ranker.AssertNotCalled(t, "Rank", mock.Anything, mock.Anything, mock.Anything)
}

func TestFeedService_RankingSkippedWhenByFollowed(t *testing.T) {
	f := newFixture(t)
	f.seed(t, bob, models.KindOriginal, "post", nil, base)
	f.knows(bob, models.Relationship{Following: true})
	f.follows.On("FollowedIDs", mock.Anything, viewerAda).Return([]int64{bob.UserID}, nil)

	views, err := f.feed.GetFeed(context.Background(), viewerAda, FeedParams{Rank: true, ByFollowed: true})
	require.NoError(t, err)
	assert.Len(t, views, 1)
	f.ranker.AssertNotCalled(t, "Rank", mock.Anything, mock.Anything, mock.Anything)
}

func TestFeedService_ByFollowed(t *testing.T) {
	f := newFixture(t)

	f.seed(t, ada, models.KindOriginal, "mine", nil, base)
	b := f.seed(t, bob, models.KindOriginal, "bob", nil, base.Add(time.Minute))
	c := f.seed(t, carol, models.KindOriginal, "carol", nil, base.Add(2*time.Minute))
	f.follows.On("FollowedIDs", mock.Anything, viewerAda).Return([]int64{bob.UserID, carol.UserID}, nil)
	f.knows(bob, models.Relationship{Following: true})
	f.knows(carol, models.Relationship{Following: true})

	views, err := f.feed.GetFeed(context.Background(), viewerAda, FeedParams{ByFollowed: true})
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID, b.ID}, ids(views))
}

func TestFeedService_ByFollowedNobody(t *testing.T) {
	f := newFixture(t)
	f.seed(t, bob, models.KindOriginal, "bob", nil, base)
	f.follows.On("FollowedIDs", mock.Anything, viewerAda).Return(nil, nil)

	views, err := f.feed.GetFeed(context.Background(), viewerAda, FeedParams{ByFollowed: true})
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestFeedService_DownstreamFailureFailsFeed(t *testing.T) {
	f := newFixture(t)
	f.seed(t, bob, models.KindOriginal, "bob", nil, base)
	f.follows.On("FollowedIDs", mock.Anything, viewerAda).
		Return(nil, models.NewServiceUnavailableError(errors.New("users: 500")))

	_, err := f.feed.GetFeed(context.Background(), viewerAda, FeedParams{ByFollowed: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrServiceUnavailable))
}

func TestFeedService_RelationshipFailureFailsFeed(t *testing.T) {
	f := newFixture(t)
	f.seed(t, bob, models.KindOriginal, "bob", nil, base)
	f.follows.On("LookupUser", mock.Anything, mock.Anything, "bob").
		Return(clientsUser(bob), models.NewNotFoundError("username", "bob"))

	_, err := f.feed.GetFeed(context.Background(), viewerAda, FeedParams{})
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestFeedService_DropsBlocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	blocked := true

	orig := f.seed(t, bob, models.KindOriginal, "bad", nil, base)
	retwit := f.seed(t, ada, models.KindRetwit, "", orig, base.Add(time.Minute))
	comment := f.seed(t, ada, models.KindComment, "reply", orig, base.Add(2*time.Minute))
	_, err := f.snaps.Edit(ctx, orig.ID, repository.SnapPatch{IsBlocked: &blocked})
	require.NoError(t, err)

	f.knows(ada, models.Relationship{})
	f.knows(bob, models.Relationship{})

	views, err := f.feed.GetFeed(ctx, viewerAda, FeedParams{})
	require.NoError(t, err)
	// The comment survives its blocked parent; the retwit does not.
	assert.Equal(t, []string{comment.ID}, ids(views))
	assert.NotContains(t, ids(views), retwit.ID)
}

func TestFeedService_NoJoinParentKeepsRetwitDelegation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	orig := f.seed(t, bob, models.KindOriginal, "original", nil, base)
	retwit := f.seed(t, ada, models.KindRetwit, "", orig, base.Add(time.Minute))
	require.NoError(t, f.likes.Add(ctx, carol.UserID, orig.ID))
	f.knows(ada, models.Relationship{})
	f.knows(bob, models.Relationship{IsPrivate: true, Following: true, Followed: true})

	params := FeedParams{Filter: repository.SnapFilter{NoJoinParent: true}}
	views, err := f.feed.GetFeed(ctx, viewerAda, params)
	require.NoError(t, err)
	require.Equal(t, []string{retwit.ID, orig.ID}, ids(views))

	rv := views[0]
	assert.Nil(t, rv.Parent)
	require.NotNil(t, rv.Interactions)
	require.NotNil(t, rv.LikesCount)
	assert.Equal(t, 1, *rv.LikesCount)
	assert.Equal(t, 1, rv.RetwitCount)
	assert.True(t, rv.UserRetwitted)

	blocked := true
	_, err = f.snaps.Edit(ctx, orig.ID, repository.SnapPatch{IsBlocked: &blocked})
	require.NoError(t, err)

	views, err = f.feed.GetFeed(ctx, viewerAda, params)
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestFeedService_PrivacyFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	hidden := f.seed(t, bob, models.KindOriginal, "followers only", nil, base, followersOnly)
	own := f.seed(t, ada, models.KindOriginal, "mine", nil, base.Add(time.Minute), followersOnly)
	public := f.seed(t, carol, models.KindOriginal, "public", nil, base.Add(2*time.Minute))

	f.knows(ada, models.Relationship{})
	f.knows(bob, models.Relationship{Following: true})
	f.knows(carol, models.Relationship{})

	views, err := f.feed.GetFeed(ctx, viewerAda, FeedParams{})
	require.NoError(t, err)
	assert.Equal(t, []string{public.ID, own.ID}, ids(views))

	// Admins are not filtered and never hit the follow graph.
	views, err = f.feed.GetFeed(ctx, admin, FeedParams{})
	require.NoError(t, err)
	assert.Equal(t, []string{public.ID, own.ID, hidden.ID}, ids(views))
}

func TestFeedService_PrivacyFollowedAuthor(t *testing.T) {
	f := newFixture(t)
	s := f.seed(t, bob, models.KindOriginal, "followers only", nil, base, followersOnly)
	f.knows(bob, models.Relationship{Followed: true})

	views, err := f.feed.GetFeed(context.Background(), viewerAda, FeedParams{})
	require.NoError(t, err)
	assert.Equal(t, []string{s.ID}, ids(views))
	assert.True(t, views[0].User.FollowsViewer())
}

func TestFeedService_LikesCountGatedByPrivacy(t *testing.T) {
	tests := []struct {
		name    string
		rel     models.Relationship
		visible bool
	}{
		{name: "public author", rel: models.Relationship{}, visible: true},
		{name: "private author mutual follow", rel: models.Relationship{IsPrivate: true, Following: true, Followed: true}, visible: true},
		{name: "private author one-way follow", rel: models.Relationship{IsPrivate: true, Following: true}, visible: false},
		{name: "private author no follow", rel: models.Relationship{IsPrivate: true}, visible: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			s := f.seed(t, bob, models.KindOriginal, "hello", nil, base)
			require.NoError(t, f.likes.Add(ctx, carol.UserID, s.ID))
			require.NoError(t, f.likes.Add(ctx, viewerAda.UserID, s.ID))
			f.knows(bob, tt.rel)

			views, err := f.feed.GetFeed(ctx, viewerAda, FeedParams{})
			require.NoError(t, err)
			require.Len(t, views, 1)
			require.NotNil(t, views[0].Interactions)
			assert.True(t, views[0].UserLiked)
			if tt.visible {
				require.NotNil(t, views[0].LikesCount)
				assert.Equal(t, 2, *views[0].LikesCount)
			} else {
				assert.Nil(t, views[0].LikesCount)
			}
		})
	}
}

func TestFeedService_RetwitsOfUnfollowedAuthorsAreDropped(t *testing.T) {
	f := newFixture(t)

	orig := f.seed(t, bob, models.KindOriginal, "original", nil, base)
	byCarol := f.seed(t, carol, models.KindRetwit, "", orig, base.Add(time.Minute))
	byAda := f.seed(t, ada, models.KindRetwit, "", orig, base.Add(2*time.Minute))
	f.knows(ada, models.Relationship{})
	f.knows(bob, models.Relationship{})
	f.knows(carol, models.Relationship{Following: false})

	views, err := f.feed.GetFeed(context.Background(), viewerAda, FeedParams{})
	require.NoError(t, err)
	assert.Equal(t, []string{byAda.ID, orig.ID}, ids(views))
	assert.NotContains(t, ids(views), byCarol.ID)

	// The retwit reports its parent's counts.
	require.NotNil(t, views[0].Interactions)
	assert.Equal(t, 2, views[0].RetwitCount)
	assert.True(t, views[0].UserRetwitted)
	assert.Equal(t, 2, views[1].RetwitCount)
}

func TestFeedService_Bookmarks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	older := f.seed(t, bob, models.KindOriginal, "older", nil, base)
	newer := f.seed(t, bob, models.KindOriginal, "newer", nil, base.Add(time.Minute))
	f.seed(t, bob, models.KindOriginal, "not bookmarked", nil, base.Add(2*time.Minute))
	require.NoError(t, f.bookmarks.Add(ctx, viewerAda.UserID, newer.ID))
	require.NoError(t, f.bookmarks.Add(ctx, viewerAda.UserID, older.ID))
	f.knows(bob, models.Relationship{})

	views, err := f.feed.GetFeed(ctx, viewerAda, FeedParams{Bookmarks: true, Rank: true})
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.ElementsMatch(t, []string{older.ID, newer.ID}, ids(views))
	for _, v := range views {
		assert.True(t, v.UserBookmarked)
	}
	f.ranker.AssertNotCalled(t, "Rank", mock.Anything, mock.Anything, mock.Anything)
}

func TestFeedService_GetSnap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	blocked := true

	s := f.seed(t, bob, models.KindOriginal, "followers only", nil, base, followersOnly)
	f.knows(bob, models.Relationship{})

	// Direct links skip the privacy filter.
	v, err := f.feed.GetSnap(ctx, viewerAda, s.ID, repository.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, s.ID, v.ID)
	assert.Equal(t, "Bob", v.User.Name)

	_, err = f.snaps.Edit(ctx, s.ID, repository.SnapPatch{IsBlocked: &blocked})
	require.NoError(t, err)
	_, err = f.feed.GetSnap(ctx, viewerAda, s.ID, repository.GetOptions{})
	assert.True(t, errors.Is(err, models.ErrNotFound))

	_, err = f.feed.GetSnap(ctx, viewerAda, uuid.NewString(), repository.GetOptions{})
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestFeedService_GetSnapRetwitOfUnfollowedIsNotFound(t *testing.T) {
	f := newFixture(t)
	orig := f.seed(t, bob, models.KindOriginal, "original", nil, base)
	rt := f.seed(t, carol, models.KindRetwit, "", orig, base.Add(time.Minute))
	f.knows(bob, models.Relationship{})
	f.knows(carol, models.Relationship{})

	_, err := f.feed.GetSnap(context.Background(), viewerAda, rt.ID, repository.GetOptions{})
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestFeedService_Trending(t *testing.T) {
	f := newFixture(t)
	topics := []models.TrendingTopic{{"golang": 3}}
	f.ranker.On("Trending", mock.Anything, 5).Return(topics, nil).Once()

	got, err := f.feed.Trending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, topics, got)

	// Served from the local cache on the second call.
	got, err = f.feed.Trending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, topics, got)
	f.ranker.AssertExpectations(t)
}
