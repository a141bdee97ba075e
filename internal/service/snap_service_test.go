package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"twitsnap/internal/clients"
	"twitsnap/internal/featureflags"
	"twitsnap/internal/models"
	"twitsnap/internal/notifications"
	"twitsnap/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func adaInput(kind, content, parent string) CreateSnapInput {
	return CreateSnapInput{
		Caller:  viewerAda,
		Content: content,
		Type:    kind,
		Parent:  parent,
		User:    &SnapAuthor{UserID: ada.UserID, Name: ada.Name, Username: ada.Username},
	}
}

func TestSnapService_CreateValidation(t *testing.T) {
	parent := uuid.NewString()

	tests := []struct {
		name   string
		mutate func(in *CreateSnapInput)
		field  string
		detail string
	}{
		{
			name:   "unknown type",
			mutate: func(in *CreateSnapInput) { in.Type = "quote" },
			field:  "type",
			detail: "quote is not a valid type it must be 'retwit', 'comment' or 'original'",
		},
		{
			name:   "retwit without parent",
			mutate: func(in *CreateSnapInput) { in.Type = "retwit" },
			field:  "parent",
			detail: "Can not retwit if no parent is provided",
		},
		{
			name:   "comment without parent",
			mutate: func(in *CreateSnapInput) { in.Type = "comment" },
			field:  "parent",
			detail: "Can not comment if no parent is provided",
		},
		{
			name:   "original with parent",
			mutate: func(in *CreateSnapInput) { in.Parent = parent },
			field:  "parent",
			detail: "Can not create a new original tweet if parent is provided",
		},
		{
			name:   "missing content",
			mutate: func(in *CreateSnapInput) { in.Content = "   " },
			field:  "content",
			detail: "The TwitSnap content is required.",
		},
		{
			name:   "content too long",
			mutate: func(in *CreateSnapInput) { in.Content = strings.Repeat("x", 281) },
			field:  "content",
			detail: "The content of the TwitSnap must not exceed 280 characters.",
		},
		{
			name:   "missing user",
			mutate: func(in *CreateSnapInput) { in.User = nil },
			field:  "user.name",
			detail: "User name must be specified",
		},
		{
			name:   "missing username",
			mutate: func(in *CreateSnapInput) { in.User.Username = "" },
			field:  "user.username",
			detail: "User username must be specified",
		},
		{
			name:   "missing user id",
			mutate: func(in *CreateSnapInput) { in.User.UserID = 0 },
			field:  "user.userId",
			detail: "User ID must be specified",
		},
		{
			name:   "unknown privacy",
			mutate: func(in *CreateSnapInput) { in.Privacy = "Friends" },
			field:  "privacy",
			detail: "Friends is not a valid privacy it must be 'Everyone' or 'Only Followers'",
		},
		{
			name: "malformed parent",
			mutate: func(in *CreateSnapInput) {
				in.Type = "comment"
				in.Parent = "nope"
			},
			field:  "parent",
			detail: "Invalid UUID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := adaInput("original", "hello", "")
			tt.mutate(&in)

			_, err := f.lifecycle.Create(context.Background(), in)
			require.Error(t, err)
			var appErr *models.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, models.CodeValidation, appErr.Code)
			assert.Equal(t, tt.field, appErr.Field)
			assert.Equal(t, tt.detail, appErr.Detail)
			f.ranker.AssertNotCalled(t, "Sync", mock.Anything, mock.Anything)
		})
	}
}

func TestSnapService_CreateOriginal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.knows(bob, models.Relationship{})
	f.follows.On("LookupUser", mock.Anything, viewerAda, "ghost").
		Return(clients.RemoteUser{}, models.NewNotFoundError("username", "ghost"))
	f.ranker.On("Sync", mock.Anything, mock.MatchedBy(func(all []models.Snap) bool { return len(all) == 1 })).Return(nil).Once()
	f.ranker.On("Trending", mock.Anything, 5).Return([]models.TrendingTopic{{"GoLang": 4}, {"rust": 1}}, nil)
	f.metrics.On("Record", mock.Anything, clients.MetricTwit, "ada").Return(nil).Once()
	f.follows.On("Notify", mock.Anything, viewerAda, mock.MatchedBy(func(n clients.Notification) bool {
		return n.Title == "@ada posted a trending twit!" && n.Data.Type == "twit" && n.Data.SenderID == ada.UserID
	})).Return(nil).Once()

	in := adaInput("", "  learning #GoLang with @bob and @ghost  ", "")
	in.Privacy = "OnlyFollowers"
	v, err := f.lifecycle.Create(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, models.KindOriginal, v.Type)
	assert.Equal(t, "learning #GoLang with @bob and @ghost", v.Content)
	assert.Equal(t, models.PrivacyOnlyFollowers, v.Privacy)
	assert.Equal(t, []models.Hashtag{{Text: "#GoLang"}}, v.Entities.Hashtags)
	assert.Equal(t, []models.UserMention{{Username: "bob"}}, v.Entities.UserMentions)
	assert.Equal(t, "ada", v.User.Username)

	stored, err := f.snaps.GetByID(ctx, v.ID, repository.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, []string(stored.Mentions))

	f.ranker.AssertExpectations(t)
	f.metrics.AssertExpectations(t)
	f.follows.AssertExpectations(t)
	f.events.AssertCalled(t, "PublishSnapEvent", mock.Anything, mock.MatchedBy(func(ev notifications.SnapEvent) bool {
		return ev.Type == notifications.EventSnapCreated && ev.SnapID == v.ID
	}))
}

func TestSnapService_CreateMetricsFlagOff(t *testing.T) {
	f := newFixture(t)
	f.flags.off[featureflags.MetricsEvents] = true
	f.ranker.On("Sync", mock.Anything, mock.Anything).Return(nil)
	f.ranker.On("Trending", mock.Anything, 5).Return([]models.TrendingTopic{}, nil)

	_, err := f.lifecycle.Create(context.Background(), adaInput("original", "quiet", ""))
	require.NoError(t, err)
	f.metrics.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything)
}

func TestSnapService_CreateMissingParent(t *testing.T) {
	f := newFixture(t)

	for _, kind := range []string{"comment", "retwit"} {
		_, err := f.lifecycle.Create(context.Background(), adaInput(kind, "reply", uuid.NewString()))
		require.Error(t, err, kind)
		assert.True(t, errors.Is(err, models.ErrNotFound), kind)
	}
	f.ranker.AssertNotCalled(t, "Sync", mock.Anything, mock.Anything)
}

func TestSnapService_RetwitTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orig := f.seed(t, bob, models.KindOriginal, "worth sharing", nil, base)
	f.ranker.On("Sync", mock.Anything, mock.Anything).Return(nil)
	f.metrics.On("Record", mock.Anything, clients.MetricRetwit, "ada").Return(nil)

	v, err := f.lifecycle.Create(ctx, adaInput("retwit", "ignored", orig.ID))
	require.NoError(t, err)
	assert.Equal(t, models.KindRetwit, v.Type)
	assert.Empty(t, v.Content)
	require.NotNil(t, v.Parent)
	assert.Equal(t, orig.ID, v.Parent.ID)

	_, err = f.lifecycle.Create(ctx, adaInput("retwit", "", orig.ID))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrAlreadyExists))
	f.ranker.AssertNumberOfCalls(t, "Sync", 1)
	f.ranker.AssertNotCalled(t, "Trending", mock.Anything, mock.Anything)
}

func TestSnapService_SyncFailurePropagates(t *testing.T) {
	f := newFixture(t)
	f.ranker.On("Sync", mock.Anything, mock.Anything).
		Return(models.NewServiceUnavailableError(errors.New("feed: 500")))

	_, err := f.lifecycle.Create(context.Background(), adaInput("original", "hello", ""))
	assert.True(t, errors.Is(err, models.ErrServiceUnavailable))
	f.metrics.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything)
}

func TestSnapService_Edit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.seed(t, ada, models.KindOriginal, "first #draft", nil, base)
	f.ranker.On("Sync", mock.Anything, mock.Anything).Return(nil)
	f.knows(bob, models.Relationship{})

	content := "second #final for @bob"
	require.NoError(t, f.lifecycle.Edit(ctx, s.ID, EditSnapInput{Caller: viewerAda, Content: &content}))

	got, err := f.snaps.GetByID(ctx, s.ID, repository.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, content, got.Content)
	assert.Equal(t, []string{"#final"}, []string(got.Hashtags))
	assert.Equal(t, []string{"bob"}, []string(got.Mentions))

	hits, err := f.snaps.Query(ctx, repository.SnapFilter{Hashtag: "final"})
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	empty := " "
	err = f.lifecycle.Edit(ctx, s.ID, EditSnapInput{Caller: viewerAda, Content: &empty})
	assert.True(t, errors.Is(err, models.ErrValidation))

	err = f.lifecycle.Edit(ctx, uuid.NewString(), EditSnapInput{Caller: viewerAda, Content: &content})
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestSnapService_EditBlockRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.seed(t, bob, models.KindOriginal, "spam", nil, base)
	f.ranker.On("Sync", mock.Anything, mock.Anything).Return(nil)
	blocked := true

	err := f.lifecycle.Edit(ctx, s.ID, EditSnapInput{Caller: viewerAda, IsBlocked: &blocked})
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "isBlocked", appErr.Field)

	require.NoError(t, f.lifecycle.Edit(ctx, s.ID, EditSnapInput{Caller: admin, IsBlocked: &blocked}))
	got, err := f.snaps.GetByID(ctx, s.ID, repository.GetOptions{})
	require.NoError(t, err)
	assert.True(t, got.IsBlocked)
}

func TestSnapService_DeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ranker.On("Sync", mock.Anything, mock.Anything).Return(nil)

	orig := f.seed(t, ada, models.KindOriginal, "root", nil, base)
	rt := f.seed(t, bob, models.KindRetwit, "", orig, base.Add(time.Minute))
	comment := f.seed(t, carol, models.KindComment, "reply", orig, base.Add(2*time.Minute))
	require.NoError(t, f.likes.Add(ctx, bob.UserID, orig.ID))
	require.NoError(t, f.bookmarks.Add(ctx, carol.UserID, orig.ID))

	require.NoError(t, f.lifecycle.Delete(ctx, orig.ID, DeleteOptions{Caller: viewerAda}))

	_, err := f.snaps.GetByID(ctx, orig.ID, repository.GetOptions{})
	assert.True(t, errors.Is(err, models.ErrNotFound))
	_, err = f.snaps.GetByID(ctx, rt.ID, repository.GetOptions{})
	assert.True(t, errors.Is(err, models.ErrNotFound))

	survivor, err := f.snaps.GetByID(ctx, comment.ID, repository.GetOptions{})
	require.NoError(t, err)
	assert.Nil(t, survivor.ParentID)
	assert.Nil(t, survivor.Parent)

	n, err := f.likes.CountBySnap(ctx, orig.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	f.ranker.AssertNumberOfCalls(t, "Sync", 1)
}

func TestSnapService_DeleteRetwit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ranker.On("Sync", mock.Anything, mock.Anything).Return(nil)

	orig := f.seed(t, bob, models.KindOriginal, "root", nil, base)

	err := f.lifecycle.Delete(ctx, orig.ID, DeleteOptions{Caller: viewerAda, AsRetwit: true})
	assert.True(t, errors.Is(err, models.ErrNotFound))

	rt := f.seed(t, ada, models.KindRetwit, "", orig, base.Add(time.Minute))
	require.NoError(t, f.lifecycle.Delete(ctx, orig.ID, DeleteOptions{Caller: viewerAda, AsRetwit: true}))

	_, err = f.snaps.GetByID(ctx, rt.ID, repository.GetOptions{})
	assert.True(t, errors.Is(err, models.ErrNotFound))
	_, err = f.snaps.GetByID(ctx, orig.ID, repository.GetOptions{})
	assert.NoError(t, err)
	f.events.AssertCalled(t, "PublishSnapEvent", mock.Anything, mock.MatchedBy(func(ev notifications.SnapEvent) bool {
		return ev.Type == notifications.EventRetwitDeleted && ev.ParentID == orig.ID
	}))
}
