package service

import (
	"context"

	"twitsnap/internal/models"
	"twitsnap/internal/observability"
	"twitsnap/internal/repository"

	"golang.org/x/sync/errgroup"
)

// InteractionAggregator annotates snaps with counts and the viewer's own interactions.
type InteractionAggregator struct {
	snaps     repository.SnapRepository
	likes     repository.LikeRepository
	bookmarks repository.BookmarkRepository
}

// NewInteractionAggregator creates an InteractionAggregator.
func NewInteractionAggregator(
	snaps repository.SnapRepository,
	likes repository.LikeRepository,
	bookmarks repository.BookmarkRepository,
) *InteractionAggregator {
	return &InteractionAggregator{snaps: snaps, likes: likes, bookmarks: bookmarks}
}

type interactionData struct {
	likes, bookmarks, comments, retwits       map[string]int
	userLiked, userBookmarked, userRetwitted map[string]bool
}

// Annotate returns views with interactions attached. Retwits the viewer neither
// made nor follows the author of are dropped. Counts are keyed on the countable
// id, so a retwit reports its parent's numbers.
func (a *InteractionAggregator) Annotate(ctx context.Context, viewer models.Identity, views []models.SnapView) ([]models.SnapView, error) {
	kept := make([]models.SnapView, 0, len(views))
	for _, v := range views {
		if v.Type == models.KindRetwit && v.User.UserID != viewer.UserID && !v.User.ViewerFollows() {
			continue
		}
		kept = append(kept, v)
	}
	if len(kept) == 0 {
		return kept, nil
	}

	ids := countableIDs(kept)
	data, err := a.load(ctx, viewer.UserID, ids)
	if err != nil {
		return nil, err
	}

	out := make([]models.SnapView, 0, len(kept))
	for _, v := range kept {
		id := v.CountableID()
		in := models.Interactions{
			UserLiked:      data.userLiked[id],
			BookmarkCount:  data.bookmarks[id],
			UserBookmarked: data.userBookmarked[id],
			CommentCount:   data.comments[id],
			RetwitCount:    data.retwits[id],
			UserRetwitted:  data.userRetwitted[id],
		}
		if canViewLikes(viewer, v.CountableAuthor()) {
			n := data.likes[id]
			in.LikesCount = &n
		}
		out = append(out, v.WithInteractions(in))
	}
	return out, nil
}

// canViewLikes hides like counts of private accounts from everyone but the
// author and mutual followers.
func canViewLikes(viewer models.Identity, author models.Author) bool {
	return !author.IsPrivate() || viewer.UserID == author.UserID || author.MutualFollow()
}

func (a *InteractionAggregator) load(ctx context.Context, userID int64, ids []string) (*interactionData, error) {
	span, ctx := observability.NewSpan(ctx, "interactions.load")
	defer span.End()

	d := &interactionData{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.likes, err = a.likes.CountBySnaps(gctx, ids)
		return err
	})
	g.Go(func() (err error) {
		d.userLiked, err = a.likes.UserFlags(gctx, userID, ids)
		return err
	})
	g.Go(func() (err error) {
		d.bookmarks, err = a.bookmarks.CountBySnaps(gctx, ids)
		return err
	})
	g.Go(func() (err error) {
		d.userBookmarked, err = a.bookmarks.UserFlags(gctx, userID, ids)
		return err
	})
	g.Go(func() (err error) {
		d.comments, err = a.snaps.CountChildrenByKind(gctx, ids, models.KindComment)
		return err
	})
	g.Go(func() (err error) {
		d.retwits, err = a.snaps.CountChildrenByKind(gctx, ids, models.KindRetwit)
		return err
	})
	g.Go(func() (err error) {
		d.userRetwitted, err = a.snaps.UserRetwitted(gctx, userID, ids)
		return err
	})
	if err := g.Wait(); err != nil {
		span.SetError(err)
		return nil, err
	}
	return d, nil
}

func countableIDs(views []models.SnapView) []string {
	seen := make(map[string]struct{}, len(views))
	ids := make([]string, 0, len(views))
	for _, v := range views {
		id := v.CountableID()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
