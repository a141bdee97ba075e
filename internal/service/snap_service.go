package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"twitsnap/internal/clients"
	"twitsnap/internal/featureflags"
	"twitsnap/internal/middleware"
	"twitsnap/internal/models"
	"twitsnap/internal/notifications"
	"twitsnap/internal/observability"
	"twitsnap/internal/repository"
	"twitsnap/internal/validation"

	"golang.org/x/sync/errgroup"
)

// SnapAuthor is the author block a client sends with a new snap.
type SnapAuthor struct {
	UserID   int64  `json:"userId"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// CreateSnapInput is a snap creation request.
type CreateSnapInput struct {
	Caller  models.Identity
	Content string
	Type    string
	Parent  string
	Privacy string
	User    *SnapAuthor
}

// EditSnapInput carries the fields a PATCH may change. Nil means unchanged.
type EditSnapInput struct {
	Caller    models.Identity
	Content   *string
	IsBlocked *bool
}

// DeleteOptions selects between removing a snap and removing the caller's retwit of it.
type DeleteOptions struct {
	Caller   models.Identity
	AsRetwit bool
}

// SnapService validates and executes snap creation, edits and deletes.
type SnapService struct {
	snaps    repository.SnapRepository
	follows  FollowGraph
	ranker   Ranker
	metrics  MetricsRecorder
	events   EventPublisher
	tasks    TaskRunner
	flags    FlagSource
	trending *TrendingCache
}

// NewSnapService creates a SnapService.
func NewSnapService(
	snaps repository.SnapRepository,
	follows FollowGraph,
	ranker Ranker,
	metrics MetricsRecorder,
	events EventPublisher,
	tasks TaskRunner,
	flags FlagSource,
	trending *TrendingCache,
) *SnapService {
	return &SnapService{
		snaps:    snaps,
		follows:  follows,
		ranker:   ranker,
		metrics:  metrics,
		events:   events,
		tasks:    tasks,
		flags:    flags,
		trending: trending,
	}
}

// Create validates in, stores the snap and resyncs the ranking index.
func (s *SnapService) Create(ctx context.Context, in CreateSnapInput) (models.SnapView, error) {
	kind, content, err := validateKind(in.Type, in.Content, in.Parent)
	if err != nil {
		return models.SnapView{}, err
	}
	author, err := validateAuthor(in.User)
	if err != nil {
		return models.SnapView{}, err
	}

	var parentID *string
	if in.Parent != "" {
		id, err := validation.ValidateSnapID("parent", in.Parent)
		if err != nil {
			return models.SnapView{}, err
		}
		parentID = &id
	}

	privacy := models.PrivacyEveryone
	if in.Privacy != "" {
		p, ok := models.ParsePrivacy(in.Privacy)
		if !ok {
			return models.SnapView{}, models.NewValidationError("privacy",
				fmt.Sprintf("%s is not a valid privacy it must be 'Everyone' or 'Only Followers'", in.Privacy))
		}
		privacy = p
	}

	span, ctx := observability.NewSpan(ctx, "snaps.Create")
	defer span.End()

	mentions := s.validateMentions(ctx, in.Caller, validation.ExtractMentions(content))

	var parent *models.Snap
	if parentID != nil {
		parent, err = s.snaps.GetByID(ctx, *parentID, repository.GetOptions{NoJoinParent: true})
		if err != nil {
			span.SetError(err)
			return models.SnapView{}, err
		}
	}

	snap := &models.Snap{
		AuthorID:       author.UserID,
		AuthorName:     author.Name,
		AuthorUsername: author.Username,
		Content:        content,
		Kind:           kind,
		ParentID:       parentID,
		Privacy:        privacy,
		Hashtags:       validation.ExtractHashtags(content),
		Mentions:       mentions,
	}
	if err := s.snaps.Create(ctx, snap); err != nil {
		span.SetError(err)
		return models.SnapView{}, err
	}
	snap.Parent = parent

	if err := s.SyncIndex(ctx); err != nil {
		span.SetError(err)
		return models.SnapView{}, err
	}

	s.afterCreate(ctx, in.Caller, snap)
	return models.NewSnapView(snap), nil
}

func validateKind(rawType, content, parent string) (models.SnapKind, string, error) {
	if rawType == "" {
		rawType = string(models.KindOriginal)
	}
	kind, ok := models.ParseSnapKind(rawType)
	if !ok {
		return "", "", models.NewValidationError("type",
			fmt.Sprintf("%s is not a valid type it must be 'retwit', 'comment' or 'original'", rawType))
	}

	switch kind {
	case models.KindRetwit:
		if parent == "" {
			return "", "", models.NewValidationError("parent", "Can not retwit if no parent is provided")
		}
		return kind, "", nil
	case models.KindComment:
		if parent == "" {
			return "", "", models.NewValidationError("parent", "Can not comment if no parent is provided")
		}
	default:
		if parent != "" {
			return "", "", models.NewValidationError("parent", "Can not create a new original tweet if parent is provided")
		}
	}

	content, err := validation.ValidateContent(content)
	if err != nil {
		return "", "", err
	}
	return kind, content, nil
}

func validateAuthor(u *SnapAuthor) (SnapAuthor, error) {
	switch {
	case u == nil || strings.TrimSpace(u.Name) == "":
		return SnapAuthor{}, models.NewValidationError("user.name", "User name must be specified")
	case strings.TrimSpace(u.Username) == "":
		return SnapAuthor{}, models.NewValidationError("user.username", "User username must be specified")
	case u.UserID == 0:
		return SnapAuthor{}, models.NewValidationError("user.userId", "User ID must be specified")
	}
	return *u, nil
}

// validateMentions keeps the mentioned usernames the follow graph resolves,
// in their original order. Failed lookups drop the mention.
func (s *SnapService) validateMentions(ctx context.Context, caller models.Identity, usernames []string) []string {
	if len(usernames) == 0 {
		return []string{}
	}

	found := make([]string, len(usernames))
	var g errgroup.Group
	g.SetLimit(maxLookups)
	for i, username := range usernames {
		i, username := i, username
		g.Go(func() error {
			u, err := s.follows.LookupUser(ctx, caller, username)
			if err != nil {
				middleware.Logger.DebugContext(ctx, "dropping unresolved mention",
					slog.String("username", username), slog.String("error", err.Error()))
				return nil
			}
			found[i] = u.Username
			return nil
		})
	}
	_ = g.Wait()

	out := make([]string, 0, len(found))
	for _, username := range found {
		if username != "" {
			out = append(out, username)
		}
	}
	return out
}

// Edit applies in to snap id and resyncs the ranking index.
func (s *SnapService) Edit(ctx context.Context, id string, in EditSnapInput) error {
	var patch repository.SnapPatch
	if in.Content != nil {
		content, err := validation.ValidateContent(*in.Content)
		if err != nil {
			return err
		}
		patch.Content = &content
		patch.Mentions = s.validateMentions(ctx, in.Caller, validation.ExtractMentions(content))
	}
	if in.IsBlocked != nil {
		if !in.Caller.IsAdmin() {
			return models.NewValidationError("isBlocked", "Only administrators can block twits.")
		}
		patch.IsBlocked = in.IsBlocked
	}

	if _, err := s.snaps.Edit(ctx, id, patch); err != nil {
		return err
	}
	if err := s.SyncIndex(ctx); err != nil {
		return err
	}

	s.publish(ctx, notifications.SnapEvent{Type: notifications.EventSnapEdited, SnapID: id, ActorID: in.Caller.UserID})
	return nil
}

// Delete removes snap id, or only the caller's retwit of it, and resyncs the ranking index.
func (s *SnapService) Delete(ctx context.Context, id string, opts DeleteOptions) error {
	ev := notifications.SnapEvent{Type: notifications.EventSnapDeleted, SnapID: id, ActorID: opts.Caller.UserID}
	if opts.AsRetwit {
		if err := s.snaps.DeleteRetwit(ctx, id, opts.Caller.UserID); err != nil {
			return err
		}
		ev = notifications.SnapEvent{Type: notifications.EventRetwitDeleted, ParentID: id, ActorID: opts.Caller.UserID}
	} else if err := s.snaps.Delete(ctx, id); err != nil {
		return err
	}

	if err := s.SyncIndex(ctx); err != nil {
		return err
	}

	s.publish(ctx, ev)
	return nil
}

// SyncIndex pushes every snap to the ranking service's index.
func (s *SnapService) SyncIndex(ctx context.Context) error {
	span, ctx := observability.NewSpan(ctx, "snaps.SyncIndex")
	defer span.End()

	all, err := s.snaps.DumpAll(ctx)
	if err != nil {
		span.SetError(err)
		return err
	}
	if err := s.ranker.Sync(ctx, all); err != nil {
		span.SetError(err)
		return err
	}
	return nil
}

func (s *SnapService) afterCreate(ctx context.Context, caller models.Identity, snap *models.Snap) {
	if s.flags.Enabled(featureflags.MetricsEvents, snap.AuthorID) {
		metric := metricFor(snap.Kind)
		username := snap.AuthorUsername
		s.tasks.Go(ctx, "metrics.record", func(ctx context.Context) error {
			return s.metrics.Record(ctx, metric, username)
		})
	}

	if snap.Kind == models.KindOriginal {
		created := *snap
		s.tasks.Go(ctx, "trending.notify", func(ctx context.Context) error {
			return s.notifyTrending(ctx, caller, &created)
		})
	}

	ev := notifications.SnapEvent{
		Type:    notifications.EventSnapCreated,
		SnapID:  snap.ID,
		Kind:    snap.Kind,
		ActorID: snap.AuthorID,
	}
	if snap.ParentID != nil {
		ev.ParentID = *snap.ParentID
	}
	s.publish(ctx, ev)
}

// notifyTrending tells the author's audience about a snap mentioning a
// trending topic, once per matching topic.
func (s *SnapService) notifyTrending(ctx context.Context, caller models.Identity, snap *models.Snap) error {
	topics, err := s.trending.Get(ctx)
	if err != nil {
		return err
	}

	content := strings.ToLower(snap.Content)
	for _, topic := range TopicKeys(topics) {
		if !strings.Contains(content, topic) {
			continue
		}
		n := clients.Notification{
			Title: fmt.Sprintf("@%s posted a trending twit!", snap.AuthorUsername),
			Body:  snap.Content,
			Data: clients.NotificationData{
				Params:   map[string]string{"id": snap.ID},
				Type:     "twit",
				SenderID: snap.AuthorID,
			},
		}
		if err := s.follows.Notify(ctx, caller, n); err != nil {
			return err
		}
	}
	return nil
}

func (s *SnapService) publish(ctx context.Context, ev notifications.SnapEvent) {
	s.tasks.Go(ctx, "events.publish", func(ctx context.Context) error {
		return s.events.PublishSnapEvent(ctx, ev)
	})
}

func metricFor(kind models.SnapKind) clients.MetricType {
	switch kind {
	case models.KindComment:
		return clients.MetricComment
	case models.KindRetwit:
		return clients.MetricRetwit
	}
	return clients.MetricTwit
}
