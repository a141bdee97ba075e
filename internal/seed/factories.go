// Package seed provides helpers to create demo snaps and interactions for
// development databases. Authors are synthetic: the users service is not consulted.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"twitsnap/internal/models"
	"twitsnap/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
)

// Factory builds snaps with realistic content and timestamps.
type Factory struct {
	faker *gofakeit.Faker
	rnd   *rand.Rand
	opts  Options
}

// NewFactory creates a Factory. A zero opts.RandomSeed seeds from the clock.
func NewFactory(opts Options) *Factory {
	seed := opts.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{
		faker: gofakeit.New(seed),
		//nolint:gosec // Weak random number generator is fine for seeding
		rnd:  rand.New(rand.NewSource(seed)),
		opts: opts,
	}
}

// Author creates a synthetic author with id.
func (f *Factory) Author(id int64) models.Author {
	return models.Author{
		UserID:   id,
		Name:     f.faker.Name(),
		Username: fmt.Sprintf("%s%d", strings.ToLower(f.faker.Username()), id),
	}
}

// createdAt spreads timestamps over the last MaxDays days.
func (f *Factory) createdAt() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	back := time.Duration(f.rnd.Intn(maxDays))*24*time.Hour +
		time.Duration(f.rnd.Intn(24))*time.Hour +
		time.Duration(f.rnd.Intn(60))*time.Minute
	return time.Now().UTC().Add(-back)
}

// content writes a sentence with an occasional hashtag and mention.
func (f *Factory) content(mentionable []models.Author) string {
	parts := []string{f.faker.Sentence(f.rnd.Intn(10) + 4)}
	if f.rnd.Intn(3) == 0 {
		parts = append(parts, "#"+strings.ToLower(f.faker.Word()))
	}
	if len(mentionable) > 0 && f.rnd.Intn(5) == 0 {
		parts = append(parts, "@"+mentionable[f.rnd.Intn(len(mentionable))].Username)
	}
	text := strings.Join(parts, " ")
	if _, err := validation.ValidateContent(text); err != nil {
		text = f.faker.Word()
	}
	return text
}

// BuildSnap constructs a snap by author without persisting it. parent must be
// set for comments and retwits.
func (f *Factory) BuildSnap(author models.Author, kind models.SnapKind, parent *models.Snap, mentionable []models.Author) *models.Snap {
	snap := &models.Snap{
		AuthorID:       author.UserID,
		AuthorName:     author.Name,
		AuthorUsername: author.Username,
		Kind:           kind,
		Privacy:        models.PrivacyEveryone,
		CreatedAt:      f.createdAt(),
	}
	if f.rnd.Intn(10) == 0 {
		snap.Privacy = models.PrivacyOnlyFollowers
	}

	if parent != nil {
		snap.ParentID = &parent.ID
		if snap.CreatedAt.Before(parent.CreatedAt) {
			snap.CreatedAt = parent.CreatedAt.Add(time.Duration(f.rnd.Intn(120)+1) * time.Minute)
		}
	}

	if kind != models.KindRetwit {
		snap.Content = f.content(mentionable)
		snap.Hashtags = validation.ExtractHashtags(snap.Content)
		snap.Mentions = validation.ExtractMentions(snap.Content)
	}

	if f.opts.DryRun {
		log.Printf("[dry-run] BuildSnap: %s by %s", kind, author.Username)
	}
	return snap
}

// pick returns a random element of snaps.
func (f *Factory) pick(snaps []*models.Snap) *models.Snap {
	return snaps[f.rnd.Intn(len(snaps))]
}
