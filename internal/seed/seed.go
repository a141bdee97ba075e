package seed

import (
	"context"
	"errors"
	"fmt"
	"log"

	"twitsnap/internal/models"
	"twitsnap/internal/repository"

	"gorm.io/gorm"
)

// Options configures a seeding run.
type Options struct {
	NumAuthors  int
	NumSnaps    int
	ShouldClean bool
	// MaxDays bounds how far back created_at timestamps are spread.
	MaxDays int
	// RandomSeed makes runs reproducible when non-zero.
	RandomSeed int64
	DryRun     bool
}

// Result summarizes what a seeding run created.
type Result struct {
	Authors   []models.Author
	Originals int
	Comments  int
	Retwits   int
	Likes     int
	Bookmarks int
}

// Seeder writes demo data through the repositories so hashtag rows and
// search keys are populated exactly as the API would populate them.
type Seeder struct {
	db        *gorm.DB
	snaps     repository.SnapRepository
	likes     repository.LikeRepository
	bookmarks repository.BookmarkRepository
}

// NewSeeder creates a Seeder bound to db.
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{
		db:        db,
		snaps:     repository.NewSnapRepository(db),
		likes:     repository.NewLikeRepository(db),
		bookmarks: repository.NewBookmarkRepository(db),
	}
}

// ClearAll removes every snap and interaction.
func (s *Seeder) ClearAll() error {
	log.Println("🗑️  Clearing existing data...")
	for _, model := range []interface{}{&models.Like{}, &models.Bookmark{}, &models.SnapHashtag{}, &models.Snap{}} {
		if err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
			return fmt.Errorf("clear %T: %w", model, err)
		}
	}
	return nil
}

// Seed creates NumAuthors synthetic authors and NumSnaps snaps among them:
// roughly 60% originals, 25% comments and 15% retwits, plus likes and bookmarks.
func (s *Seeder) Seed(ctx context.Context, opts Options) (*Result, error) {
	if opts.NumAuthors <= 0 || opts.NumSnaps <= 0 {
		return nil, errors.New("seed: NumAuthors and NumSnaps must be positive")
	}
	log.Printf("🌱 Seeding %d snaps from %d authors...", opts.NumSnaps, opts.NumAuthors)

	if opts.ShouldClean && !opts.DryRun {
		if err := s.ClearAll(); err != nil {
			return nil, err
		}
	}

	f := NewFactory(opts)
	res := &Result{Authors: make([]models.Author, 0, opts.NumAuthors)}
	for i := 1; i <= opts.NumAuthors; i++ {
		res.Authors = append(res.Authors, f.Author(int64(i)))
	}

	var created []*models.Snap
	for i := 0; i < opts.NumSnaps; i++ {
		author := res.Authors[f.rnd.Intn(len(res.Authors))]

		kind := models.KindOriginal
		var parent *models.Snap
		if len(created) > 0 {
			switch roll := f.rnd.Intn(100); {
			case roll < 25:
				kind, parent = models.KindComment, f.pick(created)
			case roll < 40:
				kind, parent = models.KindRetwit, f.pick(created)
				if parent.Kind == models.KindRetwit {
					kind = models.KindComment
				}
			}
		}

		snap := f.BuildSnap(author, kind, parent, res.Authors)
		if !opts.DryRun {
			if err := s.snaps.Create(ctx, snap); err != nil {
				if errors.Is(err, models.ErrAlreadyExists) {
					continue
				}
				return nil, fmt.Errorf("create snap: %w", err)
			}
		}
		created = append(created, snap)

		switch snap.Kind {
		case models.KindOriginal:
			res.Originals++
		case models.KindComment:
			res.Comments++
		case models.KindRetwit:
			res.Retwits++
		}
	}
	log.Printf("✓ %d originals, %d comments, %d retwits", res.Originals, res.Comments, res.Retwits)

	if opts.DryRun {
		return res, nil
	}

	// Every author likes a handful of snaps and bookmarks a few.
	for _, author := range res.Authors {
		for i := 0; i < 5 && len(created) > 0; i++ {
			target := f.pick(created)
			if err := s.likes.Add(ctx, author.UserID, target.CountableID()); err != nil {
				return nil, fmt.Errorf("add like: %w", err)
			}
			res.Likes++
			if f.rnd.Intn(3) == 0 {
				if err := s.bookmarks.Add(ctx, author.UserID, target.CountableID()); err != nil {
					return nil, fmt.Errorf("add bookmark: %w", err)
				}
				res.Bookmarks++
			}
		}
	}
	log.Printf("✓ %d likes, %d bookmarks", res.Likes, res.Bookmarks)

	log.Println("🎉 Database seeding completed successfully!")
	return res, nil
}
