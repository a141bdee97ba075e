package repository

import (
	"context"
	"time"

	"twitsnap/internal/models"
	"twitsnap/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BookmarkRepository defines the interface for bookmark data operations.
type BookmarkRepository interface {
	Add(ctx context.Context, userID int64, snapID string) error
	Remove(ctx context.Context, userID int64, snapID string) error
	CountBySnap(ctx context.Context, snapID string) (int64, error)
	CountBySnaps(ctx context.Context, snapIDs []string) (map[string]int, error)
	UserFlags(ctx context.Context, userID int64, snapIDs []string) (map[string]bool, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Snap, error)
}

type bookmarkRepository struct {
	db *gorm.DB
}

// NewBookmarkRepository creates a new bookmark repository
func NewBookmarkRepository(db *gorm.DB) BookmarkRepository {
	return &bookmarkRepository{db: db}
}

func (r *bookmarkRepository) Add(ctx context.Context, userID int64, snapID string) error {
	defer observability.TrackQuery("add", "bookmarks")()

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Bookmark{UserID: userID, SnapID: snapID, BookmarkedAt: time.Now().UTC()}).Error
}

func (r *bookmarkRepository) Remove(ctx context.Context, userID int64, snapID string) error {
	defer observability.TrackQuery("remove", "bookmarks")()

	res := r.db.WithContext(ctx).
		Where("user_id = ? AND snap_id = ?", userID, snapID).
		Delete(&models.Bookmark{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Bookmark", pairID(userID, snapID))
	}
	return nil
}

func (r *bookmarkRepository) CountBySnap(ctx context.Context, snapID string) (int64, error) {
	var count int64
	err := readDB(r.db).WithContext(ctx).
		Model(&models.Bookmark{}).
		Where("snap_id = ?", snapID).
		Count(&count).Error
	return count, err
}

func (r *bookmarkRepository) CountBySnaps(ctx context.Context, snapIDs []string) (map[string]int, error) {
	return countBySnaps(ctx, readDB(r.db), &models.Bookmark{}, "bookmarks", snapIDs)
}

func (r *bookmarkRepository) UserFlags(ctx context.Context, userID int64, snapIDs []string) (map[string]bool, error) {
	return userFlags(ctx, readDB(r.db), &models.Bookmark{}, "bookmarks", userID, snapIDs)
}

// ListByUser returns the user's bookmarked snaps, most recently bookmarked first.
func (r *bookmarkRepository) ListByUser(ctx context.Context, userID int64) ([]models.Snap, error) {
	defer observability.TrackQuery("list_by_user", "bookmarks")()

	var snaps []models.Snap
	err := readDB(r.db).WithContext(ctx).
		Model(&models.Snap{}).
		Preload("Parent").
		Joins("JOIN bookmarks ON bookmarks.snap_id = snaps.id").
		Where("bookmarks.user_id = ?", userID).
		Order("bookmarks.bookmarked_at DESC").
		Find(&snaps).Error
	return snaps, err
}
