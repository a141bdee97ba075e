package repository

import (
	"context"
	"fmt"
	"time"

	"twitsnap/internal/models"
	"twitsnap/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeRepository defines the interface for like data operations.
type LikeRepository interface {
	Add(ctx context.Context, userID int64, snapID string) error
	Remove(ctx context.Context, userID int64, snapID string) error
	CountBySnap(ctx context.Context, snapID string) (int64, error)
	CountBySnaps(ctx context.Context, snapIDs []string) (map[string]int, error)
	UserFlags(ctx context.Context, userID int64, snapIDs []string) (map[string]bool, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Snap, error)
}

type likeRepository struct {
	db *gorm.DB
}

// NewLikeRepository creates a new like repository
func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db}
}

// Add records the like. Liking twice is a no-op.
func (r *likeRepository) Add(ctx context.Context, userID int64, snapID string) error {
	defer observability.TrackQuery("add", "likes")()

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Like{UserID: userID, SnapID: snapID, CreatedAt: time.Now().UTC()}).Error
}

func (r *likeRepository) Remove(ctx context.Context, userID int64, snapID string) error {
	defer observability.TrackQuery("remove", "likes")()

	res := r.db.WithContext(ctx).
		Where("user_id = ? AND snap_id = ?", userID, snapID).
		Delete(&models.Like{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Like", pairID(userID, snapID))
	}
	return nil
}

func (r *likeRepository) CountBySnap(ctx context.Context, snapID string) (int64, error) {
	var count int64
	err := readDB(r.db).WithContext(ctx).
		Model(&models.Like{}).
		Where("snap_id = ?", snapID).
		Count(&count).Error
	return count, err
}

func (r *likeRepository) CountBySnaps(ctx context.Context, snapIDs []string) (map[string]int, error) {
	return countBySnaps(ctx, readDB(r.db), &models.Like{}, "likes", snapIDs)
}

func (r *likeRepository) UserFlags(ctx context.Context, userID int64, snapIDs []string) (map[string]bool, error) {
	return userFlags(ctx, readDB(r.db), &models.Like{}, "likes", userID, snapIDs)
}

// ListByUser returns the snaps the user liked, most recently liked first.
func (r *likeRepository) ListByUser(ctx context.Context, userID int64) ([]models.Snap, error) {
	defer observability.TrackQuery("list_by_user", "likes")()

	var snaps []models.Snap
	err := readDB(r.db).WithContext(ctx).
		Model(&models.Snap{}).
		Preload("Parent").
		Joins("JOIN likes ON likes.snap_id = snaps.id").
		Where("likes.user_id = ?", userID).
		Order("likes.created_at DESC").
		Find(&snaps).Error
	return snaps, err
}

func pairID(userID int64, snapID string) string {
	return fmt.Sprintf("(user, twit) ; (%d, %s)", userID, snapID)
}

func countBySnaps(ctx context.Context, db *gorm.DB, model interface{}, table string, snapIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(snapIDs))
	if len(snapIDs) == 0 {
		return out, nil
	}
	defer observability.TrackQuery("count_by_snaps", table)()

	var rows []struct {
		SnapID string
		Total  int
	}
	if err := db.WithContext(ctx).
		Model(model).
		Select("snap_id, COUNT(*) AS total").
		Where("snap_id IN ?", snapIDs).
		Group("snap_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.SnapID] = row.Total
	}
	return out, nil
}

func userFlags(ctx context.Context, db *gorm.DB, model interface{}, table string, userID int64, snapIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(snapIDs))
	if len(snapIDs) == 0 {
		return out, nil
	}
	defer observability.TrackQuery("user_flags", table)()

	var ids []string
	if err := db.WithContext(ctx).
		Model(model).
		Where("user_id = ? AND snap_id IN ?", userID, snapIDs).
		Pluck("snap_id", &ids).Error; err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
