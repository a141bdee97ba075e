// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"twitsnap/internal/models"
	"twitsnap/internal/observability"
	"twitsnap/internal/validation"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const sampleSize = 15

// SnapRepository defines the interface for snap data operations.
type SnapRepository interface {
	Query(ctx context.Context, f SnapFilter) ([]models.Snap, error)
	Count(ctx context.Context, f SnapFilter) (int64, error)
	GetByID(ctx context.Context, id string, opts GetOptions) (*models.Snap, error)
	Create(ctx context.Context, snap *models.Snap) error
	Edit(ctx context.Context, id string, patch SnapPatch) (*models.Snap, error)
	Delete(ctx context.Context, id string) error
	DeleteRetwit(ctx context.Context, parentID string, userID int64) error
	HasUserRetwitted(ctx context.Context, userID int64, parentID string) (bool, error)
	UserRetwitted(ctx context.Context, userID int64, parentIDs []string) (map[string]bool, error)
	CountChildrenByKind(ctx context.Context, parentIDs []string, kind models.SnapKind) (map[string]int, error)
	Sample(ctx context.Context, userID int64) ([]models.Snap, error)
	DumpAll(ctx context.Context) ([]models.Snap, error)
}

type snapRepository struct {
	db *gorm.DB
}

// NewSnapRepository creates a new snap repository
func NewSnapRepository(db *gorm.DB) SnapRepository {
	return &snapRepository{db: db}
}

func (r *snapRepository) Query(ctx context.Context, f SnapFilter) ([]models.Snap, error) {
	defer observability.TrackQuery("query", "snaps")()

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	var snaps []models.Snap
	q := applySnapFilter(readDB(r.db).WithContext(ctx).Model(&models.Snap{}), f)
	err := withParent(q, f.NoJoinParent).
		Order("snaps.created_at DESC").
		Offset(f.Offset).
		Limit(limit).
		Find(&snaps).Error
	if err != nil {
		return nil, err
	}
	if f.NoJoinParent {
		if err := loadOrigins(readDB(r.db).WithContext(ctx), snaps); err != nil {
			return nil, err
		}
	}
	return snaps, nil
}

func (r *snapRepository) Count(ctx context.Context, f SnapFilter) (int64, error) {
	defer observability.TrackQuery("count", "snaps")()

	var n int64
	err := applySnapFilter(readDB(r.db).WithContext(ctx).Model(&models.Snap{}), f).Count(&n).Error
	return n, err
}

func (r *snapRepository) GetByID(ctx context.Context, id string, opts GetOptions) (*models.Snap, error) {
	defer observability.TrackQuery("get_by_id", "snaps")()

	var snap models.Snap
	err := withParent(r.db.WithContext(ctx), opts.NoJoinParent).
		Where("snaps.id = ?", id).
		First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("twit", id)
	}
	if err != nil {
		return nil, err
	}
	if opts.NoJoinParent {
		one := []models.Snap{snap}
		if err := loadOrigins(r.db.WithContext(ctx), one); err != nil {
			return nil, err
		}
		snap = one[0]
	}
	return &snap, nil
}

// loadOrigins attaches the minimal parent of every retwit whose Parent was not preloaded.
func loadOrigins(db *gorm.DB, snaps []models.Snap) error {
	var ids []string
	for i := range snaps {
		if snaps[i].Kind == models.KindRetwit && snaps[i].Parent == nil && snaps[i].ParentID != nil {
			ids = append(ids, *snaps[i].ParentID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	var parents []models.Snap
	if err := db.Model(&models.Snap{}).
		Select("id", "author_id", "author_name", "author_username", "privacy", "is_blocked").
		Where("id IN ?", ids).
		Find(&parents).Error; err != nil {
		return err
	}
	byID := make(map[string]*models.Snap, len(parents))
	for i := range parents {
		byID[parents[i].ID] = &parents[i]
	}
	for i := range snaps {
		if snaps[i].Kind != models.KindRetwit || snaps[i].ParentID == nil || snaps[i].Parent != nil {
			continue
		}
		snaps[i].Origin = byID[*snaps[i].ParentID]
	}
	return nil
}

// Create fills in the id, timestamps and derived columns of snap and inserts it
// with its hashtag index rows.
func (r *snapRepository) Create(ctx context.Context, snap *models.Snap) error {
	ctx, span := observability.TraceRepositoryMethod(ctx, "Create", "snaps")
	defer span.End()
	defer observability.TrackQuery("create", "snaps")()

	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	if snap.Privacy == "" {
		snap.Privacy = models.PrivacyEveryone
	}
	if snap.Hashtags == nil {
		snap.Hashtags = datatypes.JSONSlice[string]{}
	}
	if snap.Mentions == nil {
		snap.Mentions = datatypes.JSONSlice[string]{}
	}
	snap.SearchContent = validation.SearchKey(snap.Content)
	snap.RetwitOf = nil
	if snap.Kind == models.KindRetwit {
		snap.RetwitOf = snap.ParentID
	}
	snap.Tags = hashtagRows(snap.ID, snap.Hashtags)

	err := r.db.WithContext(ctx).Omit("Parent").Create(snap).Error
	if err != nil {
		if snap.Kind == models.KindRetwit && isUniqueConstraintError(err) {
			return models.NewAlreadyExistsError("twit",
				fmt.Sprintf("You already retwitted %s already exist", derefString(snap.ParentID)))
		}
		return err
	}
	return nil
}

func (r *snapRepository) Edit(ctx context.Context, id string, patch SnapPatch) (*models.Snap, error) {
	ctx, span := observability.TraceRepositoryMethod(ctx, "Edit", "snaps")
	defer span.End()
	defer observability.TrackQuery("edit", "snaps")()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&models.Snap{}).Where("id = ?", id).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return models.NewNotFoundError("twit", id)
		}

		updates := map[string]interface{}{}
		if patch.Content != nil {
			tags := validation.ExtractHashtags(*patch.Content)
			mentions := patch.Mentions
			if mentions == nil {
				mentions = []string{}
			}
			updates["content"] = *patch.Content
			updates["search_content"] = validation.SearchKey(*patch.Content)
			updates["hashtags"] = datatypes.JSONSlice[string](tags)
			updates["mentions"] = datatypes.JSONSlice[string](mentions)

			if err := tx.Where("snap_id = ?", id).Delete(&models.SnapHashtag{}).Error; err != nil {
				return err
			}
			if rows := hashtagRows(id, tags); len(rows) > 0 {
				if err := tx.Create(&rows).Error; err != nil {
					return err
				}
			}
		}
		if patch.IsBlocked != nil {
			updates["is_blocked"] = *patch.IsBlocked
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&models.Snap{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id, GetOptions{})
}

// Delete removes the snap, its retwits and every like, bookmark and hashtag row
// of both. Comments on the snap survive with their parent cleared.
func (r *snapRepository) Delete(ctx context.Context, id string) error {
	ctx, span := observability.TraceRepositoryMethod(ctx, "Delete", "snaps")
	defer span.End()
	defer observability.TrackQuery("delete", "snaps")()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&models.Snap{}).Where("id = ?", id).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return models.NewNotFoundError("twit", id)
		}

		var retwits []string
		if err := tx.Model(&models.Snap{}).
			Where("parent_id = ? AND type = ?", id, models.KindRetwit).
			Pluck("id", &retwits).Error; err != nil {
			return err
		}
		return deleteCascade(tx, append([]string{id}, retwits...))
	})
}

func (r *snapRepository) DeleteRetwit(ctx context.Context, parentID string, userID int64) error {
	ctx, span := observability.TraceRepositoryMethod(ctx, "DeleteRetwit", "snaps")
	defer span.End()
	defer observability.TrackQuery("delete_retwit", "snaps")()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&models.Snap{}).
			Where("author_id = ? AND retwit_of = ? AND type = ?", userID, parentID, models.KindRetwit).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return models.NewNotFoundError("twit", parentID)
		}
		return deleteCascade(tx, ids)
	})
}

func deleteCascade(tx *gorm.DB, ids []string) error {
	if err := tx.Where("snap_id IN ?", ids).Delete(&models.Like{}).Error; err != nil {
		return err
	}
	if err := tx.Where("snap_id IN ?", ids).Delete(&models.Bookmark{}).Error; err != nil {
		return err
	}
	if err := tx.Where("snap_id IN ?", ids).Delete(&models.SnapHashtag{}).Error; err != nil {
		return err
	}
	if err := tx.Model(&models.Snap{}).
		Where("parent_id IN ? AND id NOT IN ?", ids, ids).
		Update("parent_id", nil).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", ids).Delete(&models.Snap{}).Error
}

func (r *snapRepository) HasUserRetwitted(ctx context.Context, userID int64, parentID string) (bool, error) {
	var count int64
	err := readDB(r.db).WithContext(ctx).
		Model(&models.Snap{}).
		Where("author_id = ? AND retwit_of = ?", userID, parentID).
		Count(&count).Error
	return count > 0, err
}

func (r *snapRepository) UserRetwitted(ctx context.Context, userID int64, parentIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(parentIDs))
	if len(parentIDs) == 0 {
		return out, nil
	}
	defer observability.TrackQuery("user_retwitted", "snaps")()

	var ids []string
	if err := readDB(r.db).WithContext(ctx).
		Model(&models.Snap{}).
		Where("author_id = ? AND retwit_of IN ?", userID, parentIDs).
		Pluck("retwit_of", &ids).Error; err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

func (r *snapRepository) CountChildrenByKind(ctx context.Context, parentIDs []string, kind models.SnapKind) (map[string]int, error) {
	out := make(map[string]int, len(parentIDs))
	if len(parentIDs) == 0 {
		return out, nil
	}
	defer observability.TrackQuery("count_children", "snaps")()

	var rows []struct {
		ParentID string
		Total    int
	}
	if err := readDB(r.db).WithContext(ctx).
		Model(&models.Snap{}).
		Select("parent_id, COUNT(*) AS total").
		Where("parent_id IN ? AND type = ?", parentIDs, kind).
		Group("parent_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ParentID] = row.Total
	}
	return out, nil
}

// Sample returns the user's most recent snaps followed by the snaps they liked most recently.
func (r *snapRepository) Sample(ctx context.Context, userID int64) ([]models.Snap, error) {
	defer observability.TrackQuery("sample", "snaps")()

	db := readDB(r.db).WithContext(ctx)

	var own []models.Snap
	if err := db.Model(&models.Snap{}).
		Where("author_id = ?", userID).
		Order("created_at DESC").
		Limit(sampleSize).
		Find(&own).Error; err != nil {
		return nil, err
	}

	var liked []models.Snap
	if err := db.Model(&models.Snap{}).
		Joins("JOIN likes ON likes.snap_id = snaps.id").
		Where("likes.user_id = ?", userID).
		Order("likes.created_at DESC").
		Limit(sampleSize).
		Find(&liked).Error; err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(own)+len(liked))
	out := make([]models.Snap, 0, len(own)+len(liked))
	for _, s := range append(own, liked...) {
		if _, dup := seen[s.ID]; dup {
			continue
		}
		seen[s.ID] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

func (r *snapRepository) DumpAll(ctx context.Context) ([]models.Snap, error) {
	defer observability.TrackQuery("dump_all", "snaps")()

	var snaps []models.Snap
	err := readDB(r.db).WithContext(ctx).
		Select("id", "content", "created_at").
		Order("created_at DESC").
		Find(&snaps).Error
	return snaps, err
}

func hashtagRows(snapID string, tags []string) []models.SnapHashtag {
	seen := make(map[string]struct{}, len(tags))
	rows := make([]models.SnapHashtag, 0, len(tags))
	for _, tag := range tags {
		key := HashtagKey(tag)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		rows = append(rows, models.SnapHashtag{SnapID: snapID, Tag: key})
	}
	return rows
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
