package repository

import (
	"strings"

	"twitsnap/internal/models"
	"twitsnap/internal/validation"

	"gorm.io/gorm"
)

// SnapFilter selects snaps for Query and Count.
type SnapFilter struct {
	// Has is a case-insensitive substring of the content.
	Has      string
	Username string
	Hashtag  string
	// AuthorIDs restricts authors when non-nil. An empty, non-nil slice matches nothing.
	AuthorIDs  []int64
	ExcludeIDs []string
	Kinds      []models.SnapKind
	ParentID   string
	Date       validation.DateFilter

	Offset       int
	Limit        int
	NoJoinParent bool
}

// GetOptions tunes GetByID.
type GetOptions struct {
	NoJoinParent bool
}

// SnapPatch is the set of mutable snap fields. Nil fields are left unchanged.
type SnapPatch struct {
	Content   *string
	Mentions  []string
	IsBlocked *bool
}

// HashtagKey is the stored form of a hashtag: lowercase with a leading '#'.
func HashtagKey(tag string) string {
	tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
	if tag == "" {
		return ""
	}
	return "#" + validation.SearchKey(tag)
}

func applySnapFilter(db *gorm.DB, f SnapFilter) *gorm.DB {
	if f.Has != "" {
		db = db.Where(`snaps.search_content LIKE ? ESCAPE '\'`, "%"+escapeLike(validation.SearchKey(f.Has))+"%")
	}
	if f.Username != "" {
		db = db.Where("snaps.author_username = ?", f.Username)
	}
	if key := HashtagKey(f.Hashtag); key != "" {
		db = db.Where("snaps.id IN (?)", db.Session(&gorm.Session{NewDB: true}).
			Model(&models.SnapHashtag{}).Select("snap_id").Where("tag = ?", key))
	}
	if f.AuthorIDs != nil {
		if len(f.AuthorIDs) == 0 {
			db = db.Where("1 = 0")
		} else {
			db = db.Where("snaps.author_id IN ?", f.AuthorIDs)
		}
	}
	if len(f.ExcludeIDs) > 0 {
		db = db.Where("snaps.id NOT IN ?", f.ExcludeIDs)
	}
	if len(f.Kinds) > 0 {
		db = db.Where("snaps.type IN ?", f.Kinds)
	}
	if f.ParentID != "" {
		db = db.Where("snaps.parent_id = ?", f.ParentID)
	}

	switch f.Date.Mode {
	case validation.DateCursor:
		if f.Date.Older {
			db = db.Where("snaps.created_at < ?", f.Date.Cursor)
		} else {
			db = db.Where("snaps.created_at > ?", f.Date.Cursor)
		}
	case validation.DateBucket:
		db = db.Where("snaps.created_at >= ? AND snaps.created_at < ?", f.Date.Start, f.Date.End)
	}
	return db
}

func withParent(db *gorm.DB, noJoin bool) *gorm.DB {
	if noJoin {
		return db
	}
	return db.Preload("Parent")
}
