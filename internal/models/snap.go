// Package models contains data structures for the application's domain models.
package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// SnapKind distinguishes originals from comments and retwits.
type SnapKind string

const (
	KindOriginal SnapKind = "original"
	KindComment  SnapKind = "comment"
	KindRetwit   SnapKind = "retwit"
)

// ParseSnapKind returns the kind named by s.
func ParseSnapKind(s string) (SnapKind, bool) {
	switch SnapKind(strings.TrimSpace(s)) {
	case KindOriginal:
		return KindOriginal, true
	case KindComment:
		return KindComment, true
	case KindRetwit:
		return KindRetwit, true
	}
	return "", false
}

// Privacy controls who may see a snap.
type Privacy string

const (
	PrivacyEveryone      Privacy = "Everyone"
	PrivacyOnlyFollowers Privacy = "Only Followers"
)

// ParsePrivacy accepts the wire values plus the "OnlyFollowers" spelling.
func ParsePrivacy(s string) (Privacy, bool) {
	switch strings.TrimSpace(s) {
	case string(PrivacyEveryone):
		return PrivacyEveryone, true
	case string(PrivacyOnlyFollowers), "OnlyFollowers":
		return PrivacyOnlyFollowers, true
	}
	return "", false
}

// Snap is the persisted post row. Author fields are a snapshot taken at creation.
type Snap struct {
	ID             string   `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AuthorID       int64    `gorm:"not null;index;uniqueIndex:idx_snaps_author_retwit,priority:1" json:"-"`
	AuthorName     string   `gorm:"size:255;not null" json:"-"`
	AuthorUsername string   `gorm:"size:255;not null;index" json:"-"`
	Content        string   `gorm:"type:text;not null" json:"content"`
	SearchContent  string   `gorm:"type:text;not null" json:"-"`
	Kind           SnapKind `gorm:"column:type;size:16;not null;index" json:"type"`
	ParentID       *string  `gorm:"type:varchar(36);index" json:"-"`
	// RetwitOf mirrors ParentID for retwits only; the unique index makes a second retwit a conflict.
	RetwitOf  *string                     `gorm:"type:varchar(36);uniqueIndex:idx_snaps_author_retwit,priority:2" json:"-"`
	Privacy   Privacy                     `gorm:"size:32;not null;default:Everyone" json:"privacy"`
	Hashtags  datatypes.JSONSlice[string] `json:"-"`
	Mentions  datatypes.JSONSlice[string] `json:"-"`
	Tags      []SnapHashtag               `gorm:"foreignKey:SnapID;constraint:OnDelete:CASCADE" json:"-"`
	IsBlocked bool                        `gorm:"not null;default:false" json:"isBlocked"`
	CreatedAt time.Time                   `gorm:"not null;index" json:"createdAt"`
	Parent    *Snap                       `gorm:"foreignKey:ParentID;constraint:OnDelete:SET NULL" json:"-"`
	// Origin is a retwit's parent reduced to its author and block state, loaded
	// when Parent is not joined.
	Origin *Snap `gorm:"-" json:"-"`
}

// TableName returns the database table name for Snap.
func (Snap) TableName() string {
	return "snaps"
}

// Author returns the denormalized author snapshot.
func (s *Snap) Author() Author {
	return Author{UserID: s.AuthorID, Name: s.AuthorName, Username: s.AuthorUsername}
}

// CountableID is the id interaction counts are keyed on. Retwits delegate to their parent.
func (s *Snap) CountableID() string {
	if s.Kind == KindRetwit && s.ParentID != nil {
		return *s.ParentID
	}
	return s.ID
}

// SnapHashtag indexes hashtags for equality filtering.
type SnapHashtag struct {
	SnapID string `gorm:"primaryKey;type:varchar(36)"`
	Tag    string `gorm:"primaryKey;size:255;index"`
}

// TableName returns the database table name for SnapHashtag.
func (SnapHashtag) TableName() string {
	return "snap_hashtags"
}

// Like is a unique (user, snap) pair.
type Like struct {
	UserID    int64     `gorm:"primaryKey;autoIncrement:false" json:"userId"`
	SnapID    string    `gorm:"primaryKey;type:varchar(36);index" json:"twitId"`
	CreatedAt time.Time `gorm:"not null;index" json:"createdAt"`
}

// TableName returns the database table name for Like.
func (Like) TableName() string {
	return "likes"
}

// Bookmark is a unique (user, snap) pair.
type Bookmark struct {
	UserID       int64     `gorm:"primaryKey;autoIncrement:false" json:"userId"`
	SnapID       string    `gorm:"primaryKey;type:varchar(36);index" json:"twitId"`
	BookmarkedAt time.Time `gorm:"not null;index" json:"bookmarkedAt"`
}

// TableName returns the database table name for Bookmark.
func (Bookmark) TableName() string {
	return "bookmarks"
}

// TrendingTopic is one entry of the ranking service's trending list, passed through as-is.
type TrendingTopic map[string]any
