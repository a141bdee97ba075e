package repository

import (
	"context"
	"testing"
	"time"

	"twitsnap/internal/database"
	"twitsnap/internal/models"
	"twitsnap/internal/validation"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newTestDB returns an isolated, migrated in-memory SQLite database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

var testAuthor = models.Author{UserID: 1, Name: "Ada", Username: "ada"}

func mustCreate(t *testing.T, repo SnapRepository, author models.Author, kind models.SnapKind, content string, parent *models.Snap, at time.Time) *models.Snap {
	t.Helper()
	snap := &models.Snap{
		AuthorID:       author.UserID,
		AuthorName:     author.Name,
		AuthorUsername: author.Username,
		Content:        content,
		Kind:           kind,
		Privacy:        models.PrivacyEveryone,
		Hashtags:       validation.ExtractHashtags(content),
		Mentions:       validation.ExtractMentions(content),
		CreatedAt:      at,
	}
	if parent != nil {
		snap.ParentID = &parent.ID
	}
	require.NoError(t, repo.Create(context.Background(), snap))
	return snap
}
