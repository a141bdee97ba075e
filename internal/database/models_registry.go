package database

import "twitsnap/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Snap{},
		&models.SnapHashtag{},
		&models.Like{},
		&models.Bookmark{},
	}
}
