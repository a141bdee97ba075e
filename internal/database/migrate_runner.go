package database

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"twitsnap/internal/middleware"

	"gorm.io/gorm"
)

// MigrationLog is one applied SQL migration.
type MigrationLog struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

// TableName returns the database table name for MigrationLog.
func (MigrationLog) TableName() string {
	return "migration_logs"
}

const migrationLogDDL = `
CREATE TABLE IF NOT EXISTS migration_logs (
	version BIGINT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// appliedVersions lists recorded versions in ascending order. A missing log table means none.
func appliedVersions(ctx context.Context, db *gorm.DB) ([]int, error) {
	if !db.WithContext(ctx).Migrator().HasTable(&MigrationLog{}) {
		return []int{}, nil
	}
	var versions []int
	if err := db.WithContext(ctx).Model(&MigrationLog{}).Order("version ASC").Pluck("version", &versions).Error; err != nil {
		return nil, fmt.Errorf("failed to read migration_logs: %w", err)
	}
	return versions, nil
}

// applyMigration runs the up script of m and records it in one transaction.
func applyMigration(ctx context.Context, db *gorm.DB, m Migration) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.UpScript).Error; err != nil {
			return fmt.Errorf("migration %06d_%s: %w", m.Version, m.Name, err)
		}
		return tx.Create(&MigrationLog{Version: m.Version, Name: m.Name}).Error
	})
}

// RunMigrations applies every registered migration not yet recorded in migration_logs.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).Exec(migrationLogDDL).Error; err != nil {
		return fmt.Errorf("failed to ensure migration_logs: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}
	if err := checkKnownVersions(applied, migrations); err != nil {
		return err
	}

	n := 0
	for _, m := range migrations {
		if slices.Contains(applied, m.Version) {
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return err
		}
		middleware.Logger.Info("Migration applied", slog.Int("version", m.Version), slog.String("name", m.Name))
		n++
	}

	middleware.Logger.Info("Migrations complete", slog.Int("applied", n), slog.Int("known", len(migrations)))
	return nil
}

// checkKnownVersions refuses to run against a database migrated by a newer build.
func checkKnownVersions(applied []int, registered []Migration) error {
	var unknown []string
	for _, v := range applied {
		if !slices.ContainsFunc(registered, func(m Migration) bool { return m.Version == v }) {
			unknown = append(unknown, fmt.Sprintf("%06d", v))
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	slices.Sort(unknown)
	return fmt.Errorf("migration_logs contains versions unknown to this build: %s", strings.Join(unknown, ", "))
}

// RollbackMigration runs the down script of an applied migration and forgets it.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	m := GetMigrationByVersion(version)
	if m == nil {
		return fmt.Errorf("migration version %d not found", version)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}
	if !slices.Contains(applied, version) {
		return fmt.Errorf("migration %d has not been applied", version)
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.DownScript).Error; err != nil {
			return fmt.Errorf("rollback %06d_%s: %w", m.Version, m.Name, err)
		}
		return tx.Where("version = ?", version).Delete(&MigrationLog{}).Error
	})
	if err == nil {
		middleware.Logger.Info("Migration rolled back", slog.Int("version", version), slog.String("name", m.Name))
	}
	return err
}
