package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kritiqo/core/internal/config"
	"github.com/kritiqo/core/internal/database/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Initialize opens the database configured in cfg and runs migrations.
// SQLite is the default; Postgres is used when the driver is set and a DSN
// is provided.
func Initialize(cfg *config.Config) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	var db *gorm.DB
	var err error

	switch strings.ToLower(cfg.DatabaseDriver) {
	case "postgres":
		if cfg.DatabaseDSN == "" {
			return nil, fmt.Errorf("postgres driver selected but no DSN configured")
		}
		db, err = gorm.Open(postgres.Open(cfg.DatabaseDSN), gormConfig)
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
			return nil, err
		}
		db, err = gorm.Open(sqlite.Open(cfg.DatabasePath), gormConfig)
	}
	if err != nil {
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return db, nil
}

// InitializeSQLite opens a SQLite database at the given path. Used by tests
// and the diagnostic tools.
func InitializeSQLite(dbPath string) (*gorm.DB, error) {
	cfg := &config.Config{
		DatabaseDriver: "sqlite",
		DatabasePath:   dbPath,
	}
	return Initialize(cfg)
}

// runMigrations runs all database migrations
func runMigrations(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.UserSettings{},
		&models.ConnectedAccount{},
		&models.Message{},
		&models.TriageResult{},
		&models.Log{},
	)
}
