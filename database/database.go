package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"aptchat/logging"
	"aptchat/models"
)

// Init opens the audit database.
// For "memory" (or empty), it uses an in-memory SQLite database shared by the process.
// For other DSNs, it assumes a file-based SQLite database.
func Init(dsn string) (*gorm.DB, error) {
	gormLogger := logger.New(
		zap.NewStdLog(logging.Logger().Named("gorm")),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond, // gorm logger.Default threshold
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	gormConfig := &gorm.Config{Logger: gormLogger}

	var (
		db  *gorm.DB
		err error
	)
	if dsn == "memory" || dsn == "" {
		logging.L().Infof("[Database] Initializing in-memory SQLite database (DSN: 'memory' or empty).")
		db, err = gorm.Open(sqlite.Open("file::memory:?cache=shared"), gormConfig)
	} else {
		logging.L().Infof("[Database] Initializing file-based SQLite database at DSN: '%s'.", dsn)
		dbDir := filepath.Dir(dsn)
		if dbDir != "." && dbDir != "/" {
			if mkdirErr := os.MkdirAll(dbDir, 0o755); mkdirErr != nil {
				return nil, fmt.Errorf("failed to create database directory '%s': %w", dbDir, mkdirErr)
			}
		}
		db, err = gorm.Open(sqlite.Open(dsn), gormConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database (DSN: '%s'): %w", dsn, err)
	}

	logging.L().Infof("[Database] Database connection established successfully.")
	return db, nil
}

// Migrate creates or updates the audit tables.
func Migrate(db *gorm.DB) error {
	logging.L().Infof("[Database] Running database migrations...")
	if err := db.AutoMigrate(
		&models.SessionRecord{},
		&models.AnswerLog{},
		&models.ExchangeLog{},
	); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	logging.L().Infof("[Database] Database migration completed.")
	return nil
}
