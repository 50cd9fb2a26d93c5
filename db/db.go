package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"gitlab.com/gfxd/gpu-mode-service/models"
)

// ConnectDatabase opens the sqlite database at path, instruments it for tracing and
// migrates the schema. ":memory:" gives a throwaway database.
func ConnectDatabase(path string) (*gorm.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	database, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	if path == ":memory:" {
		// every pooled connection would open its own empty database
		sqlDB, err := database.DB()
		if err != nil {
			return nil, fmt.Errorf("open database %s: %w", path, err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := database.Use(otelgorm.NewPlugin()); err != nil {
		zlog.Sugar().Warnf("database tracing disabled: %v", err)
	}

	if err := database.AutoMigrate(&models.GfxConfig{}, &models.Transition{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return database, nil
}
