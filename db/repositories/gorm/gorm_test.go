package repositories_gorm

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"gitlab.com/gfxd/gpu-mode-service/models"
)

var db *gorm.DB

// setup opens a fresh in-memory database with the schema migrated.
func setup() {
	var err error
	db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		panic("failed to connect to database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		panic(err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.GfxConfig{}, &models.Transition{}); err != nil {
		panic(err)
	}
}

func teardown() {
	sqlDB, err := db.DB()
	if err == nil {
		sqlDB.Close()
	}
}
