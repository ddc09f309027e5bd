package database

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Conceptual-Machines/flipbook-api/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	maxOpenConns    = 10
	maxIdleConns    = 5
	connMaxLifetime = 30 * time.Minute
)

// ErrNoDatabaseURL is returned when DATABASE_URL is not configured
var ErrNoDatabaseURL = errors.New("DATABASE_URL is not set")

// Connect opens a postgres connection pool
func Connect(databaseURL string) (*gorm.DB, error) {
	if databaseURL == "" {
		return nil, ErrNoDatabaseURL
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	log.Println("✅ Database connected")
	return db, nil
}

// Migrate creates or updates the tables
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Page{}, &models.GenerationLog{}); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	log.Println("✅ Database migrations complete")
	return nil
}

// Ping checks that the database answers
func Ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
