package storage

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/blackmichael/bluesky-feedgen/internal/domain"
	"github.com/glebarez/sqlite"
	slogGorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Store implements every storage port over a gorm database handle.
type Store struct {
	db *gorm.DB
}

// Open connects to the database named by the URL, runs migrations, and
// returns a Store. Postgres URLs get the postgres driver; anything else is
// treated as a SQLite path.
func Open(databaseURL string, logger *slog.Logger) (*Store, error) {
	var dial gorm.Dialector
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		dial = postgres.Open(databaseURL)
	} else {
		dial = sqlite.Open(databaseURL)
	}

	db, err := gorm.Open(dial, &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 slogGorm.New(slogGorm.WithHandler(logger.Handler())),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

// NewStore wraps an already-open gorm handle and runs migrations. Used by
// tests with an in-memory SQLite database.
func NewStore(db *gorm.DB) (*Store, error) {
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) migrate() error {
	err := s.db.AutoMigrate(
		&domain.User{},
		&domain.Language{},
		&domain.Post{},
		&domain.Interaction{},
		&domain.FeedCacheEntry{},
		&domain.SubscriptionState{},
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// postLanguage mirrors the many-to-many join table between posts and
// languages for direct batched inserts.
type postLanguage struct {
	PostID     uint `gorm:"primaryKey"`
	LanguageID uint `gorm:"primaryKey"`
}

func (postLanguage) TableName() string { return "post_languages" }
