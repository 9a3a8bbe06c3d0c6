package storage

import (
	"context"
	"errors"
	"time"

	"github.com/blackmichael/bluesky-feedgen/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertFeedCache writes cache rows idempotently on their composite key.
func (s *Store) UpsertFeedCache(ctx context.Context, entries []domain.FeedCacheEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "feed_uri"}, {Name: "created_at"}, {Name: "cid"}},
		DoUpdates: clause.AssignmentColumns([]string{"content"}),
	}).Create(&entries).Error
}

// FeedCachePage range-scans a cached feed with keyset pagination.
func (s *Store) FeedCachePage(ctx context.Context, feedURI string, c *domain.CursorFilter, limit int) ([]domain.FeedCacheEntry, error) {
	q := s.db.WithContext(ctx).
		Where("feed_uri = ?", feedURI)
	if c != nil {
		q = q.Where("(created_at < ? OR (created_at = ? AND cid < ?))", c.Ts, c.Ts, c.Tie)
	}

	var entries []domain.FeedCacheEntry
	err := q.Order("created_at DESC, cid DESC").Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// NewestFeedCacheTime returns the order time of the newest cached row, or
// nil when the cache is empty.
func (s *Store) NewestFeedCacheTime(ctx context.Context, feedURI string) (*time.Time, error) {
	var entry domain.FeedCacheEntry
	err := s.db.WithContext(ctx).
		Where("feed_uri = ?", feedURI).
		Order("created_at DESC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry.CreatedAt, nil
}
