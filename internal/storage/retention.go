package storage

import (
	"context"
	"time"

	"github.com/blackmichael/bluesky-feedgen/internal/domain"
	"gorm.io/gorm"
)

// DeleteOlderThan removes language associations, interactions, posts and
// feed cache entries older than the horizon, children before parents.
// Returns the number of posts deleted.
func (s *Store) DeleteOlderThan(ctx context.Context, horizon time.Time) (int64, error) {
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		oldPosts := tx.Model(&domain.Post{}).Select("id").Where("indexed_at < ?", horizon)

		if err := tx.Where("post_id IN (?)", oldPosts).Delete(&postLanguage{}).Error; err != nil {
			return err
		}
		err := tx.Where("indexed_at < ? OR post_id IN (?)", horizon, oldPosts).
			Delete(&domain.Interaction{}).Error
		if err != nil {
			return err
		}

		res := tx.Where("indexed_at < ?", horizon).Delete(&domain.Post{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected

		return tx.Where("created_at < ?", horizon).Delete(&domain.FeedCacheEntry{}).Error
	})
	return deleted, err
}
