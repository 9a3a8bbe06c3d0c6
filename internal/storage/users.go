package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blackmichael/bluesky-feedgen/internal/domain"
	"gorm.io/gorm"
)

// GetUser fetches a user by DID. Returns ErrProfileNotFound if no local row
// exists.
func (s *Store) GetUser(ctx context.Context, did string) (*domain.User, error) {
	var user domain.User
	err := s.db.WithContext(ctx).Where("did = ?", did).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("get user %s: %w", did, err)
	}
	return &user, nil
}

// UpdateUserProfile stores enriched profile fields and the update time.
func (s *Store) UpdateUserProfile(ctx context.Context, did string, p *domain.Profile, when time.Time) error {
	updates := map[string]any{
		"handle":          p.Handle,
		"followers_count": p.FollowersCount,
		"follows_count":   p.FollowsCount,
		"posts_count":     p.PostsCount,
		"last_update":     when,
	}
	return s.db.WithContext(ctx).Model(&domain.User{}).Where("did = ?", did).Updates(updates).Error
}

// DeleteUser removes a user whose upstream account no longer exists. Their
// posts and interactions are detached, not deleted; retention ages them out.
func (s *Store) DeleteUser(ctx context.Context, did string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user domain.User
		err := tx.Where("did = ?", did).First(&user).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		err = tx.Model(&domain.Post{}).Where("author_id = ?", user.ID).Update("author_id", nil).Error
		if err != nil {
			return err
		}
		err = tx.Where("author_id = ?", user.ID).Delete(&domain.Interaction{}).Error
		if err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
}
