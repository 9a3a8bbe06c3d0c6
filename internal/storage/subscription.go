package storage

import (
	"context"
	"errors"

	"github.com/blackmichael/bluesky-feedgen/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetCursor retrieves the saved firehose cursor for a service. Returns 0 if
// no cursor has been saved yet.
func (s *Store) GetCursor(ctx context.Context, service string) (int64, error) {
	var state domain.SubscriptionState
	err := s.db.WithContext(ctx).Where("service = ?", service).First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return state.Cursor, nil
}

// UpdateCursor upserts the firehose cursor for a service.
func (s *Store) UpdateCursor(ctx context.Context, service string, cursor int64) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "service"}},
		DoUpdates: clause.AssignmentColumns([]string{"cursor"}),
	}).Create(&domain.SubscriptionState{Service: service, Cursor: cursor}).Error
}
