package feeds

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/blackmichael/bluesky-feedgen/internal/domain"
)

// CacheableFeed is an algorithm whose merged output can be materialized.
type CacheableFeed interface {
	URI() string
	LiveRows(ctx context.Context, filter *domain.CursorFilter, limit int) ([]domain.FeedRow, error)
}

// CachePopulator incrementally materializes one expensive feed. Each pass
// recomputes only rows at or after the newest cached order time and upserts
// them, so a pass is idempotent and staleness is bounded by the interval.
type CachePopulator struct {
	feed       CacheableFeed
	cache      domain.FeedCacheStore
	interval   time.Duration
	fetchLimit int
	logger     *slog.Logger
}

// NewCachePopulator creates a populator for one cached feed.
func NewCachePopulator(feed CacheableFeed, cache domain.FeedCacheStore, interval time.Duration, fetchLimit int, logger *slog.Logger) *CachePopulator {
	return &CachePopulator{
		feed:       feed,
		cache:      cache,
		interval:   interval,
		fetchLimit: fetchLimit,
		logger:     logger,
	}
}

// Run populates immediately and then on every tick until ctx is cancelled.
// An in-flight pass always completes before the loop exits.
func (p *CachePopulator) Run(ctx context.Context) {
	p.populate(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.populate(ctx)
		}
	}
}

func (p *CachePopulator) populate(ctx context.Context) {
	since, err := p.cache.NewestFeedCacheTime(ctx, p.feed.URI())
	if err != nil {
		p.logger.Error("feed cache read failed", "feed", p.feed.URI(), "error", err)
		return
	}

	rows, err := p.feed.LiveRows(ctx, nil, p.fetchLimit)
	if err != nil {
		p.logger.Error("feed cache recompute failed", "feed", p.feed.URI(), "error", err)
		return
	}

	entries := make([]domain.FeedCacheEntry, 0, len(rows))
	for _, row := range rows {
		if since != nil && row.OrderTime.Before(*since) {
			continue
		}
		entry := domain.SkeletonPost{Post: row.PostURI}
		if row.RepostURI != "" {
			entry.Reason = &domain.SkeletonReason{
				Type:   domain.ReasonTypeRepost,
				Repost: row.RepostURI,
			}
		}
		content, err := json.Marshal(entry)
		if err != nil {
			p.logger.Error("feed cache encode failed", "feed", p.feed.URI(), "error", err)
			return
		}
		entries = append(entries, domain.FeedCacheEntry{
			FeedURI:   p.feed.URI(),
			CreatedAt: row.OrderTime,
			CID:       row.TieCID,
			Content:   content,
		})
	}

	if err := p.cache.UpsertFeedCache(ctx, entries); err != nil {
		p.logger.Error("feed cache upsert failed", "feed", p.feed.URI(), "error", err)
		return
	}
	if len(entries) > 0 {
		p.logger.Debug("feed cache updated", "feed", p.feed.URI(), "rows", len(entries))
	}
}
