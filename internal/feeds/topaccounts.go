package feeds

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/blackmichael/bluesky-feedgen/internal/domain"
	"golang.org/x/sync/errgroup"
)

// TopAccountsFeed merges three sources: root posts by authors above a
// follower threshold, reposts of such posts, and posts by smaller accounts
// that crossed a like-count milestone. It can serve live or from the
// materialized cache; both paths share ordering and merge logic.
type TopAccountsFeed struct {
	uri          string
	code         string
	minFollowers int
	minLikes     int
	store        domain.FeedStore
	cache        domain.FeedCacheStore
}

// NewTopAccountsFeed creates the feed. A nil cache store means every request
// is computed live.
func NewTopAccountsFeed(uri, code string, minFollowers, minLikes int, store domain.FeedStore, cache domain.FeedCacheStore) *TopAccountsFeed {
	return &TopAccountsFeed{
		uri:          uri,
		code:         code,
		minFollowers: minFollowers,
		minLikes:     minLikes,
		store:        store,
		cache:        cache,
	}
}

func (f *TopAccountsFeed) URI() string { return f.uri }

func (f *TopAccountsFeed) RequiresAuth() bool { return false }

func (f *TopAccountsFeed) Skeleton(ctx context.Context, cursor string, limit int, _ string) (*domain.FeedSkeleton, error) {
	filter, eof, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	if eof {
		return emptySkeleton(), nil
	}

	if f.cache != nil {
		return f.cachedSkeleton(ctx, filter, limit)
	}

	rows, err := f.LiveRows(ctx, filter, limit)
	if err != nil {
		return nil, err
	}
	return skeletonFromRows(rows), nil
}

// LiveRows computes the merged feed directly from storage. The cache
// populator uses the same routine, so the cached and live paths cannot
// diverge in ordering or dedup behavior.
func (f *TopAccountsFeed) LiveRows(ctx context.Context, filter *domain.CursorFilter, limit int) ([]domain.FeedRow, error) {
	var posts, reposts, milestones []domain.FeedRow

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		posts, err = f.store.PostsByTopAuthors(ctx, f.code, f.minFollowers, filter, limit)
		return err
	})
	g.Go(func() (err error) {
		reposts, err = f.store.RepostsOfTopAuthors(ctx, f.code, f.minFollowers, filter, limit)
		return err
	})
	g.Go(func() (err error) {
		milestones, err = f.store.LikeMilestonePosts(ctx, f.code, f.minFollowers, f.minLikes, filter, limit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return mergeRows(limit, posts, reposts, milestones), nil
}

func (f *TopAccountsFeed) cachedSkeleton(ctx context.Context, filter *domain.CursorFilter, limit int) (*domain.FeedSkeleton, error) {
	entries, err := f.cache.FeedCachePage(ctx, f.uri, filter, limit)
	if err != nil {
		return nil, err
	}

	skeleton := &domain.FeedSkeleton{
		Cursor: CursorEOF,
		Posts:  make([]domain.SkeletonPost, 0, len(entries)),
	}
	for _, entry := range entries {
		var post domain.SkeletonPost
		if err := json.Unmarshal(entry.Content, &post); err != nil {
			return nil, fmt.Errorf("decode cache entry for %s: %w", f.uri, err)
		}
		skeleton.Posts = append(skeleton.Posts, post)
	}
	if len(entries) > 0 {
		last := entries[len(entries)-1]
		skeleton.Cursor = EncodeCursor(last.CreatedAt, last.CID)
	}
	return skeleton, nil
}
