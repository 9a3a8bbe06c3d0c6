package feeds

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/blackmichael/bluesky-feedgen/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCacheStore struct {
	entries []domain.FeedCacheEntry
	newest  *time.Time

	upserted []domain.FeedCacheEntry
}

func (s *stubCacheStore) UpsertFeedCache(_ context.Context, entries []domain.FeedCacheEntry) error {
	s.upserted = append(s.upserted, entries...)
	return nil
}

func (s *stubCacheStore) FeedCachePage(_ context.Context, _ string, _ *domain.CursorFilter, limit int) ([]domain.FeedCacheEntry, error) {
	if len(s.entries) > limit {
		return s.entries[:limit], nil
	}
	return s.entries, nil
}

func (s *stubCacheStore) NewestFeedCacheTime(_ context.Context, _ string) (*time.Time, error) {
	return s.newest, nil
}

func cacheEntry(t *testing.T, uri string, created time.Time, cid string, post domain.SkeletonPost) domain.FeedCacheEntry {
	t.Helper()
	content, err := json.Marshal(post)
	require.NoError(t, err)
	return domain.FeedCacheEntry{FeedURI: uri, CreatedAt: created, CID: cid, Content: content}
}

func TestTopAccountsLiveMergesThreeSources(t *testing.T) {
	base := time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)
	store := &stubFeedStore{
		postsByTop:   []domain.FeedRow{row("at://top", "c1", base.Add(3*time.Minute))},
		repostsOfTop: []domain.FeedRow{row("at://reposted", "c2", base.Add(2*time.Minute))},
		milestones:   []domain.FeedRow{row("at://milestone", "c3", base.Add(time.Minute))},
	}
	feed := NewTopAccountsFeed("at://feed/top", "es", 1000, 3, store, nil)

	skeleton, err := feed.Skeleton(context.Background(), "", 10, "")
	require.NoError(t, err)
	require.Len(t, skeleton.Posts, 3)
	assert.Equal(t, "at://top", skeleton.Posts[0].Post)
	assert.Equal(t, "at://reposted", skeleton.Posts[1].Post)
	assert.Equal(t, "at://milestone", skeleton.Posts[2].Post)
}

func TestTopAccountsServesFromCache(t *testing.T) {
	base := time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)
	cache := &stubCacheStore{
		entries: []domain.FeedCacheEntry{
			cacheEntry(t, "at://feed/top", base.Add(time.Minute), "c1", domain.SkeletonPost{Post: "at://one"}),
			cacheEntry(t, "at://feed/top", base, "c2", domain.SkeletonPost{
				Post:   "at://two",
				Reason: &domain.SkeletonReason{Type: domain.ReasonTypeRepost, Repost: "at://rp"},
			}),
		},
	}
	feed := NewTopAccountsFeed("at://feed/top", "es", 1000, 3, &stubFeedStore{}, cache)

	skeleton, err := feed.Skeleton(context.Background(), "", 10, "")
	require.NoError(t, err)
	require.Len(t, skeleton.Posts, 2)
	assert.Equal(t, "at://one", skeleton.Posts[0].Post)
	require.NotNil(t, skeleton.Posts[1].Reason)
	assert.Equal(t, "at://rp", skeleton.Posts[1].Reason.Repost)
	assert.Equal(t, EncodeCursor(base, "c2"), skeleton.Cursor)
}

func TestTopAccountsEmptyCacheIsEOF(t *testing.T) {
	feed := NewTopAccountsFeed("at://feed/top", "es", 1000, 3, &stubFeedStore{}, &stubCacheStore{})

	skeleton, err := feed.Skeleton(context.Background(), "", 10, "")
	require.NoError(t, err)
	assert.Equal(t, CursorEOF, skeleton.Cursor)
	assert.Empty(t, skeleton.Posts)
}
