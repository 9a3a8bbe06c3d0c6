package feeds

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/blackmichael/bluesky-feedgen/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCacheableFeed struct {
	uri  string
	rows []domain.FeedRow
}

func (f *stubCacheableFeed) URI() string { return f.uri }

func (f *stubCacheableFeed) LiveRows(_ context.Context, _ *domain.CursorFilter, _ int) ([]domain.FeedRow, error) {
	return f.rows, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPopulatorWritesSerializedRows(t *testing.T) {
	base := time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)
	reposted := row("at://b", "c2", base)
	reposted.RepostURI = "at://rp"

	feed := &stubCacheableFeed{
		uri:  "at://feed/top",
		rows: []domain.FeedRow{row("at://a", "c1", base.Add(time.Minute)), reposted},
	}
	cache := &stubCacheStore{}
	p := NewCachePopulator(feed, cache, time.Minute, 100, discardLogger())

	p.populate(context.Background())

	require.Len(t, cache.upserted, 2)
	assert.Equal(t, "at://feed/top", cache.upserted[0].FeedURI)
	assert.Equal(t, base.Add(time.Minute), cache.upserted[0].CreatedAt)

	var post domain.SkeletonPost
	require.NoError(t, json.Unmarshal(cache.upserted[1].Content, &post))
	assert.Equal(t, "at://b", post.Post)
	require.NotNil(t, post.Reason)
	assert.Equal(t, "at://rp", post.Reason.Repost)
}

func TestPopulatorSkipsRowsOlderThanCache(t *testing.T) {
	base := time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)
	newest := base.Add(time.Minute)

	feed := &stubCacheableFeed{
		uri: "at://feed/top",
		rows: []domain.FeedRow{
			row("at://new", "c1", base.Add(2*time.Minute)),
			row("at://boundary", "c2", newest),
			row("at://old", "c3", base),
		},
	}
	cache := &stubCacheStore{newest: &newest}
	p := NewCachePopulator(feed, cache, time.Minute, 100, discardLogger())

	p.populate(context.Background())

	// Rows at the boundary are recomputed (upserts are idempotent); strictly
	// older rows are left alone.
	require.Len(t, cache.upserted, 2)
	assert.Equal(t, "c1", cache.upserted[0].CID)
	assert.Equal(t, "c2", cache.upserted[1].CID)
}
