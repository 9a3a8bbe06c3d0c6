package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/blackmichael/bluesky-feedgen/internal/domain"
	"github.com/blackmichael/bluesky-feedgen/internal/feeds"
	"github.com/blackmichael/bluesky-feedgen/internal/lang"
	"github.com/blackmichael/bluesky-feedgen/internal/storage"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type spanishDetector struct{}

func (spanishDetector) Candidates(_ string, _ int) []lang.Candidate {
	return []lang.Candidate{{Code: "es", Score: 0.95}}
}

// Exercises the full indexing path: firehose-shaped operations through
// normalization, the worker pool, classification, storage, and finally a
// language feed paged to its end.
func TestIngestToFeedPipeline(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store, err := storage.NewStore(db)
	require.NoError(t, err)
	defer store.Close()

	classifier := lang.NewClassifier(spanishDetector{})
	pool := NewPool(store, classifier, nil, PoolOptions{
		Workers:        1,
		QueueSize:      8,
		FlushThreshold: 100,
	}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	created := time.Now().UTC().Add(-time.Hour)
	batch := &domain.EventBatch{}
	for i, uri := range []string{"at://alice/post/1", "at://alice/post/2", "at://alice/post/3"} {
		require.True(t, NormalizeOp(batch, RawOp{
			Collection: CollectionPost,
			Operation:  "create",
			URI:        uri,
			CID:        "cid" + string(rune('a'+i)),
			AuthorDID:  "did:plc:alice",
			Text:       "Hola mundo",
			CreatedAt:  created.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
		}))
	}
	require.NoError(t, pool.Enqueue(ctx, batch))

	// Shutdown forces the final flush of the worker's micro-batch.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	feed := feeds.NewLanguageFeed("at://feed/es", "es", store)

	var all []string
	cursor := ""
	for {
		skeleton, err := feed.Skeleton(context.Background(), cursor, 2, "")
		require.NoError(t, err)
		if len(skeleton.Posts) == 0 {
			assert.Equal(t, feeds.CursorEOF, skeleton.Cursor)
			break
		}
		for _, p := range skeleton.Posts {
			all = append(all, p.Post)
		}
		cursor = skeleton.Cursor
	}

	// Declared no tags; the detector's confident guess carries the posts
	// into the Spanish feed, newest first.
	assert.Equal(t, []string{
		"at://alice/post/3",
		"at://alice/post/2",
		"at://alice/post/1",
	}, all)

	// The terminal cursor stays terminal.
	skeleton, err := feed.Skeleton(context.Background(), feeds.CursorEOF, 2, "")
	require.NoError(t, err)
	assert.Empty(t, skeleton.Posts)
	assert.Equal(t, feeds.CursorEOF, skeleton.Cursor)
}
