package ingest

import (
	"testing"
	"time"

	"github.com/blackmichael/bluesky-feedgen/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeOpPostCreate(t *testing.T) {
	batch := &domain.EventBatch{}
	ok := NormalizeOp(batch, RawOp{
		Collection: CollectionPost,
		Operation:  "create",
		URI:        "at://did:plc:alice/app.bsky.feed.post/abc",
		CID:        "cid1",
		AuthorDID:  "did:plc:alice",
		Text:       "hola mundo",
		Langs:      []string{"es"},
		CreatedAt:  "2024-05-17T12:00:00Z",
	})

	require.True(t, ok)
	require.Len(t, batch.CreatedPosts, 1)
	ev := batch.CreatedPosts[0]
	assert.Equal(t, "hola mundo", ev.Text)
	require.NotNil(t, ev.CreatedAt)
	assert.Equal(t, time.Date(2024, 5, 17, 12, 0, 0, 0, time.UTC), *ev.CreatedAt)
}

func TestNormalizeOpPostDelete(t *testing.T) {
	batch := &domain.EventBatch{}
	ok := NormalizeOp(batch, RawOp{
		Collection: CollectionPost,
		Operation:  "delete",
		URI:        "at://did:plc:alice/app.bsky.feed.post/abc",
	})

	require.True(t, ok)
	assert.Equal(t, []string{"at://did:plc:alice/app.bsky.feed.post/abc"}, batch.DeletedPostURIs)
}

func TestNormalizeOpInteractions(t *testing.T) {
	batch := &domain.EventBatch{}

	require.True(t, NormalizeOp(batch, RawOp{
		Collection: CollectionLike,
		Operation:  "create",
		URI:        "at://did:plc:bob/app.bsky.feed.like/1",
		AuthorDID:  "did:plc:bob",
		SubjectURI: "at://did:plc:alice/app.bsky.feed.post/abc",
		SubjectCID: "cid1",
	}))
	require.True(t, NormalizeOp(batch, RawOp{
		Collection: CollectionRepost,
		Operation:  "create",
		URI:        "at://did:plc:bob/app.bsky.feed.repost/1",
		AuthorDID:  "did:plc:bob",
		SubjectURI: "at://did:plc:alice/app.bsky.feed.post/abc",
		SubjectCID: "cid1",
	}))

	require.Len(t, batch.CreatedInteractions, 2)
	assert.Equal(t, domain.InteractionLike, batch.CreatedInteractions[0].Type)
	assert.Equal(t, domain.InteractionRepost, batch.CreatedInteractions[1].Type)
	assert.Equal(t, 2, batch.Size())
}

func TestNormalizeOpSkipsLikeWithoutSubject(t *testing.T) {
	batch := &domain.EventBatch{}
	ok := NormalizeOp(batch, RawOp{
		Collection: CollectionLike,
		Operation:  "create",
		URI:        "at://did:plc:bob/app.bsky.feed.like/1",
	})
	assert.False(t, ok)
	assert.Zero(t, batch.Size())
}

func TestNormalizeOpIgnoresUnknownCollection(t *testing.T) {
	batch := &domain.EventBatch{}
	ok := NormalizeOp(batch, RawOp{
		Collection: "app.bsky.graph.follow",
		Operation:  "create",
	})
	assert.False(t, ok)
	assert.Zero(t, batch.Size())
}

func TestParseRecordTime(t *testing.T) {
	cases := []struct {
		value string
		want  *time.Time
	}{
		{"2024-05-17T12:00:00Z", ptr(time.Date(2024, 5, 17, 12, 0, 0, 0, time.UTC))},
		{"2024-05-17T12:00:00.123456789Z", ptr(time.Date(2024, 5, 17, 12, 0, 0, 123456789, time.UTC))},
		{"2024-05-17T12:00:00.500000", ptr(time.Date(2024, 5, 17, 12, 0, 0, 500_000_000, time.UTC))},
		{"", nil},
		{"not-a-time", nil},
	}

	for _, tc := range cases {
		got := parseRecordTime(tc.value)
		if tc.want == nil {
			assert.Nil(t, got, "value %q", tc.value)
			continue
		}
		require.NotNil(t, got, "value %q", tc.value)
		assert.True(t, got.Equal(*tc.want), "value %q", tc.value)
	}
}

func ptr[T any](v T) *T { return &v }
