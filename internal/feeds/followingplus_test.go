package feeds

import (
	"context"
	"testing"
	"time"

	"github.com/blackmichael/bluesky-feedgen/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubFeedStore returns canned rows per source query and records the
// arguments the algorithms pass through.
type stubFeedStore struct {
	languagePosts   []domain.FeedRow
	postsByTop      []domain.FeedRow
	repostsOfTop    []domain.FeedRow
	milestones      []domain.FeedRow
	postsByAuthors  []domain.FeedRow
	repostsByAuthor []domain.FeedRow
	likedBy         []domain.FeedRow
	discovery       []domain.FeedRow
	replyChains     map[string][]domain.FeedRow

	postsByAuthorsDIDs []string
	likedByDIDs        []string
}

func (s *stubFeedStore) LanguagePosts(_ context.Context, _ string, _ *domain.CursorFilter, _ int) ([]domain.FeedRow, error) {
	return s.languagePosts, nil
}

func (s *stubFeedStore) PostsByTopAuthors(_ context.Context, _ string, _ int, _ *domain.CursorFilter, _ int) ([]domain.FeedRow, error) {
	return s.postsByTop, nil
}

func (s *stubFeedStore) RepostsOfTopAuthors(_ context.Context, _ string, _ int, _ *domain.CursorFilter, _ int) ([]domain.FeedRow, error) {
	return s.repostsOfTop, nil
}

func (s *stubFeedStore) LikeMilestonePosts(_ context.Context, _ string, _, _ int, _ *domain.CursorFilter, _ int) ([]domain.FeedRow, error) {
	return s.milestones, nil
}

func (s *stubFeedStore) PostsByAuthors(_ context.Context, dids []string, _ *domain.CursorFilter, _ int) ([]domain.FeedRow, error) {
	s.postsByAuthorsDIDs = dids
	return s.postsByAuthors, nil
}

func (s *stubFeedStore) RepostsByAuthors(_ context.Context, _ []string, _ *domain.CursorFilter, _ int) ([]domain.FeedRow, error) {
	return s.repostsByAuthor, nil
}

func (s *stubFeedStore) PostsLikedBy(_ context.Context, dids []string, _ int, _ *domain.CursorFilter, _ int) ([]domain.FeedRow, error) {
	s.likedByDIDs = dids
	return s.likedBy, nil
}

func (s *stubFeedStore) DiscoveryPosts(_ context.Context, _ []string, _ string, _ int, _ *domain.CursorFilter, _ int) ([]domain.FeedRow, error) {
	return s.discovery, nil
}

func (s *stubFeedStore) AuthoredReplyChain(_ context.Context, rootURI string) ([]domain.FeedRow, error) {
	return s.replyChains[rootURI], nil
}

type stubFollowGraph struct {
	follows []string
}

func (g *stubFollowGraph) GetFollows(_ context.Context, _ string) ([]string, error) {
	return g.follows, nil
}

func TestFollowingPlusSplicesAuthoredThreads(t *testing.T) {
	base := time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)
	root := row("at://alice/root", "c-root", base.Add(2*time.Hour))
	liked := row("at://carol/liked", "c-liked", base.Add(time.Hour))

	store := &stubFeedStore{
		postsByAuthors: []domain.FeedRow{root},
		likedBy:        []domain.FeedRow{liked},
		replyChains: map[string][]domain.FeedRow{
			"at://alice/root": {
				row("at://alice/reply1", "c-r1", base.Add(2*time.Hour+time.Minute)),
				row("at://alice/reply2", "c-r2", base.Add(2*time.Hour+2*time.Minute)),
			},
		},
	}
	feed := NewFollowingPlusFeed("at://feed/fp", 2, store, &stubFollowGraph{follows: []string{"did:plc:bob"}})

	skeleton, err := feed.Skeleton(context.Background(), "", 10, "did:plc:alice")
	require.NoError(t, err)

	// The reply chain rides along directly after its root; the liked post
	// follows, and the cursor covers only the merged page.
	uris := make([]string, 0, len(skeleton.Posts))
	for _, p := range skeleton.Posts {
		uris = append(uris, p.Post)
	}
	assert.Equal(t, []string{
		"at://alice/root",
		"at://alice/reply1",
		"at://alice/reply2",
		"at://carol/liked",
	}, uris)
	assert.Equal(t, EncodeCursor(liked.OrderTime, liked.TieCID), skeleton.Cursor)
}

func TestFollowingPlusIncludesRequesterOwnPosts(t *testing.T) {
	store := &stubFeedStore{}
	feed := NewFollowingPlusFeed("at://feed/fp", 2, store, &stubFollowGraph{follows: []string{"did:plc:bob"}})

	_, err := feed.Skeleton(context.Background(), "", 10, "did:plc:alice")
	require.NoError(t, err)

	// Authored and reposted sources include the requester; the liked-by
	// source counts follows only.
	assert.Equal(t, []string{"did:plc:bob", "did:plc:alice"}, store.postsByAuthorsDIDs)
	assert.Equal(t, []string{"did:plc:bob"}, store.likedByDIDs)
}

func TestFollowingPlusNoThreadExpansionForReposts(t *testing.T) {
	base := time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)
	reposted := row("at://alice/root", "c-repost", base)
	reposted.RepostURI = "at://bob/repost"

	store := &stubFeedStore{
		repostsByAuthor: []domain.FeedRow{reposted},
		replyChains: map[string][]domain.FeedRow{
			"at://alice/root": {row("at://alice/reply1", "c-r1", base.Add(time.Minute))},
		},
	}
	feed := NewFollowingPlusFeed("at://feed/fp", 2, store, &stubFollowGraph{})

	skeleton, err := feed.Skeleton(context.Background(), "", 10, "did:plc:alice")
	require.NoError(t, err)
	require.Len(t, skeleton.Posts, 1)
	require.NotNil(t, skeleton.Posts[0].Reason)
}

func TestFollowingPlusEOFCursor(t *testing.T) {
	feed := NewFollowingPlusFeed("at://feed/fp", 2, &stubFeedStore{}, &stubFollowGraph{})

	skeleton, err := feed.Skeleton(context.Background(), CursorEOF, 10, "did:plc:alice")
	require.NoError(t, err)
	assert.Equal(t, CursorEOF, skeleton.Cursor)
	assert.Empty(t, skeleton.Posts)
}
