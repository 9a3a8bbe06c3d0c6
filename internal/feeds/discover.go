package feeds

import (
	"context"
	"fmt"

	"github.com/blackmichael/bluesky-feedgen/internal/domain"
)

// DiscoverFeed surfaces posts liked by several of the requester's follows,
// excluding accounts the requester already follows (unless the post is a
// reply) and the requester's own posts.
type DiscoverFeed struct {
	uri      string
	minLikes int
	store    domain.FeedStore
	follows  domain.FollowGraph
}

// NewDiscoverFeed creates the feed.
func NewDiscoverFeed(uri string, minLikes int, store domain.FeedStore, follows domain.FollowGraph) *DiscoverFeed {
	return &DiscoverFeed{
		uri:      uri,
		minLikes: minLikes,
		store:    store,
		follows:  follows,
	}
}

func (f *DiscoverFeed) URI() string { return f.uri }

func (f *DiscoverFeed) RequiresAuth() bool { return true }

func (f *DiscoverFeed) Skeleton(ctx context.Context, cursor string, limit int, requesterDID string) (*domain.FeedSkeleton, error) {
	filter, eof, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	if eof {
		return emptySkeleton(), nil
	}

	follows, err := f.follows.GetFollows(ctx, requesterDID)
	if err != nil {
		return nil, fmt.Errorf("resolve follows of %s: %w", requesterDID, err)
	}

	rows, err := f.store.DiscoveryPosts(ctx, follows, requesterDID, f.minLikes, filter, limit)
	if err != nil {
		return nil, err
	}
	return skeletonFromRows(rows), nil
}
