package feeds

import (
	"context"
	"fmt"

	"github.com/blackmichael/bluesky-feedgen/internal/domain"
	"golang.org/x/sync/errgroup"
)

// FollowingPlusFeed merges three sources over the requester's follow graph:
// root posts by followed accounts, reposts by followed accounts, and posts
// liked by several followed accounts. Root posts by follows are expanded
// with the author's own reply chain.
type FollowingPlusFeed struct {
	uri      string
	minLikes int
	store    domain.FeedStore
	follows  domain.FollowGraph
}

// NewFollowingPlusFeed creates the feed.
func NewFollowingPlusFeed(uri string, minLikes int, store domain.FeedStore, follows domain.FollowGraph) *FollowingPlusFeed {
	return &FollowingPlusFeed{
		uri:      uri,
		minLikes: minLikes,
		store:    store,
		follows:  follows,
	}
}

func (f *FollowingPlusFeed) URI() string { return f.uri }

func (f *FollowingPlusFeed) RequiresAuth() bool { return true }

func (f *FollowingPlusFeed) Skeleton(ctx context.Context, cursor string, limit int, requesterDID string) (*domain.FeedSkeleton, error) {
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
	withSelf := append(append([]string{}, follows...), requesterDID)

	var posts, reposts, liked []domain.FeedRow
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		posts, err = f.store.PostsByAuthors(gctx, withSelf, filter, limit)
		return err
	})
	g.Go(func() (err error) {
		reposts, err = f.store.RepostsByAuthors(gctx, withSelf, filter, limit)
		return err
	})
	g.Go(func() (err error) {
		liked, err = f.store.PostsLikedBy(gctx, follows, f.minLikes, filter, limit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := mergeRows(limit, posts, reposts, liked)

	// Mark which merged rows came from the authored-posts source so only
	// those get thread expansion.
	authored := make(map[string]bool, len(posts))
	for _, row := range posts {
		authored[row.PostURI] = true
	}

	skeleton := &domain.FeedSkeleton{
		Cursor: nextCursor(merged),
		Posts:  make([]domain.SkeletonPost, 0, len(merged)),
	}
	for _, row := range merged {
		entry := domain.SkeletonPost{Post: row.PostURI}
		if row.RepostURI != "" {
			entry.Reason = &domain.SkeletonReason{
				Type:   domain.ReasonTypeRepost,
				Repost: row.RepostURI,
			}
		}
		skeleton.Posts = append(skeleton.Posts, entry)

		if row.RepostURI == "" && authored[row.PostURI] {
			chain, err := f.store.AuthoredReplyChain(ctx, row.PostURI)
			if err != nil {
				return nil, fmt.Errorf("expand thread %s: %w", row.PostURI, err)
			}
			for _, reply := range chain {
				skeleton.Posts = append(skeleton.Posts, domain.SkeletonPost{Post: reply.PostURI})
			}
		}
	}
	return skeleton, nil
}
