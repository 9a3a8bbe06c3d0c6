package domain

import (
	"context"
	"time"
)

// CursorFilter is the decoded keyset position of a pagination cursor. A nil
// filter means "first page". Every source query applies it as
// orderTime < Ts OR (orderTime = Ts AND tie < Tie).
type CursorFilter struct {
	Ts  time.Time
	Tie string
}

// Profile is the enriched view of an account fetched from the upstream
// AppView.
type Profile struct {
	DID            string
	Handle         string
	FollowersCount int
	FollowsCount   int
	PostsCount     int
}

// ProfileDirectory looks up account profiles upstream.
type ProfileDirectory interface {
	// GetProfile returns ErrProfileNotFound if the account no longer exists.
	GetProfile(ctx context.Context, did string) (*Profile, error)
}

// FollowGraph resolves the full set of DIDs an account follows.
type FollowGraph interface {
	GetFollows(ctx context.Context, did string) ([]string, error)
}

// IngestStore defines the write operations used by the ingestion pipeline.
// All creates are insert-or-ignore so that duplicate and out-of-order events
// are absorbed by uniqueness constraints rather than explicit locking.
type IngestStore interface {
	// FlushPosts persists a micro-batch of classified posts and their
	// language associations in one transaction. A duplicate create
	// re-stamps the existing row's IndexedAt.
	FlushPosts(ctx context.Context, events []PostEvent) error

	// DeletePosts removes posts by URI set.
	DeletePosts(ctx context.Context, uris []string) error

	// CreateInteractions persists likes/reposts, creating a placeholder
	// Post for any subject that has not been indexed yet.
	CreateInteractions(ctx context.Context, events []InteractionEvent) error

	// DeleteInteractions removes interactions by URI set.
	DeleteInteractions(ctx context.Context, uris []string) error

	// EnsureUsers upserts bare User rows for the given DIDs.
	EnsureUsers(ctx context.Context, dids []string) error
}

// FeedStore defines the ranked source queries feed algorithms are built
// from. Every query orders by (orderTime DESC, tieCID DESC) and truncates to
// limit independently.
type FeedStore interface {
	// LanguagePosts returns root posts tagged with the given language code,
	// ordered by creation time.
	LanguagePosts(ctx context.Context, code string, c *CursorFilter, limit int) ([]FeedRow, error)

	// PostsByTopAuthors returns root posts whose author has at least
	// minFollowers followers. An empty code disables the language filter.
	PostsByTopAuthors(ctx context.Context, code string, minFollowers int, c *CursorFilter, limit int) ([]FeedRow, error)

	// RepostsOfTopAuthors returns the latest repost of each post by a
	// top author, ordered by repost time and carrying repost attribution.
	RepostsOfTopAuthors(ctx context.Context, code string, minFollowers int, c *CursorFilter, limit int) ([]FeedRow, error)

	// LikeMilestonePosts returns posts by authors below maxFollowers that
	// have collected at least minLikes distinct likes, ordered by the time
	// the milestone like arrived.
	LikeMilestonePosts(ctx context.Context, code string, maxFollowers, minLikes int, c *CursorFilter, limit int) ([]FeedRow, error)

	// PostsByAuthors returns root posts authored by the given DIDs.
	PostsByAuthors(ctx context.Context, dids []string, c *CursorFilter, limit int) ([]FeedRow, error)

	// RepostsByAuthors returns posts reposted by the given DIDs, ordered by
	// repost time, deduplicated to the latest repost per post.
	RepostsByAuthors(ctx context.Context, dids []string, c *CursorFilter, limit int) ([]FeedRow, error)

	// PostsLikedBy returns posts liked by at least minLikes distinct DIDs
	// of the given set, ordered by the arrival of the minLikes-th like.
	PostsLikedBy(ctx context.Context, dids []string, minLikes int, c *CursorFilter, limit int) ([]FeedRow, error)

	// DiscoveryPosts is PostsLikedBy with the discovery exclusions: posts
	// authored by the requester are dropped, and posts authored by a
	// followed DID are dropped unless they are replies.
	DiscoveryPosts(ctx context.Context, dids []string, requesterDID string, minLikes int, c *CursorFilter, limit int) ([]FeedRow, error)

	// AuthoredReplyChain returns the replies the root post's author posted
	// under their own root, in chronological order.
	AuthoredReplyChain(ctx context.Context, rootURI string) ([]FeedRow, error)
}

// FeedCacheStore defines the materialized feed cache operations.
type FeedCacheStore interface {
	// UpsertFeedCache writes cache rows idempotently.
	UpsertFeedCache(ctx context.Context, entries []FeedCacheEntry) error

	// FeedCachePage range-scans a cached feed with keyset pagination.
	FeedCachePage(ctx context.Context, feedURI string, c *CursorFilter, limit int) ([]FeedCacheEntry, error)

	// NewestFeedCacheTime returns the order time of the newest cached row,
	// or nil if the cache is empty.
	NewestFeedCacheTime(ctx context.Context, feedURI string) (*time.Time, error)
}

// UserStore defines the operations used by the enrichment directory.
type UserStore interface {
	// GetUser returns ErrProfileNotFound if no row exists for the DID.
	GetUser(ctx context.Context, did string) (*User, error)

	// UpdateUserProfile stores enriched profile fields and the update time.
	UpdateUserProfile(ctx context.Context, did string, p *Profile, when time.Time) error

	// DeleteUser removes a user whose upstream account no longer exists.
	DeleteUser(ctx context.Context, did string) error
}

// RetentionStore defines the bounded-age cleanup operation.
type RetentionStore interface {
	// DeleteOlderThan removes language associations, interactions, posts
	// and cache entries older than the horizon, children before parents.
	// Returns the number of posts deleted.
	DeleteOlderThan(ctx context.Context, horizon time.Time) (int64, error)
}

// SubscriptionStore defines persistence for firehose replay offsets.
type SubscriptionStore interface {
	// GetCursor retrieves the last-processed firehose cursor for the given
	// service name. Returns 0 if no cursor has been saved.
	GetCursor(ctx context.Context, service string) (int64, error)

	// UpdateCursor persists the firehose cursor so we can resume on restart.
	UpdateCursor(ctx context.Context, service string, cursor int64) error
}
