package domain

import "time"

// FeedSkeleton is the response body for getFeedSkeleton.
type FeedSkeleton struct {
	Cursor string
	Posts  []SkeletonPost
}

// SkeletonPost is a single entry in a feed skeleton.
type SkeletonPost struct {
	// Post is the AT-URI of the post.
	Post string `json:"post"`

	// Reason marks the entry as surfaced via a repost.
	Reason *SkeletonReason `json:"reason,omitempty"`
}

// SkeletonReason is the repost attribution of a feed entry.
type SkeletonReason struct {
	Type   string `json:"$type"`
	Repost string `json:"repost"`
}

// ReasonTypeRepost is the lexicon type for repost attribution.
const ReasonTypeRepost = "app.bsky.feed.defs#skeletonReasonRepost"

// FeedRow is one candidate feed entry produced by a ranked source query.
// OrderTime and TieCID together form the strict total order every source
// shares; rows ordered by a repost or like carry the interaction's time and
// CID rather than the post's.
type FeedRow struct {
	PostID    uint
	PostURI   string
	TieCID    string
	OrderTime time.Time
	RepostURI string
}

// FeedDescription describes a single feed served by this generator.
type FeedDescription struct {
	// URI is the AT-URI of the feed generator record.
	URI string `json:"uri"`
}

// GeneratorDescription is the response body for describeFeedGenerator.
type GeneratorDescription struct {
	DID   string            `json:"did"`
	Feeds []FeedDescription `json:"feeds"`
}
