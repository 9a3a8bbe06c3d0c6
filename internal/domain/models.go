package domain

import "time"

// DID and CID columns are pinned explicitly throughout: the default namer
// would split the initialisms into d_id/c_id, and the raw feed queries
// reference did/cid.

// User is an account observed on the firehose, either as an author of
// content or as the author of a like/repost. Profile fields are filled in
// lazily by the enrichment directory.
type User struct {
	ID             uint   `gorm:"primarykey"`
	DID            string `gorm:"column:did;uniqueIndex;size:255"`
	Handle         *string
	FollowersCount *int
	FollowsCount   *int
	PostsCount     *int
	IndexedAt      time.Time
	LastUpdate     *time.Time
}

// Language is a lazily-created language tag. Rows are never deleted.
type Language struct {
	ID   uint   `gorm:"primarykey"`
	Code string `gorm:"uniqueIndex;size:16"`
}

// Post is an indexed post. AuthorID may be unset and CreatedAt may be nil
// when the row was synthesized as a placeholder for an interaction that
// arrived before the post's own create event.
type Post struct {
	ID          uint `gorm:"primarykey"`
	AuthorID    *uint
	Author      *User
	URI         string `gorm:"uniqueIndex;size:512"`
	CID         string `gorm:"column:cid;size:255"`
	ReplyParent *string
	ReplyRoot   *string
	IndexedAt   time.Time  `gorm:"index"`
	CreatedAt   *time.Time `gorm:"index;autoCreateTime:false"`
	Languages   []Language `gorm:"many2many:post_languages"`
}

// Interaction types.
const (
	InteractionLike = iota
	InteractionRepost
)

// Interaction is a like or repost of a post.
type Interaction struct {
	ID        uint   `gorm:"primarykey"`
	URI       string `gorm:"uniqueIndex;size:512"`
	CID       string `gorm:"column:cid;size:255"`
	AuthorID  uint
	Author    User
	PostID    uint `gorm:"index"`
	Post      Post
	Type      int        `gorm:"index"`
	IndexedAt time.Time  `gorm:"index"`
	CreatedAt *time.Time `gorm:"index"`
}

// FeedCacheEntry is one materialized row of a cached feed. Content holds the
// serialized skeleton entry so the read path is a pure range scan.
type FeedCacheEntry struct {
	FeedURI   string    `gorm:"primaryKey;size:512"`
	CreatedAt time.Time `gorm:"primaryKey"`
	CID       string    `gorm:"column:cid;primaryKey;size:255"`
	Content   []byte
}

// SubscriptionState is the per-upstream-service firehose replay offset.
type SubscriptionState struct {
	ID      uint   `gorm:"primarykey"`
	Service string `gorm:"uniqueIndex;size:255"`
	Cursor  int64
}
