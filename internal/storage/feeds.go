package storage

import (
	"context"
	"errors"
	"time"

	"github.com/blackmichael/bluesky-feedgen/internal/domain"
	"gorm.io/gorm"
)

// feedRowScan is the scan target shared by every ranked source query.
type feedRowScan struct {
	PostID    uint
	PostURI   string
	TieCID    string `gorm:"column:tie_cid"`
	OrderTime time.Time
	RepostURI *string
}

func toFeedRows(scans []feedRowScan) []domain.FeedRow {
	rows := make([]domain.FeedRow, 0, len(scans))
	for _, s := range scans {
		row := domain.FeedRow{
			PostID:    s.PostID,
			PostURI:   s.PostURI,
			TieCID:    s.TieCID,
			OrderTime: s.OrderTime,
		}
		if s.RepostURI != nil {
			row.RepostURI = *s.RepostURI
		}
		rows = append(rows, row)
	}
	return rows
}

// keyset applies the shared pagination predicate on the named order and
// tie-break columns. All queries feeding the same cursor must order by these
// exact columns or paging breaks.
func keyset(q *gorm.DB, orderCol, tieCol string, c *domain.CursorFilter) *gorm.DB {
	if c == nil {
		return q
	}
	return q.Where("("+orderCol+" < ? OR ("+orderCol+" = ? AND "+tieCol+" < ?))", c.Ts, c.Ts, c.Tie)
}

// withLanguage joins the language tag tables when a code filter is set.
func withLanguage(q *gorm.DB, code string) *gorm.DB {
	if code == "" {
		return q
	}
	return q.
		Joins("JOIN post_languages pl ON pl.post_id = posts.id").
		Joins("JOIN languages l ON l.id = pl.language_id").
		Where("l.code = ?", code)
}

// LanguagePosts returns root posts tagged with the given language code,
// ordered by creation time.
func (s *Store) LanguagePosts(ctx context.Context, code string, c *domain.CursorFilter, limit int) ([]domain.FeedRow, error) {
	q := s.db.WithContext(ctx).Table("posts").
		Select("posts.id AS post_id, posts.uri AS post_uri, posts.cid AS tie_cid, posts.created_at AS order_time").
		Where("posts.reply_root IS NULL").
		Where("posts.created_at <= ?", time.Now().UTC())
	q = withLanguage(q, code)
	q = keyset(q, "posts.created_at", "posts.cid", c)

	var scans []feedRowScan
	err := q.Order("posts.created_at DESC, posts.cid DESC").Limit(limit).Scan(&scans).Error
	if err != nil {
		return nil, err
	}
	return toFeedRows(scans), nil
}

// PostsByTopAuthors returns root posts whose author has at least
// minFollowers followers.
func (s *Store) PostsByTopAuthors(ctx context.Context, code string, minFollowers int, c *domain.CursorFilter, limit int) ([]domain.FeedRow, error) {
	q := s.db.WithContext(ctx).Table("posts").
		Select("posts.id AS post_id, posts.uri AS post_uri, posts.cid AS tie_cid, posts.created_at AS order_time").
		Joins("JOIN users author ON author.id = posts.author_id").
		Where("author.followers_count >= ?", minFollowers).
		Where("posts.reply_root IS NULL").
		Where("posts.created_at <= ?", time.Now().UTC())
	q = withLanguage(q, code)
	q = keyset(q, "posts.created_at", "posts.cid", c)

	var scans []feedRowScan
	err := q.Order("posts.created_at DESC, posts.cid DESC").Limit(limit).Scan(&scans).Error
	if err != nil {
		return nil, err
	}
	return toFeedRows(scans), nil
}

// RepostsOfTopAuthors returns the latest repost of each root post by a top
// author, ordered by repost time and carrying repost attribution.
func (s *Store) RepostsOfTopAuthors(ctx context.Context, code string, minFollowers int, c *domain.CursorFilter, limit int) ([]domain.FeedRow, error) {
	inner := s.db.WithContext(ctx).Table("interactions i").
		Select("posts.id AS post_id, posts.uri AS post_uri, i.cid AS tie_cid, i.created_at AS order_time, i.uri AS repost_uri, " +
			"ROW_NUMBER() OVER (PARTITION BY i.post_id ORDER BY i.created_at DESC, i.cid DESC) AS rn").
		Joins("JOIN posts ON posts.id = i.post_id").
		Joins("JOIN users author ON author.id = posts.author_id").
		Where("i.type = ?", domain.InteractionRepost).
		Where("author.followers_count >= ?", minFollowers).
		Where("posts.reply_root IS NULL").
		Where("i.created_at <= ?", time.Now().UTC())
	inner = withLanguage(inner, code)

	return s.rankedWindow(ctx, inner, 1, c, limit)
}

// LikeMilestonePosts returns posts by authors below maxFollowers that have
// collected at least minLikes likes, ordered by the milestone like's arrival.
func (s *Store) LikeMilestonePosts(ctx context.Context, code string, maxFollowers, minLikes int, c *domain.CursorFilter, limit int) ([]domain.FeedRow, error) {
	inner := s.db.WithContext(ctx).Table("interactions i").
		Select("posts.id AS post_id, posts.uri AS post_uri, i.cid AS tie_cid, i.created_at AS order_time, NULL AS repost_uri, " +
			"ROW_NUMBER() OVER (PARTITION BY i.post_id ORDER BY i.created_at ASC, i.cid ASC) AS rn").
		Joins("JOIN posts ON posts.id = i.post_id").
		Joins("JOIN users author ON author.id = posts.author_id").
		Where("i.type = ?", domain.InteractionLike).
		Where("(author.followers_count IS NULL OR author.followers_count < ?)", maxFollowers).
		Where("i.created_at <= ?", time.Now().UTC())
	inner = withLanguage(inner, code)

	return s.rankedWindow(ctx, inner, minLikes, c, limit)
}

// PostsByAuthors returns root posts authored by the given DIDs.
func (s *Store) PostsByAuthors(ctx context.Context, dids []string, c *domain.CursorFilter, limit int) ([]domain.FeedRow, error) {
	if len(dids) == 0 {
		return nil, nil
	}
	q := s.db.WithContext(ctx).Table("posts").
		Select("posts.id AS post_id, posts.uri AS post_uri, posts.cid AS tie_cid, posts.created_at AS order_time").
		Joins("JOIN users author ON author.id = posts.author_id").
		Where("author.did IN ?", dids).
		Where("posts.reply_root IS NULL").
		Where("posts.created_at <= ?", time.Now().UTC())
	q = keyset(q, "posts.created_at", "posts.cid", c)

	var scans []feedRowScan
	err := q.Order("posts.created_at DESC, posts.cid DESC").Limit(limit).Scan(&scans).Error
	if err != nil {
		return nil, err
	}
	return toFeedRows(scans), nil
}

// RepostsByAuthors returns posts reposted by the given DIDs, deduplicated to
// the latest repost per post and ordered by repost time.
func (s *Store) RepostsByAuthors(ctx context.Context, dids []string, c *domain.CursorFilter, limit int) ([]domain.FeedRow, error) {
	if len(dids) == 0 {
		return nil, nil
	}
	inner := s.db.WithContext(ctx).Table("interactions i").
		Select("posts.id AS post_id, posts.uri AS post_uri, i.cid AS tie_cid, i.created_at AS order_time, i.uri AS repost_uri, " +
			"ROW_NUMBER() OVER (PARTITION BY i.post_id ORDER BY i.created_at DESC, i.cid DESC) AS rn").
		Joins("JOIN posts ON posts.id = i.post_id").
		Joins("JOIN users reposter ON reposter.id = i.author_id").
		Where("i.type = ?", domain.InteractionRepost).
		Where("reposter.did IN ?", dids).
		Where("posts.created_at <= ?", time.Now().UTC()).
		Where("i.created_at <= ?", time.Now().UTC())

	return s.rankedWindow(ctx, inner, 1, c, limit)
}

// PostsLikedBy returns posts liked by at least minLikes distinct DIDs of the
// given set, ordered by the arrival of the milestone like.
func (s *Store) PostsLikedBy(ctx context.Context, dids []string, minLikes int, c *domain.CursorFilter, limit int) ([]domain.FeedRow, error) {
	if len(dids) == 0 {
		return nil, nil
	}
	inner := s.likedByWindow(ctx, dids)
	return s.rankedWindow(ctx, inner, minLikes, c, limit)
}

// DiscoveryPosts is PostsLikedBy with the discovery exclusions applied: the
// requester's own posts are dropped, and posts by followed authors are
// dropped unless they are replies.
func (s *Store) DiscoveryPosts(ctx context.Context, dids []string, requesterDID string, minLikes int, c *domain.CursorFilter, limit int) ([]domain.FeedRow, error) {
	if len(dids) == 0 {
		return nil, nil
	}
	inner := s.likedByWindow(ctx, dids).
		Joins("JOIN users author ON author.id = posts.author_id").
		Where("author.did <> ?", requesterDID).
		Where("(author.did NOT IN ? OR posts.reply_parent IS NOT NULL)", dids)

	return s.rankedWindow(ctx, inner, minLikes, c, limit)
}

// likedByWindow builds the shared "likes from this DID set, row-numbered per
// post in arrival order" subquery. The post-time guard keeps placeholder
// subjects (no created_at yet) out of the window.
func (s *Store) likedByWindow(ctx context.Context, dids []string) *gorm.DB {
	return s.db.WithContext(ctx).Table("interactions i").
		Select("posts.id AS post_id, posts.uri AS post_uri, i.cid AS tie_cid, i.created_at AS order_time, NULL AS repost_uri, " +
			"ROW_NUMBER() OVER (PARTITION BY i.post_id ORDER BY i.created_at ASC, i.cid ASC) AS rn").
		Joins("JOIN posts ON posts.id = i.post_id").
		Joins("JOIN users liker ON liker.id = i.author_id").
		Where("i.type = ?", domain.InteractionLike).
		Where("liker.did IN ?", dids).
		Where("posts.created_at <= ?", time.Now().UTC()).
		Where("i.created_at <= ?", time.Now().UTC())
}

// rankedWindow selects the nth row of each partition from a row-numbered
// subquery, then applies the shared keyset pagination and ordering. This is
// the single ordered-window primitive behind every milestone and
// repost-attribution query.
func (s *Store) rankedWindow(ctx context.Context, inner *gorm.DB, nth int, c *domain.CursorFilter, limit int) ([]domain.FeedRow, error) {
	q := s.db.WithContext(ctx).Table("(?) AS ranked", inner).
		Select("ranked.post_id, ranked.post_uri, ranked.tie_cid, ranked.order_time, ranked.repost_uri").
		Where("ranked.rn = ?", nth)
	q = keyset(q, "ranked.order_time", "ranked.tie_cid", c)

	var scans []feedRowScan
	err := q.Order("ranked.order_time DESC, ranked.tie_cid DESC").Limit(limit).Scan(&scans).Error
	if err != nil {
		return nil, err
	}
	return toFeedRows(scans), nil
}

// AuthoredReplyChain returns the replies the root post's author posted under
// their own root, in chronological order.
func (s *Store) AuthoredReplyChain(ctx context.Context, rootURI string) ([]domain.FeedRow, error) {
	var root domain.Post
	err := s.db.WithContext(ctx).Select("id", "author_id").Where("uri = ?", rootURI).First(&root).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if root.AuthorID == nil {
		return nil, nil
	}

	var scans []feedRowScan
	err = s.db.WithContext(ctx).Table("posts").
		Select("posts.id AS post_id, posts.uri AS post_uri, posts.cid AS tie_cid, posts.created_at AS order_time").
		Where("posts.reply_root = ?", rootURI).
		Where("posts.author_id = ?", *root.AuthorID).
		Where("posts.created_at IS NOT NULL").
		Order("posts.created_at ASC, posts.cid ASC").
		Scan(&scans).Error
	if err != nil {
		return nil, err
	}
	return toFeedRows(scans), nil
}
