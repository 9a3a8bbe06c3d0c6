package feeds

import (
	"sort"

	"github.com/blackmichael/bluesky-feedgen/internal/domain"
)

// mergeRows combines independently-fetched, independently-truncated source
// result sets into one page. Duplicates are resolved by source declaration
// order: the first source a post appears in keeps its row, so a post that is
// both authored and reposted surfaces as the authored entry. Survivors are
// sorted by (orderTime DESC, tie DESC) and truncated to limit.
//
// Because each source truncates to limit before merging, a page at a
// cross-source boundary can skip or repeat an item relative to a joint
// truncation. That is an accepted property of the design, not a bug.
func mergeRows(limit int, sources ...[]domain.FeedRow) []domain.FeedRow {
	var merged []domain.FeedRow
	seen := make(map[string]bool)

	for _, src := range sources {
		for _, row := range src {
			if seen[row.PostURI] {
				continue
			}
			seen[row.PostURI] = true
			merged = append(merged, row)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if !merged[i].OrderTime.Equal(merged[j].OrderTime) {
			return merged[i].OrderTime.After(merged[j].OrderTime)
		}
		return merged[i].TieCID > merged[j].TieCID
	})

	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// skeletonFromRows shapes merged rows into the response body, attaching
// repost attribution where a row was surfaced by a repost.
func skeletonFromRows(rows []domain.FeedRow) *domain.FeedSkeleton {
	posts := make([]domain.SkeletonPost, 0, len(rows))
	for _, row := range rows {
		entry := domain.SkeletonPost{Post: row.PostURI}
		if row.RepostURI != "" {
			entry.Reason = &domain.SkeletonReason{
				Type:   domain.ReasonTypeRepost,
				Repost: row.RepostURI,
			}
		}
		posts = append(posts, entry)
	}
	return &domain.FeedSkeleton{
		Cursor: nextCursor(rows),
		Posts:  posts,
	}
}
