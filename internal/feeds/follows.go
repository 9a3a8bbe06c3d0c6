package feeds

import (
	"context"
	"time"

	"github.com/blackmichael/bluesky-feedgen/internal/domain"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedFollowGraph wraps an upstream follow-graph lookup with a TTL cache
// and a hard timeout. The upstream call pages through the full follow list,
// so without the bound it sits on the request's critical path for an
// unbounded number of round trips.
type CachedFollowGraph struct {
	inner   domain.FollowGraph
	cache   *expirable.LRU[string, []string]
	timeout time.Duration
}

// NewCachedFollowGraph wraps inner with a cache of the given size and TTL
// and a per-lookup timeout.
func NewCachedFollowGraph(inner domain.FollowGraph, size int, ttl, timeout time.Duration) *CachedFollowGraph {
	return &CachedFollowGraph{
		inner:   inner,
		cache:   expirable.NewLRU[string, []string](size, nil, ttl),
		timeout: timeout,
	}
}

// GetFollows returns the cached follow list for the DID, fetching upstream
// on a miss.
func (g *CachedFollowGraph) GetFollows(ctx context.Context, did string) ([]string, error) {
	if follows, ok := g.cache.Get(did); ok {
		return follows, nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	follows, err := g.inner.GetFollows(ctx, did)
	if err != nil {
		return nil, err
	}
	g.cache.Add(did, follows)
	return follows, nil
}
