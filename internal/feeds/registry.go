package feeds

import (
	"context"
	"fmt"

	"github.com/blackmichael/bluesky-feedgen/internal/domain"
)

// Algorithm is one compiled-in feed ranking variant. Implementations are
// pure over storage: (cursor, limit, requester) in, skeleton out.
type Algorithm interface {
	// URI is the published AT-URI of the feed generator record.
	URI() string

	// RequiresAuth reports whether the algorithm needs a verified
	// requester identity.
	RequiresAuth() bool

	// Skeleton computes one page of the feed.
	Skeleton(ctx context.Context, cursor string, limit int, requesterDID string) (*domain.FeedSkeleton, error)
}

// Registry is the immutable set of served algorithms, built once at startup
// and injected into the request path.
type Registry struct {
	algos map[string]Algorithm
	order []string
}

// NewRegistry builds a registry from the given algorithms. Duplicate URIs
// are a configuration error.
func NewRegistry(algos ...Algorithm) (*Registry, error) {
	r := &Registry{algos: make(map[string]Algorithm, len(algos))}
	for _, a := range algos {
		if a.URI() == "" {
			return nil, fmt.Errorf("algorithm %T has no feed URI configured", a)
		}
		if _, dup := r.algos[a.URI()]; dup {
			return nil, fmt.Errorf("duplicate feed URI %s", a.URI())
		}
		r.algos[a.URI()] = a
		r.order = append(r.order, a.URI())
	}
	return r, nil
}

// Get looks up an algorithm by feed URI.
func (r *Registry) Get(uri string) (Algorithm, bool) {
	a, ok := r.algos[uri]
	return a, ok
}

// URIs returns the registered feed URIs in registration order.
func (r *Registry) URIs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// GetFeedSkeleton serves one page of the named feed, translating registry
// misses to ErrUnknownFeed and enforcing the algorithm's auth requirement.
func (r *Registry) GetFeedSkeleton(ctx context.Context, feedURI, cursor string, limit int, requesterDID string) (*domain.FeedSkeleton, error) {
	algo, ok := r.Get(feedURI)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownFeed, feedURI)
	}
	if algo.RequiresAuth() && requesterDID == "" {
		return nil, domain.ErrAuthRequired
	}
	skeleton, err := algo.Skeleton(ctx, cursor, limit, requesterDID)
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", feedURI, err)
	}
	return skeleton, nil
}
