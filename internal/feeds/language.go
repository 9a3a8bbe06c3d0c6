package feeds

import (
	"context"

	"github.com/blackmichael/bluesky-feedgen/internal/domain"
)

// LanguageFeed serves root posts tagged with a single language code, newest
// first by creation time.
type LanguageFeed struct {
	uri   string
	code  string
	store domain.FeedStore
}

// NewLanguageFeed creates a language feed for the given code.
func NewLanguageFeed(uri, code string, store domain.FeedStore) *LanguageFeed {
	return &LanguageFeed{uri: uri, code: code, store: store}
}

func (f *LanguageFeed) URI() string { return f.uri }

func (f *LanguageFeed) RequiresAuth() bool { return false }

func (f *LanguageFeed) Skeleton(ctx context.Context, cursor string, limit int, _ string) (*domain.FeedSkeleton, error) {
	filter, eof, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	if eof {
		return emptySkeleton(), nil
	}

	rows, err := f.store.LanguagePosts(ctx, f.code, filter, limit)
	if err != nil {
		return nil, err
	}
	return skeletonFromRows(rows), nil
}
