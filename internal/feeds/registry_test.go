package feeds

import (
	"context"
	"testing"

	"github.com/blackmichael/bluesky-feedgen/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAlgo struct {
	uri      string
	auth     bool
	skeleton *domain.FeedSkeleton
	err      error
}

func (a *stubAlgo) URI() string        { return a.uri }
func (a *stubAlgo) RequiresAuth() bool { return a.auth }
func (a *stubAlgo) Skeleton(_ context.Context, _ string, _ int, _ string) (*domain.FeedSkeleton, error) {
	return a.skeleton, a.err
}

func TestNewRegistryRejectsDuplicateURI(t *testing.T) {
	_, err := NewRegistry(
		&stubAlgo{uri: "at://feed/a"},
		&stubAlgo{uri: "at://feed/a"},
	)
	assert.Error(t, err)
}

func TestNewRegistryRejectsEmptyURI(t *testing.T) {
	_, err := NewRegistry(&stubAlgo{uri: ""})
	assert.Error(t, err)
}

func TestRegistryURIsPreserveOrder(t *testing.T) {
	r, err := NewRegistry(
		&stubAlgo{uri: "at://feed/b"},
		&stubAlgo{uri: "at://feed/a"},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"at://feed/b", "at://feed/a"}, r.URIs())
}

func TestGetFeedSkeletonUnknownFeed(t *testing.T) {
	r, err := NewRegistry(&stubAlgo{uri: "at://feed/a", skeleton: emptySkeleton()})
	require.NoError(t, err)

	_, err = r.GetFeedSkeleton(context.Background(), "at://feed/missing", "", 20, "")
	assert.ErrorIs(t, err, domain.ErrUnknownFeed)
}

func TestGetFeedSkeletonAuthRequired(t *testing.T) {
	r, err := NewRegistry(&stubAlgo{uri: "at://feed/a", auth: true, skeleton: emptySkeleton()})
	require.NoError(t, err)

	_, err = r.GetFeedSkeleton(context.Background(), "at://feed/a", "", 20, "")
	assert.ErrorIs(t, err, domain.ErrAuthRequired)

	skeleton, err := r.GetFeedSkeleton(context.Background(), "at://feed/a", "", 20, "did:plc:requester")
	require.NoError(t, err)
	assert.NotNil(t, skeleton)
}
