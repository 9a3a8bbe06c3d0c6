package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/blackmichael/bluesky-feedgen/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	mu           sync.Mutex
	flushes      [][]domain.PostEvent
	deletedPosts []string
	interactions []domain.InteractionEvent
	flushErr     error
}

func (s *recordingStore) FlushPosts(_ context.Context, events []domain.PostEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flushErr != nil {
		return s.flushErr
	}
	batch := make([]domain.PostEvent, len(events))
	copy(batch, events)
	s.flushes = append(s.flushes, batch)
	return nil
}

func (s *recordingStore) DeletePosts(_ context.Context, uris []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletedPosts = append(s.deletedPosts, uris...)
	return nil
}

func (s *recordingStore) CreateInteractions(_ context.Context, events []domain.InteractionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interactions = append(s.interactions, events...)
	return nil
}

func (s *recordingStore) DeleteInteractions(_ context.Context, _ []string) error { return nil }

func (s *recordingStore) EnsureUsers(_ context.Context, _ []string) error { return nil }

func (s *recordingStore) flushed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, f := range s.flushes {
		total += len(f)
	}
	return total
}

type fixedClassifier struct{ langs []string }

func (c *fixedClassifier) Detect(_ string, _ []string) []string { return c.langs }

type recordingNotifier struct {
	mu   sync.Mutex
	dids []string
}

func (n *recordingNotifier) NotifyAuthor(did string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dids = append(n.dids, did)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestPoolFlushesAtThreshold(t *testing.T) {
	store := &recordingStore{}
	notifier := &recordingNotifier{}
	pool := NewPool(store, &fixedClassifier{langs: []string{"es"}}, notifier, PoolOptions{
		Workers:        1,
		QueueSize:      8,
		FlushThreshold: 2,
	}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	require.NoError(t, pool.Enqueue(ctx, &domain.EventBatch{
		CreatedPosts: []domain.PostEvent{{URI: "at://p1", AuthorDID: "did:plc:a", Text: "uno"}},
	}))
	require.NoError(t, pool.Enqueue(ctx, &domain.EventBatch{
		CreatedPosts: []domain.PostEvent{{URI: "at://p2", AuthorDID: "did:plc:b", Text: "dos"}},
	}))

	waitFor(t, func() bool { return store.flushed() == 2 })

	store.mu.Lock()
	require.Len(t, store.flushes, 1, "both posts flush in one transaction")
	assert.Equal(t, []string{"es"}, store.flushes[0][0].Langs, "classifier output is persisted")
	store.mu.Unlock()

	notifier.mu.Lock()
	assert.ElementsMatch(t, []string{"did:plc:a", "did:plc:b"}, notifier.dids)
	notifier.mu.Unlock()

	cancel()
	<-done
}

func TestPoolFinalFlushOnShutdown(t *testing.T) {
	store := &recordingStore{}
	notifier := &recordingNotifier{}
	pool := NewPool(store, &fixedClassifier{}, notifier, PoolOptions{
		Workers:        1,
		QueueSize:      8,
		FlushThreshold: 100,
	}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	require.NoError(t, pool.Enqueue(ctx, &domain.EventBatch{
		CreatedPosts: []domain.PostEvent{{URI: "at://p1", AuthorDID: "did:plc:a"}},
	}))

	// Wait until the worker has buffered the post; below the threshold it
	// only flushes on shutdown.
	waitFor(t, func() bool {
		notifier.mu.Lock()
		defer notifier.mu.Unlock()
		return len(notifier.dids) == 1
	})
	assert.Zero(t, store.flushed())

	cancel()
	<-done

	assert.Equal(t, 1, store.flushed())
}

func TestPoolDeletesAreImmediate(t *testing.T) {
	store := &recordingStore{}
	pool := NewPool(store, &fixedClassifier{}, nil, PoolOptions{
		Workers:        1,
		QueueSize:      8,
		FlushThreshold: 100,
	}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	require.NoError(t, pool.Enqueue(ctx, &domain.EventBatch{
		DeletedPostURIs: []string{"at://p1"},
		CreatedInteractions: []domain.InteractionEvent{
			{URI: "at://like1", AuthorDID: "did:plc:a", SubjectURI: "at://p2"},
		},
	}))

	waitFor(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.deletedPosts) == 1 && len(store.interactions) == 1
	})

	cancel()
	<-done
}

func TestPoolKeepsBufferOnFlushFailure(t *testing.T) {
	store := &recordingStore{flushErr: errors.New("db down")}
	pool := NewPool(store, &fixedClassifier{}, nil, PoolOptions{
		Workers:        1,
		QueueSize:      8,
		FlushThreshold: 1,
	}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	require.NoError(t, pool.Enqueue(ctx, &domain.EventBatch{
		CreatedPosts: []domain.PostEvent{{URI: "at://p1", AuthorDID: "did:plc:a"}},
	}))

	// Let the failed flush happen, then heal the store. The buffered post
	// flushes on the next batch.
	time.Sleep(50 * time.Millisecond)
	store.mu.Lock()
	store.flushErr = nil
	store.mu.Unlock()

	require.NoError(t, pool.Enqueue(ctx, &domain.EventBatch{
		CreatedPosts: []domain.PostEvent{{URI: "at://p2", AuthorDID: "did:plc:b"}},
	}))

	waitFor(t, func() bool { return store.flushed() == 2 })

	cancel()
	<-done
}
