package ingest

import (
	"context"
	"log/slog"
	"sync"

	"github.com/blackmichael/bluesky-feedgen/internal/domain"
)

// Classifier decides the language tags for a post's text.
type Classifier interface {
	Detect(text string, declared []string) []string
}

// AuthorNotifier receives the DIDs of content authors for background
// profile enrichment.
type AuthorNotifier interface {
	NotifyAuthor(did string)
}

// Pool is the bounded-queue ingestion worker pool. Each queued batch is
// delivered to exactly one worker; workers keep a private micro-batch of
// classified posts that is flushed in one transaction once it crosses the
// flush threshold.
type Pool struct {
	queue          chan *domain.EventBatch
	store          domain.IngestStore
	classifier     Classifier
	authors        AuthorNotifier
	workers        int
	flushThreshold int
	logger         *slog.Logger

	wg sync.WaitGroup
}

// PoolOptions configures a Pool.
type PoolOptions struct {
	Workers        int
	QueueSize      int
	FlushThreshold int
}

// NewPool creates the pool. The authors notifier may be nil.
func NewPool(store domain.IngestStore, classifier Classifier, authors AuthorNotifier, opts PoolOptions, logger *slog.Logger) *Pool {
	return &Pool{
		queue:          make(chan *domain.EventBatch, opts.QueueSize),
		store:          store,
		classifier:     classifier,
		authors:        authors,
		workers:        opts.Workers,
		flushThreshold: opts.FlushThreshold,
		logger:         logger,
	}
}

// Enqueue hands a batch to the pool, blocking while the queue is full.
func (p *Pool) Enqueue(ctx context.Context, batch *domain.EventBatch) error {
	select {
	case p.queue <- batch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the workers and blocks until ctx is cancelled and all workers
// have drained their buffers.
func (p *Pool) Run(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.runWorker(ctx, id)
		}(i)
	}
	p.wg.Wait()
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	logger := p.logger.With("worker", id)
	var buffer []domain.PostEvent

	flush := func() {
		if len(buffer) == 0 {
			return
		}
		// A failed flush keeps the buffer for the next attempt; success
		// is the only point at which it clears.
		if err := p.store.FlushPosts(ctx, buffer); err != nil {
			logger.Error("post flush failed", "posts", len(buffer), "error", err)
			flushFailures.Inc()
			return
		}
		postsIndexed.Add(float64(len(buffer)))
		buffer = buffer[:0]
	}

	for {
		select {
		case <-ctx.Done():
			// Final flush with a fresh context so shutdown does not
			// drop the in-flight micro-batch.
			if len(buffer) > 0 {
				if err := p.store.FlushPosts(context.WithoutCancel(ctx), buffer); err != nil {
					logger.Error("final post flush failed", "posts", len(buffer), "error", err)
				}
			}
			return
		case batch := <-p.queue:
			if err := p.processBatch(ctx, batch, &buffer); err != nil {
				// The batch is dropped, not retried. Buffered posts
				// survive for the next flush attempt.
				logger.Error("batch dropped", "size", batch.Size(), "error", err)
				batchesFailed.Inc()
				continue
			}
			batchesProcessed.Inc()
			if len(buffer) >= p.flushThreshold {
				flush()
			}
		}
	}
}

func (p *Pool) processBatch(ctx context.Context, batch *domain.EventBatch, buffer *[]domain.PostEvent) error {
	// Deletions are applied immediately, never buffered.
	if err := p.store.DeletePosts(ctx, batch.DeletedPostURIs); err != nil {
		return err
	}
	if err := p.store.DeleteInteractions(ctx, batch.DeletedInteractionURIs); err != nil {
		return err
	}

	for _, ev := range batch.CreatedPosts {
		ev.Langs = p.classifier.Detect(ev.Text, ev.Langs)
		*buffer = append(*buffer, ev)
		if p.authors != nil {
			p.authors.NotifyAuthor(ev.AuthorDID)
		}
	}

	if err := p.store.CreateInteractions(ctx, batch.CreatedInteractions); err != nil {
		return err
	}
	interactionsIndexed.Add(float64(len(batch.CreatedInteractions)))
	return nil
}
