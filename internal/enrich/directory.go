package enrich

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/blackmichael/bluesky-feedgen/internal/domain"
	"golang.org/x/time/rate"
)

// staleAfter is how long enriched profile data stays fresh. The worker
// re-checks this before every upstream call, so an author that was refreshed
// while queued is skipped.
const staleAfter = 24 * time.Hour

// Directory refreshes author profiles in the background. A pending set
// deduplicates enqueues so bursty activity from one author costs at most one
// upstream lookup, and a rate limiter spaces the lookups out.
type Directory struct {
	store    domain.UserStore
	profiles domain.ProfileDirectory
	limiter  *rate.Limiter
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]struct{}
	queue   chan string
}

// NewDirectory creates a Directory refreshing at most rps profiles per
// second.
func NewDirectory(store domain.UserStore, profiles domain.ProfileDirectory, rps float64, queueSize int, logger *slog.Logger) *Directory {
	return &Directory{
		store:    store,
		profiles: profiles,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		logger:   logger,
		pending:  make(map[string]struct{}),
		queue:    make(chan string, queueSize),
	}
}

// NotifyAuthor enqueues a refresh for the DID unless one is already
// pending. Never blocks: when the queue is full the notification is dropped
// and the author is retried the next time they are seen.
func (d *Directory) NotifyAuthor(did string) {
	d.mu.Lock()
	if _, exists := d.pending[did]; exists {
		d.mu.Unlock()
		return
	}
	d.pending[did] = struct{}{}
	d.mu.Unlock()

	select {
	case d.queue <- did:
	default:
		d.remove(did)
	}
}

// Run processes refresh jobs until ctx is cancelled. An in-flight refresh
// always completes before the loop exits.
func (d *Directory) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case did := <-d.queue:
			d.refresh(ctx, did)
		}
	}
}

func (d *Directory) refresh(ctx context.Context, did string) {
	d.remove(did)

	if err := d.limiter.Wait(ctx); err != nil {
		return
	}

	user, err := d.store.GetUser(ctx, did)
	if err != nil {
		if !errors.Is(err, domain.ErrProfileNotFound) {
			d.logger.Error("load user for enrichment failed", "did", did, "error", err)
		}
		return
	}

	now := time.Now().UTC()
	if user.LastUpdate != nil && now.Sub(*user.LastUpdate) < staleAfter {
		return
	}

	profile, err := d.profiles.GetProfile(ctx, did)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			// The upstream account is gone; drop the local row rather
			// than retrying forever.
			if err := d.store.DeleteUser(ctx, did); err != nil {
				d.logger.Error("delete vanished user failed", "did", did, "error", err)
			}
			return
		}
		// Transient: retried when the author is next enqueued.
		d.logger.Warn("profile refresh failed", "did", did, "error", err)
		return
	}

	if err := d.store.UpdateUserProfile(ctx, did, profile, now); err != nil {
		d.logger.Error("store profile failed", "did", did, "error", err)
	}
}

func (d *Directory) remove(did string) {
	d.mu.Lock()
	delete(d.pending, did)
	d.mu.Unlock()
}
