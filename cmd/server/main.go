package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blackmichael/bluesky-feedgen/internal/bluesky"
	"github.com/blackmichael/bluesky-feedgen/internal/config"
	"github.com/blackmichael/bluesky-feedgen/internal/enrich"
	"github.com/blackmichael/bluesky-feedgen/internal/feeds"
	"github.com/blackmichael/bluesky-feedgen/internal/firehose"
	"github.com/blackmichael/bluesky-feedgen/internal/httpserver"
	"github.com/blackmichael/bluesky-feedgen/internal/ingest"
	"github.com/blackmichael/bluesky-feedgen/internal/lang"
	"github.com/blackmichael/bluesky-feedgen/internal/retention"
	"github.com/blackmichael/bluesky-feedgen/internal/storage"
)

const (
	followCacheSize = 1024
	followCacheTTL  = 5 * time.Minute
	enrichQueueSize = 1024
	cacheFetchLimit = 500
	sweepInterval   = 24 * time.Hour
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := storage.Open(cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()
	logger.Info("connected to database")

	// Upstream AppView client. Login is optional; unauthenticated requests
	// work for public profile and follow lookups but are rate limited harder.
	client := bluesky.NewClient("")
	if cfg.BlueskyHandle != "" && cfg.BlueskyAppPassword != "" {
		if err := client.Login(context.Background(), cfg.BlueskyHandle, cfg.BlueskyAppPassword); err != nil {
			return fmt.Errorf("bluesky login: %w", err)
		}
		logger.Info("authenticated with bluesky", "did", client.DID())
	}

	classifier := lang.NewClassifier(lang.NewLinguaDetector())
	directory := enrich.NewDirectory(store, client, cfg.EnrichmentPerSecond, enrichQueueSize, logger)

	pool := ingest.NewPool(store, classifier, directory, ingest.PoolOptions{
		Workers:        cfg.IngestWorkers,
		QueueSize:      cfg.IngestQueueSize,
		FlushThreshold: cfg.FlushThreshold,
	}, logger)

	followGraph := feeds.NewCachedFollowGraph(client, followCacheSize, followCacheTTL, cfg.FollowsTimeout)

	topAccounts := feeds.NewTopAccountsFeed(cfg.TopAccountsFeedURI, "es", cfg.MinFollowers, cfg.MinLikes, store, store)

	var algos []feeds.Algorithm
	for _, lf := range []struct {
		uri  string
		code string
	}{
		{cfg.SpanishFeedURI, "es"},
		{cfg.PortugueseFeedURI, "pt"},
		{cfg.CatalanFeedURI, "ca"},
		{cfg.BasqueFeedURI, "eu"},
	} {
		if lf.uri == "" {
			continue
		}
		algos = append(algos, feeds.NewLanguageFeed(lf.uri, lf.code, store))
	}
	if cfg.TopAccountsFeedURI != "" {
		algos = append(algos, topAccounts)
	}
	if cfg.FollowingPlusFeedURI != "" {
		algos = append(algos, feeds.NewFollowingPlusFeed(cfg.FollowingPlusFeedURI, cfg.MinLikes, store, followGraph))
	}
	if cfg.DiscoverFeedURI != "" {
		algos = append(algos, feeds.NewDiscoverFeed(cfg.DiscoverFeedURI, cfg.MinLikes, store, followGraph))
	}

	registry, err := feeds.NewRegistry(algos...)
	if err != nil {
		return fmt.Errorf("build feed registry: %w", err)
	}

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	poolDone := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(poolDone)
	}()
	go directory.Run(ctx)

	// Start the firehose subscriber in the background
	subscriber := firehose.NewSubscriber(cfg.FirehoseURL, pool, store, logger)
	go func() {
		if err := subscriber.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("firehose subscriber exited with error", "error", err)
		}
	}()

	if cfg.TopAccountsFeedURI != "" {
		populator := feeds.NewCachePopulator(topAccounts, store, cfg.CacheInterval, cacheFetchLimit, logger)
		go populator.Run(ctx)
	}

	sweeper := retention.NewSweeper(store, sweepInterval, cfg.RetentionHorizon, logger)
	go sweeper.Run(ctx)

	// Start the HTTP server
	server := httpserver.NewServer(cfg, registry, logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited with error", "error", err)
		}
	}()

	logger.Info("server started", "port", cfg.Port, "hostname", cfg.Hostname, "feeds", registry.URIs())

	// Wait for shutdown signal
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	// The ingest workers flush their buffered micro-batches on exit; wait
	// for them within the shutdown window so the final flush is not cut off.
	select {
	case <-poolDone:
	case <-shutdownCtx.Done():
		logger.Warn("timed out waiting for ingest workers to drain")
	}

	return nil
}
