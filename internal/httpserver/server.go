package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/blackmichael/bluesky-feedgen/internal/config"
	"github.com/blackmichael/bluesky-feedgen/internal/domain"
	"github.com/blackmichael/bluesky-feedgen/internal/feeds"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultLimit = 20

// Server is the HTTP server that serves feed generator XRPC endpoints.
type Server struct {
	cfg        *config.Config
	registry   *feeds.Registry
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates a new HTTP server over the given algorithm registry.
func NewServer(cfg *config.Config, registry *feeds.Registry, logger *slog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		registry: registry,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/did.json", s.handleDIDDoc)
	mux.HandleFunc("GET /xrpc/app.bsky.feed.describeFeedGenerator", s.handleDescribeFeedGenerator)
	mux.HandleFunc("GET /xrpc/app.bsky.feed.getFeedSkeleton", s.handleGetFeedSkeleton)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      withLogging(logger, mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDIDDoc(w http.ResponseWriter, _ *http.Request) {
	if !strings.HasSuffix(s.cfg.ServiceDID, s.cfg.Hostname) {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	doc := map[string]any{
		"@context": []string{"https://www.w3.org/ns/did/v1"},
		"id":       s.cfg.ServiceDID,
		"service": []map[string]any{
			{
				"id":              "#bsky_fg",
				"type":            "BskyFeedGenerator",
				"serviceEndpoint": fmt.Sprintf("https://%s", s.cfg.Hostname),
			},
		},
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDescribeFeedGenerator(w http.ResponseWriter, _ *http.Request) {
	uris := s.registry.URIs()
	resp := domain.GeneratorDescription{
		DID:   s.cfg.ServiceDID,
		Feeds: make([]domain.FeedDescription, 0, len(uris)),
	}
	for _, uri := range uris {
		resp.Feeds = append(resp.Feeds, domain.FeedDescription{URI: uri})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetFeedSkeleton(w http.ResponseWriter, r *http.Request) {
	feedURI := r.URL.Query().Get("feed")
	if feedURI == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "feed parameter is required")
		return
	}

	limit := defaultLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > 100 {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	cursor := r.URL.Query().Get("cursor")

	requesterDID, err := requesterFromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "AuthenticationFailed", "invalid authorization token")
		return
	}

	skeleton, err := s.registry.GetFeedSkeleton(r.Context(), feedURI, cursor, limit, requesterDID)
	if err != nil {
		s.writeSkeletonError(w, feedURI, cursor, err)
		return
	}

	resp := map[string]any{
		"cursor": skeleton.Cursor,
		"feed":   skeleton.Posts,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeSkeletonError(w http.ResponseWriter, feedURI, cursor string, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownFeed):
		writeError(w, http.StatusBadRequest, "UnknownFeed", "unsupported algorithm")
	case errors.Is(err, domain.ErrMalformedCursor):
		writeError(w, http.StatusBadRequest, "InvalidRequest", "malformed cursor")
	case errors.Is(err, domain.ErrAuthRequired):
		writeError(w, http.StatusUnauthorized, "AuthenticationRequired", "this feed requires authentication")
	default:
		s.logger.Error("failed to get feed skeleton",
			"feed", feedURI,
			"cursor", cursor,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to get feed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
