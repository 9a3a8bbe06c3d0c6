package firehose

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/blackmichael/bluesky-feedgen/internal/domain"
	"github.com/blackmichael/bluesky-feedgen/internal/ingest"
	"github.com/gorilla/websocket"
)

const (
	cursorServiceName  = "jetstream"
	cursorSaveInterval = 5 * time.Second

	// batchMaxOps and batchMaxAge bound how many operations accumulate
	// before the batch is handed to the ingest queue.
	batchMaxOps = 50
	batchMaxAge = 500 * time.Millisecond
)

// wantedCollections is the set of AT Proto collection NSIDs this subscriber
// requests from Jetstream.
var wantedCollections = []string{
	ingest.CollectionPost,
	ingest.CollectionLike,
	ingest.CollectionRepost,
}

// Sink receives accumulated event batches from the subscriber.
type Sink interface {
	Enqueue(ctx context.Context, batch *domain.EventBatch) error
}

// Subscriber connects to the Jetstream firehose, groups commit operations
// into batches, and feeds them to the ingestion queue.
type Subscriber struct {
	url     string
	sink    Sink
	cursors domain.SubscriptionStore
	logger  *slog.Logger
}

// NewSubscriber creates a new firehose subscriber.
func NewSubscriber(firehoseURL string, sink Sink, cursors domain.SubscriptionStore, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		url:     firehoseURL,
		sink:    sink,
		cursors: cursors,
		logger:  logger,
	}
}

// Start connects to the firehose and processes events until the context is
// cancelled. It automatically reconnects on transient errors.
func (s *Subscriber) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := s.subscribe(ctx); err != nil {
				s.logger.Error("firehose connection error, reconnecting", "error", err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(5 * time.Second):
					// backoff before reconnecting
				}
			}
		}
	}
}

func (s *Subscriber) buildURL(cursor int64) string {
	u, _ := url.Parse(s.url)
	q := u.Query()
	for _, c := range wantedCollections {
		q.Add("wantedCollections", c)
	}
	if cursor > 0 {
		q.Set("cursor", fmt.Sprintf("%d", cursor))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *Subscriber) subscribe(ctx context.Context) error {
	cursor, err := s.cursors.GetCursor(ctx, cursorServiceName)
	if err != nil {
		s.logger.Warn("failed to load cursor, starting from live", "error", err)
	}

	wsURL := s.buildURL(cursor)
	s.logger.Info("connecting to firehose", "url", wsURL)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial firehose: %w", err)
	}
	defer conn.Close()

	s.logger.Info("connected to firehose")

	var (
		latestCursor   int64
		eventsReceived int64
		opsBatched     int64
	)
	batch := &domain.EventBatch{}
	batchStarted := time.Now()
	lastCursorSave := time.Now()
	lastStatsLog := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		event, err := parseEvent(message)
		if err != nil {
			s.logger.Error("failed to parse event", "error", err)
			continue
		}

		eventsReceived++
		latestCursor = event.TimeUS

		if event.Kind == "commit" && event.Commit != nil {
			if event.Commit.Operation == "create" && event.Commit.Record == nil {
				continue
			}
			if ingest.NormalizeOp(batch, rawOp(event)) {
				opsBatched++
			}
		}

		if batch.Size() >= batchMaxOps || (batch.Size() > 0 && time.Since(batchStarted) >= batchMaxAge) {
			if err := s.sink.Enqueue(ctx, batch); err != nil {
				return fmt.Errorf("enqueue batch: %w", err)
			}
			batch = &domain.EventBatch{}
			batchStarted = time.Now()
		}

		// Log stats every 30 seconds
		if time.Since(lastStatsLog) >= 30*time.Second {
			s.logger.Info("firehose stats",
				"events_received", eventsReceived,
				"ops_batched", opsBatched,
			)
			lastStatsLog = time.Now()
		}

		// Periodically save cursor
		if time.Since(lastCursorSave) >= cursorSaveInterval {
			if err := s.cursors.UpdateCursor(ctx, cursorServiceName, latestCursor); err != nil {
				s.logger.Error("failed to save cursor", "error", err)
			} else {
				lastCursorSave = time.Now()
			}
		}
	}
}

// rawOp flattens a jetstream commit into the normalizer's input shape.
func rawOp(event *jetstreamEvent) ingest.RawOp {
	commit := event.Commit
	op := ingest.RawOp{
		Collection: commit.Collection,
		Operation:  commit.Operation,
		URI:        fmt.Sprintf("at://%s/%s/%s", event.DID, commit.Collection, commit.RKey),
		CID:        commit.CID,
		AuthorDID:  event.DID,
	}

	record := commit.Record
	if record == nil {
		return op
	}
	op.Text = record.Text
	op.Langs = record.Langs
	op.CreatedAt = record.CreatedAt
	if record.Reply != nil {
		parent := record.Reply.Parent.URI
		root := record.Reply.Root.URI
		if parent != "" {
			op.ReplyParent = &parent
		}
		if root != "" {
			op.ReplyRoot = &root
		}
	}
	if record.Subject != nil {
		op.SubjectURI = record.Subject.URI
		op.SubjectCID = record.Subject.CID
	}
	return op
}

func parseEvent(data []byte) (*jetstreamEvent, error) {
	var raw struct {
		DID    string          `json:"did"`
		TimeUS int64           `json:"time_us"`
		Kind   string          `json:"kind"`
		Commit json.RawMessage `json:"commit,omitempty"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}

	event := &jetstreamEvent{
		DID:    raw.DID,
		TimeUS: raw.TimeUS,
		Kind:   raw.Kind,
	}

	if raw.Kind == "commit" && len(raw.Commit) > 0 {
		var commit jetstreamCommit
		if err := json.Unmarshal(raw.Commit, &commit); err != nil {
			return nil, fmt.Errorf("unmarshal commit: %w", err)
		}
		event.Commit = &commit
	}

	return event, nil
}
