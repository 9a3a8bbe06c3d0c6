package ingest

import (
	"time"

	"github.com/blackmichael/bluesky-feedgen/internal/domain"
)

// AT Proto collection NSIDs this pipeline understands.
const (
	CollectionPost   = "app.bsky.feed.post"
	CollectionLike   = "app.bsky.feed.like"
	CollectionRepost = "app.bsky.feed.repost"
)

// RawOp is one operation record as it arrives from the firehose, before
// normalization.
type RawOp struct {
	Collection string
	Operation  string // "create" or "delete"
	URI        string
	CID        string
	AuthorDID  string

	// Post record fields.
	Text        string
	Langs       []string
	ReplyParent *string
	ReplyRoot   *string

	// Like/repost subject.
	SubjectURI string
	SubjectCID string

	// CreatedAt is the record's self-reported creation time, RFC3339.
	CreatedAt string
}

// NormalizeOp converts a raw operation into a uniform event and appends it
// to the batch. Returns false for operations the pipeline does not index.
func NormalizeOp(batch *domain.EventBatch, op RawOp) bool {
	switch op.Collection {
	case CollectionPost:
		switch op.Operation {
		case "create":
			batch.CreatedPosts = append(batch.CreatedPosts, domain.PostEvent{
				URI:         op.URI,
				CID:         op.CID,
				AuthorDID:   op.AuthorDID,
				Text:        op.Text,
				Langs:       op.Langs,
				ReplyParent: op.ReplyParent,
				ReplyRoot:   op.ReplyRoot,
				CreatedAt:   parseRecordTime(op.CreatedAt),
			})
		case "delete":
			batch.DeletedPostURIs = append(batch.DeletedPostURIs, op.URI)
		default:
			return false
		}
		return true

	case CollectionLike, CollectionRepost:
		kind := domain.InteractionLike
		if op.Collection == CollectionRepost {
			kind = domain.InteractionRepost
		}
		switch op.Operation {
		case "create":
			if op.SubjectURI == "" {
				return false
			}
			batch.CreatedInteractions = append(batch.CreatedInteractions, domain.InteractionEvent{
				URI:        op.URI,
				CID:        op.CID,
				AuthorDID:  op.AuthorDID,
				SubjectURI: op.SubjectURI,
				SubjectCID: op.SubjectCID,
				Type:       kind,
				CreatedAt:  parseRecordTime(op.CreatedAt),
			})
		case "delete":
			batch.DeletedInteractionURIs = append(batch.DeletedInteractionURIs, op.URI)
		default:
			return false
		}
		return true
	}
	return false
}

// parseRecordTime tolerates the timestamp formats seen in the wild; a
// missing or unparseable value stays nil rather than failing the event.
func parseRecordTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
