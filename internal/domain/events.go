package domain

import "time"

// PostEvent is a normalized post-create operation from the firehose.
type PostEvent struct {
	URI         string
	CID         string
	AuthorDID   string
	Text        string
	Langs       []string
	ReplyParent *string
	ReplyRoot   *string
	CreatedAt   *time.Time
}

// InteractionEvent is a normalized like or repost creation.
type InteractionEvent struct {
	URI        string
	CID        string
	AuthorDID  string
	SubjectURI string
	SubjectCID string
	Type       int
	CreatedAt  *time.Time
}

// EventBatch groups firehose operations by entity kind. One batch is owned
// by exactly one ingest worker.
type EventBatch struct {
	CreatedPosts           []PostEvent
	DeletedPostURIs        []string
	CreatedInteractions    []InteractionEvent
	DeletedInteractionURIs []string
}

// Size reports the total number of operations carried by the batch.
func (b *EventBatch) Size() int {
	return len(b.CreatedPosts) + len(b.DeletedPostURIs) +
		len(b.CreatedInteractions) + len(b.DeletedInteractionURIs)
}
