package feeds

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/blackmichael/bluesky-feedgen/internal/domain"
)

// CursorEOF is the terminal pagination sentinel. Requesting a feed with it
// always yields an empty page carrying the same sentinel.
const CursorEOF = "eof"

// EncodeCursor renders a pagination position as "<epochMillis>::<tie>".
func EncodeCursor(t time.Time, tie string) string {
	return fmt.Sprintf("%d::%s", t.UnixMilli(), tie)
}

// DecodeCursor parses a pagination token. It returns a nil filter for an
// empty cursor (first page), eof=true for the terminal sentinel, and
// ErrMalformedCursor for anything else that is not "<epochMillis>::<tie>".
func DecodeCursor(cursor string) (filter *domain.CursorFilter, eof bool, err error) {
	if cursor == "" {
		return nil, false, nil
	}
	if cursor == CursorEOF {
		return nil, true, nil
	}

	parts := strings.Split(cursor, "::")
	if len(parts) != 2 {
		return nil, false, fmt.Errorf("%w: %q", domain.ErrMalformedCursor, cursor)
	}
	millis, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %q", domain.ErrMalformedCursor, cursor)
	}

	return &domain.CursorFilter{
		Ts:  time.UnixMilli(millis).UTC(),
		Tie: parts[1],
	}, false, nil
}

// nextCursor encodes the position after the last merged row, or the terminal
// sentinel when the page came back empty.
func nextCursor(rows []domain.FeedRow) string {
	if len(rows) == 0 {
		return CursorEOF
	}
	last := rows[len(rows)-1]
	return EncodeCursor(last.OrderTime, last.TieCID)
}

func emptySkeleton() *domain.FeedSkeleton {
	return &domain.FeedSkeleton{
		Cursor: CursorEOF,
		Posts:  []domain.SkeletonPost{},
	}
}
