package domain

import "errors"

var (
	// ErrMalformedCursor indicates a pagination token that is neither the
	// terminal sentinel nor a valid "<millis>::<tie>" pair.
	ErrMalformedCursor = errors.New("malformed cursor")

	// ErrUnknownFeed indicates a getFeedSkeleton request for a feed URI that
	// is not in the registry.
	ErrUnknownFeed = errors.New("unknown feed")

	// ErrAuthRequired indicates a personalized feed was requested without a
	// verifiable requester identity.
	ErrAuthRequired = errors.New("authentication required")

	// ErrProfileNotFound indicates the upstream account no longer exists.
	ErrProfileNotFound = errors.New("profile not found")
)
