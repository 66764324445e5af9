package errors

import "errors"

var (
	ErrNotFound = errors.New("payment not found")

	ErrInvalidID = errors.New("invalid payment ID format")

	// ErrDuplicateProvenance means evidence with the same provenance id was
	// already ingested. Re-delivery is expected; callers no-op silently.
	ErrDuplicateProvenance = errors.New("payment evidence already ingested")
)
