package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	// ErrTransitionConflict means the compare-and-set on the status column
	// matched no document: another writer already moved the booking out of the
	// expected state. Callers inspect the current state and usually no-op.
	ErrTransitionConflict = errors.New("booking status changed concurrently")

	ErrSlotConflict = errors.New("property slot already booked")
)
