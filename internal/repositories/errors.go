package repositories

import "errors"

// Sentinel errors shared by all repository implementations so callers can
// classify failures without matching on message text.
var (
	ErrNotFound = errors.New("record not found")

	// ErrPaymentFinalized is returned when a status transition is attempted
	// against a payment that already reached a terminal status.
	ErrPaymentFinalized = errors.New("payment already finalized")
)
