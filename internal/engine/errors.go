package engine

import "errors"

// Sentinel errors surfaced by the matching core. Handlers in internal/api
// map these to HTTP status codes; see internal/api/errors.go.
var (
	// ErrInvalidOrder covers price <= 0, amount <= 0, zero quantity and
	// unknown side.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrNotFound covers an unknown book or order id.
	ErrNotFound = errors.New("not found")

	// ErrConflict covers creating a book that already exists, or
	// mutating an order that is already terminal.
	ErrConflict = errors.New("conflict")

	// ErrInvalidFill indicates a broken matching invariant. It should be
	// unreachable on valid input; callers that see it have found a bug.
	ErrInvalidFill = errors.New("invalid fill")

	// ErrExecutionerFailure indicates a fill was matched locally but the
	// settlement submission failed after exhausting retries. Book state
	// is not rolled back.
	ErrExecutionerFailure = errors.New("executioner submission failed")

	// ErrSnapshotFailure indicates a snapshot write failed. Non-fatal.
	ErrSnapshotFailure = errors.New("snapshot failed")
)
