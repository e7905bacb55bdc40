package model

import (
	"time"

	"github.com/google/uuid"
)

// IDGenerator mints identifiers for Pending Exports and attribute changes.
// Implemented by UUIDv7Generator (production) and testutil.SequentialIDs (tests).
type IDGenerator interface {
	NewID() uuid.UUID
}

// UUIDv7Generator generates time-sortable UUIDv7 identifiers.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// NewID creates a new UUIDv7.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) NewID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// Clock supplies timestamps for creation and export-attempt bookkeeping.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
