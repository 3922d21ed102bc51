package trip

import (
	"context"

	"github.com/google/uuid"
)

// Filter narrows trip searches.
type Filter struct {
	Origin      string
	Destination string
	// Departure restricts results by time of day: "", "morning" or "afternoon".
	Departure string
}

// TripRepository defines persistence operations for trips.
type TripRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Trip, error)
	List(ctx context.Context, filter Filter) ([]*Trip, error)
	Save(ctx context.Context, trip *Trip) error
	Update(ctx context.Context, trip *Trip) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Ledger owns the authoritative available-seat count per trip. Reserve and
// Release are the only operations that may move the counter, and each must
// be atomic with respect to concurrent calls for the same trip.
type Ledger interface {
	// Reserve decrements availability by seatCount, failing with an
	// OversoldError when fewer seats remain. Returns the new count.
	Reserve(ctx context.Context, tripID uuid.UUID, seatCount int) (int, error)

	// Release increments availability by seatCount, capped at the trip's
	// total capacity. Used on cancellation and as the compensating action
	// when persistence fails after a reservation.
	Release(ctx context.Context, tripID uuid.UUID, seatCount int) error

	// Reconcile recomputes availability from the seats held by confirmed
	// bookings and returns the corrected count. Idempotent, so it doubles
	// as the retry when a Release fails ambiguously.
	Reconcile(ctx context.Context, tripID uuid.UUID) (int, error)
}
