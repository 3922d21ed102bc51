package booking

import (
	"context"

	"github.com/google/uuid"
)

// BookingRepository defines the persistence contract for booking aggregates.
type BookingRepository interface {
	// FindByID retrieves a booking by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindByCode retrieves a booking by its human-readable booking code.
	FindByCode(ctx context.Context, code string) (*Booking, error)

	// FindByPassengerID retrieves bookings belonging to a passenger with pagination.
	FindByPassengerID(ctx context.Context, passengerID uuid.UUID, page, limit int) ([]*Booking, int64, error)

	// ListConfirmedSeatNumbers returns the union of seat numbers held by all
	// confirmed bookings for the trip. This is the ground truth the seat map
	// is rebuilt from.
	ListConfirmedSeatNumbers(ctx context.Context, tripID uuid.UUID) ([]int, error)

	// ListAll retrieves all bookings with pagination (admin).
	ListAll(ctx context.Context, page, limit int) ([]*Booking, int64, error)

	// CountByStatus returns booking counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// Save persists a new booking.
	Save(ctx context.Context, booking *Booking) error

	// Update persists changes to an existing booking with optimistic locking.
	Update(ctx context.Context, booking *Booking) error
}
