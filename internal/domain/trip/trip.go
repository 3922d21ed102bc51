package trip

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Alu2004/swift-bus-bookings/internal/domain"
)

// Trip is the aggregate root for one scheduled bus departure.
//
// availableSeats is a denormalized cache of "total minus confirmed seats".
// It is only ever mutated through the Ledger; the seat map derived from
// confirmed bookings remains the ground truth.
type Trip struct {
	id             uuid.UUID
	busNumber      string
	origin         string
	destination    string
	departureAt    time.Time
	arrivalAt      time.Time
	pricePerSeat   int64
	totalSeats     int
	availableSeats int
	uncertain      bool

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewTrip creates a Trip with full availability.
func NewTrip(
	busNumber, origin, destination string,
	departureAt, arrivalAt time.Time,
	pricePerSeat int64,
	totalSeats int,
	uncertain bool,
) (*Trip, error) {
	if busNumber == "" {
		return nil, domain.NewValidationError("bus number is required")
	}
	if origin == "" {
		return nil, domain.NewValidationError("origin is required")
	}
	if destination == "" {
		return nil, domain.NewValidationError("destination is required")
	}
	if !arrivalAt.After(departureAt) {
		return nil, domain.NewValidationError("arrival must be after departure")
	}
	if pricePerSeat <= 0 {
		return nil, domain.NewValidationError("price per seat must be positive")
	}
	if totalSeats <= 0 {
		return nil, domain.NewValidationError("total seats must be positive")
	}

	now := time.Now().UTC()
	return &Trip{
		id:             uuid.New(),
		busNumber:      busNumber,
		origin:         origin,
		destination:    destination,
		departureAt:    departureAt,
		arrivalAt:      arrivalAt,
		pricePerSeat:   pricePerSeat,
		totalSeats:     totalSeats,
		availableSeats: totalSeats,
		uncertain:      uncertain,
		version:        1,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// Reconstruct rebuilds a Trip from persistence data (no validation).
func Reconstruct(
	id uuid.UUID,
	busNumber, origin, destination string,
	departureAt, arrivalAt time.Time,
	pricePerSeat int64,
	totalSeats, availableSeats int,
	uncertain bool,
	version int64,
	createdAt, updatedAt time.Time,
) *Trip {
	return &Trip{
		id:             id,
		busNumber:      busNumber,
		origin:         origin,
		destination:    destination,
		departureAt:    departureAt,
		arrivalAt:      arrivalAt,
		pricePerSeat:   pricePerSeat,
		totalSeats:     totalSeats,
		availableSeats: availableSeats,
		uncertain:      uncertain,
		version:        version,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}

// --- Getters ---

func (t *Trip) ID() uuid.UUID           { return t.id }
func (t *Trip) BusNumber() string       { return t.busNumber }
func (t *Trip) Origin() string          { return t.origin }
func (t *Trip) Destination() string     { return t.destination }
func (t *Trip) DepartureAt() time.Time  { return t.departureAt }
func (t *Trip) ArrivalAt() time.Time    { return t.arrivalAt }
func (t *Trip) PricePerSeat() int64     { return t.pricePerSeat }
func (t *Trip) TotalSeats() int         { return t.totalSeats }
func (t *Trip) AvailableSeats() int     { return t.availableSeats }
func (t *Trip) Uncertain() bool         { return t.uncertain }
func (t *Trip) Version() int64          { return t.version }
func (t *Trip) CreatedAt() time.Time    { return t.createdAt }
func (t *Trip) UpdatedAt() time.Time    { return t.updatedAt }

// Duration returns the scheduled travel time.
func (t *Trip) Duration() time.Duration {
	return t.arrivalAt.Sub(t.departureAt)
}

// DepartsInMorning reports whether the trip departs before noon.
func (t *Trip) DepartsInMorning() bool {
	return t.departureAt.Hour() < 12
}

// --- Behavior ---

// UpdateDetails applies partial updates to schedule and pricing fields.
func (t *Trip) UpdateDetails(
	busNumber, origin, destination string,
	departureAt, arrivalAt *time.Time,
	pricePerSeat int64,
	uncertain *bool,
) error {
	if busNumber != "" {
		t.busNumber = busNumber
	}
	if origin != "" {
		t.origin = origin
	}
	if destination != "" {
		t.destination = destination
	}
	if departureAt != nil {
		t.departureAt = *departureAt
	}
	if arrivalAt != nil {
		t.arrivalAt = *arrivalAt
	}
	if !t.arrivalAt.After(t.departureAt) {
		return domain.NewValidationError("arrival must be after departure")
	}
	if pricePerSeat > 0 {
		t.pricePerSeat = pricePerSeat
	}
	if uncertain != nil {
		t.uncertain = *uncertain
	}
	t.version++
	t.updatedAt = time.Now().UTC()
	return nil
}

// Resize changes the seat capacity, re-deriving availability from the
// seats currently committed by confirmed bookings. Shrinking is rejected
// when it would strand a committed seat outside [1, totalSeats], so
// available never goes negative and no confirmed booking holds a seat the
// bus no longer has. Part of the same edit as UpdateDetails, which owns
// the version bump.
func (t *Trip) Resize(totalSeats int, committedSeats []int) error {
	if totalSeats <= 0 {
		return domain.NewValidationError("total seats must be positive")
	}
	if len(committedSeats) > totalSeats {
		return domain.NewValidationError(fmt.Sprintf(
			"cannot reduce capacity to %d: %d seats already booked", totalSeats, len(committedSeats)))
	}
	for _, s := range committedSeats {
		if s > totalSeats {
			return domain.NewValidationError(fmt.Sprintf(
				"cannot reduce capacity to %d: seat %d is already booked", totalSeats, s))
		}
	}
	t.totalSeats = totalSeats
	t.availableSeats = totalSeats - len(committedSeats)
	t.updatedAt = time.Now().UTC()
	return nil
}
