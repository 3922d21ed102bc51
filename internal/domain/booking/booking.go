package booking

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/mail"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Alu2004/swift-bus-bookings/internal/domain"
)

const bookingCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Booking is the aggregate root for a passenger's claim on a set of seats
// for one trip.
type Booking struct {
	id             uuid.UUID
	bookingCode    string
	tripID         uuid.UUID
	passengerID    uuid.UUID
	passengerName  string
	passengerEmail string
	passengerPhone string
	seatNumbers    []int
	pricePerSeat   int64
	totalAmount    int64
	status         BookingStatus
	cancelledAt    *time.Time

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// generateBookingCode creates a booking code in the format "BB-XXXXXX".
func generateBookingCode() (string, error) {
	result := make([]byte, 6)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(bookingCodeChars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate booking code: %w", err)
		}
		result[i] = bookingCodeChars[n.Int64()]
	}
	return "BB-" + string(result), nil
}

// NewBooking creates a confirmed Booking. Seat numbers are stored sorted
// ascending; the total amount is derived from the seat count and the trip's
// price per seat at booking time.
func NewBooking(
	tripID, passengerID uuid.UUID,
	passengerName, passengerEmail, passengerPhone string,
	seatNumbers []int,
	pricePerSeat int64,
) (*Booking, error) {
	if tripID == uuid.Nil {
		return nil, domain.NewValidationError("trip ID is required")
	}
	if passengerID == uuid.Nil {
		return nil, domain.NewValidationError("passenger ID is required")
	}
	if passengerName == "" {
		return nil, domain.NewValidationError("passenger name is required")
	}
	if _, err := mail.ParseAddress(passengerEmail); err != nil {
		return nil, domain.NewValidationError("a valid passenger email is required")
	}
	if passengerPhone == "" {
		return nil, domain.NewValidationError("passenger phone is required")
	}
	if len(seatNumbers) == 0 {
		return nil, domain.NewValidationError("at least one seat must be selected")
	}
	if pricePerSeat <= 0 {
		return nil, domain.NewValidationError("price per seat must be positive")
	}

	seats := make([]int, len(seatNumbers))
	copy(seats, seatNumbers)
	sort.Ints(seats)
	for i := 1; i < len(seats); i++ {
		if seats[i] == seats[i-1] {
			return nil, domain.NewValidationError("duplicate seat in selection")
		}
	}

	code, err := generateBookingCode()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Booking{
		id:             uuid.New(),
		bookingCode:    code,
		tripID:         tripID,
		passengerID:    passengerID,
		passengerName:  passengerName,
		passengerEmail: passengerEmail,
		passengerPhone: passengerPhone,
		seatNumbers:    seats,
		pricePerSeat:   pricePerSeat,
		totalAmount:    int64(len(seats)) * pricePerSeat,
		status:         StatusConfirmed,
		version:        1,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// Reconstruct rebuilds a Booking from persistence data (no validation).
func Reconstruct(
	id uuid.UUID,
	bookingCode string,
	tripID, passengerID uuid.UUID,
	passengerName, passengerEmail, passengerPhone string,
	seatNumbers []int,
	pricePerSeat, totalAmount int64,
	status BookingStatus,
	cancelledAt *time.Time,
	version int64,
	createdAt, updatedAt time.Time,
) *Booking {
	return &Booking{
		id:             id,
		bookingCode:    bookingCode,
		tripID:         tripID,
		passengerID:    passengerID,
		passengerName:  passengerName,
		passengerEmail: passengerEmail,
		passengerPhone: passengerPhone,
		seatNumbers:    seatNumbers,
		pricePerSeat:   pricePerSeat,
		totalAmount:    totalAmount,
		status:         status,
		cancelledAt:    cancelledAt,
		version:        version,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}

// --- Getters ---

func (b *Booking) ID() uuid.UUID           { return b.id }
func (b *Booking) BookingCode() string     { return b.bookingCode }
func (b *Booking) TripID() uuid.UUID       { return b.tripID }
func (b *Booking) PassengerID() uuid.UUID  { return b.passengerID }
func (b *Booking) PassengerName() string   { return b.passengerName }
func (b *Booking) PassengerEmail() string  { return b.passengerEmail }
func (b *Booking) PassengerPhone() string  { return b.passengerPhone }
func (b *Booking) PricePerSeat() int64     { return b.pricePerSeat }
func (b *Booking) TotalAmount() int64      { return b.totalAmount }
func (b *Booking) Status() BookingStatus   { return b.status }
func (b *Booking) CancelledAt() *time.Time { return b.cancelledAt }
func (b *Booking) Version() int64          { return b.version }
func (b *Booking) CreatedAt() time.Time    { return b.createdAt }
func (b *Booking) UpdatedAt() time.Time    { return b.updatedAt }

// SeatNumbers returns a copy of the booked seat numbers, ascending.
func (b *Booking) SeatNumbers() []int {
	seats := make([]int, len(b.seatNumbers))
	copy(seats, b.seatNumbers)
	return seats
}

// SeatCount returns the number of seats held by this booking.
func (b *Booking) SeatCount() int { return len(b.seatNumbers) }

// IsOwnedBy checks if the booking belongs to the given passenger.
func (b *Booking) IsOwnedBy(passengerID uuid.UUID) bool {
	return b.passengerID == passengerID
}

// --- Behavior ---

// Cancel transitions the booking from confirmed to cancelled.
func (b *Booking) Cancel() error {
	if !b.status.CanTransitionTo(StatusCancelled) {
		return domain.NewInvalidStateError(string(b.status), string(StatusCancelled))
	}
	now := time.Now().UTC()
	b.status = StatusCancelled
	b.cancelledAt = &now
	b.version++
	b.updatedAt = now
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
	b.updatedAt = time.Now().UTC()
}
