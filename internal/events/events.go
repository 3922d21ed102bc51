package events

import (
	"time"

	"github.com/google/uuid"
)

// Topic and event type names published by this service.
const (
	TopicBookingEvents = "booking.events"

	BookingConfirmed = "booking.confirmed"
	BookingCancelled = "booking.cancelled"
)

// BookingConfirmedEvent is published after a booking is persisted.
type BookingConfirmedEvent struct {
	BookingID      uuid.UUID `json:"booking_id"`
	BookingCode    string    `json:"booking_code"`
	TripID         uuid.UUID `json:"trip_id"`
	PassengerID    uuid.UUID `json:"passenger_id"`
	PassengerEmail string    `json:"passenger_email"`
	SeatNumbers    []int     `json:"seat_numbers"`
	TotalAmount    int64     `json:"total_amount"`
	SeatsRemaining int       `json:"seats_remaining"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// BookingCancelledEvent is published after a booking is cancelled and its
// seats are released.
type BookingCancelledEvent struct {
	BookingID      uuid.UUID `json:"booking_id"`
	BookingCode    string    `json:"booking_code"`
	TripID         uuid.UUID `json:"trip_id"`
	PassengerID    uuid.UUID `json:"passenger_id"`
	PassengerEmail string    `json:"passenger_email"`
	PassengerName  string    `json:"passenger_name"`
	BusNumber      string    `json:"bus_number"`
	SeatNumbers    []int     `json:"seat_numbers"`
	SeatsReleased  int       `json:"seats_released"`
	OccurredAt     time.Time `json:"occurred_at"`
}
