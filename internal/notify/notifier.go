package notify

import (
	"context"
	"time"
)

// BookingConfirmation carries everything the passenger needs in a
// confirmation message.
type BookingConfirmation struct {
	PassengerEmail string
	PassengerName  string
	BookingCode    string
	BusNumber      string
	Origin         string
	Destination    string
	DepartureAt    time.Time
	ArrivalAt      time.Time
	SeatNumbers    []int
	TotalAmount    int64
	BookedAt       time.Time
}

// BookingCancellation carries the details of a cancelled booking.
type BookingCancellation struct {
	PassengerEmail string
	PassengerName  string
	BookingCode    string
	BusNumber      string
	SeatNumbers    []int
	CancelledAt    time.Time
}

// Notifier sends passenger-facing messages. Sends are fire-and-forget from
// the booking workflow's perspective: a failed send never fails a booking.
type Notifier interface {
	SendBookingConfirmation(ctx context.Context, c BookingConfirmation) error
	SendBookingCancellation(ctx context.Context, c BookingCancellation) error
	SendLoginCode(ctx context.Context, email, code string, expiresIn time.Duration) error
}
