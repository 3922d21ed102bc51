package booking

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alu2004/swift-bus-bookings/internal/domain"
)

func newTestBooking(t *testing.T, seats []int, pricePerSeat int64) *Booking {
	t.Helper()
	b, err := NewBooking(
		uuid.New(), uuid.New(),
		"Sita Sharma", "sita@example.com", "+9779812345678",
		seats, pricePerSeat,
	)
	require.NoError(t, err)
	return b
}

func TestNewBooking(t *testing.T) {
	t.Run("valid booking", func(t *testing.T) {
		b := newTestBooking(t, []int{7, 3, 5}, 500)

		assert.True(t, strings.HasPrefix(b.BookingCode(), "BB-"))
		assert.Len(t, b.BookingCode(), 9)
		assert.Equal(t, []int{3, 5, 7}, b.SeatNumbers(), "seats stored sorted")
		assert.Equal(t, 3, b.SeatCount())
		assert.Equal(t, int64(1500), b.TotalAmount(), "3 seats at 500 each")
		assert.Equal(t, StatusConfirmed, b.Status())
		assert.Nil(t, b.CancelledAt())
		assert.Equal(t, int64(1), b.Version())
	})

	t.Run("duplicate seats rejected", func(t *testing.T) {
		_, err := NewBooking(
			uuid.New(), uuid.New(),
			"Sita Sharma", "sita@example.com", "+9779812345678",
			[]int{4, 4}, 500,
		)
		var vErr *domain.ValidationError
		require.ErrorAs(t, err, &vErr)
	})

	t.Run("invalid email rejected", func(t *testing.T) {
		_, err := NewBooking(
			uuid.New(), uuid.New(),
			"Sita Sharma", "not-an-email", "+9779812345678",
			[]int{1}, 500,
		)
		var vErr *domain.ValidationError
		require.ErrorAs(t, err, &vErr)
	})

	t.Run("empty seat selection rejected", func(t *testing.T) {
		_, err := NewBooking(
			uuid.New(), uuid.New(),
			"Sita Sharma", "sita@example.com", "+9779812345678",
			nil, 500,
		)
		var vErr *domain.ValidationError
		require.ErrorAs(t, err, &vErr)
	})

	t.Run("non-positive price rejected", func(t *testing.T) {
		_, err := NewBooking(
			uuid.New(), uuid.New(),
			"Sita Sharma", "sita@example.com", "+9779812345678",
			[]int{1}, 0,
		)
		var vErr *domain.ValidationError
		require.ErrorAs(t, err, &vErr)
	})
}

func TestBooking_SeatNumbersReturnsCopy(t *testing.T) {
	b := newTestBooking(t, []int{1, 2}, 500)

	seats := b.SeatNumbers()
	seats[0] = 99
	assert.Equal(t, []int{1, 2}, b.SeatNumbers())
}

func TestBooking_Cancel(t *testing.T) {
	t.Run("confirmed booking can be cancelled", func(t *testing.T) {
		b := newTestBooking(t, []int{1}, 500)

		require.NoError(t, b.Cancel())
		assert.Equal(t, StatusCancelled, b.Status())
		require.NotNil(t, b.CancelledAt())
	})

	t.Run("cancelling twice is rejected by the state machine", func(t *testing.T) {
		b := newTestBooking(t, []int{1}, 500)
		require.NoError(t, b.Cancel())

		err := b.Cancel()
		var stateErr *domain.InvalidStateError
		require.ErrorAs(t, err, &stateErr)
		assert.Equal(t, "cancelled", stateErr.From)
	})
}

func TestBookingStatus_Transitions(t *testing.T) {
	assert.True(t, StatusConfirmed.CanTransitionTo(StatusCancelled))
	assert.False(t, StatusCancelled.CanTransitionTo(StatusConfirmed))
	assert.False(t, StatusConfirmed.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
}

func TestParseBookingStatus(t *testing.T) {
	status, err := ParseBookingStatus("confirmed")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, status)

	_, err = ParseBookingStatus("pending")
	assert.Error(t, err)
}
