package trip

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alu2004/swift-bus-bookings/internal/domain"
)

func newTestTrip(t *testing.T, totalSeats int) *Trip {
	t.Helper()
	departure := time.Date(2026, 9, 1, 7, 30, 0, 0, time.UTC)
	tr, err := NewTrip(
		"BA 2 KHA 9133", "Kathmandu", "Palung",
		departure, departure.Add(4*time.Hour),
		500, totalSeats, false,
	)
	require.NoError(t, err)
	return tr
}

func TestNewTrip(t *testing.T) {
	t.Run("valid trip starts fully available", func(t *testing.T) {
		tr := newTestTrip(t, 40)

		assert.Equal(t, 40, tr.TotalSeats())
		assert.Equal(t, 40, tr.AvailableSeats())
		assert.Equal(t, int64(1), tr.Version())
		assert.Equal(t, 4*time.Hour, tr.Duration())
	})

	t.Run("arrival before departure rejected", func(t *testing.T) {
		departure := time.Date(2026, 9, 1, 7, 30, 0, 0, time.UTC)
		_, err := NewTrip(
			"BA 2 KHA 9133", "Kathmandu", "Palung",
			departure, departure.Add(-time.Hour),
			500, 40, false,
		)
		var vErr *domain.ValidationError
		require.ErrorAs(t, err, &vErr)
	})

	t.Run("non-positive capacity rejected", func(t *testing.T) {
		departure := time.Date(2026, 9, 1, 7, 30, 0, 0, time.UTC)
		_, err := NewTrip(
			"BA 2 KHA 9133", "Kathmandu", "Palung",
			departure, departure.Add(4*time.Hour),
			500, 0, false,
		)
		var vErr *domain.ValidationError
		require.ErrorAs(t, err, &vErr)
	})
}

func TestTrip_DepartsInMorning(t *testing.T) {
	morning := newTestTrip(t, 40)
	assert.True(t, morning.DepartsInMorning())

	departure := time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC)
	afternoon, err := NewTrip(
		"BA 2 KHA 9133", "Kathmandu", "Palung",
		departure, departure.Add(4*time.Hour),
		500, 40, false,
	)
	require.NoError(t, err)
	assert.False(t, afternoon.DepartsInMorning())
}

func TestTrip_UpdateDetails(t *testing.T) {
	t.Run("partial update keeps unset fields", func(t *testing.T) {
		tr := newTestTrip(t, 40)

		require.NoError(t, tr.UpdateDetails("", "Lalitpur", "", nil, nil, 650, nil))
		assert.Equal(t, "BA 2 KHA 9133", tr.BusNumber())
		assert.Equal(t, "Lalitpur", tr.Origin())
		assert.Equal(t, "Palung", tr.Destination())
		assert.Equal(t, int64(650), tr.PricePerSeat())
		assert.Equal(t, int64(2), tr.Version())
	})

	t.Run("schedule update keeping arrival before departure rejected", func(t *testing.T) {
		tr := newTestTrip(t, 40)

		badArrival := tr.DepartureAt().Add(-time.Hour)
		err := tr.UpdateDetails("", "", "", nil, &badArrival, 0, nil)
		var vErr *domain.ValidationError
		require.ErrorAs(t, err, &vErr)
	})
}

func TestTrip_Resize(t *testing.T) {
	t.Run("availability re-derived from committed seats", func(t *testing.T) {
		tr := newTestTrip(t, 40)

		require.NoError(t, tr.Resize(30, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}))
		assert.Equal(t, 30, tr.TotalSeats())
		assert.Equal(t, 18, tr.AvailableSeats())
	})

	t.Run("shrinking below committed count rejected", func(t *testing.T) {
		tr := newTestTrip(t, 40)

		err := tr.Resize(10, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})
		var vErr *domain.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, 40, tr.TotalSeats(), "capacity unchanged after rejected resize")
	})

	t.Run("shrinking past a committed seat number rejected", func(t *testing.T) {
		tr := newTestTrip(t, 40)

		err := tr.Resize(30, []int{39, 40})
		var vErr *domain.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, 40, tr.TotalSeats(), "capacity unchanged after rejected resize")
		assert.Equal(t, 40, tr.AvailableSeats())
	})

	t.Run("growing keeps committed seats in range", func(t *testing.T) {
		tr := newTestTrip(t, 40)

		require.NoError(t, tr.Resize(50, []int{39, 40}))
		assert.Equal(t, 50, tr.TotalSeats())
		assert.Equal(t, 48, tr.AvailableSeats())
	})
}
