package booking

import (
	"sort"

	"github.com/Alu2004/swift-bus-bookings/internal/domain"
)

// SeatMap is the derived view of which seat numbers are free vs committed
// for one trip. It is always reconstructed from the confirmed bookings at
// decision time, never from the cached availability counter.
type SeatMap struct {
	totalSeats int
	committed  map[int]bool
}

// NewSeatMap builds a SeatMap for a trip with the given capacity and the
// union of seat numbers held by all confirmed bookings.
func NewSeatMap(totalSeats int, committedSeats []int) SeatMap {
	committed := make(map[int]bool, len(committedSeats))
	for _, s := range committedSeats {
		if s >= 1 && s <= totalSeats {
			committed[s] = true
		}
	}
	return SeatMap{totalSeats: totalSeats, committed: committed}
}

// TotalSeats returns the trip's seat capacity.
func (m SeatMap) TotalSeats() int { return m.totalSeats }

// FreeSeats returns the ascending list of seat numbers not held by any
// confirmed booking.
func (m SeatMap) FreeSeats() []int {
	free := make([]int, 0, m.totalSeats-len(m.committed))
	for s := 1; s <= m.totalSeats; s++ {
		if !m.committed[s] {
			free = append(free, s)
		}
	}
	return free
}

// CommittedSeats returns the ascending list of seat numbers held by
// confirmed bookings.
func (m SeatMap) CommittedSeats() []int {
	seats := make([]int, 0, len(m.committed))
	for s := range m.committed {
		seats = append(seats, s)
	}
	sort.Ints(seats)
	return seats
}

// FreeCount returns the number of free seats.
func (m SeatMap) FreeCount() int {
	return m.totalSeats - len(m.committed)
}

// IsFree reports whether a single seat is unclaimed.
func (m SeatMap) IsFree(seat int) bool {
	return seat >= 1 && seat <= m.totalSeats && !m.committed[seat]
}

// ValidateSelection checks a requested seat set against the map. The
// request must be non-empty, contain no duplicates, lie within
// [1, totalSeats], and be disjoint from the committed set. Seats that are
// already committed are reported through a SeatConflictError so the
// passenger can be told exactly which picks to change.
func (m SeatMap) ValidateSelection(requested []int) error {
	if len(requested) == 0 {
		return domain.NewValidationError("at least one seat must be selected")
	}

	seen := make(map[int]bool, len(requested))
	var taken []int
	for _, s := range requested {
		if s < 1 || s > m.totalSeats {
			return domain.NewValidationError("seat number out of range")
		}
		if seen[s] {
			return domain.NewValidationError("duplicate seat in selection")
		}
		seen[s] = true
		if m.committed[s] {
			taken = append(taken, s)
		}
	}

	if len(taken) > 0 {
		sort.Ints(taken)
		return domain.NewSeatConflictError(taken)
	}
	return nil
}
