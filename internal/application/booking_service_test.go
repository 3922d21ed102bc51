package application

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Alu2004/swift-bus-bookings/internal/domain"
	bookingDomain "github.com/Alu2004/swift-bus-bookings/internal/domain/booking"
	tripDomain "github.com/Alu2004/swift-bus-bookings/internal/domain/trip"
	"github.com/Alu2004/swift-bus-bookings/internal/events"
	"github.com/Alu2004/swift-bus-bookings/internal/kafka"
	"github.com/Alu2004/swift-bus-bookings/internal/notify"
)

// fakeTripStore is an in-memory TripRepository and Ledger. The ledger
// operations hold a mutex so concurrent reserves observe the same
// all-or-nothing semantics as the conditional SQL update.
type fakeTripStore struct {
	mu            sync.Mutex
	trips         map[uuid.UUID]*tripDomain.Trip
	available     map[uuid.UUID]int
	seats         *fakeBookingStore
	failRelease   bool
	failReconcile bool
}

func newFakeTripStore() *fakeTripStore {
	return &fakeTripStore{
		trips:     make(map[uuid.UUID]*tripDomain.Trip),
		available: make(map[uuid.UUID]int),
	}
}

func (s *fakeTripStore) add(t *tripDomain.Trip) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trips[t.ID()] = t
	s.available[t.ID()] = t.AvailableSeats()
}

func (s *fakeTripStore) FindByID(ctx context.Context, id uuid.UUID) (*tripDomain.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trips[id]
	if !ok {
		return nil, domain.NewNotFoundError("Trip", id.String())
	}
	return tripDomain.Reconstruct(
		t.ID(), t.BusNumber(), t.Origin(), t.Destination(),
		t.DepartureAt(), t.ArrivalAt(),
		t.PricePerSeat(), t.TotalSeats(), s.available[t.ID()],
		t.Uncertain(), t.Version(), t.CreatedAt(), t.UpdatedAt(),
	), nil
}

func (s *fakeTripStore) List(ctx context.Context, filter tripDomain.Filter) ([]*tripDomain.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*tripDomain.Trip, 0, len(s.trips))
	for _, t := range s.trips {
		out = append(out, t)
	}
	return out, nil
}

func (s *fakeTripStore) Save(ctx context.Context, t *tripDomain.Trip) error {
	s.add(t)
	return nil
}

func (s *fakeTripStore) Update(ctx context.Context, t *tripDomain.Trip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trips[t.ID()] = t
	s.available[t.ID()] = t.AvailableSeats()
	return nil
}

func (s *fakeTripStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.trips, id)
	delete(s.available, id)
	return nil
}

func (s *fakeTripStore) Reserve(ctx context.Context, tripID uuid.UUID, seatCount int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	avail, ok := s.available[tripID]
	if !ok {
		return 0, domain.NewNotFoundError("Trip", tripID.String())
	}
	if avail < seatCount {
		return 0, domain.NewOversoldError(seatCount, avail)
	}
	s.available[tripID] = avail - seatCount
	return s.available[tripID], nil
}

func (s *fakeTripStore) Release(ctx context.Context, tripID uuid.UUID, seatCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRelease {
		return errors.New("connection reset by peer")
	}
	t, ok := s.trips[tripID]
	if !ok {
		return domain.NewNotFoundError("Trip", tripID.String())
	}
	next := s.available[tripID] + seatCount
	if next > t.TotalSeats() {
		next = t.TotalSeats()
	}
	s.available[tripID] = next
	return nil
}

func (s *fakeTripStore) Reconcile(ctx context.Context, tripID uuid.UUID) (int, error) {
	committed, err := s.seats.ListConfirmedSeatNumbers(ctx, tripID)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReconcile {
		return 0, errors.New("connection reset by peer")
	}
	t, ok := s.trips[tripID]
	if !ok {
		return 0, domain.NewNotFoundError("Trip", tripID.String())
	}
	s.available[tripID] = t.TotalSeats() - len(committed)
	return s.available[tripID], nil
}

func (s *fakeTripStore) availableSeats(tripID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available[tripID]
}

// fakeBookingStore is an in-memory BookingRepository with the same
// optimistic-locking contract as the GORM implementation.
type fakeBookingStore struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*bookingDomain.Booking
	versions map[uuid.UUID]int64
	failSave bool
}

func newFakeBookingStore() *fakeBookingStore {
	return &fakeBookingStore{
		bookings: make(map[uuid.UUID]*bookingDomain.Booking),
		versions: make(map[uuid.UUID]int64),
	}
}

func (s *fakeBookingStore) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, domain.NewNotFoundError("Booking", id.String())
	}
	return b, nil
}

func (s *fakeBookingStore) FindByCode(ctx context.Context, code string) (*bookingDomain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.BookingCode() == code {
			return b, nil
		}
	}
	return nil, domain.NewNotFoundError("Booking", code)
}

func (s *fakeBookingStore) FindByPassengerID(ctx context.Context, passengerID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*bookingDomain.Booking
	for _, b := range s.bookings {
		if b.PassengerID() == passengerID {
			out = append(out, b)
		}
	}
	return out, int64(len(out)), nil
}

func (s *fakeBookingStore) ListConfirmedSeatNumbers(ctx context.Context, tripID uuid.UUID) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var seats []int
	for _, b := range s.bookings {
		if b.TripID() == tripID && b.Status() == bookingDomain.StatusConfirmed {
			seats = append(seats, b.SeatNumbers()...)
		}
	}
	return seats, nil
}

func (s *fakeBookingStore) ListAll(ctx context.Context, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*bookingDomain.Booking, 0, len(s.bookings))
	for _, b := range s.bookings {
		out = append(out, b)
	}
	return out, int64(len(out)), nil
}

func (s *fakeBookingStore) CountByStatus(ctx context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int64)
	for _, b := range s.bookings {
		counts[b.Status().String()]++
	}
	return counts, nil
}

// Save mirrors the database contract: seats held by confirmed bookings on
// the same trip are unique, so an overlapping save fails with a seat
// conflict even though validation already passed.
func (s *fakeBookingStore) Save(ctx context.Context, b *bookingDomain.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave {
		return errors.New("connection reset by peer")
	}

	held := make(map[int]bool)
	for _, existing := range s.bookings {
		if existing.TripID() == b.TripID() && existing.Status() == bookingDomain.StatusConfirmed {
			for _, seat := range existing.SeatNumbers() {
				held[seat] = true
			}
		}
	}
	var taken []int
	for _, seat := range b.SeatNumbers() {
		if held[seat] {
			taken = append(taken, seat)
		}
	}
	if len(taken) > 0 {
		sort.Ints(taken)
		return domain.NewSeatConflictError(taken)
	}

	s.bookings[b.ID()] = b
	s.versions[b.ID()] = b.Version()
	return nil
}

func (s *fakeBookingStore) Update(ctx context.Context, b *bookingDomain.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.versions[b.ID()] != b.Version()-1 {
		return domain.NewConflictError("booking was modified by another transaction")
	}
	s.bookings[b.ID()] = b
	s.versions[b.ID()] = b.Version()
	return nil
}

func (s *fakeBookingStore) confirmedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.bookings {
		if b.Status() == bookingDomain.StatusConfirmed {
			n++
		}
	}
	return n
}

// recordingNotifier records sends and optionally fails confirmations.
type recordingNotifier struct {
	mu            sync.Mutex
	confirmations []notify.BookingConfirmation
	cancellations []notify.BookingCancellation
	failConfirm   bool
}

func (n *recordingNotifier) SendBookingConfirmation(ctx context.Context, c notify.BookingConfirmation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failConfirm {
		return errors.New("smtp: connection refused")
	}
	n.confirmations = append(n.confirmations, c)
	return nil
}

func (n *recordingNotifier) SendBookingCancellation(ctx context.Context, c notify.BookingCancellation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancellations = append(n.cancellations, c)
	return nil
}

func (n *recordingNotifier) SendLoginCode(ctx context.Context, email, code string, expiresIn time.Duration) error {
	return nil
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.CloudEvent
}

func (p *recordingPublisher) PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, len(p.events))
	for i, e := range p.events {
		types[i] = e.Type
	}
	return types
}

type bookingFixture struct {
	trips    *fakeTripStore
	bookings *fakeBookingStore
	notifier *recordingNotifier
	events   *recordingPublisher
	service  *BookingService
	trip     *tripDomain.Trip
}

func newBookingFixture(t *testing.T, totalSeats int) *bookingFixture {
	t.Helper()

	departure := time.Date(2026, 9, 1, 7, 30, 0, 0, time.UTC)
	trip, err := tripDomain.NewTrip(
		"BA 2 KHA 9133", "Kathmandu", "Palung",
		departure, departure.Add(4*time.Hour),
		500, totalSeats, false,
	)
	require.NoError(t, err)

	trips := newFakeTripStore()
	trips.add(trip)
	bookings := newFakeBookingStore()
	trips.seats = bookings
	notifier := &recordingNotifier{}
	publisher := &recordingPublisher{}

	service := NewBookingService(trips, trips, bookings, notifier, publisher, zap.NewNop())
	return &bookingFixture{
		trips:    trips,
		bookings: bookings,
		notifier: notifier,
		events:   publisher,
		service:  service,
		trip:     trip,
	}
}

func createRequest(tripID uuid.UUID, seats []int) CreateBookingRequest {
	return CreateBookingRequest{
		TripID:         tripID,
		PassengerName:  "Sita Sharma",
		PassengerEmail: "sita@example.com",
		PassengerPhone: "+9779812345678",
		SeatNumbers:    seats,
	}
}

func TestCreateBooking_Success(t *testing.T) {
	f := newBookingFixture(t, 40)
	passengerID := uuid.New()

	result, err := f.service.CreateBooking(context.Background(), passengerID, createRequest(f.trip.ID(), []int{5, 6, 7}))
	require.NoError(t, err)

	assert.Equal(t, []int{5, 6, 7}, result.SeatNumbers)
	assert.Equal(t, int64(1500), result.TotalAmount, "3 seats at 500 each")
	assert.Equal(t, "confirmed", result.Status)
	assert.Empty(t, result.Warning)
	assert.Equal(t, 37, f.trips.availableSeats(f.trip.ID()))

	require.Len(t, f.notifier.confirmations, 1)
	assert.Equal(t, result.BookingCode, f.notifier.confirmations[0].BookingCode)
	assert.Equal(t, []string{events.BookingConfirmed}, f.events.eventTypes())
}

func TestCreateBooking_SeatConflict(t *testing.T) {
	f := newBookingFixture(t, 40)

	_, err := f.service.CreateBooking(context.Background(), uuid.New(), createRequest(f.trip.ID(), []int{5}))
	require.NoError(t, err)

	_, err = f.service.CreateBooking(context.Background(), uuid.New(), createRequest(f.trip.ID(), []int{5, 6}))

	var conflict *domain.SeatConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []int{5}, conflict.TakenSeats)
	assert.Equal(t, 39, f.trips.availableSeats(f.trip.ID()), "failed attempt must not move the counter")
	assert.Equal(t, 1, f.bookings.confirmedCount())
}

func TestCreateBooking_InvalidSelection(t *testing.T) {
	f := newBookingFixture(t, 40)

	for name, seats := range map[string][]int{
		"empty":        {},
		"out of range": {41},
		"duplicate":    {3, 3},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.service.CreateBooking(context.Background(), uuid.New(), createRequest(f.trip.ID(), seats))
			var vErr *domain.ValidationError
			require.ErrorAs(t, err, &vErr)
		})
	}
	assert.Equal(t, 40, f.trips.availableSeats(f.trip.ID()))
}

func TestCreateBooking_PersistFailureReleasesReservation(t *testing.T) {
	f := newBookingFixture(t, 40)
	f.bookings.failSave = true

	_, err := f.service.CreateBooking(context.Background(), uuid.New(), createRequest(f.trip.ID(), []int{1, 2}))

	var pErr *domain.PersistenceError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, 40, f.trips.availableSeats(f.trip.ID()), "compensating release must restore the counter")
	assert.Equal(t, 0, f.bookings.confirmedCount())
	assert.Empty(t, f.notifier.confirmations)
	assert.Empty(t, f.events.eventTypes())
}

func TestCreateBooking_NotificationFailureIsNonFatal(t *testing.T) {
	f := newBookingFixture(t, 40)
	f.notifier.failConfirm = true

	result, err := f.service.CreateBooking(context.Background(), uuid.New(), createRequest(f.trip.ID(), []int{1}))
	require.NoError(t, err)

	assert.NotEmpty(t, result.Warning)
	assert.Equal(t, 1, f.bookings.confirmedCount(), "booking stands despite the failed email")
	assert.Equal(t, 39, f.trips.availableSeats(f.trip.ID()))
}

func TestCreateBooking_LastSeatRace(t *testing.T) {
	f := newBookingFixture(t, 1)

	const attempts = 40
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.CreateBooking(context.Background(), uuid.New(), createRequest(f.trip.ID(), []int{1}))
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.True(t, domain.IsRecoverable(err), "losers must get a recoverable error, got %v", err)
	}
	assert.Equal(t, 1, successes, "exactly one attempt may win the last seat")
	assert.Equal(t, 0, f.trips.availableSeats(f.trip.ID()))
	assert.Equal(t, 1, f.bookings.confirmedCount())
}

func TestCreateBooking_SameSeatRaceWithSpareCapacity(t *testing.T) {
	f := newBookingFixture(t, 40)

	// Plenty of capacity, so the counter alone cannot arbitrate: every
	// attempt reserves successfully and the seat-uniqueness constraint in
	// the store has to pick the single winner.
	const attempts = 20
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.CreateBooking(context.Background(), uuid.New(), createRequest(f.trip.ID(), []int{7}))
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.True(t, domain.IsRecoverable(err), "losers must get a recoverable error, got %v", err)
	}
	assert.Equal(t, 1, successes, "exactly one attempt may hold seat 7")
	assert.Equal(t, 1, f.bookings.confirmedCount())
	assert.Equal(t, 39, f.trips.availableSeats(f.trip.ID()), "losing reservations must be compensated")
}

func TestBookingConservation(t *testing.T) {
	f := newBookingFixture(t, 10)

	seatSets := [][]int{{1, 2}, {3}, {4, 5, 6}}
	ids := make([]uuid.UUID, 0, len(seatSets))
	for _, seats := range seatSets {
		result, err := f.service.CreateBooking(context.Background(), uuid.New(), createRequest(f.trip.ID(), seats))
		require.NoError(t, err)
		ids = append(ids, result.ID)
	}

	// available + seats held by confirmed bookings = total, at every step.
	committed, err := f.bookings.ListConfirmedSeatNumbers(context.Background(), f.trip.ID())
	require.NoError(t, err)
	assert.Equal(t, 10, f.trips.availableSeats(f.trip.ID())+len(committed))

	// Seat sets of confirmed bookings stay pairwise disjoint.
	seen := make(map[int]bool)
	for _, s := range committed {
		assert.False(t, seen[s], "seat %d held by two confirmed bookings", s)
		seen[s] = true
	}

	_, err = f.service.CancelBooking(context.Background(), uuid.Nil, true, ids[0])
	require.NoError(t, err)

	committed, err = f.bookings.ListConfirmedSeatNumbers(context.Background(), f.trip.ID())
	require.NoError(t, err)
	assert.Equal(t, 10, f.trips.availableSeats(f.trip.ID())+len(committed))
}

func TestCancelBooking_ReleasesSeats(t *testing.T) {
	f := newBookingFixture(t, 40)
	passengerID := uuid.New()

	created, err := f.service.CreateBooking(context.Background(), passengerID, createRequest(f.trip.ID(), []int{1, 2, 3}))
	require.NoError(t, err)
	require.Equal(t, 37, f.trips.availableSeats(f.trip.ID()))

	cancelled, err := f.service.CancelBooking(context.Background(), passengerID, false, created.ID)
	require.NoError(t, err)

	assert.Equal(t, "cancelled", cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, 40, f.trips.availableSeats(f.trip.ID()))
	assert.Equal(t, []string{events.BookingConfirmed, events.BookingCancelled}, f.events.eventTypes())
}

func TestCancelBooking_Idempotent(t *testing.T) {
	f := newBookingFixture(t, 40)
	passengerID := uuid.New()

	created, err := f.service.CreateBooking(context.Background(), passengerID, createRequest(f.trip.ID(), []int{1, 2}))
	require.NoError(t, err)

	_, err = f.service.CancelBooking(context.Background(), passengerID, false, created.ID)
	require.NoError(t, err)

	again, err := f.service.CancelBooking(context.Background(), passengerID, false, created.ID)
	require.NoError(t, err, "second cancel is a no-op, not an error")
	assert.Equal(t, "cancelled", again.Status)
	assert.Equal(t, 40, f.trips.availableSeats(f.trip.ID()), "seats released exactly once")
}

func TestCancelBooking_ReleaseFailureReconciles(t *testing.T) {
	f := newBookingFixture(t, 40)
	passengerID := uuid.New()

	created, err := f.service.CreateBooking(context.Background(), passengerID, createRequest(f.trip.ID(), []int{1, 2, 3}))
	require.NoError(t, err)
	f.trips.failRelease = true

	cancelled, err := f.service.CancelBooking(context.Background(), passengerID, false, created.ID)
	require.NoError(t, err, "the cancellation stands even when the counter update fails")

	assert.Equal(t, "cancelled", cancelled.Status)
	assert.Empty(t, cancelled.Warning, "reconciliation corrected the counter, nothing to warn about")
	assert.Equal(t, 40, f.trips.availableSeats(f.trip.ID()), "counter rebuilt from the remaining seat holds")
}

func TestCancelBooking_CounterDriftSurfacesAsWarning(t *testing.T) {
	f := newBookingFixture(t, 40)
	passengerID := uuid.New()

	created, err := f.service.CreateBooking(context.Background(), passengerID, createRequest(f.trip.ID(), []int{1, 2, 3}))
	require.NoError(t, err)
	f.trips.failRelease = true
	f.trips.failReconcile = true

	cancelled, err := f.service.CancelBooking(context.Background(), passengerID, false, created.ID)
	require.NoError(t, err)

	assert.Equal(t, "cancelled", cancelled.Status)
	assert.NotEmpty(t, cancelled.Warning, "unrecovered counter drift must be surfaced to the caller")
	assert.Equal(t, 37, f.trips.availableSeats(f.trip.ID()), "counter stays stale until reconciliation")

	// A later reconcile run repairs the drift.
	f.trips.failReconcile = false
	available, err := f.service.ReconcileTripSeats(context.Background(), f.trip.ID())
	require.NoError(t, err)
	assert.Equal(t, 40, available)
	assert.Equal(t, 40, f.trips.availableSeats(f.trip.ID()))
}

func TestCancelBooking_Forbidden(t *testing.T) {
	f := newBookingFixture(t, 40)

	created, err := f.service.CreateBooking(context.Background(), uuid.New(), createRequest(f.trip.ID(), []int{1}))
	require.NoError(t, err)

	_, err = f.service.CancelBooking(context.Background(), uuid.New(), false, created.ID)

	var fErr *domain.ForbiddenError
	require.ErrorAs(t, err, &fErr)
	assert.Equal(t, 39, f.trips.availableSeats(f.trip.ID()))
}

func TestGetBooking_OwnershipEnforced(t *testing.T) {
	f := newBookingFixture(t, 40)
	passengerID := uuid.New()

	created, err := f.service.CreateBooking(context.Background(), passengerID, createRequest(f.trip.ID(), []int{1}))
	require.NoError(t, err)

	_, err = f.service.GetBooking(context.Background(), uuid.New(), false, created.ID)
	var fErr *domain.ForbiddenError
	require.ErrorAs(t, err, &fErr)

	got, err := f.service.GetBooking(context.Background(), uuid.New(), true, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	byCode, err := f.service.GetBookingByCode(context.Background(), passengerID, false, created.BookingCode)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byCode.ID)

	_, err = f.service.GetBookingByCode(context.Background(), passengerID, false, "BB-ZZZZZZ")
	var nfErr *domain.NotFoundError
	require.ErrorAs(t, err, &nfErr)
}

func TestGetBookingStats(t *testing.T) {
	f := newBookingFixture(t, 40)
	passengerID := uuid.New()

	first, err := f.service.CreateBooking(context.Background(), passengerID, createRequest(f.trip.ID(), []int{1}))
	require.NoError(t, err)
	_, err = f.service.CreateBooking(context.Background(), passengerID, createRequest(f.trip.ID(), []int{2}))
	require.NoError(t, err)
	_, err = f.service.CancelBooking(context.Background(), passengerID, false, first.ID)
	require.NoError(t, err)

	stats, err := f.service.GetBookingStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Confirmed)
	assert.Equal(t, int64(1), stats.Cancelled)
}
