package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Alu2004/swift-bus-bookings/internal/domain"
	bookingDomain "github.com/Alu2004/swift-bus-bookings/internal/domain/booking"
	tripDomain "github.com/Alu2004/swift-bus-bookings/internal/domain/trip"
	"github.com/Alu2004/swift-bus-bookings/internal/events"
	"github.com/Alu2004/swift-bus-bookings/internal/kafka"
	"github.com/Alu2004/swift-bus-bookings/internal/notify"
)

const eventSource = "swift-bus-bookings"

// EventPublisher publishes domain events. Satisfied by kafka.Producer.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error
}

// CreateBookingRequest is the request DTO for booking seats on a trip.
type CreateBookingRequest struct {
	TripID         uuid.UUID `json:"trip_id" binding:"required"`
	PassengerName  string    `json:"passenger_name" binding:"required"`
	PassengerEmail string    `json:"passenger_email" binding:"required"`
	PassengerPhone string    `json:"passenger_phone" binding:"required"`
	SeatNumbers    []int     `json:"seat_numbers" binding:"required"`
}

// BookingDTO is the API response representation of a booking.
type BookingDTO struct {
	ID             uuid.UUID  `json:"id"`
	BookingCode    string     `json:"booking_code"`
	TripID         uuid.UUID  `json:"trip_id"`
	PassengerName  string     `json:"passenger_name"`
	PassengerEmail string     `json:"passenger_email"`
	PassengerPhone string     `json:"passenger_phone"`
	SeatNumbers    []int      `json:"seat_numbers"`
	PricePerSeat   int64      `json:"price_per_seat"`
	TotalAmount    int64      `json:"total_amount"`
	Status         string     `json:"status"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// CreateBookingResult is a created booking plus an optional warning when
// the confirmation email could not be sent.
type CreateBookingResult struct {
	BookingDTO
	Warning string `json:"warning,omitempty"`
}

// CancelBookingResult is a cancelled booking plus an optional warning when
// the seat counter could not be updated after the cancellation committed.
type CancelBookingResult struct {
	BookingDTO
	Warning string `json:"warning,omitempty"`
}

// BookingStatsDTO is the admin view of booking counts by status.
type BookingStatsDTO struct {
	Total     int64            `json:"total"`
	ByStatus  map[string]int64 `json:"by_status"`
	Confirmed int64            `json:"confirmed"`
	Cancelled int64            `json:"cancelled"`
}

// BookingService implements the booking workflow: validate the seat
// selection against the seat map, reserve through the ledger, persist,
// then notify. Each step mutates at most one store, and a failed persist
// releases the reservation so the counter and the booking rows never
// disagree.
type BookingService struct {
	trips     tripDomain.TripRepository
	ledger    tripDomain.Ledger
	bookings  bookingDomain.BookingRepository
	notifier  notify.Notifier
	publisher EventPublisher
	logger    *zap.Logger
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	trips tripDomain.TripRepository,
	ledger tripDomain.Ledger,
	bookings bookingDomain.BookingRepository,
	notifier notify.Notifier,
	publisher EventPublisher,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		trips:     trips,
		ledger:    ledger,
		bookings:  bookings,
		notifier:  notifier,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateBooking books the requested seats for the authenticated passenger.
func (s *BookingService) CreateBooking(
	ctx context.Context,
	passengerID uuid.UUID,
	req CreateBookingRequest,
) (*CreateBookingResult, error) {
	trip, err := s.trips.FindByID(ctx, req.TripID)
	if err != nil {
		return nil, err
	}

	// Validate against the seat map rebuilt from confirmed bookings, not
	// the cached counter. Nothing is mutated before this passes.
	committed, err := s.bookings.ListConfirmedSeatNumbers(ctx, req.TripID)
	if err != nil {
		return nil, domain.NewPersistenceError("load committed seats", err)
	}
	seatMap := bookingDomain.NewSeatMap(trip.TotalSeats(), committed)
	if err := seatMap.ValidateSelection(req.SeatNumbers); err != nil {
		return nil, err
	}

	// Construct the aggregate before touching the ledger so a validation
	// failure cannot strand a reservation.
	b, err := bookingDomain.NewBooking(
		trip.ID(), passengerID,
		req.PassengerName, req.PassengerEmail, req.PassengerPhone,
		req.SeatNumbers,
		trip.PricePerSeat(),
	)
	if err != nil {
		return nil, err
	}

	remaining, err := s.ledger.Reserve(ctx, trip.ID(), b.SeatCount())
	if err != nil {
		return nil, err
	}

	if err := s.bookings.Save(ctx, b); err != nil {
		s.logger.Error("failed to persist booking, releasing reservation",
			zap.String("trip_id", trip.ID().String()),
			zap.Int("seat_count", b.SeatCount()),
			zap.Error(err),
		)
		if relErr := s.ledger.Release(ctx, trip.ID(), b.SeatCount()); relErr != nil {
			s.logger.Error("compensating release failed",
				zap.String("trip_id", trip.ID().String()),
				zap.Error(relErr),
			)
		}
		// The seat uniqueness index can reject a save that passed seat-map
		// validation when two requests race for the same seat. That loser
		// gets the same retryable conflict as one caught by validation.
		var conflict *domain.SeatConflictError
		if errors.As(err, &conflict) {
			return nil, err
		}
		return nil, domain.NewPersistenceError("save booking", err)
	}

	s.logger.Info("booking confirmed",
		zap.String("booking_id", b.ID().String()),
		zap.String("booking_code", b.BookingCode()),
		zap.String("trip_id", trip.ID().String()),
		zap.Ints("seats", b.SeatNumbers()),
		zap.Int("seats_remaining", remaining),
	)

	result := &CreateBookingResult{BookingDTO: toBookingDTO(b)}

	// The booking stands regardless of notification outcome; a failed
	// send only surfaces as a warning on the response.
	if err := s.notifier.SendBookingConfirmation(ctx, notify.BookingConfirmation{
		PassengerEmail: b.PassengerEmail(),
		PassengerName:  b.PassengerName(),
		BookingCode:    b.BookingCode(),
		BusNumber:      trip.BusNumber(),
		Origin:         trip.Origin(),
		Destination:    trip.Destination(),
		DepartureAt:    trip.DepartureAt(),
		ArrivalAt:      trip.ArrivalAt(),
		SeatNumbers:    b.SeatNumbers(),
		TotalAmount:    b.TotalAmount(),
		BookedAt:       b.CreatedAt(),
	}); err != nil {
		s.logger.Warn("failed to send booking confirmation email",
			zap.String("booking_id", b.ID().String()),
			zap.Error(err),
		)
		result.Warning = "booking confirmed, but the confirmation email could not be sent"
	}

	s.publishConfirmed(ctx, b, remaining)
	return result, nil
}

// GetBooking returns a booking, verifying ownership unless the caller is
// an admin.
func (s *BookingService) GetBooking(ctx context.Context, passengerID uuid.UUID, isAdmin bool, bookingID uuid.UUID) (*BookingDTO, error) {
	b, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && !b.IsOwnedBy(passengerID) {
		return nil, domain.NewForbiddenError("this booking belongs to another passenger")
	}
	dto := toBookingDTO(b)
	return &dto, nil
}

// GetBookingByCode looks a booking up by its human-readable code,
// verifying ownership unless the caller is an admin.
func (s *BookingService) GetBookingByCode(ctx context.Context, passengerID uuid.UUID, isAdmin bool, code string) (*BookingDTO, error) {
	b, err := s.bookings.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !isAdmin && !b.IsOwnedBy(passengerID) {
		return nil, domain.NewForbiddenError("this booking belongs to another passenger")
	}
	dto := toBookingDTO(b)
	return &dto, nil
}

// GetMyBookings returns the passenger's bookings, newest first.
func (s *BookingService) GetMyBookings(ctx context.Context, passengerID uuid.UUID, page, limit int) (*domain.PaginatedResult[BookingDTO], error) {
	page, limit = normalizePage(page, limit)
	items, total, err := s.bookings.FindByPassengerID(ctx, passengerID, page, limit)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(toBookingDTOs(items), total, page, limit)
	return &result, nil
}

// CancelBooking cancels a confirmed booking and releases its seats.
// Cancelling an already-cancelled booking is a no-op: the state machine
// rejects the transition before any seats move, so the counter is never
// released twice.
func (s *BookingService) CancelBooking(ctx context.Context, passengerID uuid.UUID, isAdmin bool, bookingID uuid.UUID) (*CancelBookingResult, error) {
	b, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && !b.IsOwnedBy(passengerID) {
		return nil, domain.NewForbiddenError("this booking belongs to another passenger")
	}

	if b.Status() == bookingDomain.StatusCancelled {
		return &CancelBookingResult{BookingDTO: toBookingDTO(b)}, nil
	}

	if err := b.Cancel(); err != nil {
		return nil, err
	}

	// The optimistic-lock update is the linearization point: of two
	// concurrent cancels, exactly one commits the transition and goes on
	// to release the seats.
	if err := s.bookings.Update(ctx, b); err != nil {
		return nil, err
	}

	result := &CancelBookingResult{BookingDTO: toBookingDTO(b)}

	// The cancellation stands once the status update committed. A failed
	// release may or may not have applied, so blindly retrying it could
	// over-credit the counter; Reconcile recomputes from the seat holds
	// instead. If that also fails, the drift is surfaced on the response
	// so the caller knows availability is stale until reconciliation runs.
	if err := s.ledger.Release(ctx, b.TripID(), b.SeatCount()); err != nil {
		s.logger.Error("failed to release seats for cancelled booking",
			zap.String("booking_id", b.ID().String()),
			zap.String("trip_id", b.TripID().String()),
			zap.Error(err),
		)
		if corrected, recErr := s.ledger.Reconcile(ctx, b.TripID()); recErr != nil {
			s.logger.Error("failed to reconcile seat counter",
				zap.String("trip_id", b.TripID().String()),
				zap.Error(recErr),
			)
			result.Warning = "booking cancelled, but the seat counter could not be updated; availability will be corrected by reconciliation"
		} else {
			s.logger.Info("seat counter reconciled after failed release",
				zap.String("trip_id", b.TripID().String()),
				zap.Int("available_seats", corrected),
			)
		}
	}

	s.logger.Info("booking cancelled",
		zap.String("booking_id", b.ID().String()),
		zap.String("booking_code", b.BookingCode()),
		zap.Int("seats_released", b.SeatCount()),
	)

	s.publishCancelled(ctx, b)
	return result, nil
}

// ReconcileTripSeats rewrites a trip's available-seat counter from the
// seats held by confirmed bookings (admin). Returns the corrected count.
func (s *BookingService) ReconcileTripSeats(ctx context.Context, tripID uuid.UUID) (int, error) {
	available, err := s.ledger.Reconcile(ctx, tripID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("seat counter reconciled",
		zap.String("trip_id", tripID.String()),
		zap.Int("available_seats", available),
	)
	return available, nil
}

// GetAllBookings returns every booking, paginated (admin).
func (s *BookingService) GetAllBookings(ctx context.Context, page, limit int) (*domain.PaginatedResult[BookingDTO], error) {
	page, limit = normalizePage(page, limit)
	items, total, err := s.bookings.ListAll(ctx, page, limit)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(toBookingDTOs(items), total, page, limit)
	return &result, nil
}

// GetBookingStats returns booking counts grouped by status (admin).
func (s *BookingService) GetBookingStats(ctx context.Context) (*BookingStatsDTO, error) {
	counts, err := s.bookings.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	stats := &BookingStatsDTO{ByStatus: counts}
	for _, n := range counts {
		stats.Total += n
	}
	stats.Confirmed = counts[bookingDomain.StatusConfirmed.String()]
	stats.Cancelled = counts[bookingDomain.StatusCancelled.String()]
	return stats, nil
}

func (s *BookingService) publishConfirmed(ctx context.Context, b *bookingDomain.Booking, remaining int) {
	event, err := kafka.NewCloudEvent(eventSource, events.BookingConfirmed, events.BookingConfirmedEvent{
		BookingID:      b.ID(),
		BookingCode:    b.BookingCode(),
		TripID:         b.TripID(),
		PassengerID:    b.PassengerID(),
		PassengerEmail: b.PassengerEmail(),
		SeatNumbers:    b.SeatNumbers(),
		TotalAmount:    b.TotalAmount(),
		SeatsRemaining: remaining,
		OccurredAt:     time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error("failed to build booking.confirmed event", zap.Error(err))
		return
	}
	if err := s.publisher.PublishEvent(ctx, events.TopicBookingEvents, event); err != nil {
		s.logger.Error("failed to publish booking.confirmed event",
			zap.String("booking_id", b.ID().String()),
			zap.Error(err),
		)
	}
}

func (s *BookingService) publishCancelled(ctx context.Context, b *bookingDomain.Booking) {
	busNumber := ""
	if trip, err := s.trips.FindByID(ctx, b.TripID()); err == nil {
		busNumber = trip.BusNumber()
	}

	occurredAt := time.Now().UTC()
	if b.CancelledAt() != nil {
		occurredAt = *b.CancelledAt()
	}

	event, err := kafka.NewCloudEvent(eventSource, events.BookingCancelled, events.BookingCancelledEvent{
		BookingID:      b.ID(),
		BookingCode:    b.BookingCode(),
		TripID:         b.TripID(),
		PassengerID:    b.PassengerID(),
		PassengerEmail: b.PassengerEmail(),
		PassengerName:  b.PassengerName(),
		BusNumber:      busNumber,
		SeatNumbers:    b.SeatNumbers(),
		SeatsReleased:  b.SeatCount(),
		OccurredAt:     occurredAt,
	})
	if err != nil {
		s.logger.Error("failed to build booking.cancelled event", zap.Error(err))
		return
	}
	if err := s.publisher.PublishEvent(ctx, events.TopicBookingEvents, event); err != nil {
		s.logger.Error("failed to publish booking.cancelled event",
			zap.String("booking_id", b.ID().String()),
			zap.Error(err),
		)
	}
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

func toBookingDTO(b *bookingDomain.Booking) BookingDTO {
	return BookingDTO{
		ID:             b.ID(),
		BookingCode:    b.BookingCode(),
		TripID:         b.TripID(),
		PassengerName:  b.PassengerName(),
		PassengerEmail: b.PassengerEmail(),
		PassengerPhone: b.PassengerPhone(),
		SeatNumbers:    b.SeatNumbers(),
		PricePerSeat:   b.PricePerSeat(),
		TotalAmount:    b.TotalAmount(),
		Status:         b.Status().String(),
		CancelledAt:    b.CancelledAt(),
		CreatedAt:      b.CreatedAt(),
	}
}

func toBookingDTOs(items []*bookingDomain.Booking) []BookingDTO {
	dtos := make([]BookingDTO, len(items))
	for i, b := range items {
		dtos[i] = toBookingDTO(b)
	}
	return dtos
}
