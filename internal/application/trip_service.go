package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/Alu2004/swift-bus-bookings/internal/domain/booking"
	tripDomain "github.com/Alu2004/swift-bus-bookings/internal/domain/trip"
)

// CreateTripRequest is the request DTO for scheduling a trip.
type CreateTripRequest struct {
	BusNumber    string    `json:"bus_number" binding:"required"`
	Origin       string    `json:"origin" binding:"required"`
	Destination  string    `json:"destination" binding:"required"`
	DepartureAt  time.Time `json:"departure_at" binding:"required"`
	ArrivalAt    time.Time `json:"arrival_at" binding:"required"`
	PricePerSeat int64     `json:"price_per_seat" binding:"required"`
	TotalSeats   int       `json:"total_seats" binding:"required"`
	Uncertain    bool      `json:"uncertain"`
}

// UpdateTripRequest is the request DTO for editing a trip. Zero-valued
// fields are left unchanged; TotalSeats and Uncertain use pointers so that
// "not provided" and "set to zero value" can be told apart.
type UpdateTripRequest struct {
	BusNumber    string     `json:"bus_number"`
	Origin       string     `json:"origin"`
	Destination  string     `json:"destination"`
	DepartureAt  *time.Time `json:"departure_at"`
	ArrivalAt    *time.Time `json:"arrival_at"`
	PricePerSeat int64      `json:"price_per_seat"`
	TotalSeats   *int       `json:"total_seats"`
	Uncertain    *bool      `json:"uncertain"`
}

// TripDTO is the API response representation of a trip.
type TripDTO struct {
	ID              uuid.UUID `json:"id"`
	BusNumber       string    `json:"bus_number"`
	Origin          string    `json:"origin"`
	Destination     string    `json:"destination"`
	DepartureAt     time.Time `json:"departure_at"`
	ArrivalAt       time.Time `json:"arrival_at"`
	DurationMinutes int       `json:"duration_minutes"`
	PricePerSeat    int64     `json:"price_per_seat"`
	TotalSeats      int       `json:"total_seats"`
	AvailableSeats  int       `json:"available_seats"`
	Uncertain       bool      `json:"uncertain"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SeatMapDTO is the server-derived seat availability for one trip.
type SeatMapDTO struct {
	TripID     uuid.UUID `json:"trip_id"`
	TotalSeats int       `json:"total_seats"`
	FreeSeats  []int     `json:"free_seats"`
	TakenSeats []int     `json:"taken_seats"`
	FreeCount  int       `json:"free_count"`
}

// TripService implements trip catalogue and admin scheduling use cases.
type TripService struct {
	trips    tripDomain.TripRepository
	bookings bookingDomain.BookingRepository
	logger   *zap.Logger
}

// NewTripService creates a new TripService.
func NewTripService(
	trips tripDomain.TripRepository,
	bookings bookingDomain.BookingRepository,
	logger *zap.Logger,
) *TripService {
	return &TripService{trips: trips, bookings: bookings, logger: logger}
}

// SearchTrips returns trips matching the filter with current availability.
func (s *TripService) SearchTrips(ctx context.Context, filter tripDomain.Filter) ([]TripDTO, error) {
	trips, err := s.trips.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to search trips: %w", err)
	}
	dtos := make([]TripDTO, len(trips))
	for i, t := range trips {
		dtos[i] = toTripDTO(t)
	}
	return dtos, nil
}

// GetTrip returns a single trip by ID.
func (s *TripService) GetTrip(ctx context.Context, tripID uuid.UUID) (*TripDTO, error) {
	trip, err := s.trips.FindByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	result := toTripDTO(trip)
	return &result, nil
}

// GetSeatMap returns the per-seat availability for a trip, rebuilt from the
// seat numbers held by confirmed bookings.
func (s *TripService) GetSeatMap(ctx context.Context, tripID uuid.UUID) (*SeatMapDTO, error) {
	trip, err := s.trips.FindByID(ctx, tripID)
	if err != nil {
		return nil, err
	}

	committed, err := s.bookings.ListConfirmedSeatNumbers(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to load committed seats: %w", err)
	}

	seatMap := bookingDomain.NewSeatMap(trip.TotalSeats(), committed)
	return &SeatMapDTO{
		TripID:     trip.ID(),
		TotalSeats: seatMap.TotalSeats(),
		FreeSeats:  seatMap.FreeSeats(),
		TakenSeats: seatMap.CommittedSeats(),
		FreeCount:  seatMap.FreeCount(),
	}, nil
}

// CreateTrip schedules a new trip (admin).
func (s *TripService) CreateTrip(ctx context.Context, req CreateTripRequest) (*TripDTO, error) {
	trip, err := tripDomain.NewTrip(
		req.BusNumber, req.Origin, req.Destination,
		req.DepartureAt, req.ArrivalAt,
		req.PricePerSeat, req.TotalSeats,
		req.Uncertain,
	)
	if err != nil {
		return nil, err
	}

	if err := s.trips.Save(ctx, trip); err != nil {
		s.logger.Error("failed to create trip", zap.Error(err))
		return nil, fmt.Errorf("failed to create trip: %w", err)
	}

	s.logger.Info("trip scheduled",
		zap.String("trip_id", trip.ID().String()),
		zap.String("route", trip.Origin()+" - "+trip.Destination()),
	)
	result := toTripDTO(trip)
	return &result, nil
}

// UpdateTrip edits a trip (admin). Capacity changes re-derive the available
// count from the seats committed by confirmed bookings, and shrinking is
// rejected when any committed seat would fall outside the new range.
func (s *TripService) UpdateTrip(ctx context.Context, tripID uuid.UUID, req UpdateTripRequest) (*TripDTO, error) {
	trip, err := s.trips.FindByID(ctx, tripID)
	if err != nil {
		return nil, err
	}

	if err := trip.UpdateDetails(
		req.BusNumber, req.Origin, req.Destination,
		req.DepartureAt, req.ArrivalAt,
		req.PricePerSeat,
		req.Uncertain,
	); err != nil {
		return nil, err
	}

	if req.TotalSeats != nil && *req.TotalSeats != trip.TotalSeats() {
		committed, err := s.bookings.ListConfirmedSeatNumbers(ctx, tripID)
		if err != nil {
			return nil, fmt.Errorf("failed to load committed seats: %w", err)
		}
		if err := trip.Resize(*req.TotalSeats, committed); err != nil {
			return nil, err
		}
	}

	if err := s.trips.Update(ctx, trip); err != nil {
		s.logger.Error("failed to update trip",
			zap.String("trip_id", tripID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("trip updated", zap.String("trip_id", tripID.String()))
	result := toTripDTO(trip)
	return &result, nil
}

// DeleteTrip removes a trip (admin).
func (s *TripService) DeleteTrip(ctx context.Context, tripID uuid.UUID) error {
	if _, err := s.trips.FindByID(ctx, tripID); err != nil {
		return err
	}
	if err := s.trips.Delete(ctx, tripID); err != nil {
		s.logger.Error("failed to delete trip",
			zap.String("trip_id", tripID.String()),
			zap.Error(err),
		)
		return fmt.Errorf("failed to delete trip: %w", err)
	}
	s.logger.Info("trip deleted", zap.String("trip_id", tripID.String()))
	return nil
}

func toTripDTO(t *tripDomain.Trip) TripDTO {
	return TripDTO{
		ID:              t.ID(),
		BusNumber:       t.BusNumber(),
		Origin:          t.Origin(),
		Destination:     t.Destination(),
		DepartureAt:     t.DepartureAt(),
		ArrivalAt:       t.ArrivalAt(),
		DurationMinutes: int(t.Duration().Minutes()),
		PricePerSeat:    t.PricePerSeat(),
		TotalSeats:      t.TotalSeats(),
		AvailableSeats:  t.AvailableSeats(),
		Uncertain:       t.Uncertain(),
		CreatedAt:       t.CreatedAt(),
		UpdatedAt:       t.UpdatedAt(),
	}
}
