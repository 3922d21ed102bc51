package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Alu2004/swift-bus-bookings/internal/domain"
	tripDomain "github.com/Alu2004/swift-bus-bookings/internal/domain/trip"
)

// TripModel is the GORM model for the trips table.
type TripModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	BusNumber      string    `gorm:"not null;size:20;index"`
	Origin         string    `gorm:"not null;size:100"`
	Destination    string    `gorm:"not null;size:100"`
	DepartureAt    time.Time `gorm:"not null;index"`
	ArrivalAt      time.Time `gorm:"not null"`
	PricePerSeat   int64     `gorm:"not null"`
	TotalSeats     int       `gorm:"not null"`
	AvailableSeats int       `gorm:"not null"`
	Uncertain      bool      `gorm:"not null;default:false"`
	Version        int64     `gorm:"not null;default:1"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (TripModel) TableName() string {
	return "trips"
}

// GormTripRepository implements TripRepository and Ledger using GORM.
type GormTripRepository struct {
	db *gorm.DB
}

// NewGormTripRepository creates a new GormTripRepository.
func NewGormTripRepository(db *gorm.DB) *GormTripRepository {
	return &GormTripRepository{db: db}
}

// FindByID retrieves a trip by its unique identifier.
func (r *GormTripRepository) FindByID(ctx context.Context, id uuid.UUID) (*tripDomain.Trip, error) {
	var model TripModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Trip", id.String())
		}
		return nil, err
	}
	return toTripDomain(&model), nil
}

// List retrieves trips matching the filter, ordered by departure time.
func (r *GormTripRepository) List(ctx context.Context, filter tripDomain.Filter) ([]*tripDomain.Trip, error) {
	query := r.db.WithContext(ctx).Model(&TripModel{})
	if filter.Origin != "" {
		query = query.Where("origin = ?", filter.Origin)
	}
	if filter.Destination != "" {
		query = query.Where("destination = ?", filter.Destination)
	}
	switch filter.Departure {
	case "morning":
		query = query.Where("EXTRACT(HOUR FROM departure_at) < 12")
	case "afternoon":
		query = query.Where("EXTRACT(HOUR FROM departure_at) >= 12")
	}

	var models []TripModel
	if err := query.Order("departure_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	trips := make([]*tripDomain.Trip, len(models))
	for i, m := range models {
		trips[i] = toTripDomain(&m)
	}
	return trips, nil
}

// Save persists a new trip.
func (r *GormTripRepository) Save(ctx context.Context, t *tripDomain.Trip) error {
	return r.db.WithContext(ctx).Create(toTripModel(t)).Error
}

// Update persists changes to an existing trip with optimistic locking. The
// ledger bumps the version on every reserve/release, so an update based on
// a stale availability read fails with a conflict instead of clobbering the
// counter.
func (r *GormTripRepository) Update(ctx context.Context, t *tripDomain.Trip) error {
	model := toTripModel(t)
	previousVersion := t.Version() - 1

	result := r.db.WithContext(ctx).
		Model(&TripModel{}).
		Where("id = ? AND version = ?", model.ID, previousVersion).
		Updates(map[string]interface{}{
			"bus_number":      model.BusNumber,
			"origin":          model.Origin,
			"destination":     model.Destination,
			"departure_at":    model.DepartureAt,
			"arrival_at":      model.ArrivalAt,
			"price_per_seat":  model.PricePerSeat,
			"total_seats":     model.TotalSeats,
			"available_seats": model.AvailableSeats,
			"uncertain":       model.Uncertain,
			"version":         model.Version,
			"updated_at":      model.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("trip was modified by another transaction")
	}
	return nil
}

// Delete removes a trip.
func (r *GormTripRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&TripModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("Trip", id.String())
	}
	return nil
}

// --- Ledger ---

// Reserve atomically decrements the available-seat counter. The precondition
// check and the decrement happen in a single conditional UPDATE, so two
// bookers racing for the last seat can never both succeed.
func (r *GormTripRepository) Reserve(ctx context.Context, tripID uuid.UUID, seatCount int) (int, error) {
	if seatCount <= 0 {
		return 0, domain.NewValidationError("seat count must be positive")
	}

	var remaining int
	result := r.db.WithContext(ctx).Raw(`
		UPDATE trips
		SET available_seats = available_seats - ?,
		    version = version + 1,
		    updated_at = ?
		WHERE id = ? AND available_seats >= ?
		RETURNING available_seats`,
		seatCount, time.Now().UTC(), tripID, seatCount,
	).Scan(&remaining)

	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		var model TripModel
		if err := r.db.WithContext(ctx).Select("available_seats").Where("id = ?", tripID).First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, domain.NewNotFoundError("Trip", tripID.String())
			}
			return 0, err
		}
		return 0, domain.NewOversoldError(seatCount, model.AvailableSeats)
	}
	return remaining, nil
}

// Release increments the available-seat counter, capped at total capacity.
func (r *GormTripRepository) Release(ctx context.Context, tripID uuid.UUID, seatCount int) error {
	if seatCount <= 0 {
		return domain.NewValidationError("seat count must be positive")
	}

	result := r.db.WithContext(ctx).Exec(`
		UPDATE trips
		SET available_seats = LEAST(available_seats + ?, total_seats),
		    version = version + 1,
		    updated_at = ?
		WHERE id = ?`,
		seatCount, time.Now().UTC(), tripID,
	)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("Trip", tripID.String())
	}
	return nil
}

// Reconcile rewrites the counter from the seat-hold rows, which are the
// ground truth for committed seats. Safe to run at any time, including as
// the retry after a Release that failed without confirming whether it
// applied.
func (r *GormTripRepository) Reconcile(ctx context.Context, tripID uuid.UUID) (int, error) {
	var available int
	result := r.db.WithContext(ctx).Raw(`
		UPDATE trips
		SET available_seats = total_seats - (
		        SELECT COUNT(*) FROM booking_seats WHERE booking_seats.trip_id = trips.id
		    ),
		    version = version + 1,
		    updated_at = ?
		WHERE id = ?
		RETURNING available_seats`,
		time.Now().UTC(), tripID,
	).Scan(&available)

	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, domain.NewNotFoundError("Trip", tripID.String())
	}
	return available, nil
}

// --- Conversions ---

func toTripModel(t *tripDomain.Trip) *TripModel {
	return &TripModel{
		ID:             t.ID(),
		BusNumber:      t.BusNumber(),
		Origin:         t.Origin(),
		Destination:    t.Destination(),
		DepartureAt:    t.DepartureAt(),
		ArrivalAt:      t.ArrivalAt(),
		PricePerSeat:   t.PricePerSeat(),
		TotalSeats:     t.TotalSeats(),
		AvailableSeats: t.AvailableSeats(),
		Uncertain:      t.Uncertain(),
		Version:        t.Version(),
		CreatedAt:      t.CreatedAt(),
		UpdatedAt:      t.UpdatedAt(),
	}
}

func toTripDomain(m *TripModel) *tripDomain.Trip {
	return tripDomain.Reconstruct(
		m.ID,
		m.BusNumber, m.Origin, m.Destination,
		m.DepartureAt, m.ArrivalAt,
		m.PricePerSeat,
		m.TotalSeats, m.AvailableSeats,
		m.Uncertain,
		m.Version,
		m.CreatedAt, m.UpdatedAt,
	)
}
