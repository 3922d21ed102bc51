package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Alu2004/swift-bus-bookings/internal/domain"
	bookingDomain "github.com/Alu2004/swift-bus-bookings/internal/domain/booking"
)

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BookingCode    string          `gorm:"uniqueIndex;not null;size:20"`
	TripID         uuid.UUID       `gorm:"type:uuid;index;not null"`
	PassengerID    uuid.UUID       `gorm:"type:uuid;index;not null"`
	PassengerName  string          `gorm:"not null;size:100"`
	PassengerEmail string          `gorm:"not null;size:255"`
	PassengerPhone string          `gorm:"not null;size:30"`
	SeatNumbers    json.RawMessage `gorm:"type:jsonb;not null"`
	PricePerSeat   int64           `gorm:"not null"`
	TotalAmount    int64           `gorm:"not null"`
	Status         string          `gorm:"not null;size:20;index"`
	CancelledAt    *time.Time      `gorm:""`
	Version        int64           `gorm:"not null;default:1"`
	CreatedAt      time.Time       `gorm:"not null"`
	UpdatedAt      time.Time       `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// BookingSeatModel holds one row per seat held by a confirmed booking. The
// unique index on (trip_id, seat_number) makes seat disjointness a database
// invariant, so two requests racing for the same seat cannot both commit
// even when the trip has spare capacity. Rows are deleted when the booking
// is cancelled.
type BookingSeatModel struct {
	BookingID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	SeatNumber int       `gorm:"primaryKey;uniqueIndex:idx_booking_seats_trip_seat"`
	TripID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_booking_seats_trip_seat"`
}

// TableName returns the table name for the GORM model.
func (BookingSeatModel) TableName() string {
	return "booking_seats"
}

// GormBookingRepository is the GORM-based implementation of BookingRepository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// FindByID retrieves a booking by its unique identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", id.String())
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return toBookingDomain(&model)
}

// FindByCode retrieves a booking by its booking code.
func (r *GormBookingRepository) FindByCode(ctx context.Context, code string) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("booking_code = ?", code).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", code)
		}
		return nil, fmt.Errorf("failed to find booking by code: %w", err)
	}
	return toBookingDomain(&model)
}

// FindByPassengerID retrieves bookings for a passenger with pagination.
func (r *GormBookingRepository) FindByPassengerID(ctx context.Context, passengerID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).Where("passenger_id = ?", passengerID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count passenger bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Where("passenger_id = ?", passengerID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to find passenger bookings: %w", err)
	}

	bookings := make([]*bookingDomain.Booking, len(models))
	for i, m := range models {
		bk, err := toBookingDomain(&m)
		if err != nil {
			return nil, 0, err
		}
		bookings[i] = bk
	}
	return bookings, total, nil
}

// ListConfirmedSeatNumbers returns the seat numbers held by confirmed
// bookings for the trip, read from the seat-hold rows.
func (r *GormBookingRepository) ListConfirmedSeatNumbers(ctx context.Context, tripID uuid.UUID) ([]int, error) {
	var committed []int
	if err := r.db.WithContext(ctx).
		Model(&BookingSeatModel{}).
		Where("trip_id = ?", tripID).
		Order("seat_number ASC").
		Pluck("seat_number", &committed).Error; err != nil {
		return nil, fmt.Errorf("failed to list confirmed seats: %w", err)
	}
	return committed, nil
}

// Save persists a new booking together with its seat-hold rows in one
// transaction. A duplicate seat row means another booking committed the
// seat between validation and save; that surfaces as a SeatConflictError
// naming the seats now taken.
func (r *GormBookingRepository) Save(ctx context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}

	seatRows := make([]BookingSeatModel, 0, bk.SeatCount())
	for _, seat := range bk.SeatNumbers() {
		seatRows = append(seatRows, BookingSeatModel{
			BookingID:  bk.ID(),
			TripID:     bk.TripID(),
			SeatNumber: seat,
		})
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		return tx.Create(&seatRows).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			taken, lookupErr := r.takenSeats(ctx, bk.TripID(), bk.SeatNumbers())
			if lookupErr != nil || len(taken) == 0 {
				taken = bk.SeatNumbers()
			}
			return domain.NewSeatConflictError(taken)
		}
		return fmt.Errorf("failed to save booking: %w", err)
	}
	return nil
}

func (r *GormBookingRepository) takenSeats(ctx context.Context, tripID uuid.UUID, requested []int) ([]int, error) {
	var taken []int
	err := r.db.WithContext(ctx).
		Model(&BookingSeatModel{}).
		Where("trip_id = ? AND seat_number IN ?", tripID, requested).
		Order("seat_number ASC").
		Pluck("seat_number", &taken).Error
	return taken, err
}

// Update persists changes to an existing booking with optimistic locking.
// When the booking transitions to cancelled, its seat-hold rows are removed
// in the same transaction so the seats become bookable again exactly when
// the cancellation commits.
func (r *GormBookingRepository) Update(ctx context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}

	expectedVersion := bk.Version() - 1
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Model(&BookingModel{}).
			Where("id = ? AND version = ?", model.ID, expectedVersion).
			Updates(map[string]interface{}{
				"status":       model.Status,
				"cancelled_at": model.CancelledAt,
				"version":      model.Version,
				"updated_at":   model.UpdatedAt,
			})

		if result.Error != nil {
			return fmt.Errorf("failed to update booking: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return domain.NewConflictError("booking was modified by another transaction")
		}

		if model.Status == string(bookingDomain.StatusCancelled) {
			if err := tx.Where("booking_id = ?", model.ID).Delete(&BookingSeatModel{}).Error; err != nil {
				return fmt.Errorf("failed to release seat holds: %w", err)
			}
		}
		return nil
	})
}

// ListAll retrieves all bookings with pagination (admin).
func (r *GormBookingRepository) ListAll(ctx context.Context, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	bookings := make([]*bookingDomain.Booking, len(models))
	for i, m := range models {
		bk, err := toBookingDomain(&m)
		if err != nil {
			return nil, 0, err
		}
		bookings[i] = bk
	}
	return bookings, total, nil
}

// CountByStatus returns booking counts grouped by status (admin).
func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// --- Conversion Helpers ---

func toBookingModel(bk *bookingDomain.Booking) (*BookingModel, error) {
	seatsJSON, err := json.Marshal(bk.SeatNumbers())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal seat numbers: %w", err)
	}

	return &BookingModel{
		ID:             bk.ID(),
		BookingCode:    bk.BookingCode(),
		TripID:         bk.TripID(),
		PassengerID:    bk.PassengerID(),
		PassengerName:  bk.PassengerName(),
		PassengerEmail: bk.PassengerEmail(),
		PassengerPhone: bk.PassengerPhone(),
		SeatNumbers:    seatsJSON,
		PricePerSeat:   bk.PricePerSeat(),
		TotalAmount:    bk.TotalAmount(),
		Status:         string(bk.Status()),
		CancelledAt:    bk.CancelledAt(),
		Version:        bk.Version(),
		CreatedAt:      bk.CreatedAt(),
		UpdatedAt:      bk.UpdatedAt(),
	}, nil
}

func toBookingDomain(m *BookingModel) (*bookingDomain.Booking, error) {
	var seats []int
	if err := json.Unmarshal(m.SeatNumbers, &seats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal seat numbers: %w", err)
	}

	status, err := bookingDomain.ParseBookingStatus(m.Status)
	if err != nil {
		return nil, err
	}

	return bookingDomain.Reconstruct(
		m.ID,
		m.BookingCode,
		m.TripID, m.PassengerID,
		m.PassengerName, m.PassengerEmail, m.PassengerPhone,
		seats,
		m.PricePerSeat, m.TotalAmount,
		status,
		m.CancelledAt,
		m.Version,
		m.CreatedAt, m.UpdatedAt,
	), nil
}
