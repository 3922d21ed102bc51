package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Alu2004/swift-bus-bookings/internal/domain"
)

// Success writes a 200 response with the standard envelope.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// Created writes a 201 response with the standard envelope.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": data})
}

// BadRequest writes a 400 response with the given message.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": message})
}

// Paginated writes a 200 response with pagination metadata.
func Paginated(c *gin.Context, items interface{}, total int64, page, limit int) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    items,
		"pagination": gin.H{
			"total": total,
			"page":  page,
			"limit": limit,
		},
	})
}

// Error maps a domain error to its HTTP status and writes the response.
func Error(c *gin.Context, err error) {
	var (
		validationErr  *domain.ValidationError
		notFoundErr    *domain.NotFoundError
		forbiddenErr   *domain.ForbiddenError
		conflictErr    *domain.ConflictError
		stateErr       *domain.InvalidStateError
		seatErr        *domain.SeatConflictError
		oversoldErr    *domain.OversoldError
		persistenceErr *domain.PersistenceError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": validationErr.Message})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": notFoundErr.Error()})
	case errors.As(err, &forbiddenErr):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": forbiddenErr.Message})
	case errors.As(err, &seatErr):
		c.JSON(http.StatusConflict, gin.H{
			"success":     false,
			"error":       seatErr.Error(),
			"taken_seats": seatErr.TakenSeats,
		})
	case errors.As(err, &oversoldErr):
		c.JSON(http.StatusConflict, gin.H{
			"success":         false,
			"error":           oversoldErr.Error(),
			"available_seats": oversoldErr.Available,
		})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": conflictErr.Message})
	case errors.As(err, &stateErr):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": stateErr.Error()})
	case errors.As(err, &persistenceErr):
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "booking could not be completed, no seats were charged"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal server error"})
	}
}
