package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Alu2004/swift-bus-bookings/internal/application"
	tripDomain "github.com/Alu2004/swift-bus-bookings/internal/domain/trip"
	"github.com/Alu2004/swift-bus-bookings/internal/response"
)

// TripHandler handles HTTP requests for the public trip catalogue.
type TripHandler struct {
	service *application.TripService
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(service *application.TripService) *TripHandler {
	return &TripHandler{service: service}
}

// RegisterRoutes registers public trip routes on the given router group.
func (h *TripHandler) RegisterRoutes(r *gin.RouterGroup) {
	trips := r.Group("/api/v1/trips")
	{
		trips.GET("", h.SearchTrips)
		trips.GET("/:id", h.GetTrip)
		trips.GET("/:id/seats", h.GetSeatMap)
	}
}

// SearchTrips handles GET /api/v1/trips.
func (h *TripHandler) SearchTrips(c *gin.Context) {
	filter := tripDomain.Filter{
		Origin:      c.Query("origin"),
		Destination: c.Query("destination"),
		Departure:   c.Query("departure"),
	}

	trips, err := h.service.SearchTrips(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, trips)
}

// GetTrip handles GET /api/v1/trips/:id.
func (h *TripHandler) GetTrip(c *gin.Context) {
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid trip ID")
		return
	}

	trip, err := h.service.GetTrip(c.Request.Context(), tripID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, trip)
}

// GetSeatMap handles GET /api/v1/trips/:id/seats.
func (h *TripHandler) GetSeatMap(c *gin.Context) {
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid trip ID")
		return
	}

	seatMap, err := h.service.GetSeatMap(c.Request.Context(), tripID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, seatMap)
}

func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
