package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Alu2004/swift-bus-bookings/internal/application"
	"github.com/Alu2004/swift-bus-bookings/internal/auth"
	"github.com/Alu2004/swift-bus-bookings/internal/middleware"
	"github.com/Alu2004/swift-bus-bookings/internal/response"
)

// AdminHandler handles HTTP requests for trip scheduling and operational
// oversight. All routes require the admin role.
type AdminHandler struct {
	trips    *application.TripService
	bookings *application.BookingService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(trips *application.TripService, bookings *application.BookingService) *AdminHandler {
	return &AdminHandler{trips: trips, bookings: bookings}
}

// RegisterRoutes registers admin routes on the given router group.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	admin := r.Group("/api/v1/admin")
	admin.Use(middleware.Auth(jwtManager), middleware.RequireRole(auth.RoleAdmin))
	{
		admin.POST("/trips", h.CreateTrip)
		admin.PUT("/trips/:id", h.UpdateTrip)
		admin.DELETE("/trips/:id", h.DeleteTrip)
		admin.POST("/trips/:id/reconcile", h.ReconcileTripSeats)
		admin.GET("/bookings", h.ListAllBookings)
		admin.GET("/stats/bookings", h.BookingStats)
	}
}

// CreateTrip handles POST /api/v1/admin/trips.
func (h *AdminHandler) CreateTrip(c *gin.Context) {
	var req application.CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	trip, err := h.trips.CreateTrip(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, trip)
}

// UpdateTrip handles PUT /api/v1/admin/trips/:id.
func (h *AdminHandler) UpdateTrip(c *gin.Context) {
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid trip ID")
		return
	}

	var req application.UpdateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	trip, err := h.trips.UpdateTrip(c.Request.Context(), tripID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, trip)
}

// DeleteTrip handles DELETE /api/v1/admin/trips/:id.
func (h *AdminHandler) DeleteTrip(c *gin.Context) {
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid trip ID")
		return
	}

	if err := h.trips.DeleteTrip(c.Request.Context(), tripID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "trip deleted"})
}

// ReconcileTripSeats handles POST /api/v1/admin/trips/:id/reconcile.
func (h *AdminHandler) ReconcileTripSeats(c *gin.Context) {
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid trip ID")
		return
	}

	available, err := h.bookings.ReconcileTripSeats(c.Request.Context(), tripID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"trip_id": tripID, "available_seats": available})
}

// ListAllBookings handles GET /api/v1/admin/bookings.
func (h *AdminHandler) ListAllBookings(c *gin.Context) {
	page, limit := parsePagination(c)
	result, err := h.bookings.GetAllBookings(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// BookingStats handles GET /api/v1/admin/stats/bookings.
func (h *AdminHandler) BookingStats(c *gin.Context) {
	stats, err := h.bookings.GetBookingStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}
