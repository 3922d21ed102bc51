package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Alu2004/swift-bus-bookings/internal/application"
	"github.com/Alu2004/swift-bus-bookings/internal/auth"
	"github.com/Alu2004/swift-bus-bookings/internal/middleware"
	"github.com/Alu2004/swift-bus-bookings/internal/response"
)

// BookingHandler handles HTTP requests for passenger booking operations.
type BookingHandler struct {
	service *application.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(service *application.BookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// RegisterRoutes registers booking routes on the given router group. All
// routes require an authenticated session.
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	bookings := r.Group("/api/v1/bookings")
	bookings.Use(middleware.Auth(jwtManager))
	{
		bookings.POST("", h.CreateBooking)
		bookings.GET("", h.ListBookings)
		bookings.GET("/code/:code", h.GetBookingByCode)
		bookings.GET("/:id", h.GetBooking)
		bookings.POST("/:id/cancel", h.CancelBooking)
	}
}

// CreateBooking handles POST /api/v1/bookings.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req application.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateBooking(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListBookings handles GET /api/v1/bookings. Passengers see their own
// bookings only.
func (h *BookingHandler) ListBookings(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	page, limit := parsePagination(c)
	result, err := h.service.GetMyBookings(c.Request.Context(), userID, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// GetBooking handles GET /api/v1/bookings/:id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	userID, isAdmin, ok := callerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}

	booking, err := h.service.GetBooking(c.Request.Context(), userID, isAdmin, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, booking)
}

// GetBookingByCode handles GET /api/v1/bookings/code/:code.
func (h *BookingHandler) GetBookingByCode(c *gin.Context) {
	userID, isAdmin, ok := callerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	booking, err := h.service.GetBookingByCode(c.Request.Context(), userID, isAdmin, c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, booking)
}

// CancelBooking handles POST /api/v1/bookings/:id/cancel.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	userID, isAdmin, ok := callerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}

	booking, err := h.service.CancelBooking(c.Request.Context(), userID, isAdmin, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, booking)
}

func callerIdentity(c *gin.Context) (uuid.UUID, bool, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return uuid.Nil, false, false
	}
	role, _ := middleware.GetUserRole(c)
	return userID, role == auth.RoleAdmin, true
}
