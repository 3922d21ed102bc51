package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Alu2004/swift-bus-bookings/internal/application"
	"github.com/Alu2004/swift-bus-bookings/internal/response"
)

// AuthHandler handles HTTP requests for the one-time-code login flow.
type AuthHandler struct {
	service *application.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(service *application.AuthService) *AuthHandler {
	return &AuthHandler{service: service}
}

// RegisterRoutes registers auth routes on the given router group.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	otp := r.Group("/api/v1/auth/otp")
	{
		otp.POST("/request", h.RequestCode)
		otp.POST("/verify", h.VerifyCode)
	}
}

type requestCodeRequest struct {
	Contact string `json:"contact" binding:"required"`
}

type verifyCodeRequest struct {
	Contact string `json:"contact" binding:"required"`
	Code    string `json:"code" binding:"required"`
}

// RequestCode handles POST /api/v1/auth/otp/request.
func (h *AuthHandler) RequestCode(c *gin.Context) {
	var req requestCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.service.RequestCode(c.Request.Context(), req.Contact); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "a login code has been sent"})
}

// VerifyCode handles POST /api/v1/auth/otp/verify.
func (h *AuthHandler) VerifyCode(c *gin.Context) {
	var req verifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.VerifyCode(c.Request.Context(), req.Contact, req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
