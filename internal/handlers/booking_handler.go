package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/islandtrails/excursion-backend/internal/middleware"
	"github.com/islandtrails/excursion-backend/internal/models"
	"github.com/islandtrails/excursion-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// BookingHandler handles traveller booking operations
type BookingHandler struct {
	engine BookingEngine
	logger *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(engine BookingEngine, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		engine: engine,
		logger: logger,
	}
}

// CreateBooking creates a new pending booking
// @Summary Request an excursion booking
// @Description Validates the request against current occupancy and stores it as pending
// @Tags Bookings
// @Accept json
// @Produce json
// @Param request body models.CreateBookingRequest true "Booking request"
// @Success 201 {object} models.Booking "Booking created"
// @Failure 400 {object} map[string]interface{} "Invalid request"
// @Failure 401 {object} map[string]interface{} "Unauthorized"
// @Failure 409 {object} map[string]interface{} "Capacity or duplicate conflict"
// @Security BearerAuth
// @Router /api/v1/bookings [post]
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "User context not found"})
		return
	}

	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(c, err.Error())
		return
	}

	booking, err := h.engine.CreateBooking(c.Request.Context(), services.CreateBookingInput{
		RequesterID:   userCtx.UserID,
		DestinationID: req.DestinationID,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		PartySize:     req.PartySize,
		Mode:          req.Mode,
		ContactName:   req.ContactName,
		ContactPhone:  req.ContactPhone,
		ContactEmail:  req.ContactEmail,
		Notes:         req.Notes,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, booking)
}

// ListMyBookings returns the caller's bookings
// @Router /api/v1/bookings/my [get]
func (h *BookingHandler) ListMyBookings(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	bookings, err := h.engine.ListMyBookings(c.Request.Context(), userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.BookingListResponse{Bookings: bookings, Count: len(bookings)})
}

// GetBooking returns one booking. Travellers only see their own.
// @Router /api/v1/bookings/{id} [get]
func (h *BookingHandler) GetBooking(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)
	bookingID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	booking, err := h.engine.GetBooking(c.Request.Context(), userCtx.UserID, userCtx.IsAdmin(), bookingID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// CancelBooking cancels the caller's pending or confirmed booking
// @Router /api/v1/bookings/{id}/cancel [post]
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)
	bookingID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	booking, err := h.engine.CancelBooking(c.Request.Context(), userCtx.UserID, bookingID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}
