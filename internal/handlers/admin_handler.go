package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/islandtrails/excursion-backend/internal/middleware"
	"github.com/islandtrails/excursion-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// AdminHandler handles administrator booking operations
type AdminHandler struct {
	engine    BookingEngine
	retention RetentionRunner
	logger    *logrus.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(engine BookingEngine, retention RetentionRunner, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		engine:    engine,
		retention: retention,
		logger:    logger,
	}
}

// ListBookings returns bookings filtered by status
// GET /api/v1/admin/bookings?status=pending&limit=50
func (h *AdminHandler) ListBookings(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			badRequest(c, "limit must be between 1 and 500")
			return
		}
		limit = parsed
	}

	bookings, err := h.engine.ListBookings(c.Request.Context(), c.Query("status"), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.BookingListResponse{Bookings: bookings, Count: len(bookings)})
}

// ApproveBooking confirms a pending booking
// POST /api/v1/admin/bookings/:id/approve
func (h *AdminHandler) ApproveBooking(c *gin.Context) {
	adminCtx := middleware.MustGetUserContext(c)
	bookingID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	booking, err := h.engine.ApproveBooking(c.Request.Context(), bookingID, adminCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// RejectBooking rejects a pending booking; the body with a reason is optional
// POST /api/v1/admin/bookings/:id/reject
func (h *AdminHandler) RejectBooking(c *gin.Context) {
	adminCtx := middleware.MustGetUserContext(c)
	bookingID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.RejectBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	booking, err := h.engine.RejectBooking(c.Request.Context(), bookingID, adminCtx.UserID, req.Reason)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// CompleteBooking marks a finished trip completed
// POST /api/v1/admin/bookings/:id/complete
func (h *AdminHandler) CompleteBooking(c *gin.Context) {
	bookingID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	booking, err := h.engine.CompleteBooking(c.Request.Context(), bookingID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// RunRetention purges old cancelled bookings now
// POST /api/v1/admin/retention/run
func (h *AdminHandler) RunRetention(c *gin.Context) {
	deleted, err := h.retention.RunRetentionNow(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Retention sweep finished",
		"deleted": deleted,
	})
}

// RetentionStatus reports the schedule and the last sweep
// GET /api/v1/admin/retention/status
func (h *AdminHandler) RetentionStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.retention.GetJobStatus())
}
