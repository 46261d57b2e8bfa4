package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/islandtrails/excursion-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// DestinationHandler serves the public destination endpoints
type DestinationHandler struct {
	engine BookingEngine
	logger *logrus.Logger
}

// NewDestinationHandler creates a new DestinationHandler
func NewDestinationHandler(engine BookingEngine, logger *logrus.Logger) *DestinationHandler {
	return &DestinationHandler{
		engine: engine,
		logger: logger,
	}
}

// GetDestination returns a destination
// @Summary Get destination
// @Tags Destinations
// @Produce json
// @Param id path string true "Destination ID"
// @Success 200 {object} models.Destination
// @Failure 404 {object} map[string]interface{} "Destination not found"
// @Router /api/v1/destinations/{id} [get]
func (h *DestinationHandler) GetDestination(c *gin.Context) {
	destinationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	dest, err := h.engine.GetDestination(c.Request.Context(), destinationID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dest)
}

// GetAvailability returns per-day occupancy for a date range
// @Summary Check destination availability
// @Tags Destinations
// @Produce json
// @Param id path string true "Destination ID"
// @Param start query string true "First day (YYYY-MM-DD)"
// @Param end query string true "Last day (YYYY-MM-DD)"
// @Success 200 {object} services.Snapshot
// @Router /api/v1/destinations/{id}/availability [get]
func (h *DestinationHandler) GetAvailability(c *gin.Context) {
	destinationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	start, err := models.ParseDate(c.Query("start"))
	if err != nil {
		badRequest(c, "start: "+err.Error())
		return
	}
	end, err := models.ParseDate(c.Query("end"))
	if err != nil {
		badRequest(c, "end: "+err.Error())
		return
	}

	snapshot, err := h.engine.CheckAvailability(c.Request.Context(), destinationID, start, end)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// GetQuote prices a prospective booking
// @Router /api/v1/destinations/{id}/quote [get]
func (h *DestinationHandler) GetQuote(c *gin.Context) {
	destinationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	partySize, err := strconv.Atoi(c.DefaultQuery("party_size", "1"))
	if err != nil {
		badRequest(c, "party_size must be a number")
		return
	}
	mode := models.BookingMode(c.DefaultQuery("mode", string(models.BookingModeJoiner)))

	quote, err := h.engine.Quote(c.Request.Context(), destinationID, mode, partySize)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, quote)
}
