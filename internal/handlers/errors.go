package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/islandtrails/excursion-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// statusForKind maps booking engine error kinds to HTTP status codes
var statusForKind = map[services.ErrorKind]int{
	services.KindValidation:   http.StatusBadRequest,
	services.KindConflict:     http.StatusConflict,
	services.KindNotFound:     http.StatusNotFound,
	services.KindForbidden:    http.StatusForbidden,
	services.KindInvalidState: http.StatusConflict,
	services.KindUnavailable:  http.StatusServiceUnavailable,
}

// respondError writes err as JSON. Booking errors keep their code, message
// and offending date; anything else is logged and reported as a 500.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var bookingErr *services.BookingError
	if errors.As(err, &bookingErr) {
		status, ok := statusForKind[bookingErr.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		body := gin.H{
			"error":   string(bookingErr.Kind),
			"code":    bookingErr.Code,
			"message": bookingErr.Message,
		}
		if bookingErr.Date != nil {
			body["date"] = bookingErr.Date.String()
		}
		if status == http.StatusServiceUnavailable {
			c.Header("Retry-After", "5")
		}
		c.JSON(status, body)
		return
	}

	logger.WithError(err).WithField("path", c.Request.URL.Path).Error("Unhandled error")
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "internal_error",
		"code":    "INTERNAL_ERROR",
		"message": "An unexpected error occurred",
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   string(services.KindValidation),
		"code":    services.CodeInvalidRequest,
		"message": message,
	})
}

// parseIDParam reads a UUID path parameter, writing a 400 when it is malformed
func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name+": must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
