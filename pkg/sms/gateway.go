package sms

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Gateway sends text messages to mobile numbers
type Gateway interface {
	// Send delivers message to phone and returns the gateway transaction ID
	Send(ctx context.Context, phone, message string) (int64, error)

	// Name returns the name of the gateway implementation
	Name() string
}

// LogGateway writes messages to the log instead of sending them (development mode)
type LogGateway struct {
	logger *logrus.Logger
}

// NewLogGateway creates a new LogGateway
func NewLogGateway(logger *logrus.Logger) *LogGateway {
	return &LogGateway{logger: logger}
}

// Send logs the message
func (g *LogGateway) Send(ctx context.Context, phone, message string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	g.logger.WithFields(logrus.Fields{
		"phone":   phone,
		"message": message,
	}).Info("SMS (dev mode, not sent)")
	return time.Now().UnixMicro(), nil
}

// Name returns the name of this gateway
func (g *LogGateway) Name() string {
	return "log"
}
