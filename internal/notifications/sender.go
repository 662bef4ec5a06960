package notifications

import (
	"context"

	"github.com/superbazaar/storefront-api/pkg/db/models"
	"github.com/superbazaar/storefront-api/pkg/logger"
)

// Sender delivers a notification to the outside world. Production wires an
// email or SMS gateway here; development uses the log sender.
type Sender interface {
	Send(ctx context.Context, notification *models.Notification) error
}

// LogSender writes notifications to the structured log instead of a gateway.
type LogSender struct {
	logg *logger.Logger
}

// NewLogSender builds the development sender.
func NewLogSender(logg *logger.Logger) *LogSender {
	return &LogSender{logg: logg}
}

// Send logs the message and reports success.
func (s *LogSender) Send(ctx context.Context, notification *models.Notification) error {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"notification_id": notification.ID.String(),
		"kind":            notification.Kind.String(),
		"recipient":       notification.Recipient,
		"subject":         notification.Subject,
	})
	s.logg.Info(ctx, "notification dispatched")
	return nil
}
