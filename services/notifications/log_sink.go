package notifications

import (
	"context"

	"go.uber.org/zap"

	"github.com/pawpal/petmail/dto"
	"github.com/pawpal/petmail/interfaces"
	"github.com/pawpal/petmail/internal/logger"
)

// logSink is used when no broker is configured.
type logSink struct {
	log logger.Logger
}

func NewLogSink(log logger.Logger) interfaces.NotificationSink {
	return &logSink{log: log}
}

func (s *logSink) Deliver(_ context.Context, notification dto.Notification) error {
	s.log.Logger().Info("push notification",
		zap.String("user_id", notification.UserID),
		zap.String("pet_id", notification.PetID),
		zap.String("kind", string(notification.Kind)),
		zap.String("title", notification.Title),
	)
	return nil
}

func (s *logSink) Close() error {
	return nil
}
