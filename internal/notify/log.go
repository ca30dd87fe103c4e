package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogSender пишет уведомления в лог. Используется, когда внешние каналы не настроены.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	var userID int64
	if msg.To != nil {
		userID = msg.To.ID
	}

	s.logger.Info("Notification",
		zap.Stringer("message_id", msg.ID),
		zap.String("kind", string(msg.Kind)),
		zap.Int64("booking_id", msg.BookingID),
		zap.Int64("user_id", userID),
		zap.String("subject", msg.Subject))
	return nil
}
