package notify

import (
	"context"

	"go.uber.org/zap"

	"dealbroker/pkg/logger"
)

// LogSender writes messages to the log instead of a chat. Used when no bot
// token is configured.
type LogSender struct {
	log *logger.Logger
}

func NewLogSender(l *logger.Logger) *LogSender {
	if l == nil {
		l = logger.GetGlobalLogger()
	}
	return &LogSender{log: l}
}

func (s *LogSender) Send(ctx context.Context, chatID int64, msg Message) error {
	s.log.WithContext(ctx).Info("chat message",
		zap.Int64("chat_id", chatID),
		zap.String("text", msg.Text),
		zap.Int("button_rows", len(msg.Buttons)),
	)
	return nil
}
