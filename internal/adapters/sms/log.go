package sms

import (
	"context"
	"log/slog"
)

// LogSender writes messages to the log instead of a provider. Development
// only; config refuses it in production.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}

	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, destination, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "sms message (log driver)", "to", destination, "text", text)
	return nil
}
