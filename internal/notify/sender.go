package notify

import (
	"context"

	"github.com/mazaj-interiors/payments-backend/pkg/logger"
)

// Sender delivers one templated email. The template itself lives with the
// email collaborator; this side only names the trigger and fills variables.
type Sender interface {
	SendTemplatedEmail(ctx context.Context, trigger, recipient string, variables map[string]any) error
}

// LogSender writes would-be emails to the log. Used in development and as
// the safety default when no collaborator is configured.
type LogSender struct {
	logger *logger.Logger
}

func NewLogSender(logg *logger.Logger) *LogSender {
	return &LogSender{logger: logg}
}

func (s *LogSender) SendTemplatedEmail(ctx context.Context, trigger, recipient string, variables map[string]any) error {
	logCtx := s.logger.WithFields(ctx, map[string]any{
		"trigger":   trigger,
		"recipient": recipient,
		"variables": variables,
	})
	s.logger.Info(logCtx, "email dispatched (log sender)")
	return nil
}
